package membership

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/BatmanBruc/club-membership-bot/internal/access"
	"github.com/BatmanBruc/club-membership-bot/internal/notify"
	"github.com/BatmanBruc/club-membership-bot/internal/testutil"
	"github.com/BatmanBruc/club-membership-bot/internal/utils"
	"github.com/BatmanBruc/club-membership-bot/store"
	"github.com/BatmanBruc/club-membership-bot/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	member   = int64(700)
	adminA   = int64(1)
	adminB   = int64(2)
	outsider = int64(999)
	groupID  = int64(-100500)
)

var base = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

type harness struct {
	ctx    context.Context
	engine *Engine
	store  *store.MemoryStore
	fake   *testutil.FakeMessenger
	now    time.Time
}

func newHarness(t *testing.T) *harness {
	return newHarnessWith(t, nil)
}

func newHarnessWith(t *testing.T, memberships types.MembershipStore) *harness {
	t.Helper()
	mem := store.NewMemoryStore()
	if memberships == nil {
		memberships = mem
	}
	fake := testutil.NewFakeMessenger()
	h := &harness{ctx: context.Background(), store: mem, fake: fake, now: base}

	disp := notify.NewDispatcher(fake, mem, []int64{adminA, adminB})
	disp.SetClock(func() time.Time { return h.now })
	h.engine = NewEngine(Deps{
		Memberships: memberships,
		Pending:     mem,
		OldMembers:  mem,
		Dispatcher:  disp,
		Admins:      access.NewAdmins([]int64{adminA}, []int64{adminB}),
	}, Config{
		GroupID:            groupID,
		GracePeriod:        48 * time.Hour,
		UpcomingWindowDays: 3,
		GraceOfferDays:     3,
		Location:           time.UTC,
	})
	h.engine.SetClock(func() time.Time { return h.now })
	return h
}

func (h *harness) seed(t *testing.T, m *types.Membership) {
	t.Helper()
	if m.UserID == 0 {
		m.UserID = member
	}
	m.Username = "alice"
	require.NoError(t, h.store.UpsertMembership(h.ctx, m))
}

func (h *harness) get(t *testing.T, userID int64) *types.Membership {
	t.Helper()
	m, err := h.store.GetMembership(h.ctx, userID)
	require.NoError(t, err)
	return m
}

func (h *harness) trace(t *testing.T, userID int64) *types.ReminderTrace {
	t.Helper()
	tr, err := h.store.GetTrace(h.ctx, userID)
	require.NoError(t, err)
	return tr
}

func (h *harness) waiting(t *testing.T, status types.PendingStatus, plan types.Plan) {
	t.Helper()
	rt := h.now.Add(-time.Minute)
	require.NoError(t, h.store.SavePending(h.ctx, &types.PendingRequest{
		UserID:        member,
		Username:      "alice",
		Language:      "en",
		Status:        status,
		Plan:          plan,
		Method:        "UPI",
		RequestTime:   &rt,
		AdminMessages: map[int64]int{adminA: 11, adminB: 12},
	}))
}

func TestUpcomingReminderScenario(t *testing.T) {
	h := newHarness(t)
	h.seed(t, &types.Membership{State: types.StateActive, Plan: types.PlanMonthly, DueDate: base.Add(2 * day)})

	sum, err := h.engine.RunPaymentCheck(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Reminded)

	userMsgs := h.fake.To(member)
	require.Len(t, userMsgs, 1)
	assert.Contains(t, userMsgs[0].Text, "due in 2 day")
	assert.Len(t, h.fake.To(adminA), 1)
	assert.Len(t, h.fake.To(adminB), 1)

	tr := h.trace(t, member)
	assert.Equal(t, userMsgs[0].MessageID, tr.UserMessageID)
	assert.Len(t, tr.AdminMessages, 2)
	assert.True(t, h.get(t, member).ReminderSent)
}

func TestExpiryWithinOfferWindowOffersGrace(t *testing.T) {
	h := newHarness(t)
	h.seed(t, &types.Membership{State: types.StateActive, Plan: types.PlanMonthly, DueDate: base.Add(-day)})

	sum, err := h.engine.RunPaymentCheck(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Expired)

	m := h.get(t, member)
	assert.False(t, m.HasPaid())
	assert.True(t, m.AdminActionPending())
	assert.False(t, m.ReminderSent)

	prompt, ok := h.fake.Last(adminA)
	require.True(t, ok)
	buttons := prompt.Buttons()
	assert.Contains(t, buttons, utils.EncodeCallback(utils.ScopeMembership, utils.ActionGrace, member))
	assert.Contains(t, buttons, utils.EncodeCallback(utils.ScopeMembership, utils.ActionKick, member))
	assert.NotContains(t, buttons, utils.EncodeCallback(utils.ScopeMembership, utils.ActionKeep, member))

	tr := h.trace(t, member)
	assert.NotZero(t, tr.UserMessageID)
	assert.Len(t, tr.AdminMessages, 2)
}

func TestLongExpiredPendingMemberOffersKickOrKeep(t *testing.T) {
	h := newHarness(t)
	h.seed(t, &types.Membership{State: types.StatePendingDecision, DecisionReason: types.ReasonExpired, Plan: types.PlanMonthly, DueDate: base.Add(-5 * day)})

	_, err := h.engine.RunPaymentCheck(h.ctx)
	require.NoError(t, err)

	prompt, ok := h.fake.Last(adminB)
	require.True(t, ok)
	buttons := prompt.Buttons()
	assert.Len(t, buttons, 2)
	assert.Contains(t, buttons, utils.EncodeCallback(utils.ScopeMembership, utils.ActionKick, member))
	assert.Contains(t, buttons, utils.EncodeCallback(utils.ScopeMembership, utils.ActionKeep, member))
	assert.True(t, h.get(t, member).AdminActionPending())
}

func TestExpiryTickIsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.seed(t, &types.Membership{State: types.StateActive, DueDate: base.Add(-day)})

	_, err := h.engine.RunPaymentCheck(h.ctx)
	require.NoError(t, err)
	first := h.trace(t, member)

	_, err = h.engine.RunPaymentCheck(h.ctx)
	require.NoError(t, err)

	all, err := h.store.ListTraces(h.ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.NotEqual(t, first.UserMessageID, all[0].UserMessageID)
	assert.True(t, h.fake.WasDeleted(member, first.UserMessageID))
	for adminID, msgID := range first.AdminMessages {
		assert.True(t, h.fake.WasDeleted(adminID, msgID))
	}
}

func TestUnreachableMemberStillPromptsAdmins(t *testing.T) {
	h := newHarness(t)
	h.fake.Block(member)
	h.seed(t, &types.Membership{State: types.StateActive, DueDate: base.Add(-day)})

	_, err := h.engine.RunPaymentCheck(h.ctx)
	require.NoError(t, err)

	assert.True(t, h.get(t, member).AdminActionPending())
	tr := h.trace(t, member)
	assert.Zero(t, tr.UserMessageID)
	assert.Len(t, tr.AdminMessages, 2)
	prompt, _ := h.fake.Last(adminA)
	assert.Contains(t, prompt.Text, "could not be reached")
}

func TestGraceExpiryPromptsAdminsOnly(t *testing.T) {
	h := newHarness(t)
	end := base.Add(-time.Minute)
	h.seed(t, &types.Membership{State: types.StateGrace, GraceEndDate: &end, GraceUsed: true, DueDate: base.Add(-3 * day)})

	sum, err := h.engine.CheckGraceExpiry(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.GraceEnded)

	m := h.get(t, member)
	assert.False(t, m.GracePeriod())
	assert.Nil(t, m.GraceEndDate)
	assert.False(t, m.AdminActionPending())
	assert.Equal(t, types.StateGraceEnded, m.State)

	tr := h.trace(t, member)
	assert.Zero(t, tr.UserMessageID)
	assert.Len(t, tr.AdminMessages, 2)
	assert.Empty(t, h.fake.To(member))
}

func TestGraceEndedMemberExpiresWithoutGraceOffer(t *testing.T) {
	h := newHarness(t)
	end := base.Add(-time.Minute)
	h.seed(t, &types.Membership{State: types.StateGrace, GraceEndDate: &end, GraceUsed: true, DueDate: base.Add(-2 * day)})

	sum, err := h.engine.RunPaymentCheck(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.GraceEnded)
	assert.Zero(t, sum.Expired)

	h.now = h.now.Add(day)
	sum, err = h.engine.RunPaymentCheck(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Expired)

	m := h.get(t, member)
	assert.True(t, m.AdminActionPending())
	assert.Equal(t, types.ReasonGraceEnded, m.DecisionReason)
	prompt, _ := h.fake.Last(adminA)
	assert.False(t, testutil.HasButtonPrefix(prompt.Markup, "mb:grace:"))
}

func TestGrantGraceThenImmediateCheckIsNoop(t *testing.T) {
	h := newHarness(t)
	h.seed(t, &types.Membership{State: types.StatePendingDecision, DecisionReason: types.ReasonExpired, DueDate: base.Add(-day)})

	m, err := h.engine.GrantGrace(h.ctx, adminA, member)
	require.NoError(t, err)
	assert.True(t, m.GracePeriod())
	assert.Equal(t, adminA, m.LastDecisionBy)

	h.fake.Reset()
	sum, err := h.engine.CheckGraceExpiry(h.ctx)
	require.NoError(t, err)
	assert.Zero(t, sum.GraceEnded)
	sum, err = h.engine.RunPaymentCheck(h.ctx)
	require.NoError(t, err)
	assert.Zero(t, sum.Expired)
	assert.Empty(t, h.fake.Sent)
	assert.True(t, h.get(t, member).GracePeriod())
}

func TestCancelledMembersAreNeverNotified(t *testing.T) {
	h := newHarness(t)
	h.seed(t, &types.Membership{State: types.StateActive, DueDate: base.Add(2 * day)})

	_, err := h.engine.CancelMembership(h.ctx, member)
	require.NoError(t, err)

	var lapsed int
	for i := 0; i < 5; i++ {
		sum, err := h.engine.RunPaymentCheck(h.ctx)
		require.NoError(t, err)
		lapsed += sum.Lapsed
		if i < 2 {
			assert.True(t, h.get(t, member).HasPaid(), "day %d", i)
		}
		h.now = h.now.Add(day)
	}
	assert.Empty(t, h.fake.Sent)
	assert.Equal(t, 1, lapsed)
	m := h.get(t, member)
	assert.Equal(t, types.StateLapsed, m.State)
	assert.True(t, m.Cancelled())
	assert.False(t, m.HasPaid())
	assert.True(t, m.ReminderSent)
}

func TestCancelledMemberLapsesLongAfterDue(t *testing.T) {
	h := newHarness(t)
	h.seed(t, &types.Membership{State: types.StateActive, DueDate: base.Add(day)})
	_, err := h.engine.CancelMembership(h.ctx, member)
	require.NoError(t, err)

	h.now = base.Add(60 * day)
	sum, err := h.engine.RunPaymentCheck(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Lapsed)
	assert.False(t, h.get(t, member).HasPaid())

	sum, err = h.engine.RunPaymentCheck(h.ctx)
	require.NoError(t, err)
	assert.Zero(t, sum.Lapsed)
	assert.Empty(t, h.fake.Sent)
}

func TestReminderIsSentOncePerDay(t *testing.T) {
	h := newHarness(t)
	h.seed(t, &types.Membership{State: types.StateActive, Plan: types.PlanMonthly, DueDate: base.Add(3 * day)})

	first, err := h.engine.RunPaymentCheck(h.ctx)
	require.NoError(t, err)
	h.now = base.Add(time.Hour)
	second, err := h.engine.RunPaymentCheck(h.ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, first.Reminded)
	assert.Zero(t, second.Reminded)
	require.Len(t, h.fake.To(member), 1)
	assert.Len(t, h.fake.To(adminA), 1)

	h.now = base.Add(15 * time.Hour)
	_, reflagged, err := h.engine.MidnightCleanup(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, reflagged)

	h.now = base.Add(day)
	next, err := h.engine.RunPaymentCheck(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, next.Reminded)
	msgs := h.fake.To(member)
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[1].Text, "due in 2 day")
}

func TestKickWithoutFlagsRetainsRecord(t *testing.T) {
	h := newHarness(t)
	h.seed(t, &types.Membership{State: types.StateActive, DueDate: base.Add(10 * day)})

	m, err := h.engine.Kick(h.ctx, adminA, member)
	require.NoError(t, err)
	assert.Equal(t, types.StateKicked, m.State)

	stored := h.get(t, member)
	assert.Equal(t, types.StateKicked, stored.State)
	assert.False(t, stored.AdminActionPending())
	assert.False(t, stored.HasPaid())
	assert.Equal(t, []int64{member}, h.fake.Banned)
	assert.Equal(t, []int64{member}, h.fake.Unbanned)

	_, err = h.engine.Kick(h.ctx, adminA, member)
	assert.True(t, errors.Is(err, types.ErrWrongState))
}

func TestKickFailureIsReportedNotReverted(t *testing.T) {
	h := newHarness(t)
	h.fake.FailBan = true
	h.seed(t, &types.Membership{State: types.StatePendingDecision, DecisionReason: types.ReasonExpired, DueDate: base.Add(-5 * day)})

	_, err := h.engine.Kick(h.ctx, adminB, member)
	require.NoError(t, err)
	assert.Equal(t, types.StateKicked, h.get(t, member).State)

	found := false
	for _, msg := range h.fake.To(adminA) {
		if strings.Contains(msg.Text, "remove them manually") {
			found = true
		}
	}
	assert.True(t, found)
}

func TestUnauthorizedDecisionChangesNothing(t *testing.T) {
	h := newHarness(t)
	h.seed(t, &types.Membership{State: types.StatePendingDecision, DecisionReason: types.ReasonExpired, DueDate: base.Add(-day)})
	before := h.get(t, member)

	_, err := h.engine.Kick(h.ctx, outsider, member)
	assert.True(t, errors.Is(err, types.ErrUnauthorized))
	_, err = h.engine.GrantGrace(h.ctx, outsider, member)
	assert.True(t, errors.Is(err, types.ErrUnauthorized))
	_, err = h.engine.Keep(h.ctx, outsider, member)
	assert.True(t, errors.Is(err, types.ErrUnauthorized))

	assert.Equal(t, before, h.get(t, member))
	assert.Empty(t, h.fake.Sent)
	assert.Empty(t, h.fake.Banned)
}

func TestKeepSuppressesEvaluation(t *testing.T) {
	h := newHarness(t)
	h.seed(t, &types.Membership{State: types.StatePendingDecision, DecisionReason: types.ReasonExpired, DueDate: base.Add(-5 * day)})

	_, err := h.engine.Keep(h.ctx, adminA, member)
	require.NoError(t, err)
	h.fake.Reset()

	_, err = h.engine.RunPaymentCheck(h.ctx)
	require.NoError(t, err)
	assert.Empty(t, h.fake.Sent)
	assert.False(t, h.get(t, member).HasPaid())
}

func TestApproveFirstPaymentCreatesMembership(t *testing.T) {
	h := newHarness(t)
	h.waiting(t, types.StatusWaitingApproval, types.PlanYearly)

	m, err := h.engine.ApprovePayment(h.ctx, adminA, member)
	require.NoError(t, err)
	assert.Equal(t, types.StateActive, m.State)
	assert.Equal(t, base.AddDate(0, 0, 365), m.DueDate)
	assert.Equal(t, "UPI", m.PaymentMode)

	_, err = h.store.GetPending(h.ctx, member)
	assert.True(t, errors.Is(err, types.ErrNotFound))
	assert.Len(t, h.fake.Cleared, 2)
	require.Len(t, h.fake.Invites, 1)

	msg, ok := h.fake.Last(member)
	require.True(t, ok)
	assert.Contains(t, msg.Text, h.fake.Invites[0])

	_, err = h.engine.ApprovePayment(h.ctx, adminA, member)
	assert.True(t, errors.Is(err, types.ErrNoPendingRequest))
}

func TestApproveRenewalExtendsFromCurrentDue(t *testing.T) {
	h := newHarness(t)
	h.seed(t, &types.Membership{State: types.StateCancelled, Plan: types.PlanMonthly, DueDate: base.Add(5 * day)})
	h.waiting(t, types.StatusWaitingApproval, types.PlanMonthly)

	m, err := h.engine.ApprovePayment(h.ctx, adminB, member)
	require.NoError(t, err)
	assert.Equal(t, base.Add(5*day).AddDate(0, 0, 30), m.DueDate)
	assert.False(t, m.Cancelled())
	assert.Empty(t, h.fake.Invites)
	assert.Equal(t, adminB, h.get(t, member).LastDecisionBy)
}

func TestApproveKickedMemberUnbansAndInvites(t *testing.T) {
	h := newHarness(t)
	h.seed(t, &types.Membership{State: types.StateKicked, Plan: types.PlanMonthly, DueDate: base.Add(-20 * day)})
	h.waiting(t, types.StatusWaitingApproval, types.PlanMonthly)

	m, err := h.engine.ApprovePayment(h.ctx, adminA, member)
	require.NoError(t, err)
	assert.Equal(t, types.StateActive, m.State)
	assert.Equal(t, base.AddDate(0, 0, 30), m.DueDate)
	assert.Equal(t, []int64{member}, h.fake.Unbanned)
	assert.Len(t, h.fake.Invites, 1)
}

func TestApproveReportsMissingInviteLink(t *testing.T) {
	h := newHarness(t)
	h.fake.FailLinks = true
	h.waiting(t, types.StatusWaitingApproval, types.PlanMonthly)

	_, err := h.engine.ApprovePayment(h.ctx, adminA, member)
	require.NoError(t, err)

	found := false
	for _, msg := range h.fake.To(adminB) {
		if strings.Contains(msg.Text, "invite link") {
			found = true
		}
	}
	assert.True(t, found)
}

func TestRejectPayment(t *testing.T) {
	h := newHarness(t)
	h.waiting(t, types.StatusWaitingApproval, types.PlanMonthly)

	require.NoError(t, h.engine.RejectPayment(h.ctx, adminA, member))
	_, err := h.store.GetPending(h.ctx, member)
	assert.True(t, errors.Is(err, types.ErrNotFound))
	_, err = h.store.GetMembership(h.ctx, member)
	assert.True(t, errors.Is(err, types.ErrNotFound))

	msg, _ := h.fake.Last(member)
	assert.Contains(t, msg.Text, "could not be verified")
}

func TestOldMemberDecisions(t *testing.T) {
	h := newHarness(t)
	h.waiting(t, types.StatusOldMemberRequest, "")

	_, err := h.engine.ApprovePayment(h.ctx, adminA, member)
	assert.True(t, errors.Is(err, types.ErrWrongState))

	require.NoError(t, h.engine.VerifyOldMember(h.ctx, adminA, member))
	ok, err := h.store.IsConfirmedOldMember(h.ctx, member)
	require.NoError(t, err)
	assert.True(t, ok)
	_, err = h.store.GetPending(h.ctx, member)
	assert.True(t, errors.Is(err, types.ErrNotFound))

	h.waiting(t, types.StatusOldMemberRequest, "")
	require.NoError(t, h.engine.DenyOldMember(h.ctx, adminB, member))
	err = h.engine.DenyOldMember(h.ctx, adminB, member)
	assert.True(t, errors.Is(err, types.ErrNoPendingRequest))
}

func TestMidnightCleanupClearsTracesAndReflags(t *testing.T) {
	h := newHarness(t)
	h.seed(t, &types.Membership{UserID: member, State: types.StateActive, DueDate: base.Add(day)})
	h.seed(t, &types.Membership{UserID: member + 1, State: types.StateActive, DueDate: base.Add(-day)})

	_, err := h.engine.RunPaymentCheck(h.ctx)
	require.NoError(t, err)
	reminded := h.trace(t, member)
	assert.True(t, h.get(t, member).ReminderSent)

	h.now = base.Add(2 * day)
	traces, reflagged, err := h.engine.MidnightCleanup(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, traces)
	assert.Equal(t, 1, reflagged)
	assert.False(t, h.get(t, member).ReminderSent)
	assert.True(t, h.fake.WasDeleted(member, reminded.UserMessageID))

	all, err := h.store.ListTraces(h.ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

type flakyStore struct {
	*store.MemoryStore
	failFor int64
}

func (f *flakyStore) UpsertMembership(ctx context.Context, m *types.Membership) error {
	if m.UserID == f.failFor {
		return errors.New("connection reset")
	}
	return f.MemoryStore.UpsertMembership(ctx, m)
}

func TestOneFailingRecordDoesNotAbortTheBatch(t *testing.T) {
	backing := store.NewMemoryStore()
	flaky := &flakyStore{MemoryStore: backing, failFor: member}
	h := newHarnessWith(t, flaky)

	for _, id := range []int64{member, member + 1} {
		require.NoError(t, backing.UpsertMembership(h.ctx, &types.Membership{UserID: id, State: types.StateActive, DueDate: base.Add(-day)}))
	}

	sum, err := h.engine.RunPaymentCheck(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, 1, sum.Expired)

	m, err := backing.GetMembership(h.ctx, member+1)
	require.NoError(t, err)
	assert.True(t, m.AdminActionPending())
}
