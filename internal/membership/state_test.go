package membership

import (
	"errors"
	"testing"
	"time"

	"github.com/BatmanBruc/club-membership-bot/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = 24 * time.Hour

func TestEvaluate(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	cases := []struct {
		name       string
		m          types.Membership
		action     Action
		daysLeft   int
		offerGrace bool
	}{
		{"far from due", types.Membership{State: types.StateActive, DueDate: now.Add(10 * day)}, ActionNone, 0, false},
		{"due in three days", types.Membership{State: types.StateActive, DueDate: now.Add(3 * day)}, ActionRemind, 3, false},
		{"due in two and a half days", types.Membership{State: types.StateActive, DueDate: now.Add(60 * time.Hour)}, ActionRemind, 2, false},
		{"due later today", types.Membership{State: types.StateActive, DueDate: now.Add(time.Hour)}, ActionRemind, 0, false},
		{"expired yesterday", types.Membership{State: types.StateActive, DueDate: now.Add(-day)}, ActionExpire, 0, true},
		{"expired five days ago", types.Membership{State: types.StatePendingDecision, DueDate: now.Add(-5 * day)}, ActionExpire, 0, false},
		{"pending after grace", types.Membership{State: types.StatePendingDecision, DueDate: now.Add(-day), DecisionReason: types.ReasonGraceEnded}, ActionExpire, 0, false},
		{"grace used", types.Membership{State: types.StatePendingDecision, DueDate: now.Add(-day), GraceUsed: true}, ActionExpire, 0, false},
		{"grace ended", types.Membership{State: types.StateGraceEnded, DueDate: now.Add(-3 * day)}, ActionExpire, 0, false},
		{"grace running", types.Membership{State: types.StateGrace, DueDate: now.Add(-day), GraceEndDate: &future}, ActionNone, 0, false},
		{"grace over", types.Membership{State: types.StateGrace, DueDate: now.Add(-day), GraceEndDate: &past}, ActionGraceEnded, 0, false},
		{"reminded today", types.Membership{State: types.StateActive, DueDate: now.Add(2 * day), ReminderSent: true}, ActionNone, 0, false},
		{"reminded and now overdue", types.Membership{State: types.StateActive, DueDate: now.Add(-day), ReminderSent: true}, ActionExpire, 0, true},
		{"cancelled and overdue", types.Membership{State: types.StateCancelled, DueDate: now.Add(-day)}, ActionLapse, 0, false},
		{"cancelled and due soon", types.Membership{State: types.StateCancelled, DueDate: now.Add(day)}, ActionNone, 0, false},
		{"kicked", types.Membership{State: types.StateKicked, DueDate: now.Add(-day)}, ActionNone, 0, false},
		{"kept", types.Membership{State: types.StateKept, DueDate: now.Add(-day)}, ActionNone, 0, false},
		{"lapsed", types.Membership{State: types.StateLapsed, DueDate: now.Add(-day)}, ActionNone, 0, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ev := Evaluate(&tc.m, now, 3, 3)
			assert.Equal(t, tc.action, ev.Action, ev.Action.String())
			if tc.action == ActionRemind {
				assert.Equal(t, tc.daysLeft, ev.DaysLeft)
			}
			assert.Equal(t, tc.offerGrace, ev.OfferGrace)
		})
	}
}

func TestGraceIsNotOfferedAfterOfferWindow(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	m := &types.Membership{State: types.StatePendingDecision, DueDate: now.Add(-3*day - time.Hour)}
	assert.True(t, Evaluate(m, now, 3, 3).OfferGrace)

	m.DueDate = now.Add(-4*day - time.Hour)
	assert.False(t, Evaluate(m, now, 3, 3).OfferGrace)
}

func TestExpireKeepsReasonAndClearsReminder(t *testing.T) {
	now := time.Now()
	m := &types.Membership{State: types.StateGraceEnded, ReminderSent: true}
	require.NoError(t, Expire(m, now))
	assert.Equal(t, types.StatePendingDecision, m.State)
	assert.Equal(t, types.ReasonGraceEnded, m.DecisionReason)
	assert.False(t, m.ReminderSent)
	assert.False(t, m.HasPaid())
	assert.True(t, m.AdminActionPending())

	require.NoError(t, Expire(m, now))
	assert.Equal(t, types.ReasonGraceEnded, m.DecisionReason)

	kicked := &types.Membership{State: types.StateKicked}
	assert.True(t, errors.Is(Expire(kicked, now), types.ErrWrongState))
}

func TestGrantGraceThenEnd(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	m := &types.Membership{State: types.StatePendingDecision, DecisionReason: types.ReasonExpired}

	require.NoError(t, GrantGrace(m, now, 48*time.Hour))
	assert.True(t, m.GracePeriod())
	assert.True(t, m.HasPaid())
	assert.False(t, m.AdminActionPending())
	require.NotNil(t, m.GraceEndDate)
	assert.Equal(t, now.Add(48*time.Hour), *m.GraceEndDate)

	err := EndGrace(m, now.Add(time.Hour))
	assert.True(t, errors.Is(err, types.ErrWrongState))
	assert.True(t, m.GracePeriod())

	require.NoError(t, EndGrace(m, now.Add(48*time.Hour)))
	assert.Equal(t, types.StateGraceEnded, m.State)
	assert.Nil(t, m.GraceEndDate)
	assert.True(t, m.GraceUsed)

	assert.True(t, errors.Is(GrantGrace(&types.Membership{State: types.StatePendingDecision, GraceUsed: true}, now, time.Hour), types.ErrWrongState))
	assert.True(t, errors.Is(GrantGrace(&types.Membership{State: types.StateActive}, now, time.Hour), types.ErrWrongState))
}

func TestKickAndKeepTransitions(t *testing.T) {
	now := time.Now()

	active := &types.Membership{State: types.StateActive}
	require.NoError(t, Kick(active, now))
	assert.Equal(t, types.StateKicked, active.State)
	assert.False(t, active.HasPaid())
	assert.True(t, errors.Is(Kick(active, now), types.ErrWrongState))

	pending := &types.Membership{State: types.StatePendingDecision, DecisionReason: types.ReasonExpired}
	require.NoError(t, Keep(pending, now))
	assert.Equal(t, types.StateKept, pending.State)
	assert.False(t, pending.HasPaid())
	assert.False(t, pending.AdminActionPending())
	assert.Empty(t, pending.DecisionReason)

	assert.True(t, errors.Is(Keep(&types.Membership{State: types.StateActive}, now), types.ErrWrongState))
}

func TestRenewNeverMovesDueBackwards(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	early := &types.Membership{State: types.StateActive, DueDate: now.Add(5 * day)}
	Renew(early, types.PlanMonthly, "UPI", now)
	assert.Equal(t, now.Add(5*day).AddDate(0, 0, 30), early.DueDate)

	late := &types.Membership{State: types.StatePendingDecision, DueDate: now.Add(-10 * day), DecisionReason: types.ReasonExpired, GraceUsed: true}
	Renew(late, types.PlanYearly, "", now)
	assert.Equal(t, now.AddDate(0, 0, 365), late.DueDate)
	assert.Equal(t, types.StateActive, late.State)
	assert.False(t, late.GraceUsed)
	assert.Empty(t, late.DecisionReason)
}

func TestCancelIsClearedByRenewal(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	m := &types.Membership{State: types.StateActive, DueDate: now.Add(day)}

	require.NoError(t, Cancel(m, now))
	assert.True(t, m.Cancelled())
	assert.True(t, m.ReminderSent)
	assert.True(t, m.HasPaid())
	require.NotNil(t, m.CancellationDate)
	assert.True(t, errors.Is(Cancel(m, now), types.ErrWrongState))

	Renew(m, types.PlanMonthly, "", now)
	assert.False(t, m.Cancelled())
	assert.Nil(t, m.CancellationDate)
	assert.False(t, m.ReminderSent)
}

func TestLapseOnlyAfterDueDate(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	m := &types.Membership{State: types.StateActive, DueDate: now.Add(day)}
	require.NoError(t, Cancel(m, now))

	assert.True(t, errors.Is(Lapse(m, now), types.ErrWrongState))
	assert.True(t, m.HasPaid())

	later := now.Add(2 * day)
	require.NoError(t, Lapse(m, later))
	assert.Equal(t, types.StateLapsed, m.State)
	assert.False(t, m.HasPaid())
	assert.True(t, m.Cancelled())
	require.NotNil(t, m.CancellationDate)

	active := &types.Membership{State: types.StateActive, DueDate: now.Add(-day)}
	assert.True(t, errors.Is(Lapse(active, now), types.ErrWrongState))
}
