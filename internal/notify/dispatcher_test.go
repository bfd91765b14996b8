package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/BatmanBruc/club-membership-bot/internal/testutil"
	"github.com/BatmanBruc/club-membership-bot/store"
	"github.com/BatmanBruc/club-membership-bot/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	member = int64(500)
	adminA = int64(1)
	adminB = int64(2)
)

func newDispatcher() (*Dispatcher, *testutil.FakeMessenger, *store.MemoryStore) {
	fake := testutil.NewFakeMessenger()
	mem := store.NewMemoryStore()
	return NewDispatcher(fake, mem, []int64{adminA, adminB}), fake, mem
}

func adminText(s string) func(bool) string {
	return func(bool) string { return s }
}

func TestReplaceRecordsTrace(t *testing.T) {
	ctx := context.Background()
	d, fake, mem := newDispatcher()

	trace := d.Replace(ctx, Notice{UserID: member, UserText: "due soon", AdminText: adminText("fyi")})

	assert.NotZero(t, trace.UserMessageID)
	assert.Len(t, trace.AdminMessages, 2)
	stored, err := mem.GetTrace(ctx, member)
	require.NoError(t, err)
	assert.Equal(t, trace.UserMessageID, stored.UserMessageID)
	assert.Len(t, fake.Sent, 3)
}

func TestReplaceDeletesPreviousSet(t *testing.T) {
	ctx := context.Background()
	d, fake, mem := newDispatcher()

	first := d.Replace(ctx, Notice{UserID: member, UserText: "one", AdminText: adminText("one")})
	second := d.Replace(ctx, Notice{UserID: member, UserText: "two", AdminText: adminText("two")})

	assert.True(t, fake.WasDeleted(member, first.UserMessageID))
	for adminID, msgID := range first.AdminMessages {
		assert.True(t, fake.WasDeleted(adminID, msgID))
	}

	all, err := mem.ListTraces(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, second.UserMessageID, all[0].UserMessageID)
}

func TestReplaceFlagsUndeliveredMember(t *testing.T) {
	ctx := context.Background()
	d, fake, _ := newDispatcher()
	fake.Block(member)

	var sawDelivered *bool
	trace := d.Replace(ctx, Notice{
		UserID:   member,
		UserText: "expired",
		AdminText: func(delivered bool) string {
			sawDelivered = &delivered
			return "expired"
		},
	})

	require.NotNil(t, sawDelivered)
	assert.False(t, *sawDelivered)
	assert.Zero(t, trace.UserMessageID)
	assert.Len(t, trace.AdminMessages, 2)
}

func TestReplaceAdminOnly(t *testing.T) {
	ctx := context.Background()
	d, fake, _ := newDispatcher()

	trace := d.Replace(ctx, Notice{UserID: member, AdminText: adminText("grace over")})

	assert.Zero(t, trace.UserMessageID)
	assert.Empty(t, fake.To(member))
	assert.Len(t, trace.AdminMessages, 2)
}

func TestClearTraceToleratesAlreadyDeleted(t *testing.T) {
	ctx := context.Background()
	d, fake, mem := newDispatcher()

	trace := d.Replace(ctx, Notice{UserID: member, UserText: "x", AdminText: adminText("x")})
	require.NoError(t, fake.DeleteMessage(ctx, member, trace.UserMessageID))

	d.ClearTrace(ctx, member)

	_, err := mem.GetTrace(ctx, member)
	assert.True(t, errors.Is(err, types.ErrNotFound))
}

func TestClearAllTraces(t *testing.T) {
	ctx := context.Background()
	d, fake, mem := newDispatcher()

	a := d.Replace(ctx, Notice{UserID: 10, UserText: "a", AdminText: adminText("a")})
	b := d.Replace(ctx, Notice{UserID: 11, AdminText: adminText("b")})

	n, err := d.ClearAllTraces(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, fake.WasDeleted(10, a.UserMessageID))
	for adminID, msgID := range b.AdminMessages {
		assert.True(t, fake.WasDeleted(adminID, msgID))
	}
	all, err := mem.ListTraces(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

// racingTraces stores a new trace right after every listing, the way a
// payment check running alongside the midnight cleanup would.
type racingTraces struct {
	*store.MemoryStore
	late *types.ReminderTrace
}

func (r *racingTraces) ListTraces(ctx context.Context) ([]*types.ReminderTrace, error) {
	all, err := r.MemoryStore.ListTraces(ctx)
	if err == nil && r.late != nil {
		err = r.MemoryStore.PutTrace(ctx, r.late)
		r.late = nil
	}
	return all, err
}

func TestClearAllTracesKeepsTracesWrittenMeanwhile(t *testing.T) {
	ctx := context.Background()
	fake := testutil.NewFakeMessenger()
	traces := &racingTraces{MemoryStore: store.NewMemoryStore()}
	d := NewDispatcher(fake, traces, []int64{adminA, adminB})

	d.Replace(ctx, Notice{UserID: 10, UserText: "a", AdminText: adminText("a")})
	traces.late = &types.ReminderTrace{UserID: 11, UserMessageID: 900}

	n, err := d.ClearAllTraces(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	late, err := traces.GetTrace(ctx, 11)
	require.NoError(t, err)
	assert.Equal(t, 900, late.UserMessageID)
	assert.False(t, fake.WasDeleted(11, 900))
	_, err = traces.GetTrace(ctx, 10)
	assert.True(t, errors.Is(err, types.ErrNotFound))
}

// snapshotTraces records what was stored on every PutTrace and how many
// messages had been sent at that point.
type snapshotTraces struct {
	*store.MemoryStore
	fake  *testutil.FakeMessenger
	puts  []types.ReminderTrace
	sends []int
}

func (s *snapshotTraces) PutTrace(ctx context.Context, t *types.ReminderTrace) error {
	c := *t
	c.AdminMessages = make(map[int64]int, len(t.AdminMessages))
	for k, v := range t.AdminMessages {
		c.AdminMessages[k] = v
	}
	s.puts = append(s.puts, c)
	s.sends = append(s.sends, len(s.fake.Sent))
	return s.MemoryStore.PutTrace(ctx, t)
}

func TestReplaceStoresTraceAfterEveryDelivery(t *testing.T) {
	ctx := context.Background()
	fake := testutil.NewFakeMessenger()
	traces := &snapshotTraces{MemoryStore: store.NewMemoryStore(), fake: fake}
	d := NewDispatcher(fake, traces, []int64{adminA, adminB})

	trace := d.Replace(ctx, Notice{UserID: member, UserText: "due soon", AdminText: adminText("fyi")})

	require.Len(t, traces.puts, 3)
	assert.Equal(t, []int{1, 2, 3}, traces.sends)
	assert.Equal(t, trace.UserMessageID, traces.puts[0].UserMessageID)
	assert.Empty(t, traces.puts[0].AdminMessages)
	assert.Len(t, traces.puts[1].AdminMessages, 1)
	assert.Equal(t, trace.AdminMessages, traces.puts[2].AdminMessages)
}

func TestReplaceSkipsStoringWhenNothingDelivered(t *testing.T) {
	ctx := context.Background()
	fake := testutil.NewFakeMessenger()
	traces := &snapshotTraces{MemoryStore: store.NewMemoryStore(), fake: fake}
	d := NewDispatcher(fake, traces, []int64{adminA})
	fake.Block(member)
	fake.Block(adminA)

	trace := d.Replace(ctx, Notice{UserID: member, UserText: "x", AdminText: adminText("x")})

	assert.True(t, trace.Empty())
	assert.Empty(t, traces.puts)
}

func TestIsIgnorable(t *testing.T) {
	assert.True(t, IsIgnorable(errors.New("Bad Request: message to delete not found")))
	assert.True(t, IsIgnorable(errors.New("Forbidden: bot was blocked by the user")))
	assert.False(t, IsIgnorable(errors.New("context deadline exceeded")))
	assert.False(t, IsIgnorable(nil))
}
