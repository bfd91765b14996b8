package types

import (
	"context"
	"time"
)

// PendingRequest is the in-flight conversation that precedes a committed
// Membership change. At most one exists per user.
type PendingRequest struct {
	ID            string
	UserID        int64
	Username      string
	Language      string
	Status        PendingStatus
	Plan          Plan
	Method        string
	ProofFileID   string
	RequestTime   *time.Time
	ReminderSent  bool
	AdminMessages map[int64]int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ReminderTrace holds the message ids of the last reminder or expiry
// notification sent about one member, so the next one can replace it.
type ReminderTrace struct {
	UserID        int64
	UserMessageID int
	AdminMessages map[int64]int
	CreatedAt     time.Time
}

func (t *ReminderTrace) Empty() bool {
	return t == nil || (t.UserMessageID == 0 && len(t.AdminMessages) == 0)
}

type LeaderboardEntry struct {
	UserID   int64
	Username string
	Score    int64
}

type MembershipStore interface {
	GetMembership(ctx context.Context, userID int64) (*Membership, error)
	ListMemberships(ctx context.Context) ([]*Membership, error)
	// UpsertMembership inserts or replaces the record. A non-zero Version must
	// match the stored one; on success Version is incremented in place.
	UpsertMembership(ctx context.Context, m *Membership) error
}

type PendingStore interface {
	GetPending(ctx context.Context, userID int64) (*PendingRequest, error)
	ListPending(ctx context.Context) ([]*PendingRequest, error)
	SavePending(ctx context.Context, p *PendingRequest) error
	DeletePending(ctx context.Context, userID int64) error
}

type TraceStore interface {
	GetTrace(ctx context.Context, userID int64) (*ReminderTrace, error)
	ListTraces(ctx context.Context) ([]*ReminderTrace, error)
	PutTrace(ctx context.Context, t *ReminderTrace) error
	DeleteTrace(ctx context.Context, userID int64) error
}

type SettingsStore interface {
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
	AllSettings(ctx context.Context) (map[string]string, error)
}

type OldMemberStore interface {
	IsConfirmedOldMember(ctx context.Context, userID int64) (bool, error)
	ConfirmOldMember(ctx context.Context, m ConfirmedOldMember) error
	ListConfirmedOldMembers(ctx context.Context) ([]ConfirmedOldMember, error)
}

type LeaderboardStore interface {
	AddScore(ctx context.Context, board string, userID int64, username string, delta int64) error
	Top(ctx context.Context, board string, n int) ([]LeaderboardEntry, error)
	DropBoard(ctx context.Context, board string) error
}
