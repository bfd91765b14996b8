package types

import "time"

// Membership is one member who has completed at least one payment cycle.
// The lifecycle lives in State; the boolean accessors below are the
// legacy flag view used by the dashboard and stored documents.
type Membership struct {
	UserID           int64
	Username         string
	Language         string
	Plan             Plan
	PaymentMode      string
	DueDate          time.Time
	State            MembershipState
	GraceEndDate     *time.Time
	DecisionReason   DecisionReason
	GraceUsed        bool
	ReminderSent     bool
	CancellationDate *time.Time
	LastDecisionBy   int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
	Version          int64
}

// HasPaid is true while the membership grants access, grace included.
func (m *Membership) HasPaid() bool {
	switch m.State {
	case StateActive, StateCancelled, StateGrace, StateGraceEnded:
		return true
	}
	return false
}

// Cancelled stays true after a cancelled membership runs past its due date.
func (m *Membership) Cancelled() bool { return m.State == StateCancelled || m.State == StateLapsed }

func (m *Membership) GracePeriod() bool { return m.State == StateGrace }

func (m *Membership) AdminActionPending() bool { return m.State == StatePendingDecision }

func (m *Membership) Clone() *Membership {
	if m == nil {
		return nil
	}
	c := *m
	if m.GraceEndDate != nil {
		t := *m.GraceEndDate
		c.GraceEndDate = &t
	}
	if m.CancellationDate != nil {
		t := *m.CancellationDate
		c.CancellationDate = &t
	}
	return &c
}

// DaysUntilDue is floor((due - now) / 24h); negative once overdue.
func (m *Membership) DaysUntilDue(now time.Time) int {
	d := m.DueDate.Sub(now)
	days := int(d / (24 * time.Hour))
	if d < 0 && d%(24*time.Hour) != 0 {
		days--
	}
	return days
}

// DaysSinceDue counts whole days elapsed since the due date.
func (m *Membership) DaysSinceDue(now time.Time) int {
	if !now.After(m.DueDate) {
		return 0
	}
	return int(now.Sub(m.DueDate) / (24 * time.Hour))
}

type ConfirmedOldMember struct {
	UserID      int64
	ConfirmedBy int64
	ConfirmedAt time.Time
}
