// Package membership drives the membership lifecycle: the periodic
// reminder and expiry evaluation and the admin decisions that resolve it.
package membership

import (
	"fmt"
	"time"

	"github.com/BatmanBruc/club-membership-bot/types"
)

type Action int

const (
	ActionNone Action = iota
	ActionRemind
	ActionExpire
	ActionGraceEnded
	ActionLapse
)

func (a Action) String() string {
	switch a {
	case ActionRemind:
		return "remind"
	case ActionExpire:
		return "expire"
	case ActionGraceEnded:
		return "grace_ended"
	case ActionLapse:
		return "lapse"
	default:
		return "none"
	}
}

// Evaluation is what one tick should do with one membership.
type Evaluation struct {
	Action     Action
	DaysLeft   int
	DaysSince  int
	OfferGrace bool
}

// Evaluate decides the tick action for m. Grace expiry wins over everything
// else. A cancelled record only lapses once its due date passes; kicked,
// kept and lapsed records are never evaluated. An active member already
// reminded since the last midnight cleanup gets no second reminder.
func Evaluate(m *types.Membership, now time.Time, windowDays, graceOfferDays int) Evaluation {
	switch m.State {
	case types.StateGrace:
		if m.GraceEndDate != nil && !now.Before(*m.GraceEndDate) {
			return Evaluation{Action: ActionGraceEnded, DaysSince: m.DaysSinceDue(now)}
		}
		return Evaluation{}
	case types.StateCancelled:
		if !m.DueDate.IsZero() && m.DueDate.Before(now) {
			return Evaluation{Action: ActionLapse, DaysSince: m.DaysSinceDue(now)}
		}
		return Evaluation{}
	case types.StateActive, types.StateGraceEnded, types.StatePendingDecision:
	default:
		return Evaluation{}
	}
	if m.DueDate.IsZero() {
		return Evaluation{}
	}

	if m.DueDate.Before(now) {
		since := m.DaysSinceDue(now)
		return Evaluation{
			Action:     ActionExpire,
			DaysSince:  since,
			OfferGrace: canOfferGrace(m, since, graceOfferDays),
		}
	}

	if m.State != types.StateActive || m.ReminderSent {
		return Evaluation{}
	}
	left := m.DaysUntilDue(now)
	if left >= 0 && left <= windowDays {
		return Evaluation{Action: ActionRemind, DaysLeft: left}
	}
	return Evaluation{}
}

// Grace is offered once per cycle and only shortly after expiry.
func canOfferGrace(m *types.Membership, daysSince, graceOfferDays int) bool {
	if m.GraceUsed || m.State == types.StateGraceEnded || m.DecisionReason == types.ReasonGraceEnded {
		return false
	}
	return daysSince <= graceOfferDays
}

func wrongState(op string, m *types.Membership) error {
	return fmt.Errorf("%s from %s: %w", op, m.State, types.ErrWrongState)
}

// Expire moves a lapsed membership to a pending admin decision. Calling it
// on a record already pending keeps the original reason.
func Expire(m *types.Membership, now time.Time) error {
	switch m.State {
	case types.StateActive:
		m.DecisionReason = types.ReasonExpired
	case types.StateGraceEnded:
		m.DecisionReason = types.ReasonGraceEnded
	case types.StatePendingDecision:
		if m.DecisionReason == "" {
			m.DecisionReason = types.ReasonExpired
		}
	default:
		return wrongState("expire", m)
	}
	m.State = types.StatePendingDecision
	m.GraceEndDate = nil
	m.ReminderSent = false
	m.UpdatedAt = now
	return nil
}

// EndGrace closes a grace period whose end date has passed.
func EndGrace(m *types.Membership, now time.Time) error {
	if m.State != types.StateGrace {
		return wrongState("end grace", m)
	}
	if m.GraceEndDate != nil && now.Before(*m.GraceEndDate) {
		return fmt.Errorf("grace for %d runs until %s: %w", m.UserID, m.GraceEndDate.Format(time.RFC3339), types.ErrWrongState)
	}
	m.State = types.StateGraceEnded
	m.GraceEndDate = nil
	m.GraceUsed = true
	m.UpdatedAt = now
	return nil
}

func GrantGrace(m *types.Membership, now time.Time, period time.Duration) error {
	if m.State != types.StatePendingDecision || m.GraceUsed || m.DecisionReason == types.ReasonGraceEnded {
		return wrongState("grant grace", m)
	}
	end := now.Add(period)
	m.State = types.StateGrace
	m.GraceEndDate = &end
	m.GraceUsed = true
	m.DecisionReason = ""
	m.UpdatedAt = now
	return nil
}

// Kick keeps the record for history; only the group membership goes.
func Kick(m *types.Membership, now time.Time) error {
	if m.State == types.StateKicked {
		return wrongState("kick", m)
	}
	m.State = types.StateKicked
	m.GraceEndDate = nil
	m.DecisionReason = ""
	m.ReminderSent = false
	m.UpdatedAt = now
	return nil
}

func Keep(m *types.Membership, now time.Time) error {
	if m.State != types.StatePendingDecision && m.State != types.StateGraceEnded {
		return wrongState("keep", m)
	}
	m.State = types.StateKept
	m.GraceEndDate = nil
	m.DecisionReason = ""
	m.UpdatedAt = now
	return nil
}

// Renew applies an approved renewal payment. The due date never moves
// backwards: an early renewal extends from the current due date.
func Renew(m *types.Membership, plan types.Plan, method string, now time.Time) {
	base := now
	if m.DueDate.After(now) {
		base = m.DueDate
	}
	if plan == "" {
		plan = types.PlanMonthly
	}
	m.Plan = plan
	if method != "" {
		m.PaymentMode = method
	}
	m.DueDate = base.AddDate(0, 0, plan.Days())
	m.State = types.StateActive
	m.GraceEndDate = nil
	m.GraceUsed = false
	m.DecisionReason = ""
	m.ReminderSent = false
	m.CancellationDate = nil
	m.UpdatedAt = now
}

// Cancel stops renewal reminders; access lasts until the due date.
func Cancel(m *types.Membership, now time.Time) error {
	if m.State != types.StateActive {
		return wrongState("cancel", m)
	}
	m.State = types.StateCancelled
	m.ReminderSent = true
	m.CancellationDate = &now
	m.UpdatedAt = now
	return nil
}

// Lapse ends a cancelled membership whose paid period is over. Nobody is
// notified: the member opted out and admins have nothing to decide.
func Lapse(m *types.Membership, now time.Time) error {
	if m.State != types.StateCancelled {
		return wrongState("lapse", m)
	}
	if !m.DueDate.Before(now) {
		return fmt.Errorf("membership %d paid until %s: %w", m.UserID, m.DueDate.Format(time.RFC3339), types.ErrWrongState)
	}
	m.State = types.StateLapsed
	m.UpdatedAt = now
	return nil
}
