package types

import "strings"

type Plan string

const (
	PlanMonthly Plan = "Monthly"
	PlanYearly  Plan = "Yearly"
)

func ParsePlan(s string) (Plan, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "monthly":
		return PlanMonthly, true
	case "yearly":
		return PlanYearly, true
	default:
		return "", false
	}
}

// Days is the length of one paid period.
func (p Plan) Days() int {
	if p == PlanYearly {
		return 365
	}
	return 30
}

// MembershipState is the tag of a membership's lifecycle variant.
type MembershipState string

const (
	StateActive          MembershipState = "active"
	StateCancelled       MembershipState = "cancelled"
	StateGrace           MembershipState = "grace"
	StateGraceEnded      MembershipState = "grace_ended"
	StatePendingDecision MembershipState = "pending_decision"
	StateKicked          MembershipState = "kicked"
	StateKept            MembershipState = "kept"
	StateLapsed          MembershipState = "lapsed"
)

func (s MembershipState) Valid() bool {
	switch s {
	case StateActive, StateCancelled, StateGrace, StateGraceEnded, StatePendingDecision, StateKicked, StateKept, StateLapsed:
		return true
	}
	return false
}

type DecisionReason string

const (
	ReasonExpired    DecisionReason = "expired"
	ReasonGraceEnded DecisionReason = "grace_ended"
)

type PendingStatus string

const (
	StatusChoosingOption        PendingStatus = "choosing_option"
	StatusBuyMembership         PendingStatus = "buy_membership"
	StatusChoosingPaymentMethod PendingStatus = "choosing_payment_method"
	StatusAwaitingPayment       PendingStatus = "awaiting_payment"
	StatusAwaitingProof         PendingStatus = "awaiting_proof"
	StatusRenewalPlan           PendingStatus = "renewal_membership_plan"
	StatusRenewalMethod         PendingStatus = "renewal_membership_method"
	StatusRenewalPayment        PendingStatus = "renewal_membership_payment"
	StatusRenewalProof          PendingStatus = "renewal_membership_proof"
	StatusWaitingApproval       PendingStatus = "waiting_approval"
	StatusOldMemberRequest      PendingStatus = "old_member_request"
	StatusCancelMembership      PendingStatus = "cancel_membership"
)

// AwaitsAdmin reports whether the request is parked until an admin decides.
func (s PendingStatus) AwaitsAdmin() bool {
	return s == StatusWaitingApproval || s == StatusOldMemberRequest
}

func (s PendingStatus) IsRenewal() bool {
	return strings.HasPrefix(string(s), "renewal_membership_")
}
