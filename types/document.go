package types

// MembershipDocument is the flat document form of a Membership, as shown on
// the dashboard and exported from the store.
type MembershipDocument struct {
	UserID             int64  `json:"user_id"`
	Username           string `json:"username,omitempty"`
	Language           string `json:"language,omitempty"`
	Plan               string `json:"plan"`
	PaymentMode        string `json:"payment_mode,omitempty"`
	DueDate            string `json:"due_date"`
	State              string `json:"state"`
	HasPaid            bool   `json:"has_paid"`
	Cancelled          bool   `json:"cancelled"`
	GracePeriod        bool   `json:"grace_period"`
	GraceEndDate       string `json:"grace_end_date,omitempty"`
	AdminActionPending bool   `json:"admin_action_pending"`
	DecisionReason     string `json:"decision_reason,omitempty"`
	GraceUsed          bool   `json:"grace_used,omitempty"`
	ReminderSent       bool   `json:"reminder_sent"`
	CancellationDate   string `json:"cancellation_date,omitempty"`
	LastDecisionBy     int64  `json:"last_decision_by,omitempty"`
	CreatedAt          string `json:"created_at,omitempty"`
	UpdatedAt          string `json:"updated_at,omitempty"`
	Version            int64  `json:"version"`
}

func (m *Membership) Document() MembershipDocument {
	return MembershipDocument{
		UserID:             m.UserID,
		Username:           m.Username,
		Language:           m.Language,
		Plan:               string(m.Plan),
		PaymentMode:        m.PaymentMode,
		DueDate:            FormatTimestamp(m.DueDate),
		State:              string(m.State),
		HasPaid:            m.HasPaid(),
		Cancelled:          m.Cancelled(),
		GracePeriod:        m.GracePeriod(),
		GraceEndDate:       FormatTimestampPtr(m.GraceEndDate),
		AdminActionPending: m.AdminActionPending(),
		DecisionReason:     string(m.DecisionReason),
		GraceUsed:          m.GraceUsed,
		ReminderSent:       m.ReminderSent,
		CancellationDate:   FormatTimestampPtr(m.CancellationDate),
		LastDecisionBy:     m.LastDecisionBy,
		CreatedAt:          FormatTimestamp(m.CreatedAt),
		UpdatedAt:          FormatTimestamp(m.UpdatedAt),
		Version:            m.Version,
	}
}
