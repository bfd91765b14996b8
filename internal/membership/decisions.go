package membership

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/BatmanBruc/club-membership-bot/internal/i18n"
	"github.com/BatmanBruc/club-membership-bot/internal/messages"
	"github.com/BatmanBruc/club-membership-bot/types"
	"github.com/google/uuid"
)

func actor(adminID int64) string {
	return fmt.Sprintf("admin %d", adminID)
}

func (e *Engine) waitingRequest(ctx context.Context, userID int64, status types.PendingStatus) (*types.PendingRequest, error) {
	p, err := e.pending.GetPending(ctx, userID)
	if errors.Is(err, types.ErrNotFound) {
		return nil, types.ErrNoPendingRequest
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load pending request: %w", err)
	}
	if p.Status != status {
		return nil, fmt.Errorf("request of %d is %s: %w", userID, p.Status, types.ErrWrongState)
	}
	return p, nil
}

// closeRequest removes a decided request and strips the buttons from every
// admin's review prompt.
func (e *Engine) closeRequest(ctx context.Context, p *types.PendingRequest) {
	if err := e.pending.DeletePending(ctx, p.UserID); err != nil && !errors.Is(err, types.ErrNotFound) {
		log.Printf("Failed to delete pending request for %d: %v", p.UserID, err)
	}
	e.dispatcher.ClearButtons(ctx, p.AdminMessages)
}

// ApprovePayment commits a reviewed payment. A first payment creates the
// membership and sends a one-time invite link; a renewal extends it.
func (e *Engine) ApprovePayment(ctx context.Context, adminID, userID int64) (*types.Membership, error) {
	if err := e.admins.Require(adminID); err != nil {
		return nil, err
	}
	p, err := e.waitingRequest(ctx, userID, types.StatusWaitingApproval)
	if err != nil {
		return nil, err
	}

	now := e.now()
	plan := p.Plan
	if plan == "" {
		plan = types.PlanMonthly
	}

	existing, err := e.memberships.GetMembership(ctx, userID)
	if err != nil && !errors.Is(err, types.ErrNotFound) {
		return nil, fmt.Errorf("failed to load membership: %w", err)
	}

	var m *types.Membership
	needsInvite := false
	if existing == nil {
		m = &types.Membership{
			UserID:      userID,
			Username:    p.Username,
			Language:    p.Language,
			Plan:        plan,
			PaymentMode: p.Method,
			DueDate:     now.AddDate(0, 0, plan.Days()),
			State:       types.StateActive,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		needsInvite = true
	} else {
		m = existing.Clone()
		needsInvite = m.State == types.StateKicked
		Renew(m, plan, p.Method, now)
		if p.Username != "" {
			m.Username = p.Username
		}
		if p.Language != "" {
			m.Language = p.Language
		}
	}
	m.LastDecisionBy = adminID

	if err := e.memberships.UpsertMembership(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to save membership: %w", err)
	}
	log.Printf("Payment of %d approved by %d, due %s", userID, adminID, m.DueDate.Format(time.RFC3339))

	e.closeRequest(ctx, p)
	e.dispatcher.ClearTrace(ctx, userID)

	invite := ""
	if needsInvite {
		if existing != nil && e.cfg.GroupID != 0 {
			if err := e.dispatcher.Messenger().UnbanMember(ctx, e.cfg.GroupID, userID); err != nil {
				log.Printf("Failed to unban %d: %v", userID, err)
			}
		}
		invite = e.inviteLink(ctx, m)
	}

	lang := i18n.Parse(m.Language)
	e.dispatcher.Send(ctx, userID, messages.PaymentApproved(lang, string(m.Plan), messages.Date(m.DueDate, e.cfg.Location), invite), nil)
	e.dispatcher.Broadcast(ctx, messages.AdminDecisionDone("Payment approved by "+actor(adminID), messages.MemberLabel(userID, m.Username)), nil)
	return m, nil
}

func (e *Engine) inviteLink(ctx context.Context, m *types.Membership) string {
	if e.cfg.GroupID == 0 {
		return ""
	}
	name := "member-" + uuid.NewString()[:8]
	link, err := e.dispatcher.Messenger().CreateInviteLink(ctx, e.cfg.GroupID, name)
	if err != nil {
		log.Printf("Failed to create invite link for %d: %v", m.UserID, err)
		e.dispatcher.Broadcast(ctx, messages.AdminInviteFailed(messages.MemberLabel(m.UserID, m.Username)), nil)
		return ""
	}
	return link
}

func (e *Engine) RejectPayment(ctx context.Context, adminID, userID int64) error {
	if err := e.admins.Require(adminID); err != nil {
		return err
	}
	p, err := e.waitingRequest(ctx, userID, types.StatusWaitingApproval)
	if err != nil {
		return err
	}
	e.closeRequest(ctx, p)
	log.Printf("Payment of %d rejected by %d", userID, adminID)

	e.dispatcher.Send(ctx, userID, messages.PaymentRejected(i18n.Parse(p.Language)), nil)
	e.dispatcher.Broadcast(ctx, messages.AdminDecisionDone("Payment rejected by "+actor(adminID), messages.MemberLabel(userID, p.Username)), nil)
	return nil
}

func (e *Engine) VerifyOldMember(ctx context.Context, adminID, userID int64) error {
	if err := e.admins.Require(adminID); err != nil {
		return err
	}
	p, err := e.waitingRequest(ctx, userID, types.StatusOldMemberRequest)
	if err != nil {
		return err
	}
	if err := e.oldMembers.ConfirmOldMember(ctx, types.ConfirmedOldMember{
		UserID:      userID,
		ConfirmedBy: adminID,
		ConfirmedAt: e.now(),
	}); err != nil {
		return fmt.Errorf("failed to confirm old member: %w", err)
	}
	e.closeRequest(ctx, p)
	log.Printf("Old member %d verified by %d", userID, adminID)

	e.dispatcher.Send(ctx, userID, messages.OldMemberVerified(i18n.Parse(p.Language)), nil)
	e.dispatcher.Broadcast(ctx, messages.AdminDecisionDone("Old member verified by "+actor(adminID), messages.MemberLabel(userID, p.Username)), nil)
	return nil
}

func (e *Engine) DenyOldMember(ctx context.Context, adminID, userID int64) error {
	if err := e.admins.Require(adminID); err != nil {
		return err
	}
	p, err := e.waitingRequest(ctx, userID, types.StatusOldMemberRequest)
	if err != nil {
		return err
	}
	e.closeRequest(ctx, p)
	log.Printf("Old member request of %d denied by %d", userID, adminID)

	e.dispatcher.Send(ctx, userID, messages.OldMemberDenied(i18n.Parse(p.Language)), nil)
	e.dispatcher.Broadcast(ctx, messages.AdminDecisionDone("Old member denied by "+actor(adminID), messages.MemberLabel(userID, p.Username)), nil)
	return nil
}

// decide loads, transitions and saves one membership on behalf of an admin.
func (e *Engine) decide(ctx context.Context, adminID, userID int64, apply func(*types.Membership, time.Time) error) (*types.Membership, error) {
	if err := e.admins.Require(adminID); err != nil {
		return nil, err
	}
	m, err := e.memberships.GetMembership(ctx, userID)
	if err != nil {
		return nil, err
	}
	next := m.Clone()
	if err := apply(next, e.now()); err != nil {
		return nil, err
	}
	next.LastDecisionBy = adminID
	if err := e.memberships.UpsertMembership(ctx, next); err != nil {
		return nil, fmt.Errorf("failed to save decision: %w", err)
	}
	e.dispatcher.ClearTrace(ctx, userID)
	return next, nil
}

func (e *Engine) GrantGrace(ctx context.Context, adminID, userID int64) (*types.Membership, error) {
	m, err := e.decide(ctx, adminID, userID, func(m *types.Membership, now time.Time) error {
		return GrantGrace(m, now, e.cfg.GracePeriod)
	})
	if err != nil {
		return nil, err
	}
	log.Printf("Grace granted to %d by %d until %s", userID, adminID, m.GraceEndDate.Format(time.RFC3339))

	until := messages.DateTime(*m.GraceEndDate, e.cfg.Location)
	e.dispatcher.Send(ctx, userID, messages.GraceGranted(i18n.Parse(m.Language), until), nil)
	e.dispatcher.Broadcast(ctx, messages.AdminDecisionDone("Grace granted by "+actor(adminID), messages.MemberLabel(userID, m.Username)), nil)
	return m, nil
}

// Kick records the removal first; a failed group removal is reported to
// admins for manual follow-up and does not undo it.
func (e *Engine) Kick(ctx context.Context, adminID, userID int64) (*types.Membership, error) {
	m, err := e.decide(ctx, adminID, userID, Kick)
	if err != nil {
		return nil, err
	}
	log.Printf("Membership %d kicked by %d", userID, adminID)
	label := messages.MemberLabel(userID, m.Username)

	if e.cfg.GroupID != 0 {
		messenger := e.dispatcher.Messenger()
		if err := messenger.BanMember(ctx, e.cfg.GroupID, userID); err != nil {
			log.Printf("Failed to remove %d from group: %v", userID, err)
			e.dispatcher.Broadcast(ctx, messages.AdminKickFailed(label, err), nil)
		} else if err := messenger.UnbanMember(ctx, e.cfg.GroupID, userID); err != nil {
			log.Printf("Failed to lift ban for %d: %v", userID, err)
		}
	}

	e.dispatcher.Send(ctx, userID, messages.Kicked(i18n.Parse(m.Language)), nil)
	e.dispatcher.Broadcast(ctx, messages.AdminDecisionDone("Kicked by "+actor(adminID), label), nil)
	return m, nil
}

func (e *Engine) Keep(ctx context.Context, adminID, userID int64) (*types.Membership, error) {
	m, err := e.decide(ctx, adminID, userID, Keep)
	if err != nil {
		return nil, err
	}
	log.Printf("Membership %d kept by %d", userID, adminID)
	e.dispatcher.Broadcast(ctx, messages.AdminDecisionDone("Kept by "+actor(adminID), messages.MemberLabel(userID, m.Username)), nil)
	return m, nil
}
