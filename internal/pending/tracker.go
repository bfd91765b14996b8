// Package pending runs the per-user conversation that precedes a membership
// change: menu choice, plan, payment method, proof and admin review.
package pending

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/BatmanBruc/club-membership-bot/internal/i18n"
	"github.com/BatmanBruc/club-membership-bot/internal/messages"
	"github.com/BatmanBruc/club-membership-bot/internal/notify"
	"github.com/BatmanBruc/club-membership-bot/internal/pricing"
	"github.com/BatmanBruc/club-membership-bot/internal/utils"
	"github.com/BatmanBruc/club-membership-bot/types"
	"github.com/go-telegram/bot/models"
)

// Memberships is the slice of the membership engine the flow needs.
type Memberships interface {
	Membership(ctx context.Context, userID int64) (*types.Membership, error)
	CancelMembership(ctx context.Context, userID int64) (*types.Membership, error)
}

type Sender struct {
	UserID   int64
	Username string
	Lang     i18n.Lang
}

type Tracker struct {
	store       types.PendingStore
	memberships Memberships
	catalog     *pricing.Catalog
	dispatcher  *notify.Dispatcher
	location    *time.Location
	waitAfter   time.Duration
	now         func() time.Time
}

func NewTracker(store types.PendingStore, memberships Memberships, catalog *pricing.Catalog, dispatcher *notify.Dispatcher, location *time.Location, waitAfter time.Duration) *Tracker {
	if location == nil {
		location = time.UTC
	}
	if waitAfter <= 0 {
		waitAfter = 10 * time.Minute
	}
	return &Tracker{
		store:       store,
		memberships: memberships,
		catalog:     catalog,
		dispatcher:  dispatcher,
		location:    location,
		waitAfter:   waitAfter,
		now:         time.Now,
	}
}

func (t *Tracker) SetClock(now func() time.Time) { t.now = now }

func (t *Tracker) send(ctx context.Context, s Sender, text string, markup models.ReplyMarkup) {
	t.dispatcher.Send(ctx, s.UserID, text, markup)
}

func (t *Tracker) save(ctx context.Context, p *types.PendingRequest) error {
	if err := t.store.SavePending(ctx, p); err != nil {
		return fmt.Errorf("failed to save pending request of %d: %w", p.UserID, err)
	}
	return nil
}

func (t *Tracker) load(ctx context.Context, userID int64) (*types.PendingRequest, error) {
	p, err := t.store.GetPending(ctx, userID)
	if errors.Is(err, types.ErrNotFound) {
		return nil, types.ErrNoPendingRequest
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load pending request of %d: %w", userID, err)
	}
	return p, nil
}

// Start opens the main menu. A request already with the admins is left
// alone so its review prompt stays valid.
func (t *Tracker) Start(ctx context.Context, s Sender) error {
	p, err := t.load(ctx, s.UserID)
	switch {
	case err == nil && p.Status.AwaitsAdmin():
		t.send(ctx, s, messages.StillWaiting(s.Lang), nil)
		return nil
	case err != nil && !errors.Is(err, types.ErrNoPendingRequest):
		return err
	}

	req := &types.PendingRequest{
		UserID:   s.UserID,
		Username: s.Username,
		Language: string(s.Lang),
		Status:   types.StatusChoosingOption,
	}
	if p != nil {
		req.ID = p.ID
		req.CreatedAt = p.CreatedAt
	}
	if err := t.save(ctx, req); err != nil {
		return err
	}
	t.send(ctx, s, messages.MainMenu(s.Lang), keyboard(s.Lang, menuOptions...))
	return nil
}

// Abort drops whatever the user was doing.
func (t *Tracker) Abort(ctx context.Context, s Sender) error {
	p, err := t.load(ctx, s.UserID)
	if errors.Is(err, types.ErrNoPendingRequest) {
		t.send(ctx, s, messages.NoActiveRequest(s.Lang), utils.RemoveKeyboard())
		return nil
	}
	if err != nil {
		return err
	}
	if err := t.store.DeletePending(ctx, s.UserID); err != nil {
		return fmt.Errorf("failed to delete pending request of %d: %w", s.UserID, err)
	}
	t.dispatcher.ClearButtons(ctx, p.AdminMessages)
	t.send(ctx, s, messages.FlowCancelled(s.Lang), utils.RemoveKeyboard())
	return nil
}

// HandleReply advances the flow with one text reply. A reply outside the
// current step's vocabulary returns types.ErrInvalidOption and changes
// nothing.
func (t *Tracker) HandleReply(ctx context.Context, s Sender, text string) error {
	p, err := t.load(ctx, s.UserID)
	if errors.Is(err, types.ErrNoPendingRequest) {
		t.send(ctx, s, messages.NoActiveRequest(s.Lang), nil)
		return err
	}
	if err != nil {
		return err
	}
	if s.Username != "" {
		p.Username = s.Username
	}

	switch p.Status {
	case types.StatusChoosingOption:
		return t.chooseOption(ctx, s, p, text)
	case types.StatusBuyMembership, types.StatusRenewalPlan:
		return t.choosePlan(ctx, s, p, text)
	case types.StatusChoosingPaymentMethod, types.StatusRenewalMethod:
		return t.chooseMethod(ctx, s, p, text)
	case types.StatusAwaitingPayment, types.StatusRenewalPayment:
		if !optPaid.Matches(text) {
			return t.invalid(ctx, s, keyboard(s.Lang, optPaid))
		}
		p.Status = next[p.Status]
		if err := t.save(ctx, p); err != nil {
			return err
		}
		t.send(ctx, s, messages.SendProof(s.Lang), utils.RemoveKeyboard())
		return nil
	case types.StatusAwaitingProof, types.StatusRenewalProof:
		t.send(ctx, s, messages.SendProof(s.Lang), nil)
		return types.ErrInvalidOption
	case types.StatusCancelMembership:
		return t.confirmCancel(ctx, s, text)
	case types.StatusWaitingApproval, types.StatusOldMemberRequest:
		t.send(ctx, s, messages.StillWaiting(s.Lang), nil)
		return nil
	default:
		log.Printf("Pending request of %d has unknown status %q, restarting", s.UserID, p.Status)
		return t.Start(ctx, s)
	}
}

func (t *Tracker) invalid(ctx context.Context, s Sender, markup models.ReplyMarkup) error {
	t.send(ctx, s, messages.InvalidOption(s.Lang), markup)
	return types.ErrInvalidOption
}

// membership returns nil when the user has never paid.
func (t *Tracker) membership(ctx context.Context, userID int64) (*types.Membership, error) {
	m, err := t.memberships.Membership(ctx, userID)
	if errors.Is(err, types.ErrNotFound) {
		return nil, nil
	}
	return m, err
}

func (t *Tracker) chooseOption(ctx context.Context, s Sender, p *types.PendingRequest, text string) error {
	switch {
	case optBuy.Matches(text):
		m, err := t.membership(ctx, s.UserID)
		if err != nil {
			return err
		}
		switch {
		case m == nil || m.State == types.StateKicked:
		case m.HasPaid():
			t.send(ctx, s, messages.AlreadyActive(s.Lang, messages.Date(m.DueDate, t.location)), keyboard(s.Lang, menuOptions...))
			return nil
		default:
			t.send(ctx, s, messages.EndedUseRenew(s.Lang, messages.Date(m.DueDate, t.location)), keyboard(s.Lang, menuOptions...))
			return nil
		}
		p.Status = types.StatusBuyMembership
		return t.askPlan(ctx, s, p)

	case optRenew.Matches(text):
		m, err := t.membership(ctx, s.UserID)
		if err != nil {
			return err
		}
		if m == nil {
			t.send(ctx, s, messages.NotAMember(s.Lang), keyboard(s.Lang, menuOptions...))
			return nil
		}
		p.Status = types.StatusRenewalPlan
		return t.askPlan(ctx, s, p)

	case optOldMember.Matches(text):
		return t.requestOldMember(ctx, s, p)

	case optCancel.Matches(text):
		m, err := t.membership(ctx, s.UserID)
		if err != nil {
			return err
		}
		switch {
		case m == nil:
			t.send(ctx, s, messages.NotAMember(s.Lang), keyboard(s.Lang, menuOptions...))
			return nil
		case m.Cancelled():
			t.send(ctx, s, messages.AlreadyCancelled(s.Lang), keyboard(s.Lang, menuOptions...))
			return nil
		case m.State != types.StateActive:
			t.send(ctx, s, messages.NotAMember(s.Lang), keyboard(s.Lang, menuOptions...))
			return nil
		}
		p.Status = types.StatusCancelMembership
		if err := t.save(ctx, p); err != nil {
			return err
		}
		t.send(ctx, s, messages.CancelConfirm(s.Lang, messages.Date(m.DueDate, t.location)), keyboard(s.Lang, optConfirmCancel, optKeepMember))
		return nil
	}
	return t.invalid(ctx, s, keyboard(s.Lang, menuOptions...))
}

func (t *Tracker) askPlan(ctx context.Context, s Sender, p *types.PendingRequest) error {
	if err := t.save(ctx, p); err != nil {
		return err
	}
	monthly, yearly := t.catalog.Both(ctx, s.UserID)
	t.send(ctx, s, messages.ChoosePlan(s.Lang, monthly.Price, yearly.Price, monthly.Discounted), keyboard(s.Lang, optMonthly, optYearly))
	return nil
}

func (t *Tracker) choosePlan(ctx context.Context, s Sender, p *types.PendingRequest, text string) error {
	plan, ok := parsePlan(text)
	if !ok {
		return t.invalid(ctx, s, keyboard(s.Lang, optMonthly, optYearly))
	}
	p.Plan = plan
	p.Status = next[p.Status]
	if err := t.save(ctx, p); err != nil {
		return err
	}
	t.send(ctx, s, messages.ChooseMethod(s.Lang), utils.BuildReplyKeyboard(t.catalog.Methods(ctx)))
	return nil
}

func (t *Tracker) chooseMethod(ctx context.Context, s Sender, p *types.PendingRequest, text string) error {
	methods := t.catalog.Methods(ctx)
	method, ok := pricing.MatchMethod(methods, text)
	if !ok {
		return t.invalid(ctx, s, utils.BuildReplyKeyboard(methods))
	}
	p.Method = method
	p.Status = next[p.Status]
	if err := t.save(ctx, p); err != nil {
		return err
	}
	q := t.catalog.Quote(ctx, s.UserID, p.Plan)
	t.send(ctx, s, messages.PaymentInstructions(s.Lang, string(p.Plan), q.Price, method, t.catalog.Details(ctx)), keyboard(s.Lang, optPaid))
	return nil
}

func (t *Tracker) confirmCancel(ctx context.Context, s Sender, text string) error {
	switch {
	case optConfirmCancel.Matches(text):
		m, err := t.memberships.CancelMembership(ctx, s.UserID)
		if err != nil {
			return err
		}
		if err := t.store.DeletePending(ctx, s.UserID); err != nil {
			log.Printf("Failed to delete pending request of %d: %v", s.UserID, err)
		}
		t.send(ctx, s, messages.CancelDone(s.Lang, messages.Date(m.DueDate, t.location)), utils.RemoveKeyboard())
		return nil
	case optKeepMember.Matches(text):
		if err := t.store.DeletePending(ctx, s.UserID); err != nil {
			log.Printf("Failed to delete pending request of %d: %v", s.UserID, err)
		}
		t.send(ctx, s, messages.CancelAborted(s.Lang), utils.RemoveKeyboard())
		return nil
	}
	return t.invalid(ctx, s, keyboard(s.Lang, optConfirmCancel, optKeepMember))
}

func (t *Tracker) requestOldMember(ctx context.Context, s Sender, p *types.PendingRequest) error {
	if t.catalog.IsOldMember(ctx, s.UserID) {
		if err := t.store.DeletePending(ctx, s.UserID); err != nil {
			log.Printf("Failed to delete pending request of %d: %v", s.UserID, err)
		}
		t.send(ctx, s, messages.AlreadyConfirmedOldMember(s.Lang), utils.RemoveKeyboard())
		return nil
	}

	now := t.now()
	p.Status = types.StatusOldMemberRequest
	p.RequestTime = &now
	p.ReminderSent = false
	if err := t.save(ctx, p); err != nil {
		return err
	}

	markup := utils.BuildInlineKeyboard([]utils.Button{
		{Text: "✅ Verify", CallbackData: utils.EncodeCallback(utils.ScopeOldMember, utils.ActionApprove, s.UserID)},
		{Text: "❌ Deny", CallbackData: utils.EncodeCallback(utils.ScopeOldMember, utils.ActionReject, s.UserID)},
	}, 2)
	p.AdminMessages = t.dispatcher.Broadcast(ctx, messages.AdminOldMemberReview(messages.MemberLabel(s.UserID, p.Username)), markup)
	if err := t.save(ctx, p); err != nil {
		log.Printf("Failed to store review prompts for %d: %v", s.UserID, err)
	}
	t.send(ctx, s, messages.OldMemberRequested(s.Lang), utils.RemoveKeyboard())
	return nil
}

// HandleProof accepts the payment screenshot and hands the request to the
// admins.
func (t *Tracker) HandleProof(ctx context.Context, s Sender, fileID string) error {
	p, err := t.load(ctx, s.UserID)
	if errors.Is(err, types.ErrNoPendingRequest) {
		t.send(ctx, s, messages.NoActiveRequest(s.Lang), nil)
		return err
	}
	if err != nil {
		return err
	}
	if p.Status != types.StatusAwaitingProof && p.Status != types.StatusRenewalProof {
		t.send(ctx, s, messages.InvalidOption(s.Lang), nil)
		return types.ErrInvalidOption
	}

	renewal := p.Status.IsRenewal()
	now := t.now()
	if s.Username != "" {
		p.Username = s.Username
	}
	p.ProofFileID = fileID
	p.Status = next[p.Status]
	p.RequestTime = &now
	p.ReminderSent = false
	if err := t.save(ctx, p); err != nil {
		return err
	}

	q := t.catalog.Quote(ctx, s.UserID, p.Plan)
	caption := messages.AdminPaymentReview(messages.MemberLabel(s.UserID, p.Username), string(p.Plan), p.Method, q.Price, renewal)
	markup := utils.BuildInlineKeyboard([]utils.Button{
		{Text: "✅ Approve", CallbackData: utils.EncodeCallback(utils.ScopePayment, utils.ActionApprove, s.UserID)},
		{Text: "❌ Reject", CallbackData: utils.EncodeCallback(utils.ScopePayment, utils.ActionReject, s.UserID)},
	}, 2)
	p.AdminMessages = t.dispatcher.BroadcastPhoto(ctx, fileID, caption, markup)
	if err := t.save(ctx, p); err != nil {
		log.Printf("Failed to store review prompts for %d: %v", s.UserID, err)
	}
	log.Printf("Payment proof of %d sent to %d admins", s.UserID, len(p.AdminMessages))

	t.send(ctx, s, messages.ProofReceived(s.Lang), nil)
	return nil
}

// Waiting lists the requests currently parked with the admins.
func (t *Tracker) Waiting(ctx context.Context) ([]*types.PendingRequest, error) {
	all, err := t.store.ListPending(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*types.PendingRequest, 0, len(all))
	for _, p := range all {
		if p.Status.AwaitsAdmin() {
			out = append(out, p)
		}
	}
	return out, nil
}

// RemindWaiting sends one courtesy notice per request that has waited longer
// than the configured delay. It returns how many requests were nudged.
func (t *Tracker) RemindWaiting(ctx context.Context) (int, error) {
	waiting, err := t.Waiting(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending requests: %w", err)
	}
	now := t.now()
	sent := 0
	for _, p := range waiting {
		if p.ReminderSent || p.RequestTime == nil {
			continue
		}
		waited := now.Sub(*p.RequestTime)
		if waited <= t.waitAfter {
			continue
		}

		p.ReminderSent = true
		if err := t.save(ctx, p); err != nil {
			log.Printf("Failed to mark waiting reminder for %d: %v", p.UserID, err)
			continue
		}
		lang := i18n.Parse(p.Language)
		t.dispatcher.Send(ctx, p.UserID, messages.StillWaiting(lang), nil)
		t.dispatcher.Broadcast(ctx, messages.AdminWaitingReminder(messages.MemberLabel(p.UserID, p.Username), string(p.Status), waited), nil)
		sent++
	}
	return sent, nil
}
