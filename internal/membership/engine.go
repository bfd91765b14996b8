package membership

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/BatmanBruc/club-membership-bot/internal/access"
	"github.com/BatmanBruc/club-membership-bot/internal/i18n"
	"github.com/BatmanBruc/club-membership-bot/internal/messages"
	"github.com/BatmanBruc/club-membership-bot/internal/notify"
	"github.com/BatmanBruc/club-membership-bot/internal/utils"
	"github.com/BatmanBruc/club-membership-bot/types"
	"github.com/go-telegram/bot/models"
)

type Config struct {
	GroupID            int64
	GracePeriod        time.Duration
	UpcomingWindowDays int
	GraceOfferDays     int
	Location           *time.Location
}

type Deps struct {
	Memberships types.MembershipStore
	Pending     types.PendingStore
	OldMembers  types.OldMemberStore
	Dispatcher  *notify.Dispatcher
	Admins      *access.Admins
}

// Engine owns every mutation of Membership records: the scheduled
// evaluation as well as admin decisions and member cancellations.
type Engine struct {
	memberships types.MembershipStore
	pending     types.PendingStore
	oldMembers  types.OldMemberStore
	dispatcher  *notify.Dispatcher
	admins      *access.Admins
	cfg         Config
	now         func() time.Time
}

func NewEngine(deps Deps, cfg Config) *Engine {
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = 48 * time.Hour
	}
	if cfg.UpcomingWindowDays <= 0 {
		cfg.UpcomingWindowDays = 3
	}
	if cfg.GraceOfferDays <= 0 {
		cfg.GraceOfferDays = 3
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Engine{
		memberships: deps.Memberships,
		pending:     deps.Pending,
		oldMembers:  deps.OldMembers,
		dispatcher:  deps.Dispatcher,
		admins:      deps.Admins,
		cfg:         cfg,
		now:         time.Now,
	}
}

func (e *Engine) SetClock(now func() time.Time) { e.now = now }

func (e *Engine) Now() time.Time { return e.now() }

// Summary counts what one evaluation pass did.
type Summary struct {
	Checked    int
	Reminded   int
	Expired    int
	GraceEnded int
	Lapsed     int
	Failed     int
}

// RunPaymentCheck evaluates every membership once: grace expiry, upcoming
// reminders and expiry. A failing record is logged and skipped.
func (e *Engine) RunPaymentCheck(ctx context.Context) (Summary, error) {
	return e.run(ctx, false)
}

// CheckGraceExpiry only closes grace periods that have run out.
func (e *Engine) CheckGraceExpiry(ctx context.Context) (Summary, error) {
	return e.run(ctx, true)
}

func (e *Engine) run(ctx context.Context, graceOnly bool) (Summary, error) {
	var sum Summary
	all, err := e.memberships.ListMemberships(ctx)
	if err != nil {
		return sum, fmt.Errorf("failed to list memberships: %w", err)
	}
	now := e.now()
	for _, m := range all {
		if graceOnly && m.State != types.StateGrace {
			continue
		}
		sum.Checked++
		action, err := e.evaluateOne(ctx, m, now, graceOnly)
		if err != nil {
			sum.Failed++
			log.Printf("Failed to process membership %d: %v", m.UserID, err)
			continue
		}
		switch action {
		case ActionRemind:
			sum.Reminded++
		case ActionExpire:
			sum.Expired++
		case ActionGraceEnded:
			sum.GraceEnded++
		case ActionLapse:
			sum.Lapsed++
		}
	}
	return sum, nil
}

func (e *Engine) evaluateOne(ctx context.Context, m *types.Membership, now time.Time, graceOnly bool) (action Action, err error) {
	defer func() {
		if r := recover(); r != nil {
			action, err = ActionNone, fmt.Errorf("panic: %v", r)
		}
	}()

	ev := Evaluate(m, now, e.cfg.UpcomingWindowDays, e.cfg.GraceOfferDays)
	if graceOnly && ev.Action != ActionGraceEnded {
		return ActionNone, nil
	}
	switch ev.Action {
	case ActionGraceEnded:
		err = e.endGrace(ctx, m, now)
	case ActionRemind:
		err = e.remind(ctx, m, ev, now)
	case ActionExpire:
		err = e.expire(ctx, m, ev, now)
	case ActionLapse:
		err = e.lapse(ctx, m, now)
	}
	return ev.Action, err
}

func (e *Engine) remind(ctx context.Context, m *types.Membership, ev Evaluation, now time.Time) error {
	lang := i18n.Parse(m.Language)
	due := messages.Date(m.DueDate, e.cfg.Location)
	label := messages.MemberLabel(m.UserID, m.Username)

	e.dispatcher.Replace(ctx, notify.Notice{
		UserID:   m.UserID,
		UserText: messages.ReminderUpcoming(lang, ev.DaysLeft, due),
		AdminText: func(delivered bool) string {
			return messages.AdminReminderInfo(label, ev.DaysLeft, due, delivered)
		},
	})

	next := m.Clone()
	next.ReminderSent = true
	next.UpdatedAt = now
	if err := e.memberships.UpsertMembership(ctx, next); err != nil {
		return fmt.Errorf("failed to mark reminder: %w", err)
	}
	return nil
}

func (e *Engine) expire(ctx context.Context, m *types.Membership, ev Evaluation, now time.Time) error {
	changed := m.State != types.StatePendingDecision || m.ReminderSent || m.GraceEndDate != nil
	next := m.Clone()
	if err := Expire(next, now); err != nil {
		return err
	}
	if changed {
		if err := e.memberships.UpsertMembership(ctx, next); err != nil {
			return fmt.Errorf("failed to save expiry: %w", err)
		}
		log.Printf("Membership %d expired (%d days overdue)", m.UserID, ev.DaysSince)
	}

	lang := i18n.Parse(m.Language)
	label := messages.MemberLabel(m.UserID, m.Username)
	e.dispatcher.Replace(ctx, notify.Notice{
		UserID:   m.UserID,
		UserText: messages.MembershipExpired(lang),
		AdminText: func(delivered bool) string {
			return messages.AdminExpiredPrompt(label, ev.DaysSince, ev.OfferGrace, delivered)
		},
		AdminMarkup: e.decisionKeyboard(m.UserID, ev.OfferGrace),
	})
	return nil
}

func (e *Engine) lapse(ctx context.Context, m *types.Membership, now time.Time) error {
	next := m.Clone()
	if err := Lapse(next, now); err != nil {
		return err
	}
	if err := e.memberships.UpsertMembership(ctx, next); err != nil {
		return fmt.Errorf("failed to save lapse: %w", err)
	}
	log.Printf("Cancelled membership %d ran out on %s", m.UserID, messages.Date(m.DueDate, e.cfg.Location))
	return nil
}

func (e *Engine) endGrace(ctx context.Context, m *types.Membership, now time.Time) error {
	next := m.Clone()
	if err := EndGrace(next, now); err != nil {
		return err
	}
	if err := e.memberships.UpsertMembership(ctx, next); err != nil {
		return fmt.Errorf("failed to close grace: %w", err)
	}
	log.Printf("Grace period ended for %d", m.UserID)

	label := messages.MemberLabel(m.UserID, m.Username)
	due := messages.Date(m.DueDate, e.cfg.Location)
	e.dispatcher.Replace(ctx, notify.Notice{
		UserID: m.UserID,
		AdminText: func(bool) string {
			return messages.AdminGraceEndedPrompt(label, due)
		},
		AdminMarkup: e.decisionKeyboard(m.UserID, false),
	})
	return nil
}

func (e *Engine) decisionKeyboard(userID int64, offerGrace bool) models.ReplyMarkup {
	var buttons []utils.Button
	if offerGrace {
		buttons = append(buttons, utils.Button{
			Text:         fmt.Sprintf("🕊 Grace %d days", int(e.cfg.GracePeriod.Hours()/24)),
			CallbackData: utils.EncodeCallback(utils.ScopeMembership, utils.ActionGrace, userID),
		})
	}
	buttons = append(buttons, utils.Button{
		Text:         "🚪 Kick",
		CallbackData: utils.EncodeCallback(utils.ScopeMembership, utils.ActionKick, userID),
	})
	if !offerGrace {
		buttons = append(buttons, utils.Button{
			Text:         "🤝 Keep",
			CallbackData: utils.EncodeCallback(utils.ScopeMembership, utils.ActionKeep, userID),
		})
	}
	return utils.BuildInlineKeyboard(buttons, 2)
}

// MidnightCleanup deletes every outstanding reminder message and clears the
// reminder flag so the next day's check reminds again. Cancelled members
// keep the flag.
func (e *Engine) MidnightCleanup(ctx context.Context) (traces, reflagged int, err error) {
	traces, err = e.dispatcher.ClearAllTraces(ctx)
	if err != nil {
		log.Printf("Failed to clear reminder traces: %v", err)
	}

	all, listErr := e.memberships.ListMemberships(ctx)
	if listErr != nil {
		return traces, 0, errors.Join(err, fmt.Errorf("failed to list memberships: %w", listErr))
	}
	now := e.now()
	for _, m := range all {
		if !m.ReminderSent || m.Cancelled() {
			continue
		}
		next := m.Clone()
		next.ReminderSent = false
		next.UpdatedAt = now
		if uerr := e.memberships.UpsertMembership(ctx, next); uerr != nil {
			log.Printf("Failed to re-flag membership %d: %v", m.UserID, uerr)
			continue
		}
		reflagged++
	}
	return traces, reflagged, err
}

// Counts returns the number of memberships per state.
func (e *Engine) Counts(ctx context.Context) (map[string]int, int, error) {
	all, err := e.memberships.ListMemberships(ctx)
	if err != nil {
		return nil, 0, err
	}
	counts := make(map[string]int)
	for _, m := range all {
		counts[string(m.State)]++
	}
	return counts, len(all), nil
}

// Membership returns the member's record or types.ErrNotFound.
func (e *Engine) Membership(ctx context.Context, userID int64) (*types.Membership, error) {
	return e.memberships.GetMembership(ctx, userID)
}

// CancelMembership is the member's own opt-out from renewal reminders.
func (e *Engine) CancelMembership(ctx context.Context, userID int64) (*types.Membership, error) {
	m, err := e.memberships.GetMembership(ctx, userID)
	if err != nil {
		return nil, err
	}
	next := m.Clone()
	if err := Cancel(next, e.now()); err != nil {
		return m, err
	}
	if err := e.memberships.UpsertMembership(ctx, next); err != nil {
		return m, fmt.Errorf("failed to save cancellation: %w", err)
	}
	e.dispatcher.ClearTrace(ctx, userID)
	log.Printf("Membership %d cancelled by member", userID)
	return next, nil
}

func (e *Engine) Location() *time.Location { return e.cfg.Location }
