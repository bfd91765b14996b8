package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/BatmanBruc/club-membership-bot/internal/i18n"
	"github.com/BatmanBruc/club-membership-bot/internal/messages"
	"github.com/BatmanBruc/club-membership-bot/types"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

var stateLabels = map[types.MembershipState]string{
	types.StateActive:          "Active",
	types.StateCancelled:       "Cancelled (access until due date)",
	types.StateGrace:           "Grace period",
	types.StateGraceEnded:      "Grace period over",
	types.StatePendingDecision: "Expired",
	types.StateKicked:          "Removed",
	types.StateKept:            "Expired",
	types.StateLapsed:          "Ended after cancellation",
}

func (bh *Handlers) HandleCommand(ctx context.Context, _ *bot.Bot, update *models.Update) {
	msg := update.Message
	fields := strings.Fields(strings.TrimSpace(msg.Text))
	if len(fields) == 0 {
		return
	}
	cmd := fields[0]
	if strings.Contains(cmd, "@") {
		cmd = strings.SplitN(cmd, "@", 2)[0]
	}
	s := senderFromMessage(ctx, msg)
	chatID := msg.Chat.ID

	var err error
	switch cmd {
	case "/start":
		err = bh.tracker.Start(ctx, s)
	case "/cancel":
		err = bh.tracker.Abort(ctx, s)
	case "/help":
		bh.dispatcher.Send(ctx, chatID, messages.Help(s.Lang), nil)
	case "/status":
		err = bh.sendStatus(ctx, chatID, s.UserID, s.Lang)
	case "/members", "/pending", "/remind_now":
		if !bh.admins.IsAdmin(s.UserID) {
			bh.dispatcher.Send(ctx, chatID, messages.AccessDenied(s.Lang), nil)
			return
		}
		err = bh.adminCommand(ctx, cmd, chatID)
	default:
		bh.dispatcher.Send(ctx, chatID, messages.ErrorUnknownCommand(s.Lang), nil)
	}
	if err != nil {
		bh.reportError(ctx, chatID, s.Lang, err)
	}
}

func (bh *Handlers) sendStatus(ctx context.Context, chatID, userID int64, lang i18n.Lang) error {
	m, err := bh.engine.Membership(ctx, userID)
	if errors.Is(err, types.ErrNotFound) {
		bh.dispatcher.Send(ctx, chatID, messages.NotAMember(lang), nil)
		return nil
	}
	if err != nil {
		return err
	}
	label := stateLabels[m.State]
	if label == "" {
		label = string(m.State)
	}
	now := bh.engine.Now()
	days := m.DaysUntilDue(now)
	if days < 0 {
		days = 0
	}
	bh.dispatcher.Send(ctx, chatID, messages.Status(lang, label, string(m.Plan), messages.Date(m.DueDate, bh.engine.Location()), days), nil)
	return nil
}

func (bh *Handlers) adminCommand(ctx context.Context, cmd string, chatID int64) error {
	switch cmd {
	case "/members":
		counts, total, err := bh.engine.Counts(ctx)
		if err != nil {
			return err
		}
		bh.dispatcher.Send(ctx, chatID, messages.AdminMembersSummary(counts, total), nil)
	case "/pending":
		waiting, err := bh.tracker.Waiting(ctx)
		if err != nil {
			return err
		}
		lines := make([]string, 0, len(waiting))
		loc := bh.engine.Location()
		for _, p := range waiting {
			since := ""
			if p.RequestTime != nil {
				since = " since " + messages.DateTime(*p.RequestTime, loc)
			}
			lines = append(lines, fmt.Sprintf("• %s — %s%s", messages.MemberLabel(p.UserID, p.Username), p.Status, since))
		}
		bh.dispatcher.Send(ctx, chatID, messages.AdminPendingList(lines), nil)
	case "/remind_now":
		sum, err := bh.runCheck(ctx)
		if err != nil {
			return err
		}
		bh.dispatcher.Send(ctx, chatID, messages.AdminCheckDone(sum.Reminded, sum.Expired, sum.GraceEnded, sum.Lapsed, sum.Failed), nil)
	}
	return nil
}
