package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/BatmanBruc/club-membership-bot/internal/contextkeys"
	"github.com/BatmanBruc/club-membership-bot/internal/messages"
	"github.com/BatmanBruc/club-membership-bot/internal/notify"
	"github.com/BatmanBruc/club-membership-bot/internal/utils"
	"github.com/BatmanBruc/club-membership-bot/types"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// HandleClickButton routes admin decision buttons to the engine.
func (bh *Handlers) HandleClickButton(ctx context.Context, _ *bot.Bot, update *models.Update) {
	cq := update.CallbackQuery
	if cq == nil {
		return
	}
	lang := langFromCtx(ctx)
	data, _ := contextkeys.GetCallbackData(ctx)
	if data == "" {
		data = cq.Data
	}
	adminID := cq.From.ID

	scope, action, userID, err := utils.ParseCallback(data)
	if err != nil {
		bh.answer(ctx, cq.ID, messages.ErrorDefault(lang))
		return
	}

	err = bh.decide(ctx, adminID, scope, action, userID)
	switch {
	case err == nil:
		bh.answer(ctx, cq.ID, "✅")
	case errors.Is(err, types.ErrUnauthorized):
		log.Printf("Unauthorized decision %q by %d", data, adminID)
		bh.answer(ctx, cq.ID, messages.AccessDenied(lang))
	case errors.Is(err, types.ErrWrongState), errors.Is(err, types.ErrNoPendingRequest), errors.Is(err, types.ErrNotFound):
		bh.answer(ctx, cq.ID, messages.AdminDecisionStale())
		bh.clearPressed(ctx, cq)
	default:
		log.Printf("Decision %q by %d failed: %v", data, adminID, err)
		bh.answer(ctx, cq.ID, messages.ErrorDefault(lang))
	}
}

func (bh *Handlers) decide(ctx context.Context, adminID int64, scope, action string, userID int64) error {
	var err error
	switch scope + ":" + action {
	case utils.ScopePayment + ":" + utils.ActionApprove:
		_, err = bh.engine.ApprovePayment(ctx, adminID, userID)
	case utils.ScopePayment + ":" + utils.ActionReject:
		err = bh.engine.RejectPayment(ctx, adminID, userID)
	case utils.ScopeOldMember + ":" + utils.ActionApprove:
		err = bh.engine.VerifyOldMember(ctx, adminID, userID)
	case utils.ScopeOldMember + ":" + utils.ActionReject:
		err = bh.engine.DenyOldMember(ctx, adminID, userID)
	case utils.ScopeMembership + ":" + utils.ActionGrace:
		_, err = bh.engine.GrantGrace(ctx, adminID, userID)
	case utils.ScopeMembership + ":" + utils.ActionKick:
		_, err = bh.engine.Kick(ctx, adminID, userID)
	case utils.ScopeMembership + ":" + utils.ActionKeep:
		_, err = bh.engine.Keep(ctx, adminID, userID)
	default:
		return fmt.Errorf("unknown decision %s:%s: %w", scope, action, types.ErrInvalidOption)
	}
	return err
}

func (bh *Handlers) answer(ctx context.Context, callbackID, text string) {
	if err := bh.dispatcher.Messenger().AnswerCallback(ctx, callbackID, text, false); err != nil && !notify.IsIgnorable(err) {
		log.Printf("Failed to answer callback %s: %v", callbackID, err)
	}
}

// clearPressed strips the buttons from a prompt that can no longer be acted on.
func (bh *Handlers) clearPressed(ctx context.Context, cq *models.CallbackQuery) {
	if cq.Message.Message == nil {
		return
	}
	m := cq.Message.Message
	bh.dispatcher.ClearButtons(ctx, map[int64]int{m.Chat.ID: m.ID})
}
