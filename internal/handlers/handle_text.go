package handlers

import (
	"context"
	"errors"

	"github.com/BatmanBruc/club-membership-bot/internal/contextkeys"
	"github.com/BatmanBruc/club-membership-bot/types"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// flowOutcome reports whether err was already answered inside the flow.
func flowOutcome(err error) bool {
	return err == nil || errors.Is(err, types.ErrInvalidOption) || errors.Is(err, types.ErrNoPendingRequest)
}

func (bh *Handlers) HandleText(ctx context.Context, _ *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil {
		return
	}
	s := senderFromMessage(ctx, msg)
	if err := bh.tracker.HandleReply(ctx, s, msg.Text); !flowOutcome(err) {
		bh.reportError(ctx, msg.Chat.ID, s.Lang, err)
	}
}

func (bh *Handlers) HandlePhoto(ctx context.Context, _ *bot.Bot, update *models.Update) {
	msg := update.Message
	fileID, ok := contextkeys.GetFileID(ctx)
	if msg == nil || !ok {
		return
	}
	s := senderFromMessage(ctx, msg)
	if err := bh.tracker.HandleProof(ctx, s, fileID); !flowOutcome(err) {
		bh.reportError(ctx, msg.Chat.ID, s.Lang, err)
	}
}
