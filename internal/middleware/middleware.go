package middleware

import (
	"context"
	"log"
	"runtime/debug"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/BatmanBruc/club-membership-bot/internal/contextkeys"
	"github.com/BatmanBruc/club-membership-bot/internal/i18n"
)

type Middlewares struct {
	groupID int64
}

func NewMessageAnalyzer(groupID int64) *Middlewares {
	return &Middlewares{groupID: groupID}
}

// RecoverMiddleware keeps one bad update from taking the bot down.
func (m *Middlewares) RecoverMiddleware(next bot.HandlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("Panic while handling update %d: %v\n%s", update.ID, r, debug.Stack())
			}
		}()
		next(ctx, b, update)
	}
}

// AnalyzeMessageMiddleware classifies the update and stores the sender's
// language in the context.
func (m *Middlewares) AnalyzeMessageMiddleware(next bot.HandlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		if update.CallbackQuery != nil {
			ctx = contextkeys.WithLang(ctx, string(i18n.FromLanguageCode(update.CallbackQuery.From.LanguageCode)))
			if update.CallbackQuery.Data != "" {
				ctx = contextkeys.WithMessageType(ctx, contextkeys.MessageTypeClickButton)
				ctx = contextkeys.WithCallbackData(ctx, update.CallbackQuery.Data)
			}
			next(ctx, b, update)
			return
		}

		if update.Message == nil {
			next(ctx, b, update)
			return
		}
		msg := update.Message
		if msg.From != nil {
			ctx = contextkeys.WithLang(ctx, string(i18n.FromLanguageCode(msg.From.LanguageCode)))
		}
		ctx = m.analyzeMessage(ctx, msg)
		next(ctx, b, update)
	}
}

func (m *Middlewares) analyzeMessage(ctx context.Context, msg *models.Message) context.Context {
	if string(msg.Chat.Type) != "private" {
		if m.groupID != 0 && msg.Chat.ID != m.groupID {
			return contextkeys.WithMessageType(ctx, contextkeys.MessageTypeUnknown)
		}
		return contextkeys.WithMessageType(ctx, contextkeys.MessageTypeGroup)
	}

	if strings.HasPrefix(msg.Text, "/") {
		return contextkeys.WithMessageType(ctx, contextkeys.MessageTypeCommand)
	}
	if fileID := imageFileID(msg); fileID != "" {
		ctx = contextkeys.WithFileID(ctx, fileID)
		return contextkeys.WithMessageType(ctx, contextkeys.MessageTypePhoto)
	}
	if strings.TrimSpace(msg.Text) != "" {
		return contextkeys.WithMessageType(ctx, contextkeys.MessageTypeText)
	}
	return contextkeys.WithMessageType(ctx, contextkeys.MessageTypeUnknown)
}

// imageFileID picks the largest photo size, or an image sent as a file.
func imageFileID(msg *models.Message) string {
	if len(msg.Photo) > 0 {
		best := msg.Photo[0]
		for i := 1; i < len(msg.Photo); i++ {
			if msg.Photo[i].FileSize > best.FileSize {
				best = msg.Photo[i]
			}
		}
		return best.FileID
	}
	if msg.Document != nil && strings.HasPrefix(strings.ToLower(msg.Document.MimeType), "image/") {
		return msg.Document.FileID
	}
	return ""
}
