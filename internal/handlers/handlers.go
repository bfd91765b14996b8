package handlers

import (
	"context"
	"log"
	"time"

	"github.com/BatmanBruc/club-membership-bot/internal/access"
	"github.com/BatmanBruc/club-membership-bot/internal/contextkeys"
	"github.com/BatmanBruc/club-membership-bot/internal/i18n"
	"github.com/BatmanBruc/club-membership-bot/internal/leaderboard"
	"github.com/BatmanBruc/club-membership-bot/internal/membership"
	"github.com/BatmanBruc/club-membership-bot/internal/messages"
	"github.com/BatmanBruc/club-membership-bot/internal/notify"
	"github.com/BatmanBruc/club-membership-bot/internal/pending"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

type Deps struct {
	Tracker     *pending.Tracker
	Engine      *membership.Engine
	Leaderboard *leaderboard.Board
	Dispatcher  *notify.Dispatcher
	Admins      *access.Admins
	// RunPaymentCheck backs /remind_now.
	RunPaymentCheck func(ctx context.Context) (membership.Summary, error)
}

type Handlers struct {
	tracker    *pending.Tracker
	engine     *membership.Engine
	board      *leaderboard.Board
	dispatcher *notify.Dispatcher
	admins     *access.Admins
	runCheck   func(ctx context.Context) (membership.Summary, error)
}

func NewHandlers(deps Deps) *Handlers {
	runCheck := deps.RunPaymentCheck
	if runCheck == nil && deps.Engine != nil {
		runCheck = deps.Engine.RunPaymentCheck
	}
	return &Handlers{
		tracker:    deps.Tracker,
		engine:     deps.Engine,
		board:      deps.Leaderboard,
		dispatcher: deps.Dispatcher,
		admins:     deps.Admins,
		runCheck:   runCheck,
	}
}

func langFromCtx(ctx context.Context) i18n.Lang {
	if v, ok := contextkeys.GetLang(ctx); ok {
		return i18n.Parse(v)
	}
	return i18n.EN
}

func senderFromMessage(ctx context.Context, msg *models.Message) pending.Sender {
	s := pending.Sender{UserID: msg.Chat.ID, Lang: langFromCtx(ctx)}
	if msg.From != nil {
		s.UserID = msg.From.ID
		s.Username = msg.From.Username
	}
	return s
}

// MainHandler is the bot's default handler; AnalyzeMessageMiddleware has
// already classified the update.
func (bh *Handlers) MainHandler(ctx context.Context, b *bot.Bot, update *models.Update) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	messageType, _ := contextkeys.GetMessageType(ctx)
	switch messageType {
	case contextkeys.MessageTypeClickButton:
		bh.HandleClickButton(ctx, b, update)
	case contextkeys.MessageTypeGroup:
		bh.HandleGroupMessage(ctx, b, update)
	case contextkeys.MessageTypeCommand:
		bh.HandleCommand(ctx, b, update)
	case contextkeys.MessageTypePhoto:
		bh.HandlePhoto(ctx, b, update)
	case contextkeys.MessageTypeText:
		bh.HandleText(ctx, b, update)
	default:
		if update.Message != nil && string(update.Message.Chat.Type) == "private" {
			bh.dispatcher.Send(ctx, update.Message.Chat.ID, messages.ErrorUnsupportedMessageType(langFromCtx(ctx)), nil)
		}
	}
}

// reportError logs an unexpected failure and tells the user to retry.
func (bh *Handlers) reportError(ctx context.Context, chatID int64, lang i18n.Lang, err error) {
	log.Printf("Error handling update from %d: %v", chatID, err)
	bh.dispatcher.Send(ctx, chatID, messages.ErrorDefault(lang), nil)
}

// HandleGroupMessage scores activity in the community group.
func (bh *Handlers) HandleGroupMessage(ctx context.Context, _ *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil || msg.From.IsBot || bh.board == nil {
		return
	}
	if err := bh.board.Record(ctx, msg.From.ID, msg.From.Username); err != nil {
		log.Printf("Failed to record group activity: %v", err)
	}
}
