package middleware

import (
	"context"
	"testing"

	"github.com/BatmanBruc/club-membership-bot/internal/contextkeys"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
)

const group = int64(-1003)

func classify(t *testing.T, update *models.Update) context.Context {
	t.Helper()
	var got context.Context
	h := NewMessageAnalyzer(group).AnalyzeMessageMiddleware(func(ctx context.Context, _ *bot.Bot, _ *models.Update) {
		got = ctx
	})
	h(context.Background(), nil, update)
	return got
}

func private(msg models.Message) *models.Update {
	msg.Chat = models.Chat{ID: 5, Type: "private"}
	msg.From = &models.User{ID: 5, LanguageCode: "ru"}
	return &models.Update{Message: &msg}
}

func TestClassification(t *testing.T) {
	cases := []struct {
		name   string
		update *models.Update
		want   contextkeys.MessageType
	}{
		{"command", private(models.Message{Text: "/start"}), contextkeys.MessageTypeCommand},
		{"text", private(models.Message{Text: "Monthly"}), contextkeys.MessageTypeText},
		{"photo", private(models.Message{Photo: []models.PhotoSize{{FileID: "small", FileSize: 10}, {FileID: "big", FileSize: 99}}}), contextkeys.MessageTypePhoto},
		{"image document", private(models.Message{Document: &models.Document{FileID: "doc", MimeType: "image/png"}}), contextkeys.MessageTypePhoto},
		{"pdf document", private(models.Message{Document: &models.Document{FileID: "doc", MimeType: "application/pdf"}}), contextkeys.MessageTypeUnknown},
		{"group", &models.Update{Message: &models.Message{Text: "hi", Chat: models.Chat{ID: group, Type: "supergroup"}, From: &models.User{ID: 9}}}, contextkeys.MessageTypeGroup},
		{"other group", &models.Update{Message: &models.Message{Text: "hi", Chat: models.Chat{ID: -1, Type: "group"}, From: &models.User{ID: 9}}}, contextkeys.MessageTypeUnknown},
		{"button", &models.Update{CallbackQuery: &models.CallbackQuery{ID: "cb", Data: "pay:approve:5", From: models.User{ID: 1}}}, contextkeys.MessageTypeClickButton},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := classify(t, tc.update)
			got, _ := contextkeys.GetMessageType(ctx)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestPhotoPicksLargestSize(t *testing.T) {
	ctx := classify(t, private(models.Message{Photo: []models.PhotoSize{{FileID: "small", FileSize: 10}, {FileID: "big", FileSize: 99}}}))
	id, ok := contextkeys.GetFileID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "big", id)
	lang, _ := contextkeys.GetLang(ctx)
	assert.Equal(t, "ru", lang)
}

func TestRecoverMiddleware(t *testing.T) {
	h := NewMessageAnalyzer(0).RecoverMiddleware(func(context.Context, *bot.Bot, *models.Update) {
		panic("boom")
	})
	assert.NotPanics(t, func() { h(context.Background(), nil, &models.Update{ID: 1}) })
}
