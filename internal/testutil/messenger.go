// Package testutil provides test doubles shared by the bot's package tests.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-telegram/bot/models"
)

type SentMessage struct {
	ChatID    int64
	MessageID int
	Text      string
	PhotoID   string
	Markup    models.ReplyMarkup
}

// Buttons returns the callback data of every inline button on the message.
func (m SentMessage) Buttons() []string {
	return ButtonData(m.Markup)
}

type DeletedMessage struct {
	ChatID    int64
	MessageID int
}

// FakeMessenger records every transport call. Chats listed in Blocked fail
// every send with a "blocked by the user" error.
type FakeMessenger struct {
	mu sync.Mutex

	nextID    int
	Sent      []SentMessage
	Deleted   []DeletedMessage
	Cleared   []DeletedMessage
	Edited    []SentMessage
	Answered  []string
	Banned    []int64
	Unbanned  []int64
	Invites   []string
	Blocked   map[int64]bool
	FailBan   bool
	FailLinks bool
}

func NewFakeMessenger() *FakeMessenger {
	return &FakeMessenger{nextID: 100, Blocked: make(map[int64]bool)}
}

func (f *FakeMessenger) Block(chatID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Blocked[chatID] = true
}

func (f *FakeMessenger) record(chatID int64, text, photo string, markup models.ReplyMarkup) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Blocked[chatID] {
		return 0, errors.New("forbidden: bot was blocked by the user")
	}
	f.nextID++
	f.Sent = append(f.Sent, SentMessage{ChatID: chatID, MessageID: f.nextID, Text: text, PhotoID: photo, Markup: markup})
	return f.nextID, nil
}

func (f *FakeMessenger) SendMessage(_ context.Context, chatID int64, text string, markup models.ReplyMarkup) (int, error) {
	return f.record(chatID, text, "", markup)
}

func (f *FakeMessenger) SendPhoto(_ context.Context, chatID int64, fileID, caption string, markup models.ReplyMarkup) (int, error) {
	return f.record(chatID, caption, fileID, markup)
}

func (f *FakeMessenger) EditMessage(_ context.Context, chatID int64, messageID int, text string, markup models.ReplyMarkup) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Edited = append(f.Edited, SentMessage{ChatID: chatID, MessageID: messageID, Text: text, Markup: markup})
	return nil
}

func (f *FakeMessenger) ClearButtons(_ context.Context, chatID int64, messageID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Cleared = append(f.Cleared, DeletedMessage{ChatID: chatID, MessageID: messageID})
	return nil
}

func (f *FakeMessenger) DeleteMessage(_ context.Context, chatID int64, messageID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.Deleted {
		if d.ChatID == chatID && d.MessageID == messageID {
			return errors.New("bad request: message to delete not found")
		}
	}
	f.Deleted = append(f.Deleted, DeletedMessage{ChatID: chatID, MessageID: messageID})
	return nil
}

func (f *FakeMessenger) AnswerCallback(_ context.Context, callbackID, text string, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Answered = append(f.Answered, text)
	return nil
}

func (f *FakeMessenger) BanMember(_ context.Context, _ int64, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailBan {
		return errors.New("bad request: not enough rights to restrict/unrestrict chat member")
	}
	f.Banned = append(f.Banned, userID)
	return nil
}

func (f *FakeMessenger) UnbanMember(_ context.Context, _ int64, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Unbanned = append(f.Unbanned, userID)
	return nil
}

func (f *FakeMessenger) CreateInviteLink(_ context.Context, chatID int64, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailLinks {
		return "", errors.New("bad request: not enough rights to manage chat invite link")
	}
	link := fmt.Sprintf("https://t.me/+invite%d", len(f.Invites)+1)
	f.Invites = append(f.Invites, link)
	return link, nil
}

// To returns the messages sent to one chat, oldest first.
func (f *FakeMessenger) To(chatID int64) []SentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]SentMessage, 0)
	for _, m := range f.Sent {
		if m.ChatID == chatID {
			out = append(out, m)
		}
	}
	return out
}

// Last returns the latest message sent to chatID.
func (f *FakeMessenger) Last(chatID int64) (SentMessage, bool) {
	msgs := f.To(chatID)
	if len(msgs) == 0 {
		return SentMessage{}, false
	}
	return msgs[len(msgs)-1], true
}

// WasDeleted reports whether the given message was deleted.
func (f *FakeMessenger) WasDeleted(chatID int64, messageID int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.Deleted {
		if d.ChatID == chatID && d.MessageID == messageID {
			return true
		}
	}
	return false
}

func (f *FakeMessenger) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Sent = nil
	f.Deleted = nil
	f.Cleared = nil
	f.Edited = nil
	f.Answered = nil
}

// ButtonData flattens the callback data of an inline keyboard, or the texts
// of a reply keyboard.
func ButtonData(markup models.ReplyMarkup) []string {
	out := make([]string, 0)
	switch kb := markup.(type) {
	case *models.InlineKeyboardMarkup:
		for _, row := range kb.InlineKeyboard {
			for _, b := range row {
				out = append(out, b.CallbackData)
			}
		}
	case *models.ReplyKeyboardMarkup:
		for _, row := range kb.Keyboard {
			for _, b := range row {
				out = append(out, b.Text)
			}
		}
	}
	return out
}

// HasButtonPrefix reports whether any button's data starts with prefix.
func HasButtonPrefix(markup models.ReplyMarkup, prefix string) bool {
	for _, d := range ButtonData(markup) {
		if strings.HasPrefix(d, prefix) {
			return true
		}
	}
	return false
}
