package notify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/BatmanBruc/club-membership-bot/types"
	"github.com/go-telegram/bot/models"
)

// Messenger is the part of the chat transport the bot core uses. Every call
// may fail; callers decide whether that matters.
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string, markup models.ReplyMarkup) (int, error)
	SendPhoto(ctx context.Context, chatID int64, fileID, caption string, markup models.ReplyMarkup) (int, error)
	EditMessage(ctx context.Context, chatID int64, messageID int, text string, markup models.ReplyMarkup) error
	ClearButtons(ctx context.Context, chatID int64, messageID int) error
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error
	BanMember(ctx context.Context, chatID, userID int64) error
	UnbanMember(ctx context.Context, chatID, userID int64) error
	CreateInviteLink(ctx context.Context, chatID int64, name string) (string, error)
}

var ignorableFragments = []string{
	"message to delete not found",
	"message can't be deleted",
	"message to edit not found",
	"message is not modified",
	"bot was blocked by the user",
	"user is deactivated",
	"chat not found",
}

// IsIgnorable reports delivery errors that mean "nothing left to do".
func IsIgnorable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, f := range ignorableFragments {
		if strings.Contains(msg, f) {
			return true
		}
	}
	return false
}

// Notice is one reminder or expiry notification about a member. UserText may
// be empty for admin-only notices. AdminText receives whether the member was
// reached so admins can follow up by hand when not.
type Notice struct {
	UserID      int64
	UserText    string
	UserMarkup  models.ReplyMarkup
	AdminText   func(userDelivered bool) string
	AdminMarkup models.ReplyMarkup
}

// Dispatcher sends messages best-effort and keeps the ReminderTrace of each
// member in step with what is visible in chats.
type Dispatcher struct {
	messenger Messenger
	traces    types.TraceStore
	admins    []int64
	now       func() time.Time
}

func NewDispatcher(messenger Messenger, traces types.TraceStore, adminIDs []int64) *Dispatcher {
	return &Dispatcher{
		messenger: messenger,
		traces:    traces,
		admins:    adminIDs,
		now:       time.Now,
	}
}

// SetClock replaces the time source used to stamp traces.
func (d *Dispatcher) SetClock(now func() time.Time) { d.now = now }

func (d *Dispatcher) Messenger() Messenger { return d.messenger }

func (d *Dispatcher) AdminIDs() []int64 {
	out := make([]int64, len(d.admins))
	copy(out, d.admins)
	return out
}

// Send delivers one message and returns its id, or 0 when delivery failed.
func (d *Dispatcher) Send(ctx context.Context, chatID int64, text string, markup models.ReplyMarkup) int {
	id, err := d.messenger.SendMessage(ctx, chatID, text, markup)
	if err != nil {
		log.Printf("Notify: failed to send message to %d: %v", chatID, err)
		return 0
	}
	return id
}

func (d *Dispatcher) SendPhoto(ctx context.Context, chatID int64, fileID, caption string, markup models.ReplyMarkup) int {
	id, err := d.messenger.SendPhoto(ctx, chatID, fileID, caption, markup)
	if err != nil {
		log.Printf("Notify: failed to send photo to %d: %v", chatID, err)
		return 0
	}
	return id
}

// Broadcast sends text to every admin and returns the delivered message ids.
func (d *Dispatcher) Broadcast(ctx context.Context, text string, markup models.ReplyMarkup) map[int64]int {
	out := make(map[int64]int, len(d.admins))
	for _, adminID := range d.admins {
		if id := d.Send(ctx, adminID, text, markup); id != 0 {
			out[adminID] = id
		}
	}
	return out
}

func (d *Dispatcher) BroadcastPhoto(ctx context.Context, fileID, caption string, markup models.ReplyMarkup) map[int64]int {
	out := make(map[int64]int, len(d.admins))
	for _, adminID := range d.admins {
		if id := d.SendPhoto(ctx, adminID, fileID, caption, markup); id != 0 {
			out[adminID] = id
		}
	}
	return out
}

// Delete removes a message, treating already-gone messages as success.
func (d *Dispatcher) Delete(ctx context.Context, chatID int64, messageID int) {
	if chatID == 0 || messageID == 0 {
		return
	}
	if err := d.messenger.DeleteMessage(ctx, chatID, messageID); err != nil && !IsIgnorable(err) {
		log.Printf("Notify: failed to delete message chat=%d msg=%d: %v", chatID, messageID, err)
	}
}

// ClearButtons strips the inline keyboard from admin prompts once decided.
func (d *Dispatcher) ClearButtons(ctx context.Context, prompts map[int64]int) {
	for chatID, msgID := range prompts {
		if err := d.messenger.ClearButtons(ctx, chatID, msgID); err != nil && !IsIgnorable(err) {
			log.Printf("Notify: failed to clear buttons chat=%d msg=%d: %v", chatID, msgID, err)
		}
	}
}

func (d *Dispatcher) deleteTraceMessages(ctx context.Context, t *types.ReminderTrace) {
	if t.UserMessageID != 0 {
		d.Delete(ctx, t.UserID, t.UserMessageID)
	}
	for adminID, msgID := range t.AdminMessages {
		d.Delete(ctx, adminID, msgID)
	}
}

// ClearTrace deletes the previous notification set for a member and forgets it.
func (d *Dispatcher) ClearTrace(ctx context.Context, userID int64) {
	t, err := d.traces.GetTrace(ctx, userID)
	if err != nil {
		if !errors.Is(err, types.ErrNotFound) {
			log.Printf("Notify: failed to load reminder trace for %d: %v", userID, err)
		}
		return
	}
	d.deleteTraceMessages(ctx, t)
	if err := d.traces.DeleteTrace(ctx, userID); err != nil {
		log.Printf("Notify: failed to delete reminder trace for %d: %v", userID, err)
	}
}

// Replace clears the member's previous notification set and sends the new
// one. The trace is stored after every delivered message, so an interrupted
// broadcast leaves no sent message unrecorded.
func (d *Dispatcher) Replace(ctx context.Context, n Notice) *types.ReminderTrace {
	d.ClearTrace(ctx, n.UserID)

	trace := &types.ReminderTrace{
		UserID:    n.UserID,
		CreatedAt: d.now().UTC(),
	}
	delivered := false
	if n.UserText != "" {
		trace.UserMessageID = d.Send(ctx, n.UserID, n.UserText, n.UserMarkup)
		delivered = trace.UserMessageID != 0
		d.putTrace(ctx, trace)
	}
	if n.AdminText != nil {
		text := n.AdminText(delivered)
		for _, adminID := range d.admins {
			id := d.Send(ctx, adminID, text, n.AdminMarkup)
			if id == 0 {
				continue
			}
			if trace.AdminMessages == nil {
				trace.AdminMessages = make(map[int64]int, len(d.admins))
			}
			trace.AdminMessages[adminID] = id
			d.putTrace(ctx, trace)
		}
	}
	return trace
}

func (d *Dispatcher) putTrace(ctx context.Context, t *types.ReminderTrace) {
	if t.Empty() {
		return
	}
	if err := d.traces.PutTrace(ctx, t); err != nil {
		log.Printf("Notify: failed to store reminder trace for %d: %v", t.UserID, err)
	}
}

// ClearAllTraces deletes every outstanding reminder message and forgets the
// traces it listed. Traces written meanwhile are left for the next run. It
// returns the number of traces cleared.
func (d *Dispatcher) ClearAllTraces(ctx context.Context) (int, error) {
	all, err := d.traces.ListTraces(ctx)
	if err != nil {
		return 0, err
	}
	var errs []error
	cleared := 0
	for _, t := range all {
		d.deleteTraceMessages(ctx, t)
		if err := d.traces.DeleteTrace(ctx, t.UserID); err != nil && !errors.Is(err, types.ErrNotFound) {
			errs = append(errs, fmt.Errorf("trace %d: %w", t.UserID, err))
			continue
		}
		cleared++
	}
	return cleared, errors.Join(errs...)
}
