// Package leaderboard counts group activity per day and per month and posts
// the standings at midnight.
package leaderboard

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/BatmanBruc/club-membership-bot/internal/messages"
	"github.com/BatmanBruc/club-membership-bot/internal/notify"
	"github.com/BatmanBruc/club-membership-bot/types"
)

const TopN = 10

func DayBoard(t time.Time) string   { return "day:" + t.Format("2006-01-02") }
func MonthBoard(t time.Time) string { return "month:" + t.Format("2006-01") }

type Board struct {
	store      types.LeaderboardStore
	dispatcher *notify.Dispatcher
	groupID    int64
	location   *time.Location
	now        func() time.Time
}

func NewBoard(store types.LeaderboardStore, dispatcher *notify.Dispatcher, groupID int64, location *time.Location) *Board {
	if location == nil {
		location = time.UTC
	}
	return &Board{
		store:      store,
		dispatcher: dispatcher,
		groupID:    groupID,
		location:   location,
		now:        time.Now,
	}
}

func (b *Board) SetClock(now func() time.Time) { b.now = now }

// Record counts one group message from userID.
func (b *Board) Record(ctx context.Context, userID int64, username string) error {
	local := b.now().In(b.location)
	for _, board := range []string{DayBoard(local), MonthBoard(local)} {
		if err := b.store.AddScore(ctx, board, userID, username, 1); err != nil {
			return fmt.Errorf("failed to score %s for %d: %w", board, userID, err)
		}
	}
	return nil
}

func lines(entries []types.LeaderboardEntry) []messages.BoardLine {
	out := make([]messages.BoardLine, 0, len(entries))
	for _, e := range entries {
		name := e.Username
		if name == "" {
			name = fmt.Sprintf("%d", e.UserID)
		} else {
			name = "@" + name
		}
		out = append(out, messages.BoardLine{Name: name, Score: e.Score})
	}
	return out
}

// PostDaily runs just after midnight: it posts the finished day and, when
// that day closed a month, the monthly roll-up too.
func (b *Board) PostDaily(ctx context.Context) error {
	yesterday := b.now().In(b.location).AddDate(0, 0, -1)

	if err := b.post(ctx, DayBoard(yesterday), "Top of "+yesterday.Format("02 Jan 2006")); err != nil {
		return err
	}
	if yesterday.AddDate(0, 0, 1).Day() != 1 {
		return nil
	}
	return b.post(ctx, MonthBoard(yesterday), "Top of "+yesterday.Format("January 2006"))
}

func (b *Board) post(ctx context.Context, board, title string) error {
	top, err := b.store.Top(ctx, board, TopN)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", board, err)
	}
	if b.groupID != 0 {
		b.dispatcher.Send(ctx, b.groupID, messages.Leaderboard(title, lines(top)), nil)
	}
	if err := b.store.DropBoard(ctx, board); err != nil {
		log.Printf("Failed to drop leaderboard %s: %v", board, err)
	}
	return nil
}
