// Package content posts the scheduled daily prompt to the community group.
package content

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/BatmanBruc/club-membership-bot/internal/messages"
	"github.com/BatmanBruc/club-membership-bot/internal/notify"
	"github.com/BatmanBruc/club-membership-bot/types"
)

const KeyPrompts = "content_prompts"

type Poster struct {
	settings   types.SettingsStore
	dispatcher *notify.Dispatcher
	groupID    int64
	location   *time.Location
	now        func() time.Time
}

func NewPoster(settings types.SettingsStore, dispatcher *notify.Dispatcher, groupID int64, location *time.Location) *Poster {
	if location == nil {
		location = time.UTC
	}
	return &Poster{
		settings:   settings,
		dispatcher: dispatcher,
		groupID:    groupID,
		location:   location,
		now:        time.Now,
	}
}

func (p *Poster) SetClock(now func() time.Time) { p.now = now }

// Prompts returns the configured prompts, one per non-empty line.
func (p *Poster) Prompts(ctx context.Context) ([]string, error) {
	raw, err := p.settings.GetSetting(ctx, KeyPrompts)
	if errors.Is(err, types.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out, nil
}

// PromptFor rotates through prompts by day of year.
func PromptFor(prompts []string, day time.Time) string {
	if len(prompts) == 0 {
		return ""
	}
	return prompts[(day.YearDay()-1)%len(prompts)]
}

// Post sends today's prompt to the group. It is a no-op without a group or
// without prompts.
func (p *Poster) Post(ctx context.Context) error {
	if p.groupID == 0 {
		return nil
	}
	prompts, err := p.Prompts(ctx)
	if err != nil {
		return fmt.Errorf("failed to load content prompts: %w", err)
	}
	today := p.now().In(p.location)
	prompt := PromptFor(prompts, today)
	if prompt == "" {
		log.Printf("Content: no prompts configured, skipping post for %s", today.Format("2006-01-02"))
		return nil
	}
	if id := p.dispatcher.Send(ctx, p.groupID, messages.ContentPost(prompt), nil); id == 0 {
		return fmt.Errorf("failed to post content to group %d", p.groupID)
	}
	return nil
}
