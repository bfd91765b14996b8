package store

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync"

	"github.com/BatmanBruc/club-membership-bot/types"
)

// MembershipCache mirrors a MembershipStore in memory. Reads are served from
// the mirror (read-through on miss), writes go to the backend first and only
// then replace the mirrored copy. Reload swaps in a fresh snapshot.
type MembershipCache struct {
	backend types.MembershipStore

	mu      sync.RWMutex
	records map[int64]*types.Membership
	loaded  bool
}

func NewMembershipCache(backend types.MembershipStore) *MembershipCache {
	return &MembershipCache{
		backend: backend,
		records: make(map[int64]*types.Membership),
	}
}

func (c *MembershipCache) Reload(ctx context.Context) error {
	all, err := c.backend.ListMemberships(ctx)
	if err != nil {
		return err
	}
	next := make(map[int64]*types.Membership, len(all))
	for _, m := range all {
		next[m.UserID] = m
	}

	c.mu.Lock()
	c.records = next
	c.loaded = true
	c.mu.Unlock()

	log.Printf("Membership cache reloaded: %d records", len(next))
	return nil
}

func (c *MembershipCache) GetMembership(ctx context.Context, userID int64) (*types.Membership, error) {
	c.mu.RLock()
	m, ok := c.records[userID]
	c.mu.RUnlock()
	if ok {
		return m.Clone(), nil
	}

	m, err := c.backend.GetMembership(ctx, userID)
	if err != nil {
		return nil, err
	}
	c.put(m)
	return m.Clone(), nil
}

func (c *MembershipCache) ListMemberships(ctx context.Context) ([]*types.Membership, error) {
	c.mu.RLock()
	loaded := c.loaded
	c.mu.RUnlock()
	if !loaded {
		if err := c.Reload(ctx); err != nil {
			return nil, err
		}
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*types.Membership, 0, len(c.records))
	for _, m := range c.records {
		out = append(out, m.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

// UpsertMembership writes through. On a version conflict the mirrored copy
// is refreshed from the backend so the next read sees the winning write.
func (c *MembershipCache) UpsertMembership(ctx context.Context, m *types.Membership) error {
	if err := c.backend.UpsertMembership(ctx, m); err != nil {
		if errors.Is(err, types.ErrVersionConflict) {
			if fresh, gerr := c.backend.GetMembership(ctx, m.UserID); gerr == nil {
				c.put(fresh)
			}
		}
		return err
	}
	c.put(m.Clone())
	return nil
}

func (c *MembershipCache) put(m *types.Membership) {
	c.mu.Lock()
	c.records[m.UserID] = m
	c.mu.Unlock()
}
