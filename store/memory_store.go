package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/BatmanBruc/club-membership-bot/types"
	"github.com/google/uuid"
)

// MemoryStore implements every record store in process memory. It backs
// STORE_BACKEND=memory and the package tests of the bot.
type MemoryStore struct {
	mu          sync.RWMutex
	memberships map[int64]*types.Membership
	pending     map[int64]*types.PendingRequest
	traces      map[int64]*types.ReminderTrace
	settings    map[string]string
	oldMembers  map[int64]types.ConfirmedOldMember
	boards      map[string]map[int64]int64
	names       map[int64]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		memberships: make(map[int64]*types.Membership),
		pending:     make(map[int64]*types.PendingRequest),
		traces:      make(map[int64]*types.ReminderTrace),
		settings:    make(map[string]string),
		oldMembers:  make(map[int64]types.ConfirmedOldMember),
		boards:      make(map[string]map[int64]int64),
		names:       make(map[int64]string),
	}
}

func (s *MemoryStore) GetMembership(_ context.Context, userID int64) (*types.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.memberships[userID]
	if !ok {
		return nil, fmt.Errorf("membership %d: %w", userID, types.ErrNotFound)
	}
	return m.Clone(), nil
}

func (s *MemoryStore) ListMemberships(_ context.Context) ([]*types.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*types.Membership, 0, len(s.memberships))
	for _, m := range s.memberships {
		out = append(out, m.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (s *MemoryStore) UpsertMembership(_ context.Context, m *types.Membership) error {
	if !m.State.Valid() {
		return fmt.Errorf("membership %d: invalid state %q", m.UserID, m.State)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.memberships[m.UserID]
	switch {
	case m.Version == 0 && exists:
		return fmt.Errorf("membership %d already exists: %w", m.UserID, types.ErrVersionConflict)
	case m.Version != 0 && (!exists || current.Version != m.Version):
		return fmt.Errorf("membership %d at version %d: %w", m.UserID, m.Version, types.ErrVersionConflict)
	}

	now := time.Now().UTC()
	if !exists {
		m.CreatedAt = now
	}
	m.UpdatedAt = now
	m.DueDate = m.DueDate.UTC().Truncate(time.Second)
	if m.State != types.StateGrace {
		m.GraceEndDate = nil
	} else if m.GraceEndDate != nil {
		t := m.GraceEndDate.UTC().Truncate(time.Second)
		m.GraceEndDate = &t
	}
	m.Version++
	s.memberships[m.UserID] = m.Clone()
	return nil
}

func clonePending(p *types.PendingRequest) *types.PendingRequest {
	c := *p
	if p.RequestTime != nil {
		t := *p.RequestTime
		c.RequestTime = &t
	}
	if p.AdminMessages != nil {
		c.AdminMessages = make(map[int64]int, len(p.AdminMessages))
		for k, v := range p.AdminMessages {
			c.AdminMessages[k] = v
		}
	}
	return &c
}

func (s *MemoryStore) GetPending(_ context.Context, userID int64) (*types.PendingRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pending[userID]
	if !ok {
		return nil, fmt.Errorf("pending request %d: %w", userID, types.ErrNotFound)
	}
	return clonePending(p), nil
}

func (s *MemoryStore) ListPending(_ context.Context) ([]*types.PendingRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*types.PendingRequest, 0, len(s.pending))
	for _, p := range s.pending {
		out = append(out, clonePending(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (s *MemoryStore) SavePending(_ context.Context, p *types.PendingRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	s.pending[p.UserID] = clonePending(p)
	return nil
}

func (s *MemoryStore) DeletePending(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, userID)
	return nil
}

func cloneTrace(t *types.ReminderTrace) *types.ReminderTrace {
	c := *t
	if t.AdminMessages != nil {
		c.AdminMessages = make(map[int64]int, len(t.AdminMessages))
		for k, v := range t.AdminMessages {
			c.AdminMessages[k] = v
		}
	}
	return &c
}

func (s *MemoryStore) GetTrace(_ context.Context, userID int64) (*types.ReminderTrace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.traces[userID]
	if !ok {
		return nil, fmt.Errorf("reminder trace %d: %w", userID, types.ErrNotFound)
	}
	return cloneTrace(t), nil
}

func (s *MemoryStore) ListTraces(_ context.Context) ([]*types.ReminderTrace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*types.ReminderTrace, 0, len(s.traces))
	for _, t := range s.traces {
		out = append(out, cloneTrace(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (s *MemoryStore) PutTrace(_ context.Context, t *types.ReminderTrace) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	s.traces[t.UserID] = cloneTrace(t)
	return nil
}

func (s *MemoryStore) DeleteTrace(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.traces, userID)
	return nil
}

func (s *MemoryStore) GetSetting(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.settings[key]
	if !ok {
		return "", fmt.Errorf("setting %s: %w", key, types.ErrNotFound)
	}
	return v, nil
}

func (s *MemoryStore) SetSetting(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[key] = value
	return nil
}

func (s *MemoryStore) AllSettings(_ context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.settings))
	for k, v := range s.settings {
		out[k] = v
	}
	return out, nil
}

func (s *MemoryStore) IsConfirmedOldMember(_ context.Context, userID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.oldMembers[userID]
	return ok, nil
}

func (s *MemoryStore) ConfirmOldMember(_ context.Context, m types.ConfirmedOldMember) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.oldMembers[m.UserID]; ok {
		return nil
	}
	if m.ConfirmedAt.IsZero() {
		m.ConfirmedAt = time.Now().UTC()
	}
	s.oldMembers[m.UserID] = m
	return nil
}

func (s *MemoryStore) ListConfirmedOldMembers(_ context.Context) ([]types.ConfirmedOldMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.ConfirmedOldMember, 0, len(s.oldMembers))
	for _, m := range s.oldMembers {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (s *MemoryStore) AddScore(_ context.Context, board string, userID int64, username string, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.boards[board]
	if !ok {
		b = make(map[int64]int64)
		s.boards[board] = b
	}
	b[userID] += delta
	if username != "" {
		s.names[userID] = username
	}
	return nil
}

func (s *MemoryStore) Top(_ context.Context, board string, n int) ([]types.LeaderboardEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.LeaderboardEntry, 0, len(s.boards[board]))
	for id, score := range s.boards[board] {
		out = append(out, types.LeaderboardEntry{UserID: id, Username: s.names[id], Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].UserID < out[j].UserID
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (s *MemoryStore) DropBoard(_ context.Context, board string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.boards, board)
	return nil
}
