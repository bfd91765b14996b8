package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/BatmanBruc/club-membership-bot/types"
	"github.com/google/uuid"
)

type pendingDoc struct {
	ID            string         `json:"id"`
	UserID        int64          `json:"user_id"`
	Username      string         `json:"username,omitempty"`
	Language      string         `json:"language,omitempty"`
	Status        string         `json:"status"`
	Plan          string         `json:"plan,omitempty"`
	Method        string         `json:"method,omitempty"`
	ProofFileID   string         `json:"proof_file_id,omitempty"`
	RequestTime   string         `json:"request_time,omitempty"`
	ReminderSent  bool           `json:"reminder_sent"`
	AdminMessages map[string]int `json:"admin_messages,omitempty"`
	CreatedAt     string         `json:"created_at"`
	UpdatedAt     string         `json:"updated_at"`
}

type RedisPendingStore struct {
	client *RedisClient
	ttl    time.Duration
}

func NewRedisPendingStore(redisClient *RedisClient, ttlHours int) *RedisPendingStore {
	ttl := time.Duration(ttlHours) * time.Hour
	if ttlHours <= 0 {
		ttl = 7 * 24 * time.Hour
	}

	return &RedisPendingStore{
		client: redisClient,
		ttl:    ttl,
	}
}

func (s *RedisPendingStore) key(userID int64) string {
	return s.client.generateKey("pending_requests", strconv.FormatInt(userID, 10))
}

func (s *RedisPendingStore) GetPending(ctx context.Context, userID int64) (*types.PendingRequest, error) {
	var doc pendingDoc
	if err := s.client.Get(ctx, s.key(userID), &doc); err != nil {
		return nil, err
	}
	return pendingFromDoc(doc)
}

func (s *RedisPendingStore) ListPending(ctx context.Context) ([]*types.PendingRequest, error) {
	keys, err := s.client.Keys(ctx, s.client.generateKey("pending_requests", "*"))
	if err != nil {
		return nil, err
	}

	out := make([]*types.PendingRequest, 0, len(keys))
	for _, key := range keys {
		var doc pendingDoc
		if err := s.client.Get(ctx, key, &doc); err != nil {
			if !errors.Is(err, types.ErrNotFound) {
				log.Printf("Pending store: failed to read %s: %v", key, err)
			}
			continue
		}
		p, err := pendingFromDoc(doc)
		if err != nil {
			log.Printf("Pending store: skipping malformed %s: %v", key, err)
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *RedisPendingStore) SavePending(ctx context.Context, p *types.PendingRequest) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	return s.client.Set(ctx, s.key(p.UserID), pendingToDoc(p), s.ttlFor(p.Status))
}

// ttlFor lets abandoned flows expire. A request parked with admins is kept
// until someone decides it.
func (s *RedisPendingStore) ttlFor(status types.PendingStatus) time.Duration {
	if status.AwaitsAdmin() {
		return 0
	}
	return s.ttl
}

func (s *RedisPendingStore) DeletePending(ctx context.Context, userID int64) error {
	return s.client.Del(ctx, s.key(userID))
}

func pendingToDoc(p *types.PendingRequest) pendingDoc {
	doc := pendingDoc{
		ID:           p.ID,
		UserID:       p.UserID,
		Username:     p.Username,
		Language:     p.Language,
		Status:       string(p.Status),
		Plan:         string(p.Plan),
		Method:       p.Method,
		ProofFileID:  p.ProofFileID,
		RequestTime:  types.FormatTimestampPtr(p.RequestTime),
		ReminderSent: p.ReminderSent,
		CreatedAt:    types.FormatTimestamp(p.CreatedAt),
		UpdatedAt:    types.FormatTimestamp(p.UpdatedAt),
	}
	if len(p.AdminMessages) > 0 {
		doc.AdminMessages = encodeMessageMap(p.AdminMessages)
	}
	return doc
}

func pendingFromDoc(doc pendingDoc) (*types.PendingRequest, error) {
	p := &types.PendingRequest{
		ID:           doc.ID,
		UserID:       doc.UserID,
		Username:     doc.Username,
		Language:     doc.Language,
		Status:       types.PendingStatus(doc.Status),
		Plan:         types.Plan(doc.Plan),
		Method:       doc.Method,
		ProofFileID:  doc.ProofFileID,
		ReminderSent: doc.ReminderSent,
	}
	var err error
	if p.RequestTime, err = types.ParseTimestampPtr(doc.RequestTime); err != nil {
		return nil, fmt.Errorf("request_time: %w", err)
	}
	if p.CreatedAt, err = types.ParseTimestamp(doc.CreatedAt); err != nil {
		return nil, fmt.Errorf("created_at: %w", err)
	}
	if p.UpdatedAt, err = types.ParseTimestamp(doc.UpdatedAt); err != nil {
		return nil, fmt.Errorf("updated_at: %w", err)
	}
	if p.AdminMessages, err = decodeMessageMap(doc.AdminMessages); err != nil {
		return nil, err
	}
	return p, nil
}

// JSON object keys must be strings, so admin ids are stored in decimal.
func encodeMessageMap(m map[int64]int) map[string]int {
	out := make(map[string]int, len(m))
	for id, msgID := range m {
		out[strconv.FormatInt(id, 10)] = msgID
	}
	return out
}

func decodeMessageMap(m map[string]int) (map[int64]int, error) {
	if len(m) == 0 {
		return nil, nil
	}
	out := make(map[int64]int, len(m))
	for k, v := range m {
		id, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("admin id %q: %w", k, err)
		}
		out[id] = v
	}
	return out, nil
}
