package store

import (
	"context"
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/BatmanBruc/club-membership-bot/types"
)

type traceDoc struct {
	UserID        int64          `json:"user_id"`
	UserMessageID int            `json:"user_message_id,omitempty"`
	AdminMessages map[string]int `json:"admin_messages,omitempty"`
	CreatedAt     string         `json:"created_at"`
}

// RedisTraceStore keeps reminder traces without expiry; the midnight cleanup
// job is what empties the collection.
type RedisTraceStore struct {
	client *RedisClient
}

func NewRedisTraceStore(redisClient *RedisClient) *RedisTraceStore {
	return &RedisTraceStore{client: redisClient}
}

func (s *RedisTraceStore) key(userID int64) string {
	return s.client.generateKey("reminder_traces", strconv.FormatInt(userID, 10))
}

func (s *RedisTraceStore) GetTrace(ctx context.Context, userID int64) (*types.ReminderTrace, error) {
	var doc traceDoc
	if err := s.client.Get(ctx, s.key(userID), &doc); err != nil {
		return nil, err
	}
	return traceFromDoc(doc)
}

func (s *RedisTraceStore) ListTraces(ctx context.Context) ([]*types.ReminderTrace, error) {
	keys, err := s.client.Keys(ctx, s.client.generateKey("reminder_traces", "*"))
	if err != nil {
		return nil, err
	}
	out := make([]*types.ReminderTrace, 0, len(keys))
	for _, key := range keys {
		var doc traceDoc
		if err := s.client.Get(ctx, key, &doc); err != nil {
			if !errors.Is(err, types.ErrNotFound) {
				log.Printf("Trace store: failed to read %s: %v", key, err)
			}
			continue
		}
		t, err := traceFromDoc(doc)
		if err != nil {
			log.Printf("Trace store: skipping malformed %s: %v", key, err)
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *RedisTraceStore) PutTrace(ctx context.Context, t *types.ReminderTrace) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	doc := traceDoc{
		UserID:        t.UserID,
		UserMessageID: t.UserMessageID,
		CreatedAt:     types.FormatTimestamp(t.CreatedAt),
	}
	if len(t.AdminMessages) > 0 {
		doc.AdminMessages = encodeMessageMap(t.AdminMessages)
	}
	return s.client.Set(ctx, s.key(t.UserID), doc, 0)
}

func (s *RedisTraceStore) DeleteTrace(ctx context.Context, userID int64) error {
	return s.client.Del(ctx, s.key(userID))
}

func traceFromDoc(doc traceDoc) (*types.ReminderTrace, error) {
	created, err := types.ParseTimestamp(doc.CreatedAt)
	if err != nil {
		return nil, err
	}
	admins, err := decodeMessageMap(doc.AdminMessages)
	if err != nil {
		return nil, err
	}
	return &types.ReminderTrace{
		UserID:        doc.UserID,
		UserMessageID: doc.UserMessageID,
		AdminMessages: admins,
		CreatedAt:     created,
	}, nil
}
