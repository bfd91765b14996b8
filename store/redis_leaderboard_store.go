package store

import (
	"context"
	"strconv"
	"time"

	"github.com/BatmanBruc/club-membership-bot/types"
	"github.com/go-redis/redis/v8"
)

// RedisLeaderboardStore keeps one sorted set per board plus a hash of the
// last seen usernames so a board can be rendered without the membership table.
type RedisLeaderboardStore struct {
	client *RedisClient
	ttl    time.Duration
}

func NewRedisLeaderboardStore(redisClient *RedisClient) *RedisLeaderboardStore {
	return &RedisLeaderboardStore{
		client: redisClient,
		ttl:    40 * 24 * time.Hour,
	}
}

func (s *RedisLeaderboardStore) boardKey(board string) string {
	return s.client.generateKey("leaderboard", board)
}

func (s *RedisLeaderboardStore) namesKey() string {
	return s.client.generateKey("leaderboard_names")
}

func (s *RedisLeaderboardStore) AddScore(ctx context.Context, board string, userID int64, username string, delta int64) error {
	member := strconv.FormatInt(userID, 10)
	key := s.boardKey(board)

	pipe := s.client.client.TxPipeline()
	pipe.ZIncrBy(ctx, key, float64(delta), member)
	pipe.Expire(ctx, key, s.ttl)
	if username != "" {
		pipe.HSet(ctx, s.namesKey(), member, username)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisLeaderboardStore) Top(ctx context.Context, board string, n int) ([]types.LeaderboardEntry, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := s.client.client.ZRevRangeWithScores(ctx, s.boardKey(board), 0, int64(n-1)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	members := make([]string, 0, len(rows))
	for _, z := range rows {
		if m, ok := z.Member.(string); ok {
			members = append(members, m)
		}
	}
	names, err := s.client.client.HMGet(ctx, s.namesKey(), members...).Result()
	if err != nil {
		names = nil
	}

	out := make([]types.LeaderboardEntry, 0, len(rows))
	for i, z := range rows {
		m, ok := z.Member.(string)
		if !ok {
			continue
		}
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		entry := types.LeaderboardEntry{UserID: id, Score: int64(z.Score)}
		if i < len(names) {
			if name, ok := names[i].(string); ok {
				entry.Username = name
			}
		}
		out = append(out, entry)
	}
	return out, nil
}

func (s *RedisLeaderboardStore) DropBoard(ctx context.Context, board string) error {
	return s.client.Del(ctx, s.boardKey(board))
}
