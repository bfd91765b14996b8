package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

type Config struct {
	BotToken   string
	AdminIDs   []int64
	CreatorIDs []int64
	GroupID    int64

	Location *time.Location

	PaymentCheckTimes    []string
	ContentPostTimes     []string
	ReminderCleanupTime  string
	LeaderboardTime      string
	ReloadInterval       time.Duration
	WaitingReminderAfter time.Duration
	GracePeriod          time.Duration
	UpcomingWindowDays   int
	GraceOfferDays       int
	LoopFallbackDelay    time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string

	StoreBackend    string
	PostgresDSN     string
	PendingTTLHours int

	DashboardAddr      string
	DashboardToken     string
	DashboardRateLimit int
}

func Load() (*Config, error) {
	cfg := &Config{
		BotToken: strings.TrimSpace(os.Getenv("BOT_TOKEN")),
		GroupID:  getEnvInt64("GROUP_CHAT_ID", 0),

		PaymentCheckTimes:    getEnvList("PAYMENT_CHECK_TIMES", []string{"09:00"}),
		ContentPostTimes:     getEnvList("CONTENT_POST_TIMES", []string{"10:00", "18:00"}),
		ReminderCleanupTime:  getEnv("REMINDER_CLEANUP_TIME", "00:00"),
		LeaderboardTime:      getEnv("LEADERBOARD_TIME", "00:00"),
		ReloadInterval:       getEnvDuration("RELOAD_INTERVAL", 30*time.Minute),
		WaitingReminderAfter: getEnvDuration("WAITING_REMINDER_AFTER", 10*time.Minute),
		GracePeriod:          getEnvDuration("GRACE_PERIOD", 48*time.Hour),
		UpcomingWindowDays:   getEnvInt("UPCOMING_WINDOW_DAYS", 3),
		GraceOfferDays:       getEnvInt("GRACE_OFFER_DAYS", 3),
		LoopFallbackDelay:    getEnvDuration("LOOP_FALLBACK_DELAY", 60*time.Second),

		RedisAddr:     fmt.Sprintf("%s:%s", getEnv("REDIS_HOST", "localhost"), getEnv("REDIS_PORT", "6379")),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		RedisPrefix:   getEnv("REDIS_PREFIX", "club_bot"),

		StoreBackend:    strings.ToLower(getEnv("STORE_BACKEND", "postgres")),
		PostgresDSN:     os.Getenv("POSTGRES_DSN"),
		PendingTTLHours: getEnvInt("PENDING_TTL_HOURS", 168),

		DashboardAddr:      strings.TrimSpace(os.Getenv("DASHBOARD_ADDR")),
		DashboardToken:     strings.TrimSpace(os.Getenv("DASHBOARD_TOKEN")),
		DashboardRateLimit: getEnvInt("DASHBOARD_RATE_LIMIT", 60),
	}

	if cfg.BotToken == "" {
		return nil, fmt.Errorf("BOT_TOKEN is required")
	}

	var err error
	if cfg.AdminIDs, err = parseIDList(os.Getenv("ADMIN_IDS")); err != nil {
		return nil, fmt.Errorf("ADMIN_IDS: %w", err)
	}
	if len(cfg.AdminIDs) == 0 {
		return nil, fmt.Errorf("ADMIN_IDS is required")
	}
	if cfg.CreatorIDs, err = parseIDList(os.Getenv("CREATOR_IDS")); err != nil {
		return nil, fmt.Errorf("CREATOR_IDS: %w", err)
	}

	tz := getEnv("TIMEZONE", "Asia/Kolkata")
	if cfg.Location, err = time.LoadLocation(tz); err != nil {
		return nil, fmt.Errorf("TIMEZONE %q: %w", tz, err)
	}

	for _, list := range [][]string{cfg.PaymentCheckTimes, cfg.ContentPostTimes, {cfg.ReminderCleanupTime, cfg.LeaderboardTime}} {
		for _, hm := range list {
			if _, _, err := ParseClock(hm); err != nil {
				return nil, err
			}
		}
	}

	switch cfg.StoreBackend {
	case "postgres", "memory":
	default:
		return nil, fmt.Errorf("STORE_BACKEND must be postgres or memory, got %q", cfg.StoreBackend)
	}

	if cfg.DashboardAddr != "" && cfg.DashboardToken == "" {
		return nil, fmt.Errorf("DASHBOARD_TOKEN is required when DASHBOARD_ADDR is set")
	}

	return cfg, nil
}

// ParseClock parses a wall-clock time of day in HH:MM form.
func ParseClock(s string) (hour, minute int, err error) {
	s = strings.TrimSpace(s)
	h, m, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0, fmt.Errorf("invalid time of day %q, want HH:MM", s)
	}
	hour, err = strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err = strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hour, minute, nil
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	out := make([]string, 0)
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func parseIDList(value string) ([]int64, error) {
	out := make([]int64, 0)
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q", part)
		}
		out = append(out, id)
	}
	return out, nil
}
