package store

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BatmanBruc/club-membership-bot/types"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		dsn = buildPostgresDSNFromEnv()
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s := &PostgresStore{pool: pool}
	if err := s.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func buildPostgresDSNFromEnv() string {
	host := strings.TrimSpace(os.Getenv("POSTGRES_HOST"))
	if host == "" {
		host = "localhost"
	}
	port := strings.TrimSpace(os.Getenv("POSTGRES_PORT"))
	if port == "" {
		port = "5432"
	}
	db := strings.TrimSpace(os.Getenv("POSTGRES_DB"))
	if db == "" {
		db = "club_bot"
	}
	user := strings.TrimSpace(os.Getenv("POSTGRES_USER"))
	if user == "" {
		user = "club_bot"
	}
	pass := os.Getenv("POSTGRES_PASSWORD")
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", urlEscape(user), urlEscape(pass), host, port, db)
}

func urlEscape(s string) string {
	r := strings.NewReplacer(
		"%", "%25",
		":", "%3A",
		"/", "%2F",
		"@", "%40",
		"?", "%3F",
		"#", "%23",
		"[", "%5B",
		"]", "%5D",
	)
	return r.Replace(s)
}

func (s *PostgresStore) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDB(*s.pool.Config().ConnConfig)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, "migrations")
}

func opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, 5*time.Second)
}

const membershipColumns = `user_id, username, language, plan, payment_mode, due_date, state, grace_end_date,
  decision_reason, grace_used, reminder_sent, cancellation_date, last_decision_by, created_at, updated_at, version`

func scanMembership(row pgx.Row) (*types.Membership, error) {
	var (
		m      types.Membership
		plan   string
		state  string
		reason string
	)
	err := row.Scan(&m.UserID, &m.Username, &m.Language, &plan, &m.PaymentMode, &m.DueDate, &state, &m.GraceEndDate,
		&reason, &m.GraceUsed, &m.ReminderSent, &m.CancellationDate, &m.LastDecisionBy, &m.CreatedAt, &m.UpdatedAt, &m.Version)
	if err != nil {
		return nil, err
	}
	m.Plan = types.Plan(plan)
	m.State = types.MembershipState(state)
	m.DecisionReason = types.DecisionReason(reason)
	return &m, nil
}

func (s *PostgresStore) GetMembership(ctx context.Context, userID int64) (*types.Membership, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()
	m, err := scanMembership(s.pool.QueryRow(ctx, `SELECT `+membershipColumns+` FROM memberships WHERE user_id = $1`, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("membership %d: %w", userID, types.ErrNotFound)
		}
		return nil, err
	}
	return m, nil
}

func (s *PostgresStore) ListMemberships(ctx context.Context) ([]*types.Membership, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	rows, err := s.pool.Query(ctx, `SELECT `+membershipColumns+` FROM memberships ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*types.Membership, 0)
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// UpsertMembership inserts a new record when Version is zero and otherwise
// updates only if the stored version still matches.
func (s *PostgresStore) UpsertMembership(ctx context.Context, m *types.Membership) error {
	if !m.State.Valid() {
		return fmt.Errorf("membership %d: invalid state %q", m.UserID, m.State)
	}
	ctx, cancel := opContext(ctx)
	defer cancel()

	now := time.Now().UTC()
	due := m.DueDate.UTC().Truncate(time.Second)
	var graceEnd *time.Time
	if m.State == types.StateGrace && m.GraceEndDate != nil {
		t := m.GraceEndDate.UTC().Truncate(time.Second)
		graceEnd = &t
	}

	if m.Version == 0 {
		tag, err := s.pool.Exec(ctx, `
INSERT INTO memberships (user_id, username, language, plan, payment_mode, due_date, state, grace_end_date,
  decision_reason, grace_used, reminder_sent, cancellation_date, last_decision_by, created_at, updated_at, version)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $14, 1)
ON CONFLICT (user_id) DO NOTHING
`, m.UserID, strings.TrimSpace(m.Username), m.Language, string(m.Plan), strings.TrimSpace(m.PaymentMode), due, string(m.State), graceEnd,
			string(m.DecisionReason), m.GraceUsed, m.ReminderSent, m.CancellationDate, m.LastDecisionBy, now)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("membership %d already exists: %w", m.UserID, types.ErrVersionConflict)
		}
		m.CreatedAt = now
		m.UpdatedAt = now
		m.DueDate = due
		m.GraceEndDate = graceEnd
		m.Version = 1
		return nil
	}

	tag, err := s.pool.Exec(ctx, `
UPDATE memberships SET
  username = $2,
  language = $3,
  plan = $4,
  payment_mode = $5,
  due_date = $6,
  state = $7,
  grace_end_date = $8,
  decision_reason = $9,
  grace_used = $10,
  reminder_sent = $11,
  cancellation_date = $12,
  last_decision_by = $13,
  updated_at = $14,
  version = version + 1
WHERE user_id = $1 AND version = $15
`, m.UserID, strings.TrimSpace(m.Username), m.Language, string(m.Plan), strings.TrimSpace(m.PaymentMode), due, string(m.State), graceEnd,
		string(m.DecisionReason), m.GraceUsed, m.ReminderSent, m.CancellationDate, m.LastDecisionBy, now, m.Version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("membership %d at version %d: %w", m.UserID, m.Version, types.ErrVersionConflict)
	}
	m.UpdatedAt = now
	m.DueDate = due
	m.GraceEndDate = graceEnd
	m.Version++
	return nil
}

func (s *PostgresStore) GetSetting(ctx context.Context, key string) (string, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()
	var value string
	err := s.pool.QueryRow(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("setting %s: %w", key, types.ErrNotFound)
		}
		return "", err
	}
	return value, nil
}

func (s *PostgresStore) SetSetting(ctx context.Context, key, value string) error {
	ctx, cancel := opContext(ctx)
	defer cancel()
	_, err := s.pool.Exec(ctx, `
INSERT INTO settings (key, value)
VALUES ($1, $2)
ON CONFLICT (key) DO UPDATE SET
  value = EXCLUDED.value,
  updated_at = NOW();
`, strings.TrimSpace(key), value)
	return err
}

func (s *PostgresStore) AllSettings(ctx context.Context) (map[string]string, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()
	rows, err := s.pool.Query(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

func (s *PostgresStore) IsConfirmedOldMember(ctx context.Context, userID int64) (bool, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()
	var ok bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM confirmed_old_members WHERE user_id = $1)`, userID).Scan(&ok)
	if err != nil {
		return false, err
	}
	return ok, nil
}

// ConfirmOldMember never overwrites an earlier confirmation.
func (s *PostgresStore) ConfirmOldMember(ctx context.Context, m types.ConfirmedOldMember) error {
	ctx, cancel := opContext(ctx)
	defer cancel()
	if m.ConfirmedAt.IsZero() {
		m.ConfirmedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
INSERT INTO confirmed_old_members (user_id, confirmed_by, confirmed_at)
VALUES ($1, $2, $3)
ON CONFLICT (user_id) DO NOTHING
`, m.UserID, m.ConfirmedBy, m.ConfirmedAt)
	return err
}

func (s *PostgresStore) ListConfirmedOldMembers(ctx context.Context) ([]types.ConfirmedOldMember, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()
	rows, err := s.pool.Query(ctx, `SELECT user_id, confirmed_by, confirmed_at FROM confirmed_old_members ORDER BY confirmed_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]types.ConfirmedOldMember, 0)
	for rows.Next() {
		var m types.ConfirmedOldMember
		if err := rows.Scan(&m.UserID, &m.ConfirmedBy, &m.ConfirmedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
