// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/prudentia/pje-monitor/internal/pje"
)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type dbPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close()
}

// PublicationStore implements pje.PublicationStore on Postgres.
type PublicationStore struct {
	pool dbPool
	ids  pje.IDGenerator
}

// NewPublicationStore creates a Postgres-backed PublicationStore using the
// provided config.
func NewPublicationStore(ctx context.Context, cfg Config, ids pje.IDGenerator) (*PublicationStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &PublicationStore{pool: pool, ids: ids}, nil
}

// NewPublicationStoreWithPool constructs a store from an existing pool
// (primarily for testing).
func NewPublicationStoreWithPool(pool dbPool, ids pje.IDGenerator) (*PublicationStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &PublicationStore{pool: pool, ids: ids}, nil
}

// Close releases the underlying pool resources.
func (s *PublicationStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// FindByIdentityHash reports whether a publication with the hash exists.
func (s *PublicationStore) FindByIdentityHash(ctx context.Context, hash string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM publications WHERE identity_hash = $1);`
	var found bool
	if err := s.pool.QueryRow(ctx, query, hash).Scan(&found); err != nil {
		return false, fmt.Errorf("find publication: %w", err)
	}
	return found, nil
}

// CreatePublication inserts a publication row. Conflicting identity hashes
// are silently skipped, so replayed pages never duplicate rows.
func (s *PublicationStore) CreatePublication(ctx context.Context, pub pje.Publication, sub pje.MonitorSubscription) error {
	if pub.IdentityHash == "" {
		return errors.New("publication missing identity hash")
	}
	query := `
		INSERT INTO publications (
			identity_hash,
			subscription_id,
			case_id,
			case_number,
			published_at,
			court,
			content,
			tribunal_name,
			notebook,
			source_url
		) VALUES (
			$1, $2, (SELECT id FROM cases WHERE case_number = $3), $3, $4, $5, $6, $7, $8, $9
		)
		ON CONFLICT (identity_hash) DO NOTHING;
	`
	args := []any{
		pub.IdentityHash,
		sub.ID,
		pje.NormalizeCaseNumber(pub.CaseNumber),
		pub.PublishedAt,
		pub.Court,
		pub.Content,
		pub.TribunalName,
		pub.Notebook,
		pub.SourceURL,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert publication: %w", err)
	}
	return nil
}

// GetOrCreateCase upserts the case row for a case number and returns it.
// Lookups key on the normalized CNJ number.
func (s *PublicationStore) GetOrCreateCase(ctx context.Context, caseNumber string) (pje.CaseRef, error) {
	id, err := s.ids.NewID()
	if err != nil {
		return pje.CaseRef{}, fmt.Errorf("new case id: %w", err)
	}
	// The no-op update makes RETURNING yield the existing row on conflict.
	query := `
		INSERT INTO cases (id, case_number)
		VALUES ($1, $2)
		ON CONFLICT (case_number) DO UPDATE SET case_number = EXCLUDED.case_number
		RETURNING id, case_number;
	`
	var ref pje.CaseRef
	err = s.pool.QueryRow(ctx, query, id, pje.NormalizeCaseNumber(caseNumber)).Scan(&ref.ID, &ref.CaseNumber)
	if err != nil {
		return pje.CaseRef{}, fmt.Errorf("get or create case: %w", err)
	}
	return ref, nil
}

// UpdateLastChecked stamps the subscription's last successful check.
func (s *PublicationStore) UpdateLastChecked(ctx context.Context, subscriptionID uuid.UUID, ts time.Time) error {
	query := `UPDATE monitor_subscriptions SET last_checked_at = $1 WHERE id = $2;`
	tag, err := s.pool.Exec(ctx, query, ts, subscriptionID)
	if err != nil {
		return fmt.Errorf("update last checked: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("subscription %s: %w", subscriptionID, pje.ErrNotFound)
	}
	return nil
}

// RecordMonitorLog appends a cycle outcome row.
func (s *PublicationStore) RecordMonitorLog(ctx context.Context, entry pje.MonitorLog) error {
	query := `
		INSERT INTO monitor_logs (subscription_id, status, found, new_count, error_text, at)
		VALUES ($1, $2, $3, $4, $5, $6);
	`
	args := []any{
		entry.SubscriptionID,
		entry.Status,
		entry.Found,
		entry.New,
		entry.Error,
		entry.At,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert monitor log: %w", err)
	}
	return nil
}

// ListMonitorLogs returns up to limit log rows, newest first. A limit of
// zero or less returns everything.
func (s *PublicationStore) ListMonitorLogs(ctx context.Context, subscriptionID uuid.UUID, limit int) ([]pje.MonitorLog, error) {
	query := `
		SELECT subscription_id, status, found, new_count, error_text, at
		FROM monitor_logs
		WHERE subscription_id = $1
		ORDER BY at DESC
		LIMIT $2;
	`
	var limitArg any
	if limit > 0 {
		limitArg = limit
	}
	rows, err := s.pool.Query(ctx, query, subscriptionID, limitArg)
	if err != nil {
		return nil, fmt.Errorf("list monitor logs: %w", err)
	}
	defer rows.Close()

	var logs []pje.MonitorLog
	for rows.Next() {
		var entry pje.MonitorLog
		err := rows.Scan(
			&entry.SubscriptionID,
			&entry.Status,
			&entry.Found,
			&entry.New,
			&entry.Error,
			&entry.At,
		)
		if err != nil {
			return nil, fmt.Errorf("scan monitor log row: %w", err)
		}
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read monitor log rows: %w", err)
	}
	return logs, nil
}

// CreateSubscription inserts a new subscription row. The caller assigns the ID.
func (s *PublicationStore) CreateSubscription(ctx context.Context, sub pje.MonitorSubscription) error {
	if sub.ID == uuid.Nil {
		return errors.New("subscription id is required")
	}
	query := `
		INSERT INTO monitor_subscriptions (id, bar_number, state_code, is_active, interval_hours, last_checked_at)
		VALUES ($1, $2, $3, $4, $5, $6);
	`
	args := []any{
		sub.ID,
		sub.BarNumber,
		sub.StateCode,
		sub.IsActive,
		sub.IntervalHours,
		sub.LastCheckedAt,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert subscription: %w", err)
	}
	return nil
}

// GetSubscription fetches a subscription by ID.
func (s *PublicationStore) GetSubscription(ctx context.Context, id uuid.UUID) (pje.MonitorSubscription, error) {
	query := `
		SELECT id, bar_number, state_code, is_active, interval_hours, last_checked_at
		FROM monitor_subscriptions
		WHERE id = $1;
	`
	var sub pje.MonitorSubscription
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&sub.ID,
		&sub.BarNumber,
		&sub.StateCode,
		&sub.IsActive,
		&sub.IntervalHours,
		&sub.LastCheckedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return pje.MonitorSubscription{}, fmt.Errorf("subscription %s: %w", id, pje.ErrNotFound)
		}
		return pje.MonitorSubscription{}, fmt.Errorf("get subscription: %w", err)
	}
	return sub, nil
}

// ListSubscriptions returns subscriptions, optionally only active ones.
// UUIDv7 primary keys order by creation time.
func (s *PublicationStore) ListSubscriptions(ctx context.Context, activeOnly bool) ([]pje.MonitorSubscription, error) {
	query := `
		SELECT id, bar_number, state_code, is_active, interval_hours, last_checked_at
		FROM monitor_subscriptions
		WHERE (NOT $1::boolean) OR is_active
		ORDER BY id;
	`
	rows, err := s.pool.Query(ctx, query, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []pje.MonitorSubscription
	for rows.Next() {
		var sub pje.MonitorSubscription
		err := rows.Scan(
			&sub.ID,
			&sub.BarNumber,
			&sub.StateCode,
			&sub.IsActive,
			&sub.IntervalHours,
			&sub.LastCheckedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan subscription row: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read subscription rows: %w", err)
	}
	return subs, nil
}

// SetSubscriptionActive pauses or resumes a subscription.
func (s *PublicationStore) SetSubscriptionActive(ctx context.Context, id uuid.UUID, active bool) error {
	query := `UPDATE monitor_subscriptions SET is_active = $1 WHERE id = $2;`
	tag, err := s.pool.Exec(ctx, query, active, id)
	if err != nil {
		return fmt.Errorf("set subscription active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("subscription %s: %w", id, pje.ErrNotFound)
	}
	return nil
}
