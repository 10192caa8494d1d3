package storage

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresPoolStorage is the pgx-native backend for deployments that want
// pool tuning and server-side prepared statements instead of going through
// GORM.
type PostgresPoolStorage struct {
	pool *pgxpool.Pool
}

func OpenPostgresPool(ctx context.Context, dsn string) (*PostgresPoolStorage, error) {
	if dsn == "" {
		dsn = "postgres://localhost:5432/costengine?sslmode=disable"
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return &PostgresPoolStorage{pool: pool}, nil
}

func (s *PostgresPoolStorage) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresPoolStorage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate creates the schema in place. Versioned migrations live in the
// migrate command; this covers fresh databases opened directly.
func (s *PostgresPoolStorage) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS estimate_entries (
			cache_key TEXT PRIMARY KEY,
			home_id TEXT NOT NULL,
			plan_id TEXT NOT NULL,
			status TEXT NOT NULL,
			payload BYTEA,
			computed_at TIMESTAMPTZ NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_estimate_entries_home ON estimate_entries (home_id);`,
		`CREATE INDEX IF NOT EXISTS idx_estimate_entries_expires ON estimate_entries (expires_at);`,
		`CREATE TABLE IF NOT EXISTS quarantine_items (
			id TEXT PRIMARY KEY,
			dedupe_key TEXT NOT NULL UNIQUE,
			plan_id TEXT NOT NULL,
			home_id TEXT,
			reason_code TEXT NOT NULL,
			detail TEXT,
			severity TEXT NOT NULL,
			status TEXT NOT NULL,
			first_seen_at TIMESTAMPTZ NOT NULL,
			last_seen_at TIMESTAMPTZ NOT NULL,
			seen_count INT NOT NULL DEFAULT 1,
			resolved_at TIMESTAMPTZ,
			resolution TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_quarantine_status ON quarantine_items (status);`,
		`CREATE TABLE IF NOT EXISTS interval_readings (
			id BIGSERIAL PRIMARY KEY,
			meter_id TEXT NOT NULL,
			ts TIMESTAMPTZ NOT NULL,
			source TEXT NOT NULL,
			kwh DOUBLE PRECISION NOT NULL,
			minutes INT NOT NULL,
			UNIQUE (meter_id, ts, source)
		);`,
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT,
			updated_at TIMESTAMPTZ
		);`,
		`CREATE TABLE IF NOT EXISTS scheduled_jobs (
			name TEXT PRIMARY KEY,
			last_run_at TIMESTAMPTZ,
			last_duration_ms BIGINT,
			last_success INT,
			last_error TEXT
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Estimate cache

func (s *PostgresPoolStorage) GetEstimate(ctx context.Context, cacheKey string) (*EstimateEntry, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT cache_key, home_id, plan_id, status, payload, computed_at, expires_at
		FROM estimate_entries
		WHERE cache_key=$1
	`, cacheKey)

	var e EstimateEntry
	err := row.Scan(&e.CacheKey, &e.HomeID, &e.PlanID, &e.Status, &e.Payload, &e.ComputedAt, &e.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *PostgresPoolStorage) PutEstimate(ctx context.Context, e EstimateEntry) error {
	if e.ComputedAt.IsZero() {
		e.ComputedAt = time.Now()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO estimate_entries (cache_key, home_id, plan_id, status, payload, computed_at, expires_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (cache_key) DO UPDATE SET
			home_id=EXCLUDED.home_id,
			plan_id=EXCLUDED.plan_id,
			status=EXCLUDED.status,
			payload=EXCLUDED.payload,
			computed_at=EXCLUDED.computed_at,
			expires_at=EXCLUDED.expires_at
	`, e.CacheKey, e.HomeID, e.PlanID, e.Status, e.Payload, e.ComputedAt, e.ExpiresAt)
	return err
}

func (s *PostgresPoolStorage) DeleteEstimate(ctx context.Context, cacheKey string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM estimate_entries WHERE cache_key=$1`, cacheKey)
	return err
}

func (s *PostgresPoolStorage) DeleteEstimatesForHome(ctx context.Context, homeID string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM estimate_entries WHERE home_id=$1`, homeID)
	return tag.RowsAffected(), err
}

func (s *PostgresPoolStorage) PurgeExpiredEstimates(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM estimate_entries WHERE expires_at < $1`, now)
	return tag.RowsAffected(), err
}

// Quarantine queue

func (s *PostgresPoolStorage) UpsertQuarantineItem(ctx context.Context, item QuarantineItem) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO quarantine_items
			(id, dedupe_key, plan_id, home_id, reason_code, detail, severity, status,
			 first_seen_at, last_seen_at, seen_count)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (dedupe_key) DO UPDATE SET
			last_seen_at=EXCLUDED.last_seen_at,
			detail=EXCLUDED.detail,
			seen_count=quarantine_items.seen_count + 1,
			status='open',
			resolved_at=NULL,
			resolution=''
	`, item.ID, item.DedupeKey, item.PlanID, item.HomeID, item.ReasonCode, item.Detail,
		item.Severity, item.Status, item.FirstSeenAt, item.LastSeenAt, item.SeenCount)
	return err
}

func (s *PostgresPoolStorage) GetQuarantineItem(ctx context.Context, id string) (*QuarantineItem, error) {
	return s.scanQuarantineItem(s.pool.QueryRow(ctx, quarantineSelect+` WHERE id=$1`, id))
}

func (s *PostgresPoolStorage) GetQuarantineItemByDedupeKey(ctx context.Context, dedupeKey string) (*QuarantineItem, error) {
	return s.scanQuarantineItem(s.pool.QueryRow(ctx, quarantineSelect+` WHERE dedupe_key=$1`, dedupeKey))
}

const quarantineSelect = `
	SELECT id, dedupe_key, plan_id, home_id, reason_code, detail, severity, status,
	       first_seen_at, last_seen_at, seen_count, resolved_at, COALESCE(resolution, '')
	FROM quarantine_items`

func (s *PostgresPoolStorage) scanQuarantineItem(row pgx.Row) (*QuarantineItem, error) {
	var item QuarantineItem
	err := row.Scan(&item.ID, &item.DedupeKey, &item.PlanID, &item.HomeID, &item.ReasonCode,
		&item.Detail, &item.Severity, &item.Status, &item.FirstSeenAt, &item.LastSeenAt,
		&item.SeenCount, &item.ResolvedAt, &item.Resolution)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *PostgresPoolStorage) ListQuarantineItems(ctx context.Context, status string, limit int) ([]QuarantineItem, error) {
	q := quarantineSelect
	args := []any{}
	if status != "" {
		q += ` WHERE status=$1`
		args = append(args, status)
	}
	q += ` ORDER BY last_seen_at DESC`
	if limit > 0 {
		q += ` LIMIT ` + strconv.Itoa(limit)
	}
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []QuarantineItem
	for rows.Next() {
		item, err := s.scanQuarantineItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *item)
	}
	return out, rows.Err()
}

func (s *PostgresPoolStorage) ResolveQuarantineItem(ctx context.Context, id, resolution string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE quarantine_items
		SET status='resolved', resolved_at=$2, resolution=$3
		WHERE id=$1
	`, id, time.Now(), resolution)
	return err
}

// Interval readings

func (s *PostgresPoolStorage) SaveIntervalReadings(ctx context.Context, readings []IntervalReading) error {
	batch := &pgx.Batch{}
	for _, r := range readings {
		batch.Queue(`
			INSERT INTO interval_readings (meter_id, ts, source, kwh, minutes)
			VALUES ($1,$2,$3,$4,$5)
			ON CONFLICT (meter_id, ts, source) DO UPDATE SET
				kwh=EXCLUDED.kwh,
				minutes=EXCLUDED.minutes
		`, r.MeterID, r.Timestamp, r.Source, r.KWh, r.Minutes)
	}
	return s.pool.SendBatch(ctx, batch).Close()
}

func (s *PostgresPoolStorage) QueryIntervalReadings(ctx context.Context, meterID string, from, to time.Time) ([]IntervalReading, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, meter_id, ts, source, kwh, minutes
		FROM interval_readings
		WHERE meter_id=$1 AND ts >= $2 AND ts <= $3
		ORDER BY ts ASC
	`, meterID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []IntervalReading
	for rows.Next() {
		var r IntervalReading
		if err := rows.Scan(&r.ID, &r.MeterID, &r.Timestamp, &r.Source, &r.KWh, &r.Minutes); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresPoolStorage) LatestIntervalTimestamp(ctx context.Context, meterID string) (time.Time, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT ts FROM interval_readings WHERE meter_id=$1 ORDER BY ts DESC LIMIT 1
	`, meterID)
	var ts time.Time
	err := row.Scan(&ts)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, nil
	}
	return ts, err
}

// Settings

func (s *PostgresPoolStorage) GetSetting(ctx context.Context, key string) (string, error) {
	row := s.pool.QueryRow(ctx, `SELECT value FROM settings WHERE key=$1`, key)
	var value string
	err := row.Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return value, err
}

func (s *PostgresPoolStorage) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO settings (key, value, updated_at)
		VALUES ($1,$2,$3)
		ON CONFLICT (key) DO UPDATE SET value=EXCLUDED.value, updated_at=EXCLUDED.updated_at
	`, key, value, time.Now())
	return err
}

// Scheduled jobs & locking

func (s *PostgresPoolStorage) AcquireAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	var ok bool
	err := s.pool.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, key).Scan(&ok)
	return ok, err
}

func (s *PostgresPoolStorage) ReleaseAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	var ok bool
	err := s.pool.QueryRow(ctx, `SELECT pg_advisory_unlock($1)`, key).Scan(&ok)
	return ok, err
}

func (s *PostgresPoolStorage) UpdateScheduledJob(ctx context.Context, name string, started time.Time, dur time.Duration, success bool, errMsg string) error {
	status := 0
	if success {
		status = 1
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO scheduled_jobs (name, last_run_at, last_duration_ms, last_success, last_error)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (name) DO UPDATE SET
			last_run_at=EXCLUDED.last_run_at,
			last_duration_ms=EXCLUDED.last_duration_ms,
			last_success=EXCLUDED.last_success,
			last_error=EXCLUDED.last_error
	`, name, started, dur.Milliseconds(), status, errMsg)
	return err
}
