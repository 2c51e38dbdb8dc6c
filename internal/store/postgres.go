package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const auditWriteMaxTries = 3

// PostgresStore is a PostgreSQL implementation of the Store interface.
//
// Schema (managed by the storefront's migration tooling):
//
//	wheel_participation(identity_key text, ledger text, occurred_at timestamptz)
//	wheel_audit(email text, device_digest text, network_origin text, occurred_at timestamptz)
//	wheel_rewards(id uuid pk, participant_key text, won_at timestamptz,
//	              expires_at timestamptz, payload jsonb, claimed bool)
//	wheel_config(id int pk default 1, segments jsonb, cooldown_hours float8,
//	             updated_at timestamptz)
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// FindLatest returns the most recent participation record for the key.
func (p *PostgresStore) FindLatest(ctx context.Context, ledger Ledger, key string) (*ParticipationRecord, error) {
	const q = `SELECT identity_key, ledger, occurred_at
	             FROM wheel_participation
	            WHERE ledger = $1 AND identity_key = $2
	         ORDER BY occurred_at DESC
	            LIMIT 1`

	var rec ParticipationRecord
	err := p.pool.QueryRow(ctx, q, string(ledger), key).
		Scan(&rec.IdentityKey, &rec.Ledger, &rec.OccurredAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find latest participation: %w", err)
	}
	return &rec, nil
}

// InsertParticipation appends a participation record.
func (p *PostgresStore) InsertParticipation(ctx context.Context, rec ParticipationRecord) error {
	const q = `INSERT INTO wheel_participation (identity_key, ledger, occurred_at)
	           VALUES ($1, $2, $3)`

	_, err := p.pool.Exec(ctx, q, rec.IdentityKey, string(rec.Ledger), rec.OccurredAt)
	if err != nil {
		return fmt.Errorf("insert participation: %w", err)
	}
	return nil
}

// InsertAuditEntry persists an audit entry, retrying transient failures.
// Audit writes are best-effort; retries happen here so callers can stay
// fire-and-forget.
func (p *PostgresStore) InsertAuditEntry(ctx context.Context, entry AuditEntry) error {
	const q = `INSERT INTO wheel_audit (email, device_digest, network_origin, occurred_at)
	           VALUES ($1, $2, $3, $4)`

	op := func() (struct{}, error) {
		_, err := p.pool.Exec(ctx, q, entry.Email, entry.DeviceDigest, entry.NetworkOrigin, entry.OccurredAt)
		return struct{}{}, err
	}
	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(auditWriteMaxTries),
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// InsertReward stores a new reward.
func (p *PostgresStore) InsertReward(ctx context.Context, r Reward) error {
	payload, err := json.Marshal(r.Payload)
	if err != nil {
		return fmt.Errorf("marshal reward payload: %w", err)
	}

	const q = `INSERT INTO wheel_rewards (id, participant_key, won_at, expires_at, payload, claimed)
	           VALUES ($1, $2, $3, $4, $5, $6)`

	if _, err := p.pool.Exec(ctx, q, r.ID, r.ParticipantKey, r.WonAt, r.ExpiresAt, payload, r.Claimed); err != nil {
		return fmt.Errorf("insert reward: %w", err)
	}
	return nil
}

// GetReward retrieves a reward by id.
func (p *PostgresStore) GetReward(ctx context.Context, id string) (*Reward, error) {
	const q = `SELECT id, participant_key, won_at, expires_at, payload, claimed
	             FROM wheel_rewards
	            WHERE id = $1`

	var (
		r       Reward
		payload []byte
	)
	err := p.pool.QueryRow(ctx, q, id).
		Scan(&r.ID, &r.ParticipantKey, &r.WonAt, &r.ExpiresAt, &payload, &r.Claimed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRewardNotFound
		}
		return nil, fmt.Errorf("get reward: %w", err)
	}
	if err := json.Unmarshal(payload, &r.Payload); err != nil {
		return nil, fmt.Errorf("unmarshal reward payload: %w", err)
	}
	return &r, nil
}

// MarkRewardClaimed flips the claimed flag on a reward.
func (p *PostgresStore) MarkRewardClaimed(ctx context.Context, id string) error {
	const q = `UPDATE wheel_rewards SET claimed = TRUE WHERE id = $1`

	tag, err := p.pool.Exec(ctx, q, id)
	if err != nil {
		return fmt.Errorf("mark reward claimed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRewardNotFound
	}
	return nil
}

// GetWheelConfig returns the wheel config, or nil if none was written yet.
func (p *PostgresStore) GetWheelConfig(ctx context.Context) (*WheelConfig, error) {
	const q = `SELECT segments, cooldown_hours, updated_at FROM wheel_config WHERE id = 1`

	var (
		cfg      WheelConfig
		segments []byte
	)
	err := p.pool.QueryRow(ctx, q).Scan(&segments, &cfg.CooldownHours, &cfg.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get wheel config: %w", err)
	}
	if err := json.Unmarshal(segments, &cfg.Segments); err != nil {
		return nil, fmt.Errorf("unmarshal wheel segments: %w", err)
	}
	return &cfg, nil
}

// PutWheelConfig replaces the wheel config.
func (p *PostgresStore) PutWheelConfig(ctx context.Context, cfg WheelConfig) error {
	segments, err := json.Marshal(cfg.Segments)
	if err != nil {
		return fmt.Errorf("marshal wheel segments: %w", err)
	}

	const q = `INSERT INTO wheel_config (id, segments, cooldown_hours, updated_at)
	           VALUES (1, $1, $2, $3)
	           ON CONFLICT (id) DO UPDATE
	              SET segments = EXCLUDED.segments,
	                  cooldown_hours = EXCLUDED.cooldown_hours,
	                  updated_at = EXCLUDED.updated_at`

	if _, err := p.pool.Exec(ctx, q, segments, cfg.CooldownHours, cfg.UpdatedAt); err != nil {
		return fmt.Errorf("put wheel config: %w", err)
	}
	return nil
}

// Close closes the database connection pool.
func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}

// NewPool creates a pgx connection pool and verifies connectivity.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}
