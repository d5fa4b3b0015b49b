package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/your-org/facegate/internal/config"
	"github.com/your-org/facegate/internal/models"
)

var (
	// ErrNotFound is returned for operations on an absent identity or
	// attempt. Callers treat it as a reportable no-op, not a fault.
	ErrNotFound = errors.New("not found")

	// ErrUnavailable wraps infrastructure-level failures of the store.
	ErrUnavailable = errors.New("store unavailable")
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(cfg config.DatabaseConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate creates the identities and attempts tables. Attempts keep a
// nullable reference to identities so the audit trail survives identity
// removal.
func (s *PostgresStore) Migrate(ctx context.Context, embeddingDim int) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS identities (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL,
			embedding VECTOR(%d) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, embeddingDim),
		`CREATE TABLE IF NOT EXISTS attempts (
			id UUID PRIMARY KEY,
			timestamp TIMESTAMPTZ NOT NULL,
			outcome TEXT NOT NULL,
			identity_id UUID REFERENCES identities(id) ON DELETE SET NULL,
			similarity REAL,
			details TEXT NOT NULL DEFAULT '',
			image_key TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS attempts_timestamp_idx ON attempts (timestamp DESC)`,
	}

	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// --- Identity Gallery ---

func (s *PostgresStore) CreateIdentity(ctx context.Context, name string, embedding []float32) (*models.Identity, error) {
	ident := &models.Identity{
		ID:        uuid.New(),
		Name:      name,
		Embedding: embedding,
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO identities (id, name, embedding) VALUES ($1, $2, $3) RETURNING created_at, updated_at`,
		ident.ID, ident.Name, pgvector.NewVector(embedding),
	).Scan(&ident.CreatedAt, &ident.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: create identity: %v", ErrUnavailable, err)
	}
	return ident, nil
}

// ListIdentities returns the full gallery ordered by name, embeddings
// included, for the match scan and for deterministic display.
func (s *PostgresStore) ListIdentities(ctx context.Context) ([]models.Identity, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, embedding, created_at, updated_at FROM identities ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("%w: list identities: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var identities []models.Identity
	for rows.Next() {
		var ident models.Identity
		var vec pgvector.Vector
		if err := rows.Scan(&ident.ID, &ident.Name, &vec, &ident.CreatedAt, &ident.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan identity: %v", ErrUnavailable, err)
		}
		ident.Embedding = vec.Slice()
		identities = append(identities, ident)
	}
	return identities, nil
}

func (s *PostgresStore) DeleteIdentity(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM identities WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%w: delete identity: %v", ErrUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("identity %s: %w", id, ErrNotFound)
	}
	return nil
}

// --- Attempt Ledger (append-only) ---

// CreateAttempt appends one record. The caller sets outcome, reference,
// score, and details; id and timestamp are assigned here.
func (s *PostgresStore) CreateAttempt(ctx context.Context, a *models.Attempt) error {
	a.ID = uuid.New()
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now()
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO attempts (id, timestamp, outcome, identity_id, similarity, details, image_key)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING created_at`,
		a.ID, a.Timestamp, a.Outcome, a.IdentityID, a.Similarity, a.Details, a.ImageKey,
	).Scan(&a.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: create attempt: %v", ErrUnavailable, err)
	}
	return nil
}

// ListAttempts returns the most recent attempts, newest first. The identity
// name is joined for display and is empty for removed identities.
func (s *PostgresStore) ListAttempts(ctx context.Context, limit int) ([]models.Attempt, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	rows, err := s.pool.Query(ctx,
		`SELECT a.id, a.timestamp, a.outcome, a.identity_id, i.name, a.similarity, a.details, a.image_key, a.created_at
		 FROM attempts a
		 LEFT JOIN identities i ON i.id = a.identity_id
		 ORDER BY a.timestamp DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list attempts: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var attempts []models.Attempt
	for rows.Next() {
		var a models.Attempt
		var name *string
		if err := rows.Scan(&a.ID, &a.Timestamp, &a.Outcome, &a.IdentityID, &name,
			&a.Similarity, &a.Details, &a.ImageKey, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan attempt: %v", ErrUnavailable, err)
		}
		if name != nil {
			a.IdentityName = *name
		}
		attempts = append(attempts, a)
	}
	return attempts, nil
}

func (s *PostgresStore) GetAttempt(ctx context.Context, id uuid.UUID) (*models.Attempt, error) {
	var a models.Attempt
	var name *string
	err := s.pool.QueryRow(ctx,
		`SELECT a.id, a.timestamp, a.outcome, a.identity_id, i.name, a.similarity, a.details, a.image_key, a.created_at
		 FROM attempts a
		 LEFT JOIN identities i ON i.id = a.identity_id
		 WHERE a.id = $1`, id,
	).Scan(&a.ID, &a.Timestamp, &a.Outcome, &a.IdentityID, &name,
		&a.Similarity, &a.Details, &a.ImageKey, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("attempt %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("%w: get attempt: %v", ErrUnavailable, err)
	}
	if name != nil {
		a.IdentityName = *name
	}
	return &a, nil
}
