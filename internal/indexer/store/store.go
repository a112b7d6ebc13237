// Package store is the PostgreSQL repository for genomes. The genomes table
// is the system of record: ingestion inserts into it and every searcher
// rebuilds its in-memory index from it at boot.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/genome-matcher/internal/genome"
	apperrors "github.com/Adithya-Monish-Kumar-K/genome-matcher/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/pkg/postgres"
)

// Genome lifecycle states.
const (
	StatusPending = "PENDING"
	StatusIndexed = "INDEXED"
	StatusFailed  = "FAILED"
)

// Record is a genome row without its bases.
type Record struct {
	ID             int64
	Name           string
	Length         int
	ContentHash    string
	Status         string
	IdempotencyKey string
	CreatedAt      time.Time
}

// NewGenome is the input to Insert.
type NewGenome struct {
	Name           string
	Bases          string
	ContentHash    string
	IdempotencyKey string
}

type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

func New(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "genome-store"),
	}
}

// Insert adds a PENDING genome row. A name or idempotency key that is
// already taken is reported as ErrGenomeExists or ErrIdempotencyConflict.
func (s *Store) Insert(ctx context.Context, g NewGenome) (Record, error) {
	rec := Record{
		Name:           g.Name,
		Length:         len(g.Bases),
		ContentHash:    g.ContentHash,
		Status:         StatusPending,
		IdempotencyKey: g.IdempotencyKey,
	}
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		return tx.QueryRowContext(ctx,
			`INSERT INTO genomes (name, bases, length, content_hash, status, idempotency_key)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, created_at`,
			g.Name, g.Bases, len(g.Bases), g.ContentHash, StatusPending, nullableString(g.IdempotencyKey),
		).Scan(&rec.ID, &rec.CreatedAt)
	})
	if err != nil {
		return Record{}, classify(err, g.Name)
	}
	return rec, nil
}

func classify(err error, name string) error {
	constraint, ok := postgres.IsUniqueViolation(err)
	switch {
	case !ok:
		return fmt.Errorf("inserting genome %q: %w", name, err)
	case constraint == "genomes_idempotency_key_key":
		return apperrors.New(apperrors.ErrIdempotencyConflict, http.StatusConflict, "idempotency key already in use")
	default:
		return apperrors.Newf(apperrors.ErrGenomeExists, http.StatusConflict, "genome %q already exists", name)
	}
}

// FindByIdempotencyKey returns the row created with key, or nil.
func (s *Store) FindByIdempotencyKey(ctx context.Context, key string) (*Record, error) {
	var rec Record
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT id, name, length, content_hash, status, created_at FROM genomes WHERE idempotency_key = $1`, key,
	).Scan(&rec.ID, &rec.Name, &rec.Length, &rec.ContentHash, &rec.Status, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying by idempotency key: %w", err)
	}
	rec.IdempotencyKey = key
	return &rec, nil
}

// LoadAll streams every genome that has not failed, in id order, which is
// library order. fn returning an error stops the scan.
func (s *Store) LoadAll(ctx context.Context, fn func(ordinal int64, g genome.Genome) error) error {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT id, name, bases FROM genomes WHERE status <> $1 ORDER BY id`, StatusFailed)
	if err != nil {
		return fmt.Errorf("querying genomes: %w", err)
	}
	defer rows.Close()

	loaded := 0
	for rows.Next() {
		var (
			id          int64
			name, bases string
		)
		if err := rows.Scan(&id, &name, &bases); err != nil {
			return fmt.Errorf("scanning genome row: %w", err)
		}
		g, err := genome.New(name, bases)
		if err != nil {
			s.logger.Error("skipping invalid stored genome", "id", id, "name", name, "error", err)
			continue
		}
		if err := fn(id, g); err != nil {
			return err
		}
		loaded++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating genome rows: %w", err)
	}
	s.logger.Info("genomes loaded", "count", loaded)
	return nil
}

// UpdateStatus sets a genome's status, stamping indexed_at when it becomes
// INDEXED.
func (s *Store) UpdateStatus(ctx context.Context, id int64, status string) error {
	_, err := s.db.DB.ExecContext(ctx,
		`UPDATE genomes
		SET status = $1, indexed_at = CASE WHEN $1 = 'INDEXED' THEN NOW() ELSE indexed_at END
		WHERE id = $2`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("updating status of genome %d: %w", id, err)
	}
	return nil
}

// CountByStatus returns the number of genomes in each status.
func (s *Store) CountByStatus(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.DB.QueryContext(ctx, `SELECT status, COUNT(*) FROM genomes GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("counting genomes: %w", err)
	}
	defer rows.Close()
	counts := make(map[string]int64)
	for rows.Next() {
		var (
			status string
			n      int64
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scanning count row: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
