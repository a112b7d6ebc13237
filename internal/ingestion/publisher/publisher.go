// Package publisher persists genomes to PostgreSQL and publishes ingest
// events to Kafka for the searchers to index. It assigns each genome to a
// shard by name and supports idempotent writes.
package publisher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/genome-matcher/internal/indexer/shard"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/pkg/resilience"
)

// GenomeStore is the subset of store.Store the publisher writes through.
type GenomeStore interface {
	Insert(ctx context.Context, g store.NewGenome) (store.Record, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*store.Record, error)
}

// EventPublisher sends events to Kafka.
type EventPublisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// Publisher coordinates genome persistence and Kafka event production.
type Publisher struct {
	store     GenomeStore
	producer  EventPublisher
	breaker   *resilience.CircuitBreaker
	numShards int
	logger    *slog.Logger
}

// New creates a Publisher. A nil breaker gets the default configuration.
func New(st GenomeStore, producer EventPublisher, numShards int, breaker *resilience.CircuitBreaker) *Publisher {
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker("kafka-genome-ingest", resilience.CircuitBreakerConfig{})
	}
	return &Publisher{
		store:     st,
		producer:  producer,
		breaker:   breaker,
		numShards: numShards,
		logger:    slog.Default().With("component", "publisher"),
	}
}

// Ingest persists a validated genome, assigns its shard, and publishes a
// GenomeIngestEvent. A repeated idempotency key returns the original
// genome without inserting again. A Kafka failure is logged and leaves the
// genome PENDING; searchers still pick it up at their next warm start.
func (p *Publisher) Ingest(ctx context.Context, req *ingestion.IngestRequest) (*ingestion.IngestResponse, error) {
	if req.IdempotencyKey != "" {
		existing, err := p.store.FindByIdempotencyKey(ctx, req.IdempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("checking idempotency key: %w", err)
		}
		if existing != nil {
			p.logger.Info("duplicate ingestion detected",
				"idempotency_key", req.IdempotencyKey,
				"existing_id", existing.ID,
			)
			return p.response(existing.ID, existing.Name, existing.Status, existing.Length), nil
		}
	}

	sum := sha256.Sum256([]byte(req.Sequence))
	rec, err := p.store.Insert(ctx, store.NewGenome{
		Name:           req.Name,
		Bases:          req.Sequence,
		ContentHash:    hex.EncodeToString(sum[:]),
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		return nil, err
	}

	resp := p.response(rec.ID, rec.Name, rec.Status, rec.Length)
	event := kafka.Event{
		Key: strconv.Itoa(resp.ShardID),
		Value: ingestion.GenomeIngestEvent{
			GenomeID:   rec.ID,
			Ordinal:    rec.ID,
			Name:       rec.Name,
			Sequence:   req.Sequence,
			ShardID:    resp.ShardID,
			IngestedAt: time.Now().UTC(),
		},
	}
	err = p.breaker.Execute(func() error {
		return p.producer.Publish(ctx, event)
	})
	if err != nil {
		p.logger.Error("failed to publish to kafka, genome stuck in PENDING",
			"genome_id", rec.ID,
			"name", rec.Name,
			"shard_id", resp.ShardID,
			"breaker", p.breaker.GetState().String(),
			"error", err,
		)
	}
	return resp, nil
}

func (p *Publisher) response(id int64, name, status string, length int) *ingestion.IngestResponse {
	return &ingestion.IngestResponse{
		GenomeID: id,
		Name:     name,
		Status:   status,
		ShardID:  shard.ShardFor(name, p.numShards),
		Length:   length,
	}
}
