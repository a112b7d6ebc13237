// Package consumer reads genome ingest events from Kafka and adds them to
// the sharded in-memory index.
package consumer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/genome-matcher/internal/genome"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/internal/indexer/shard"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/genome-matcher/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/pkg/kafka"
)

// StatusUpdater records the outcome of indexing a genome. *store.Store
// implements it.
type StatusUpdater interface {
	UpdateStatus(ctx context.Context, id int64, status string) error
}

// IndexedFunc is called after a genome is newly added to the index.
type IndexedFunc func(ctx context.Context, event ingestion.GenomeIngestEvent, shardID int, took time.Duration)

// IndexConsumer wraps a Kafka consumer to drive the indexing pipeline.
type IndexConsumer struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

// New creates an IndexConsumer backed by the given Kafka consumer.
func New(kafkaConsumer *kafka.Consumer) *IndexConsumer {
	return &IndexConsumer{
		consumer: kafkaConsumer,
		logger:   slog.Default().With("component", "index-consumer"),
	}
}

// Start begins consuming Kafka messages. It blocks until ctx is cancelled.
func (ic *IndexConsumer) Start(ctx context.Context) error {
	ic.logger.Info("index consumer starting")
	return ic.consumer.Start(ctx)
}

// HandleMessage returns a Kafka MessageHandler that indexes each ingest event
// in the shard owning the genome's name. A genome that is already indexed is
// acknowledged without change, so redelivery and warm-start overlap are
// harmless. statusUpdater and onIndexed may be nil.
func HandleMessage(router *shard.Router, statusUpdater StatusUpdater, onIndexed IndexedFunc) kafka.MessageHandler {
	logger := slog.Default().With("component", "index-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[ingestion.GenomeIngestEvent](value)
		if err != nil {
			logger.Error("failed to decode ingest event",
				"error", err,
				"key", string(key),
			)
			return nil
		}

		g, err := genome.New(event.Name, event.Sequence)
		if err != nil {
			logger.Error("rejecting invalid genome event",
				"genome_id", event.GenomeID,
				"name", event.Name,
				"error", err,
			)
			updateStatus(ctx, statusUpdater, event.GenomeID, store.StatusFailed, logger)
			return nil
		}

		start := time.Now()
		shardID, err := router.AddGenome(event.Ordinal, g)
		if errors.Is(err, apperrors.ErrGenomeExists) {
			logger.Debug("genome already indexed", "name", event.Name, "shard_id", shardID)
			return nil
		}
		if err != nil {
			updateStatus(ctx, statusUpdater, event.GenomeID, store.StatusFailed, logger)
			logger.Error("indexing genome failed", "name", event.Name, "shard_id", shardID, "error", err)
			return nil
		}
		took := time.Since(start)

		updateStatus(ctx, statusUpdater, event.GenomeID, store.StatusIndexed, logger)
		logger.Info("genome indexed",
			"genome_id", event.GenomeID,
			"name", event.Name,
			"length", g.Len(),
			"shard_id", shardID,
			"took", took,
		)
		if onIndexed != nil {
			onIndexed(ctx, event, shardID, took)
		}
		return nil
	}
}

func updateStatus(ctx context.Context, su StatusUpdater, id int64, status string, logger *slog.Logger) {
	if su == nil || id == 0 {
		return
	}
	if err := su.UpdateStatus(ctx, id, status); err != nil {
		logger.Error("failed to update genome status",
			"genome_id", id,
			"status", status,
			"error", err,
		)
	}
}
