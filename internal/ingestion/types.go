// Package ingestion defines the request/response types and Kafka event schemas
// used by the genome ingestion pipeline.
package ingestion

import "time"

// IngestRequest is the JSON body accepted by the ingestion HTTP endpoint.
type IngestRequest struct {
	Name           string `json:"name"`
	Sequence       string `json:"sequence"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// IngestResponse is returned to the caller after a genome is accepted.
type IngestResponse struct {
	GenomeID int64  `json:"genome_id"`
	Name     string `json:"name"`
	Status   string `json:"status"`
	ShardID  int    `json:"shard_id"`
	Length   int    `json:"length"`
}

// BatchIngestResponse reports a multi-record FASTA upload. Records after the
// first failure are not attempted.
type BatchIngestResponse struct {
	Accepted []IngestResponse `json:"accepted"`
	Failed   *BatchFailure    `json:"failed,omitempty"`
}

// BatchFailure names the record that stopped a batch upload.
type BatchFailure struct {
	Record int    `json:"record"`
	Name   string `json:"name"`
	Error  string `json:"error"`
}

// GenomeIngestEvent is the Kafka message payload produced after a genome is
// persisted and ready for indexing. Ordinal is the genome's position in the
// library and equals GenomeID.
type GenomeIngestEvent struct {
	GenomeID   int64     `json:"genome_id"`
	Ordinal    int64     `json:"ordinal"`
	Name       string    `json:"name"`
	Sequence   string    `json:"sequence"`
	ShardID    int       `json:"shard_id"`
	IngestedAt time.Time `json:"ingested_at"`
}
