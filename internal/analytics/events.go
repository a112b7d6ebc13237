// Package analytics records query and indexing events, ships them over Kafka
// and aggregates them into service-wide statistics.
package analytics

import "time"

type EventType string

const (
	EventFragmentQuery EventType = "fragment_query"
	EventRelatedQuery  EventType = "related_query"
	EventGenomeIndexed EventType = "genome_indexed"
)

// QueryEvent describes one answered fragment or relatedness query.
type QueryEvent struct {
	Type         EventType `json:"type"`
	QueryLength  int       `json:"query_length"`
	MinLength    int       `json:"min_length,omitempty"`
	WindowLength int       `json:"window_length,omitempty"`
	Threshold    float64   `json:"threshold,omitempty"`
	Exact        bool      `json:"exact"`
	Matches      int       `json:"matches"`
	GenomeNames  []string  `json:"genome_names,omitempty"`
	LatencyMs    int64     `json:"latency_ms"`
	CacheHit     bool      `json:"cache_hit"`
	ShardsFailed int       `json:"shards_failed,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
	RequestID    string    `json:"request_id,omitempty"`
}

// IndexEvent describes a genome added to a searcher's index.
type IndexEvent struct {
	Type      EventType `json:"type"`
	GenomeID  int64     `json:"genome_id"`
	Name      string    `json:"name"`
	ShardID   int       `json:"shard_id"`
	Length    int       `json:"length"`
	LatencyMs int64     `json:"latency_ms"`
	Timestamp time.Time `json:"timestamp"`
}
