package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Indexer.MinSearchLength != 10 || cfg.Indexer.NumShards != 8 {
		t.Errorf("indexer defaults = %+v", cfg.Indexer)
	}
	if cfg.Kafka.Topics.GenomeIngest != "genome-ingest" {
		t.Errorf("genome topic = %q", cfg.Kafka.Topics.GenomeIngest)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9001
indexer:
  numShards: 2
  minSearchLength: 4
  anchoredSeed: true
search:
  timeoutPerShard: 250ms
  defaultThreshold: 35.5
`)
	t.Setenv("SP_INDEXER_LEGACY_STRIDE", "true")
	t.Setenv("SP_KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9001 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if !cfg.Indexer.AnchoredSeed || !cfg.Indexer.LegacyStride || cfg.Indexer.MinSearchLength != 4 {
		t.Errorf("indexer = %+v", cfg.Indexer)
	}
	if cfg.Search.TimeoutPerShard != 250*time.Millisecond || cfg.Search.DefaultThreshold != 35.5 {
		t.Errorf("search = %+v", cfg.Search)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "k2:9092" {
		t.Errorf("brokers = %v", cfg.Kafka.Brokers)
	}
	// untouched sections keep their defaults
	if cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("redis addr = %q", cfg.Redis.Addr)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"seed length", "indexer:\n  minSearchLength: 0\n", "minSearchLength"},
		{"shards", "indexer:\n  numShards: -1\n", "numShards"},
		{"threshold", "search:\n  defaultThreshold: 120\n", "defaultThreshold"},
		{"rate limit", "rateLimit:\n  enabled: true\n  requests: 0\n", "rateLimit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Load err = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load on missing file succeeded")
	}
}

func TestDSN(t *testing.T) {
	dsn := Default().Postgres.DSN()
	if !strings.Contains(dsn, "dbname=genomematcher") || !strings.Contains(dsn, "sslmode=disable") {
		t.Errorf("DSN = %q", dsn)
	}
}
