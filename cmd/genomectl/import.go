package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/genome-matcher/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/internal/ingestion/validator"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/pkg/postgres"
)

// Ingester is implemented by *publisher.Publisher.
type Ingester interface {
	Ingest(ctx context.Context, req *ingestion.IngestRequest) (*ingestion.IngestResponse, error)
}

func newImportCmd(opts *options) *cobra.Command {
	var (
		configPath string
		keyPrefix  string
	)
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Publish every library record into the ingestion pipeline",
		Long: `Import stores each FASTA record in PostgreSQL and publishes it to the
genome ingest topic, exactly as POST /api/v1/genomes does. With --key each
record is sent with the idempotency key <key>#<record number>, which makes a
repeated import harmless. Import stops at the first failing record.`,
		Example: "  genomectl import -g library.fa --config configs/development.yaml --key lib-2024-06",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			db, err := postgres.New(cfg.Postgres)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := db.Migrate(ctx); err != nil {
				return err
			}
			producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.GenomeIngest)
			defer producer.Close()

			pub := publisher.New(store.New(db), producer, cfg.Indexer.NumShards, nil)
			return opts.importLibrary(ctx, cmd, pub, keyPrefix, int(cfg.Server.MaxBodyBytes))
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "configs/development.yaml", "path to config file")
	cmd.Flags().StringVar(&keyPrefix, "key", "", "idempotency key prefix")
	return cmd
}

func (o *options) importLibrary(ctx context.Context, cmd *cobra.Command, ing Ingester, keyPrefix string, maxLength int) error {
	genomes, err := o.loadLibrary()
	if err != nil {
		return err
	}

	var bases int64
	bar := o.progress(cmd, "imported genomes: ", len(genomes))
	for i, g := range genomes {
		start := time.Now()
		req := ingestion.IngestRequest{Name: g.Name(), Sequence: g.Bases()}
		if keyPrefix != "" {
			req.IdempotencyKey = fmt.Sprintf("%s#%d", keyPrefix, i+1)
		}
		if err := validator.ValidateIngestRequest(&req, maxLength); err != nil {
			bar.abort()
			return fmt.Errorf("record %d (%s): %w", i+1, g.Name(), err)
		}
		if _, err := ing.Ingest(ctx, &req); err != nil {
			bar.abort()
			return fmt.Errorf("record %d (%s): %w", i+1, g.Name(), err)
		}
		bases += int64(g.Len())
		bar.incr(time.Since(start))
	}
	bar.wait()
	fmt.Fprintf(cmd.OutOrStdout(), "imported %s genomes (%s)\n",
		humanize.Comma(int64(len(genomes))), humanize.SIWithDigits(float64(bases), 2, "bp"))
	return nil
}
