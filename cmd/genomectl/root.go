package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/Adithya-Monish-Kumar-K/genome-matcher/internal/genome"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/pkg/logger"
)

// options holds the persistent flags shared by every subcommand.
type options struct {
	seedLength   int
	anchoredSeed bool
	legacyStride bool
	logLevel     string
	quiet        bool
	library      string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "genomectl",
		Short: "Search genome libraries for fragments and related sequences",
		Long: `genomectl indexes a FASTA library in memory and answers fragment and
relatedness queries against it, or imports the library into the ingestion
pipeline.`,
		Version:       "0.1.0",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger.SetupWriter(os.Stderr, opts.logLevel, "text")
			if opts.seedLength <= 0 {
				return fmt.Errorf("--seed-length must be positive, got %d", opts.seedLength)
			}
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.IntVarP(&opts.seedLength, "seed-length", "k", 10, "seed length: the minimum search length of the index")
	pf.BoolVar(&opts.anchoredSeed, "anchored-seed", false, "require the first base of each seed to match exactly")
	pf.BoolVar(&opts.legacyStride, "legacy-stride", false, "advance relatedness windows with position = (position+1)*window")
	pf.StringVar(&opts.logLevel, "log-level", "warn", "log level: debug, info, warn or error")
	pf.BoolVarP(&opts.quiet, "quiet", "q", false, "do not show progress bars")
	pf.StringVarP(&opts.library, "genomes", "g", "", "FASTA library file (\"-\" for stdin, compressed files accepted)")

	root.AddCommand(
		newFindCmd(opts),
		newRelatedCmd(opts),
		newStatsCmd(opts),
		newGenomesCmd(opts),
		newImportCmd(opts),
	)
	return root
}

func (o *options) indexerConfig() config.IndexerConfig {
	return config.IndexerConfig{
		NumShards:       1,
		MinSearchLength: o.seedLength,
		AnchoredSeed:    o.anchoredSeed,
		LegacyStride:    o.legacyStride,
	}
}

func (o *options) loadLibrary() ([]genome.Genome, error) {
	if o.library == "" {
		return nil, fmt.Errorf("a genome library is required (-g library.fa)")
	}
	return genome.LoadFile(o.library)
}

// buildEngine loads the library and indexes it in file order.
func (o *options) buildEngine(cmd *cobra.Command) (*indexer.Engine, error) {
	genomes, err := o.loadLibrary()
	if err != nil {
		return nil, err
	}
	engine, err := indexer.NewEngine(o.indexerConfig())
	if err != nil {
		return nil, err
	}

	bar := o.progress(cmd, "indexed genomes: ", len(genomes))
	for i, g := range genomes {
		start := time.Now()
		if err := engine.AddGenome(int64(i), g); err != nil {
			bar.abort()
			return nil, fmt.Errorf("record %d: %w", i+1, err)
		}
		bar.incr(time.Since(start))
	}
	bar.wait()
	return engine, nil
}

// progressBar is a no-op when progress output is disabled.
type progressBar struct {
	pbs *mpb.Progress
	bar *mpb.Bar
}

func (o *options) progress(cmd *cobra.Command, name string, total int) *progressBar {
	if o.quiet {
		return &progressBar{}
	}
	pbs := mpb.New(mpb.WithWidth(40), mpb.WithOutput(cmd.ErrOrStderr()))
	bar := pbs.AddBar(int64(total),
		mpb.PrependDecorators(
			decor.Name(name, decor.WC{W: len(name), C: decor.DindentRight}),
			decor.CountersNoUnit("%d / %d", decor.WCSyncWidth),
		),
		mpb.AppendDecorators(
			decor.Name("ETA: ", decor.WC{W: len("ETA: ")}),
			decor.EwmaETA(decor.ET_STYLE_GO, 10),
			decor.OnComplete(decor.Name(""), ". done"),
		),
	)
	return &progressBar{pbs: pbs, bar: bar}
}

func (p *progressBar) incr(took time.Duration) {
	if p.bar != nil {
		p.bar.EwmaIncrBy(1, took)
	}
}

func (p *progressBar) abort() {
	if p.bar != nil {
		p.bar.Abort(false)
		p.pbs.Wait()
	}
}

func (p *progressBar) wait() {
	if p.pbs != nil {
		p.pbs.Wait()
	}
}
