package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/genome-matcher/internal/genome"
)

func newRelatedCmd(opts *options) *cobra.Command {
	var (
		window    int
		exact     bool
		threshold float64
	)
	cmd := &cobra.Command{
		Use:   "related <query.fa>",
		Short: "Rank library genomes by the share of query windows they contain",
		Long: `Related splits each record of the query file into non-overlapping windows
and reports the library genomes matched by at least --threshold percent of
them, best first.`,
		Example: "  genomectl related query.fa -g library.fa -w 12 -t 25",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if window == 0 {
				window = opts.seedLength
			}
			if window < opts.seedLength {
				return fmt.Errorf("--window must be at least the seed length %d", opts.seedLength)
			}
			if threshold < 0 || threshold > 100 {
				return fmt.Errorf("--threshold must be within [0, 100]")
			}
			queries, err := genome.LoadFile(args[0])
			if err != nil {
				return err
			}
			engine, err := opts.buildEngine(cmd)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "QUERY\tGENOME\tPERCENT")
			for _, q := range queries {
				if q.Len() < window {
					fmt.Fprintf(tw, "%s\t-\tshorter than window\n", q.Name())
					continue
				}
				matches := engine.FindRelated(q.Bases(), window, exact, threshold)
				if len(matches) == 0 {
					fmt.Fprintf(tw, "%s\t-\tno matches\n", q.Name())
					continue
				}
				for _, m := range matches {
					fmt.Fprintf(tw, "%s\t%s\t%.2f\n", q.Name(), m.GenomeName, m.PercentMatch)
				}
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&window, "window", "w", 0, "window length (default: seed length)")
	cmd.Flags().BoolVar(&exact, "exact", false, "disallow the single base substitution")
	cmd.Flags().Float64VarP(&threshold, "threshold", "t", 20, "minimum percent of matching windows")
	return cmd
}
