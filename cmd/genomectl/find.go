package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/genome-matcher/internal/genome"
)

func newFindCmd(opts *options) *cobra.Command {
	var (
		minLength int
		exact     bool
	)
	cmd := &cobra.Command{
		Use:   "find <fragment>",
		Short: "Find genomes holding a run that matches the start of a fragment",
		Long: `Find reports, for every genome of the library holding a run of at least
--min-length bases matching the start of the fragment, the longest such run.
Unless --exact is set, one mismatching base is tolerated.`,
		Example: "  genomectl find ACGTACGTTA -g library.fa -m 8",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fragment := genome.Normalize(strings.TrimSpace(args[0]))
			if err := genome.Validate(fragment); err != nil {
				return fmt.Errorf("fragment: %w", err)
			}
			if minLength == 0 {
				minLength = len(fragment)
			}
			if minLength < opts.seedLength || minLength > len(fragment) {
				return fmt.Errorf("--min-length must be within [%d, %d]", opts.seedLength, len(fragment))
			}

			engine, err := opts.buildEngine(cmd)
			if err != nil {
				return err
			}
			hits := engine.FindFragment(fragment, minLength, exact)
			if len(hits) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no matches")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "GENOME\tPOSITION\tLENGTH")
			for _, h := range hits {
				fmt.Fprintf(tw, "%s\t%d\t%d\n", h.GenomeName, h.Position, h.Length)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&minLength, "min-length", "m", 0, "minimum match length (default: fragment length)")
	cmd.Flags().BoolVar(&exact, "exact", false, "disallow the single base substitution")
	return cmd
}
