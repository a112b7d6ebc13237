package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newStatsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:     "stats",
		Short:   "Index a library and print its size",
		Example: "  genomectl stats -g library.fa -k 12",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := opts.buildEngine(cmd)
			if err != nil {
				return err
			}
			s := engine.Stats()
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "genomes:\t%s\n", humanize.Comma(int64(s.Genomes)))
			fmt.Fprintf(tw, "bases:\t%s (%s)\n", humanize.Comma(s.Bases), humanize.SIWithDigits(float64(s.Bases), 2, "bp"))
			fmt.Fprintf(tw, "seed length:\t%d\n", engine.MinSearchLength())
			fmt.Fprintf(tw, "seeds:\t%s\n", humanize.Comma(int64(s.Seeds)))
			fmt.Fprintf(tw, "trie nodes:\t%s\n", humanize.Comma(int64(s.Nodes)))
			return tw.Flush()
		},
	}
}

func newGenomesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "genomes",
		Short: "List the genomes of a library in library order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := opts.buildEngine(cmd)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "#\tGENOME\tLENGTH")
			for i, g := range engine.Genomes() {
				fmt.Fprintf(tw, "%d\t%s\t%s\n", i+1, g.Name(), humanize.Comma(int64(g.Len())))
			}
			return tw.Flush()
		},
	}
}
