// Command genomectl queries FASTA genome libraries from the command line and
// bulk-imports them into the ingestion pipeline.
//
// Usage:
//
//	genomectl find ACGTACGTTA -g library.fa -m 8
//	genomectl related query.fa -g library.fa -w 12 -t 25
//	genomectl stats -g library.fa
//	genomectl import -g library.fa --config configs/development.yaml
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
