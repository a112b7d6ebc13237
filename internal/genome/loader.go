package genome

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/shenwei356/bio/seqio/fastx"
)

// ErrNoRecords is returned when a FASTA source holds no sequences.
var ErrNoRecords = errors.New("no sequence records found")

// LoadFile reads every record of a FASTA (optionally compressed) file. "-"
// reads standard input.
func LoadFile(path string) ([]Genome, error) {
	r, err := fastx.NewReader(nil, path, "")
	if err != nil {
		return nil, fmt.Errorf("opening sequence file %s: %w", path, err)
	}
	defer r.Close()
	genomes, err := readAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return genomes, nil
}

// Load reads every FASTA record from r in input order. An empty r yields
// ErrNoRecords.
func Load(r io.Reader) ([]Genome, error) {
	// fastx panics when the first read of r fails, including on empty input
	br := bufio.NewReader(r)
	if _, err := br.Peek(1); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoRecords
		}
		return nil, fmt.Errorf("reading sequence input: %w", err)
	}
	fr, err := fastx.NewReaderFromIO(nil, br, "")
	if err != nil {
		return nil, fmt.Errorf("creating sequence reader: %w", err)
	}
	defer fr.Close()
	return readAll(fr)
}

func readAll(r *fastx.Reader) ([]Genome, error) {
	var genomes []Genome
	for i := 1; ; i++ {
		record, err := r.Read()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		// the reader reuses its buffers, string conversion copies them
		g, err := New(string(record.Name), string(record.Seq.Seq))
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		genomes = append(genomes, g)
	}
	if len(genomes) == 0 {
		return nil, ErrNoRecords
	}
	return genomes, nil
}
