// Package genome holds named nucleotide sequences and the FASTA loader that
// produces them.
package genome

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyName     = errors.New("genome name is empty")
	ErrEmptySequence = errors.New("genome sequence is empty")
	ErrInvalidBase   = errors.New("invalid base")
)

// InvalidBaseError reports the first byte of a sequence outside ACGTN.
type InvalidBaseError struct {
	Base   byte
	Offset int
}

func (e *InvalidBaseError) Error() string {
	return fmt.Sprintf("invalid base %q at offset %d", e.Base, e.Offset)
}

func (e *InvalidBaseError) Unwrap() error {
	return ErrInvalidBase
}

// Genome is an immutable named sequence over the alphabet ACGTN.
type Genome struct {
	name  string
	bases string
}

// New validates and upper-cases bases and returns the resulting Genome.
func New(name, bases string) (Genome, error) {
	if name == "" {
		return Genome{}, ErrEmptyName
	}
	if bases == "" {
		return Genome{}, ErrEmptySequence
	}
	bases = Normalize(bases)
	if err := Validate(bases); err != nil {
		return Genome{}, fmt.Errorf("genome %q: %w", name, err)
	}
	return Genome{name: name, bases: bases}, nil
}

// Name returns the genome name.
func (g Genome) Name() string { return g.name }

// Bases returns the full sequence.
func (g Genome) Bases() string { return g.bases }

// Len returns the number of bases.
func (g Genome) Len() int { return len(g.bases) }

// Extract returns length bases starting at pos. It reports false when length
// is zero or the window does not fit inside the sequence.
func (g Genome) Extract(pos, length int) (string, bool) {
	if length <= 0 || pos < 0 || pos+length > len(g.bases) {
		return "", false
	}
	return g.bases[pos : pos+length], true
}

// Normalize upper-cases a sequence. It does not validate it.
func Normalize(bases string) string {
	return strings.ToUpper(bases)
}

// Validate checks that every byte of an upper-case sequence is one of ACGTN.
func Validate(bases string) error {
	for i := 0; i < len(bases); i++ {
		switch bases[i] {
		case 'A', 'C', 'G', 'T', 'N':
		default:
			return &InvalidBaseError{Base: bases[i], Offset: i}
		}
	}
	return nil
}
