// Package validator provides input validation for ingestion requests. It
// enforces name and sequence constraints and returns per-field error
// details.
package validator

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/genome-matcher/internal/genome"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/internal/ingestion"
)

const (
	maxNameLength           = 512
	maxIdempotencyKeyLength = 255
)

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Fields))
	for field := range e.Fields {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, e.Fields[field]))
	}
	return strings.Join(parts, "; ")
}

// ValidateIngestRequest checks name, sequence and idempotency key. On success
// req.Name is trimmed and req.Sequence is normalised to upper case.
func ValidateIngestRequest(req *ingestion.IngestRequest, maxSequenceLength int) error {
	errs := make(map[string]string)

	name := strings.TrimSpace(req.Name)
	if name == "" {
		errs["name"] = "name is required"
	} else if len(name) > maxNameLength {
		errs["name"] = fmt.Sprintf("name must be at most %d characters", maxNameLength)
	}

	seq := genome.Normalize(strings.TrimSpace(req.Sequence))
	switch {
	case seq == "":
		errs["sequence"] = "sequence is required"
	case maxSequenceLength > 0 && len(seq) > maxSequenceLength:
		errs["sequence"] = fmt.Sprintf("sequence must be at most %d bases", maxSequenceLength)
	default:
		if err := genome.Validate(seq); err != nil {
			var ib *genome.InvalidBaseError
			if errors.As(err, &ib) {
				errs["sequence"] = fmt.Sprintf("invalid base %q at offset %d, want one of ACGTN", ib.Base, ib.Offset)
			} else {
				errs["sequence"] = err.Error()
			}
		}
	}

	if len(req.IdempotencyKey) > maxIdempotencyKeyLength {
		errs["idempotency_key"] = fmt.Sprintf("idempotency key must be at most %d characters", maxIdempotencyKeyLength)
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	req.Name = name
	req.Sequence = seq
	return nil
}
