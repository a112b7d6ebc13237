// Package parser turns HTTP inputs into validated fragment and relatedness
// queries. Bases are upper-cased and checked against ACGTN; every numeric
// parameter falls back to a configured default.
package parser

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/genome-matcher/internal/genome"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/genome-matcher/pkg/errors"
)

// Defaults supplies values for omitted parameters and the bounds they are
// checked against.
type Defaults struct {
	SeedLength     int
	Threshold      float64
	DefaultLimit   int
	MaxResults     int
	MaxQueryLength int
}

// DefaultsFrom builds Defaults from service configuration.
func DefaultsFrom(idx config.IndexerConfig, search config.SearchConfig) Defaults {
	return Defaults{
		SeedLength:     idx.MinSearchLength,
		Threshold:      search.DefaultThreshold,
		DefaultLimit:   search.DefaultLimit,
		MaxResults:     search.MaxResults,
		MaxQueryLength: search.MaxQueryLength,
	}
}

// FragmentQuery asks which genomes contain a run matching the start of
// Fragment.
type FragmentQuery struct {
	Fragment  string
	MinLength int
	Exact     bool
	Limit     int
}

// CacheKey is a canonical form of the query used to key cached results.
func (q FragmentQuery) CacheKey() string {
	return fmt.Sprintf("fragment|%s|%d|%t|%d", q.Fragment, q.MinLength, q.Exact, q.Limit)
}

// RelatedQuery asks which genomes share windows with Query.
type RelatedQuery struct {
	Query        string
	WindowLength int
	Exact        bool
	Threshold    float64
	Limit        int
}

func (q RelatedQuery) CacheKey() string {
	return fmt.Sprintf("related|%s|%d|%t|%g|%d", q.Query, q.WindowLength, q.Exact, q.Threshold, q.Limit)
}

// RelatedRequest is the JSON body of POST /api/v1/related. Pointer fields
// distinguish an omitted value from zero.
type RelatedRequest struct {
	Query        string   `json:"query"`
	WindowLength *int     `json:"windowLength,omitempty"`
	Exact        bool     `json:"exact,omitempty"`
	Threshold    *float64 `json:"threshold,omitempty"`
	Limit        *int     `json:"limit,omitempty"`
}

// ParseFragment reads fragment, minLength, exact and limit from URL values.
func ParseFragment(values url.Values, d Defaults) (FragmentQuery, error) {
	fragment, err := bases("fragment", values.Get("fragment"), d)
	if err != nil {
		return FragmentQuery{}, err
	}
	q := FragmentQuery{Fragment: fragment, MinLength: len(fragment)}

	if v := values.Get("minLength"); v != "" {
		if q.MinLength, err = strconv.Atoi(v); err != nil {
			return FragmentQuery{}, apperrors.Invalid("minLength must be an integer")
		}
	}
	if q.MinLength < d.SeedLength {
		return FragmentQuery{}, apperrors.Invalid("minLength must be at least the seed length %d", d.SeedLength)
	}
	if q.MinLength > len(fragment) {
		return FragmentQuery{}, apperrors.Invalid("minLength %d exceeds fragment length %d", q.MinLength, len(fragment))
	}
	if q.Exact, err = parseBool("exact", values.Get("exact")); err != nil {
		return FragmentQuery{}, err
	}
	if q.Limit, err = parseLimit(values.Get("limit"), d); err != nil {
		return FragmentQuery{}, err
	}
	return q, nil
}

// ParseRelated validates a relatedness request.
func ParseRelated(req RelatedRequest, d Defaults) (RelatedQuery, error) {
	query, err := bases("query", req.Query, d)
	if err != nil {
		return RelatedQuery{}, err
	}
	q := RelatedQuery{
		Query:        query,
		WindowLength: d.SeedLength,
		Exact:        req.Exact,
		Threshold:    d.Threshold,
		Limit:        d.DefaultLimit,
	}
	if req.WindowLength != nil {
		q.WindowLength = *req.WindowLength
	}
	if q.WindowLength < d.SeedLength {
		return RelatedQuery{}, apperrors.Invalid("windowLength must be at least the seed length %d", d.SeedLength)
	}
	if q.WindowLength > len(query) {
		return RelatedQuery{}, apperrors.Invalid("windowLength %d exceeds query length %d", q.WindowLength, len(query))
	}
	if req.Threshold != nil {
		q.Threshold = *req.Threshold
	}
	if q.Threshold < 0 || q.Threshold > 100 {
		return RelatedQuery{}, apperrors.Invalid("threshold must be within [0, 100]")
	}
	if req.Limit != nil {
		if q.Limit, err = clampLimit(*req.Limit, d); err != nil {
			return RelatedQuery{}, err
		}
	}
	return q, nil
}

func bases(field, raw string, d Defaults) (string, error) {
	s := genome.Normalize(strings.TrimSpace(raw))
	if s == "" {
		return "", apperrors.Invalid("%s is required", field)
	}
	if d.MaxQueryLength > 0 && len(s) > d.MaxQueryLength {
		return "", apperrors.Invalid("%s must be at most %d bases", field, d.MaxQueryLength)
	}
	if err := genome.Validate(s); err != nil {
		var ib *genome.InvalidBaseError
		if errors.As(err, &ib) {
			return "", apperrors.Invalid("%s has invalid base %q at offset %d", field, ib.Base, ib.Offset)
		}
		return "", apperrors.Invalid("%s: %v", field, err)
	}
	return s, nil
}

func parseBool(field, v string) (bool, error) {
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, apperrors.Invalid("%s must be a boolean", field)
	}
	return b, nil
}

func parseLimit(v string, d Defaults) (int, error) {
	if v == "" {
		return d.DefaultLimit, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, apperrors.Invalid("limit must be a positive integer")
	}
	return clampLimit(n, d)
}

func clampLimit(n int, d Defaults) (int, error) {
	if n < 1 {
		return 0, apperrors.Invalid("limit must be a positive integer")
	}
	if d.MaxResults > 0 && n > d.MaxResults {
		n = d.MaxResults
	}
	return n, nil
}
