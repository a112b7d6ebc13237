// Package handler exposes the ingestion HTTP API. Genomes arrive either as a
// JSON IngestRequest or as a FASTA document holding one or more records.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/genome-matcher/internal/genome"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/internal/ingestion/validator"
	apperrors "github.com/Adithya-Monish-Kumar-K/genome-matcher/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/genome-matcher/pkg/logger"
)

// Ingester accepts validated genomes. *publisher.Publisher implements it.
type Ingester interface {
	Ingest(ctx context.Context, req *ingestion.IngestRequest) (*ingestion.IngestResponse, error)
}

type Handler struct {
	ingester     Ingester
	maxBodyBytes int64
	logger       *slog.Logger
}

func New(ing Ingester, maxBodyBytes int64) *Handler {
	return &Handler{
		ingester:     ing,
		maxBodyBytes: maxBodyBytes,
		logger:       slog.Default().With("component", "ingestion-handler"),
	}
}

// Ingest handles POST /api/v1/genomes.
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	if h.maxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	}
	if isFASTA(r.Header.Get("Content-Type")) {
		h.ingestFASTA(w, r)
		return
	}

	ctx := r.Context()
	log := logger.FromContext(ctx)
	var req ingestion.IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := validator.ValidateIngestRequest(&req, h.maxSequenceLength()); err != nil {
		h.writeValidationError(w, err)
		return
	}

	resp, err := h.ingester.Ingest(ctx, &req)
	if err != nil {
		statusCode := apperrors.HTTPStatusCode(err)
		log.Error("ingestion failed",
			"name", req.Name,
			"error", err,
			"status_code", statusCode,
		)
		h.writeError(w, statusCode, apperrors.Message(err, "ingestion failed"))
		return
	}
	log.Info("genome ingested",
		"genome_id", resp.GenomeID,
		"name", resp.Name,
		"length", resp.Length,
		"shard_id", resp.ShardID,
	)
	h.writeJSON(w, http.StatusAccepted, resp)
}

// ingestFASTA ingests every record of a FASTA body in file order, stopping
// at the first failure. With an Idempotency-Key header each record uses the
// key suffixed by its record number.
func (h *Handler) ingestFASTA(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)
	genomes, err := genome.Load(r.Body)
	if err != nil {
		appErr := apperrors.Newf(apperrors.ErrInvalidSequence, http.StatusBadRequest, "invalid FASTA body: %v", err)
		log.Warn("fasta body rejected", "error", err)
		h.writeError(w, apperrors.HTTPStatusCode(appErr), appErr.Message)
		return
	}

	baseKey := r.Header.Get("Idempotency-Key")
	var out ingestion.BatchIngestResponse
	status := http.StatusAccepted
	for i, g := range genomes {
		req := ingestion.IngestRequest{Name: g.Name(), Sequence: g.Bases()}
		if baseKey != "" {
			req.IdempotencyKey = fmt.Sprintf("%s#%d", baseKey, i+1)
		}
		err := validator.ValidateIngestRequest(&req, h.maxSequenceLength())
		var resp *ingestion.IngestResponse
		if err == nil {
			resp, err = h.ingester.Ingest(ctx, &req)
		}
		if err != nil {
			status = apperrors.HTTPStatusCode(err)
			var ve *validator.ValidationError
			if errors.As(err, &ve) {
				status = http.StatusBadRequest
			}
			out.Failed = &ingestion.BatchFailure{Record: i + 1, Name: g.Name(), Error: apperrors.Message(err, err.Error())}
			log.Error("fasta ingestion stopped", "record", i+1, "name", g.Name(), "error", err)
			break
		}
		out.Accepted = append(out.Accepted, *resp)
	}
	log.Info("fasta ingested", "records", len(genomes), "accepted", len(out.Accepted))
	h.writeJSON(w, status, out)
}

func (h *Handler) maxSequenceLength() int {
	return int(h.maxBodyBytes)
}

func isFASTA(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	switch mt {
	case "text/x-fasta", "application/x-fasta", "chemical/seq-na-fasta":
		return true
	}
	return false
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) writeValidationError(w http.ResponseWriter, err error) {
	var validationErr *validator.ValidationError
	if errors.As(err, &validationErr) {
		h.writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "validation failed",
			"fields": validationErr.Fields,
		})
		return
	}
	h.writeError(w, http.StatusBadRequest, err.Error())
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
