package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prompt-atelier/promptblocks/internal/batch"
	"github.com/prompt-atelier/promptblocks/internal/blocks"
	"github.com/prompt-atelier/promptblocks/internal/decompose"
)

const msgPreambleTooLong = "모드 프리앰블은 4000자 이하여야 합니다."

// HandleBatchDecompose streams per-image decomposition results as NDJSON.
// Auth and rate limiting happen before validation; validation failures come
// back as a single JSON error, never inside the stream.
func (h *Handler) HandleBatchDecompose(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != "POST" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !h.checkRateLimit(w, userID) {
		return
	}

	var request struct {
		Images       json.RawMessage `json:"images"`
		ModePreamble string          `json:"modePreamble"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	if len(request.ModePreamble) > decompose.MaxPreambleLength {
		h.writeError(w, msgPreambleTooLong, http.StatusBadRequest)
		return
	}

	imgs, err := batch.ParseImages(request.Images)
	if err != nil {
		var validationErr *batch.ValidationError
		if errors.As(err, &validationErr) {
			h.writeError(w, validationErr.Message, http.StatusBadRequest)
			return
		}
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if !h.usage.Consume(userID, len(imgs)) {
		h.writeError(w, msgUsageLimit, http.StatusTooManyRequests)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeError(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache, no-transform")
	w.WriteHeader(http.StatusOK)

	analyzer := &requestAnalyzer{
		service:      h.decomposer,
		provider:     r.Header.Get("X-AI-Provider"),
		model:        r.Header.Get("X-AI-Model"),
		apiKey:       r.Header.Get("X-API-Key"),
		modePreamble: request.ModePreamble,
	}

	orchestrator := batch.NewOrchestrator(analyzer)
	sink := &ndjsonSink{w: w, flusher: flusher}

	slog.Info("Batch decompose started", "user", userID, "images", len(imgs), "provider", analyzer.provider)

	// The request context is wired through so a client disconnect stops the
	// loop between items.
	if err := orchestrator.Run(r.Context(), imgs, sink); err != nil {
		slog.Warn("Batch decompose aborted", "user", userID, "err", err)
	}
}

// requestAnalyzer binds the decompose service to one request's credentials.
type requestAnalyzer struct {
	service      *decompose.Service
	provider     string
	model        string
	apiKey       string
	modePreamble string
}

func (a *requestAnalyzer) AnalyzeImage(ctx context.Context, image string) (string, *blocks.DecomposeResult, error) {
	outcome, err := a.service.Decompose(ctx, decompose.Request{
		Image:        image,
		Provider:     a.provider,
		Model:        a.model,
		APIKey:       a.apiKey,
		ModePreamble: a.modePreamble,
	})
	if err != nil {
		return "", nil, err
	}
	return outcome.Prompt, outcome.Result, nil
}

// ndjsonSink writes one JSON object per line and flushes after every event so
// progress reaches the client immediately.
type ndjsonSink struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func (s *ndjsonSink) Emit(event any) error {
	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if _, err := s.w.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	s.flusher.Flush()
	return nil
}
