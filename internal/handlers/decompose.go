package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/prompt-atelier/promptblocks/internal/decompose"
)

// HandleDecompose analyzes a single image and returns the reconstructed
// prompt plus its 13 block fragments.
func (h *Handler) HandleDecompose(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != "POST" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !h.checkRateLimit(w, userID) {
		return
	}

	var request struct {
		Image        string `json:"image"`
		ModePreamble string `json:"modePreamble"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	if !h.usage.Consume(userID, 1) {
		h.writeError(w, msgUsageLimit, http.StatusTooManyRequests)
		return
	}

	outcome, err := h.decomposer.Decompose(r.Context(), decompose.Request{
		Image:        request.Image,
		Provider:     r.Header.Get("X-AI-Provider"),
		Model:        r.Header.Get("X-AI-Model"),
		APIKey:       r.Header.Get("X-API-Key"),
		ModePreamble: request.ModePreamble,
	})
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadGateway)
		return
	}

	h.writeJSON(w, outcome)
}
