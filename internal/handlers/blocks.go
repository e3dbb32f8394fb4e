package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/prompt-atelier/promptblocks/internal/models"
)

// HandleBlocks serves the personal block library: GET lists the user's saved
// blocks, POST persists a flat save list coming out of a batch review.
func (h *Handler) HandleBlocks(w http.ResponseWriter, r *http.Request, userID string) {
	switch r.Method {
	case "GET":
		h.writeJSON(w, h.library.ListBlocks(userID))
	case "POST":
		var request struct {
			Blocks       []models.BlockToSave `json:"blocks"`
			CollectionID string               `json:"collectionId"`
		}
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
			return
		}

		for _, b := range request.Blocks {
			if !b.BlockType.IsValid() {
				h.writeError(w, "Unknown block type: "+string(b.BlockType), http.StatusBadRequest)
				return
			}
		}

		saved, err := h.library.SaveBlocks(r.Context(), userID, request.Blocks, request.CollectionID)
		if err != nil {
			h.writeError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		h.writeJSON(w, saved)
	default:
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
