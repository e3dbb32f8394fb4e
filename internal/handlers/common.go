package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"strconv"

	"github.com/prompt-atelier/promptblocks/internal/auth"
	"github.com/prompt-atelier/promptblocks/internal/decompose"
	"github.com/prompt-atelier/promptblocks/internal/kvstore"
	"github.com/prompt-atelier/promptblocks/internal/library"
	"github.com/prompt-atelier/promptblocks/internal/ratelimit"
)

// Handler wires the HTTP surface to the decomposition service and the
// supporting stores.
type Handler struct {
	decomposer    *decompose.Service
	library       *library.Store
	authenticator auth.Authenticator
	limiter       *ratelimit.PerUser
	usage         *UsageTracker
}

// New builds a handler with defaults resolved from the environment.
func New() *Handler {
	rps := envFloat("RATE_LIMIT_RPS", 1)
	burst := envInt("RATE_LIMIT_BURST", 3)
	dailyLimit := envInt("DAILY_DECOMPOSE_LIMIT", 100)

	return &Handler{
		decomposer:    decompose.NewService(),
		library:       library.NewStore(),
		authenticator: auth.FromEnv(),
		limiter:       ratelimit.NewPerUser(rps, burst),
		usage:         NewUsageTracker(kvstore.NewMemory(), dailyLimit),
	}
}

// Library exposes the block library store, mainly for tests and the CLI.
func (h *Handler) Library() *library.Store {
	return h.library
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	slog.Error(message, "status", code)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		slog.Error("Unable to encode error response", "err", err)
	}
}
