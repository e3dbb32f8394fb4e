package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prompt-atelier/promptblocks/internal/kvstore"
)

const (
	msgUnauthorized = "로그인이 필요합니다."
	msgRateLimited  = "요청이 너무 많습니다. 잠시 후 다시 시도해주세요."
	msgUsageLimit   = "오늘의 분석 한도를 모두 사용했습니다."
)

// WithAuth resolves the bearer token to a user ID before calling next. The
// user ID is passed straight through rather than stashed in the request
// context; every protected handler wants it anyway.
func (h *Handler) WithAuth(next func(w http.ResponseWriter, r *http.Request, userID string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		userID, err := h.authenticator.Authenticate(strings.TrimSpace(token))
		if err != nil {
			h.writeError(w, msgUnauthorized, http.StatusUnauthorized)
			return
		}
		next(w, r, userID)
	}
}

// checkRateLimit enforces the per-user token bucket. Checked once per
// request, before any processing.
func (h *Handler) checkRateLimit(w http.ResponseWriter, userID string) bool {
	if !h.limiter.Allow(userID) {
		h.writeError(w, msgRateLimited, http.StatusTooManyRequests)
		return false
	}
	return true
}

// UsageTracker counts decompositions per user per day in the injected
// key-value store. The counter key expires on its own, which is what resets
// the daily budget.
type UsageTracker struct {
	store kvstore.Store
	limit int
}

// NewUsageTracker creates a tracker with the given daily item limit. A limit
// of zero or less disables tracking.
func NewUsageTracker(store kvstore.Store, limit int) *UsageTracker {
	return &UsageTracker{store: store, limit: limit}
}

// Consume records n decompositions for the user and reports whether the
// daily budget still covers them.
func (u *UsageTracker) Consume(userID string, n int) bool {
	if u.limit <= 0 {
		return true
	}

	key := fmt.Sprintf("usage:%s:%s", userID, time.Now().UTC().Format("2006-01-02"))
	total := u.store.Incr(key, n, 24*time.Hour)
	return total <= u.limit
}

// Store exposes the underlying kvstore for janitor sweeps.
func (u *UsageTracker) Store() kvstore.Store {
	return u.store
}

// Usage exposes the handler's usage tracker to the serve command.
func (h *Handler) Usage() *UsageTracker {
	return h.usage
}
