package handlers

import (
	"context"
	"net/http"
	"time"

	pkghttp "github.com/BradenHooton/shopguard/pkg/http"
)

// Pinger reports whether a backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports service and guard store health
type HealthHandler struct {
	store     Pinger
	storeKind string
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(store Pinger, storeKind string) *HealthHandler {
	return &HealthHandler{store: store, storeKind: storeKind}
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store"`
}

// Health pings the guard store with a short timeout
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		pkghttp.WriteJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable", Store: h.storeKind})
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, HealthResponse{Status: "ok", Store: h.storeKind})
}
