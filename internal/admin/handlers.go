// Package admin provides HTTP handlers for the cache administration API.
// Routes expose statistics, entry inspection and the bulk maintenance
// operations (clear, clear by pattern, cleanup). Routes are protected by
// bearer-token authentication via AuthMiddleware when a token is configured.
package admin

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	marketcache "github.com/ferro-labs/market-cache"
	"github.com/ferro-labs/market-cache/internal/logging"
)

// Handlers holds dependencies for admin HTTP handlers.
type Handlers struct {
	Cache *marketcache.Cache
}

const entriesPrefix = "/entries/"

type clearPatternRequest struct {
	Pattern string `json:"pattern"`
}

// Routes returns a chi.Router with all cache admin endpoints mounted.
func (h *Handlers) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/stats", h.stats)
	r.Get(entriesPrefix+"*", h.getEntry)
	r.Delete("/", h.clear)
	r.Post("/clear-pattern", h.clearPattern)
	r.Post("/cleanup", h.cleanup)
	return r
}

func (h *Handlers) stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Cache.Stats(r.Context()))
}

func (h *Handlers) getEntry(w http.ResponseWriter, r *http.Request) {
	key, err := entryKey(r)
	if err != nil || key == "" {
		writeError(w, http.StatusBadRequest, "invalid cache key")
		return
	}
	info, ok := h.Cache.Inspect(r.Context(), key)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("cache entry %q not found", key))
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// entryKey unescapes the path suffix after /entries/ exactly once. chi's
// wildcard param is taken from the decoded path, which would decode keys
// containing '%' a second time.
func entryKey(r *http.Request) (string, error) {
	escaped := r.URL.EscapedPath()
	i := strings.Index(escaped, entriesPrefix)
	if i < 0 {
		return "", fmt.Errorf("missing entry key")
	}
	return url.PathUnescape(escaped[i+len(entriesPrefix):])
}

func (h *Handlers) clear(w http.ResponseWriter, r *http.Request) {
	h.Cache.Clear(r.Context())
	logging.FromContext(r.Context(), logging.Component("admin")).Info("cache cleared via admin API")
	writeJSON(w, http.StatusOK, map[string]string{"message": "Cache cleared successfully"})
}

func (h *Handlers) clearPattern(w http.ResponseWriter, r *http.Request) {
	var req clearPatternRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Pattern == "" {
		writeError(w, http.StatusBadRequest, "pattern is required")
		return
	}
	n := h.Cache.ClearPattern(r.Context(), req.Pattern)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"cleared": n,
		"message": fmt.Sprintf("Cleared %d cache entries matching pattern: %s", n, req.Pattern),
	})
}

func (h *Handlers) cleanup(w http.ResponseWriter, r *http.Request) {
	n := h.Cache.Cleanup(r.Context())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"removed": n,
		"message": fmt.Sprintf("Removed %d expired cache entries", n),
	})
}
