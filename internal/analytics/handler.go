// Package analytics records page views and serves aggregated view
// statistics. Stats are expensive to aggregate, so fresh snapshots are
// held in the cache layer for a short TTL.
package analytics

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/showcaselabs/showcase-go/internal/api"
	"github.com/showcaselabs/showcase-go/internal/appctx"
	"github.com/showcaselabs/showcase-go/internal/cache"
	"github.com/showcaselabs/showcase-go/internal/store"
)

const statsCacheKey = "analytics:stats"

// Handler exposes the analytics endpoints.
type Handler struct {
	analytics store.AnalyticsStore
	cache     cache.Cache
}

// NewHandler creates an analytics handler. The cache may be nil, which
// disables stats caching.
func NewHandler(analytics store.AnalyticsStore, c cache.Cache) *Handler {
	return &Handler{analytics: analytics, cache: c}
}

// PageViewRequest is the POST /view body.
type PageViewRequest struct {
	Path      string `json:"path"`
	Visitor   string `json:"visitor"`
	UserAgent string `json:"user_agent"`
}

// HandleRecordView handles POST /api/v1/analytics/view.
func (h *Handler) HandleRecordView(w http.ResponseWriter, r *http.Request) {
	log := appctx.GetLogger(r.Context())

	var req PageViewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteBadRequest(w, api.ReasonBadRequest, "invalid JSON body")
		return
	}
	if req.Path == "" {
		api.WriteBadRequest(w, api.ReasonMissingField, "path is required")
		return
	}

	userAgent := req.UserAgent
	if userAgent == "" {
		userAgent = r.UserAgent()
	}

	view := &store.PageView{
		Path:      req.Path,
		Visitor:   req.Visitor,
		UserAgent: userAgent,
		CreatedAt: time.Now(),
	}
	if err := h.analytics.RecordPageView(r.Context(), view); err != nil {
		log.Error("record page view failed", "error", err)
		api.WriteInternalError(w, "failed to record view")
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// HandleStats handles GET /api/v1/analytics/stats. Admin-gated by the
// router. Serves a cached snapshot when one is fresh enough.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	log := appctx.GetLogger(r.Context())
	ctx := r.Context()

	if h.cache != nil {
		if cached, err := h.cache.Get(ctx, statsCacheKey); err == nil {
			var stats store.ViewStats
			if err := json.Unmarshal(cached, &stats); err == nil {
				api.WriteJSON(w, http.StatusOK, &stats)
				return
			}
			// Unreadable snapshot; fall through to a fresh aggregate.
			h.cache.Delete(ctx, statsCacheKey)
		}
	}

	stats, err := h.analytics.ViewStats(ctx)
	if err != nil {
		log.Error("aggregate view stats failed", "error", err)
		api.WriteInternalError(w, "failed to aggregate stats")
		return
	}

	if h.cache != nil {
		if data, err := json.Marshal(stats); err == nil {
			if err := h.cache.Set(ctx, statsCacheKey, data, cache.TTLStats); err != nil {
				log.Warn("failed to cache stats snapshot", "error", err)
			}
		}
	}

	api.WriteJSON(w, http.StatusOK, stats)
}
