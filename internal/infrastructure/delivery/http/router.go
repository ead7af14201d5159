// Package httprouter serves the optional metrics listener.
package httprouter

import (
	"log/slog"
	"net/http"
	"slices"

	"streamsnip/internal/consts"
	"streamsnip/internal/entity"
	"streamsnip/internal/infrastructure/delivery/http/middleware"
	"streamsnip/internal/infrastructure/delivery/http/response"
	"streamsnip/internal/observability"
)

// SummarySource exposes the latest finished batch.
type SummarySource interface {
	Last() (entity.Summary, bool)
}

// Router is a ServeMux with a global middleware chain.
type Router struct {
	*http.ServeMux
	log         *slog.Logger
	metrics     *observability.Metrics
	summaries   SummarySource
	globalChain []func(http.Handler) http.Handler
}

// New creates the router with all routes registered.
func New(log *slog.Logger, metrics *observability.Metrics, summaries SummarySource) *Router {
	r := &Router{
		ServeMux:  http.NewServeMux(),
		log:       log.With(slog.String("package", "httprouter")),
		metrics:   metrics,
		summaries: summaries,
	}

	r.Use(
		middleware.Recoverer(r.log),
		middleware.RequestID,
		middleware.Logger(r.log),
		middleware.Metrics(metrics),
	)

	r.HandleFunc("GET /v1/readyz", r.Readyz)
	r.HandleFunc("GET /v1/batches/last", r.LastBatch)
	r.Handle("GET /metrics", metrics.Handler())

	return r
}

// Use appends global middlewares. They run in the order given.
func (r *Router) Use(mws ...func(http.Handler) http.Handler) {
	r.globalChain = append(r.globalChain, mws...)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	var h http.Handler = r.ServeMux

	for _, mw := range slices.Backward(r.globalChain) {
		h = mw(h)
	}

	h.ServeHTTP(w, req)
}

// Readyz reports that the process is up.
func (r *Router) Readyz(w http.ResponseWriter, _ *http.Request) {
	response.OK(w, consts.RespReady, nil, nil)
}

// LastBatch returns the summary of the latest finished batch.
func (r *Router) LastBatch(w http.ResponseWriter, req *http.Request) {
	if r.summaries == nil {
		response.NotFound(w, consts.RespNoBatches)

		return
	}

	sum, ok := r.summaries.Last()
	if !ok {
		r.log.DebugContext(req.Context(), consts.RespNoBatches)
		response.NotFound(w, consts.RespNoBatches)

		return
	}

	response.OK(w, consts.RespBatchRetrieved, sum, nil)
}
