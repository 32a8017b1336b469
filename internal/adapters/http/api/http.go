// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/emberline/flue/internal/adapters/gateway"
	"github.com/emberline/flue/internal/domain/model"
	"github.com/emberline/flue/internal/domain/types"
)

// computePrefix is the namespace the method/suffix state machine routes.
const computePrefix = "/api/compute"

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Compute serves a validated request through the cache-aside path.
	Compute(ctx context.Context, req model.ComputeRequest) (types.Outcome, error)

	// Export proxies a validated request to the upstream export endpoint.
	// The reply is relayed verbatim whatever the upstream status was.
	Export(ctx context.Context, req model.ComputeRequest, format gateway.Format, accept string) (types.ExportReply, error)

	// DatasetVersion reports the version the next computation would use.
	DatasetVersion() string

	// CacheTTL reports how long cached compute responses stay fresh.
	CacheTTL() time.Duration
}

// Server wires HTTP routes for the business API.
type Server struct {
	computeHandler    *ComputeHandler
	exportHandler     *ExportHandler
	activitiesHandler *ActivitiesHandler
	healthHandler     *HealthHandler
	metricsHandler    *MetricsHandler
	statsHandler      *StatsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		computeHandler:    NewComputeHandler(deps),
		exportHandler:     NewExportHandler(deps),
		activitiesHandler: NewActivitiesHandler(deps),
		healthHandler:     NewHealthHandler(),
		metricsHandler:    NewMetricsHandler(),
		statsHandler:      NewStatsHandler(statsProvider),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	// Specific paths first (most specific to least specific)
	mux.HandleFunc("/healthz", withPreflight(MetricsMiddleware(s.healthHandler.HandleHealth, "healthz")))
	mux.HandleFunc("/metrics", withPreflight(s.metricsHandler.HandleMetrics))
	mux.HandleFunc("/stats", withPreflight(MetricsMiddleware(s.statsHandler.HandleStats, "stats")))
	mux.HandleFunc("/activities", withPreflight(MetricsMiddleware(s.activitiesHandler.HandleActivities, "activities")))

	// The compute namespace routes by suffix; the exact export path gets its
	// own metrics label.
	mux.HandleFunc(computePrefix, MetricsMiddleware(s.routeCompute, "compute"))
	mux.HandleFunc(computePrefix+"/", MetricsMiddleware(s.routeCompute, "compute"))
	mux.HandleFunc(computePrefix+"/export", MetricsMiddleware(s.routeCompute, "export"))

	mux.HandleFunc("/", s.handleFallback)
}

// routeCompute drives the method and suffix state machine under the compute
// namespace. Preflight is terminal on every suffix.
func (s *Server) routeCompute(w http.ResponseWriter, r *http.Request) {
	const op = "api.route"
	if r.Method == http.MethodOptions {
		writePreflight(w)
		return
	}
	suffix := strings.Trim(strings.TrimPrefix(r.URL.Path, computePrefix), "/")
	switch suffix {
	case "":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, NewKind(op, ErrMethodNotAllowed))
			return
		}
		s.computeHandler.HandleCompute(w, r)
	case "export":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, NewKind(op, ErrMethodNotAllowed))
			return
		}
		s.exportHandler.HandleExport(w, r)
	default:
		writeError(w, http.StatusNotFound, NewKind(op, ErrRouteNotFound))
	}
}

// handleFallback answers preflight for unmatched paths and 404s the rest.
func (s *Server) handleFallback(w http.ResponseWriter, r *http.Request) {
	const op = "api.route"
	if r.Method == http.MethodOptions {
		writePreflight(w)
		return
	}
	writeError(w, http.StatusNotFound, NewKind(op, ErrRouteNotFound))
}

// withPreflight makes CORS preflight terminal on a route before the wrapped
// handler sees the request.
func withPreflight(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			writePreflight(w)
			return
		}
		next(w, r)
	}
}

// writePreflight answers an OPTIONS request with permissive CORS headers and
// no body.
func writePreflight(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "content-type")
	w.WriteHeader(http.StatusNoContent)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Error: msg})
}
