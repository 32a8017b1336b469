// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/emberline/flue/internal/adapters/gateway"
	service "github.com/emberline/flue/internal/app"
	"github.com/emberline/flue/internal/domain/model"
	"github.com/emberline/flue/internal/domain/types"
	"github.com/emberline/flue/pkg/metrics"
)

// cacheHeader reports the cache disposition of a compute response.
const cacheHeader = "X-Flue-Cache"

// versionHeader reports the dataset version a compute response was built under.
const versionHeader = "X-Dataset-Version"

// ComputeDependencies defines the interface for compute operations.
type ComputeDependencies interface {
	Compute(ctx context.Context, req model.ComputeRequest) (types.Outcome, error)
	CacheTTL() time.Duration
}

// ComputeHandler handles compute requests.
type ComputeHandler struct {
	deps ComputeDependencies
}

// NewComputeHandler creates a new compute handler.
func NewComputeHandler(deps ComputeDependencies) *ComputeHandler {
	return &ComputeHandler{deps: deps}
}

// HandleCompute handles POST /api/compute requests.
func (h *ComputeHandler) HandleCompute(w http.ResponseWriter, r *http.Request) {
	const op = "api.compute"
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, NewKind(op, ErrMethodNotAllowed))
		return
	}
	req, err := decodeComputeRequest(r)
	if err != nil {
		metrics.RecordValidationError()
		writeError(w, http.StatusBadRequest, WrapKind(op, ErrBadRequest, err))
		return
	}

	outcome, err := h.deps.Compute(r.Context(), req)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}

	hdr := w.Header()
	for key, value := range outcome.Header {
		hdr.Set(key, value)
	}
	hdr.Set("Cache-Control", fmt.Sprintf("private, max-age=%d", int(h.deps.CacheTTL().Seconds())))
	hdr.Set(cacheHeader, cacheState(outcome.CacheHit))
	if outcome.DatasetVersion != "" {
		hdr.Set(versionHeader, outcome.DatasetVersion)
	}
	hdr.Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(outcome.Body)
}

// decodeComputeRequest reads the body into a validated compute request.
// UseNumber keeps override values exact until the validator coerces them.
func decodeComputeRequest(r *http.Request) (model.ComputeRequest, error) {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return model.ComputeRequest{}, fmt.Errorf("%w: body is not valid JSON", model.ErrInvalidPayload)
	}
	return model.ParseComputeRequest(raw)
}

// writeServiceError maps service errors onto the edge contract. Upstream
// failures relay the backend's own status, content type, and body untouched.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	var upstream *gateway.UpstreamError
	switch {
	case errors.As(err, &upstream):
		relayUpstream(w, upstream)
	case errors.Is(err, service.ErrBackendUnconfigured):
		writeError(w, http.StatusInternalServerError, Wrap(op, err))
	case errors.Is(err, gateway.ErrUpstreamUnreachable):
		writeError(w, http.StatusBadGateway, Wrap(op, err))
	default:
		writeError(w, http.StatusInternalServerError, Wrap(op, err))
	}
}

func relayUpstream(w http.ResponseWriter, upstream *gateway.UpstreamError) {
	if upstream.ContentType != "" {
		w.Header().Set("Content-Type", upstream.ContentType)
	}
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(upstream.Status)
	_, _ = w.Write(upstream.Body)
}

func cacheState(hit bool) string {
	if hit {
		return "hit"
	}
	return "miss"
}
