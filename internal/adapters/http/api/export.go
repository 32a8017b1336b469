// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"

	"github.com/emberline/flue/internal/adapters/gateway"
	"github.com/emberline/flue/internal/domain/model"
	"github.com/emberline/flue/internal/domain/types"
	"github.com/emberline/flue/pkg/metrics"
)

// ExportDependencies defines the interface for export operations.
type ExportDependencies interface {
	Export(ctx context.Context, req model.ComputeRequest, format gateway.Format, accept string) (types.ExportReply, error)
}

// ExportHandler handles export requests.
type ExportHandler struct {
	deps ExportDependencies
}

// NewExportHandler creates a new export handler.
func NewExportHandler(deps ExportDependencies) *ExportHandler {
	return &ExportHandler{deps: deps}
}

// HandleExport handles POST /api/compute/export?format=csv|json|txt requests.
// The upstream reply is relayed verbatim, never cached.
func (h *ExportHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	const op = "api.export"
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

	format := gateway.ParseFormat(r.URL.Query().Get("format"))
	reply, err := h.deps.Export(r.Context(), req, format, r.Header.Get("Accept"))
	if err != nil {
		writeServiceError(w, op, err)
		return
	}

	if reply.ContentType != "" {
		w.Header().Set("Content-Type", reply.ContentType)
	}
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(reply.Status)
	_, _ = w.Write(reply.Body)
}
