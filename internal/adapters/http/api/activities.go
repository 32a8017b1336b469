// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"net/http"

	"github.com/emberline/flue/internal/domain/catalog"
)

// ActivitiesDependencies defines the interface for catalog reads.
type ActivitiesDependencies interface {
	DatasetVersion() string
}

// ActivitiesHandler handles activity catalog requests.
type ActivitiesHandler struct {
	deps ActivitiesDependencies
}

// NewActivitiesHandler creates a new activities handler.
func NewActivitiesHandler(deps ActivitiesDependencies) *ActivitiesHandler {
	return &ActivitiesHandler{deps: deps}
}

// activitiesResponse is the wire shape for GET /activities.
type activitiesResponse struct {
	DatasetVersion string             `json:"dataset_version"`
	Activities     []catalog.Activity `json:"activities"`
}

// HandleActivities handles GET /activities requests. It lists the built-in
// catalog together with the dataset version computations currently use.
func (h *ActivitiesHandler) HandleActivities(w http.ResponseWriter, r *http.Request) {
	const op = "api.activities"
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, NewKind(op, ErrMethodNotAllowed))
		return
	}
	writeJSON(w, http.StatusOK, activitiesResponse{
		DatasetVersion: h.deps.DatasetVersion(),
		Activities:     catalog.Builtin(),
	})
}
