package api

import (
	"context"
	"net/http"

	"github.com/okian/storyrank/internal/domain/types"
)

// GraphDependencies places stories on the prioritisation chart.
type GraphDependencies interface {
	Graph(ctx context.Context, tenantID, category string) ([]types.GraphPoint, error)
}

// GraphHandler handles chart requests.
type GraphHandler struct {
	deps GraphDependencies
}

// NewGraphHandler creates a new graph handler.
func NewGraphHandler(deps GraphDependencies) *GraphHandler {
	return &GraphHandler{deps: deps}
}

// HandleGetGraph handles GET /graph?category=C.
func (h *GraphHandler) HandleGetGraph(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_graph"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	points, err := h.deps.Graph(r.Context(), principal(r).TenantID, r.URL.Query().Get("category"))
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, points)
}
