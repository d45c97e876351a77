package api

import (
	"context"
	"net/http"

	"github.com/okian/storyrank/internal/domain/types"
)

// RankDependencies defines the interface for rank operations.
type RankDependencies interface {
	StoryRank(ctx context.Context, tenantID, metric, id string) (types.Entry, error)
}

// RankHandler handles rank requests.
type RankHandler struct {
	deps RankDependencies
}

// NewRankHandler creates a new rank handler.
func NewRankHandler(deps RankDependencies) *RankHandler {
	return &RankHandler{deps: deps}
}

// HandleGetRank handles GET /rank/{metric}/{id} requests.
func (h *RankHandler) HandleGetRank(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_rank"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	entry, err := h.deps.StoryRank(r.Context(), principal(r).TenantID, r.PathValue("metric"), r.PathValue("id"))
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
