package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	service "github.com/okian/storyrank/internal/app"
	"github.com/okian/storyrank/internal/domain/model"
	"github.com/okian/storyrank/internal/domain/rating"
)

// ComparisonDependencies defines the rating write operations.
type ComparisonDependencies interface {
	SubmitComparison(ctx context.Context, tenantID string, c model.Comparison, sync bool) (service.ComparisonResult, error)
	RankStories(ctx context.Context, tenantID, metric string, ordered []string) (map[string]float64, error)
	ApplySliderUpdates(ctx context.Context, tenantID, metric string, updates []service.SliderUpdate) (map[string]float64, error)
}

// CompareHandler handles the /elo routes.
type CompareHandler struct {
	deps ComparisonDependencies
}

// NewCompareHandler creates a new compare handler.
func NewCompareHandler(deps ComparisonDependencies) *CompareHandler {
	return &CompareHandler{deps: deps}
}

// compareRequest mirrors the OpenAPI schema for POST /elo/compare.
type compareRequest struct {
	ComparisonID  string `json:"comparison_id"`
	Metric        string `json:"metric"`
	LeftStoryID   string `json:"left_story_id"`
	RightStoryID  string `json:"right_story_id"`
	WinnerStoryID string `json:"winner_story_id"`
	TS            string `json:"ts"`
}

func (c compareRequest) comparison() (model.Comparison, error) {
	m, err := rating.ParseMetric(c.Metric)
	if err != nil {
		return model.Comparison{}, err
	}
	out := model.Comparison{
		ID:            strings.TrimSpace(c.ComparisonID),
		LeftStoryID:   c.LeftStoryID,
		RightStoryID:  c.RightStoryID,
		WinnerStoryID: c.WinnerStoryID,
		Metric:        m,
	}
	if c.TS != "" {
		ts, err := time.Parse(time.RFC3339, c.TS)
		if err != nil {
			return model.Comparison{}, WrapKind("api.elo_compare", ErrBadRequest, err)
		}
		out.TS = ts
	}
	return out, out.Validate()
}

type compareResponse struct {
	Status       string       `json:"status"`
	ComparisonID string       `json:"comparison_id"`
	Duplicate    bool         `json:"duplicate"`
	Winner       *model.Story `json:"winner,omitempty"`
	Loser        *model.Story `json:"loser,omitempty"`
}

// HandleCompare handles POST /elo/compare[?sync=true].
func (h *CompareHandler) HandleCompare(w http.ResponseWriter, r *http.Request) {
	const op = "api.elo_compare"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req compareRequest
	if err := decode(r, w, &req); err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	c, err := req.comparison()
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	sync, _ := strconv.ParseBool(r.URL.Query().Get("sync"))

	res, err := h.deps.SubmitComparison(r.Context(), principal(r).TenantID, c, sync)
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	switch {
	case res.Duplicate:
		writeJSON(w, http.StatusOK, compareResponse{Status: "duplicate", ComparisonID: res.ID, Duplicate: true})
	case sync:
		writeJSON(w, http.StatusOK, compareResponse{Status: "applied", ComparisonID: res.ID, Winner: res.Winner, Loser: res.Loser})
	default:
		writeJSON(w, http.StatusAccepted, compareResponse{Status: "accepted", ComparisonID: res.ID})
	}
}

type rankRequest struct {
	Metric          string   `json:"metric"`
	OrderedStoryIDs []string `json:"ordered_story_ids"`
}

type rankResponse struct {
	UpdatedCount int                `json:"updated_count"`
	Ratings      map[string]float64 `json:"ratings"`
}

// HandleRank handles POST /elo/rank.
func (h *CompareHandler) HandleRank(w http.ResponseWriter, r *http.Request) {
	const op = "api.elo_rank"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req rankRequest
	if err := decode(r, w, &req); err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	ratings, err := h.deps.RankStories(r.Context(), principal(r).TenantID, req.Metric, req.OrderedStoryIDs)
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	updated := len(ratings)
	if updated == 1 {
		updated = 0
	}
	writeJSON(w, http.StatusOK, rankResponse{UpdatedCount: updated, Ratings: ratings})
}

type sliderRequest struct {
	Metric  string `json:"metric"`
	Updates []struct {
		StoryID   string  `json:"story_id"`
		NewRating float64 `json:"new_rating"`
	} `json:"updates"`
}

type sliderResponse struct {
	Updated int                `json:"updated"`
	Ratings map[string]float64 `json:"ratings"`
}

// HandleSlider handles POST /elo/slider.
func (h *CompareHandler) HandleSlider(w http.ResponseWriter, r *http.Request) {
	const op = "api.elo_slider"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req sliderRequest
	if err := decode(r, w, &req); err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	updates := make([]service.SliderUpdate, 0, len(req.Updates))
	for _, u := range req.Updates {
		updates = append(updates, service.SliderUpdate{StoryID: u.StoryID, NewRating: u.NewRating})
	}
	applied, err := h.deps.ApplySliderUpdates(r.Context(), principal(r).TenantID, req.Metric, updates)
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, sliderResponse{Updated: len(applied), Ratings: applied})
}
