package api

import (
	"context"
	"net/http"

	"github.com/okian/storyrank/internal/adapters/repository"
	"github.com/okian/storyrank/internal/domain/model"
)

// StoryDependencies defines the story operations used by the API.
type StoryDependencies interface {
	CreateStories(ctx context.Context, tenantID string, titles []string) ([]model.Story, error)
	ListStories(ctx context.Context, tenantID, category string, limit int, cursor string) (repository.Page, error)
	GetStory(ctx context.Context, tenantID, id string) (model.Story, error)
}

// StoriesHandler handles story requests.
type StoriesHandler struct {
	deps StoryDependencies
}

// NewStoriesHandler creates a new stories handler.
func NewStoriesHandler(deps StoryDependencies) *StoriesHandler {
	return &StoriesHandler{deps: deps}
}

type createStoriesRequest struct {
	Titles []string `json:"titles"`
}

type createStoriesResponse struct {
	Inserted int           `json:"inserted"`
	Stories  []model.Story `json:"stories"`
}

type listStoriesResponse struct {
	Stories    []model.Story `json:"stories"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

// HandleStories handles POST /stories and GET /stories.
func (h *StoriesHandler) HandleStories(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.create(w, r)
	case http.MethodGet:
		h.list(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *StoriesHandler) create(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_stories"
	var req createStoriesRequest
	if err := decode(r, w, &req); err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	stories, err := h.deps.CreateStories(r.Context(), principal(r).TenantID, req.Titles)
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, createStoriesResponse{Inserted: len(stories), Stories: stories})
}

func (h *StoriesHandler) list(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_stories"
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	q := r.URL.Query()
	page, err := h.deps.ListStories(r.Context(), principal(r).TenantID, q.Get("category"), limit, q.Get("cursor"))
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, listStoriesResponse{Stories: page.Stories, NextCursor: page.NextCursor})
}

// HandleGetStory handles GET /stories/{id}.
func (h *StoriesHandler) HandleGetStory(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_story"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	story, err := h.deps.GetStory(r.Context(), principal(r).TenantID, r.PathValue("id"))
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, story)
}
