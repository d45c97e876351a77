package api

import (
	"context"
	"net/http"

	service "github.com/okian/storyrank/internal/app"
	"github.com/okian/storyrank/internal/domain/model"
	"github.com/okian/storyrank/internal/domain/types"
)

// SessionDependencies defines the group slider session operations.
type SessionDependencies interface {
	CreateSession(ctx context.Context, tenantID, metric string, storyIDs []string) (model.Session, error)
	GetSession(ctx context.Context, tenantID, id string) (model.Session, error)
	JoinSession(ctx context.Context, tenantID, id, userID, userName string) (model.Session, error)
	StartSession(ctx context.Context, tenantID, id string) (model.Session, error)
	SubmitSessionRatings(ctx context.Context, tenantID, id, userID, userName string, values map[string]float64) (model.Session, error)
	SessionResults(ctx context.Context, tenantID, id string) (types.SessionResults, error)
	ApplySessionConsensus(ctx context.Context, tenantID, id string) (service.ConsensusResult, error)
}

// SessionsHandler handles the /sessions routes.
type SessionsHandler struct {
	deps   SessionDependencies
	stream SessionStream
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(deps SessionDependencies, stream SessionStream) *SessionsHandler {
	return &SessionsHandler{deps: deps, stream: stream}
}

type createSessionRequest struct {
	Metric   string   `json:"metric"`
	StoryIDs []string `json:"story_ids"`
}

type joinRequest struct {
	UserName string `json:"user_name"`
}

type submitRequest struct {
	UserName string             `json:"user_name"`
	Ratings  map[string]float64 `json:"ratings"`
}

// HandleCreate handles POST /sessions.
func (h *SessionsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_session"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req createSessionRequest
	if err := decode(r, w, &req); err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	sess, err := h.deps.CreateSession(r.Context(), principal(r).TenantID, req.Metric, req.StoryIDs)
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

// HandleGet handles GET /sessions/{id}.
func (h *SessionsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_session"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	sess, err := h.deps.GetSession(r.Context(), principal(r).TenantID, r.PathValue("id"))
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// HandleJoin handles POST /sessions/{id}/join.
func (h *SessionsHandler) HandleJoin(w http.ResponseWriter, r *http.Request) {
	const op = "api.join_session"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req joinRequest
	if err := decode(r, w, &req); err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	p := principal(r)
	sess, err := h.deps.JoinSession(r.Context(), p.TenantID, r.PathValue("id"), p.UserID, req.UserName)
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// HandleStart handles POST /sessions/{id}/start.
func (h *SessionsHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	const op = "api.start_session"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	sess, err := h.deps.StartSession(r.Context(), principal(r).TenantID, r.PathValue("id"))
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// HandleSubmit handles POST /sessions/{id}/ratings.
func (h *SessionsHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit_session_ratings"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req submitRequest
	if err := decode(r, w, &req); err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	p := principal(r)
	sess, err := h.deps.SubmitSessionRatings(r.Context(), p.TenantID, r.PathValue("id"), p.UserID, req.UserName, req.Ratings)
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// HandleResults handles GET /sessions/{id}/results.
func (h *SessionsHandler) HandleResults(w http.ResponseWriter, r *http.Request) {
	const op = "api.session_results"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	res, err := h.deps.SessionResults(r.Context(), principal(r).TenantID, r.PathValue("id"))
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleApply handles POST /sessions/{id}/apply.
func (h *SessionsHandler) HandleApply(w http.ResponseWriter, r *http.Request) {
	const op = "api.elo_session_apply"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	res, err := h.deps.ApplySessionConsensus(r.Context(), principal(r).TenantID, r.PathValue("id"))
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleStream handles GET /sessions/{id}/ws.
func (h *SessionsHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	const op = "api.session_stream"
	if r.Method != http.MethodGet || h.stream == nil {
		http.NotFound(w, r)
		return
	}
	sess, err := h.deps.GetSession(r.Context(), principal(r).TenantID, r.PathValue("id"))
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	h.stream.Serve(w, r, sess.ID)
}
