package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/boediario/boediario/internal/core"
	"github.com/boediario/boediario/internal/models"
)

// EngagementHandler covers reactions and comments on items.
type EngagementHandler struct {
	dbclient core.DbClient
}

func NewEngagementHandler(dbclient core.DbClient) *EngagementHandler {
	return &EngagementHandler{dbclient: dbclient}
}

type reactionRequest struct {
	UserID string `json:"user_id"`
	Kind   string `json:"kind"`
}

// ToggleReaction serves POST /api/items/{identificador}/reactions. Sending
// the same kind twice removes it, the other kind switches it.
func (h *EngagementHandler) ToggleReaction(w http.ResponseWriter, r *http.Request) {
	identificador := chi.URLParam(r, "identificador")

	var req reactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if req.Kind != models.ReactionLike && req.Kind != models.ReactionDislike {
		writeError(w, http.StatusBadRequest, "kind must be like or dislike")
		return
	}

	likes, dislikes, err := h.dbclient.ToggleReaction(r.Context(), identificador, req.UserID, req.Kind)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"likes": likes, "dislikes": dislikes})
}

func (h *EngagementHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	identificador := chi.URLParam(r, "identificador")
	comments, err := h.dbclient.ListComments(r.Context(), identificador)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"comments": comments})
}

type commentRequest struct {
	UserID string `json:"user_id"`
	Body   string `json:"body"`
}

const commentMaxChars = 4000

func (h *EngagementHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	identificador := chi.URLParam(r, "identificador")

	var req commentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	body := strings.TrimSpace(req.Body)
	switch {
	case strings.TrimSpace(req.UserID) == "":
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	case body == "":
		writeError(w, http.StatusBadRequest, "body is required")
		return
	case len(body) > commentMaxChars:
		writeError(w, http.StatusBadRequest, "comment too long")
		return
	}

	comment := &models.Comment{
		ID:            uuid.NewString(),
		Identificador: identificador,
		UserID:        req.UserID,
		Body:          body,
		CreatedAt:     time.Now().UTC(),
	}
	if err := h.dbclient.AddComment(r.Context(), comment); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}
