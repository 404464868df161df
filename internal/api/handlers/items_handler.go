package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/boediario/boediario/internal/core"
	"github.com/boediario/boediario/internal/core/sumario"
)

type ItemsHandler struct {
	dbclient core.DbClient
}

func NewItemsHandler(dbclient core.DbClient) *ItemsHandler {
	return &ItemsHandler{dbclient: dbclient}
}

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// ListItems serves GET /api/items with optional fecha, seccion,
// departamento, clase and paging filters.
func (h *ItemsHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := core.ItemFilter{
		Seccion:      strings.TrimSpace(q.Get("seccion")),
		Departamento: strings.TrimSpace(q.Get("departamento")),
		Clase:        strings.TrimSpace(q.Get("clase")),
		Limit:        parseIntParam(q.Get("limit"), defaultPageSize, maxPageSize),
		Offset:       parseIntParam(q.Get("offset"), 0, 1<<30),
	}
	if f := strings.TrimSpace(q.Get("fecha")); f != "" {
		d, err := sumario.ParseDate(f)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid fecha, use YYYY-MM-DD")
			return
		}
		filter.Fecha = &d
	}

	items, err := h.dbclient.ListItems(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"count": len(items),
	})
}

func (h *ItemsHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	identificador := chi.URLParam(r, "identificador")
	item, err := h.dbclient.GetItem(r.Context(), identificador)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if item == nil {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// RelatedItems serves nearest neighbours by summary embedding.
func (h *ItemsHandler) RelatedItems(w http.ResponseWriter, r *http.Request) {
	identificador := chi.URLParam(r, "identificador")
	limit := parseIntParam(r.URL.Query().Get("limit"), 5, 20)

	items, err := h.dbclient.SearchRelatedItems(r.Context(), identificador, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// Catalogs serves both lookup tables in one response.
func (h *ItemsHandler) Catalogs(w http.ResponseWriter, r *http.Request) {
	secciones, err := h.dbclient.ListSecciones(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	departamentos, err := h.dbclient.ListDepartamentos(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"secciones":     secciones,
		"departamentos": departamentos,
	})
}

func parseIntParam(s string, def, max int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
