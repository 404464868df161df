package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/boediario/boediario/internal/core"
	"github.com/boediario/boediario/internal/core/sumario"
)

type SummariesHandler struct {
	dbclient core.DbClient
}

func NewSummariesHandler(dbclient core.DbClient) *SummariesHandler {
	return &SummariesHandler{dbclient: dbclient}
}

// GetDaily serves GET /api/resumen/{fecha}: all section digests of one day.
// The special value "latest" resolves to the most recent digested date.
func (h *SummariesHandler) GetDaily(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "fecha")

	var fecha time.Time
	if raw == "latest" {
		latest, err := h.dbclient.LatestSummaryDate(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if latest == nil {
			writeError(w, http.StatusNotFound, "no summaries yet")
			return
		}
		fecha = *latest
	} else {
		d, err := sumario.ParseDate(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid fecha, use YYYY-MM-DD")
			return
		}
		fecha = d
	}

	summaries, err := h.dbclient.GetDailySummaries(r.Context(), fecha)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"fecha":     fecha.Format("2006-01-02"),
		"secciones": summaries,
	})
}

// ListDates serves GET /api/resumen/dates: the dates that have digests,
// newest first.
func (h *SummariesHandler) ListDates(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := parseIntParam(q.Get("limit"), 30, 365)
	offset := parseIntParam(q.Get("offset"), 0, 1<<30)

	dates, err := h.dbclient.ListSummaryDates(r.Context(), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]string, 0, len(dates))
	for _, d := range dates {
		out = append(out, d.Format("2006-01-02"))
	}
	writeJSON(w, http.StatusOK, map[string]any{"dates": out})
}
