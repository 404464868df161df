package ingest

import (
	"strings"

	"github.com/boediario/boediario/internal/models"
)

// ClassifyItem derives the item class from the section name. Matching is
// keyword-based and accent-tolerant; anything unrecognized counts as a
// disposición.
func ClassifyItem(nombreSeccion string) string {
	nombre := strings.ToLower(nombreSeccion)
	switch {
	case strings.Contains(nombre, "anuncio"):
		return models.ClaseAnuncio
	case strings.Contains(nombre, "disposición") || strings.Contains(nombre, "disposicion"):
		return models.ClaseDisposicion
	case strings.Contains(nombre, "notificación") || strings.Contains(nombre, "notificacion"):
		return models.ClaseNotificacion
	case strings.Contains(nombre, "edicto") || strings.Contains(nombre, "judicial") || strings.Contains(nombre, "justicia"):
		return models.ClaseEdictoJudicial
	case strings.Contains(nombre, "personal") || strings.Contains(nombre, "nombramiento") || strings.Contains(nombre, "concurso"):
		return models.ClasePersonal
	case strings.Contains(nombre, "otros"):
		return models.ClaseOtrosAnuncios
	default:
		return models.ClaseDisposicion
	}
}
