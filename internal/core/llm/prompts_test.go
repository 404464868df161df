package llm

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/boediario/boediario/internal/core/sample"
)

func TestDetectHasDates(t *testing.T) {
	assert.True(t, detectHasDates("La junta se celebrará el 21 de octubre de 2025."))
	assert.True(t, detectHasDates("Plazo hasta el 01/03/2026 inclusive."))
	assert.True(t, detectHasDates("Prevista para febrero de 2026."))
	assert.True(t, detectHasDates("La norma entra en vigor al día siguiente."))
	assert.False(t, detectHasDates("Texto sin referencias temporales concretas."))
}

func TestExtractHints(t *testing.T) {
	text := "Primera convocatoria el 22 de noviembre de 2025 a las 17:00 horas " +
		"en Calle Mayor 3.\nPrimero.- Aprobación de cuentas.\nSegundo: Elección de cargos."
	h := extractHints(text)
	assert.Contains(t, h.Dates, "22 de noviembre de 2025")
	assert.Contains(t, h.Times, "17:00")
	assert.NotEmpty(t, h.Convocatorias)
	assert.NotEmpty(t, h.Locations)
	assert.Len(t, h.Agenda, 2)
}

func TestExtractHintsDedupesAndCaps(t *testing.T) {
	text := strings.Repeat("Plazo 01/02/2026. ", 5) +
		"También 02/02/2026, 03/02/2026, 04/02/2026, 05/02/2026, 06/02/2026, 07/02/2026."
	h := extractHints(text)
	assert.Len(t, h.Dates, 6)
	assert.Equal(t, "01/02/2026", h.Dates[0])
}

func TestNormalizeContent(t *testing.T) {
	assert.Equal(t, "a b", normalizeContent("a \t b"))

	big := strings.Repeat("x", 30000)
	out := normalizeContent(big)
	assert.Less(t, len(out), 30000)
	assert.True(t, strings.Contains(out, "\n...\n"))
	// Head and tail survive the cut.
	assert.True(t, strings.HasPrefix(out, "x"))
	assert.True(t, strings.HasSuffix(out, "x"))
}

func TestBuildDigestPromptListsOnlySampleIDs(t *testing.T) {
	section := sample.SectionInput{
		SeccionCodigo: "2A",
		SeccionNombre: "Nombramientos",
		TotalEntradas: 7,
		DeptCounts:    []sample.DeptCount{{Departamento: "Universidades", Count: 7}},
		SampleItems: []sample.SectionItem{
			{Identificador: "BOE-A-2026-10", Titulo: "Nombramiento de catedráticos"},
		},
	}
	p := buildDigestPrompt(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), section)
	assert.Contains(t, p, "2026-03-02")
	assert.Contains(t, p, "2A — Nombramientos")
	assert.Contains(t, p, "BOE-A-2026-10")
	assert.Contains(t, p, "Universidades: 7")
}

func TestFormatDeptCountsEmpty(t *testing.T) {
	assert.Equal(t, "(sin datos)", formatDeptCounts(nil))
	out := formatDeptCounts([]sample.DeptCount{{Departamento: "  ", Count: 2}})
	assert.Contains(t, out, sample.SinDepartamento)
}
