package sanitize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDropsHeaderAndPaginationLines(t *testing.T) {
	in := strings.Join([]string{
		"BOLETÍN OFICIAL DEL ESTADO",
		"Núm. 23 Lunes 26 de enero de 2026 Sec. II.B. Pág. 12451 cve: BOE-A-2026-1836",
		"Resolución de la Subsecretaría por la que se convoca concurso.",
		"cve: BOE-A-2026-1836",
		"Verificable en https://www.boe.es",
		"https://www.boe.es/diario_boe",
		"ISSN: 0212-033X",
		"D. L.: M-1/1958",
		"12451",
		"---",
	}, "\n")

	out := ForAI(in)
	assert.Equal(t, "Resolución de la Subsecretaría por la que se convoca concurso.", out)
}

func TestDeduplicatesConsecutiveLines(t *testing.T) {
	in := "Primera línea útil\nPrimera línea útil\nSegunda línea útil"
	out := ForAI(in)
	assert.Equal(t, "Primera línea útil\nSegunda línea útil", out)
}

func TestFrequencyFilterRequiresMarker(t *testing.T) {
	// Repeated substantive lines (no marker) survive even when interleaved.
	in := strings.Join([]string{
		"El plazo de presentación es de veinte días.",
		"Otra cláusula.",
		"El plazo de presentación es de veinte días.",
	}, "\n")
	out := ForAI(in)
	assert.Contains(t, out, "Otra cláusula.")
	assert.Equal(t, 2, strings.Count(out, "El plazo de presentación es de veinte días."))

	// Repeated lines carrying a marker are removed entirely.
	in = strings.Join([]string{
		"Texto verificable en la sede",
		"Contenido real.",
		"Texto verificable en la sede",
	}, "\n")
	out = ForAI(in)
	assert.Equal(t, "Contenido real.", out)
}

func TestSingleLineWithoutMarkerIsKept(t *testing.T) {
	in := "Una línea rara pero única que no es boilerplate"
	assert.Equal(t, in, ForAI(in))
}

func TestIdempotent(t *testing.T) {
	in := strings.Join([]string{
		"BOLETÍN OFICIAL DEL ESTADO",
		"Orden por la que se aprueban las bases.",
		"Orden por la que se aprueban las bases.",
		"cve: BOE-A-2026-99",
		"Anexo I   con    espacios",
	}, "\n")

	once := ForAI(in)
	twice := ForAI(once)
	assert.Equal(t, once, twice)
}

func TestEmptyInput(t *testing.T) {
	assert.Empty(t, ForAI(""))
	assert.Empty(t, ForAI("\n \n\t\n"))
}
