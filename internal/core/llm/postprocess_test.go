package llm

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boediario/boediario/internal/core"
	"github.com/boediario/boediario/internal/core/sample"
)

func TestGradeTitle(t *testing.T) {
	assert.Equal(t, "Subvenciones para pymes industriales",
		gradeTitle(`"Subvenciones para pymes industriales."`, 10))
	assert.Equal(t, "Real Decreto sobre energía",
		gradeTitle("Real Decreto: sobre energía", 10))

	// Over the limit: connectors go first, then a hard cut.
	long := "Orden por la que se aprueban las bases reguladoras de las ayudas estatales"
	out := gradeTitle(long, 10)
	assert.LessOrEqual(t, len(strings.Fields(out)), 10)
	assert.Contains(t, out, "Orden")
	assert.Contains(t, out, "ayudas")

	assert.Equal(t, "Título limpio", gradeTitle("```\nTítulo limpio\n```", 10))
}

func TestTruncateWords(t *testing.T) {
	assert.Equal(t, "corto", truncateWords("corto", 100))

	s := "Resolución de la Dirección General de Tributos sobre modelos"
	out := truncateWords(s, 30)
	assert.True(t, strings.HasSuffix(out, "…"))
	assert.LessOrEqual(t, len(out), 30+len("…"))
	// No mid-word cut: everything before the ellipsis is a prefix of the
	// input ending on a word boundary.
	body := strings.TrimSuffix(out, "…")
	assert.True(t, strings.HasPrefix(s, body))
	if len(body) < len(s) {
		assert.Equal(t, byte(' '), s[len(body)])
	}

	assert.Equal(t, "", truncateWords("   ", 50))
}

func TestTruncateWordsKeepsRunesWhole(t *testing.T) {
	// The limit lands inside a two-byte rune; the cut must back up to the
	// rune boundary instead of emitting invalid UTF-8.
	long := strings.Repeat("á", 30)
	out := truncateWords(long, 21)
	assert.True(t, utf8.ValidString(out))
	assert.Equal(t, strings.Repeat("á", 10)+"…", out)

	// Same on the short-result re-cut path.
	mixed := "ab " + strings.Repeat("é", 20)
	out = truncateWords(mixed, 14)
	assert.True(t, utf8.ValidString(out))
	assert.Equal(t, "ab "+strings.Repeat("é", 5)+"…", out)
}

func TestStripBulletPrefix(t *testing.T) {
	assert.Equal(t, "Nueva convocatoria", stripBulletPrefix("- Nueva convocatoria"))
	assert.Equal(t, "Nueva convocatoria", stripBulletPrefix("  • Nueva convocatoria"))
	assert.Equal(t, "Sin viñeta", stripBulletPrefix("Sin viñeta"))
}

func TestDedupeKeepOrder(t *testing.T) {
	in := []string{"Uno", "dos", "UNO", " dos ", "", "tres"}
	assert.Equal(t, []string{"Uno", "dos", "tres"}, dedupeKeepOrder(in))
}

func digestSection() sample.SectionInput {
	return sample.SectionInput{
		SeccionCodigo: "1",
		SeccionNombre: "Disposiciones generales",
		TotalEntradas: 40,
		DeptCounts: []sample.DeptCount{
			{Departamento: "Ministerio de Hacienda", Count: 12},
			{Departamento: "Ministerio de Justicia", Count: 8},
		},
		SampleItems: []sample.SectionItem{
			{Identificador: "BOE-A-2026-1", Titulo: "Primera disposición"},
			{Identificador: "BOE-A-2026-2", Titulo: "Segunda disposición"},
			{Identificador: "BOE-A-2026-3", Titulo: "Tercera disposición"},
			{Identificador: "BOE-A-2026-4", Titulo: "Cuarta disposición"},
		},
	}
}

func TestValidateDigestRejectsForeignTopItems(t *testing.T) {
	raw := &core.SectionDigest{
		Summary: "Jornada centrada en fiscalidad.",
		Highlights: []string{
			"- Nuevos modelos tributarios", "Cambios en plazos de presentación",
			"Nuevos modelos tributarios",
		},
		TopItems: []core.TopItem{
			{Identificador: "BOE-A-2026-2", Titulo: "título inventado por el modelo"},
			{Identificador: "BOE-A-9999-99", Titulo: "no existe en la muestra"},
		},
	}
	out := validateDigest(raw, digestSection())

	ids := make([]string, 0, len(out.TopItems))
	for _, it := range out.TopItems {
		ids = append(ids, it.Identificador)
	}
	assert.NotContains(t, ids, "BOE-A-9999-99")
	// Titles come from the sample, never from the model.
	require.NotEmpty(t, out.TopItems)
	assert.Equal(t, "BOE-A-2026-2", out.TopItems[0].Identificador)
	assert.Equal(t, "Segunda disposición", out.TopItems[0].Titulo)
}

func TestValidateDigestFillsTopItemsDeterministically(t *testing.T) {
	raw := &core.SectionDigest{Summary: "Resumen.", TopItems: nil}
	out := validateDigest(raw, digestSection())

	require.Len(t, out.TopItems, 3)
	assert.Equal(t, "BOE-A-2026-1", out.TopItems[0].Identificador)
	assert.Equal(t, "BOE-A-2026-2", out.TopItems[1].Identificador)
	assert.Equal(t, "BOE-A-2026-3", out.TopItems[2].Identificador)
}

func TestValidateDigestFallbackHighlights(t *testing.T) {
	raw := &core.SectionDigest{Summary: "Resumen."}
	out := validateDigest(raw, digestSection())

	require.NotEmpty(t, out.Highlights)
	assert.Contains(t, out.Highlights[0], "40 entradas")
	joined := strings.Join(out.Highlights, " ")
	assert.Contains(t, joined, "Ministerio de Hacienda")
}

func TestValidateDigestCapsLists(t *testing.T) {
	section := digestSection()
	raw := &core.SectionDigest{
		Summary:    strings.Repeat("Frase larga repetida muchas veces. ", 60),
		Highlights: []string{"a1", "b2", "c3", "d4", "e5", "f6", "g7", "h8"},
	}
	out := validateDigest(raw, section)
	assert.LessOrEqual(t, len(out.Highlights), 6)
	assert.LessOrEqual(t, len(out.Summary), summaryMaxChars+len("…"))
	assert.LessOrEqual(t, len(out.TopItems), topItemsMax)
}
