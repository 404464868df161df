package sample

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boediario/boediario/internal/core/sumario"
)

func roster(n int) []SectionItem {
	items := make([]SectionItem, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, SectionItem{
			Identificador: fmt.Sprintf("BOE-A-2026-%d", i+1),
			Titulo:        fmt.Sprintf("Título %d", i+1),
			Departamento:  fmt.Sprintf("Departamento %d", i%7),
		})
	}
	return items
}

func TestSmallRosterPassesThroughUnchanged(t *testing.T) {
	items := roster(20)
	got := makeSample(items, DefaultConfig())
	assert.Equal(t, items, got)
}

func TestSampleBoundedAndDeduplicated(t *testing.T) {
	cfg := DefaultConfig()
	items := roster(500)

	got := makeSample(items, cfg)
	assert.LessOrEqual(t, len(got), cfg.SampleMax)
	assert.GreaterOrEqual(t, len(got), 10)

	seen := map[string]bool{}
	for _, it := range got {
		assert.False(t, seen[it.Identificador], "duplicate %s", it.Identificador)
		seen[it.Identificador] = true
	}
}

func TestSampleDeterministic(t *testing.T) {
	cfg := DefaultConfig()
	items := roster(1234)

	a := makeSample(items, cfg)
	b := makeSample(items, cfg)
	assert.Equal(t, a, b)
}

func TestSampleKeepsHeadAndTail(t *testing.T) {
	cfg := DefaultConfig()
	items := roster(300)
	got := makeSample(items, cfg)

	// Head items come first in order.
	for i := 0; i < cfg.Head; i++ {
		assert.Equal(t, items[i].Identificador, got[i].Identificador)
	}
	// Tail items are present.
	ids := map[string]bool{}
	for _, it := range got {
		ids[it.Identificador] = true
	}
	for _, it := range items[len(items)-cfg.Tail:] {
		assert.True(t, ids[it.Identificador], "tail item %s missing", it.Identificador)
	}
}

func TestSampleMidItemsAvoidEdges(t *testing.T) {
	cfg := DefaultConfig()
	n := 1000
	items := roster(n)
	got := makeSample(items, cfg)

	pos := map[string]int{}
	for i, it := range items {
		pos[it.Identificador] = i
	}
	headSet := map[string]bool{}
	for _, it := range items[:cfg.Head] {
		headSet[it.Identificador] = true
	}
	tailSet := map[string]bool{}
	for _, it := range items[n-cfg.Tail:] {
		tailSet[it.Identificador] = true
	}

	// Everything that is neither head, tail nor a department representative
	// (dept reps are first occurrences, i.e. early) must sit inside the
	// central 80% of the roster.
	for _, it := range got {
		p := pos[it.Identificador]
		if headSet[it.Identificador] || tailSet[it.Identificador] || p < n/10 {
			continue
		}
		assert.GreaterOrEqual(t, p, n/10)
		assert.Less(t, p, n-n/10)
	}
}

func TestDeptCountsOrderingAndCap(t *testing.T) {
	items := []SectionItem{
		{Identificador: "1", Titulo: "t", Departamento: "Beta"},
		{Identificador: "2", Titulo: "t", Departamento: "Alfa"},
		{Identificador: "3", Titulo: "t", Departamento: "Beta"},
		{Identificador: "4", Titulo: "t", Departamento: ""},
		{Identificador: "5", Titulo: "t", Departamento: "Alfa"},
		{Identificador: "6", Titulo: "t", Departamento: "Gamma"},
	}
	got := makeDeptCounts(items, 12)
	require.Len(t, got, 4)
	// Descending count, then ascending name.
	assert.Equal(t, DeptCount{"Alfa", 2}, got[0])
	assert.Equal(t, DeptCount{"Beta", 2}, got[1])
	assert.Equal(t, DeptCount{SinDepartamento, 1}, got[2])
	assert.Equal(t, DeptCount{"Gamma", 1}, got[3])

	capped := makeDeptCounts(items, 2)
	assert.Len(t, capped, 2)
}

func TestDeptCountsTieOrderIsDeterministic(t *testing.T) {
	items := []SectionItem{
		{Identificador: "1", Titulo: "t", Departamento: "Ministerio DE Hacienda"},
		{Identificador: "2", Titulo: "t", Departamento: "ministerio de hacienda"},
	}
	want := makeDeptCounts(items, 12)
	require.Len(t, want, 2)
	// Names equal under case folding break the tie byte-wise, so the order
	// never depends on map iteration.
	assert.Equal(t, "Ministerio DE Hacienda", want[0].Departamento)
	for i := 0; i < 25; i++ {
		assert.Equal(t, want, makeDeptCounts(items, 12))
	}
}

func TestDedupeFirstOccurrenceWins(t *testing.T) {
	items := []SectionItem{
		{Identificador: "X", Titulo: "primero"},
		{Identificador: "Y", Titulo: "otro"},
		{Identificador: "X", Titulo: "segundo"},
	}
	got := dedupeByIdent(items)
	require.Len(t, got, 2)
	assert.Equal(t, "primero", got[0].Titulo)
	assert.Equal(t, "Y", got[1].Identificador)
}

func TestBuildSectionInputs(t *testing.T) {
	xml := `<sumario><diario>
	<seccion codigo="07" nombre="  I. Disposiciones   generales ">
	  <departamento codigo="1" nombre="Ministerio Uno">
	    <epigrafe nombre="Ep">
	      <item><identificador>BOE-A-1</identificador><titulo>Uno</titulo></item>
	      <item><identificador>BOE-A-1</identificador><titulo>Duplicado</titulo></item>
	    </epigrafe>
	    <item><identificador>BOE-A-2</identificador><titulo>Dos</titulo></item>
	  </departamento>
	  <item><identificador>BOE-A-3</identificador><titulo>Huérfano</titulo></item>
	</seccion>
	<seccion codigo="" nombre="Sin código"><item><identificador>Z</identificador><titulo>t</titulo></item></seccion>
	</diario></sumario>`

	doc, err := sumario.Parse(strings.NewReader(xml))
	require.NoError(t, err)

	inputs := BuildSectionInputs(doc, DefaultConfig())
	require.Len(t, inputs, 1, "section without code is skipped")

	in := inputs[0]
	assert.Equal(t, "7", in.SeccionCodigo, "code normalized")
	assert.Equal(t, "I. Disposiciones generales", in.SeccionNombre, "name whitespace-collapsed")
	assert.Equal(t, 3, in.TotalEntradas, "deduped total")
	require.Len(t, in.SampleItems, 3, "small roster: sample equals roster")
	assert.Equal(t, "BOE-A-1", in.SampleItems[0].Identificador)
	assert.Equal(t, "Uno", in.SampleItems[0].Titulo, "first occurrence wins")
	assert.Equal(t, "", in.SampleItems[2].Departamento, "orphan has no department")
}
