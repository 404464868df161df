// Package sample builds the compact, deterministic per-section inputs for
// the daily digest. Some sections run to thousands of entries; instead of
// shipping the whole roster to the model we send counts plus a bounded,
// reproducible sample of titles and identifiers.
package sample

import (
	"regexp"
	"sort"
	"strings"

	"github.com/boediario/boediario/internal/core/sumario"
	"github.com/boediario/boediario/internal/utils"
)

// SinDepartamento groups items whose department is empty in the counts.
const SinDepartamento = "(sin departamento)"

// SectionItem is one roster entry, whitespace-collapsed.
type SectionItem struct {
	Identificador string `json:"identificador"`
	Titulo        string `json:"titulo"`
	Departamento  string `json:"departamento"`
	Epigrafe      string `json:"epigrafe"`
}

type DeptCount struct {
	Departamento string `json:"departamento"`
	Count        int    `json:"count"`
}

// SectionInput is everything the digest prompt sees for one section.
type SectionInput struct {
	SeccionCodigo string
	SeccionNombre string
	TotalEntradas int
	DeptCounts    []DeptCount
	SampleItems   []SectionItem
}

// Config bounds the sample. SampleMax caps the whole sample; Head/Tail are
// taken from the roster edges, the remainder is filled with evenly spaced
// mid-roster items plus one representative per top department.
type Config struct {
	SampleMax int
	Head      int
	Tail      int
	TopDepts  int
	MaxDepts  int
}

func DefaultConfig() Config {
	return Config{SampleMax: 28, Head: 14, Tail: 6, TopDepts: 4, MaxDepts: 12}
}

var wsRe = regexp.MustCompile(`\s+`)

func collapseWS(s string) string {
	return wsRe.ReplaceAllString(strings.TrimSpace(s), " ")
}

// BuildSectionInputs converts a parsed sumario into per-section inputs,
// ordered by section code. Sections missing a code or name are skipped.
func BuildSectionInputs(doc *sumario.Document, cfg Config) []SectionInput {
	var out []SectionInput
	for i := range doc.Secciones {
		sec := &doc.Secciones[i]
		codeRaw := strings.TrimSpace(sec.Codigo)
		name := collapseWS(sec.Nombre)
		if codeRaw == "" || name == "" {
			continue
		}

		items := dedupeByIdent(collectItems(sec))
		out = append(out, SectionInput{
			SeccionCodigo: utils.NormalizeCode(codeRaw),
			SeccionNombre: name,
			TotalEntradas: len(items),
			DeptCounts:    makeDeptCounts(items, cfg.MaxDepts),
			SampleItems:   makeSample(items, cfg),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		ci, cj := strings.ToLower(out[i].SeccionCodigo), strings.ToLower(out[j].SeccionCodigo)
		if ci != cj {
			return ci < cj
		}
		return strings.ToLower(out[i].SeccionNombre) < strings.ToLower(out[j].SeccionNombre)
	})
	return out
}

// collectItems walks every nesting level of one section in document order:
// epigraph items, department-direct items, then section orphans.
func collectItems(sec *sumario.Seccion) []SectionItem {
	var items []SectionItem
	add := func(it *sumario.Item, dept, epigrafe string) {
		ident := collapseWS(it.Identificador)
		titulo := collapseWS(it.Titulo)
		if ident == "" || titulo == "" {
			return
		}
		items = append(items, SectionItem{
			Identificador: ident,
			Titulo:        titulo,
			Departamento:  dept,
			Epigrafe:      epigrafe,
		})
	}
	for di := range sec.Departamentos {
		dep := &sec.Departamentos[di]
		deptName := collapseWS(dep.Nombre)
		for ei := range dep.Epigrafes {
			ep := &dep.Epigrafes[ei]
			epName := collapseWS(ep.Nombre)
			for ii := range ep.Items {
				add(&ep.Items[ii], deptName, epName)
			}
		}
		for ii := range dep.Items {
			add(&dep.Items[ii], deptName, "")
		}
	}
	for ii := range sec.Items {
		add(&sec.Items[ii], "", "")
	}
	return items
}

func dedupeByIdent(items []SectionItem) []SectionItem {
	seen := make(map[string]bool, len(items))
	out := make([]SectionItem, 0, len(items))
	for _, it := range items {
		if seen[it.Identificador] {
			continue
		}
		seen[it.Identificador] = true
		out = append(out, it)
	}
	return out
}

func makeDeptCounts(items []SectionItem, maxDepts int) []DeptCount {
	if maxDepts < 1 {
		maxDepts = 1
	}
	counts := map[string]int{}
	for _, it := range items {
		dept := it.Departamento
		if dept == "" {
			dept = SinDepartamento
		}
		counts[dept]++
	}
	out := make([]DeptCount, 0, len(counts))
	for dept, n := range counts {
		out = append(out, DeptCount{Departamento: dept, Count: n})
	}
	// The slice comes out of a map, so the comparator must be a total order
	// or equal-folded names would land in random positions between runs.
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		li, lj := strings.ToLower(out[i].Departamento), strings.ToLower(out[j].Departamento)
		if li != lj {
			return li < lj
		}
		return out[i].Departamento < out[j].Departamento
	})
	if len(out) > maxDepts {
		out = out[:maxDepts]
	}
	return out
}

// makeSample returns the roster unchanged when it fits under the cap.
// Otherwise it composes head + tail + evenly spaced mid items + one
// representative per top department, deduplicates by identifier in that
// order, truncates to the cap, and pads from the roster start in the
// pathological case where fewer than 10 items were gathered. The result is
// a pure function of the roster and config.
func makeSample(items []SectionItem, cfg Config) []SectionItem {
	n := len(items)
	if cfg.SampleMax < 1 || n <= cfg.SampleMax {
		return items
	}

	head := cfg.Head
	if head > n {
		head = n
	}
	tail := cfg.Tail

	var composed []SectionItem
	composed = append(composed, items[:head]...)
	if tail > 0 && tail < n {
		composed = append(composed, items[n-tail:]...)
	}

	// Mid picks live in the central 80% of the roster, clear of head/tail.
	midCount := cfg.SampleMax - head - tail - cfg.TopDepts
	if midCount > 0 {
		lo := n / 10
		hi := n - n/10
		span := hi - lo
		if span > 0 {
			for i := 0; i < midCount; i++ {
				idx := lo + span*(i+1)/(midCount+1)
				if idx >= 0 && idx < n {
					composed = append(composed, items[idx])
				}
			}
		}
	}

	// One representative per top department: its first item in roster order.
	if cfg.TopDepts > 0 {
		counts := makeDeptCounts(items, cfg.TopDepts)
		for _, dc := range counts {
			for _, it := range items {
				dept := it.Departamento
				if dept == "" {
					dept = SinDepartamento
				}
				if dept == dc.Departamento {
					composed = append(composed, it)
					break
				}
			}
		}
	}

	sampled := dedupeByIdent(composed)
	if len(sampled) > cfg.SampleMax {
		sampled = sampled[:cfg.SampleMax]
	}

	// Pad from the roster start; should not trigger when roster > cap.
	if len(sampled) < 10 {
		have := make(map[string]bool, len(sampled))
		for _, it := range sampled {
			have[it.Identificador] = true
		}
		for _, it := range items {
			if len(sampled) >= 10 || len(sampled) >= cfg.SampleMax {
				break
			}
			if have[it.Identificador] {
				continue
			}
			have[it.Identificador] = true
			sampled = append(sampled, it)
		}
	}

	return sampled
}
