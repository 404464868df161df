package llm

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/boediario/boediario/internal/core"
	"github.com/boediario/boediario/internal/core/sample"
)

// Editorial limits applied to digest output before persisting.
const (
	summaryMaxChars   = 900
	highlightMaxChars = 200
	titleMaxChars     = 260
	highlightsMin     = 3
	topItemsMin       = 3
	topItemsMax       = 6
)

var (
	collapseWSRe   = regexp.MustCompile(`\s+`)
	quotesRe       = regexp.MustCompile("[\"“”'’`´]+")
	bulletPrefixRe = regexp.MustCompile(`^\s*[-*•]+\s+`)
	trailPunctRe   = regexp.MustCompile(`[ ,;:\-]+$`)
	codeFenceRe    = regexp.MustCompile("(?s)^```[a-zA-Z]*\\n?(.*?)```$")
)

func collapseWS(s string) string {
	return collapseWSRe.ReplaceAllString(strings.TrimSpace(s), " ")
}

// cleanCodeBlock strips a markdown fence the model sometimes wraps around
// its output despite the instructions.
func cleanCodeBlock(s string) string {
	s = strings.TrimSpace(s)
	if m := codeFenceRe.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return s
}

var lowInfoWords = map[string]bool{
	"de": true, "la": true, "del": true, "al": true, "y": true, "en": true,
	"por": true, "para": true, "el": true, "los": true, "las": true,
	"un": true, "una": true, "unos": true, "unas": true,
}

// gradeTitle normalizes a model title to the house rules: no quotes, no
// colons, no final period, at most maxWords words. When over the limit,
// articles and connectors are dropped first.
func gradeTitle(s string, maxWords int) string {
	s = cleanCodeBlock(s)
	s = quotesRe.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, ":", " ")
	s = collapseWS(s)
	s = strings.TrimRight(s, ".")
	s = strings.TrimSpace(s)

	parts := strings.Fields(s)
	if len(parts) <= maxWords {
		return s
	}
	var kept []string
	for i, w := range parts {
		if len(kept) >= maxWords {
			break
		}
		remaining := len(parts) - i
		if lowInfoWords[strings.ToLower(w)] && remaining > maxWords-len(kept) {
			continue
		}
		kept = append(kept, w)
	}
	if len(kept) > maxWords {
		kept = kept[:maxWords]
	}
	return strings.Join(kept, " ")
}

// truncateWords cuts to maxLen without splitting a word and appends an
// ellipsis when anything was removed.
func truncateWords(s string, maxLen int) string {
	s = collapseWS(s)
	if s == "" || len(s) <= maxLen {
		return s
	}

	// Back up to a rune boundary so the cut never splits multibyte text.
	cutAt := maxLen
	for cutAt > 0 && !utf8.RuneStart(s[cutAt]) {
		cutAt--
	}
	cut := strings.TrimRight(s[:cutAt], " ")
	left := cut[len(cut)-1]
	right := s[cutAt]
	if isAlnum(left) && isAlnum(right) {
		if idx := strings.LastIndex(cut, " "); idx > 0 {
			cut = strings.TrimRight(cut[:idx], " ")
		}
	}
	cut = trailPunctRe.ReplaceAllString(cut, "")
	if len(cut) < 12 {
		cut = trailPunctRe.ReplaceAllString(strings.TrimRight(s[:cutAt], " "), "")
	}
	return cut + "…"
}

func isAlnum(b byte) bool {
	return b >= '0' && b <= '9' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= 0x80
}

func stripBulletPrefix(s string) string {
	return strings.TrimSpace(bulletPrefixRe.ReplaceAllString(collapseWS(s), ""))
}

func dedupeKeepOrder(list []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range list {
		key := strings.ToLower(collapseWS(s))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}

func sanitizeList(list []string) []string {
	var out []string
	for _, s := range list {
		if t := collapseWS(s); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// fallbackHighlights derives conservative bullets from the counts alone,
// used when the model returns too few.
func fallbackHighlights(section sample.SectionInput) []string {
	var out []string
	if section.TotalEntradas > 0 {
		out = append(out, fmt.Sprintf("Se publican %d entradas en esta sección.", section.TotalEntradas))
	}
	var top []string
	for i, c := range section.DeptCounts {
		if i == 3 {
			break
		}
		if name := collapseWS(c.Departamento); name != "" {
			top = append(top, name)
		}
	}
	if len(top) > 0 {
		out = append(out, "Mayor actividad por departamento: "+strings.Join(top, ", ")+".")
	}
	switch strings.ToUpper(section.SeccionCodigo) {
	case "2B", "5A", "5B":
		out = append(out, "Conviene revisar oportunidades, convocatorias o anuncios relevantes para tu actividad.")
	}
	return out
}

func sampleTitleMap(items []sample.SectionItem) map[string]string {
	m := make(map[string]string, len(items))
	for _, it := range items {
		ident := collapseWS(it.Identificador)
		title := collapseWS(it.Titulo)
		if ident != "" && title != "" {
			if _, ok := m[ident]; !ok {
				m[ident] = title
			}
		}
	}
	return m
}

// validateDigest post-processes the raw model digest against the sample.
// Model titles are never trusted: top-item titles are always rebuilt from the
// sample, identifiers outside the sample are dropped, and short lists are
// filled deterministically from the sample in order.
func validateDigest(raw *core.SectionDigest, section sample.SectionInput) *core.SectionDigest {
	out := &core.SectionDigest{}

	if s := collapseWS(raw.Summary); s != "" {
		out.Summary = truncateWords(s, summaryMaxChars)
	}

	var highlights []string
	for _, h := range raw.Highlights {
		if s := stripBulletPrefix(h); s != "" {
			highlights = append(highlights, truncateWords(s, highlightMaxChars))
		}
	}
	highlights = dedupeKeepOrder(highlights)
	if len(highlights) < highlightsMin {
		highlights = dedupeKeepOrder(append(highlights, fallbackHighlights(section)...))
	}
	if len(highlights) > 6 {
		highlights = highlights[:6]
	}
	out.Highlights = highlights

	titles := sampleTitleMap(section.SampleItems)
	used := make(map[string]bool)
	addTop := func(ident string) {
		ident = collapseWS(ident)
		if ident == "" || used[ident] {
			return
		}
		title, ok := titles[ident]
		if !ok {
			return
		}
		used[ident] = true
		if len(ident) > 64 {
			ident = ident[:64]
		}
		out.TopItems = append(out.TopItems, core.TopItem{
			Identificador: ident,
			Titulo:        truncateWords(title, titleMaxChars),
		})
	}

	for _, it := range raw.TopItems {
		addTop(it.Identificador)
		if len(out.TopItems) >= topItemsMax {
			break
		}
	}
	if len(out.TopItems) < topItemsMin {
		for _, id := range digestSampleIDs(section.SampleItems) {
			addTop(id)
			if len(out.TopItems) >= topItemsMin {
				break
			}
		}
	}
	if len(out.TopItems) > topItemsMax {
		out.TopItems = out.TopItems[:topItemsMax]
	}
	return out
}
