// Package sanitize strips the repetitive header/footer boilerplate that BOE
// PDFs repeat on every page, so the text sent to the model carries only
// substantive content.
package sanitize

import (
	"regexp"
	"strings"
)

// Per-line drop patterns: page headers, pagination, verification URLs,
// document IDs, ISSN/legal-deposit lines and layout rulers.
var dropLinePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^\s*BOLET[IÍ]N\s+OFICIAL\s+DEL\s+ESTADO\s*$`),
	// "Núm. 23 Lunes 26 de enero de 2026 Sec. II.B. Pág. 12451 cve: BOE-A-2026-1836"
	regexp.MustCompile(`(?i)^\s*N[uú]m\.\s*\d+\s+.*\s+Sec\.\s*.*\s+P[aá]g\.\s*\d+.*$`),
	regexp.MustCompile(`(?i)^\s*cve:\s*BOE-[A-Z]-\d{4}-\d+\s*$`),
	regexp.MustCompile(`(?i)^\s*Verificable\s+en(\s+la\s+direcci[oó]n)?\s+https?://.*$`),
	regexp.MustCompile(`(?i)^\s*https?://(www\.)?boe\.es\b.*$`),
	regexp.MustCompile(`(?i)^\s*https?://extranet\.boe\.es/arde\b.*$`),
	regexp.MustCompile(`(?i)^\s*D\.\s*L\.\s*:\s*.*$`),
	// ISSN check digit can be X (the BOE's is 0212-033X).
	regexp.MustCompile(`(?i)^\s*ISSN\s*:\s*\d{4}-\d{3}[\dX]\s*$`),
	regexp.MustCompile(`(?i)^\s*BOLET[IÍ]N\s+OFICIAL\s+DEL\s+ESTADO.*ISSN\s*:\s*\d{4}-\d{3}[\dX].*$`),
	regexp.MustCompile(`(?i)^\s*ID:\s*[A-Z]\d{9}-\d+\s*$`),
	regexp.MustCompile(`^\s*-{3,}\s*$`),
}

// Markers for the frequency filter. A line is only dropped by frequency when
// it repeats AND contains one of these, which keeps legitimately repeated
// substantive content safe.
var frequencyMarkers = []string{
	"boletín oficial del estado",
	"verificable en",
	"cve:",
	"issn",
	"d. l.:",
	"https://www.boe.es",
	"http://www.boe.es",
	"extranet.boe.es/arde",
}

var (
	multiSpaceRe     = regexp.MustCompile(`[ \t]{2,}`)
	onlyPageNumberRe = regexp.MustCompile(`^\s*\d{3,6}\s*$`)
)

func normalizeLines(text string) []string {
	t := strings.ReplaceAll(text, "\r\n", "\n")
	t = strings.ReplaceAll(t, "\r", "\n")
	var out []string
	for _, raw := range strings.Split(t, "\n") {
		s := multiSpaceRe.ReplaceAllString(strings.TrimSpace(raw), " ")
		if s == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}

func matchesDropPattern(line string) bool {
	for _, p := range dropLinePatterns {
		if p.MatchString(line) {
			return true
		}
	}
	return false
}

// ForAI removes highly repetitive low-value lines before text is sent to the
// model. Deterministic and idempotent: ForAI(ForAI(x)) == ForAI(x).
func ForAI(rawText string) string {
	lines := normalizeLines(rawText)
	if len(lines) == 0 {
		return ""
	}

	// 1) drop by pattern
	kept := lines[:0:len(lines)]
	for _, ln := range lines {
		if matchesDropPattern(ln) || onlyPageNumberRe.MatchString(ln) {
			continue
		}
		kept = append(kept, ln)
	}
	if len(kept) == 0 {
		return ""
	}

	// 2) consecutive dedupe (frequent in PDF extraction)
	dedup := make([]string, 0, len(kept))
	prev := ""
	for i, ln := range kept {
		if i > 0 && ln == prev {
			continue
		}
		dedup = append(dedup, ln)
		prev = ln
	}

	// 3) frequency filter, only for lines carrying a boilerplate marker
	counts := make(map[string]int, len(dedup))
	for _, ln := range dedup {
		counts[ln]++
	}
	final := make([]string, 0, len(dedup))
	for _, ln := range dedup {
		if counts[ln] >= 2 && hasMarker(ln) {
			continue
		}
		final = append(final, ln)
	}

	return strings.TrimSpace(strings.Join(final, "\n"))
}

func hasMarker(line string) bool {
	low := strings.ToLower(line)
	for _, m := range frequencyMarkers {
		if strings.Contains(low, m) {
			return true
		}
	}
	return false
}
