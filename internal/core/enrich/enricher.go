// Package enrich pulls longer text for an item from the gazette's plain-text
// and HTML mirrors. PDF extraction is expensive and lossy; when a mirror
// yields substantially more text than what we already have, we use it.
package enrich

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"github.com/boediario/boediario/internal/config"
	"github.com/boediario/boediario/internal/core"
)

var _ core.SourceEnricher = (*Enricher)(nil)

// Cache remembers enriched text per identifier for the lifetime of one run,
// so re-visited items never re-fetch. It is built fresh at run start and
// discarded with the run.
type Cache struct {
	texts map[string]string
}

func NewCache() *Cache {
	return &Cache{texts: make(map[string]string)}
}

type Enricher struct {
	client       *http.Client
	baseURL      string
	userAgent    string
	retries      int
	backoff      float64
	minGain      int
	minAbs       int
	minBaseEmpty int
	minSleep     time.Duration
	maxSleep     time.Duration
	cache        *Cache
	pdf          core.TextExtractor // last resort, may be nil
	log          *logrus.Entry
}

func NewEnricher(cfg *config.Config, pdf core.TextExtractor, cache *Cache, log *logrus.Entry) *Enricher {
	return &Enricher{
		client: &http.Client{
			Timeout: cfg.EnrichConnectTimeout + cfg.EnrichReadTimeout,
		},
		baseURL:      "https://www.boe.es",
		userAgent:    cfg.EnrichUserAgent,
		retries:      cfg.EnrichRetries,
		backoff:      cfg.EnrichBackoffFactor,
		minGain:      cfg.EnrichMinGainChars,
		minAbs:       cfg.EnrichMinAbsChars,
		minBaseEmpty: cfg.EnrichMinBaseEmpty,
		minSleep:     cfg.EnrichMinSleep,
		maxSleep:     cfg.EnrichMaxSleep,
		cache:        cache,
		pdf:          pdf,
		log:          log,
	}
}

// shouldAccept decides whether a candidate text replaces the base. Three
// independent clauses, each covering a different magnitude regime: a real
// gain over the base, an absolutely long candidate, or anything usable when
// the base is near-empty.
func (e *Enricher) shouldAccept(baseLen, candLen int) bool {
	if candLen-baseLen >= e.minGain {
		return true
	}
	if candLen >= e.minAbs {
		return true
	}
	if baseLen < 80 && candLen >= e.minBaseEmpty {
		return true
	}
	return false
}

// Enrich fetches candidate sources in fixed priority order (plain-text
// mirror, doc mirror, datos mirror, original HTML, finally the PDF) and
// returns the first accepted text. Never fails: on total failure the base
// text comes back with enriched=false.
func (e *Enricher) Enrich(ctx context.Context, req core.EnrichRequest) (string, bool) {
	if req.Identificador == "" {
		return req.BaseText, false
	}

	if cached, ok := e.cache.texts[req.Identificador]; ok {
		if len(cached) > len(req.BaseText) {
			return cached, true
		}
		return req.BaseText, false
	}

	bid := extractIDFromURL(req.URLHTML)
	if bid == "" {
		bid = req.Identificador
	}

	candidates := []string{
		fmt.Sprintf("%s/diario_boe/txt.php?id=%s", e.baseURL, bid),
		fmt.Sprintf("%s/buscar/doc.php?id=%s", e.baseURL, bid),
		fmt.Sprintf("%s/diario_boe/mostrar_datos.php?id=%s", e.baseURL, bid),
	}
	if req.URLHTML != "" && !contains(candidates, req.URLHTML) {
		candidates = append(candidates, req.URLHTML)
	}

	baseLen := len(req.BaseText)
	for _, u := range candidates {
		text, err := e.fetchTextURL(ctx, u)
		if err != nil {
			e.log.WithError(err).WithField("url", u).Debug("enrich candidate failed")
			continue
		}
		candLen := len(text)
		if text != "" && e.shouldAccept(baseLen, candLen) {
			e.log.WithFields(logrus.Fields{
				"identificador": req.Identificador, "url": u,
				"base": baseLen, "cand": candLen,
			}).Info("item enriched from mirror")
			e.cache.texts[req.Identificador] = text
			return text, true
		}
	}

	if req.URLPDF != "" && e.pdf != nil {
		text, err := e.pdf.ExtractPDF(ctx, req.Identificador, req.URLPDF)
		if err != nil {
			e.log.WithError(err).WithField("identificador", req.Identificador).Debug("enrich pdf fallback failed")
		} else if text != "" && e.shouldAccept(baseLen, len(text)) {
			e.log.WithFields(logrus.Fields{
				"identificador": req.Identificador, "base": baseLen, "cand": len(text),
			}).Info("item enriched from pdf")
			e.cache.texts[req.Identificador] = text
			return text, true
		}
	}

	return req.BaseText, false
}

// fetchTextURL downloads one candidate and returns normalized plain text.
// HTML responses are stripped of navigation/header/footer chrome first.
func (e *Enricher) fetchTextURL(ctx context.Context, rawURL string) (string, error) {
	e.sleepJitter(ctx)

	body, contentType, err := e.getWithRetry(ctx, rawURL)
	if err != nil {
		return "", err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return "", nil
	}

	if strings.Contains(contentType, "text/plain") || strings.Contains(rawURL, "txt.php") {
		return normalizeText(string(body)), nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	doc.Find("header, nav, footer, .navbar, .nav, .footer, script, style, noscript").Remove()
	return normalizeText(doc.Find("body").Text()), nil
}

func (e *Enricher) getWithRetry(ctx context.Context, rawURL string) ([]byte, string, error) {
	var lastErr error
	for attempt := 0; attempt <= e.retries; attempt++ {
		if attempt > 0 {
			d := time.Duration(e.backoff * math.Pow(2, float64(attempt-1)) * float64(time.Second))
			select {
			case <-time.After(d):
			case <-ctx.Done():
				return nil, "", ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, "", err
		}
		req.Header.Set("User-Agent", e.userAgent)
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

		resp, err := e.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("HTTP %d from %s", resp.StatusCode, rawURL)
			continue
		}
		if resp.StatusCode >= 400 {
			resp.Body.Close()
			return nil, "", fmt.Errorf("HTTP %d from %s", resp.StatusCode, rawURL)
		}

		var buf bytes.Buffer
		_, readErr := buf.ReadFrom(resp.Body)
		ct := resp.Header.Get("Content-Type")
		resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}
		return buf.Bytes(), strings.ToLower(ct), nil
	}
	return nil, "", lastErr
}

func (e *Enricher) sleepJitter(ctx context.Context) {
	span := e.maxSleep - e.minSleep
	d := e.minSleep
	if span > 0 {
		d += time.Duration(rand.Int63n(int64(span)))
	}
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}

var (
	nbspRe      = strings.NewReplacer(" ", " ", "\r\n", "\n")
	blankRunsRe = regexp.MustCompile(`\n{3,}`)
	horizRe     = regexp.MustCompile(`[ \t\f\v]+`)
)

func normalizeText(s string) string {
	s = nbspRe.Replace(s)
	s = blankRunsRe.ReplaceAllString(s, "\n\n")
	s = horizRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func extractIDFromURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Query().Get("id")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
