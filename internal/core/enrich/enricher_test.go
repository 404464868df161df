package enrich

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boediario/boediario/internal/core"
)

func testEnricher() *Enricher {
	return &Enricher{
		client:       http.DefaultClient,
		baseURL:      "http://127.0.0.1:1",
		userAgent:    "test",
		retries:      0,
		backoff:      0,
		minGain:      200,
		minAbs:       600,
		minBaseEmpty: 200,
		cache:        NewCache(),
		log:          logrus.NewEntry(logrus.New()),
	}
}

func TestShouldAcceptGainClause(t *testing.T) {
	e := testEnricher()
	// Gain of exactly minGain is accepted, one below is not (with the other
	// clauses kept out of range).
	assert.True(t, e.shouldAccept(300, 500))
	assert.False(t, e.shouldAccept(300, 499))
}

func TestShouldAcceptAbsoluteClause(t *testing.T) {
	e := testEnricher()
	// Long candidate wins even with negligible gain over a long base.
	assert.True(t, e.shouldAccept(590, 600))
	assert.False(t, e.shouldAccept(590, 599))
}

func TestShouldAcceptEmptyBaseClause(t *testing.T) {
	e := testEnricher()
	assert.True(t, e.shouldAccept(79, 250))
	assert.False(t, e.shouldAccept(80, 250))
	assert.False(t, e.shouldAccept(79, 199))
}

func TestEnrichFromPlainTextMirror(t *testing.T) {
	long := strings.Repeat("Texto consolidado de la disposición. ", 30)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "txt.php") || r.URL.Query().Get("id") != "" {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.Write([]byte(long))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	e := testEnricher()
	e.baseURL = srv.URL
	req := core.EnrichRequest{
		Identificador: "BOE-A-2026-100",
		BaseText:      "corto",
	}
	text, ok := e.Enrich(context.Background(), req)
	require.True(t, ok)
	assert.Contains(t, text, "Texto consolidado")

	// Second call for the same identifier is served from the run cache.
	srv.Close()
	text2, ok2 := e.Enrich(context.Background(), req)
	require.True(t, ok2)
	assert.Equal(t, text, text2)
}

func TestEnrichStripsChromeFromHTML(t *testing.T) {
	body := `<html><body>
		<header>BOE navegación</header>
		<nav><a href="/">inicio</a></nav>
		<div id="texto">` + strings.Repeat("Contenido real del anuncio publicado. ", 20) + `</div>
		<script>track();</script>
		<footer>Agencia Estatal Boletín Oficial del Estado</footer>
	</body></html>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(body))
	}))
	defer srv.Close()

	e := testEnricher()
	text, err := e.fetchTextURL(context.Background(), srv.URL+"/doc.php?id=X")
	require.NoError(t, err)
	assert.Contains(t, text, "Contenido real del anuncio")
	assert.NotContains(t, text, "BOE navegación")
	assert.NotContains(t, text, "track()")
	assert.NotContains(t, text, "Agencia Estatal")
}

func TestEnrichNeverErrorsOnTotalFailure(t *testing.T) {
	e := testEnricher()
	req := core.EnrichRequest{
		Identificador: "BOE-A-2026-999",
		URLHTML:       "http://127.0.0.1:1/doc.php?id=BOE-A-2026-999",
		BaseText:      "texto base original",
	}
	text, ok := e.Enrich(context.Background(), req)
	assert.False(t, ok)
	assert.Equal(t, "texto base original", text)
}

func TestEnrichRejectsShortCandidate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("apenas nada"))
	}))
	defer srv.Close()

	e := testEnricher()
	base := strings.Repeat("x", 300)
	text, ok := e.Enrich(context.Background(), core.EnrichRequest{
		Identificador: "BOE-A-2026-5",
		URLHTML:       srv.URL + "/txt.php?id=BOE-A-2026-5",
		BaseText:      base,
	})
	assert.False(t, ok)
	assert.Equal(t, base, text)
}

type fakePDF struct{ text string }

func (f *fakePDF) ExtractPDF(_ context.Context, _, _ string) (string, error) {
	return f.text, nil
}

func TestEnrichFallsBackToPDF(t *testing.T) {
	e := testEnricher()
	e.pdf = &fakePDF{text: strings.Repeat("Texto del pdf. ", 60)}
	text, ok := e.Enrich(context.Background(), core.EnrichRequest{
		Identificador: "BOE-A-2026-7",
		URLHTML:       "http://127.0.0.1:1/doc.php?id=BOE-A-2026-7",
		URLPDF:        "http://127.0.0.1:1/pdfs/BOE-A-2026-7.pdf",
		BaseText:      "corto",
	})
	require.True(t, ok)
	assert.Contains(t, text, "Texto del pdf")
}

func TestExtractIDFromURL(t *testing.T) {
	assert.Equal(t, "BOE-A-2026-1",
		extractIDFromURL("https://www.boe.es/diario_boe/txt.php?id=BOE-A-2026-1"))
	assert.Equal(t, "", extractIDFromURL("https://www.boe.es/index.html"))
	assert.Equal(t, "", extractIDFromURL(""))
}
