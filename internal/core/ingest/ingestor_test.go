package ingest

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boediario/boediario/internal/core"
	"github.com/boediario/boediario/internal/core/sumario"
	"github.com/boediario/boediario/internal/models"
	"github.com/boediario/boediario/internal/utils"
)

type fakeStore struct {
	items         map[string]*models.GazetteItem
	secciones     map[string]string
	departamentos map[string]string
	missing       []models.GazetteItem
	updated       map[string]string
	embedded      map[string][]float32
	commits       int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		items:         make(map[string]*models.GazetteItem),
		secciones:     make(map[string]string),
		departamentos: make(map[string]string),
		updated:       make(map[string]string),
		embedded:      make(map[string][]float32),
	}
}

func (s *fakeStore) BeginIngest(context.Context) (core.IngestStore, error) {
	return &fakeTx{s: s}, nil
}

func (s *fakeStore) ListItemsMissingAI(context.Context, int) ([]models.GazetteItem, error) {
	return s.missing, nil
}

func (s *fakeStore) UpdateItemAI(_ context.Context, ident, tituloResumen string, _, _ *string) error {
	s.updated[ident] = tituloResumen
	return nil
}

func (s *fakeStore) UpdateItemEmbedding(_ context.Context, ident string, vec []float32) error {
	s.embedded[ident] = vec
	return nil
}

type fakeTx struct{ s *fakeStore }

func (t *fakeTx) ItemExists(_ context.Context, ident string) (bool, error) {
	_, ok := t.s.items[ident]
	return ok, nil
}

func (t *fakeTx) InsertItem(_ context.Context, item *models.GazetteItem) error {
	t.s.items[item.Identificador] = item
	return nil
}

func (t *fakeTx) EnsureSeccion(_ context.Context, codigo, nombre string) (core.LookupAction, error) {
	return ensureFake(t.s.secciones, utils.NormalizeCode(codigo), nombre), nil
}

func (t *fakeTx) EnsureDepartamento(_ context.Context, codigo, nombre string) (core.LookupAction, error) {
	return ensureFake(t.s.departamentos, utils.NormalizeCode(codigo), nombre), nil
}

func ensureFake(m map[string]string, codigo, nombre string) core.LookupAction {
	current, ok := m[codigo]
	switch {
	case !ok:
		m[codigo] = nombre
		return core.LookupInserted
	case nombre != "" && current != nombre:
		m[codigo] = nombre
		return core.LookupUpdatedName
	default:
		return core.LookupNoop
	}
}

func (t *fakeTx) Commit() error   { t.s.commits++; return nil }
func (t *fakeTx) Rollback() error { return nil }

type fakeAI struct {
	failFor map[string]bool
}

func (a *fakeAI) EnrichItem(_ context.Context, req core.ItemRequest) (*core.ItemEnrichment, error) {
	if a.failFor[req.Identificador] {
		return nil, assert.AnError
	}
	return &core.ItemEnrichment{
		TituloResumen: "Resumen de " + req.Identificador + ".",
		Resumen:       &core.Resumen{Summary: "Resumen del contenido."},
		Impacto:       &core.Impacto{Afectados: []string{"empresas"}},
	}, nil
}

type passEnricher struct{}

func (passEnricher) Enrich(_ context.Context, req core.EnrichRequest) (string, bool) {
	return req.BaseText, false
}

type fakeEmbedder struct{}

func (fakeEmbedder) EmbedText(_ context.Context, text string) ([]float32, error) {
	return []float32{float32(len(text))}, nil
}

func testDoc() *sumario.Document {
	return &sumario.Document{
		Secciones: []sumario.Seccion{
			{
				Codigo: "1", Nombre: "I. Disposiciones generales",
				Departamentos: []sumario.Departamento{
					{
						Codigo: "7723", Nombre: "Ministerio de Hacienda",
						Epigrafes: []sumario.Epigrafe{
							{
								Nombre: "Impuestos",
								Items: []sumario.Item{
									{Identificador: "BOE-A-2026-1", Titulo: "Orden de tributos", FechaPublicacion: "2026-03-02"},
								},
							},
						},
						Items: []sumario.Item{
							{Identificador: "BOE-A-2026-2", Titulo: "Resolución directa del departamento"},
						},
					},
				},
				Items: []sumario.Item{
					{Identificador: "BOE-A-2026-3", Titulo: "Entrada huérfana de la sección"},
				},
			},
			{
				Codigo: "5A", Nombre: "V-A. Anuncios de licitaciones",
				Departamentos: []sumario.Departamento{
					{
						Codigo: "0", Nombre: "Otros",
						Items: []sumario.Item{
							{Identificador: "BOE-B-2026-4", Titulo: "Anuncio de licitación"},
							{Identificador: "", Titulo: "Sin identificador"},
						},
					},
				},
			},
		},
	}
}

func newTestIngestor(store *fakeStore, ai core.ItemAI) *Ingestor {
	return NewIngestor(store, nil, passEnricher{}, ai, fakeEmbedder{}, logrus.NewEntry(logrus.New()))
}

func TestIngestDayEndToEnd(t *testing.T) {
	store := newFakeStore()
	ing := newTestIngestor(store, &fakeAI{})
	fecha := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	counters, err := ing.IngestDay(context.Background(), testDoc(), fecha)
	require.NoError(t, err)

	assert.Equal(t, 4, counters.Insertados)
	assert.Equal(t, 1, counters.OmitidosVacios)
	assert.Equal(t, 1, counters.Huerfanos)
	assert.Equal(t, 2, counters.LookupSecInsert)
	assert.Equal(t, 2, counters.LookupDepInsert)
	assert.Equal(t, 1, store.commits)

	it := store.items["BOE-A-2026-1"]
	require.NotNil(t, it)
	assert.Equal(t, models.ClaseDisposicion, it.ClaseItem)
	assert.Equal(t, "Impuestos", it.Epigrafe)
	require.NotNil(t, it.FechaPublicacion)
	assert.Equal(t, "2026-03-02", it.FechaPublicacion.Format("2006-01-02"))
	// Model title is trimmed of the final period.
	assert.Equal(t, "Resumen de BOE-A-2026-1", it.TituloResumen)
	// Stored summary is compressed but decodes back to the model JSON.
	require.NotNil(t, it.Resumen)
	plain, err := utils.DecompressText(*it.Resumen)
	require.NoError(t, err)
	assert.Contains(t, plain, "Resumen del contenido")

	// Section 5A classifies as Anuncio; the run date backfills missing dates.
	anuncio := store.items["BOE-B-2026-4"]
	require.NotNil(t, anuncio)
	assert.Equal(t, models.ClaseAnuncio, anuncio.ClaseItem)
	require.NotNil(t, anuncio.FechaPublicacion)
	assert.Equal(t, "2026-03-02", anuncio.FechaPublicacion.Format("2006-01-02"))

	// Every inserted row gets an embedding after the commit.
	assert.Equal(t, 4, counters.Embebidos)
	assert.Len(t, store.embedded, 4)
	assert.NotEmpty(t, store.embedded["BOE-A-2026-1"])
}

func TestIngestDayIsIdempotent(t *testing.T) {
	store := newFakeStore()
	ing := newTestIngestor(store, &fakeAI{})
	fecha := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	first, err := ing.IngestDay(context.Background(), testDoc(), fecha)
	require.NoError(t, err)
	require.Equal(t, 4, first.Insertados)

	second, err := ing.IngestDay(context.Background(), testDoc(), fecha)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Insertados)
	assert.Equal(t, 4, second.OmitidosExistentes)
	assert.Len(t, store.items, 4)
}

func TestIngestDaySkipsItemOnAIFailure(t *testing.T) {
	store := newFakeStore()
	ing := newTestIngestor(store, &fakeAI{failFor: map[string]bool{"BOE-A-2026-2": true}})

	counters, err := ing.IngestDay(context.Background(), testDoc(), time.Time{})
	require.NoError(t, err)

	assert.Equal(t, 1, counters.FallosAI)
	assert.Equal(t, 3, counters.Insertados)
	// The failed item leaves no row; a future run can still insert it.
	_, ok := store.items["BOE-A-2026-2"]
	assert.False(t, ok)
}

func TestClassifyItem(t *testing.T) {
	cases := map[string]string{
		"V-A. Anuncios de licitaciones":      models.ClaseAnuncio,
		"I. Disposiciones generales":         models.ClaseDisposicion,
		"Notificaciones":                     models.ClaseNotificacion,
		"IV. Administración de Justicia":     models.ClaseEdictoJudicial,
		"II-A. Nombramientos y situaciones":  models.ClasePersonal,
		"Oposiciones y concursos":            models.ClasePersonal,
		"Sección desconocida":                models.ClaseDisposicion,
	}
	for in, want := range cases {
		assert.Equal(t, want, ClassifyItem(in), in)
	}
}

func TestComposeBodyFallsBackToTitleAndMeta(t *testing.T) {
	sec := &sumario.Seccion{Nombre: "III. Otras disposiciones"}
	dept := &sumario.Departamento{Nombre: "Ministerio de Cultura"}
	item := &sumario.Item{Control: "CTL-1"}

	body := composeBody(item, sec, dept, "Ayudas", "Título oficial")
	assert.True(t, strings.HasPrefix(body, "Título oficial"))
	assert.Contains(t, body, "III. Otras disposiciones | Ministerio de Cultura | Ayudas | CTL-1")

	item.Texto = "Cuerpo inline del sumario."
	body = composeBody(item, sec, dept, "Ayudas", "Título oficial")
	assert.True(t, strings.HasPrefix(body, "Cuerpo inline del sumario."))
	assert.NotContains(t, body, "Título oficial")
}

func TestRepairMissingAI(t *testing.T) {
	store := newFakeStore()
	store.missing = []models.GazetteItem{
		{Identificador: "BOE-A-2025-9", Titulo: "Antigua resolución sin resumen"},
		{Identificador: "BOE-A-2025-10", Titulo: "Otra antigua"},
	}
	ing := newTestIngestor(store, &fakeAI{failFor: map[string]bool{"BOE-A-2025-10": true}})

	counters, err := ing.RepairMissingAI(context.Background(), 50)
	require.NoError(t, err)

	assert.Equal(t, 2, counters.Candidatos)
	assert.Equal(t, 1, counters.Reparados)
	assert.Equal(t, 1, counters.FallosAI)
	assert.Equal(t, "Resumen de BOE-A-2025-9", store.updated["BOE-A-2025-9"])
	assert.NotEmpty(t, store.embedded["BOE-A-2025-9"])
}
