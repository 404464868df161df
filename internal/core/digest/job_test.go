package digest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boediario/boediario/internal/core"
	"github.com/boediario/boediario/internal/core/sample"
	"github.com/boediario/boediario/internal/core/sumario"
	"github.com/boediario/boediario/internal/models"
)

type fakeDigestStore struct {
	meta     map[string]*core.SummaryMeta
	upserted []*models.DailySectionSummary
}

func metaKey(fecha time.Time, codigo string) string {
	return fecha.Format("2006-01-02") + "/" + codigo
}

func (s *fakeDigestStore) GetSummaryMeta(_ context.Context, fecha time.Time, codigo string) (*core.SummaryMeta, error) {
	return s.meta[metaKey(fecha, codigo)], nil
}

func (s *fakeDigestStore) UpsertSectionSummary(_ context.Context, sum *models.DailySectionSummary) error {
	s.upserted = append(s.upserted, sum)
	return nil
}

type fakeFetcher struct {
	doc     *sumario.Document
	err     error
	fetched int
}

func (f *fakeFetcher) FetchDay(_ context.Context, fecha time.Time) (*sumario.Document, error) {
	f.fetched++
	if f.err != nil {
		return nil, f.err
	}
	doc := *f.doc
	doc.Fecha = fecha
	return &doc, nil
}

type fakeDigestAI struct {
	failFor map[string]bool
	calls   []string
}

func (a *fakeDigestAI) SummarizeSection(_ context.Context, _ time.Time, section sample.SectionInput) (*core.SectionDigest, error) {
	a.calls = append(a.calls, section.SeccionCodigo)
	if a.failFor[section.SeccionCodigo] {
		return nil, errors.New("model unavailable")
	}
	return &core.SectionDigest{
		Summary:       "Resumen de la sección " + section.SeccionCodigo + ".",
		Highlights:    []string{"Un punto relevante."},
		Model:         "gemini-1.5-flash",
		PromptVersion: 2,
	}, nil
}

func digestDoc() *sumario.Document {
	return &sumario.Document{
		Secciones: []sumario.Seccion{
			{
				Codigo: "1", Nombre: "Disposiciones generales",
				Departamentos: []sumario.Departamento{
					{
						Codigo: "10", Nombre: "Ministerio de Hacienda",
						Items: []sumario.Item{
							{Identificador: "BOE-A-2026-1", Titulo: "Primera"},
							{Identificador: "BOE-A-2026-2", Titulo: "Segunda"},
						},
					},
				},
			},
			{
				Codigo: "2A", Nombre: "Nombramientos",
				Departamentos: []sumario.Departamento{
					{
						Codigo: "20", Nombre: "Universidades",
						Items: []sumario.Item{
							{Identificador: "BOE-A-2026-3", Titulo: "Tercera"},
						},
					},
				},
			},
		},
	}
}

func newTestJob(store *fakeDigestStore, fetcher *fakeFetcher, ai *fakeDigestAI, force bool) *Job {
	return NewJob(store, fetcher, ai, sample.DefaultConfig(), 2, force, 0,
		logrus.NewEntry(logrus.New()))
}

func TestRunDayGeneratesAllSections(t *testing.T) {
	store := &fakeDigestStore{meta: map[string]*core.SummaryMeta{}}
	ai := &fakeDigestAI{}
	job := newTestJob(store, &fakeFetcher{doc: digestDoc()}, ai, false)
	fecha := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	counters, err := job.RunDay(context.Background(), fecha)
	require.NoError(t, err)

	assert.Equal(t, 2, counters.Secciones)
	assert.Equal(t, 2, counters.Generados)
	require.Len(t, store.upserted, 2)

	first := store.upserted[0]
	assert.Equal(t, "1", first.SeccionCodigo)
	assert.Equal(t, 2, first.TotalEntradas)
	assert.Equal(t, 2, first.AIPromptVersion)
	// Provenance rides along with the summary.
	require.NotNil(t, first.SourceSampleItems)
	assert.Contains(t, *first.SourceSampleItems, "BOE-A-2026-1")
	require.NotNil(t, first.SourceDeptCounts)
	assert.Contains(t, *first.SourceDeptCounts, "Ministerio de Hacienda")
}

func TestRunDaySkipsUpToDateSections(t *testing.T) {
	fecha := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	store := &fakeDigestStore{meta: map[string]*core.SummaryMeta{
		metaKey(fecha, "1"): {PromptVersion: 2, ResumenTexto: "ya generado"},
	}}
	ai := &fakeDigestAI{}
	job := newTestJob(store, &fakeFetcher{doc: digestDoc()}, ai, false)

	counters, err := job.RunDay(context.Background(), fecha)
	require.NoError(t, err)

	assert.Equal(t, 1, counters.Omitidos)
	assert.Equal(t, 1, counters.Generados)
	assert.Equal(t, []string{"2A"}, ai.calls)
}

func TestRunDayForceRegenerates(t *testing.T) {
	fecha := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	store := &fakeDigestStore{meta: map[string]*core.SummaryMeta{
		metaKey(fecha, "1"):  {PromptVersion: 2, ResumenTexto: "ya generado"},
		metaKey(fecha, "2A"): {PromptVersion: 2, ResumenTexto: "ya generado"},
	}}
	ai := &fakeDigestAI{}
	job := newTestJob(store, &fakeFetcher{doc: digestDoc()}, ai, true)

	counters, err := job.RunDay(context.Background(), fecha)
	require.NoError(t, err)
	assert.Equal(t, 2, counters.Generados)
	assert.Equal(t, 0, counters.Omitidos)
}

func TestRunDayStaleVersionRegenerates(t *testing.T) {
	fecha := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	store := &fakeDigestStore{meta: map[string]*core.SummaryMeta{
		metaKey(fecha, "1"): {PromptVersion: 1, ResumenTexto: "de una versión anterior"},
	}}
	ai := &fakeDigestAI{}
	job := newTestJob(store, &fakeFetcher{doc: digestDoc()}, ai, false)

	counters, err := job.RunDay(context.Background(), fecha)
	require.NoError(t, err)
	assert.Equal(t, 2, counters.Generados)
}

func TestRunDayContinuesAfterSectionFailure(t *testing.T) {
	store := &fakeDigestStore{meta: map[string]*core.SummaryMeta{}}
	ai := &fakeDigestAI{failFor: map[string]bool{"1": true}}
	job := newTestJob(store, &fakeFetcher{doc: digestDoc()}, ai, false)

	counters, err := job.RunDay(context.Background(), time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, counters.Fallos)
	assert.Equal(t, 1, counters.Generados)
	require.Len(t, store.upserted, 1)
	assert.Equal(t, "2A", store.upserted[0].SeccionCodigo)
}

func TestRunRangeSkipsUnpublishedDays(t *testing.T) {
	store := &fakeDigestStore{meta: map[string]*core.SummaryMeta{}}
	fetcher := &fakeFetcher{err: sumario.ErrNotPublished}
	job := newTestJob(store, fetcher, &fakeDigestAI{}, false)

	from := time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)
	err := job.RunRange(context.Background(), from, to)
	require.NoError(t, err)
	assert.Equal(t, 2, fetcher.fetched)
	assert.Empty(t, store.upserted)
}
