package ingest

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/boediario/boediario/internal/core"
	"github.com/boediario/boediario/internal/core/sanitize"
)

// RepairCounters summarize one backfill pass.
type RepairCounters struct {
	Candidatos   int
	Reparados    int
	FallosAI     int
	SinContenido int
}

// RepairMissingAI backfills items that were inserted without AI output or
// whose enrichment call failed on a previous day (those rows are absent, so
// they re-enter via a fresh ingest; this pass covers rows with NULL
// summaries from older data). Each item is re-fed through extraction,
// enrichment and the AI client, then updated in place.
func (ing *Ingestor) RepairMissingAI(ctx context.Context, limit int) (*RepairCounters, error) {
	items, err := ing.store.ListItemsMissingAI(ctx, limit)
	if err != nil {
		return nil, err
	}

	counters := &RepairCounters{Candidatos: len(items)}
	for i := range items {
		it := &items[i]
		ilog := ing.log.WithField("identificador", it.Identificador)

		base := it.Titulo
		if it.URLPDF != "" && ing.extractor != nil {
			if text, err := ing.extractor.ExtractPDF(ctx, it.Identificador, it.URLPDF); err != nil {
				ilog.WithError(err).Warn("repair: pdf extraction failed")
			} else if len(text) > len(base) {
				base = text
			}
		}
		if ing.enricher != nil {
			if text, ok := ing.enricher.Enrich(ctx, core.EnrichRequest{
				Identificador: it.Identificador,
				URLHTML:       it.URLHTML,
				URLPDF:        it.URLPDF,
				BaseText:      base,
			}); ok {
				base = text
			}
		}

		body := sanitize.ForAI(base)
		if strings.TrimSpace(body) == "" {
			counters.SinContenido++
			continue
		}

		enr, err := ing.ai.EnrichItem(ctx, core.ItemRequest{
			Identificador: it.Identificador,
			Titulo:        it.Titulo,
			Seccion:       it.SeccionNombre,
			Departamento:  it.DepartamentoNombre,
			Body:          body,
		})
		if err != nil {
			ilog.WithError(err).Error("repair: ai enrichment failed")
			counters.FallosAI++
			continue
		}

		resumenStored, err := compressJSON(enr.Resumen)
		if err != nil {
			return nil, err
		}
		impactoStored, err := compressImpacto(enr.Impacto)
		if err != nil {
			return nil, err
		}

		tituloResumen := strings.TrimSpace(strings.TrimRight(strings.TrimSpace(enr.TituloResumen), "."))
		if tituloResumen == "" {
			tituloResumen = it.Titulo
		}

		if err := ing.store.UpdateItemAI(ctx, it.Identificador, tituloResumen, resumenStored, impactoStored); err != nil {
			return nil, err
		}
		counters.Reparados++

		if ing.embedder != nil {
			if vec, err := ing.embedder.EmbedText(ctx, embedText(tituloResumen, enr.Resumen, it.Titulo)); err != nil {
				ilog.WithError(err).Warn("repair: embedding failed")
			} else if err := ing.store.UpdateItemEmbedding(ctx, it.Identificador, vec); err != nil {
				ilog.WithError(err).Warn("repair: embedding update failed")
			}
		}
	}

	ing.log.WithFields(logrus.Fields{
		"candidatos": counters.Candidatos,
		"reparados":  counters.Reparados,
		"fallos_ai":  counters.FallosAI,
	}).Info("repair pass finished")
	return counters, nil
}
