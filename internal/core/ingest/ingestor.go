// Package ingest turns a decoded sumario into persisted, AI-enriched item
// rows. One call processes one publication day inside one transaction.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/boediario/boediario/internal/core"
	"github.com/boediario/boediario/internal/core/sanitize"
	"github.com/boediario/boediario/internal/core/sumario"
	"github.com/boediario/boediario/internal/models"
	"github.com/boediario/boediario/internal/utils"
)

// Store is the slice of the persistence layer the ingestor needs.
type Store interface {
	BeginIngest(ctx context.Context) (core.IngestStore, error)
	ListItemsMissingAI(ctx context.Context, limit int) ([]models.GazetteItem, error)
	UpdateItemAI(ctx context.Context, identificador, tituloResumen string, resumen, impacto *string) error
	UpdateItemEmbedding(ctx context.Context, identificador string, vec []float32) error
}

// Counters summarize what one run did; they are the run's return value and
// go straight into the final log line.
type Counters struct {
	Insertados         int
	OmitidosExistentes int
	OmitidosVacios     int
	FallosAI           int
	Huerfanos          int
	Embebidos          int
	LookupSecInsert    int
	LookupSecUpdate    int
	LookupDepInsert    int
	LookupDepUpdate    int
}

type Ingestor struct {
	store     Store
	extractor core.TextExtractor
	enricher  core.SourceEnricher
	ai        core.ItemAI
	embedder  core.EmbeddingProvider
	log       *logrus.Entry
}

func NewIngestor(store Store, extractor core.TextExtractor, enricher core.SourceEnricher,
	ai core.ItemAI, embedder core.EmbeddingProvider, log *logrus.Entry) *Ingestor {
	return &Ingestor{store: store, extractor: extractor, enricher: enricher, ai: ai, embedder: embedder, log: log}
}

// embedJob is one pending embedding computed after the run commits, so a
// failing embedding API never rolls back inserted rows.
type embedJob struct {
	identificador string
	text          string
}

// IngestDay walks the sumario in document order and inserts every new item.
// All inserts of the run commit together: a run either lands complete or not
// at all. Per-item AI failures do not abort the run; the item is skipped and
// counted, to be picked up by a later repair run.
func (ing *Ingestor) IngestDay(ctx context.Context, doc *sumario.Document, fecha time.Time) (*Counters, error) {
	runID := uuid.NewString()[:8]
	log := ing.log.WithFields(logrus.Fields{"run": runID, "fecha": fecha.Format("2006-01-02")})

	st, err := ing.store.BeginIngest(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = st.Rollback() }()

	counters := &Counters{}
	var pending []embedJob
	for si := range doc.Secciones {
		sec := &doc.Secciones[si]
		act, err := st.EnsureSeccion(ctx, sec.Codigo, strings.TrimSpace(sec.Nombre))
		if err != nil {
			return nil, fmt.Errorf("ensure seccion %q: %w", sec.Codigo, err)
		}
		bumpLookup(act, &counters.LookupSecInsert, &counters.LookupSecUpdate)

		clase := ClassifyItem(sec.Nombre)

		for di := range sec.Departamentos {
			dept := &sec.Departamentos[di]
			act, err := st.EnsureDepartamento(ctx, dept.Codigo, strings.TrimSpace(dept.Nombre))
			if err != nil {
				return nil, fmt.Errorf("ensure departamento %q: %w", dept.Codigo, err)
			}
			bumpLookup(act, &counters.LookupDepInsert, &counters.LookupDepUpdate)

			for ei := range dept.Epigrafes {
				ep := &dept.Epigrafes[ei]
				for ii := range ep.Items {
					if err := ing.processItem(ctx, log, st, &ep.Items[ii], sec, dept, ep.Nombre, clase, fecha, counters, &pending); err != nil {
						return nil, err
					}
				}
			}
			for ii := range dept.Items {
				if err := ing.processItem(ctx, log, st, &dept.Items[ii], sec, dept, "", clase, fecha, counters, &pending); err != nil {
					return nil, err
				}
			}
		}

		for ii := range sec.Items {
			counters.Huerfanos++
			if err := ing.processItem(ctx, log, st, &sec.Items[ii], sec, nil, "", clase, fecha, counters, &pending); err != nil {
				return nil, err
			}
		}
	}

	if err := st.Commit(); err != nil {
		return nil, fmt.Errorf("commit ingest run: %w", err)
	}

	counters.Embebidos = ing.embedItems(ctx, log, pending)

	log.WithFields(logrus.Fields{
		"insertados": counters.Insertados,
		"existentes": counters.OmitidosExistentes,
		"vacios":     counters.OmitidosVacios,
		"fallos_ai":  counters.FallosAI,
		"huerfanos":  counters.Huerfanos,
		"embebidos":  counters.Embebidos,
	}).Info("ingest run finished")
	return counters, nil
}

// embedItems runs after commit and is best effort: a failed embedding only
// costs the related-items feature for that row, never the ingested data.
func (ing *Ingestor) embedItems(ctx context.Context, log *logrus.Entry, jobs []embedJob) int {
	if ing.embedder == nil {
		return 0
	}
	done := 0
	for _, job := range jobs {
		vec, err := ing.embedder.EmbedText(ctx, job.text)
		if err != nil {
			log.WithError(err).WithField("identificador", job.identificador).Warn("embedding failed")
			continue
		}
		if err := ing.store.UpdateItemEmbedding(ctx, job.identificador, vec); err != nil {
			log.WithError(err).WithField("identificador", job.identificador).Warn("embedding update failed")
			continue
		}
		done++
	}
	return done
}

func bumpLookup(act core.LookupAction, ins, upd *int) {
	switch act {
	case core.LookupInserted:
		*ins++
	case core.LookupUpdatedName:
		*upd++
	}
}

func (ing *Ingestor) processItem(ctx context.Context, log *logrus.Entry, st core.IngestStore,
	item *sumario.Item, sec *sumario.Seccion, dept *sumario.Departamento,
	epigrafe, clase string, fecha time.Time, counters *Counters, pending *[]embedJob) error {

	identificador := strings.TrimSpace(item.Identificador)
	titulo := strings.TrimSpace(item.Titulo)
	if identificador == "" || titulo == "" {
		log.Warn("item skipped: empty identifier or title")
		counters.OmitidosVacios++
		return nil
	}

	exists, err := st.ItemExists(ctx, identificador)
	if err != nil {
		return fmt.Errorf("exists check %s: %w", identificador, err)
	}
	if exists {
		counters.OmitidosExistentes++
		return nil
	}

	ilog := log.WithField("identificador", identificador)
	base := composeBody(item, sec, dept, epigrafe, titulo)

	if item.URLPDF != "" && ing.extractor != nil {
		extracted, err := ing.extractor.ExtractPDF(ctx, identificador, strings.TrimSpace(item.URLPDF))
		if err != nil {
			ilog.WithError(err).Warn("pdf extraction failed, continuing with sumario text")
		} else if len(extracted) > len(base) {
			base = extracted
		}
	}

	if ing.enricher != nil {
		if text, ok := ing.enricher.Enrich(ctx, core.EnrichRequest{
			Identificador: identificador,
			URLHTML:       strings.TrimSpace(item.URLHTML),
			URLPDF:        strings.TrimSpace(item.URLPDF),
			BaseText:      base,
		}); ok {
			base = text
		}
	}

	body := sanitize.ForAI(base)

	enr, err := ing.ai.EnrichItem(ctx, core.ItemRequest{
		Identificador: identificador,
		Titulo:        titulo,
		Seccion:       sec.Nombre,
		Departamento:  deptName(dept),
		Body:          body,
	})
	if err != nil {
		ilog.WithError(err).Error("ai enrichment failed, item skipped")
		counters.FallosAI++
		return nil
	}

	resumenStored, err := compressJSON(enr.Resumen)
	if err != nil {
		return fmt.Errorf("compress resumen %s: %w", identificador, err)
	}
	impactoStored, err := compressImpacto(enr.Impacto)
	if err != nil {
		return fmt.Errorf("compress impacto %s: %w", identificador, err)
	}

	tituloResumen := strings.TrimSpace(strings.TrimRight(strings.TrimSpace(enr.TituloResumen), "."))
	if tituloResumen == "" {
		tituloResumen = titulo
	}

	row := &models.GazetteItem{
		Identificador:      identificador,
		Titulo:             titulo,
		TituloResumen:      tituloResumen,
		Resumen:            resumenStored,
		InformeImpacto:     impactoStored,
		URLPDF:             strings.TrimSpace(item.URLPDF),
		URLHTML:            strings.TrimSpace(item.URLHTML),
		URLXML:             strings.TrimSpace(item.URLXML),
		SeccionCodigo:      sec.Codigo,
		DepartamentoCodigo: deptCode(dept),
		Epigrafe:           strings.TrimSpace(epigrafe),
		Control:            strings.TrimSpace(item.Control),
		FechaPublicacion:   itemDate(item, fecha),
		ClaseItem:          clase,
	}
	if err := st.InsertItem(ctx, row); err != nil {
		return fmt.Errorf("insert %s: %w", identificador, err)
	}
	*pending = append(*pending, embedJob{identificador: identificador, text: embedText(tituloResumen, enr.Resumen, titulo)})

	ilog.Info("item inserted")
	counters.Insertados++
	return nil
}

// embedText builds the text the embedding represents: the graded title plus
// the model summary when there is one, the official title otherwise.
func embedText(tituloResumen string, r *core.Resumen, titulo string) string {
	if r != nil && strings.TrimSpace(r.Summary) != "" {
		return tituloResumen + "\n" + strings.TrimSpace(r.Summary)
	}
	return titulo
}

// composeBody prefers inline sumario text, then appends a metadata line.
// When no inline text exists at all, the title plus metadata stands in so
// the model always has something grounded to work with.
func composeBody(item *sumario.Item, sec *sumario.Seccion, dept *sumario.Departamento, epigrafe, titulo string) string {
	var metaParts []string
	for _, m := range []string{sec.Nombre, deptName(dept), epigrafe, item.Control} {
		if s := strings.TrimSpace(m); s != "" {
			metaParts = append(metaParts, s)
		}
	}
	meta := strings.Join(metaParts, " | ")

	candidates := item.BodyCandidates()
	if len(candidates) == 0 {
		text := titulo
		if meta != "" {
			text += "\n\n" + meta
		}
		return strings.TrimSpace(text)
	}
	if meta != "" {
		candidates = append(candidates, meta)
	}
	return strings.TrimSpace(strings.Join(candidates, "\n\n"))
}

func deptName(d *sumario.Departamento) string {
	if d == nil {
		return ""
	}
	return strings.TrimSpace(d.Nombre)
}

func deptCode(d *sumario.Departamento) string {
	if d == nil {
		return ""
	}
	return d.Codigo
}

func itemDate(item *sumario.Item, fallback time.Time) *time.Time {
	if d, err := sumario.ParseDate(item.FechaPublicacion); err == nil {
		return &d
	}
	if fallback.IsZero() {
		return nil
	}
	return &fallback
}

func compressJSON(r *core.Resumen) (*string, error) {
	if r.IsEmpty() {
		return nil, nil
	}
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	packed, err := utils.CompressText(string(raw))
	if err != nil {
		return nil, err
	}
	return &packed, nil
}

func compressImpacto(i *core.Impacto) (*string, error) {
	if i.IsEmpty() {
		return nil, nil
	}
	raw, err := json.Marshal(i)
	if err != nil {
		return nil, err
	}
	packed, err := utils.CompressText(string(raw))
	if err != nil {
		return nil, err
	}
	return &packed, nil
}
