// Package digest builds the per-section daily summaries: it samples the
// day's sumario, asks the model for an editorial digest of each section and
// upserts the result with full provenance.
package digest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/boediario/boediario/internal/core"
	"github.com/boediario/boediario/internal/core/sample"
	"github.com/boediario/boediario/internal/core/sumario"
	"github.com/boediario/boediario/internal/models"
)

// Store is the slice of the persistence layer the digest job needs.
type Store interface {
	GetSummaryMeta(ctx context.Context, fecha time.Time, seccionCodigo string) (*core.SummaryMeta, error)
	UpsertSectionSummary(ctx context.Context, s *models.DailySectionSummary) error
}

// Fetcher yields the decoded sumario for one date.
type Fetcher interface {
	FetchDay(ctx context.Context, fecha time.Time) (*sumario.Document, error)
}

type Job struct {
	store         Store
	fetcher       Fetcher
	ai            core.DigestAI
	sampleCfg     sample.Config
	promptVersion int
	force         bool
	sleep         time.Duration
	log           *logrus.Entry
}

func NewJob(store Store, fetcher Fetcher, ai core.DigestAI, sampleCfg sample.Config,
	promptVersion int, force bool, sleep time.Duration, log *logrus.Entry) *Job {
	return &Job{
		store:         store,
		fetcher:       fetcher,
		ai:            ai,
		sampleCfg:     sampleCfg,
		promptVersion: promptVersion,
		force:         force,
		sleep:         sleep,
		log:           log,
	}
}

// Counters summarize one digest run.
type Counters struct {
	Secciones int
	Generados int
	Omitidos  int
	Fallos    int
}

// RunDay digests every section of one publication date. A section whose
// stored summary already matches the current prompt version is skipped
// unless force is set. Section failures are logged and do not stop the
// remaining sections.
func (j *Job) RunDay(ctx context.Context, fecha time.Time) (*Counters, error) {
	log := j.log.WithField("fecha", fecha.Format("2006-01-02"))

	doc, err := j.fetcher.FetchDay(ctx, fecha)
	if err != nil {
		return nil, err
	}

	sections := sample.BuildSectionInputs(doc, j.sampleCfg)
	counters := &Counters{Secciones: len(sections)}

	for _, section := range sections {
		slog := log.WithField("seccion", section.SeccionCodigo)

		if !j.force {
			meta, err := j.store.GetSummaryMeta(ctx, fecha, section.SeccionCodigo)
			if err != nil {
				return nil, fmt.Errorf("summary meta %s: %w", section.SeccionCodigo, err)
			}
			if meta != nil && meta.PromptVersion == j.promptVersion && meta.ResumenTexto != "" {
				slog.Debug("digest up to date, skipping")
				counters.Omitidos++
				continue
			}
		}

		if err := j.digestSection(ctx, fecha, section); err != nil {
			slog.WithError(err).Error("section digest failed")
			counters.Fallos++
		} else {
			counters.Generados++
		}

		j.pause(ctx)
	}

	log.WithFields(logrus.Fields{
		"secciones": counters.Secciones,
		"generados": counters.Generados,
		"omitidos":  counters.Omitidos,
		"fallos":    counters.Fallos,
	}).Info("digest run finished")
	return counters, nil
}

// RunRange digests each date in [from, to]. Unpublished days (weekends,
// some holidays) are skipped, any other failure stops the range.
func (j *Job) RunRange(ctx context.Context, from, to time.Time) error {
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if _, err := j.RunDay(ctx, d); err != nil {
			if errors.Is(err, sumario.ErrNotPublished) {
				j.log.WithField("fecha", d.Format("2006-01-02")).Info("no issue published, skipping")
				continue
			}
			return fmt.Errorf("digest %s: %w", d.Format("2006-01-02"), err)
		}
	}
	return nil
}

func (j *Job) digestSection(ctx context.Context, fecha time.Time, section sample.SectionInput) error {
	out, err := j.ai.SummarizeSection(ctx, fecha, section)
	if err != nil {
		return err
	}

	resumenJSON, err := marshalPtr(out)
	if err != nil {
		return fmt.Errorf("marshal digest: %w", err)
	}
	deptCounts, err := marshalPtr(section.DeptCounts)
	if err != nil {
		return fmt.Errorf("marshal dept counts: %w", err)
	}
	sampleItems, err := marshalPtr(section.SampleItems)
	if err != nil {
		return fmt.Errorf("marshal sample: %w", err)
	}

	return j.store.UpsertSectionSummary(ctx, &models.DailySectionSummary{
		FechaPublicacion:  fecha,
		SeccionCodigo:     section.SeccionCodigo,
		SeccionNombre:     section.SeccionNombre,
		TotalEntradas:     section.TotalEntradas,
		ResumenTexto:      out.Summary,
		ResumenJSON:       resumenJSON,
		AIModel:           out.Model,
		AIPromptVersion:   out.PromptVersion,
		SourceDeptCounts:  deptCounts,
		SourceSampleItems: sampleItems,
	})
}

func marshalPtr(v any) (*string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	s := string(raw)
	return &s, nil
}

// pause rate-limits consecutive model calls.
func (j *Job) pause(ctx context.Context) {
	if j.sleep <= 0 {
		return
	}
	select {
	case <-time.After(j.sleep):
	case <-ctx.Done():
	}
}
