// Package app wires the pipeline components together for the three
// entrypoints (ingest, digest, api).
package app

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/boediario/boediario/internal/config"
	"github.com/boediario/boediario/internal/core"
	db "github.com/boediario/boediario/internal/core/database"
	"github.com/boediario/boediario/internal/core/digest"
	"github.com/boediario/boediario/internal/core/enrich"
	"github.com/boediario/boediario/internal/core/extract"
	"github.com/boediario/boediario/internal/core/ingest"
	"github.com/boediario/boediario/internal/core/llm"
	"github.com/boediario/boediario/internal/core/objectstore"
	"github.com/boediario/boediario/internal/core/sample"
	"github.com/boediario/boediario/internal/core/sumario"
)

type App struct {
	Cfg       *config.Config
	Log       *logrus.Entry
	DB        core.DbClient
	Fetcher   *sumario.Fetcher
	Ingestor  *ingest.Ingestor
	DigestJob *digest.Job
	AI        *llm.Client
	Embedder  *llm.Embedder
	Server    *Server
}

func NewApp(ctx context.Context, cfg *config.Config, log *logrus.Entry) (*App, error) {
	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	dbClient, err := db.NewDatabaseClient(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	log.Info("database initialized and ready")

	// The artifact archive is optional; without a bucket the pipeline just
	// skips archiving.
	var archive core.ObjectClient
	if cfg.BucketName != "" {
		s3c, err := objectstore.NewS3Client(appCtx, cfg, log)
		if err != nil {
			_ = dbClient.Close()
			return nil, err
		}
		archive = s3c
	}

	aiClient, err := llm.NewClient(appCtx, cfg, log)
	if err != nil {
		_ = dbClient.Close()
		return nil, err
	}
	embedder, err := llm.NewEmbedder(appCtx, cfg)
	if err != nil {
		_ = dbClient.Close()
		return nil, err
	}

	fetcher := sumario.NewFetcher(cfg, log)
	extractor := extract.NewExtractor(cfg, archive, log)
	enricher := enrich.NewEnricher(cfg, extractor, enrich.NewCache(), log)
	ingestor := ingest.NewIngestor(dbClient, extractor, enricher, aiClient, embedder, log)

	sampleCfg := sample.Config{
		SampleMax: cfg.SampleMax,
		Head:      cfg.SampleHead,
		Tail:      cfg.SampleTail,
		TopDepts:  cfg.SampleTopDepts,
		MaxDepts:  cfg.MaxDepts,
	}
	digestJob := digest.NewJob(dbClient, fetcher, aiClient, sampleCfg,
		cfg.PromptVersion, cfg.ForceDigestRebuild, cfg.DigestSleep, log)

	server := NewServer(cfg, dbClient)

	return &App{
		Cfg:       cfg,
		Log:       log,
		DB:        dbClient,
		Fetcher:   fetcher,
		Ingestor:  ingestor,
		DigestJob: digestJob,
		AI:        aiClient,
		Embedder:  embedder,
		Server:    server,
	}, nil
}

func (a *App) Close() {
	if a.AI != nil {
		_ = a.AI.Close()
	}
	if a.Embedder != nil {
		_ = a.Embedder.Close()
	}
	if a.DB != nil {
		_ = a.DB.Close()
	}
}
