package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/boediario/boediario/internal/app"
	"github.com/boediario/boediario/internal/config"
	"github.com/boediario/boediario/internal/core/sumario"
)

func main() {
	dateFlag := flag.String("date", "", "gazette date YYYY-MM-DD (default today)")
	repairFlag := flag.Bool("repair", false, "backfill items missing AI output instead of ingesting")
	limitFlag := flag.Int("limit", 200, "max items per repair run")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		<-c
		cancel()
	}()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	log := logrus.NewEntry(logger).WithField("app", "ingest")

	fecha := time.Now()
	if *dateFlag != "" {
		d, err := sumario.ParseDate(*dateFlag)
		if err != nil {
			log.Fatalf("invalid -date %q: use YYYY-MM-DD", *dateFlag)
		}
		fecha = d
	}

	cfg := config.LoadConfig()
	application, err := app.NewApp(ctx, cfg, log)
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}
	defer application.Close()

	if *repairFlag {
		counters, err := application.Ingestor.RepairMissingAI(ctx, *limitFlag)
		if err != nil {
			log.Fatalf("repair failed: %v", err)
		}
		log.WithFields(logrus.Fields{
			"candidatos": counters.Candidatos,
			"reparados":  counters.Reparados,
			"fallos_ai":  counters.FallosAI,
		}).Info("repair run done")
		return
	}

	doc, err := application.Fetcher.FetchDay(ctx, fecha)
	if err != nil {
		if errors.Is(err, sumario.ErrNotPublished) {
			log.WithField("fecha", fecha.Format("2006-01-02")).Info("no gazette published, nothing to do")
			return
		}
		log.Fatalf("fetch sumario failed: %v", err)
	}

	counters, err := application.Ingestor.IngestDay(ctx, doc, fecha)
	if err != nil {
		log.Fatalf("ingestion failed: %v", err)
	}
	log.WithFields(logrus.Fields{
		"insertados": counters.Insertados,
		"existentes": counters.OmitidosExistentes,
		"fallos_ai":  counters.FallosAI,
	}).Info("ingestion done")
}
