package main

import (
	"context"
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
	fromFlag := flag.String("from-date", "", "first date YYYY-MM-DD (default yesterday)")
	toFlag := flag.String("to-date", "", "last date YYYY-MM-DD (default today)")
	forceFlag := flag.Bool("force", false, "regenerate digests even when up to date")
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
	log := logrus.NewEntry(logger).WithField("app", "digest")

	now := time.Now()
	from := now.AddDate(0, 0, -1)
	to := now
	if *fromFlag != "" {
		d, err := sumario.ParseDate(*fromFlag)
		if err != nil {
			log.Fatalf("invalid -from-date %q: use YYYY-MM-DD", *fromFlag)
		}
		from = d
	}
	if *toFlag != "" {
		d, err := sumario.ParseDate(*toFlag)
		if err != nil {
			log.Fatalf("invalid -to-date %q: use YYYY-MM-DD", *toFlag)
		}
		to = d
	}
	if to.Before(from) {
		log.Fatal("-to-date is before -from-date")
	}

	cfg := config.LoadConfig()
	if *forceFlag {
		cfg.ForceDigestRebuild = true
	}

	application, err := app.NewApp(ctx, cfg, log)
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}
	defer application.Close()

	if err := application.DigestJob.RunRange(ctx, from, to); err != nil {
		log.Fatalf("digest run failed: %v", err)
	}
	log.WithFields(logrus.Fields{
		"from": from.Format("2006-01-02"),
		"to":   to.Format("2006-01-02"),
	}).Info("digest run done")
}
