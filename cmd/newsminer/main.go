package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tkilaker/newsminer/internal/browser"
	"github.com/tkilaker/newsminer/internal/config"
	"github.com/tkilaker/newsminer/internal/database"
	"github.com/tkilaker/newsminer/internal/download"
	"github.com/tkilaker/newsminer/internal/extract"
	"github.com/tkilaker/newsminer/internal/logger"
	"github.com/tkilaker/newsminer/internal/output"
	"github.com/tkilaker/newsminer/internal/queue"
	"github.com/tkilaker/newsminer/internal/scraper"
	"github.com/tkilaker/newsminer/internal/server"
	"github.com/tkilaker/newsminer/internal/worker"
)

func main() {
	if err := run(); err != nil {
		logrus.WithError(err).Fatal("Application error")
	}
}

// jobQueue is a backend that both serves and accepts jobs
type jobQueue interface {
	queue.Source
	queue.Publisher
}

func run() error {
	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New("newsminer", cfg.LogLevel, cfg.LogFormat)
	entry := log.Service()
	entry.Info("Starting newsminer")

	q, err := openQueue(cfg, entry)
	if err != nil {
		return err
	}
	defer q.Close()

	// Connect to the run archive when configured
	var store database.Store
	if cfg.DatabaseURL != "" {
		store, err = database.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer store.Close()
		entry.Info("Connected to database")
	}

	for _, dir := range []string{cfg.TempDir, cfg.OutputDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	driver := browser.NewRodDriver(browser.RodOptions{
		Headless:       cfg.BrowserHeadless,
		Bin:            cfg.BrowserBin,
		ElementTimeout: cfg.ElementTimeout,
	}, entry)
	defer driver.Close()

	downloader := download.New(cfg.DownloadTimeout, download.RetryPolicy{
		MaxAttempts:       cfg.DownloadMaxAttempts,
		InitialDelay:      cfg.DownloadRetryDelay,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 2.0,
	})

	bundler := output.NewBundler(output.NewLocalFiles(), cfg.TempDir, cfg.OutputDir, output.Limits{
		MaxFiles: cfg.MaxOutputFiles,
		MaxMB:    cfg.MaxOutputMB,
	})

	progress := scraper.NewProgressTracker()
	session := scraper.New(driver, promoParser(cfg.PromoParser), downloader, bundler, progress, scraper.Options{
		SiteURL:        cfg.SiteURL,
		CreateZip:      cfg.CreateZip,
		ElementTimeout: cfg.ElementTimeout,
	}, entry)

	// Start the operator server when a port is configured
	if cfg.Port > 0 {
		srv := server.New(store, q, progress, cfg, entry)
		go func() {
			if err := srv.Start(ctx, fmt.Sprintf(":%d", cfg.Port)); err != nil {
				entry.WithError(err).Error("Server error")
			}
		}()
	}

	w := worker.New(q, session, driver, store, log, worker.Options{
		TempDir:      cfg.TempDir,
		Follow:       cfg.Follow,
		PollInterval: cfg.PollInterval,
	})
	return w.Run(ctx)
}

func openQueue(cfg *config.Config, log logrus.FieldLogger) (jobQueue, error) {
	switch cfg.QueueBackend {
	case "amqp":
		q, err := queue.DialAMQP(cfg.RabbitMQURL, cfg.QueueName, cfg.MaxRetries, log)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
		}
		log.WithField("queue", cfg.QueueName).Info("Connected to RabbitMQ")
		return q, nil
	default:
		q, err := queue.OpenDir(cfg.WorkItemsDir)
		if err != nil {
			return nil, fmt.Errorf("failed to open work items: %w", err)
		}
		log.WithField("dir", cfg.WorkItemsDir).Info("Using local work items")
		return q, nil
	}
}

func promoParser(name string) extract.PromoParser {
	if name == "document" {
		return extract.NewDocumentParser()
	}
	return extract.NewRegexParser()
}
