package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/tkilaker/newsminer/internal/config"
	"github.com/tkilaker/newsminer/internal/jobfile"
	"github.com/tkilaker/newsminer/internal/logger"
	"github.com/tkilaker/newsminer/internal/queue"
)

func main() {
	if err := run(); err != nil {
		logrus.WithError(err).Fatal("Producer error")
	}
}

func run() error {
	path := flag.String("file", "jobs.yaml", "YAML job file; the built-in jobs are used when it does not exist")
	dump := flag.Bool("write-defaults", false, "write the built-in jobs to -file and exit")
	flag.Parse()

	if *dump {
		return jobfile.Write(*path, jobfile.Defaults())
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log := logger.New("newsminer-producer", cfg.LogLevel, cfg.LogFormat).Service()

	jobs, err := jobfile.Load(*path)
	if err != nil {
		return err
	}
	if jobs == nil {
		log.WithField("file", *path).Info("Job file not found, publishing built-in jobs")
		jobs = jobfile.Defaults()
	}

	publisher, closeQueue, err := openPublisher(cfg, log)
	if err != nil {
		return err
	}
	defer closeQueue()

	ctx := context.Background()
	for _, job := range jobs {
		id, err := publisher.Publish(ctx, job)
		if err != nil {
			return fmt.Errorf("failed to publish %q: %w", job.SearchPhrase, err)
		}
		log.WithFields(logrus.Fields{
			"job_id":        id,
			"search_phrase": job.SearchPhrase,
		}).Info("Published job")
	}

	log.WithField("count", len(jobs)).Info("All jobs published")
	return nil
}

func openPublisher(cfg *config.Config, log logrus.FieldLogger) (queue.Publisher, func() error, error) {
	if cfg.QueueBackend == "amqp" {
		q, err := queue.DialAMQP(cfg.RabbitMQURL, cfg.QueueName, cfg.MaxRetries, log)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
		}
		return q, q.Close, nil
	}

	q, err := queue.OpenDir(cfg.WorkItemsDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open work items: %w", err)
	}
	return q, q.Close, nil
}
