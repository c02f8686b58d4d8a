package server

import (
	"fmt"
	"time"

	"github.com/gorilla/feeds"

	"github.com/tkilaker/newsminer/internal/config"
	"github.com/tkilaker/newsminer/internal/database"
)

const maxFeedDescription = 500

// GenerateRSSFeed creates an RSS feed from archived records
func GenerateRSSFeed(records []*database.Record, cfg *config.Config) (string, error) {
	now := time.Now()

	feed := &feeds.Feed{
		Title:       cfg.FeedTitle,
		Link:        &feeds.Link{Href: cfg.FeedLink},
		Description: cfg.FeedDescription,
		Created:     now,
	}

	// Convert records to feed items
	feed.Items = make([]*feeds.Item, 0, len(records))
	for _, record := range records {
		runURL := fmt.Sprintf("%s/runs/%s", cfg.FeedLink, record.RunID)
		item := &feeds.Item{
			Title:   recordTitle(record),
			Link:    &feeds.Link{Href: runURL},
			Id:      fmt.Sprintf("%s#record-%d", runURL, record.ID),
			Created: record.PublishedAt,
		}

		// Truncate to reasonable length for RSS
		description := []rune(record.Description)
		if len(description) > maxFeedDescription {
			item.Description = string(description[:maxFeedDescription]) + "..."
		} else {
			item.Description = record.Description
		}

		feed.Items = append(feed.Items, item)
	}

	// Generate RSS 2.0 format
	rss, err := feed.ToRss()
	if err != nil {
		return "", fmt.Errorf("failed to generate RSS: %w", err)
	}

	return rss, nil
}

func recordTitle(record *database.Record) string {
	if record.Title != "" {
		return record.Title
	}
	return "Untitled Article"
}
