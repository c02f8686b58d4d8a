// Package models defines the job input and the article records produced by
// an extraction run.
package models

import (
	"errors"
	"strings"
	"time"
)

// NoImage marks a record whose picture is absent or could not be downloaded
const NoImage = "-"

// DateLayout is how record dates are rendered
const DateLayout = "2006-01-02"

// Job validation errors.
var (
	ErrEmptySearchPhrase = errors.New("search_phrase is required")
	ErrNegativeMonths    = errors.New("number_of_months must be non-negative")
)

// SearchJob is the payload of one queued work item
type SearchJob struct {
	SearchPhrase   string `json:"search_phrase" yaml:"search_phrase"`
	NewsCategory   string `json:"news_category" yaml:"news_category"`
	NumberOfMonths int    `json:"number_of_months" yaml:"number_of_months"`
}

// Validate checks the job invariants
func (j SearchJob) Validate() error {
	if strings.TrimSpace(j.SearchPhrase) == "" {
		return ErrEmptySearchPhrase
	}
	if j.NumberOfMonths < 0 {
		return ErrNegativeMonths
	}
	return nil
}

// ArticleRecord is one accepted search result
type ArticleRecord struct {
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	PublishedAt      time.Time `json:"published_at"`
	ImageFile        string    `json:"picture_file"`
	KeywordCount     int       `json:"counter"`
	ContainsMonetary bool      `json:"contains_monetary"`
}

// HasImage reports whether the record references a downloaded picture
func (r ArticleRecord) HasImage() bool {
	return r.ImageFile != "" && r.ImageFile != NoImage
}

// Date renders the published date the way the spreadsheet shows it
func (r ArticleRecord) Date() string {
	return r.PublishedAt.Format(DateLayout)
}
