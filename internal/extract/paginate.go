package extract

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tkilaker/newsminer/internal/models"
)

// Pager gives the paginator access to the current results page
type Pager interface {
	// ResultsMarkup returns the inner markup of the results container
	ResultsMarkup(ctx context.Context) (string, error)
	// NextPage navigates forward. It returns false when the control is
	// missing or disabled.
	NextPage(ctx context.Context) (bool, error)
}

// ImageFetcher stores a promo image and returns the file name to record, or
// models.NoImage when it could not be stored
type ImageFetcher interface {
	FetchImage(ctx context.Context, url string, index int) string
}

// StopReason explains why a walk ended
type StopReason int

const (
	// StopPagesExhausted means every configured page was processed
	StopPagesExhausted StopReason = iota
	// StopDateLimit means a promo older than the limit date was reached
	StopDateLimit
	// StopNoNextPage means the next page control was absent or disabled
	StopNoNextPage
)

func (r StopReason) String() string {
	switch r {
	case StopPagesExhausted:
		return "pages_exhausted"
	case StopDateLimit:
		return "date_limit"
	case StopNoNextPage:
		return "no_next_page"
	}
	return "unknown"
}

// State is the per-job extraction state. It is owned by a single session.
type State struct {
	Phrase      string
	LimitDate   time.Time
	TotalPages  int
	CurrentPage int
	Records     *Accumulator
}

// NewState creates fresh state for a job. A page count below one is read
// as one so the first page is always extracted.
func NewState(job models.SearchJob, now time.Time, totalPages int) *State {
	if totalPages < 1 {
		totalPages = 1
	}
	limit := LimitDate(now, job.NumberOfMonths)
	return &State{
		Phrase:     job.SearchPhrase,
		LimitDate:  limit,
		TotalPages: totalPages,
		Records:    NewAccumulator(limit),
	}
}

// WalkResult summarises a finished walk
type WalkResult struct {
	Reason     StopReason
	Pages      int
	Accepted   int
	Duplicates int
}

// PageHook is notified after each processed page
type PageHook func(page, totalPages, accepted int)

// Paginator drives the page by page extraction loop
type Paginator struct {
	parser PromoParser
	pager  Pager
	images ImageFetcher
	log    logrus.FieldLogger
	onPage PageHook
}

// NewPaginator wires a paginator to its collaborators
func NewPaginator(parser PromoParser, pager Pager, images ImageFetcher, log logrus.FieldLogger) *Paginator {
	return &Paginator{
		parser: parser,
		pager:  pager,
		images: images,
		log:    log,
	}
}

// OnPage registers a hook called after every processed page
func (p *Paginator) OnPage(hook PageHook) {
	p.onPage = hook
}

// Walk processes pages until the date limit, a missing next page control or
// the configured page count ends it
func (p *Paginator) Walk(ctx context.Context, state *State) (WalkResult, error) {
	var result WalkResult

	for state.CurrentPage = 1; state.CurrentPage <= state.TotalPages; state.CurrentPage++ {
		p.log.WithField("page", state.CurrentPage).Infof("Current page: %d of %d", state.CurrentPage, state.TotalPages)

		// Fetching
		markup, err := p.pager.ResultsMarkup(ctx)
		if err != nil {
			return result, fmt.Errorf("failed to read results of page %d: %w", state.CurrentPage, err)
		}

		// Extracting
		limitReached, err := p.extractPage(ctx, state, markup, &result)
		result.Pages = state.CurrentPage
		if err != nil {
			return result, err
		}
		if p.onPage != nil {
			p.onPage(state.CurrentPage, state.TotalPages, state.Records.Len())
		}

		// Deciding continuation
		if limitReached {
			p.log.Info("Date limit of interest reached, ending extraction")
			result.Reason = StopDateLimit
			return result, nil
		}
		if state.CurrentPage == state.TotalPages {
			break
		}

		// Advancing
		advanced, err := p.pager.NextPage(ctx)
		if err != nil {
			return result, fmt.Errorf("failed to advance from page %d: %w", state.CurrentPage, err)
		}
		if !advanced {
			p.log.Info("Next page button is unavailable, ending extraction")
			result.Reason = StopNoNextPage
			return result, nil
		}
	}

	result.Reason = StopPagesExhausted
	return result, nil
}

// extractPage offers every promo on the page to the accumulator. It reports
// true once a promo falls outside the date window; later promos on the page
// are not looked at.
func (p *Paginator) extractPage(ctx context.Context, state *State, markup string, result *WalkResult) (bool, error) {
	for promo, err := range p.parser.Candidates(markup) {
		if err != nil {
			return false, fmt.Errorf("failed to extract promos on page %d: %w", state.CurrentPage, err)
		}

		publishedAt := promo.PublishedAt()
		switch state.Records.Check(promo.Title, promo.Description, publishedAt) {
		case DuplicateSkipped:
			result.Duplicates++
			p.log.WithField("title", promo.Title).Debug("Skipping duplicate promo")
			continue
		case DateLimitReached:
			return true, nil
		}

		enrichment := Enrich(state.Phrase, promo.Title, promo.Description)
		record := models.ArticleRecord{
			Title:            promo.Title,
			Description:      promo.Description,
			PublishedAt:      publishedAt,
			ImageFile:        models.NoImage,
			KeywordCount:     enrichment.KeywordCount,
			ContainsMonetary: enrichment.ContainsMonetary,
		}
		if promo.ImageURL != "" && p.images != nil {
			record.ImageFile = p.images.FetchImage(ctx, promo.ImageURL, state.Records.Len())
		}

		state.Records.Add(record)
		result.Accepted++
	}

	return false, nil
}
