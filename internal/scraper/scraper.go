// Package scraper drives one extraction job against the news site: search,
// filter, sort, paginate and bundle the results.
package scraper

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tkilaker/newsminer/internal/browser"
	"github.com/tkilaker/newsminer/internal/extract"
	"github.com/tkilaker/newsminer/internal/models"
	"github.com/tkilaker/newsminer/internal/output"
)

const (
	sortLabel       = "Newest"
	loadingTimeout  = 5 * time.Second
	nextPageTimeout = 10 * time.Second
	hideTimeout     = 10 * time.Second
	pageCountWait   = 5 * time.Second
)

var pageCountPattern = regexp.MustCompile(`of\s+([\d.,]+)`)

// Downloader fetches a remote file to a local path
type Downloader interface {
	Download(ctx context.Context, url, dest string) error
}

// Options controls a session
type Options struct {
	SiteURL        string
	CreateZip      bool
	ElementTimeout time.Duration
}

// Result is what a finished session produced
type Result struct {
	Records     []models.ArticleRecord
	Walk        extract.WalkResult
	LimitDate   time.Time
	TotalPages  int
	Stem        string
	Spreadsheet string
	Zip         string
}

// Session runs extraction jobs on a browser it does not own. Closing the
// browser between jobs is the caller's responsibility.
type Session struct {
	driver     browser.Driver
	parser     extract.PromoParser
	downloader Downloader
	bundler    *output.Bundler
	progress   *ProgressTracker
	locators   Locators
	opts       Options
	log        logrus.FieldLogger
	now        func() time.Time
}

// New creates a session. A nil progress tracker gets a private one.
func New(driver browser.Driver, parser extract.PromoParser, downloader Downloader, bundler *output.Bundler, progress *ProgressTracker, opts Options, log logrus.FieldLogger) *Session {
	if progress == nil {
		progress = NewProgressTracker()
	}
	if opts.ElementTimeout <= 0 {
		opts.ElementTimeout = 10 * time.Second
	}
	return &Session{
		driver:     driver,
		parser:     parser,
		downloader: downloader,
		bundler:    bundler,
		progress:   progress,
		locators:   DefaultLocators(),
		opts:       opts,
		log:        log,
		now:        time.Now,
	}
}

// Progress returns the tracker the session reports to
func (s *Session) Progress() *ProgressTracker {
	return s.progress
}

// Run executes a single job end to end
func (s *Session) Run(ctx context.Context, jobID string, job models.SearchJob) (result *Result, err error) {
	log := s.log.WithFields(logrus.Fields{
		"job_id":        jobID,
		"search_phrase": job.SearchPhrase,
	})

	s.progress.Start(jobID, job.SearchPhrase)
	defer func() {
		if err != nil {
			s.progress.UpdateStatus(StatusFailed, err.Error())
		}
	}()

	if err := job.Validate(); err != nil {
		return nil, err
	}

	s.progress.UpdateStatus(StatusSearching, "Opening website")
	if err := s.driver.Open(ctx, s.opts.SiteURL); err != nil {
		return nil, fmt.Errorf("failed to open website: %w", err)
	}

	if err := s.search(ctx, job.SearchPhrase); err != nil {
		return nil, err
	}

	s.progress.UpdateStatus(StatusFiltering, "Applying category and sort order")
	s.selectCategory(ctx, log, job.NewsCategory)

	if err := s.sortByNewest(ctx); err != nil {
		return nil, err
	}

	totalPages := s.totalPages(ctx, log)
	state := extract.NewState(job, s.now(), totalPages)
	stem := output.SanitizeName(job.SearchPhrase)

	log.WithFields(logrus.Fields{
		"limit_date":  state.LimitDate.Format(models.DateLayout),
		"total_pages": state.TotalPages,
	}).Info("Extracting search results")
	s.progress.UpdateStatus(StatusExtracting, "Extracting search results")
	s.progress.UpdatePages(1, state.TotalPages, 0)

	paginator := extract.NewPaginator(s.parser, &sitePager{session: s}, &imageStore{session: s, stem: stem, log: log}, log)
	paginator.OnPage(func(page, total, accepted int) {
		s.progress.UpdatePages(page, total, accepted)
	})

	walk, err := paginator.Walk(ctx, state)
	if err != nil {
		return nil, err
	}

	result = &Result{
		Records:    state.Records.Records(),
		Walk:       walk,
		LimitDate:  state.LimitDate,
		TotalPages: state.TotalPages,
		Stem:       stem,
	}

	s.progress.UpdateStatus(StatusWriting, "Writing results")
	result.Spreadsheet, err = s.bundler.WriteSpreadsheet(result.Records, stem)
	if err != nil {
		return nil, fmt.Errorf("failed to write spreadsheet: %w", err)
	}

	if s.opts.CreateZip {
		result.Zip, err = s.bundler.Bundle(result.Records, stem, result.Spreadsheet)
		if err != nil {
			return nil, err
		}
	}

	log.WithFields(logrus.Fields{
		"records":     len(result.Records),
		"pages":       walk.Pages,
		"stop_reason": walk.Reason.String(),
	}).Info("Extraction finished")
	s.progress.UpdateStatus(StatusCompleted, fmt.Sprintf("Extracted %d records", len(result.Records)))

	return result, nil
}

func (s *Session) search(ctx context.Context, phrase string) error {
	if err := s.driver.ClickWhenVisible(ctx, s.locators.SearchButton); err != nil {
		return fmt.Errorf("failed to open search: %w", err)
	}
	if err := s.driver.InputTextWhenVisible(ctx, s.locators.SearchInput, phrase); err != nil {
		return fmt.Errorf("failed to type search phrase: %w", err)
	}
	if err := s.driver.ClickWhenVisible(ctx, s.locators.SearchSubmit); err != nil {
		return fmt.Errorf("failed to submit search: %w", err)
	}
	return nil
}

// selectCategory applies the category filter when the site offers it.
// A missing category only narrows nothing, so it is logged and skipped.
func (s *Session) selectCategory(ctx context.Context, log logrus.FieldLogger, category string) {
	if category == "" {
		log.Warn("No news category given, searching all topics")
		return
	}

	s.driver.TryClick(ctx, s.locators.SeeAllTopics)
	if !s.driver.TryClick(ctx, CategoryCheckbox(category)) {
		log.WithField("news_category", category).Warn("Category not found, searching all topics")
		return
	}

	if err := s.driver.WaitUntilVisible(ctx, s.locators.FiltersSelected, s.opts.ElementTimeout); err != nil {
		log.WithError(err).Warn("Category filter did not confirm")
	}
	s.driver.WaitForLoading(ctx, s.locators.LoadingIcon, loadingTimeout)
}

func (s *Session) sortByNewest(ctx context.Context) error {
	if err := s.driver.SelectFromListByLabel(ctx, s.locators.SortSelect, sortLabel); err != nil {
		return fmt.Errorf("failed to sort results: %w", err)
	}
	s.driver.WaitForLoading(ctx, s.locators.LoadingIcon, loadingTimeout)
	return nil
}

// totalPages reads "x of N" from the results header, falling back to one
func (s *Session) totalPages(ctx context.Context, log logrus.FieldLogger) int {
	markup, err := s.driver.ReadInnerMarkup(ctx, s.locators.PageCounts, pageCountWait)
	if err != nil {
		log.WithError(err).Debug("Page count not found")
		return 1
	}
	return ParsePageCount(markup)
}

// ParsePageCount extracts N from text shaped like "1 of 1,234". Commas and
// dots are read as thousands separators. Anything unreadable is one.
func ParsePageCount(text string) int {
	m := pageCountPattern.FindStringSubmatch(text)
	if m == nil {
		return 1
	}
	digits := strings.NewReplacer(",", "", ".", "").Replace(m[1])
	n, err := strconv.Atoi(digits)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// sitePager reads and advances the search results through the driver
type sitePager struct {
	session *Session
}

func (p *sitePager) ResultsMarkup(ctx context.Context) (string, error) {
	s := p.session
	markup, err := s.driver.ReadInnerMarkup(ctx, s.locators.Results, s.opts.ElementTimeout)
	if err != nil {
		return "", fmt.Errorf("failed to read search results: %w", err)
	}
	return markup, nil
}

func (p *sitePager) NextPage(ctx context.Context) (bool, error) {
	s := p.session
	loc := s.locators.NextPage

	if !s.driver.ElementExists(ctx, loc, nextPageTimeout) {
		return false, nil
	}

	inactive, err := s.driver.HasAttribute(ctx, loc, "data-inactive")
	if err != nil {
		return false, fmt.Errorf("failed to inspect next page control: %w", err)
	}
	if inactive {
		return false, nil
	}

	if err := s.driver.ScrollIntoView(ctx, loc); err != nil {
		return false, fmt.Errorf("failed to scroll to next page control: %w", err)
	}
	// The metering panel covers the control on some visits
	s.driver.TryHide(ctx, s.locators.MeteringPanel, hideTimeout)

	if err := s.driver.ClickWhenVisible(ctx, loc); err != nil {
		return false, fmt.Errorf("failed to go to next page: %w", err)
	}
	s.driver.WaitForLoading(ctx, s.locators.LoadingIcon, loadingTimeout)
	return true, nil
}

// imageStore downloads promo images into the temp directory
type imageStore struct {
	session *Session
	stem    string
	log     logrus.FieldLogger
}

func (i *imageStore) FetchImage(ctx context.Context, url string, index int) string {
	name := fmt.Sprintf("%s_%d.jpeg", i.stem, index)
	dest := i.session.bundler.ImagePath(name)

	if err := i.session.downloader.Download(ctx, url, dest); err != nil {
		i.log.WithError(err).WithField("url", url).Warn("Image download failed")
		return models.NoImage
	}
	return name
}
