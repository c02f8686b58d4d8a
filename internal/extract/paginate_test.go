package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkilaker/newsminer/internal/models"
)

type fakePager struct {
	pages    []string
	current  int
	disabled bool
	nextErr  error
	reads    int
	advances int
}

func (f *fakePager) ResultsMarkup(ctx context.Context) (string, error) {
	f.reads++
	if f.current >= len(f.pages) {
		return "", nil
	}
	return f.pages[f.current], nil
}

func (f *fakePager) NextPage(ctx context.Context) (bool, error) {
	if f.nextErr != nil {
		return false, f.nextErr
	}
	if f.disabled || f.current+1 >= len(f.pages) {
		return false, nil
	}
	f.advances++
	f.current++
	return true, nil
}

type fakeImages struct {
	calls []string
}

func (f *fakeImages) FetchImage(ctx context.Context, url string, index int) string {
	f.calls = append(f.calls, url)
	return fmt.Sprintf("phrase_%d.jpeg", index)
}

func quietLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newState(limit time.Time, totalPages int) *State {
	return &State{
		Phrase:     "news",
		LimitDate:  limit,
		TotalPages: totalPages,
		Records:    NewAccumulator(limit),
	}
}

func TestWalk_DateLimitStopsRestOfPage(t *testing.T) {
	pager := &fakePager{pages: []string{
		promoHTML(
			promoFixture{title: "Mar 10", description: "news", published: day(2024, 3, 10)},
			promoFixture{title: "Mar 5", description: "more", published: day(2024, 3, 5)},
			promoFixture{title: "Feb 20", description: "old", published: day(2024, 2, 20)},
			promoFixture{image: "https://img/after.jpg", title: "After", description: "never", published: day(2024, 3, 20)},
		),
		promoHTML(promoFixture{title: "Page 2", description: "unseen", published: day(2024, 3, 9)}),
	}}
	images := &fakeImages{}
	state := newState(time.Date(2024, 3, 1, 0, 0, 0, 0, time.Local), 5)

	result, err := NewPaginator(NewRegexParser(), pager, images, quietLogger()).Walk(context.Background(), state)
	require.NoError(t, err)

	assert.Equal(t, StopDateLimit, result.Reason)
	assert.Equal(t, 1, result.Pages)
	assert.Equal(t, 2, result.Accepted)
	assert.Zero(t, pager.advances, "walk must not advance after the date limit")
	assert.Empty(t, images.calls, "promos after the limit are not processed")

	records := state.Records.Records()
	require.Len(t, records, 2)
	assert.Equal(t, "Mar 10", records[0].Title)
	assert.Equal(t, "Mar 5", records[1].Title)
	assert.Equal(t, 1, records[0].KeywordCount)
	assert.Equal(t, models.NoImage, records[0].ImageFile)
}

func TestWalk_StopsAfterTotalPages(t *testing.T) {
	var pages []string
	for i := 0; i < 5; i++ {
		pages = append(pages, promoHTML(promoFixture{
			image:       fmt.Sprintf("https://img/%d.jpg", i),
			title:       fmt.Sprintf("Title %d", i),
			description: "desc",
			published:   day(2024, 3, 20),
		}))
	}
	pager := &fakePager{pages: pages}
	images := &fakeImages{}
	state := newState(time.Date(2024, 3, 1, 0, 0, 0, 0, time.Local), 3)

	var hooked []int
	paginator := NewPaginator(NewRegexParser(), pager, images, quietLogger())
	paginator.OnPage(func(page, total, accepted int) {
		hooked = append(hooked, page)
		assert.Equal(t, 3, total)
		assert.Equal(t, page, accepted)
	})

	result, err := paginator.Walk(context.Background(), state)
	require.NoError(t, err)

	assert.Equal(t, StopPagesExhausted, result.Reason)
	assert.Equal(t, 3, result.Pages)
	assert.Equal(t, 3, pager.reads)
	assert.Equal(t, 2, pager.advances, "no navigation after the last configured page")
	assert.Equal(t, []int{1, 2, 3}, hooked)

	records := state.Records.Records()
	require.Len(t, records, 3)
	assert.Equal(t, "phrase_0.jpeg", records[0].ImageFile)
	assert.Equal(t, "phrase_2.jpeg", records[2].ImageFile)
}

func TestWalk_NoNextPage(t *testing.T) {
	pager := &fakePager{
		pages:    []string{promoHTML(promoFixture{title: "Only", description: "one", published: day(2024, 3, 20)})},
		disabled: true,
	}
	state := newState(time.Date(2024, 3, 1, 0, 0, 0, 0, time.Local), 10)

	result, err := NewPaginator(NewRegexParser(), pager, nil, quietLogger()).Walk(context.Background(), state)
	require.NoError(t, err)

	assert.Equal(t, StopNoNextPage, result.Reason)
	assert.Equal(t, 1, result.Pages)
	assert.Equal(t, 1, state.Records.Len())
}

func TestWalk_SinglePageStillExtracts(t *testing.T) {
	pager := &fakePager{pages: []string{promoHTML(promoFixture{title: "Only", description: "one", published: day(2024, 3, 20)})}}
	state := NewState(models.SearchJob{SearchPhrase: "only", NumberOfMonths: 1}, day(2024, 3, 25), 0)

	assert.Equal(t, 1, state.TotalPages)

	result, err := NewPaginator(NewRegexParser(), pager, nil, quietLogger()).Walk(context.Background(), state)
	require.NoError(t, err)
	assert.Equal(t, StopPagesExhausted, result.Reason)
	assert.Equal(t, 1, pager.reads)
	assert.Equal(t, 1, state.Records.Records()[0].KeywordCount)
}

func TestWalk_RepeatedPromoDoesNotEndWalk(t *testing.T) {
	seen := promoFixture{title: "Seen", description: "before", published: day(2024, 3, 2)}
	pager := &fakePager{pages: []string{
		promoHTML(seen),
		// The refreshed page re-renders an old card at the top with a stale time
		promoHTML(
			promoFixture{title: "Seen", description: "before", published: day(2023, 12, 1)},
			promoFixture{title: "Fresh", description: "new", published: day(2024, 3, 1)},
		),
	}}
	state := newState(time.Date(2024, 3, 1, 0, 0, 0, 0, time.Local), 2)

	result, err := NewPaginator(NewRegexParser(), pager, nil, quietLogger()).Walk(context.Background(), state)
	require.NoError(t, err)

	assert.Equal(t, StopPagesExhausted, result.Reason)
	assert.Equal(t, 1, result.Duplicates)
	assert.Equal(t, 2, state.Records.Len())
}

func TestWalk_ParseErrorIsEscalated(t *testing.T) {
	pager := &fakePager{pages: []string{promoHTML(promoFixture{title: "Bad", description: "ts", timestamp: "NaN"})}}
	state := newState(time.Date(2024, 3, 1, 0, 0, 0, 0, time.Local), 1)

	_, err := NewPaginator(NewRegexParser(), pager, nil, quietLogger()).Walk(context.Background(), state)

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
}

func TestWalk_NavigationErrorIsEscalated(t *testing.T) {
	boom := errors.New("click failed")
	pager := &fakePager{
		pages:   []string{promoHTML(promoFixture{title: "A", description: "a", published: day(2024, 3, 20)}), ""},
		nextErr: boom,
	}
	state := newState(time.Date(2024, 3, 1, 0, 0, 0, 0, time.Local), 2)

	_, err := NewPaginator(NewRegexParser(), pager, nil, quietLogger()).Walk(context.Background(), state)
	assert.ErrorIs(t, err, boom)
}
