package extract

import (
	"fmt"
	"html"
	"iter"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// RawPromo is one promo card as found in the results markup
type RawPromo struct {
	ImageURL        string
	Title           string
	Description     string
	TimestampMillis int64
}

// PublishedAt converts the millisecond timestamp to local time
func (p RawPromo) PublishedAt() time.Time {
	return time.UnixMilli(p.TimestampMillis)
}

// ParseError reports a promo whose timestamp is not an integer
type ParseError struct {
	Title     string
	Timestamp string
	Err       error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse timestamp %q of promo %q: %v", e.Timestamp, e.Title, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// PromoParser extracts promo cards from a results container.
//
// The sequence is lazy and single use. A yielded error ends the sequence.
type PromoParser interface {
	Candidates(markup string) iter.Seq2[RawPromo, error]
}

// promoPattern matches one card: optional image, title anchor, description
// paragraph and the data-timestamp attribute, in that order.
var promoPattern = regexp.MustCompile(`(?s)` +
	`(?:<img.*?src="(.*?)".*?)?` +
	`class="promo-title">\s+<a.*?>(.*?)</a>.*?` +
	`class="promo-description".*?>(.*?)</p>.*?` +
	`class="promo-timestamp".*?data-timestamp="(.*?)"`)

// RegexParser reads promo cards with a fixed pattern tied to the site's
// current markup
type RegexParser struct{}

// NewRegexParser creates the default promo parser
func NewRegexParser() *RegexParser {
	return &RegexParser{}
}

// Candidates yields promo cards in document order
func (p *RegexParser) Candidates(markup string) iter.Seq2[RawPromo, error] {
	return func(yield func(RawPromo, error) bool) {
		offset := 0
		for offset < len(markup) {
			loc := promoPattern.FindStringSubmatchIndex(markup[offset:])
			if loc == nil {
				return
			}

			group := func(n int) string {
				start, end := loc[2*n], loc[2*n+1]
				if start < 0 {
					return ""
				}
				return markup[offset+start : offset+end]
			}

			promo, err := newRawPromo(group(1), group(2), group(3), group(4))
			if !yield(promo, err) || err != nil {
				return
			}

			// Guard against an empty match looping forever
			if loc[1] == 0 {
				offset++
			} else {
				offset += loc[1]
			}
		}
	}
}

func newRawPromo(imageURL, title, description, timestamp string) (RawPromo, error) {
	title = cleanText(title)
	ms, err := strconv.ParseInt(strings.TrimSpace(timestamp), 10, 64)
	if err != nil {
		return RawPromo{}, &ParseError{Title: title, Timestamp: timestamp, Err: err}
	}

	return RawPromo{
		ImageURL:        html.UnescapeString(strings.TrimSpace(imageURL)),
		Title:           title,
		Description:     cleanText(description),
		TimestampMillis: ms,
	}, nil
}

func cleanText(s string) string {
	return strings.TrimSpace(html.UnescapeString(s))
}
