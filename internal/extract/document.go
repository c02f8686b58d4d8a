package extract

import (
	"fmt"
	"iter"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DocumentParser reads promo cards by walking the parsed document instead of
// pattern matching the raw markup
type DocumentParser struct{}

// NewDocumentParser creates a structural promo parser
func NewDocumentParser() *DocumentParser {
	return &DocumentParser{}
}

// Candidates yields promo cards in document order
func (p *DocumentParser) Candidates(markup string) iter.Seq2[RawPromo, error] {
	return func(yield func(RawPromo, error) bool) {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
		if err != nil {
			yield(RawPromo{}, fmt.Errorf("failed to parse results markup: %w", err))
			return
		}

		blocks := doc.Find(".promo")
		if blocks.Length() == 0 {
			blocks = doc.Find("li")
		}

		for _, block := range blocks.EachIter() {
			title := block.Find(".promo-title a").First()
			stamp := block.Find(".promo-timestamp[data-timestamp]").First()
			if title.Length() == 0 || stamp.Length() == 0 {
				continue
			}

			imageURL, _ := block.Find("img[src]").First().Attr("src")
			timestamp, _ := stamp.Attr("data-timestamp")
			description := block.Find(".promo-description").First().Text()

			promo, err := newRawPromo(imageURL, title.Text(), description, timestamp)
			if !yield(promo, err) || err != nil {
				return
			}
		}
	}
}
