package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnrich(t *testing.T) {
	tests := []struct {
		name        string
		phrase      string
		title       string
		description string
		want        Enrichment
	}{
		{"case insensitive", "bitcoin", "Bitcoin surges", "bitcoin up 10%", Enrichment{KeywordCount: 2}},
		{"grouped dollars", "x", "Price hits $1,200.50", "", Enrichment{ContainsMonetary: true}},
		{"plain dollar sign", "fed", "Fed holds", "Banks lend $500", Enrichment{KeywordCount: 1, ContainsMonetary: true}},
		{"dollars word", "tax", "Tax bill", "Costs 40 dollars a month", Enrichment{KeywordCount: 1, ContainsMonetary: true}},
		{"usd suffix", "oil", "Oil at 80 usd", "", Enrichment{KeywordCount: 1, ContainsMonetary: true}},
		{"no amount", "musk", "Elon Musk speaks", "Musk and musk", Enrichment{KeywordCount: 3}},
		{"phrase is literal", "a.b", "axb a.b", "", Enrichment{KeywordCount: 1}},
		{"no match across boundary", "ab", "xa", "bx", Enrichment{}},
		{"empty phrase", "", "Anything", "at all", Enrichment{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Enrich(tt.phrase, tt.title, tt.description))
		})
	}
}
