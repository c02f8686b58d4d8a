package extract

import "regexp"

var monetaryPattern = regexp.MustCompile(`(?i)\$[\d,]+(?:\.\d+)?|\d+\s*(?:dollars?|USD)`)

// Enrichment holds the fields derived from a promo's text
type Enrichment struct {
	KeywordCount     int
	ContainsMonetary bool
}

// Enrich counts case-insensitive occurrences of phrase in title and
// description separately and flags monetary amounts.
func Enrich(phrase, title, description string) Enrichment {
	return Enrichment{
		KeywordCount:     countPhrase(phrase, title) + countPhrase(phrase, description),
		ContainsMonetary: monetaryPattern.MatchString(title + "|" + description),
	}
}

func countPhrase(phrase, text string) int {
	if phrase == "" || text == "" {
		return 0
	}
	re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(phrase))
	return len(re.FindAllStringIndex(text, -1))
}
