package scraper

import (
	"strings"

	"github.com/tkilaker/newsminer/internal/browser"
)

// Locators are the search page elements the session interacts with
type Locators struct {
	SearchButton    browser.Locator
	SearchInput     browser.Locator
	SearchSubmit    browser.Locator
	SeeAllTopics    browser.Locator
	FiltersSelected browser.Locator
	LoadingIcon     browser.Locator
	SortSelect      browser.Locator
	PageCounts      browser.Locator
	Results         browser.Locator
	NextPage        browser.Locator
	MeteringPanel   browser.Locator
}

// DefaultLocators matches the current search results markup
func DefaultLocators() Locators {
	return Locators{
		SearchButton:    browser.CSS(`button[data-element='search-button']`),
		SearchInput:     browser.CSS(`input[data-element='search-form-input']`),
		SearchSubmit:    browser.CSS(`button[data-element='search-submit-button']`),
		SeeAllTopics:    browser.CSS(`span[class='see-all-text']`),
		FiltersSelected: browser.CSS(`div[class="search-results-module-filters-selected"][data-showing="true"]`),
		LoadingIcon:     browser.CSS(`div[class="loading-icon"]`),
		SortSelect:      browser.CSS(`select[class='select-input']`),
		PageCounts:      browser.CSS(`div[class="search-results-module-page-counts"]`),
		Results:         browser.CSS(`ul[class='search-results-module-results-menu']`),
		NextPage:        browser.CSS(`div[class='search-results-module-next-page']`),
		MeteringPanel:   browser.CSS(`modality-custom-element[name='metering-bottompanel']`),
	}
}

// CategoryCheckbox locates the filter label of a category by its visible name
func CategoryCheckbox(category string) browser.Locator {
	return browser.XPath("//span[text()=" + xpathLiteral(category) + "]/ancestor::label[input]")
}

// xpathLiteral quotes s for use inside an XPath expression
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}

	parts := strings.Split(s, "'")
	quoted := make([]string, 0, len(parts)*2)
	for i, p := range parts {
		if i > 0 {
			quoted = append(quoted, `"'"`)
		}
		quoted = append(quoted, "'"+p+"'")
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}
