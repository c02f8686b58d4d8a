// Package extract implements the pagination-and-extraction engine: it walks
// search result pages, parses promo cards, filters them by recency and
// accumulates unique article records.
package extract

import "time"

// LimitDate returns the oldest publication time still inside a window of
// months. One month means the current month only, two means this month and
// the previous one, and zero behaves like one.
func LimitDate(now time.Time, months int) time.Time {
	if months > 0 {
		months--
	}
	// time.Date normalises negative months across year boundaries
	return time.Date(now.Year(), now.Month()-time.Month(months), 1, 0, 0, 0, 0, now.Location())
}
