package extract

import (
	"fmt"
	"strings"
	"time"
)

type promoFixture struct {
	image       string
	title       string
	description string
	published   time.Time
	timestamp   string
}

// promoHTML renders cards in the shape the results container uses
func promoHTML(promos ...promoFixture) string {
	var b strings.Builder
	b.WriteString("<li>\n")
	for _, p := range promos {
		b.WriteString(`<ps-promo class="promo promo-position-large">` + "\n")
		if p.image != "" {
			fmt.Fprintf(&b, `  <div class="promo-media"><picture><img class="image" src="%s" alt=""></picture></div>`+"\n", p.image)
		}
		ts := p.timestamp
		if ts == "" {
			ts = fmt.Sprint(p.published.UnixMilli())
		}
		fmt.Fprintf(&b, `  <h3 class="promo-title">
    <a class="link" href="https://example.com/a">%s</a>
  </h3>
  <p class="promo-description" data-fields="x">%s</p>
  <p class="promo-timestamp" data-date="x" data-timestamp="%s">Mar 10, 2024</p>
`, p.title, p.description, ts)
		b.WriteString("</ps-promo>\n")
	}
	b.WriteString("</li>\n")
	return b.String()
}

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 12, 0, 0, 0, time.Local)
}
