package server

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"

	"github.com/tkilaker/newsminer/internal/database"
	"github.com/tkilaker/newsminer/internal/scraper"
)

const pageHead = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>newsminer runs</title>
</head>
<body>
`

// RunListPage renders the run history with the live progress of the
// current job
func RunListPage(runs []*database.Run, progress scraper.ProgressUpdate) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, pageHead); err != nil {
			return err
		}

		if err := progressBanner(progress).Render(ctx, w); err != nil {
			return err
		}

		if len(runs) == 0 {
			_, err := io.WriteString(w, "<p>No runs yet.</p>\n</body>\n</html>\n")
			return err
		}

		if _, err := io.WriteString(w, "<table>\n<tr><th>Started</th><th>Search phrase</th><th>Category</th><th>Months</th><th>Status</th><th>Records</th><th>Failure</th></tr>\n"); err != nil {
			return err
		}
		for _, run := range runs {
			if err := runRow(run).Render(ctx, w); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, "</table>\n</body>\n</html>\n")
		return err
	})
}

func progressBanner(p scraper.ProgressUpdate) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if p.Status == scraper.StatusIdle {
			_, err := io.WriteString(w, `<p id="progress">Idle</p>`+"\n")
			return err
		}
		_, err := fmt.Fprintf(w, `<p id="progress">%s: %s (page %d of %d, %d records)</p>`+"\n",
			templ.EscapeString(p.SearchPhrase),
			templ.EscapeString(string(p.Status)),
			p.CurrentPage,
			p.TotalPages,
			p.RecordsAdded,
		)
		return err
	})
}

func runRow(run *database.Run) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		failure := run.FailureKind
		if run.FailureMessage != "" {
			failure += ": " + run.FailureMessage
		}
		_, err := fmt.Fprintf(w, `<tr><td>%s</td><td><a href="/runs/%s">%s</a></td><td>%s</td><td>%d</td><td>%s</td><td>%d</td><td>%s</td></tr>`+"\n",
			run.StartedAt.Format("2006-01-02 15:04"),
			templ.EscapeString(run.ID),
			templ.EscapeString(run.Job.SearchPhrase),
			templ.EscapeString(run.Job.NewsCategory),
			run.Job.NumberOfMonths,
			templ.EscapeString(string(run.Status)),
			run.RecordCount,
			templ.EscapeString(failure),
		)
		return err
	})
}
