// Package report renders the three result tables (grand totals, busiest
// paths, weakest links) as plain text, Markdown, CSV, HTML, or XLSX.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/idnahacks/GoodHound/internal/format"
	"github.com/idnahacks/GoodHound/internal/paths"
	"github.com/idnahacks/GoodHound/internal/results"
)

// Report is the full output of one run.
type Report struct {
	ScanDate string // YYYY-MM-DD, used in file names and headers
	Totals   results.GrandTotals
	Busiest  []results.Result
	Weakest  []paths.Link
}

type table struct {
	Title   string
	Slug    string // file name component: summary, busiestpaths, weakestlinks
	Headers []string
	Rows    [][]string
}

func (r *Report) tables() []table {
	totals := table{
		Title:   "GRAND TOTALS",
		Slug:    "summary",
		Headers: []string{"Total Non-Admins with a Path", "Percentage of Total Enabled Non-Admins", "Total Paths", "% of Paths Seen Before", "New Paths"},
		Rows: [][]string{{
			format.Int(r.Totals.UsersWithPath),
			format.Float(r.Totals.UserPercentage),
			format.Int(r.Totals.TotalPaths),
			format.Float(r.Totals.PctSeenBefore),
			format.Int(r.Totals.NewPaths),
		}},
	}

	busiest := table{
		Title:   "BUSIEST PATHS",
		Slug:    "busiestpaths",
		Headers: []string{"Starting Node", "Number of Enabled Non-Admins with Path", "Percent of Total Enabled Non-Admins with Path", "Number of Hops", "Exploit Cost", "Risk Score", "Path", "Bloodhound Query", "UID"},
	}
	for _, b := range r.Busiest {
		busiest.Rows = append(busiest.Rows, []string{
			b.StartNode,
			format.Int(b.NumMembers),
			format.Float(b.Percentage),
			format.Int(b.Hops),
			format.Int(b.Cost),
			format.Float(b.RiskScore),
			b.FullPath,
			b.Query,
			b.UID,
		})
	}

	weakest := table{
		Title:   "THE WEAKEST LINKS",
		Slug:    "weakestlinks",
		Headers: []string{"Weakest Link", "Number of Paths it appears in", "% of Total Paths", "Bloodhound Query"},
	}
	for _, l := range r.Weakest {
		weakest.Rows = append(weakest.Rows, []string{
			l.Chain,
			format.Int(l.Count),
			format.Float(l.Coverage),
			l.Query,
		})
	}

	return []table{totals, busiest, weakest}
}

// WriteStdout renders aligned plain-text tables.
func (r *Report) WriteStdout(w io.Writer) error {
	for _, t := range r.tables() {
		fmt.Fprintf(w, "\n%s\n%s\n", t.Title, strings.Repeat("=", len(t.Title)))
		widths := colWidths(t)
		writePadded(w, t.Headers, widths)
		for _, row := range t.Rows {
			writePadded(w, row, widths)
		}
	}
	return nil
}

// WriteMarkdown renders pipe tables with section headings.
func (r *Report) WriteMarkdown(w io.Writer) error {
	for i, t := range r.tables() {
		heading := "##"
		if i == 0 {
			heading = "#"
		}
		fmt.Fprintf(w, "%s %s\n\n", heading, t.Title)
		fmt.Fprintf(w, "| %s |\n", strings.Join(t.Headers, " | "))
		sep := make([]string, len(t.Headers))
		for j := range sep {
			sep[j] = "---"
		}
		fmt.Fprintf(w, "| %s |\n", strings.Join(sep, " | "))
		for _, row := range t.Rows {
			escaped := make([]string, len(row))
			for j, cell := range row {
				escaped[j] = strings.ReplaceAll(cell, "|", "\\|")
			}
			fmt.Fprintf(w, "| %s |\n", strings.Join(escaped, " | "))
		}
		fmt.Fprintln(w)
	}
	return nil
}

func colWidths(t table) []int {
	widths := make([]int, len(t.Headers))
	for i, h := range t.Headers {
		widths[i] = len(h)
	}
	for _, row := range t.Rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}
	return widths
}

func writePadded(w io.Writer, cells []string, widths []int) {
	padded := make([]string, len(cells))
	for i, cell := range cells {
		width := 0
		if i < len(widths) {
			width = widths[i]
		}
		padded[i] = cell + strings.Repeat(" ", max(0, width-len(cell)))
	}
	fmt.Fprintln(w, strings.TrimRight(strings.Join(padded, "  "), " "))
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
