// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package render

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/pdiddy/plutus/pkg/types"
)

const (
	unknownFunder = "Unknown Funder"
	titleWidth    = 60
)

// FunderSummary aggregates the grants of one funder across all papers.
type FunderSummary struct {
	Name      string `json:"name" yaml:"name"`
	Grants    int    `json:"grants" yaml:"grants"`
	Citations int    `json:"citations" yaml:"citations"`
	Papers    int    `json:"papers" yaml:"papers"`
}

// FunderRollup groups res.FundersData by funder. Every grant counts once
// and adds its paper's citations to the funder's total. Funders are
// ordered by total citations, then name.
func FunderRollup(res types.Result) []FunderSummary {
	byName := make(map[string]*FunderSummary)
	seen := make(map[string]map[int]bool)
	for i, rec := range res.FundersData {
		for _, g := range rec.Grants {
			name := strings.TrimSpace(g.FunderDisplayName)
			if name == "" {
				name = unknownFunder
			}
			fs, ok := byName[name]
			if !ok {
				fs = &FunderSummary{Name: name}
				byName[name] = fs
				seen[name] = make(map[int]bool)
			}
			fs.Grants++
			fs.Citations += rec.CitedByCount
			if !seen[name][i] {
				seen[name][i] = true
				fs.Papers++
			}
		}
	}

	out := make([]FunderSummary, 0, len(byName))
	for _, fs := range byName {
		out = append(out, *fs)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Citations != out[j].Citations {
			return out[i].Citations > out[j].Citations
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Report writes res as sections: search terms, the Markdown summary as
// delivered, a papers table and a funder rollup.
func Report(w io.Writer, res types.Result, opts Options) error {
	st := newStyles(opts.Color)
	var b strings.Builder

	section := func(title string) {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(st.paint(st.header, title))
		b.WriteByte('\n')
		b.WriteString(st.paint(st.rule, strings.Repeat("-", len(title))))
		b.WriteByte('\n')
	}

	section("Search Terms Used")
	if len(res.SearchTerms) == 0 {
		b.WriteString("(none)\n")
	} else {
		b.WriteString(strings.Join(res.SearchTerms, ", "))
		b.WriteByte('\n')
	}

	section("Funding Summary")
	b.WriteString(strings.TrimRight(res.Summary, "\n"))
	b.WriteByte('\n')

	section("Detailed Results")
	if len(res.FundersData) == 0 {
		b.WriteString("No funded papers found.\n")
	} else {
		b.WriteString(papersTable(res.FundersData))
		b.WriteByte('\n')

		section("Funders")
		b.WriteString(rollupTable(FunderRollup(res)))
		b.WriteByte('\n')
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func papersTable(records []types.FunderRecord) string {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		year := ""
		if r.PublicationYear > 0 {
			year = strconv.Itoa(r.PublicationYear)
		}
		rows = append(rows, []string{r.Title, year, strconv.Itoa(r.CitedByCount), grantList(r.Grants)})
	}
	return renderTable(
		[]string{"Title", "Year", "Citations", "Grants"},
		rows,
		[]text.Align{text.AlignLeft, text.AlignRight, text.AlignRight, text.AlignLeft},
		map[int]int{1: titleWidth, 4: titleWidth},
	)
}

func rollupTable(funders []FunderSummary) string {
	rows := make([][]string, 0, len(funders))
	for _, f := range funders {
		rows = append(rows, []string{f.Name, strconv.Itoa(f.Grants), strconv.Itoa(f.Papers), strconv.Itoa(f.Citations)})
	}
	return renderTable(
		[]string{"Funder", "Grants", "Papers", "Citations"},
		rows,
		[]text.Align{text.AlignLeft, text.AlignRight, text.AlignRight, text.AlignRight},
		nil,
	)
}

func grantList(grants []types.Grant) string {
	parts := make([]string, 0, len(grants))
	for _, g := range grants {
		name := g.FunderDisplayName
		if name == "" {
			name = unknownFunder
		}
		if g.AwardID != nil && *g.AwardID != "" {
			name = fmt.Sprintf("%s (Grant ID: %s)", name, *g.AwardID)
		}
		parts = append(parts, name)
	}
	return strings.Join(parts, "; ")
}

// renderTable draws a rounded table. widthMax maps 1-based column numbers
// to a wrap width.
func renderTable(headers []string, rows [][]string, aligns []text.Align, widthMax map[int]int) string {
	columns := len(headers)
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) {
			align = aligns[i]
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
			WidthMax:    widthMax[i+1],
		})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}
