package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// col describes one output column. Numeric columns right-align so IDs and
// byte counts line up.
type col struct {
	title   string
	numeric bool
}

// renderList renders rows under lowercased headers with a trailing entry
// count, the shape shared by the catalog, job, and backend listings.
func renderList(cols []col, rows [][]string) string {
	if len(cols) == 0 {
		return ""
	}

	tw := table.NewWriter()
	style := table.StyleLight
	style.Format.Header = text.FormatLower
	tw.SetStyle(style)

	header := make(table.Row, len(cols))
	configs := make([]table.ColumnConfig, 0, len(cols))
	for i, c := range cols {
		header[i] = c.title
		align := text.AlignLeft
		if c.numeric {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.AppendHeader(header)
	tw.SetColumnConfigs(configs)

	for _, row := range rows {
		r := make(table.Row, len(cols))
		for i := range cols {
			r[i] = ""
			if i < len(row) {
				r[i] = row[i]
			}
		}
		tw.AppendRow(r)
	}

	if len(rows) == 1 {
		tw.SetCaption("1 entry")
	} else {
		tw.SetCaption("%d entries", len(rows))
	}
	return tw.Render()
}
