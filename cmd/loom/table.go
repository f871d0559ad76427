package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

const errorColumnWidth = 60

// column describes one table column. Width caps long free-text cells such as
// error messages; zero leaves the column unbounded.
type column struct {
	Title string
	Right bool
	Width int
}

func left(title string) column  { return column{Title: title} }
func right(title string) column { return column{Title: title, Right: true} }

func wrapped(title string, width int) column {
	return column{Title: title, Width: width}
}

// renderTable draws rows under columns. Short rows are padded; extra cells
// are dropped. A non-empty footer is rendered as a final summary row.
func renderTable(columns []column, rows [][]string, footer ...string) string {
	if len(columns) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(columns))
	configs := make([]table.ColumnConfig, len(columns))
	for i, c := range columns {
		header[i] = c.Title
		cfg := table.ColumnConfig{Number: i + 1, Align: text.AlignLeft, AlignHeader: text.AlignLeft}
		if c.Right {
			cfg.Align = text.AlignRight
			cfg.AlignFooter = text.AlignRight
		}
		if c.Width > 0 {
			cfg.WidthMax = c.Width
			cfg.WidthMaxEnforcer = text.WrapSoft
		}
		configs[i] = cfg
	}
	tw.AppendHeader(header)
	tw.SetColumnConfigs(configs)

	for _, row := range rows {
		tw.AppendRow(padRow(row, len(columns)))
	}
	if len(footer) > 0 {
		tw.AppendFooter(padRow(footer, len(columns)))
	}
	return tw.Render()
}

func padRow(cells []string, width int) table.Row {
	row := make(table.Row, width)
	for i := range row {
		if i < len(cells) {
			row[i] = cells[i]
		} else {
			row[i] = ""
		}
	}
	return row
}
