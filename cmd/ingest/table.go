package main

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/mgouveia/pantry-ledger/internal/ledger"
	"github.com/mgouveia/pantry-ledger/internal/pipeline"
)

// renderBatch formats the review batch for the terminal. Rejected rows
// show the rejection reason instead of ledger cells.
func renderBatch(batch *pipeline.Batch) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := table.Row{"#"}
	for _, col := range ledger.Columns {
		header = append(header, col)
	}
	header = append(header, "status", "notes")
	tw.AppendHeader(header)

	for i, row := range batch.Rows {
		cells := table.Row{i + 1}
		if row.Item != nil {
			for _, cell := range ledger.Row(*row.Item) {
				cells = append(cells, cell)
			}
		} else {
			for j := 0; j < len(ledger.Columns); j++ {
				cells = append(cells, "")
			}
		}
		cells = append(cells, string(row.Status), rowNotes(row))
		tw.AppendRow(cells)
	}

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
	})

	return tw.Render()
}

func rowNotes(row pipeline.ReviewRow) string {
	if row.Status == pipeline.RowRejected {
		return fmt.Sprintf("%s (%v)", row.Reason, row.Record)
	}
	notes := make([]string, 0, len(row.Warnings))
	for _, w := range row.Warnings {
		notes = append(notes, w.Message)
	}
	return strings.Join(notes, "; ")
}
