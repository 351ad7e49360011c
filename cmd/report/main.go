package main

import (
	"context"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/mgouveia/pantry-ledger/internal/config"
	"github.com/mgouveia/pantry-ledger/internal/ledger"
	"github.com/mgouveia/pantry-ledger/internal/logger"
	"github.com/mgouveia/pantry-ledger/internal/report"
)

func main() {
	history := flag.Bool("history", false, "List every ledger row instead of only the summary")
	flag.Parse()

	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if cfg.Sheets.SpreadsheetID == "" {
		log.Fatal().Msg("SHEET_ID is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
	defer cancel()

	sheet := ledger.NewSheetsLedger(cfg.Sheets.SpreadsheetID, cfg.Sheets.SheetName)
	values, err := sheet.ReadAll(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read ledger")
	}

	rows := report.RowsFromSheet(values)
	summary := report.Summarize(rows)

	if summary.Condition == report.ConditionEmpty {
		fmt.Println("The ledger is empty.")
		return
	}

	if *history {
		fmt.Println(renderHistory(rows))
		fmt.Println()
	}

	fmt.Println(renderSummary(summary))
	if len(summary.MissingColumns) > 0 {
		fmt.Printf("Missing columns: %s\n", strings.Join(summary.MissingColumns, ", "))
	}
}

func renderSummary(summary report.Summary) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"category", "total"})

	for _, c := range summary.Categories {
		tw.AppendRow(table.Row{c.Category, c.Total.StringFixed(2)})
	}
	tw.AppendFooter(table.Row{
		fmt.Sprintf("total (%d rows)", summary.RowCount),
		summary.TotalSpend.StringFixed(2),
	})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight, AlignFooter: text.AlignRight},
	})

	return tw.Render()
}

func renderHistory(rows []report.Row) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := table.Row{}
	for _, col := range ledger.Columns {
		header = append(header, col)
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		cells := table.Row{}
		for _, col := range ledger.Columns {
			cells = append(cells, row[col])
		}
		tw.AppendRow(cells)
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
	})

	return tw.Render()
}
