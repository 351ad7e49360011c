package report

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Row is one persisted ledger record keyed by its raw header names.
type Row map[string]string

// Condition describes what the aggregator could compute.
type Condition string

const (
	// ConditionOK means totals and groupings were computed normally.
	ConditionOK Condition = "ok"
	// ConditionEmpty means the ledger holds no data rows.
	ConditionEmpty Condition = "empty"
	// ConditionMissingColumn means an expected column is absent from the
	// ledger header entirely. That is a schema mismatch needing operator
	// attention, not a per-row data problem.
	ConditionMissingColumn Condition = "missing_column"
)

// CategorySpend is one category's summed spend.
type CategorySpend struct {
	Category string
	Total    decimal.Decimal
}

// Summary is the aggregate view over the ledger.
type Summary struct {
	Condition      Condition
	MissingColumns []string
	RowCount       int
	TotalSpend     decimal.Decimal
	// Categories is ordered descending by summed spend, ties broken by
	// category name, so the report layout is stable between runs.
	Categories []CategorySpend
}

// Column aliases accepted when locating fields in the ledger header.
// Header casing drifted across ingestion runs, so lookup is normalized.
var (
	priceKeys    = []string{"unit_price", "preco", "preço", "price"}
	categoryKeys = []string{"category", "categoria"}
)

// Summarize computes total spend and spend grouped by category. A single
// corrupt row never blanks the report: unparseable prices count as zero.
func Summarize(rows []Row) Summary {
	if len(rows) == 0 {
		return Summary{Condition: ConditionEmpty, TotalSpend: decimal.Zero}
	}

	priceKey, havePrice := findColumn(rows, priceKeys)
	categoryKey, haveCategory := findColumn(rows, categoryKeys)

	summary := Summary{
		Condition:  ConditionOK,
		RowCount:   len(rows),
		TotalSpend: decimal.Zero,
	}
	if !havePrice {
		summary.MissingColumns = append(summary.MissingColumns, "unit_price")
	}
	if !haveCategory {
		summary.MissingColumns = append(summary.MissingColumns, "category")
	}
	if len(summary.MissingColumns) > 0 {
		summary.Condition = ConditionMissingColumn
	}

	if !havePrice {
		return summary
	}

	byCategory := make(map[string]decimal.Decimal)
	for _, row := range rows {
		price := coercePrice(lookupCell(row, priceKey))
		summary.TotalSpend = summary.TotalSpend.Add(price)

		if haveCategory {
			cat := strings.TrimSpace(lookupCell(row, categoryKey))
			if cat == "" {
				cat = "Other"
			}
			byCategory[cat] = byCategory[cat].Add(price)
		}
	}

	for cat, total := range byCategory {
		summary.Categories = append(summary.Categories, CategorySpend{Category: cat, Total: total})
	}
	sort.SliceStable(summary.Categories, func(i, j int) bool {
		if !summary.Categories[i].Total.Equal(summary.Categories[j].Total) {
			return summary.Categories[i].Total.GreaterThan(summary.Categories[j].Total)
		}
		return summary.Categories[i].Category < summary.Categories[j].Category
	})

	return summary
}

// findColumn probes aliases in priority order, matching row keys
// case-insensitively with whitespace trimmed. A header carrying two
// price-like columns therefore always resolves to the same one.
func findColumn(rows []Row, aliases []string) (string, bool) {
	for _, alias := range aliases {
		for _, row := range rows {
			for key := range row {
				if normalizeKey(key) == alias {
					return alias, true
				}
			}
		}
	}
	return "", false
}

// lookupCell breaks ties between equal-priority duplicate keys (case or
// whitespace variants of one header) on the smallest original key.
func lookupCell(row Row, alias string) string {
	match := ""
	found := false
	for key := range row {
		if normalizeKey(key) != alias {
			continue
		}
		if !found || key < match {
			match = key
			found = true
		}
	}
	if !found {
		return ""
	}
	return row[match]
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// coercePrice parses a price cell, tolerating currency symbols and both
// decimal separator styles. Unparseable legacy values count as zero.
func coercePrice(s string) decimal.Decimal {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '.', r == ',', r == '-':
			b.WriteRune(r)
		}
	}
	clean := b.String()
	if clean == "" {
		return decimal.Zero
	}

	// The rightmost separator is the decimal point; others are grouping.
	lastDot := strings.LastIndex(clean, ".")
	lastComma := strings.LastIndex(clean, ",")
	sep := lastDot
	if lastComma > sep {
		sep = lastComma
	}

	var out strings.Builder
	for i, r := range clean {
		switch r {
		case '.', ',':
			if i == sep {
				out.WriteByte('.')
			}
		default:
			out.WriteRune(r)
		}
	}

	d, err := decimal.NewFromString(out.String())
	if err != nil {
		return decimal.Zero
	}
	return d
}

// RowsFromSheet converts a raw sheet read (header first, if any) into
// records keyed by the raw header names. A stray duplicate of the header
// row, left over from a bootstrap race, is detected and skipped.
func RowsFromSheet(values [][]string) []Row {
	if len(values) < 2 {
		return nil
	}

	header := values[0]
	rows := make([]Row, 0, len(values)-1)
	for _, raw := range values[1:] {
		if isHeaderEcho(header, raw) {
			continue
		}
		row := make(Row, len(header))
		for i, name := range header {
			if i < len(raw) {
				row[name] = raw[i]
			} else {
				row[name] = ""
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func isHeaderEcho(header, raw []string) bool {
	if len(raw) != len(header) {
		return false
	}
	for i := range header {
		if !strings.EqualFold(strings.TrimSpace(header[i]), strings.TrimSpace(raw[i])) {
			return false
		}
	}
	return true
}
