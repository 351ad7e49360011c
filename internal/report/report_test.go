package report

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertAmount(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, got.Equal(decimal.RequireFromString(want)), "want %s, got %s", want, got)
}

func TestSummarize_ToleratesCorruptPrices(t *testing.T) {
	rows := []Row{
		{"preco": "10"},
		{"preco": "abc"},
		{"preco": "5"},
	}

	summary := Summarize(rows)

	assertAmount(t, "15", summary.TotalSpend)
	assert.Equal(t, 3, summary.RowCount)
	// Rows exist but no category column at all.
	assert.Equal(t, ConditionMissingColumn, summary.Condition)
	assert.Equal(t, []string{"category"}, summary.MissingColumns)
}

func TestSummarize_Empty(t *testing.T) {
	summary := Summarize(nil)

	assert.Equal(t, ConditionEmpty, summary.Condition)
	assert.True(t, summary.TotalSpend.IsZero())
	assert.Empty(t, summary.Categories)
}

func TestSummarize_MissingPriceColumn(t *testing.T) {
	rows := []Row{
		{"produto": "Arroz", "categoria": "Food"},
	}

	summary := Summarize(rows)

	assert.Equal(t, ConditionMissingColumn, summary.Condition)
	assert.Contains(t, summary.MissingColumns, "unit_price")
	assert.True(t, summary.TotalSpend.IsZero())
}

func TestSummarize_GroupsDescendingBySum(t *testing.T) {
	rows := []Row{
		{"categoria": "Food", "preco": "5.00"},
		{"categoria": "Cleaning", "preco": "20.00"},
		{"categoria": "Food", "preco": "4.00"},
		{"categoria": "Beverages", "preco": "9.00"},
	}

	summary := Summarize(rows)
	require.Equal(t, ConditionOK, summary.Condition)
	assertAmount(t, "38", summary.TotalSpend)

	require.Len(t, summary.Categories, 3)
	assert.Equal(t, "Cleaning", summary.Categories[0].Category)
	assert.Equal(t, "Food", summary.Categories[1].Category)
	assert.Equal(t, "Beverages", summary.Categories[2].Category)
}

func TestSummarize_DuplicatePriceColumnsResolveByPriority(t *testing.T) {
	// unit_price outranks preco; a header carrying both must always sum
	// the same column.
	rows := []Row{
		{"unit_price": "10.00", "preco": "99.00", "category": "Food"},
		{"unit_price": "5.00", "preco": "99.00", "category": "Food"},
	}

	for i := 0; i < 200; i++ {
		summary := Summarize(rows)
		assertAmount(t, "15", summary.TotalSpend)
	}
}

func TestSummarize_TiesBreakByName(t *testing.T) {
	rows := []Row{
		{"categoria": "Hygiene", "preco": "3.00"},
		{"categoria": "Beverages", "preco": "3.00"},
	}

	summary := Summarize(rows)
	require.Len(t, summary.Categories, 2)
	assert.Equal(t, "Beverages", summary.Categories[0].Category)
	assert.Equal(t, "Hygiene", summary.Categories[1].Category)
}

func TestSummarize_HeaderCaseDrift(t *testing.T) {
	rows := []Row{
		{" Unit_Price ": "R$ 7,50", "CATEGORIA": "Food"},
	}

	summary := Summarize(rows)
	require.Equal(t, ConditionOK, summary.Condition)
	assertAmount(t, "7.50", summary.TotalSpend)
	require.Len(t, summary.Categories, 1)
	assert.Equal(t, "Food", summary.Categories[0].Category)
}

func TestSummarize_BlankCategoryFallsBackToOther(t *testing.T) {
	rows := []Row{
		{"categoria": "", "preco": "2.00"},
		{"categoria": "Food", "preco": "1.00"},
	}

	summary := Summarize(rows)
	require.Len(t, summary.Categories, 2)
	assert.Equal(t, "Other", summary.Categories[0].Category)
}

func TestRowsFromSheet(t *testing.T) {
	values := [][]string{
		{"product", "quantity", "category", "unit_price", "purchase_date"},
		{"Arroz", "1", "Food", "5.50", "31/08/2026"},
		{"Leite", "2", "Beverages", "3.20"},
	}

	rows := RowsFromSheet(values)
	require.Len(t, rows, 2)
	assert.Equal(t, "Arroz", rows[0]["product"])
	assert.Equal(t, "5.50", rows[0]["unit_price"])
	// Short rows are padded with empty cells.
	assert.Equal(t, "", rows[1]["purchase_date"])
}

func TestRowsFromSheet_SkipsDuplicateHeader(t *testing.T) {
	values := [][]string{
		{"product", "quantity", "category", "unit_price", "purchase_date"},
		{"Product", "Quantity", "Category", "Unit_Price", "Purchase_Date"},
		{"Arroz", "1", "Food", "5.50", "31/08/2026"},
	}

	rows := RowsFromSheet(values)
	require.Len(t, rows, 1)
	assert.Equal(t, "Arroz", rows[0]["product"])
}

func TestRowsFromSheet_HeaderOnly(t *testing.T) {
	values := [][]string{
		{"product", "quantity", "category", "unit_price", "purchase_date"},
	}

	assert.Nil(t, RowsFromSheet(values))
}
