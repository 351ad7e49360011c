package schema

import (
	"testing"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mgouveia/pantry-ledger/internal/parse"
)

var testDate = civil.Date{Year: 2026, Month: 8, Day: 31}

func TestValidate_PortugueseReceipt(t *testing.T) {
	rec := parse.RawRecord{
		"produto":    "Arroz",
		"quantidade": float64(1),
		"categoria":  "Alimentação",
		"preco":      5.5,
	}

	item, warnings, err := Validate(rec, testDate)
	require.NoError(t, err)
	assert.Empty(t, warnings)

	assert.Equal(t, "Arroz", item.Product)
	assert.Equal(t, float64(1), item.Quantity)
	assert.Equal(t, CategoryFood, item.Category)
	assert.Equal(t, "5.50", item.UnitPrice.StringFixed(2))
	assert.Equal(t, testDate, item.PurchaseDate)
}

func TestValidate_CurrencyStringAndUnknownCategory(t *testing.T) {
	rec := parse.RawRecord{
		"produto":    "Sabao",
		"quantidade": float64(2),
		"categoria":  "Faxina",
		"preco":      "R$ 8,00",
	}

	item, warnings, err := Validate(rec, testDate)
	require.NoError(t, err)

	assert.Equal(t, "8.00", item.UnitPrice.StringFixed(2))
	assert.Equal(t, CategoryOther, item.Category)

	require.Len(t, warnings, 1)
	assert.Equal(t, "category", warnings[0].Field)
}

func TestValidate_MissingRequiredFields(t *testing.T) {
	tests := []struct {
		name  string
		rec   parse.RawRecord
		field string
	}{
		{
			name:  "missing product",
			rec:   parse.RawRecord{"quantidade": float64(1), "preco": 1.0},
			field: "product",
		},
		{
			name:  "blank product",
			rec:   parse.RawRecord{"produto": "   ", "quantidade": float64(1), "preco": 1.0},
			field: "product",
		},
		{
			name:  "missing quantity",
			rec:   parse.RawRecord{"produto": "Arroz", "preco": 1.0},
			field: "quantity",
		},
		{
			name:  "zero quantity",
			rec:   parse.RawRecord{"produto": "Arroz", "quantidade": float64(0), "preco": 1.0},
			field: "quantity",
		},
		{
			name:  "non-numeric quantity",
			rec:   parse.RawRecord{"produto": "Arroz", "quantidade": "muitos", "preco": 1.0},
			field: "quantity",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Validate(tt.rec, testDate)

			var verr *Error
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, KindMissingRequiredField, verr.Kind)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestValidate_InvalidPrice(t *testing.T) {
	tests := []struct {
		name  string
		price interface{}
	}{
		{"missing", nil},
		{"negative number", -2.5},
		{"negative string", "-R$ 2,50"},
		{"not numeric at all", "gratis"},
		{"wrong type", []interface{}{1.0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := parse.RawRecord{"produto": "Arroz", "quantidade": float64(1)}
			if tt.price != nil {
				rec["preco"] = tt.price
			}

			_, _, err := Validate(rec, testDate)

			var verr *Error
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, KindInvalidPrice, verr.Kind)
		})
	}
}

func TestValidate_Dates(t *testing.T) {
	base := func(date interface{}) parse.RawRecord {
		rec := parse.RawRecord{"produto": "Arroz", "quantidade": float64(1), "preco": 5.0}
		if date != nil {
			rec["data"] = date
		}
		return rec
	}

	t.Run("brazilian layout", func(t *testing.T) {
		item, warnings, err := Validate(base("25/12/2025"), testDate)
		require.NoError(t, err)
		assert.Empty(t, warnings)
		assert.Equal(t, civil.Date{Year: 2025, Month: 12, Day: 25}, item.PurchaseDate)
	})

	t.Run("iso layout", func(t *testing.T) {
		item, _, err := Validate(base("2025-12-25"), testDate)
		require.NoError(t, err)
		assert.Equal(t, civil.Date{Year: 2025, Month: 12, Day: 25}, item.PurchaseDate)
	})

	t.Run("missing date falls back silently", func(t *testing.T) {
		item, warnings, err := Validate(base(nil), testDate)
		require.NoError(t, err)
		assert.Empty(t, warnings)
		assert.Equal(t, testDate, item.PurchaseDate)
	})

	t.Run("garbage date falls back with warning", func(t *testing.T) {
		item, warnings, err := Validate(base("ontem"), testDate)
		require.NoError(t, err)
		require.Len(t, warnings, 1)
		assert.Equal(t, "purchase_date", warnings[0].Field)
		assert.Equal(t, testDate, item.PurchaseDate)
	})
}

func TestValidate_KeyNormalization(t *testing.T) {
	rec := parse.RawRecord{
		"  Produto ":    "Leite",
		"QUANTIDADE":    float64(2),
		"Categoria":     "Bebidas",
		"Unit_Price":    "3.20",
		"Purchase_Date": "01/02/2026",
	}

	item, _, err := Validate(rec, testDate)
	require.NoError(t, err)
	assert.Equal(t, "Leite", item.Product)
	assert.Equal(t, CategoryBeverages, item.Category)
	assert.Equal(t, "3.20", item.UnitPrice.StringFixed(2))
}

func TestValidate_DuplicateAliasesResolveByPriority(t *testing.T) {
	// preco outranks price; map iteration order must never pick the winner.
	rec := parse.RawRecord{
		"produto":    "Arroz",
		"quantidade": float64(1),
		"categoria":  "Alimentação",
		"preco":      float64(5),
		"price":      float64(9),
	}

	for i := 0; i < 200; i++ {
		item, _, err := Validate(rec, testDate)
		require.NoError(t, err)
		assert.Equal(t, "5.00", item.UnitPrice.StringFixed(2))
	}
}

func TestValidate_Deterministic(t *testing.T) {
	rec := parse.RawRecord{
		"produto":    "Cafe",
		"quantidade": "1,5",
		"categoria":  "mercearia",
		"preco":      "R$ 12,90",
	}

	first, firstWarn, err1 := Validate(rec, testDate)
	second, secondWarn, err2 := Validate(rec, testDate)

	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, first, second)
	assert.Equal(t, firstWarn, secondWarn)
	assert.Equal(t, 1.5, first.Quantity)
}

func TestCleanAmount(t *testing.T) {
	tests := []struct {
		input string
		want  string
		ok    bool
	}{
		{"R$ 8,00", "8.00", true},
		{"1.234,56", "1234.56", true},
		{"1,234.56", "1234.56", true},
		{"10", "10", true},
		{"5.5", "5.5", true},
		{"R$", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := cleanAmount(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
