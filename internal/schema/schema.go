package schema

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/mgouveia/pantry-ledger/internal/parse"
)

// Category is the fixed classification of a purchase line item.
type Category string

const (
	CategoryFood      Category = "Food"
	CategoryCleaning  Category = "Cleaning"
	CategoryHygiene   Category = "Hygiene"
	CategoryBeverages Category = "Beverages"
	CategoryOther     Category = "Other"
)

// LineItem is one validated purchase record. Every field is populated;
// partially filled items are never produced.
type LineItem struct {
	Product      string
	Quantity     float64
	Category     Category
	UnitPrice    decimal.Decimal
	PurchaseDate civil.Date
}

// Kind classifies a validation failure.
type Kind string

const (
	KindMissingRequiredField Kind = "missing_required_field"
	KindInvalidPrice         Kind = "invalid_price"
)

// Error is a per-record validation failure. It carries the offending field
// and value so the reviewer sees exactly which row broke and why.
type Error struct {
	Kind  Kind
	Field string
	Value interface{}
}

func (e *Error) Error() string {
	return fmt.Sprintf("validate %s: field %q (value %v)", e.Kind, e.Field, e.Value)
}

// Warning is a non-fatal normalization note attached to an accepted record,
// e.g. an unrecognized category coerced to Other.
type Warning struct {
	Field   string
	Message string
}

// Validate coerces one raw record into a LineItem or reports a single
// specific validation error. Malformed input is the expected common case
// here; nothing panics on bad shapes or types.
//
// Keys are matched case-insensitively and both the upstream Portuguese
// vocabulary (produto, quantidade, categoria, preco, data) and the ledger's
// English column names are accepted.
func Validate(rec parse.RawRecord, ingestDate civil.Date) (LineItem, []Warning, error) {
	var warnings []Warning

	product, ok := lookupString(rec, "product", "produto")
	if !ok || strings.TrimSpace(product) == "" {
		return LineItem{}, nil, &Error{Kind: KindMissingRequiredField, Field: "product", Value: rec["produto"]}
	}

	qtyRaw, _ := lookup(rec, "quantity", "quantidade")
	quantity, ok := coerceNumber(qtyRaw)
	if !ok || quantity <= 0 {
		return LineItem{}, nil, &Error{Kind: KindMissingRequiredField, Field: "quantity", Value: qtyRaw}
	}

	category, warn := coerceCategory(rec)
	if warn != nil {
		warnings = append(warnings, *warn)
	}

	priceRaw, _ := lookup(rec, "unit_price", "preco", "preço", "price")
	price, err := coercePrice(priceRaw)
	if err != nil {
		return LineItem{}, nil, err
	}

	dateRaw, _ := lookupString(rec, "purchase_date", "data", "date", "data_compra")
	date, ok := parseDate(dateRaw)
	if !ok {
		date = ingestDate
		if strings.TrimSpace(dateRaw) != "" {
			warnings = append(warnings, Warning{
				Field:   "purchase_date",
				Message: fmt.Sprintf("unparseable date %q, using ingestion date", dateRaw),
			})
		}
	}

	return LineItem{
		Product:      strings.TrimSpace(product),
		Quantity:     quantity,
		Category:     category,
		UnitPrice:    price,
		PurchaseDate: date,
	}, warnings, nil
}

// lookup resolves aliases in argument order, so a record carrying two
// aliases of one field (say preco and price) always yields the same value.
// Equal-priority duplicates (case or whitespace variants of one alias)
// break ties on the smallest original key.
func lookup(rec parse.RawRecord, keys ...string) (interface{}, bool) {
	for _, want := range keys {
		match := ""
		found := false
		for k := range rec {
			if strings.ToLower(strings.TrimSpace(k)) != want {
				continue
			}
			if !found || k < match {
				match = k
				found = true
			}
		}
		if found {
			return rec[match], true
		}
	}
	return nil, false
}

func lookupString(rec parse.RawRecord, keys ...string) (string, bool) {
	v, ok := lookup(rec, keys...)
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// coerceNumber accepts JSON numbers and numeric strings ("2", "1,5").
func coerceNumber(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case int:
		return float64(val), true
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(val), ",", ".")
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// coercePrice normalizes a price-like value to a non-negative decimal with
// two-digit precision. Textual values are cleaned of currency symbols and
// grouping separators first; only then does a non-numeric value fail.
func coercePrice(v interface{}) (decimal.Decimal, error) {
	fail := func() (decimal.Decimal, error) {
		return decimal.Zero, &Error{Kind: KindInvalidPrice, Field: "unit_price", Value: v}
	}

	var d decimal.Decimal
	switch val := v.(type) {
	case float64:
		d = decimal.NewFromFloat(val)
	case int:
		d = decimal.NewFromInt(int64(val))
	case string:
		cleaned, ok := cleanAmount(val)
		if !ok {
			return fail()
		}
		parsed, err := decimal.NewFromString(cleaned)
		if err != nil {
			return fail()
		}
		d = parsed
	default:
		return fail()
	}

	if d.IsNegative() {
		return fail()
	}
	return d.Round(2), nil
}

// cleanAmount strips currency noise from a textual amount and normalizes
// the decimal separator. The rightmost of '.' or ',' is taken as the
// decimal point; all other separators are treated as grouping.
// "R$ 8,00" -> "8.00", "1.234,56" -> "1234.56", "1,234.56" -> "1234.56".
func cleanAmount(s string) (string, bool) {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '.', r == ',', r == '-':
			b.WriteRune(r)
		}
	}
	clean := b.String()
	if clean == "" {
		return "", false
	}

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
	return out.String(), true
}

// categoryAliases maps normalized upstream vocabulary to the fixed set.
// The model answers in Portuguese; accents are matched explicitly.
var categoryAliases = map[string]Category{
	"food":        CategoryFood,
	"alimentação": CategoryFood,
	"alimentacao": CategoryFood,
	"cleaning":    CategoryCleaning,
	"limpeza":     CategoryCleaning,
	"hygiene":     CategoryHygiene,
	"higiene":     CategoryHygiene,
	"beverages":   CategoryBeverages,
	"bebidas":     CategoryBeverages,
	"other":       CategoryOther,
	"outros":      CategoryOther,
}

// coerceCategory never rejects a record: the upstream model vocabulary
// drifts, so anything unrecognized maps to Other with a warning.
func coerceCategory(rec parse.RawRecord) (Category, *Warning) {
	raw, ok := lookupString(rec, "category", "categoria")
	if !ok || strings.TrimSpace(raw) == "" {
		return CategoryOther, &Warning{Field: "category", Message: "missing category, using Other"}
	}

	if cat, ok := categoryAliases[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return cat, nil
	}
	return CategoryOther, &Warning{
		Field:   "category",
		Message: fmt.Sprintf("unrecognized category %q, using Other", raw),
	}
}

// dateLayouts are the grammars the upstream is known to emit. The original
// ledger stores dd/mm/yyyy.
var dateLayouts = []string{"02/01/2006", "2006-01-02", "02-01-2006"}

func parseDate(s string) (civil.Date, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return civil.Date{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return civil.DateOf(t), true
		}
	}
	return civil.Date{}, false
}

// Today returns the current ingestion date.
func Today() civil.Date {
	return civil.DateOf(time.Now())
}
