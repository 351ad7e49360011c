package ledger

import (
	"context"
	"fmt"
	"strconv"

	"github.com/mgouveia/pantry-ledger/internal/schema"
)

// Columns is the fixed ledger column order. The header row uses exactly
// these names; committed rows follow the same order.
var Columns = []string{"product", "quantity", "category", "unit_price", "purchase_date"}

// Ledger is the narrow capability set this system needs from the external
// tabular store: read the header, read everything, append one row.
// Implementations acquire credentials per operation; an expired credential
// surfaces as *AuthError rather than being retried blindly.
type Ledger interface {
	// Header returns the first row of the target, or nil if the target is
	// empty. Emptiness is an explicit read-check, never an assumption.
	Header(ctx context.Context) ([]string, error)

	// AppendRow appends one row after the last non-empty row.
	AppendRow(ctx context.Context, row []string) error

	// ReadAll returns every row including the header, in sheet order.
	ReadAll(ctx context.Context) ([][]string, error)
}

// AuthError reports a credential/connection acquisition failure. The
// current commit cannot proceed; the caller must re-acquire access.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string { return fmt.Sprintf("ledger auth: %v", e.Err) }
func (e *AuthError) Unwrap() error { return e.Err }

// RowError reports a failed append of a single row. Index is the position
// within the batch handed to Writer.Append; rows before it were committed.
type RowError struct {
	Index int
	Err   error
}

func (e *RowError) Error() string { return fmt.Sprintf("ledger row %d rejected: %v", e.Index, e.Err) }
func (e *RowError) Unwrap() error { return e.Err }

// Row renders a LineItem in the fixed ledger column order. The date uses
// the dd/mm/yyyy layout the existing ledger was seeded with.
func Row(item schema.LineItem) []string {
	return []string{
		item.Product,
		strconv.FormatFloat(item.Quantity, 'f', -1, 64),
		string(item.Category),
		item.UnitPrice.StringFixed(2),
		fmt.Sprintf("%02d/%02d/%04d", item.PurchaseDate.Day, int(item.PurchaseDate.Month), item.PurchaseDate.Year),
	}
}
