package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mgouveia/pantry-ledger/internal/schema"
)

// AppendReport describes how far an append batch got. SucceededCount is the
// length of the committed prefix, so a caller can resume with the remaining
// rows and never duplicate already-written ones.
type AppendReport struct {
	SucceededCount int
	HeaderWritten  bool
}

// Writer is the append-only writer over a Ledger. It bootstraps the header
// row exactly once and preserves caller-supplied row order: the ledger is
// chronological and reordered batches would corrupt downstream reporting.
type Writer struct {
	ledger Ledger
}

func NewWriter(l Ledger) *Writer {
	return &Writer{ledger: l}
}

// Append writes items in order, one remote append per row. On failure it
// reports the committed prefix; the error is *AuthError for credential
// problems and *RowError (with the failing batch index) otherwise.
func (w *Writer) Append(ctx context.Context, items []schema.LineItem) (AppendReport, error) {
	var report AppendReport

	headerWritten, err := w.ensureHeader(ctx)
	if err != nil {
		return report, err
	}
	report.HeaderWritten = headerWritten

	for i, item := range items {
		if err := w.ledger.AppendRow(ctx, Row(item)); err != nil {
			report.SucceededCount = i
			var authErr *AuthError
			if errors.As(err, &authErr) {
				return report, fmt.Errorf("Writer.Append: %w", err)
			}
			return report, fmt.Errorf("Writer.Append: %w", &RowError{Index: i, Err: err})
		}
		report.SucceededCount = i + 1
	}

	return report, nil
}

// ensureHeader writes the header row if the target is empty. Two sessions
// can race on an empty target; if our header append fails but a header is
// present afterwards, the duplicate bootstrap is benign and skipped.
func (w *Writer) ensureHeader(ctx context.Context) (bool, error) {
	header, err := w.ledger.Header(ctx)
	if err != nil {
		return false, fmt.Errorf("Writer.Append: read header: %w", err)
	}
	if header != nil {
		return false, nil
	}

	if err := w.ledger.AppendRow(ctx, Columns); err != nil {
		current, readErr := w.ledger.Header(ctx)
		if readErr == nil && headerMatches(current) {
			return false, nil
		}
		return false, fmt.Errorf("Writer.Append: bootstrap header: %w", err)
	}
	return true, nil
}

// headerMatches reports whether an existing header is equivalent to ours.
// Casing is not guaranteed stable across runs that wrote it independently.
func headerMatches(header []string) bool {
	if len(header) != len(Columns) {
		return false
	}
	for i, col := range Columns {
		if !strings.EqualFold(strings.TrimSpace(header[i]), col) {
			return false
		}
	}
	return true
}
