package ledger

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/sheets/v4"
)

// SheetsLedger is the Google Sheets implementation of Ledger. Each call
// builds a fresh service from Application Default Credentials: the handle
// is not cached across requests because the credential may expire and must
// be re-acquired, not retried.
type SheetsLedger struct {
	SpreadsheetID string
	SheetName     string
}

func NewSheetsLedger(spreadsheetID, sheetName string) *SheetsLedger {
	if sheetName == "" {
		sheetName = "Sheet1"
	}
	return &SheetsLedger{SpreadsheetID: spreadsheetID, SheetName: sheetName}
}

// Header implements Ledger. An empty target yields nil, not an error.
func (l *SheetsLedger) Header(ctx context.Context) ([]string, error) {
	svc, err := l.service(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := svc.Spreadsheets.Values.
		Get(l.SpreadsheetID, l.SheetName+"!1:1").
		Context(ctx).Do()
	if err != nil {
		return nil, classify("read header", err)
	}

	if len(resp.Values) == 0 || len(resp.Values[0]) == 0 {
		return nil, nil
	}
	return cellsToStrings(resp.Values[0]), nil
}

// AppendRow implements Ledger.
func (l *SheetsLedger) AppendRow(ctx context.Context, row []string) error {
	svc, err := l.service(ctx)
	if err != nil {
		return err
	}

	values := make([]interface{}, len(row))
	for i, cell := range row {
		values[i] = cell
	}

	_, err = svc.Spreadsheets.Values.
		Append(l.SpreadsheetID, l.SheetName+"!A1", &sheets.ValueRange{
			Values: [][]interface{}{values},
		}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return classify("append row", err)
	}
	return nil
}

// ReadAll implements Ledger.
func (l *SheetsLedger) ReadAll(ctx context.Context) ([][]string, error) {
	svc, err := l.service(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := svc.Spreadsheets.Values.
		Get(l.SpreadsheetID, l.SheetName).
		Context(ctx).Do()
	if err != nil {
		return nil, classify("read all", err)
	}

	rows := make([][]string, 0, len(resp.Values))
	for _, row := range resp.Values {
		rows = append(rows, cellsToStrings(row))
	}
	return rows, nil
}

func (l *SheetsLedger) service(ctx context.Context) (*sheets.Service, error) {
	svc, err := sheets.NewService(ctx)
	if err != nil {
		return nil, &AuthError{Err: fmt.Errorf("create sheets service: %w", err)}
	}
	return svc, nil
}

// classify separates credential failures from per-row write failures so
// the caller can decide to re-authenticate versus retry a single row.
func classify(op string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden {
			return &AuthError{Err: fmt.Errorf("%s: %w", op, err)}
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func cellsToStrings(cells []interface{}) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = fmt.Sprint(c)
	}
	return out
}
