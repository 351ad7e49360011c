package extract

import "context"

// Extractor sends a captured receipt image to a vision/language model and
// returns its raw text reply. The reply is untrusted: callers must run it
// through parse and schema validation before using it.
//
// Neither call retries on failure. The model call is paid and not
// idempotent, so a failed extraction surfaces to the caller for a manual
// re-trigger instead of being retried blindly.
type Extractor interface {
	// ReceiptItems asks the model for the purchase line items on the image.
	ReceiptItems(ctx context.Context, image []byte, mimeType string) (string, error)

	// QRLink asks the model for the URL embedded in a QR code on the image.
	QRLink(ctx context.Context, image []byte, mimeType string) (string, error)
}
