package pipeline

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mgouveia/pantry-ledger/internal/parse"
	"github.com/mgouveia/pantry-ledger/internal/schema"
)

// State of an ingestion session.
type State string

const (
	StateIdle       State = "idle"
	StateCapturing  State = "capturing"
	StateExtracting State = "extracting"
	StateParsing    State = "parsing"
	StateReviewing  State = "reviewing"
	StateCommitting State = "committing"
	StateDone       State = "done"
	StateError      State = "error"
)

// Mode selects what the extraction collaborator is asked for.
type Mode string

const (
	// ModeReceipt extracts purchase line items from a receipt photo.
	ModeReceipt Mode = "receipt"
	// ModeQRLink extracts the URL embedded in a QR code.
	ModeQRLink Mode = "qr_link"
)

// RowStatus is the per-row validation outcome within a batch.
type RowStatus string

const (
	RowAccepted RowStatus = "accepted"
	RowRejected RowStatus = "rejected"
)

// ReviewRow is one candidate record with its validation outcome. Rejected
// rows keep their raw record and reason so the reviewer can fix them.
type ReviewRow struct {
	Record   parse.RawRecord  `json:"record"`
	Item     *schema.LineItem `json:"item,omitempty"`
	Status   RowStatus        `json:"status"`
	Reason   string           `json:"reason,omitempty"`
	Warnings []schema.Warning `json:"warnings,omitempty"`
}

// Batch is the set of rows parsed from one ingestion event, pending human
// review. It is owned exclusively by its session.
type Batch struct {
	Rows []ReviewRow `json:"rows"`
}

// AcceptedCount returns how many rows passed validation.
func (b *Batch) AcceptedCount() int {
	n := 0
	for _, row := range b.Rows {
		if row.Status == RowAccepted {
			n++
		}
	}
	return n
}

// Session is one ingestion attempt. It is an explicit object owned by the
// caller and passed into pipeline operations; there is no ambient shared
// state. Lifecycle: create, drive to Done, or Cancel.
type Session struct {
	ID        string
	Mode      Mode
	CreatedAt time.Time

	mu        sync.Mutex
	state     State
	image     []byte
	mimeType  string
	imageURI  string
	runID     string
	rawOutput string
	link      string
	batch     *Batch
	pending   []schema.LineItem
	committed int
	inFlight  bool
	lastErr   error
}

func newSession(mode Mode) *Session {
	return &Session{
		ID:        uuid.NewString(),
		Mode:      mode,
		CreatedAt: time.Now(),
		state:     StateIdle,
	}
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Batch returns a snapshot of the review batch, or nil outside review.
func (s *Session) Batch() *Batch {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.batch == nil {
		return nil
	}
	rows := make([]ReviewRow, len(s.batch.Rows))
	copy(rows, s.batch.Rows)
	return &Batch{Rows: rows}
}

// RawOutput returns the raw model reply of the last extraction. It is
// retained through parse failures so the operator can inspect it.
func (s *Session) RawOutput() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rawOutput
}

// Link returns the extracted QR-code URL, if any.
func (s *Session) Link() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.link
}

// ImageURI returns the archived image location, if archiving is enabled.
func (s *Session) ImageURI() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.imageURI
}

// Committed returns how many rows of the current batch reached the ledger.
func (s *Session) Committed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.committed
}

// Err returns the failure that moved the session to StateError, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Cancel discards the in-memory batch and returns the session to Idle.
// Canceling a terminal session is a no-op.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateDone {
		return
	}
	s.toIdleLocked()
}

func (s *Session) toIdleLocked() {
	s.state = StateIdle
	s.image = nil
	s.mimeType = ""
	s.rawOutput = ""
	s.link = ""
	s.batch = nil
	s.pending = nil
	s.committed = 0
	s.lastErr = nil
}
