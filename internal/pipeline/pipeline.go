package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mgouveia/pantry-ledger/internal/extract"
	"github.com/mgouveia/pantry-ledger/internal/imagestore"
	"github.com/mgouveia/pantry-ledger/internal/ledger"
	"github.com/mgouveia/pantry-ledger/internal/parse"
	"github.com/mgouveia/pantry-ledger/internal/runlog"
	"github.com/mgouveia/pantry-ledger/internal/schema"
)

var (
	// ErrInvalidState is returned when an operation is invoked on a session
	// whose state machine does not allow it.
	ErrInvalidState = errors.New("invalid session state")

	// ErrRowsRejected is returned by Commit when re-validation of the
	// reviewer-edited rows finds invalid data; the session stays in review
	// with per-row reasons attached.
	ErrRowsRejected = errors.New("batch contains rejected rows")
)

// Pipeline orchestrates ingestion sessions: archive the captured image,
// call the extraction collaborator, parse and validate, hand the batch to
// review, and commit accepted rows to the ledger.
type Pipeline struct {
	extractor extract.Extractor
	writer    *ledger.Writer
	images    imagestore.Store
	runs      runlog.RunLog
	log       zerolog.Logger
	today     func() civil.Date
}

func New(extractor extract.Extractor, writer *ledger.Writer, images imagestore.Store, runs runlog.RunLog, log zerolog.Logger) *Pipeline {
	if images == nil {
		images = imagestore.Disabled{}
	}
	if runs == nil {
		runs = runlog.Noop{}
	}
	return &Pipeline{
		extractor: extractor,
		writer:    writer,
		images:    images,
		runs:      runs,
		log:       log,
		today:     schema.Today,
	}
}

// NewSession creates an Idle session for one ingestion attempt.
func (p *Pipeline) NewSession(mode Mode) *Session {
	return newSession(mode)
}

// Capture attaches the acquired image to the session and archives it.
// Archiving is best-effort: a storage failure is logged, not fatal, since
// the image bytes stay on the session for extraction.
func (p *Pipeline) Capture(ctx context.Context, s *Session, image []byte, mimeType string) error {
	s.mu.Lock()
	if s.state != StateIdle {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("Capture: %w: %s", ErrInvalidState, state)
	}
	if len(image) == 0 {
		s.mu.Unlock()
		return fmt.Errorf("Capture: empty image")
	}
	s.state = StateCapturing
	s.image = image
	s.mimeType = mimeType
	s.mu.Unlock()

	uri, err := p.images.Archive(ctx, s.ID, image, mimeType)
	if err != nil {
		p.log.Warn().Err(err).Str("session_id", s.ID).Msg("Failed to archive receipt image")
		return nil
	}
	if uri != "" {
		s.mu.Lock()
		s.imageURI = uri
		s.mu.Unlock()
	}
	return nil
}

// Extract runs the external model call and drives the session through
// Extracting and Parsing into Reviewing. The model call is the single slow,
// paid, failure-prone step: it is never retried automatically. Cancellation
// returns the session to Idle with the batch discarded; any other failure
// moves it to Error with the raw model output retained for inspection.
func (p *Pipeline) Extract(ctx context.Context, s *Session) error {
	image, mimeType, err := p.beginExtraction(s)
	if err != nil {
		return err
	}

	var raw string
	if s.Mode == ModeQRLink {
		raw, err = p.extractor.QRLink(ctx, image, mimeType)
	} else {
		raw, err = p.extractor.ReceiptItems(ctx, image, mimeType)
	}
	if err != nil {
		return p.failExtraction(ctx, s, err)
	}

	s.mu.Lock()
	s.rawOutput = raw
	s.mu.Unlock()
	p.recordOutput(ctx, s, raw)

	if s.Mode == ModeQRLink {
		return p.finishLink(ctx, s, raw)
	}
	return p.parseAndStage(ctx, s, raw)
}

func (p *Pipeline) beginExtraction(s *Session) ([]byte, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateCapturing {
		return nil, "", fmt.Errorf("Extract: %w: %s", ErrInvalidState, s.state)
	}
	s.state = StateExtracting
	s.runID = uuid.NewString()

	run := runlog.Run{
		RunID:     s.runID,
		SessionID: s.ID,
		Mode:      string(s.Mode),
		ImageURI:  s.imageURI,
		StartedAt: time.Now(),
	}
	if err := p.runs.Start(context.Background(), run); err != nil {
		p.log.Warn().Err(err).Str("run_id", s.runID).Msg("Failed to record extraction run")
	}

	return s.image, s.mimeType, nil
}

func (p *Pipeline) failExtraction(ctx context.Context, s *Session, err error) error {
	s.mu.Lock()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		// Caller-requested cancellation must not leave the machine stuck.
		s.toIdleLocked()
		s.mu.Unlock()
		p.finishRun(s, runlog.StatusFailed, err)
		return fmt.Errorf("Extract: %w", err)
	}
	s.state = StateError
	s.lastErr = err
	s.mu.Unlock()

	p.finishRun(s, runlog.StatusFailed, err)
	p.log.Error().Err(err).Str("session_id", s.ID).Msg("Extraction failed")
	return fmt.Errorf("Extract: %w", err)
}

func (p *Pipeline) finishLink(ctx context.Context, s *Session, raw string) error {
	link := parse.CleanLink(raw)

	s.mu.Lock()
	s.link = link
	s.state = StateDone
	s.batch = nil
	s.image = nil
	s.mu.Unlock()

	p.finishRun(s, runlog.StatusSucceeded, nil)
	return nil
}

// parseAndStage feeds the raw output through the parser, validates each
// record independently, and stages the batch for review. One invalid row
// never aborts the batch.
func (p *Pipeline) parseAndStage(ctx context.Context, s *Session, raw string) error {
	s.mu.Lock()
	s.state = StateParsing
	s.mu.Unlock()

	records, err := parse.Records(raw)
	if err != nil {
		s.mu.Lock()
		s.state = StateError
		s.lastErr = err
		s.mu.Unlock()

		p.finishRun(s, runlog.StatusFailed, err)
		p.log.Error().Err(err).Str("session_id", s.ID).Msg("Model output did not parse")
		return fmt.Errorf("Extract: %w", err)
	}

	today := p.today()
	batch := &Batch{Rows: make([]ReviewRow, 0, len(records))}
	for _, rec := range records {
		batch.Rows = append(batch.Rows, validateRow(rec, today))
	}

	s.mu.Lock()
	s.batch = batch
	s.state = StateReviewing
	s.image = nil
	s.mu.Unlock()

	p.finishRun(s, runlog.StatusSucceeded, nil)
	p.log.Info().
		Str("session_id", s.ID).
		Int("rows", len(batch.Rows)).
		Int("accepted", batch.AcceptedCount()).
		Msg("Batch staged for review")
	return nil
}

func validateRow(rec parse.RawRecord, today civil.Date) ReviewRow {
	item, warnings, err := schema.Validate(rec, today)
	if err != nil {
		return ReviewRow{Record: rec, Status: RowRejected, Reason: err.Error()}
	}
	return ReviewRow{Record: rec, Item: &item, Status: RowAccepted, Warnings: warnings}
}

// UpdateReview replaces the batch with the reviewer-edited row set.
// Additions, edits and deletions are all expressed as the new record list;
// everything is re-validated at commit, never trusted blindly.
func (p *Pipeline) UpdateReview(s *Session, records []parse.RawRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateReviewing {
		return fmt.Errorf("UpdateReview: %w: %s", ErrInvalidState, s.state)
	}

	today := p.today()
	batch := &Batch{Rows: make([]ReviewRow, 0, len(records))}
	for _, rec := range records {
		batch.Rows = append(batch.Rows, validateRow(rec, today))
	}
	s.batch = batch
	return nil
}

// Commit re-validates the reviewed rows and appends the accepted items to
// the ledger in order. On partial failure the session stays in Committing
// and remembers the committed prefix; calling Commit again appends only the
// unsent remainder, never duplicating rows. Success clears the batch.
func (p *Pipeline) Commit(ctx context.Context, s *Session) (ledger.AppendReport, error) {
	s.mu.Lock()
	switch s.state {
	case StateReviewing:
		if s.batch == nil || len(s.batch.Rows) == 0 {
			s.mu.Unlock()
			return ledger.AppendReport{}, fmt.Errorf("Commit: empty batch")
		}

		today := p.today()
		items := make([]schema.LineItem, 0, len(s.batch.Rows))
		rejected := 0
		for i := range s.batch.Rows {
			row := &s.batch.Rows[i]
			*row = validateRow(row.Record, today)
			if row.Status == RowRejected {
				rejected++
				continue
			}
			items = append(items, *row.Item)
		}
		if rejected > 0 {
			s.mu.Unlock()
			return ledger.AppendReport{}, fmt.Errorf("Commit: %d row(s): %w", rejected, ErrRowsRejected)
		}

		s.pending = items
		s.committed = 0
		s.state = StateCommitting
	case StateCommitting:
		// Resuming a partially failed commit.
	default:
		state := s.state
		s.mu.Unlock()
		return ledger.AppendReport{}, fmt.Errorf("Commit: %w: %s", ErrInvalidState, state)
	}

	// A second Commit while the append is still running would read the
	// same committed prefix and duplicate rows; only a commit that has
	// already returned may be resumed.
	if s.inFlight {
		s.mu.Unlock()
		return ledger.AppendReport{}, fmt.Errorf("Commit: %w: commit in progress", ErrInvalidState)
	}
	s.inFlight = true
	remaining := s.pending[s.committed:]
	s.mu.Unlock()

	report, err := p.writer.Append(ctx, remaining)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight = false
	s.committed += report.SucceededCount

	if err != nil {
		s.lastErr = err
		p.log.Error().Err(err).
			Str("session_id", s.ID).
			Int("committed", s.committed).
			Int("total", len(s.pending)).
			Msg("Commit failed partway; session is resumable")
		return report, fmt.Errorf("Commit: %w", err)
	}

	total := s.committed
	s.state = StateDone
	s.batch = nil
	s.pending = nil
	s.lastErr = nil
	p.log.Info().Str("session_id", s.ID).Int("rows", total).Msg("Batch committed")
	return report, nil
}

func (p *Pipeline) recordOutput(ctx context.Context, s *Session, raw string) {
	s.mu.Lock()
	runID := s.runID
	s.mu.Unlock()
	if err := p.runs.RecordOutput(context.Background(), runID, raw); err != nil {
		p.log.Warn().Err(err).Str("run_id", runID).Msg("Failed to record model output")
	}
}

func (p *Pipeline) finishRun(s *Session, status runlog.Status, runErr error) {
	s.mu.Lock()
	runID := s.runID
	s.mu.Unlock()
	if runID == "" {
		return
	}
	if err := p.runs.Finish(context.Background(), runID, status, runErr); err != nil {
		p.log.Warn().Err(err).Str("run_id", runID).Msg("Failed to close extraction run")
	}
}
