package runlog

import (
	"context"
	"time"
)

// Status of one extraction run.
type Status string

const (
	StatusRunning   Status = "RUNNING"
	StatusSucceeded Status = "SUCCESS"
	StatusFailed    Status = "FAILED"
)

// Run is the audit record of one ingestion attempt.
type Run struct {
	RunID     string
	SessionID string
	Mode      string
	ImageURI  string
	Model     string
	StartedAt time.Time
}

// RunLog records extraction runs and their raw model output. It is an
// audit trail, not a control path: implementations log their own failures
// and never block the pipeline.
type RunLog interface {
	Start(ctx context.Context, run Run) error
	RecordOutput(ctx context.Context, runID, rawOutput string) error
	Finish(ctx context.Context, runID string, status Status, runErr error) error
}

// Noop is the RunLog used when auditing is not configured.
type Noop struct{}

func (Noop) Start(ctx context.Context, run Run) error                            { return nil }
func (Noop) RecordOutput(ctx context.Context, runID, rawOutput string) error     { return nil }
func (Noop) Finish(ctx context.Context, runID string, status Status, err error) error { return nil }
