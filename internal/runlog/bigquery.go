package runlog

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"
)

const (
	runsTable    = "extraction_runs"
	outputsTable = "model_outputs"
)

// RunRow is the extraction_runs schema.
type RunRow struct {
	RunID        string                 `bigquery:"run_id"`
	SessionID    string                 `bigquery:"session_id"`
	Mode         string                 `bigquery:"mode"`
	ImageURI     string                 `bigquery:"image_uri"`
	Model        string                 `bigquery:"model"`
	StartedAt    time.Time              `bigquery:"started_ts"`
	FinishedAt   bigquery.NullTimestamp `bigquery:"finished_ts"`
	Status       string                 `bigquery:"status"`
	ErrorMessage string                 `bigquery:"error_message"`
}

// OutputRow is the model_outputs schema: the raw, untrusted model reply
// kept verbatim for diagnosing upstream format drift.
type OutputRow struct {
	OutputID  string    `bigquery:"output_id"`
	RunID     string    `bigquery:"run_id"`
	RawOutput string    `bigquery:"raw_output"`
	CreatedAt time.Time `bigquery:"created_ts"`
}

// BigQueryRunLog stores run audit rows in BigQuery. Clients are created
// per operation; the dataset is append-mostly and runs are closed with a
// status update query.
type BigQueryRunLog struct {
	ProjectID string
	DatasetID string
}

func NewBigQueryRunLog(projectID, datasetID string) *BigQueryRunLog {
	return &BigQueryRunLog{ProjectID: projectID, DatasetID: datasetID}
}

// Start implements RunLog.
func (l *BigQueryRunLog) Start(ctx context.Context, run Run) error {
	client, err := bigquery.NewClient(ctx, l.ProjectID)
	if err != nil {
		return fmt.Errorf("runlog.Start: bigquery client: %w", err)
	}
	defer client.Close()

	row := &RunRow{
		RunID:     run.RunID,
		SessionID: run.SessionID,
		Mode:      run.Mode,
		ImageURI:  run.ImageURI,
		Model:     run.Model,
		StartedAt: run.StartedAt,
		Status:    string(StatusRunning),
	}

	inserter := client.Dataset(l.DatasetID).Table(runsTable).Inserter()
	if err := inserter.Put(ctx, row); err != nil {
		return fmt.Errorf("runlog.Start: inserting run row: %w", err)
	}
	return nil
}

// RecordOutput implements RunLog.
func (l *BigQueryRunLog) RecordOutput(ctx context.Context, runID, rawOutput string) error {
	client, err := bigquery.NewClient(ctx, l.ProjectID)
	if err != nil {
		return fmt.Errorf("runlog.RecordOutput: bigquery client: %w", err)
	}
	defer client.Close()

	row := &OutputRow{
		OutputID:  uuid.NewString(),
		RunID:     runID,
		RawOutput: rawOutput,
		CreatedAt: time.Now(),
	}

	inserter := client.Dataset(l.DatasetID).Table(outputsTable).Inserter()
	if err := inserter.Put(ctx, row); err != nil {
		return fmt.Errorf("runlog.RecordOutput: inserting output row: %w", err)
	}
	return nil
}

// Finish implements RunLog.
func (l *BigQueryRunLog) Finish(ctx context.Context, runID string, status Status, runErr error) error {
	client, err := bigquery.NewClient(ctx, l.ProjectID)
	if err != nil {
		return fmt.Errorf("runlog.Finish: bigquery client: %w", err)
	}
	defer client.Close()

	errMsg := ""
	if runErr != nil {
		errMsg = runErr.Error()
		const maxLen = 2000
		if len(errMsg) > maxLen {
			errMsg = errMsg[:maxLen]
		}
	}

	q := client.Query(fmt.Sprintf(`
		UPDATE %s.%s
		SET status = @status,
		    finished_ts = @finished_ts,
		    error_message = @error_message
		WHERE run_id = @run_id
	`, l.DatasetID, runsTable))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: string(status)},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "error_message", Value: errMsg},
		{Name: "run_id", Value: runID},
	}

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("runlog.Finish: running update query: %w", err)
	}

	jobStatus, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("runlog.Finish: waiting for job: %w", err)
	}
	if err := jobStatus.Err(); err != nil {
		return fmt.Errorf("runlog.Finish: job error: %w", err)
	}

	return nil
}
