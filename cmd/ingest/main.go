package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mgouveia/pantry-ledger/internal/config"
	"github.com/mgouveia/pantry-ledger/internal/extract"
	"github.com/mgouveia/pantry-ledger/internal/imagestore"
	"github.com/mgouveia/pantry-ledger/internal/ledger"
	"github.com/mgouveia/pantry-ledger/internal/logger"
	"github.com/mgouveia/pantry-ledger/internal/parse"
	"github.com/mgouveia/pantry-ledger/internal/pipeline"
	"github.com/mgouveia/pantry-ledger/internal/runlog"
)

func main() {
	imagePath := flag.String("image", "", "Path to the receipt or QR code image")
	mode := flag.String("mode", "receipt", "Extraction mode: receipt or qr")
	yes := flag.Bool("yes", false, "Skip the review confirmation prompt")
	drop := flag.Bool("drop", false, "Drop rejected rows instead of aborting the commit")
	flag.Parse()

	log := logger.New()

	if *imagePath == "" {
		log.Fatal().Msg("-image is required")
	}

	sessionMode := pipeline.ModeReceipt
	switch *mode {
	case "receipt":
	case "qr":
		sessionMode = pipeline.ModeQRLink
	default:
		log.Fatal().Str("mode", *mode).Msg("Mode must be receipt or qr")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if sessionMode == pipeline.ModeReceipt && cfg.Sheets.SpreadsheetID == "" {
		log.Fatal().Msg("SHEET_ID is required")
	}

	image, err := os.ReadFile(*imagePath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *imagePath).Msg("Failed to read image")
	}
	mimeType := "image/jpeg"
	if strings.EqualFold(filepath.Ext(*imagePath), ".png") {
		mimeType = "image/png"
	}

	extractor := extract.NewGemini(cfg.Gemini.APIKey, cfg.Gemini.Model)
	writer := ledger.NewWriter(ledger.NewSheetsLedger(cfg.Sheets.SpreadsheetID, cfg.Sheets.SheetName))

	var images imagestore.Store = imagestore.Disabled{}
	if cfg.GCS.Bucket != "" {
		images = imagestore.NewGCSStore(cfg.GCS.Bucket)
	}
	var runs runlog.RunLog = runlog.Noop{}
	if cfg.BigQuery.Project != "" {
		runs = runlog.NewBigQueryRunLog(cfg.BigQuery.Project, cfg.BigQuery.Dataset)
	}

	pipe := pipeline.New(extractor, writer, images, runs, log)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	session := pipe.NewSession(sessionMode)
	if err := pipe.Capture(ctx, session, image, mimeType); err != nil {
		log.Fatal().Err(err).Msg("Failed to capture image")
	}

	log.Info().Str("session_id", session.ID).Str("mode", string(session.Mode)).Msg("Extracting")
	if err := pipe.Extract(ctx, session); err != nil {
		if raw := session.RawOutput(); raw != "" {
			fmt.Fprintf(os.Stderr, "\nRaw model output:\n%s\n\n", raw)
		}
		log.Fatal().Err(err).Msg("Extraction failed")
	}

	if session.Mode == pipeline.ModeQRLink {
		fmt.Println(session.Link())
		return
	}

	batch := session.Batch()
	if batch == nil || len(batch.Rows) == 0 {
		log.Info().Msg("No line items found on the receipt")
		session.Cancel()
		return
	}

	fmt.Println(renderBatch(batch))

	rejected := len(batch.Rows) - batch.AcceptedCount()
	if rejected > 0 {
		if !*drop {
			log.Fatal().Int("rejected", rejected).Msg("Batch has rejected rows; fix the receipt or rerun with -drop")
		}
		kept := make([]parse.RawRecord, 0, batch.AcceptedCount())
		for _, row := range batch.Rows {
			if row.Status == pipeline.RowAccepted {
				kept = append(kept, row.Record)
			}
		}
		if err := pipe.UpdateReview(session, kept); err != nil {
			log.Fatal().Err(err).Msg("Failed to drop rejected rows")
		}
		log.Info().Int("dropped", rejected).Msg("Dropped rejected rows")
	}

	if !*yes && !confirm() {
		session.Cancel()
		log.Info().Msg("Canceled, nothing written")
		return
	}

	report, err := pipe.Commit(ctx, session)
	if err != nil {
		if errors.Is(err, pipeline.ErrRowsRejected) {
			log.Fatal().Err(err).Msg("Edited rows failed validation, nothing written")
		}
		log.Fatal().
			Err(err).
			Int("committed", session.Committed()).
			Msg("Commit failed part way; rerun against the same session to resume")
	}

	log.Info().
		Int("rows", report.SucceededCount).
		Bool("header_written", report.HeaderWritten).
		Msg("Receipt committed")
}

func confirm() bool {
	fmt.Print("Append these rows to the ledger? [y/N] ")
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
