package handlers

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/mgouveia/pantry-ledger/internal/api/middleware"
	"github.com/mgouveia/pantry-ledger/internal/ledger"
	"github.com/mgouveia/pantry-ledger/internal/report"
)

// ReportHandler serves aggregate spend over the ledger.
type ReportHandler struct {
	ledger ledger.Ledger
	log    zerolog.Logger
}

func NewReportHandler(l ledger.Ledger, log zerolog.Logger) *ReportHandler {
	return &ReportHandler{ledger: l, log: log}
}

// Summary handles GET /api/report.
func (h *ReportHandler) Summary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	values, err := h.ledger.ReadAll(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to read ledger")
		middleware.WriteError(w, http.StatusBadGateway, "Failed to read ledger")
		return
	}

	rows := report.RowsFromSheet(values)
	summary := report.Summarize(rows)

	categories := make([]map[string]interface{}, 0, len(summary.Categories))
	for _, c := range summary.Categories {
		categories = append(categories, map[string]interface{}{
			"category": c.Category,
			"total":    c.Total.StringFixed(2),
		})
	}

	resp := map[string]interface{}{
		"condition":   string(summary.Condition),
		"row_count":   summary.RowCount,
		"total_spend": summary.TotalSpend.StringFixed(2),
		"categories":  categories,
	}
	if len(summary.MissingColumns) > 0 {
		resp["missing_columns"] = summary.MissingColumns
	}

	middleware.WriteJSON(w, http.StatusOK, resp)
}
