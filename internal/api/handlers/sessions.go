package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"

	"github.com/rs/zerolog"

	"github.com/mgouveia/pantry-ledger/internal/api/middleware"
	"github.com/mgouveia/pantry-ledger/internal/jobs"
	"github.com/mgouveia/pantry-ledger/internal/ledger"
	"github.com/mgouveia/pantry-ledger/internal/parse"
	"github.com/mgouveia/pantry-ledger/internal/pipeline"
)

// maxImageBytes caps uploaded receipt images.
const maxImageBytes = 10 << 20

// SessionRegistry holds live ingestion sessions by ID. Sessions are
// in-memory only: they exist between capture and commit/cancel.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*pipeline.Session
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[string]*pipeline.Session)}
}

func (r *SessionRegistry) Put(s *pipeline.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s
}

func (r *SessionRegistry) Get(id string) (*pipeline.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Delete evicts a finished session so a long-lived server does not
// accumulate them.
func (r *SessionRegistry) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// SessionsHandler drives ingestion sessions over HTTP: capture, review,
// commit, cancel. Extraction itself runs on the job queue so the upload
// request returns immediately with an "in progress" state to poll.
type SessionsHandler struct {
	pipe      *pipeline.Pipeline
	registry  *SessionRegistry
	publisher jobs.Publisher
	log       zerolog.Logger
}

func NewSessionsHandler(pipe *pipeline.Pipeline, registry *SessionRegistry, publisher jobs.Publisher, log zerolog.Logger) *SessionsHandler {
	return &SessionsHandler{
		pipe:      pipe,
		registry:  registry,
		publisher: publisher,
		log:       log,
	}
}

// Create handles POST /api/sessions. The body is the raw image; the mode
// comes from the "mode" query parameter (receipt by default).
func (h *SessionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	mode := pipeline.ModeReceipt
	if r.URL.Query().Get("mode") == string(pipeline.ModeQRLink) {
		mode = pipeline.ModeQRLink
	}

	mimeType := r.Header.Get("Content-Type")
	if mimeType != "image/jpeg" && mimeType != "image/png" {
		middleware.WriteError(w, http.StatusBadRequest, "Content-Type must be image/jpeg or image/png")
		return
	}

	image, err := io.ReadAll(io.LimitReader(r.Body, maxImageBytes+1))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Failed to read image body")
		return
	}
	if len(image) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "Image body is required")
		return
	}
	if len(image) > maxImageBytes {
		middleware.WriteError(w, http.StatusRequestEntityTooLarge, "Image exceeds size limit")
		return
	}

	session := h.pipe.NewSession(mode)
	if err := h.pipe.Capture(ctx, session, image, mimeType); err != nil {
		h.log.Error().Err(err).Msg("Failed to capture image")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to capture image")
		return
	}
	h.registry.Put(session)

	job := &jobs.ExtractReceiptJob{SessionID: session.ID}
	if err := h.publisher.PublishExtractReceipt(ctx, job); err != nil {
		h.log.Error().Err(err).Str("session_id", session.ID).Msg("Failed to enqueue extraction")
		middleware.WriteError(w, http.StatusServiceUnavailable, "Failed to enqueue extraction")
		return
	}

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"session_id": session.ID,
		"job_id":     job.JobID,
		"state":      string(session.State()),
	})
}

// Get handles GET /api/sessions/:id. Failure states include the raw model
// output: the dominant failure mode is upstream format drift a human must
// be able to see.
func (h *SessionsHandler) Get(w http.ResponseWriter, r *http.Request, sessionID string) {
	session, ok := h.registry.Get(sessionID)
	if !ok {
		middleware.WriteError(w, http.StatusNotFound, "Session not found")
		return
	}

	resp := map[string]interface{}{
		"session_id": session.ID,
		"mode":       string(session.Mode),
		"state":      string(session.State()),
		"committed":  session.Committed(),
	}
	if uri := session.ImageURI(); uri != "" {
		resp["image_uri"] = uri
	}
	if batch := session.Batch(); batch != nil {
		resp["batch"] = batch
	}
	if link := session.Link(); link != "" {
		resp["link"] = link
	}
	if err := session.Err(); err != nil {
		resp["error"] = err.Error()
		resp["raw_output"] = session.RawOutput()
	}

	middleware.WriteJSON(w, http.StatusOK, resp)
}

// UpdateRows handles PUT /api/sessions/:id/rows with the reviewer-edited
// record list (additions, edits and deletions all expressed as the new
// full list).
func (h *SessionsHandler) UpdateRows(w http.ResponseWriter, r *http.Request, sessionID string) {
	session, ok := h.registry.Get(sessionID)
	if !ok {
		middleware.WriteError(w, http.StatusNotFound, "Session not found")
		return
	}

	var req struct {
		Records []parse.RawRecord `json:"records"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.pipe.UpdateReview(session, req.Records); err != nil {
		if errors.Is(err, pipeline.ErrInvalidState) {
			middleware.WriteError(w, http.StatusConflict, err.Error())
			return
		}
		middleware.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"state": string(session.State()),
		"batch": session.Batch(),
	})
}

// Commit handles POST /api/sessions/:id/commit. The reviewer has
// explicitly confirmed; rows are re-validated and appended in order.
func (h *SessionsHandler) Commit(w http.ResponseWriter, r *http.Request, sessionID string) {
	ctx := r.Context()

	session, ok := h.registry.Get(sessionID)
	if !ok {
		middleware.WriteError(w, http.StatusNotFound, "Session not found")
		return
	}

	report, err := h.pipe.Commit(ctx, session)
	if err != nil {
		switch {
		case errors.Is(err, pipeline.ErrInvalidState):
			middleware.WriteError(w, http.StatusConflict, err.Error())
		case errors.Is(err, pipeline.ErrRowsRejected):
			// The specific rejected rows go back to the reviewer.
			middleware.WriteJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
				"error": err.Error(),
				"batch": session.Batch(),
			})
		default:
			var authErr *ledger.AuthError
			status := http.StatusBadGateway
			if errors.As(err, &authErr) {
				status = http.StatusUnauthorized
			}
			middleware.WriteJSON(w, status, map[string]interface{}{
				"error":     err.Error(),
				"committed": session.Committed(),
				"state":     string(session.State()),
			})
		}
		return
	}

	h.registry.Delete(sessionID)

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"state":           string(session.State()),
		"committed":       session.Committed(),
		"header_written":  report.HeaderWritten,
		"succeeded_count": report.SucceededCount,
	})
}

// Cancel handles POST /api/sessions/:id/cancel.
func (h *SessionsHandler) Cancel(w http.ResponseWriter, r *http.Request, sessionID string) {
	session, ok := h.registry.Get(sessionID)
	if !ok {
		middleware.WriteError(w, http.StatusNotFound, "Session not found")
		return
	}

	session.Cancel()
	h.registry.Delete(sessionID)
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"state": string(session.State()),
	})
}
