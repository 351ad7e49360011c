package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mgouveia/pantry-ledger/internal/ledger"
	"github.com/mgouveia/pantry-ledger/internal/logger"
	"github.com/mgouveia/pantry-ledger/internal/pipeline"
)

type stubExtractor struct{ out string }

func (s *stubExtractor) ReceiptItems(ctx context.Context, image []byte, mimeType string) (string, error) {
	return s.out, nil
}

func (s *stubExtractor) QRLink(ctx context.Context, image []byte, mimeType string) (string, error) {
	return "", nil
}

type memLedger struct{ rows [][]string }

func (m *memLedger) Header(ctx context.Context) ([]string, error) {
	if len(m.rows) == 0 {
		return nil, nil
	}
	return m.rows[0], nil
}

func (m *memLedger) AppendRow(ctx context.Context, row []string) error {
	m.rows = append(m.rows, row)
	return nil
}

func (m *memLedger) ReadAll(ctx context.Context) ([][]string, error) {
	return m.rows, nil
}

func TestSessionRegistry_Delete(t *testing.T) {
	registry := NewSessionRegistry()
	pipe := pipeline.New(&stubExtractor{}, nil, nil, nil, logger.NewWithWriter(io.Discard))

	session := pipe.NewSession(pipeline.ModeReceipt)
	registry.Put(session)
	_, ok := registry.Get(session.ID)
	require.True(t, ok)

	registry.Delete(session.ID)
	_, ok = registry.Get(session.ID)
	assert.False(t, ok)
}

func TestCancel_EvictsSession(t *testing.T) {
	log := logger.NewWithWriter(io.Discard)
	registry := NewSessionRegistry()
	pipe := pipeline.New(&stubExtractor{}, nil, nil, nil, log)
	h := NewSessionsHandler(pipe, registry, nil, log)

	session := pipe.NewSession(pipeline.ModeReceipt)
	registry.Put(session)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+session.ID+"/cancel", nil)
	h.Cancel(rec, req, session.ID)

	require.Equal(t, http.StatusOK, rec.Code)
	_, ok := registry.Get(session.ID)
	assert.False(t, ok)
}

func TestCommit_EvictsSession(t *testing.T) {
	log := logger.NewWithWriter(io.Discard)
	registry := NewSessionRegistry()
	ext := &stubExtractor{out: `[{"produto":"Arroz","quantidade":1,"preco":5.5,"categoria":"Alimentação"}]`}
	fake := &memLedger{}
	pipe := pipeline.New(ext, ledger.NewWriter(fake), nil, nil, log)
	h := NewSessionsHandler(pipe, registry, nil, log)

	session := pipe.NewSession(pipeline.ModeReceipt)
	registry.Put(session)
	require.NoError(t, pipe.Capture(context.Background(), session, []byte("img"), "image/jpeg"))
	require.NoError(t, pipe.Extract(context.Background(), session))
	require.Equal(t, pipeline.StateReviewing, session.State())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+session.ID+"/commit", nil)
	h.Commit(rec, req, session.ID)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, pipeline.StateDone, session.State())
	_, ok := registry.Get(session.ID)
	assert.False(t, ok)

	// Header plus the committed row reached the ledger.
	require.Len(t, fake.rows, 2)
	assert.Equal(t, "Arroz", fake.rows[1][0])
}
