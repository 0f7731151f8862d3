package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/evalia/internal/model"
	"github.com/ppiankov/evalia/internal/pipeline"
	"github.com/ppiankov/evalia/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubEvaluator struct {
	got  pipeline.Request
	save *store.Store
	err  error
}

func (s *stubEvaluator) Evaluate(_ context.Context, req pipeline.Request) (*pipeline.Evaluation, error) {
	s.got = req
	if s.err != nil {
		return nil, s.err
	}
	if strings.TrimSpace(req.Claim) == "" && req.URL == "" && req.Image == nil {
		return nil, pipeline.ErrEmptyRequest
	}
	scores := model.Scores{"logic": 1, "natural_law": 0, "historical_accuracy": 2, "source_credibility": 0, "overall_reasonableness": 1}
	entry := model.MemoryEntry{
		Claim:         req.Claim,
		URL:           req.URL,
		Scores:        scores,
		BrutalityMode: req.Persona == model.PersonaBrutal,
		Analysis: &model.AnalysisResult{
			Verdict:      model.VerdictImplausible,
			ClaimSummary: "The claim asserts that the earth is flat.",
			Scores:       scores,
		},
	}
	if req.Image != nil {
		entry.ImageAnalysis = &model.ImageAnalysis{Description: req.Image.MIMEType}
	}
	saved, err := s.save.Append(entry)
	if err != nil {
		return nil, err
	}
	return &pipeline.Evaluation{Entry: saved, Saved: true}, nil
}

func newTestServer(t *testing.T) (*Server, *stubEvaluator, *store.Store) {
	t.Helper()
	st := store.New(filepath.Join(t.TempDir(), "memory.json"), nil)
	eval := &stubEvaluator{save: st}
	return New(eval, st, Options{}, nil), eval, st
}

func do(t *testing.T, s *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	s, _, _ := newTestServer(t)
	w := do(t, s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestEvaluateJSON(t *testing.T) {
	s, eval, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/evaluate", strings.NewReader(`{"claim":"The earth is flat","brutal":true}`))
	req.Header.Set("Content-Type", "application/json")
	w := do(t, s, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp evaluateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "0.8", resp.Average)
	assert.Equal(t, 8, resp.Confidence)
	assert.Equal(t, "Implausible: The claim asserts that the earth is flat.", resp.TLDR)
	assert.True(t, resp.Saved)
	assert.Equal(t, "brutal", resp.Entry.PersonaUsed)
	assert.Equal(t, model.PersonaBrutal, eval.got.Persona)
}

func TestEvaluateEmpty(t *testing.T) {
	s, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/evaluate", strings.NewReader(`{"claim":"  "}`))
	req.Header.Set("Content-Type", "application/json")
	w := do(t, s, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "please provide a claim")
}

func TestEvaluateBadPersona(t *testing.T) {
	s, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/evaluate", strings.NewReader(`{"claim":"x","persona":"cheerful"}`))
	req.Header.Set("Content-Type", "application/json")
	w := do(t, s, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEvaluateFailure(t *testing.T) {
	s, eval, _ := newTestServer(t)
	eval.err = errors.New("boom")

	req := httptest.NewRequest(http.MethodPost, "/api/evaluate", strings.NewReader(`{"claim":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	w := do(t, s, req)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "boom")
}

func TestEvaluateMultipartImage(t *testing.T) {
	s, eval, _ := newTestServer(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("claim", "Is this real?"))
	require.NoError(t, mw.WriteField("persona", "stoic"))
	part, err := mw.CreateFormFile("image", "meme.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("\x89PNG\r\n\x1a\n\x00\x00"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/evaluate", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := do(t, s, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	require.NotNil(t, eval.got.Image)
	assert.Equal(t, "image/png", eval.got.Image.MIMEType)
	assert.Equal(t, "Is this real?", eval.got.Claim)
	assert.Equal(t, model.PersonaStoic, eval.got.Persona)
}

func seed(t *testing.T, st *store.Store, claims ...string) []*model.MemoryEntry {
	t.Helper()
	var out []*model.MemoryEntry
	for _, c := range claims {
		e, err := st.Append(model.MemoryEntry{
			Claim:     c,
			Timestamp: "2026-03-14T14:09:26Z",
			Scores:    model.Scores{"logic": 5},
			Analysis:  &model.AnalysisResult{Verdict: model.VerdictSpeculative, ClaimSummary: c, Scores: model.Scores{"logic": 5}},
		})
		require.NoError(t, err)
		out = append(out, e)
	}
	return out
}

func TestHistory(t *testing.T) {
	s, _, st := newTestServer(t)
	seed(t, st, "one", "two", "three")

	w := do(t, s, httptest.NewRequest(http.MethodGet, "/api/history?limit=2", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Entries []model.MemoryEntry `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Entries, 2)
	assert.Equal(t, "three", resp.Entries[0].Claim)

	w = do(t, s, httptest.NewRequest(http.MethodGet, "/api/history?limit=-1", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHistoryEntry(t *testing.T) {
	s, _, st := newTestServer(t)
	entries := seed(t, st, "one")

	w := do(t, s, httptest.NewRequest(http.MethodGet, "/api/history/"+entries[0].ID, nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"claim":"one"`)

	w = do(t, s, httptest.NewRequest(http.MethodGet, "/api/history/does-not-exist", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHistoryPDFAndSeal(t *testing.T) {
	s, _, st := newTestServer(t)
	entries := seed(t, st, "one")
	id := entries[0].ID

	w := do(t, s, httptest.NewRequest(http.MethodGet, "/api/history/"+id+"/report.pdf", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "evalia_report_2026-03-14T14_09_26Z.pdf")
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF-")))

	w = do(t, s, httptest.NewRequest(http.MethodGet, "/api/history/"+id+"/seal.png", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")))
}

func TestRunStopsOnCancel(t *testing.T) {
	st := store.New(filepath.Join(t.TempDir(), "memory.json"), nil)
	s := New(&stubEvaluator{save: st}, st, Options{Addr: "127.0.0.1:0"}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()

	assert.NoError(t, <-done)
}
