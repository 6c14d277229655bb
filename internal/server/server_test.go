package server

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/imfeniljikadara/nexus-ai/internal/api"
	"github.com/imfeniljikadara/nexus-ai/internal/config"
	"github.com/imfeniljikadara/nexus-ai/internal/data/registry"
	"github.com/imfeniljikadara/nexus-ai/internal/data/uploads"
	"github.com/imfeniljikadara/nexus-ai/internal/domain/chatModel"
	"github.com/imfeniljikadara/nexus-ai/internal/domain/docModel"
	"github.com/imfeniljikadara/nexus-ai/internal/domain/errorModel"
	"github.com/imfeniljikadara/nexus-ai/internal/domain/jobModel"
	"github.com/imfeniljikadara/nexus-ai/internal/handlers"
	"github.com/imfeniljikadara/nexus-ai/internal/middleware"
	"github.com/imfeniljikadara/nexus-ai/internal/rag/fetch"
	"github.com/imfeniljikadara/nexus-ai/internal/rag/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const token = "secret-token"

var samplePDF = []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\ntrailer\n<<>>\n%%EOF\n")

type fakeSessions struct {
	mu     sync.Mutex
	ask    func(ctx context.Context, ref docModel.Reference, question string) (chatModel.Answer, error)
	turns  map[string][]chatModel.Turn
	closed []string
}

func (f *fakeSessions) Ask(ctx context.Context, ref docModel.Reference, question string) (chatModel.Answer, error) {
	if f.ask != nil {
		return f.ask(ctx, ref, question)
	}
	return chatModel.Answer{DocumentId: ref.Id, Text: "answer: " + question}, nil
}

func (f *fakeSessions) History(_ context.Context, documentId string) ([]chatModel.Turn, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	turns, ok := f.turns[documentId]
	return turns, ok, nil
}

func (f *fakeSessions) Close(_ context.Context, documentId string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = append(f.closed, documentId)
	return nil
}

func (f *fakeSessions) State(string) session.State { return session.NoSession }

type fakeJobs struct {
	mu   sync.Mutex
	jobs map[string]jobModel.Job
}

func (f *fakeJobs) Enqueue(_ context.Context, documentId string, payload jobModel.JobPayload) (jobModel.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j := jobModel.Job{
		Id:          fmt.Sprintf("job-%d", len(f.jobs)+1),
		DocumentId:  documentId,
		JobPayload:  payload,
		Status:      jobModel.JobStatusQueued,
		CurrentStep: jobModel.WarmupInit,
		CreatedTime: time.Now(),
	}
	f.jobs[j.Id] = j
	return j, nil
}

func (f *fakeJobs) Status(_ context.Context, id string) (jobModel.Job, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	return j, ok
}

type fakeTexts map[string]docModel.Extraction

func (f fakeTexts) Peek(id string) (docModel.Extraction, bool) {
	e, ok := f[id]
	return e, ok
}

type harness struct {
	handler   http.Handler
	sessions  *fakeSessions
	jobs      *fakeJobs
	registry  *registry.Registry
	uploadDir string
	texts     fakeTexts
}

func newHarness(t *testing.T, auth config.AuthConfig, serverCfg config.ServerConfig) *harness {
	t.Helper()
	dir := t.TempDir()
	uploadDir := filepath.Join(dir, "uploads")
	blobs, err := uploads.New(uploadDir)
	require.NoError(t, err)
	reg, err := registry.Open(filepath.Join(dir, "registry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close() })

	h := &harness{
		sessions:  &fakeSessions{turns: map[string][]chatModel.Turn{}},
		jobs:      &fakeJobs{jobs: map[string]jobModel.Job{}},
		registry:  reg,
		uploadDir: uploadDir,
		texts:     fakeTexts{},
	}
	apiHandler := handlers.New(handlers.Deps{
		Sessions:       h.sessions,
		Documents:      reg,
		Blobs:          blobs,
		Jobs:           h.jobs,
		References:     fetch.New(time.Second, 0),
		Texts:          h.texts,
		Strategy:       config.StrategyFull,
		MaxUploadBytes: 1 << 20,
	})
	h.handler = Routes(apiHandler, middleware.NewChain(auth, serverCfg), serverCfg)
	return h
}

func openHarness(t *testing.T) *harness {
	return newHarness(t, config.AuthConfig{Bypass: true}, config.ServerConfig{})
}

func (h *harness) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	req.RemoteAddr = "192.0.2.1:1234"
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func uploadRequest(t *testing.T, name string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func chatRequest(t *testing.T, body api.ChatRequest) *http.Request {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (h *harness) upload(t *testing.T) string {
	t.Helper()
	rec := h.do(t, uploadRequest(t, "handbook.pdf", samplePDF))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	return decode[api.UploadResponse](t, rec).DocumentId
}

func TestUpload_RejectsNonPDFBeforeStoring(t *testing.T) {
	h := openHarness(t)
	rec := h.do(t, uploadRequest(t, "notes.txt", []byte("hello, plain text")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[api.ErrorBody](t, rec)
	assert.Equal(t, string(errorModel.InvalidFormat), body.Kind)
	assert.False(t, body.Retry)

	entries, err := os.ReadDir(h.uploadDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Empty(t, h.jobs.jobs)
}

func TestUpload_StoresRegistersAndQueuesOnce(t *testing.T) {
	h := openHarness(t)
	rec := h.do(t, uploadRequest(t, "handbook.pdf", samplePDF))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	res := decode[api.UploadResponse](t, rec)
	sum := sha256.Sum256(samplePDF)
	assert.Equal(t, hex.EncodeToString(sum[:]), res.DocumentId)
	assert.Equal(t, "handbook.pdf", res.Name)
	assert.Equal(t, string(docModel.StatusPending), res.Status)
	assert.Equal(t, "/status/"+res.JobId, res.StatusURL)

	doc, err := h.registry.Get(res.DocumentId)
	require.NoError(t, err)
	assert.Equal(t, int64(len(samplePDF)), doc.Size)

	again := h.do(t, uploadRequest(t, "copy.pdf", samplePDF))
	assert.Equal(t, http.StatusOK, again.Code)
	assert.Len(t, h.jobs.jobs, 1)

	status := h.do(t, httptest.NewRequest(http.MethodGet, res.StatusURL, nil))
	require.Equal(t, http.StatusOK, status.Code)
	job := decode[api.JobResponse](t, status)
	assert.Equal(t, res.DocumentId, job.DocumentId)
	assert.Equal(t, string(jobModel.JobStatusQueued), job.Status)
}

func TestUpload_TooLarge(t *testing.T) {
	h := openHarness(t)
	// under the multipart read limit, over the per-file limit
	big := append(append([]byte{}, samplePDF...), bytes.Repeat([]byte("x"), 1<<20+300<<10)...)
	rec := h.do(t, uploadRequest(t, "big.pdf", big))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestChat_Validation(t *testing.T) {
	h := openHarness(t)
	tests := []struct {
		name string
		body api.ChatRequest
		code int
	}{
		{"missing message", api.ChatRequest{DocumentId: "x"}, http.StatusBadRequest},
		{"no reference", api.ChatRequest{Message: "hi"}, http.StatusBadRequest},
		{"both references", api.ChatRequest{Message: "hi", DocumentId: "x", PdfURL: "https://example.com/a.pdf"}, http.StatusBadRequest},
		{"bad url", api.ChatRequest{Message: "hi", PdfURL: "ftp://example.com/a.pdf"}, http.StatusBadRequest},
		{"unknown document", api.ChatRequest{Message: "hi", DocumentId: "missing"}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := h.do(t, chatRequest(t, tt.body))
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
			res := decode[api.ChatResponse](t, rec)
			require.NotNil(t, res.Error)
			assert.Equal(t, tt.code, res.Error.Code)
		})
	}
}

func TestChat_AnswersAndMarksDocumentReady(t *testing.T) {
	h := openHarness(t)
	id := h.upload(t)
	h.texts[id] = docModel.Extraction{Text: "text", PageCount: 3}

	var loaded []byte
	h.sessions.ask = func(ctx context.Context, ref docModel.Reference, question string) (chatModel.Answer, error) {
		data, err := ref.Loader.Load(ctx)
		require.NoError(t, err)
		loaded = data
		return chatModel.Answer{DocumentId: ref.Id, Text: "25 days"}, nil
	}

	rec := h.do(t, chatRequest(t, api.ChatRequest{Message: "How much vacation?", DocumentId: id}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[api.ChatResponse](t, rec)
	assert.Equal(t, "25 days", res.Response)
	assert.False(t, res.Blocked)
	assert.Nil(t, res.Error)
	assert.Equal(t, samplePDF, loaded)

	doc, err := h.registry.Get(id)
	require.NoError(t, err)
	assert.Equal(t, docModel.StatusReady, doc.Status)
	assert.Equal(t, 3, doc.Pages)
}

func TestChat_BlockedIsNotAnError(t *testing.T) {
	h := openHarness(t)
	id := h.upload(t)
	h.sessions.ask = func(_ context.Context, ref docModel.Reference, _ string) (chatModel.Answer, error) {
		return chatModel.Answer{DocumentId: ref.Id, Text: errorModel.BlockedFallback, Blocked: true}, nil
	}

	rec := h.do(t, chatRequest(t, api.ChatRequest{Message: "something unsafe", DocumentId: id}))
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[api.ChatResponse](t, rec)
	assert.True(t, res.Blocked)
	assert.Equal(t, errorModel.BlockedFallback, res.Response)
}

func TestChat_InitFailureCarriesCauseAndMarksFailed(t *testing.T) {
	h := openHarness(t)
	id := h.upload(t)
	h.sessions.ask = func(context.Context, docModel.Reference, string) (chatModel.Answer, error) {
		cause := errorModel.New(errorModel.ExtractionFailed, "extract", fmt.Errorf("broken xref"))
		return chatModel.Answer{}, errorModel.New(errorModel.SessionInitFailed, "session.init", cause)
	}

	rec := h.do(t, chatRequest(t, api.ChatRequest{Message: "anything?", DocumentId: id}))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	res := decode[api.ChatResponse](t, rec)
	require.NotNil(t, res.Error)
	assert.Equal(t, string(errorModel.ExtractionFailed), res.Error.Kind)

	doc, err := h.registry.Get(id)
	require.NoError(t, err)
	assert.Equal(t, docModel.StatusFailed, doc.Status)
}

func TestChat_TimeoutIsRetryable(t *testing.T) {
	h := openHarness(t)
	id := h.upload(t)
	h.sessions.ask = func(context.Context, docModel.Reference, string) (chatModel.Answer, error) {
		return chatModel.Answer{}, errorModel.New(errorModel.Timeout, "session.ask", context.DeadlineExceeded)
	}

	rec := h.do(t, chatRequest(t, api.ChatRequest{Message: "slow?", DocumentId: id}))
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	res := decode[api.ChatResponse](t, rec)
	require.NotNil(t, res.Error)
	assert.True(t, res.Error.Retry)

	doc, _ := h.registry.Get(id)
	assert.Equal(t, docModel.StatusPending, doc.Status, "a timed out turn says nothing about the document")
}

func TestChat_UrlReferenceIsRegistered(t *testing.T) {
	h := openHarness(t)
	var gotId string
	h.sessions.ask = func(_ context.Context, ref docModel.Reference, _ string) (chatModel.Answer, error) {
		gotId = ref.Id
		return chatModel.Answer{DocumentId: ref.Id, Text: "ok"}, nil
	}

	rec := h.do(t, chatRequest(t, api.ChatRequest{Message: "hi", PdfURL: "HTTPS://Example.com/a.pdf#p2"}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, fetch.DocumentId("https://example.com/a.pdf"), gotId)

	doc, err := h.registry.Get(gotId)
	require.NoError(t, err)
	assert.Equal(t, docModel.OriginURL, doc.Origin)
	assert.Equal(t, "https://example.com/a.pdf", doc.Name)
}

func TestPdf_ServesStoredBytes(t *testing.T) {
	h := openHarness(t)
	id := h.upload(t)

	rec := h.do(t, httptest.NewRequest(http.MethodGet, "/pdf/"+id, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "handbook.pdf")
	assert.Equal(t, samplePDF, rec.Body.Bytes())

	missing := h.do(t, httptest.NewRequest(http.MethodGet, "/pdf/nope", nil))
	assert.Equal(t, http.StatusNotFound, missing.Code)
}

func TestDocuments_GetHistoryDelete(t *testing.T) {
	h := openHarness(t)
	id := h.upload(t)
	now := time.Now().UTC()
	h.sessions.turns[id] = []chatModel.Turn{
		{Role: chatModel.RoleUser, Text: "q", At: now},
		{Role: chatModel.RoleAssistant, Text: "a", At: now},
	}

	rec := h.do(t, httptest.NewRequest(http.MethodGet, "/documents/"+id, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	doc := decode[api.DocumentResponse](t, rec)
	assert.Equal(t, "handbook.pdf", doc.Name)
	assert.Equal(t, string(session.NoSession), doc.Session)

	rec = h.do(t, httptest.NewRequest(http.MethodGet, "/chat/"+id+"/history", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	history := decode[api.HistoryResponse](t, rec)
	require.Len(t, history.Messages, 2)
	assert.Equal(t, "user", history.Messages[0].Role)

	rec = h.do(t, httptest.NewRequest(http.MethodDelete, "/documents/"+id, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{id}, h.sessions.closed)
	entries, _ := os.ReadDir(h.uploadDir)
	assert.Empty(t, entries)

	rec = h.do(t, httptest.NewRequest(http.MethodGet, "/documents/"+id, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = h.do(t, httptest.NewRequest(http.MethodGet, "/chat/unknown/history", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatus_UnknownJob(t *testing.T) {
	h := openHarness(t)
	rec := h.do(t, httptest.NewRequest(http.MethodGet, "/status/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAuth_TraceAndRateLimit(t *testing.T) {
	h := newHarness(t, config.AuthConfig{Token: token}, config.ServerConfig{RatePerSecond: 0.001, RateBurst: 2})

	rec := h.do(t, httptest.NewRequest(http.MethodGet, "/status/x", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(config.TRACE_HEADER))

	authed := func() *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/status/x", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set(config.TRACE_HEADER, "trace-42")
		return req
	}
	rec = h.do(t, authed())
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "trace-42", rec.Header().Get(config.TRACE_HEADER))

	h.do(t, authed())
	rec = h.do(t, authed())
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.True(t, decode[api.ErrorBody](t, rec).Retry)
}

func TestBanner_NeedsNoToken(t *testing.T) {
	h := newHarness(t, config.AuthConfig{Token: token}, config.ServerConfig{})
	rec := h.do(t, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	info := decode[api.ServiceInfo](t, rec)
	assert.Equal(t, "nexus-ai", info.Service)
	assert.Equal(t, config.StrategyFull, info.Strategy)
}
