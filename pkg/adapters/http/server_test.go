package http

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/pipeprep"
	"github.com/aretw0/pipeprep/pkg/adapters/memory"
	"github.com/aretw0/pipeprep/pkg/domain"
)

type stubDispatcher struct {
	runID string
	reqs  []domain.RunRequest
}

func (d *stubDispatcher) HandleRun(ctx context.Context, req domain.RunRequest) (string, error) {
	d.reqs = append(d.reqs, req)
	return d.runID, nil
}

type stubParams struct {
	vars []domain.Variable
}

func (p stubParams) FetchProcessingParams(ctx context.Context, pipelineID, nodeID string) (*domain.ProcessingParams, error) {
	return &domain.ProcessingParams{Variables: p.vars}, nil
}

type stubUploader struct{}

func (stubUploader) Upload(ctx context.Context, name, mimeType string, size int64, r io.Reader) (domain.FileInfo, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return domain.FileInfo{}, err
	}
	return domain.FileInfo{ID: "up-" + name, Name: name, MimeType: mimeType, Size: int64(len(body))}, nil
}

type stubWatcher struct {
	events chan struct{}
}

func (w stubWatcher) Watch(ctx context.Context) (<-chan struct{}, error) {
	return w.events, nil
}

func testGraph() *memory.Graph {
	return memory.NewGraph(
		domain.GraphNode{ID: "llm", Data: domain.NodeConfig{Type: "llm", Title: "LLM"}},
		domain.GraphNode{ID: "upload", Data: domain.NodeConfig{Type: domain.NodeTypeDatasource, Title: "Upload", ProviderType: domain.KindLocalFile}},
		domain.GraphNode{ID: "drive", Data: domain.NodeConfig{Type: domain.NodeTypeDatasource, Title: "Drive", ProviderType: domain.KindOnlineDrive}},
	)
}

func newTestHandler(t *testing.T, svcOpts []pipeprep.Option, opts ...Option) (http.Handler, *StreamManager) {
	t.Helper()
	streams := NewStreamManager(nil)
	svc, err := pipeprep.New("p1", testGraph(), append(svcOpts, pipeprep.WithListener(streams))...)
	require.NoError(t, err)
	return NewHandler(svc, append(opts, WithStreams(streams))...), streams
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealthAndInfo(t *testing.T) {
	h, _ := newTestHandler(t, nil)

	w := do(t, h, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, h, "GET", "/info", nil)
	require.Equal(t, http.StatusOK, w.Code)
	info := decode[map[string]string](t, w)
	assert.Equal(t, pipeprep.Version, info["version"])
	assert.Equal(t, "1.0.0", info["api_version"])

	w = do(t, h, "GET", "/openapi.yaml", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "openapi: 3.0.3")
}

func TestListDatasources(t *testing.T) {
	h, _ := newTestHandler(t, nil)

	w := do(t, h, "GET", "/datasources", nil)
	require.Equal(t, http.StatusOK, w.Code)
	options := decode[[]domain.DatasourceOption](t, w)
	require.Len(t, options, 2)
	assert.Equal(t, "upload", options[0].Value)
	assert.Equal(t, "drive", options[1].Value)
}

func TestSessionFlow(t *testing.T) {
	dispatcher := &stubDispatcher{runID: "run-9"}
	h, _ := newTestHandler(t, []pipeprep.Option{pipeprep.WithDispatcher(dispatcher)})

	w := do(t, h, "POST", "/sessions", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	view := decode[pipeprep.View](t, w)
	id := view.Session.ID
	assert.Equal(t, "upload", view.Session.Datasource.NodeID)

	w = do(t, h, "PUT", "/sessions/"+id+"/datasource", map[string]string{"node_id": "drive"})
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, h, "POST", "/sessions/"+id+"/next", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, h, "PUT", "/sessions/"+id+"/sources", map[string]any{"selected_file_ids": []string{"f1"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[pipeprep.View](t, w).Ready)

	w = do(t, h, "POST", "/sessions/"+id+"/next", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.StepProcessAndSubmit, decode[pipeprep.View](t, w).Session.Step)

	w = do(t, h, "POST", "/sessions/"+id+"/process", map[string]any{"inputs": map[string]any{"a": 1}})
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "run-9", decode[ProcessResponse](t, w).RunID)
	require.Len(t, dispatcher.reqs, 1)
	assert.Equal(t, domain.KindOnlineDrive, dispatcher.reqs[0].DatasourceType)

	w = do(t, h, "POST", "/sessions/"+id+"/process", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, h, "GET", "/sessions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{id}, decode[[]string](t, w))

	w = do(t, h, "DELETE", "/sessions/"+id, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, h, "GET", "/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSelectDatasourceErrors(t *testing.T) {
	h, _ := newTestHandler(t, nil)

	w := do(t, h, "PUT", "/sessions/missing/datasource", map[string]string{"node_id": "drive"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	id := decode[pipeprep.View](t, do(t, h, "POST", "/sessions", nil)).Session.ID

	w = do(t, h, "PUT", "/sessions/"+id+"/datasource", map[string]string{"node_id": "llm"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, "PUT", "/sessions/"+id+"/datasource", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProcessValidationFailure(t *testing.T) {
	params := stubParams{vars: []domain.Variable{
		{Variable: "chunk_size", Label: "Chunk Size", Type: domain.VarNumber, Required: true},
	}}
	dispatcher := &stubDispatcher{runID: "run-1"}
	h, _ := newTestHandler(t, []pipeprep.Option{
		pipeprep.WithParamFetcher(params),
		pipeprep.WithDispatcher(dispatcher),
	})

	id := decode[pipeprep.View](t, do(t, h, "POST", "/sessions", nil)).Session.ID
	do(t, h, "PUT", "/sessions/"+id+"/datasource", map[string]string{"node_id": "drive"})
	do(t, h, "PUT", "/sessions/"+id+"/sources", map[string]any{"selected_file_ids": []string{"f1"}})
	require.Equal(t, http.StatusOK, do(t, h, "POST", "/sessions/"+id+"/next", nil).Code)

	w := do(t, h, "POST", "/sessions/"+id+"/params", nil)
	require.Equal(t, http.StatusOK, w.Code)
	loaded := decode[ParamsResponse](t, w)
	assert.True(t, loaded.Applied)
	require.Len(t, loaded.Variables, 1)
	require.NotNil(t, loaded.Schema)
	assert.Equal(t, []string{"chunk_size"}, loaded.Schema.Required)
	require.Contains(t, loaded.Schema.Properties, "chunk_size")
	assert.True(t, loaded.Schema.Properties["chunk_size"].Value.Type.Is("number"))

	w = do(t, h, "POST", "/sessions/"+id+"/process", map[string]any{"inputs": map[string]any{}})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	resp := decode[ErrorResponse](t, w)
	require.NotNil(t, resp.Notification)
	assert.Equal(t, domain.NotifyError, resp.Notification.Type)
	assert.NotEmpty(t, resp.Violations)
	assert.Empty(t, dispatcher.reqs)
}

func TestUploadFile(t *testing.T) {
	h, _ := newTestHandler(t, []pipeprep.Option{pipeprep.WithUploader(stubUploader{})})
	id := decode[pipeprep.View](t, do(t, h, "POST", "/sessions", nil)).Session.ID

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "notes.txt")
	require.NoError(t, err)
	part.Write([]byte("hello"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/sessions/"+id+"/files", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	view := decode[pipeprep.View](t, w)
	require.Len(t, view.Session.Sources.LocalFiles, 1)
	assert.Equal(t, "up-notes.txt", view.Session.Sources.LocalFiles[0].File.ID)
	assert.True(t, view.Ready)

	req = httptest.NewRequest("POST", "/sessions/"+id+"/files", strings.NewReader("not multipart"))
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadFileWithoutUploader(t *testing.T) {
	h, _ := newTestHandler(t, nil)
	id := decode[pipeprep.View](t, do(t, h, "POST", "/sessions", nil)).Session.ID

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("file", "a.txt")
	part.Write([]byte("x"))
	mw.Close()

	req := httptest.NewRequest("POST", "/sessions/"+id+"/files", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestPreview(t *testing.T) {
	h, _ := newTestHandler(t, []pipeprep.Option{pipeprep.WithPreviewLimit(2)})
	outputs := map[string]any{
		"chunk_structure": "text_model",
		"preview":         []map[string]any{{"content": "a"}, {"content": "b"}, {"content": "c"}},
	}

	w := do(t, h, "POST", "/preview", outputs)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		ChunkStructure string           `json:"chunk_structure"`
		Chunks         []map[string]any `json:"chunks"`
		Limit          int              `json:"limit"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "text_model", resp.ChunkStructure)
	assert.Len(t, resp.Chunks, 2)
	assert.Equal(t, 2, resp.Limit)

	w = do(t, h, "POST", "/preview?limit=3", outputs)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Chunks, 3)

	w = do(t, h, "POST", "/preview?format=markdown", outputs)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "## General chunks (2)")

	w = do(t, h, "POST", "/preview?limit=abc", outputs)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, "POST", "/preview", map[string]any{"chunk_structure": "qa_model"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, "POST", "/preview", map[string]any{"chunk_structure": "graph_model", "preview": []any{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubscribeEvents_Global(t *testing.T) {
	events := make(chan struct{}, 1)
	events <- struct{}{}
	close(events)
	h, _ := newTestHandler(t, nil, WithWatcher(stubWatcher{events: events}))

	w := do(t, h, "GET", "/events", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "event: ping")
	assert.Contains(t, body, "data: reload")
}

func TestSubscribeEvents_GlobalWithoutWatcher(t *testing.T) {
	h, _ := newTestHandler(t, nil)
	w := do(t, h, "GET", "/events", nil)
	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestSubscribeEvents_Session(t *testing.T) {
	h, streams := newTestHandler(t, nil)
	srv := httptest.NewServer(h)
	defer srv.Close()

	id := decode[pipeprep.View](t, do(t, h, "POST", "/sessions", nil)).Session.ID

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, "GET", srv.URL+"/events?session_id="+id+"&watch=datasource", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := bufio.NewScanner(resp.Body)
	require.True(t, lines.Scan())
	assert.Equal(t, "event: ping", lines.Text())
	require.Eventually(t, func() bool { return streams.Subscribers(id) == 1 }, time.Second, 10*time.Millisecond)

	w := do(t, h, "PUT", "/sessions/"+id+"/datasource", map[string]string{"node_id": "drive"})
	require.Equal(t, http.StatusOK, w.Code)

	var got []string
	for lines.Scan() {
		if line := lines.Text(); line != "" {
			got = append(got, line)
		}
		if len(got) == 3 {
			break
		}
	}
	require.Len(t, got, 3)
	assert.Equal(t, "data: connected", got[0])
	assert.Equal(t, "event: diff", got[1])
	assert.Contains(t, got[2], `"nodeId":"drive"`)
}

func TestWatchFilter(t *testing.T) {
	step := domain.StepProcessAndSubmit
	stepDiff := Event{Name: "diff", diff: &domain.SessionDiff{SessionID: "s", Step: &step}}
	notice := Event{Name: "notification", Data: `{"type":"error"}`}

	assert.True(t, watches(stepDiff, nil))
	assert.True(t, watches(stepDiff, []string{"sources", " step"}))
	assert.False(t, watches(stepDiff, []string{"sources"}))
	assert.True(t, watches(notice, []string{"sources"}))
}
