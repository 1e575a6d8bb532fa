package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/medqa/internal/config"
	"github.com/hyperjump/medqa/internal/index"
	"github.com/hyperjump/medqa/internal/metrics"
	"github.com/hyperjump/medqa/internal/models"
	"github.com/hyperjump/medqa/internal/storage"
	"go.uber.org/zap"
)

type mockPipeline struct {
	result *models.Result
	err    error
	got    string
}

func (m *mockPipeline) Run(_ context.Context, query string) (*models.Result, error) {
	m.got = query
	if strings.TrimSpace(query) == "" {
		return nil, models.ErrEmptyQuery
	}
	return m.result, m.err
}

type mockStatus struct{ stats index.Stats }

func (m mockStatus) Stats() index.Stats { return m.stats }

func newTestServer(p Querier, st StatusProvider, m *metrics.Metrics) *httptest.Server {
	srv := NewServer(p, st, m, &config.ServerConfig{Host: "localhost", Port: 8080}, time.Second, zap.NewNop())
	return httptest.NewServer(srv.Router())
}

func post(t *testing.T, url, body string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, data
}

func sampleResult() *models.Result {
	long := strings.Repeat("word ", 60)
	chunks := models.RetrievalResult{
		{Chunk: models.Chunk{ID: "row0-2", RowID: 0, Text: "anesthesia."}, Score: 0.57},
		{Chunk: models.Chunk{ID: "row0-1", RowID: 0, Text: long}, Score: 0.33},
		{Chunk: models.Chunk{ID: "row1-0", RowID: 1, Text: "local anesthesia"}, Score: 0.28},
		{Chunk: models.Chunk{ID: "row7-0", RowID: 7, Text: "extra"}, Score: 0.1},
	}
	return &models.Result{
		Query:   "What anesthesia was used?",
		Answer:  &models.Answer{Text: "General anesthesia [Source: Row 0].", Citations: []int{0}, Sources: chunks},
		Context: chunks,
	}
}

func TestHandleAsk(t *testing.T) {
	p := &mockPipeline{result: sampleResult()}
	ts := newTestServer(p, nil, nil)
	defer ts.Close()

	resp, body := post(t, ts.URL+"/api/v1/ask", `{"query":"What anesthesia was used?"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d: %s", resp.StatusCode, body)
	}
	if resp.Header.Get(RequestIDHeader) == "" {
		t.Error("response should carry a request ID")
	}
	var out askResponse
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatal(err)
	}
	if out.Answer != "General anesthesia [Source: Row 0]." || out.Refused {
		t.Errorf("unexpected answer: %+v", out)
	}
	if len(out.Sources) != MaxSources {
		t.Fatalf("sources: got %d, want %d", len(out.Sources), MaxSources)
	}
	if out.Sources[0].RowID != 0 || out.Sources[2].RowID != 1 {
		t.Errorf("source order wrong: %+v", out.Sources)
	}
	if n := len([]rune(out.Sources[1].Snippet)); n != 203 {
		t.Errorf("snippet should be 200 runes plus ellipsis, got %d", n)
	}
	if len(out.Citations) != 1 || out.Citations[0] != 0 {
		t.Errorf("citations: %v", out.Citations)
	}
}

func TestHandleAsk_emptyQuery(t *testing.T) {
	ts := newTestServer(&mockPipeline{}, nil, nil)
	defer ts.Close()

	for _, body := range []string{`{"query":""}`, `{"query":"   "}`, `{}`} {
		resp, data := post(t, ts.URL+"/api/v1/ask", body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: status %d", body, resp.StatusCode)
		}
		var out errorResponse
		if err := json.Unmarshal(data, &out); err != nil {
			t.Fatal(err)
		}
		if out.Error != EmptyQueryWarning || out.Kind != "empty_query" {
			t.Errorf("%s: got %+v", body, out)
		}
	}
}

func TestHandleAsk_invalidBody(t *testing.T) {
	ts := newTestServer(&mockPipeline{}, nil, nil)
	defer ts.Close()
	resp, _ := post(t, ts.URL+"/api/v1/ask", `not json`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status: got %d", resp.StatusCode)
	}
}

func TestHandleAsk_failures(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{"embedding", &models.EmbeddingServiceError{Model: "m", Attempts: 5, Err: errors.New("429")}, http.StatusBadGateway, "embedding_service"},
		{"generation", &models.GenerationError{Model: "m", Attempts: 3, Err: errors.New("quota")}, http.StatusBadGateway, "generation"},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout"},
		{"mismatch", &models.EmbeddingMismatchError{Field: "model"}, http.StatusInternalServerError, "embedding_mismatch"},
		{"internal", errors.New("boom"), http.StatusInternalServerError, "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(&mockPipeline{err: tt.err}, nil, nil)
			defer ts.Close()
			resp, data := post(t, ts.URL+"/api/v1/ask", `{"query":"q"}`)
			if resp.StatusCode != tt.status {
				t.Errorf("status: got %d, want %d", resp.StatusCode, tt.status)
			}
			var out errorResponse
			if err := json.Unmarshal(data, &out); err != nil {
				t.Fatal(err)
			}
			if out.Error != PipelineFailure || out.Kind != tt.kind {
				t.Errorf("got %+v", out)
			}
			if out.RequestID == "" || out.RequestID != resp.Header.Get(RequestIDHeader) {
				t.Errorf("request id mismatch: body %q header %q", out.RequestID, resp.Header.Get(RequestIDHeader))
			}
			if strings.Contains(string(data), "quota") || strings.Contains(string(data), "boom") {
				t.Error("technical details must not leak to the banner")
			}
		})
	}
}

func TestRequestID_propagated(t *testing.T) {
	ts := newTestServer(&mockPipeline{}, nil, nil)
	defer ts.Close()
	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got := resp.Header.Get(RequestIDHeader); got != "abc-123" {
		t.Errorf("request id: got %q", got)
	}
}

func TestHandleStatus(t *testing.T) {
	st := mockStatus{stats: index.Stats{State: "ready", Records: 2, Chunks: 5, EmbeddingModel: "hashing-v1", Dimensions: 1024}}
	ts := newTestServer(&mockPipeline{}, st, nil)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/status")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d", resp.StatusCode)
	}
	var out index.Stats
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.State != "ready" || out.Chunks != 5 || out.Dimensions != 1024 {
		t.Errorf("unexpected stats: %+v", out)
	}

	ts2 := newTestServer(&mockPipeline{}, nil, nil)
	defer ts2.Close()
	resp2, err := http.Get(ts2.URL + "/api/v1/status")
	if err != nil {
		t.Fatal(err)
	}
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status without index: got %d", resp2.StatusCode)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	m := metrics.New()
	m.IndexLoaded(2, 5)
	ts := newTestServer(&mockPipeline{}, nil, m)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health: got %d", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "medqa_index_chunks 5") {
		t.Errorf("metrics output missing index gauge:\n%s", body)
	}
}

type mockRows struct {
	mockStatus
	rows map[int][]models.Chunk
	err  error
}

func (m mockRows) Row(_ context.Context, rowID int) ([]models.Chunk, error) {
	if m.err != nil {
		return nil, m.err
	}
	chunks, ok := m.rows[rowID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return chunks, nil
}

func TestHandleRow(t *testing.T) {
	rows := mockRows{rows: map[int][]models.Chunk{
		3: {
			{ID: "row3-0", RowID: 3, Index: 0, Offset: 0, Source: "mtsamples.csv", Text: "Carpal tunnel release under"},
			{ID: "row3-1", RowID: 3, Index: 1, Offset: 14, Source: "mtsamples.csv", Text: "release under local anesthesia."},
		},
	}}
	ts := newTestServer(&mockPipeline{}, rows, nil)
	defer ts.Close()

	tests := []struct {
		path       string
		wantStatus int
		wantText   string
	}{
		{"/api/v1/rows/3", http.StatusOK, "Carpal tunnel release under local anesthesia."},
		{"/api/v1/rows/9", http.StatusNotFound, ""},
		{"/api/v1/rows/-1", http.StatusBadRequest, ""},
		{"/api/v1/rows/abc", http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		resp, err := http.Get(ts.URL + tt.path)
		if err != nil {
			t.Fatal(err)
		}
		var out rowResponse
		err = json.NewDecoder(resp.Body).Decode(&out)
		resp.Body.Close()
		if err != nil {
			t.Fatalf("%s: decode: %v", tt.path, err)
		}
		if resp.StatusCode != tt.wantStatus {
			t.Errorf("%s: status %d, want %d", tt.path, resp.StatusCode, tt.wantStatus)
		}
		if tt.wantStatus != http.StatusOK {
			continue
		}
		if out.RowID != 3 || out.Chunks != 2 || out.Source != "mtsamples.csv" || out.Text != tt.wantText {
			t.Errorf("%s: got %+v", tt.path, out)
		}
	}
}

func TestHandleRow_unavailable(t *testing.T) {
	ts := newTestServer(&mockPipeline{}, mockStatus{}, nil)
	defer ts.Close()
	resp, err := http.Get(ts.URL + "/api/v1/rows/0")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status provider without rows: got %d", resp.StatusCode)
	}

	failing := newTestServer(&mockPipeline{}, mockRows{err: errors.New("disk I/O error")}, nil)
	defer failing.Close()
	resp, err = http.Get(failing.URL + "/api/v1/rows/0")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("row lookup failure: got %d", resp.StatusCode)
	}
}
