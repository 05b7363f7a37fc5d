package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/article-archiver/internal/browser/browsertest"
	"github.com/jonathan/article-archiver/internal/pipeline"
	"github.com/jonathan/article-archiver/internal/site"
	"github.com/jonathan/article-archiver/internal/store/storetest"
	"github.com/jonathan/article-archiver/internal/types"
)

const emptySearchHTML = `<html><body>
	<div class="tvp-covl__ab">OK</div>
	<button class="header__search">Search</button>
	<input class="search-form__input" /><button class="search-form__search">Go</button>
	<a class="pagination__item pagination__item--last">1</a>
</body></html>`

func testProfile() site.Profile {
	p := site.TVPWorld()
	p.Pauses = site.Pauses{}
	return p
}

// emptySession returns a session whose search yields a single page without results.
func emptySession() *browsertest.Session {
	s := browsertest.New(map[string]string{
		"https://tvpworld.com/":                    emptySearchHTML,
		"https://tvpworld.com/search?query=chopin": emptySearchHTML,
	})
	s.OnClick["button.search-form__search"] = "https://tvpworld.com/search?query=chopin"
	return s
}

func newTestServer(t *testing.T, opener func() pipeline.Options) (*Server, *storetest.Memory) {
	t.Helper()
	st := storetest.NewMemory()
	opts := opener()
	opts.Store = st
	opts.Profile = testProfile()

	reg := prometheus.NewRegistry()
	promauto.With(reg).NewCounter(prometheus.CounterOpts{Name: "archiver_test_total", Help: "test"}).Inc()

	s := New(Config{Port: 0, Runner: opts, Store: st, Gatherer: reg})
	return s, st
}

func withSession(sess *browsertest.Session) func() pipeline.Options {
	return func() pipeline.Options {
		return pipeline.Options{Opener: sess.Opener()}
	}
}

func do(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	s, _ := newTestServer(t, withSession(emptySession()))

	w := do(t, s, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestRunEndpoint_Success(t *testing.T) {
	sess := emptySession()
	s, _ := newTestServer(t, withSession(sess))

	for _, target := range []string{"/api/scraper/run", "/api/scraper/run/"} {
		t.Run(target, func(t *testing.T) {
			w := do(t, s, http.MethodPost, target, `{"keyword":"chopin","start_date":"01.10.2025","end_date":"31.10.2025"}`)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.JSONEq(t, `{"status":"success","saved_count":0}`, w.Body.String())
		})
	}
	assert.Equal(t, 2, sess.CloseCalls)
}

func TestRunEndpoint_EmptyBodyUsesDefaults(t *testing.T) {
	sess := emptySession()
	s, _ := newTestServer(t, withSession(sess))

	w := do(t, s, http.MethodPost, "/api/scraper/run", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "chopin", sess.Typed["input.search-form__input"])
}

func TestRunEndpoint_QueryAlias(t *testing.T) {
	sess := emptySession()
	s, _ := newTestServer(t, withSession(sess))

	w := do(t, s, http.MethodPost, "/api/scraper/run", `{"query":"warsaw"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "warsaw", sess.Typed["input.search-form__input"])
}

func TestRunEndpoint_OpenFailure(t *testing.T) {
	s, _ := newTestServer(t, func() pipeline.Options {
		return pipeline.Options{Opener: browsertest.FailingOpener(errors.New("connection refused"))}
	})

	w := do(t, s, http.MethodPost, "/api/scraper/run", `{}`)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "error", resp["status"])
	assert.Contains(t, resp["message"], "connection refused")
}

func TestRunEndpoint_Validation(t *testing.T) {
	s, _ := newTestServer(t, withSession(emptySession()))

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"keyword":`},
		{"keyword too long", `{"keyword":"` + strings.Repeat("a", 201) + `"}`},
		{"date too long", `{"start_date":"` + strings.Repeat("1", 33) + `"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, s, http.MethodPost, "/api/scraper/run", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), `"status":"error"`)
		})
	}
}

func TestRunEndpoint_Busy(t *testing.T) {
	sess := emptySession()
	s, _ := newTestServer(t, withSession(sess))
	require.True(t, s.runs.TryAcquire(1))
	defer s.runs.Release(1)

	w := do(t, s, http.MethodPost, "/api/scraper/run", `{}`)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "already in progress")
	assert.Empty(t, sess.Navigations)
}

func TestRunEndpoint_CompletesAfterClientCancel(t *testing.T) {
	sess := emptySession()
	s, _ := newTestServer(t, withSession(sess))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/scraper/run", strings.NewReader(`{}`)).WithContext(ctx)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.JSONEq(t, `{"status":"success","saved_count":0}`, w.Body.String())
}

func TestRunStreamEndpoint(t *testing.T) {
	s, _ := newTestServer(t, withSession(emptySession()))

	w := do(t, s, http.MethodPost, "/api/scraper/run/stream", `{}`)

	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	body := w.Body.String()
	assert.Contains(t, body, "event: progress\n")
	assert.Contains(t, body, `"step":"session"`)
	assert.Contains(t, body, "event: result\ndata: {\"status\":\"success\",\"saved_count\":0}\n\n")
}

func TestRunStreamEndpoint_Busy(t *testing.T) {
	sess := emptySession()
	s, _ := newTestServer(t, withSession(sess))
	require.True(t, s.runs.TryAcquire(1))
	defer s.runs.Release(1)

	w := do(t, s, http.MethodPost, "/api/scraper/run/stream", `{}`)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "already in progress")
	assert.Empty(t, sess.Navigations)
}

func TestRoutes_NoSubtreeMatches(t *testing.T) {
	tests := []struct {
		method string
		target string
	}{
		{http.MethodPost, "/api/scraper/run/anything"},
		{http.MethodPost, "/api/scraper/run/stream/extra"},
		{http.MethodGet, "/api/scraper/list/x"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			sess := emptySession()
			s, _ := newTestServer(t, withSession(sess))

			w := do(t, s, tt.method, tt.target, `{}`)

			assert.Contains(t, []int{http.StatusNotFound, http.StatusMethodNotAllowed}, w.Code)
			assert.Empty(t, sess.Navigations)
		})
	}
}

func TestListEndpoint(t *testing.T) {
	s, st := newTestServer(t, withSession(emptySession()))
	ctx := context.Background()
	content := "Body text"

	saved, err := st.Save(ctx, types.CandidateStub{
		Date:  time.Date(2025, time.October, 15, 0, 0, 0, 0, time.UTC),
		Title: "With snapshot",
		Link:  "https://tvpworld.com/1/a",
	}, &content, []byte("%PDF"))
	require.NoError(t, err)
	_, err = st.Save(ctx, types.CandidateStub{Title: "No date", Link: "https://tvpworld.com/2/b"}, nil, nil)
	require.NoError(t, err)

	for _, target := range []string{"/api/scraper/list", "/api/scraper/list/"} {
		w := do(t, s, http.MethodGet, target, "")
		require.Equal(t, http.StatusOK, w.Code)

		var resp []ArticleResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Len(t, resp, 2)

		assert.Equal(t, "With snapshot", resp[0].Title)
		require.NotNil(t, resp[0].DatePublished)
		assert.Equal(t, "2025-10-15", *resp[0].DatePublished)
		require.NotNil(t, resp[0].SnapshotFile)
		assert.Equal(t, "/media/"+*saved.SnapshotFile, *resp[0].SnapshotFile)
		assert.Equal(t, &content, resp[0].Content)

		assert.Nil(t, resp[1].DatePublished)
		assert.Nil(t, resp[1].SnapshotFile)
		assert.Nil(t, resp[1].Content)
	}
}

func TestListEndpoint_EmptyIsArray(t *testing.T) {
	s, _ := newTestServer(t, withSession(emptySession()))

	w := do(t, s, http.MethodGet, "/api/scraper/list", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestMediaEndpoint(t *testing.T) {
	s, st := newTestServer(t, withSession(emptySession()))
	saved, err := st.Save(context.Background(), types.CandidateStub{Title: "t", Link: "https://tvpworld.com/1/a"}, nil, []byte("%PDF-1.4"))
	require.NoError(t, err)

	w := do(t, s, http.MethodGet, MediaURL(*saved.SnapshotFile), "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, "%PDF-1.4", w.Body.String())
}

func TestMediaEndpoint_NotFound(t *testing.T) {
	s, _ := newTestServer(t, withSession(emptySession()))

	tests := []string{
		"/media/pdfs/article_missing.pdf",
		"/media/other/article.pdf",
	}
	for _, target := range tests {
		t.Run(target, func(t *testing.T) {
			w := do(t, s, http.MethodGet, target, "")
			assert.Equal(t, http.StatusNotFound, w.Code)
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t, withSession(emptySession()))

	w := do(t, s, http.MethodGet, "/metrics", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "archiver_test_total 1")
}

func TestCORSPreflight(t *testing.T) {
	s, _ := newTestServer(t, withSession(emptySession()))

	w := do(t, s, http.MethodOptions, "/api/scraper/run", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"validation", &ErrValidation{Field: "keyword", Message: "too long"}, http.StatusBadRequest},
		{"busy", &ErrRunInProgress{}, http.StatusConflict},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, HTTPStatus(tt.err))
		})
	}
}

func TestErrValidation(t *testing.T) {
	err := &ErrValidation{Field: "keyword", Message: "must be at most 200 characters"}
	assert.Equal(t, "validation error: keyword - must be at most 200 characters", err.Error())
}
