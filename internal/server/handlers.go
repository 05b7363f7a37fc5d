package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/article-archiver/internal/logger"
	"github.com/jonathan/article-archiver/internal/pipeline"
	"github.com/jonathan/article-archiver/internal/store"
	"github.com/jonathan/article-archiver/internal/types"
)

// RunRequest represents the request body for /api/scraper/run.
// Query is accepted as an alias of Keyword.
type RunRequest struct {
	Keyword   string `json:"keyword,omitempty" validate:"max=200"`
	Query     string `json:"query,omitempty" validate:"max=200"`
	StartDate string `json:"start_date,omitempty" validate:"max=32"`
	EndDate   string `json:"end_date,omitempty" validate:"max=32"`
}

// ArticleResponse is one entry of the list endpoint
type ArticleResponse struct {
	Title         string  `json:"title"`
	Link          string  `json:"link"`
	DatePublished *string `json:"date_published"`
	Content       *string `json:"content"`
	SnapshotFile  *string `json:"snapshot_file"`
	CreatedAt     string  `json:"created_at"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeRunRequest reads an optional JSON body. An empty body means all defaults.
func decodeRunRequest(r *http.Request) (pipeline.Request, error) {
	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		return pipeline.Request{}, &ErrValidation{Field: "body", Message: "invalid JSON: " + err.Error()}
	}

	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return pipeline.Request{}, &ErrValidation{
				Field:   fe.Field(),
				Message: fmt.Sprintf("must be at most %s characters", fe.Param()),
			}
		}
		return pipeline.Request{}, &ErrValidation{Field: "body", Message: err.Error()}
	}

	keyword := strings.TrimSpace(req.Keyword)
	if keyword == "" {
		keyword = strings.TrimSpace(req.Query)
	}
	return pipeline.Request{
		Keyword:   keyword,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
	}.WithDefaults(), nil
}

// acquireRun claims the single run slot or reports a conflict.
func (s *Server) acquireRun(w http.ResponseWriter) bool {
	if s.runs.TryAcquire(1) {
		return true
	}
	err := &ErrRunInProgress{}
	s.errorResponse(w, HTTPStatus(err), err.Error())
	return false
}

// handleRun executes a run and returns its Result.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRunRequest(r)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	if !s.acquireRun(w) {
		return
	}
	defer s.runs.Release(1)

	s.log.Info("run triggered",
		logger.String("keyword", req.Keyword),
		logger.String("start_date", req.StartDate),
		logger.String("end_date", req.EndDate),
	)

	// The run completes even if the client goes away.
	ctx := context.WithoutCancel(r.Context())
	res := pipeline.NewRunner(s.runner).Run(ctx, req)
	s.jsonResponse(w, http.StatusOK, res)
}

// handleRunStream executes a run and streams progress via SSE
func (s *Server) handleRunStream(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRunRequest(r)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	if !s.acquireRun(w) {
		return
	}
	defer s.runs.Release(1)

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	opts := s.runner
	opts.OnProgress = func(event pipeline.ProgressEvent) {
		if err := sse.WriteEvent("progress", event); err != nil {
			s.log.Debug("failed to write SSE event", logger.Error(err))
		}
	}

	res := pipeline.NewRunner(opts).Run(context.WithoutCancel(r.Context()), req)
	if err := sse.WriteEvent("result", res); err != nil {
		s.log.Debug("failed to write SSE result", logger.Error(err))
	}
}

// handleList returns every stored article, newest first.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	articles, err := s.store.List(r.Context())
	if err != nil {
		s.log.Error("failed to list articles", logger.Error(err))
		s.errorResponse(w, http.StatusInternalServerError, "failed to list articles")
		return
	}

	resp := make([]ArticleResponse, 0, len(articles))
	for i := range articles {
		resp = append(resp, toArticleResponse(&articles[i]))
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

func toArticleResponse(a *types.StoredArticle) ArticleResponse {
	resp := ArticleResponse{
		Title:     a.Title,
		Link:      a.Link,
		Content:   a.Content,
		CreatedAt: a.CreatedAt.UTC().Format(time.RFC3339),
	}
	if a.DatePublished != nil {
		d := a.DatePublished.Format(time.DateOnly)
		resp.DatePublished = &d
	}
	if a.HasSnapshot() {
		u := MediaURL(*a.SnapshotFile)
		resp.SnapshotFile = &u
	}
	return resp
}

// MediaURL returns the URL path under which a snapshot name is served.
func MediaURL(name string) string {
	return "/media/" + strings.TrimPrefix(name, "/")
}

// handleMedia serves a stored snapshot as a PDF.
func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	name := path.Clean(r.PathValue("path"))
	if !strings.HasPrefix(name, store.SnapshotDir+"/") {
		s.errorResponse(w, http.StatusNotFound, "not found")
		return
	}

	data, err := s.store.Snapshot(r.Context(), name)
	if err != nil {
		status := HTTPStatus(err)
		if status == http.StatusInternalServerError {
			s.log.Error("failed to load snapshot", logger.String("name", name), logger.Error(err))
		}
		s.errorResponse(w, status, http.StatusText(status))
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", path.Base(name)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.log.Debug("failed to write snapshot", logger.Error(err))
	}
}
