// Package server is the HTTP front door: GET /<absolute-url> summarizes the
// page or video behind the URL and returns the summary as plain text.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"mvdan.cc/xurls/v2"

	"pagebrief/internal/source"
)

const (
	readHeaderTimeout = 10 * time.Second

	landingPage = `<!DOCTYPE html>
<html>
<head><title>pagebrief</title></head>
<body>
<h1>pagebrief</h1>
<p>Prepend this host to any article or YouTube URL to get a short summary:</p>
<pre>GET /https://example.com/some-article</pre>
</body>
</html>
`
)

// Engine is the summarization capability consumed by the front door.
type Engine interface {
	Summarize(ctx context.Context, text string, targetWords int) (string, error)
}

// Extractor turns a URL into a text document.
type Extractor interface {
	Extract(ctx context.Context, url string) (source.Document, error)
}

type Server struct {
	httpServer  *http.Server
	engine      Engine
	articles    Extractor
	transcripts Extractor
	targetWords int
	urlRe       *regexp.Regexp
	log         *slog.Logger
}

func New(
	port int,
	engine Engine,
	articles Extractor,
	transcripts Extractor,
	targetWords int,
	log *slog.Logger,
) (*Server, error) {
	urlRe, err := xurls.StrictMatchingScheme("https?://")
	if err != nil {
		return nil, fmt.Errorf("create regexp: %w", err)
	}

	s := &Server{
		engine:      engine,
		articles:    articles,
		transcripts: transcripts,
		targetWords: targetWords,
		urlRe:       urlRe,
		log:         log,
	}

	// The payload URL lives inside the request path, so a ServeMux is out:
	// its path cleaning would collapse the "//" after the scheme.
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           http.HandlerFunc(s.handle),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	return s, nil
}

func (s *Server) Start() error {
	if err := s.httpServer.ListenAndServe(); err != nil &&
		!errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen and serve: %w", err)
	}

	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	return nil
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)

		return
	}

	switch r.URL.Path {
	case "/favicon.ico":
		w.WriteHeader(http.StatusNoContent)
	case "/", "":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(landingPage))
	default:
		s.handleSummarize(w, r)
	}
}

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	target := strings.TrimPrefix(r.URL.RequestURI(), "/")
	if !s.isAbsoluteURL(target) {
		http.Error(w, "request path must be an absolute http(s) URL", http.StatusBadRequest)

		return
	}

	extractor := s.articles
	if source.IsVideoURL(target) {
		extractor = s.transcripts
	}

	doc, err := extractor.Extract(ctx, target)
	if err != nil {
		if errors.Is(err, source.ErrNoContent) || errors.Is(err, source.ErrUnsupportedURL) {
			http.Error(w, "unable to extract content from URL", http.StatusBadRequest)

			return
		}

		s.log.ErrorContext(ctx, "Failed to fetch source",
			"error", err,
			"url", target)
		http.Error(w, "failed to fetch source", http.StatusInternalServerError)

		return
	}

	summary, err := s.engine.Summarize(ctx, doc.Content(), s.targetWords)
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to summarize",
			"error", err,
			"url", target,
			"wordCount", len(strings.Fields(doc.Content())))
		http.Error(w, "failed to summarize content", http.StatusInternalServerError)

		return
	}

	s.log.InfoContext(ctx, "Summary is produced",
		"url", target,
		"summaryWords", len(strings.Fields(summary)))

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(summary))
}

func (s *Server) isAbsoluteURL(raw string) bool {
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		return false
	}

	return s.urlRe.FindString(raw) == raw
}
