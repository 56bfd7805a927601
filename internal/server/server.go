// Package server exposes the analyzer over HTTP.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"firestige.xyz/pcaplens/internal/config"
	"firestige.xyz/pcaplens/internal/core"
	"firestige.xyz/pcaplens/internal/log"
	"firestige.xyz/pcaplens/internal/metrics"
	"firestige.xyz/pcaplens/internal/pipeline"
	"firestige.xyz/pcaplens/internal/report"
)

// Analyzer runs one analysis pass over a pcap stream.
type Analyzer interface {
	Run(ctx context.Context, r io.Reader) (*report.AnalysisReport, error)
	RuleNames() []string
	Stats() pipeline.MetricsSnapshot
}

// Server is the HTTP API.
type Server struct {
	analyzer  Analyzer
	maxUpload int64
	cfg       config.ServerConfig
	router    *mux.Router

	server *http.Server
	ln     net.Listener
}

// New creates a server for a. The metrics route is mounted when metrics are
// enabled without a listener of their own.
func New(a Analyzer, cfg config.ServerConfig, mc config.MetricsConfig) *Server {
	s := &Server{
		analyzer:  a,
		maxUpload: cfg.MaxUploadBytes,
		cfg:       cfg,
	}

	r := mux.NewRouter()
	r.Use(accessLog)
	// full paths on one router so a method mismatch answers 405
	r.HandleFunc("/api/v1/analyze", s.handleAnalyze).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/rules", s.handleRules).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/stats", s.handleStats).Methods(http.MethodGet)
	r.HandleFunc("/healthz", handleHealth).Methods(http.MethodGet)
	if mc.Enabled && mc.Listen == "" {
		r.Handle(mc.Path, metrics.Handler()).Methods(http.MethodGet)
	}
	s.router = r

	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start binds the listener and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("api server listen: %w", err)
	}
	s.ln = ln

	s.server = &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	log.GetLogger().WithField("addr", ln.Addr().String()).Info("starting api server")

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.GetLogger().WithError(err).Error("api server error")
		}
	}()
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Stop drains in-flight requests until ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	log.GetLogger().Info("stopping api server")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("api server shutdown failed: %w", err)
	}
	log.GetLogger().Info("api server stopped")
	return nil
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = report.FormatJSON
	}
	if !slices.Contains(report.Formats(), format) {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: %q", core.ErrUnknownFormat, format))
		return
	}

	body := http.MaxBytesReader(w, r.Body, s.maxUpload)
	defer body.Close()

	rep, err := s.analyzer.Run(r.Context(), body)
	if err != nil {
		writeError(w, statusOf(err), err)
		return
	}

	var buf bytes.Buffer
	if err := report.Render(&buf, rep, format); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", report.ContentType(format))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"rules": s.analyzer.RuleNames()})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.analyzer.Stats())
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok"))
}

// statusOf maps analysis errors onto HTTP status codes.
func statusOf(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, core.ErrInvalidCapture):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.GetLogger().WithError(err).Debug("write response failed")
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.GetLogger().WithFields(log.Fields{
			"method":  r.Method,
			"path":    r.URL.Path,
			"status":  rec.status,
			"elapsed": time.Since(start).String(),
		}).Debug("http request")
	})
}
