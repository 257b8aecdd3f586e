// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package replay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/pdiddy/plutus/internal/fallback"
	"github.com/pdiddy/plutus/internal/stream"
)

const shutdownTimeout = 5 * time.Second

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Server) { s.log = log }
}

// WithToken requires "Authorization: Bearer <token>" on every request.
func WithToken(token string) Option {
	return func(s *Server) { s.token = token }
}

// Server plays a Script to every client.
type Server struct {
	script *Script
	log    logrus.FieldLogger
	token  string
	router chi.Router
}

// NewServer returns a Server for script.
func NewServer(script *Script, opts ...Option) *Server {
	s := &Server{script: script, log: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Use(s.authorize)

	r.Get(stream.StreamPath, s.handleStream)
	r.Post(fallback.ReportPath, s.handleGenerate)
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.WithField("addr", ln.Addr().String()).Info("replay server listening")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   ww.Status(),
			"duration": time.Since(start).Round(time.Millisecond),
		}).Info("request")
	})
}

func (s *Server) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token != "" && r.Header.Get("Authorization") != "Bearer "+s.token {
			writeDetail(w, http.StatusUnauthorized, "invalid or missing token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handleStream sends the script as server-sent events, one frame per
// event, paced by the script's rate.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if strings.TrimSpace(r.URL.Query().Get("description")) == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "description is required")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	flusher, canFlush := w.(http.Flusher)
	limiter := s.limiter()

	for i, f := range s.script.Frames {
		if s.script.DropAfter > 0 && i >= s.script.DropAfter {
			s.log.WithField("sent", i).Info("dropping stream")
			return
		}
		if err := limiter.Wait(r.Context()); err != nil {
			return
		}
		if _, err := w.Write(encodeEvent(f)); err != nil {
			return
		}
		if canFlush {
			flusher.Flush()
		}
	}
}

// handleGenerate answers the non-streaming endpoint with the script's
// outcome.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Description string `json:"description"`
		MaxResults  int    `json:"max_results"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Description) == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "description is required")
		return
	}

	terminal, sig, err := s.script.Outcome()
	switch {
	case err != nil:
		writeDetail(w, http.StatusInternalServerError, err.Error())
	case sig != nil:
		writeDetail(w, http.StatusInternalServerError, sig.Message)
	default:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(terminal)
	}
}

func (s *Server) limiter() *rate.Limiter {
	if s.script.FramesPerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(s.script.FramesPerSecond), 1)
}

// encodeEvent frames payload as one event, one data line per payload line.
func encodeEvent(payload []byte) []byte {
	var b bytes.Buffer
	for _, line := range bytes.Split(payload, []byte("\n")) {
		b.WriteString("data: ")
		b.Write(line)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	return b.Bytes()
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}
