// Package server is the Streaming Server (Component F): the HTTP surface
// for now-playing lookups, cache-status queries, and range-capable
// artifact streaming.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/google/uuid"
	"golang.org/x/net/netutil"

	"github.com/snapetech/audiocache/internal/apperr"
	"github.com/snapetech/audiocache/internal/artifact"
	"github.com/snapetech/audiocache/internal/coordinator"
	"github.com/snapetech/audiocache/internal/metrics"
	"github.com/snapetech/audiocache/internal/model"
	"github.com/snapetech/audiocache/internal/spotify"
	"github.com/snapetech/audiocache/internal/store"
)

// MaxConnections bounds concurrent accepted connections so a burst of
// range-request streaming clients can't exhaust file descriptors.
const MaxConnections = 256

// nowPlayingSource is the subset of *spotify.Client the server depends on,
// narrowed to a seam so handleNowPlaying is testable without a live provider.
type nowPlayingSource interface {
	NowPlaying(ctx context.Context) (*spotify.NowPlaying, error)
}

// Server wires the Cache Coordinator, the Artifact Store, and the External
// Adapter behind an authenticated HTTP API.
type Server struct {
	Addr          string
	APIKey        string
	Coordinator   *coordinator.Coordinator
	Artifact      *artifact.Store
	Store         *store.Store
	Spotify       nowPlayingSource
	Log           *slog.Logger
	ShutdownGrace time.Duration

	httpServer *http.Server
}

func (s *Server) log() *slog.Logger {
	if s.Log != nil {
		return s.Log
	}
	return slog.Default()
}

// Run starts the HTTP server and blocks until ctx is cancelled, then drains
// in-flight requests for up to ShutdownGrace (10 seconds when unset) before
// returning.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/now-playing", s.requireAPIKey(s.handleNowPlaying))
	mux.HandleFunc("/api/play", s.requireAPIKey(s.handlePlay))
	mux.HandleFunc("/api/tracks", s.requireAPIKey(s.handleTracks))
	mux.HandleFunc("/api/stream/", s.requireAPIKey(s.handleStream))
	mux.Handle("/metrics", metrics.Handler())

	handler := s.withRequestID(s.withLogging(s.withBrotli(mux)))

	addr := s.Addr
	if addr == "" {
		addr = ":4000"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	ln = netutil.LimitListener(ln, MaxConnections)

	s.httpServer = &http.Server{Addr: addr, Handler: handler}

	serverErr := make(chan error, 1)
	go func() {
		s.log().Info("server listening", "addr", addr, "max_connections", MaxConnections)
		serverErr <- s.httpServer.Serve(ln)
	}()

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		s.log().Info("server shutting down")
		grace := s.ShutdownGrace
		if grace <= 0 {
			grace = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.log().Warn("server shutdown error", "error", err)
		}
		<-serverErr
		return nil
	}
}

type requestIDKey struct{}

func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type brotliResponseWriter struct {
	http.ResponseWriter
	bw *brotli.Writer
}

func (w *brotliResponseWriter) Write(p []byte) (int, error) {
	return w.bw.Write(p)
}

// withBrotli compresses JSON API responses when the client advertises
// support. Stream responses (already Opus-compressed audio) and /metrics
// (scraped by tooling that doesn't negotiate encodings) are left alone.
func (s *Server) withBrotli(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/stream/") || r.URL.Path == "/metrics" || !strings.Contains(r.Header.Get("Accept-Encoding"), "br") {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Content-Encoding", "br")
		w.Header().Add("Vary", "Accept-Encoding")
		bw := brotli.NewWriterLevel(w, brotli.DefaultCompression)
		defer bw.Close()
		next.ServeHTTP(&brotliResponseWriter{ResponseWriter: w, bw: bw}, r)
	})
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type loggingResponseWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *loggingResponseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *loggingResponseWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(p)
	w.bytes += n
	return n, err
}

func (w *loggingResponseWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lw := &loggingResponseWriter{ResponseWriter: w}
		next.ServeHTTP(lw, r)
		status := lw.status
		if status == 0 {
			status = http.StatusOK
		}
		s.log().Info("http",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes", lw.bytes,
			"duration", time.Since(start).Round(time.Millisecond).String(),
			"request_id", requestID(r.Context()),
		)
		metrics.HTTPRequests.WithLabelValues(r.URL.Path, strconv.Itoa(status)).Inc()
	})
}

// requireAPIKey enforces the X-Api-Key header (or, when the header is absent,
// the apiKey query parameter) using a constant-time comparison, since the key
// is a shared secret and timing differences on a byte-by-byte match would
// leak it.
func (s *Server) requireAPIKey(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get("X-Api-Key")
		if got == "" {
			got = r.URL.Query().Get("apiKey")
		}
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.APIKey)) != 1 {
			writeError(w, apperr.Unauthorized("invalid or missing api key"))
			return
		}
		next(w, r)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := apperr.StatusCode(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.Store.Ping(ctx); err != nil {
		writeError(w, apperr.Storage("metadata store unreachable", err))
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

type nowPlayingResponse struct {
	Status        string `json:"status"`
	Title         string `json:"title,omitempty"`
	Artist        string `json:"artist,omitempty"`
	AlbumImageURL string `json:"albumImageUrl,omitempty"`
	IsPlaying     bool   `json:"isPlaying"`
	TimePlayed    int64  `json:"timePlayed,omitempty"`
	TimeTotal     int64  `json:"timeTotal,omitempty"`
	Timestamp     int64  `json:"timestamp,omitempty"`
	ID            string `json:"id,omitempty"`
}

// handleNowPlaying reports the external provider's currently-playing track
// and eagerly triggers the same Cache Coordinator lookup a play request
// would, so the reported status reflects the cache state machine rather
// than just provider playback state (spec.md §8 scenario 7).
func (s *Server) handleNowPlaying(w http.ResponseWriter, r *http.Request) {
	np, err := s.Spotify.NowPlaying(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if !np.IsPlaying {
		writeJSON(w, nowPlayingResponse{Status: "not_playing"})
		return
	}

	query := buildQuery(np.Artist, np.Title)
	decision, err := s.Coordinator.Lookup(r.Context(), query, np.Title, np.Artist)
	if err != nil {
		writeError(w, apperr.Storage("now-playing lookup failed", err))
		return
	}
	metrics.CacheLookups.WithLabelValues(string(decision.Status)).Inc()

	writeJSON(w, nowPlayingResponse{
		Status:        string(decision.Status),
		Title:         np.Title,
		Artist:        np.Artist,
		AlbumImageURL: np.AlbumImage,
		IsPlaying:     np.IsPlaying,
		TimePlayed:    np.ProgressMs,
		TimeTotal:     np.DurationMs,
		Timestamp:     np.Timestamp.UnixMilli(),
		ID:            np.ID,
	})
}

type playRequest struct {
	SongName string `json:"song_name"`
	Artist   string `json:"artist"`
}

type playResponse struct {
	Message   string `json:"message"`
	StreamURL string `json:"stream_url"`
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, apperr.BadRequest("method not allowed"))
		return
	}
	if ct := r.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		writeError(w, apperr.UnsupportedMediaType("content-type must be application/json"))
		return
	}
	var req playRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.BadRequest("invalid request body"))
		return
	}
	if strings.TrimSpace(req.SongName) == "" || strings.TrimSpace(req.Artist) == "" {
		writeError(w, apperr.BadRequest("song_name and artist are required"))
		return
	}

	query := buildQuery(req.Artist, req.SongName)
	decision, err := s.Coordinator.Lookup(r.Context(), query, req.SongName, req.Artist)
	if err != nil {
		metrics.CacheLookups.WithLabelValues("error").Inc()
		writeError(w, apperr.Internal("lookup failed", err))
		return
	}
	metrics.CacheLookups.WithLabelValues(string(decision.Status)).Inc()

	if decision.Status != model.StatusCached {
		writeError(w, apperr.NotFound("not yet cached"))
		return
	}
	writeJSON(w, playResponse{Message: "ok", StreamURL: "/api/stream/" + decision.FileName})
}

func buildQuery(artist, title string) string {
	return strings.ToLower(strings.TrimSpace(artist)) + " - " + strings.ToLower(strings.TrimSpace(title))
}

func (s *Server) handleTracks(w http.ResponseWriter, r *http.Request) {
	tracks, err := s.Store.ListCachedByRecencyDesc(r.Context())
	if err != nil {
		writeError(w, apperr.Storage("list tracks failed", err))
		return
	}
	writeJSON(w, tracks)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	fileName := strings.TrimPrefix(r.URL.Path, "/api/stream/")
	if fileName == "" {
		writeError(w, apperr.BadRequest("missing file name"))
		return
	}

	p, err := s.Artifact.Path(fileName)
	if err != nil {
		writeError(w, apperr.Forbidden("invalid file name"))
		return
	}

	f, err := os.Open(p)
	if err != nil {
		writeError(w, apperr.NotFound("artifact not found"))
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		writeError(w, apperr.Internal("stat failed", err))
		return
	}
	size := info.Size()

	ext := strings.ToLower(path.Ext(fileName))
	contentType := mime.TypeByExtension(ext)
	if contentType == "" {
		contentType = "audio/ogg"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Accept-Ranges", "bytes")

	s.Coordinator.Touch(fileName)

	if r.Method == http.MethodHead {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)
		return
	}

	rangeHeader := r.Header.Get("Range")
	if rangeHeader == "" {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)
		if _, err := io.Copy(w, f); err != nil {
			s.log().Debug("stream copy interrupted", "file_name", fileName, "error", err)
		}
		return
	}

	start, end, err := parseByteRange(rangeHeader, size)
	if errors.Is(err, errInvalidRange) {
		writeError(w, apperr.BadRequest("invalid range"))
		return
	}
	if errors.Is(err, errRangeNotSatisfiable) {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		return
	}
	if err != nil {
		writeError(w, apperr.Internal("range parse failed", err))
		return
	}

	if _, err := f.Seek(start, io.SeekStart); err != nil {
		writeError(w, apperr.Internal("seek failed", err))
		return
	}
	length := end - start + 1
	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, size))
	w.Header().Set("Content-Length", strconv.FormatInt(length, 10))
	w.WriteHeader(http.StatusPartialContent)
	if _, err := io.CopyN(w, f, length); err != nil {
		s.log().Debug("range copy interrupted", "file_name", fileName, "error", err)
	}
}
