package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"adreact/internal/api"
	"adreact/internal/config"
	"adreact/internal/jobqueue"
	"adreact/internal/logging"
	"adreact/internal/queue"
)

// maxUploadBytes bounds a recording upload. One reaction is a short clip;
// anything larger indicates a broken client.
const maxUploadBytes = 512 << 20

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon
	adPath string

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, errors.New("api bind address not configured")
	}

	mux := http.NewServeMux()
	srv := &apiServer{
		bind:   bind,
		logger: logging.NewComponentLogger(logger, "api"),
		daemon: d,
		adPath: cfg.Paths.AdPath,
	}

	mux.HandleFunc("/api/status", srv.handleStatus)
	mux.HandleFunc("/api/reactions", srv.handleReactions)
	mux.HandleFunc("/api/reactions/", srv.handleReactionItem)
	mux.HandleFunc("/api/queue", srv.handleQueue)
	mux.HandleFunc("/api/queue/", srv.handleQueueItem)
	mux.HandleFunc("/api/ad", srv.handleAd)
	mux.HandleFunc("/api/ad/url", srv.handleAdURL)

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	status := s.daemon.Status(r.Context())
	s.writeJSON(w, http.StatusOK, api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		QueueDBPath:  status.QueueDBPath,
		LockFilePath: status.LockFilePath,
		Worker: api.WorkerStatus{
			Running:          status.WorkerRunning,
			FallbackInFlight: status.FallbackInFlight,
		},
		Queue: api.QueueHealthFromSummary(status.Queue),
	})
}

// handleReactions accepts a recording upload. The multipart field is named
// "recording"; a raw body works too for minimal clients.
func (s *apiServer) handleReactions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	content, cleanup, err := uploadContent(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer cleanup()

	result, err := s.daemon.SubmitRecording(r.Context(), content)
	if err != nil {
		if errors.Is(err, jobqueue.ErrFallbackSaturated) {
			s.writeError(w, http.StatusServiceUnavailable, "processing capacity exhausted, try again shortly")
			return
		}
		s.logger.Error("recording submit failed", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to accept recording")
		return
	}

	s.writeJSON(w, http.StatusAccepted, api.UploadResponse{
		Reaction: api.ReactionViewFromRecord(result.Reaction),
		Fallback: result.Fallback,
	})
}

func (s *apiServer) handleReactionItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	reactionID := strings.TrimPrefix(r.URL.Path, "/api/reactions/")
	if reactionID == "" || strings.Contains(reactionID, "/") {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}

	rec, err := s.daemon.Reaction(r.Context(), reactionID)
	if err != nil {
		s.logger.Error("reaction lookup failed", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "reaction lookup failed")
		return
	}
	if rec == nil {
		s.writeError(w, http.StatusNotFound, "reaction not found")
		return
	}
	s.writeJSON(w, http.StatusOK, api.ReactionResponse{Reaction: api.ReactionViewFromRecord(rec)})
}

func (s *apiServer) handleQueue(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		statuses, err := parseStatusFilter(r.URL.Query().Get("status"))
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		jobs, err := s.daemon.ListQueue(r.Context(), statuses)
		if err != nil {
			s.logger.Error("queue list failed", logging.Error(err))
			s.writeError(w, http.StatusInternalServerError, "queue list failed")
			return
		}
		s.writeJSON(w, http.StatusOK, api.QueueListResponse{Items: api.QueueItemsFromJobs(jobs)})
	case http.MethodDelete:
		removed, err := s.daemon.ClearCompleted(r.Context())
		if err != nil {
			s.logger.Error("queue clear failed", logging.Error(err))
			s.writeError(w, http.StatusInternalServerError, "queue clear failed")
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]int64{"removed": removed})
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleQueueItem routes /api/queue/{id} and /api/queue/{id}/retry.
func (s *apiServer) handleQueueItem(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/queue/")
	idPart, action, _ := strings.Cut(rest, "/")
	jobID, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		job, err := s.daemon.QueueJob(r.Context(), jobID)
		if err != nil {
			s.logger.Error("queue job lookup failed", logging.Error(err))
			s.writeError(w, http.StatusInternalServerError, "queue job lookup failed")
			return
		}
		if job == nil {
			s.writeError(w, http.StatusNotFound, "queue job not found")
			return
		}
		s.writeJSON(w, http.StatusOK, api.QueueItemResponse{Item: api.QueueItemFromJob(job)})
	case action == "retry" && r.Method == http.MethodPost:
		job, err := s.daemon.RetryQueueJob(r.Context(), jobID)
		if errors.Is(err, queue.ErrNotRetryable) {
			s.writeError(w, http.StatusConflict, err.Error())
			return
		}
		if err != nil {
			s.logger.Error("queue retry failed", logging.Error(err))
			s.writeError(w, http.StatusInternalServerError, "queue retry failed")
			return
		}
		if job == nil {
			s.writeError(w, http.StatusNotFound, "queue job not found")
			return
		}
		s.writeJSON(w, http.StatusOK, api.QueueItemResponse{Item: api.QueueItemFromJob(job)})
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleAd serves the advertisement asset. http.ServeFile handles range
// requests, which video surfaces rely on for seeking.
func (s *apiServer) handleAd(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.adPath == "" {
		s.writeError(w, http.StatusNotFound, "no advertisement configured")
		return
	}
	http.ServeFile(w, r, s.adPath)
}

// handleAdURL returns the ad URL with a version token derived from the
// file's size and modification time so clients re-fetch after the asset is
// replaced in place.
func (s *apiServer) handleAdURL(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.adPath == "" {
		s.writeError(w, http.StatusNotFound, "no advertisement configured")
		return
	}
	info, err := os.Stat(s.adPath)
	if err != nil {
		s.logger.Error("ad asset stat failed", logging.Error(err))
		s.writeError(w, http.StatusNotFound, "advertisement unavailable")
		return
	}
	token := fmt.Sprintf("%x-%x", info.ModTime().UnixNano(), info.Size())
	s.writeJSON(w, http.StatusOK, api.AdInfo{
		URL:   "/api/ad?v=" + token,
		Token: token,
	})
}

// uploadContent extracts the recording body from a request: the
// "recording" part of a multipart form, or the raw body otherwise.
func uploadContent(r *http.Request) (content io.Reader, cleanup func(), err error) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		file, _, err := r.FormFile("recording")
		if err != nil {
			return nil, nil, fmt.Errorf("missing recording field: %w", err)
		}
		return file, func() { _ = file.Close() }, nil
	}
	return r.Body, func() {}, nil
}

func parseStatusFilter(raw string) ([]queue.Status, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var statuses []queue.Status
	for _, part := range strings.Split(raw, ",") {
		status, ok := queue.ParseStatus(part)
		if !ok {
			return nil, fmt.Errorf("unknown status %q", strings.TrimSpace(part))
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("write api response failed", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}
