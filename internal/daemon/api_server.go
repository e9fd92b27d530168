package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"recap/internal/api"
	"recap/internal/logging"
	"recap/internal/store"
)

type apiServer struct {
	bind   string
	daemon *Daemon
	logger *slog.Logger
	server *http.Server

	// addrCh reports the resolved listen address once; tests bind port 0.
	addrCh chan string
}

func newAPIServer(bind string, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:   bind,
		daemon: d,
		logger: logger.With(logging.String(logging.FieldComponent, "api")),
		addrCh: make(chan string, 1),
	}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Route("/api", func(r chi.Router) {
		r.Get("/healthz", srv.handleHealthz)
		r.Get("/status", srv.handleStatus)
		r.Post("/process", srv.handleProcess)

		r.Route("/items", func(r chi.Router) {
			r.Get("/", srv.handleListItems)
			r.Post("/", srv.handleAddItem)
			r.Route("/{videoID}", func(r chi.Router) {
				r.Get("/", srv.handleGetItem)
				r.Delete("/", srv.handleRemoveItem)
				r.Post("/retry", srv.handleRetryItem)
				r.Post("/stop", srv.handleStopItem)
			})
		})

		r.Route("/channels", func(r chi.Router) {
			r.Get("/", srv.handleListChannels)
			r.Post("/", srv.handleAddChannel)
			r.Route("/{channelID}", func(r chi.Router) {
				r.Delete("/", srv.handleRemoveChannel)
				r.Post("/enable", srv.handleEnableChannel)
				r.Post("/disable", srv.handleDisableChannel)
			})
		})

		r.Route("/settings", func(r chi.Router) {
			r.Get("/", srv.handleSettings)
			r.Put("/{key}", srv.handleSetSetting)
			r.Delete("/{key}", srv.handleDeleteSetting)
		})
	})

	srv.server = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

// run serves until the context is cancelled.
func (s *apiServer) run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return err
	}
	select {
	case s.addrCh <- listener.Addr().String():
	default:
	}
	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))

	done := make(chan error, 1)
	go func() {
		done <- s.server.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
		return nil
	case err := <-done:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *apiServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.daemon.Status(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *apiServer) handleProcess(w http.ResponseWriter, r *http.Request) {
	wait := r.URL.Query().Get("wait") == "1"
	if !wait {
		if !s.daemon.sched.Trigger() {
			s.writeError(w, http.StatusConflict, errors.New("a run is already pending"))
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "triggered"})
		return
	}

	stats, err := s.daemon.sched.TriggerAndWait(r.Context())
	if err != nil {
		s.writeError(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *apiServer) handleListItems(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, _ := strconv.Atoi(query.Get("limit"))
	offset, _ := strconv.Atoi(query.Get("offset"))
	items, err := s.daemon.service.ListItems(r.Context(),
		query.Get("status"), query.Get("channel"), query.Get("source"), limit, offset)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *apiServer) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Locator string `json:"locator"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	item, created, err := s.daemon.service.AddItem(r.Context(), payload.Locator)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, item)
}

func (s *apiServer) handleGetItem(w http.ResponseWriter, r *http.Request) {
	item, err := s.daemon.service.GetItem(r.Context(), chi.URLParam(r, "videoID"))
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *apiServer) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	if err := s.daemon.service.RemoveItem(r.Context(), chi.URLParam(r, "videoID")); err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *apiServer) handleRetryItem(w http.ResponseWriter, r *http.Request) {
	force := r.URL.Query().Get("force") == "1"
	item, err := s.daemon.service.RetryItem(r.Context(), chi.URLParam(r, "videoID"), force)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *apiServer) handleStopItem(w http.ResponseWriter, r *http.Request) {
	item, stopped, err := s.daemon.service.StopItem(r.Context(), chi.URLParam(r, "videoID"))
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stopped": stopped, "item": item})
}

func (s *apiServer) handleListChannels(w http.ResponseWriter, r *http.Request) {
	channels, err := s.daemon.service.ListChannels(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, channels)
}

func (s *apiServer) handleAddChannel(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Locator string `json:"locator"`
		Name    string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	channel, err := s.daemon.service.AddChannel(r.Context(), payload.Locator, payload.Name)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, channel)
}

func (s *apiServer) handleRemoveChannel(w http.ResponseWriter, r *http.Request) {
	if err := s.daemon.service.RemoveChannel(r.Context(), chi.URLParam(r, "channelID")); err != nil {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *apiServer) handleEnableChannel(w http.ResponseWriter, r *http.Request) {
	s.setChannelEnabled(w, r, true)
}

func (s *apiServer) handleDisableChannel(w http.ResponseWriter, r *http.Request) {
	s.setChannelEnabled(w, r, false)
}

func (s *apiServer) setChannelEnabled(w http.ResponseWriter, r *http.Request, enabled bool) {
	if err := s.daemon.service.SetChannelEnabled(r.Context(), chi.URLParam(r, "channelID"), enabled); err != nil {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": enabled})
}

func (s *apiServer) handleSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.daemon.service.Settings(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *apiServer) handleSetSetting(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.daemon.service.SetSetting(r.Context(), chi.URLParam(r, "key"), payload.Value); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *apiServer) handleDeleteSetting(w http.ResponseWriter, r *http.Request) {
	if err := s.daemon.service.DeleteSetting(r.Context(), chi.URLParam(r, "key")); err != nil {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", logging.Error(err))
	}
	writeJSON(w, status, api.ErrorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func statusFor(err error) int {
	switch {
	case api.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, store.ErrNotRetryable):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
