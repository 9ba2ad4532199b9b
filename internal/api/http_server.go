package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"staybook/internal/config"
	"staybook/internal/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const requestIDHeader = "X-Request-ID"

// HTTPServer exposes the booking service as JSON over HTTP.
type HTTPServer struct {
	deps   Deps
	auth   *authenticator
	server *http.Server
	log    zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, deps Deps, logger *zerolog.Logger) *HTTPServer {
	srv := &HTTPServer{deps: deps, auth: newAuthenticator(cfg), log: zerolog.Nop()}
	if logger != nil {
		srv.log = logger.With().Str("component", "http").Logger()
	}

	mux := http.NewServeMux()
	srv.route(mux, "POST /api/v1/bookings", permWriteBookings, srv.handleCreateBooking)
	srv.route(mux, "GET /api/v1/bookings", permReadBookings, srv.handleListBookings)
	srv.route(mux, "GET /api/v1/bookings/{id}", permReadBookings, srv.handleGetBooking)
	srv.route(mux, "PATCH /api/v1/bookings/{id}", permWriteBookings, srv.handleUpdateBooking)
	srv.route(mux, "POST /api/v1/bookings/{id}/status", permWriteBookings, srv.handleTransitionStatus)
	srv.route(mux, "DELETE /api/v1/bookings/{id}", permAdminBookings, srv.handleDeleteBooking)
	srv.route(mux, "GET /api/v1/availability", permReadBookings, srv.handleAvailability)
	srv.route(mux, "GET /api/v1/calendar/month", permReadBookings, srv.handleMonthView)
	srv.route(mux, "GET /api/v1/calendar/month/export", permReadBookings, srv.handleMonthExport)
	srv.route(mux, "GET /api/v1/calendar/day", permReadBookings, srv.handleDayDetail)
	srv.route(mux, "GET /api/v1/properties", permReadCatalog, srv.handleProperties)
	srv.route(mux, "GET /api/v1/customers", permReadCatalog, srv.handleCustomers)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.loggingMiddleware(mux),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}
	return srv
}

// route registers a handler behind auth, rate limiting and request counting.
func (s *HTTPServer) route(mux *http.ServeMux, pattern, permission string, h http.HandlerFunc) {
	endpoint := pattern
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		metrics.IncHTTP(endpoint)
		if code, err := s.auth.checkHTTP(r, permission); err != nil {
			writeError(w, code, err.Error())
			return
		}
		h(w, r)
	})
}

// Handler returns the root handler, for tests and embedding.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)

		reqLogger := s.log.With().Str("request_id", requestID).Logger()
		r = r.WithContext(reqLogger.WithContext(r.Context()))

		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		event := reqLogger.Info()
		if recorder.status >= http.StatusInternalServerError {
			event = reqLogger.Error()
		}
		event.
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, errorBody{Error: message})
}

// writeServiceError maps a service error and logs unexpected ones.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	code, body := httpError(err)
	if code == http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	writeJSON(w, code, body)
}

func decodeJSON(r *http.Request, v any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
