// Package server implements the HTTP handlers and routing for the quickMARC service.
// It exposes the record editor endpoints on top of service.RecordService.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	errordefs "github.com/RegistryAccord/registryaccord-qm-go/internal/errors"
	"github.com/RegistryAccord/registryaccord-qm-go/internal/metrics"
	"github.com/RegistryAccord/registryaccord-qm-go/internal/model"
	"github.com/RegistryAccord/registryaccord-qm-go/internal/service"
)

// ContextKey is used for context values to avoid collisions
// when storing values in request context
type ContextKey string

const (
	// ContextKeyCorrelationID stores the request correlation id.
	ContextKeyCorrelationID ContextKey = "correlationId"

	// CorrelationHeader carries the correlation id on requests and responses.
	CorrelationHeader = "X-Correlation-Id"

	maxBodyBytes = 1 << 20
)

// Mux handles HTTP requests for the quickMARC service.
type Mux struct {
	router  chi.Router
	svc     *service.RecordService
	metrics *metrics.Metrics

	// CORS configuration
	corsAllowedOrigins []string // Allowed origins for CORS (empty means deny all)
}

// NewMux creates the HTTP handler with every quickMARC endpoint registered.
func NewMux(svc *service.RecordService, m *metrics.Metrics, corsAllowedOrigins []string) http.Handler {
	mx := &Mux{
		router:             chi.NewRouter(),
		svc:                svc,
		metrics:            m,
		corsAllowedOrigins: corsAllowedOrigins,
	}

	mx.router.Use(middleware.Recoverer)

	// Health endpoints
	mx.router.Get("/healthz", mx.handleHealthz)
	mx.router.Get("/readyz", mx.handleReadyz)
	mx.router.Handle("/metrics", promhttp.Handler())

	mx.router.Route("/records-editor", func(r chi.Router) {
		r.Use(mx.cors, mx.correlation, mx.instrument)

		r.Get("/records", mx.handleListRecords)
		r.Post("/records", mx.handleCreateRecord)
		r.Get("/records/{id}", mx.handleGetRecord)
		r.Put("/records/{id}", mx.handleUpdateRecord)
		r.Post("/convert", mx.handleConvert)
	})

	mx.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		mx.writeErrorDef(w, errordefs.New(errordefs.QM_BAD_REQUEST, "method not allowed"))
	})

	return mx.router
}

// cors answers preflight requests and sets the allow-origin header for allowed origins.
func (mx *Mux) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowed := origin != "" && mx.originAllowed(origin)
		if allowed {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			if allowed {
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+CorrelationHeader)
				w.Header().Set("Access-Control-Max-Age", "86400") // 24 hours
			}
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (mx *Mux) originAllowed(origin string) bool {
	for _, allowedOrigin := range mx.corsAllowedOrigins {
		if allowedOrigin == "*" || allowedOrigin == origin {
			return true
		}
	}
	return false
}

// correlation adds a correlation ID to the request context and response if not present.
func (mx *Mux) correlation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		correlationID := r.Header.Get(CorrelationHeader)
		if correlationID == "" {
			correlationID = uuid.New().String()
		}
		w.Header().Set(CorrelationHeader, correlationID)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ContextKeyCorrelationID, correlationID)))
	})
}

// instrument records request metrics and logs every completed request.
func (mx *Mux) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		duration := time.Since(start)
		mx.metrics.HTTPRequestTotal.WithLabelValues(r.Method, path, strconv.Itoa(status)).Inc()
		mx.metrics.HTTPRequestDuration.WithLabelValues(r.Method, path, strconv.Itoa(status)).Observe(duration.Seconds())
		mx.logRequest(r, status, duration)
	})
}

func correlationIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(ContextKeyCorrelationID).(string)
	return id
}

// writeSuccess writes a successful response
func (mx *Mux) writeSuccess(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	response := map[string]interface{}{
		"data": data,
	}
	_ = json.NewEncoder(w).Encode(response)
}

// writeErrorDef writes an error response using the error definitions package
func (mx *Mux) writeErrorDef(w http.ResponseWriter, err *errordefs.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.HTTPStatus)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"error": err})
}

// writeError maps err onto the error taxonomy and writes it. Client errors
// expose their cause as details; server errors only log it.
func (mx *Mux) writeError(w http.ResponseWriter, r *http.Request, err error) {
	out := *errordefs.As(err)
	out.CorrelationID = correlationIDFrom(r.Context())
	if out.HTTPStatus < http.StatusInternalServerError && out.Details == nil && out.Err != nil {
		out.Details = out.Err.Error()
	}
	if out.HTTPStatus >= http.StatusInternalServerError {
		slog.LogAttrs(r.Context(), slog.LevelError, "request failed",
			slog.String("code", string(out.Code)),
			slog.String("correlation_id", out.CorrelationID),
			slog.String("error", err.Error()),
		)
	}
	mx.writeErrorDef(w, &out)
}

// logRequest logs request details
func (mx *Mux) logRequest(r *http.Request, status int, duration time.Duration) {
	attrs := []slog.Attr{
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.Duration("duration", duration),
		slog.String("user_agent", r.UserAgent()),
		slog.String("remote_addr", r.RemoteAddr),
	}
	if correlationID := correlationIDFrom(r.Context()); correlationID != "" {
		attrs = append(attrs, slog.String("correlation_id", correlationID))
	}

	level := slog.LevelInfo
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	slog.LogAttrs(r.Context(), level, "request completed", attrs...)
}

func (mx *Mux) decode(w http.ResponseWriter, r *http.Request, v interface{}) error {
	defer r.Body.Close()
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errordefs.Newf(errordefs.QM_BAD_REQUEST, "request body exceeds %d bytes", maxBodyBytes)
		}
		return errordefs.Wrap(errordefs.QM_BAD_REQUEST, "invalid JSON", err)
	}
	return nil
}

// handleHealthz handles liveness health check requests
func (mx *Mux) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReadyz reports whether the record store is reachable.
func (mx *Mux) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := mx.svc.Ready(ctx); err != nil {
		slog.Warn("readiness check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleGetRecord handles GET /records-editor/records/{id}
func (mx *Mux) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	qm, err := mx.svc.GetQuickMarc(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		mx.writeError(w, r, err)
		return
	}
	mx.writeSuccess(w, http.StatusOK, qm)
}

// handleCreateRecord handles POST /records-editor/records
func (mx *Mux) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	var qm model.QuickMarc
	if err := mx.decode(w, r, &qm); err != nil {
		mx.writeError(w, r, err)
		return
	}
	created, err := mx.svc.CreateQuickMarc(r.Context(), qm, correlationIDFrom(r.Context()))
	if err != nil {
		mx.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/records-editor/records/"+created.ID)
	mx.writeSuccess(w, http.StatusCreated, created)
}

// handleUpdateRecord handles PUT /records-editor/records/{id}
func (mx *Mux) handleUpdateRecord(w http.ResponseWriter, r *http.Request) {
	var qm model.QuickMarc
	if err := mx.decode(w, r, &qm); err != nil {
		mx.writeError(w, r, err)
		return
	}
	updated, err := mx.svc.UpdateQuickMarc(r.Context(), chi.URLParam(r, "id"), qm, correlationIDFrom(r.Context()))
	if err != nil {
		mx.writeError(w, r, err)
		return
	}
	mx.writeSuccess(w, http.StatusOK, updated)
}

// handleConvert handles POST /records-editor/convert. Nothing is stored.
func (mx *Mux) handleConvert(w http.ResponseWriter, r *http.Request) {
	var qm model.QuickMarc
	if err := mx.decode(w, r, &qm); err != nil {
		mx.writeError(w, r, err)
		return
	}
	dto, err := mx.svc.Convert(r.Context(), qm)
	if err != nil {
		mx.writeError(w, r, err)
		return
	}
	mx.writeSuccess(w, http.StatusOK, dto)
}

// handleListRecords handles GET /records-editor/records
func (mx *Mux) handleListRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := model.ListRecordsQuery{Cursor: q.Get("cursor")}

	if recordType := q.Get("recordType"); recordType != "" {
		if _, err := model.FormatOf(model.RecordType(recordType)); err != nil {
			mx.writeError(w, r, errordefs.Wrap(errordefs.QM_BAD_REQUEST, "unknown recordType", err))
			return
		}
		query.RecordType = model.RecordType(recordType)
	}
	if limitStr := q.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 0 {
			mx.writeError(w, r, errordefs.Newf(errordefs.QM_BAD_REQUEST, "invalid limit %q", limitStr))
			return
		}
		query.Limit = limit
	}

	result, err := mx.svc.ListRecords(r.Context(), query)
	if err != nil {
		mx.writeError(w, r, err)
		return
	}
	mx.writeSuccess(w, http.StatusOK, result)
}
