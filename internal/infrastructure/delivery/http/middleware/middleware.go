// Package middleware holds the HTTP middlewares of the metrics listener.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"streamsnip/internal/infrastructure/delivery/http/response"
	"streamsnip/internal/observability"

	"github.com/google/uuid"
)

type contextKey string

// RequestIDKey is the context key of the request id.
const RequestIDKey contextKey = "requestID"

// HeaderXRequestID carries the request id in both directions.
const HeaderXRequestID = "X-Request-ID"

// RequestLog is the request summary written by Logger.
type RequestLog struct {
	Method        string `json:"method"`
	URI           string `json:"uri"`
	RemoteAddr    string `json:"remote_addr"`
	Proto         string `json:"proto"`
	ContentLength int64  `json:"content_length"`
}

// Recoverer turns handler panics into 500 responses. http.ErrAbortHandler is re-raised.
func Recoverer(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rvr := recover()
				if rvr == nil {
					return
				}

				if rvr == http.ErrAbortHandler { //nolint:errorlint // sentinel compared by identity
					panic(rvr)
				}

				log.ErrorContext(r.Context(), "http handler panicked",
					slog.Any("panic", rvr), slog.String("uri", r.RequestURI))
				response.InternalServerError(w, "internal error", nil, nil)
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// RequestID propagates X-Request-ID or generates one.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(HeaderXRequestID)
		if reqID == "" {
			reqID = uuid.NewString()
		}

		ctx := context.WithValue(r.Context(), RequestIDKey, reqID)
		w.Header().Set(HeaderXRequestID, reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Logger logs every request at debug level.
func Logger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.DebugContext(r.Context(), "http request",
				slog.Any("request", RequestLog{
					Method:        r.Method,
					URI:           r.RequestURI,
					RemoteAddr:    r.RemoteAddr,
					Proto:         r.Proto,
					ContentLength: r.ContentLength,
				}))
			next.ServeHTTP(w, r)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}

	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}

	return s.ResponseWriter.Write(b)
}

// Metrics records request count and duration per route pattern.
func Metrics(m *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}

			next.ServeHTTP(rec, r)

			path := r.Pattern
			if path == "" {
				path = "unmatched"
			}

			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}

			m.RecordHTTPRequest(r.Method, path, status, time.Since(start))
		})
	}
}
