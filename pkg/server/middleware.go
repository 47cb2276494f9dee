package server

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// middleware decorates a handler. Stacks list the outermost layer first.
type middleware func(http.Handler) http.Handler

func stack(h http.Handler, layers ...middleware) http.Handler {
	for i := len(layers) - 1; i >= 0; i-- {
		h = layers[i](h)
	}
	return h
}

// api wraps a /v1 handler. Throttling sits inside panic recovery so a
// rejected request is still tagged and counted.
func (s *Server) api(handler http.HandlerFunc) http.Handler {
	return stack(handler, s.instrument, s.tagRequest, s.recoverPanics, s.throttle, s.logRequest)
}

// statusRecorder remembers the first status a handler sends.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func record(w http.ResponseWriter) *statusRecorder {
	if rec, ok := w.(*statusRecorder); ok {
		return rec
	}
	return &statusRecorder{ResponseWriter: w}
}

func (r *statusRecorder) WriteHeader(status int) {
	if r.status != 0 {
		return
	}
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.WriteHeader(http.StatusOK)
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

// Status is the sent status, or 200 when the handler wrote nothing.
func (r *statusRecorder) Status() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

type requestLoggerKey struct{}

// tagRequest keeps a caller supplied X-Request-Id when it is a UUID and mints
// one otherwise. The id is echoed back and attached to the request logger.
func (s *Server) tagRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)

		ctx := context.WithValue(r.Context(), contextKeyRequestID, id)
		ctx = context.WithValue(ctx, requestLoggerKey{}, s.logger.With("request_id", id))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) requestLogger(r *http.Request) *slog.Logger {
	if logger, ok := r.Context().Value(requestLoggerKey{}).(*slog.Logger); ok {
		return logger
	}
	return s.logger
}

func (s *Server) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			recovered := recover()
			if recovered == nil {
				return
			}
			if recovered == http.ErrAbortHandler {
				panic(recovered)
			}
			panicRecoveries.Inc()
			s.requestLogger(r).Error("handler panicked",
				"route", r.Pattern,
				"panic", fmt.Sprint(recovered),
				"stack", string(debug.Stack()),
			)
			WriteError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "Internal server error", true, nil)
		}()
		next.ServeHTTP(w, r)
	})
}

// throttle spends one token of the shared bucket per request and advertises
// what is left.
func (s *Server) throttle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit := s.rateLimiter.Limit()
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(s.rateLimiter.Burst()))

		if !s.rateLimiter.Allow() {
			rateLimitRejects.Inc()
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter(float64(limit))))
			WriteError(w, r, http.StatusTooManyRequests, ErrCodeRateLimitExceeded, "Rate limit exceeded", true, map[string]any{
				"requests_per_second": float64(limit),
				"burst":               s.rateLimiter.Burst(),
			})
			return
		}

		remaining := max(0, int(math.Floor(s.rateLimiter.Tokens())))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		next.ServeHTTP(w, r)
	})
}

// retryAfter is the whole number of seconds until the bucket refills one
// token, at least one.
func retryAfter(perSecond float64) int {
	if perSecond <= 0 {
		return 1
	}
	return max(1, int(math.Ceil(1/perSecond)))
}

func (s *Server) logRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := record(w)
		next.ServeHTTP(rec, r)

		s.requestLogger(r).Debug("request served",
			"method", r.Method,
			"route", r.Pattern,
			"status", rec.Status(),
			"bytes", rec.bytes,
			"elapsed", time.Since(started),
		)
	})
}
