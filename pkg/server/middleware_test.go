package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/goliatone/go-tplguard/internal/logging"
)

func bareServer() *Server {
	return &Server{
		config:      NewConfig(),
		rateLimiter: rate.NewLimiter(100, 200),
		logger:      logging.Discard(),
	}
}

func requestID(t *testing.T, s *Server, header string) (string, *httptest.ResponseRecorder) {
	t.Helper()
	var captured string
	h := s.tagRequest(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		captured, _ = r.Context().Value(contextKeyRequestID).(string)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/templates", nil)
	if header != "" {
		req.Header.Set("X-Request-Id", header)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return captured, rec
}

func TestTagRequest(t *testing.T) {
	s := bareServer()

	minted, rec := requestID(t, s, "")
	_, err := uuid.Parse(minted)
	require.NoError(t, err)
	assert.Equal(t, minted, rec.Header().Get("X-Request-Id"))

	provided := uuid.NewString()
	kept, _ := requestID(t, s, provided)
	assert.Equal(t, provided, kept)

	replaced, _ := requestID(t, s, "not-a-uuid")
	assert.NotEqual(t, "not-a-uuid", replaced)
	_, err = uuid.Parse(replaced)
	assert.NoError(t, err)
}

func TestThrottle(t *testing.T) {
	s := bareServer()
	s.rateLimiter = rate.NewLimiter(0.5, 1)
	h := s.api(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	first := httptest.NewRecorder()
	h.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/v1/templates", nil))
	assert.Equal(t, http.StatusNoContent, first.Code)
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", first.Header().Get("X-RateLimit-Remaining"))

	second := httptest.NewRecorder()
	h.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/v1/templates", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "2", second.Header().Get("Retry-After"))
	assert.Contains(t, second.Body.String(), ErrCodeRateLimitExceeded)
	assert.NotEmpty(t, second.Header().Get("X-Request-Id"))
}

func TestRetryAfter(t *testing.T) {
	assert.Equal(t, 1, retryAfter(100))
	assert.Equal(t, 1, retryAfter(1))
	assert.Equal(t, 4, retryAfter(0.25))
	assert.Equal(t, 1, retryAfter(0))
}

func TestRecoverPanics(t *testing.T) {
	s := bareServer()
	h := s.api(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/templates", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), ErrCodeInternalError)
	assert.Contains(t, rec.Body.String(), rec.Header().Get("X-Request-Id"))
}

func TestRecoverPanics_AbortHandlerPropagates(t *testing.T) {
	s := bareServer()
	h := s.recoverPanics(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestStatusRecorder(t *testing.T) {
	rec := httptest.NewRecorder()
	sr := record(rec)
	assert.Same(t, sr, record(sr))
	assert.Equal(t, http.StatusOK, sr.Status())

	sr.WriteHeader(http.StatusAccepted)
	sr.WriteHeader(http.StatusTeapot)
	n, err := sr.Write([]byte("ok"))
	require.NoError(t, err)

	assert.Equal(t, 2, n)
	assert.Equal(t, 2, sr.bytes)
	assert.Equal(t, http.StatusAccepted, sr.Status())
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Same(t, http.ResponseWriter(rec), sr.Unwrap())
}

func TestConfig_Env(t *testing.T) {
	env := map[string]string{"PORT": "9191", "SHUTDOWN_TIMEOUT": "45s"}
	cfg := &Config{Port: 8080, ShutdownTimeout: time.Second}
	cfg.applyEnv(func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	})
	assert.Equal(t, 9191, cfg.Port)
	assert.Equal(t, 45*time.Second, cfg.ShutdownTimeout)

	env = map[string]string{"PORT": "eighty", "SHUTDOWN_TIMEOUT": "12"}
	cfg.applyEnv(func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	})
	assert.Equal(t, 9191, cfg.Port)
	assert.Equal(t, 12*time.Second, cfg.ShutdownTimeout)
}

func TestConfig_Validate(t *testing.T) {
	cfg := NewConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "127.0.0.1:8080", (&Config{Address: "127.0.0.1", Port: 8080}).Addr())

	cfg.Port = 70000
	cfg.Burst = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port 70000 out of range")
	assert.Contains(t, err.Error(), "burst must be positive")
}
