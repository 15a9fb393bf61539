package ratelimit_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/peopleops/hrms-backend/pkg/config"
	"github.com/peopleops/hrms-backend/pkg/ratelimit"
)

func testLimiter(t *testing.T) *ratelimit.Limiter {
	t.Helper()
	l := ratelimit.New(&config.RateLimitConfig{
		LoginPerMinute:     5,
		RegisterPerFiveMin: 3,
		AuthPerMinute:      20,
		GeneralPerMinute:   100,
	})
	t.Cleanup(l.Stop)
	return l
}

func TestAllow_SixthLoginDenied(t *testing.T) {
	l := testLimiter(t)

	for i := 0; i < 5; i++ {
		ok, _ := l.Allow("10.0.0.1", ratelimit.ClassLogin)
		assert.True(t, ok, "request %d should pass", i+1)
	}

	ok, retryAfter := l.Allow("10.0.0.1", ratelimit.ClassLogin)
	assert.False(t, ok, "sixth request should be denied")
	assert.Equal(t, 60, retryAfter)
}

func TestAllow_BucketsArePerIP(t *testing.T) {
	l := testLimiter(t)

	for i := 0; i < 5; i++ {
		l.Allow("10.0.0.1", ratelimit.ClassLogin)
	}
	ok, _ := l.Allow("10.0.0.2", ratelimit.ClassLogin)
	assert.True(t, ok, "a different client keeps its own bucket")
}

func TestAllow_BucketsArePerClass(t *testing.T) {
	l := testLimiter(t)

	for i := 0; i < 5; i++ {
		l.Allow("10.0.0.1", ratelimit.ClassLogin)
	}
	ok, _ := l.Allow("10.0.0.1", ratelimit.ClassAuth)
	assert.True(t, ok, "exhausting login does not touch the auth bucket")
}

func TestAllow_RegisterWindowIsFiveMinutes(t *testing.T) {
	l := testLimiter(t)

	for i := 0; i < 3; i++ {
		ok, _ := l.Allow("10.0.0.3", ratelimit.ClassRegister)
		assert.True(t, ok)
	}
	ok, retryAfter := l.Allow("10.0.0.3", ratelimit.ClassRegister)
	assert.False(t, ok)
	assert.Equal(t, 300, retryAfter)
}

func TestMiddleware_DeniedResponse(t *testing.T) {
	l := testLimiter(t)

	handler := l.Middleware(ratelimit.ClassLogin)(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

	var last *httptest.ResponseRecorder
	for i := 0; i < 6; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
		req.RemoteAddr = "10.0.0.9:51234"
		last = httptest.NewRecorder()
		handler.ServeHTTP(last, req)
	}

	assert.Equal(t, http.StatusTooManyRequests, last.Code)
	assert.Equal(t, "60", last.Header().Get("Retry-After"))
	assert.Contains(t, last.Body.String(), "too many requests")
}
