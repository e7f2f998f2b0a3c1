package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"hlstype/internal/metrics"
	"hlstype/internal/options"
	"hlstype/internal/transient"
)

const secret = "middleware-test-secret"

func ok(c echo.Context) error {
	return c.String(http.StatusOK, Username(c)+":"+Role(c))
}

func run(e *echo.Echo, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuth(t *testing.T) {
	e := echo.New()
	e.GET("/", ok, JWTAuth(secret))

	now := time.Now()
	valid, err := IssueToken(secret, "alice", "editor", time.Hour, now)
	require.NoError(t, err)
	rec := run(e, http.MethodGet, "/", valid)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice:editor", rec.Body.String())

	expired, err := IssueToken(secret, "alice", "editor", time.Hour, now.Add(-2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, run(e, http.MethodGet, "/", expired).Code)

	forged, err := IssueToken("another-secret", "alice", "admin", time.Hour, now)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, run(e, http.MethodGet, "/", forged).Code)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &JWTClaims{Username: "alice", Role: "admin"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, run(e, http.MethodGet, "/", unsigned).Code)

	assert.Equal(t, http.StatusUnauthorized, run(e, http.MethodGet, "/", "").Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderAuthorization, "Basic abc")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid authorization format")
}

func TestCan(t *testing.T) {
	assert.True(t, Can("admin", ManageOptions))
	assert.True(t, Can("editor", UploadFiles))
	assert.False(t, Can("editor", ManageOptions))
	assert.True(t, Can("contributor", EditPosts))
	assert.False(t, Can("contributor", UploadFiles))
	assert.False(t, Can("", EditPosts))
}

func TestRequireCapability(t *testing.T) {
	e := echo.New()
	e.GET("/", ok, JWTAuth(secret), RequireCapability(UploadFiles))

	author, _ := IssueToken(secret, "a", "author", time.Hour, time.Now())
	contributor, _ := IssueToken(secret, "c", "contributor", time.Hour, time.Now())

	assert.Equal(t, http.StatusOK, run(e, http.MethodGet, "/", author).Code)
	rec := run(e, http.MethodGet, "/", contributor)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "rest_forbidden")
}

func TestRateLimit(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	cache := transient.New(64)
	limit := RateLimit(cache, 50, time.Minute, m, zaptest.NewLogger(t))

	e := echo.New()
	e.POST("/", ok, JWTAuth(secret), limit)
	e.GET("/", ok, JWTAuth(secret), limit)

	alice, _ := IssueToken(secret, "alice", "editor", time.Hour, time.Now())
	bob, _ := IssueToken(secret, "bob", "editor", time.Hour, time.Now())

	for i := 0; i < 50; i++ {
		require.Equal(t, http.StatusOK, run(e, http.MethodPost, "/", alice).Code, "write %d", i+1)
	}
	rec := run(e, http.MethodPost, "/", alice)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.JSONEq(t, `{"code":"rate_limit_exceeded","error":"Too many requests. Please try again later."}`, rec.Body.String())

	// rejected writes do not count
	v, _ := cache.Get(PrefixRateLimit + "alice")
	assert.Equal(t, 50, v)

	assert.Equal(t, http.StatusOK, run(e, http.MethodGet, "/", alice).Code)
	assert.Equal(t, http.StatusOK, run(e, http.MethodPost, "/", bob).Code)

	expected := `
# HELP hlstype_http_rate_limited_total Write requests rejected by the rate limiter
# TYPE hlstype_http_rate_limited_total counter
hlstype_http_rate_limited_total 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "hlstype_http_rate_limited_total"))
}

func TestRateLimitDisabled(t *testing.T) {
	e := echo.New()
	e.POST("/", ok, JWTAuth(secret), RateLimit(transient.New(8), 0, time.Minute, nil, nil))
	tok, _ := IssueToken(secret, "alice", "editor", time.Hour, time.Now())
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, run(e, http.MethodPost, "/", tok).Code)
	}
}

type countingStore struct {
	options.Store
	gets int
}

func (s *countingStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.gets++
	return s.Store.Get(ctx, key)
}

func TestRequestMemo(t *testing.T) {
	inner := &countingStore{Store: options.NewMemoryStore()}
	store := options.Memoize(inner)

	e := echo.New()
	e.GET("/", func(c echo.Context) error {
		ctx := c.Request().Context()
		for i := 0; i < 3; i++ {
			if _, _, err := store.Get(ctx, options.KeyPresets); err != nil {
				return err
			}
		}
		return c.NoContent(http.StatusOK)
	}, RequestMemo())

	run(e, http.MethodGet, "/", "")
	run(e, http.MethodGet, "/", "")
	assert.Equal(t, 2, inner.gets)
}
