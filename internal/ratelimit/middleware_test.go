package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-cart/internal/common"
)

func ok(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }

func ownerRequest(owner string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", nil)
	return req.WithContext(common.WithUserID(req.Context(), owner))
}

func TestHandlerMiddlewareEnforcesLimit(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()

	store, err := NewStore(client)
	require.NoError(t, err)
	lim, err := NewLimiter(store, "1-M")
	require.NoError(t, err)
	h := Handler{Limiter: lim}.Middleware(http.HandlerFunc(ok))

	rr1 := httptest.NewRecorder()
	h.ServeHTTP(rr1, ownerRequest("u1"))
	require.Equal(t, http.StatusOK, rr1.Code)

	rr2 := httptest.NewRecorder()
	h.ServeHTTP(rr2, ownerRequest("u1"))
	require.Equal(t, http.StatusTooManyRequests, rr2.Code)
	require.Equal(t, "1", rr2.Header().Get("X-RateLimit-Limit"))
	require.NotEmpty(t, rr2.Header().Get("Retry-After"))

	rr3 := httptest.NewRecorder()
	h.ServeHTTP(rr3, ownerRequest("u2"))
	require.Equal(t, http.StatusOK, rr3.Code)
}

func TestHandlerMiddlewareMemoryStore(t *testing.T) {
	store, err := NewStore(nil)
	require.NoError(t, err)
	lim, err := NewLimiter(store, "2-H")
	require.NoError(t, err)
	h := Handler{Limiter: lim}.Middleware(http.HandlerFunc(ok))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, ownerRequest("u1"))
		codes = append(codes, rr.Code)
	}
	require.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestHandlerMiddlewareOnError(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()
	store, err := NewStore(client)
	require.NoError(t, err)
	lim, err := NewLimiter(store, "1-S")
	require.NoError(t, err)
	mr.Close()

	var captured error
	h := Handler{Limiter: lim, OnError: func(err error) { captured = err }}.Middleware(http.HandlerFunc(ok))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, ownerRequest("u1"))

	require.Equal(t, http.StatusOK, rr.Code)
	require.Error(t, captured)
}

func TestNewLimiterRejectsBadFormat(t *testing.T) {
	_, err := NewLimiter(nil, "sixty")
	require.Error(t, err)
}

func TestOwnerKeyFallsBackToAddress(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	require.Equal(t, "ip:10.0.0.1:1234", OwnerKey(req))
	require.Equal(t, "owner:u1", OwnerKey(ownerRequest("u1")))
}
