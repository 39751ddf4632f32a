package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-cart/internal/health"
)

func probe(name string, err error, optional bool) health.Probe {
	return health.Probe{
		Name:     name,
		Check:    func(context.Context) error { return err },
		Timeout:  50 * time.Millisecond,
		Optional: optional,
	}
}

func ready(t *testing.T, h health.Handler) (int, map[string]string) {
	t.Helper()
	rr := httptest.NewRecorder()
	h.Ready(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	var status map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &status))
	return rr.Code, status
}

func TestLive(t *testing.T) {
	rr := httptest.NewRecorder()
	health.Handler{}.Live(rr, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "ok", rr.Body.String())
}

func TestReadySuccess(t *testing.T) {
	code, status := ready(t, health.Handler{Probes: []health.Probe{probe("db", nil, false), probe("redis", nil, true)}})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, map[string]string{"db": "ok", "redis": "ok"}, status)
}

func TestReadyRequiredProbeFails(t *testing.T) {
	code, status := ready(t, health.Handler{Probes: []health.Probe{probe("db", errors.New("db down"), false)}})
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, "db down", status["db"])
}

func TestReadyOptionalProbeFails(t *testing.T) {
	code, status := ready(t, health.Handler{Probes: []health.Probe{probe("db", nil, false), probe("redis", errors.New("redis down"), true)}})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "redis down", status["redis"])
}

func TestReadyProbeTimeout(t *testing.T) {
	slow := health.Probe{
		Name:    "db",
		Timeout: 10 * time.Millisecond,
		Check: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}
	code, status := ready(t, health.Handler{Probes: []health.Probe{slow}})
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, context.DeadlineExceeded.Error(), status["db"])
}
