package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDataEnvelope(t *testing.T) {
	rr := httptest.NewRecorder()
	Data(rr, http.StatusCreated, map[string]int{"n": 2})

	require.Equal(t, http.StatusCreated, rr.Code)
	require.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	var body map[string]map[string]int
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, 2, body["data"]["n"])
}

func TestWriteAppErrorFallbacks(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteAppError(rr, &AppError{Message: "boom", Err: errors.New("x")}, http.StatusBadGateway)

	require.Equal(t, http.StatusBadGateway, rr.Code)
	var body struct {
		Error ErrorBody `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, http.StatusText(http.StatusBadGateway), body.Error.Code)
	require.Equal(t, "boom", body.Error.Message)
}

func TestUserIDRoundTrip(t *testing.T) {
	ctx := WithUserID(httptest.NewRequest(http.MethodGet, "/", nil).Context(), "u1")
	id, ok := UserID(ctx)
	require.True(t, ok)
	require.Equal(t, "u1", id)

	_, ok = UserID(WithUserID(ctx, ""))
	require.False(t, ok)
}

func TestAsAppErrorFindsWrapped(t *testing.T) {
	wrapped := fmt.Errorf("verify: %w", Unauthorized("invalid token", errors.New("expired")))
	appErr, ok := AsAppError(wrapped)
	require.True(t, ok)
	require.Equal(t, http.StatusUnauthorized, appErr.HTTPStatus)
	require.Equal(t, "UNAUTHORIZED: expired", appErr.Error())

	_, ok = AsAppError(errors.New("plain"))
	require.False(t, ok)
}
