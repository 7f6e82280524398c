package common

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type sample struct {
	Code  string `json:"code" validate:"required,max=8"`
	Count int    `json:"count" validate:"min=0"`
}

func TestDecodeJSON(t *testing.T) {
	var dst sample
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"code":"WELCOME","count":2}`))
	require.NoError(t, DecodeJSON(req, &dst))
	require.Equal(t, sample{Code: "WELCOME", Count: 2}, dst)
}

func TestDecodeJSONReportsFieldsByJSONName(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"code":"","count":-1}`))
	err := DecodeJSON(req, &sample{})

	var appErr *AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, http.StatusUnprocessableEntity, appErr.HTTPStatus)
	fields := appErr.Details.(map[string]any)["fields"].(map[string]string)
	require.Equal(t, "is required", fields["code"])
	require.Equal(t, "must be at least 0", fields["count"])
}

func TestDecodeJSONRejectsMalformedBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`))
	err := DecodeJSON(req, &sample{})

	var appErr *AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, CodeBadRequest, appErr.Code)

	rec := httptest.NewRecorder()
	WriteError(rec, err)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.JSONEq(t, `{"error":{"code":"BAD_REQUEST","message":"invalid payload"}}`, rec.Body.String())
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	require.Equal(t, "10.0.0.1", ClientIP(req))

	req.Header.Set("X-Real-IP", "192.0.2.4")
	require.Equal(t, "192.0.2.4", ClientIP(req))

	req.Header.Set("X-Forwarded-For", " 203.0.113.9 , 10.0.0.2")
	require.Equal(t, "203.0.113.9", ClientIP(req))

	req.Header.Set("X-Forwarded-For", "not-an-ip")
	require.Equal(t, "192.0.2.4", ClientIP(req), "garbage hops fall through")
}
