package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SanmishaTech/jssp-sub001/internal/apiclient"
	"github.com/SanmishaTech/jssp-sub001/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func serveError(err error, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/staff/12", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	ErrorResponse(rec, req, discardLogger(), err)
	return rec
}

func TestErrorResponse_InternalErrorHidesDetails(t *testing.T) {
	backendErr := errors.New(`dial tcp 10.0.0.12:8000: connection refused`)
	err := domain.Internal(backendErr, "Client.List", "decode failed")

	for name, headers := range map[string]map[string]string{
		"html": {"Accept": "text/html"},
		"json": {"Accept": "application/json"},
		"htmx": {"HX-Request": "true"},
	} {
		t.Run(name, func(t *testing.T) {
			rec := serveError(err, headers)

			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			all := rec.Body.String() + rec.Header().Get("HX-Trigger")
			assert.NotContains(t, all, "10.0.0.12")
			assert.NotContains(t, all, "Client.List")
			assert.Contains(t, all, domain.GenericMessage)
		})
	}
}

func TestErrorResponse_UnwrappedErrorIsGeneric(t *testing.T) {
	rec := serveError(errors.New("FATAL: token=abc"), map[string]string{"Accept": "text/html"})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "FATAL")
	assert.Contains(t, rec.Body.String(), domain.GenericMessage)
}

func TestErrorResponse_BackendNotFound(t *testing.T) {
	err := &apiclient.Error{Kind: apiclient.KindMessage, Op: "staff.get", Status: http.StatusNotFound, Message: "Staff not found."}

	rec := serveError(err, map[string]string{"Accept": "application/json"})

	require.Equal(t, http.StatusNotFound, rec.Code)
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, domain.ENOTFOUND, body.Error.Code)
	assert.Equal(t, "Staff not found.", body.Error.Message)
}

func TestErrorResponse_HTMXRaisesErrorEvent(t *testing.T) {
	rec := serveError(domain.NotFound("Client.Get", "staff member", "12"), map[string]string{"HX-Request": "true"})

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.Equal(t, "none", rec.Header().Get("HX-Reswap"))

	var trigger map[string]map[string]string
	require.NoError(t, json.Unmarshal([]byte(rec.Header().Get("HX-Trigger")), &trigger))
	assert.Contains(t, trigger[ErrorEvent]["message"], "staff member")
	assert.NotContains(t, trigger[ErrorEvent]["message"], "Client.Get")
}

func TestCSRFFailedResponse(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/staff", nil)
	rec := httptest.NewRecorder()
	CSRFFailedResponse(rec, req, discardLogger())

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "Reload the page")
}

func TestErrorCodeToHTTPStatus(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{domain.EINVALID, http.StatusBadRequest},
		{domain.EUNAUTHORIZED, http.StatusUnauthorized},
		{domain.EFORBIDDEN, http.StatusForbidden},
		{domain.ENOTFOUND, http.StatusNotFound},
		{domain.ECONFLICT, http.StatusConflict},
		{domain.ETOOLARGE, http.StatusRequestEntityTooLarge},
		{domain.ERATELIMIT, http.StatusTooManyRequests},
		{domain.EUNAVAILABLE, http.StatusBadGateway},
		{domain.ECANCELED, 499},
		{domain.EINTERNAL, http.StatusInternalServerError},
		{"unknown", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ErrorCodeToHTTPStatus(tt.code), tt.code)
	}
}

func TestRedirectToLogin(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/staff?page=2", nil)
	rec := httptest.NewRecorder()
	RedirectToLogin(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login?return_to=%2Fstaff%3Fpage%3D2", rec.Header().Get("Location"))

	req = httptest.NewRequest(http.MethodGet, "/staff/table", nil)
	req.Header.Set("HX-Request", "true")
	rec = httptest.NewRecorder()
	RedirectToLogin(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("HX-Redirect"))
}
