package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/SanmishaTech/jssp-sub001/internal/domain"
)

// ErrorEvent is the htmx event raised by error responses to htmx requests.
// app.js turns it into an error toast.
const ErrorEvent = "console-error"

// ErrorResponse writes err to the client. The status comes from the domain
// error code and the body depends on who asked:
//
//   - JSON clients get {"error": {"code", "message"}}
//   - htmx requests get an empty body, HX-Reswap: none and an ErrorEvent
//     trigger carrying the message, so the page stays as it was
//   - everything else gets the message as plain text
//
// Internal failures never expose their details, only domain.GenericMessage.
func ErrorResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	code := domain.ErrorCode(err)
	message := domain.ErrorMessage(err)
	status := ErrorCodeToHTTPStatus(code)

	logError(logger, r, err, code, domain.ErrorOp(err), status)

	switch {
	case acceptsJSON(r):
		writeJSONError(w, status, code, message)
	case isHTMX(r):
		writeHTMXError(w, status, message)
	default:
		http.Error(w, message, status)
	}
}

// ErrorCodeToHTTPStatus maps domain error codes to HTTP status codes.
func ErrorCodeToHTTPStatus(code string) int {
	switch code {
	case domain.EINVALID:
		return http.StatusBadRequest // 400
	case domain.EUNAUTHORIZED:
		return http.StatusUnauthorized // 401
	case domain.EFORBIDDEN:
		return http.StatusForbidden // 403
	case domain.ENOTFOUND:
		return http.StatusNotFound // 404
	case domain.ECONFLICT:
		return http.StatusConflict // 409
	case domain.ETOOLARGE:
		return http.StatusRequestEntityTooLarge // 413
	case domain.ERATELIMIT:
		return http.StatusTooManyRequests // 429
	case domain.EUNAVAILABLE:
		return http.StatusBadGateway // 502, the backend could not be reached
	case domain.ECANCELED:
		return 499 // client closed request
	default:
		return http.StatusInternalServerError // 500
	}
}

// RedirectToLogin sends the client to the login page, remembering where it
// was going. htmx requests get a 401 with HX-Redirect so that the whole page
// navigates instead of swapping the login form into a fragment.
func RedirectToLogin(w http.ResponseWriter, r *http.Request) {
	if isHTMX(r) {
		w.Header().Set("HX-Redirect", "/login")
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	returnTo := r.URL.Path
	if r.URL.RawQuery != "" {
		returnTo += "?" + r.URL.RawQuery
	}
	http.Redirect(w, r, "/login?return_to="+url.QueryEscape(returnTo), http.StatusSeeOther)
}

// UnauthorizedResponse answers a request that needs a session.
func UnauthorizedResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger) {
	ErrorResponse(w, r, logger, domain.Unauthorized("", "Sign in to continue."))
}

// CSRFFailedResponse answers a state-changing request whose CSRF token did
// not match, typically a form left open across a restart.
func CSRFFailedResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger) {
	ErrorResponse(w, r, logger, domain.Forbidden("", "This form has expired. Reload the page and try again."))
}

// logError logs client errors at info and server errors at error.
func logError(logger *slog.Logger, r *http.Request, err error, code, op string, status int) {
	attrs := []any{
		"error", err.Error(),
		"code", code,
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
	}
	if op != "" {
		attrs = append(attrs, "op", op)
	}

	if status >= 500 {
		logger.Error("server error", attrs...)
	} else if status >= 400 {
		logger.Info("client error", attrs...)
	}
}

// acceptsJSON reports whether the client asked for JSON. htmx requests
// always want HTML.
func acceptsJSON(r *http.Request) bool {
	if isHTMX(r) {
		return false
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json") ||
		strings.Contains(r.Header.Get("Content-Type"), "application/json")
}

func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}

func writeHTMXError(w http.ResponseWriter, status int, message string) {
	trigger, _ := json.Marshal(map[string]any{ErrorEvent: map[string]string{"message": message}})
	w.Header().Set("HX-Trigger", string(trigger))
	w.Header().Set("HX-Reswap", "none")
	w.WriteHeader(status)
}
