package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/SanmishaTech/jssp-sub001/internal/domain"
)

// Kind classifies a failed backend call.
type Kind int

const (
	// KindTransport means no usable response was received (network error, timeout, cancellation).
	KindTransport Kind = iota
	// KindFieldErrors means the backend answered {errors: {field: [msg]}}.
	KindFieldErrors
	// KindMessage means the backend answered with only a message.
	KindMessage
	// KindUnknown means the response had a shape the console does not understand.
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindFieldErrors:
		return "field_errors"
	case KindMessage:
		return "message"
	default:
		return "unknown"
	}
}

// Error is a failed backend call.
type Error struct {
	Kind     Kind
	Op       string
	Status   int                 // 0 for transport failures
	Message  string              // backend message, if any
	Fields   map[string][]string // populated for KindFieldErrors
	Err      error               // transport or decode error
	Resource string
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Status != 0 {
		fmt.Fprintf(&b, ": status %d", e.Status)
	}
	b.WriteString(": ")
	b.WriteString(e.Kind.String())
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes the domain classification (and the field errors, when present)
// so callers can use domain.ErrorCode and errors.As without importing this package.
func (e *Error) Unwrap() []error {
	errs := []error{e.domain()}
	if e.Kind == KindFieldErrors {
		errs = append(errs, &domain.ValidationError{Op: e.Op, Fields: e.Fields})
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// FieldNames returns the fields that carry errors, sorted.
func (e *Error) FieldNames() []string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (e *Error) domain() *domain.Error {
	if e.Kind == KindTransport {
		if errors.Is(e.Err, context.Canceled) {
			return domain.Wrap(e.Err, domain.ECANCELED, e.Op, "The request was canceled.")
		}
		return domain.Unavailable(e.Err, e.Op)
	}

	code := statusCode(e.Status)
	message := e.Message
	if e.Kind == KindUnknown || message == "" {
		message = domain.GenericMessage
	}
	if code == domain.EINTERNAL {
		return domain.Internal(e.Err, e.Op, message)
	}
	return domain.Errorf(code, e.Op, "%s", message)
}

// statusCode maps a backend HTTP status onto a domain error code.
func statusCode(status int) string {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return domain.EINVALID
	case http.StatusUnauthorized:
		return domain.EUNAUTHORIZED
	case http.StatusForbidden:
		return domain.EFORBIDDEN
	case http.StatusNotFound:
		return domain.ENOTFOUND
	case http.StatusConflict:
		return domain.ECONFLICT
	case http.StatusRequestEntityTooLarge:
		return domain.ETOOLARGE
	case http.StatusTooManyRequests:
		return domain.ERATELIMIT
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return domain.EUNAVAILABLE
	default:
		return domain.EINTERNAL
	}
}

// AsError reports whether err is (or wraps) a backend call failure.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// errorBody is the failure shape used by the backend.
type errorBody struct {
	Message string                     `json:"message"`
	Errors  map[string]json.RawMessage `json:"errors"`
}

// classify builds an Error from a non-2xx response body.
func classify(op, resource string, status int, body []byte) *Error {
	e := &Error{Op: op, Resource: resource, Status: status, Kind: KindUnknown}

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		e.Err = fmt.Errorf("decode error body: %w", err)
		return e
	}

	e.Message = strings.TrimSpace(eb.Message)
	if fields := decodeFieldErrors(eb.Errors); len(fields) > 0 {
		e.Kind = KindFieldErrors
		e.Fields = fields
		return e
	}
	if e.Message != "" {
		e.Kind = KindMessage
	}
	return e
}

// decodeFieldErrors accepts both {"f": ["m1", "m2"]} and {"f": "m"}.
func decodeFieldErrors(raw map[string]json.RawMessage) map[string][]string {
	fields := make(map[string][]string, len(raw))
	for name, value := range raw {
		var list []string
		if err := json.Unmarshal(value, &list); err == nil {
			list = nonEmpty(list)
			if len(list) > 0 {
				fields[name] = list
			}
			continue
		}
		var single string
		if err := json.Unmarshal(value, &single); err == nil && strings.TrimSpace(single) != "" {
			fields[name] = []string{strings.TrimSpace(single)}
		}
	}
	return fields
}

func nonEmpty(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
