package apiclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"sort"
	"strings"
)

// Attachment is a file forwarded to the backend in a multipart body.
type Attachment struct {
	Field       string // form field name
	Filename    string
	ContentType string
	Data        []byte
}

// Payload is the body of a create or update call.
type Payload struct {
	Values      map[string]string
	Attachments []Attachment

	// Multipart forces multipart encoding even without attachments, for
	// resources whose endpoints only accept multipart bodies.
	Multipart bool
}

// IsMultipart reports whether the payload is sent as multipart/form-data.
func (p Payload) IsMultipart() bool {
	return p.Multipart || len(p.Attachments) > 0
}

// encode returns the body and its content type. methodOverride, when set, is
// written as the _method field of multipart bodies.
func (p Payload) encode(methodOverride string) (io.Reader, string, error) {
	if !p.IsMultipart() {
		values := p.Values
		if values == nil {
			values = map[string]string{}
		}
		b, err := json.Marshal(values)
		if err != nil {
			return nil, "", fmt.Errorf("encode json payload: %w", err)
		}
		return bytes.NewReader(b), "application/json", nil
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	keys := make([]string, 0, len(p.Values))
	for k := range p.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := mw.WriteField(k, p.Values[k]); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", k, err)
		}
	}
	if methodOverride != "" {
		if err := mw.WriteField("_method", methodOverride); err != nil {
			return nil, "", fmt.Errorf("write method override: %w", err)
		}
	}

	for _, a := range p.Attachments {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			escapeQuotes(a.Field), escapeQuotes(a.Filename)))
		ct := a.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		part, err := mw.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("create part %s: %w", a.Field, err)
		}
		if _, err := part.Write(a.Data); err != nil {
			return nil, "", fmt.Errorf("write part %s: %w", a.Field, err)
		}
	}

	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
