package apiclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Entity is one backend record. Its fields vary per resource.
type Entity map[string]any

// ID returns the entity's "id" field as a string, or "".
func (e Entity) ID() string {
	return Stringify(e["id"])
}

// Pagination mirrors the backend's pagination block.
type Pagination struct {
	CurrentPage int `json:"current_page"`
	LastPage    int `json:"last_page"`
	PerPage     int `json:"per_page"`
	Total       int `json:"total"`
}

// Page is one page of a resource listing.
type Page struct {
	Items      []Entity
	Pagination Pagination
}

// envelope is the outer {data: {...}} wrapper.
type envelope struct {
	Data json.RawMessage `json:"data"`
}

// flexInt accepts 3, "3" and null.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("pagination value %q: %w", s, err)
	}
	*f = flexInt(n)
	return nil
}

type rawPagination struct {
	CurrentPage flexInt `json:"current_page"`
	LastPage    flexInt `json:"last_page"`
	PerPage     flexInt `json:"per_page"`
	Total       flexInt `json:"total"`
}

// decodeData returns the members of the data object.
func decodeData(body []byte) (map[string]json.RawMessage, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, fmt.Errorf("decode envelope: missing data")
	}
	var data map[string]json.RawMessage
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("decode envelope data: %w", err)
	}
	return data, nil
}

// member finds key in data, falling back to a case-insensitive match.
func member(data map[string]json.RawMessage, key string) (json.RawMessage, bool) {
	if raw, ok := data[key]; ok {
		return raw, true
	}
	for k, raw := range data {
		if strings.EqualFold(k, key) {
			return raw, true
		}
	}
	return nil, false
}

// decodePage decodes {data: {Key: [...], Pagination: {...}}}.
func decodePage(body []byte, key string) (*Page, error) {
	data, err := decodeData(body)
	if err != nil {
		return nil, err
	}

	raw, ok := member(data, key)
	if !ok {
		return nil, fmt.Errorf("decode page: data has no %q member", key)
	}
	items, err := decodeEntities(raw)
	if err != nil {
		return nil, fmt.Errorf("decode page %q: %w", key, err)
	}

	page := &Page{Items: items}
	if rawPg, ok := member(data, "Pagination"); ok {
		var rp rawPagination
		if err := json.Unmarshal(rawPg, &rp); err != nil {
			return nil, fmt.Errorf("decode pagination: %w", err)
		}
		page.Pagination = Pagination{
			CurrentPage: int(rp.CurrentPage),
			LastPage:    int(rp.LastPage),
			PerPage:     int(rp.PerPage),
			Total:       int(rp.Total),
		}
	} else {
		// Unpaginated listing: everything is on one page.
		page.Pagination = Pagination{CurrentPage: 1, LastPage: 1, PerPage: len(items), Total: len(items)}
	}
	normalizePagination(&page.Pagination, len(items))
	return page, nil
}

func normalizePagination(p *Pagination, n int) {
	if p.CurrentPage < 1 {
		p.CurrentPage = 1
	}
	if p.LastPage < 1 {
		p.LastPage = 1
	}
	if p.Total < n {
		p.Total = n
	}
	if p.PerPage < 1 {
		p.PerPage = n
	}
}

// decodeEntity decodes {data: {Key: {...}}}. When the key is absent but data
// itself looks like the entity, data is used.
func decodeEntity(body []byte, key string) (Entity, error) {
	data, err := decodeData(body)
	if err != nil {
		return nil, err
	}
	if raw, ok := member(data, key); ok {
		return decodeOne(raw)
	}
	if _, ok := data["id"]; ok {
		entity := make(Entity, len(data))
		for k, v := range data {
			entity[k], err = decodeValue(v)
			if err != nil {
				return nil, err
			}
		}
		return entity, nil
	}
	return nil, fmt.Errorf("decode entity: data has no %q member", key)
}

func decodeEntities(raw json.RawMessage) ([]Entity, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var items []Entity
	if err := dec.Decode(&items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []Entity{}
	}
	return items, nil
}

func decodeOne(raw json.RawMessage) (Entity, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var entity Entity
	if err := dec.Decode(&entity); err != nil {
		return nil, fmt.Errorf("decode entity: %w", err)
	}
	return entity, nil
}

func decodeValue(raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode value: %w", err)
	}
	return v, nil
}

// Stringify renders a decoded JSON value for display. Objects and arrays are
// rendered as JSON; nil is "".
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case map[string]any, []any:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	default:
		return fmt.Sprint(t)
	}
}

// Lookup resolves a dotted path ("department.name") inside an entity.
func Lookup(e Entity, path string) (any, bool) {
	var cur any = map[string]any(e)
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}
