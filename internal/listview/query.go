package listview

import (
	"net/http"
	"strings"

	"github.com/go-playground/form"
)

var decoder = form.NewDecoder()

// Query selects one page of a listing.
type Query struct {
	Search string `form:"search"`
	Page   int    `form:"page"`
}

// normalize trims the search term and clamps the page to 1.
func (q Query) normalize() Query {
	q.Search = strings.TrimSpace(q.Search)
	if q.Page < 1 {
		q.Page = 1
	}
	return q
}

// QueryFromRequest decodes search and page from the URL query and, for
// form posts, the body. A malformed page falls back to 1.
func QueryFromRequest(r *http.Request) Query {
	var q Query
	if err := r.ParseForm(); err != nil {
		return Query{Page: 1}
	}
	if err := decoder.Decode(&q, r.Form); err != nil {
		q = Query{Search: lastValue(r, "search"), Page: 1}
	}
	return q.normalize()
}

// lastValue returns the last occurrence of key. htmx hx-include can append
// the current form state after stale URL values.
func lastValue(r *http.Request, key string) string {
	if v := r.Form[key]; len(v) > 0 {
		return v[len(v)-1]
	}
	return ""
}
