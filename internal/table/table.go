// Package table turns a page of rows into a renderable table view.
//
// Build is pure: it performs no I/O and depends only on its arguments. Row
// actions and pager links are plain URLs (with htmx attributes) pointing back
// at the screen routes, so the table never talks to the backend itself.
package table

import (
	"fmt"
	"net/url"
	"strconv"

	twmerge "github.com/Oudwins/tailwind-merge-go"

	"github.com/SanmishaTech/jssp-sub001/internal/apiclient"
	"github.com/SanmishaTech/jssp-sub001/internal/screen"
)

const (
	baseCellClass   = "whitespace-nowrap px-3 py-4 text-sm text-gray-700"
	baseHeaderClass = "px-3 py-3.5 text-left text-sm font-semibold text-gray-900"
	baseActionClass = "rounded px-2 py-1 text-sm font-medium text-indigo-600 hover:text-indigo-900"
	deleteClass     = "text-red-600 hover:text-red-800"
)

// Config is everything Build needs besides the rows.
type Config struct {
	Screen *screen.Screen
	Search string // current search term, carried on pager links

	// Error, when set, is shown above the (stale) rows.
	Error string
}

// Header is one rendered column header.
type Header struct {
	Label string
	Class string
}

// Link is a row action or pager link.
type Link struct {
	Label   string
	Href    string // plain navigation target, used without htmx
	HxGet   string
	HxDel   string
	Confirm string
	Class   string
}

// Cell is one table cell. Action cells carry links instead of text.
type Cell struct {
	Text    string
	Class   string
	Actions []Link
}

// ViewRow is one rendered row.
type ViewRow struct {
	ID    string
	Cells []Cell
}

// PageLink is one entry of the pager. Ellipsis entries have no Href.
type PageLink struct {
	Number   int
	Ellipsis bool
	Current  bool
	Href     string
	HxGet    string
}

// View is the output of Build.
type View struct {
	DOMID        string // id of the table container, used as htmx target
	Title        string
	Slug         string
	Search       string
	Headers      []Header
	Rows         []ViewRow
	Empty        bool
	EmptyMessage string
	Error        string

	Summary     string
	From        int
	To          int
	Total       int
	CurrentPage int
	TotalPages  int
	Pages       []PageLink
	Prev        *PageLink
	Next        *PageLink
}

// DOMID returns the container id of a screen's table.
func DOMID(slug string) string {
	return "table-" + slug
}

// Build produces the view for one page of rows.
func Build(cfg Config, rows []Row, p apiclient.Pagination) View {
	s := cfg.Screen
	v := View{
		DOMID:        DOMID(s.Slug),
		Title:        s.Title,
		Slug:         s.Slug,
		Search:       cfg.Search,
		Error:        cfg.Error,
		Empty:        len(rows) == 0,
		EmptyMessage: fmt.Sprintf("No %s found.", s.Title),
		Total:        p.Total,
		CurrentPage:  max(p.CurrentPage, 1),
		TotalPages:   max(p.LastPage, 1),
	}
	if cfg.Search != "" {
		v.EmptyMessage = fmt.Sprintf("No %s match %q.", s.Title, cfg.Search)
	}

	for _, col := range s.Headers {
		v.Headers = append(v.Headers, Header{Label: col.Label, Class: twmerge.Merge(baseHeaderClass, col.Class)})
	}

	for _, r := range rows {
		vr := ViewRow{ID: r.ID, Cells: make([]Cell, 0, len(s.Headers))}
		for _, col := range s.Headers {
			if col.Key == screen.ActionKey {
				vr.Cells = append(vr.Cells, Cell{Class: twmerge.Merge(baseCellClass, "text-right"), Actions: actionLinks(s, r.ID)})
				continue
			}
			text, ok := r.Cells[col.Key]
			if !ok || text == "" {
				text = screen.DefaultFallback
			}
			vr.Cells = append(vr.Cells, Cell{Text: text, Class: twmerge.Merge(baseCellClass, col.Class)})
		}
		v.Rows = append(v.Rows, vr)
	}

	v.From, v.To = bounds(v.CurrentPage, p.PerPage, len(rows))
	if v.Total == 0 {
		v.From, v.To = 0, 0
	}
	v.Summary = s.Summary(v.From, v.To, v.Total)

	for _, n := range PageRange(v.CurrentPage, v.TotalPages) {
		if n < 0 {
			v.Pages = append(v.Pages, PageLink{Ellipsis: true})
			continue
		}
		v.Pages = append(v.Pages, pageLink(s.Slug, cfg.Search, n, n == v.CurrentPage))
	}
	if v.CurrentPage > 1 {
		prev := pageLink(s.Slug, cfg.Search, v.CurrentPage-1, false)
		v.Prev = &prev
	}
	if v.CurrentPage < v.TotalPages {
		next := pageLink(s.Slug, cfg.Search, v.CurrentPage+1, false)
		v.Next = &next
	}
	return v
}

func actionLinks(s *screen.Screen, id string) []Link {
	base := "/" + s.Slug + "/" + url.PathEscape(id)
	links := make([]Link, 0, len(s.Actions))
	for _, a := range s.Actions {
		switch a.Name {
		case screen.ActionView:
			links = append(links, Link{Label: a.Label, Href: base, Class: baseActionClass})
		case screen.ActionEdit:
			links = append(links, Link{Label: a.Label, Href: base + "/edit", HxGet: base + "/edit", Class: baseActionClass})
		case screen.ActionDelete:
			links = append(links, Link{
				Label:   a.Label,
				Href:    base + "/delete",
				HxDel:   base,
				Confirm: fmt.Sprintf("Delete this %s? This cannot be undone.", s.Singular),
				Class:   twmerge.Merge(baseActionClass, deleteClass),
			})
		}
	}
	return links
}

func pageLink(slug, search string, n int, current bool) PageLink {
	q := url.Values{}
	if search != "" {
		q.Set("search", search)
	}
	q.Set("page", strconv.Itoa(n))
	return PageLink{
		Number:  n,
		Current: current,
		Href:    "/" + slug + "?" + q.Encode(),
		HxGet:   "/" + slug + "/table?" + q.Encode(),
	}
}
