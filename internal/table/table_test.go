package table

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SanmishaTech/jssp-sub001/internal/apiclient"
	"github.com/SanmishaTech/jssp-sub001/internal/screen"
)

func staffScreen() *screen.Screen {
	return &screen.Screen{
		Slug:     "staff",
		Title:    "Staff",
		Singular: "Staff member",
		Headers: []screen.Column{
			{Label: "Name", Key: "one", Field: "name", Fallback: "NA"},
			{Label: "Department", Key: "two", Field: "department.name", Fallback: "NA"},
			{Label: "Actions", Key: screen.ActionKey},
		},
		Actions: []screen.Action{
			{Name: screen.ActionEdit, Label: "Edit"},
			{Name: screen.ActionDelete, Label: "Delete"},
		},
	}
}

func render(t *testing.T, v View) *goquery.Document {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, v))
	doc, err := goquery.NewDocumentFromReader(&buf)
	require.NoError(t, err)
	return doc
}

func TestMapRows_UsesFallbackForMissingValues(t *testing.T) {
	var entities []apiclient.Entity
	require.NoError(t, json.Unmarshal([]byte(`[
		{"id": 1, "name": "John Doe", "department": {"name": "Physics"}},
		{"id": 2, "name": "  ", "department": null}
	]`), &entities))

	got := MapRows(staffScreen(), entities)
	want := []Row{
		{ID: "1", Cells: map[string]string{"one": "John Doe", "two": "Physics"}},
		{ID: "2", Cells: map[string]string{"one": "NA", "two": "NA"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("MapRows mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_OneRowPerRecordAndCellPerHeader(t *testing.T) {
	rows := []Row{
		{ID: "1", Cells: map[string]string{"one": "John Doe", "two": "Physics"}},
		{ID: "2", Cells: map[string]string{"one": "Asha"}},
	}

	v := Build(Config{Screen: staffScreen()}, rows, apiclient.Pagination{CurrentPage: 1, LastPage: 1, PerPage: 10, Total: 2})

	require.Len(t, v.Rows, 2)
	for _, r := range v.Rows {
		assert.Len(t, r.Cells, 3)
	}
	assert.Equal(t, "NA", v.Rows[1].Cells[1].Text)
	assert.False(t, v.Empty)
	assert.Equal(t, "Showing 1-2 of 2", v.Summary)

	actions := v.Rows[0].Cells[2].Actions
	require.Len(t, actions, 2)
	assert.Equal(t, "/staff/1/edit", actions[0].HxGet)
	assert.Equal(t, "/staff/1", actions[1].HxDel)
	assert.Equal(t, "/staff/1/delete", actions[1].Href)
	assert.Contains(t, actions[1].Confirm, "Staff member")
	assert.Contains(t, actions[1].Class, "text-red-600")
	assert.NotContains(t, actions[1].Class, "text-indigo-600")
}

func TestBuild_EmptyPage(t *testing.T) {
	v := Build(Config{Screen: staffScreen()}, nil, apiclient.Pagination{})

	assert.True(t, v.Empty)
	assert.Empty(t, v.Rows)
	assert.Equal(t, "Showing 0-0 of 0", v.Summary)
	assert.Equal(t, 1, v.TotalPages)
	assert.Nil(t, v.Prev)
	assert.Nil(t, v.Next)

	doc := render(t, v)
	assert.Equal(t, 0, doc.Find("tbody tr[data-id]").Length())
	assert.Equal(t, "No Staff found.", strings.TrimSpace(doc.Find("[data-empty]").Text()))
	assert.Equal(t, 0, doc.Find("nav a").Length())
}

func TestBuild_SecondPageSummaryAndLinks(t *testing.T) {
	rows := make([]Row, 10)
	for i := range rows {
		rows[i] = Row{ID: string(rune('a' + i)), Cells: map[string]string{"one": "x", "two": "y"}}
	}

	v := Build(Config{Screen: staffScreen(), Search: "jo hn"}, rows, apiclient.Pagination{CurrentPage: 2, LastPage: 3, PerPage: 10, Total: 25})

	assert.Equal(t, "Showing 11-20 of 25", v.Summary)
	require.NotNil(t, v.Prev)
	require.NotNil(t, v.Next)
	assert.Equal(t, "/staff/table?page=1&search=jo+hn", v.Prev.HxGet)
	assert.Equal(t, "/staff?page=3&search=jo+hn", v.Next.Href)
	assert.Len(t, v.Pages, 3)
	assert.True(t, v.Pages[1].Current)
}

func TestRender_SingleRow(t *testing.T) {
	rows := []Row{{ID: "1", Cells: map[string]string{"one": "John Doe", "two": "Physics"}}}
	v := Build(Config{Screen: staffScreen()}, rows, apiclient.Pagination{CurrentPage: 1, LastPage: 1, PerPage: 10, Total: 1})

	doc := render(t, v)

	assert.Equal(t, 1, doc.Find("#table-staff tbody tr[data-id]").Length())
	assert.Equal(t, "John Doe", doc.Find("tbody td").First().Text())
	assert.Equal(t, "Showing 1-1 of 1", strings.TrimSpace(doc.Find("[data-summary]").Text()))

	del := doc.Find(`a[hx-delete="/staff/1"]`)
	require.Equal(t, 1, del.Length())
	confirm, _ := del.Attr("hx-confirm")
	assert.Contains(t, confirm, "Delete this Staff member?")
	assert.Equal(t, 0, doc.Find("[data-empty]").Length())
}

func TestRender_ErrorKeepsRows(t *testing.T) {
	rows := []Row{{ID: "1", Cells: map[string]string{"one": "John Doe"}}}
	v := Build(Config{Screen: staffScreen(), Error: "Could not load Staff."}, rows, apiclient.Pagination{CurrentPage: 1, LastPage: 1, Total: 1})

	doc := render(t, v)
	assert.Equal(t, "Could not load Staff.", doc.Find("[data-table-error]").Text())
	assert.Equal(t, 1, doc.Find("tbody tr[data-id]").Length())
}

func TestPageRange(t *testing.T) {
	tests := []struct {
		current, total int
		want           []int
	}{
		{1, 1, []int{1}},
		{3, 5, []int{1, 2, 3, 4, 5}},
		{1, 10, []int{1, 2, -1, 10}},
		{5, 10, []int{1, -1, 4, 5, 6, -1, 10}},
		{10, 10, []int{1, -1, 9, 10}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PageRange(tt.current, tt.total), "page %d of %d", tt.current, tt.total)
	}
}
