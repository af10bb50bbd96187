package screen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_LoadsEmbeddedCatalogue(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	slugs := make([]string, 0)
	for _, s := range c.All() {
		slugs = append(slugs, s.Slug)
	}
	assert.Equal(t, []string{
		"staff", "students", "courses", "committees", "meetings",
		"inventory", "events", "members", "leaves",
	}, slugs)

	staff, ok := c.Get("staff")
	require.True(t, ok)
	assert.True(t, staff.Multipart)
	assert.True(t, staff.HasAction(ActionDelete))
	assert.Equal(t, "Staff", staff.EntityKey)
	assert.Equal(t, DefaultFallback, staff.Headers[0].Fallback)
	assert.Equal(t, "Unknown", staff.Headers[4].Fallback)

	leaves, _ := c.Get("leaves")
	assert.False(t, leaves.HasAction(ActionDelete))
}

func TestLoad_ActionScalarAndMapping(t *testing.T) {
	c, err := Load(strings.NewReader(`
screens:
  - slug: rooms
    key: Rooms
    headers:
      - {label: Room, key: one, field: room_name}
      - {label: Actions, key: action}
    actions:
      - edit
      - {name: delete, label: Remove}
`))
	require.NoError(t, err)

	s, ok := c.Get("rooms")
	require.True(t, ok)
	assert.Equal(t, []Action{{Name: "edit", Label: "Edit"}, {Name: "delete", Label: "Remove"}}, s.Actions)
	assert.Equal(t, "rooms", s.Resource)
	assert.Equal(t, "Rooms", s.Title)
	assert.False(t, s.Multipart)
}

func TestLoad_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "empty",
			yaml: `screens: []`,
			want: "no screens",
		},
		{
			name: "unknown member",
			yaml: `
screens:
  - slug: a
    key: A
    colour: red
    headers: [{label: A, key: one, field: a}]`,
			want: "colour",
		},
		{
			name: "bad header key",
			yaml: `
screens:
  - slug: a
    key: A
    headers: [{label: A, key: eighteen, field: a}]`,
			want: "eighteen",
		},
		{
			name: "action column without actions",
			yaml: `
screens:
  - slug: a
    key: A
    headers: [{label: Actions, key: action}]`,
			want: "action column without actions",
		},
		{
			name: "unknown action",
			yaml: `
screens:
  - slug: a
    key: A
    actions: [archive]
    headers: [{label: A, key: one, field: a}]`,
			want: "unknown action",
		},
		{
			name: "reserved slug",
			yaml: `
screens:
  - slug: login
    key: A
    headers: [{label: A, key: one, field: a}]`,
			want: "reserved",
		},
		{
			name: "duplicate slug",
			yaml: `
screens:
  - slug: a
    key: A
    headers: [{label: A, key: one, field: a}]
  - slug: a
    key: B
    headers: [{label: B, key: one, field: b}]`,
			want: "duplicate screen slug",
		},
		{
			name: "select without options",
			yaml: `
screens:
  - slug: a
    key: A
    headers: [{label: A, key: one, field: a}]
    fields: [{name: kind, type: select}]`,
			want: "no options",
		},
		{
			name: "slug with uppercase",
			yaml: `
screens:
  - slug: Staff
    key: A
    headers: [{label: A, key: one, field: a}]`,
			want: "lowercase",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_FileFieldForcesMultipart(t *testing.T) {
	c, err := Load(strings.NewReader(`
screens:
  - slug: gallery
    key: Images
    headers: [{label: Caption, key: one, field: caption}]
    fields:
      - {name: caption}
      - {name: image, type: file, accept: "image/*"}
`))
	require.NoError(t, err)

	s, _ := c.Get("gallery")
	assert.True(t, s.Multipart)
	assert.True(t, s.HasFileFields())

	f, ok := s.Field("caption")
	require.True(t, ok)
	assert.Equal(t, FieldText, f.Type)
	assert.Equal(t, "caption", f.Label)
}

func TestLoad_SanitizesDescription(t *testing.T) {
	c, err := Load(strings.NewReader(`
screens:
  - slug: a
    key: A
    description: 'Read <em>carefully</em><script>alert(1)</script>'
    headers: [{label: A, key: one, field: a}]
`))
	require.NoError(t, err)

	s, _ := c.Get("a")
	assert.Contains(t, string(s.DescriptionHTML), "<em>carefully</em>")
	assert.NotContains(t, string(s.DescriptionHTML), "script")
}

func TestSummary(t *testing.T) {
	s := &Screen{}
	assert.Equal(t, "Showing 11-20 of 25", s.Summary(11, 20, 25))

	s.PaginationSummary = "{from} to {to} ({total} staff)"
	assert.Equal(t, "0 to 0 (0 staff)", s.Summary(0, 0, 0))
}
