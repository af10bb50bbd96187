// Package screen holds the static description of every list screen in the
// console: which backend resource it shows, its columns, row actions and the
// fields of its create/edit form.
//
// Screens are loaded once at startup from YAML and never change afterwards.
package screen

import (
	"fmt"
	"html/template"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ActionKey is the header key of the column that renders row actions.
const ActionKey = "action"

// PositionalKeys are the header keys a row may carry, in column order.
var PositionalKeys = []string{
	"one", "two", "three", "four", "five", "six", "seven", "eight", "nine",
	"ten", "eleven", "twelve", "thirteen", "fourteen", "fifteen", "sixteen", "seventeen",
}

// DefaultFallback is displayed for cells whose value is absent.
const DefaultFallback = "NA"

// DefaultPaginationSummary is used when a screen does not set one.
const DefaultPaginationSummary = "Showing {from}-{to} of {total}"

// Column is one table header.
type Column struct {
	Label    string `yaml:"label"`
	Key      string `yaml:"key"`      // positional key ("one".."seventeen") or "action"
	Field    string `yaml:"field"`    // dotted path into the backend entity
	Fallback string `yaml:"fallback"` // shown when Field is absent or empty
	Class    string `yaml:"class"`    // extra CSS classes for the cell
}

// Action names understood by the table.
const (
	ActionView   = "view"
	ActionEdit   = "edit"
	ActionDelete = "delete"
)

// Action is a row action.
type Action struct {
	Name  string `yaml:"name"`
	Label string `yaml:"label"`
}

// UnmarshalYAML accepts both "edit" and {name: edit, label: Modify}.
func (a *Action) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		a.Name = node.Value
		return nil
	}
	type plain Action
	return node.Decode((*plain)(a))
}

// Field types supported by forms.
const (
	FieldText     = "text"
	FieldEmail    = "email"
	FieldNumber   = "number"
	FieldDate     = "date"
	FieldTextarea = "textarea"
	FieldSelect   = "select"
	FieldFile     = "file"
	FieldPassword = "password"
)

var fieldTypes = map[string]bool{
	FieldText: true, FieldEmail: true, FieldNumber: true, FieldDate: true,
	FieldTextarea: true, FieldSelect: true, FieldFile: true, FieldPassword: true,
}

// Option is a select choice.
type Option struct {
	Value string `yaml:"value"`
	Label string `yaml:"label"`
}

// FieldSpec describes one form field.
type FieldSpec struct {
	Name        string   `yaml:"name"`
	Label       string   `yaml:"label"`
	Type        string   `yaml:"type"`
	Rules       string   `yaml:"rules"` // validator tag, e.g. "required,email"
	Placeholder string   `yaml:"placeholder"`
	Options     []Option `yaml:"options"`
	Accept      string   `yaml:"accept"`    // file inputs
	EditOnly    bool     `yaml:"edit_only"` // shown only when editing
	CreateOnly  bool     `yaml:"create_only"`
}

// IsFile reports whether the field carries an attachment.
func (f FieldSpec) IsFile() bool {
	return f.Type == FieldFile
}

// Screen is the configuration of one list screen (a TableConfig plus the
// form description and backend resource binding).
type Screen struct {
	Slug              string      `yaml:"slug"`
	Resource          string      `yaml:"resource"`   // path segment under /api/
	Key               string      `yaml:"key"`        // data member holding list rows
	EntityKey         string      `yaml:"entity_key"` // data member holding a single entity; defaults to Key
	Title             string      `yaml:"title"`
	Singular          string      `yaml:"singular"`
	Description       string      `yaml:"description"`
	Headers           []Column    `yaml:"headers"`
	Actions           []Action    `yaml:"actions"`
	PaginationSummary string      `yaml:"pagination_summary"`
	Fields            []FieldSpec `yaml:"fields"`
	Multipart         bool        `yaml:"multipart"`

	// DescriptionHTML is Description after sanitizing.
	DescriptionHTML template.HTML `yaml:"-"`
}

// HasAction reports whether the screen offers the named row action.
func (s *Screen) HasAction(name string) bool {
	for _, a := range s.Actions {
		if a.Name == name {
			return true
		}
	}
	return false
}

// Field returns the named form field.
func (s *Screen) Field(name string) (FieldSpec, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// HasFileFields reports whether any form field is an attachment.
func (s *Screen) HasFileFields() bool {
	for _, f := range s.Fields {
		if f.IsFile() {
			return true
		}
	}
	return false
}

// Summary renders the pagination summary for the given bounds.
func (s *Screen) Summary(from, to, total int) string {
	format := s.PaginationSummary
	if format == "" {
		format = DefaultPaginationSummary
	}
	return strings.NewReplacer(
		"{from}", strconv.Itoa(from),
		"{to}", strconv.Itoa(to),
		"{total}", strconv.Itoa(total),
	).Replace(format)
}

// validate checks the screen and fills defaults.
func (s *Screen) validate() error {
	if s.Slug == "" {
		return fmt.Errorf("screen without slug")
	}
	for _, r := range s.Slug {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-') {
			return fmt.Errorf("screen %q: slug must be lowercase letters, digits or '-'", s.Slug)
		}
	}
	if s.Resource == "" {
		s.Resource = s.Slug
	}
	if s.Key == "" {
		return fmt.Errorf("screen %q: key is required", s.Slug)
	}
	if s.EntityKey == "" {
		s.EntityKey = s.Key
	}
	if s.Title == "" {
		s.Title = s.Key
	}
	if s.Singular == "" {
		s.Singular = s.Title
	}
	if len(s.Headers) == 0 {
		return fmt.Errorf("screen %q: at least one header is required", s.Slug)
	}

	for i := range s.Actions {
		a := &s.Actions[i]
		switch a.Name {
		case ActionView, ActionEdit, ActionDelete:
		default:
			return fmt.Errorf("screen %q: unknown action %q", s.Slug, a.Name)
		}
		if a.Label == "" {
			a.Label = strings.ToUpper(a.Name[:1]) + a.Name[1:]
		}
	}

	if err := s.validateHeaders(); err != nil {
		return err
	}
	return s.validateFields()
}

func (s *Screen) validateHeaders() error {
	positional := make(map[string]bool, len(PositionalKeys))
	for _, k := range PositionalKeys {
		positional[k] = true
	}

	seen := make(map[string]bool, len(s.Headers))
	for i := range s.Headers {
		h := &s.Headers[i]
		if seen[h.Key] {
			return fmt.Errorf("screen %q: duplicate header key %q", s.Slug, h.Key)
		}
		seen[h.Key] = true

		switch {
		case h.Key == ActionKey:
			if len(s.Actions) == 0 {
				return fmt.Errorf("screen %q: action column without actions", s.Slug)
			}
		case positional[h.Key]:
			if h.Field == "" {
				return fmt.Errorf("screen %q: header %q has no field", s.Slug, h.Key)
			}
			if h.Fallback == "" {
				h.Fallback = DefaultFallback
			}
		default:
			return fmt.Errorf("screen %q: header key %q is not one of one..seventeen or action", s.Slug, h.Key)
		}
	}
	return nil
}

func (s *Screen) validateFields() error {
	seen := make(map[string]bool, len(s.Fields))
	for i := range s.Fields {
		f := &s.Fields[i]
		if f.Name == "" {
			return fmt.Errorf("screen %q: field without name", s.Slug)
		}
		if seen[f.Name] {
			return fmt.Errorf("screen %q: duplicate field %q", s.Slug, f.Name)
		}
		seen[f.Name] = true
		if f.Type == "" {
			f.Type = FieldText
		}
		if !fieldTypes[f.Type] {
			return fmt.Errorf("screen %q: field %q has unknown type %q", s.Slug, f.Name, f.Type)
		}
		if f.Type == FieldSelect && len(f.Options) == 0 {
			return fmt.Errorf("screen %q: select field %q has no options", s.Slug, f.Name)
		}
		if f.Label == "" {
			f.Label = f.Name
		}
		if f.IsFile() {
			s.Multipart = true
		}
	}
	return nil
}
