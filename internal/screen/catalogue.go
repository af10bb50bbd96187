package screen

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"io"
	"os"

	"github.com/microcosm-cc/bluemonday"
	"gopkg.in/yaml.v3"
)

//go:embed screens.yaml
var defaultCatalogue []byte

// reserved slugs collide with console routes.
var reserved = map[string]bool{
	"login": true, "logout": true, "static": true, "health": true, "metrics": true,
}

// Catalogue is the set of configured screens, in navigation order.
type Catalogue struct {
	screens []*Screen
	bySlug  map[string]*Screen
}

type catalogueFile struct {
	Screens []*Screen `yaml:"screens"`
}

// Default returns the catalogue embedded in the binary.
func Default() (*Catalogue, error) {
	return Load(bytes.NewReader(defaultCatalogue))
}

// LoadFile reads a catalogue from a YAML file.
func LoadFile(path string) (*Catalogue, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open screens file: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load parses and validates a YAML catalogue.
func Load(r io.Reader) (*Catalogue, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var file catalogueFile
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("decode screens: %w", err)
	}
	if len(file.Screens) == 0 {
		return nil, fmt.Errorf("decode screens: no screens defined")
	}

	policy := bluemonday.UGCPolicy()
	c := &Catalogue{bySlug: make(map[string]*Screen, len(file.Screens))}
	for _, s := range file.Screens {
		if err := s.validate(); err != nil {
			return nil, err
		}
		if reserved[s.Slug] {
			return nil, fmt.Errorf("screen slug %q is reserved", s.Slug)
		}
		if _, dup := c.bySlug[s.Slug]; dup {
			return nil, fmt.Errorf("duplicate screen slug %q", s.Slug)
		}
		s.DescriptionHTML = template.HTML(policy.Sanitize(s.Description))
		c.screens = append(c.screens, s)
		c.bySlug[s.Slug] = s
	}
	return c, nil
}

// Get returns the screen with the given slug.
func (c *Catalogue) Get(slug string) (*Screen, bool) {
	s, ok := c.bySlug[slug]
	return s, ok
}

// All returns the screens in configuration order.
func (c *Catalogue) All() []*Screen {
	out := make([]*Screen, len(c.screens))
	copy(out, c.screens)
	return out
}
