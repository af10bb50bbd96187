package table

import (
	"bytes"
	_ "embed"
	"html/template"
	"io"
)

//go:embed table.html
var tableHTML string

var tmpl = template.Must(template.New("table").Parse(tableHTML))

// Render writes the table view as an HTML fragment.
func Render(w io.Writer, v View) error {
	return tmpl.ExecuteTemplate(w, "table", v)
}

// HTML renders the view for embedding into a page template.
func HTML(v View) (template.HTML, error) {
	var buf bytes.Buffer
	if err := Render(&buf, v); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}
