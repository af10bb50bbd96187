package table

import (
	"strings"

	"github.com/SanmishaTech/jssp-sub001/internal/apiclient"
	"github.com/SanmishaTech/jssp-sub001/internal/screen"
)

// Row is one record prepared for display: the entity id plus its cells keyed
// by header key ("one".."seventeen").
type Row struct {
	ID    string
	Cells map[string]string
}

// MapRows converts backend entities into rows using the screen's columns.
// Absent, null and blank values are replaced by the column fallback.
func MapRows(s *screen.Screen, entities []apiclient.Entity) []Row {
	rows := make([]Row, 0, len(entities))
	for _, e := range entities {
		row := Row{ID: e.ID(), Cells: make(map[string]string, len(s.Headers))}
		for _, col := range s.Headers {
			if col.Key == screen.ActionKey {
				continue
			}
			row.Cells[col.Key] = cellValue(e, col)
		}
		rows = append(rows, row)
	}
	return rows
}

func cellValue(e apiclient.Entity, col screen.Column) string {
	fallback := col.Fallback
	if fallback == "" {
		fallback = screen.DefaultFallback
	}
	v, ok := apiclient.Lookup(e, col.Field)
	if !ok {
		return fallback
	}
	s := strings.TrimSpace(apiclient.Stringify(v))
	if s == "" {
		return fallback
	}
	return s
}
