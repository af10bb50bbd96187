package handler

import (
	"fmt"
	"html/template"
	"strings"
	"time"

	twmerge "github.com/Oudwins/tailwind-merge-go"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/SanmishaTech/jssp-sub001/internal/csrf"
	"github.com/SanmishaTech/jssp-sub001/internal/screen"
	"github.com/SanmishaTech/jssp-sub001/internal/table"
)

// TemplateFuncs returns a FuncMap with custom template functions.
func TemplateFuncs() template.FuncMap {
	return template.FuncMap{
		// Date functions
		"year": func() int {
			return time.Now().Year()
		},

		// String functions
		"hasPrefix": func(s, prefix string) bool {
			return strings.HasPrefix(s, prefix)
		},
		"lower": func(s string) string {
			return strings.ToLower(s)
		},
		"title": func(v any) string {
			s := fmt.Sprint(v)
			return cases.Title(language.English).String(s)
		},

		// Conditional/Logic functions
		"ternary": func(condition bool, trueVal, falseVal any) any {
			if condition {
				return trueVal
			}
			return falseVal
		},
		"eq": func(a, b any) bool {
			return a == b
		},
		"ne": func(a, b any) bool {
			return a != b
		},

		// Form helpers
		"csrfField": func(token string) template.HTML {
			return template.HTML(fmt.Sprintf(`<input type="hidden" name="%s" value="%s">`, csrf.FormFieldName, template.HTMLEscapeString(token)))
		},
		"inputType": func(f screen.FieldSpec) string {
			switch f.Type {
			case screen.FieldEmail, screen.FieldNumber, screen.FieldDate, screen.FieldFile, screen.FieldPassword:
				return f.Type
			default:
				return "text"
			}
		},
		"required": func(f screen.FieldSpec) bool {
			for _, rule := range strings.Split(f.Rules, ",") {
				if rule == "required" {
					return true
				}
			}
			return false
		},

		// Class composition; later classes win over conflicting earlier ones
		"cx": func(classes ...string) string {
			return twmerge.Merge(classes...)
		},

		// Table rendering
		"table": table.HTML,

		// Toast styling
		"toastColor": func(kind string) string {
			switch kind {
			case "success":
				return "border-green-400 bg-green-50 text-green-800"
			case "error":
				return "border-red-400 bg-red-50 text-red-800"
			case "warning":
				return "border-yellow-400 bg-yellow-50 text-yellow-800"
			default:
				return "border-blue-400 bg-blue-50 text-blue-800"
			}
		},
	}
}
