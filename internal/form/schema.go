package form

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/SanmishaTech/jssp-sub001/internal/screen"
)

var validate = validator.New()

// Schema validates submitted values against a screen's field rules.
type Schema struct {
	fields []screen.FieldSpec
}

// NewSchema builds a schema, rejecting rules the validator does not know.
func NewSchema(fields []screen.FieldSpec) (*Schema, error) {
	for _, f := range fields {
		if f.IsFile() || f.Rules == "" {
			continue
		}
		if err := CheckRules(f.Rules); err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
	}
	return &Schema{fields: fields}, nil
}

// CheckRules reports whether a validator tag string is usable. The validator
// panics on undefined tags, so the probe recovers.
func CheckRules(rules string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("invalid rules %q: %v", rules, r)
		}
	}()
	verr := validate.Var("", rules)
	var invalid *validator.InvalidValidationError
	if errors.As(verr, &invalid) {
		return fmt.Errorf("invalid rules %q: %w", rules, verr)
	}
	return nil
}

// Fields returns the fields shown in the given mode.
func (s *Schema) Fields(mode Mode) []screen.FieldSpec {
	out := make([]screen.FieldSpec, 0, len(s.fields))
	for _, f := range s.fields {
		if mode == ModeCreate && f.EditOnly || mode == ModeEdit && f.CreateOnly {
			continue
		}
		out = append(out, f)
	}
	return out
}

// Validate checks values and returns the failures keyed by field name.
// hasFile reports which file fields carry an upload.
func (s *Schema) Validate(mode Mode, values map[string]string, hasFile map[string]bool) map[string][]string {
	errs := make(map[string][]string)
	for _, f := range s.Fields(mode) {
		if f.IsFile() {
			if strings.Contains(f.Rules, "required") && mode == ModeCreate && !hasFile[f.Name] {
				errs[f.Name] = append(errs[f.Name], f.Label+" is required.")
			}
			continue
		}
		if f.Rules == "" {
			continue
		}
		if f.Type == screen.FieldPassword && mode == ModeEdit && values[f.Name] == "" {
			continue
		}

		err := validate.Var(strings.TrimSpace(values[f.Name]), f.Rules)
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				errs[f.Name] = append(errs[f.Name], message(f, fe))
			}
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

func message(f screen.FieldSpec, fe validator.FieldError) string {
	label := f.Label
	switch fe.Tag() {
	case "required":
		return label + " is required."
	case "email":
		return label + " must be a valid email address."
	case "min":
		return fmt.Sprintf("%s must be at least %s characters.", label, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters.", label, fe.Param())
	case "len":
		return fmt.Sprintf("%s must be exactly %s characters.", label, fe.Param())
	case "number", "numeric":
		return label + " must be a number."
	case "alphanum":
		return label + " may only contain letters and digits."
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s.", label, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "datetime":
		if strings.Contains(fe.Param(), "2006") {
			return label + " must be a valid date."
		}
		return label + " must be a valid time."
	default:
		return label + " is invalid."
	}
}
