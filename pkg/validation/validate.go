/*
Package validation checks processing inputs against the variables a datasource node declares.

Variables are compiled into JSON Schemas (kin-openapi) and inputs are visited in
declaration order, so the first violation is stable across calls.
*/
package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aretw0/pipeprep/pkg/domain"
	"github.com/getkin/kin-openapi/openapi3"
)

// Violation is a single input failure.
type Violation struct {
	Path    []string `json:"path"`
	Message string   `json:"message"`
}

// String renders the violation as "Path: <a.b> Error: <message>".
func (v Violation) String() string {
	return fmt.Sprintf("Path: %s Error: %s", strings.Join(v.Path, "."), v.Message)
}

// Error aggregates the violations of one validation pass.
type Error struct {
	Violations []Violation
}

func (e *Error) Error() string {
	if len(e.Violations) == 1 {
		return e.Violations[0].String()
	}
	msg := fmt.Sprintf("%d validation errors:\n", len(e.Violations))
	for i, v := range e.Violations {
		msg += fmt.Sprintf("  %d. %s\n", i+1, v.String())
	}
	return msg
}

func (e *Error) Unwrap() error { return domain.ErrValidation }

// Violations returns the violations if err is a validation Error.
// Otherwise returns nil.
func Violations(err error) []Violation {
	var verr *Error
	if errors.As(err, &verr) {
		return verr.Violations
	}
	return nil
}

// FirstNotification formats the first violation as an error notification.
// The remaining violations are suppressed.
func FirstNotification(violations []Violation) (domain.Notification, bool) {
	if len(violations) == 0 {
		return domain.Notification{}, false
	}
	return domain.Notification{Type: domain.NotifyError, Message: violations[0].String()}, true
}

// Compile builds the object schema describing all variables.
func Compile(vars []domain.Variable) *openapi3.Schema {
	root := openapi3.NewObjectSchema()
	for _, v := range vars {
		root.WithProperty(v.Variable, fieldSchema(v))
		if v.Required {
			root.Required = append(root.Required, v.Variable)
		}
	}
	return root
}

func fieldSchema(v domain.Variable) *openapi3.Schema {
	var s *openapi3.Schema
	switch v.Type {
	case domain.VarTextInput, domain.VarParagraph:
		s = openapi3.NewStringSchema()
		if v.MaxLength > 0 {
			s.WithMaxLength(int64(v.MaxLength))
		}
	case domain.VarNumber:
		s = openapi3.NewFloat64Schema()
	case domain.VarSelect:
		s = openapi3.NewStringSchema()
		if len(v.Options) > 0 {
			enum := make([]any, len(v.Options))
			for i, o := range v.Options {
				enum[i] = o
			}
			s.WithEnum(enum...)
		}
	case domain.VarCheckbox:
		s = openapi3.NewBoolSchema()
	case domain.VarFile:
		s = openapi3.NewObjectSchema()
	case domain.VarFileList:
		s = openapi3.NewArraySchema().WithItems(openapi3.NewObjectSchema())
	default:
		s = openapi3.NewSchema()
	}
	s.Title = v.Label
	if v.Default != nil {
		s.Default = v.Default
	}
	return s
}

// Validate returns every violation of inputs, ordered by variable declaration.
func Validate(vars []domain.Variable, inputs map[string]any) []Violation {
	var out []Violation
	for _, v := range vars {
		value := inputs[v.Variable]
		if isEmpty(value) {
			if v.Required {
				out = append(out, Violation{Path: []string{v.Variable}, Message: requiredMessage(v)})
			}
			continue
		}

		normalized, err := normalize(value)
		if err != nil {
			out = append(out, Violation{Path: []string{v.Variable}, Message: err.Error()})
			continue
		}

		if err := fieldSchema(v).VisitJSON(normalized, openapi3.MultiErrors()); err != nil {
			out = append(out, schemaViolations(v.Variable, err)...)
		}
	}
	return out
}

// Check validates inputs and returns an *Error wrapping domain.ErrValidation on failure.
func Check(vars []domain.Variable, inputs map[string]any) error {
	if violations := Validate(vars, inputs); len(violations) > 0 {
		return &Error{Violations: violations}
	}
	return nil
}

// ApplyDefaults returns a copy of inputs with defaults filled for absent variables.
func ApplyDefaults(vars []domain.Variable, inputs map[string]any) map[string]any {
	out := make(map[string]any, len(inputs)+len(vars))
	for k, v := range inputs {
		out[k] = v
	}
	for _, v := range vars {
		if _, ok := out[v.Variable]; !ok && v.Default != nil {
			out[v.Variable] = v.Default
		}
	}
	return out
}

func requiredMessage(v domain.Variable) string {
	label := v.Label
	if label == "" {
		label = v.Variable
	}
	return label + " is required"
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	}
	return false
}

// normalize turns Go values into their JSON decoded form (float64, []any, map[string]any).
func normalize(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("value is not JSON encodable: %w", err)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func schemaViolations(field string, err error) []Violation {
	var multi openapi3.MultiError
	if errors.As(err, &multi) {
		var out []Violation
		for _, e := range multi {
			out = append(out, schemaViolations(field, e)...)
		}
		return out
	}

	var serr *openapi3.SchemaError
	if errors.As(err, &serr) {
		path := append([]string{field}, serr.JSONPointer()...)
		return []Violation{{Path: path, Message: serr.Reason}}
	}
	return []Violation{{Path: []string{field}, Message: err.Error()}}
}
