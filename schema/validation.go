package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ValidationError describes a single schema violation.
type ValidationError struct {
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidationErrors is a collection of violations.
type ValidationErrors []*ValidationError

func (e ValidationErrors) Error() string {
	switch len(e) {
	case 0:
		return ""
	case 1:
		return e[0].Error()
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// Validator checks JSON documents against a compiled schema.
// It is safe for concurrent use.
type Validator struct {
	schema *gojsonschema.Schema
}

// Compile parses a raw JSON Schema document.
func Compile(raw []byte) (*Validator, error) {
	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Validator{schema: s}, nil
}

// MustCompile is Compile that panics on error.
func MustCompile(raw string) *Validator {
	v, err := Compile([]byte(raw))
	if err != nil {
		panic(err)
	}
	return v
}

// Compile turns a generated schema into a Validator.
func (s *Schema) Compile() (*Validator, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	return Compile(raw)
}

// Validate checks data against the schema. It returns nil when the
// document is valid and ValidationErrors otherwise. Absent data is
// validated as JSON null.
func (v *Validator) Validate(data json.RawMessage) error {
	if len(data) == 0 {
		data = json.RawMessage("null")
	}
	result, err := v.schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return ValidationErrors{{Message: "invalid JSON: " + err.Error()}}
	}
	if result.Valid() {
		return nil
	}

	errs := make(ValidationErrors, 0, len(result.Errors()))
	for _, re := range result.Errors() {
		path := re.Field()
		if path == "(root)" {
			path = ""
		}
		errs = append(errs, &ValidationError{Path: path, Message: re.Description()})
	}
	return errs
}

// Validate compiles s and validates data against it.
func (s *Schema) Validate(data json.RawMessage) error {
	v, err := s.Compile()
	if err != nil {
		return err
	}
	return v.Validate(data)
}
