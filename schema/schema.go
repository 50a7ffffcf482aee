// Package schema generates JSON Schema documents from Go types and
// validates JSON-RPC params against them.
package schema

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// JSON Schema type names.
const (
	TypeObject  = "object"
	TypeArray   = "array"
	TypeString  = "string"
	TypeInteger = "integer"
	TypeNumber  = "number"
	TypeBoolean = "boolean"
)

// Schema represents a JSON Schema.
type Schema struct {
	Type        string             `json:"type,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Description string             `json:"description,omitempty"`
	Default     any                `json:"default,omitempty"`
	Enum        []any              `json:"enum,omitempty"`
	Minimum     *float64           `json:"minimum,omitempty"`
	Maximum     *float64           `json:"maximum,omitempty"`
	MinLength   *int               `json:"minLength,omitempty"`
	MaxLength   *int               `json:"maxLength,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	MinItems    *int               `json:"minItems,omitempty"`
	MaxItems    *int               `json:"maxItems,omitempty"`
}

// Generate creates a JSON Schema from a Go value.
func Generate(v any) (*Schema, error) {
	if v == nil {
		return nil, fmt.Errorf("schema: cannot generate from nil")
	}
	return generateFromType(reflect.TypeOf(v))
}

// GenerateFromType creates a JSON Schema from a reflect.Type.
func GenerateFromType(t reflect.Type) (*Schema, error) {
	if t == nil {
		return nil, fmt.Errorf("schema: cannot generate from nil type")
	}
	return generateFromType(t)
}

// MustGenerate is Generate that panics on error.
func MustGenerate(v any) *Schema {
	s, err := Generate(v)
	if err != nil {
		panic(err)
	}
	return s
}

// JSON returns the schema encoded as JSON.
func (s *Schema) JSON() ([]byte, error) {
	return json.Marshal(s)
}

var rawMessageType = reflect.TypeOf(json.RawMessage(nil))

func generateFromType(t reflect.Type) (*Schema, error) {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == rawMessageType {
		return &Schema{}, nil
	}

	switch t.Kind() {
	case reflect.Struct:
		return generateStructSchema(t)
	case reflect.String:
		return &Schema{Type: TypeString}, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &Schema{Type: TypeInteger}, nil
	case reflect.Float32, reflect.Float64:
		return &Schema{Type: TypeNumber}, nil
	case reflect.Bool:
		return &Schema{Type: TypeBoolean}, nil
	case reflect.Slice:
		return generateArraySchema(t, -1)
	case reflect.Array:
		return generateArraySchema(t, t.Len())
	case reflect.Map:
		return &Schema{Type: TypeObject}, nil
	default:
		return &Schema{}, nil
	}
}

func generateStructSchema(t reflect.Type) (*Schema, error) {
	s := &Schema{
		Type:       TypeObject,
		Properties: make(map[string]*Schema),
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		name, skip := jsonFieldName(field)
		if skip {
			continue
		}

		fieldSchema, err := generateFromType(field.Type)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field.Name, err)
		}
		required, err := applyTag(field.Tag.Get("jsonschema"), fieldSchema)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field.Name, err)
		}
		if required {
			s.Required = append(s.Required, name)
		}
		s.Properties[name] = fieldSchema
	}

	return s, nil
}

func jsonFieldName(field reflect.StructField) (string, bool) {
	tag := field.Tag.Get("json")
	if tag == "-" {
		return "", true
	}
	if name, _, _ := strings.Cut(tag, ","); name != "" {
		return name, false
	}
	return field.Name, false
}

// fixedLen is the exact item count for Go arrays, or -1 for slices.
func generateArraySchema(t reflect.Type, fixedLen int) (*Schema, error) {
	items, err := generateFromType(t.Elem())
	if err != nil {
		return nil, err
	}
	s := &Schema{Type: TypeArray, Items: items}
	if fixedLen >= 0 {
		s.MinItems = &fixedLen
		s.MaxItems = &fixedLen
	}
	return s, nil
}

// applyTag applies a `jsonschema:"..."` tag to s and reports whether the
// field is required. Recognized keys: required, description=, minimum=,
// maximum=, minLength=, maxLength=, enum= (values separated by '|').
func applyTag(tag string, s *Schema) (bool, error) {
	if tag == "" {
		return false, nil
	}

	var required bool
	for _, part := range strings.Split(tag, ",") {
		key, value, _ := strings.Cut(strings.TrimSpace(part), "=")
		switch key {
		case "required":
			required = true
		case "description":
			s.Description = value
		case "minimum", "maximum":
			f, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return false, fmt.Errorf("invalid %s %q", key, value)
			}
			if key == "minimum" {
				s.Minimum = &f
			} else {
				s.Maximum = &f
			}
		case "minLength", "maxLength":
			n, err := strconv.Atoi(value)
			if err != nil {
				return false, fmt.Errorf("invalid %s %q", key, value)
			}
			if key == "minLength" {
				s.MinLength = &n
			} else {
				s.MaxLength = &n
			}
		case "enum":
			for _, v := range strings.Split(value, "|") {
				s.Enum = append(s.Enum, v)
			}
		}
	}
	return required, nil
}
