package schema

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

const pairSchema = `{"type":"array","items":{"type":"number"},"minItems":2,"maxItems":2}`

func TestValidator_Validate(t *testing.T) {
	v := MustCompile(pairSchema)

	tests := []struct {
		name    string
		data    string
		wantErr bool
	}{
		{"two numbers", `[5, 3]`, false},
		{"floats", `[1.5, -2]`, false},
		{"too few", `[5]`, true},
		{"too many", `[1,2,3]`, true},
		{"wrong item type", `["a", 3]`, true},
		{"object", `{"a":5}`, true},
		{"absent", ``, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(json.RawMessage(tt.data))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate(%s) error = %v, wantErr %v", tt.data, err, tt.wantErr)
			}
			if err == nil {
				return
			}
			var verrs ValidationErrors
			if !errors.As(err, &verrs) || len(verrs) == 0 {
				t.Errorf("expected ValidationErrors, got %T", err)
			}
		})
	}
}

func TestValidator_FieldPaths(t *testing.T) {
	v := MustCompile(`{
		"type":"object",
		"properties":{"name":{"type":"string"},"age":{"type":"integer","minimum":0}},
		"required":["name"]
	}`)

	err := v.Validate(json.RawMessage(`{"age":-1}`))
	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected ValidationErrors, got %v", err)
	}
	if len(verrs) != 2 {
		t.Fatalf("expected 2 violations, got %d: %v", len(verrs), verrs)
	}

	var sawAge bool
	for _, e := range verrs {
		if e.Path == "age" {
			sawAge = true
		}
	}
	if !sawAge {
		t.Errorf("expected a violation on path age, got %v", verrs)
	}
	if !strings.HasPrefix(verrs.Error(), "validation failed: ") {
		t.Errorf("Error() = %q", verrs.Error())
	}
}

func TestCompile_Invalid(t *testing.T) {
	if _, err := Compile([]byte(`{"type": 12}`)); err == nil {
		t.Fatal("expected compile error")
	}
}

func TestSchema_Validate(t *testing.T) {
	type Input struct {
		Name string `json:"name" jsonschema:"required"`
	}
	s := MustGenerate(Input{})

	if err := s.Validate(json.RawMessage(`{"name":"x"}`)); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := s.Validate(json.RawMessage(`{}`)); err == nil {
		t.Error("expected missing required field error")
	}
}

func TestValidationErrors_Error(t *testing.T) {
	if got := (ValidationErrors{}).Error(); got != "" {
		t.Errorf("empty = %q", got)
	}
	one := ValidationErrors{{Path: "a", Message: "bad"}}
	if got := one.Error(); got != "a: bad" {
		t.Errorf("one = %q", got)
	}
}
