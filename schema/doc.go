// Package schema generates JSON Schema from Go types and validates
// params against schemas.
//
// Generation covers structs, strings, numbers, booleans, slices, fixed
// size arrays (which pin minItems and maxItems), maps, and pointers.
// Struct fields honor the json tag for naming and a jsonschema tag for
// constraints:
//
//	type Greeting struct {
//	    Name string `json:"name" jsonschema:"required,minLength=1"`
//	    Tone string `json:"tone" jsonschema:"enum=warm|formal"`
//	}
//
// Validation is backed by gojsonschema, so hand-written schema documents
// can use the full draft-07 vocabulary:
//
//	v := schema.MustCompile(`{"type":"array","minItems":2,"maxItems":2}`)
//	err := v.Validate(params)
package schema
