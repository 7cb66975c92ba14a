// Package util holds the JSON schema and prompt template helpers shared by
// tools, agents and teams.
package util

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/xeipuuv/gojsonschema"
)

// ValidationError lists the schema violations of a document.
type ValidationError struct {
	Problems []string `json:"problems"`
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Problems, "; ")
}

// SchemaFor reflects an inline object schema for T. Fields are required when
// tagged jsonschema:"required".
func SchemaFor[T any]() (map[string]any, error) {
	reflector := &jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		DoNotReference:             true,
	}

	data, err := json.Marshal(reflector.Reflect(new(T)))
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}

	var schema map[string]any
	if err := json.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}

	delete(schema, "$schema")
	delete(schema, "$id")

	return schema, nil
}

// MustSchemaFor is SchemaFor for package level declarations.
func MustSchemaFor[T any]() map[string]any {
	s, err := SchemaFor[T]()
	if err != nil {
		panic(err)
	}

	return s
}

// Validate checks doc against schema. An empty schema accepts everything.
// Problems are reported as a *ValidationError.
func Validate(schema map[string]any, doc any) error {
	if len(schema) == 0 {
		return nil
	}

	if m, ok := doc.(map[string]any); ok && m == nil {
		doc = map[string]any{}
	}

	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("load schema: %w", err)
	}

	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		problems = append(problems, e.String())
	}

	return &ValidationError{Problems: problems}
}

// DecodeArgs converts generic JSON arguments into T.
func DecodeArgs[T any](args map[string]any) (T, error) {
	var out T

	data, err := json.Marshal(args)
	if err != nil {
		return out, fmt.Errorf("encode arguments: %w", err)
	}

	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("decode arguments: %w", err)
	}

	return out, nil
}
