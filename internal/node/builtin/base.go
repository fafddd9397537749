// Package builtin provides the concrete node.Handler implementations wired
// into the process-wide registry at startup: triggers, the HTTP/database/AI/
// storage/messaging actions, and the control-node parameter validators.
package builtin

import (
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	"github.com/flowforge/workflow/internal/node"
)

// validateSchema checks parameters against a draft-07 JSON Schema, the
// generic structural check every handler runs before its own Validate.
func validateSchema(schema json.RawMessage, parameters json.RawMessage) error {
	if len(schema) == 0 {
		return nil
	}
	if len(parameters) == 0 {
		parameters = json.RawMessage("{}")
	}

	schemaLoader := gojsonschema.NewBytesLoader(schema)
	docLoader := gojsonschema.NewBytesLoader(parameters)

	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("parameters invalid: %v", msgs)
	}
	return nil
}

// decodeParameters unmarshals parameters into dst, defaulting empty input to
// an empty object so handlers with all-optional fields don't need a nil
// check.
func decodeParameters(parameters json.RawMessage, dst any) error {
	if len(parameters) == 0 {
		parameters = json.RawMessage("{}")
	}
	if err := json.Unmarshal(parameters, dst); err != nil {
		return fmt.Errorf("decoding parameters: %w", err)
	}
	return nil
}

func success(data any) *node.Output {
	return &node.Output{Success: true, Data: data}
}

func failure(err error) (*node.Output, error) {
	return &node.Output{Success: false, Error: err.Error()}, err
}
