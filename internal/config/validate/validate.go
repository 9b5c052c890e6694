// Package validate checks configuration documents against JSON schemas.
package validate

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema/global_config.schema.json
var globalConfigSchema []byte

const globalConfigSchemaName = "global_config.schema.json"

// GlobalConfigSchema returns the embedded schema of the global config file.
func GlobalConfigSchema() []byte {
	return globalConfigSchema
}

// ValidateAgainstSchema validates JSON data against schema, registered
// under name. ref optionally selects a sub-schema, e.g. "#/$defs/ecosystem".
func ValidateAgainstSchema(name string, schema, data []byte, ref string) error {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource(name, bytes.NewReader(schema)); err != nil {
		return fmt.Errorf("loading schema %s: %w", name, err)
	}

	sch, err := compiler.Compile(name + ref)
	if err != nil {
		return fmt.Errorf("compiling schema %s%s: %w", name, ref, err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("invalid JSON document: %w", err)
	}

	if err := sch.Validate(doc); err != nil {
		return fmt.Errorf("schema validation against %s failed: %w", name, err)
	}
	return nil
}

// ValidateGlobalConfigJSON validates a global config document converted to JSON.
func ValidateGlobalConfigJSON(data []byte) error {
	return ValidateAgainstSchema(globalConfigSchemaName, globalConfigSchema, data, "")
}
