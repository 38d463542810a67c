package config

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schema/hookgate-config.schema.json
var configSchema []byte

var (
	compiledOnce   sync.Once
	compiledSchema *gojsonschema.Schema
	compileErr     error
)

// Schema returns the embedded JSON Schema for hookgate config documents.
func Schema() []byte {
	return configSchema
}

func compiled() (*gojsonschema.Schema, error) {
	compiledOnce.Do(func() {
		compiledSchema, compileErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(configSchema))
	})
	return compiledSchema, compileErr
}

// ValidateDocument validates a decoded config document (YAML or TOML) against the schema.
func ValidateDocument(doc map[string]interface{}) error {
	sch, err := compiled()
	if err != nil {
		return fmt.Errorf("compiling config schema: %w", err)
	}

	result, err := sch.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if !result.Valid() {
		var problems []string
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(problems, "\n"))
	}
	return nil
}
