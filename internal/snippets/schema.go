package snippets

import (
	"bytes"
	_ "embed"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema.json
var schemaJSON []byte

const schemaURL = "snippets.schema.json"

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func loadSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
			schemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile(schemaURL)
	})
	return compiledSchema, schemaErr
}

// Validate checks a payload against the snippet file schema. Parse is more
// lenient than the schema; a schema violation is reported but the payload
// may still load.
func Validate(data []byte, format Format) error {
	root, err := decode(data, format)
	if err != nil {
		return err
	}
	schema, err := loadSchema()
	if err != nil {
		return fmt.Errorf("snippets: compile schema: %w", err)
	}
	if err := schema.Validate(root.plain()); err != nil {
		return fmt.Errorf("snippets: schema: %w", err)
	}
	return nil
}

// Schema returns the embedded JSON Schema document.
func Schema() []byte {
	out := make([]byte, len(schemaJSON))
	copy(out, schemaJSON)
	return out
}
