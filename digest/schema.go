package digest

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// Schema names accepted by GenerateSchema.
const (
	SchemaOutput     = "output"
	SchemaCheckpoint = "checkpoint"
	SchemaThreads    = "threads"
)

// SchemaNames lists the documents GenerateSchema can describe.
func SchemaNames() []string {
	return []string{SchemaOutput, SchemaCheckpoint, SchemaThreads}
}

// GenerateSchema returns the JSON Schema of one of the files the pipeline reads or writes.
func GenerateSchema(name string) (map[string]any, error) {
	switch name {
	case SchemaOutput:
		return reflectSchema[BatchResult]()
	case SchemaCheckpoint:
		return reflectSchema[Checkpoint]()
	case SchemaThreads:
		return reflectSchema[[]Thread]()
	default:
		return nil, fmt.Errorf("unknown schema %q (want one of %v)", name, SchemaNames())
	}
}

func reflectSchema[T any]() (map[string]any, error) {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: true,
		DoNotReference:            true,
	}
	var v T
	schema := reflector.Reflect(v)
	b, err := schema.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}
	return m, nil
}
