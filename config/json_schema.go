package config

import (
	"errors"

	"github.com/invopop/jsonschema"
)

var (
	ErrGeneratedSchemaIsNil = errors.New("generated JSON Schema is nil")
)

// JSONSchema returns the JSON Schema of the configuration file.
func JSONSchema() ([]byte, error) {
	return ReflectSchema(&Config{})
}

// ReflectSchema returns the JSON Schema of any config or wire type.
func ReflectSchema(v any) ([]byte, error) {
	schema := jsonschema.Reflect(v)

	if schema == nil {
		return nil, ErrGeneratedSchemaIsNil
	}

	return schema.MarshalJSON()
}
