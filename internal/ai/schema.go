package ai

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// SchemaFor строит JSON Schema ответа по Go-типу.
func SchemaFor[T any]() *jsonschema.Schema {
	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return reflector.Reflect(v)
}

func schemaJSON(s *jsonschema.Schema) (json.RawMessage, error) {
	if s == nil {
		return nil, nil
	}
	return json.Marshal(s)
}

// schemaMap переводит схему в map для провайдеров, принимающих произвольный JSON.
// Поле $schema удаляется: Gemini его не принимает.
func schemaMap(s *jsonschema.Schema) (map[string]any, error) {
	raw, err := schemaJSON(s)
	if err != nil || raw == nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	delete(m, "$schema")
	delete(m, "$id")
	return m, nil
}
