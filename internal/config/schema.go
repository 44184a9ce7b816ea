package config

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	pkgconfig "github.com/goran-ethernal/ChainProcessor/pkg/config"
)

// GenerateSchema returns the JSON Schema of the configuration file, keyed by the yaml field names.
func GenerateSchema() ([]byte, error) {
	reflector := &jsonschema.Reflector{
		FieldNameTag:               "yaml",
		RequiredFromJSONSchemaTags: true,
		DoNotReference:             true,
	}

	schema := reflector.Reflect(&pkgconfig.Config{})
	schema.Title = "Mappings processor configuration"

	out, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config schema: %w", err)
	}

	return out, nil
}
