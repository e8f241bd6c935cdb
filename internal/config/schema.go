package config

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// ToJSONSchema renders the config's JSON schema for editor completion and
// out-of-process validation.
func ToJSONSchema() (string, error) {
	r := new(jsonschema.Reflector)
	r.DoNotReference = true
	schema := r.Reflect(&Config{})

	out, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", err
	}

	return string(out), nil
}
