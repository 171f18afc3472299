package schema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed profile.schema.yaml
var profileSchemaYAML []byte

const profileSchemaURI = "msub://schemas/profile.schema.json"

// Validator handles JSON schema validation of profile documents
type Validator struct {
	profileSchema *jsonschema.Schema
}

// NewValidator compiles the embedded profile schema
func NewValidator() (*Validator, error) {
	profileSchema, err := compileYAML(profileSchemaURI, profileSchemaYAML)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile schema: %w", err)
	}
	return &Validator{profileSchema: profileSchema}, nil
}

// ValidateProfile validates raw profile YAML against the schema
func (v *Validator) ValidateProfile(data []byte) error {
	if v.profileSchema == nil {
		return fmt.Errorf("profile schema not loaded")
	}

	doc, err := yamlToJSONValue(data)
	if err != nil {
		return fmt.Errorf("failed to parse profile: %w", err)
	}
	if doc == nil {
		// an empty file is a valid, empty profile
		return nil
	}
	return v.profileSchema.Validate(doc)
}

// compileYAML compiles a schema written in YAML (or JSON)
func compileYAML(uri string, data []byte) (*jsonschema.Schema, error) {
	var schemaData interface{}
	if err := yaml.Unmarshal(data, &schemaData); err != nil {
		return nil, fmt.Errorf("failed to parse schema file: %w", err)
	}

	jsonData, err := json.Marshal(schemaData)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(uri, bytes.NewReader(jsonData)); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}

	schema, err := compiler.Compile(uri)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	return schema, nil
}

// yamlToJSONValue decodes YAML into the value types the validator expects
// (maps, slices, json.Number, strings, bools).
func yamlToJSONValue(data []byte) (interface{}, error) {
	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}

	jsonData, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(jsonData))
	dec.UseNumber()
	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}
