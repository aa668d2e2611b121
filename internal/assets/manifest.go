package assets

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// manifestSchema constrains the optional manifest.json descriptor.
// Validation is advisory: a bad manifest is logged, never blocks launch.
const manifestSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"properties": {
		"name": {"type": "string"},
		"version": {"type": "string"},
		"author": {"type": "string"},
		"category": {"type": "string"},
		"editables": {
			"type": "object",
			"additionalProperties": {
				"type": "object",
				"properties": {
					"type": {"enum": ["color", "number", "text", "boolean", "select"]},
					"label": {"type": "string"},
					"default": {},
					"min": {"type": "number"},
					"max": {"type": "number"},
					"step": {"type": "number"},
					"options": {"type": "array", "items": {"type": "string"}}
				},
				"required": ["type"]
			}
		}
	}
}`

var compiledManifestSchema = jsonschema.MustCompileString("manifest.schema.json", manifestSchema)

// Manifest is the optional asset descriptor carried next to the content.
type Manifest struct {
	Name      string              `json:"name"`
	Version   string              `json:"version"`
	Author    string              `json:"author"`
	Category  string              `json:"category"`
	Editables map[string]Editable `json:"editables"`
}

// Editable declares one user-adjustable style variable.
type Editable struct {
	Type    string   `json:"type"`
	Label   string   `json:"label"`
	Default any      `json:"default"`
	Min     *float64 `json:"min"`
	Max     *float64 `json:"max"`
	Step    *float64 `json:"step"`
	Options []string `json:"options"`
}

// CheckManifest validates dir's manifest.json against the embedded
// schema. A missing manifest passes; manifests are optional.
func CheckManifest(dir string) error {
	raw, err := os.ReadFile(filepath.Join(dir, "manifest.json"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("manifest.json: %w", err)
	}
	if err := compiledManifestSchema.Validate(doc); err != nil {
		return fmt.Errorf("manifest.json: %w", err)
	}
	return nil
}

// LoadManifest reads and decodes dir's manifest.json.
func LoadManifest(dir string) (*Manifest, error) {
	raw, err := os.ReadFile(filepath.Join(dir, "manifest.json"))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("manifest.json: %w", err)
	}
	return &m, nil
}
