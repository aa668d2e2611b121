package assets

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ReadEditable resolves the current editable style variables for one
// asset directory: declaration defaults from manifest.json, overlaid with
// user values from editable.yaml. A legacy layout with meta.json plus
// editable.yaml yields the overrides alone. ok is false when the
// directory declares nothing editable, so pollers can skip it cheaply.
func ReadEditable(dir string) (map[string]string, bool) {
	hasManifest := fileExists(filepath.Join(dir, "manifest.json"))
	overridesPath := filepath.Join(dir, "editable.yaml")
	hasOverrides := fileExists(overridesPath)

	if !hasManifest {
		if !fileExists(filepath.Join(dir, "meta.json")) || !hasOverrides {
			return nil, false
		}
	}

	vars := make(map[string]string)
	if hasManifest {
		if m, err := LoadManifest(dir); err == nil {
			for name, decl := range m.Editables {
				if decl.Default != nil {
					vars[name] = renderValue(decl.Default)
				}
			}
		}
	}
	if hasOverrides {
		applyOverrides(vars, overridesPath)
	}

	if len(vars) == 0 {
		return nil, false
	}
	return vars, true
}

func applyOverrides(vars map[string]string, path string) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return
	}
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return
	}
	for name, value := range doc {
		vars[name] = renderValue(value)
	}
}

// renderValue turns a decoded JSON/YAML scalar into CSS variable text.
func renderValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// EditableSignature renders variables in a stable order so pollers can
// compare reads without deep-equal walks.
func EditableSignature(vars map[string]string) string {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(vars[k])
		sb.WriteByte('\n')
	}
	return sb.String()
}
