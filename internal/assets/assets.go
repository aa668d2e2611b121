// Package assets resolves registry wallpaper entries into launchable
// content.
//
// The registry listing is fetched once per apply pass over the bridge.
// This package answers which entry a profile names, what kind of content
// that entry carries (local markup, a URL, an external command), and
// which monitors a profile's selector tokens claim. Only local markup is
// hosted by this engine; the other kinds are reported so the caller can
// skip them with a useful diagnostic.
package assets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/The-Ico2/sentinel-wallpaper/internal/bridge"
	"github.com/The-Ico2/sentinel-wallpaper/internal/logging"
)

// RegistryAsset is one entry from the backend's asset registry.
type RegistryAsset = bridge.Asset

// Registry answers asset lookups for one apply pass.
type Registry struct {
	assets []RegistryAsset
	log    *logging.Logger
}

// NewRegistry wraps a fetched asset listing.
func NewRegistry(assets []RegistryAsset, log *logging.Logger) *Registry {
	if log == nil {
		log = logging.Default()
	}
	return &Registry{assets: assets, log: log.WithComponent("assets")}
}

// Len reports the number of registry entries.
func (r *Registry) Len() int { return len(r.assets) }

// Resolve finds the entry whose id matches exactly.
func (r *Registry) Resolve(id string) (*RegistryAsset, bool) {
	for i := range r.assets {
		if r.assets[i].ID == id {
			return &r.assets[i], true
		}
	}
	return nil, false
}

// LaunchKind classifies what an asset asks the engine to run.
type LaunchKind int

const (
	// LaunchMarkup is a local index.html plus optional stylesheet,
	// hosted in an embedded window. The only kind this engine renders.
	LaunchMarkup LaunchKind = iota
	// LaunchURL points at content served elsewhere.
	LaunchURL
	// LaunchCommand asks for an external process.
	LaunchCommand
)

func (k LaunchKind) String() string {
	switch k {
	case LaunchMarkup:
		return "markup"
	case LaunchURL:
		return "url"
	case LaunchCommand:
		return "command"
	}
	return "unknown"
}

// LaunchSpec is the launch recipe resolved from one asset.
type LaunchSpec struct {
	Kind LaunchKind

	// Markup and Stylesheet are file paths for LaunchMarkup. Stylesheet
	// may be empty.
	Markup     string
	Stylesheet string

	// Dir is the asset content directory; Name is its basename, used as
	// the scene name.
	Dir  string
	Name string

	URL     string
	Command string
}

// ResolveLaunch inspects an asset's content directory and metadata and
// produces its launch recipe. Local markup wins over metadata pointers.
// An asset with nothing launchable is an error; the caller skips that
// profile. A malformed manifest.json is only a warning since the manifest
// is a descriptor, not the content.
func (r *Registry) ResolveLaunch(a *RegistryAsset) (LaunchSpec, error) {
	if a.Path != "" {
		markup := filepath.Join(a.Path, "index.html")
		if fileExists(markup) {
			if err := CheckManifest(a.Path); err != nil {
				r.log.Warn("manifest rejected", "asset", a.ID, "error", err)
			}
			return LaunchSpec{
				Kind:       LaunchMarkup,
				Markup:     markup,
				Stylesheet: findStylesheet(a.Path, markup),
				Dir:        a.Path,
				Name:       sceneName(a.Path),
			}, nil
		}
	}
	if url, ok := metadataString(a.Metadata, "url"); ok {
		return LaunchSpec{Kind: LaunchURL, URL: url, Name: a.ID}, nil
	}
	if cmd, ok := metadataString(a.Metadata, "command"); ok {
		return LaunchSpec{Kind: LaunchCommand, Command: cmd, Name: a.ID}, nil
	}
	if a.Path == "" {
		return LaunchSpec{}, fmt.Errorf("asset %q has no content path", a.ID)
	}
	return LaunchSpec{}, fmt.Errorf("asset %q has no index.html under %s", a.ID, a.Path)
}

// findStylesheet prefers style.css next to the markup, then a sheet named
// after the markup file.
func findStylesheet(dir, markup string) string {
	css := filepath.Join(dir, "style.css")
	if fileExists(css) {
		return css
	}
	alt := strings.TrimSuffix(markup, filepath.Ext(markup)) + ".css"
	if fileExists(alt) {
		return alt
	}
	return ""
}

func sceneName(dir string) string {
	name := filepath.Base(dir)
	if name == "." || name == string(filepath.Separator) {
		return "wallpaper"
	}
	return name
}

func metadataString(meta map[string]any, key string) (string, bool) {
	s, ok := meta[key].(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
