// Package plugins discovers and runs JavaScript provider extensions. A
// plugin is a directory holding a plugin.json manifest plus an entry script
// executed inside a goja VM; valid plugins register into the same typed
// provider registry the built-in sites use.
package plugins

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Baseclass names a plugin may derive from. The manifest's baseclass picks
// which pipeline the plugin plugs into and which exports its script owes.
const (
	BaseOnline     = "online"
	BaseManhwaLike = "manhwalike"
)

// Manifest is the parsed plugin.json.
type Manifest struct {
	// Registration identity. ID keys the provider registry; a duplicate id
	// replaces the earlier registration.
	ProviderID   string `json:"register_provider_id"`
	ProviderName string `json:"register_provider_name"`
	Baseclass    string `json:"register_baseclass"`

	Version    string `json:"version"`
	APIVersion string `json:"api_version"`
	Author     string `json:"author,omitempty"`

	// EntryPoint defaults to index.js. ManhwaLike plugins are usually
	// manifest-only and may omit the script entirely.
	EntryPoint string `json:"entry_point,omitempty"`

	BaseURL   string `json:"base_url"`
	JSEnabled bool   `json:"js_enabled,omitempty"`

	// Config values are exposed to the script as den.config.
	Config map[string]interface{} `json:"config,omitempty"`
}

// LoadManifest reads and validates plugin.json from a plugin directory.
func LoadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, "plugin.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to read plugin.json: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse plugin.json: %w", err)
	}

	if m.ProviderID == "" {
		return nil, fmt.Errorf("plugin.json missing required field: register_provider_id")
	}
	if m.ProviderName == "" {
		return nil, fmt.Errorf("plugin.json missing required field: register_provider_name")
	}
	if m.APIVersion == "" {
		return nil, fmt.Errorf("plugin.json missing required field: api_version")
	}
	switch m.Baseclass {
	case BaseOnline, BaseManhwaLike:
	case "":
		return nil, fmt.Errorf("plugin.json missing required field: register_baseclass")
	default:
		return nil, fmt.Errorf("unknown register_baseclass %q", m.Baseclass)
	}
	if m.BaseURL == "" {
		return nil, fmt.Errorf("plugin.json missing required field: base_url")
	}

	if m.EntryPoint == "" {
		m.EntryPoint = "index.js"
	}
	return &m, nil
}

// Logo returns the plugin's logo bytes when a logo.png sits next to the
// manifest, nil otherwise.
func (m *Manifest) Logo(dir string) []byte {
	data, err := os.ReadFile(filepath.Join(dir, "logo.png"))
	if err != nil {
		return nil
	}
	return data
}
