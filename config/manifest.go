package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Manifest is the build-time list of assets to precache at install.
type Manifest struct {
	Precache []string `yaml:"precache"`
}

// DefaultPrecache covers the application shell: the root document, the
// manifest, the bootstrap script and the primary icon.
var DefaultPrecache = []string{
	"/",
	"/index.html",
	"/manifest.json",
	"/flutter_bootstrap.js",
	"/icons/Icon-192.png",
}

// LoadManifest reads a precache manifest file. With no filename configured
// the built-in default list is used.
func LoadManifest(filename string) ([]string, error) {
	if filename == "" {
		return DefaultPrecache, nil
	}
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("reading precache manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("parsing precache manifest: %w", err)
	}
	if len(m.Precache) == 0 {
		return DefaultPrecache, nil
	}
	return m.Precache, nil
}
