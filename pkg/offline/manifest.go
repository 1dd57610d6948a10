// Package offline serves the application shell and previously fetched
// resources from a versioned local cache when the network is unreachable.
package offline

import (
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// Manifest lists the shell assets of one cache generation.
type Manifest struct {
	Name    string   `yaml:"name"`
	Version string   `yaml:"version"`
	Scope   string   `yaml:"scope"`
	Offline string   `yaml:"offline"`
	Assets  []string `yaml:"assets"`
}

const (
	defaultName    = "scaledspace"
	defaultScope   = "/"
	defaultOffline = "/offline.html"
)

// LoadManifest reads and validates a YAML manifest file.
func LoadManifest(filename string) (*Manifest, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return ParseManifest(data)
}

// ParseManifest decodes and validates a YAML manifest.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if m.Name == "" {
		m.Name = defaultName
	}
	if m.Scope == "" {
		m.Scope = defaultScope
	}
	if m.Offline == "" {
		m.Offline = defaultOffline
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks the manifest is usable.
func (m *Manifest) Validate() error {
	if strings.TrimSpace(m.Version) == "" {
		return fmt.Errorf("manifest: version is required")
	}
	if !strings.HasPrefix(m.Scope, "/") {
		return fmt.Errorf("manifest: scope %q must be an absolute path", m.Scope)
	}
	if len(m.Assets) == 0 {
		return fmt.Errorf("manifest: at least one asset is required")
	}
	listed := false
	for _, a := range m.Assets {
		if !strings.HasPrefix(a, "/") {
			return fmt.Errorf("manifest: asset %q must be an absolute path", a)
		}
		if a == m.Offline {
			listed = true
		}
		if !isGlob(a) {
			continue
		}
		if strings.ContainsAny(a, "?#") {
			return fmt.Errorf("manifest: asset pattern %q cannot carry a query or fragment", a)
		}
		if !doublestar.ValidatePattern(strings.TrimPrefix(a, "/")) {
			return fmt.Errorf("manifest: asset pattern %q is malformed", a)
		}
		if ok, _ := doublestar.Match(a, m.Offline); ok {
			listed = true
		}
	}
	if !listed {
		return fmt.Errorf("manifest: offline page %q must be one of the assets", m.Offline)
	}
	return nil
}

// Generation returns the cache generation name, e.g. "scaledspace-cache-v1".
func (m *Manifest) Generation() string {
	return m.Name + "-cache-" + m.Version
}

// InScope reports whether a request path falls under the manifest scope.
func (m *Manifest) InScope(p string) bool {
	return strings.HasPrefix(p, m.Scope)
}

// Expand resolves glob entries against the deployed asset tree and returns
// the request keys to fetch, in manifest order without duplicates.
// Literal entries are kept even when absent from assets. A nil assets
// filesystem is only accepted when the manifest has no globs.
func (m *Manifest) Expand(assets fs.FS) ([]string, error) {
	seen := make(map[string]struct{}, len(m.Assets))
	var keys []string
	add := func(k string) {
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}

	for _, a := range m.Assets {
		if !isGlob(a) {
			key, err := RequestKey(a)
			if err != nil {
				return nil, err
			}
			add(key)
			continue
		}
		if assets == nil {
			return nil, fmt.Errorf("asset pattern %q needs an asset directory", a)
		}
		matches, err := doublestar.Glob(assets, strings.TrimPrefix(a, "/"), doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("failed to expand %q: %w", a, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("asset pattern %q matches no files", a)
		}
		for _, match := range matches {
			add(path.Join("/", match))
		}
	}
	return keys, nil
}

// isGlob reports whether the path part of an asset has glob syntax.
// A '?' always starts the query, so only '*', '[' and '{' mark a pattern.
func isGlob(p string) bool {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	return strings.ContainsAny(p, "*[{")
}

// RequestKey normalizes a path or URL to the key entries are stored under.
func RequestKey(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid asset %q: %w", raw, err)
	}
	return u.RequestURI(), nil
}
