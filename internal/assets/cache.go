package assets

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"git.home.luguber.info/inful/sitepack/internal/fsutil"
)

// CacheManifestVersion is the persisted format version.
const CacheManifestVersion = 1

// CacheEntry records where one asset was published and what produced it.
type CacheEntry struct {
	// Path is the published location relative to the static directory,
	// always slash separated.
	Path        string `json:"path"`
	Fingerprint string `json:"fingerprint"`
	Filter      string `json:"filter,omitempty"`
}

// CacheManifest maps logical asset names to published artifacts.
type CacheManifest struct {
	Version int                   `json:"version"`
	Entries map[string]CacheEntry `json:"entries"`
}

// NewCacheManifest returns an empty manifest.
func NewCacheManifest() *CacheManifest {
	return &CacheManifest{Version: CacheManifestVersion, Entries: map[string]CacheEntry{}}
}

// Lookup returns the published path of name.
func (c *CacheManifest) Lookup(name string) (string, bool) {
	if c == nil {
		return "", false
	}
	e, ok := c.Entries[name]
	return e.Path, ok
}

// LoadCacheManifest reads a cache manifest. A missing file is reported with
// an error satisfying errors.Is(err, os.ErrNotExist).
func LoadCacheManifest(file string) (*CacheManifest, error) {
	// #nosec G304 -- path comes from the site configuration.
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read cache manifest: %w", err)
	}
	c := NewCacheManifest()
	if err := json.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse cache manifest %s: %w", file, err)
	}
	if c.Version != CacheManifestVersion {
		return nil, fmt.Errorf("cache manifest %s: unsupported version %d", file, c.Version)
	}
	if c.Entries == nil {
		c.Entries = map[string]CacheEntry{}
	}
	return c, nil
}

// loadPreviousCache returns the last persisted manifest, or an empty one when
// none exists or it cannot be used.
func loadPreviousCache(file string) *CacheManifest {
	c, err := LoadCacheManifest(file)
	if err != nil {
		return NewCacheManifest()
	}
	return c
}

// Save writes the manifest atomically.
func (c *CacheManifest) Save(file string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cache manifest: %w", err)
	}
	if err := fsutil.WriteFileAtomic(file, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write cache manifest: %w", err)
	}
	return nil
}

// IsNotExist reports whether err stems from a missing cache manifest.
func IsNotExist(err error) bool { return errors.Is(err, os.ErrNotExist) }
