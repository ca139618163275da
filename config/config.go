// Package config holds the engine's tunables as a plain struct, so tests
// and the example binary can override them without touching engine code.
// Modeled on gcsfuse/cfg.Config's flat, struct-of-fields style.
package config

import "time"

// Config bundles the engine's operational tunables.
type Config struct {
	// KeyTTL is how long the derived master key is cached idle before the
	// engine forgets it and must re-derive from the passphrase provider.
	KeyTTL time.Duration

	// AttrCacheSize, NameCacheSize, and MetaCacheSize are the capacities
	// of the inode-attribute, directory-name, and directory-metadata LRU
	// caches, each bounded at 2000 entries by default.
	AttrCacheSize int
	NameCacheSize int
	MetaCacheSize int
}

// Default returns the engine's default tunables.
func Default() Config {
	return Config{
		KeyTTL:        10 * time.Minute,
		AttrCacheSize: 2000,
		NameCacheSize: 2000,
		MetaCacheSize: 2000,
	}
}
