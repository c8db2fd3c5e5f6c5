package integration

import "fmt"

// Package integration assembles a gateway node: it opens the database
// described by a preset and wires the gateway service on top of it.
//
// Usage:
//   preset := integration.MemoryPreset()  // for tests and throwaway nodes
//   preset := integration.LDBPreset()     // for production
//
// The preset is merged into the launcher config before the node is built.

// DBPreset describes the key-value store backing the gateway.
type DBPreset struct {
	Name     string // identifier used by the --db.preset flag
	InMemory bool   // keep everything in memory, nothing survives a restart
	CacheMB  int    // leveldb block cache
	Handles  int    // leveldb open file limit
}

func DefaultPreset() DBPreset {
	return LDBPreset()
}

// MemoryPreset keeps all batches in memory.
func MemoryPreset() DBPreset {
	return DBPreset{
		Name:     "memory",
		InMemory: true,
	}
}

// LDBPreset stores batches in a leveldb database under the data directory.
func LDBPreset() DBPreset {
	return DBPreset{
		Name:    "ldb",
		CacheMB: 256,
		Handles: 512,
	}
}

// LDBSmallPreset is leveldb with small caches, for constrained hosts.
func LDBSmallPreset() DBPreset {
	cfg := LDBPreset()
	cfg.Name = "ldb-small"
	cfg.CacheMB = 16
	cfg.Handles = 64
	return cfg
}

// GetPresetByName looks up a preset by its identifier.
func GetPresetByName(name string) (DBPreset, error) {
	switch name {
	case "memory":
		return MemoryPreset(), nil
	case "ldb", "default":
		return LDBPreset(), nil
	case "ldb-small":
		return LDBSmallPreset(), nil
	default:
		return DBPreset{}, fmt.Errorf("unknown db preset: %q (valid: memory, ldb, ldb-small)", name)
	}
}

// ApplyPreset overrides the cache settings of target with the non-zero
// values of preset.
func ApplyPreset(target *DBPreset, preset DBPreset) {
	if preset.CacheMB > 0 {
		target.CacheMB = preset.CacheMB
	}
	if preset.Handles > 0 {
		target.Handles = preset.Handles
	}
	target.InMemory = preset.InMemory
	if preset.Name != "" {
		target.Name = preset.Name
	}
}
