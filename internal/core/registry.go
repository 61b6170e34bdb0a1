package core

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	registry   = make(map[string]TableDefinition)
	registryMu sync.RWMutex
)

// Register adds a table definition to the registry.
// Panics if a table with the same key is already registered or the
// definition has no record tag.
func Register(def TableDefinition) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[def.Info.Key]; exists {
		panic(fmt.Sprintf("table already registered: %s", def.Info.Key))
	}
	if def.Info.RecordTag == "" {
		panic(fmt.Sprintf("table %s has no record tag", def.Info.Key))
	}

	registry[def.Info.Key] = def
}

// Get returns a table definition by key.
// Returns false if not found.
func Get(key string) (TableDefinition, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	def, ok := registry[key]
	return def, ok
}

// All returns all registered table definitions in processing order:
// by Order, then by key.
func All() []TableDefinition {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]TableDefinition, 0, len(registry))
	for _, def := range registry {
		result = append(result, def)
	}

	sortDefinitions(result)
	return result
}

// Select returns the definitions for keys in processing order.
// An empty key list selects every table.
func Select(keys []string) ([]TableDefinition, error) {
	if len(keys) == 0 {
		return All(), nil
	}

	registryMu.RLock()
	defer registryMu.RUnlock()

	seen := make(map[string]bool)
	result := make([]TableDefinition, 0, len(keys))
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" || seen[k] {
			continue
		}
		def, ok := registry[k]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownTable, k)
		}
		seen[k] = true
		result = append(result, def)
	}

	sortDefinitions(result)
	return result, nil
}

// Groups returns all unique group names.
// Sorted alphabetically.
func Groups() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	seen := make(map[string]bool)
	for _, def := range registry {
		seen[def.Info.Group] = true
	}

	groups := make([]string, 0, len(seen))
	for g := range seen {
		groups = append(groups, g)
	}

	sort.Strings(groups)
	return groups
}

// TableCount returns the number of registered tables.
func TableCount() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(registry)
}

// Clear removes all registered tables.
// Primarily useful for testing.
func Clear() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]TableDefinition)
}

func sortDefinitions(defs []TableDefinition) {
	sort.Slice(defs, func(i, j int) bool {
		if defs[i].Info.Order != defs[j].Info.Order {
			return defs[i].Info.Order < defs[j].Info.Order
		}
		return defs[i].Info.Key < defs[j].Info.Key
	})
}
