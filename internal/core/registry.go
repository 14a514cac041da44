package core

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	registry   = make(map[string]RecordSchema)
	registryMu sync.RWMutex
)

// Register adds a record schema to the registry.
// Panics if a schema with the same name is already registered or if the
// schema declares the same field twice.
func Register(schema RecordSchema) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if schema.Name == "" {
		panic("record schema has no name")
	}
	if err := ValidateSchema(schema); err != nil {
		panic(err.Error())
	}
	if _, exists := registry[schema.Name]; exists {
		panic(fmt.Sprintf("record schema already registered: %s", schema.Name))
	}

	seen := make(map[string]bool, len(schema.Fields))
	for _, f := range schema.Fields {
		key := strings.ToLower(f.Name)
		if seen[key] {
			panic(fmt.Sprintf("record schema %s declares field %q twice", schema.Name, f.Name))
		}
		seen[key] = true
	}

	if schema.Label == "" {
		schema.Label = schema.Name
	}

	registry[schema.Name] = schema.clone()
}

// Lookup returns a copy of a registered schema by name.
func Lookup(name string) (RecordSchema, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	schema, ok := registry[name]
	if !ok {
		return RecordSchema{}, false
	}
	return schema.clone(), true
}

// All returns copies of all registered schemas sorted by name.
func All() []RecordSchema {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]RecordSchema, 0, len(registry))
	for _, schema := range registry {
		result = append(result, schema.clone())
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})

	return result
}

// SchemaCount returns the number of registered schemas.
func SchemaCount() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(registry)
}

// Clear removes all registered schemas.
// Primarily useful for testing.
func Clear() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]RecordSchema)
}
