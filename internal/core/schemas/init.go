// Package schemas registers the built-in record schemas with the core registry.
// Import this package for its side effects to make them available.
package schemas

// Each file registers its schemas from init().
