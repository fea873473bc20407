// Package funcs holds the function registry and the execution controller
// that turns parsed function calls into tool results.
//
// Functions are caller-supplied named capabilities: a description for the
// model, a parameter schema, and a handler. The registry owns definitions for
// the lifetime of the process; calls and results are ephemeral per loop
// iteration.
package funcs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/spindle-ai/spindle/schema"
)

// Handler executes a function with the argument bag parsed from model
// output. Handlers may be arbitrarily slow; they receive the loop's context
// for cancellation. A returned error becomes a failed ToolResult, never a
// loop failure.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// FunctionDefinition describes one callable function.
type FunctionDefinition struct {
	// Name identifies the function in calls. Unique within a registry.
	Name string

	// Description tells the model what the function does and when to use it.
	Description string

	// Parameters is the argument schema. Must be an object schema; nil means
	// the function takes no arguments.
	Parameters *schema.Schema

	// Handler executes the function.
	Handler Handler
}

// CatalogEntry is one function's public description: everything except the
// handler. Used to build the protocol's system instructions.
type CatalogEntry struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// Registry holds named function definitions in registration order.
//
// Registries are read-mostly: mutation during an in-progress run sharing the
// same instance is the caller's responsibility to serialize.
type Registry struct {
	order  []string
	byName map[string]*FunctionDefinition
	logger zerolog.Logger
}

// NewRegistry creates an empty registry. Logging is disabled until
// WithLogger is called.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*FunctionDefinition),
		logger: zerolog.Nop(),
	}
}

// WithLogger sets the logger used for non-fatal warnings (overwrites,
// tolerated extra arguments). Returns the registry for chaining.
func (r *Registry) WithLogger(logger zerolog.Logger) *Registry {
	r.logger = logger
	return r
}

// Register inserts a definition by name. Re-registering an existing name
// overwrites the previous definition and logs a warning; it is never an
// error. Returns the registry for chaining.
func (r *Registry) Register(def *FunctionDefinition) *Registry {
	if def == nil || def.Name == "" {
		return r
	}
	if _, exists := r.byName[def.Name]; exists {
		r.logger.Warn().
			Str("function", def.Name).
			Msg("overwriting existing function registration")
	} else {
		r.order = append(r.order, def.Name)
	}
	r.byName[def.Name] = def
	return r
}

// Unregister removes a definition by name. Unknown names are a no-op.
func (r *Registry) Unregister(name string) {
	if _, exists := r.byName[name]; !exists {
		return
	}
	delete(r.byName, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Get returns the definition for name, or nil if absent.
func (r *Registry) Get(name string) *FunctionDefinition {
	return r.byName[name]
}

// Len returns the number of registered functions.
func (r *Registry) Len() int {
	return len(r.order)
}

// Catalog returns the public description of every registered function,
// handler excluded, in registration order. The ordering is stable across
// calls.
func (r *Registry) Catalog() []CatalogEntry {
	entries := make([]CatalogEntry, 0, len(r.order))
	for _, name := range r.order {
		def := r.byName[name]
		entries = append(entries, CatalogEntry{
			Name:        def.Name,
			Description: def.Description,
			Parameters:  def.Parameters.Wire(),
		})
	}
	return entries
}

// FuncOf adapts a typed function to the uniform Handler contract. The
// argument bag is decoded into I by a JSON round-trip, so the same struct
// tags that shape the schema shape the decoding.
//
//	type SearchInput struct {
//	    Query string `json:"query"`
//	}
//
//	handler := funcs.FuncOf(func(ctx context.Context, in SearchInput) (any, error) {
//	    return doSearch(ctx, in.Query)
//	})
func FuncOf[I any](fn func(ctx context.Context, input I) (any, error)) Handler {
	return func(ctx context.Context, args map[string]any) (any, error) {
		data, err := json.Marshal(args)
		if err != nil {
			return nil, fmt.Errorf("encode arguments: %w", err)
		}
		var input I
		if err := json.Unmarshal(data, &input); err != nil {
			return nil, fmt.Errorf("decode arguments: %w", err)
		}
		return fn(ctx, input)
	}
}
