// Package schema describes the shape of values exchanged with the model and
// validates model output against that shape.
//
// A Schema is a tagged variant: scalar kinds (string, number, boolean), an
// object with ordered properties and a required list, an array with one item
// schema, an enum of literal string values, or a union of alternatives.
// Schemas serve three purposes:
//
//   - Wire() produces the JSON-serializable description placed in prompts and
//     function catalogs.
//   - Validate() checks a decoded value structurally, without coercion, and
//     reports the first failing field path.
//   - PromptRules() renders the deterministic instruction block that tells
//     the model to answer with matching JSON only.
//
// # Quick Start
//
//	s := schema.Object(map[string]*schema.Schema{
//	    "name":  schema.String("The person's name"),
//	    "age":   schema.Number("Age in years").AsOptional(),
//	    "tags":  schema.Array("Labels", schema.String("")),
//	    "state": schema.Enum("Account state", "active", "closed"),
//	})
//
// Properties not marked AsOptional are required. An explicit required list
// can be passed to Object instead; names not declared as properties are
// dropped, so the required list is always a subset of the declared
// properties.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Kind discriminates the schema variants.
type Kind string

const (
	KindString  Kind = "string"
	KindNumber  Kind = "number"
	KindBoolean Kind = "boolean"
	KindObject  Kind = "object"
	KindArray   Kind = "array"
	KindEnum    Kind = "enum"
	KindOneOf   Kind = "oneOf"
)

// UnionMode controls how OneOf schemas are rendered on the wire.
type UnionMode int

const (
	// UnionFirstBranch collapses a union to its first alternative. This loses
	// precision but produces the simplest instructions for the model. It is
	// the default.
	UnionFirstBranch UnionMode = iota

	// UnionAnyOf emits the full union as a JSON Schema "anyOf". Use this when
	// the model handles unions well and full fidelity matters.
	UnionAnyOf
)

// WireOptions configures Wire output.
type WireOptions struct {
	Unions UnionMode
}

// Schema is a recursive description of a value's shape.
type Schema struct {
	kind        Kind
	description string

	// Object
	propNames []string // preserves declaration order
	props     map[string]*Schema
	required  []string

	// Array
	item *Schema

	// Enum
	values []string

	// OneOf
	alternatives []*Schema

	// Marker consumed by Object when deriving the required list. Unwrapped
	// by Wire; the parent's required list is the sole optionality carrier.
	optional bool

	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
}

// Kind returns the schema's variant tag.
func (s *Schema) Kind() Kind { return s.kind }

// Description returns the human-readable description, if any.
func (s *Schema) Description() string { return s.description }

// Required returns the required property names of an object schema.
func (s *Schema) Required() []string { return s.required }

// Properties returns an object schema's property names in declaration order.
func (s *Schema) Properties() []string { return s.propNames }

// Property returns the schema for the named property, or nil.
func (s *Schema) Property(name string) *Schema { return s.props[name] }

// Item returns an array schema's item schema.
func (s *Schema) Item() *Schema { return s.item }

// Values returns an enum schema's literal values.
func (s *Schema) Values() []string { return s.values }

// Alternatives returns a union schema's branches.
func (s *Schema) Alternatives() []*Schema { return s.alternatives }

// AsOptional marks the schema optional within its parent object. The marker
// only affects the parent's derived required list; it never appears on the
// wire.
func (s *Schema) AsOptional() *Schema {
	s.optional = true
	return s
}

// String creates a string schema.
func String(description string) *Schema {
	return &Schema{kind: KindString, description: description}
}

// Number creates a number schema.
func Number(description string) *Schema {
	return &Schema{kind: KindNumber, description: description}
}

// Boolean creates a boolean schema.
func Boolean(description string) *Schema {
	return &Schema{kind: KindBoolean, description: description}
}

// Array creates an array schema with the given item schema.
func Array(description string, item *Schema) *Schema {
	return &Schema{kind: KindArray, description: description, item: item}
}

// Enum creates an enum schema over literal string values. Order is preserved.
func Enum(description string, values ...string) *Schema {
	return &Schema{kind: KindEnum, description: description, values: values}
}

// OneOf creates a union schema. How the union reaches the wire is decided at
// Wire time via WireOptions; validation always accepts any branch.
func OneOf(alternatives ...*Schema) *Schema {
	return &Schema{kind: KindOneOf, alternatives: alternatives}
}

// Object creates an object schema. If an explicit required list is given it
// is used (filtered to declared names); otherwise every property not marked
// AsOptional is required. Property order follows sorted name order for
// deterministic output.
func Object(properties map[string]*Schema, required ...string) *Schema {
	names := make([]string, 0, len(properties))
	for name := range properties {
		names = append(names, name)
	}
	sort.Strings(names)

	var req []string
	if len(required) > 0 {
		for _, r := range required {
			if _, ok := properties[r]; ok {
				req = append(req, r)
			}
		}
	} else {
		for _, name := range names {
			if !properties[name].optional {
				req = append(req, name)
			}
		}
	}

	return &Schema{
		kind:      KindObject,
		propNames: names,
		props:     properties,
		required:  req,
	}
}

// ObjectWithDescription is Object plus a description.
func ObjectWithDescription(description string, properties map[string]*Schema, required ...string) *Schema {
	s := Object(properties, required...)
	s.description = description
	return s
}

// Wire returns the JSON-serializable description with default options
// (unions collapse to their first branch).
func (s *Schema) Wire() map[string]any {
	return s.WireWith(WireOptions{})
}

// WireWith returns the JSON-serializable description using the given options.
func (s *Schema) WireWith(opts WireOptions) map[string]any {
	if s == nil {
		return nil
	}

	m := map[string]any{}
	if s.description != "" {
		m["description"] = s.description
	}

	switch s.kind {
	case KindString:
		m["type"] = "string"
	case KindNumber:
		m["type"] = "number"
	case KindBoolean:
		m["type"] = "boolean"
	case KindEnum:
		m["type"] = "string"
		vals := make([]any, len(s.values))
		for i, v := range s.values {
			vals[i] = v
		}
		m["enum"] = vals
	case KindArray:
		m["type"] = "array"
		if s.item != nil {
			m["items"] = s.item.WireWith(opts)
		}
	case KindObject:
		m["type"] = "object"
		props := make(map[string]any, len(s.props))
		for name, prop := range s.props {
			props[name] = prop.WireWith(opts)
		}
		m["properties"] = props
		if len(s.required) > 0 {
			req := make([]any, len(s.required))
			for i, r := range s.required {
				req[i] = r
			}
			m["required"] = req
		}
	case KindOneOf:
		if len(s.alternatives) == 0 {
			return m
		}
		if opts.Unions == UnionAnyOf {
			alts := make([]any, len(s.alternatives))
			for i, alt := range s.alternatives {
				alts[i] = alt.WireWith(opts)
			}
			m["anyOf"] = alts
			return m
		}
		// First-branch collapse. Keep the outer description if the branch
		// has none.
		branch := s.alternatives[0].WireWith(opts)
		if s.description != "" {
			if _, ok := branch["description"]; !ok {
				branch["description"] = s.description
			}
		}
		return branch
	}

	return m
}

// PromptRules renders the deterministic rule set instructing the model to
// return JSON matching this schema exactly.
func (s *Schema) PromptRules() string {
	wire, err := json.MarshalIndent(s.Wire(), "", "  ")
	if err != nil {
		wire = []byte("{}")
	}

	var sb strings.Builder
	sb.WriteString("You must respond with valid JSON matching this schema exactly:\n")
	sb.Write(wire)
	sb.WriteString("\n\nRules:\n")
	sb.WriteString("- Respond with JSON only, no explanation or prose.\n")
	sb.WriteString("- Do not wrap the JSON in markdown code fences.\n")
	sb.WriteString("- Include every required field.\n")
	sb.WriteString("- Do not add fields that are not in the schema.\n")
	return sb.String()
}

// Validate checks value against the schema. It performs a structural check
// only - types are never coerced. Returns nil if valid, or a *ValidationError
// reporting the first failing field path.
//
// Validation always uses full union fidelity (anyOf), regardless of how the
// schema reaches the wire.
func (s *Schema) Validate(value any) error {
	if s == nil {
		return nil
	}

	s.compileOnce.Do(func() {
		s.compiled, s.compileErr = compile(s.WireWith(WireOptions{Unions: UnionAnyOf}))
	})
	if s.compileErr != nil {
		return fmt.Errorf("schema compile: %w", s.compileErr)
	}

	// Round-trip through JSON so the validator sees canonical types
	// (float64 numbers, map[string]any objects) no matter what the caller
	// decoded the value into.
	data, err := json.Marshal(value)
	if err != nil {
		return &ValidationError{Path: "", Err: fmt.Errorf("value is not JSON-serializable: %w", err)}
	}
	decoded, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return &ValidationError{Path: "", Err: err}
	}

	if err := s.compiled.Validate(decoded); err != nil {
		return newValidationError(err)
	}
	return nil
}

// ValidationError reports a structural mismatch between a value and a schema.
type ValidationError struct {
	// Path is the first failing field path, slash-separated from the root
	// (e.g. "items/2/name"). Empty for a root-level failure.
	Path string
	Err  error
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("schema validation failed: %v", e.Err)
	}
	return fmt.Sprintf("schema validation failed at %q: %v", e.Path, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// newValidationError extracts the first, deepest failing path from the
// validator's error tree.
func newValidationError(err error) *ValidationError {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return &ValidationError{Err: err}
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	return &ValidationError{
		Path: strings.Join(ve.InstanceLocation, "/"),
		Err:  err,
	}
}

func compile(wire map[string]any) (*jsonschema.Schema, error) {
	data, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	return c.Compile("schema.json")
}
