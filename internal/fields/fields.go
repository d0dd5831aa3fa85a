// Package fields decides how a named field of a work item is written: as
// plain text, as a reference to a parent work item, or as one of the list
// node values of an enumerated field.
package fields

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/octanebot/octanebot/internal/catalog"
	"github.com/octanebot/octanebot/internal/octane"
)

// Kind is how a field value is resolved.
type Kind int

const (
	String Kind = iota
	ParentReference
	EnumeratedList
)

func (k Kind) String() string {
	switch k {
	case String:
		return "string"
	case ParentReference:
		return "parent"
	case EnumeratedList:
		return "list node"
	default:
		return "unknown"
	}
}

// Schema maps the writable field names of a subtype to their kind.
type Schema map[string]Kind

// Lookup finds field case-insensitively.
func (s Schema) Lookup(field string) (Kind, bool) {
	k, ok := s[normalizeField(field)]
	return k, ok
}

func normalizeField(field string) string {
	return strings.ToLower(strings.TrimSpace(field))
}

var schemas = map[octane.Subtype]Schema{
	octane.Defect: {
		"feature":     ParentReference,
		"parent":      ParentReference,
		"priority":    EnumeratedList,
		"severity":    EnumeratedList,
		"name":        String,
		"description": String,
	},
	octane.UserStory: {
		"feature":     ParentReference,
		"parent":      ParentReference,
		"name":        String,
		"description": String,
	},
	octane.Feature: {
		"epic":        ParentReference,
		"parent":      ParentReference,
		"priority":    EnumeratedList,
		"name":        String,
		"description": String,
	},
	octane.Epic: {
		"name":        String,
		"description": String,
	},
}

// SchemaFor returns the writable fields of st.
func SchemaFor(st octane.Subtype) Schema { return schemas[st] }

// UnknownFieldError is returned for a field the subtype does not accept.
type UnknownFieldError struct {
	Field string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("field %s does not exist", e.Field)
}

// InvalidValueError is returned when an enumerated field has no list node
// for the value. Valid lists the accepted values.
type InvalidValueError struct {
	Field string
	Value string
	Valid []string
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("field %s does not support the value %s", e.Field, e.Value)
}

// ParentNotFoundError is returned when a parent reference names no work item.
type ParentNotFoundError struct {
	ID string
}

func (e *ParentNotFoundError) Error() string {
	return fmt.Sprintf("parent %s not found", e.ID)
}

// ParentLookup finds a work item by id, returning nil when none exists.
type ParentLookup interface {
	WorkItem(ctx context.Context, id string) (octane.Entity, error)
}

// Value is a resolved field value.
type Value struct {
	Field  string
	Kind   Kind
	Text   string        // String fields
	Entity octane.Entity // list node or parent work item
}

// Apply writes v into the entity payload e. Parent references always set
// the parent field, whatever name they were given.
func (v Value) Apply(e octane.Entity) {
	switch v.Kind {
	case ParentReference:
		e["parent"] = v.Entity.Reference()
	case EnumeratedList:
		e[v.Field] = v.Entity.Reference()
	default:
		e[v.Field] = v.Text
	}
}

// Resolver turns raw command text into field values. It never mutates the
// catalog and is safe for concurrent use.
type Resolver struct {
	Catalog *catalog.Catalog
	Parents ParentLookup
}

// Resolve resolves raw as the value of field under schema. Errors from the
// parent lookup are returned unchanged so callers can classify them.
func (r *Resolver) Resolve(ctx context.Context, schema Schema, field, raw string) (Value, error) {
	name := normalizeField(field)
	kind, ok := schema[name]
	if !ok {
		return Value{}, &UnknownFieldError{Field: name}
	}
	raw = strings.TrimSpace(raw)
	v := Value{Field: name, Kind: kind}

	switch kind {
	case EnumeratedList:
		node, ok := r.Catalog.ListNode(catalog.ListNodeName(name, raw))
		if !ok {
			return Value{}, &InvalidValueError{Field: name, Value: raw, Valid: r.Catalog.Siblings(name)}
		}
		v.Entity = node
	case ParentReference:
		if _, err := strconv.ParseUint(raw, 10, 64); err != nil {
			return Value{}, &ParentNotFoundError{ID: raw}
		}
		parent, err := r.Parents.WorkItem(ctx, raw)
		if err != nil {
			return Value{}, err
		}
		if parent == nil {
			return Value{}, &ParentNotFoundError{ID: raw}
		}
		v.Entity = parent
	default:
		v.Text = raw
	}
	return v, nil
}
