// Package catalog holds the workspace data the bot loads once at startup:
// list nodes (allowed values of enumerated fields), phases, and the backlog
// root work item.
package catalog

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/octanebot/octanebot/internal/octane"
)

// ErrUninitialized is returned while the catalog has not been loaded.
var ErrUninitialized = errors.New("catalog not initialized")

// ListNodePrefix starts the logical name of every list node.
const ListNodePrefix = "list_node."

// Catalog is immutable once built and safe for concurrent reads.
type Catalog struct {
	listNodes []octane.Entity
	byLogical map[string]octane.Entity
	phases    map[string]octane.Entity
	root      octane.Entity
}

// New builds a catalog. Entities without a logical name are ignored; the
// first entity wins when logical names repeat.
func New(listNodes, phases []octane.Entity, root octane.Entity) *Catalog {
	c := &Catalog{
		byLogical: make(map[string]octane.Entity, len(listNodes)),
		phases:    make(map[string]octane.Entity, len(phases)),
		root:      root,
	}
	for _, n := range listNodes {
		name := n.LogicalName()
		if name == "" {
			continue
		}
		if _, dup := c.byLogical[name]; dup {
			continue
		}
		c.byLogical[name] = n
		c.listNodes = append(c.listNodes, n)
	}
	for _, p := range phases {
		if name := p.LogicalName(); name != "" {
			if _, dup := c.phases[name]; !dup {
				c.phases[name] = p
			}
		}
	}
	return c
}

// normalize lower-cases a logical name and rewrites the first "critical" to
// "urgent", the name Octane uses internally for critical severity.
func normalize(logical string) string {
	return strings.Replace(strings.ToLower(logical), "critical", "urgent", 1)
}

// ListNodeName returns the logical name of value on field,
// e.g. list_node.severity.high.
func ListNodeName(field, value string) string {
	return ListNodePrefix + field + "." + value
}

// ListNode looks up a list node by logical name after normalization.
func (c *Catalog) ListNode(logical string) (octane.Entity, bool) {
	n, ok := c.byLogical[normalize(logical)]
	return n, ok
}

// Siblings returns the display values of every list node under field, in
// catalog order. For severity fields "urgent" is shown as "critical".
func (c *Catalog) Siblings(field string) []string {
	prefix := normalize(ListNodePrefix + field)
	severity := strings.Contains(prefix, "severity")
	var values []string
	for _, n := range c.listNodes {
		name := n.LogicalName()
		if name == prefix || !strings.HasPrefix(name, prefix+".") {
			continue
		}
		v := name[strings.LastIndex(name, ".")+1:]
		if severity {
			v = strings.Replace(v, "urgent", "critical", 1)
		}
		values = append(values, v)
	}
	return values
}

// Phase looks up a phase by logical name, e.g. phase.defect.new.
func (c *Catalog) Phase(logical string) (octane.Entity, bool) {
	p, ok := c.phases[logical]
	return p, ok
}

// NewPhase returns the initial phase of subtype st.
func (c *Catalog) NewPhase(st octane.Subtype) (octane.Entity, bool) {
	return c.Phase("phase." + st.APIName() + ".new")
}

// Root returns the backlog root work item.
func (c *Catalog) Root() octane.Entity { return c.root }

// Size returns the number of list nodes and phases.
func (c *Catalog) Size() (listNodes, phases int) {
	return len(c.listNodes), len(c.phases)
}

// Holder publishes a catalog once it has been loaded.
type Holder struct {
	p atomic.Pointer[Catalog]
}

// Set publishes c.
func (h *Holder) Set(c *Catalog) { h.p.Store(c) }

// Get returns the published catalog or ErrUninitialized.
func (h *Holder) Get() (*Catalog, error) {
	c := h.p.Load()
	if c == nil {
		return nil, ErrUninitialized
	}
	return c, nil
}

// Ready reports whether a catalog has been published.
func (h *Holder) Ready() bool { return h.p.Load() != nil }
