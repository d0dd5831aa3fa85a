// Package forms keeps the response form of each subtype: the fields the get
// command shows, grouped in sections, and the card color.
package forms

import (
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/octanebot/octanebot/internal/octane"
)

// Display sizes of a field. Medium fields are laid out side by side.
const (
	SizeMedium = "medium"
	SizeLarge  = "large"
)

// Field is one displayed field.
type Field struct {
	Name  string `yaml:"name"`
	Label string `yaml:"label,omitempty"`
	Type  string `yaml:"type,omitempty"`
	Size  string `yaml:"size,omitempty"`
}

// Title returns the label, or the name when the field has no label.
func (f Field) Title() string {
	if f.Label != "" {
		return f.Label
	}
	return f.Name
}

// Short reports whether the field fits half a card row.
func (f Field) Short() bool { return f.Size == SizeMedium }

// Section is an ordered group of fields.
type Section struct {
	Fields []Field `yaml:"fields"`
}

// Form is the response form of one subtype.
type Form struct {
	Sections []Section `yaml:"sections"`
	Color    string    `yaml:"color,omitempty"`
}

// FieldNames returns the names of all fields in section order.
func (f *Form) FieldNames() []string {
	if f == nil {
		return nil
	}
	var names []string
	for _, s := range f.Sections {
		for _, fld := range s.Fields {
			names = append(names, fld.Name)
		}
	}
	return names
}

// Fields returns all fields in section order.
func (f *Form) Fields() []Field {
	if f == nil {
		return nil
	}
	var out []Field
	for _, s := range f.Sections {
		out = append(out, s.Fields...)
	}
	return out
}

// Empty reports whether the form has no fields.
func (f *Form) Empty() bool { return len(f.FieldNames()) == 0 }

// Clone returns a deep copy.
func (f *Form) Clone() *Form {
	if f == nil {
		return nil
	}
	c := &Form{Color: f.Color, Sections: make([]Section, len(f.Sections))}
	for i, s := range f.Sections {
		c.Sections[i] = Section{Fields: slices.Clone(s.Fields)}
	}
	return c
}

func (f *Form) has(name string) bool {
	return slices.Contains(f.FieldNames(), name)
}

// Registry holds the forms of every subtype. Forms changed by display
// commands are overrides: they survive reloads and are persisted to the
// store, when one is set.
type Registry struct {
	mu         sync.RWMutex
	saveMu     sync.Mutex // serializes snapshot and write
	forms      map[octane.Subtype]*Form
	overridden map[octane.Subtype]bool
	store      *Store
	logger     *zap.Logger
}

// NewRegistry creates an empty registry. store may be nil.
func NewRegistry(store *Store, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		forms:      make(map[octane.Subtype]*Form),
		overridden: make(map[octane.Subtype]bool),
		store:      store,
		logger:     logger,
	}
}

// Get returns a copy of the form of st.
func (r *Registry) Get(st octane.Subtype) (*Form, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.forms[st]
	return f.Clone(), ok
}

// Color returns the card color of st's form, or the subtype default.
func (r *Registry) Color(st octane.Subtype) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if f, ok := r.forms[st]; ok && f.Color != "" {
		return f.Color
	}
	return st.Color()
}

// SetLoaded installs a form loaded from Octane unless st has an override.
func (r *Registry) SetLoaded(st octane.Subtype, f *Form) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.overridden[st] {
		r.logger.Debug("keeping display override", zap.Stringer("subtype", st))
		return
	}
	r.forms[st] = f.Clone()
}

// Reset replaces the form of st and drops its override.
func (r *Registry) Reset(st octane.Subtype, f *Form) error {
	r.mu.Lock()
	r.forms[st] = f.Clone()
	delete(r.overridden, st)
	r.mu.Unlock()
	return r.save()
}

// Add appends a section with the fields in md that the form does not show
// yet. It returns the names added and the names already present.
func (r *Registry) Add(st octane.Subtype, md []octane.FieldMetadata, size string) (added, skipped []string, err error) {
	r.mu.Lock()
	f, ok := r.forms[st]
	if !ok {
		f = &Form{Color: st.Color()}
		r.forms[st] = f
	}
	var section Section
	for _, m := range md {
		if f.has(m.Name) || slices.Contains(added, m.Name) {
			skipped = append(skipped, m.Name)
			continue
		}
		added = append(added, m.Name)
		section.Fields = append(section.Fields, Field{Name: m.Name, Label: m.Label, Type: m.FieldType, Size: size})
	}
	if len(section.Fields) > 0 {
		f.Sections = append(f.Sections, section)
		r.overridden[st] = true
	}
	r.mu.Unlock()

	if len(added) == 0 {
		return added, skipped, nil
	}
	return added, skipped, r.save()
}

// Remove drops every field whose name (or label, when byLabel) equals one of
// keys, ignoring case. It returns the names of the removed fields and the
// keys that matched nothing.
func (r *Registry) Remove(st octane.Subtype, keys []string, byLabel bool) (removed, notFound []string, err error) {
	r.mu.Lock()
	f, ok := r.forms[st]
	for _, key := range keys {
		key = strings.TrimSpace(key)
		if !ok {
			notFound = append(notFound, key)
			continue
		}
		matched := false
		for i := range f.Sections {
			kept := f.Sections[i].Fields[:0]
			for _, fld := range f.Sections[i].Fields {
				candidate := fld.Name
				if byLabel {
					candidate = fld.Label
				}
				if strings.EqualFold(candidate, key) {
					removed = append(removed, fld.Name)
					matched = true
					continue
				}
				kept = append(kept, fld)
			}
			f.Sections[i].Fields = kept
		}
		if !matched {
			notFound = append(notFound, key)
		}
	}
	if len(removed) > 0 {
		r.overridden[st] = true
	}
	r.mu.Unlock()

	if len(removed) == 0 {
		return removed, notFound, nil
	}
	return removed, notFound, r.save()
}

// Restore installs the overrides persisted in the store.
func (r *Registry) Restore() error {
	if r.store == nil {
		return nil
	}
	stored, err := r.store.Load()
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for st, f := range stored {
		r.forms[st] = f
		r.overridden[st] = true
	}
	return nil
}

func (r *Registry) save() error {
	if r.store == nil {
		return nil
	}
	r.saveMu.Lock()
	defer r.saveMu.Unlock()

	r.mu.RLock()
	snapshot := make(map[octane.Subtype]*Form, len(r.overridden))
	for st := range r.overridden {
		snapshot[st] = r.forms[st].Clone()
	}
	r.mu.RUnlock()
	return r.store.Save(snapshot)
}
