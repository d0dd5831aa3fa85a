package forms

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/octanebot/octanebot/internal/octane"
)

// ErrNoForm is returned when Octane has no default edit form for a subtype.
var ErrNoForm = errors.New("no response form received")

// Source reads form layouts and field metadata from Octane.
type Source interface {
	FormLayouts(ctx context.Context, subtype string, formType int) ([]octane.FormLayout, error)
	FieldMetadata(ctx context.Context, entityName string, names []string) ([]octane.FieldMetadata, error)
}

// Loader builds forms from the default edit form of each subtype.
type Loader struct {
	Source Source
	Logger *zap.Logger
}

func (l *Loader) logger() *zap.Logger {
	if l.Logger == nil {
		return zap.NewNop()
	}
	return l.Logger
}

// Load builds the form of st from its edit form layout, labelling each field
// from its metadata.
func (l *Loader) Load(ctx context.Context, st octane.Subtype, color string) (*Form, error) {
	layouts, err := l.Source.FormLayouts(ctx, st.APIName(), octane.FormTypeEdit)
	if err != nil {
		return nil, fmt.Errorf("response form for %s: %w", st, err)
	}
	switch {
	case len(layouts) == 0:
		return nil, fmt.Errorf("%w for %s", ErrNoForm, st)
	case len(layouts) > 1:
		l.logger().Warn("more than one response form received, using the first", zap.Stringer("subtype", st))
	}

	form := &Form{Color: color}
	for _, s := range layouts[0].Layout.Sections {
		var section Section
		for _, f := range s.Fields {
			section.Fields = append(section.Fields, Field{Name: f.Name})
		}
		form.Sections = append(form.Sections, section)
	}

	names := form.FieldNames()
	if len(names) == 0 {
		return form, nil
	}
	md, err := l.Source.FieldMetadata(ctx, st.APIName(), names)
	if err != nil {
		return nil, fmt.Errorf("field metadata for the %s form: %w", st, err)
	}
	byName := make(map[string]octane.FieldMetadata, len(md))
	for _, m := range md {
		byName[m.Name] = m
	}
	for i := range form.Sections {
		for j := range form.Sections[i].Fields {
			f := &form.Sections[i].Fields[j]
			if m, ok := byName[f.Name]; ok {
				f.Label = m.Label
				f.Type = m.FieldType
			}
		}
	}
	return form, nil
}

// LoadAll loads the forms of every subtype in parallel into reg. Forms that
// load are installed even when others fail; the first error is returned. A
// subtype without a default edit form is only logged.
func (l *Loader) LoadAll(ctx context.Context, reg *Registry) error {
	var g errgroup.Group
	for _, st := range octane.Subtypes {
		g.Go(func() error {
			form, err := l.Load(ctx, st, reg.Color(st))
			switch {
			case errors.Is(err, ErrNoForm):
				l.logger().Warn("no response form received", zap.Stringer("subtype", st))
				return nil
			case err != nil:
				l.logger().Warn("could not load response form", zap.Stringer("subtype", st), zap.Error(err))
				return err
			}
			reg.SetLoaded(st, form)
			return nil
		})
	}
	return g.Wait()
}
