package forms

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/octanebot/octanebot/internal/octane"
)

func defectForm() *Form {
	return &Form{
		Color: "#b21646",
		Sections: []Section{
			{Fields: []Field{{Name: "name", Label: "Name", Type: "string"}, {Name: "severity", Label: "Severity", Type: "reference"}}},
			{Fields: []Field{{Name: "description", Label: "Description", Type: "memo"}}},
		},
	}
}

func TestFormFieldNames(t *testing.T) {
	f := defectForm()
	assert.Equal(t, []string{"name", "severity", "description"}, f.FieldNames())
	assert.False(t, f.Empty())
	assert.True(t, (&Form{}).Empty())
	assert.True(t, (*Form)(nil).Empty())
}

func TestFormCloneIsDeep(t *testing.T) {
	f := defectForm()
	c := f.Clone()
	c.Sections[0].Fields[0].Label = "changed"
	assert.Equal(t, "Name", f.Sections[0].Fields[0].Label)
}

func TestRegistryAdd(t *testing.T) {
	reg := NewRegistry(nil, nil)
	reg.SetLoaded(octane.Defect, defectForm())

	added, skipped, err := reg.Add(octane.Defect, []octane.FieldMetadata{
		{Name: "owner", Label: "Owner", FieldType: "reference"},
		{Name: "name", Label: "Name", FieldType: "string"},
		{Name: "creation_time", Label: "Creation time", FieldType: "date_time"},
	}, SizeMedium)
	require.NoError(t, err)
	assert.Equal(t, []string{"owner", "creation_time"}, added)
	assert.Equal(t, []string{"name"}, skipped)

	f, ok := reg.Get(octane.Defect)
	require.True(t, ok)
	assert.Equal(t, []string{"name", "severity", "description", "owner", "creation_time"}, f.FieldNames())
	require.Len(t, f.Sections, 3)
	assert.True(t, f.Sections[2].Fields[0].Short())
}

func TestRegistryAddCreatesMissingForm(t *testing.T) {
	reg := NewRegistry(nil, nil)
	added, _, err := reg.Add(octane.Epic, []octane.FieldMetadata{{Name: "name", Label: "Name"}}, SizeLarge)
	require.NoError(t, err)
	assert.Equal(t, []string{"name"}, added)
	assert.Equal(t, "#7425ad", reg.Color(octane.Epic))
}

func TestRegistryRemove(t *testing.T) {
	tests := []struct {
		name         string
		keys         []string
		byLabel      bool
		wantRemoved  []string
		wantNotFound []string
		wantNames    []string
	}{
		{
			name:        "by name ignoring case",
			keys:        []string{"SEVERITY", " description "},
			wantRemoved: []string{"severity", "description"},
			wantNames:   []string{"name"},
		},
		{
			name:         "by label",
			keys:         []string{"Severity", "severity_label"},
			byLabel:      true,
			wantRemoved:  []string{"severity"},
			wantNotFound: []string{"severity_label"},
			wantNames:    []string{"name", "description"},
		},
		{
			name:         "nothing matches",
			keys:         []string{"owner"},
			wantNotFound: []string{"owner"},
			wantNames:    []string{"name", "severity", "description"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := NewRegistry(nil, nil)
			reg.SetLoaded(octane.Defect, defectForm())

			removed, notFound, err := reg.Remove(octane.Defect, tt.keys, tt.byLabel)
			require.NoError(t, err)
			assert.Equal(t, tt.wantRemoved, removed)
			assert.Equal(t, tt.wantNotFound, notFound)

			f, _ := reg.Get(octane.Defect)
			assert.Equal(t, tt.wantNames, f.FieldNames())
		})
	}
}

func TestRegistryRemoveWithoutForm(t *testing.T) {
	reg := NewRegistry(nil, nil)
	removed, notFound, err := reg.Remove(octane.Feature, []string{"name"}, false)
	require.NoError(t, err)
	assert.Empty(t, removed)
	assert.Equal(t, []string{"name"}, notFound)
}

func TestOverridesPersistAndSurviveReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "octanebot_state.yaml")

	reg := NewRegistry(NewStore(path), nil)
	reg.SetLoaded(octane.Defect, defectForm())
	_, _, err := reg.Remove(octane.Defect, []string{"description"}, false)
	require.NoError(t, err)

	// Simulates a restart: restore, then the remote form arrives.
	restarted := NewRegistry(NewStore(path), nil)
	require.NoError(t, restarted.Restore())
	restarted.SetLoaded(octane.Defect, defectForm())

	f, ok := restarted.Get(octane.Defect)
	require.True(t, ok)
	assert.Equal(t, []string{"name", "severity"}, f.FieldNames())
	assert.Equal(t, "#b21646", f.Color)

	// Reset drops the override.
	require.NoError(t, restarted.Reset(octane.Defect, defectForm()))
	again := NewRegistry(NewStore(path), nil)
	require.NoError(t, again.Restore())
	_, ok = again.Get(octane.Defect)
	assert.False(t, ok)
}

func TestStoreLoadMissingFile(t *testing.T) {
	forms, err := NewStore(filepath.Join(t.TempDir(), "none.yaml")).Load()
	require.NoError(t, err)
	assert.Empty(t, forms)
}

type fakeSource struct {
	mu       sync.Mutex
	layouts  map[string][]octane.FormLayout
	metadata []octane.FieldMetadata
	err      map[string]error
}

func (f *fakeSource) FormLayouts(_ context.Context, subtype string, formType int) ([]octane.FormLayout, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if formType != octane.FormTypeEdit {
		return nil, errors.New("unexpected form type")
	}
	if err := f.err[subtype]; err != nil {
		return nil, err
	}
	return f.layouts[subtype], nil
}

func (f *fakeSource) FieldMetadata(_ context.Context, _ string, names []string) ([]octane.FieldMetadata, error) {
	var out []octane.FieldMetadata
	for _, m := range f.metadata {
		for _, n := range names {
			if m.Name == n {
				out = append(out, m)
			}
		}
	}
	return out, nil
}

func layout(names ...string) octane.FormLayout {
	var l octane.FormLayout
	section := octane.FormSection{}
	for _, n := range names {
		section.Fields = append(section.Fields, octane.FormField{Name: n})
	}
	l.Layout.Sections = []octane.FormSection{section}
	return l
}

func TestLoaderLoad(t *testing.T) {
	src := &fakeSource{
		layouts: map[string][]octane.FormLayout{"story": {layout("name", "owner", "custom_udf")}},
		metadata: []octane.FieldMetadata{
			{Name: "name", Label: "Name", FieldType: "string"},
			{Name: "owner", Label: "Owner", FieldType: "reference"},
		},
	}
	l := &Loader{Source: src}

	f, err := l.Load(context.Background(), octane.UserStory, "#ffb000")
	require.NoError(t, err)
	assert.Equal(t, &Form{
		Color: "#ffb000",
		Sections: []Section{{Fields: []Field{
			{Name: "name", Label: "Name", Type: "string"},
			{Name: "owner", Label: "Owner", Type: "reference"},
			{Name: "custom_udf"},
		}}},
	}, f)
	assert.Equal(t, "custom_udf", f.Sections[0].Fields[2].Title())
}

func TestLoaderLoadAll(t *testing.T) {
	boom := errors.New("boom")
	src := &fakeSource{
		layouts: map[string][]octane.FormLayout{
			"defect":  {layout("name")},
			"story":   {layout("name")},
			"feature": {layout("name")},
		},
		metadata: []octane.FieldMetadata{{Name: "name", Label: "Name", FieldType: "string"}},
		err:      map[string]error{"epic": boom},
	}
	reg := NewRegistry(nil, nil)

	err := (&Loader{Source: src}).LoadAll(context.Background(), reg)
	assert.ErrorIs(t, err, boom)

	for _, st := range []octane.Subtype{octane.Defect, octane.UserStory, octane.Feature} {
		f, ok := reg.Get(st)
		require.True(t, ok, st.String())
		assert.Equal(t, st.Color(), f.Color)
	}
	_, ok := reg.Get(octane.Epic)
	assert.False(t, ok)
}

func TestLoaderNoForm(t *testing.T) {
	_, err := (&Loader{Source: &fakeSource{}}).Load(context.Background(), octane.Epic, "")
	assert.ErrorIs(t, err, ErrNoForm)
}

func TestLoaderLoadAllSkipsMissingForms(t *testing.T) {
	src := &fakeSource{
		layouts: map[string][]octane.FormLayout{
			"defect":  {layout("name")},
			"story":   {layout("name")},
			"feature": {layout("name")},
		},
		metadata: []octane.FieldMetadata{{Name: "name", Label: "Name", FieldType: "string"}},
	}
	reg := NewRegistry(nil, nil)

	require.NoError(t, (&Loader{Source: src}).LoadAll(context.Background(), reg))
	_, ok := reg.Get(octane.Defect)
	assert.True(t, ok)
	_, ok = reg.Get(octane.Epic)
	assert.False(t, ok)
}

func TestConcurrentChangesPersistLatestForm(t *testing.T) {
	path := filepath.Join(t.TempDir(), "octanebot_state.yaml")
	reg := NewRegistry(NewStore(path), nil)
	reg.SetLoaded(octane.Defect, defectForm())

	const n = 20
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			name := fmt.Sprintf("field_%d", i)
			_, _, err := reg.Add(octane.Defect, []octane.FieldMetadata{{Name: name, Label: name}}, SizeMedium)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	want, _ := reg.Get(octane.Defect)
	stored, err := NewStore(path).Load()
	require.NoError(t, err)
	require.Contains(t, stored, octane.Defect)
	assert.ElementsMatch(t, want.FieldNames(), stored[octane.Defect].FieldNames())
	assert.Len(t, stored[octane.Defect].FieldNames(), 3+n)
}
