package bot

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/octanebot/octanebot/internal/catalog"
	"github.com/octanebot/octanebot/internal/forms"
	"github.com/octanebot/octanebot/internal/octane"
	"github.com/octanebot/octanebot/internal/runner"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var errExpired = &octane.APIError{StatusCode: 401, ErrorCode: "platform.unauthorized"}

type fakeSource struct {
	mu sync.Mutex

	listNodeErrs []error // consumed one per call
	listNodes    int
	layoutErr    error
	noForm       map[string]bool // subtypes without a default edit form
	layoutCalls  int
}

func (f *fakeSource) ListNodes(context.Context) ([]octane.Entity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listNodes++
	if len(f.listNodeErrs) > 0 {
		err := f.listNodeErrs[0]
		f.listNodeErrs = f.listNodeErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return []octane.Entity{
		{"id": "1", "name": "High", "logical_name": "list_node.priority.high"},
		{"id": "2", "name": "Critical", "logical_name": "list_node.severity.urgent"},
	}, nil
}

func (f *fakeSource) Phases(context.Context) ([]octane.Entity, error) {
	return []octane.Entity{{"id": "10", "type": "phase", "logical_name": "phase.defect.new"}}, nil
}

func (f *fakeSource) BacklogRoot(context.Context) (octane.Entity, error) {
	return octane.Entity{"id": "1001", "type": "work_item_root"}, nil
}

func (f *fakeSource) FormLayouts(_ context.Context, subtype string, _ int) ([]octane.FormLayout, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.layoutCalls++
	if f.layoutErr != nil {
		return nil, f.layoutErr
	}
	if f.noForm[subtype] {
		return nil, nil
	}
	var l octane.FormLayout
	l.Layout.Sections = []octane.FormSection{{Fields: []octane.FormField{{Name: "name"}, {Name: "owner"}}}}
	return []octane.FormLayout{l}, nil
}

func (f *fakeSource) FieldMetadata(_ context.Context, _ string, names []string) ([]octane.FieldMetadata, error) {
	var out []octane.FieldMetadata
	for _, n := range names {
		out = append(out, octane.FieldMetadata{Name: n, Label: "L " + n, FieldType: octane.FieldTypeString})
	}
	return out, nil
}

func (f *fakeSource) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listNodes
}

type fakeAuth struct {
	err   error
	calls atomic.Int32
}

func (a *fakeAuth) Authenticate(context.Context) error {
	a.calls.Add(1)
	return a.err
}

func newInitializer(src *fakeSource, auth runner.Authenticator, reg *forms.Registry) *Initializer {
	if reg == nil {
		reg = forms.NewRegistry(nil, nil)
	}
	return &Initializer{
		Source:  src,
		Runner:  runner.New(auth, nil, nil),
		Catalog: &catalog.Holder{},
		Forms:   reg,
		NewBackOff: func() backoff.BackOff {
			return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 3)
		},
	}
}

func TestRunLoadsCatalogAndForms(t *testing.T) {
	src := &fakeSource{}
	in := newInitializer(src, &fakeAuth{}, nil)

	require.NoError(t, in.Run(context.Background()))

	cat, err := in.Catalog.Get()
	require.NoError(t, err)
	_, ok := cat.ListNode("list_node.severity.critical")
	assert.True(t, ok)
	phase, ok := cat.NewPhase(octane.Defect)
	require.True(t, ok)
	assert.Equal(t, "10", phase.ID())
	assert.Equal(t, "1001", cat.Root().ID())

	for _, st := range octane.Subtypes {
		form, ok := in.Forms.Get(st)
		require.True(t, ok, st.String())
		assert.Equal(t, []string{"name", "owner"}, form.FieldNames())
		assert.Equal(t, st.Color(), form.Color)
	}
}

func TestRunDoesNotRetryMissingForm(t *testing.T) {
	src := &fakeSource{noForm: map[string]bool{"epic": true}}
	in := newInitializer(src, &fakeAuth{}, nil)

	require.NoError(t, in.Run(context.Background()))
	src.mu.Lock()
	assert.Equal(t, len(octane.Subtypes), src.layoutCalls)
	src.mu.Unlock()

	_, ok := in.Forms.Get(octane.Epic)
	assert.False(t, ok)
	_, ok = in.Forms.Get(octane.Defect)
	assert.True(t, ok)
}

func TestRunReauthenticatesExpiredSession(t *testing.T) {
	src := &fakeSource{listNodeErrs: []error{errExpired}}
	auth := &fakeAuth{}
	in := newInitializer(src, auth, nil)

	require.NoError(t, in.Run(context.Background()))
	assert.Equal(t, int32(1), auth.calls.Load())
	assert.Equal(t, 2, src.calls())
	assert.True(t, in.Catalog.Ready())
}

func TestRunRetriesTransientFailures(t *testing.T) {
	src := &fakeSource{listNodeErrs: []error{errors.New("connection reset"), errors.New("connection reset")}}
	in := newInitializer(src, &fakeAuth{}, nil)

	require.NoError(t, in.Run(context.Background()))
	assert.Equal(t, 3, src.calls())
	assert.True(t, in.Catalog.Ready())
}

func TestRunGivesUpAfterRetries(t *testing.T) {
	boom := errors.New("boom")
	src := &fakeSource{listNodeErrs: []error{boom, boom, boom, boom, boom}}
	in := newInitializer(src, &fakeAuth{}, nil)

	err := in.Run(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 4, src.calls())
	assert.False(t, in.Catalog.Ready())

	// Forms still load when the catalog does not.
	_, ok := in.Forms.Get(octane.Defect)
	assert.True(t, ok)
}

func TestRunStopsOnRejectedCredentials(t *testing.T) {
	src := &fakeSource{listNodeErrs: []error{errExpired}, layoutErr: errExpired}
	rejected := errors.New("bad credentials")
	auth := &fakeAuth{err: rejected}
	in := newInitializer(src, auth, nil)

	err := in.Run(context.Background())
	require.ErrorIs(t, err, rejected)
	assert.Equal(t, 1, src.calls())
	assert.False(t, in.Catalog.Ready())
	_, ok := in.Forms.Get(octane.Defect)
	assert.False(t, ok)
}

func TestRunWithoutClient(t *testing.T) {
	src := &fakeSource{}
	in := newInitializer(src, nil, nil)

	err := in.Run(context.Background())
	require.ErrorIs(t, err, runner.ErrUnavailable)
	assert.Zero(t, src.calls())
	assert.False(t, in.Catalog.Ready())
}

func TestRunRestoresDisplayOverrides(t *testing.T) {
	store := forms.NewStore(filepath.Join(t.TempDir(), "state.yaml"))

	saved := forms.NewRegistry(store, nil)
	_, _, err := saved.Add(octane.Defect, []octane.FieldMetadata{{Name: "severity", Label: "Severity"}}, forms.SizeMedium)
	require.NoError(t, err)

	in := newInitializer(&fakeSource{}, &fakeAuth{}, forms.NewRegistry(store, nil))
	require.NoError(t, in.Run(context.Background()))

	defect, ok := in.Forms.Get(octane.Defect)
	require.True(t, ok)
	assert.Equal(t, []string{"severity"}, defect.FieldNames())

	story, ok := in.Forms.Get(octane.UserStory)
	require.True(t, ok)
	assert.Equal(t, []string{"name", "owner"}, story.FieldNames())
}

func TestRunHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := &fakeSource{listNodeErrs: []error{errors.New("down"), errors.New("down")}}
	in := newInitializer(src, &fakeAuth{}, nil)
	in.NewBackOff = nil
	in.Timeout = DefaultInitTimeout

	err := in.Run(ctx)
	require.Error(t, err)
	assert.Equal(t, 1, src.calls())
}
