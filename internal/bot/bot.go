// Package bot runs the startup sequence of the chat bot: it loads the
// workspace catalog and the response forms from Octane through the
// authenticated runner, retrying transient failures with backoff.
package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/octanebot/octanebot/internal/catalog"
	"github.com/octanebot/octanebot/internal/forms"
	"github.com/octanebot/octanebot/internal/octane"
	"github.com/octanebot/octanebot/internal/runner"
)

// DefaultInitTimeout bounds the retries of each initialization step.
const DefaultInitTimeout = 2 * time.Minute

// Source is the part of the Octane client the startup sequence reads.
type Source interface {
	forms.Source
	ListNodes(ctx context.Context) ([]octane.Entity, error)
	Phases(ctx context.Context) ([]octane.Entity, error)
	BacklogRoot(ctx context.Context) (octane.Entity, error)
}

// Initializer loads the catalog and the response forms.
type Initializer struct {
	Source  Source
	Runner  *runner.Runner
	Catalog *catalog.Holder
	Forms   *forms.Registry
	Logger  *zap.Logger

	// Timeout caps the time spent retrying one step. Zero means
	// DefaultInitTimeout.
	Timeout time.Duration
	// NewBackOff overrides the retry policy.
	NewBackOff func() backoff.BackOff
}

func (in *Initializer) logger() *zap.Logger {
	if in.Logger == nil {
		return zap.NewNop()
	}
	return in.Logger
}

func (in *Initializer) newBackOff() backoff.BackOff {
	if in.NewBackOff != nil {
		return in.NewBackOff()
	}
	// BackOff implementations are stateful; always return a fresh instance.
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = in.Timeout
	if bo.MaxElapsedTime == 0 {
		bo.MaxElapsedTime = DefaultInitTimeout
	}
	return bo
}

// Run restores the persisted display overrides, then loads the catalog and
// the forms. Both steps are attempted even when one fails; the returned
// error joins their failures. Commands that need the catalog keep replying
// that initialization failed until it is loaded.
func (in *Initializer) Run(ctx context.Context) error {
	log := in.logger()
	if err := in.Forms.Restore(); err != nil {
		log.Warn("could not restore display settings", zap.Error(err))
	}

	catErr := in.retry(ctx, "initializeListNodes", in.loadCatalog)
	if catErr != nil {
		log.Error("catalog initialization failed", zap.Error(catErr))
	}

	loader := &forms.Loader{Source: in.Source, Logger: log}
	formErr := in.retry(ctx, "initializeResponseForms", func(ctx context.Context) error {
		return loader.LoadAll(ctx, in.Forms)
	})
	if formErr != nil {
		log.Error("response form initialization failed", zap.Error(formErr))
	}

	if catErr == nil && formErr == nil {
		log.Info("bot initialized")
	}
	return errors.Join(catErr, formErr)
}

func (in *Initializer) loadCatalog(ctx context.Context) error {
	nodes, err := in.Source.ListNodes(ctx)
	if err != nil {
		return fmt.Errorf("list nodes: %w", err)
	}
	phases, err := in.Source.Phases(ctx)
	if err != nil {
		return fmt.Errorf("phases: %w", err)
	}
	root, err := in.Source.BacklogRoot(ctx)
	if err != nil {
		return fmt.Errorf("backlog root: %w", err)
	}

	cat := catalog.New(nodes, phases, root)
	in.Catalog.Set(cat)
	n, p := cat.Size()
	in.logger().Info("catalog loaded", zap.Int("list_nodes", n), zap.Int("phases", p))
	return nil
}

// retry runs step through the runner until it succeeds, fails permanently or
// the backoff gives up.
func (in *Initializer) retry(ctx context.Context, name string, step func(context.Context) error) error {
	return backoff.RetryNotify(func() error {
		out := in.Runner.Run(ctx, runner.Operation{Name: name, Run: step}, "")
		switch out.Kind {
		case runner.Succeeded:
			return nil
		case runner.OperationFailed:
			return out.Err
		default:
			// Rejected credentials, a missing client or a fault will not
			// improve on retry.
			return backoff.Permanent(out.Err)
		}
	}, backoff.WithContext(in.newBackOff(), ctx), func(err error, wait time.Duration) {
		in.logger().Warn("initialization step failed, retrying",
			zap.String("op", name), zap.Duration("wait", wait), zap.Error(err))
	})
}
