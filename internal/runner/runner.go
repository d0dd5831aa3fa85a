// Package runner executes remote operations against an authenticated
// session. An operation that fails as unauthorized triggers one
// re-authentication and one retry; every other failure is terminal.
//
// A run is a small state machine:
//
//	Fresh ──ok──▶ Done
//	Fresh ──unauthorized──▶ Authenticating ──ok──▶ Retried ──ok──▶ Done
//	Fresh ──error──▶ Failed
//	Authenticating ──error──▶ Failed
//	Retried ──any error──▶ Failed
package runner

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/octanebot/octanebot/internal/telemetry"
)

const scopeName = "github.com/octanebot/octanebot/runner"

// State is a state of one run.
type State int

const (
	Fresh State = iota
	AuthenticatingState
	Retried
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Fresh:
		return "fresh"
	case AuthenticatingState:
		return "authenticating"
	case Retried:
		return "retried"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type event int

const (
	evSucceeded event = iota
	evUnauthorized
	evFailed
	evAuthenticated
	evAuthFailed
)

var transitions = map[State]map[event]State{
	Fresh: {
		evSucceeded:    Done,
		evUnauthorized: AuthenticatingState,
		evFailed:       Failed,
	},
	AuthenticatingState: {
		evAuthenticated: Retried,
		evAuthFailed:    Failed,
	},
	Retried: {
		evSucceeded:    Done,
		evUnauthorized: Failed,
		evFailed:       Failed,
	},
}

// Kind classifies the outcome of a run.
type Kind int

const (
	Succeeded Kind = iota
	OperationFailed
	AuthenticationFailed
	InternalFault
	Unavailable
)

func (k Kind) String() string {
	switch k {
	case Succeeded:
		return "succeeded"
	case OperationFailed:
		return "operation_failed"
	case AuthenticationFailed:
		return "authentication_failed"
	case InternalFault:
		return "internal_fault"
	case Unavailable:
		return "unavailable"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Outcome is the result of a run. Err is nil only for Succeeded.
type Outcome struct {
	Kind     Kind
	Err      error
	Attempts int
}

// OK reports whether the run succeeded.
func (o Outcome) OK() bool { return o.Kind == Succeeded }

// ErrUnavailable is the error of an Unavailable outcome.
var ErrUnavailable = errors.New("the octane connection was not created; operations that require octane cannot run")

// Operation is one remote unit of work.
type Operation struct {
	Name string
	Run  func(ctx context.Context) error
	// OnFailure, when set, is called once with the terminal error of an
	// OperationFailed or AuthenticationFailed run.
	OnFailure func(err error)
	// NoReauth disables the re-authentication retry.
	NoReauth bool
}

// Authenticator establishes a new session.
type Authenticator interface {
	Authenticate(ctx context.Context) error
}

// IsUnauthorized reports whether err, or an error it wraps, says the session
// is missing or expired.
func IsUnauthorized(err error) bool {
	var u interface{ Unauthorized() bool }
	return errors.As(err, &u) && u.Unauthorized()
}

// FaultError wraps a value recovered from a panicking operation.
type FaultError struct {
	Value any
}

func (e *FaultError) Error() string { return fmt.Sprint(e.Value) }

// Runner runs operations with one re-authentication retry. A Runner with a
// nil Authenticator reports every run as Unavailable.
type Runner struct {
	auth   Authenticator
	status *StatusBoard
	logger *zap.Logger

	tracer  trace.Tracer
	runs    metric.Int64Counter
	reauths metric.Int64Counter
}

// New creates a runner. status may be shared with other components.
func New(auth Authenticator, status *StatusBoard, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if status == nil {
		status = NewStatusBoard(logger)
	}
	m := telemetry.Meter(scopeName)
	runs, _ := m.Int64Counter("octanebot.runner.runs",
		metric.WithDescription("Authenticated runs by outcome"),
	)
	reauths, _ := m.Int64Counter("octanebot.runner.reauthentications",
		metric.WithDescription("Re-authentications triggered by unauthorized responses"),
	)
	return &Runner{
		auth:    auth,
		status:  status,
		logger:  logger,
		tracer:  telemetry.Tracer(scopeName),
		runs:    runs,
		reauths: reauths,
	}
}

// Status returns the board the runner writes to.
func (r *Runner) Status() *StatusBoard { return r.status }

// Run executes op on behalf of user (empty for background work). It never
// panics and never returns a zero Outcome for a failed run.
func (r *Runner) Run(ctx context.Context, op Operation, user string) Outcome {
	if r == nil || r.auth == nil {
		if r != nil {
			r.logger.Error("operation skipped", zap.String("op", op.Name), zap.Error(ErrUnavailable))
		}
		return Outcome{Kind: Unavailable, Err: ErrUnavailable}
	}

	ctx, span := r.tracer.Start(ctx, "runner.run",
		trace.WithAttributes(
			attribute.String("octanebot.op", op.Name),
			attribute.String("octanebot.user", user),
		),
	)
	defer span.End()

	out := r.drive(ctx, op, user)

	span.SetAttributes(
		attribute.String("octanebot.outcome", out.Kind.String()),
		attribute.Int("octanebot.attempts", out.Attempts),
	)
	if out.Err != nil {
		span.RecordError(out.Err)
		span.SetStatus(codes.Error, out.Err.Error())
	}
	r.runs.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op.Name),
		attribute.String("outcome", out.Kind.String()),
	))
	return out
}

func (r *Runner) drive(ctx context.Context, op Operation, user string) Outcome {
	state := Fresh
	out := Outcome{Kind: Succeeded}
	log := r.logger.With(zap.String("op", op.Name), zap.String("user", user))

	for {
		var ev event
		switch state {
		case Fresh, Retried:
			r.status.Update(Running(op.Name), user)
			out.Attempts++
			err := invoke(ctx, op.Run)
			var fault *FaultError
			switch {
			case errors.As(err, &fault):
				log.Error("operation panicked", zap.Any("fault", fault.Value))
				r.status.Update(Errored(fault.Error()), user)
				return Outcome{Kind: InternalFault, Err: err, Attempts: out.Attempts}
			case err == nil:
				ev = evSucceeded
			case IsUnauthorized(err) && !op.NoReauth:
				log.Debug("operation unauthorized", zap.Error(err))
				ev = evUnauthorized
			default:
				log.Debug("operation failed", zap.Error(err))
				ev = evFailed
			}
			if err != nil {
				out.Kind, out.Err = OperationFailed, err
			}

		case AuthenticatingState:
			r.status.Update(Authenticating, user)
			r.reauths.Add(ctx, 1)
			err := invoke(ctx, r.auth.Authenticate)
			var fault *FaultError
			switch {
			case errors.As(err, &fault):
				log.Error("authenticator panicked", zap.Any("fault", fault.Value))
				r.status.Update(Errored(fault.Error()), user)
				return Outcome{Kind: InternalFault, Err: err, Attempts: out.Attempts}
			case err != nil:
				log.Debug("authentication failed", zap.Error(err))
				out.Kind, out.Err = AuthenticationFailed, err
				ev = evAuthFailed
			default:
				ev = evAuthenticated
			}

		case Done:
			r.status.Update(Finished(op.Name), user)
			return Outcome{Kind: Succeeded, Attempts: out.Attempts}

		case Failed:
			r.status.Update(Errored(out.Err.Error()), user)
			if op.OnFailure != nil {
				op.OnFailure(out.Err)
			}
			return out
		}

		next, ok := transitions[state][ev]
		if !ok {
			// Unreachable with the table above.
			return Outcome{Kind: InternalFault, Err: fmt.Errorf("no transition from %s", state), Attempts: out.Attempts}
		}
		state = next
	}
}

// invoke calls fn, converting a panic into a *FaultError.
func invoke(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = &FaultError{Value: v}
		}
	}()
	if fn == nil {
		return &FaultError{Value: "operation has no body"}
	}
	return fn(ctx)
}
