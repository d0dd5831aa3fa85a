package runner

import (
	"sync"

	"go.uber.org/zap"
)

// Status labels the last thing a run did.
type Status string

const (
	Idle           Status = "idle"
	Authenticating Status = "authenticating"
)

// Running is the status while operation op executes.
func Running(op string) Status { return Status("running:" + op) }

// Finished is the status after op succeeded.
func Finished(op string) Status { return Status("finished:" + op) }

// Errored is the status after a run failed with msg.
func Errored(msg string) Status { return Status("error:" + msg) }

// StatusBoard tracks the global status and the status of each user. The
// global slot reflects whichever run updated it last.
type StatusBoard struct {
	mu     sync.RWMutex
	global Status
	users  map[string]Status
	logger *zap.Logger
}

// NewStatusBoard returns a board with the global status set to Idle.
func NewStatusBoard(logger *zap.Logger) *StatusBoard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatusBoard{
		global: Idle,
		users:  make(map[string]Status),
		logger: logger,
	}
}

// Update sets the global status and, when user is not empty, the user's.
func (b *StatusBoard) Update(status Status, user string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.logger.Debug("updating global status", zap.String("status", string(status)))
	b.global = status
	if user != "" {
		b.logger.Debug("updating user status", zap.String("user", user), zap.String("status", string(status)))
		b.users[user] = status
	}
}

// Global returns the global status.
func (b *StatusBoard) Global() Status {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.global
}

// User returns the status of user, or Idle when user never ran anything.
func (b *StatusBoard) User(user string) Status {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if s, ok := b.users[user]; ok {
		return s
	}
	return Idle
}
