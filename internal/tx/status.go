package tx

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Status is the handle of one Begin call. Owning statuses hold a connection
// and sit on the stack; participant statuses join an owner and hold nothing.
type Status struct {
	id      string
	def     Definition
	stack   *stack
	owner   *Status // set for participants
	conn    *sqlx.Conn
	tx      *sqlx.Tx
	started time.Time
	cancel  context.CancelFunc

	// guarded by stack.mu
	rollbackOnly bool
	completed    bool
}

// ID identifies the status in logs.
func (s *Status) ID() string {
	return s.id
}

// Definition returns the definition the status was begun with.
func (s *Status) Definition() Definition {
	return s.def
}

// IsNewTransaction reports whether this status owns a physical transaction
// and therefore commits or rolls it back.
func (s *Status) IsNewTransaction() bool {
	return s.owner == nil && s.tx != nil
}

// IsTransactional reports whether work under this status runs inside a
// transaction, owned or joined.
func (s *Status) IsTransactional() bool {
	if s.owner != nil {
		return true
	}
	return s.tx != nil
}

// IsParticipant reports whether the status joined an outer transaction.
func (s *Status) IsParticipant() bool {
	return s.owner != nil
}

// IsRollbackOnly reports whether the transaction may only roll back.
func (s *Status) IsRollbackOnly() bool {
	s.stack.mu.Lock()
	defer s.stack.mu.Unlock()
	if s.owner != nil {
		return s.owner.rollbackOnly
	}
	return s.rollbackOnly
}

// SetRollbackOnly marks the (owning) transaction so that its commit turns
// into a rollback.
func (s *Status) SetRollbackOnly() {
	s.stack.mu.Lock()
	defer s.stack.mu.Unlock()
	if s.owner != nil {
		s.owner.rollbackOnly = true
		return
	}
	s.rollbackOnly = true
}

// IsCompleted reports whether the status has been committed or rolled back.
func (s *Status) IsCompleted() bool {
	s.stack.mu.Lock()
	defer s.stack.mu.Unlock()
	return s.completed
}

// Executor returns what data access under this status should run on: the
// transaction, or the bare connection for non-transactional statuses.
func (s *Status) Executor() Executor {
	if s.owner != nil {
		return s.owner.Executor()
	}
	if s.tx != nil {
		return s.tx
	}
	return s.conn
}

func newStatusID() string {
	return uuid.NewString()
}
