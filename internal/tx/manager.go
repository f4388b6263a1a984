package tx

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/xraph/anvil/internal/errors"
	"github.com/xraph/anvil/internal/logger"
)

// ErrUnexpectedRollback is the cause of the error returned when an owner is
// committed after a participant marked it rollback-only.
var ErrUnexpectedRollback = stderrors.New("transaction rolled back because it was marked rollback-only")

const (
	modeNew            = "new"
	modeJoined         = "joined"
	modeNonTransaction = "non_transactional"

	outcomeCommitted  = "committed"
	outcomeRolledBack = "rolled_back"
	outcomeReleased   = "released"
	outcomeFailed     = "failed"
)

// TxFunc is a unit of work run by Execute. Its context carries the status.
type TxFunc func(ctx context.Context) error

// Stats is a snapshot of manager counters.
type Stats struct {
	Active     int64
	Begun      int64
	Joined     int64
	Committed  int64
	RolledBack int64
	Panics     int64
}

// Manager coordinates statuses over one DataSource.
type Manager struct {
	source         DataSource
	logger         logger.Logger
	metrics        *Metrics
	acquireTimeout time.Duration
	defaultTimeout time.Duration

	active     atomic.Int64
	begun      atomic.Int64
	joined     atomic.Int64
	committed  atomic.Int64
	rolledBack atomic.Int64
	panics     atomic.Int64
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the manager logger.
func WithLogger(l logger.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithMetrics records activity to m.
func WithMetrics(metrics *Metrics) Option {
	return func(m *Manager) { m.metrics = metrics }
}

// WithAcquireTimeout bounds connection acquisition. Zero waits as long as
// the caller's context allows.
func WithAcquireTimeout(d time.Duration) Option {
	return func(m *Manager) { m.acquireTimeout = d }
}

// WithDefaultTimeout applies to new transactions whose definition has no
// timeout.
func WithDefaultTimeout(d time.Duration) Option {
	return func(m *Manager) { m.defaultTimeout = d }
}

// NewManager creates a manager over source.
func NewManager(source DataSource, opts ...Option) *Manager {
	m := &Manager{
		source: source,
		logger: logger.NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.Named("tx")
	return m
}

// Begin starts, joins or suspends according to def.Propagation. The
// returned context carries the stack and must be used for work under the
// status and for nested Begin calls.
func (m *Manager) Begin(ctx context.Context, def Definition) (context.Context, *Status, error) {
	ctx, st := withStack(ctx)

	st.mu.Lock()
	current := st.active()
	st.mu.Unlock()

	switch def.Propagation {
	case Required:
		if current != nil {
			return ctx, m.join(st, current, def), nil
		}
		return m.startTransaction(ctx, st, def)

	case RequiresNew:
		return m.startTransaction(ctx, st, def)

	case Supports:
		if current != nil {
			return ctx, m.join(st, current, def), nil
		}
		return m.startNonTransactional(ctx, st, def)

	case NotSupported:
		return m.startNonTransactional(ctx, st, def)

	case Never:
		if current != nil {
			return ctx, nil, errors.ErrTransactionState("existing transaction found for propagation NEVER")
		}
		return m.startNonTransactional(ctx, st, def)

	case Mandatory:
		if current == nil {
			return ctx, nil, errors.ErrTransactionState("no existing transaction found for propagation MANDATORY")
		}
		return ctx, m.join(st, current, def), nil

	default:
		return ctx, nil, errors.ErrTransactionState(fmt.Sprintf("unsupported propagation %s", def.Propagation))
	}
}

func (m *Manager) join(st *stack, owner *Status, def Definition) *Status {
	s := &Status{
		id:      newStatusID(),
		def:     def,
		stack:   st,
		owner:   owner,
		started: time.Now(),
	}
	m.joined.Add(1)
	m.metrics.recordBegin(def.Propagation, modeJoined)
	m.logger.Debug("joined transaction",
		logger.TxID(owner.id),
		logger.String("participant", s.id),
		logger.Stringer("propagation", def.Propagation),
	)
	return s
}

func (m *Manager) startTransaction(ctx context.Context, st *stack, def Definition) (context.Context, *Status, error) {
	conn, err := m.acquire(ctx)
	if err != nil {
		return ctx, nil, err
	}

	txCtx, cancel := ctx, context.CancelFunc(nil)
	timeout := def.Timeout
	if timeout == 0 {
		timeout = m.defaultTimeout
	}
	if timeout > 0 {
		txCtx, cancel = context.WithTimeout(ctx, timeout)
	}

	sqlTx, err := conn.BeginTxx(txCtx, def.txOptions())
	if err != nil {
		if cancel != nil {
			cancel()
		}
		m.release(conn, "")
		return ctx, nil, fmt.Errorf("begin transaction: %w", err)
	}

	s := &Status{
		id:      newStatusID(),
		def:     def,
		stack:   st,
		conn:    conn,
		tx:      sqlTx,
		started: time.Now(),
		cancel:  cancel,
	}
	m.push(st, s, modeNew)
	return txCtx, s, nil
}

func (m *Manager) startNonTransactional(ctx context.Context, st *stack, def Definition) (context.Context, *Status, error) {
	conn, err := m.acquire(ctx)
	if err != nil {
		return ctx, nil, err
	}

	s := &Status{
		id:      newStatusID(),
		def:     def,
		stack:   st,
		conn:    conn,
		started: time.Now(),
	}
	m.push(st, s, modeNonTransaction)
	return ctx, s, nil
}

func (m *Manager) acquire(ctx context.Context) (*sqlx.Conn, error) {
	if m.source == nil {
		return nil, errors.ErrConfigError("transaction manager has no data source", nil)
	}

	acquireCtx := ctx
	if m.acquireTimeout > 0 {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(ctx, m.acquireTimeout)
		defer cancel()
	}

	conn, err := m.source.Connx(acquireCtx)
	if err != nil {
		m.logger.Error("connection acquisition failed", logger.Error(err))
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	return conn, nil
}

func (m *Manager) push(st *stack, s *Status, mode string) {
	st.mu.Lock()
	st.push(s)
	depth := st.depth()
	st.mu.Unlock()

	m.active.Add(1)
	m.begun.Add(1)
	m.metrics.recordBegin(s.def.Propagation, mode)
	m.logger.Debug("status begun",
		logger.TxID(s.id),
		logger.String("mode", mode),
		logger.Stringer("definition", s.def),
		logger.Depth(depth),
	)
}

// Commit finishes s successfully. Nil, completed and participant statuses
// need no I/O. If a participant marked the owner rollback-only, the owner is
// rolled back and a TransactionState error wrapping ErrUnexpectedRollback is
// returned. Finalizing a status that is not on top of its stack is logged
// and ignored.
func (m *Manager) Commit(s *Status) error {
	if s == nil {
		return nil
	}

	st := s.stack
	st.mu.Lock()
	if s.completed {
		st.mu.Unlock()
		return nil
	}
	if s.owner != nil {
		s.completed = true
		st.mu.Unlock()
		return nil
	}
	if st.top() != s {
		st.mu.Unlock()
		m.logger.Warn("commit of status that is not the current transaction ignored",
			logger.TxID(s.id))
		return nil
	}
	rollbackOnly := s.rollbackOnly
	st.mu.Unlock()

	var (
		err     error
		outcome = outcomeReleased
	)
	if s.tx != nil {
		if rollbackOnly {
			outcome = outcomeRolledBack
			if rbErr := s.tx.Rollback(); rbErr != nil && !stderrors.Is(rbErr, sql.ErrTxDone) {
				err = fmt.Errorf("rollback: %w", rbErr)
				outcome = outcomeFailed
			} else {
				unexpected := errors.ErrTransactionState("transaction silently rolled back because it has been marked as rollback-only")
				unexpected.Cause = ErrUnexpectedRollback
				err = unexpected
			}
			m.rolledBack.Add(1)
		} else {
			outcome = outcomeCommitted
			if cErr := s.tx.Commit(); cErr != nil {
				err = fmt.Errorf("commit: %w", cErr)
				outcome = outcomeFailed
			} else {
				m.committed.Add(1)
			}
		}
	}

	if err != nil {
		m.logger.Error("commit failed", logger.TxID(s.id), logger.Error(err))
	}
	if relErr := m.finish(s, outcome); relErr != nil && err == nil {
		err = relErr
	}
	return err
}

// Rollback finishes s unsuccessfully. A participant marks its owner
// rollback-only and completes without I/O.
func (m *Manager) Rollback(s *Status) error {
	if s == nil {
		return nil
	}

	st := s.stack
	st.mu.Lock()
	if s.completed {
		st.mu.Unlock()
		return nil
	}
	if s.owner != nil {
		s.owner.rollbackOnly = true
		s.completed = true
		st.mu.Unlock()
		m.logger.Debug("participant marked transaction rollback-only",
			logger.TxID(s.owner.id),
			logger.String("participant", s.id),
		)
		return nil
	}
	if st.top() != s {
		st.mu.Unlock()
		m.logger.Warn("rollback of status that is not the current transaction ignored",
			logger.TxID(s.id))
		return nil
	}
	st.mu.Unlock()

	var (
		err     error
		outcome = outcomeReleased
	)
	if s.tx != nil {
		outcome = outcomeRolledBack
		if rbErr := s.tx.Rollback(); rbErr != nil && !stderrors.Is(rbErr, sql.ErrTxDone) {
			err = fmt.Errorf("rollback: %w", rbErr)
			outcome = outcomeFailed
			m.logger.Error("rollback failed", logger.TxID(s.id), logger.Error(err))
		} else {
			m.rolledBack.Add(1)
		}
	}

	if relErr := m.finish(s, outcome); relErr != nil && err == nil {
		err = relErr
	}
	return err
}

// finish completes an owning status, releases its connection and pops it.
func (m *Manager) finish(s *Status, outcome string) error {
	st := s.stack
	st.mu.Lock()
	s.completed = true
	st.pop(s)
	st.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	m.active.Add(-1)
	m.metrics.recordFinish(outcome, time.Since(s.started))
	m.logger.Debug("status finished",
		logger.TxID(s.id),
		logger.String("outcome", outcome),
		logger.Duration("elapsed", time.Since(s.started)),
	)

	return m.release(s.conn, s.id)
}

func (m *Manager) release(conn *sqlx.Conn, id string) error {
	if conn == nil {
		return nil
	}
	if err := conn.Close(); err != nil && !stderrors.Is(err, sql.ErrConnDone) {
		m.logger.Warn("failed to release connection", logger.TxID(id), logger.Error(err))
		return fmt.Errorf("release connection: %w", err)
	}
	return nil
}

// Execute runs fn under def: begin, then commit on success. A failure rolls
// back when def.ShouldRollback allows it and commits otherwise; either way
// fn's error is returned unchanged. A panic rolls back and re-panics.
func (m *Manager) Execute(ctx context.Context, def Definition, fn TxFunc) (err error) {
	txCtx, status, err := m.Begin(ctx, def)
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			m.panics.Add(1)
			if rbErr := m.Rollback(status); rbErr != nil {
				m.logger.Error("rollback after panic failed", logger.TxID(status.id), logger.Error(rbErr))
			}
			panic(r)
		}
	}()

	if err := fn(txCtx); err != nil {
		_ = m.complete(status, err)
		return err
	}

	return m.Commit(status)
}

// complete finishes a status whose work failed and returns the
// finalization error, if any. The failure itself stays with the caller.
func (m *Manager) complete(s *Status, cause error) error {
	var finErr error
	if s.def.ShouldRollback(cause) {
		finErr = m.Rollback(s)
	} else {
		finErr = m.Commit(s)
	}
	if finErr != nil {
		m.logger.Error("transaction finalization after failure failed",
			logger.TxID(s.id),
			logger.Error(finErr),
			logger.String("cause", cause.Error()),
		)
	}
	return finErr
}

// Finish is complete for callers driving Begin themselves: nil commits,
// an error is handled by the definition's rollback rules. When finishing
// after a failure also fails, the result joins cause and the finalization
// error; a clean finish after a failure returns nil.
func (m *Manager) Finish(s *Status, cause error) error {
	if cause == nil {
		return m.Commit(s)
	}
	if finErr := m.complete(s, cause); finErr != nil {
		return stderrors.Join(cause, finErr)
	}
	return nil
}

// RecordPanic counts a panic observed around a status.
func (m *Manager) RecordPanic() {
	m.panics.Add(1)
}

// Stats returns a snapshot of the manager counters.
func (m *Manager) Stats() Stats {
	return Stats{
		Active:     m.active.Load(),
		Begun:      m.begun.Load(),
		Joined:     m.joined.Load(),
		Committed:  m.committed.Load(),
		RolledBack: m.rolledBack.Load(),
		Panics:     m.panics.Load(),
	}
}
