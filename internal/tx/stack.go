package tx

import (
	"context"
	"sync"
)

// stack is the LIFO of owning statuses for one logical task. The mutex only
// keeps memory access safe; a stack is not meant to be shared between
// concurrently running tasks.
type stack struct {
	mu    sync.Mutex
	items []*Status
}

type stackKey struct{}

func stackFrom(ctx context.Context) *stack {
	st, _ := ctx.Value(stackKey{}).(*stack)
	return st
}

// withStack returns ctx carrying a stack, attaching a new one if needed.
func withStack(ctx context.Context) (context.Context, *stack) {
	if st := stackFrom(ctx); st != nil {
		return ctx, st
	}
	st := &stack{}
	return context.WithValue(ctx, stackKey{}, st), st
}

// caller holds mu
func (st *stack) top() *Status {
	if len(st.items) == 0 {
		return nil
	}
	return st.items[len(st.items)-1]
}

// caller holds mu
func (st *stack) push(s *Status) {
	st.items = append(st.items, s)
}

// pop removes s if it is the top. Caller holds mu.
func (st *stack) pop(s *Status) bool {
	if st.top() != s {
		return false
	}
	st.items[len(st.items)-1] = nil
	st.items = st.items[:len(st.items)-1]
	return true
}

// depth returns the number of owning statuses. Caller holds mu.
func (st *stack) depth() int {
	return len(st.items)
}

// active reports whether the top holds a live transaction. Caller holds mu.
func (st *stack) active() *Status {
	s := st.top()
	if s == nil || s.completed || s.tx == nil {
		return nil
	}
	return s
}

// Current returns the status on top of the stack carried by ctx, or nil.
func Current(ctx context.Context) *Status {
	st := stackFrom(ctx)
	if st == nil {
		return nil
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	s := st.top()
	if s == nil || s.completed {
		return nil
	}
	return s
}

// InTransaction reports whether ctx carries an active transaction.
func InTransaction(ctx context.Context) bool {
	st := stackFrom(ctx)
	if st == nil {
		return false
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.active() != nil
}

// Depth returns how many owning statuses are stacked in ctx.
func Depth(ctx context.Context) int {
	st := stackFrom(ctx)
	if st == nil {
		return 0
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.depth()
}

// Detach returns a context without the transaction stack, for work handed
// to another goroutine. Values and cancellation of ctx are kept.
func Detach(ctx context.Context) context.Context {
	if stackFrom(ctx) == nil {
		return ctx
	}
	return context.WithValue(ctx, stackKey{}, (*stack)(nil))
}
