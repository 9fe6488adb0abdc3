// Package rpc implements the RPC Dispatcher (C6): outbound invoke
// correlation and inbound Invoke routing, plus the deferred-control-flow
// primitive (Future) that §9/§11.2 of SPEC_FULL.md call for in place of the
// original source's callback chains.
package rpc

import (
	"context"
	"sync"
)

// Future is a single-producer, single-consumer promise: a value-or-error
// that becomes available at some later point. Grounded on SPEC_FULL.md
// §11.2: "a chan futureResult of size 1 plus a sync.Once guarding
// completion". Application hooks and invoke handlers return one of these
// instead of composing callback chains.
type Future struct {
	ch   chan futureResult
	once sync.Once
}

type futureResult struct {
	val interface{}
	err error
}

// NewFuture creates an unresolved Future.
func NewFuture() *Future {
	return &Future{ch: make(chan futureResult, 1)}
}

// Resolve completes the future successfully. Only the first call (Resolve or
// Reject) has any effect.
func (f *Future) Resolve(v interface{}) { f.complete(futureResult{val: v}) }

// Reject completes the future with a failure. Only the first call (Resolve
// or Reject) has any effect.
func (f *Future) Reject(err error) { f.complete(futureResult{err: err}) }

func (f *Future) complete(r futureResult) {
	f.once.Do(func() { f.ch <- r })
}

// Await blocks until the future is resolved, rejected, or ctx is done.
func (f *Future) Await(ctx context.Context) (interface{}, error) {
	select {
	case r := <-f.ch:
		return r.val, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Resolved returns an already-completed Future carrying v, for handlers
// whose result is immediate rather than deferred.
func Resolved(v interface{}) *Future {
	f := NewFuture()
	f.Resolve(v)
	return f
}

// Rejected returns an already-completed Future carrying err.
func Rejected(err error) *Future {
	f := NewFuture()
	f.Reject(err)
	return f
}
