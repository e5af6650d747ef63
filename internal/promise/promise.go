// Package promise models the outcome of a remote call and the deferred result
// handed back to whoever started a multi-step operation.
package promise

import (
	"context"
	"fmt"
	"sync"
)

// Status is the settlement state of a remote call
type Status int

const (
	NotReady Status = iota
	Successful
	Failed
)

func (s Status) String() string {
	switch s {
	case NotReady:
		return "not_ready"
	case Successful:
		return "successful"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Result is what a continuation sees of the call it depends on.
// Value holds the raw JSON payload of a successful call.
type Result struct {
	Status Status
	Value  []byte
	Err    error
}

// Success builds a successful result carrying payload
func Success(payload []byte) Result {
	return Result{Status: Successful, Value: payload}
}

// Failure builds a failed result. Timeouts, traps and transport errors all land here.
func Failure(err error) Result {
	return Result{Status: Failed, Err: err}
}

// ProtocolViolation is raised with panic when a continuation runs before its
// dependency settled. It is a scheduling bug, never a business outcome.
type ProtocolViolation struct {
	Continuation string
	Reason       string
}

func (p ProtocolViolation) Error() string {
	return fmt.Sprintf("protocol violation in %s: %s", p.Continuation, p.Reason)
}

// Deferred is a value that becomes known once a chain of calls completes
type Deferred[T any] struct {
	done chan struct{}
	once sync.Once
	val  T
	err  error
}

// NewDeferred returns an unsettled Deferred
func NewDeferred[T any]() *Deferred[T] {
	return &Deferred[T]{done: make(chan struct{})}
}

// Resolve settles the Deferred with v. Later calls are ignored.
func (d *Deferred[T]) Resolve(v T) {
	d.once.Do(func() {
		d.val = v
		close(d.done)
	})
}

// Reject settles the Deferred with err. Later calls are ignored.
func (d *Deferred[T]) Reject(err error) {
	d.once.Do(func() {
		d.err = err
		close(d.done)
	})
}

// Done is closed once the Deferred settles
func (d *Deferred[T]) Done() <-chan struct{} {
	return d.done
}

// Wait blocks until the Deferred settles or ctx is done
func (d *Deferred[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-d.done:
		return d.val, d.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Poll returns the settled value without blocking; ok is false while pending
func (d *Deferred[T]) Poll() (v T, ok bool, err error) {
	select {
	case <-d.done:
		return d.val, true, d.err
	default:
		var zero T
		return zero, false, nil
	}
}
