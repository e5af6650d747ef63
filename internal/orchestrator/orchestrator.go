package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"leasetoken/internal/metrics"
	"leasetoken/internal/promise"

	"github.com/google/uuid"
)

// Orchestrator serializes every call that touches ledger or marketplace state.
//
// A call runs to completion before the next one starts. A remote call issued
// by a call runs outside that exclusion, so other calls may interleave between
// the step that issued it and the continuation that consumes its result.
type Orchestrator struct {
	mu sync.Mutex
	wg sync.WaitGroup
}

// RemoteCall performs a call to another party. It must settle on its own:
// transport errors, traps and an expired ctx are reported as promise.Failed.
type RemoteCall func(ctx context.Context) promise.Result

// Continuation consumes the outcome of the remote call it was chained to
type Continuation func(ctx context.Context, results []promise.Result)

// Chain is a remote call followed by its continuation
type Chain struct {
	// ID correlates log lines of one chain; generated when empty
	ID string

	// Method names the remote call for logs and metrics
	Method     string
	Call       RemoteCall
	CallBudget time.Duration

	// Name names the continuation for logs and metrics
	Name       string
	Next       Continuation
	NextBudget time.Duration

	// Abort is called with the violation when Next panics with promise.ProtocolViolation
	Abort func(error)
}

// New creates a new Orchestrator
func New() *Orchestrator {
	return &Orchestrator{}
}

// Exec runs fn with exclusive access to state
func (o *Orchestrator) Exec(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	slog.Debug("Orchestrator: Executing call", "call", name)

	if err := fn(ctx); err != nil {
		slog.Debug("Orchestrator: Call rejected", "call", name, "error", err)
		return err
	}
	return nil
}

// Then issues c.Call asynchronously and runs c.Next once it settles.
//
// Neither step inherits cancellation from ctx: once a chain starts it always
// reaches its continuation. Each step gets its own budget.
func (o *Orchestrator) Then(ctx context.Context, c Chain) string {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	base := context.WithoutCancel(ctx)

	o.wg.Add(1)
	metrics.PendingChains.Inc()

	go func() {
		defer o.wg.Done()
		defer metrics.PendingChains.Dec()

		result := o.call(base, c)
		o.resume(base, c, []promise.Result{result})
	}()

	return c.ID
}

// Wait blocks until every chain started with Then has run its continuation
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

func (o *Orchestrator) call(base context.Context, c Chain) promise.Result {
	callCtx, cancel := context.WithTimeout(base, c.CallBudget)
	defer cancel()

	start := time.Now()
	result := c.Call(callCtx)
	if result.Status == promise.NotReady && callCtx.Err() != nil {
		result = promise.Failure(fmt.Errorf("%s: %w", c.Method, callCtx.Err()))
	}
	metrics.RemoteCallDuration.WithLabelValues(c.Method, result.Status.String()).Observe(time.Since(start).Seconds())

	slog.Debug("Orchestrator: Remote call settled",
		"chain_id", c.ID,
		"method", c.Method,
		"status", result.Status.String(),
		"error", result.Err,
	)

	return result
}

func (o *Orchestrator) resume(base context.Context, c Chain, results []promise.Result) {
	o.mu.Lock()
	defer o.mu.Unlock()

	nextCtx, cancel := context.WithTimeout(base, c.NextBudget)
	defer cancel()

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		var violation promise.ProtocolViolation
		err, isErr := r.(error)
		if !isErr || !errors.As(err, &violation) {
			panic(r)
		}

		metrics.ProtocolViolations.Inc()
		slog.Error("Orchestrator: Continuation aborted",
			"chain_id", c.ID,
			"continuation", c.Name,
			"error", violation,
		)
		if c.Abort != nil {
			c.Abort(violation)
		}
	}()

	start := time.Now()
	c.Next(nextCtx, results)
	metrics.ContinuationDuration.WithLabelValues(c.Name).Observe(time.Since(start).Seconds())
}
