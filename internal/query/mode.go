// Package query decides whether independent reads may run concurrently and
// dispatches them accordingly.
package query

import (
	"context"
	"database/sql"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Mode is how a batch of independent reads is dispatched.
type Mode int32

const (
	Parallel Mode = iota
	Sequential
)

func (m Mode) String() string {
	switch m {
	case Parallel:
		return "parallel"
	case Sequential:
		return "sequential"
	default:
		return "unknown"
	}
}

// DetermineMode returns Sequential when the store can grant at most one
// connection to this process, Parallel otherwise. Concurrent waiters on a
// single-connection pool can deadlock against a transaction that already
// holds that connection.
func DetermineMode(budget int) Mode {
	if budget <= 1 {
		return Sequential
	}
	return Parallel
}

// BudgetFromStats reads the connection budget from pool statistics.
// database/sql reports an unlimited pool as 0, which is not a budget of zero.
func BudgetFromStats(stats sql.DBStats) int {
	if stats.MaxOpenConnections <= 0 {
		return int(^uint(0) >> 1)
	}
	return stats.MaxOpenConnections
}

// Query is one independent read.
type Query[T any] func(ctx context.Context) (T, error)

// RunQueries executes queries under mode and returns their results in input
// order. Sequential mode starts each query only after the previous one has
// returned and stops at the first error. Parallel mode starts all of them at
// once; the first error cancels the context handed to the others.
func RunQueries[T any](ctx context.Context, mode Mode, queries ...Query[T]) ([]T, error) {
	results := make([]T, len(queries))

	if mode == Sequential {
		for i, q := range queries {
			res, err := q(ctx)
			if err != nil {
				return nil, err
			}
			results[i] = res
		}
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, q := range queries {
		g.Go(func() error {
			res, err := q(gctx)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Selector holds the process-wide execution mode. The mode is computed once
// at start-up and only changes through Reload.
type Selector struct {
	mode atomic.Int32
}

// NewSelector computes the mode for budget.
func NewSelector(budget int) *Selector {
	s := &Selector{}
	s.mode.Store(int32(DetermineMode(budget)))
	return s
}

// Mode returns the current execution mode.
func (s *Selector) Mode() Mode {
	return Mode(s.mode.Load())
}

// Reload recomputes the mode after the pool budget has been reconfigured.
func (s *Selector) Reload(budget int) Mode {
	m := DetermineMode(budget)
	s.mode.Store(int32(m))
	return m
}

// RunBatchedReads runs independent reads under the current mode.
func (s *Selector) RunBatchedReads(ctx context.Context, queries ...Query[any]) ([]any, error) {
	return RunQueries(ctx, s.Mode(), queries...)
}
