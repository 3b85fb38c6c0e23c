// Package testutil holds helpers shared by tests that drive the store from
// many goroutines.
//
// t.Fatal and t.FailNow call runtime.Goexit, which only ends the calling
// goroutine. Producers started by a test must report failures through
// Group instead.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

// Group runs producer goroutines and reports their errors on the test
// goroutine.
//
//	g := testutil.NewGroup(t, 10*time.Second)
//	for _, c := range chunks {
//	    g.Go(func(ctx context.Context) error {
//	        _, err := svc.Ingest(ctx, c)
//	        return err
//	    })
//	}
//	g.Wait()
type Group struct {
	t      testing.TB
	wg     sync.WaitGroup
	mu     sync.Mutex
	errs   []error
	ctx    context.Context
	cancel context.CancelFunc
}

// NewGroup creates a group whose context expires after timeout.
// A zero timeout never expires.
func NewGroup(t testing.TB, timeout time.Duration) *Group {
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), timeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}
	return &Group{t: t, ctx: ctx, cancel: cancel}
}

// Go runs fn in a new goroutine. A non-nil error is recorded.
func (g *Group) Go(fn func(ctx context.Context) error) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		if err := fn(g.ctx); err != nil {
			g.mu.Lock()
			g.errs = append(g.errs, err)
			g.mu.Unlock()
		}
	}()
}

// Context returns the group context.
func (g *Group) Context() context.Context {
	return g.ctx
}

// Wait blocks until every goroutine returns and fails the test if any
// reported an error.
func (g *Group) Wait() {
	g.t.Helper()
	g.wg.Wait()
	g.cancel()

	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.errs) == 0 {
		return
	}
	for i, err := range g.errs {
		g.t.Errorf("goroutine error [%d]: %v", i+1, err)
	}
	g.t.FailNow()
}

// Eventually polls condition every interval until it holds or timeout
// elapses.
func Eventually(timeout, interval time.Duration, condition func() bool) error {
	deadline := time.Now().Add(timeout)
	for {
		if condition() {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("condition not met within %v", timeout)
		}
		time.Sleep(interval)
	}
}
