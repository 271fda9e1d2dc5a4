package services

import (
	"context"
	"fmt"
)

// Func adapts a blocking function to suture.Service.
type Func struct {
	name string
	fn   func(ctx context.Context) error
}

// NewFunc wraps fn, which must return once ctx is done.
func NewFunc(name string, fn func(ctx context.Context) error) *Func {
	return &Func{name: name, fn: fn}
}

// Serve implements suture.Service.
func (f *Func) Serve(ctx context.Context) error {
	if err := f.fn(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%s: %w", f.name, err)
	}
	return ctx.Err()
}

func (f *Func) String() string { return f.name }

// Lifecycle adapts a Start/Stop pair to suture.Service. Start must not
// block; Stop runs when the tree shuts down or the service is removed.
type Lifecycle struct {
	name  string
	start func(ctx context.Context) error
	stop  func() error
}

// NewLifecycle wraps a component with separate start and stop calls.
func NewLifecycle(name string, start func(ctx context.Context) error, stop func() error) *Lifecycle {
	return &Lifecycle{name: name, start: start, stop: stop}
}

// Serve implements suture.Service. A failed start is returned so the tree
// retries it with backoff.
func (l *Lifecycle) Serve(ctx context.Context) error {
	if err := l.start(ctx); err != nil {
		return fmt.Errorf("%s: start: %w", l.name, err)
	}
	<-ctx.Done()
	if l.stop != nil {
		if err := l.stop(); err != nil {
			return fmt.Errorf("%s: stop: %w", l.name, err)
		}
	}
	return ctx.Err()
}

func (l *Lifecycle) String() string { return l.name }
