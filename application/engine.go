// Package application wires the middleware chain around data operations.
package application

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/datakit/domain/cache"
	"github.com/felixgeelhaar/datakit/domain/middleware"
	"github.com/felixgeelhaar/datakit/domain/operation"
	"github.com/felixgeelhaar/datakit/domain/store"
	inframw "github.com/felixgeelhaar/datakit/infrastructure/middleware"
	"github.com/felixgeelhaar/datakit/infrastructure/resilience"
	"github.com/felixgeelhaar/datakit/infrastructure/retry"
)

// Engine builds wrapped operations over one storage backend. The engine
// owns the cross-cutting pieces: the cache store, the resilience guard and
// any extra middleware; each wrapped operation adds its own retry policy
// and TTL on top.
type Engine struct {
	factory store.Factory
	cache   cache.Computer
	guard   *resilience.Guard
	extra   []middleware.Middleware
	logArgs bool
}

// EngineOption configures the engine.
type EngineOption func(*Engine)

// WithCache sets the cache store used by read operations.
func WithCache(c cache.Computer) EngineOption {
	return func(e *Engine) {
		e.cache = c
	}
}

// WithGuard protects every call with the resilience guard.
func WithGuard(g *resilience.Guard) EngineOption {
	return func(e *Engine) {
		e.guard = g
	}
}

// WithMiddleware appends middleware between logging and retrying. It runs
// once per call, outside the retry loop.
func WithMiddleware(mw ...middleware.Middleware) EngineOption {
	return func(e *Engine) {
		e.extra = append(e.extra, mw...)
	}
}

// WithArgLogging logs operation arguments. Off by default since arguments
// may contain sensitive data.
func WithArgLogging() EngineOption {
	return func(e *Engine) {
		e.logArgs = true
	}
}

// NewEngine creates an engine over the given storage backend.
func NewEngine(factory store.Factory, opts ...EngineOption) *Engine {
	e := &Engine{factory: factory}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config describes one wrapped operation.
type Config struct {
	// Name identifies the operation in logs and cache keys.
	Name string

	// TTL is how long a cached result stays valid. Zero disables caching
	// for this operation.
	TTL time.Duration

	// Retry is the retry policy. Nil disables retrying.
	Retry *retry.Policy

	// Mutating marks the operation as a write: it runs inside a
	// transaction and never touches the cache.
	Mutating bool
}

// Operation is a data operation wrapped with the middleware chain.
type Operation struct {
	engine   *Engine
	name     string
	ttl      time.Duration
	mutating bool
	handler  middleware.Handler
}

// Wrap builds the middleware chain around body.
// Order per call: logging, engine extras, retrying, caching, data access.
// A cache hit therefore returns before any handle is acquired, and every
// retry attempt acquires a fresh handle and transaction.
func (e *Engine) Wrap(cfg Config, body operation.Func) *Operation {
	terminal := func(ctx context.Context, execCtx *middleware.ExecutionContext) (any, error) {
		return body(ctx, execCtx.Handle, execCtx.Args)
	}

	var retrier *retry.Retrier
	if cfg.Retry != nil {
		retrier = retry.New(*cfg.Retry)
	}

	chain := []middleware.Middleware{
		inframw.Logging(inframw.LoggingConfig{LogArgs: e.logArgs}),
	}
	chain = append(chain, e.extra...)
	chain = append(chain,
		inframw.Retrying(retrier),
		inframw.Caching(e.cache),
		inframw.DataAccess(e.factory),
	)

	return &Operation{
		engine:   e,
		name:     cfg.Name,
		ttl:      cfg.TTL,
		mutating: cfg.Mutating,
		handler:  middleware.Chain(chain...)(terminal),
	}
}

// Name returns the operation name.
func (o *Operation) Name() string {
	return o.name
}

// Call invokes the operation with the given arguments.
func (o *Operation) Call(ctx context.Context, args map[string]any) (any, error) {
	execCtx := &middleware.ExecutionContext{
		CallID:    uuid.NewString(),
		Operation: o.name,
		Args:      args,
		TTL:       o.ttl,
		Mutating:  o.mutating,
	}

	if o.engine.guard != nil {
		return o.engine.guard.Execute(ctx, func(ctx context.Context) (any, error) {
			return o.handler(ctx, execCtx)
		})
	}
	return o.handler(ctx, execCtx)
}
