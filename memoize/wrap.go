package memoize

import "context"

// The WrapN adapters bind a function to an engine, producing a callable with
// the identical signature that delegates every invocation to that engine.
// Each wrapped function gets exactly one engine, constructed once with New at
// decoration time; the adapters never create engines of their own.

// Wrap0 memoizes a function of no arguments.
func Wrap0[V any](e *Engine[V], fn func(context.Context) (V, error)) func(context.Context) (V, error) {
	return func(ctx context.Context) (V, error) {
		return e.Call(ctx, CallContext{}, fn)
	}
}

// Wrap1 memoizes a function of one argument.
func Wrap1[A, V any](e *Engine[V], fn func(context.Context, A) (V, error)) func(context.Context, A) (V, error) {
	return func(ctx context.Context, a A) (V, error) {
		return e.Call(ctx, Call(a), func(ctx context.Context) (V, error) {
			return fn(ctx, a)
		})
	}
}

// Wrap2 memoizes a function of two arguments.
func Wrap2[A, B, V any](e *Engine[V], fn func(context.Context, A, B) (V, error)) func(context.Context, A, B) (V, error) {
	return func(ctx context.Context, a A, b B) (V, error) {
		return e.Call(ctx, Call(a, b), func(ctx context.Context) (V, error) {
			return fn(ctx, a, b)
		})
	}
}

// Wrap3 memoizes a function of three arguments.
func Wrap3[A, B, C, V any](e *Engine[V], fn func(context.Context, A, B, C) (V, error)) func(context.Context, A, B, C) (V, error) {
	return func(ctx context.Context, a A, b B, c C) (V, error) {
		return e.Call(ctx, Call(a, b, c), func(ctx context.Context) (V, error) {
			return fn(ctx, a, b, c)
		})
	}
}
