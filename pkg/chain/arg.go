package chain

import "sync"

// Arg is a step argument: either a literal or a producer that is called
// when the step runs, so it can see values set by earlier steps.
type Arg[T any] struct {
	lit T
	fn  func() T
}

// V returns a literal argument.
func V[T any](v T) Arg[T] {
	return Arg[T]{lit: v}
}

// F returns a lazily produced argument.
func F[T any](fn func() T) Arg[T] {
	return Arg[T]{fn: fn}
}

// Resolve returns the literal, or calls the producer.
func (a Arg[T]) Resolve() T {
	if a.fn != nil {
		return a.fn()
	}
	return a.lit
}

// IsLazy reports whether the argument is a producer.
func (a Arg[T]) IsLazy() bool {
	return a.fn != nil
}

// Memo returns an argument whose producer runs at most once, for values that
// feed several arguments of the same step.
func Memo[T any](a Arg[T]) Arg[T] {
	if a.fn == nil {
		return a
	}
	var (
		once sync.Once
		v    T
	)
	return F(func() T {
		once.Do(func() { v = a.fn() })
		return v
	})
}

// Map derives an argument from another, lazily when the source is lazy.
func Map[T, U any](a Arg[T], fn func(T) U) Arg[U] {
	if a.fn == nil {
		return V(fn(a.lit))
	}
	return F(func() U { return fn(a.fn()) })
}

// optional resolves the first of opts, or returns the zero value.
func optional[T any](opts []Arg[T]) T {
	if len(opts) == 0 {
		var zero T
		return zero
	}
	return opts[0].Resolve()
}
