// Package tasmio provides the generic streaming-pipeline-stage
// abstraction named in spec.md's Design Notes ("Polymorphic operators"):
// each stage is polymorphic over `next() -> option<Output>`, represented
// here as a Go generic interface rather than a deep class hierarchy of
// per-output-type operator base classes.
package tasmio

// Stage is one pull-based pipeline stage producing a stream of Output
// values. Next returns ok=false once the stage is exhausted; it must
// return ok=false on every call thereafter (idempotent exhaustion).
type Stage[Output any] interface {
	Next() (out Output, ok bool, err error)
}

// FuncStage adapts a plain closure to Stage, the common case for a stage
// with no internal state beyond what the closure already captures.
type FuncStage[Output any] func() (Output, bool, error)

// Next calls the wrapped function.
func (f FuncStage[Output]) Next() (Output, bool, error) { return f() }

// Map lazily transforms every value a Stage produces.
func Map[In, Out any](s Stage[In], f func(In) (Out, error)) Stage[Out] {
	return FuncStage[Out](func() (Out, bool, error) {
		in, ok, err := s.Next()
		if err != nil || !ok {
			var zero Out
			return zero, ok, err
		}
		out, err := f(in)
		return out, true, err
	})
}

// Collect drains a Stage into a slice. Intended for small, bounded
// streams (tests, single-GOP windows); the pipeline itself never collects
// a full query's output this way.
func Collect[T any](s Stage[T]) ([]T, error) {
	var out []T
	for {
		v, ok, err := s.Next()
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, v)
	}
}

// SliceStage turns a fixed slice into a Stage, useful for tests and for
// FakeDecoder-backed fixtures.
func SliceStage[T any](items []T) Stage[T] {
	i := 0
	return FuncStage[T](func() (T, bool, error) {
		if i >= len(items) {
			var zero T
			return zero, false, nil
		}
		v := items[i]
		i++
		return v, true, nil
	})
}
