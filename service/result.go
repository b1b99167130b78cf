package service

// Result carries the value of a tree operation together with the error
// messages recorded when the operation failed. A failed operation leaves
// Value at its zero value.
type Result[T any] struct {
	Value  T
	errors []string
}

func succeeded[T any](value T) Result[T] {
	return Result[T]{Value: value}
}

// HasErrorMessages reports whether the operation failed
func (r Result[T]) HasErrorMessages() bool {
	return len(r.errors) > 0
}

// ErrorMessages returns the recorded messages
func (r Result[T]) ErrorMessages() []string {
	return append([]string(nil), r.errors...)
}
