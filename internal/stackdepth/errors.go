package stackdepth

import (
	"errors"
	"fmt"

	"github.com/funvibe/ilstack/internal/cfg"
	"github.com/funvibe/ilstack/internal/pointindex"
	"github.com/funvibe/ilstack/internal/stack"
)

var (
	// ErrUnresolvedContext is raised when a contract subroutine is decoded
	// under a context its remapping does not handle
	ErrUnresolvedContext = errors.New("unresolved contract context")

	// ErrRecursiveSubroutine is raised when computing the depths of a
	// subroutine needs the depths of a subroutine whose sweep is in progress
	ErrRecursiveSubroutine = errors.New("recursive subroutine depth")

	// ErrUnknownOpcode is raised for instructions without a stack effect
	ErrUnknownOpcode = errors.New("unknown opcode")
)

// InvariantError is the panic value of a violated analysis invariant
type InvariantError struct {
	Op    string
	Point cfg.Point
	Err   error
}

func (e *InvariantError) Error() string {
	if e.Point.Block == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s at %s: %v", e.Op, e.Point, e.Err)
}

func (e *InvariantError) Unwrap() error {
	return e.Err
}

func fail(op string, pc cfg.Point, err error) {
	panic(&InvariantError{Op: op, Point: pc, Err: err})
}

// guard converts sentinel panics raised below pc into an InvariantError
func guard(op string, pc cfg.Point) {
	r := recover()
	if r == nil {
		return
	}
	if err, ok := r.(error); ok && isSentinel(err) {
		panic(&InvariantError{Op: op, Point: pc, Err: err})
	}
	panic(r)
}

func isSentinel(err error) bool {
	return err == stack.ErrUnderflow || err == pointindex.ErrDuplicate ||
		err == pointindex.ErrNotFound || err == ErrUnknownOpcode
}

// Catch runs fn and returns the invariant violation it panicked with, if any.
// Other panics propagate.
func Catch(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			var ie *InvariantError
			if e, ok := r.(error); ok && errors.As(e, &ie) {
				err = ie
				return
			}
			if e, ok := r.(error); ok && isSentinel(e) {
				err = &InvariantError{Op: "analysis", Err: e}
				return
			}
			panic(r) // Re-panic other errors
		}
	}()
	fn()
	return nil
}
