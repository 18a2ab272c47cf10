// Package stack tracks the shape of the evaluation stack during a sweep: its
// depth and, for the bottom slots that fit the capacity, whether a slot holds
// the method receiver.
package stack

import (
	"errors"
	"strings"
)

// Slot marks what is known about one stack slot
type Slot uint8

const (
	Unknown  Slot = iota // Nothing tracked
	Receiver             // The receiver of the analyzed method
)

// ErrUnderflow is raised when more slots are popped than the stack holds
var ErrUnderflow = errors.New("stack underflow")

// Shape is a stack of slot markers. Slots at positions beyond the capacity
// are counted in the depth but not retained.
type Shape struct {
	slots []Slot
	depth int
}

// New creates an empty shape retaining up to capacity slots
func New(capacity int) *Shape {
	if capacity < 0 {
		capacity = 0
	}
	return &Shape{slots: make([]Slot, capacity)}
}

// Depth is the number of slots on the stack
func (s *Shape) Depth() int { return s.depth }

// Cap is the number of retained slots
func (s *Shape) Cap() int { return len(s.slots) }

// Push adds an untracked slot
func (s *Shape) Push() { s.push(Unknown) }

// PushThis adds a slot holding the receiver
func (s *Shape) PushThis() { s.push(Receiver) }

func (s *Shape) push(v Slot) {
	if s.depth < len(s.slots) {
		s.slots[s.depth] = v
	}
	s.depth++
}

// Pop removes n slots, clearing the retained ones. Popping more than Depth
// panics with ErrUnderflow.
func (s *Shape) Pop(n int) {
	if n < 0 || n > s.depth {
		panic(ErrUnderflow)
	}
	for i := s.depth - n; i < s.depth && i < len(s.slots); i++ {
		s.slots[i] = Unknown
	}
	s.depth -= n
}

// At returns the slot i positions below the top. Slots outside the retained
// window read as Unknown.
func (s *Shape) At(i int) Slot {
	pos := s.depth - 1 - i
	if i < 0 || pos < 0 || pos >= len(s.slots) {
		return Unknown
	}
	return s.slots[pos]
}

// IsThis reports whether the slot offset positions below the top holds the
// receiver
func (s *Shape) IsThis(offset int) bool {
	return s.At(offset) == Receiver
}

// Adjust pushes delta untracked slots, or pops -delta slots when negative
func (s *Shape) Adjust(delta int) {
	if delta < 0 {
		s.Pop(-delta)
		return
	}
	for range delta {
		s.Push()
	}
}

// Reset empties the stack
func (s *Shape) Reset() {
	s.Pop(s.depth)
}

// Clone returns an independent copy
func (s *Shape) Clone() *Shape {
	c := &Shape{slots: make([]Slot, len(s.slots)), depth: s.depth}
	copy(c.slots, s.slots)
	return c
}

// Equal compares depth and retained slots
func (s *Shape) Equal(o *Shape) bool {
	if s.depth != o.depth {
		return false
	}
	for i := 0; i < s.depth; i++ {
		if s.At(i) != o.At(i) {
			return false
		}
	}
	return true
}

// String renders the stack bottom to top, e.g. "[this ? ?]"
func (s *Shape) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i := s.depth - 1; i >= 0; i-- {
		if i != s.depth-1 {
			sb.WriteByte(' ')
		}
		if s.At(i) == Receiver {
			sb.WriteString("this")
		} else {
			sb.WriteByte('?')
		}
	}
	sb.WriteByte(']')
	return sb.String()
}
