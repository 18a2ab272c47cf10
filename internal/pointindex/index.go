// Package pointindex stores one value per program point of a subroutine.
// Tables are sharded by block id and allocated on first write. Values are
// local to the subroutine, so the context of a point is not part of the key.
package pointindex

import (
	"errors"

	"github.com/funvibe/ilstack/internal/cfg"
)

var (
	// ErrDuplicate is raised when a point is written twice
	ErrDuplicate = errors.New("program point already recorded")
	// ErrNotFound is returned by Get for points that were never recorded
	ErrNotFound = errors.New("program point not recorded")
)

type cell[T any] struct {
	set   bool
	value T
}

// Index maps program points of one subroutine to values of type T.
//
// An Index belongs to the session that swept its subroutine. Point values are
// write-once; the call-on-receiver flags are set in place during that sweep and
// only read afterwards, so the index is not shared or copied between sessions.
type Index[T any] struct {
	blocks     [][]cell[T]
	callOnThis []bool
	size       int
}

// New creates an index for a subroutine with blockCount blocks
func New[T any](blockCount int) *Index[T] {
	return &Index[T]{
		blocks:     make([][]cell[T], blockCount),
		callOnThis: make([]bool, blockCount),
	}
}

func (x *Index[T]) grow(id int) {
	for id >= len(x.blocks) {
		x.blocks = append(x.blocks, nil)
		x.callOnThis = append(x.callOnThis, false)
	}
}

func (x *Index[T]) lookup(pc cfg.Point) *cell[T] {
	id := pc.Block.ID
	if id >= len(x.blocks) || pc.Index < 0 || pc.Index >= len(x.blocks[id]) {
		return nil
	}
	c := &x.blocks[id][pc.Index]
	if !c.set {
		return nil
	}
	return c
}

// Add records v at pc. Points are write-once; a second write panics with
// ErrDuplicate.
func (x *Index[T]) Add(pc cfg.Point, v T) {
	if x.lookup(pc) != nil {
		panic(ErrDuplicate)
	}
	id := pc.Block.ID
	x.grow(id)
	table := x.blocks[id]
	if table == nil {
		// instructions plus the terminal point
		table = make([]cell[T], pc.Block.Count+1)
	}
	for pc.Index >= len(table) {
		table = append(table, cell[T]{})
	}
	table[pc.Index] = cell[T]{set: true, value: v}
	x.blocks[id] = table
	x.size++
}

// TryGet returns the value at pc
func (x *Index[T]) TryGet(pc cfg.Point) (T, bool) {
	if c := x.lookup(pc); c != nil {
		return c.value, true
	}
	var zero T
	return zero, false
}

// Get is TryGet reporting absence as ErrNotFound
func (x *Index[T]) Get(pc cfg.Point) (T, error) {
	v, ok := x.TryGet(pc)
	if !ok {
		return v, ErrNotFound
	}
	return v, nil
}

// Contains reports whether pc was recorded
func (x *Index[T]) Contains(pc cfg.Point) bool {
	return x.lookup(pc) != nil
}

// Len is the number of recorded points
func (x *Index[T]) Len() int { return x.size }

// MarkCallOnThis flags the block of pc as ending in a call on the receiver
func (x *Index[T]) MarkCallOnThis(pc cfg.Point) {
	x.grow(pc.Block.ID)
	x.callOnThis[pc.Block.ID] = true
}

// IsCallOnThis reports whether the block of pc was flagged
func (x *Index[T]) IsCallOnThis(pc cfg.Point) bool {
	id := pc.Block.ID
	return id < len(x.callOnThis) && x.callOnThis[id]
}

// Each visits the recorded points of block id in index order
func (x *Index[T]) Each(id int, fn func(index int, v T)) {
	if id >= len(x.blocks) {
		return
	}
	for i, c := range x.blocks[id] {
		if c.set {
			fn(i, c.value)
		}
	}
}
