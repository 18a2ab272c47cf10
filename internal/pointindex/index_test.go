package pointindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/funvibe/ilstack/internal/cfg"
	"github.com/funvibe/ilstack/internal/metadata"
)

func newSub(t *testing.T) (*cfg.Subroutine, *cfg.Block) {
	t.Helper()
	g := cfg.NewGraph(metadata.Model{})
	sub := g.NewSubroutine(cfg.KindMethod, &metadata.Method{Name: "M", Static: true})
	b := sub.NewBlock("b")
	b.Count = 2
	return sub, b
}

func TestAddAndGet(t *testing.T) {
	sub, b := newSub(t)
	x := New[int](sub.BlockCount())

	x.Add(cfg.At(b, 1, nil), 7)
	v, ok := x.TryGet(cfg.At(b, 1, nil))
	require.True(t, ok)
	assert.Equal(t, 7, v)
	assert.True(t, x.Contains(cfg.At(b, 1, nil)))
	assert.False(t, x.Contains(cfg.At(b, 0, nil)))
	assert.Equal(t, 1, x.Len())
}

func TestTerminalPoint(t *testing.T) {
	sub, b := newSub(t)
	x := New[int](sub.BlockCount())
	x.Add(cfg.End(b, nil), 3)
	v, err := x.Get(cfg.At(b, 2, nil))
	require.NoError(t, err)
	assert.Equal(t, 3, v)
}

func TestWriteOnce(t *testing.T) {
	sub, b := newSub(t)
	x := New[int](sub.BlockCount())
	x.Add(cfg.At(b, 0, nil), 1)
	assert.PanicsWithValue(t, ErrDuplicate, func() { x.Add(cfg.At(b, 0, nil), 2) })

	v, _ := x.TryGet(cfg.At(b, 0, nil))
	assert.Equal(t, 1, v, "first value survives")
}

func TestContextIsNotPartOfKey(t *testing.T) {
	sub, b := newSub(t)
	x := New[int](sub.BlockCount())
	x.Add(cfg.At(b, 0, nil), 4)

	ctx := (*cfg.Context)(nil).Push(cfg.Frame{From: sub.Entry, To: b, Tag: cfg.TagEntry})
	v, ok := x.TryGet(cfg.At(b, 0, ctx))
	require.True(t, ok)
	assert.Equal(t, 4, v)
}

func TestMissing(t *testing.T) {
	sub, b := newSub(t)
	x := New[string](sub.BlockCount())

	_, ok := x.TryGet(cfg.At(b, 0, nil))
	assert.False(t, ok)
	_, err := x.Get(cfg.At(b, 0, nil))
	assert.ErrorIs(t, err, ErrNotFound)

	other := sub.NewBlock("late")
	_, err = x.Get(cfg.At(other, 0, nil))
	assert.ErrorIs(t, err, ErrNotFound, "block created after the index")
}

func TestGrowsForLateBlocks(t *testing.T) {
	sub, _ := newSub(t)
	x := New[int](sub.BlockCount())
	late := sub.NewBlock("late")
	x.Add(cfg.At(late, 0, nil), 9)
	assert.True(t, x.Contains(cfg.At(late, 0, nil)))
}

func TestCallOnThis(t *testing.T) {
	sub, b := newSub(t)
	x := New[int](sub.BlockCount())
	assert.False(t, x.IsCallOnThis(cfg.At(b, 0, nil)))
	x.MarkCallOnThis(cfg.At(b, 1, nil))
	assert.True(t, x.IsCallOnThis(cfg.At(b, 0, nil)), "keyed by block")
	assert.False(t, x.IsCallOnThis(cfg.Begin(sub.Entry, nil)))
}

func TestCallOnThisIsPerIndex(t *testing.T) {
	sub, b := newSub(t)
	a := New[int](sub.BlockCount())
	other := New[int](sub.BlockCount())
	a.MarkCallOnThis(cfg.At(b, 0, nil))
	assert.True(t, a.IsCallOnThis(cfg.At(b, 0, nil)))
	assert.False(t, other.IsCallOnThis(cfg.At(b, 0, nil)))
}

func TestEach(t *testing.T) {
	sub, b := newSub(t)
	x := New[int](sub.BlockCount())
	x.Add(cfg.End(b, nil), 30)
	x.Add(cfg.At(b, 0, nil), 10)

	var got []int
	x.Each(b.ID, func(i int, v int) { got = append(got, i, v) })
	assert.Equal(t, []int{0, 10, 2, 30}, got)
}
