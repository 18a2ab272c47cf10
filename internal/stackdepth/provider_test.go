package stackdepth

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/funvibe/ilstack/internal/cfg"
	"github.com/funvibe/ilstack/internal/pointindex"
	"github.com/funvibe/ilstack/internal/stack"
)

func TestLocalDepthsOfMethodBody(t *testing.T) {
	fx := load(t, "account.yaml")
	p := session(fx)
	deposit := sub(t, fx, "deposit")

	tests := []struct {
		block string
		index int
		want  int
	}{
		{"entry", 0, 0},
		{"entry", 1, 0},
		{"b1", 0, 0},
		{"b1", 1, 1},
		{"b1", 2, 2},
		{"call", 0, 2},
		{"call", 1, 0},
		{"b2", 0, 0},
		{"b2", 1, 1},
		{"b2", 2, 1},
		{"b2", 3, 1},
		{"exit", 0, 1},
	}
	for _, tt := range tests {
		pc := cfg.At(block(t, deposit, tt.block), tt.index, nil)
		assert.Equal(t, tt.want, p.LocalDepth(pc), "local depth at %s", pc)
		assert.Equal(t, tt.want, p.GlobalDepth(pc), "global depth at %s", pc)
	}
}

func TestEveryPointHasADepth(t *testing.T) {
	fx := load(t, "account.yaml")
	p := session(fx)

	for _, s := range fx.Graph.Subroutines() {
		idx := p.Depths(s)
		points := 0
		for _, b := range s.Blocks() {
			for i := 0; i <= b.Count; i++ {
				assert.True(t, idx.Contains(cfg.At(b, i, nil)), "%s[%d] of %s", b, i, s)
				points++
			}
		}
		assert.Equal(t, points, idx.Len(), s.String())
	}
}

func TestDepthsAreMemoized(t *testing.T) {
	fx := load(t, "account.yaml")
	p := session(fx)
	run := sub(t, fx, "run")

	first := p.Depths(run)
	assert.Same(t, first, p.Depths(run))
}

func TestSessionsAgree(t *testing.T) {
	fx := load(t, "account.yaml")
	a, b := session(fx), session(fx)
	assert.NotEqual(t, a.ID, b.ID)

	for _, s := range fx.Graph.Subroutines() {
		for _, blk := range s.Blocks() {
			for i := 0; i <= blk.Count; i++ {
				pc := cfg.At(blk, i, nil)
				assert.Equal(t, a.LocalDepth(pc), b.LocalDepth(pc), pc.String())
			}
		}
	}
}

func TestGlobalDepthAddsEntryDepth(t *testing.T) {
	fx := load(t, "account.yaml")
	p := session(fx)
	run := sub(t, fx, "run")
	pre := sub(t, fx, "credit_pre")

	ctx := frame(block(t, run, "b1"), block(t, run, "call"), cfg.TagBeforeCall)
	for i, local := range []int{0, 1, 2, 1, 0} {
		pc := cfg.At(pre.Entry, i, ctx)
		assert.Equal(t, local, p.LocalDepth(pc))
		assert.Equal(t, local+3, p.GlobalDepth(pc))
	}

	// local depth ignores the context
	assert.Equal(t, p.LocalDepth(cfg.At(pre.Entry, 2, nil)), p.LocalDepth(cfg.At(pre.Entry, 2, ctx)))
	assert.Equal(t, 2, p.GlobalDepth(cfg.At(pre.Entry, 2, nil)))
}

func TestGlobalDepthOfContextFreeRegions(t *testing.T) {
	fx := load(t, "flow.yaml")
	p := session(fx)
	handle := sub(t, fx, "handle")
	cleanup := sub(t, fx, "cleanup")

	ctx := frame(block(t, handle, "b1"), handle.Exit, cfg.TagFinally)
	pc := cfg.At(cleanup.Entry, 1, ctx)
	assert.Equal(t, 1, p.LocalDepth(pc))
	assert.Equal(t, 1, p.GlobalDepth(pc))
}

func TestNestedGlobalDepth(t *testing.T) {
	fx := load(t, "account.yaml")
	p := session(fx)
	query := sub(t, fx, "query")
	post := sub(t, fx, "get_post")
	inv := sub(t, fx, "account_inv")

	outer := frame(block(t, query, "call"), block(t, query, "b2"), cfg.TagAfterCall)
	inner := outer.Push(cfg.Frame{From: post.Entry, To: post.Exit, Tag: cfg.TagExtra})

	// inside get_post at its end: local 0, entered at depth 1
	assert.Equal(t, 1, p.GlobalDepth(cfg.End(post.Entry, outer)))
	assert.Equal(t, 3, p.GlobalDepth(cfg.At(inv.Entry, 2, inner)))
}

func TestOldValueShiftsSuccessor(t *testing.T) {
	fx := load(t, "account.yaml")
	p := session(fx)
	touch := sub(t, fx, "touch")
	old := sub(t, fx, "touch_old")

	assert.Equal(t, 1, p.LocalDepth(cfg.End(old.Exit, nil)))
	assert.Equal(t, 0, p.LocalDepth(cfg.End(touch.Entry, nil)))
	assert.Equal(t, 1, p.LocalDepth(cfg.Begin(block(t, touch, "b1"), nil)))
	assert.Equal(t, 0, p.LocalDepth(cfg.Begin(touch.Exit, nil)))
}

func TestSimpleDeltaAndCatchHeader(t *testing.T) {
	fx := load(t, "flow.yaml")
	p := session(fx)
	handle := sub(t, fx, "handle")

	assert.Equal(t, 2, p.LocalDepth(cfg.Begin(block(t, handle, "b1"), nil)))
	assert.Equal(t, 1, p.LocalDepth(cfg.Begin(block(t, handle, "h"), nil)))
	assert.Equal(t, 0, p.LocalDepth(cfg.End(block(t, handle, "h"), nil)))
	assert.Equal(t, 0, p.LocalDepth(cfg.Begin(handle.Exit, nil)))
}

func TestFirstOfferWinsAndDivergenceIsLogged(t *testing.T) {
	fx := load(t, "flow.yaml")
	core, logs := observer.New(zapcore.DebugLevel)
	p := session(fx, WithLogger(zap.New(core)))
	merge := sub(t, fx, "merge")

	b3 := block(t, merge, "b3")
	assert.Equal(t, 1, p.LocalDepth(cfg.Begin(b3, nil)))

	warned := logs.FilterMessage("divergent stack shape at block start").All()
	require.Len(t, warned, 1)
	fields := warned[0].ContextMap()
	assert.Equal(t, "b3", fields["block"])
	assert.Equal(t, "b2", fields["from"])
	assert.EqualValues(t, 1, fields["kept"])
	assert.EqualValues(t, 0, fields["offered"])
	assert.Equal(t, p.ID.String(), fields["session"])

	assert.Equal(t, 1, logs.FilterMessage("stack depths computed").Len())
}

func TestFinallyEdgeIsLogged(t *testing.T) {
	fx := load(t, "flow.yaml")
	core, logs := observer.New(zapcore.DebugLevel)
	p := session(fx, WithLogger(zap.New(core)))

	p.Depths(sub(t, fx, "handle"))
	assert.Equal(t, 1, logs.FilterMessage("edge leaves protected region").Len())
}

func TestIsCallOnThis(t *testing.T) {
	fx := load(t, "account.yaml")
	p := session(fx)

	tests := []struct {
		sub, block string
		want       bool
	}{
		{"deposit", "call", true},
		{"run", "call", true},
		{"query", "call", true},
		{"run", "b1", false},
		{"make", "call", false},
	}
	for _, tt := range tests {
		s := sub(t, fx, tt.sub)
		assert.Equal(t, tt.want, p.IsCallOnThis(cfg.Begin(block(t, s, tt.block), nil)), "%s:%s", tt.sub, tt.block)
	}
}

func TestIsCallOnThisNeedsRetainedSlots(t *testing.T) {
	fx := load(t, "account.yaml")
	p := session(fx, WithCapacity(0))
	deposit := sub(t, fx, "deposit")

	assert.False(t, p.IsCallOnThis(cfg.Begin(block(t, deposit, "call"), nil)))
	assert.Equal(t, 2, p.LocalDepth(cfg.Begin(block(t, deposit, "call"), nil)))
}

func TestIsCallOnThisFalseDuringEdgeWalk(t *testing.T) {
	fx := load(t, "account.yaml")
	p := session(fx)
	run := sub(t, fx, "run")
	call := block(t, run, "call")

	require.True(t, p.IsCallOnThis(cfg.Begin(call, nil)))

	p.edgeWalk++
	assert.False(t, p.IsCallOnThis(cfg.Begin(call, nil)))
	chain, _ := run.EdgeSubroutines(call, block(t, run, "b2"), nil, p)
	assert.Empty(t, chain)
	p.edgeWalk--
}

func TestInvariantAppendedAfterCallOnThis(t *testing.T) {
	fx := load(t, "account.yaml")
	p := session(fx)
	run := sub(t, fx, "run")
	inv := sub(t, fx, "account_inv")

	chain, handler := run.EdgeSubroutines(block(t, run, "call"), block(t, run, "b2"), nil, p)
	assert.False(t, handler)
	require.Len(t, chain, 1)
	assert.Equal(t, cfg.Nested{Tag: cfg.TagAfterCall, Sub: inv}, chain[0])

	// already inside the invariant
	ctx := frame(inv.Entry, inv.Exit, cfg.TagExtra)
	chain, _ = run.EdgeSubroutines(block(t, run, "call"), block(t, run, "b2"), ctx, p)
	assert.Empty(t, chain)
}

func TestRecursiveSubroutine(t *testing.T) {
	fx := load(t, "cycle.yaml")
	p := session(fx)

	err := Catch(func() { p.Depths(sub(t, fx, "old_a")) })
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRecursiveSubroutine))

	var ie *InvariantError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "depths", ie.Op)
}

func TestUnderflowReportsPoint(t *testing.T) {
	fx := load(t, "cycle.yaml")
	p := session(fx)
	bad := sub(t, fx, "bad")

	err := Catch(func() { p.Depths(bad) })
	require.Error(t, err)
	assert.ErrorIs(t, err, stack.ErrUnderflow)

	var ie *InvariantError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "stack effect", ie.Op)
	assert.True(t, ie.Point.Equal(cfg.At(block(t, bad, "b1"), 0, nil)))
	assert.Contains(t, err.Error(), "bad:b1[0]")
}

func TestLocalDepthOutsideBlock(t *testing.T) {
	fx := load(t, "account.yaml")
	p := session(fx)
	deposit := sub(t, fx, "deposit")

	err := Catch(func() { p.LocalDepth(cfg.At(deposit.Entry, 7, nil)) })
	assert.ErrorIs(t, err, pointindex.ErrNotFound)
}

func TestCatchRepanicsForeignPanics(t *testing.T) {
	assert.PanicsWithValue(t, "boom", func() {
		_ = Catch(func() { panic("boom") })
	})
	assert.NoError(t, Catch(func() {}))
}
