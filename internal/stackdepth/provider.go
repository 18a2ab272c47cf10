// Package stackdepth computes the evaluation-stack depth at every program
// point of a subroutine and decodes symbolic instruction traces into traces
// over numbered stack slots, resolving contract subroutines against the
// context they are entered from.
package stackdepth

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/funvibe/ilstack/internal/cfg"
	"github.com/funvibe/ilstack/internal/config"
	"github.com/funvibe/ilstack/internal/il"
	"github.com/funvibe/ilstack/internal/metadata"
	"github.com/funvibe/ilstack/internal/pointindex"
	"github.com/funvibe/ilstack/internal/stack"
)

// Option configures a Provider
type Option func(*Provider)

// WithLogger sets the logger used for sweep diagnostics
func WithLogger(log *zap.Logger) Option {
	return func(p *Provider) {
		if log != nil {
			p.log = log
		}
	}
}

// WithCapacity sets how many bottom stack slots keep their receiver marker
func WithCapacity(n int) Option {
	return func(p *Provider) {
		if n >= 0 {
			p.capacity = n
		}
	}
}

// Provider is one analysis session. Depth tables are computed lazily per
// subroutine and memoized for the lifetime of the session. A Provider is not
// safe for concurrent use; run one per goroutine.
type Provider struct {
	ID uuid.UUID

	code     il.Code
	meta     metadata.Provider
	log      *zap.Logger
	capacity int

	depths map[int]*pointindex.Index[int]
	active map[int]bool

	// edgeWalk is non-zero while a sweep expands edge-subroutine chains
	edgeWalk int
}

var _ cfg.Oracle = (*Provider)(nil)

// New creates a session over code and metadata
func New(code il.Code, meta metadata.Provider, opts ...Option) *Provider {
	p := &Provider{
		ID:       uuid.New(),
		code:     code,
		meta:     meta,
		log:      zap.NewNop(),
		capacity: config.DefaultShapeCapacity,
		depths:   make(map[int]*pointindex.Index[int]),
		active:   make(map[int]bool),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = p.log.With(zap.String("session", p.ID.String()))
	return p
}

// Meta returns the metadata the session was created with
func (p *Provider) Meta() metadata.Provider { return p.meta }

// Code returns the instruction source of the session
func (p *Provider) Code() il.Code { return p.code }

// Depths returns the local depth table of sub, computing it on first use
func (p *Provider) Depths(sub *cfg.Subroutine) *pointindex.Index[int] {
	if idx, ok := p.depths[sub.ID]; ok {
		return idx
	}
	if p.active[sub.ID] {
		fail("depths", cfg.Begin(sub.Entry, nil), ErrRecursiveSubroutine)
	}
	p.active[sub.ID] = true
	defer delete(p.active, sub.ID)

	idx := p.sweep(sub)
	p.depths[sub.ID] = idx
	return idx
}

// LocalDepth is the depth at pc counted from the start of its subroutine
func (p *Provider) LocalDepth(pc cfg.Point) int {
	d, ok := p.Depths(pc.Sub()).TryGet(pc)
	if !ok {
		fail("local depth", pc, pointindex.ErrNotFound)
	}
	return d
}

// GlobalDepth is the depth at pc including, for context-dependent
// subroutines, the depth of the stack the subroutine was entered with.
func (p *Provider) GlobalDepth(pc cfg.Point) int {
	d := p.LocalDepth(pc)
	if pc.Ctx != nil && pc.Sub().HasContextDependentStackDepth() {
		d += p.GlobalDepth(cfg.End(pc.Ctx.From, pc.Ctx.Outer))
	}
	return d
}

// IsCallOnThis reports whether the block of pc ends in a call whose receiver
// is the receiver of the analyzed method. It answers false while a sweep is
// expanding edge chains.
func (p *Provider) IsCallOnThis(pc cfg.Point) bool {
	if p.edgeWalk > 0 {
		return false
	}
	return p.Depths(pc.Sub()).IsCallOnThis(pc)
}

func (p *Provider) sweep(sub *cfg.Subroutine) *pointindex.Index[int] {
	idx := pointindex.New[int](sub.BlockCount())
	starts := make(map[int]*stack.Shape)
	fx := effect{p: p, sub: sub, idx: idx}

	for _, b := range sub.Blocks() {
		shape, ok := starts[b.ID]
		if !ok {
			shape = stack.New(p.capacity)
			if b.CatchHeader {
				shape.Push() // exception object
			}
			starts[b.ID] = shape.Clone()
		} else {
			shape = shape.Clone()
		}

		for i := 0; i < b.Count; i++ {
			pc := cfg.At(b, i, nil)
			idx.Add(pc, shape.Depth())
			fx.apply(pc, shape)
		}
		if end := cfg.End(b, nil); !idx.Contains(end) {
			idx.Add(end, shape.Depth())
		}

		p.propagate(sub, b, shape, starts)
	}

	p.log.Debug("stack depths computed",
		zap.Int("subroutine", sub.ID),
		zap.String("name", sub.String()),
		zap.Stringer("kind", sub.Kind),
		zap.Int("blocks", sub.BlockCount()),
		zap.Int("points", idx.Len()))
	return idx
}

// propagate offers the end shape of b, adjusted by each edge's nested
// subroutine deltas, to every successor. The first offer wins.
func (p *Provider) propagate(sub *cfg.Subroutine, b *cfg.Block, shape *stack.Shape, starts map[int]*stack.Shape) {
	p.edgeWalk++
	defer func() { p.edgeWalk-- }()

	for _, succ := range sub.Successors(b) {
		next := shape.Clone()
		chain, handler := sub.EdgeSubroutines(b, succ, nil, p)
		for _, n := range chain {
			func() {
				defer guard("edge delta", cfg.End(b, nil))
				next.Adjust(p.nestedDelta(n.Sub))
			}()
		}
		if handler {
			p.log.Debug("edge leaves protected region",
				zap.String("from", b.String()), zap.String("to", succ.String()))
		}

		prev, ok := starts[succ.ID]
		if !ok {
			starts[succ.ID] = next
			continue
		}
		if !prev.Equal(next) {
			p.log.Warn("divergent stack shape at block start",
				zap.String("subroutine", sub.String()),
				zap.String("from", b.String()),
				zap.String("block", succ.String()),
				zap.Int("kept", prev.Depth()),
				zap.Int("offered", next.Depth()))
		}
	}
}

// nestedDelta is the net stack effect of running sub on an edge
func (p *Provider) nestedDelta(sub *cfg.Subroutine) int {
	delta, derived := sub.StackDelta()
	if !derived {
		return delta
	}
	return p.LocalDepth(cfg.End(sub.Exit, nil))
}
