package stackdepth

import (
	"github.com/funvibe/ilstack/internal/cfg"
	"github.com/funvibe/ilstack/internal/metadata"
)

type refKind uint8

const (
	refParam  refKind = iota // read a parameter of some method
	refSlot                  // read a stack slot
	refResult                // read the method result
)

// ref is where a contract operand is actually read from
type ref struct {
	kind  refKind
	param *metadata.Param
	slot  int
	base  int // depth the stack offset of a refSlot is measured from
	old   bool
}

// remapper resolves argument and result loads of one subroutine kind
type remapper interface {
	arg(pc cfg.Point, p *metadata.Param, isOld bool) ref
	result(pc cfg.Point) ref
}

func (d *Decoder) remapper(pc cfg.Point) remapper {
	switch sub := pc.Sub(); {
	case sub.IsRequires():
		return requiresRemap{d}
	case sub.IsEnsuresOrOldValue():
		return ensuresRemap{d}
	case sub.IsInvariant():
		return invariantRemap{d}
	default:
		return plainRemap{}
	}
}

func unresolved(pc cfg.Point) {
	fail("remap", pc, ErrUnresolvedContext)
}

func (d *Decoder) emit(pc cfg.Point, r ref, typ *metadata.Type, address bool) {
	dest := d.push(pc, 0)
	switch r.kind {
	case refParam:
		if address {
			d.t.LoadArgAddress(pc, r.param, r.old, dest)
		} else {
			d.t.LoadArg(pc, r.param, r.old, dest)
		}
	case refSlot:
		offset := r.base - 1 - r.slot
		if address {
			d.t.LoadStackAddress(pc, offset, dest, r.slot, typ, r.old)
		} else {
			d.t.LoadStack(pc, offset, dest, r.slot, r.old)
		}
	case refResult:
		if address {
			d.t.LoadResultAddress(pc, typ, dest, r.slot)
		} else {
			d.t.LoadResult(pc, typ, dest, r.slot)
		}
	}
}

func (d *Decoder) emitArg(pc cfg.Point, r ref, p *metadata.Param, address bool) {
	var typ *metadata.Type
	if p != nil {
		typ = p.Type
	}
	d.emit(pc, r, typ, address)
}

func (d *Decoder) emitResult(pc cfg.Point, typ *metadata.Type, r ref, address bool) {
	if r.kind == refParam {
		unresolved(pc)
	}
	d.emit(pc, r, typ, address)
}

// call is the call site a contract frame refers to
type call struct {
	site  *cfg.CallSite
	depth int // global depth at the call instruction
	argc  int
}

func (c call) argSlot(k int) int { return c.depth - c.argc + k }

func (c call) resultSlot() int { return c.depth - c.argc }

// callAt resolves the call block of frame g. The block precedes the edge for
// after-call tags and follows it otherwise.
func (d *Decoder) callAt(pc cfg.Point, g *cfg.Context) call {
	var b *cfg.Block
	switch g.Tag {
	case cfg.TagBeforeCall, cfg.TagBeforeNewObj, cfg.TagOldManifest:
		b = g.To
	case cfg.TagAfterCall, cfg.TagAfterNewObj:
		b = g.From
	}
	if b == nil || b.Call == nil || b.Count == 0 {
		unresolved(pc)
	}
	return call{
		site:  b.Call,
		depth: d.depth(cfg.At(b, b.Count-1, g.Outer)),
		argc:  metadata.ArgumentCount(d.p.meta, b.Call.Method, b.Call.NewObj),
	}
}

// argIndex is the stack position of p among the operands of site, or -1 for
// the receiver of a constructor invoked by newobj
func (d *Decoder) argIndex(p *metadata.Param, site *cfg.CallSite) int {
	k := d.p.meta.ArgumentIndex(p)
	if !site.NewObj {
		return k
	}
	if isReceiver(d.p.meta, p) {
		return -1
	}
	return k - 1
}

// containing maps p index-for-index onto the method that entered frame g
func (d *Decoder) containing(pc cfg.Point, g *cfg.Context, p *metadata.Param) *metadata.Param {
	meta := d.p.meta
	m := g.From.Sub.Method
	if m == nil {
		unresolved(pc)
	}
	if isReceiver(meta, p) {
		this := meta.This(m)
		if this == nil {
			unresolved(pc)
		}
		return this
	}
	ordinal := meta.ArgumentIndex(p)
	if !meta.IsStatic(meta.DeclaringMethod(p)) {
		ordinal--
	}
	params := meta.Parameters(m)
	if ordinal < 0 || ordinal >= len(params) {
		unresolved(pc)
	}
	return params[ordinal]
}

type plainRemap struct{}

func (plainRemap) arg(_ cfg.Point, p *metadata.Param, isOld bool) ref {
	return ref{kind: refParam, param: p, old: isOld}
}

func (plainRemap) result(pc cfg.Point) ref {
	unresolved(pc)
	return ref{}
}

type requiresRemap struct{ d *Decoder }

func (r requiresRemap) arg(pc cfg.Point, p *metadata.Param, isOld bool) ref {
	g := pc.Ctx.Governing()
	if g == nil {
		return ref{kind: refParam, param: p, old: isOld}
	}
	switch g.Tag {
	case cfg.TagBeforeCall, cfg.TagBeforeNewObj:
		c := r.d.callAt(pc, g)
		k := r.d.argIndex(p, c.site)
		if k < 0 {
			break
		}
		return ref{kind: refSlot, slot: c.argSlot(k), base: r.d.depth(pc)}
	case cfg.TagEntry:
		return ref{kind: refParam, param: r.d.containing(pc, g, p), old: isOld}
	}
	unresolved(pc)
	return ref{}
}

func (requiresRemap) result(pc cfg.Point) ref {
	unresolved(pc)
	return ref{}
}

type ensuresRemap struct{ d *Decoder }

func (r ensuresRemap) arg(pc cfg.Point, p *metadata.Param, isOld bool) ref {
	g := pc.Ctx.Governing()
	if g == nil {
		return ref{kind: refParam, param: p, old: isOld}
	}
	switch g.Tag {
	case cfg.TagEntry, cfg.TagExit:
		return ref{kind: refParam, param: r.d.containing(pc, g, p), old: isOld}
	case cfg.TagOldManifest:
		if g.To.Call == nil {
			return ref{kind: refParam, param: r.d.containing(pc, g, p), old: isOld}
		}
		c := r.d.callAt(pc, g)
		k := r.d.argIndex(p, c.site)
		if k < 0 {
			break
		}
		return ref{kind: refSlot, slot: c.argSlot(k), base: r.d.depth(pc)}
	case cfg.TagAfterCall, cfg.TagAfterNewObj:
		c := r.d.callAt(pc, g)
		k := r.d.argIndex(p, c.site)
		if k < 0 {
			return ref{kind: refSlot, slot: c.resultSlot(), base: r.d.depth(pc)}
		}
		// arguments were consumed by the call; read them in the pre-state
		return ref{kind: refSlot, slot: c.argSlot(k), base: c.depth, old: true}
	}
	unresolved(pc)
	return ref{}
}

func (r ensuresRemap) result(pc cfg.Point) ref {
	g := pc.Ctx.Governing()
	if g == nil {
		unresolved(pc)
	}
	switch g.Tag {
	case cfg.TagExit:
		return ref{kind: refResult, slot: r.d.depth(cfg.End(g.From, g.Outer)) - 1}
	case cfg.TagAfterCall, cfg.TagAfterNewObj:
		c := r.d.callAt(pc, g)
		if !c.site.NewObj && r.d.p.meta.IsVoid(c.site.Method) {
			break
		}
		return ref{kind: refSlot, slot: c.resultSlot(), base: r.d.depth(pc)}
	}
	unresolved(pc)
	return ref{}
}

type invariantRemap struct{ d *Decoder }

func (r invariantRemap) arg(pc cfg.Point, p *metadata.Param, isOld bool) ref {
	meta := r.d.p.meta
	if !isReceiver(meta, p) {
		unresolved(pc)
	}
	g := pc.Ctx.Governing()
	if g == nil {
		return ref{kind: refParam, param: p, old: isOld}
	}
	switch g.Tag {
	case cfg.TagEntry:
		return ref{kind: refParam, param: r.d.containing(pc, g, p), old: true}
	case cfg.TagExit:
		return ref{kind: refParam, param: r.d.containing(pc, g, p), old: false}
	case cfg.TagBeforeCall:
		c := r.d.callAt(pc, g)
		if c.site.NewObj || meta.IsStatic(c.site.Method) {
			break
		}
		return ref{kind: refSlot, slot: c.argSlot(0), base: r.d.depth(pc)}
	case cfg.TagAfterCall:
		c := r.d.callAt(pc, g)
		if c.site.NewObj || meta.IsStatic(c.site.Method) {
			break
		}
		return ref{kind: refSlot, slot: c.argSlot(0), base: c.depth, old: true}
	case cfg.TagAfterNewObj:
		c := r.d.callAt(pc, g)
		return ref{kind: refSlot, slot: c.resultSlot(), base: r.d.depth(pc)}
	}
	unresolved(pc)
	return ref{}
}

func (invariantRemap) result(pc cfg.Point) ref {
	unresolved(pc)
	return ref{}
}
