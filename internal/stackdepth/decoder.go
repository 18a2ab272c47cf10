package stackdepth

import (
	"github.com/funvibe/ilstack/internal/cfg"
	"github.com/funvibe/ilstack/internal/il"
	"github.com/funvibe/ilstack/internal/metadata"
)

// Decoder rewrites the symbolic trace of a program point into a concrete one
// whose operands are global stack slot numbers. Contract subroutines are
// resolved against the context of the point.
type Decoder struct {
	p *Provider
	t il.Visitor[int, il.Run]
}

var _ il.Visitor[il.Sym, il.Sym] = (*Decoder)(nil)

// NewDecoder creates a decoder reading depths from p
func NewDecoder(p *Provider) *Decoder {
	return &Decoder{p: p}
}

// Decode forwards the instruction at pc to t. Terminal points decode to
// nothing, except the exit of a root method which decodes to its return.
func (d *Decoder) Decode(pc cfg.Point, t il.Visitor[int, il.Run]) bool {
	defer guard("decode", pc)

	d.t = t
	if pc.IsEnd() {
		return d.terminal(pc)
	}
	return il.Decode(d.p.code, pc, d)
}

func (d *Decoder) terminal(pc cfg.Point) bool {
	sub := pc.Sub()
	if pc.Ctx != nil || !sub.IsMethod() || pc.Block != sub.Exit {
		return false
	}
	if sub.HasReturnValue() {
		d.t.Return(pc, d.depth(pc)-1)
	} else {
		d.t.Nop(pc)
	}
	return true
}

func (d *Decoder) depth(pc cfg.Point) int {
	return d.p.GlobalDepth(pc)
}

// push is the slot written by an instruction that pops k operands
func (d *Decoder) push(pc cfg.Point, k int) int {
	return d.depth(pc) - k
}

// pop is the slot of the j-th operand from the top
func (d *Decoder) pop(pc cfg.Point, j int) int {
	return d.depth(pc) - 1 - j
}

func (d *Decoder) Nop(pc cfg.Point) { d.t.Nop(pc) }

func (d *Decoder) Pop(pc cfg.Point, _ il.Sym) { d.t.Pop(pc, d.pop(pc, 0)) }

func (d *Decoder) Dup(pc cfg.Point, _, _ il.Sym) {
	d.t.Dup(pc, d.push(pc, 0), d.pop(pc, 0))
}

func (d *Decoder) Unary(pc cfg.Point, op il.UnaryOp, overflow, unsigned bool, _, _ il.Sym) {
	d.t.Unary(pc, op, overflow, unsigned, d.push(pc, 1), d.pop(pc, 0))
}

func (d *Decoder) Binary(pc cfg.Point, op il.BinaryOp, overflow, unsigned bool, _, _, _ il.Sym) {
	d.t.Binary(pc, op, overflow, unsigned, d.push(pc, 2), d.pop(pc, 1), d.pop(pc, 0))
}

func (d *Decoder) Branch(pc cfg.Point, target *cfg.Block) { d.t.Branch(pc, target) }

func (d *Decoder) BranchCond(pc cfg.Point, target *cfg.Block, cond il.BinaryOp, unsigned bool, _, _ il.Sym) {
	d.t.BranchCond(pc, target, cond, unsigned, d.pop(pc, 1), d.pop(pc, 0))
}

func (d *Decoder) BranchTrue(pc cfg.Point, target *cfg.Block, _ il.Sym) {
	d.t.BranchTrue(pc, target, d.pop(pc, 0))
}

func (d *Decoder) BranchFalse(pc cfg.Point, target *cfg.Block, _ il.Sym) {
	d.t.BranchFalse(pc, target, d.pop(pc, 0))
}

func (d *Decoder) Switch(pc cfg.Point, targets []*cfg.Block, _ il.Sym) {
	d.t.Switch(pc, targets, d.pop(pc, 0))
}

func (d *Decoder) Break(pc cfg.Point) { d.t.Break(pc) }

// Return in a method body only ends the block; the value stays on the stack
// and the return itself is decoded at the exit terminal.
func (d *Decoder) Return(pc cfg.Point, _ il.Sym) { d.t.Nop(pc) }

func (d *Decoder) Jmp(pc cfg.Point, method *metadata.Method) { d.t.Jmp(pc, method) }

func (d *Decoder) Throw(pc cfg.Point, _ il.Sym) { d.t.Throw(pc, d.pop(pc, 0)) }

func (d *Decoder) Rethrow(pc cfg.Point) { d.t.Rethrow(pc) }

func (d *Decoder) EndFilter(pc cfg.Point, _ il.Sym) { d.t.EndFilter(pc, d.pop(pc, 0)) }

func (d *Decoder) EndFinally(pc cfg.Point) { d.t.EndFinally(pc) }

func (d *Decoder) args(pc cfg.Point, argc, above int) il.Run {
	return il.Run{Start: d.depth(pc) - above - argc, Count: argc}
}

func (d *Decoder) Call(pc cfg.Point, method *metadata.Method, tail, virtual bool, _ il.Sym, _ il.Sym) {
	argc := metadata.ArgumentCount(d.p.meta, method, false)
	d.t.Call(pc, method, tail, virtual, d.push(pc, argc), d.args(pc, argc, 0))
}

func (d *Decoder) Calli(pc cfg.Point, sig *metadata.Signature, tail bool, _, _ il.Sym, _ il.Sym) {
	argc := indirectArgs(sig)
	d.t.Calli(pc, sig, tail, d.push(pc, argc+1), d.pop(pc, 0), d.args(pc, argc, 1))
}

func (d *Decoder) ConstrainedCallvirt(pc cfg.Point, constraint *metadata.Type, method *metadata.Method, tail bool, _ il.Sym, _ il.Sym) {
	argc := metadata.ArgumentCount(d.p.meta, method, false)
	d.t.ConstrainedCallvirt(pc, constraint, method, tail, d.push(pc, argc), d.args(pc, argc, 0))
}

func (d *Decoder) NewObj(pc cfg.Point, ctor *metadata.Method, _ il.Sym, _ il.Sym) {
	argc := metadata.ArgumentCount(d.p.meta, ctor, true)
	d.t.NewObj(pc, ctor, d.push(pc, argc), d.args(pc, argc, 0))
}

func (d *Decoder) NewArray(pc cfg.Point, typ *metadata.Type, _ il.Sym, _ il.Sym) {
	in, _ := d.p.code.At(pc)
	dims := rank(in)
	d.t.NewArray(pc, typ, d.push(pc, dims), d.args(pc, dims, 0))
}

func (d *Decoder) CopyBlock(pc cfg.Point, _, _, _ il.Sym) {
	d.t.CopyBlock(pc, d.pop(pc, 2), d.pop(pc, 1), d.pop(pc, 0))
}

func (d *Decoder) CopyObj(pc cfg.Point, typ *metadata.Type, _, _ il.Sym) {
	d.t.CopyObj(pc, typ, d.pop(pc, 1), d.pop(pc, 0))
}

func (d *Decoder) InitBlock(pc cfg.Point, _, _, _ il.Sym) {
	d.t.InitBlock(pc, d.pop(pc, 2), d.pop(pc, 1), d.pop(pc, 0))
}

func (d *Decoder) InitObj(pc cfg.Point, typ *metadata.Type, _ il.Sym) {
	d.t.InitObj(pc, typ, d.pop(pc, 0))
}

func (d *Decoder) LoadArg(pc cfg.Point, p *metadata.Param, isOld bool, _ il.Sym) {
	d.emitArg(pc, d.remapper(pc).arg(pc, p, isOld), p, false)
}

func (d *Decoder) LoadArgAddress(pc cfg.Point, p *metadata.Param, isOld bool, _ il.Sym) {
	d.emitArg(pc, d.remapper(pc).arg(pc, p, isOld), p, true)
}

func (d *Decoder) LoadLocal(pc cfg.Point, local string, _ il.Sym) {
	d.t.LoadLocal(pc, local, d.push(pc, 0))
}

func (d *Decoder) LoadLocalAddress(pc cfg.Point, local string, _ il.Sym) {
	d.t.LoadLocalAddress(pc, local, d.push(pc, 0))
}

func (d *Decoder) LoadConst(pc cfg.Point, typ *metadata.Type, value any, _ il.Sym) {
	d.t.LoadConst(pc, typ, value, d.push(pc, 0))
}

func (d *Decoder) LoadNull(pc cfg.Point, _ il.Sym) { d.t.LoadNull(pc, d.push(pc, 0)) }

func (d *Decoder) LoadField(pc cfg.Point, f *metadata.Field, _, _ il.Sym) {
	d.t.LoadField(pc, f, d.push(pc, 1), d.pop(pc, 0))
}

func (d *Decoder) LoadFieldAddress(pc cfg.Point, f *metadata.Field, _, _ il.Sym) {
	d.t.LoadFieldAddress(pc, f, d.push(pc, 1), d.pop(pc, 0))
}

func (d *Decoder) LoadStaticField(pc cfg.Point, f *metadata.Field, _ il.Sym) {
	d.t.LoadStaticField(pc, f, d.push(pc, 0))
}

func (d *Decoder) LoadStaticFieldAddress(pc cfg.Point, f *metadata.Field, _ il.Sym) {
	d.t.LoadStaticFieldAddress(pc, f, d.push(pc, 0))
}

func (d *Decoder) LoadElement(pc cfg.Point, typ *metadata.Type, _, _, _ il.Sym) {
	d.t.LoadElement(pc, typ, d.push(pc, 2), d.pop(pc, 1), d.pop(pc, 0))
}

func (d *Decoder) LoadElementAddress(pc cfg.Point, typ *metadata.Type, _, _, _ il.Sym) {
	d.t.LoadElementAddress(pc, typ, d.push(pc, 2), d.pop(pc, 1), d.pop(pc, 0))
}

func (d *Decoder) LoadLength(pc cfg.Point, _, _ il.Sym) {
	d.t.LoadLength(pc, d.push(pc, 1), d.pop(pc, 0))
}

func (d *Decoder) LoadIndirect(pc cfg.Point, typ *metadata.Type, _, _ il.Sym) {
	d.t.LoadIndirect(pc, typ, d.push(pc, 1), d.pop(pc, 0))
}

func (d *Decoder) LoadToken(pc cfg.Point, token any, _ il.Sym) {
	d.t.LoadToken(pc, token, d.push(pc, 0))
}

func (d *Decoder) LoadFunction(pc cfg.Point, method *metadata.Method, _ il.Sym) {
	d.t.LoadFunction(pc, method, d.push(pc, 0))
}

func (d *Decoder) LoadVirtualFunction(pc cfg.Point, method *metadata.Method, _, _ il.Sym) {
	d.t.LoadVirtualFunction(pc, method, d.push(pc, 1), d.pop(pc, 0))
}

func (d *Decoder) Arglist(pc cfg.Point, _ il.Sym) { d.t.Arglist(pc, d.push(pc, 0)) }

func (d *Decoder) Sizeof(pc cfg.Point, typ *metadata.Type, _ il.Sym) {
	d.t.Sizeof(pc, typ, d.push(pc, 0))
}

func (d *Decoder) LocalAlloc(pc cfg.Point, _, _ il.Sym) {
	d.t.LocalAlloc(pc, d.push(pc, 1), d.pop(pc, 0))
}

func (d *Decoder) StoreArg(pc cfg.Point, p *metadata.Param, _ il.Sym) {
	d.t.StoreArg(pc, p, d.pop(pc, 0))
}

func (d *Decoder) StoreLocal(pc cfg.Point, local string, _ il.Sym) {
	d.t.StoreLocal(pc, local, d.pop(pc, 0))
}

func (d *Decoder) StoreField(pc cfg.Point, f *metadata.Field, _, _ il.Sym) {
	d.t.StoreField(pc, f, d.pop(pc, 1), d.pop(pc, 0))
}

func (d *Decoder) StoreStaticField(pc cfg.Point, f *metadata.Field, _ il.Sym) {
	d.t.StoreStaticField(pc, f, d.pop(pc, 0))
}

func (d *Decoder) StoreElement(pc cfg.Point, typ *metadata.Type, _, _, _ il.Sym) {
	d.t.StoreElement(pc, typ, d.pop(pc, 2), d.pop(pc, 1), d.pop(pc, 0))
}

func (d *Decoder) StoreIndirect(pc cfg.Point, typ *metadata.Type, _, _ il.Sym) {
	d.t.StoreIndirect(pc, typ, d.pop(pc, 1), d.pop(pc, 0))
}

// Box is dropped when the specialized type is already a reference type
func (d *Decoder) Box(pc cfg.Point, typ *metadata.Type, _, _ il.Sym) {
	meta := d.p.meta
	typ = meta.Specialize(typ, pc.Sub().Method)
	if meta.IsReferenceType(typ) {
		d.t.Nop(pc)
		return
	}
	d.t.Box(pc, typ, d.push(pc, 1), d.pop(pc, 0))
}

func (d *Decoder) Unbox(pc cfg.Point, typ *metadata.Type, anyValue bool, _, _ il.Sym) {
	d.t.Unbox(pc, typ, anyValue, d.push(pc, 1), d.pop(pc, 0))
}

func (d *Decoder) Cast(pc cfg.Point, typ *metadata.Type, isInst bool, _, _ il.Sym) {
	d.t.Cast(pc, typ, isInst, d.push(pc, 1), d.pop(pc, 0))
}

func (d *Decoder) Entry(pc cfg.Point, method *metadata.Method) { d.t.Entry(pc, method) }

func (d *Decoder) Assume(pc cfg.Point, tag string, _ il.Sym) {
	d.t.Assume(pc, tag, d.pop(pc, 0))
}

func (d *Decoder) Assert(pc cfg.Point, tag string, _ il.Sym) {
	d.t.Assert(pc, tag, d.pop(pc, 0))
}

func (d *Decoder) BeginOld(pc cfg.Point, match cfg.Point) { d.t.BeginOld(pc, match) }

// EndOld inside an old-value replay reads the value already on the stack;
// otherwise the value lands where the matching BeginOld found the top.
func (d *Decoder) EndOld(pc cfg.Point, match cfg.Point, typ *metadata.Type, _, _ il.Sym) {
	top := d.pop(pc, 0)
	if pc.Ctx.Has(cfg.TagOld) {
		d.t.LoadStack(pc, 0, top, top, false)
		return
	}
	d.t.EndOld(pc, match, typ, d.depth(match), top)
}

func (d *Decoder) LoadStack(pc cfg.Point, offset int, _, _ il.Sym, isOld bool) {
	d.t.LoadStack(pc, offset, d.push(pc, 0), d.pop(pc, offset), isOld)
}

func (d *Decoder) LoadStackAddress(pc cfg.Point, offset int, _, _ il.Sym, typ *metadata.Type, isOld bool) {
	d.t.LoadStackAddress(pc, offset, d.push(pc, 0), d.pop(pc, offset), typ, isOld)
}

func (d *Decoder) LoadResult(pc cfg.Point, typ *metadata.Type, _, _ il.Sym) {
	d.emitResult(pc, typ, d.remapper(pc).result(pc), false)
}

func (d *Decoder) LoadResultAddress(pc cfg.Point, typ *metadata.Type, _, _ il.Sym) {
	d.emitResult(pc, typ, d.remapper(pc).result(pc), true)
}
