package il

import (
	"fmt"
	"strings"

	"github.com/funvibe/ilstack/internal/cfg"
	"github.com/funvibe/ilstack/internal/metadata"
)

// Step is one instruction of a concrete trace
type Step struct {
	Point cfg.Point
	Name  string // resolved mnemonic, e.g. "add" rather than "binary"
	Imm   string // rendered immediate operand
	Dest  int    // -1 when nothing is pushed
	Srcs  []int
	Args  *Run
	Old   bool
}

// Recorder is a concrete visitor that collects the steps it sees
type Recorder struct {
	Steps []Step
}

var _ Visitor[int, Run] = (*Recorder)(nil)

func (r *Recorder) add(pc cfg.Point, name, imm string, dest int, srcs ...int) *Step {
	r.Steps = append(r.Steps, Step{Point: pc, Name: name, Imm: imm, Dest: dest, Srcs: srcs})
	return &r.Steps[len(r.Steps)-1]
}

func (r *Recorder) addArgs(pc cfg.Point, name, imm string, dest int, args Run, srcs ...int) {
	s := r.add(pc, name, imm, dest, srcs...)
	s.Args = &args
}

func (r *Recorder) addOld(pc cfg.Point, name, imm string, old bool, dest int, srcs ...int) {
	s := r.add(pc, name, imm, dest, srcs...)
	s.Old = old
}

func label(b *cfg.Block) string {
	if b == nil {
		return "?"
	}
	return b.String()
}

func typeName(t *metadata.Type) string { return t.String() }

// result hides the destination of calls that push nothing
func result(m *metadata.Method, dest int) int {
	if m == nil || m.Result == nil || m.Ctor {
		return -1
	}
	return dest
}

func (r *Recorder) Nop(pc cfg.Point) { r.add(pc, "nop", "", -1) }

func (r *Recorder) Pop(pc cfg.Point, src int) { r.add(pc, "pop", "", -1, src) }

func (r *Recorder) Dup(pc cfg.Point, dest, src int) { r.add(pc, "dup", "", dest, src) }

func (r *Recorder) Unary(pc cfg.Point, op UnaryOp, overflow, unsigned bool, dest, src int) {
	r.add(pc, op.String()+suffix(overflow, unsigned), "", dest, src)
}

func (r *Recorder) Binary(pc cfg.Point, op BinaryOp, overflow, unsigned bool, dest, left, right int) {
	r.add(pc, op.String()+suffix(overflow, unsigned), "", dest, left, right)
}

func suffix(overflow, unsigned bool) string {
	switch {
	case overflow && unsigned:
		return ".ovf.un"
	case overflow:
		return ".ovf"
	case unsigned:
		return ".un"
	}
	return ""
}

func (r *Recorder) Branch(pc cfg.Point, target *cfg.Block) {
	r.add(pc, "br", label(target), -1)
}

func (r *Recorder) BranchCond(pc cfg.Point, target *cfg.Block, cond BinaryOp, unsigned bool, left, right int) {
	r.add(pc, "b"+strings.TrimPrefix(cond.String(), "c")+suffix(false, unsigned), label(target), -1, left, right)
}

func (r *Recorder) BranchTrue(pc cfg.Point, target *cfg.Block, cond int) {
	r.add(pc, "brtrue", label(target), -1, cond)
}

func (r *Recorder) BranchFalse(pc cfg.Point, target *cfg.Block, cond int) {
	r.add(pc, "brfalse", label(target), -1, cond)
}

func (r *Recorder) Switch(pc cfg.Point, targets []*cfg.Block, value int) {
	imm := ""
	for i, t := range targets {
		if i > 0 {
			imm += ","
		}
		imm += label(t)
	}
	r.add(pc, "switch", imm, -1, value)
}

func (r *Recorder) Break(pc cfg.Point) { r.add(pc, "break", "", -1) }

func (r *Recorder) Return(pc cfg.Point, src int) { r.add(pc, "ret", "", -1, src) }

func (r *Recorder) Jmp(pc cfg.Point, method *metadata.Method) {
	r.add(pc, "jmp", method.FullName(), -1)
}

func (r *Recorder) Throw(pc cfg.Point, exn int) { r.add(pc, "throw", "", -1, exn) }

func (r *Recorder) Rethrow(pc cfg.Point) { r.add(pc, "rethrow", "", -1) }

func (r *Recorder) EndFilter(pc cfg.Point, cond int) { r.add(pc, "endfilter", "", -1, cond) }

func (r *Recorder) EndFinally(pc cfg.Point) { r.add(pc, "endfinally", "", -1) }

func (r *Recorder) Call(pc cfg.Point, method *metadata.Method, tail, virtual bool, dest int, args Run) {
	name := "call"
	if virtual {
		name = "callvirt"
	}
	if tail {
		name = "tail." + name
	}
	r.addArgs(pc, name, method.FullName(), result(method, dest), args)
}

func (r *Recorder) Calli(pc cfg.Point, sig *metadata.Signature, tail bool, dest, fn int, args Run) {
	name := "calli"
	if tail {
		name = "tail." + name
	}
	if sig == nil || sig.Result == nil {
		dest = -1
	}
	r.addArgs(pc, name, "", dest, args, fn)
}

func (r *Recorder) ConstrainedCallvirt(pc cfg.Point, constraint *metadata.Type, method *metadata.Method, tail bool, dest int, args Run) {
	name := "constrained.callvirt"
	if tail {
		name = "tail." + name
	}
	r.addArgs(pc, name, typeName(constraint)+" "+method.FullName(), result(method, dest), args)
}

func (r *Recorder) NewObj(pc cfg.Point, ctor *metadata.Method, dest int, args Run) {
	r.addArgs(pc, "newobj", ctor.FullName(), dest, args)
}

func (r *Recorder) NewArray(pc cfg.Point, typ *metadata.Type, dest int, lengths Run) {
	r.addArgs(pc, "newarr", typeName(typ), dest, lengths)
}

func (r *Recorder) CopyBlock(pc cfg.Point, dest, src, size int) {
	r.add(pc, "cpblk", "", -1, dest, src, size)
}

func (r *Recorder) CopyObj(pc cfg.Point, typ *metadata.Type, dest, src int) {
	r.add(pc, "cpobj", typeName(typ), -1, dest, src)
}

func (r *Recorder) InitBlock(pc cfg.Point, addr, value, size int) {
	r.add(pc, "initblk", "", -1, addr, value, size)
}

func (r *Recorder) InitObj(pc cfg.Point, typ *metadata.Type, addr int) {
	r.add(pc, "initobj", typeName(typ), -1, addr)
}

func (r *Recorder) LoadArg(pc cfg.Point, p *metadata.Param, isOld bool, dest int) {
	r.addOld(pc, "ldarg", p.Name, isOld, dest)
}

func (r *Recorder) LoadArgAddress(pc cfg.Point, p *metadata.Param, isOld bool, dest int) {
	r.addOld(pc, "ldarga", p.Name, isOld, dest)
}

func (r *Recorder) LoadLocal(pc cfg.Point, local string, dest int) {
	r.add(pc, "ldloc", local, dest)
}

func (r *Recorder) LoadLocalAddress(pc cfg.Point, local string, dest int) {
	r.add(pc, "ldloca", local, dest)
}

func (r *Recorder) LoadConst(pc cfg.Point, typ *metadata.Type, value any, dest int) {
	r.add(pc, "ldc", fmt.Sprint(value), dest)
}

func (r *Recorder) LoadNull(pc cfg.Point, dest int) { r.add(pc, "ldnull", "", dest) }

func (r *Recorder) LoadField(pc cfg.Point, f *metadata.Field, dest, obj int) {
	r.add(pc, "ldfld", f.String(), dest, obj)
}

func (r *Recorder) LoadFieldAddress(pc cfg.Point, f *metadata.Field, dest, obj int) {
	r.add(pc, "ldflda", f.String(), dest, obj)
}

func (r *Recorder) LoadStaticField(pc cfg.Point, f *metadata.Field, dest int) {
	r.add(pc, "ldsfld", f.String(), dest)
}

func (r *Recorder) LoadStaticFieldAddress(pc cfg.Point, f *metadata.Field, dest int) {
	r.add(pc, "ldsflda", f.String(), dest)
}

func (r *Recorder) LoadElement(pc cfg.Point, typ *metadata.Type, dest, array, index int) {
	r.add(pc, "ldelem", typeName(typ), dest, array, index)
}

func (r *Recorder) LoadElementAddress(pc cfg.Point, typ *metadata.Type, dest, array, index int) {
	r.add(pc, "ldelema", typeName(typ), dest, array, index)
}

func (r *Recorder) LoadLength(pc cfg.Point, dest, array int) {
	r.add(pc, "ldlen", "", dest, array)
}

func (r *Recorder) LoadIndirect(pc cfg.Point, typ *metadata.Type, dest, ptr int) {
	r.add(pc, "ldind", typeName(typ), dest, ptr)
}

func (r *Recorder) LoadToken(pc cfg.Point, token any, dest int) {
	r.add(pc, "ldtoken", fmt.Sprint(token), dest)
}

func (r *Recorder) LoadFunction(pc cfg.Point, method *metadata.Method, dest int) {
	r.add(pc, "ldftn", method.FullName(), dest)
}

func (r *Recorder) LoadVirtualFunction(pc cfg.Point, method *metadata.Method, dest, obj int) {
	r.add(pc, "ldvirtftn", method.FullName(), dest, obj)
}

func (r *Recorder) Arglist(pc cfg.Point, dest int) { r.add(pc, "arglist", "", dest) }

func (r *Recorder) Sizeof(pc cfg.Point, typ *metadata.Type, dest int) {
	r.add(pc, "sizeof", typeName(typ), dest)
}

func (r *Recorder) LocalAlloc(pc cfg.Point, dest, size int) {
	r.add(pc, "localloc", "", dest, size)
}

func (r *Recorder) StoreArg(pc cfg.Point, p *metadata.Param, src int) {
	r.add(pc, "starg", p.Name, -1, src)
}

func (r *Recorder) StoreLocal(pc cfg.Point, local string, src int) {
	r.add(pc, "stloc", local, -1, src)
}

func (r *Recorder) StoreField(pc cfg.Point, f *metadata.Field, obj, value int) {
	r.add(pc, "stfld", f.String(), -1, obj, value)
}

func (r *Recorder) StoreStaticField(pc cfg.Point, f *metadata.Field, value int) {
	r.add(pc, "stsfld", f.String(), -1, value)
}

func (r *Recorder) StoreElement(pc cfg.Point, typ *metadata.Type, array, index, value int) {
	r.add(pc, "stelem", typeName(typ), -1, array, index, value)
}

func (r *Recorder) StoreIndirect(pc cfg.Point, typ *metadata.Type, ptr, value int) {
	r.add(pc, "stind", typeName(typ), -1, ptr, value)
}

func (r *Recorder) Box(pc cfg.Point, typ *metadata.Type, dest, src int) {
	r.add(pc, "box", typeName(typ), dest, src)
}

func (r *Recorder) Unbox(pc cfg.Point, typ *metadata.Type, anyValue bool, dest, obj int) {
	name := "unbox"
	if anyValue {
		name = "unbox.any"
	}
	r.add(pc, name, typeName(typ), dest, obj)
}

func (r *Recorder) Cast(pc cfg.Point, typ *metadata.Type, isInst bool, dest, obj int) {
	name := "castclass"
	if isInst {
		name = "isinst"
	}
	r.add(pc, name, typeName(typ), dest, obj)
}

func (r *Recorder) Entry(pc cfg.Point, method *metadata.Method) {
	r.add(pc, "entry", method.FullName(), -1)
}

func (r *Recorder) Assume(pc cfg.Point, tag string, cond int) {
	r.add(pc, "assume", tag, -1, cond)
}

func (r *Recorder) Assert(pc cfg.Point, tag string, cond int) {
	r.add(pc, "assert", tag, -1, cond)
}

func (r *Recorder) BeginOld(pc cfg.Point, match cfg.Point) {
	r.add(pc, "begin_old", label(match.Block), -1)
}

func (r *Recorder) EndOld(pc cfg.Point, match cfg.Point, typ *metadata.Type, dest, src int) {
	r.add(pc, "end_old", label(match.Block), dest, src)
}

func (r *Recorder) LoadStack(pc cfg.Point, offset int, dest, src int, isOld bool) {
	r.addOld(pc, "ldstack", fmt.Sprint(offset), isOld, dest, src)
}

func (r *Recorder) LoadStackAddress(pc cfg.Point, offset int, dest, src int, typ *metadata.Type, isOld bool) {
	r.addOld(pc, "ldstacka", fmt.Sprint(offset), isOld, dest, src)
}

func (r *Recorder) LoadResult(pc cfg.Point, typ *metadata.Type, dest, src int) {
	r.add(pc, "ldresult", "", dest, src)
}

func (r *Recorder) LoadResultAddress(pc cfg.Point, typ *metadata.Type, dest, src int) {
	r.add(pc, "ldresulta", "", dest, src)
}
