package il

import (
	"github.com/funvibe/ilstack/internal/cfg"
	"github.com/funvibe/ilstack/internal/metadata"
)

// Visitor receives one call per decoded instruction. V is the operand type
// (Sym for symbolic traces, int stack slots for concrete ones) and A the type
// of variable-length argument lists.
type Visitor[V, A any] interface {
	Nop(pc cfg.Point)
	Pop(pc cfg.Point, src V)
	Dup(pc cfg.Point, dest, src V)
	Unary(pc cfg.Point, op UnaryOp, overflow, unsigned bool, dest, src V)
	Binary(pc cfg.Point, op BinaryOp, overflow, unsigned bool, dest, left, right V)

	Branch(pc cfg.Point, target *cfg.Block)
	BranchCond(pc cfg.Point, target *cfg.Block, cond BinaryOp, unsigned bool, left, right V)
	BranchTrue(pc cfg.Point, target *cfg.Block, cond V)
	BranchFalse(pc cfg.Point, target *cfg.Block, cond V)
	Switch(pc cfg.Point, targets []*cfg.Block, value V)
	Break(pc cfg.Point)
	Return(pc cfg.Point, src V)
	Jmp(pc cfg.Point, method *metadata.Method)
	Throw(pc cfg.Point, exn V)
	Rethrow(pc cfg.Point)
	EndFilter(pc cfg.Point, cond V)
	EndFinally(pc cfg.Point)

	Call(pc cfg.Point, method *metadata.Method, tail, virtual bool, dest V, args A)
	Calli(pc cfg.Point, sig *metadata.Signature, tail bool, dest, fn V, args A)
	ConstrainedCallvirt(pc cfg.Point, constraint *metadata.Type, method *metadata.Method, tail bool, dest V, args A)
	NewObj(pc cfg.Point, ctor *metadata.Method, dest V, args A)
	NewArray(pc cfg.Point, typ *metadata.Type, dest V, lengths A)

	CopyBlock(pc cfg.Point, dest, src, size V)
	CopyObj(pc cfg.Point, typ *metadata.Type, dest, src V)
	InitBlock(pc cfg.Point, addr, value, size V)
	InitObj(pc cfg.Point, typ *metadata.Type, addr V)

	LoadArg(pc cfg.Point, p *metadata.Param, isOld bool, dest V)
	LoadArgAddress(pc cfg.Point, p *metadata.Param, isOld bool, dest V)
	LoadLocal(pc cfg.Point, local string, dest V)
	LoadLocalAddress(pc cfg.Point, local string, dest V)
	LoadConst(pc cfg.Point, typ *metadata.Type, value any, dest V)
	LoadNull(pc cfg.Point, dest V)
	LoadField(pc cfg.Point, f *metadata.Field, dest, obj V)
	LoadFieldAddress(pc cfg.Point, f *metadata.Field, dest, obj V)
	LoadStaticField(pc cfg.Point, f *metadata.Field, dest V)
	LoadStaticFieldAddress(pc cfg.Point, f *metadata.Field, dest V)
	LoadElement(pc cfg.Point, typ *metadata.Type, dest, array, index V)
	LoadElementAddress(pc cfg.Point, typ *metadata.Type, dest, array, index V)
	LoadLength(pc cfg.Point, dest, array V)
	LoadIndirect(pc cfg.Point, typ *metadata.Type, dest, ptr V)
	LoadToken(pc cfg.Point, token any, dest V)
	LoadFunction(pc cfg.Point, method *metadata.Method, dest V)
	LoadVirtualFunction(pc cfg.Point, method *metadata.Method, dest, obj V)
	Arglist(pc cfg.Point, dest V)
	Sizeof(pc cfg.Point, typ *metadata.Type, dest V)
	LocalAlloc(pc cfg.Point, dest, size V)

	StoreArg(pc cfg.Point, p *metadata.Param, src V)
	StoreLocal(pc cfg.Point, local string, src V)
	StoreField(pc cfg.Point, f *metadata.Field, obj, value V)
	StoreStaticField(pc cfg.Point, f *metadata.Field, value V)
	StoreElement(pc cfg.Point, typ *metadata.Type, array, index, value V)
	StoreIndirect(pc cfg.Point, typ *metadata.Type, ptr, value V)

	Box(pc cfg.Point, typ *metadata.Type, dest, src V)
	Unbox(pc cfg.Point, typ *metadata.Type, anyValue bool, dest, obj V)
	Cast(pc cfg.Point, typ *metadata.Type, isInst bool, dest, obj V)

	Entry(pc cfg.Point, method *metadata.Method)
	Assume(pc cfg.Point, tag string, cond V)
	Assert(pc cfg.Point, tag string, cond V)
	BeginOld(pc cfg.Point, match cfg.Point)
	EndOld(pc cfg.Point, match cfg.Point, typ *metadata.Type, dest, src V)
	LoadStack(pc cfg.Point, offset int, dest, src V, isOld bool)
	LoadStackAddress(pc cfg.Point, offset int, dest, src V, typ *metadata.Type, isOld bool)
	LoadResult(pc cfg.Point, typ *metadata.Type, dest, src V)
	LoadResultAddress(pc cfg.Point, typ *metadata.Type, dest, src V)
}
