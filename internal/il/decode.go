package il

import "github.com/funvibe/ilstack/internal/cfg"

// Decode dispatches the instruction at pc to v with symbolic operands. It
// returns false when pc holds no instruction, which is the case for terminal
// points.
func Decode(code Code, pc cfg.Point, v Visitor[Sym, Sym]) bool {
	in, ok := code.At(pc)
	if !ok {
		return false
	}
	var s Sym

	switch in.Op {
	case OP_NOP:
		v.Nop(pc)
	case OP_POP:
		v.Pop(pc, s)
	case OP_DUP:
		v.Dup(pc, s, s)
	case OP_UNARY:
		v.Unary(pc, in.Unary, in.Overflow, in.Unsigned, s, s)
	case OP_BINARY:
		v.Binary(pc, in.Binary, in.Overflow, in.Unsigned, s, s, s)

	case OP_BR:
		v.Branch(pc, in.Target)
	case OP_BCOND:
		v.BranchCond(pc, in.Target, in.Binary, in.Unsigned, s, s)
	case OP_BRTRUE:
		v.BranchTrue(pc, in.Target, s)
	case OP_BRFALSE:
		v.BranchFalse(pc, in.Target, s)
	case OP_SWITCH:
		v.Switch(pc, in.Targets, s)
	case OP_BREAK:
		v.Break(pc)
	case OP_RET:
		v.Return(pc, s)
	case OP_JMP:
		v.Jmp(pc, in.Method)
	case OP_THROW:
		v.Throw(pc, s)
	case OP_RETHROW:
		v.Rethrow(pc)
	case OP_ENDFILTER:
		v.EndFilter(pc, s)
	case OP_ENDFINALLY:
		v.EndFinally(pc)

	case OP_CALL:
		v.Call(pc, in.Method, in.Tail, in.Virtual, s, s)
	case OP_CALLI:
		v.Calli(pc, in.Sig, in.Tail, s, s, s)
	case OP_CONSTRAINED_CALLVIRT:
		v.ConstrainedCallvirt(pc, in.Type, in.Method, in.Tail, s, s)
	case OP_NEWOBJ:
		v.NewObj(pc, in.Method, s, s)
	case OP_NEWARR:
		v.NewArray(pc, in.Type, s, s)

	case OP_CPBLK:
		v.CopyBlock(pc, s, s, s)
	case OP_CPOBJ:
		v.CopyObj(pc, in.Type, s, s)
	case OP_INITBLK:
		v.InitBlock(pc, s, s, s)
	case OP_INITOBJ:
		v.InitObj(pc, in.Type, s)

	case OP_LDARG:
		v.LoadArg(pc, in.Param, in.Old, s)
	case OP_LDARGA:
		v.LoadArgAddress(pc, in.Param, in.Old, s)
	case OP_LDLOC:
		v.LoadLocal(pc, in.Local, s)
	case OP_LDLOCA:
		v.LoadLocalAddress(pc, in.Local, s)
	case OP_LDC:
		v.LoadConst(pc, in.Type, in.Value, s)
	case OP_LDNULL:
		v.LoadNull(pc, s)
	case OP_LDFLD:
		v.LoadField(pc, in.Field, s, s)
	case OP_LDFLDA:
		v.LoadFieldAddress(pc, in.Field, s, s)
	case OP_LDSFLD:
		v.LoadStaticField(pc, in.Field, s)
	case OP_LDSFLDA:
		v.LoadStaticFieldAddress(pc, in.Field, s)
	case OP_LDELEM:
		v.LoadElement(pc, in.Type, s, s, s)
	case OP_LDELEMA:
		v.LoadElementAddress(pc, in.Type, s, s, s)
	case OP_LDLEN:
		v.LoadLength(pc, s, s)
	case OP_LDIND:
		v.LoadIndirect(pc, in.Type, s, s)
	case OP_LDTOKEN:
		v.LoadToken(pc, in.Value, s)
	case OP_LDFTN:
		v.LoadFunction(pc, in.Method, s)
	case OP_LDVIRTFTN:
		v.LoadVirtualFunction(pc, in.Method, s, s)
	case OP_ARGLIST:
		v.Arglist(pc, s)
	case OP_SIZEOF:
		v.Sizeof(pc, in.Type, s)
	case OP_LOCALLOC:
		v.LocalAlloc(pc, s, s)

	case OP_STARG:
		v.StoreArg(pc, in.Param, s)
	case OP_STLOC:
		v.StoreLocal(pc, in.Local, s)
	case OP_STFLD:
		v.StoreField(pc, in.Field, s, s)
	case OP_STSFLD:
		v.StoreStaticField(pc, in.Field, s)
	case OP_STELEM:
		v.StoreElement(pc, in.Type, s, s, s)
	case OP_STIND:
		v.StoreIndirect(pc, in.Type, s, s)

	case OP_BOX:
		v.Box(pc, in.Type, s, s)
	case OP_UNBOX:
		v.Unbox(pc, in.Type, in.AnyValue, s, s)
	case OP_CAST:
		v.Cast(pc, in.Type, in.IsInst, s, s)

	case OP_ENTRY:
		v.Entry(pc, in.Method)
	case OP_ASSUME:
		v.Assume(pc, in.Tag, s)
	case OP_ASSERT:
		v.Assert(pc, in.Tag, s)
	case OP_BEGIN_OLD:
		v.BeginOld(pc, cfg.At(in.MatchBlock, in.MatchIndex, pc.Ctx))
	case OP_END_OLD:
		v.EndOld(pc, cfg.At(in.MatchBlock, in.MatchIndex, pc.Ctx), in.Type, s, s)
	case OP_LDSTACK:
		v.LoadStack(pc, in.Offset, s, s, in.Old)
	case OP_LDSTACKA:
		v.LoadStackAddress(pc, in.Offset, s, s, in.Type, in.Old)
	case OP_LDRESULT:
		v.LoadResult(pc, in.Type, s, s)
	case OP_LDRESULTA:
		v.LoadResultAddress(pc, in.Type, s, s)

	default:
		return false
	}
	return true
}
