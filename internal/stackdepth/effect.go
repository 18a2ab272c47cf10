package stackdepth

import (
	"github.com/funvibe/ilstack/internal/cfg"
	"github.com/funvibe/ilstack/internal/il"
	"github.com/funvibe/ilstack/internal/metadata"
	"github.com/funvibe/ilstack/internal/pointindex"
	"github.com/funvibe/ilstack/internal/stack"
)

// effect applies instruction stack effects during a sweep
type effect struct {
	p   *Provider
	sub *cfg.Subroutine
	idx *pointindex.Index[int]
}

func (fx *effect) apply(pc cfg.Point, s *stack.Shape) {
	defer guard("stack effect", pc)

	in, ok := fx.p.code.At(pc)
	if !ok {
		panic(pointindex.ErrNotFound)
	}
	meta := fx.p.meta

	switch in.Op {
	case il.OP_NOP, il.OP_BR, il.OP_BREAK, il.OP_ENTRY, il.OP_BEGIN_OLD, il.OP_RET:
		// no stack effect

	case il.OP_POP, il.OP_BRTRUE, il.OP_BRFALSE, il.OP_SWITCH, il.OP_ENDFILTER,
		il.OP_ASSUME, il.OP_ASSERT, il.OP_STARG, il.OP_STLOC, il.OP_STSFLD, il.OP_INITOBJ:
		s.Pop(1)

	case il.OP_BCOND, il.OP_STFLD, il.OP_STIND, il.OP_CPOBJ:
		s.Pop(2)

	case il.OP_STELEM, il.OP_CPBLK, il.OP_INITBLK:
		s.Pop(3)

	case il.OP_DUP:
		s.Pop(1)
		s.Push()
		s.Push()

	case il.OP_UNARY, il.OP_LDFLD, il.OP_LDFLDA, il.OP_LDLEN, il.OP_LDIND, il.OP_LDVIRTFTN,
		il.OP_BOX, il.OP_UNBOX, il.OP_CAST, il.OP_LOCALLOC, il.OP_END_OLD:
		s.Pop(1)
		s.Push()

	case il.OP_BINARY, il.OP_LDELEM, il.OP_LDELEMA:
		s.Pop(2)
		s.Push()

	case il.OP_LDARG:
		if isReceiver(meta, in.Param) {
			s.PushThis()
		} else {
			s.Push()
		}

	case il.OP_LDARGA, il.OP_LDLOC, il.OP_LDLOCA, il.OP_LDC, il.OP_LDNULL, il.OP_LDSFLD,
		il.OP_LDSFLDA, il.OP_LDTOKEN, il.OP_LDFTN, il.OP_ARGLIST, il.OP_SIZEOF,
		il.OP_LDSTACK, il.OP_LDSTACKA, il.OP_LDRESULT, il.OP_LDRESULTA:
		s.Push()

	case il.OP_NEWARR:
		s.Pop(rank(in))
		s.Push()

	case il.OP_ENDFINALLY, il.OP_JMP, il.OP_THROW, il.OP_RETHROW:
		s.Reset()

	case il.OP_CALL, il.OP_CONSTRAINED_CALLVIRT:
		argc := metadata.ArgumentCount(meta, in.Method, false)
		if endsBlock(pc) && !meta.IsStatic(in.Method) && s.IsThis(argc-1) {
			fx.idx.MarkCallOnThis(pc)
		}
		s.Pop(argc)
		if !meta.IsVoid(in.Method) {
			s.Push()
		}

	case il.OP_CALLI:
		s.Pop(indirectArgs(in.Sig) + 1)
		if in.Sig != nil && in.Sig.Result != nil {
			s.Push()
		}

	case il.OP_NEWOBJ:
		s.Pop(metadata.ArgumentCount(meta, in.Method, true))
		s.Push()

	default:
		panic(ErrUnknownOpcode)
	}
}

// isReceiver reports whether p is argument 0 of an instance method
func isReceiver(meta metadata.Provider, p *metadata.Param) bool {
	if p == nil {
		return false
	}
	m := meta.DeclaringMethod(p)
	return m != nil && !meta.IsStatic(m) && meta.ArgumentIndex(p) == 0
}

// endsBlock reports whether pc is the call site of its block. Calls earlier in
// the block say nothing about the edge that leaves it.
func endsBlock(pc cfg.Point) bool {
	return pc.Block.Call != nil && pc.Index == pc.Block.Count-1
}

func rank(in il.Instr) int {
	if in.Dims < 1 {
		return 1
	}
	return in.Dims
}

func indirectArgs(sig *metadata.Signature) int {
	if sig == nil {
		return 0
	}
	n := len(sig.Params)
	if sig.Instance {
		n++
	}
	return n
}
