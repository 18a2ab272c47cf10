package fixture

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/funvibe/ilstack/internal/cfg"
	"github.com/funvibe/ilstack/internal/il"
	"github.com/funvibe/ilstack/internal/metadata"
)

// assembler turns the text of one instruction into an il.Instr. Old-value
// brackets are matched in block order across the subroutine.
type assembler struct {
	b      *builder
	sub    *cfg.Subroutine
	labels map[string]*cfg.Block
	open   []cfg.Point
}

func (a *assembler) assemble(blk *cfg.Block, index int, line string) (il.Instr, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return il.Instr{}, fmt.Errorf("empty instruction")
	}
	name, args := fields[0], fields[1:]

	in := il.Instr{}
	if rest, ok := strings.CutPrefix(name, "tail."); ok {
		in.Tail = true
		name = rest
		if name == "" {
			if len(args) == 0 {
				return in, fmt.Errorf("tail. prefix without a call")
			}
			name, args = args[0], args[1:]
		}
	}

	// operator suffixes
	base := name
	for {
		switch {
		case strings.HasSuffix(base, ".ovf"):
			in.Overflow = true
			base = strings.TrimSuffix(base, ".ovf")
			continue
		case strings.HasSuffix(base, ".un"):
			in.Unsigned = true
			base = strings.TrimSuffix(base, ".un")
			continue
		}
		break
	}

	if op, ok := il.LookupUnary(base); ok {
		in.Op, in.Unary = il.OP_UNARY, op
		if op == il.UnaryConv {
			t, err := a.argType(args, 0)
			if err != nil {
				return in, err
			}
			in.Type = t
		}
		return in, nil
	}
	if op, ok := il.LookupBinary(base); ok {
		in.Op, in.Binary = il.OP_BINARY, op
		return in, nil
	}
	if cond, ok := strings.CutPrefix(base, "b"); ok {
		if op, ok := il.LookupBinary("c" + cond); ok {
			in.Op, in.Binary = il.OP_BCOND, op
			return in, a.target(&in, args)
		}
	}

	var err error
	switch base {
	case "nop", "pop", "dup", "break", "ret", "throw", "rethrow", "endfilter", "endfinally",
		"arglist", "ldnull", "ldlen", "localloc", "cpblk", "initblk":
		in.Op, _ = il.LookupOpcode(base)

	case "br", "brtrue", "brfalse":
		in.Op, _ = il.LookupOpcode(base)
		err = a.target(&in, args)

	case "switch":
		in.Op = il.OP_SWITCH
		if len(args) != 1 {
			return in, fmt.Errorf("switch needs a comma-separated target list")
		}
		for _, l := range strings.Split(args[0], ",") {
			t, ok := a.labels[l]
			if !ok {
				return in, fmt.Errorf("unknown label %q", l)
			}
			in.Targets = append(in.Targets, t)
		}

	case "call", "callvirt", "newobj", "jmp", "ldftn", "ldvirtftn":
		switch base {
		case "call", "callvirt":
			in.Op, in.Virtual = il.OP_CALL, base == "callvirt"
		case "newobj":
			in.Op = il.OP_NEWOBJ
		default:
			in.Op, _ = il.LookupOpcode(base)
		}
		in.Method, err = a.argMethod(args, 0)
		if err == nil && in.Op == il.OP_NEWOBJ && !in.Method.Ctor {
			err = fmt.Errorf("newobj of %s, which is not a constructor", in.Method)
		}

	case "constrained.callvirt":
		in.Op = il.OP_CONSTRAINED_CALLVIRT
		if in.Type, err = a.argType(args, 0); err == nil {
			in.Method, err = a.argMethod(args, 1)
		}

	case "calli":
		// calli <result|void> <param count> [instance]
		in.Op = il.OP_CALLI
		in.Sig, err = a.signature(args)

	case "newarr":
		in.Op = il.OP_NEWARR
		in.Type, err = a.argType(args, 0)
		in.Dims = 1
		if err == nil && len(args) > 1 {
			in.Dims, err = strconv.Atoi(args[1])
		}

	case "cpobj", "initobj", "ldelem", "ldelema", "stelem", "ldind", "stind", "sizeof",
		"box", "unbox", "unbox.any", "castclass", "isinst":
		switch base {
		case "unbox.any":
			in.Op, in.AnyValue = il.OP_UNBOX, true
		case "isinst":
			in.Op, in.IsInst = il.OP_CAST, true
		default:
			in.Op, _ = il.LookupOpcode(base)
		}
		in.Type, err = a.argType(args, 0)

	case "ldarg", "ldarg.old", "ldarga", "ldarga.old", "starg":
		op, old := strings.CutSuffix(base, ".old")
		in.Op, _ = il.LookupOpcode(op)
		in.Old = old
		in.Param, err = a.argParam(args)

	case "ldloc", "ldloca", "stloc":
		in.Op, _ = il.LookupOpcode(base)
		if len(args) != 1 {
			return in, fmt.Errorf("%s needs a local name", base)
		}
		in.Local = args[0]

	case "ldc":
		in.Op = il.OP_LDC
		err = a.constant(&in, args)

	case "ldfld", "ldflda", "stfld", "ldsfld", "ldsflda", "stsfld":
		in.Op, _ = il.LookupOpcode(base)
		if len(args) != 1 {
			return in, fmt.Errorf("%s needs a field", base)
		}
		in.Field, err = a.b.field(args[0])

	case "ldtoken":
		in.Op = il.OP_LDTOKEN
		if len(args) != 1 {
			return in, fmt.Errorf("ldtoken needs a token")
		}
		in.Value = args[0]

	case "entry":
		in.Op = il.OP_ENTRY
		in.Method = a.sub.Method
		if len(args) > 0 {
			in.Method, err = a.argMethod(args, 0)
		}

	case "assume", "assert":
		in.Op, _ = il.LookupOpcode(base)
		in.Tag = strings.Join(args, " ")

	case "begin_old":
		in.Op = il.OP_BEGIN_OLD
		a.open = append(a.open, cfg.At(blk, index, nil))

	case "end_old":
		in.Op = il.OP_END_OLD
		if len(a.open) == 0 {
			return in, fmt.Errorf("end_old without begin_old")
		}
		begin := a.open[len(a.open)-1]
		a.open = a.open[:len(a.open)-1]
		in.MatchBlock, in.MatchIndex = begin.Block, begin.Index
		a.b.pairOld(begin, cfg.At(blk, index, nil))
		if len(args) > 0 {
			in.Type, err = a.argType(args, 0)
		}

	case "ldstack", "ldstack.old", "ldstacka", "ldstacka.old":
		op, old := strings.CutSuffix(base, ".old")
		in.Op, _ = il.LookupOpcode(op)
		in.Old = old
		if len(args) < 1 {
			return in, fmt.Errorf("%s needs an offset", base)
		}
		if in.Offset, err = strconv.Atoi(args[0]); err == nil && len(args) > 1 {
			in.Type, err = a.argType(args, 1)
		}

	case "ldresult", "ldresulta":
		in.Op, _ = il.LookupOpcode(base)
		if len(args) > 0 {
			in.Type, err = a.argType(args, 0)
		} else if a.sub.Method != nil {
			in.Type = a.sub.Method.Result
		}

	default:
		return in, fmt.Errorf("unknown instruction %q", name)
	}
	return in, err
}

// finish checks that every begin_old was closed
func (a *assembler) finish() error {
	if len(a.open) > 0 {
		return fmt.Errorf("begin_old at %s[%d] is never closed", a.open[0].Block, a.open[0].Index)
	}
	return nil
}

func (a *assembler) target(in *il.Instr, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("branch needs one target")
	}
	t, ok := a.labels[args[0]]
	if !ok {
		return fmt.Errorf("unknown label %q", args[0])
	}
	in.Target = t
	return nil
}

func (a *assembler) argType(args []string, i int) (*metadata.Type, error) {
	if i >= len(args) {
		return nil, fmt.Errorf("missing type operand")
	}
	return a.b.typ(args[i])
}

func (a *assembler) argMethod(args []string, i int) (*metadata.Method, error) {
	if i >= len(args) {
		return nil, fmt.Errorf("missing method operand")
	}
	return a.b.method(args[i])
}

// argParam resolves a parameter of the subroutine's method; "this" is the
// receiver
func (a *assembler) argParam(args []string) (*metadata.Param, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("missing parameter operand")
	}
	m := a.sub.Method
	if m == nil {
		return nil, fmt.Errorf("subroutine %s has no method to take parameters from", a.sub)
	}
	if args[0] == "this" {
		if p := a.b.fx.Meta.This(m); p != nil {
			return p, nil
		}
		return nil, fmt.Errorf("static method %s has no receiver", m)
	}
	for _, p := range m.Params {
		if p.Name == args[0] {
			return p, nil
		}
	}
	return nil, fmt.Errorf("method %s has no parameter %q", m, args[0])
}

func (a *assembler) constant(in *il.Instr, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("ldc needs a value")
	}
	text := strings.Join(args, " ")
	switch {
	case text == "true" || text == "false":
		in.Value, in.Type = text == "true", a.b.fx.Types["bool"]
	case strings.HasPrefix(text, `"`):
		s, err := strconv.Unquote(text)
		if err != nil {
			return fmt.Errorf("bad string constant: %w", err)
		}
		in.Value, in.Type = s, a.b.fx.Types["string"]
	default:
		if n, err := strconv.ParseInt(text, 10, 64); err == nil {
			in.Value, in.Type = n, a.b.fx.Types["int32"]
			if n != int64(int32(n)) {
				in.Type = a.b.fx.Types["int64"]
			}
			return nil
		}
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return fmt.Errorf("bad constant %q", text)
		}
		in.Value, in.Type = f, a.b.fx.Types["float64"]
	}
	return nil
}

func (a *assembler) signature(args []string) (*metadata.Signature, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("calli needs a result type and a parameter count")
	}
	sig := &metadata.Signature{}
	if args[0] != "void" {
		t, err := a.b.typ(args[0])
		if err != nil {
			return nil, err
		}
		sig.Result = t
	}
	n, err := strconv.Atoi(args[1])
	if err != nil || n < 0 {
		return nil, fmt.Errorf("bad parameter count %q", args[1])
	}
	obj := a.b.fx.Types["object"]
	for range n {
		sig.Params = append(sig.Params, obj)
	}
	sig.Instance = len(args) > 2 && args[2] == "instance"
	return sig, nil
}
