// Package il models the instructions the stack analysis decodes: an opcode
// set close to CIL plus the contract pseudo-instructions (entry, assume,
// assert, old-value brackets, stack and result loads).
package il

// Opcode identifies one instruction form
type Opcode byte

const (
	// Stack manipulation
	OP_NOP Opcode = iota // No operation
	OP_POP               // Discard top of stack
	OP_DUP               // Duplicate top of stack

	// Arithmetic and logic
	OP_UNARY  // Unary operator: [a] -> [op a]
	OP_BINARY // Binary operator: [a, b] -> [a op b]

	// Control flow
	OP_BR         // Unconditional branch
	OP_BCOND      // Compare two operands and branch
	OP_BRTRUE     // Branch if top is true
	OP_BRFALSE    // Branch if top is false
	OP_SWITCH     // Jump table on top of stack
	OP_BREAK      // Debugger break
	OP_RET        // Return from method
	OP_JMP        // Tail jump to another method with current args
	OP_THROW      // Throw top of stack
	OP_RETHROW    // Rethrow inside a catch handler
	OP_ENDFILTER  // End of filter clause, pops verdict
	OP_ENDFINALLY // End of finally or fault handler

	// Calls
	OP_CALL                 // Call method, pops args, pushes result unless void
	OP_CALLI                // Indirect call through function pointer
	OP_CONSTRAINED_CALLVIRT // Virtual call with constrained receiver type
	OP_NEWOBJ               // Allocate and run constructor
	OP_NEWARR               // Allocate array, one length per dimension

	// Memory blocks
	OP_CPBLK   // [dest, src, size] -> []
	OP_CPOBJ   // [dest, src] -> []
	OP_INITBLK // [addr, value, size] -> []
	OP_INITOBJ // [addr] -> []

	// Loads
	OP_LDARG     // Load argument
	OP_LDARGA    // Load argument address
	OP_LDLOC     // Load local
	OP_LDLOCA    // Load local address
	OP_LDC       // Load constant
	OP_LDNULL    // Load null reference
	OP_LDFLD     // [obj] -> [obj.f]
	OP_LDFLDA    // [obj] -> [&obj.f]
	OP_LDSFLD    // Load static field
	OP_LDSFLDA   // Load static field address
	OP_LDELEM    // [arr, i] -> [arr[i]]
	OP_LDELEMA   // [arr, i] -> [&arr[i]]
	OP_LDLEN     // [arr] -> [len]
	OP_LDIND     // [ptr] -> [*ptr]
	OP_LDTOKEN   // Load metadata token
	OP_LDFTN     // Load function pointer
	OP_LDVIRTFTN // [obj] -> [virtual function pointer]
	OP_ARGLIST   // Load vararg handle
	OP_SIZEOF    // Load size of type
	OP_LOCALLOC  // [size] -> [ptr]

	// Stores
	OP_STARG  // Store argument
	OP_STLOC  // Store local
	OP_STFLD  // [obj, v] -> []
	OP_STSFLD // Store static field
	OP_STELEM // [arr, i, v] -> []
	OP_STIND  // [ptr, v] -> []

	// Object model
	OP_BOX   // Box value type
	OP_UNBOX // Unbox to value or address
	OP_CAST  // castclass, or isinst when IsInst is set

	// Contract pseudo-instructions
	OP_ENTRY     // Method entry marker
	OP_ASSUME    // Assume top of stack
	OP_ASSERT    // Assert top of stack
	OP_BEGIN_OLD // Start evaluating in the pre-state
	OP_END_OLD   // End pre-state evaluation, value stays on the stack
	OP_LDSTACK   // Load a copy of a deeper stack slot
	OP_LDSTACKA  // Load address of a deeper stack slot
	OP_LDRESULT  // Load method result
	OP_LDRESULTA // Load method result address
)

// OpcodeNames maps opcodes to their mnemonics
var OpcodeNames = map[Opcode]string{
	OP_NOP:                  "nop",
	OP_POP:                  "pop",
	OP_DUP:                  "dup",
	OP_UNARY:                "unary",
	OP_BINARY:               "binary",
	OP_BR:                   "br",
	OP_BCOND:                "bcond",
	OP_BRTRUE:               "brtrue",
	OP_BRFALSE:              "brfalse",
	OP_SWITCH:               "switch",
	OP_BREAK:                "break",
	OP_RET:                  "ret",
	OP_JMP:                  "jmp",
	OP_THROW:                "throw",
	OP_RETHROW:              "rethrow",
	OP_ENDFILTER:            "endfilter",
	OP_ENDFINALLY:           "endfinally",
	OP_CALL:                 "call",
	OP_CALLI:                "calli",
	OP_CONSTRAINED_CALLVIRT: "constrained.callvirt",
	OP_NEWOBJ:               "newobj",
	OP_NEWARR:               "newarr",
	OP_CPBLK:                "cpblk",
	OP_CPOBJ:                "cpobj",
	OP_INITBLK:              "initblk",
	OP_INITOBJ:              "initobj",
	OP_LDARG:                "ldarg",
	OP_LDARGA:               "ldarga",
	OP_LDLOC:                "ldloc",
	OP_LDLOCA:               "ldloca",
	OP_LDC:                  "ldc",
	OP_LDNULL:               "ldnull",
	OP_LDFLD:                "ldfld",
	OP_LDFLDA:               "ldflda",
	OP_LDSFLD:               "ldsfld",
	OP_LDSFLDA:              "ldsflda",
	OP_LDELEM:               "ldelem",
	OP_LDELEMA:              "ldelema",
	OP_LDLEN:                "ldlen",
	OP_LDIND:                "ldind",
	OP_LDTOKEN:              "ldtoken",
	OP_LDFTN:                "ldftn",
	OP_LDVIRTFTN:            "ldvirtftn",
	OP_ARGLIST:              "arglist",
	OP_SIZEOF:               "sizeof",
	OP_LOCALLOC:             "localloc",
	OP_STARG:                "starg",
	OP_STLOC:                "stloc",
	OP_STFLD:                "stfld",
	OP_STSFLD:               "stsfld",
	OP_STELEM:               "stelem",
	OP_STIND:                "stind",
	OP_BOX:                  "box",
	OP_UNBOX:                "unbox",
	OP_CAST:                 "castclass",
	OP_ENTRY:                "entry",
	OP_ASSUME:               "assume",
	OP_ASSERT:               "assert",
	OP_BEGIN_OLD:            "begin_old",
	OP_END_OLD:              "end_old",
	OP_LDSTACK:              "ldstack",
	OP_LDSTACKA:             "ldstacka",
	OP_LDRESULT:             "ldresult",
	OP_LDRESULTA:            "ldresulta",
}

func (op Opcode) String() string {
	if name, ok := OpcodeNames[op]; ok {
		return name
	}
	return "op?"
}

// UnaryOp is the operator of OP_UNARY
type UnaryOp byte

const (
	UnaryNeg UnaryOp = iota
	UnaryNot
	UnaryConv // conversion to Instr.Type
	UnaryCkfinite
)

var unaryNames = map[UnaryOp]string{
	UnaryNeg:      "neg",
	UnaryNot:      "not",
	UnaryConv:     "conv",
	UnaryCkfinite: "ckfinite",
}

func (op UnaryOp) String() string { return unaryNames[op] }

// BinaryOp is the operator of OP_BINARY and the condition of OP_BCOND
type BinaryOp byte

const (
	BinAdd BinaryOp = iota
	BinSub
	BinMul
	BinDiv
	BinRem
	BinAnd
	BinOr
	BinXor
	BinShl
	BinShr
	BinCeq
	BinCne
	BinClt
	BinCle
	BinCgt
	BinCge
)

var binaryNames = map[BinaryOp]string{
	BinAdd: "add",
	BinSub: "sub",
	BinMul: "mul",
	BinDiv: "div",
	BinRem: "rem",
	BinAnd: "and",
	BinOr:  "or",
	BinXor: "xor",
	BinShl: "shl",
	BinShr: "shr",
	BinCeq: "ceq",
	BinCne: "cne",
	BinClt: "clt",
	BinCle: "cle",
	BinCgt: "cgt",
	BinCge: "cge",
}

func (op BinaryOp) String() string { return binaryNames[op] }

// LookupUnary finds a unary operator by mnemonic
func LookupUnary(name string) (UnaryOp, bool) {
	for op, n := range unaryNames {
		if n == name {
			return op, true
		}
	}
	return 0, false
}

// LookupBinary finds a binary operator by mnemonic
func LookupBinary(name string) (BinaryOp, bool) {
	for op, n := range binaryNames {
		if n == name {
			return op, true
		}
	}
	return 0, false
}

// LookupOpcode finds an opcode by mnemonic
func LookupOpcode(name string) (Opcode, bool) {
	for op, n := range OpcodeNames {
		if n == name {
			return op, true
		}
	}
	return 0, false
}
