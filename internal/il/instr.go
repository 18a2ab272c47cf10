package il

import (
	"fmt"

	"github.com/funvibe/ilstack/internal/cfg"
	"github.com/funvibe/ilstack/internal/metadata"
)

// Instr is one decoded instruction. Only the fields its opcode uses are set.
type Instr struct {
	Op Opcode

	Method *metadata.Method
	Field  *metadata.Field
	Type   *metadata.Type
	Param  *metadata.Param
	Sig    *metadata.Signature
	Local  string
	Value  any

	Target  *cfg.Block
	Targets []*cfg.Block

	Unary  UnaryOp
	Binary BinaryOp

	Tail     bool
	Virtual  bool
	Overflow bool
	Unsigned bool
	Old      bool // ldarg/ldstack read the pre-state
	IsInst   bool // OP_CAST is isinst
	AnyValue bool // OP_UNBOX is unbox.any

	// Offset is the depth below the top read by OP_LDSTACK and OP_LDSTACKA
	Offset int

	// Dims is the rank of OP_NEWARR
	Dims int

	// Tag labels OP_ASSUME and OP_ASSERT
	Tag string

	// MatchBlock and MatchIndex locate the partner of OP_BEGIN_OLD/OP_END_OLD
	MatchBlock *cfg.Block
	MatchIndex int
}

// Code resolves the instruction at a program point
type Code interface {
	At(pc cfg.Point) (Instr, bool)
}

// Listing stores instructions per block
type Listing struct {
	blocks map[*cfg.Block][]Instr
}

// NewListing creates an empty listing
func NewListing() *Listing {
	return &Listing{blocks: make(map[*cfg.Block][]Instr)}
}

// Set assigns the instructions of b and updates its count
func (l *Listing) Set(b *cfg.Block, code ...Instr) {
	l.blocks[b] = code
	b.Count = len(code)
}

// Append adds one instruction at the end of b
func (l *Listing) Append(b *cfg.Block, in Instr) {
	l.blocks[b] = append(l.blocks[b], in)
	b.Count = len(l.blocks[b])
}

// Block returns the instructions of b
func (l *Listing) Block(b *cfg.Block) []Instr {
	return l.blocks[b]
}

func (l *Listing) At(pc cfg.Point) (Instr, bool) {
	code := l.blocks[pc.Block]
	if pc.Index < 0 || pc.Index >= len(code) {
		return Instr{}, false
	}
	return code[pc.Index], true
}

// Sym is the opaque operand of a symbolic trace
type Sym struct{}

// Run is a contiguous range of stack slots holding call arguments
type Run struct {
	Start int
	Count int
}

// Slot returns the i-th slot of the run
func (r Run) Slot(i int) int {
	return r.Start + i
}

func (r Run) String() string {
	switch r.Count {
	case 0:
		return "()"
	case 1:
		return fmt.Sprintf("(s%d)", r.Start)
	default:
		return fmt.Sprintf("(s%d..s%d)", r.Start, r.Start+r.Count-1)
	}
}
