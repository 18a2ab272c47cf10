// Package cfg is the control-flow model the stack analysis runs over: blocks
// grouped into subroutines (a method body or a contract region), normal
// successor edges, and edge subroutines stitched onto those edges.
package cfg

import (
	"fmt"

	"github.com/funvibe/ilstack/internal/metadata"
)

// Kind identifies what a subroutine represents
type Kind uint8

const (
	KindMethod    Kind = iota // method body
	KindRequires              // precondition clause
	KindEnsures               // postcondition clause
	KindOldValue              // old-value capture split out of an ensures
	KindInvariant             // object invariant of a type
	KindFault                 // fault handler
	KindFinally               // finally handler
	KindSimple                // predefined helper with a declared stack delta
)

var kindNames = [...]string{
	KindMethod:    "method",
	KindRequires:  "requires",
	KindEnsures:   "ensures",
	KindOldValue:  "old",
	KindInvariant: "invariant",
	KindFault:     "fault",
	KindFinally:   "finally",
	KindSimple:    "simple",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// ParseKind is the inverse of Kind.String
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return Kind(k), nil
		}
	}
	return 0, fmt.Errorf("unknown subroutine kind %q", s)
}

// CallSite marks a block whose last instruction is a call or newobj
type CallSite struct {
	Method  *metadata.Method
	NewObj  bool
	Virtual bool
}

// Block is a basic block. Points 0..Count-1 hold instructions, point Count
// is the terminal point.
type Block struct {
	ID    int
	Label string
	Count int
	Sub   *Subroutine
	Call  *CallSite
	// CatchHeader marks catch and filter handler entries, which start with
	// the exception object on the stack
	CatchHeader bool
}

func (b *Block) String() string {
	if b.Label != "" {
		return b.Label
	}
	return fmt.Sprintf("b%d", b.ID)
}

// Nested is one edge subroutine on a control-flow edge
type Nested struct {
	Tag Tag
	Sub *Subroutine
}

type edgeKey struct{ from, to int }

// Subroutine is a CFG region with a single entry and a single normal exit
type Subroutine struct {
	ID     int
	Name   string
	Kind   Kind
	Method *metadata.Method // method whose body or contract this is
	Type   *metadata.Type   // associated type of an invariant
	Entry  *Block
	Exit   *Block

	// Delta is the declared stack delta of a KindSimple subroutine
	Delta int

	body  []*Block
	succ  map[int][]*Block
	edges map[edgeKey][]Nested
	graph *Graph
}

// Blocks returns entry, body blocks in creation order, then exit
func (s *Subroutine) Blocks() []*Block {
	out := make([]*Block, 0, len(s.body)+2)
	out = append(out, s.Entry)
	out = append(out, s.body...)
	return append(out, s.Exit)
}

// BlockCount is one more than the largest block id
func (s *Subroutine) BlockCount() int {
	return len(s.body) + 2
}

// NewBlock adds an empty body block
func (s *Subroutine) NewBlock(label string) *Block {
	b := &Block{ID: len(s.body) + 2, Label: label, Sub: s}
	s.body = append(s.body, b)
	return b
}

// AddSuccessor records a normal control-flow edge
func (s *Subroutine) AddSuccessor(from, to *Block) {
	s.succ[from.ID] = append(s.succ[from.ID], to)
}

// Successors lists the normal successors of b
func (s *Subroutine) Successors(b *Block) []*Block {
	return s.succ[b.ID]
}

// Predecessors lists the blocks with a normal edge into b
func (s *Subroutine) Predecessors(b *Block) []*Block {
	var out []*Block
	for _, from := range s.Blocks() {
		for _, to := range s.succ[from.ID] {
			if to == b {
				out = append(out, from)
				break
			}
		}
	}
	return out
}

// AddEdgeSubroutine appends nested to the chain on edge from->to. Chains are
// kept outer-to-inner in insertion order.
func (s *Subroutine) AddEdgeSubroutine(from, to *Block, tag Tag, nested *Subroutine) {
	if nested == nil {
		return
	}
	k := edgeKey{from.ID, to.ID}
	s.edges[k] = append(s.edges[k], Nested{Tag: tag, Sub: nested})
}

// Oracle answers call-on-receiver questions while edge chains are expanded
type Oracle interface {
	IsCallOnThis(pc Point) bool
}

// EdgeSubroutines returns the outer-to-inner chain of subroutines executed on
// edge from->to when interpreted under ctx. Subroutines already entered by
// ctx are filtered out. After a call on the receiver inside a method body the
// invariant of the method's declaring type is appended. handler reports
// whether the edge leaves a protected region through a finally.
func (s *Subroutine) EdgeSubroutines(from, to *Block, ctx *Context, oracle Oracle) (chain []Nested, handler bool) {
	for _, n := range s.edges[edgeKey{from.ID, to.ID}] {
		if n.Sub == s || ctx.Enters(n.Sub) {
			continue
		}
		if n.Tag == TagFinally {
			handler = true
		}
		chain = append(chain, n)
	}
	if from.Call == nil || from.Call.NewObj || s.Kind != KindMethod || oracle == nil {
		return chain, handler
	}
	if !oracle.IsCallOnThis(Point{Block: from}) {
		return chain, handler
	}
	meta := s.graph.meta
	if meta.IsConstructor(s.Method) {
		return chain, handler
	}
	if inv := s.graph.Invariant(meta.DeclaringType(s.Method)); inv != nil && inv != s && !ctx.Enters(inv) {
		chain = append(chain, Nested{Tag: TagAfterCall, Sub: inv})
	}
	return chain, handler
}

func (s *Subroutine) IsMethod() bool { return s.Kind == KindMethod }

func (s *Subroutine) IsRequires() bool { return s.Kind == KindRequires }

func (s *Subroutine) IsEnsuresOrOldValue() bool {
	return s.Kind == KindEnsures || s.Kind == KindOldValue
}

func (s *Subroutine) IsOldValue() bool { return s.Kind == KindOldValue }

func (s *Subroutine) IsInvariant() bool { return s.Kind == KindInvariant }

func (s *Subroutine) IsFaultFinally() bool {
	return s.Kind == KindFault || s.Kind == KindFinally
}

// HasContextDependentStackDepth is false for regions whose stack starts empty
// wherever they are entered: method bodies and fault/finally handlers.
func (s *Subroutine) HasContextDependentStackDepth() bool {
	return !s.IsMethod() && !s.IsFaultFinally()
}

// HasReturnValue reports whether the exit of s carries a result on the stack
func (s *Subroutine) HasReturnValue() bool {
	return s.IsMethod() && s.Method != nil && !s.graph.meta.IsVoid(s.Method)
}

// StackDelta is the net stack effect of running s as an edge subroutine.
// When derived is true the delta is the depth s leaves at its exit.
func (s *Subroutine) StackDelta() (delta int, derived bool) {
	switch s.Kind {
	case KindOldValue:
		return 0, true
	case KindSimple:
		return s.Delta, false
	default:
		return 0, false
	}
}

func (s *Subroutine) String() string {
	if s.Name != "" {
		return s.Name
	}
	return fmt.Sprintf("SR%d", s.ID)
}

// Graph owns the subroutines of one analysis unit
type Graph struct {
	meta       metadata.Provider
	subs       []*Subroutine
	invariants map[string]*Subroutine
}

// NewGraph creates an empty graph over the given metadata
func NewGraph(meta metadata.Provider) *Graph {
	return &Graph{meta: meta, invariants: make(map[string]*Subroutine)}
}

// Meta returns the metadata provider the graph was built against
func (g *Graph) Meta() metadata.Provider { return g.meta }

// NewSubroutine creates a subroutine with empty entry and exit blocks
func (g *Graph) NewSubroutine(kind Kind, method *metadata.Method) *Subroutine {
	s := &Subroutine{
		ID:     len(g.subs),
		Kind:   kind,
		Method: method,
		succ:   make(map[int][]*Block),
		edges:  make(map[edgeKey][]Nested),
		graph:  g,
	}
	s.Entry = &Block{ID: 0, Label: "entry", Sub: s}
	s.Exit = &Block{ID: 1, Label: "exit", Sub: s}
	g.subs = append(g.subs, s)
	return s
}

// Subroutines returns all subroutines in creation order
func (g *Graph) Subroutines() []*Subroutine {
	return g.subs
}

// Lookup finds a subroutine by name
func (g *Graph) Lookup(name string) (*Subroutine, bool) {
	for _, s := range g.subs {
		if s.Name == name {
			return s, true
		}
	}
	return nil, false
}

// SetInvariant registers inv as the object invariant of t
func (g *Graph) SetInvariant(t *metadata.Type, inv *Subroutine) {
	inv.Type = t
	g.invariants[t.Name] = inv
}

// Invariant returns the registered invariant of t, or nil
func (g *Graph) Invariant(t *metadata.Type) *Subroutine {
	if t == nil {
		return nil
	}
	return g.invariants[t.Name]
}
