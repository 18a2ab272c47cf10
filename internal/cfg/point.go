package cfg

import (
	"fmt"
	"strings"
)

// Tag labels the edge through which a nested subroutine is entered
type Tag uint8

const (
	TagNone Tag = iota
	TagEntry
	TagExit
	TagBeforeCall
	TagAfterCall
	TagBeforeNewObj
	TagAfterNewObj
	TagOld
	TagOldManifest
	TagInherited
	TagExtra
	TagFinally
)

var tagNames = [...]string{
	TagNone:         "none",
	TagEntry:        "entry",
	TagExit:         "exit",
	TagBeforeCall:   "beforeCall",
	TagAfterCall:    "afterCall",
	TagBeforeNewObj: "beforeNewObj",
	TagAfterNewObj:  "afterNewObj",
	TagOld:          "old",
	TagOldManifest:  "oldmanifest",
	TagInherited:    "inherited",
	TagExtra:        "extra",
	TagFinally:      "finally",
}

func (t Tag) String() string {
	if int(t) < len(tagNames) {
		return tagNames[t]
	}
	return fmt.Sprintf("tag(%d)", t)
}

// ParseTag is the inverse of Tag.String
func ParseTag(s string) (Tag, error) {
	for t, name := range tagNames {
		if name == s {
			return Tag(t), nil
		}
	}
	return TagNone, fmt.Errorf("unknown edge tag %q", s)
}

// Transparent tags do not decide how contract arguments are resolved; the
// frame outside them does.
func (t Tag) Transparent() bool {
	return t == TagOld || t == TagInherited || t == TagExtra
}

// Frame is one nested-subroutine edge: control left From toward To and
// entered the subroutine under Tag.
type Frame struct {
	From *Block
	To   *Block
	Tag  Tag
}

// Context is an immutable list of frames, innermost first. The nil context
// is the root.
type Context struct {
	Frame
	Outer *Context
	depth int
}

// Push returns a context with f as the new innermost frame
func (c *Context) Push(f Frame) *Context {
	return &Context{Frame: f, Outer: c, depth: c.Len() + 1}
}

// Len is the number of frames
func (c *Context) Len() int {
	if c == nil {
		return 0
	}
	return c.depth
}

// Equal compares frames structurally
func (c *Context) Equal(o *Context) bool {
	for c != nil && o != nil {
		if c == o {
			return true
		}
		if c.From != o.From || c.To != o.To || c.Tag != o.Tag {
			return false
		}
		c, o = c.Outer, o.Outer
	}
	return c == nil && o == nil
}

// Has reports whether any frame carries tag
func (c *Context) Has(tag Tag) bool {
	for ; c != nil; c = c.Outer {
		if c.Tag == tag {
			return true
		}
	}
	return false
}

// Enters reports whether execution is already inside s further out, i.e. some
// frame left a block of s. The subroutine of the current point is not
// covered.
func (c *Context) Enters(s *Subroutine) bool {
	for ; c != nil; c = c.Outer {
		if c.From != nil && c.From.Sub == s {
			return true
		}
	}
	return false
}

// Governing skips transparent frames and returns the first one that decides
// argument resolution, or nil.
func (c *Context) Governing() *Context {
	for ; c != nil; c = c.Outer {
		if !c.Tag.Transparent() {
			return c
		}
	}
	return nil
}

func (c *Context) String() string {
	if c == nil {
		return "{}"
	}
	var sb strings.Builder
	sb.WriteByte('{')
	for f := c; f != nil; f = f.Outer {
		if f != c {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s:%s->%s:%s", f.From.Sub, f.From, f.To, f.Tag)
	}
	sb.WriteByte('}')
	return sb.String()
}

// Point is a program point: an index within a block under a context
type Point struct {
	Block *Block
	Index int
	Ctx   *Context
}

// At builds the point of instruction i of b
func At(b *Block, i int, ctx *Context) Point {
	return Point{Block: b, Index: i, Ctx: ctx}
}

// Begin is the first point of b
func Begin(b *Block, ctx *Context) Point {
	return Point{Block: b, Ctx: ctx}
}

// End is the terminal point of b, after its last instruction
func End(b *Block, ctx *Context) Point {
	return Point{Block: b, Index: b.Count, Ctx: ctx}
}

// Sub returns the subroutine containing the point
func (p Point) Sub() *Subroutine {
	return p.Block.Sub
}

// IsEnd reports whether p is a terminal point
func (p Point) IsEnd() bool {
	return p.Index == p.Block.Count
}

// Enter returns the entry point of nested when it runs on edge from->to
func (p Point) Enter(nested Nested, from, to *Block) Point {
	ctx := p.Ctx.Push(Frame{From: from, To: to, Tag: nested.Tag})
	return Begin(nested.Sub.Entry, ctx)
}

func (p Point) Equal(q Point) bool {
	return p.Block == q.Block && p.Index == q.Index && p.Ctx.Equal(q.Ctx)
}

func (p Point) String() string {
	return fmt.Sprintf("%s:%s[%d]@%s", p.Block.Sub, p.Block, p.Index, p.Ctx)
}
