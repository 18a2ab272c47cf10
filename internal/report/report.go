// Package report turns the depth tables of an analysis session into
// per-subroutine reports and renders them as text.
package report

import (
	"github.com/funvibe/ilstack/internal/cfg"
	"github.com/funvibe/ilstack/internal/stackdepth"
)

// Row is the depth of one program point
type Row struct {
	Block    string
	Index    int
	Local    int
	Global   int
	Terminal bool
}

// Table is the depth report of one subroutine under one context
type Table struct {
	Subroutine string
	Kind       string
	Method     string
	Context    string
	Rows       []Row

	// CallsOnThis lists blocks ending in a call on the receiver
	CallsOnThis []string

	MaxDepth int
}

// Build computes the report of sub under ctx. Analysis invariant violations
// are returned as errors.
func Build(p *stackdepth.Provider, sub *cfg.Subroutine, ctx *cfg.Context) (*Table, error) {
	t := &Table{
		Subroutine: sub.String(),
		Kind:       sub.Kind.String(),
		Context:    ctx.String(),
	}
	if sub.Method != nil {
		t.Method = sub.Method.FullName()
	}

	err := stackdepth.Catch(func() {
		for _, b := range sub.Blocks() {
			for i := 0; i <= b.Count; i++ {
				pc := cfg.At(b, i, ctx)
				row := Row{
					Block:    b.String(),
					Index:    i,
					Local:    p.LocalDepth(pc),
					Global:   p.GlobalDepth(pc),
					Terminal: pc.IsEnd(),
				}
				t.MaxDepth = max(t.MaxDepth, row.Global)
				t.Rows = append(t.Rows, row)
			}
			if b.Call != nil && p.IsCallOnThis(cfg.Begin(b, nil)) {
				t.CallsOnThis = append(t.CallsOnThis, b.String())
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// BuildAll reports every subroutine in subs at the root context, stopping at
// the first failure
func BuildAll(p *stackdepth.Provider, subs []*cfg.Subroutine) ([]*Table, error) {
	out := make([]*Table, 0, len(subs))
	for _, s := range subs {
		t, err := Build(p, s, nil)
		if err != nil {
			return out, err
		}
		out = append(out, t)
	}
	return out, nil
}
