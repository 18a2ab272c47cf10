package stackdepth

import (
	"go.uber.org/zap"

	"github.com/funvibe/ilstack/internal/cfg"
	"github.com/funvibe/ilstack/internal/il"
)

// Trace decodes every point of sub under ctx in block order and, after each
// block, the edge subroutines on its outgoing edges under the extended
// context. Terminal points that decode to nothing are skipped.
func (d *Decoder) Trace(sub *cfg.Subroutine, ctx *cfg.Context, t il.Visitor[int, il.Run]) {
	for _, b := range sub.Blocks() {
		for i := 0; i <= b.Count; i++ {
			d.Decode(cfg.At(b, i, ctx), t)
		}
		for _, succ := range sub.Successors(b) {
			chain, _ := sub.EdgeSubroutines(b, succ, ctx, d.p)
			for _, n := range chain {
				inner := cfg.End(b, ctx).Enter(n, b, succ)
				d.p.log.Debug("entering edge subroutine",
					zap.String("sub", n.Sub.String()),
					zap.Stringer("tag", n.Tag),
					zap.Stringer("context", inner.Ctx))
				d.Trace(n.Sub, inner.Ctx, t)
			}
		}
	}
}
