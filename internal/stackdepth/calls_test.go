package stackdepth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/funvibe/ilstack/internal/cfg"
)

func TestCallOnThisIsDecidedByTheBlockCall(t *testing.T) {
	fx := load(t, "calls.yaml")
	p := session(fx)

	tests := []struct {
		sub  string
		want bool
	}{
		{"mixed", false},  // receiver call first, then a call on o
		{"flipped", true}, // call on o first, then the receiver call
		{"other", false},  // only a call on o
		{"wire", true},
	}
	for _, tt := range tests {
		t.Run(tt.sub, func(t *testing.T) {
			s := sub(t, fx, tt.sub)
			b1 := block(t, s, "b1")
			for i := 0; i <= b1.Count; i++ {
				assert.Equal(t, tt.want, p.IsCallOnThis(cfg.At(b1, i, nil)), "b1[%d]", i)
			}
		})
	}
}

func TestInvariantFollowsOnlyTheReceiverCall(t *testing.T) {
	fx := load(t, "calls.yaml")
	p := session(fx)
	inv := sub(t, fx, "node_inv")

	mixed := sub(t, fx, "mixed")
	chain, _ := mixed.EdgeSubroutines(block(t, mixed, "b1"), block(t, mixed, "b2"), nil, p)
	assert.Empty(t, chain)
	for _, line := range traceSub(t, p, mixed) {
		assert.NotContains(t, line, "assert inv")
	}

	flipped := sub(t, fx, "flipped")
	chain, _ = flipped.EdgeSubroutines(block(t, flipped, "b1"), block(t, flipped, "b2"), nil, p)
	assert.Equal(t, []cfg.Nested{{Tag: cfg.TagAfterCall, Sub: inv}}, chain)
}

func TestCallDepths(t *testing.T) {
	fx := load(t, "calls.yaml")
	p := session(fx)

	tests := []struct {
		name  string
		sub   string
		block string
		want  []int // depth at every point, terminal last
	}{
		{"instance calls pop receiver and argument", "mixed", "b1", []int{0, 1, 2, 0, 1, 2, 0}},
		{"void call with two parameters pops three", "wire", "b1", []int{0, 1, 2, 3, 0}},
		{"throw resets", "fail", "entry", []int{0, 1, 2, 0}},
		{"catch header starts at one, rethrow resets", "fail", "h", []int{1, 2, 0}},
		{"filter header starts at one", "fail", "f", []int{1, 2, 1, 0}},
		{"jmp resets", "hop", "entry", []int{0, 1, 2, 0}},
		{"endfinally resets", "release", "entry", []int{0, 1, 2, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := block(t, sub(t, fx, tt.sub), tt.block)
			require.Equal(t, len(tt.want), b.Count+1)
			got := make([]int, 0, b.Count+1)
			require.NoError(t, Catch(func() {
				for i := 0; i <= b.Count; i++ {
					got = append(got, p.LocalDepth(cfg.At(b, i, nil)))
				}
			}))
			assert.Equal(t, tt.want, got)
		})
	}
}
