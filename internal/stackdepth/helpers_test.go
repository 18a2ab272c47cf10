package stackdepth

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/funvibe/ilstack/internal/cfg"
	"github.com/funvibe/ilstack/internal/fixture"
	"github.com/funvibe/ilstack/internal/il"
)

func load(t *testing.T, name string) *fixture.Fixture {
	t.Helper()
	fx, err := fixture.Load(filepath.Join("testdata", name))
	require.NoError(t, err)
	return fx
}

func session(fx *fixture.Fixture, opts ...Option) *Provider {
	return New(fx.Code, fx.Meta, opts...)
}

func sub(t *testing.T, fx *fixture.Fixture, name string) *cfg.Subroutine {
	t.Helper()
	s, err := fx.Sub(name)
	require.NoError(t, err)
	return s
}

func block(t *testing.T, s *cfg.Subroutine, label string) *cfg.Block {
	t.Helper()
	for _, b := range s.Blocks() {
		if b.Label == label {
			return b
		}
	}
	t.Fatalf("%s has no block %q", s, label)
	return nil
}

// frame builds a one-frame context
func frame(from, to *cfg.Block, tag cfg.Tag) *cfg.Context {
	var root *cfg.Context
	return root.Push(cfg.Frame{From: from, To: to, Tag: tag})
}

// decodeSub decodes every point of s under ctx, without entering edge chains
func decodeSub(t *testing.T, p *Provider, s *cfg.Subroutine, ctx *cfg.Context) []string {
	t.Helper()
	rec := &il.Recorder{}
	d := NewDecoder(p)
	require.NoError(t, Catch(func() {
		for _, b := range s.Blocks() {
			for i := 0; i <= b.Count; i++ {
				d.Decode(cfg.At(b, i, ctx), rec)
			}
		}
	}))
	return il.Lines(rec.Steps)
}

// traceSub decodes s and every edge chain reachable from it
func traceSub(t *testing.T, p *Provider, s *cfg.Subroutine) []string {
	t.Helper()
	rec := &il.Recorder{}
	require.NoError(t, Catch(func() { NewDecoder(p).Trace(s, nil, rec) }))
	return il.Lines(rec.Steps)
}
