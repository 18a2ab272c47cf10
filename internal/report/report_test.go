package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/funvibe/ilstack/internal/cfg"
	"github.com/funvibe/ilstack/internal/config"
	"github.com/funvibe/ilstack/internal/fixture"
	"github.com/funvibe/ilstack/internal/stack"
	"github.com/funvibe/ilstack/internal/stackdepth"
)

const src = `
name: wallet
types:
  - name: Wallet
    fields: [{name: cash, type: int32}]
methods:
  - {name: Spend, type: Wallet, params: [{name: n, type: int32}]}
  - {name: Pay, type: Wallet, params: [{name: n, type: int32}]}
  - {name: Broken, type: Wallet, static: true}
subroutines:
  - name: pay_pre
    kind: requires
    method: Wallet::Pay
    blocks:
      - label: entry
        code: [ldarg n, ldc 0, cgt, assert]
        next: [exit]
  - name: spend
    kind: method
    method: Wallet::Spend
    blocks:
      - label: entry
        code: [ldarg this, ldarg n]
        next: [call]
        edges: [{to: call, tag: beforeCall, sub: pay_pre}]
      - label: call
        code: [call Wallet::Pay]
        next: [exit]
  - name: broken
    kind: method
    method: Wallet::Broken
    blocks:
      - label: entry
        code: [pop]
        next: [exit]
`

func setup(t *testing.T) (*fixture.Fixture, *stackdepth.Provider) {
	t.Helper()
	fx, err := fixture.Parse([]byte(src), "wallet.yaml")
	require.NoError(t, err)
	return fx, stackdepth.New(fx.Code, fx.Meta)
}

func TestBuild(t *testing.T) {
	fx, p := setup(t)
	spend, err := fx.Sub("spend")
	require.NoError(t, err)

	tab, err := Build(p, spend, nil)
	require.NoError(t, err)
	assert.Equal(t, "spend", tab.Subroutine)
	assert.Equal(t, "method", tab.Kind)
	assert.Equal(t, "Wallet::Spend", tab.Method)
	assert.Equal(t, "{}", tab.Context)
	assert.Equal(t, []string{"call"}, tab.CallsOnThis)
	assert.Equal(t, 2, tab.MaxDepth)
	assert.Equal(t, []Row{
		{Block: "entry", Index: 0, Local: 0, Global: 0},
		{Block: "entry", Index: 1, Local: 1, Global: 1},
		{Block: "entry", Index: 2, Local: 2, Global: 2, Terminal: true},
		{Block: "call", Index: 0, Local: 2, Global: 2},
		{Block: "call", Index: 1, Local: 0, Global: 0, Terminal: true},
		{Block: "exit", Index: 0, Local: 0, Global: 0, Terminal: true},
	}, tab.Rows)
}

func TestBuildInContext(t *testing.T) {
	fx, p := setup(t)
	spend, err := fx.Sub("spend")
	require.NoError(t, err)
	pre, err := fx.Sub("pay_pre")
	require.NoError(t, err)

	var root *cfg.Context
	ctx := root.Push(cfg.Frame{From: spend.Entry, To: spend.Blocks()[1], Tag: cfg.TagBeforeCall})
	tab, err := Build(p, pre, ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, tab.MaxDepth)
	assert.Equal(t, Row{Block: "entry", Index: 1, Local: 1, Global: 3}, tab.Rows[1])
	assert.Contains(t, tab.Context, "beforeCall")
}

func TestBuildAllStopsAtFailure(t *testing.T) {
	fx, p := setup(t)
	tables, err := BuildAll(p, fx.Roots())
	require.Error(t, err)
	assert.ErrorIs(t, err, stack.ErrUnderflow)
	assert.Len(t, tables, 1)
	assert.Contains(t, err.Error(), "broken:entry[0]")
}

func TestRender(t *testing.T) {
	fx, p := setup(t)
	spend, err := fx.Sub("spend")
	require.NoError(t, err)
	tab, err := Build(p, spend, nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	r := &Renderer{Out: &buf}
	require.NoError(t, r.RenderAll([]*Table{tab, tab}))

	out := buf.String()
	assert.NotContains(t, out, "\033[")
	assert.Equal(t, 2, strings.Count(out, "== spend (method Wallet::Spend) =="))
	assert.Contains(t, out, "call            1      0      0  this call")
	assert.Contains(t, out, "max depth 2")

	buf.Reset()
	r.Color = true
	require.NoError(t, r.Render(tab))
	assert.Contains(t, buf.String(), ansiBold+"== spend")
	assert.Contains(t, buf.String(), ansiGreen)
}

func TestUseColor(t *testing.T) {
	assert.True(t, UseColor(config.ColorAlways, nil))
	assert.False(t, UseColor(config.ColorNever, os.Stdout))

	f, err := os.Create(filepath.Join(t.TempDir(), "out.txt"))
	require.NoError(t, err)
	defer f.Close()
	assert.False(t, UseColor(config.ColorAuto, f))

	t.Setenv("NO_COLOR", "1")
	assert.False(t, UseColor(config.ColorAuto, os.Stdout))
}
