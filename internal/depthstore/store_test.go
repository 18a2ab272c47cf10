package depthstore

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/funvibe/ilstack/internal/report"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "db", "depths.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sample() []*report.Table {
	return []*report.Table{
		{
			Subroutine: "spend",
			Kind:       "method",
			Method:     "Wallet::Spend",
			Context:    "{}",
			Rows: []report.Row{
				{Block: "entry", Index: 0},
				{Block: "entry", Index: 1, Local: 1, Global: 1, Terminal: true},
				{Block: "call", Index: 0, Local: 1, Global: 1},
				{Block: "call", Index: 1, Terminal: true},
				{Block: "exit", Index: 0, Terminal: true},
			},
			CallsOnThis: []string{"call"},
			MaxDepth:    1,
		},
		{
			Subroutine: "pay_pre",
			Kind:       "requires",
			Method:     "Wallet::Pay",
			Context:    "{spend:entry->call:beforeCall}",
			Rows: []report.Row{
				{Block: "entry", Index: 0, Local: 0, Global: 2},
				{Block: "entry", Index: 1, Local: 1, Global: 3, Terminal: true},
				{Block: "exit", Index: 0, Local: 0, Global: 2, Terminal: true},
			},
			MaxDepth: 3,
		},
	}
}

func TestOpen(t *testing.T) {
	s := openStore(t)
	assert.Equal(t, "depths.db", filepath.Base(s.Path()))

	// reopening keeps the schema
	again, err := Open(s.Path())
	require.NoError(t, err)
	require.NoError(t, again.Close())
}

func TestSaveAndLoad(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	id, err := s.SaveRun(ctx, "wallet", sample())
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)

	got, err := s.Load(ctx, id)
	require.NoError(t, err)
	if diff := cmp.Diff(sample(), got); diff != "" {
		t.Errorf("loaded tables mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadUnknownRun(t *testing.T) {
	s := openStore(t)
	_, err := s.Load(context.Background(), uuid.New())
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestRuns(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	first, err := s.SaveRun(ctx, "wallet", sample())
	require.NoError(t, err)
	second, err := s.SaveRun(ctx, "wallet", sample()[:1])
	require.NoError(t, err)
	_, err = s.SaveRun(ctx, "flow", nil)
	require.NoError(t, err)

	runs, err := s.Runs(ctx, "wallet")
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second, runs[0].ID)
	assert.Equal(t, 1, runs[0].Tables)
	assert.Equal(t, first, runs[1].ID)
	assert.Equal(t, 2, runs[1].Tables)
	assert.Equal(t, "wallet", runs[1].Fixture)
	assert.False(t, runs[0].Created.IsZero())

	all, err := s.Runs(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestSaveRunCanceled(t *testing.T) {
	s := openStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.SaveRun(ctx, "wallet", sample())
	require.Error(t, err)

	runs, err := s.Runs(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, runs)
}
