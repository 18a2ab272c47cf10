package main

import (
	"bytes"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--config", filepath.Join("testdata", "ilstack.yaml")}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestCollectFixtures(t *testing.T) {
	files, err := collectFixtures([]string{filepath.Join("testdata", "fixtures")})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join("testdata", "fixtures", "more", "counter.yml"),
		filepath.Join("testdata", "fixtures", "wallet.yaml"),
	}, files)

	notes := filepath.Join("testdata", "fixtures", "more", "notes.txt")
	files, err = collectFixtures([]string{notes})
	require.NoError(t, err)
	assert.Equal(t, []string{notes}, files)

	_, err = collectFixtures([]string{t.TempDir()})
	assert.ErrorContains(t, err, "no fixtures found")

	_, err = collectFixtures([]string{filepath.Join("testdata", "missing")})
	assert.Error(t, err)
}

func TestDepths(t *testing.T) {
	out, err := execute(t, "depths", filepath.Join("testdata", "fixtures", "wallet.yaml"))
	require.NoError(t, err)

	assert.NotContains(t, out, "# testdata")
	assert.Contains(t, out, "== spend (method Wallet::Spend) ==")
	assert.Contains(t, out, "call            1      0      0  this call")
	assert.Contains(t, out, "max depth 2")
	assert.NotContains(t, out, "pay_pre")
}

func TestDepthsOfDirectory(t *testing.T) {
	out, err := execute(t, "depths", filepath.Join("testdata", "fixtures"))
	require.NoError(t, err)

	counter := strings.Index(out, "# "+filepath.Join("testdata", "fixtures", "more", "counter.yml"))
	wallet := strings.Index(out, "# "+filepath.Join("testdata", "fixtures", "wallet.yaml"))
	require.GreaterOrEqual(t, counter, 0)
	require.Greater(t, wallet, counter)
	assert.Contains(t, out, "== next (method Counter::Next) ==")
}

func TestDepthsSub(t *testing.T) {
	out, err := execute(t, "depths", "--sub", "pay_pre", filepath.Join("testdata", "fixtures", "wallet.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "== pay_pre (requires Wallet::Pay) ==")
	assert.Contains(t, out, "max depth 2")

	_, err = execute(t, "depths", "--sub", "nope", filepath.Join("testdata", "fixtures", "wallet.yaml"))
	assert.ErrorContains(t, err, `no subroutine "nope"`)
}

func TestDecode(t *testing.T) {
	out, err := execute(t, "decode", filepath.Join("testdata", "fixtures", "wallet.yaml"))
	require.NoError(t, err)

	assert.Contains(t, out, "== spend ==")
	for _, line := range []string{
		"s0 = ldarg this",
		"s1 = ldarg n",
		"s2 = ldstack 0 s1",
		"s3 = ldc 0",
		"s2 = cgt s2, s3",
		"assert pre s2",
		"call Wallet::Pay (s0..s1)",
	} {
		assert.Contains(t, out, line)
	}
	assert.Less(t, strings.Index(out, "assert pre"), strings.Index(out, "call Wallet::Pay"))

	out, err = execute(t, "decode", filepath.Join("testdata", "fixtures", "more", "counter.yml"))
	require.NoError(t, err)
	assert.Contains(t, out, "s0 = add s0, s1")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(out), "ret s0"), out)
}

func TestExportAndRuns(t *testing.T) {
	db := filepath.Join(t.TempDir(), "depths.db")

	out, err := execute(t, "export", "--db", db, filepath.Join("testdata", "fixtures"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)

	fields := strings.Split(lines[1], "\t")
	require.Len(t, fields, 2)
	assert.Equal(t, "wallet", fields[1])
	id, err := uuid.Parse(fields[0])
	require.NoError(t, err)

	out, err = execute(t, "runs", "--db", db, "wallet")
	require.NoError(t, err)
	assert.Contains(t, out, id.String())
	assert.NotContains(t, out, "counter")

	out, err = execute(t, "runs", "--db", db, "--show", id.String())
	require.NoError(t, err)
	assert.Contains(t, out, "== spend (method Wallet::Spend) ==")
	assert.Contains(t, out, "this call")

	_, err = execute(t, "runs", "--db", db, "--show", "not-a-uuid")
	assert.ErrorContains(t, err, "invalid run id")
}

func TestBadConfig(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"--config", filepath.Join("testdata", "missing.yaml"), "depths", "x"})
	assert.ErrorContains(t, cmd.Execute(), "reading settings")
}
