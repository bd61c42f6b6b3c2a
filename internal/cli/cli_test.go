package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const zlibTOML = `package = "zlib"

[[versions]]
version = "1.3.1"

[[versions]]
version = "1.2.13"

[[variants]]
name = "shared"
default = true
`

const curlTOML = `package = "curl"

[[versions]]
version = "8.6.0"

[[depends]]
spec = "zlib@1.3:"
`

func writeRepo(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, data := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(data), 0644))
	}
	return dir
}

func TestResolvePlanEndToEnd(t *testing.T) {
	repo := writeRepo(t, map[string]string{
		"zlib.toml": zlibTOML,
		"curl.toml": curlTOML,
	})

	p, err := resolvePlan(context.Background(), []string{"curl"}, repo, true, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"zlib", "curl"}, p.Order)

	zlib, ok := p.Node("zlib")
	require.True(t, ok)
	assert.Equal(t, "1.3.1", zlib.Version)
	assert.Equal(t, "true", zlib.Variants["shared"])
}

func TestResolvePlanUsesCache(t *testing.T) {
	repo := writeRepo(t, map[string]string{"zlib.toml": zlibTOML})
	cacheDir := t.TempDir()

	first, err := resolvePlan(context.Background(), []string{"zlib"}, repo, false, cacheDir)
	require.NoError(t, err)
	second, err := resolvePlan(context.Background(), []string{"zlib"}, repo, false, cacheDir)
	require.NoError(t, err)

	d1, err := first.Digest()
	require.NoError(t, err)
	d2, err := second.Digest()
	require.NoError(t, err)
	assert.Equal(t, d1, d2)
}

func TestWriteTable(t *testing.T) {
	repo := writeRepo(t, map[string]string{
		"zlib.toml": zlibTOML,
		"curl.toml": curlTOML,
	})
	p, err := resolvePlan(context.Background(), []string{"curl"}, repo, true, "")
	require.NoError(t, err)

	var buf bytes.Buffer
	writeTable(&buf, p)
	out := buf.String()
	assert.Contains(t, out, "PACKAGE")
	assert.Contains(t, out, "zlib")
	assert.Contains(t, out, "shared=true")
	assert.Contains(t, out, "gcc@13.2.0")
}

func TestExampleRepositoryResolves(t *testing.T) {
	repo := filepath.Join("..", "..", "examples", "recipes")
	if _, err := os.Stat(repo); err != nil {
		t.Skip("example repository not present")
	}

	p, err := resolvePlan(context.Background(), []string{"hpxsc +cuda"}, repo, true, "")
	require.NoError(t, err)

	hpx, ok := p.Node("hpx")
	require.True(t, ok)
	assert.Equal(t, "true", hpx.Variants["cuda"])
	assert.Contains(t, hpx.Compiler, "gcc", "declared conflict steers CUDA builds to gcc")

	kokkos, ok := p.Node("kokkos")
	require.True(t, ok)
	assert.Equal(t, "true", kokkos.Variants["cuda"])
}

func TestJoinOrDash(t *testing.T) {
	assert.Equal(t, "-", joinOrDash(nil))
	assert.Equal(t, "a b", joinOrDash([]string{"a", "b"}))
}
