package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveAbsolutePathWithinRoot(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.go"), []byte(""), 0o644))

	r := New(root)
	resolved, err := r.Resolve(filepath.Join(root, "a.go"), "read")
	require.NoError(t, err)
	assert.Equal(t, "a.go", resolved.RelPath)
	assert.Equal(t, root, resolved.AllowedRoot)
}

func TestResolveRejectsEscapeOutsideRoots(t *testing.T) {
	root := t.TempDir()
	other := t.TempDir()
	r := New(root)

	_, err := r.Resolve(filepath.Join(other, "x.go"), "read")
	assert.Error(t, err)
	var pathErr *PathError
	assert.ErrorAs(t, err, &pathErr)
}

func TestResolveStripsRepeatedRootNamePrefix(t *testing.T) {
	root := t.TempDir()
	base := filepath.Base(root)
	r := New(root)

	resolved, err := r.Resolve(base+"/nested.go", "read")
	require.NoError(t, err)
	assert.Equal(t, "nested.go", resolved.RelPath)
}

func TestResolveStripsQuotesAndWhitespace(t *testing.T) {
	root := t.TempDir()
	r := New(root)

	resolved, err := r.Resolve(`  "nested.go"  `, "read")
	require.NoError(t, err)
	assert.Equal(t, "nested.go", resolved.RelPath)
}

func TestAddRootExpandsAllowedSet(t *testing.T) {
	root := t.TempDir()
	extra := t.TempDir()
	r := New(root)
	r.AddRoot(extra)

	resolved, err := r.Resolve(filepath.Join(extra, "b.go"), "read")
	require.NoError(t, err)
	assert.Equal(t, extra, resolved.AllowedRoot)
	assert.Equal(t, []string{root, extra}, r.Roots())
}

func TestAddRootIsIdempotent(t *testing.T) {
	root := t.TempDir()
	r := New(root)
	r.AddRoot(root)
	assert.Len(t, r.Roots(), 1)
}

func TestResolveEmptyPathIsError(t *testing.T) {
	r := New(t.TempDir())
	_, err := r.Resolve("   ", "read")
	assert.Error(t, err)
}
