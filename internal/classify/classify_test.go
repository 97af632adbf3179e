package classify_test

import (
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwaldron/snapshift/internal/classify"
)

func TestClassify_Directory(t *testing.T) {
	dir := t.TempDir()

	kind, err := classify.Classify(dir)
	require.NoError(t, err)
	assert.Equal(t, classify.Directory, kind)
}

func TestClassify_RegularFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file.txt")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0644))

	kind, err := classify.Classify(path)
	require.NoError(t, err)
	assert.Equal(t, classify.RegularFile, kind)
}

func TestClassify_Symlink(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "target")
	link := filepath.Join(dir, "link")
	require.NoError(t, os.WriteFile(target, []byte("t"), 0644))
	require.NoError(t, os.Symlink("target", link))

	kind, err := classify.Classify(link)
	require.NoError(t, err)
	assert.Equal(t, classify.Symlink, kind)
}

func TestClassify_DanglingSymlinkIsStillSymlink(t *testing.T) {
	dir := t.TempDir()
	link := filepath.Join(dir, "dangling")
	require.NoError(t, os.Symlink("no-such-target", link))

	kind, err := classify.Classify(link)
	require.NoError(t, err)
	assert.Equal(t, classify.Symlink, kind)
}

func TestClassify_Socket(t *testing.T) {
	dir := t.TempDir()
	sock := filepath.Join(dir, "s")

	ln, err := net.Listen("unix", sock)
	if err != nil {
		t.Skipf("cannot create unix socket: %v", err)
	}
	defer ln.Close()

	kind, err := classify.Classify(sock)
	require.NoError(t, err)
	assert.Equal(t, classify.Unsupported, kind)
}

func TestClassify_Missing(t *testing.T) {
	_, err := classify.Classify(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "directory", classify.Directory.String())
	assert.Equal(t, "file", classify.RegularFile.String())
	assert.Equal(t, "symlink", classify.Symlink.String())
	assert.Equal(t, "unsupported", classify.Unsupported.String())
	assert.Equal(t, "unknown", classify.Kind(0).String())
}
