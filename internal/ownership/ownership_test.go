package ownership_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwaldron/snapshift/internal/ownership"
)

func TestNew_Disabled(t *testing.T) {
	a := ownership.New(false)
	_, ok := a.(ownership.NoopApplier)
	assert.True(t, ok)
}

func TestNoop_NeverTouchesFilesystem(t *testing.T) {
	// A path that does not exist must still succeed.
	err := ownership.NoopApplier{}.Apply(filepath.Join(t.TempDir(), "missing"), 0, 0)
	assert.NoError(t, err)
}

func TestChown_SameOwnerSucceeds(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	a := &ownership.ChownApplier{RetryDelay: time.Millisecond}
	err := a.Apply(path, os.Getuid(), os.Getgid())
	assert.NoError(t, err)
}

func TestChown_PermissionDeniedIsIgnored(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("running as root, chown to root cannot fail with EPERM")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	// Chowning to root as an unprivileged user fails with EPERM; the
	// policy retries once and then swallows the failure.
	a := &ownership.ChownApplier{RetryDelay: time.Microsecond}
	err := a.Apply(path, 0, 0)
	assert.NoError(t, err)
}

func TestChown_SymlinkPermissionDeniedIsIgnored(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("running as root, chown to root cannot fail with EPERM")
	}

	dir := t.TempDir()
	link := filepath.Join(dir, "link")
	require.NoError(t, os.Symlink("no-such-target", link))

	a := &ownership.ChownApplier{RetryDelay: time.Microsecond}
	err := a.Apply(link, 0, 0)
	assert.NoError(t, err)
}

func TestChown_MissingPathIsFatal(t *testing.T) {
	a := &ownership.ChownApplier{RetryDelay: time.Microsecond}
	err := a.Apply(filepath.Join(t.TempDir(), "missing"), os.Getuid(), os.Getgid())
	assert.Error(t, err)
}
