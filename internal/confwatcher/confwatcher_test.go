package confwatcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatch(t *testing.T) {
	fpath := filepath.Join(t.TempDir(), "dashmtx.yml")
	err := os.WriteFile(fpath, []byte("logLevel: info\n"), 0o644)
	require.NoError(t, err)

	w, err := New(fpath)
	require.NoError(t, err)
	defer w.Close()

	time.Sleep(100 * time.Millisecond)

	err = os.WriteFile(fpath, []byte("logLevel: debug\n"), 0o644)
	require.NoError(t, err)

	select {
	case <-w.Watch():
	case <-time.After(2 * time.Second):
		t.Errorf("timed out")
	}
}

func TestCloseWhileWatching(t *testing.T) {
	fpath := filepath.Join(t.TempDir(), "dashmtx.yml")
	err := os.WriteFile(fpath, []byte("logLevel: info\n"), 0o644)
	require.NoError(t, err)

	w, err := New(fpath)
	require.NoError(t, err)
	w.Close()
}
