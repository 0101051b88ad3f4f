package daemon

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPidFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gpslinkd.pid")

	require.NoError(t, WritePidFile(path, 12345))

	pid, err := ReadPidFile(path)
	require.NoError(t, err)
	assert.Equal(t, 12345, pid)
}

func TestPidFile_FormatIsDecimalPlusNewline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gpslinkd.pid")

	require.NoError(t, WritePidFile(path, 42))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "42\n", string(data))
}

func TestPidFile_NoTempFileLeftBehind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gpslinkd.pid")

	require.NoError(t, WritePidFile(path, 42))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "gpslinkd.pid", entries[0].Name())
}

func TestReadPidFile_Missing(t *testing.T) {
	_, err := ReadPidFile(filepath.Join(t.TempDir(), "missing.pid"))
	assert.True(t, os.IsNotExist(err))
}

func TestReadPidFile_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gpslinkd.pid")
	require.NoError(t, os.WriteFile(path, []byte("not-a-pid\n"), 0644))

	_, err := ReadPidFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed pid file")
}

func TestRemovePidFile_MissingIsNotAnError(t *testing.T) {
	assert.NoError(t, RemovePidFile(filepath.Join(t.TempDir(), "missing.pid")))
}

func TestAlive_Self(t *testing.T) {
	assert.True(t, Alive(os.Getpid()))
}

func TestAlive_InvalidPid(t *testing.T) {
	assert.False(t, Alive(0))
	assert.False(t, Alive(-1))
}

func TestAlive_DeadProcess(t *testing.T) {
	pid := spawnAndReap(t)
	assert.False(t, Alive(pid))
}

// spawnAndReap runs a short-lived child and waits for it, returning a pid
// that is known to be dead.
func spawnAndReap(t *testing.T) int {
	t.Helper()
	cmd := exec.Command("true")
	require.NoError(t, cmd.Run())
	return cmd.Process.Pid
}
