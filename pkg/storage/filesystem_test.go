package storage

import (
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLocalStorageSaveOpenDelete(t *testing.T) {
	st, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	name, err := st.Save("schedule_2026-01-19.csv", []byte("Start,End\n"))
	require.NoError(t, err)
	require.Equal(t, "schedule_2026-01-19.csv", name)

	file, err := st.Open(name)
	require.NoError(t, err)
	content, err := io.ReadAll(file)
	require.NoError(t, file.Close())
	require.NoError(t, err)
	require.Equal(t, "Start,End\n", string(content))

	require.NoError(t, st.Delete(name))
	_, err = st.Open(name)
	require.Error(t, err)

	// Deleting again is a no-op.
	require.NoError(t, st.Delete(name))
}

func TestLocalStorageRejectsEscapingNames(t *testing.T) {
	st, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	for _, name := range []string{"../outside.csv", "/etc/passwd", "a/../../b.csv", "."} {
		_, err := st.Save(name, []byte("x"))
		require.Error(t, err, "name %q", name)
	}
}

func TestLocalStorageCleanupOlderThan(t *testing.T) {
	dir := t.TempDir()
	st, err := NewLocalStorage(dir)
	require.NoError(t, err)

	oldName, err := st.Save("old.csv", []byte("old"))
	require.NoError(t, err)
	stale := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(dir+"/old.csv", stale, stale))

	freshName, err := st.Save("fresh.csv", []byte("fresh"))
	require.NoError(t, err)

	removed, err := st.CleanupOlderThan(time.Hour)
	require.NoError(t, err)
	require.Contains(t, removed, oldName)
	require.NotContains(t, removed, freshName)

	_, err = st.Open(oldName)
	require.Error(t, err)
	file, err := st.Open(freshName)
	require.NoError(t, err)
	require.NoError(t, file.Close())
}
