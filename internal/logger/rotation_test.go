package logger

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRotatingWriter(t *testing.T) {
	t.Run("create directory if not exists", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "subdir", "test.log")

		rw, err := NewRotatingWriter(logFile, 10, 7, false)
		require.NoError(t, err)
		defer rw.Close()

		_, err = os.Stat(logFile)
		assert.NoError(t, err)
	})

	t.Run("appends to existing file", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "test.log")
		require.NoError(t, os.WriteFile(logFile, []byte("old\n"), 0644))

		rw, err := NewRotatingWriter(logFile, 10, 7, false)
		require.NoError(t, err)
		_, err = rw.Write([]byte("new\n"))
		require.NoError(t, err)
		require.NoError(t, rw.Close())

		data, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.Equal(t, "old\nnew\n", string(data))
	})
}

func rotatedFiles(t *testing.T, logFile string) []string {
	t.Helper()
	files, err := filepath.Glob(logFile + ".*")
	require.NoError(t, err)
	return files
}

func TestRotatingWriterRotate(t *testing.T) {
	t.Run("rotates past the size limit", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "test.log")
		rw, err := NewRotatingWriter(logFile, 1, 7, false)
		require.NoError(t, err)
		rw.maxSize = 16

		_, err = rw.Write([]byte("0123456789\n"))
		require.NoError(t, err)
		_, err = rw.Write([]byte("abcdefghij\n"))
		require.NoError(t, err)
		require.NoError(t, rw.Close())

		rotated := rotatedFiles(t, logFile)
		require.Len(t, rotated, 1)

		old, err := os.ReadFile(rotated[0])
		require.NoError(t, err)
		assert.Equal(t, "0123456789\n", string(old))

		current, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.Equal(t, "abcdefghij\n", string(current))
	})

	t.Run("compresses rotated files", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "test.log")
		rw, err := NewRotatingWriter(logFile, 1, 7, true)
		require.NoError(t, err)
		rw.maxSize = 8

		_, err = rw.Write([]byte("first line\n"))
		require.NoError(t, err)
		_, err = rw.Write([]byte("second line\n"))
		require.NoError(t, err)
		require.NoError(t, rw.Close())

		rotated := rotatedFiles(t, logFile)
		require.Len(t, rotated, 1)
		assert.True(t, strings.HasSuffix(rotated[0], ".gz"))
	})

	t.Run("zero size disables rotation", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "test.log")
		rw, err := NewRotatingWriter(logFile, 0, 7, false)
		require.NoError(t, err)

		for i := 0; i < 10; i++ {
			_, err = rw.Write([]byte("line\n"))
			require.NoError(t, err)
		}
		require.NoError(t, rw.Close())
		assert.Empty(t, rotatedFiles(t, logFile))
	})

	t.Run("concurrent writes", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "test.log")
		rw, err := NewRotatingWriter(logFile, 1, 7, false)
		require.NoError(t, err)
		rw.maxSize = 64

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 20; j++ {
					_, _ = rw.Write([]byte("concurrent\n"))
				}
			}()
		}
		wg.Wait()
		require.NoError(t, rw.Close())

		total := 0
		for _, f := range append(rotatedFiles(t, logFile), logFile) {
			data, err := os.ReadFile(f)
			require.NoError(t, err)
			total += strings.Count(string(data), "concurrent\n")
		}
		assert.Equal(t, 160, total)
	})

	t.Run("write after close fails", func(t *testing.T) {
		rw, err := NewRotatingWriter(filepath.Join(t.TempDir(), "test.log"), 1, 7, false)
		require.NoError(t, err)
		require.NoError(t, rw.Close())

		_, err = rw.Write([]byte("late\n"))
		assert.ErrorIs(t, err, os.ErrClosed)
	})
}

func TestRotatingWriterCleanup(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "test.log")

	stale := logFile + ".20200101-000000.000000000"
	fresh := logFile + ".20990101-000000.000000000"
	require.NoError(t, os.WriteFile(stale, []byte("x"), 0644))
	require.NoError(t, os.WriteFile(fresh, []byte("x"), 0644))
	old := time.Now().AddDate(0, 0, -30)
	require.NoError(t, os.Chtimes(stale, old, old))

	rw, err := NewRotatingWriter(logFile, 1, 7, false)
	require.NoError(t, err)
	defer rw.Close()

	_, err = os.Stat(stale)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(fresh)
	assert.NoError(t, err)

	assert.Equal(t, 0, rw.Cleanup())
}
