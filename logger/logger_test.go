package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func tempLogger(t *testing.T, level Level) (*Logger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return &Logger{file: f, level: level}, path
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, LevelTrace, ParseLevel("trace"))
	require.Equal(t, LevelDebug, ParseLevel("DEBUG"))
	require.Equal(t, LevelWarn, ParseLevel("warning"))
	require.Equal(t, LevelError, ParseLevel("Error"))
	require.Equal(t, LevelInfo, ParseLevel("bogus"))
	require.Equal(t, "WARN", LevelWarn.String())
}

func TestLevelFiltering(t *testing.T) {
	l, path := tempLogger(t, LevelWarn)

	l.Debug("not this")
	l.Info("not this either")
	l.Warn("warned about %s", "something")
	l.Error("errored")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	require.NotContains(t, out, "not this")
	require.Contains(t, out, "[WARN] warned about something")
	require.Contains(t, out, "[ERROR] errored")
}

func TestSetLevel(t *testing.T) {
	l, path := tempLogger(t, LevelError)
	l.Info("dropped")
	l.SetLevel(LevelInfo)
	l.Info("kept")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotContains(t, string(data), "dropped")
	require.Contains(t, string(data), "kept")
}

func TestTrimKeepsRecentLines(t *testing.T) {
	l, path := tempLogger(t, LevelInfo)
	for i := 0; i < MaxLogLines+50; i++ {
		l.Info("line %d", i)
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.LessOrEqual(t, len(lines), MaxLogLines)
	require.Contains(t, lines[len(lines)-1], "line 5049")
	// The oldest lines were trimmed away.
	require.NotContains(t, string(data), "line 0\n")
}
