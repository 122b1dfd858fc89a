package transcript

import (
	"bufio"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readEntries(t *testing.T, path string) []Entry {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var out []Entry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e Entry
		require.NoError(t, json.Unmarshal(sc.Bytes(), &e))
		out = append(out, e)
	}
	require.NoError(t, sc.Err())
	return out
}

func TestLoggerWritesPerConversationNDJSON(t *testing.T) {
	t.Parallel()

	l, err := NewLogger(Config{Dir: t.TempDir(), QueueSize: 16}, nil)
	require.NoError(t, err)

	l.Log(Entry{IdentityKey: "42", Event: "start", From: "idle", To: "phone"})
	l.Log(Entry{IdentityKey: "42", Event: "phone_accepted", From: "phone", To: "brand"})
	l.Log(Entry{IdentityKey: "7", Event: "start", From: "idle", To: "phone"})
	require.NoError(t, l.Close())

	got := readEntries(t, l.Path("42"))
	require.Len(t, got, 2)
	assert.Equal(t, "phone_accepted", got[1].Event)
	assert.Equal(t, "brand", got[1].To)
	assert.False(t, got[0].Time.IsZero())

	assert.Len(t, readEntries(t, l.Path("7")), 1)
}

func TestLoggerRejectsPathLikeKeys(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	l, err := NewLogger(Config{Dir: dir}, nil)
	require.NoError(t, err)

	l.Log(Entry{IdentityKey: "../escape", Event: "start"})
	require.NoError(t, l.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLoggerCloseTwice(t *testing.T) {
	t.Parallel()

	l, err := NewLogger(Config{Dir: t.TempDir()}, nil)
	require.NoError(t, err)
	require.NoError(t, l.Close())
	assert.ErrorIs(t, l.Close(), ErrClosed)

	l.Log(Entry{IdentityKey: "1", Event: "start"})
}

func TestNewLoggerRequiresDir(t *testing.T) {
	t.Parallel()

	_, err := NewLogger(Config{}, nil)
	assert.Error(t, err)
}
