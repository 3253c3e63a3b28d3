package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jnidzwetzki/pg-plan-alternatives/internal/store"
	"github.com/jnidzwetzki/pg-plan-alternatives/internal/trace"
)

// seedSessions archives two fixed-time sessions and returns their IDs,
// oldest first.
func seedSessions(t *testing.T, dbPath string) []string {
	t.Helper()
	ctx := context.Background()

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	src, err := trace.ReadAll(strings.NewReader(sampleTrace), trace.Options{})
	require.NoError(t, err)

	older := store.Session{Label: "baseline", Source: "trace.jsonl", CreatedAtNS: 1_000_000_000}
	require.NoError(t, st.WriteSession(ctx, &older, src.Events()))

	newer := store.Session{Label: "rerun", CreatedAtNS: 2_000_000_000}
	require.NoError(t, st.WriteSession(ctx, &newer, src.Events()[:1]))

	return []string{older.ID, newer.ID}
}

func TestSessionsCommand_Empty(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "traces.db")

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewSessionsCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "No sessions archived.\n", buf.String())
}

func TestSessionsCommand_ListsOldestFirst(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "traces.db")
	ids := seedSessions(t, dbPath)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewSessionsCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath})

	require.NoError(t, cmd.Execute())
	out := buf.String()
	assert.Contains(t, out, "2 session(s)")
	assert.Contains(t, out, ids[0]+"  1970-01-01T00:00:01Z  6 event(s)  baseline")
	assert.Contains(t, out, ids[1]+"  1970-01-01T00:00:02Z  1 event(s)  rerun")
	assert.Less(t, strings.Index(out, ids[0]), strings.Index(out, ids[1]))
	assert.NotContains(t, out, "source:", "details need --verbose")
}

func TestSessionsCommand_Verbose(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "traces.db")
	seedSessions(t, dbPath)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text", Verbose: true}
	cmd := NewSessionsCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath})

	require.NoError(t, cmd.Execute())
	out := buf.String()
	assert.Contains(t, out, "  source: trace.jsonl")
	assert.Contains(t, out, "  hash: ")
}

func TestSessionsCommand_JSON(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "traces.db")
	ids := seedSessions(t, dbPath)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewSessionsCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath})

	require.NoError(t, cmd.Execute())

	var response CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &response))
	assert.Equal(t, "ok", response.Status)

	list, ok := response.Data.([]interface{})
	require.True(t, ok)
	require.Len(t, list, 2)

	first, ok := list[0].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, ids[0], first["id"])
	assert.Equal(t, "baseline", first["label"])
	assert.Equal(t, "1970-01-01T00:00:01Z", first["created_at"])
	assert.Equal(t, float64(6), first["event_count"])
}
