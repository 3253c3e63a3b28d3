package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validProfile = `profile: {
	name: "postgres-16"
	tags: [
		{value: 402, name: "T_SeqScan"},
		{value: 409, name: "T_HashJoin"},
	]
	joins: [{value: 0, name: "JOIN_INNER"}]
}
`

// writeProfile drops a CUE profile into a temp dir and returns its path.
func writeProfile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profile.cue")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestTagsCommand_BuiltinText(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewTagsCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs(nil)

	require.NoError(t, cmd.Execute())
	out := buf.String()
	assert.Contains(t, out, "Tag table builtin: 37 entr(ies)")
	assert.Contains(t, out, "0  T_Invalid")
	assert.Contains(t, out, "36  T_LimitPath")
	assert.Contains(t, out, "Join kinds: 9")
	assert.Contains(t, out, "0  JOIN_INNER")
}

func TestTagsCommand_HeaderFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nodetags.h")
	header := "\tT_SeqScan = 402,\n\tT_IndexScan = 403,\n"
	require.NoError(t, os.WriteFile(path, []byte(header), 0644))

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewTagsCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--file", path})

	require.NoError(t, cmd.Execute())
	out := buf.String()
	assert.Contains(t, out, "Tag table "+path+": 2 entr(ies)")
	assert.Contains(t, out, "402  T_SeqScan")
	assert.Contains(t, out, "403  T_IndexScan")
}

func TestTagsCommand_Profile(t *testing.T) {
	path := writeProfile(t, validProfile)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewTagsCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--profile", path})

	require.NoError(t, cmd.Execute())
	out := buf.String()
	assert.Contains(t, out, "Tag table postgres-16: 2 entr(ies)", "profile name replaces the path")
	assert.Contains(t, out, "402  T_SeqScan")
	assert.Contains(t, out, "Join kinds: 1")
}

func TestTagsCommand_BrokenProfile(t *testing.T) {
	path := writeProfile(t, "profile: {{{")

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewTagsCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--profile", path})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "E002")
	assert.Contains(t, buf.String(), "Error [E002]:")
}

func TestTagsCommand_SchemaViolation(t *testing.T) {
	path := writeProfile(t, `profile: {name: "empty", tags: []}`)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewTagsCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--profile", path})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, buf.String(), "Error [E003]:")
}

func TestTagsCommand_FileAndProfileConflict(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewTagsCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--file", "a.h", "--profile", "b.cue"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, GetExitCode(err))
}

func TestTagsCommand_JSON(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewTagsCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs(nil)

	require.NoError(t, cmd.Execute())

	var response CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &response))
	assert.Equal(t, "ok", response.Status)

	data, ok := response.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "builtin", data["source"])
	entries, ok := data["entries"].([]interface{})
	require.True(t, ok)
	assert.Len(t, entries, 37)
}

func TestTagsCommand_JSONError(t *testing.T) {
	path := writeProfile(t, "profile: {{{")

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewTagsCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--profile", path})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var response CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &response))
	assert.Equal(t, "error", response.Status)
	require.NotNil(t, response.Error)
	assert.Equal(t, "E002", response.Error.Code)
}

func TestTagsCommand_VerboseLogsToStderr(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nodetags.h")
	require.NoError(t, os.WriteFile(path, []byte("\tT_SeqScan = 402,\n"), 0644))

	outBuf := &bytes.Buffer{}
	errBuf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text", Verbose: true}
	cmd := NewTagsCommand(rootOpts)
	cmd.SetOut(outBuf)
	cmd.SetErr(errBuf)
	cmd.SetArgs([]string{"--file", path})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, errBuf.String(), "Parsing node tags from "+path)
	assert.NotContains(t, outBuf.String(), "Parsing node tags")
}
