package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	restypes "github.com/DailyForkCast/osint-foresight-sub003/pkg/types/resolution"
)

func writeDump(t *testing.T, v interface{}) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "mentions.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func sampleMentions() []restypes.MentionDTO {
	return []restypes.MentionDTO{
		{SourceID: "gleif", RawName: "ACME Corporation", CountryHint: "US"},
		{SourceID: "opencorp", RawName: "ACME Corp.", CountryHint: "US"},
		{SourceID: "sanctions", RawName: "Globex GmbH", CountryHint: "DE"},
		{SourceID: "gleif", RawName: ""},
	}
}

func TestReadMentionDumpArray(t *testing.T) {
	path := writeDump(t, sampleMentions())

	mentions, err := readMentionDump(path)
	require.NoError(t, err)
	assert.Len(t, mentions, 4)
	assert.Equal(t, "ACME Corporation", mentions[0].RawName)
}

func TestReadMentionDumpWrappedObject(t *testing.T) {
	path := writeDump(t, map[string]interface{}{"mentions": sampleMentions()})

	mentions, err := readMentionDump(path)
	require.NoError(t, err)
	assert.Len(t, mentions, 4)
}

func TestReadMentionDumpRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

	_, err := readMentionDump(path)
	assert.Error(t, err)
}

func TestResolveCommandTextOutput(t *testing.T) {
	path := writeDump(t, sampleMentions())

	out, err := execute(t, "resolve", "--input", path, "--run-id", "run-test")
	require.NoError(t, err)

	assert.Contains(t, out, "run run-test")
	assert.Contains(t, out, "mentions:    4")
	// The empty raw name is rejected, the two ACME variants merge.
	assert.Contains(t, out, "rejected:    1")
	assert.Contains(t, out, "entities:    2")
}

func TestResolveCommandJSONOutput(t *testing.T) {
	path := writeDump(t, sampleMentions())

	out, err := execute(t, "resolve", "--input", path, "--run-id", "run-json", "-o", "json")
	require.NoError(t, err)

	var report struct {
		RunID      string            `json:"run_id"`
		Entities   []json.RawMessage `json:"entities"`
		Decisions  []json.RawMessage `json:"decisions"`
		Rejections []json.RawMessage `json:"rejections"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "run-json", report.RunID)
	assert.Len(t, report.Entities, 2)
	assert.Len(t, report.Decisions, 3)
	assert.Len(t, report.Rejections, 1)
}
