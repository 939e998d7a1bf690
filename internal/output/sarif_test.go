package output

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeSARIF(t *testing.T, buf *bytes.Buffer) sarifLog {
	t.Helper()
	var log sarifLog
	require.NoError(t, json.Unmarshal(buf.Bytes(), &log))
	return log
}

func TestSARIFWriter_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&SARIFWriter{}).Write(&buf, emptyReport()))

	log := decodeSARIF(t, &buf)
	assert.Equal(t, "2.1.0", log.Version)
	require.Len(t, log.Runs, 1)
	assert.Empty(t, log.Runs[0].Results)
	assert.Contains(t, buf.String(), `"results": []`)
}

func TestSARIFWriter_WithFindings(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&SARIFWriter{}).Write(&buf, sampleReport()))

	log := decodeSARIF(t, &buf)
	run := log.Runs[0]
	assert.Equal(t, "aicr", run.Tool.Driver.Name)
	require.Len(t, run.Results, 3)
	assert.Len(t, run.Tool.Driver.Rules, 3)

	low, high, noLoc := run.Results[0], run.Results[1], run.Results[2]
	assert.Equal(t, "note", low.Level)
	assert.Equal(t, "error", high.Level)
	assert.Equal(t, "warning", noLoc.Level)

	require.Len(t, high.Locations, 1)
	pl := high.Locations[0].PhysicalLocation
	assert.Equal(t, "a.py", pl.ArtifactLocation.URI)
	require.NotNil(t, pl.Region)
	assert.Equal(t, 4, pl.Region.StartLine)
	assert.Equal(t, 6, pl.Region.EndLine)
	require.Len(t, high.Fixes, 1)
	assert.Equal(t, "f2", high.PartialFingerprints["aicrFindingId/v1"])

	assert.Empty(t, noLoc.Locations)
	assert.Contains(t, run.Results[0].RuleID, "pylint/style/")
}

func TestGenerateRuleID_Stable(t *testing.T) {
	f := sampleReport().Findings[0]
	assert.Equal(t, generateRuleID(f), generateRuleID(f))
	g := f
	g.Title = "other"
	assert.NotEqual(t, generateRuleID(f), generateRuleID(g))
}
