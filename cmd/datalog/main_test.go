package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbrown/janus-provenance/datalog/annotations"
	"github.com/wbrown/janus-provenance/datalog/integrate"
)

func testEnv(cfg integrate.Config) (*env, *bytes.Buffer) {
	var buf bytes.Buffer
	return &env{cfg: cfg, out: &buf}, &buf
}

func TestScenarios(t *testing.T) {
	tests := []struct {
		name     string
		run      func(*env) error
		contains []string
	}{
		{"basic", runBasic, []string{"### path", "10 rows"}},
		{"probabilistic", runProbabilistic, []string{"0.8000", "0.7000"}},
		{"proofs", runProofs, []string{"k=3", "### long_path", "path(0, 2) = 0.8880"}},
		{"incremental", runIncremental, []string{"Round 1", "3 paths", "Round 3", "10 paths"}},
		{"functions", runFunctions, []string{"### word_length", "scallop", "SCALLOP", "### pair_max", "6 rows"}},
		{"predicates", runPredicates, []string{"### sequence", "15 rows", "Charlie", "### senior_employee"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, out := testEnv(integrate.DefaultConfig())
			require.NoError(t, tt.run(e))
			for _, want := range tt.contains {
				assert.Contains(t, out.String(), want)
			}
		})
	}
}

func TestSeniorEmployees(t *testing.T) {
	e, out := testEnv(integrate.DefaultConfig())
	require.NoError(t, runPredicates(e))

	section := out.String()[strings.Index(out.String(), "### senior_employee"):]
	assert.Contains(t, section, "Alice")
	assert.Contains(t, section, "Charlie")
	assert.NotContains(t, section, "Bob")
	assert.NotContains(t, section, "Diana")
}

func TestParseEdges(t *testing.T) {
	tests := []struct {
		arg     string
		wantErr string
	}{
		{arg: "0-1"},
		{arg: "3-4@0.25"},
		{arg: "0:1", wantErr: "want FROM-TO[@PROB]"},
		{arg: "a-1", wantErr: "invalid edge"},
		{arg: "0-1@x", wantErr: "invalid edge"},
		{arg: "0-1@1.5", wantErr: "outside [0, 1]"},
	}

	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			facts, err := parseEdges([]string{tt.arg})
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Len(t, facts, 1)
			assert.Len(t, facts[0].Tuple, 2)
		})
	}
}

func TestPathsWithFactLog(t *testing.T) {
	cfg := integrate.DefaultConfig()
	cfg.Provenance = "minmaxprob"
	cfg.FactLog = t.TempDir()

	first, err := parseEdges([]string{"0-1@0.9", "1-2@0.8"})
	require.NoError(t, err)
	e, out := testEnv(cfg)
	require.NoError(t, runPaths(e, first))
	assert.Contains(t, out.String(), "replayed 0 facts")
	assert.Contains(t, out.String(), "3 rows")

	// A second invocation sees the journaled edges
	second, err := parseEdges([]string{"2-3@0.7"})
	require.NoError(t, err)
	e, out = testEnv(cfg)
	require.NoError(t, runPaths(e, second))
	assert.Contains(t, out.String(), "replayed 2 facts")
	assert.Contains(t, out.String(), "6 rows")
}

func TestScenarioEvents(t *testing.T) {
	collector := annotations.NewCollector(func(annotations.Event) {})
	e, _ := testEnv(integrate.DefaultConfig())
	e.handler = collector.Add

	require.NoError(t, runBasic(e))
	assert.Equal(t, 1, collector.Count(annotations.RunBegin))
	assert.Equal(t, 1, collector.Count(annotations.RunComplete))
}
