package annotations

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestCollector(t *testing.T) {
	var seen []string
	c := NewCollector(func(e Event) { seen = append(seen, e.Name) })

	c.Add(Event{Name: RunBegin})
	c.AddTiming(StratumComplete, time.Now(), map[string]interface{}{"stratum": 0})
	c.AddTiming(StratumComplete, time.Now(), map[string]interface{}{"stratum": 1})

	assert.Equal(t, []string{RunBegin, StratumComplete, StratumComplete}, seen)
	assert.Equal(t, 2, c.Count(StratumComplete))
	assert.Len(t, c.Events(), 3)

	c.Reset()
	assert.Empty(t, c.Events())

	disabled := NewCollector(nil)
	disabled.Add(Event{Name: RunBegin})
	assert.Empty(t, disabled.Events())
}

func TestMulti(t *testing.T) {
	assert.Nil(t, Multi(nil, nil))

	count := 0
	h := func(Event) { count++ }
	Multi(h, nil, h)(Event{Name: RunBegin})
	assert.Equal(t, 2, count)
}

func TestOutputFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := NewOutputFormatter(&buf)

	tests := []struct {
		event Event
		want  string
	}{
		{
			Event{Name: RunBegin, Data: map[string]interface{}{"mode": "batch", "provenance": "unit", "strata.count": 2}},
			"Run (batch, unit) over 2 strata",
		},
		{
			Event{Name: StratumComplete, Data: map[string]interface{}{
				"stratum": 0, "relations": []string{"path"}, "rounds": 3, "facts.changed": 6}},
			"Stratum 0 [path] completed after 3 rounds with 6 facts changed",
		},
		{
			Event{Name: RuleEvaluated, Data: map[string]interface{}{
				"rule": "path(a, c) = path(a, b), edge(b, c)", "delta": "path", "derivations": 2}},
			"path(a, c) = path(a, b), edge(b, c) Δpath → 2 derivations",
		},
		{
			Event{Name: FactsAdded, Data: map[string]interface{}{"relation": "edge", "added": 3, "merged": 1, "facts.count": 3}},
			"Facts into edge(3 facts): 3 added, 1 merged",
		},
		{
			Event{Name: RunComplete, Data: map[string]interface{}{"success": false, "error": "boom"}},
			"Run failed: boom",
		},
	}

	for _, tt := range tests {
		out := f.Format(tt.event)
		assert.True(t, strings.HasSuffix(out, tt.want), "got %q", out)
		assert.True(t, strings.HasPrefix(out, "[0µs]"), "got %q", out)
	}

	f.Handle(tests[0].event)
	assert.Contains(t, buf.String(), "Run (batch, unit)")
}

func TestZapHandler(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	h := NewZapHandler(zap.New(core))
	require.NotNil(t, h)

	h(Event{Name: StratumComplete, Latency: time.Millisecond, Data: map[string]interface{}{
		"stratum": 1, "relations": []string{"path"}, "recursive": true}})
	h(Event{Name: RuleEvaluated, Data: map[string]interface{}{"rule": "r", "derivations": 4}})
	h(Event{Name: RunComplete, Data: map[string]interface{}{"success": false, "error": "boom"}})

	entries := logs.All()
	require.Len(t, entries, 3)

	assert.Equal(t, StratumComplete, entries[0].Message)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	assert.Equal(t, int64(1), fields["stratum"])
	assert.Equal(t, true, fields["recursive"])
	assert.Equal(t, time.Millisecond, fields["latency"])

	assert.Equal(t, zapcore.DebugLevel, entries[1].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)

	assert.Nil(t, NewZapHandler(nil))
}

func TestZapHandlerLevelFilter(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	h := NewZapHandler(zap.New(core))
	h(Event{Name: RuleEvaluated})
	h(Event{Name: RunBegin})
	assert.Equal(t, 1, logs.Len())
}
