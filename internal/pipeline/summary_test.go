package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStrategyLabel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "breadth-first topological (Kahn)", StrategyKahn.Label())
	assert.Equal(t, "depth-first topological (DFS postorder)", StrategyDFS.Label())
	assert.Equal(t, "spiral", Strategy("spiral").Label())
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	result := &Result{
		Order:         []string{"a", "b"},
		Sources:       []string{"a"},
		Sinks:         []string{"b"},
		Outputs:       map[string]Value{"a": Int(1), "b": Text("done")},
		StrategyLabel: StrategyKahn.Label(),
	}

	summary := Summarize(result)
	assert.Equal(t, "breadth-first topological (Kahn)", summary["strategy"])
	assert.Equal(t, []string{"a", "b"}, summary["order"])
	assert.Equal(t, []string{"a"}, summary["sources"])
	assert.Equal(t, map[string]any{
		"b": map[string]any{"type": "str", "value": "done"},
	}, summary["sinks"])
}

func TestEncodeDecodeSummary(t *testing.T) {
	t.Parallel()

	t.Run("RoundTrip", func(t *testing.T) {
		encoded, err := EncodeSummary(map[string]any{
			"strategy": "breadth-first topological (Kahn)",
			"order":    []string{"a"},
		})
		require.NoError(t, err)
		assert.JSONEq(t, `{"strategy":"breadth-first topological (Kahn)","order":["a"]}`, encoded)

		decoded := DecodeSummary(encoded)
		assert.Equal(t, "breadth-first topological (Kahn)", decoded["strategy"])
		assert.Equal(t, []any{"a"}, decoded["order"])
	})
	t.Run("CompactOutput", func(t *testing.T) {
		encoded, err := EncodeSummary(map[string]any{"a": 1})
		require.NoError(t, err)
		assert.Equal(t, `{"a":1}`, encoded)
	})
}

func TestDecodeSummary(t *testing.T) {
	t.Parallel()

	t.Run("Empty", func(t *testing.T) {
		assert.Equal(t, map[string]any{}, DecodeSummary(""))
	})
	t.Run("Null", func(t *testing.T) {
		assert.Equal(t, map[string]any{}, DecodeSummary("null"))
	})
	t.Run("NotJSON", func(t *testing.T) {
		assert.Equal(t, map[string]any{"raw": "plain text"}, DecodeSummary("plain text"))
	})
	t.Run("NotAnObject", func(t *testing.T) {
		assert.Equal(t, map[string]any{"raw": "[1]"}, DecodeSummary("[1]"))
	})
}
