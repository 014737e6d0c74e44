package pipeline

import "encoding/json"

// Summarize condenses an execution result into the JSON-friendly shape that
// is persisted with the execution record and pushed to clients: the strategy
// label, the executed order, the source ids and a description of every sink
// output.
func Summarize(result *Result) map[string]any {
	sinks := map[string]any{}
	for _, sink := range result.Sinks {
		if out, ok := result.Outputs[sink]; ok {
			sinks[sink] = Describe(out)
		}
	}
	return map[string]any{
		"strategy": result.StrategyLabel,
		"order":    result.Order,
		"sources":  result.Sources,
		"sinks":    sinks,
	}
}

// EncodeSummary renders a summary as a compact JSON document.
func EncodeSummary(summary map[string]any) (string, error) {
	raw, err := json.Marshal(summary)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// DecodeSummary parses a stored summary document. An empty payload decodes
// to an empty map; a payload that is not valid JSON is preserved verbatim
// under the "raw" key instead of failing.
func DecodeSummary(payload string) map[string]any {
	if payload == "" {
		return map[string]any{}
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(payload), &out); err != nil {
		return map[string]any{"raw": payload}
	}
	if out == nil {
		return map[string]any{}
	}
	return out
}
