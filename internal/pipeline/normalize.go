package pipeline

import "fmt"

// CanonicalNode is one node of the canonical graph form.
type CanonicalNode struct {
	ID          string         `json:"id"`
	Kind        string         `json:"kind"`
	Params      map[string]any `json:"params"`
	TrackOutput bool           `json:"trackOutput,omitempty"`
}

// CanonicalEdge is a directed edge between two canonical nodes.
type CanonicalEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// CanonicalGraph is the minimal executable graph form produced by Normalize.
type CanonicalGraph struct {
	Nodes []CanonicalNode `json:"nodes"`
	Edges []CanonicalEdge `json:"edges"`
}

// Normalize converts a free-form editor graph into the canonical form. The
// payload may be wrapped in a top-level "pipeline" field or flat.
//
// For each raw node the kind is the first defined of data.kind, data.type,
// kind, type; params default to data.params, then top-level params, then an
// empty mapping. IDs are stringified and must be unique and non-empty.
func Normalize(payload map[string]any) (CanonicalGraph, error) {
	container := payload
	if wrapped, ok := payload["pipeline"]; ok {
		m, ok := wrapped.(map[string]any)
		if !ok {
			return CanonicalGraph{}, errorf("pipeline wrapper must be a mapping")
		}
		container = m
	}

	rawNodes, err := listField(container, "nodes")
	if err != nil {
		return CanonicalGraph{}, err
	}
	rawEdges, err := listField(container, "edges")
	if err != nil {
		return CanonicalGraph{}, err
	}

	graph := CanonicalGraph{
		Nodes: make([]CanonicalNode, 0, len(rawNodes)),
		Edges: make([]CanonicalEdge, 0, len(rawEdges)),
	}

	seenIDs := map[string]struct{}{}
	for _, raw := range rawNodes {
		n, ok := raw.(map[string]any)
		if !ok {
			return CanonicalGraph{}, errorf("each node must be a mapping")
		}
		id := stringifyID(n["id"])
		if id == "" || id == "None" {
			return CanonicalGraph{}, errorf("Each node must have a non-empty string 'id'.")
		}
		if _, dup := seenIDs[id]; dup {
			return CanonicalGraph{}, errorf("Duplicate node id '%s'.", id)
		}
		seenIDs[id] = struct{}{}

		data, _ := n["data"].(map[string]any)
		params, err := extractParams(id, data, n)
		if err != nil {
			return CanonicalGraph{}, err
		}
		graph.Nodes = append(graph.Nodes, CanonicalNode{
			ID:          id,
			Kind:        extractKind(data, n),
			Params:      params,
			TrackOutput: boolFlag(data["trackOutput"]) || boolFlag(n["trackOutput"]),
		})
	}

	for _, raw := range rawEdges {
		e, ok := raw.(map[string]any)
		if !ok {
			return CanonicalGraph{}, errorf("each edge must be a mapping")
		}
		source := stringifyID(e["source"])
		target := stringifyID(e["target"])
		if source == "" || target == "" {
			return CanonicalGraph{}, errorf("Each edge must include 'source' and 'target'.")
		}
		graph.Edges = append(graph.Edges, CanonicalEdge{Source: source, Target: target})
	}

	return graph, nil
}

func listField(container map[string]any, key string) ([]any, error) {
	v, ok := container[key]
	if !ok || v == nil {
		return nil, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, errorf("%s must be a list", key)
	}
	return list, nil
}

// extractKind probes the editor variants for the node kind. Empty values are
// skipped so a blank data.kind falls through to the top-level fields.
func extractKind(data, node map[string]any) string {
	for _, v := range []any{data["kind"], data["type"], node["kind"], node["type"]} {
		if s := stringifyID(v); s != "" {
			return s
		}
	}
	return ""
}

func extractParams(id string, data, node map[string]any) (map[string]any, error) {
	raw, ok := data["params"]
	if !ok {
		raw = node["params"]
	}
	if raw == nil {
		return map[string]any{}, nil
	}
	params, ok := raw.(map[string]any)
	if !ok {
		return nil, errorf("Node '%s' params must be a dict.", id)
	}
	return params, nil
}

func stringifyID(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprintf("%v", s)
	}
}

func boolFlag(v any) bool {
	b, ok := v.(bool)
	return ok && b
}
