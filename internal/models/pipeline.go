package models

// Pipeline is a durable pipeline definition. FullGraph stores the raw editor
// JSON verbatim; the canonical executable form is derived from it at run time.
type Pipeline struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	FullGraph   map[string]any `json:"full_graph"`
	Description string         `json:"description,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   string         `json:"created_at,omitempty"`
	UpdatedAt   string         `json:"updated_at,omitempty"`
}

// Nodes returns the node list referenced by the editor graph, or an empty
// slice when the graph carries none.
func (p Pipeline) Nodes() []any {
	root, ok := p.FullGraph["pipeline"].(map[string]any)
	if !ok {
		return []any{}
	}
	nodes, ok := root["nodes"].([]any)
	if !ok {
		return []any{}
	}
	return nodes
}

// Payload hydrates the row into the map shape shipped in the pipeline-list
// response, including the derived nodes field.
func (p Pipeline) Payload() map[string]any {
	fullGraph := p.FullGraph
	if fullGraph == nil {
		fullGraph = map[string]any{}
	}
	metadata := p.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	return map[string]any{
		"id":          p.ID,
		"name":        p.Name,
		"full_graph":  fullGraph,
		"description": p.Description,
		"metadata":    metadata,
		"created_at":  p.CreatedAt,
		"updated_at":  p.UpdatedAt,
		"nodes":       p.Nodes(),
	}
}
