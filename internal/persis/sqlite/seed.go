package sqlite

import (
	"context"
	"errors"
	"fmt"

	"github.com/alger-org/alger/internal/models"
)

// Seed provisions the records expected on a fresh database: the admin user
// and, when absent, the demo pipeline. Existing rows are left untouched, so
// operator edits to the demo pipeline survive restarts.
func (s *Store) Seed(ctx context.Context) error {
	defaults := models.UserDefaults{
		DisplayName: "Administrator",
		Email:       "admin@example.com",
		Roles:       []string{"admin", "operator"},
	}
	if _, err := s.EnsureUser(ctx, "admin", defaults); err != nil {
		return fmt.Errorf("sqlite: failed to seed admin user: %w", err)
	}

	_, err := s.GetPipeline(ctx, "demo")
	if err == nil {
		return nil
	}
	if !errors.Is(err, models.ErrPipelineNotFound) {
		return err
	}
	return s.UpsertPipeline(ctx, demoPipeline())
}

// demoPipeline builds the sample pipeline stored on first start. The graph
// uses the editor export format (node payloads wrapped in "data") and is
// executable as stored: a deterministic dataset feeds a smoothing branch that
// ends in a figure and a simulation branch, with a text log joining both.
func demoPipeline() models.Pipeline {
	return models.Pipeline{
		ID:          "demo",
		Name:        "Demo Pipeline",
		Description: "Baseline imaging demo pipeline",
		Metadata:    map[string]any{"seeded": true},
		FullGraph: map[string]any{
			"pipeline": map[string]any{
				"id":   "demo",
				"name": "Demo Pipeline",
				"nodes": []any{
					editorNode("src", "dataset", map[string]any{"shape": []any{4, 32, 32}, "seed": 7}),
					editorNode("smooth", "filter", map[string]any{"kernelSize": 3}),
					editorNode("desc", "structural-descriptor", nil),
					editorNode("sim", "simulation", map[string]any{"steps": 16}),
					editorNode("fig", "figure", map[string]any{"title": "Demo Figure"}),
					editorNode("log", "text", nil),
				},
				"edges": []any{
					editorEdge("src", "smooth"),
					editorEdge("smooth", "desc"),
					editorEdge("desc", "fig"),
					editorEdge("src", "sim"),
					editorEdge("desc", "log"),
					editorEdge("sim", "log"),
				},
			},
		},
	}
}

func editorNode(id, kind string, params map[string]any) map[string]any {
	data := map[string]any{"kind": kind}
	if params != nil {
		data["params"] = params
	}
	return map[string]any{"id": id, "data": data}
}

func editorEdge(source, target string) map[string]any {
	return map[string]any{"source": source, "target": target}
}
