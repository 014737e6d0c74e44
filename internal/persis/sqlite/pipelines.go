package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/alger-org/alger/internal/models"
)

const pipelineColumns = `id, name, full_graph, description, metadata, created_at, updated_at`

// ListPipelines returns every stored pipeline definition ordered by id.
func (s *Store) ListPipelines(ctx context.Context) ([]models.Pipeline, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+pipelineColumns+` FROM pipelines ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to list pipelines: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var pipelines []models.Pipeline
	for rows.Next() {
		p, err := scanPipeline(rows)
		if err != nil {
			return nil, err
		}
		pipelines = append(pipelines, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: failed to iterate pipelines: %w", err)
	}
	return pipelines, nil
}

// GetPipeline fetches a single pipeline definition.
func (s *Store) GetPipeline(ctx context.Context, pipelineID string) (models.Pipeline, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+pipelineColumns+` FROM pipelines WHERE id = ?`, pipelineID)
	return scanPipeline(row)
}

func scanPipeline(row rowScanner) (models.Pipeline, error) {
	var p models.Pipeline
	var fullGraph string
	var description, metadata sql.NullString
	err := row.Scan(&p.ID, &p.Name, &fullGraph, &description, &metadata,
		&p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Pipeline{}, models.ErrPipelineNotFound
	}
	if err != nil {
		return models.Pipeline{}, fmt.Errorf("sqlite: failed to scan pipeline row: %w", err)
	}
	p.FullGraph = decodeJSONText(fullGraph)
	if p.FullGraph == nil {
		p.FullGraph = map[string]any{}
	}
	p.Description = description.String
	p.Metadata = decodeJSON(metadata)
	return p, nil
}

// UpsertPipeline inserts the definition or, when the id already exists,
// replaces its mutable fields and bumps updated_at.
func (s *Store) UpsertPipeline(ctx context.Context, pipeline models.Pipeline) error {
	if pipeline.ID == "" {
		return errors.New("sqlite: pipeline id cannot be empty")
	}
	fullGraph, err := encodeJSON(pipeline.FullGraph)
	if err != nil {
		return err
	}
	if fullGraph == nil {
		fullGraph = "{}"
	}
	metadata, err := encodeJSON(pipeline.Metadata)
	if err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO pipelines (id, name, full_graph, description, metadata)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name        = excluded.name,
			full_graph  = excluded.full_graph,
			description = excluded.description,
			metadata    = excluded.metadata,
			updated_at  = CURRENT_TIMESTAMP`,
		pipeline.ID, pipeline.Name, fullGraph,
		nullString(pipeline.Description), metadata,
	); err != nil {
		return fmt.Errorf("sqlite: failed to upsert pipeline %s: %w", pipeline.ID, err)
	}
	return nil
}
