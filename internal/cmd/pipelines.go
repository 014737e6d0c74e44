package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/fatih/color"
	"github.com/goccy/go-yaml"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/alger-org/alger/internal/cmn/fileutil"
	"github.com/alger-org/alger/internal/cmn/logger"
	"github.com/alger-org/alger/internal/cmn/logger/tag"
	"github.com/alger-org/alger/internal/models"
	"github.com/alger-org/alger/internal/pipeline"
)

// Pipelines groups the pipeline management subcommands.
func Pipelines() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pipelines",
		Short: "Manage stored pipeline definitions",
	}
	cmd.AddCommand(pipelinesImport())
	cmd.AddCommand(pipelinesList())
	return cmd
}

func pipelinesImport() *cobra.Command {
	return NewCommand(
		&cobra.Command{
			Use:   "import [flags] <file...>",
			Short: "Import pipeline definitions from editor graph files",
			Long: `Read editor graph documents and store them as executable pipelines.

Documents may be JSON or YAML and may wrap the graph in a top-level "pipeline"
field or carry nodes and edges at the root. Each document is validated against
the built-in node kinds before anything is written; an invalid file aborts the
import and leaves the database unchanged for that file.

A document without an id or name is imported under a slug derived from the
file name.

Example:
  alger pipelines import exported-graph.json
  alger pipelines import --name "Nightly Smoke" smoke.yaml
`,
			Args: cobra.MinimumNArgs(1),
		}, importFlags, runImport,
	)
}

var importFlags = []commandLineFlag{nameFlag}

func runImport(ctx *Context, args []string) error {
	nameOverride, err := ctx.Command.Flags().GetString("name")
	if err != nil {
		return fmt.Errorf("failed to get name flag: %w", err)
	}
	if nameOverride != "" && len(args) > 1 {
		return fmt.Errorf("--name applies to a single file, got %d", len(args))
	}

	store, err := ctx.OpenStore()
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error(ctx.Context, "Failed to close database", tag.Error(err))
		}
	}()

	out := ctx.Command.OutOrStdout()
	for _, file := range args {
		stored, nodes, err := importGraphFile(ctx, store, file, nameOverride)
		if err != nil {
			return fmt.Errorf("failed to import %s: %w", file, err)
		}
		fmt.Fprintf(out, "%s %s (%d nodes)\n", color.GreenString("imported"), stored.ID, nodes)
	}
	return nil
}

// importGraphFile reads one editor graph document, validates it against the
// built-in kinds and persists it under the identity resolved from the
// document and the file name. The document is stored verbatim.
func importGraphFile(ctx *Context, store models.Store, file, nameOverride string) (models.Pipeline, int, error) {
	doc, err := readGraphFile(file)
	if err != nil {
		return models.Pipeline{}, 0, err
	}

	canonical, err := pipeline.Normalize(doc)
	if err != nil {
		return models.Pipeline{}, 0, err
	}
	if err := pipeline.Validate(canonical); err != nil {
		return models.Pipeline{}, 0, err
	}

	identity, err := resolveIdentity(doc, file)
	if err != nil {
		return models.Pipeline{}, 0, err
	}
	if nameOverride != "" {
		identity.Name = nameOverride
	}

	stored := models.Pipeline{
		ID:          identity.ID,
		Name:        identity.Name,
		Description: identity.Description,
		FullGraph:   doc,
		Metadata:    map[string]any{"imported_from": filepath.Base(file)},
	}
	if err := store.UpsertPipeline(ctx, stored); err != nil {
		return models.Pipeline{}, 0, err
	}

	logger.Info(ctx, "Pipeline imported",
		tag.Pipeline(stored.ID), tag.File(file), tag.Count(len(canonical.Nodes)))
	return stored, len(canonical.Nodes), nil
}

// pipelineIdentity is the naming envelope of an imported document.
type pipelineIdentity struct {
	ID          string
	Name        string
	Description string
}

// resolveIdentity merges the identity fields carried by the document over
// defaults derived from the file name, so a document without an id or name
// still imports cleanly under the slugged file stem.
func resolveIdentity(doc map[string]any, file string) (pipelineIdentity, error) {
	stem := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))

	identity := map[string]any{
		"id":   fileutil.Slug(stem, "pipeline"),
		"name": stem,
	}
	carried := lo.PickByKeys(documentMeta(doc), []string{"id", "name", "description"})
	if err := mergo.Merge(&identity, carried, mergo.WithOverride); err != nil {
		return pipelineIdentity{}, fmt.Errorf("failed to merge identity defaults: %w", err)
	}

	resolved := pipelineIdentity{
		ID:          strings.TrimSpace(stringish(identity["id"])),
		Name:        strings.TrimSpace(stringish(identity["name"])),
		Description: strings.TrimSpace(stringish(identity["description"])),
	}
	if resolved.ID == "" {
		return pipelineIdentity{}, fmt.Errorf("pipeline id resolved empty")
	}
	return resolved, nil
}

// documentMeta returns the mapping that carries the document's own identity
// fields: the "pipeline" wrapper when present, the document root otherwise.
func documentMeta(doc map[string]any) map[string]any {
	if wrapped, ok := doc["pipeline"].(map[string]any); ok {
		return wrapped
	}
	return doc
}

// readGraphFile reads an editor graph document into a map. goccy/go-yaml
// parses JSON as well, so both export formats go through one decoder.
func readGraphFile(file string) (map[string]any, error) {
	data, err := os.ReadFile(file) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("failed to read file %q: %v", file, err)
	}
	return unmarshalGraph(data)
}

// unmarshalGraph unmarshals the data into a map.
func unmarshalGraph(data []byte) (map[string]any, error) {
	var doc map[string]any
	err := yaml.NewDecoder(bytes.NewReader(data)).Decode(&doc)
	if errors.Is(err, io.EOF) {
		err = nil
	}
	return doc, err
}

func stringish(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprintf("%v", s)
	}
}

func pipelinesList() *cobra.Command {
	return NewCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List stored pipeline definitions",
			Long:  `Print the pipelines stored in the database, one row per definition.`,
		}, nil, runList,
	)
}

var pipelineListHeader = table.Row{"ID", "Name", "Nodes", "Description", "Updated At"}

func runList(ctx *Context, _ []string) error {
	store, err := ctx.OpenStore()
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error(ctx.Context, "Failed to close database", tag.Error(err))
		}
	}()

	pipelines, err := store.ListPipelines(ctx)
	if err != nil {
		return fmt.Errorf("failed to list pipelines: %w", err)
	}

	listTable := table.NewWriter()
	listTable.AppendHeader(pipelineListHeader)
	for _, p := range pipelines {
		listTable.AppendRow(table.Row{
			p.ID,
			p.Name,
			len(p.Nodes()),
			fileutil.TruncString(p.Description, 40),
			p.UpdatedAt,
		})
	}
	fmt.Fprintln(ctx.Command.OutOrStdout(), listTable.Render())
	return nil
}
