package session

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/alger-org/alger/internal/cmn/fileutil"
	"github.com/alger-org/alger/internal/cmn/logger"
	"github.com/alger-org/alger/internal/cmn/logger/tag"
	"github.com/alger-org/alger/internal/pipeline"
)

// trackedKinds always have their successful outputs written to the artifact
// store; other nodes opt in per node via trackOutput. The set is matched
// verbatim against kind names, so structural-descriptor nodes are only
// tracked on request.
var trackedKinds = map[string]struct{}{
	"simulation": {},
	"structural": {},
	"figure":     {},
	"text":       {},
	"log":        {},
}

const (
	artifactDirPermissions  = 0750
	artifactFilePermissions = 0600
)

// artifactTracker persists selected node outputs beneath the execution's
// artifact directory and appends one tracked-output event per written file.
// Failures are logged and never fail the run.
type artifactTracker struct {
	run          *pipelineRun
	artifactsDir string
	root         string
}

func newArtifactTracker(run *pipelineRun, artifactsDir string) *artifactTracker {
	return &artifactTracker{
		run:          run,
		artifactsDir: artifactsDir,
		root:         filepath.Join(artifactsDir, run.execution.ID),
	}
}

// record handles one successful node event. Nodes without a trackable output
// and kinds outside the tracked set are skipped.
func (t *artifactTracker) record(ctx context.Context, event pipeline.NodeEvent) {
	if event.Output == nil {
		return
	}
	kind := nodeKind(event.Node)
	if !shouldTrack(kind, event.Node) {
		return
	}

	absPath, format, size, err := t.write(event.NodeID, kind, event.Output)
	if err != nil {
		logger.Warn(ctx, "Failed to persist tracked output",
			tag.Execution(t.run.execution.ID), tag.Node(event.NodeID), tag.Kind(kind), tag.Error(err))
		return
	}

	rel, err := filepath.Rel(t.artifactsDir, absPath)
	if err != nil {
		rel = absPath
	}

	owner, executedBy := t.run.actors()
	t.run.appendEvent(ctx, "tracked-output",
		fmt.Sprintf("Tracked output saved for node '%s' (%s).", event.NodeID, kind),
		map[string]any{
			"nodeId":   event.NodeID,
			"nodeKind": kind,
			"artifact": map[string]any{
				"path":         filepath.ToSlash(rel),
				"absolutePath": absPath,
				"format":       format,
				"size":         size,
			},
			"pipelineOwner": owner,
			"executedBy":    executedBy,
		})
	logger.Debug(ctx, "Tracked output saved",
		tag.Execution(t.run.execution.ID), tag.Node(event.NodeID), tag.File(filepath.ToSlash(rel)))
}

func shouldTrack(kind string, node *pipeline.Node) bool {
	if node != nil && node.TrackOutput {
		return true
	}
	_, forced := trackedKinds[kind]
	return forced
}

// write serialises one output value under <artifacts>/<execution>/<kind>/.
// Tensors keep their raw numeric data; everything else is written in a
// directly inspectable text form.
func (t *artifactTracker) write(nodeID, kind string, out pipeline.Value) (string, string, int64, error) {
	dir := filepath.Join(t.root, fileutil.Slug(kind, "node"))
	if err := os.MkdirAll(dir, artifactDirPermissions); err != nil {
		return "", "", 0, err
	}
	base := fileutil.SafeName(nodeID)
	if base == "" {
		base = "node"
	}

	var absPath, format string
	var err error
	switch v := out.(type) {
	case *pipeline.Tensor:
		absPath, format = filepath.Join(dir, base+".bin"), "bin"
		err = writeTensor(absPath, v)
	case pipeline.Text:
		absPath, format = filepath.Join(dir, base+".txt"), "txt"
		err = os.WriteFile(absPath, []byte(v), artifactFilePermissions)
	case pipeline.Int, pipeline.Float, pipeline.Bool:
		absPath, format = filepath.Join(dir, base+".txt"), "txt"
		err = os.WriteFile(absPath, []byte(fmt.Sprintf("%v", valueJSON(v))), artifactFilePermissions)
	case pipeline.Record:
		absPath, format = filepath.Join(dir, base+".json"), "json"
		err = writeJSON(absPath, map[string]any(v))
	case pipeline.List:
		absPath, format = filepath.Join(dir, base+".json"), "json"
		err = writeJSON(absPath, valueJSON(v))
	default:
		absPath, format = filepath.Join(dir, base+".json"), "json"
		err = writeJSON(absPath, pipeline.Describe(out))
	}
	if err != nil {
		return "", "", 0, err
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return "", "", 0, err
	}
	return absPath, format, info.Size(), nil
}

// writeTensor dumps the raw element data little-endian: one byte per element
// for uint8 tensors, four bytes (IEEE 754 single) otherwise.
func writeTensor(path string, t *pipeline.Tensor) error {
	var buf bytes.Buffer
	if t.DType == pipeline.DTypeUint8 {
		buf.Grow(len(t.Data))
		for _, v := range t.Data {
			buf.WriteByte(uint8(v))
		}
	} else {
		buf.Grow(len(t.Data) * 4)
		scratch := make([]byte, 4)
		for _, v := range t.Data {
			binary.LittleEndian.PutUint32(scratch, math.Float32bits(float32(v)))
			buf.Write(scratch)
		}
	}
	return os.WriteFile(path, buf.Bytes(), artifactFilePermissions)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, artifactFilePermissions)
}

// valueJSON lowers a pipeline value to plain JSON-encodable data. Tensors
// nested inside lists degrade to their descriptive snapshot; their raw data
// only travels in dedicated .bin artifacts.
func valueJSON(v pipeline.Value) any {
	switch t := v.(type) {
	case nil:
		return nil
	case pipeline.Text:
		return string(t)
	case pipeline.Int:
		return int64(t)
	case pipeline.Float:
		return float64(t)
	case pipeline.Bool:
		return bool(t)
	case pipeline.Record:
		return map[string]any(t)
	case pipeline.List:
		items := make([]any, 0, len(t))
		for _, item := range t {
			items = append(items, valueJSON(item))
		}
		return items
	default:
		return pipeline.Describe(v)
	}
}
