package api

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-chi/chi/v5"

	"github.com/alger-org/alger/internal/cmn/fileutil"
	"github.com/alger-org/alger/internal/cmn/logger"
	"github.com/alger-org/alger/internal/cmn/logger/tag"
	"github.com/alger-org/alger/internal/models"
	"github.com/alger-org/alger/internal/pipeline"
)

// executionSummary is the list-view shape of an execution row.
type executionSummary struct {
	ID           string `json:"id"`
	PipelineID   string `json:"pipelineId,omitempty"`
	Source       string `json:"source"`
	Status       string `json:"status"`
	RequestedBy  string `json:"requestedBy,omitempty"`
	StartedAt    string `json:"startedAt,omitempty"`
	CompletedAt  string `json:"completedAt,omitempty"`
	HasArtifacts bool   `json:"hasArtifacts"`
}

type executionEvent struct {
	Type        string         `json:"type"`
	Description string         `json:"description"`
	Payload     map[string]any `json:"payload,omitempty"`
	CreatedAt   string         `json:"createdAt"`
}

type artifactFile struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
}

func (a *API) listExecutions(w http.ResponseWriter, r *http.Request) {
	var filter models.Status
	filtered := false
	if token := r.URL.Query().Get("status"); token != "" {
		filter = models.ParseStatus(token)
		if filter == models.StatusUnknown {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status filter: %s", token))
			return
		}
		filtered = true
	}

	rows, err := a.store.ListExecutions(r.Context())
	if err != nil {
		logger.Error(r.Context(), "Failed to list executions", tag.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list executions")
		return
	}

	summaries := make([]executionSummary, 0, len(rows))
	for _, row := range rows {
		if filtered && row.Status != filter {
			continue
		}
		summaries = append(summaries, a.toSummary(row))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"executions": summaries,
		"count":      len(summaries),
	})
}

func (a *API) getExecution(w http.ResponseWriter, r *http.Request) {
	executionID := chi.URLParam(r, "executionID")
	row, err := a.store.GetExecution(r.Context(), executionID)
	if errors.Is(err, models.ErrExecutionNotFound) {
		writeError(w, http.StatusNotFound, "execution not found")
		return
	}
	if err != nil {
		logger.Error(r.Context(), "Failed to load execution", tag.Execution(executionID), tag.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load execution")
		return
	}

	events, err := a.store.ListExecutionEvents(r.Context(), executionID)
	if err != nil {
		logger.Error(r.Context(), "Failed to load execution events", tag.Execution(executionID), tag.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load execution events")
		return
	}
	eventViews := make([]executionEvent, 0, len(events))
	for _, ev := range events {
		eventViews = append(eventViews, executionEvent{
			Type:        ev.EventType,
			Description: ev.Description,
			Payload:     ev.Payload,
			CreatedAt:   ev.CreatedAt,
		})
	}

	detail := map[string]any{
		"execution": a.toSummary(row),
		"params":    row.Params,
		"events":    eventViews,
	}
	if row.Output.File != "" {
		detail["output"] = map[string]any{
			"file":    row.Output.File,
			"content": pipeline.DecodeSummary(row.Output.Content),
		}
	}
	writeJSON(w, http.StatusOK, detail)
}

func (a *API) listFiles(w http.ResponseWriter, r *http.Request) {
	executionID := chi.URLParam(r, "executionID")
	if _, err := a.store.GetExecution(r.Context(), executionID); err != nil {
		if errors.Is(err, models.ErrExecutionNotFound) {
			writeError(w, http.StatusNotFound, "execution not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load execution")
		return
	}

	pattern := r.URL.Query().Get("glob")
	if pattern == "" {
		pattern = "**"
	}
	if !doublestar.ValidatePattern(pattern) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid glob pattern: %s", pattern))
		return
	}

	files := make([]artifactFile, 0)
	root := a.artifactRoot(executionID)
	if fileutil.IsDir(root) {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			normalized := filepath.ToSlash(rel)
			if ok, err := doublestar.Match(pattern, normalized); err != nil || !ok {
				return err
			}
			info, err := d.Info()
			if err != nil {
				return err
			}
			files = append(files, artifactFile{Path: normalized, Size: info.Size()})
			return nil
		})
		if err != nil {
			logger.Error(r.Context(), "Failed to scan artifacts", tag.Execution(executionID), tag.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to scan artifacts")
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"executionId": executionID,
		"files":       files,
	})
}

func (a *API) serveFile(w http.ResponseWriter, r *http.Request) {
	executionID := chi.URLParam(r, "executionID")
	if _, err := a.store.GetExecution(r.Context(), executionID); err != nil {
		if errors.Is(err, models.ErrExecutionNotFound) {
			writeError(w, http.StatusNotFound, "execution not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load execution")
		return
	}

	rel := chi.URLParam(r, "*")
	if decoded, err := url.PathUnescape(rel); err == nil {
		rel = decoded
	}
	rel = filepath.FromSlash(rel)
	if !filepath.IsLocal(rel) {
		writeError(w, http.StatusBadRequest, "invalid file path")
		return
	}

	full := filepath.Join(a.artifactRoot(executionID), rel)
	if !fileutil.IsFile(full) {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}
	http.ServeFile(w, r, full)
}

func (a *API) toSummary(row models.Execution) executionSummary {
	return executionSummary{
		ID:           row.ID,
		PipelineID:   row.PipelineID,
		Source:       row.Source,
		Status:       row.Status.String(),
		RequestedBy:  row.RequestedBy,
		StartedAt:    row.StartedAt,
		CompletedAt:  row.CompletedAt,
		HasArtifacts: fileutil.IsDir(a.artifactRoot(row.ID)),
	}
}

func (a *API) artifactRoot(executionID string) string {
	return filepath.Join(a.cfg.Paths.ArtifactsDir, executionID)
}
