package session

import "github.com/alger-org/alger/internal/models"

// actors resolves the audit identities attached to summary and tracked-output
// events. The pipeline owner comes from stored pipeline metadata when
// available, then from owner metadata embedded in the graph document, and
// finally falls back to the requesting user. executedBy is always the
// requesting user.
func (r *pipelineRun) actors() (owner, executedBy models.Actor) {
	rc := r.session.rc
	executedBy = models.Actor{ID: rc.Username, Label: rc.DisplayName}
	if executedBy.Label == "" {
		executedBy.Label = rc.Username
	}

	if r.pipeline != nil {
		if a, ok := models.OwnerFromMeta(r.pipeline.Metadata, rc.Username); ok {
			return a, executedBy
		}
	}
	if a, ok := graphOwner(r.graph, rc.Username); ok {
		return a, executedBy
	}
	return executedBy, executedBy
}

// graphOwner probes a raw graph document for owner metadata: the wrapped
// pipeline document first, then the top level.
func graphOwner(graph map[string]any, fallbackID string) (models.Actor, bool) {
	if wrapped, ok := graph["pipeline"].(map[string]any); ok {
		if a, ok := docOwner(wrapped, fallbackID); ok {
			return a, true
		}
	}
	return docOwner(graph, fallbackID)
}

// docOwner reads a document's meta/metadata mapping, if any, through the
// shared owner-key probing.
func docOwner(doc map[string]any, fallbackID string) (models.Actor, bool) {
	for _, key := range []string{"meta", "metadata"} {
		if meta, ok := doc[key].(map[string]any); ok {
			if a, ok := models.OwnerFromMeta(meta, fallbackID); ok {
				return a, true
			}
		}
	}
	return models.Actor{}, false
}
