package session

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/alger-org/alger/internal/cmn/logger"
	"github.com/alger-org/alger/internal/cmn/logger/tag"
	"github.com/alger-org/alger/internal/models"
	"github.com/alger-org/alger/internal/otel"
	"github.com/alger-org/alger/internal/pipeline"
	"github.com/alger-org/alger/internal/protocol"
)

// pipelineRun drives one background execution: the engine run with its
// observer, tracked artifact persistence, durable status transitions and the
// terminal frame. It runs on its own goroutine after the acknowledgement has
// been sent.
type pipelineRun struct {
	session     *Session
	execution   models.Execution
	pipeline    *models.Pipeline
	graph       map[string]any
	strategy    string
	requestID   int
	requestType int

	// emitted counts observer events; only the runner goroutine touches it.
	emitted int
}

func (r *pipelineRun) run(ctx context.Context) {
	strategy := pipeline.Strategy(r.strategy)
	if strategy == "" {
		strategy = pipeline.DefaultStrategy
	}
	logger.Info(ctx, "Execution started",
		tag.Execution(r.execution.ID), tag.Pipeline(r.pipelineTag()),
		tag.Strategy(string(strategy)), tag.User(r.session.rc.Username))

	tracer, err := otel.NewTracer(ctx, r.session.handler.cfg.Tracing)
	if err != nil {
		logger.Warn(ctx, "Failed to initialize trace exporter", tag.Error(err))
		// Continue without tracing
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracer.Shutdown(shutdownCtx); err != nil {
				logger.Warn(ctx, "Failed to shutdown trace exporter", tag.Error(err))
			}
		}()
	}

	if tracer != nil && tracer.IsEnabled() {
		var span trace.Span
		ctx, span = tracer.Start(ctx, "Execution: "+r.pipelineTag(), trace.WithAttributes(
			attribute.String("execution.id", r.execution.ID),
			attribute.String("execution.pipeline", r.pipelineTag()),
			attribute.String("execution.strategy", string(strategy)),
		))
		defer func() {
			if current, err := r.session.handler.store.GetExecution(ctx, r.execution.ID); err == nil {
				span.SetAttributes(attribute.String("execution.status", current.Status.String()))
			}
			span.End()
		}()
	}

	tracker := newArtifactTracker(r, r.session.handler.cfg.Paths.ArtifactsDir)
	opts := []pipeline.Option{
		pipeline.WithStrategy(strategy),
		pipeline.WithObserver(r.observe(ctx, tracker)),
		pipeline.WithStopCheck(r.stopRequested(ctx)),
	}
	if pacing := r.session.handler.cfg.Pacing; pacing.Enabled {
		opts = append(opts, pipeline.WithPacing(pacing.MinDelay, pacing.MaxDelay))
	}

	started := time.Now()
	var summary map[string]any
	canonical, err := r.normalized()
	if err == nil {
		_, summary, err = pipeline.RunCanonical(canonical, opts...)
	}
	elapsed := time.Since(started)
	r.session.handler.collector.ObserveExecutionDuration(elapsed)

	switch {
	case errors.Is(err, pipeline.ErrStopped):
		r.finishStopped(ctx, err)
	case err != nil:
		r.finishFailed(ctx, strategy, err, elapsed)
	default:
		r.finishOK(ctx, strategy, summary, elapsed)
	}
}

// observe emits one status frame per executed node and hands successful
// outputs to the artifact tracker. It runs on the runner goroutine; sends are
// serialised by the session dispatcher.
func (r *pipelineRun) observe(ctx context.Context, tracker *artifactTracker) pipeline.Observer {
	return func(event pipeline.NodeEvent) {
		r.emitted++
		content := map[string]any{
			"executionId":  r.execution.ID,
			"nodeId":       event.NodeID,
			"nodeKind":     nodeKind(event.Node),
			"status":       "success",
			"durationMs":   durationMillis(event.Duration),
			"predecessors": predecessorList(event.Predecessors),
			"order":        r.emitted,
		}
		if r.pipeline != nil {
			content["pipelineId"] = r.pipeline.ID
		}
		code := protocol.CodeNodeStatus
		if event.Err != nil {
			content["status"] = "error"
			content["error"] = event.Err.Error()
			code = protocol.CodeNodeError
		}

		if span := trace.SpanFromContext(ctx); span.IsRecording() {
			attrs := []attribute.KeyValue{
				attribute.String("node.id", event.NodeID),
				attribute.String("node.kind", nodeKind(event.Node)),
				attribute.Float64("node.duration_ms", durationMillis(event.Duration)),
			}
			if event.Err != nil {
				attrs = append(attrs, attribute.String("node.error", event.Err.Error()))
			}
			span.AddEvent("node", trace.WithAttributes(attrs...))
		}

		if err := r.session.send(ctx, r.requestID, code, content); err != nil {
			logger.Warn(ctx, "Failed to send node status frame",
				tag.Execution(r.execution.ID), tag.Node(event.NodeID), tag.Error(err))
		}
		if event.Err == nil {
			tracker.record(ctx, event)
		}
	}
}

// normalized resolves the executable graph: through the shared cache for
// stored pipelines, directly for inline payloads. The cache key carries the
// row's update timestamp, so a re-imported pipeline is normalized afresh.
func (r *pipelineRun) normalized() (pipeline.CanonicalGraph, error) {
	if r.pipeline == nil {
		return pipeline.Normalize(r.graph)
	}
	return r.session.handler.graphs.LoadLatest(r.pipeline.ID, r.pipeline.UpdatedAt, func() (pipeline.CanonicalGraph, error) {
		return pipeline.Normalize(r.graph)
	})
}

// stopRequested is the polled gate consulted by the engine between nodes. A
// stop request lands in the store first, so a fresh read decides.
func (r *pipelineRun) stopRequested(ctx context.Context) func() bool {
	return func() bool {
		execution, err := r.session.handler.store.GetExecution(ctx, r.execution.ID)
		if err != nil {
			return false
		}
		return execution.Status == models.StatusStopped
	}
}

func (r *pipelineRun) finishOK(ctx context.Context, strategy pipeline.Strategy, summary map[string]any, elapsed time.Duration) {
	store := r.session.handler.store

	encoded, err := pipeline.EncodeSummary(summary)
	if err != nil {
		r.finishFailed(ctx, strategy, err, elapsed)
		return
	}
	output := models.ExecutionOutput{File: r.execution.ID + ".json", Content: encoded}
	if err := store.UpdateExecutionStatus(ctx, r.execution.ID, models.StatusFinished, &output); err != nil {
		logger.Error(ctx, "Failed to persist finished execution",
			tag.Execution(r.execution.ID), tag.Error(err))
	}
	if r.stoppedMeanwhile(ctx) {
		return
	}

	owner, executedBy := r.actors()
	eventPayload := make(map[string]any, len(summary)+2)
	for k, v := range summary {
		eventPayload[k] = v
	}
	eventPayload["pipelineOwner"] = owner
	eventPayload["executedBy"] = executedBy
	r.appendEvent(ctx, "summary", "Execution finished with DAG summary.", eventPayload)

	r.session.recordAction(ctx, "execute_pipeline", map[string]any{
		"executionId": r.execution.ID,
		"pipelineId":  r.pipelineID(),
	})

	logger.Info(ctx, "Execution finished",
		tag.Execution(r.execution.ID), tag.Duration(elapsed))
	r.sendTerminal(ctx, protocol.CodeFinished, map[string]any{
		"executionId": r.execution.ID,
		"status":      "success",
		"summary":     summary,
		"durationMs":  durationMillis(elapsed),
		"strategy":    strategy.Label(),
		"pipelineId":  r.pipelineID(),
	})
}

func (r *pipelineRun) finishFailed(ctx context.Context, strategy pipeline.Strategy, runErr error, elapsed time.Duration) {
	store := r.session.handler.store

	encoded, err := pipeline.EncodeSummary(map[string]any{"error": runErr.Error()})
	if err != nil {
		logger.Error(ctx, "Failed to encode error summary",
			tag.Execution(r.execution.ID), tag.Error(err))
	}
	output := models.ExecutionOutput{File: r.execution.ID + "-error.json", Content: encoded}
	if err := store.UpdateExecutionStatus(ctx, r.execution.ID, models.StatusFailed, &output); err != nil {
		logger.Error(ctx, "Failed to persist failed execution",
			tag.Execution(r.execution.ID), tag.Error(err))
	}
	if r.stoppedMeanwhile(ctx) {
		return
	}

	logErr := store.LogError(ctx, models.ErrorEntry{
		ConversationID: r.session.rc.ConversationID,
		ExecutionID:    r.execution.ID,
		MessageID:      r.requestID,
		TypeCode:       r.requestType,
		Severity:       "pipeline",
		Message:        runErr.Error(),
		Payload: map[string]any{
			"pipelineId": r.pipelineID(),
			"strategy":   strategy.Label(),
		},
	})
	if logErr != nil {
		logger.Warn(ctx, "Failed to record pipeline error",
			tag.Execution(r.execution.ID), tag.Error(logErr))
	}

	logger.Warn(ctx, "Execution failed",
		tag.Execution(r.execution.ID), tag.Duration(elapsed), tag.Error(runErr))
	r.sendTerminal(ctx, protocol.CodeFailed, map[string]any{
		"executionId": r.execution.ID,
		"status":      "error",
		"error":       runErr.Error(),
		"durationMs":  durationMillis(elapsed),
		"strategy":    strategy.Label(),
		"pipelineId":  r.pipelineID(),
	})
}

// finishStopped handles a stop-gate abort. The stop handler already stamped
// the row and acknowledged the client, so no terminal frame is sent.
func (r *pipelineRun) finishStopped(ctx context.Context, runErr error) {
	logger.Info(ctx, "Execution aborted by stop request", tag.Execution(r.execution.ID))
	r.appendEvent(ctx, "stopped", "Execution aborted by stop request.",
		map[string]any{"detail": runErr.Error()})
}

// stoppedMeanwhile reports whether a stop request won the race against the
// engine's completion. The terminal update above was a sticky no-op in that
// case and the client already holds the stop acknowledgement.
func (r *pipelineRun) stoppedMeanwhile(ctx context.Context) bool {
	current, err := r.session.handler.store.GetExecution(ctx, r.execution.ID)
	if err != nil {
		return false
	}
	if current.Status != models.StatusStopped {
		return false
	}
	logger.Info(ctx, "Execution stopped before completion; terminal frame suppressed",
		tag.Execution(r.execution.ID))
	return true
}

func (r *pipelineRun) sendTerminal(ctx context.Context, code int, content map[string]any) {
	if err := r.session.send(ctx, r.requestID, code, content); err != nil {
		logger.Warn(ctx, "Failed to send terminal execution frame",
			tag.Execution(r.execution.ID), tag.Code(code), tag.Error(err))
	}
}

func (r *pipelineRun) appendEvent(ctx context.Context, eventType, description string, payload map[string]any) {
	if err := r.session.handler.store.AddExecutionEvent(ctx, r.execution.ID, eventType, description, payload); err != nil {
		logger.Warn(ctx, "Failed to append execution event",
			tag.Execution(r.execution.ID), tag.Error(err))
	}
}

// pipelineID is the terminal-frame pipeline reference: null for payload runs.
func (r *pipelineRun) pipelineID() any {
	if r.pipeline == nil {
		return nil
	}
	return r.pipeline.ID
}

func (r *pipelineRun) pipelineTag() string {
	if r.pipeline == nil {
		return models.SourcePayload
	}
	return r.pipeline.ID
}

// durationMillis renders a duration as milliseconds with microsecond
// precision, matching the three decimal places clients expect.
func durationMillis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000.0
}

func predecessorList(preds []string) []string {
	if preds == nil {
		return []string{}
	}
	return preds
}

func nodeKind(node *pipeline.Node) string {
	if node == nil || node.Kind == nil {
		return ""
	}
	return node.Kind.Name
}
