package session

import (
	"context"
	"errors"

	"github.com/samber/lo"

	"github.com/alger-org/alger/internal/cmn/logger"
	"github.com/alger-org/alger/internal/cmn/logger/tag"
	"github.com/alger-org/alger/internal/models"
	"github.com/alger-org/alger/internal/pipeline"
	"github.com/alger-org/alger/internal/protocol"
)

func (s *Session) handleLogin(ctx context.Context, msg protocol.Message) response {
	username := contentString(msg.Content, "username")
	password := contentString(msg.Content, "password")
	success := username == s.handler.cfg.Server.Auth.Username &&
		password == s.handler.cfg.Server.Auth.Password

	err := s.handler.store.RecordLoginAttempt(ctx, s.rc.UserID, success, map[string]any{
		"messageId":         msg.ID,
		"requestedUsername": username,
	})
	if err != nil {
		logger.Warn(ctx, "Failed to record login attempt", tag.User(username), tag.Error(err))
	}

	if !success {
		return errResponse(protocol.CodeLoginError, "unknown credentials or password mismatch")
	}
	s.recordAction(ctx, "login", map[string]any{"messageId": msg.ID})
	return okResponse(protocol.CodeLoginOK, map[string]any{"status": "login-ok"})
}

func (s *Session) handleUserData(ctx context.Context, msg protocol.Message) response {
	userID := contentString(msg.Content, "userId")
	if userID == "" {
		return errResponse(protocol.CodeUserDataError, "userId is required")
	}
	// Credentials only identify the configured account; a session can read
	// nobody's profile but its own.
	if userID != s.rc.Username {
		return errResponse(protocol.CodeUserDataError, "user '%s' not found", userID)
	}

	user, err := s.handler.store.EnsureUser(ctx, userID, models.UserDefaults{})
	if err != nil {
		logger.Error(ctx, "Failed to load user profile", tag.User(userID), tag.Error(err))
		return errResponse(protocol.CodeUserDataError, "user '%s' not found", userID)
	}

	s.recordAction(ctx, "get_user_data", map[string]any{"userId": userID})
	return okResponse(protocol.CodeUserDataOK, map[string]any{"user": user.Profile()})
}

func (s *Session) handleListPipelines(ctx context.Context, msg protocol.Message) response {
	pipelines, err := s.handler.store.ListPipelines(ctx)
	if err != nil {
		logger.Error(ctx, "Failed to list pipelines", tag.Error(err))
		return errResponse(protocol.CodePipelinesError, "no pipeline data available")
	}
	if len(pipelines) == 0 {
		return errResponse(protocol.CodePipelinesError, "no pipeline data available")
	}

	payloads := lo.Map(pipelines, func(p models.Pipeline, _ int) map[string]any {
		return p.Payload()
	})
	s.recordAction(ctx, "list_pipelines", map[string]any{"pipelineCount": len(pipelines)})
	return okResponse(protocol.CodePipelinesOK, map[string]any{"pipelines": payloads})
}

func (s *Session) handleExecuteFromDB(ctx context.Context, msg protocol.Message) response {
	pipelineID := contentString(msg.Content, "pipelineId")
	if pipelineID == "" {
		return errResponse(protocol.CodeExecuteDBError, "pipelineId is required")
	}

	stored, err := s.handler.store.GetPipeline(ctx, pipelineID)
	if err != nil {
		if !errors.Is(err, models.ErrPipelineNotFound) {
			logger.Error(ctx, "Failed to load pipeline", tag.Pipeline(pipelineID), tag.Error(err))
		}
		return errResponse(protocol.CodeExecuteDBError, "pipeline not found")
	}
	if len(stored.FullGraph) == 0 {
		return errResponse(protocol.CodeExecuteDBError, "pipeline graph missing")
	}

	if rejected := s.admit(ctx); rejected != nil {
		return *rejected
	}

	return s.startExecution(ctx, msg, executionSpec{
		pipeline: &stored,
		graph:    stored.FullGraph,
		source:   models.SourceDB,
		errCode:  protocol.CodeExecuteDBError,
		ackCode:  protocol.CodeExecuteDBOK,
	})
}

func (s *Session) handleExecuteFromPayload(ctx context.Context, msg protocol.Message) response {
	graph := contentMap(msg.Content, "graph")
	if len(graph) == 0 {
		return errResponse(protocol.CodeExecuteInlineError, "graph definition missing")
	}

	if rejected := s.admit(ctx); rejected != nil {
		return *rejected
	}

	return s.startExecution(ctx, msg, executionSpec{
		graph:   graph,
		source:  models.SourcePayload,
		errCode: protocol.CodeExecuteInlineError,
		ackCode: protocol.CodeExecuteInlineOK,
	})
}

// executionSpec parameterises the shared execute path over its two request
// shapes.
type executionSpec struct {
	pipeline *models.Pipeline
	graph    map[string]any
	source   string
	errCode  int
	ackCode  int
}

// startExecution creates the durable execution row and returns the
// acknowledgement response carrying the background runner.
func (s *Session) startExecution(ctx context.Context, msg protocol.Message, spec executionSpec) response {
	pipelineID := ""
	if spec.pipeline != nil {
		pipelineID = spec.pipeline.ID
	}

	execution, err := s.handler.store.CreateExecution(ctx, models.NewExecution{
		PipelineID:  pipelineID,
		Source:      spec.source,
		Graph:       spec.graph,
		Params:      contentMap(msg.Content, "params"),
		RequestedBy: s.rc.UserID,
		Status:      models.StatusRunning,
	})
	if err != nil {
		logger.Error(ctx, "Failed to create execution row", tag.Pipeline(pipelineID), tag.Error(err))
		return errResponse(spec.errCode, "failed to create execution")
	}

	run := &pipelineRun{
		session:     s,
		execution:   execution,
		pipeline:    spec.pipeline,
		graph:       spec.graph,
		strategy:    contentString(msg.Content, "strategy"),
		requestID:   msg.ID,
		requestType: msg.Type,
	}
	return response{
		code: spec.ackCode,
		content: map[string]any{
			"executionId": execution.ID,
			"status":      "pipeline-execution-started",
		},
		task: run.run,
	}
}

// admit applies the execution admission gate in its fixed order. A nil result
// admits the request.
func (s *Session) admit(ctx context.Context) *response {
	state := s.handler.state
	if state.MaintenanceMode {
		r := errResponse(protocol.CodeMaintenanceMode, "Pipelines unavailable while maintenance mode is active.")
		return &r
	}
	if state.ExecutionsHalted {
		r := errResponse(protocol.CodeExecutionsHalted, "Pipeline executions are halted.")
		return &r
	}

	active, err := s.handler.store.CountActiveExecutions(ctx)
	if err != nil {
		// Cannot prove capacity; refuse rather than oversubscribe.
		logger.Error(ctx, "Failed to count active executions", tag.Error(err))
		r := errResponse(protocol.CodeTooManyExecutions, "Too many pipeline execution requests in progress.")
		return &r
	}
	if active >= state.MaxConcurrentExecutions {
		r := response{code: protocol.CodeTooManyExecutions, content: map[string]any{
			"error":            "Too many pipeline execution requests in progress.",
			"activeExecutions": active,
		}}
		return &r
	}
	return nil
}

func (s *Session) handleStopExecution(ctx context.Context, msg protocol.Message) response {
	executionID := contentString(msg.Content, "executionId")
	if executionID == "" {
		return errResponse(protocol.CodeStopError, "executionId is required")
	}

	if _, err := s.handler.store.GetExecution(ctx, executionID); err != nil {
		if !errors.Is(err, models.ErrExecutionNotFound) {
			logger.Error(ctx, "Failed to load execution", tag.Execution(executionID), tag.Error(err))
		}
		return errResponse(protocol.CodeStopError, "execution not found")
	}

	// Terminal statuses are sticky, so stopping an already finished run is a
	// durable no-op; the acknowledgement is idempotent either way. A running
	// engine is not interrupted here: its polled gate aborts before the next
	// node.
	if err := s.handler.store.UpdateExecutionStatus(ctx, executionID, models.StatusStopped, nil); err != nil {
		logger.Error(ctx, "Failed to mark execution stopped", tag.Execution(executionID), tag.Error(err))
		return errResponse(protocol.CodeStopError, "failed to stop execution")
	}

	s.recordAction(ctx, "stop_execution", map[string]any{"executionId": executionID})
	return okResponse(protocol.CodeStopOK, map[string]any{
		"executionId": executionID,
		"status":      "stopped",
	})
}

func (s *Session) handleRequestOutput(ctx context.Context, msg protocol.Message) response {
	executionID := contentString(msg.Content, "executionId")
	if executionID == "" {
		return errResponse(protocol.CodeFailed, "executionId is required")
	}

	execution, err := s.handler.store.GetExecution(ctx, executionID)
	if err != nil {
		if !errors.Is(err, models.ErrExecutionNotFound) {
			logger.Error(ctx, "Failed to load execution", tag.Execution(executionID), tag.Error(err))
		}
		return errResponse(protocol.CodeFailed, "execution not found")
	}

	switch execution.Status {
	case models.StatusFinished:
		s.recordAction(ctx, "request_output", map[string]any{"executionId": executionID})
		return okResponse(protocol.CodeFinished, map[string]any{
			"executionId": executionID,
			"file":        execution.Output.File,
			"content":     pipeline.DecodeSummary(execution.Output.Content),
		})
	case models.StatusFailed:
		return response{code: protocol.CodeFailed, content: map[string]any{
			"executionId": executionID,
			"status":      "failed",
			"file":        execution.Output.File,
			"content":     pipeline.DecodeSummary(execution.Output.Content),
		}}
	case models.StatusRunning:
		return errResponse(protocol.CodeFailed, "execution '%s' is still running", executionID)
	default:
		return errResponse(protocol.CodeFailed, "execution '%s' is not available (status=%s)", executionID, execution.Status)
	}
}

// recordAction audits a user-triggered event; failures only warn.
func (s *Session) recordAction(ctx context.Context, action string, details map[string]any) {
	if err := s.handler.store.RecordUserAction(ctx, s.rc.UserID, action, details); err != nil {
		logger.Warn(ctx, "Failed to record user action", tag.String("action", action), tag.Error(err))
	}
}
