package models

// Execution sources.
const (
	SourceDB      = "db"
	SourcePayload = "payload"
)

// ExecutionOutput is the durable result of an execution: a logical file name
// plus the encoded summary content.
type ExecutionOutput struct {
	File    string `json:"file,omitempty"`
	Content string `json:"content,omitempty"`
}

// Execution is a durable record of one pipeline run.
type Execution struct {
	ID          string          `json:"id"`
	PipelineID  string          `json:"pipeline_id,omitempty"`
	Source      string          `json:"source"`
	Graph       map[string]any  `json:"graph,omitempty"`
	Params      map[string]any  `json:"params"`
	Status      Status          `json:"status"`
	RequestedBy string          `json:"requested_by,omitempty"`
	Output      ExecutionOutput `json:"output"`
	StartedAt   string          `json:"started_at,omitempty"`
	CompletedAt string          `json:"completed_at,omitempty"`
}

// NewExecution carries the attributes for creating an execution row.
type NewExecution struct {
	PipelineID  string
	Source      string
	Graph       map[string]any
	Params      map[string]any
	RequestedBy string
	Status      Status
	Output      ExecutionOutput
}

// ExecutionEvent is an append-only audit entry scoped to one execution.
type ExecutionEvent struct {
	ID          int64
	ExecutionID string
	EventType   string
	Description string
	Payload     map[string]any
	CreatedAt   string
}
