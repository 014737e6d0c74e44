package models

// Connection statuses.
const (
	ConnectionOpen   = "open"
	ConnectionClosed = "closed"
)

// ClientInfo describes the remote end of a live connection.
type ClientInfo struct {
	IP        string
	Port      int
	UserAgent string
	Origin    string
	Path      string
}

// Connection is a durable row for one live or past socket connection.
type Connection struct {
	ID             string
	UserID         string
	ClientIP       string
	ClientPort     int
	UserAgent      string
	Origin         string
	Path           string
	Status         string
	ConnectedAt    string
	DisconnectedAt string
}

// MessageDirection labels a logged frame as inbound or outbound.
type MessageDirection string

const (
	DirectionIncoming MessageDirection = "incoming"
	DirectionOutgoing MessageDirection = "outgoing"
)

// Conversation groups the frames exchanged over one connection. Exactly one
// conversation exists per connection and closes with it.
type Conversation struct {
	ID           string
	UserID       string
	ConnectionID string
	StartedAt    string
	EndedAt      string
}

// MessageEntry carries one frame into the conversation log. Zero-valued code
// fields are stored as nulls.
type MessageEntry struct {
	Direction  MessageDirection
	MessageID  int
	RequestID  int
	TypeCode   int
	StatusCode int
	Payload    map[string]any
	Error      string
}

// ConversationMessage is a logged frame read back from the store.
type ConversationMessage struct {
	ID             int64
	ConversationID string
	Direction      MessageDirection
	MessageID      int
	RequestID      int
	TypeCode       int
	StatusCode     int
	Payload        map[string]any
	Error          string
	RecordedAt     string
}

// ErrorEntry carries one diagnostic row into the error log. Optional
// references are left empty when unknown.
type ErrorEntry struct {
	ConversationID string
	ExecutionID    string
	MessageID      int
	TypeCode       int
	Severity       string
	Message        string
	Payload        map[string]any
}

// ErrorLog is a diagnostic row read back from the store.
type ErrorLog struct {
	ID             int64
	ConversationID string
	ExecutionID    string
	MessageID      int
	TypeCode       int
	Severity       string
	Message        string
	Payload        map[string]any
	CreatedAt      string
}

// UserAction is an audit row for a user-triggered event.
type UserAction struct {
	ID        int64
	UserID    string
	Action    string
	Details   map[string]any
	CreatedAt string
}
