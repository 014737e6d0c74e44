package protocol

// Subprotocol is the WebSocket sub-protocol clients must negotiate.
const Subprotocol = "alger"

// Close codes used when the handshake is rejected.
const (
	CloseAuthFailure    = 4401
	CloseBadSubprotocol = 4406
)

// Request type codes (client to server).
const (
	TypeLogin         = 100
	TypeUserData      = 101
	TypeListPipelines = 102
	TypeExecuteDB     = 103
	TypeExecuteInline = 104
	TypeStop          = 106
	TypeOutput        = 107
)

// Response and status codes (server to client). Success responses take the
// request code plus 100, errors plus 200. 205/305 are asynchronous per-node
// status frames; 207/307 are terminal execution frames, also used for
// output retrieval.
const (
	CodeLoginOK         = 200
	CodeUserDataOK      = 201
	CodePipelinesOK     = 202
	CodeExecuteDBOK     = 203
	CodeExecuteInlineOK = 204
	CodeNodeStatus      = 205
	CodeStopOK          = 206
	CodeFinished        = 207

	CodeLoginError         = 300
	CodeUserDataError      = 301
	CodePipelinesError     = 302
	CodeExecuteDBError     = 303
	CodeExecuteInlineError = 304
	CodeNodeError          = 305
	CodeStopError          = 306
	CodeFailed             = 307

	CodeMessageIDError    = 395
	CodeUnknownType       = 396
	CodeTooManyExecutions = 397
	CodeExecutionsHalted  = 398
	CodeMaintenanceMode   = 399
)

// DefaultErrorCode is the code attached to envelope-level protocol errors.
const DefaultErrorCode = CodeUnknownType

// OKCode returns the success response code for a request type.
func OKCode(requestType int) int {
	return requestType + 100
}

// ErrCode returns the error response code for a request type.
func ErrCode(requestType int) int {
	return requestType + 200
}
