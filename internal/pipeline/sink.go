package pipeline

const (
	EventStatus = "status"
	EventResult = "result"
	EventError  = "error"
)

// Sink receives the events of one request.
type Sink interface {
	Emit(event string, data any) error
	Close() error
}

type StatusPayload struct {
	Message string `json:"message"`
	Stage   string `json:"stage"`
}

type ResultMetadata struct {
	RowCount      int    `json:"rowCount"`
	ExecutionTime int64  `json:"executionTime"`
	GeneratedSQL  string `json:"generatedSql"`
	QueryLogID    string `json:"queryLogId,omitempty"`
}

type ResultPayload struct {
	Data     []map[string]any `json:"data"`
	Metadata ResultMetadata   `json:"metadata"`
}

type ErrorBody struct {
	Message     string   `json:"message"`
	Code        string   `json:"code"`
	Suggestions []string `json:"suggestions,omitempty"`
	Tips        []string `json:"tips,omitempty"`
}

type ErrorPayload struct {
	Error  ErrorBody `json:"error"`
	Status int       `json:"status"`
}
