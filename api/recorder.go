package api

import (
	"context"
	"time"
)

// Call outcomes used as metric labels and in call records.
const (
	OutcomeOK             = "ok"
	OutcomeRemoteError    = "remote_error"
	OutcomeParseError     = "parse_error"
	OutcomeTransportError = "transport_error"
)

// CallRecord describes one completed call to the remote API.
// Params never contain credentials.
type CallRecord struct {
	ID         string        `json:"id"`
	RequestID  string        `json:"request_id"`
	Endpoint   string        `json:"endpoint"`
	Params     Params        `json:"params"`
	Outcome    string        `json:"outcome"`
	Error      string        `json:"error,omitempty"`
	StatusCode int           `json:"status_code,omitempty"`
	Duration   time.Duration `json:"duration"`
	StartedAt  time.Time     `json:"started_at"`
}

// Recorder receives a CallRecord after every call made by a Client.
// Errors returned by Record are logged and otherwise ignored.
type Recorder interface {
	Record(ctx context.Context, rec *CallRecord) error
}
