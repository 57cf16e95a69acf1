package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Envelope statuses sent by the remote API.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Envelope is the top-level object of every response. Status tags it as
// success or failure; Data carries the payload for the variant.
type Envelope struct {
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`

	endpoint   string
	statusCode int
}

// DecodeEnvelope parses body as an envelope. The endpoint is only used to
// annotate errors produced later from this envelope.
func DecodeEnvelope(endpoint string, body []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &ParseError{Endpoint: endpoint, Field: "envelope", Err: err}
	}
	if env.Status == "" {
		return nil, &ParseError{Endpoint: endpoint, Field: "envelope", Err: errors.New("missing status")}
	}
	env.endpoint = endpoint
	return &env, nil
}

// Endpoint returns the endpoint the envelope was received from.
func (e *Envelope) Endpoint() string {
	return e.endpoint
}

// StatusCode returns the HTTP status of a failure envelope received with an
// error status, and 0 otherwise.
func (e *Envelope) StatusCode() int {
	return e.statusCode
}

// OK reports whether the envelope is the success variant.
func (e *Envelope) OK() bool {
	s := strings.ToLower(strings.TrimSpace(e.Status))
	return s == StatusSuccess || s == "ok"
}

// Err returns a *RemoteError for the failure variant and nil otherwise.
func (e *Envelope) Err() error {
	if e.OK() {
		return nil
	}
	return &RemoteError{Endpoint: e.endpoint, Message: e.FailureMessage(), StatusCode: e.statusCode}
}

// FailureMessage extracts the remote-provided message of a failed envelope.
func (e *Envelope) FailureMessage() string {
	data := bytes.TrimSpace(e.Data)
	if len(data) > 0 && !bytes.Equal(data, []byte("null")) {
		var s string
		if err := json.Unmarshal(data, &s); err == nil && s != "" {
			return s
		}
		var obj struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		if err := json.Unmarshal(data, &obj); err == nil {
			if obj.Message != "" {
				return obj.Message
			}
			if obj.Error != "" {
				return obj.Error
			}
		}
	}
	if e.Message != "" {
		return e.Message
	}
	if len(data) > 0 && !bytes.Equal(data, []byte("null")) {
		return string(data)
	}
	return "unknown error"
}

// Decode unmarshals the success payload into v.
func (e *Envelope) Decode(v any) error {
	if err := e.Err(); err != nil {
		return err
	}
	if len(bytes.TrimSpace(e.Data)) == 0 {
		return &ParseError{Endpoint: e.endpoint, Field: "data", Err: errors.New("missing payload")}
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return &ParseError{Endpoint: e.endpoint, Field: "data", Err: err}
	}
	return nil
}

// Scalar returns the success payload as a string. Both JSON strings and
// bare JSON scalars (numbers, booleans) are accepted.
func (e *Envelope) Scalar() (string, error) {
	if err := e.Err(); err != nil {
		return "", err
	}
	data := bytes.TrimSpace(e.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return "", &ParseError{Endpoint: e.endpoint, Field: "data", Err: errors.New("missing payload")}
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return "", &ParseError{Endpoint: e.endpoint, Field: "data", Err: err}
		}
		return s, nil
	case '{', '[':
		return "", &ParseError{Endpoint: e.endpoint, Field: "data", Err: fmt.Errorf("expected scalar, got %s", data)}
	default:
		return string(data), nil
	}
}

// ID decodes a scalar payload holding a positive integer identifier.
func (e *Envelope) ID() (int64, error) {
	s, err := e.Scalar()
	if err != nil {
		return 0, err
	}
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, &ParseError{Endpoint: e.endpoint, Field: "data", Err: err}
	}
	if id <= 0 {
		return 0, &ParseError{Endpoint: e.endpoint, Field: "data", Err: fmt.Errorf("identifier must be positive, got %d", id)}
	}
	return id, nil
}

// Bool decodes a scalar payload holding "true" or "false".
func (e *Envelope) Bool() (bool, error) {
	s, err := e.Scalar()
	if err != nil {
		return false, err
	}
	switch strings.TrimSpace(s) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return false, &ParseError{Endpoint: e.endpoint, Field: "data", Err: fmt.Errorf("want true or false, got %q", s)}
	}
}
