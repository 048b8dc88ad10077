package api

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ContentBlock is one block of a tool response body.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ToolResponse is the wire envelope consumed by the tool dispatcher.
type ToolResponse struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError"`
}

// Meta accompanies every tool payload.
type Meta struct {
	Tool            string `json:"tool"`
	Timestamp       string `json:"timestamp"`
	RequestID       string `json:"request_id"`
	ExecutionTimeMs int64  `json:"execution_time_ms,omitempty"`
	Count           *int   `json:"count,omitempty"`
}

// successPayload is the JSON body of a successful tool call.
type successPayload struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
	Meta    Meta        `json:"meta"`
}

// errorPayload is the JSON body of a failed tool call. ErrorType is a
// stable machine-readable discriminator; ValidationErrors enumerates every
// violated constraint, not just the first.
type errorPayload struct {
	Success          bool     `json:"success"`
	Error            string   `json:"error"`
	ErrorType        string   `json:"errorType"`
	ValidationErrors []string `json:"validation_errors,omitempty"`
	Meta             Meta     `json:"meta"`
}

func newMeta(tool string, started time.Time, count *int) Meta {
	return Meta{
		Tool:            tool,
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
		RequestID:       uuid.NewString(),
		ExecutionTimeMs: time.Since(started).Milliseconds(),
		Count:           count,
	}
}

func successResponse(tool string, started time.Time, data interface{}, count *int) ToolResponse {
	return wrap(successPayload{
		Success: true,
		Data:    data,
		Meta:    newMeta(tool, started, count),
	}, false)
}

func errorResponse(tool string, started time.Time, errType, message string, validationErrors []string) ToolResponse {
	return wrap(errorPayload{
		Success:          false,
		Error:            message,
		ErrorType:        errType,
		ValidationErrors: validationErrors,
		Meta:             newMeta(tool, started, nil),
	}, true)
}

func wrap(payload interface{}, isError bool) ToolResponse {
	text, err := json.Marshal(payload)
	if err != nil {
		// Marshalling our own payload types cannot fail in practice;
		// degrade to a plain error body if it somehow does.
		return ToolResponse{
			Content: []ContentBlock{{Type: "text", Text: `{"success":false,"error":"internal encoding error","errorType":"internal_error"}`}},
			IsError: true,
		}
	}
	return ToolResponse{
		Content: []ContentBlock{{Type: "text", Text: string(text)}},
		IsError: isError,
	}
}
