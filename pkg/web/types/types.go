// Package types defines the HTTP request and response shapes for the
// API, including the error envelope every failure response uses.
package types

import (
	"time"

	"skyline-data/tycho/pkg/export"
)

// ErrorDetail is the body of the error envelope.
type ErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
}

// ErrorResponse is the envelope every error response is wrapped in.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// NewValidationError builds a 400 error body.
func NewValidationError(message string) *ErrorResponse {
	return &ErrorResponse{Error: ErrorDetail{Message: message, Type: "invalid_request_error"}}
}

// NewNotFoundError builds a 404 error body.
func NewNotFoundError(message string) *ErrorResponse {
	return &ErrorResponse{Error: ErrorDetail{Message: message, Type: "not_found_error"}}
}

// NewConflictError builds a 409 error body.
func NewConflictError(message string) *ErrorResponse {
	return &ErrorResponse{Error: ErrorDetail{Message: message, Type: "conflict_error"}}
}

// NewTooManyTasksError builds the 429 error body for the per-user
// concurrent export limit.
func NewTooManyTasksError(message string) *ErrorResponse {
	return &ErrorResponse{Error: ErrorDetail{Message: message, Type: "too_many_tasks_error", Code: "concurrent_task_limit"}}
}

// NewPayloadTooLargeError builds the 413 error body for exports over
// the size limit.
func NewPayloadTooLargeError(message string) *ErrorResponse {
	return &ErrorResponse{Error: ErrorDetail{Message: message, Type: "file_size_error", Code: "file_size_exceeded"}}
}

// NewServerError builds a 500 error body.
func NewServerError(message string) *ErrorResponse {
	return &ErrorResponse{Error: ErrorDetail{Message: message, Type: "server_error"}}
}

// NewGatewayTimeoutError builds a 504 error body.
func NewGatewayTimeoutError(message string) *ErrorResponse {
	return &ErrorResponse{Error: ErrorDetail{Message: message, Type: "timeout_error"}}
}

// CreateConnectionRequest registers a new database connection.
type CreateConnectionRequest struct {
	Name string `json:"name"`
	Type string `json:"dbType"`
	URL  string `json:"url"`
}

// QueryRequest runs a read-only query against a registered connection.
type QueryRequest struct {
	SQL string `json:"sql"`
}

// ExportRequest starts an asynchronous export task. ExportAll reruns
// the query without its LIMIT clause instead of exporting only the
// rows on screen.
type ExportRequest struct {
	SQL       string `json:"sql"`
	Format    string `json:"format"`
	ExportAll bool   `json:"exportAll,omitempty"`
}

// SizeCheckRequest asks for a pre-export size estimate.
type SizeCheckRequest struct {
	SQL         string `json:"sql"`
	Format      string `json:"format"`
	UseSampling bool   `json:"useSampling,omitempty"`
	SampleSize  int    `json:"sampleSize,omitempty"`
}

// SuggestRequest asks whether a request/result pair warrants offering
// an export.
type SuggestRequest struct {
	Message  string `json:"message"`
	RowCount int64  `json:"rowCount"`
}

// SuggestTrackRequest records how the user responded to an export
// suggestion.
type SuggestTrackRequest struct {
	Accepted bool   `json:"accepted"`
	Format   string `json:"format,omitempty"`
	Scope    string `json:"scope,omitempty"`
}

// TaskResponse is the wire form of an export task.
type TaskResponse struct {
	TaskID          string     `json:"taskId"`
	Status          string     `json:"status"`
	Format          string     `json:"format"`
	Scope           string     `json:"scope"`
	Progress        int        `json:"progress"`
	RowCount        *int64     `json:"rowCount,omitempty"`
	FileSizeBytes   *int64     `json:"fileSizeBytes,omitempty"`
	FileURL         string     `json:"fileUrl,omitempty"`
	Error           string     `json:"error,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	StartedAt       *time.Time `json:"startedAt,omitempty"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`
	ExecutionTimeMS *int64     `json:"executionTimeMs,omitempty"`
}

// NewTaskResponse converts a task snapshot to its wire form. The file
// URL is only present once the file is complete and downloadable.
func NewTaskResponse(snap export.Snapshot, fileURL string) *TaskResponse {
	resp := &TaskResponse{
		TaskID:          snap.ID,
		Status:          string(snap.Status),
		Format:          string(snap.Format),
		Scope:           string(snap.Scope),
		Progress:        snap.Progress,
		RowCount:        snap.RowCount,
		FileSizeBytes:   snap.FileSizeBytes,
		Error:           snap.Error,
		CreatedAt:       snap.CreatedAt,
		StartedAt:       snap.StartedAt,
		CompletedAt:     snap.CompletedAt,
		ExecutionTimeMS: snap.ExecutionTimeMS,
	}
	if snap.Status == export.StatusCompleted {
		resp.FileURL = fileURL
	}
	return resp
}
