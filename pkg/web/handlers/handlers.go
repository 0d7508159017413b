// Package handlers implements the HTTP API: database connection
// management, query execution, export tasks, downloads, and export
// suggestions.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"skyline-data/tycho/pkg/database"
	"skyline-data/tycho/pkg/export"
	"skyline-data/tycho/pkg/sqlcheck"
	"skyline-data/tycho/pkg/storage"
	"skyline-data/tycho/pkg/suggest"
	"skyline-data/tycho/pkg/web/middleware"
	"skyline-data/tycho/pkg/web/types"
)

// queryRowLimit caps interactive query results. Exports stream and are
// not subject to it.
const queryRowLimit = 1000

// downloadPathPrefix is where completed export files are served from.
const downloadPathPrefix = "/api/v1/exports/download/"

// ConnectionManager resolves registered connection names to records
// and live adapters. Implemented by database.Manager.
type ConnectionManager interface {
	Register(ctx context.Context, conn *database.Connection) error
	Get(ctx context.Context, name string) (*database.Connection, error)
	List(ctx context.Context) ([]*database.Connection, error)
	Delete(ctx context.Context, name string) error
	Adapter(ctx context.Context, name string) (database.Adapter, error)
}

// Handler serves the HTTP API.
type Handler struct {
	manager ConnectionManager
	exports *export.Service
	audit   *storage.AuditStore
	logger  *slog.Logger
}

// New creates a Handler. audit may be nil, which disables the
// suggestion analytics endpoints' persistence.
func New(manager ConnectionManager, exports *export.Service, audit *storage.AuditStore) *Handler {
	return &Handler{
		manager: manager,
		exports: exports,
		audit:   audit,
		logger:  slog.Default().With("component", "web.handlers"),
	}
}

// Register attaches all API routes to the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/dbs", h.CreateConnection)
	mux.HandleFunc("GET /api/v1/dbs", h.ListConnections)
	mux.HandleFunc("GET /api/v1/dbs/{name}", h.GetConnection)
	mux.HandleFunc("DELETE /api/v1/dbs/{name}", h.DeleteConnection)
	mux.HandleFunc("POST /api/v1/dbs/{name}/query", h.RunQuery)
	mux.HandleFunc("POST /api/v1/dbs/{name}/export", h.CreateExport)
	mux.HandleFunc("POST /api/v1/dbs/{name}/export/check", h.CheckExportSize)
	mux.HandleFunc("GET /api/v1/exports/tasks/{taskId}", h.GetExportTask)
	mux.HandleFunc("DELETE /api/v1/exports/tasks/{taskId}", h.CancelExportTask)
	mux.HandleFunc("GET /api/v1/exports/download/{filename}", h.DownloadExport)
	mux.HandleFunc("POST /api/v1/suggest", h.SuggestExport)
	mux.HandleFunc("POST /api/v1/suggest/track", h.TrackSuggestion)
	mux.HandleFunc("GET /api/v1/suggest/stats", h.SuggestionStats)
	mux.HandleFunc("GET /health", h.Health)
}

// CreateConnection registers a new database connection after probing it.
func (h *Handler) CreateConnection(w http.ResponseWriter, r *http.Request) {
	var req types.CreateConnectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, types.NewValidationError("invalid request body"))
		return
	}
	if req.Name == "" || req.URL == "" {
		writeError(w, http.StatusBadRequest, types.NewValidationError("name and url are required"))
		return
	}
	dbType, ok := database.ParseType(req.Type)
	if !ok {
		writeError(w, http.StatusBadRequest,
			types.NewValidationError(fmt.Sprintf("unsupported database type %q", req.Type)))
		return
	}

	conn := &database.Connection{Name: req.Name, Type: dbType, URL: req.URL}
	if err := h.manager.Register(r.Context(), conn); err != nil {
		if errors.Is(err, storage.ErrConnectionExists) {
			writeError(w, http.StatusConflict,
				types.NewConflictError(fmt.Sprintf("connection %q already exists", req.Name)))
			return
		}
		writeError(w, http.StatusBadRequest, types.NewValidationError(err.Error()))
		return
	}
	writeJSON(w, http.StatusCreated, conn)
}

// ListConnections returns all registered connections.
func (h *Handler) ListConnections(w http.ResponseWriter, r *http.Request) {
	conns, err := h.manager.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, types.NewServerError("failed to list connections"))
		return
	}
	if conns == nil {
		conns = []*database.Connection{}
	}
	writeJSON(w, http.StatusOK, conns)
}

// GetConnection returns one registered connection.
func (h *Handler) GetConnection(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	conn, err := h.manager.Get(r.Context(), name)
	if err != nil {
		h.writeConnError(w, name, err)
		return
	}
	writeJSON(w, http.StatusOK, conn)
}

// DeleteConnection removes a registered connection.
func (h *Handler) DeleteConnection(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := h.manager.Delete(r.Context(), name); err != nil {
		h.writeConnError(w, name, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RunQuery executes a read-only query and returns the materialized
// result, capped at a fixed row limit.
func (h *Handler) RunQuery(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	var req types.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, types.NewValidationError("invalid request body"))
		return
	}

	if res := sqlcheck.Validate(req.SQL); !res.Valid {
		writeError(w, http.StatusBadRequest, types.NewValidationError(res.Error))
		return
	}
	sql, err := sqlcheck.EnsureLimit(req.SQL, queryRowLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, types.NewValidationError(err.Error()))
		return
	}

	adapter, err := h.manager.Adapter(r.Context(), name)
	if err != nil {
		h.writeConnError(w, name, err)
		return
	}

	result, err := adapter.ExecuteQuery(r.Context(), sql)
	if err != nil {
		writeError(w, http.StatusBadRequest,
			types.NewValidationError(fmt.Sprintf("query failed: %v", err)))
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// CreateExport starts an asynchronous export task and returns it in its
// pending state with 202 Accepted.
func (h *Handler) CreateExport(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	var req types.ExportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, types.NewValidationError("invalid request body"))
		return
	}

	format, err := export.ParseFormat(req.Format)
	if err != nil {
		writeError(w, http.StatusBadRequest, types.NewValidationError(err.Error()))
		return
	}
	scope := export.ScopeCurrentPage
	if req.ExportAll {
		scope = export.ScopeAllData
	}

	adapter, err := h.manager.Adapter(r.Context(), name)
	if err != nil {
		h.writeConnError(w, name, err)
		return
	}

	userID := middleware.GetUserID(r.Context())
	snap, err := h.exports.ExecuteExport(r.Context(), adapter, name, userID, req.SQL, format, scope)
	if err != nil {
		h.writeExportError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, types.NewTaskResponse(snap, ""))
}

// CheckExportSize estimates the export size without starting a task.
// Oversized estimates come back 200 with allowed=false.
func (h *Handler) CheckExportSize(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	var req types.SizeCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, types.NewValidationError("invalid request body"))
		return
	}

	format, err := export.ParseFormat(req.Format)
	if err != nil {
		writeError(w, http.StatusBadRequest, types.NewValidationError(err.Error()))
		return
	}

	adapter, err := h.manager.Adapter(r.Context(), name)
	if err != nil {
		h.writeConnError(w, name, err)
		return
	}

	method := export.MethodMetadata
	if req.UseSampling {
		method = export.MethodSample
	}
	check, err := h.exports.CheckExportSize(r.Context(), adapter, req.SQL, format, method, req.SampleSize)
	if err != nil {
		h.writeExportError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, check)
}

// GetExportTask returns the state of an export task.
func (h *Handler) GetExportTask(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("taskId")
	snap, ok := h.exports.GetTask(taskID)
	if !ok {
		writeError(w, http.StatusNotFound,
			types.NewNotFoundError(fmt.Sprintf("export task %q not found", taskID)))
		return
	}
	writeJSON(w, http.StatusOK, types.NewTaskResponse(snap, downloadPathPrefix+filepath.Base(snap.FilePath)))
}

// CancelExportTask cancels an active export task.
func (h *Handler) CancelExportTask(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("taskId")
	if !h.exports.CancelTask(taskID) {
		writeError(w, http.StatusNotFound,
			types.NewNotFoundError(fmt.Sprintf("export task %q not found or already finished", taskID)))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DownloadExport serves a completed export file as an attachment.
func (h *Handler) DownloadExport(w http.ResponseWriter, r *http.Request) {
	filename := r.PathValue("filename")
	path, err := h.exports.FilePathFor(filename)
	if err != nil {
		writeError(w, http.StatusNotFound,
			types.NewNotFoundError(fmt.Sprintf("export file %q not found", filename)))
		return
	}

	w.Header().Set("Content-Type", contentTypeFor(filename))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	http.ServeFile(w, r, path)
}

// SuggestExport analyzes a request/result pair for export intent.
func (h *Handler) SuggestExport(w http.ResponseWriter, r *http.Request) {
	var req types.SuggestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, types.NewValidationError("invalid request body"))
		return
	}

	s := suggest.Analyze(req.Message, req.RowCount)
	if h.audit != nil {
		rec := storage.SuggestionRecord{
			UserID:     middleware.GetUserID(r.Context()),
			Suggested:  s.Suggested,
			Confidence: s.Confidence,
			Format:     s.Format,
			Scope:      s.Scope,
			CreatedAt:  time.Now().UTC(),
		}
		if err := h.audit.RecordSuggestion(r.Context(), rec); err != nil {
			h.logger.Warn("failed to record suggestion", "error", err)
		}
	}
	writeJSON(w, http.StatusOK, s)
}

// TrackSuggestion records whether the user accepted an export
// suggestion.
func (h *Handler) TrackSuggestion(w http.ResponseWriter, r *http.Request) {
	if h.audit == nil {
		writeError(w, http.StatusNotFound, types.NewNotFoundError("suggestion analytics not enabled"))
		return
	}
	var req types.SuggestTrackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, types.NewValidationError("invalid request body"))
		return
	}

	rec := storage.SuggestionRecord{
		UserID:    middleware.GetUserID(r.Context()),
		Suggested: true,
		Accepted:  req.Accepted,
		Format:    req.Format,
		Scope:     req.Scope,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.audit.RecordSuggestion(r.Context(), rec); err != nil {
		writeError(w, http.StatusInternalServerError, types.NewServerError("failed to record suggestion response"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SuggestionStats returns aggregated suggestion analytics for the last
// 30 days.
func (h *Handler) SuggestionStats(w http.ResponseWriter, r *http.Request) {
	if h.audit == nil {
		writeError(w, http.StatusNotFound, types.NewNotFoundError("suggestion analytics not enabled"))
		return
	}
	stats, err := h.audit.SuggestionStats(r.Context(), time.Now().AddDate(0, 0, -30))
	if err != nil {
		writeError(w, http.StatusInternalServerError, types.NewServerError("failed to query suggestion stats"))
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) writeConnError(w http.ResponseWriter, name string, err error) {
	if errors.Is(err, database.ErrConnectionNotFound) {
		writeError(w, http.StatusNotFound,
			types.NewNotFoundError(fmt.Sprintf("database connection %q not found", name)))
		return
	}
	h.logger.Error("connection operation failed", "name", name, "error", err)
	writeError(w, http.StatusInternalServerError, types.NewServerError("database connection error"))
}

func (h *Handler) writeExportError(w http.ResponseWriter, err error) {
	var (
		limitErr *export.ConcurrentTaskLimitError
		sizeErr  *export.FileSizeExceededError
		expErr   *export.Error
	)
	switch {
	case errors.As(err, &limitErr):
		writeError(w, http.StatusTooManyRequests, types.NewTooManyTasksError(limitErr.Error()))
	case errors.As(err, &sizeErr):
		writeError(w, http.StatusRequestEntityTooLarge, types.NewPayloadTooLargeError(sizeErr.Error()))
	case errors.As(err, &expErr):
		writeError(w, http.StatusBadRequest, types.NewValidationError(expErr.Error()))
	default:
		h.logger.Error("export operation failed", "error", err)
		writeError(w, http.StatusInternalServerError, types.NewServerError("export operation failed"))
	}
}

func contentTypeFor(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".json":
		return "application/json"
	case ".md":
		return "text/markdown"
	default:
		return "text/csv"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, resp *types.ErrorResponse) {
	writeJSON(w, status, resp)
}
