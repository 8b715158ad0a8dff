package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	apperrors "turn-orchestrator/internal/errors"
	"turn-orchestrator/internal/filestore"
	"turn-orchestrator/internal/store"
)

const maxFileBytes = 10 << 20 // spec §4.2: files > 10 MiB are rejected; exactly 10 MiB is accepted

type uploadFileRequest struct {
	Path     string `json:"path"`
	Content  string `json:"content"`
	Metadata string `json:"metadata,omitempty"`
}

func (r *Router) handleUploadFile(w http.ResponseWriter, req *http.Request) {
	projectID := chi.URLParam(req, "project_id")

	var body uploadFileRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		apperrors.WriteHTTPError(w, apperrors.NewValidationError("malformed request body", err.Error()))
		return
	}

	cleanPath, err := filestore.ValidatePath(body.Path)
	if err != nil {
		apperrors.WriteHTTPError(w, apperrors.NewValidationError(err.Error(), body.Path))
		return
	}

	content := []byte(body.Content)
	if int64(len(content)) > maxFileBytes {
		apperrors.WriteHTTPError(w, apperrors.NewPayloadTooLargeError(int64(len(content)), maxFileBytes))
		return
	}

	put, err := r.files.Put(content)
	if err != nil {
		apperrors.WriteHTTPError(w, apperrors.NewInternalError("storing file content", err))
		return
	}

	f, err := r.store.UpsertFile(req.Context(), projectID, cleanPath, put.InlineText, put.Location, put.Hash, filestore.DetectMime(cleanPath), put.Size, body.Metadata)
	if err != nil {
		apperrors.WriteHTTPError(w, err)
		return
	}

	go r.indexInBackground(f.ID)

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"id":           f.ID,
		"path":         f.Path,
		"size_bytes":   f.SizeBytes,
		"content_hash": f.ContentHash,
		"created_at":   f.CreatedAt,
	})
}

// indexInBackground runs the newly-uploaded file through the Indexer on
// its own goroutine, detached from the request context, so the upload
// response doesn't wait on chunking/FTS5 insertion.
func (r *Router) indexInBackground(fileID string) {
	ctx := context.Background()
	if _, err := r.indexer.IndexFile(ctx, fileID); err != nil {
		r.log.ErrorContext(ctx, "background file indexing failed", "file_id", fileID, "error", err.Error())
	}
}

func (r *Router) handleListFiles(w http.ResponseWriter, req *http.Request) {
	projectID := chi.URLParam(req, "project_id")
	q := req.URL.Query()

	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	files, err := r.store.ListFiles(req.Context(), projectID, store.ListFilesOptions{
		Limit:    limit,
		Offset:   offset,
		PathLike: store.ToSQLLike(q.Get("filter")),
	})
	if err != nil {
		apperrors.WriteHTTPError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"files": files})
}

func (r *Router) handleGetFile(w http.ResponseWriter, req *http.Request) {
	fileID := chi.URLParam(req, "file_id")

	f, err := r.store.GetFile(req.Context(), fileID)
	if err != nil {
		apperrors.WriteHTTPError(w, err)
		return
	}

	content, err := r.files.Get(f.Content, f.ContentLocation)
	if err != nil {
		apperrors.WriteHTTPError(w, apperrors.NewInternalError("resolving file content", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":           f.ID,
		"project_id":   f.ProjectID,
		"path":         f.Path,
		"content":      string(content),
		"content_hash": f.ContentHash,
		"mime_type":    f.MimeType,
		"size_bytes":   f.SizeBytes,
		"metadata":     f.Metadata,
		"created_at":   f.CreatedAt,
		"updated_at":   f.UpdatedAt,
	})
}

func (r *Router) handleDeleteFile(w http.ResponseWriter, req *http.Request) {
	fileID := chi.URLParam(req, "file_id")

	f, err := r.store.DeleteFile(req.Context(), fileID)
	if err != nil {
		apperrors.WriteHTTPError(w, err)
		return
	}

	if f.ContentLocation != nil {
		if err := r.files.Delete(*f.ContentLocation); err != nil {
			r.log.ErrorContext(req.Context(), "unlinking file blob failed", "file_id", fileID, "error", err.Error())
		}
	}

	w.WriteHeader(http.StatusNoContent)
}
