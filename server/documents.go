package server

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/xhad/docchat/internal/models"
	"github.com/xhad/docchat/pkg/store"
	"go.uber.org/zap"
)

type uploadResult struct {
	Filename    string `json:"filename"`
	Success     bool   `json:"success"`
	DocumentID  string `json:"documentId,omitempty"`
	TextLength  int    `json:"textLength,omitempty"`
	ChunksCount int    `json:"chunksCount,omitempty"`
	Error       string `json:"error,omitempty"`
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.store.ListDocuments(r.Context())
	if err != nil {
		s.logger.Error("failed to list documents", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list documents")
		return
	}
	if docs == nil {
		docs = []models.Document{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "document id is required")
		return
	}

	err := s.store.DeleteDocument(r.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "document not found")
		return
	case err != nil:
		s.logger.Error("failed to delete document", zap.Error(err), zap.String("document_id", id))
		writeError(w, http.StatusInternalServerError, "failed to delete document")
		return
	}

	s.logger.Info("document deleted", zap.String("document_id", id))
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "document deleted",
	})
}

// handleUpload ingests every file of the multipart form independently; one
// file failing never aborts the others.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	limit := s.config.MaxFileSize*int64(s.config.MaxFiles) + 1<<20
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart upload")
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := append(r.MultipartForm.File["files"], r.MultipartForm.File["file"]...)
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "no files uploaded")
		return
	}
	if len(files) > s.config.MaxFiles {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("at most %d files per upload", s.config.MaxFiles))
		return
	}

	results := make([]uploadResult, 0, len(files))
	succeeded := 0
	for _, fh := range files {
		res := s.ingestFile(r, fh)
		if res.Success {
			succeeded++
		}
		results = append(results, res)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": succeeded > 0,
		"message": fmt.Sprintf("%d file(s) processed, %d failed", succeeded, len(results)-succeeded),
		"results": results,
	})
}

func (s *Server) ingestFile(r *http.Request, fh *multipart.FileHeader) uploadResult {
	res := uploadResult{Filename: fh.Filename}

	if fh.Size > s.config.MaxFileSize {
		res.Error = fmt.Sprintf("file exceeds the %d byte limit", s.config.MaxFileSize)
		return res
	}

	f, err := fh.Open()
	if err != nil {
		res.Error = "could not open uploaded file"
		return res
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		res.Error = "could not read uploaded file"
		return res
	}

	out, err := s.ingester.Ingest(r.Context(), fh.Filename, data)
	if err != nil {
		s.logger.Warn("file not ingested", zap.Error(err), zap.String("filename", fh.Filename))
		res.Error = err.Error()
		return res
	}

	res.Success = true
	res.DocumentID = out.DocumentID
	res.TextLength = out.TextLength
	res.ChunksCount = out.ChunksCount
	return res
}
