package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/pipeline"
	"github.com/hyperjump/kotae/internal/storage"
)

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req models.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("ask request", zap.String("question", req.Question), zap.Int("top_k", req.TopK))

	resp, err := s.engine.Ask(r.Context(), &req)
	if err != nil {
		s.respondPipelineError(w, "ask failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

type ingestRequest struct {
	Path string `json:"path,omitempty"`
	Dir  string `json:"dir,omitempty"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	switch {
	case req.Path != "":
		report, err := s.ingestor.IngestFile(r.Context(), req.Path)
		var partial *pipeline.PartialIngestError
		if err != nil && !errors.As(err, &partial) {
			s.respondPipelineError(w, "ingest failed", err)
			return
		}
		status := http.StatusCreated
		if err != nil {
			// Some chunks failed to embed; the report carries their ids.
			status = http.StatusMultiStatus
		}
		s.respondJSON(w, status, report)
	case req.Dir != "":
		reports, err := s.ingestor.IngestDirectory(r.Context(), req.Dir)
		if err != nil && len(reports) == 0 {
			s.respondPipelineError(w, "ingest failed", err)
			return
		}
		resp := map[string]interface{}{"reports": reports}
		if err != nil {
			resp["errors"] = err.Error()
		}
		s.respondJSON(w, http.StatusCreated, resp)
	default:
		s.respondError(w, http.StatusBadRequest, "path or dir is required")
	}
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	offset := queryInt(r, "offset", 0)
	limit := queryInt(r, "limit", 50)
	if limit > 500 {
		limit = 500
	}
	docs, err := s.registry.List(r.Context(), offset, limit)
	if err != nil {
		s.respondPipelineError(w, "list documents failed", err)
		return
	}
	if docs == nil {
		docs = []*models.Document{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"documents": docs})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, err := s.registry.Get(r.Context(), id)
	if err != nil {
		s.respondPipelineError(w, "get document failed", err)
		return
	}
	if doc == nil {
		s.respondError(w, http.StatusNotFound, "document not found")
		return
	}
	s.respondJSON(w, http.StatusOK, doc)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.logger.Debug("delete document request", zap.String("id", id))
	removed, err := s.ingestor.DeleteDocument(r.Context(), id)
	if err != nil {
		s.respondPipelineError(w, "delete failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"status": "deleted", "chunks_removed": removed})
}

func (s *Server) handleBrowse(w http.ResponseWriter, r *http.Request) {
	n := queryInt(r, "n", 20)
	if n > 200 {
		n = 200
	}
	entries, err := s.store.Sample(r.Context(), n)
	if err != nil {
		s.respondPipelineError(w, "browse failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"chunks": entries})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	docCount, err := s.registry.Count(ctx)
	if err != nil {
		s.respondPipelineError(w, "status: count documents failed", err)
		return
	}
	chunkCount, err := s.store.Count(ctx)
	if err != nil {
		s.respondPipelineError(w, "status: count chunks failed", err)
		return
	}

	resp := map[string]interface{}{
		"documents": docCount,
		"chunks":    chunkCount,
		"config": map[string]interface{}{
			"vector_store":         s.cfg.Vector.Store,
			"collection":           s.cfg.Vector.Collection,
			"embedding_model":      s.cfg.Embedding.Model,
			"embedding_dimensions": s.cfg.Embedding.Dimensions,
			"generation_model":     s.cfg.Generation.Model,
			"chunk_size":           s.cfg.Pipeline.ChunkSize,
			"chunk_overlap":        s.cfg.Pipeline.ChunkOverlap,
			"top_k":                s.cfg.Pipeline.TopK,
			"context_budget":       s.cfg.Pipeline.ContextBudget,
		},
	}
	if diskBytes, err := storage.DiskUsageBytes(s.cfg.Storage.DatabasePath); err == nil {
		resp["disk_usage_bytes"] = diskBytes
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleWipe(w http.ResponseWriter, r *http.Request) {
	s.logger.Info("wipe requested")
	if err := s.ingestor.Wipe(r.Context()); err != nil {
		s.respondPipelineError(w, "wipe failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "wiped"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleWatchDirectoriesList(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"directories": s.watch.Directories()})
}

type watchAddRequest struct {
	Path string `json:"path"`
	Sync *bool  `json:"sync,omitempty"`
}

func (s *Server) handleWatchDirectoriesAdd(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	var req watchAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	abs, err := filepath.Abs(req.Path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			s.respondError(w, http.StatusNotFound, "directory not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !info.IsDir() {
		s.respondError(w, http.StatusBadRequest, "path is not a directory")
		return
	}
	syncExisting := true
	if req.Sync != nil {
		syncExisting = *req.Sync
	}
	if err := s.watch.AddDirectory(abs, syncExisting); err != nil {
		s.respondPipelineError(w, "watch add directory failed", err)
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusCreated, map[string]string{"path": abs, "status": "added"})
}

func (s *Server) handleWatchDirectoriesRemove(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		s.respondError(w, http.StatusBadRequest, "path query parameter is required")
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	if err := s.watch.RemoveDirectory(abs); err != nil {
		s.respondPipelineError(w, "watch remove directory failed", err)
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusOK, map[string]string{"path": abs, "status": "removed"})
}

func (s *Server) persistWatchDirectories() {
	if s.configPath == "" {
		return
	}
	s.watchCfgMu.Lock()
	s.cfg.Watch.Directories = s.watch.Directories()
	err := config.Save(s.configPath, s.cfg)
	s.watchCfgMu.Unlock()
	if err != nil {
		s.logger.Warn("failed to persist watch config", zap.Error(err))
	}
}

// respondPipelineError maps the error taxonomy to HTTP statuses: bad input is
// the caller's fault, configuration problems and everything else are ours.
func (s *Server) respondPipelineError(w http.ResponseWriter, msg string, err error) {
	var inputErr *pipeline.InputError
	if errors.As(err, &inputErr) {
		s.logger.Debug(msg, zap.Error(err))
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Error(msg, zap.Error(err))
	if pipeline.IsTransient(err) {
		s.respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	s.respondError(w, http.StatusInternalServerError, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
