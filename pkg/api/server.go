// Copyright 2026 © The SkillsLike Authors
// SPDX-License-Identifier: Apache-2.0

// Package api exposes the chat and artifact surface over HTTP JSON.
package api

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/ZeoXel/skillslike/pkg/agent"
	"github.com/ZeoXel/skillslike/pkg/artifact"
	serrors "github.com/ZeoXel/skillslike/pkg/errors"
	"github.com/ZeoXel/skillslike/pkg/registry"
	"github.com/ZeoXel/skillslike/pkg/router"
	"github.com/ZeoXel/skillslike/pkg/telemetry"
)

// Server wires the orchestrator, registry, router and artifact store behind
// the HTTP surface. The router is swapped atomically after registry reloads.
type Server struct {
	orchestrator *agent.Orchestrator
	registry     *registry.Registry
	artifacts    artifact.Store
	logger       *slog.Logger
	metrics      *telemetry.AgentMetrics

	router     atomic.Pointer[router.Router]
	routerOpts []router.Option
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server's logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics attaches instrument recording.
func WithMetrics(m *telemetry.AgentMetrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithRouterOptions sets the options used to build the router, both at
// startup and after every reload.
func WithRouterOptions(opts ...router.Option) Option {
	return func(s *Server) { s.routerOpts = opts }
}

// NewServer creates the HTTP surface over the given components.
func NewServer(orchestrator *agent.Orchestrator, reg *registry.Registry, artifacts artifact.Store, opts ...Option) *Server {
	s := &Server{
		orchestrator: orchestrator,
		registry:     reg,
		artifacts:    artifacts,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router.Store(router.New(reg.Manifests(), s.routerOpts...))
	return s
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("POST /api/file", s.handleFileUpload)
	mux.HandleFunc("GET /api/file/{id}", s.handleFileDownload)
	mux.HandleFunc("GET /api/file/{id}/metadata", s.handleFileMetadata)
	mux.HandleFunc("GET /api/skills", s.handleSkills)
	mux.HandleFunc("POST /api/reload", s.handleReload)
	mux.HandleFunc("GET /health", s.handleHealth)
	return mux
}

type chatRequest struct {
	Message  string `json:"message"`
	ThreadID string `json:"thread_id,omitempty"`
}

type chatResponse struct {
	Text     string   `json:"text"`
	Files    []string `json:"files"`
	ThreadID string   `json:"thread_id"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, serrors.New(serrors.CodeInvalidInput, "invalid request body", err))
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		s.writeError(w, r, serrors.New(serrors.CodeInvalidInput, "message is required", nil))
		return
	}
	if req.ThreadID == "" {
		req.ThreadID = uuid.NewString()
	}

	tools := s.router.Load().Route(req.Message, s.registry.Tools())
	s.metrics.RecordRoutingDecision(r.Context(), len(tools))

	result, err := s.orchestrator.Run(r.Context(), req.ThreadID, req.Message, tools)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	files := result.ArtifactIDs
	if files == nil {
		files = []string{}
	}
	s.writeJSON(w, http.StatusOK, chatResponse{
		Text:     result.Text,
		Files:    files,
		ThreadID: req.ThreadID,
	})
}

func (s *Server) handleFileUpload(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, r, serrors.New(serrors.CodeInvalidInput, "multipart field 'file' is required", err))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, r, serrors.New(serrors.CodeInternal, "read upload", err))
		return
	}

	id, err := s.artifacts.Put(r.Context(), data, header.Filename, header.Header.Get("Content-Type"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"file_id": id, "filename": header.Filename})
}

func (s *Server) handleFileDownload(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	meta, err := s.artifacts.Metadata(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	data, err := s.artifacts.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", meta.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", meta.Filename))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *Server) handleFileMetadata(w http.ResponseWriter, r *http.Request) {
	meta, err := s.artifacts.Metadata(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, meta)
}

type skillInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Runtime     string   `json:"runtime"`
	Tags        []string `json:"tags,omitempty"`
}

func (s *Server) handleSkills(w http.ResponseWriter, r *http.Request) {
	manifests := s.registry.Manifests()
	skills := make([]skillInfo, 0, len(manifests))
	for _, m := range manifests {
		skills = append(skills, skillInfo{
			Name:        m.Name,
			Description: m.Description,
			Runtime:     string(m.Runtime.Type),
			Tags:        m.Tags,
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"skills": skills})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.Reload(); err != nil {
		s.writeError(w, r, err)
		return
	}
	// Rebuild routing over the fresh manifest set.
	s.router.Store(router.New(s.registry.Manifests(), s.routerOpts...))
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":        "reloaded",
		"skills_loaded": len(s.registry.Manifests()),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"skills_loaded": len(s.registry.Manifests()),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write response failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	ae := serrors.AsAgentError(err)
	s.metrics.RecordError(r.Context(), string(ae.Code))
	if ae.StatusCode >= 500 {
		s.logger.Error("request failed", "code", ae.Code, "error", err)
	} else {
		s.logger.Warn("request rejected", "code", ae.Code, "error", err)
	}
	s.writeJSON(w, ae.StatusCode, map[string]string{"detail": ae.Message})
}
