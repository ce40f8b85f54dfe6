// Package projects exposes portfolio project CRUD and per-project
// comments. Mutations are admin-gated by the router; comment creation
// only requires an authenticated principal.
package projects

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/showcaselabs/showcase-go/internal/api"
	"github.com/showcaselabs/showcase-go/internal/appctx"
	"github.com/showcaselabs/showcase-go/internal/identity"
	"github.com/showcaselabs/showcase-go/internal/store"
)

// Handler exposes the project endpoints.
type Handler struct {
	projects store.ProjectStore
}

// NewHandler creates a project handler.
func NewHandler(projects store.ProjectStore) *Handler {
	return &Handler{projects: projects}
}

// ProjectRequest is the create/update body.
type ProjectRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	ImageURL    string   `json:"image_url"`
	LiveURL     string   `json:"live_url"`
	RepoURL     string   `json:"repo_url"`
}

// CommentRequest is the comment creation body.
type CommentRequest struct {
	Body string `json:"body"`
}

// HandleList handles GET /api/v1/projects.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	projects, err := h.projects.ListProjects(r.Context())
	if err != nil {
		appctx.GetLogger(r.Context()).Error("list projects failed", "error", err)
		api.WriteInternalError(w, "failed to list projects")
		return
	}

	api.WriteJSON(w, http.StatusOK, map[string]any{
		"projects": projects,
	})
}

// HandleGet handles GET /api/v1/projects/{projectID}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	project, err := h.projects.GetProject(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			api.WriteNotFound(w, "project not found")
			return
		}
		appctx.GetLogger(r.Context()).Error("get project failed", "error", err)
		api.WriteInternalError(w, "failed to load project")
		return
	}

	api.WriteJSON(w, http.StatusOK, project)
}

// HandleCreate handles POST /api/v1/projects.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	log := appctx.GetLogger(r.Context())

	var req ProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteBadRequest(w, api.ReasonBadRequest, "invalid JSON body")
		return
	}
	if req.Title == "" {
		api.WriteBadRequest(w, api.ReasonMissingField, "title is required")
		return
	}

	now := time.Now()
	project := &store.Project{
		ID:          uuid.NewString(),
		Title:       req.Title,
		Description: req.Description,
		Tags:        req.Tags,
		ImageURL:    req.ImageURL,
		LiveURL:     req.LiveURL,
		RepoURL:     req.RepoURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := h.projects.CreateProject(r.Context(), project); err != nil {
		log.Error("create project failed", "error", err)
		api.WriteInternalError(w, "failed to create project")
		return
	}

	log.Info("project created", "project_id", project.ID, "title", project.Title)

	api.WriteJSON(w, http.StatusCreated, project)
}

// HandleUpdate handles PUT /api/v1/projects/{projectID}.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := appctx.WithAttrs(r.Context(), "project_id", chi.URLParam(r, "projectID"))
	log := appctx.GetLogger(ctx)

	var req ProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteBadRequest(w, api.ReasonBadRequest, "invalid JSON body")
		return
	}
	if req.Title == "" {
		api.WriteBadRequest(w, api.ReasonMissingField, "title is required")
		return
	}

	project, err := h.projects.GetProject(ctx, chi.URLParam(r, "projectID"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			api.WriteNotFound(w, "project not found")
			return
		}
		log.Error("get project failed", "error", err)
		api.WriteInternalError(w, "failed to load project")
		return
	}

	project.Title = req.Title
	project.Description = req.Description
	project.Tags = req.Tags
	project.ImageURL = req.ImageURL
	project.LiveURL = req.LiveURL
	project.RepoURL = req.RepoURL
	project.UpdatedAt = time.Now()

	if err := h.projects.UpdateProject(ctx, project); err != nil {
		log.Error("update project failed", "error", err)
		api.WriteInternalError(w, "failed to update project")
		return
	}

	api.WriteJSON(w, http.StatusOK, project)
}

// HandleDelete handles DELETE /api/v1/projects/{projectID}. Deleting a
// project removes its comments too.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	ctx := appctx.WithAttrs(r.Context(), "project_id", projectID)
	log := appctx.GetLogger(ctx)

	if err := h.projects.DeleteProject(ctx, projectID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			api.WriteNotFound(w, "project not found")
			return
		}
		log.Error("delete project failed", "error", err)
		api.WriteInternalError(w, "failed to delete project")
		return
	}

	log.Info("project deleted")

	w.WriteHeader(http.StatusNoContent)
}

// HandleListComments handles GET /api/v1/projects/{projectID}/comments.
func (h *Handler) HandleListComments(w http.ResponseWriter, r *http.Request) {
	comments, err := h.projects.ListComments(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			api.WriteNotFound(w, "project not found")
			return
		}
		appctx.GetLogger(r.Context()).Error("list comments failed", "error", err)
		api.WriteInternalError(w, "failed to list comments")
		return
	}

	api.WriteJSON(w, http.StatusOK, map[string]any{
		"comments": comments,
	})
}

// HandleCreateComment handles POST /api/v1/projects/{projectID}/comments.
// The comment author is the authenticated principal.
func (h *Handler) HandleCreateComment(w http.ResponseWriter, r *http.Request) {
	ctx := appctx.WithAttrs(r.Context(), "project_id", chi.URLParam(r, "projectID"))
	log := appctx.GetLogger(ctx)

	principal := identity.PrincipalFromContext(ctx)
	if principal == nil {
		api.WriteUnauthorized(w, api.ReasonUnauthenticated, "authentication required")
		return
	}

	var req CommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteBadRequest(w, api.ReasonBadRequest, "invalid JSON body")
		return
	}
	if req.Body == "" {
		api.WriteBadRequest(w, api.ReasonMissingField, "body is required")
		return
	}

	comment := &store.Comment{
		ProjectID: chi.URLParam(r, "projectID"),
		Author:    principal.Username,
		Body:      req.Body,
		CreatedAt: time.Now(),
	}
	if err := h.projects.CreateComment(ctx, comment); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			api.WriteNotFound(w, "project not found")
			return
		}
		log.Error("create comment failed", "error", err)
		api.WriteInternalError(w, "failed to create comment")
		return
	}

	api.WriteJSON(w, http.StatusCreated, comment)
}
