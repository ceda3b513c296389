package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/hijo-electricity/hijo/internal/apierr"
	"github.com/hijo-electricity/hijo/internal/model"
	"github.com/hijo-electricity/hijo/internal/server/middleware"
	"github.com/hijo-electricity/hijo/internal/upload"
	"github.com/hijo-electricity/hijo/internal/validate"
)

// ProjectHandler serves the portfolio endpoints. Create and Update run
// behind the upload middleware: any stored image that does not end up
// referenced by a row is deleted before the response is written.
type ProjectHandler struct {
	store     ProjectStore
	images    Images
	validator *validate.Validator
	tr        *apierr.Translator
	logger    *slog.Logger
}

// NewProjectHandler creates a new ProjectHandler.
func NewProjectHandler(st ProjectStore, images Images, v *validate.Validator, tr *apierr.Translator, logger *slog.Logger) *ProjectHandler {
	return &ProjectHandler{store: st, images: images, validator: v, tr: tr, logger: logger}
}

// List returns every project, newest first.
// GET /api/projects
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	projects, err := h.store.ListProjects(r.Context())
	if err != nil {
		h.tr.Write(w, r, err)
		return
	}
	apierr.WriteSuccess(w, http.StatusOK, "Projects fetched successfully", projects)
}

// Get returns one project.
// GET /api/projects/{id}
func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.store.GetProject(r.Context(), middleware.GetID(r.Context()))
	if err != nil {
		h.tr.Write(w, r, notFound(err, "Project not found"))
		return
	}
	apierr.WriteSuccess(w, http.StatusOK, "Project fetched successfully", p)
}

// Create stores a new project with its image.
// POST /api/projects
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	file := upload.FromContext(ctx)

	var in model.ProjectInput
	if err := validate.DecodeForm(r.PostForm, &in); err != nil {
		h.fail(w, r, file, apierr.BadRequest("Invalid request body"))
		return
	}
	if strings.TrimSpace(in.TitleEn) == "" || strings.TrimSpace(in.DescriptionEn) == "" {
		h.fail(w, r, file, apierr.BadRequest("Title (English) and Description (English) are required"))
		return
	}
	if file == nil {
		h.fail(w, r, nil, apierr.BadRequest("Project image is required"))
		return
	}
	if err := h.validator.Struct(in); err != nil {
		h.fail(w, r, file, err)
		return
	}

	p := &model.Project{
		TitleEn:       in.TitleEn,
		TitleAr:       model.NullableString(in.TitleAr),
		DescriptionEn: in.DescriptionEn,
		DescriptionAr: model.NullableString(in.DescriptionAr),
		Image:         file.Path,
	}
	if err := h.store.CreateProject(ctx, p); err != nil {
		h.fail(w, r, file, err)
		return
	}
	h.logger.InfoContext(ctx, "project created", "id", p.ID, "image", p.Image)
	apierr.WriteSuccess(w, http.StatusCreated, "Project created successfully", p)
}

// Update merges the sent fields into an existing project. A new image is
// persisted before the old one is deleted so a failed write never loses the
// current picture.
// PUT /api/projects/{id}
func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	file := upload.FromContext(ctx)

	var in model.ProjectUpdateInput
	if err := validate.DecodeForm(r.PostForm, &in); err != nil {
		h.fail(w, r, file, apierr.BadRequest("Invalid request body"))
		return
	}
	if err := h.validator.Struct(in); err != nil {
		h.fail(w, r, file, err)
		return
	}

	p, err := h.store.GetProject(ctx, middleware.GetID(ctx))
	if err != nil {
		h.fail(w, r, file, notFound(err, "Project not found"))
		return
	}

	oldImage := p.Image
	patch := in.Patch()
	if file != nil {
		patch.Image = &file.Path
	}
	patch.Apply(p)

	if err := h.store.UpdateProject(ctx, p); err != nil {
		h.fail(w, r, file, notFound(err, "Project not found"))
		return
	}
	if file != nil && oldImage != "" && oldImage != file.Path {
		h.images.Remove(ctx, oldImage)
	}
	apierr.WriteSuccess(w, http.StatusOK, "Project updated successfully", p)
}

// Delete removes a project and its image.
// DELETE /api/projects/{id}
func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := middleware.GetID(ctx)

	p, err := h.store.GetProject(ctx, id)
	if err != nil {
		h.tr.Write(w, r, notFound(err, "Project not found"))
		return
	}
	if p.Image != "" {
		h.images.Remove(ctx, p.Image)
	}
	if err := h.store.DeleteProject(ctx, id); err != nil {
		h.tr.Write(w, r, notFound(err, "Project not found"))
		return
	}
	h.logger.InfoContext(ctx, "project deleted", "id", id)
	apierr.WriteSuccess(w, http.StatusOK, "Project deleted successfully", nil)
}

// fail deletes an uploaded image that will not be referenced and writes err.
func (h *ProjectHandler) fail(w http.ResponseWriter, r *http.Request, file *upload.File, err error) {
	if file != nil {
		h.images.Discard(r.Context(), file)
	}
	h.tr.Write(w, r, err)
}
