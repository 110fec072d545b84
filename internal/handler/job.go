package handler

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/stemscribe/api/internal/model"
	"github.com/stemscribe/api/internal/service"
	"github.com/stemscribe/api/internal/store"
	"github.com/stemscribe/api/pkg/response"
)

type JobHandler struct {
	service   *service.JobService
	validator *validator.Validate
}

func NewJobHandler(svc *service.JobService, v *validator.Validate) *JobHandler {
	return &JobHandler{
		service:   svc,
		validator: v,
	}
}

// uploadRequest holds the optional form fields accompanying the audio file
type uploadRequest struct {
	Model string `form:"model" validate:"omitempty,oneof=htdemucs htdemucs_ft htdemucs_6s"`
}

// Upload handles POST /api/upload
func (h *JobHandler) Upload(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return response.ValidationError(c, "File is required", nil)
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	if !service.AllowedExtensions[ext] {
		return response.ValidationError(c,
			fmt.Sprintf("File type %s not supported. Allowed: %s", ext, strings.Join(service.AllowedExtensionList(), ", ")),
			map[string]interface{}{"extension": ext})
	}

	req := uploadRequest{Model: c.FormValue("model")}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	f, err := fileHeader.Open()
	if err != nil {
		return response.ServiceError(c, "Failed to open file")
	}
	defer f.Close()

	job, err := h.service.CreateJob(c.Context(), fileHeader.Filename, req.Model, f)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, model.UploadResponse{
		JobID:   job.ID,
		Message: "File uploaded successfully. Processing started.",
	})
}

// Status handles GET /api/status/:jobId
func (h *JobHandler) Status(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	job, err := h.service.GetStatus(c.Context(), jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return response.NotFound(c, "Job not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, job)
}

// Download handles GET /api/download/:jobId
func (h *JobHandler) Download(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	path, name, err := h.service.ResolveDownload(c.Context(), jobID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return response.NotFound(c, "Job not found")
		case errors.Is(err, service.ErrNotCompleted):
			return response.ValidationError(c, "Job not completed yet", nil)
		case errors.Is(err, service.ErrArtifactMissing):
			return response.NotFound(c, "File not found on server")
		}
		return response.ServiceError(c, err.Error())
	}

	return c.Download(path, name)
}

func formatValidationErrors(err error) map[string]string {
	fields := make(map[string]string)

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		for _, fe := range validationErrs {
			fields[fe.Field()] = fe.Tag()
		}
	}
	return fields
}
