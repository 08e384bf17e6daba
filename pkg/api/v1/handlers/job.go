package handlers

import (
	"context"
	"errors"

	fiber "github.com/gofiber/fiber/v2"

	"github.com/eresh-mittal/ImageProc/internal/db/models"
	"github.com/eresh-mittal/ImageProc/internal/logger"
	"github.com/eresh-mittal/ImageProc/internal/services"
	"github.com/eresh-mittal/ImageProc/internal/types"
)

// Form fields of the upload endpoint
const (
	FormFieldCSVFile    = "csvFile"
	FormFieldWebhookURL = "webhookUrl"
)

// JobService is the job logic the handlers depend on
type JobService interface {
	Submit(ctx context.Context, req services.SubmitRequest) (*models.Job, error)
	Status(ctx context.Context, requestID string) (*types.JobStatusResponse, error)
	Abort(ctx context.Context, requestID string) (bool, error)
}

// JobHandler handles HTTP requests for job operations
type JobHandler struct {
	jobService JobService
}

// NewJobHandler creates a new job handler instance
func NewJobHandler(s JobService) *JobHandler {
	return &JobHandler{jobService: s}
}

// Upload accepts a multipart CSV file and queues a job for it
func (h *JobHandler) Upload(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile(FormFieldCSVFile)
	if err != nil || fileHeader.Filename == "" {
		return c.Status(fiber.StatusBadRequest).
			JSON(types.ErrInvalidInput(ErrMsgFileRequired))
	}

	file, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).
			JSON(types.ErrInvalidInput(ErrMsgFileOpenFailed))
	}
	defer file.Close()

	job, err := h.jobService.Submit(c.Context(), services.SubmitRequest{
		Filename:   fileHeader.Filename,
		Content:    file,
		WebhookURL: c.FormValue(FormFieldWebhookURL),
	})
	if err != nil {
		if errors.Is(err, services.ErrInvalidFile) || errors.Is(err, services.ErrInvalidWebhookURL) {
			return c.Status(fiber.StatusBadRequest).
				JSON(types.ErrInvalidInput(err.Error()))
		}
		logger.Errorf("Failed to submit job: %v", err)
		return c.Status(fiber.StatusInternalServerError).
			JSON(types.ErrServer(ErrMsgSubmitFailed))
	}

	return c.Status(fiber.StatusAccepted).JSON(types.UploadResponse{
		Message:   MsgUploadAccepted,
		RequestID: job.RequestID,
	})
}

// GetStatus returns the status of a job
func (h *JobHandler) GetStatus(c *fiber.Ctx) error {
	requestID := c.Params("id")
	if requestID == "" {
		return c.Status(fiber.StatusBadRequest).
			JSON(types.ErrInvalidInput(ErrMsgJobIDRequired))
	}

	status, err := h.jobService.Status(c.Context(), requestID)
	if err != nil {
		if errors.Is(err, services.ErrJobNotFound) {
			return c.Status(fiber.StatusNotFound).
				JSON(types.ErrNotFound(ErrMsgJobNotFound))
		}
		return c.Status(fiber.StatusInternalServerError).
			JSON(types.ErrServer(ErrMsgJobStatusFailed))
	}

	return c.JSON(status)
}

// Abort stops a pending or running job
func (h *JobHandler) Abort(c *fiber.Ctx) error {
	requestID := c.Params("id")
	if requestID == "" {
		return c.Status(fiber.StatusBadRequest).
			JSON(types.ErrInvalidInput(ErrMsgJobIDRequired))
	}

	aborted, err := h.jobService.Abort(c.Context(), requestID)
	if err != nil {
		if errors.Is(err, services.ErrJobNotFound) {
			return c.Status(fiber.StatusNotFound).
				JSON(types.ErrNotFound(ErrMsgJobNotFound))
		}
		return c.Status(fiber.StatusInternalServerError).
			JSON(types.ErrServer(ErrMsgJobAbortFailed))
	}
	if !aborted {
		return c.Status(fiber.StatusConflict).
			JSON(types.SlugResponse{Slug: types.ErrorSlug, Error: ErrMsgJobAlreadyFinished})
	}

	return c.JSON(types.AbortResponse{RequestID: requestID, Aborted: true})
}
