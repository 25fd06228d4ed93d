package handler

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/bolworks/api/internal/engine"
	"github.com/bolworks/api/internal/model"
	"github.com/bolworks/api/pkg/response"
)

// ConvertHandler exposes the engine's submit/status/result operations.
type ConvertHandler struct {
	engine        *engine.Engine
	validator     *validator.Validate
	maxUploadSize int64
}

// submitForm carries the non-file fields of a submission.
type submitForm struct {
	Priority string `validate:"omitempty,oneof=low normal high urgent"`
}

func NewConvertHandler(eng *engine.Engine, v *validator.Validate, maxUploadSizeMB int) *ConvertHandler {
	return &ConvertHandler{
		engine:        eng,
		validator:     v,
		maxUploadSize: int64(maxUploadSizeMB) * 1024 * 1024,
	}
}

// Submit handles POST /api/convert/submit
// @Summary      Submit conversion job
// @Description  Queue a BOL document for asynchronous conversion to CSV
// @Tags         Convert
// @Accept       multipart/form-data
// @Produce      json
// @Param        pdf      formData file   true  "BOL document (PDF)"
// @Param        csv      formData file   false "Reference tabular file to merge"
// @Param        priority formData string false "Job priority: low, normal, high, urgent"
// @Success      202 {object} model.SubmitResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      429 {object} response.ErrorResponse
// @Failure      503 {object} response.ErrorResponse
// @Router       /api/convert/submit [post]
func (h *ConvertHandler) Submit(c *fiber.Ctx) error {
	form := submitForm{Priority: c.FormValue("priority")}
	if err := h.validator.Struct(&form); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	pdfHeader, err := c.FormFile("pdf")
	if err != nil {
		return response.ValidationError(c, "PDF file is required", nil)
	}
	if pdfHeader.Size > h.maxUploadSize {
		return response.ValidationError(c, "File size exceeds limit", map[string]interface{}{
			"maxSize":  h.maxUploadSize,
			"fileSize": pdfHeader.Size,
		})
	}

	document, err := readUpload(pdfHeader)
	if err != nil {
		return response.ServiceError(c, "Failed to read PDF file")
	}

	payload := model.Payload{
		Document:     document,
		DocumentName: pdfHeader.Filename,
	}

	// Reference tabular file is optional.
	if csvHeader, err := c.FormFile("csv"); err == nil && csvHeader.Filename != "" {
		if csvHeader.Size > h.maxUploadSize {
			return response.ValidationError(c, "File size exceeds limit", map[string]interface{}{
				"maxSize":  h.maxUploadSize,
				"fileSize": csvHeader.Size,
			})
		}
		reference, err := readUpload(csvHeader)
		if err != nil {
			return response.ServiceError(c, "Failed to read CSV file")
		}
		payload.Reference = reference
		payload.ReferenceName = csvHeader.Filename
	}

	jobID, err := h.engine.Submit(model.ParsePriority(form.Priority), payload)
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrEmptyDocument), errors.Is(err, engine.ErrUnsupportedDocument):
			return response.ValidationError(c, err.Error(), nil)
		case errors.Is(err, engine.ErrCapacityExceeded):
			return response.CapacityExceeded(c, "System overloaded, resubmit later")
		default:
			return response.ServiceError(c, err.Error())
		}
	}

	return response.Accepted(c, model.SubmitResponse{
		JobID:     jobID,
		Status:    model.JobStatusQueued,
		StatusURL: fmt.Sprintf("/api/convert/status/%s", jobID),
		ResultURL: fmt.Sprintf("/api/convert/result/%s", jobID),
	})
}

// Status handles GET /api/convert/status/:jobId
// @Summary      Get job status
// @Description  Get the current status and timestamps of a conversion job
// @Tags         Convert
// @Produce      json
// @Param        jobId path string true "Job ID"
// @Success      200 {object} model.JobStatusView
// @Failure      404 {object} response.ErrorResponse
// @Router       /api/convert/status/{jobId} [get]
func (h *ConvertHandler) Status(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	view, err := h.engine.Status(jobID)
	if err != nil {
		if errors.Is(err, engine.ErrJobNotFound) {
			return response.NotFound(c, "Job not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, view)
}

// Result handles GET /api/convert/result/:jobId
// @Summary      Download job result
// @Description  Download the CSV output of a completed conversion job
// @Tags         Convert
// @Produce      text/csv
// @Param        jobId path string true "Job ID"
// @Success      200 {file} file
// @Failure      404 {object} response.ErrorResponse
// @Router       /api/convert/result/{jobId} [get]
func (h *ConvertHandler) Result(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	data, err := h.engine.Result(c.Context(), jobID)
	if err != nil {
		if errors.Is(err, engine.ErrJobNotFound) {
			return response.NotFound(c, "Result not available")
		}
		return response.ServiceError(c, err.Error())
	}

	c.Set(fiber.HeaderContentType, "text/csv")
	c.Set(fiber.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename="bol_result_%s.csv"`, jobID))
	return c.Send(data)
}

func readUpload(header *multipart.FileHeader) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// formatValidationErrors formats validator errors for response
func formatValidationErrors(err error) interface{} {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		errs := make(map[string]string)
		for _, e := range validationErrors {
			errs[e.Field()] = e.Tag()
		}
		return errs
	}
	return err.Error()
}
