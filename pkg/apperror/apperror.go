package apperror

import (
	"fmt"

	"pdfrag/config"
	"pdfrag/pkg/apperror/status"
	"pdfrag/pkg/logger"

	"github.com/gofiber/fiber/v3"
)

// ErrorResponse is the standardized HTTP error payload
type ErrorResponse struct {
	Error     string `json:"error"`
	ErrorCode string `json:"error_code"`
}

type FiberSuccessMessage struct {
	Code       status.SuccessCode `json:"code"`
	Message    string             `json:"message"`
	TrackingID string             `json:"tracking_id"`
	Data       any                `json:"data"`
}

// WriteError logs a structured warning and returns a standardized JSON error
func WriteError(module config.Module, c fiber.Ctx, httpStatus int, code string, message string) error {
	logger.WithFields(map[string]interface{}{
		"module":        module,
		"status_code":   httpStatus,
		"error_code":    code,
		"error_message": message,
		"http_method":   c.Method(),
		"path":          c.Path(),
		"ip":            c.IP(),
	}).Warnf("http error")

	return c.Status(httpStatus).JSON(ErrorResponse{
		Error:     message,
		ErrorCode: code,
	})
}

// Shorthands for common error responses
func BadRequest(module config.Module, c fiber.Ctx, code status.ErrorCode, message string) error {
	errorCode := fmt.Sprintf("RAG-%d", code)
	return WriteError(module, c, fiber.StatusBadRequest, errorCode, message)
}

func NotFound(module config.Module, c fiber.Ctx, message string) error {
	errorCode := fmt.Sprintf("RAG-%d", status.NotFound)
	return WriteError(module, c, fiber.StatusNotFound, errorCode, message)
}

// InternalError writes a structured warning and returns a standardized JSON error
func InternalError(module config.Module, c fiber.Ctx, err error) error {
	errorCode := fmt.Sprintf("RAG-%d", status.DocumentInternal)
	return WriteError(module, c, fiber.StatusInternalServerError, errorCode, err.Error())
}

// InternalCoded is InternalError with a caller-chosen code
func InternalCoded(module config.Module, c fiber.Ctx, code status.ErrorCode, err error) error {
	errorCode := fmt.Sprintf("RAG-%d", code)
	return WriteError(module, c, fiber.StatusInternalServerError, errorCode, err.Error())
}

// Success writes a standardized JSON success response
func Success(module config.Module, c fiber.Ctx, response FiberSuccessMessage) error {
	return c.Status(fiber.StatusOK).JSON(response)
}
