package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MarcoPoloResearchLab/resumate/internal/editor"
	"github.com/MarcoPoloResearchLab/resumate/internal/imports"
	"github.com/MarcoPoloResearchLab/resumate/internal/resumes"
)

type errorPayload struct {
	Error    string               `json:"error"`
	Code     string               `json:"code,omitempty"`
	Fields   []imports.FieldError `json:"fields,omitempty"`
	Warnings []string             `json:"warnings,omitempty"`
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, editor.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, editor.ErrNotFound), errors.Is(err, editor.ErrSectionNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, editor.ErrImportValidationFailed):
		return http.StatusUnprocessableEntity, "import_validation_failed"
	case errors.Is(err, editor.ErrContentTypeMismatch),
		errors.Is(err, resumes.ErrUnknownSectionType),
		errors.Is(err, resumes.ErrReorderMismatch),
		errors.Is(err, resumes.ErrDuplicateSectionID):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, editor.ErrNoActiveDocument):
		return http.StatusConflict, "no_active_document"
	case errors.Is(err, editor.ErrProfileUnavailable):
		return http.StatusNotFound, "profile_unavailable"
	case errors.Is(err, editor.ErrLoadFailed), errors.Is(err, editor.ErrPersistFailed):
		return http.StatusBadGateway, "remote_store_failed"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func (h *httpHandler) respondError(c *gin.Context, err error) {
	status, label := statusFor(err)
	payload := errorPayload{Error: label}
	var serviceErr *editor.ServiceError
	if errors.As(err, &serviceErr) {
		payload.Code = serviceErr.Code()
	}
	var validationErr *editor.ImportValidationError
	if errors.As(err, &validationErr) {
		payload.Fields = validationErr.Fields
		payload.Warnings = validationErr.Warnings
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.AbortWithStatusJSON(status, payload)
}

func badRequest(c *gin.Context, reason string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorPayload{Error: "invalid_request", Code: reason})
}
