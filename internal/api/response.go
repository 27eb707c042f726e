package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Faultbox/decalforge/internal/catalog"
	"github.com/Faultbox/decalforge/internal/customizer/store"
)

// Error codes carried in ErrorInfo.Code.
const (
	ErrCodeInternal    = "ERR_INTERNAL"
	ErrCodeBadRequest  = "ERR_BAD_REQUEST"
	ErrCodeValidation  = "ERR_VALIDATION"
	ErrCodeNotFound    = "ERR_NOT_FOUND"
	ErrCodeConflict    = "ERR_CONFLICT"
	ErrCodeUnsupported = "ERR_UNSUPPORTED_MEDIA"
	ErrCodeTooLarge    = "ERR_PAYLOAD_TOO_LARGE"
	ErrCodeUnavailable = "ERR_UNAVAILABLE"
)

// Response is the envelope of every JSON reply.
type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
}

// ErrorInfo describes a failed request.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewSuccessResponse wraps data in a success envelope.
func NewSuccessResponse(data any) Response {
	return Response{Success: true, Data: data}
}

// NewErrorResponse builds an error envelope.
func NewErrorResponse(code, message string) Response {
	return Response{Error: &ErrorInfo{Code: code, Message: message}}
}

// BaseHandler provides the response helpers shared by all handlers.
type BaseHandler struct{}

// Success sends a 200 response.
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, NewSuccessResponse(data))
}

// Created sends a 201 response.
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, NewSuccessResponse(data))
}

// NoContent sends a 204 response.
func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error sends an error response with the given status.
func (h *BaseHandler) Error(c *gin.Context, status int, code, message string) {
	c.JSON(status, NewErrorResponse(code, message))
}

// BadRequest sends a 400 response.
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// NotFound sends a 404 response.
func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.Error(c, http.StatusNotFound, ErrCodeNotFound, message)
}

// Fail maps a domain error to its status code.
func (h *BaseHandler) Fail(c *gin.Context, err error) {
	_ = c.Error(err)
	switch {
	case errors.Is(err, store.ErrUnknownPart),
		errors.Is(err, store.ErrUnknownDecal),
		errors.Is(err, catalog.ErrNotFound):
		h.Error(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, store.ErrDuplicateID):
		h.Error(c, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.Is(err, store.ErrInvalidColor),
		errors.Is(err, store.ErrInvalidMode):
		h.Error(c, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case errors.Is(err, ErrLoopClosed),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		h.Error(c, http.StatusServiceUnavailable, ErrCodeUnavailable, err.Error())
	default:
		h.Error(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}
