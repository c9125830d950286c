package response

import (
	"net/http"
	"time"

	"rebooked-marketplace/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SuccessResponse is the standard success envelope.
type SuccessResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data"`
	RequestID string      `json:"request_id"`
	Timestamp string      `json:"timestamp"`
}

// ErrorBody is the client-visible part of a failure.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse is the standard error envelope.
type ErrorResponse struct {
	Success   bool      `json:"success"`
	Error     ErrorBody `json:"error"`
	RequestID string    `json:"request_id"`
	Timestamp string    `json:"timestamp"`
}

// PageMeta describes one page of a listing.
type PageMeta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalCount int64 `json:"total_count"`
	TotalPages int   `json:"total_pages"`
}

// Page wraps a listing with its pagination metadata.
type Page struct {
	Items interface{} `json:"items"`
	Meta  PageMeta    `json:"meta"`
}

// NewPage builds a Page, computing the page count from total and size.
func NewPage(items interface{}, page, size int, total int64) Page {
	pages := 0
	if size > 0 {
		pages = int((total + int64(size) - 1) / int64(size))
	}
	return Page{
		Items: items,
		Meta:  PageMeta{Page: page, PageSize: size, TotalCount: total, TotalPages: pages},
	}
}

// OK sends a 200 response with data.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, success(c, data))
}

// Created sends a 201 response with data.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, success(c, data))
}

// Error sends an error response. *apperror.AppError values keep their code
// and status; anything else becomes a 500.
func Error(c *gin.Context, err error) {
	if appErr, ok := apperror.As(err); ok {
		c.JSON(appErr.HTTPStatus, failure(c, appErr.Code, appErr.Message))
		return
	}

	c.JSON(http.StatusInternalServerError, failure(c, apperror.CodeInternal, "Internal server error"))
}

// Abort writes an error response and stops the middleware chain.
func Abort(c *gin.Context, err *apperror.AppError) {
	c.AbortWithStatusJSON(err.HTTPStatus, failure(c, err.Code, err.Message))
}

func success(c *gin.Context, data interface{}) SuccessResponse {
	return SuccessResponse{
		Success:   true,
		Data:      data,
		RequestID: getRequestID(c),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

func failure(c *gin.Context, code, message string) ErrorResponse {
	return ErrorResponse{
		Success:   false,
		Error:     ErrorBody{Code: code, Message: message},
		RequestID: getRequestID(c),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// getRequestID retrieves request ID from context, or generates one.
func getRequestID(c *gin.Context) string {
	if id, exists := c.Get("request_id"); exists {
		if s, ok := id.(string); ok {
			return s
		}
	}
	return uuid.New().String()
}
