package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"rebooked-marketplace/internal/adapter/http/dto"
	"rebooked-marketplace/internal/adapter/http/middleware"
	"rebooked-marketplace/internal/core/domain"
	"rebooked-marketplace/internal/core/ports"
	"rebooked-marketplace/pkg/apperror"
	"rebooked-marketplace/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// bindJSON decodes and validates the body into req, writing the error
// response itself when that fails.
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		response.Error(c, bindError(err))
		return false
	}
	dto.SanitizeStruct(req)
	return true
}

// bindOptionalJSON is bindJSON for endpoints whose body may be empty.
func bindOptionalJSON(c *gin.Context, req interface{}) bool {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, bindError(err))
		return false
	}
	dto.SanitizeStruct(req)
	return true
}

func bindError(err error) *apperror.AppError {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return apperror.Validation(fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit))
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fieldMessage(fe))
		}
		return apperror.Validation(strings.Join(msgs, "; "))
	}
	return apperror.Validation("invalid request body: " + err.Error())
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "uuid":
		return field + " must be a UUID"
	case "email":
		return field + " must be an email address"
	case "province":
		return field + " must be a South African province"
	case "postal_code":
		return field + " must be a 4-digit postal code"
	case "gt", "gte", "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	}
	return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
}

// actor returns the authenticated caller, or writes 401.
func actor(c *gin.Context) (ports.Actor, *ports.TokenClaims, bool) {
	claims, ok := middleware.Claims(c)
	if !ok {
		response.Error(c, apperror.ErrUnauthorized())
		return ports.Actor{}, nil, false
	}
	return ports.Actor{UserID: claims.UserID, IsAdmin: claims.IsAdmin()}, claims, true
}

// uuidParam parses the named path parameter, or writes 400.
func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.Error(c, apperror.Validation(name+" must be a UUID"))
		return uuid.Nil, false
	}
	return id, true
}

func pagination(c *gin.Context) (page, pageSize int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(defaultPageSize)))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

func toAddress(a dto.AddressRequest) domain.Address {
	return domain.Address{
		Street:     a.Street,
		Suburb:     a.Suburb,
		City:       a.City,
		Province:   a.Province,
		PostalCode: a.PostalCode,
	}
}
