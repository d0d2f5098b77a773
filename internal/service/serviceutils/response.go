package serviceutils

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/locvowork/employee_directory/internal/domain"
	"github.com/locvowork/employee_directory/internal/logger"
)

// APIResponse is the envelope every JSON endpoint answers with.
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func ResponseSuccess(c echo.Context, status int, message string, data interface{}) error {
	return c.JSON(status, APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// ResponseError logs err against the request and writes the error envelope.
// 5xx responses do not leak the underlying error text.
func ResponseError(c echo.Context, status int, message string, err error) error {
	ctx := c.Request().Context()
	resp := APIResponse{Message: message}
	if err != nil {
		if status >= http.StatusInternalServerError {
			logger.ErrorLog(ctx, "%s: %v", message, err)
		} else {
			logger.WarnLog(ctx, "%s: %v", message, err)
			resp.Error = err.Error()
		}
	}
	return c.JSON(status, resp)
}

// StatusOf maps a domain error to the HTTP status it is reported with.
func StatusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrFetch):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrSearchUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
