package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zombor/eco-receipts/internal/export"
	"github.com/zombor/eco-receipts/internal/receipt"
	"github.com/zombor/eco-receipts/internal/session"
)

// statusClientClosed is logged when the client went away before we answered
const statusClientClosed = 499

type errorResponse struct {
	Error string `json:"error"`
}

// writeError aborts the request with the status matching err and a JSON body
func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	message := err.Error()
	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", "path", c.Request.URL.Path, "error", err)
		message = "Internal server error"
	}
	c.AbortWithStatusJSON(status, errorResponse{Error: message})
}

func statusFor(err error) int {
	var (
		uploadErr  *receipt.UploadError
		authErr    *session.AuthError
		exportErr  *export.ExportError
		storageErr *session.StorageError
	)

	switch {
	case errors.As(err, &uploadErr):
		switch {
		case errors.Is(err, receipt.ErrTooLarge):
			return http.StatusRequestEntityTooLarge
		case errors.Is(err, receipt.ErrUnsupportedType):
			return http.StatusUnsupportedMediaType
		case errors.Is(err, context.Canceled):
			return statusClientClosed
		case errors.Is(err, context.DeadlineExceeded):
			return http.StatusGatewayTimeout
		}
		return http.StatusBadRequest

	case errors.As(err, &authErr):
		switch {
		case errors.Is(err, session.ErrDuplicateEmail):
			return http.StatusConflict
		case errors.Is(err, session.ErrInvalidInput):
			return http.StatusUnprocessableEntity
		case errors.Is(err, session.ErrAuthInProgress):
			return http.StatusTooManyRequests
		case errors.Is(err, context.Canceled):
			return statusClientClosed
		case errors.Is(err, context.DeadlineExceeded):
			return http.StatusGatewayTimeout
		}
		return http.StatusUnauthorized

	case errors.As(err, &exportErr):
		if errors.Is(err, export.ErrUnknownFormat) {
			return http.StatusBadRequest
		}
		return http.StatusInternalServerError

	case errors.As(err, &storageErr):
		return http.StatusInternalServerError

	case errors.Is(err, receipt.ErrNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
