// internal/handler/errors.go
package handler

import (
	"errors"
	"net/http"

	"instrument-service/internal/service"
	"instrument-service/internal/utils"
)

// statusFor maps service errors, then falls back to the lower layers
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInstrumentNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrCapabilityNotSupported):
		return http.StatusNotImplemented
	case errors.Is(err, service.ErrEmptyCommand), errors.Is(err, service.ErrUnsupportedScanType):
		return http.StatusBadRequest
	default:
		return utils.StatusForError(err)
	}
}
