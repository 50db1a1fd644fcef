package httpapi

import (
	"errors"
	"net/http"

	"github.com/nixxel-company-limited/escpos-checkin/api"
	"github.com/nixxel-company-limited/escpos-checkin/checkin"
	"github.com/nixxel-company-limited/escpos-checkin/printer"
)

// StatusFor maps a workflow or printer error to an HTTP status
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, checkin.ErrBusy):
		return http.StatusTooManyRequests
	case errors.Is(err, checkin.ErrEmptyCode):
		return http.StatusBadRequest
	case errors.Is(err, checkin.ErrNoApplication):
		return http.StatusConflict
	case errors.Is(err, api.ErrNotFound):
		return http.StatusNotFound
	}

	var pe *printer.Error
	if errors.As(err, &pe) {
		switch pe.Kind {
		case printer.KindNotConnected:
			return http.StatusConflict
		case printer.KindNoPairedDevices:
			return http.StatusNotFound
		case printer.KindPermissionDenied:
			return http.StatusForbidden
		case printer.KindRadioUnavailable:
			return http.StatusServiceUnavailable
		default:
			return http.StatusBadGateway
		}
	}

	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
