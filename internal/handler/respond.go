package handler

import (
	"net/http"

	"github.com/thomas-denton/lease-intelligence/internal/apperr"
	"github.com/thomas-denton/lease-intelligence/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// httpStatus maps an error kind to the HTTP status it surfaces as.
func httpStatus(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation,
		apperr.KindInvalidConfidence,
		apperr.KindMissingJustification,
		apperr.KindScoreOutOfRange,
		apperr.KindInvalidEnum:
		return http.StatusBadRequest
	case apperr.KindDuplicateExternalKey:
		return http.StatusConflict
	case apperr.KindAccessDenied:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindLockTimeout, apperr.KindConcurrencyConflict:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// respondError translates a service error into the JSON error body. Internal
// details never leave the process; callers see the kind and a stable message.
func respondError(c echo.Context, log *zap.Logger, err error) error {
	kind := apperr.KindOf(err)
	status := httpStatus(kind)
	prometheus.RecordError(string(kind))

	if status >= http.StatusInternalServerError {
		log.Error("Request failed", zap.String("kind", string(kind)), zap.Error(err))
		return c.JSON(status, echo.Map{
			"error": "Internal server error",
			"kind":  kind,
		})
	}
	log.Warn("Request rejected", zap.String("kind", string(kind)), zap.Error(err))
	return c.JSON(status, echo.Map{
		"error": err.Error(),
		"kind":  kind,
	})
}
