package handler

import (
	"net/http"
	"strconv"

	"github.com/thomas-denton/lease-intelligence/internal/middleware"
	"github.com/thomas-denton/lease-intelligence/internal/service"
	"github.com/thomas-denton/lease-intelligence/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// AuditHandler serves the per-field extraction audit trail.
type AuditHandler struct {
	audit           *service.AuditService
	confidenceFloor float64
}

func NewAuditHandler(audit *service.AuditService, confidenceFloor float64) *AuditHandler {
	return &AuditHandler{audit: audit, confidenceFloor: confidenceFloor}
}

// OverrideRequest is the payload for a human correction of one audit entry.
type OverrideRequest struct {
	NewValue string `json:"new_value"`
	Reason   string `json:"reason"`
}

// RecordField handles appending one audit entry outside the ingest flow
func (h *AuditHandler) RecordField(c echo.Context) error {
	log := logger.FromContext(c)

	identity, ok := middleware.CallerIdentity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Missing caller identity"})
	}
	leaseID, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid lease id"})
	}

	var in service.RecordInput
	if err := c.Bind(&in); err != nil {
		log.Error("Invalid audit payload", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request data"})
	}

	entry, err := h.audit.Record(c.Request().Context(), identity, leaseID, &in)
	if err != nil {
		return respondError(c, log, err)
	}
	return c.JSON(http.StatusCreated, entry)
}

// FieldHistory handles retrieving the ordered history of one field on one lease
func (h *AuditHandler) FieldHistory(c echo.Context) error {
	log := logger.FromContext(c)

	identity, ok := middleware.CallerIdentity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Missing caller identity"})
	}
	leaseID, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid lease id"})
	}
	fieldName := c.Param("field")

	history, err := h.audit.FieldHistory(c.Request().Context(), identity, leaseID, fieldName)
	if err != nil {
		return respondError(c, log, err)
	}
	return c.JSON(http.StatusOK, history)
}

// OverrideField handles a human correction; the prior entry is kept and linked
func (h *AuditHandler) OverrideField(c echo.Context) error {
	log := logger.FromContext(c)

	identity, ok := middleware.CallerIdentity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Missing caller identity"})
	}
	entryID, err := parseID(c, "entry_id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid entry id"})
	}

	var req OverrideRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid override payload", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request data"})
	}

	entry, err := h.audit.Override(c.Request().Context(), identity, entryID, req.NewValue, req.Reason)
	if err != nil {
		return respondError(c, log, err)
	}
	log.Info("Audit entry overridden",
		zap.Uint("entry_id", entryID),
		zap.Uint("new_entry_id", entry.ID))
	return c.JSON(http.StatusCreated, entry)
}

// ListLowConfidence handles the review queue of entries below the confidence
// floor. A threshold query parameter may tighten or loosen the default floor.
func (h *AuditHandler) ListLowConfidence(c echo.Context) error {
	log := logger.FromContext(c)

	identity, ok := middleware.CallerIdentity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Missing caller identity"})
	}

	threshold := h.confidenceFloor
	if raw := c.QueryParam("threshold"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed < 0 || parsed > 1 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid threshold"})
		}
		threshold = parsed
	}

	entries, err := h.audit.ListLowConfidence(c.Request().Context(), identity, threshold)
	if err != nil {
		return respondError(c, log, err)
	}
	log.Info("Low-confidence entries listed",
		zap.Float64("threshold", threshold),
		zap.Int("count", len(entries)))
	return c.JSON(http.StatusOK, entries)
}
