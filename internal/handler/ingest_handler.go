package handler

import (
	"net/http"

	"github.com/thomas-denton/lease-intelligence/internal/middleware"
	"github.com/thomas-denton/lease-intelligence/internal/service"
	"github.com/thomas-denton/lease-intelligence/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// IngestHandler receives finished analyses from the extraction pipeline.
type IngestHandler struct {
	ingest *service.IngestService
}

func NewIngestHandler(ingest *service.IngestService) *IngestHandler {
	return &IngestHandler{ingest: ingest}
}

// Ingest handles persisting one complete lease analysis
func (h *IngestHandler) Ingest(c echo.Context) error {
	log := logger.FromContext(c)

	identity, ok := middleware.CallerIdentity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{
			"error": "Missing caller identity",
		})
	}

	var in service.IngestInput
	if err := c.Bind(&in); err != nil {
		log.Error("Invalid ingest payload", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "Invalid request data",
		})
	}

	log.Info("Ingesting lease analysis",
		zap.String("extraction_id", in.Lease.ExtractionID),
		zap.Int("fields", len(in.Fields)),
		zap.Int("flags", len(in.Flags)))

	lease, err := h.ingest.Ingest(c.Request().Context(), identity, &in)
	if err != nil {
		return respondError(c, log, err)
	}

	log.Info("Lease analysis persisted",
		zap.Uint("lease_id", lease.ID),
		zap.String("extraction_id", lease.ExtractionID))
	return c.JSON(http.StatusCreated, lease)
}
