package handler

import (
	"net/http"

	"github.com/thomas-denton/lease-intelligence/internal/middleware"
	"github.com/thomas-denton/lease-intelligence/internal/service"
	"github.com/thomas-denton/lease-intelligence/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// SchemaHandler serves the extraction schema version ledger.
type SchemaHandler struct {
	schema *service.SchemaService
}

func NewSchemaHandler(schema *service.SchemaService) *SchemaHandler {
	return &SchemaHandler{schema: schema}
}

// SchemaVersionRequest is the payload for recording a new schema version.
type SchemaVersionRequest struct {
	Version string `json:"version"`
}

// ListSchemaVersions handles listing the ledger, oldest first
func (h *SchemaHandler) ListSchemaVersions(c echo.Context) error {
	log := logger.FromContext(c)

	versions, err := h.schema.List(c.Request().Context())
	if err != nil {
		return respondError(c, log, err)
	}
	return c.JSON(http.StatusOK, versions)
}

// AppendSchemaVersion handles recording a new version in the ledger
func (h *SchemaHandler) AppendSchemaVersion(c echo.Context) error {
	log := logger.FromContext(c)

	identity, ok := middleware.CallerIdentity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Missing caller identity"})
	}

	var req SchemaVersionRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid schema version payload", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request data"})
	}

	entry, err := h.schema.Append(c.Request().Context(), identity, req.Version)
	if err != nil {
		return respondError(c, log, err)
	}
	log.Info("Schema version appended", zap.String("version", entry.Version))
	return c.JSON(http.StatusCreated, entry)
}
