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

// LeaseHandler serves lease record reads, patches and soft deletes.
type LeaseHandler struct {
	leases *service.LeaseService
	flags  *service.FlagService
}

func NewLeaseHandler(leases *service.LeaseService, flags *service.FlagService) *LeaseHandler {
	return &LeaseHandler{leases: leases, flags: flags}
}

func parseID(c echo.Context, name string) (uint, error) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}

// GetLease handles retrieving a single lease record by ID
func (h *LeaseHandler) GetLease(c echo.Context) error {
	log := logger.FromContext(c)

	identity, ok := middleware.CallerIdentity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Missing caller identity"})
	}
	leaseID, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid lease id"})
	}

	lease, err := h.leases.Get(c.Request().Context(), identity, leaseID)
	if err != nil {
		return respondError(c, log, err)
	}
	return c.JSON(http.StatusOK, lease)
}

// GetLeaseByExtractionID handles lookup by the pipeline's external key
func (h *LeaseHandler) GetLeaseByExtractionID(c echo.Context) error {
	log := logger.FromContext(c)

	identity, ok := middleware.CallerIdentity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Missing caller identity"})
	}
	extractionID := c.Param("extraction_id")

	lease, err := h.leases.GetByExtractionID(c.Request().Context(), identity, extractionID)
	if err != nil {
		return respondError(c, log, err)
	}
	return c.JSON(http.StatusOK, lease)
}

// ListLeases handles listing the caller's (or, for admins, any account's) leases
func (h *LeaseHandler) ListLeases(c echo.Context) error {
	log := logger.FromContext(c)

	identity, ok := middleware.CallerIdentity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Missing caller identity"})
	}

	accountID := identity.AccountID
	if raw := c.QueryParam("account_id"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid account_id"})
		}
		accountID = uint(parsed)
	}

	leases, err := h.leases.ListForAccount(c.Request().Context(), identity, accountID)
	if err != nil {
		return respondError(c, log, err)
	}
	log.Info("Leases listed", zap.Uint("account_id", accountID), zap.Int("count", len(leases)))
	return c.JSON(http.StatusOK, leases)
}

// UpdateLease handles patching mutable fields of a lease record
func (h *LeaseHandler) UpdateLease(c echo.Context) error {
	log := logger.FromContext(c)

	identity, ok := middleware.CallerIdentity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Missing caller identity"})
	}
	leaseID, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid lease id"})
	}

	var patch map[string]interface{}
	if err := c.Bind(&patch); err != nil {
		log.Error("Invalid patch payload", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request data"})
	}

	lease, err := h.leases.Update(c.Request().Context(), identity, leaseID, patch)
	if err != nil {
		return respondError(c, log, err)
	}
	log.Info("Lease updated", zap.Uint("lease_id", leaseID))
	return c.JSON(http.StatusOK, lease)
}

// DeleteLease handles soft-deleting a lease record
func (h *LeaseHandler) DeleteLease(c echo.Context) error {
	log := logger.FromContext(c)

	identity, ok := middleware.CallerIdentity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Missing caller identity"})
	}
	leaseID, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid lease id"})
	}

	if err := h.leases.SoftDelete(c.Request().Context(), identity, leaseID); err != nil {
		return respondError(c, log, err)
	}
	log.Info("Lease soft-deleted", zap.Uint("lease_id", leaseID))
	return c.JSON(http.StatusOK, echo.Map{
		"message": "Lease deleted successfully",
	})
}

// PurgeLease handles permanent removal of a lease and its children
func (h *LeaseHandler) PurgeLease(c echo.Context) error {
	log := logger.FromContext(c)

	identity, ok := middleware.CallerIdentity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Missing caller identity"})
	}
	leaseID, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid lease id"})
	}

	if err := h.leases.Purge(c.Request().Context(), identity, leaseID); err != nil {
		return respondError(c, log, err)
	}
	log.Info("Lease purged", zap.Uint("lease_id", leaseID))
	return c.JSON(http.StatusOK, echo.Map{
		"message": "Lease purged successfully",
	})
}

// GetLeaseForAudit handles admin retrieval that includes soft-deleted rows
func (h *LeaseHandler) GetLeaseForAudit(c echo.Context) error {
	log := logger.FromContext(c)

	identity, ok := middleware.CallerIdentity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Missing caller identity"})
	}
	leaseID, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid lease id"})
	}

	lease, err := h.leases.GetForAudit(c.Request().Context(), identity, leaseID)
	if err != nil {
		return respondError(c, log, err)
	}
	return c.JSON(http.StatusOK, lease)
}

// ListLeaseFlags handles listing a lease's risk flags, most severe first
func (h *LeaseHandler) ListLeaseFlags(c echo.Context) error {
	log := logger.FromContext(c)

	identity, ok := middleware.CallerIdentity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Missing caller identity"})
	}
	leaseID, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid lease id"})
	}

	flags, err := h.flags.ListForLease(c.Request().Context(), identity, leaseID)
	if err != nil {
		return respondError(c, log, err)
	}
	return c.JSON(http.StatusOK, flags)
}

// AttachLeaseFlags handles appending a batch of risk flags to a lease
func (h *LeaseHandler) AttachLeaseFlags(c echo.Context) error {
	log := logger.FromContext(c)

	identity, ok := middleware.CallerIdentity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Missing caller identity"})
	}
	leaseID, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid lease id"})
	}

	var inputs []service.FlagInput
	if err := c.Bind(&inputs); err != nil {
		log.Error("Invalid flag payload", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request data"})
	}

	flags, err := h.flags.AttachAll(c.Request().Context(), identity, leaseID, inputs)
	if err != nil {
		return respondError(c, log, err)
	}
	log.Info("Risk flags attached", zap.Uint("lease_id", leaseID), zap.Int("count", len(flags)))
	return c.JSON(http.StatusCreated, flags)
}
