package handler

import (
	"net/http"

	"github.com/thomas-denton/lease-intelligence/internal/middleware"
	"github.com/thomas-denton/lease-intelligence/internal/service"
	"github.com/thomas-denton/lease-intelligence/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// AccountHandler serves the account directory.
type AccountHandler struct {
	accounts *service.AccountService
}

func NewAccountHandler(accounts *service.AccountService) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

// CreateAccount handles registering a new account
func (h *AccountHandler) CreateAccount(c echo.Context) error {
	log := logger.FromContext(c)

	identity, ok := middleware.CallerIdentity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Missing caller identity"})
	}

	var in service.AccountInput
	if err := c.Bind(&in); err != nil {
		log.Error("Invalid account payload", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request data"})
	}

	account, err := h.accounts.Create(c.Request().Context(), identity, &in)
	if err != nil {
		return respondError(c, log, err)
	}
	log.Info("Account created", zap.Uint("account_id", account.ID))
	return c.JSON(http.StatusCreated, account)
}

// GetAccount handles retrieving one account
func (h *AccountHandler) GetAccount(c echo.Context) error {
	log := logger.FromContext(c)

	identity, ok := middleware.CallerIdentity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Missing caller identity"})
	}
	accountID, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid account id"})
	}

	account, err := h.accounts.Get(c.Request().Context(), identity, accountID)
	if err != nil {
		return respondError(c, log, err)
	}
	return c.JSON(http.StatusOK, account)
}

// DeactivateAccount handles switching an account off while keeping its history
func (h *AccountHandler) DeactivateAccount(c echo.Context) error {
	log := logger.FromContext(c)

	identity, ok := middleware.CallerIdentity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Missing caller identity"})
	}
	accountID, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid account id"})
	}

	if err := h.accounts.Deactivate(c.Request().Context(), identity, accountID); err != nil {
		return respondError(c, log, err)
	}
	log.Info("Account deactivated", zap.Uint("account_id", accountID))
	return c.JSON(http.StatusOK, echo.Map{
		"message": "Account deactivated successfully",
	})
}
