package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/ONE2ALLINFOTECH/ecomerce/internal/account"
	"github.com/ONE2ALLINFOTECH/ecomerce/internal/middleware"
	"github.com/ONE2ALLINFOTECH/ecomerce/internal/models"
)

// AccountService is what the customer endpoints need from account.
type AccountService interface {
	Register(ctx context.Context, req models.RegisterCustomerRequest) (*account.AuthResult, error)
	Login(ctx context.Context, email, password string) (*account.AuthResult, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, password, confirm string) error
}

// CustomerOrders lists a customer's orders, newest first.
type CustomerOrders interface {
	FindByCustomerID(ctx context.Context, customerID string, limit, page int) ([]models.Order, int64, error)
}

// CustomerHandler serves /api/customers.
type CustomerHandler struct {
	accounts AccountService
	orders   CustomerOrders
	logger   *zap.Logger
}

func NewCustomerHandler(accounts AccountService, orders CustomerOrders, logger *zap.Logger) *CustomerHandler {
	return &CustomerHandler{accounts: accounts, orders: orders, logger: logger}
}

// Register handles POST /api/customers/register.
func (h *CustomerHandler) Register(c echo.Context) error {
	var req models.RegisterCustomerRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, http.StatusBadRequest, "Invalid request body")
	}

	res, err := h.accounts.Register(c.Request().Context(), req)
	if err != nil {
		return h.accountError(c, err)
	}
	return jsonResponse(c, http.StatusCreated, true, "Registration successful", res)
}

// Login handles POST /api/customers/login.
func (h *CustomerHandler) Login(c echo.Context) error {
	var req models.LoginCustomerRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, http.StatusBadRequest, "Invalid request body")
	}

	res, err := h.accounts.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return h.accountError(c, err)
	}
	return successResponse(c, "Login successful", res)
}

// ForgotPassword handles POST /api/customers/forgot-password. The answer
// does not reveal whether the email is registered.
func (h *CustomerHandler) ForgotPassword(c echo.Context) error {
	var req models.ForgotPasswordRequest
	if err := c.Bind(&req); err != nil || req.Email == "" {
		return errorResponse(c, http.StatusBadRequest, "Email is required")
	}

	if err := h.accounts.ForgotPassword(c.Request().Context(), req.Email); err != nil {
		h.logger.Error("Forgot password failed", zap.Error(err))
		return errorResponse(c, http.StatusInternalServerError, "Could not send reset link, try again later")
	}
	return successResponse(c, "If an account exists for this email, a reset link has been sent", nil)
}

// ResetPassword handles POST /api/customers/reset-password.
func (h *CustomerHandler) ResetPassword(c echo.Context) error {
	var req models.ResetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, http.StatusBadRequest, "Invalid request body")
	}

	if err := h.accounts.ResetPassword(c.Request().Context(), req.Token, req.Password, req.ConfirmPassword); err != nil {
		return h.accountError(c, err)
	}
	return successResponse(c, "Password has been reset", nil)
}

// MyOrders handles GET /api/customers/me/orders behind CustomerAuth.
func (h *CustomerHandler) MyOrders(c echo.Context) error {
	customerID, _ := c.Get(middleware.CustomerIDKey).(string)
	if customerID == "" {
		return errorResponse(c, http.StatusUnauthorized, "Token is required")
	}

	page, limit := pageParams(c)
	orders, total, err := h.orders.FindByCustomerID(c.Request().Context(), customerID, limit, page)
	if err != nil {
		h.logger.Error("Failed to list customer orders", zap.String("customer_id", customerID), zap.Error(err))
		return errorResponse(c, http.StatusInternalServerError, "Failed to retrieve orders")
	}
	return successResponse(c, "Successful", paginatedResponse(orders, total, page, limit))
}

func (h *CustomerHandler) accountError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, account.ErrInvalidInput),
		errors.Is(err, account.ErrPasswordMismatch),
		errors.Is(err, account.ErrInvalidResetToken):
		return errorResponse(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, account.ErrEmailTaken):
		return errorResponse(c, http.StatusConflict, err.Error())
	case errors.Is(err, account.ErrInvalidCredentials):
		return errorResponse(c, http.StatusUnauthorized, err.Error())
	}
	h.logger.Error("Account request failed", zap.Error(err))
	return errorResponse(c, http.StatusInternalServerError, "Internal error")
}
