package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/ONE2ALLINFOTECH/ecomerce/internal/checkout"
	"github.com/ONE2ALLINFOTECH/ecomerce/internal/payment"
)

// GatewayTester probes gateway credentials.
type GatewayTester interface {
	TestGateway(ctx context.Context, name string) (*payment.ConnectionReport, error)
}

// GatewayCatalog lists the configured gateways.
type GatewayCatalog interface {
	Names() []string
	Stripe() (*payment.StripeGateway, bool)
}

// GatewayHandler serves /api/gateways.
type GatewayHandler struct {
	tester  GatewayTester
	catalog GatewayCatalog
	logger  *zap.Logger
}

func NewGatewayHandler(tester GatewayTester, catalog GatewayCatalog, logger *zap.Logger) *GatewayHandler {
	return &GatewayHandler{tester: tester, catalog: catalog, logger: logger}
}

// List handles GET /api/gateways. The publishable key is what a storefront
// needs to confirm a Stripe intent client side.
func (h *GatewayHandler) List(c echo.Context) error {
	obj := map[string]interface{}{"gateways": h.catalog.Names()}
	if sg, ok := h.catalog.Stripe(); ok && sg.PublishableKey() != "" {
		obj["stripePublishableKey"] = sg.PublishableKey()
	}
	return successResponse(c, "Successful", obj)
}

// Test handles GET /api/gateways/:name/test.
func (h *GatewayHandler) Test(c echo.Context) error {
	report, err := h.tester.TestGateway(c.Request().Context(), c.Param("name"))
	if errors.Is(err, checkout.ErrUnknownGateway) {
		return errorResponse(c, http.StatusNotFound, err.Error())
	}
	if err != nil {
		h.logger.Error("Gateway test failed", zap.Error(err))
		return errorResponse(c, http.StatusInternalServerError, "Internal error")
	}

	msg := "Connection successful"
	if !report.Success {
		msg = "Connection failed"
	}
	return jsonResponse(c, http.StatusOK, report.Success, msg, report)
}
