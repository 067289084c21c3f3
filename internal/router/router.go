package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/ONE2ALLINFOTECH/ecomerce/internal/handler"
	"github.com/ONE2ALLINFOTECH/ecomerce/internal/handler/api"
	"github.com/ONE2ALLINFOTECH/ecomerce/internal/health"
	"github.com/ONE2ALLINFOTECH/ecomerce/internal/middleware"
)

// Deps is everything the route table mounts.
type Deps struct {
	Orders    *api.OrderHandler
	Customers *api.CustomerHandler
	Gateways  *api.GatewayHandler
	Callbacks *handler.PaymentCallbackHandler
	Results   *handler.ResultPageHandler
	Health    *health.Registry
	Auth      middleware.TokenAuthenticator
	AdminKey  string
	Logger    *zap.Logger
}

// Setup configures all routes for the Echo server.
func Setup(e *echo.Echo, d Deps) {
	// Global middleware
	e.Use(echomw.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLogger(d.Logger))

	apiGroup := e.Group("/api")

	orders := apiGroup.Group("/orders")
	orders.POST("", d.Orders.PlaceOrder, middleware.OptionalCustomerAuth(d.Auth))
	orders.GET("/verify-payment/:identifier", d.Orders.VerifyPayment)
	orders.GET("/:orderId", d.Orders.GetOrder)

	// Credential endpoints are rate limited per client IP.
	customers := apiGroup.Group("/customers")
	limited := middleware.RateLimit(1, 5)
	customers.POST("/register", d.Customers.Register, limited)
	customers.POST("/login", d.Customers.Login, limited)
	customers.POST("/forgot-password", d.Customers.ForgotPassword, limited)
	customers.POST("/reset-password", d.Customers.ResetPassword, limited)
	customers.GET("/me/orders", d.Customers.MyOrders, middleware.CustomerAuth(d.Auth))

	apiGroup.GET("/gateways", d.Gateways.List)
	// Connection tests create real gateway orders.
	apiGroup.GET("/gateways/:name/test", d.Gateways.Test,
		middleware.RateLimit(0.2, 2), middleware.AdminAuth(d.AdminKey))

	// Payment callback routes
	paymentGroup := e.Group("/payment")
	paymentGroup.POST("/stripe/webhook", d.Callbacks.StripeWebhook)
	paymentGroup.GET("/cashfree/return", d.Callbacks.CashfreeReturn)

	// Result pages
	e.GET("/order-success", d.Results.OrderSuccess)
	e.GET("/order-failure", d.Results.OrderFailure)

	// Health check
	e.GET("/health", d.Health.Handler)
}
