package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ONE2ALLINFOTECH/ecomerce/internal/account"
	"github.com/ONE2ALLINFOTECH/ecomerce/internal/checkout"
	"github.com/ONE2ALLINFOTECH/ecomerce/internal/middleware"
	"github.com/ONE2ALLINFOTECH/ecomerce/internal/models"
	"github.com/ONE2ALLINFOTECH/ecomerce/internal/payment"
	"github.com/ONE2ALLINFOTECH/ecomerce/internal/reconcile"
)

type envelope struct {
	Status bool            `json:"status"`
	Msg    string          `json:"msg"`
	Obj    json.RawMessage `json:"obj"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

type stubCheckout struct {
	placed   models.PlaceOrderRequest
	place    func(models.PlaceOrderRequest) (*checkout.PlaceOrderResult, error)
	verify   func(identifier, orderID string) (*models.VerifyPaymentResponse, error)
	order    *models.Order
	orderErr error
}

func (s *stubCheckout) PlaceOrder(_ context.Context, req models.PlaceOrderRequest) (*checkout.PlaceOrderResult, error) {
	s.placed = req
	return s.place(req)
}

func (s *stubCheckout) VerifyPayment(_ context.Context, identifier, orderID string) (*models.VerifyPaymentResponse, error) {
	return s.verify(identifier, orderID)
}

func (s *stubCheckout) GetOrder(context.Context, string) (*models.Order, error) {
	return s.order, s.orderErr
}

func TestPlaceOrder(t *testing.T) {
	svc := &stubCheckout{place: func(req models.PlaceOrderRequest) (*checkout.PlaceOrderResult, error) {
		return &checkout.PlaceOrderResult{
			Order: &models.Order{
				OrderID:       "ORD1",
				Amount:        req.Amount,
				PaymentMethod: req.PaymentMethod,
				PaymentStatus: models.PaymentStatusPending,
				OrderStatus:   models.OrderStatusPending,
			},
			Payment: &payment.PaymentResult{Gateway: "cashfree", Reference: "cf_1", PaymentSessionID: "session_1"},
		}, nil
	}}
	h := NewOrderHandler(svc, true, zap.NewNop())

	rec := httptest.NewRecorder()
	body := `{"amount":"499.99","payment_method":"online","gateway":"cashfree","customer_name":"Asha","customer_email":"asha@example.com","customer_phone":"9876543210"}`
	require.NoError(t, h.PlaceOrder(echo.New().NewContext(jsonRequest(http.MethodPost, "/api/orders", body), rec)))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, svc.placed.Amount.Equal(decimal.RequireFromString("499.99")))
	assert.Equal(t, "cashfree", svc.placed.Gateway)

	env := decodeEnvelope(t, rec)
	assert.True(t, env.Status)
	assert.Contains(t, string(env.Obj), `"payment_session_id":"session_1"`)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, reconcile.HintCookie, cookies[0].Name)
	assert.True(t, cookies[0].Secure)
	assert.True(t, cookies[0].HttpOnly)
	hint := reconcile.DecodeHint(cookies[0].Value)
	require.NotNil(t, hint)
	assert.Equal(t, "ORD1", hint.OrderID)
	assert.Equal(t, models.PaymentMethodOnline, hint.PaymentMethod)
}

func TestPlaceOrder_CustomerIDFromToken(t *testing.T) {
	svc := &stubCheckout{place: func(req models.PlaceOrderRequest) (*checkout.PlaceOrderResult, error) {
		return &checkout.PlaceOrderResult{Order: &models.Order{OrderID: "ORD1", CustomerID: req.CustomerID, PaymentMethod: req.PaymentMethod}}, nil
	}}
	h := NewOrderHandler(svc, false, zap.NewNop())
	body := `{"amount":"10","payment_method":"cod","customer_id":"CUST-VICTIM","customer_name":"Asha"}`

	t.Run("body value is ignored for guests", func(t *testing.T) {
		rec := httptest.NewRecorder()
		require.NoError(t, h.PlaceOrder(echo.New().NewContext(jsonRequest(http.MethodPost, "/api/orders", body), rec)))

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Empty(t, svc.placed.CustomerID)
	})

	t.Run("signed-in caller owns the order", func(t *testing.T) {
		rec := httptest.NewRecorder()
		c := echo.New().NewContext(jsonRequest(http.MethodPost, "/api/orders", body), rec)
		c.Set(middleware.CustomerIDKey, "CUST-1")
		require.NoError(t, h.PlaceOrder(c))

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "CUST-1", svc.placed.CustomerID)
	})
}

func TestPlaceOrder_Errors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{name: "invalid", err: checkout.ErrInvalidOrder, code: http.StatusBadRequest},
		{name: "unknown gateway", err: checkout.ErrUnknownGateway, code: http.StatusBadRequest},
		{name: "duplicate", err: checkout.ErrDuplicateRequest, code: http.StatusConflict},
		{name: "gateway auth", err: &payment.Error{Kind: payment.KindAuthenticationFailed, Gateway: "cashfree", Message: "authentication failed"}, code: http.StatusBadGateway},
		{name: "gateway validation", err: &payment.Error{Kind: payment.KindValidationError, Gateway: "cashfree", Message: "bad phone"}, code: http.StatusBadRequest},
		{name: "missing credentials", err: &payment.Error{Kind: payment.KindMissingCredentials, Gateway: "stripe"}, code: http.StatusServiceUnavailable},
		{name: "storage", err: errors.New("db down"), code: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubCheckout{place: func(models.PlaceOrderRequest) (*checkout.PlaceOrderResult, error) { return nil, tt.err }}
			rec := httptest.NewRecorder()
			c := echo.New().NewContext(jsonRequest(http.MethodPost, "/api/orders", `{"payment_method":"cod"}`), rec)

			require.NoError(t, NewOrderHandler(svc, false, zap.NewNop()).PlaceOrder(c))
			assert.Equal(t, tt.code, rec.Code)
			assert.False(t, decodeEnvelope(t, rec).Status)
			assert.Empty(t, rec.Result().Cookies())
		})
	}
}

func TestVerifyPaymentEndpoint(t *testing.T) {
	e := echo.New()
	svc := &stubCheckout{}
	h := NewOrderHandler(svc, false, zap.NewNop())
	e.GET("/api/orders/verify-payment/:identifier", h.VerifyPayment)

	t.Run("success", func(t *testing.T) {
		var gotIdentifier, gotOrderID string
		svc.verify = func(identifier, orderID string) (*models.VerifyPaymentResponse, error) {
			gotIdentifier, gotOrderID = identifier, orderID
			return &models.VerifyPaymentResponse{
				Success: true, OrderID: "ORD1", PaymentStatus: models.PaymentStatusSuccess,
				PaymentMethod: models.PaymentMethodOnline, OrderStatus: models.OrderStatusConfirmed,
				Amount: decimal.RequireFromString("499.99"),
			}, nil
		}

		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/orders/verify-payment/cs_test_1?order_id=ORD1", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "cs_test_1", gotIdentifier)
		assert.Equal(t, "ORD1", gotOrderID)

		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, true, body["success"])
		assert.Equal(t, "ORD1", body["orderId"])
		assert.Equal(t, "success", body["paymentStatus"])
		assert.Equal(t, "online", body["paymentMethod"])
		assert.Equal(t, "confirmed", body["orderStatus"])
		assert.Equal(t, "499.99", body["amount"])
	})

	t.Run("not found", func(t *testing.T) {
		svc.verify = func(string, string) (*models.VerifyPaymentResponse, error) { return nil, checkout.ErrOrderNotFound }
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/orders/verify-payment/ORD9", nil))

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), `"success":false`)
		assert.Contains(t, rec.Body.String(), `"orderId":"ORD9"`)
	})

	t.Run("gateway failure", func(t *testing.T) {
		svc.verify = func(string, string) (*models.VerifyPaymentResponse, error) {
			return nil, &payment.Error{Kind: payment.KindStatusFetchFailed, Gateway: "stripe", Message: "could not fetch"}
		}
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/orders/verify-payment/cs_1", nil))
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})
}

func TestGetOrder(t *testing.T) {
	e := echo.New()
	svc := &stubCheckout{order: &models.Order{OrderID: "ORD1"}}
	e.GET("/api/orders/:orderId", NewOrderHandler(svc, false, zap.NewNop()).GetOrder)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/orders/ORD1", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"orderId":"ORD1"`)

	svc.order, svc.orderErr = nil, checkout.ErrOrderNotFound
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/orders/ORD2", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type stubAccounts struct {
	err    error
	forgot []string
}

func (s *stubAccounts) Register(_ context.Context, req models.RegisterCustomerRequest) (*account.AuthResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &account.AuthResult{Customer: &models.Customer{CustomerID: "CUST-1", Email: req.Email}, Token: "tok"}, nil
}

func (s *stubAccounts) Login(context.Context, string, string) (*account.AuthResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &account.AuthResult{Customer: &models.Customer{CustomerID: "CUST-1"}, Token: "tok"}, nil
}

func (s *stubAccounts) ForgotPassword(_ context.Context, email string) error {
	s.forgot = append(s.forgot, email)
	return s.err
}

func (s *stubAccounts) ResetPassword(context.Context, string, string, string) error {
	return s.err
}

type stubCustomerOrders struct {
	customerID  string
	limit, page int
}

func (s *stubCustomerOrders) FindByCustomerID(_ context.Context, customerID string, limit, page int) ([]models.Order, int64, error) {
	s.customerID, s.limit, s.page = customerID, limit, page
	return []models.Order{{OrderID: "ORD1"}}, 21, nil
}

func TestCustomerEndpoints(t *testing.T) {
	tests := []struct {
		name   string
		call   func(h *CustomerHandler, c echo.Context) error
		body   string
		err    error
		code   int
		status bool
	}{
		{name: "register", call: (*CustomerHandler).Register, body: `{"name":"Asha","email":"a@example.com","password":"secret1","confirmPassword":"secret1"}`, code: http.StatusCreated, status: true},
		{name: "register taken", call: (*CustomerHandler).Register, body: `{}`, err: account.ErrEmailTaken, code: http.StatusConflict},
		{name: "register mismatch", call: (*CustomerHandler).Register, body: `{}`, err: account.ErrPasswordMismatch, code: http.StatusBadRequest},
		{name: "login", call: (*CustomerHandler).Login, body: `{"email":"a@example.com","password":"secret1"}`, code: http.StatusOK, status: true},
		{name: "login bad", call: (*CustomerHandler).Login, body: `{}`, err: account.ErrInvalidCredentials, code: http.StatusUnauthorized},
		{name: "forgot", call: (*CustomerHandler).ForgotPassword, body: `{"email":"a@example.com"}`, code: http.StatusOK, status: true},
		{name: "forgot no email", call: (*CustomerHandler).ForgotPassword, body: `{}`, code: http.StatusBadRequest},
		{name: "reset", call: (*CustomerHandler).ResetPassword, body: `{"token":"t","password":"p","confirmPassword":"p"}`, code: http.StatusOK, status: true},
		{name: "reset expired", call: (*CustomerHandler).ResetPassword, body: `{}`, err: account.ErrInvalidResetToken, code: http.StatusBadRequest},
		{name: "internal", call: (*CustomerHandler).Login, body: `{}`, err: errors.New("db down"), code: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewCustomerHandler(&stubAccounts{err: tt.err}, &stubCustomerOrders{}, zap.NewNop())
			rec := httptest.NewRecorder()
			c := echo.New().NewContext(jsonRequest(http.MethodPost, "/", tt.body), rec)

			require.NoError(t, tt.call(h, c))
			assert.Equal(t, tt.code, rec.Code)
			assert.Equal(t, tt.status, decodeEnvelope(t, rec).Status)
		})
	}
}

type fixedToken struct{}

func (fixedToken) Authenticate(token string) (string, error) {
	if token == "tok" {
		return "CUST-1", nil
	}
	return "", account.ErrInvalidCredentials
}

func TestMyOrders(t *testing.T) {
	orders := &stubCustomerOrders{}
	e := echo.New()
	e.GET("/api/customers/me/orders", NewCustomerHandler(&stubAccounts{}, orders, zap.NewNop()).MyOrders, middleware.CustomerAuth(fixedToken{}))

	req := httptest.NewRequest(http.MethodGet, "/api/customers/me/orders?page=2&limit=10", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer tok")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "CUST-1", orders.customerID)
	assert.Equal(t, 10, orders.limit)
	assert.Equal(t, 2, orders.page)

	var page models.PaginatedResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Obj, &page))
	assert.Equal(t, int64(21), page.Total)
	assert.Equal(t, 3, page.TotalPages)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/customers/me/orders", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

type stubGateways struct {
	report *payment.ConnectionReport
	err    error
	stripe *payment.StripeGateway
}

func (s *stubGateways) TestGateway(context.Context, string) (*payment.ConnectionReport, error) {
	return s.report, s.err
}

func (s *stubGateways) Names() []string { return []string{"cashfree", "stripe"} }

func (s *stubGateways) Stripe() (*payment.StripeGateway, bool) { return s.stripe, s.stripe != nil }

func TestGatewayHandler(t *testing.T) {
	gws := &stubGateways{
		report: &payment.ConnectionReport{Gateway: "cashfree", Success: false, Error: "authentication failed"},
		stripe: payment.NewStripeGateway(payment.StripeConfig{SecretKey: "sk_test_1", PublishableKey: "pk_test_1"}, zap.NewNop()),
	}
	e := echo.New()
	h := NewGatewayHandler(gws, gws, zap.NewNop())
	e.GET("/api/gateways", h.List)
	e.GET("/api/gateways/:name/test", h.Test)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/gateways", nil))
	assert.Contains(t, rec.Body.String(), `"stripePublishableKey":"pk_test_1"`)
	assert.Contains(t, rec.Body.String(), `"cashfree"`)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/gateways/cashfree/test", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.False(t, env.Status)
	assert.Equal(t, "Connection failed", env.Msg)

	gws.report, gws.err = nil, checkout.ErrUnknownGateway
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/gateways/paypal/test", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTotalPages(t *testing.T) {
	assert.Equal(t, 1, totalPages(0, 20))
	assert.Equal(t, 1, totalPages(20, 20))
	assert.Equal(t, 2, totalPages(21, 20))
}
