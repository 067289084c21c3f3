package handler

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/ONE2ALLINFOTECH/ecomerce/internal/checkout"
	"github.com/ONE2ALLINFOTECH/ecomerce/internal/models"
	"github.com/ONE2ALLINFOTECH/ecomerce/internal/reconcile"
)

// PaymentVerifier is the verification endpoint's logic.
type PaymentVerifier interface {
	VerifyPayment(ctx context.Context, identifier, orderID string) (*models.VerifyPaymentResponse, error)
}

// ResultPageHandler renders the page a shopper lands on after checkout.
type ResultPageHandler struct {
	payments PaymentVerifier
	logger   *zap.Logger
	tmpl     *template.Template
}

func NewResultPageHandler(payments PaymentVerifier, logger *zap.Logger) *ResultPageHandler {
	return &ResultPageHandler{
		payments: payments,
		logger:   logger,
		tmpl:     template.Must(template.New("result").Parse(resultTemplate)),
	}
}

type resultView struct {
	Title   string
	Message string
	Icon    string
	Tone    string
	OrderID string
	Amount  string
	Method  string
	// Refresh reloads a pending page so the shopper sees the final state.
	Refresh bool
	Retry   bool
}

// OrderSuccess handles GET /order-success.
func (h *ResultPageHandler) OrderSuccess(c echo.Context) error {
	var hint *reconcile.Hint
	if cookie, err := c.Cookie(reconcile.HintCookie); err == nil {
		hint = reconcile.DecodeHint(cookie.Value)
	}

	in := reconcile.Input{
		Hint: hint,
		Params: reconcile.Params{
			OrderID:   c.QueryParam("order_id"),
			SessionID: c.QueryParam("session_id"),
			Canceled:  c.QueryParam("canceled") == "true",
		},
	}
	res := reconcile.Resolve(c.Request().Context(), in, reconcile.VerifierFunc(h.payments.VerifyPayment))

	switch res.Action {
	case reconcile.ActionRedirectHome:
		return c.Redirect(http.StatusSeeOther, "/")
	case reconcile.ActionRedirectFailure:
		h.logger.Info("Payment rejected", zap.String("order_id", res.OrderID), zap.String("payment_status", string(res.PaymentStatus)))
		return c.Redirect(http.StatusSeeOther, "/order-failure?order_id="+url.QueryEscape(res.OrderID))
	}

	if res.Err != nil {
		if errors.Is(res.Err, checkout.ErrOrderNotFound) {
			return h.render(c, http.StatusNotFound, resultView{
				Title:   "Order Not Found",
				Message: "We could not find this order. If you were charged, contact support with the reference below.",
				Icon:    "?",
				Tone:    "muted",
				OrderID: res.OrderID,
			})
		}
		h.logger.Warn("Verification unavailable, showing last known state",
			zap.String("order_id", res.OrderID),
			zap.Error(res.Err),
		)
	}

	if res.ClearCart {
		c.SetCookie(&http.Cookie{
			Name:     reconcile.HintCookie,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}

	return h.render(c, http.StatusOK, viewFor(res))
}

// OrderFailure handles GET /order-failure.
func (h *ResultPageHandler) OrderFailure(c echo.Context) error {
	return h.render(c, http.StatusOK, resultView{
		Title:   "Payment Failed",
		Message: "Your payment could not be completed. No money was taken; you can try again from your cart.",
		Icon:    "✕",
		Tone:    "error",
		OrderID: c.QueryParam("order_id"),
		Retry:   true,
	})
}

func viewFor(res reconcile.Resolution) resultView {
	v := resultView{
		OrderID: res.OrderID,
		Method:  methodLabel(res.PaymentMethod),
	}
	if res.Amount.IsPositive() {
		v.Amount = "₹" + res.Amount.StringFixed(2)
	}

	switch res.State {
	case reconcile.StateSuccess:
		v.Icon, v.Tone = "✓", "success"
		if res.PaymentMethod == models.PaymentMethodCOD {
			v.Title = "Order Placed Successfully!"
			v.Message = "Pay in cash when your order is delivered."
		} else {
			v.Title = "Payment Successful!"
			v.Message = "Thank you. Your order is confirmed."
		}
	case reconcile.StateFailed:
		v.Icon, v.Tone, v.Retry = "✕", "error", true
		if res.PaymentStatus == models.PaymentStatusCancelled {
			v.Title = "Payment Cancelled"
			v.Message = "You cancelled the payment. Your cart is still available."
		} else {
			v.Title = "Payment Failed"
			v.Message = "Your payment could not be completed."
		}
	default:
		v.Icon, v.Tone = "…", "pending"
		v.Title = "Payment Processing..."
		v.Message = "We are waiting for confirmation from the payment provider."
		v.Refresh = res.PaymentMethod != models.PaymentMethodCOD
	}
	return v
}

func methodLabel(m models.PaymentMethod) string {
	if m == models.PaymentMethodCOD {
		return "Cash on Delivery"
	}
	return "Online Payment"
}

func (h *ResultPageHandler) render(c echo.Context, code int, v resultView) error {
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	c.Response().WriteHeader(code)
	return h.tmpl.Execute(c.Response().Writer, v)
}

const resultTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    {{if .Refresh}}<meta http-equiv="refresh" content="5">{{end}}
    <title>{{.Title}}</title>
    <style>
        body { font-family: system-ui, sans-serif; background: #f5f5f5; margin: 0; padding: 20px; display: flex; justify-content: center; align-items: center; min-height: 100vh; }
        .box { background: #fff; border-radius: 8px; box-shadow: 0 2px 10px rgba(0,0,0,0.1); padding: 40px; text-align: center; max-width: 420px; width: 100%; }
        .icon { font-size: 48px; margin-bottom: 10px; }
        .success .icon { color: #2e7d32; } .error .icon { color: #c62828; } .pending .icon { color: #f9a825; } .muted .icon { color: #757575; }
        h1 { color: #333; margin-bottom: 20px; }
        p { color: #666; margin-bottom: 10px; }
        a.button { display: inline-block; margin-top: 20px; padding: 10px 20px; border-radius: 4px; background: #333; color: #fff; text-decoration: none; }
    </style>
</head>
<body>
    <div class="box {{.Tone}}">
        <div class="icon">{{.Icon}}</div>
        <h1>{{.Title}}</h1>
        {{if .OrderID}}<p>Order ID: <span>{{.OrderID}}</span></p>{{end}}
        {{if .Amount}}<p>Amount: <span>{{.Amount}}</span></p>{{end}}
        {{if .Method}}<p>Payment method: {{.Method}}</p>{{end}}
        <p>{{.Message}}</p>
        {{if .Retry}}<a class="button" href="/cart">Try again</a>{{else}}<a class="button" href="/">Continue shopping</a>{{end}}
    </div>
</body>
</html>`
