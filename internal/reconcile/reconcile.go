// Package reconcile turns whatever a shopper's browser carries back from a
// checkout redirect into one authoritative display state.
//
// Only the verification endpoint and the cash-on-delivery rule make a status
// authoritative; the navigation hint is never trusted to report success.
package reconcile

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/ONE2ALLINFOTECH/ecomerce/internal/models"
)

// DisplayState is what the result page renders.
type DisplayState string

const (
	StateSuccess DisplayState = "success"
	StatePending DisplayState = "pending"
	StateFailed  DisplayState = "failed"
)

// Action tells the caller what to do with a Resolution.
type Action string

const (
	ActionRender          Action = "render"
	ActionRedirectHome    Action = "redirect_home"
	ActionRedirectFailure Action = "redirect_failure"
)

// Hint is the navigation state written at checkout time. Everything in it is
// a claim by the client.
type Hint struct {
	OrderID       string               `json:"orderId,omitempty"`
	PaymentMethod models.PaymentMethod `json:"paymentMethod,omitempty"`
	PaymentStatus models.PaymentStatus `json:"paymentStatus,omitempty"`
	OrderStatus   models.OrderStatus   `json:"orderStatus,omitempty"`
	Amount        decimal.Decimal      `json:"amount"`
}

// Params are the redirect query parameters.
type Params struct {
	OrderID   string
	SessionID string
	Canceled  bool
}

// Input is everything available to the result page.
type Input struct {
	Hint   *Hint
	Params Params
}

// Verifier calls the verification endpoint.
type Verifier interface {
	Verify(ctx context.Context, identifier, orderID string) (*models.VerifyPaymentResponse, error)
}

// VerifierFunc adapts a function to Verifier.
type VerifierFunc func(ctx context.Context, identifier, orderID string) (*models.VerifyPaymentResponse, error)

func (f VerifierFunc) Verify(ctx context.Context, identifier, orderID string) (*models.VerifyPaymentResponse, error) {
	return f(ctx, identifier, orderID)
}

// Source records which rule produced a Resolution.
type Source string

const (
	SourceCOD       Source = "cod"
	SourceCanceled  Source = "canceled"
	SourceVerified  Source = "verified"
	SourceRejected  Source = "rejected"
	SourceFallback  Source = "fallback"
	SourceNoContext Source = "no_context"
)

// Resolution is the single value the result page projects.
type Resolution struct {
	Action        Action
	State         DisplayState
	Source        Source
	OrderID       string
	PaymentMethod models.PaymentMethod
	PaymentStatus models.PaymentStatus
	OrderStatus   models.OrderStatus
	Amount        decimal.Decimal
	// ClearCart is set once the order is settled for this checkout: the
	// verification endpoint answered or a cash-on-delivery order was placed.
	ClearCart bool
	// Err is the verifier failure behind a fallback resolution.
	Err error
}

// Resolve applies the first matching rule:
//
//  1. a cash-on-delivery hint carrying the page's order id is confirmed locally;
//  2. a cancellation flag is a local failure;
//  3. a session id or order id is verified, falling back to the hint on error;
//  4. otherwise the shopper is sent home.
//
// Rules 1 and 2 never call v.
func Resolve(ctx context.Context, in Input, v Verifier) Resolution {
	hint := in.Hint
	if hint == nil || (hint.OrderID != "" && in.Params.OrderID != "" && hint.OrderID != in.Params.OrderID) {
		// A hint left over from another order says nothing about this one.
		hint = &Hint{}
	}

	orderID := in.Params.OrderID
	if orderID == "" {
		orderID = hint.OrderID
	}

	if hint.PaymentMethod == models.PaymentMethodCOD && hint.OrderID != "" {
		return Resolution{
			Action:        ActionRender,
			State:         Classify(models.PaymentMethodCOD, models.PaymentStatusPending, models.OrderStatusConfirmed),
			Source:        SourceCOD,
			OrderID:       orderID,
			PaymentMethod: models.PaymentMethodCOD,
			PaymentStatus: models.PaymentStatusPending,
			OrderStatus:   models.OrderStatusConfirmed,
			Amount:        hint.Amount,
			ClearCart:     true,
		}
	}

	method := hint.PaymentMethod
	if !method.Valid() {
		method = models.PaymentMethodOnline
	}

	if in.Params.Canceled {
		return Resolution{
			Action:        ActionRender,
			State:         StateFailed,
			Source:        SourceCanceled,
			OrderID:       orderID,
			PaymentMethod: method,
			PaymentStatus: models.PaymentStatusCancelled,
			OrderStatus:   orderStatusOr(hint.OrderStatus, models.OrderStatusPending),
			Amount:        hint.Amount,
		}
	}

	identifier := in.Params.SessionID
	if identifier == "" {
		identifier = orderID
	}
	if identifier == "" {
		return Resolution{Action: ActionRedirectHome, Source: SourceNoContext}
	}

	resp, err := v.Verify(ctx, identifier, orderID)
	if err == nil && resp == nil {
		err = errEmptyResponse
	}
	if err != nil {
		return fallback(orderID, method, hint, err)
	}

	if !resp.Success {
		return Resolution{
			Action:        ActionRedirectFailure,
			State:         StateFailed,
			Source:        SourceRejected,
			OrderID:       orderID,
			PaymentMethod: method,
			PaymentStatus: resp.PaymentStatus,
			OrderStatus:   resp.OrderStatus,
			Amount:        resp.Amount,
		}
	}

	if resp.PaymentMethod.Valid() {
		method = resp.PaymentMethod
	}
	if resp.OrderID != "" {
		orderID = resp.OrderID
	}
	return Resolution{
		Action:        ActionRender,
		State:         Classify(method, resp.PaymentStatus, resp.OrderStatus),
		Source:        SourceVerified,
		OrderID:       orderID,
		PaymentMethod: method,
		PaymentStatus: resp.PaymentStatus,
		OrderStatus:   resp.OrderStatus,
		Amount:        resp.Amount,
		ClearCart:     true,
	}
}

// fallback never reports success: an unconfirmed success claim is pending.
func fallback(orderID string, method models.PaymentMethod, hint *Hint, err error) Resolution {
	status := hint.PaymentStatus
	if status == "" || status == models.PaymentStatusSuccess {
		status = models.PaymentStatusPending
	}
	orderStatus := orderStatusOr(hint.OrderStatus, models.OrderStatusPending)

	state := Classify(method, status, orderStatus)
	if state == StateSuccess {
		state = StatePending
	}

	return Resolution{
		Action:        ActionRender,
		State:         state,
		Source:        SourceFallback,
		OrderID:       orderID,
		PaymentMethod: method,
		PaymentStatus: status,
		OrderStatus:   orderStatus,
		Amount:        hint.Amount,
		Err:           err,
	}
}

// Classify maps any method, payment status and order status to exactly one
// display state. Unrecognized values are pending.
func Classify(method models.PaymentMethod, payment models.PaymentStatus, order models.OrderStatus) DisplayState {
	if method == models.PaymentMethodCOD {
		switch order {
		case models.OrderStatusCancelled:
			return StateFailed
		case models.OrderStatusConfirmed, models.OrderStatusShipped, models.OrderStatusDelivered:
			return StateSuccess
		default:
			return StatePending
		}
	}

	switch {
	case order == models.OrderStatusCancelled,
		payment == models.PaymentStatusFailed,
		payment == models.PaymentStatusCancelled:
		return StateFailed
	case payment == models.PaymentStatusSuccess:
		return StateSuccess
	default:
		return StatePending
	}
}

func orderStatusOr(s, def models.OrderStatus) models.OrderStatus {
	if s == "" {
		return def
	}
	return s
}
