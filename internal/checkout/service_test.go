package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ONE2ALLINFOTECH/ecomerce/internal/middleware"
	"github.com/ONE2ALLINFOTECH/ecomerce/internal/models"
	"github.com/ONE2ALLINFOTECH/ecomerce/internal/payment"
	"github.com/ONE2ALLINFOTECH/ecomerce/internal/repository"
)

type memoryOrders struct {
	mu     sync.Mutex
	orders map[string]*models.Order
}

func newMemoryOrders() *memoryOrders {
	return &memoryOrders{orders: make(map[string]*models.Order)}
}

func (m *memoryOrders) Create(_ context.Context, order *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[order.OrderID]; ok {
		return errors.New("duplicate key")
	}
	cp := *order
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	m.orders[order.OrderID] = &cp
	return nil
}

func (m *memoryOrders) FindByOrderID(_ context.Context, orderID string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memoryOrders) FindByGatewayRef(_ context.Context, ref string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.GatewayRef == ref || o.PaymentSessionID == ref {
			cp := *o
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memoryOrders) UpdateByOrderID(_ context.Context, orderID string, updates map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return nil
	}
	apply(o, updates)
	return nil
}

func (m *memoryOrders) TransitionPayment(_ context.Context, orderID string, from []models.PaymentStatus, updates map[string]interface{}) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return false, nil
	}
	for _, f := range from {
		if o.PaymentStatus == f {
			apply(o, updates)
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryOrders) FindPendingOnline(_ context.Context, olderThan time.Time, _ int) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Order
	for _, o := range m.orders {
		if o.PaymentMethod == models.PaymentMethodOnline && !o.PaymentStatus.Terminal() && o.CreatedAt.Before(olderThan) {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *memoryOrders) get(orderID string) *models.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *m.orders[orderID]
	return &cp
}

func apply(o *models.Order, updates map[string]interface{}) {
	for k, v := range updates {
		switch k {
		case "payment_status":
			o.PaymentStatus = v.(models.PaymentStatus)
		case "order_status":
			o.OrderStatus = v.(models.OrderStatus)
		case "failure_reason":
			o.FailureReason = v.(string)
		case "gateway_ref":
			o.GatewayRef = v.(string)
		case "payment_session_id":
			o.PaymentSessionID = v.(string)
		}
	}
}

type fakeGateway struct {
	mu          sync.Mutex
	name        string
	createCalls int
	statusCalls int
	lastRequest payment.PaymentRequest
	createErr   error
	status      *payment.StatusResult
	statusErr   error
	block       chan struct{}
}

func (g *fakeGateway) Name() string { return g.name }

func (g *fakeGateway) CreatePayment(_ context.Context, req payment.PaymentRequest) (*payment.PaymentResult, error) {
	g.mu.Lock()
	g.createCalls++
	g.lastRequest = req
	g.mu.Unlock()
	if g.block != nil {
		<-g.block
	}
	if g.createErr != nil {
		return nil, g.createErr
	}
	return &payment.PaymentResult{
		Gateway:          g.name,
		OrderID:          req.OrderID,
		Reference:        "ref_" + req.OrderID,
		PaymentSessionID: "session_" + req.OrderID,
		Amount:           req.Amount,
		Currency:         req.Currency,
	}, nil
}

func (g *fakeGateway) GetPaymentStatus(_ context.Context, reference string) (*payment.StatusResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statusCalls++
	if g.statusErr != nil {
		return nil, g.statusErr
	}
	st := *g.status
	st.Reference = reference
	return &st, nil
}

type recordingReporter struct {
	mu        sync.Mutex
	placed    []string
	confirmed []string
}

func (r *recordingReporter) OrderPlaced(_ context.Context, o *models.Order) {
	r.mu.Lock()
	r.placed = append(r.placed, o.OrderID)
	r.mu.Unlock()
}

func (r *recordingReporter) PaymentConfirmed(_ context.Context, o *models.Order) {
	r.mu.Lock()
	r.confirmed = append(r.confirmed, o.OrderID)
	r.mu.Unlock()
}

type fixture struct {
	svc      *Service
	orders   *memoryOrders
	cashfree *fakeGateway
	stripe   *fakeGateway
	reporter *recordingReporter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		orders:   newMemoryOrders(),
		cashfree: &fakeGateway{name: "cashfree"},
		stripe:   &fakeGateway{name: "stripe"},
		reporter: &recordingReporter{},
	}
	f.svc = NewService(
		f.orders,
		payment.NewRegistry(f.cashfree, f.stripe),
		middleware.NewMemoryDeduper(),
		f.reporter,
		Options{BaseURL: "https://shop.example.com/"},
		zap.NewNop(),
	)
	return f
}

func onlineRequest(orderID, gateway string) models.PlaceOrderRequest {
	return models.PlaceOrderRequest{
		OrderID:       orderID,
		Amount:        decimal.RequireFromString("499.99"),
		PaymentMethod: models.PaymentMethodOnline,
		Gateway:       gateway,
		CustomerName:  "Asha",
		CustomerEmail: "asha@example.com",
		CustomerPhone: "9876543210",
	}
}

func TestPlaceOrder_Validation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		mutate func(r *models.PlaceOrderRequest)
		want   error
	}{
		{name: "zero amount", mutate: func(r *models.PlaceOrderRequest) { r.Amount = decimal.Zero }, want: ErrInvalidOrder},
		{name: "negative amount", mutate: func(r *models.PlaceOrderRequest) { r.Amount = decimal.NewFromInt(-1) }, want: ErrInvalidOrder},
		{name: "bad method", mutate: func(r *models.PlaceOrderRequest) { r.PaymentMethod = "upi" }, want: ErrInvalidOrder},
		{name: "no name", mutate: func(r *models.PlaceOrderRequest) { r.CustomerName = " " }, want: ErrInvalidOrder},
		{name: "bad email", mutate: func(r *models.PlaceOrderRequest) { r.CustomerEmail = "nope" }, want: ErrInvalidOrder},
		{name: "unknown gateway", mutate: func(r *models.PlaceOrderRequest) { r.Gateway = "paypal" }, want: ErrUnknownGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := onlineRequest("ORD1", "cashfree")
			tt.mutate(&req)
			_, err := f.svc.PlaceOrder(context.Background(), req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Equal(t, 0, f.cashfree.createCalls)
}

func TestPlaceOrder_COD(t *testing.T) {
	f := newFixture(t)
	req := onlineRequest("", "")
	req.PaymentMethod = models.PaymentMethodCOD

	res, err := f.svc.PlaceOrder(context.Background(), req)
	require.NoError(t, err)

	assert.NotEmpty(t, res.Order.OrderID)
	assert.Nil(t, res.Payment)
	assert.Equal(t, models.PaymentStatusPending, res.Order.PaymentStatus)
	assert.Equal(t, models.OrderStatusConfirmed, res.Order.OrderStatus)
	assert.Regexp(t, "^GUEST-", res.Order.CustomerID)
	assert.Equal(t, 0, f.cashfree.createCalls+f.stripe.createCalls)
	assert.Equal(t, []string{res.Order.OrderID}, f.reporter.placed)

	req = onlineRequest("", "")
	req.PaymentMethod = models.PaymentMethodCOD
	req.CustomerID = "CUST-1"
	res, err = f.svc.PlaceOrder(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "CUST-1", res.Order.CustomerID)
}

func TestPlaceOrder_OnlineCashfree(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.PlaceOrder(context.Background(), onlineRequest("ORD1", "cashfree"))
	require.NoError(t, err)

	assert.Equal(t, "session_ORD1", res.Payment.PaymentSessionID)
	assert.Equal(t, "https://shop.example.com/payment/cashfree/return?order_id=ORD1", f.cashfree.lastRequest.ReturnURL)
	assert.Equal(t, "499.99", f.cashfree.lastRequest.Amount.StringFixed(2))

	stored := f.orders.get("ORD1")
	assert.Equal(t, "cashfree", stored.Gateway)
	assert.Equal(t, "ref_ORD1", stored.GatewayRef)
	assert.Equal(t, models.PaymentStatusPending, stored.PaymentStatus)
}

func TestPlaceOrder_StripeHostedURLs(t *testing.T) {
	f := newFixture(t)
	req := onlineRequest("ORD 2", "stripe")
	req.Hosted = true

	_, err := f.svc.PlaceOrder(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "https://shop.example.com/order-success?order_id=ORD+2&session_id={CHECKOUT_SESSION_ID}", f.stripe.lastRequest.ReturnURL)
	assert.Equal(t, "https://shop.example.com/order-success?order_id=ORD+2&canceled=true", f.stripe.lastRequest.CancelURL)
}

func TestPlaceOrder_GatewayFailureMarksOrder(t *testing.T) {
	f := newFixture(t)
	f.cashfree.createErr = &payment.Error{Kind: payment.KindAuthenticationFailed, Gateway: "cashfree", Message: "authentication failed"}

	_, err := f.svc.PlaceOrder(context.Background(), onlineRequest("ORD1", "cashfree"))
	require.Error(t, err)
	assert.ErrorIs(t, err, payment.ErrAuthenticationFailed)

	stored := f.orders.get("ORD1")
	assert.Equal(t, models.PaymentStatusFailed, stored.PaymentStatus)
	assert.Contains(t, stored.FailureReason, "authentication failed")
}

func TestPlaceOrder_DuplicateInFlight(t *testing.T) {
	f := newFixture(t)
	f.cashfree.block = make(chan struct{})

	first := make(chan error, 1)
	go func() {
		_, err := f.svc.PlaceOrder(context.Background(), onlineRequest("ORD1", "cashfree"))
		first <- err
	}()

	require.Eventually(t, func() bool {
		f.cashfree.mu.Lock()
		defer f.cashfree.mu.Unlock()
		return f.cashfree.createCalls == 1
	}, time.Second, 5*time.Millisecond)

	_, err := f.svc.PlaceOrder(context.Background(), onlineRequest("ORD1", "cashfree"))
	assert.ErrorIs(t, err, ErrDuplicateRequest)

	close(f.cashfree.block)
	require.NoError(t, <-first)
	assert.Equal(t, 1, f.cashfree.createCalls)

	// a completed order id cannot be placed again
	_, err = f.svc.PlaceOrder(context.Background(), onlineRequest("ORD1", "cashfree"))
	assert.ErrorIs(t, err, ErrDuplicateRequest)
}

func TestVerifyPayment(t *testing.T) {
	tests := []struct {
		name        string
		vendor      models.PaymentStatus
		amount      string
		wantSuccess bool
		wantPS      models.PaymentStatus
		wantOS      models.OrderStatus
		wantReports int
	}{
		{name: "paid", vendor: models.PaymentStatusSuccess, amount: "499.99", wantSuccess: true, wantPS: models.PaymentStatusSuccess, wantOS: models.OrderStatusConfirmed, wantReports: 1},
		{name: "still pending", vendor: models.PaymentStatusPending, amount: "499.99", wantSuccess: true, wantPS: models.PaymentStatusPending, wantOS: models.OrderStatusPending},
		{name: "failed", vendor: models.PaymentStatusFailed, amount: "499.99", wantSuccess: false, wantPS: models.PaymentStatusFailed, wantOS: models.OrderStatusCancelled},
		{name: "cancelled", vendor: models.PaymentStatusCancelled, wantSuccess: false, wantPS: models.PaymentStatusCancelled, wantOS: models.OrderStatusCancelled},
		{name: "paid wrong amount", vendor: models.PaymentStatusSuccess, amount: "1.00", wantSuccess: true, wantPS: models.PaymentStatusPending, wantOS: models.OrderStatusPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.PlaceOrder(context.Background(), onlineRequest("ORD1", "cashfree"))
			require.NoError(t, err)

			amt := decimal.Zero
			if tt.amount != "" {
				amt = decimal.RequireFromString(tt.amount)
			}
			f.cashfree.status = &payment.StatusResult{Status: tt.vendor, Amount: amt}

			resp, err := f.svc.VerifyPayment(context.Background(), "ORD1", "")
			require.NoError(t, err)
			assert.Equal(t, tt.wantSuccess, resp.Success)
			assert.Equal(t, tt.wantPS, resp.PaymentStatus)
			assert.Equal(t, tt.wantOS, resp.OrderStatus)
			assert.Equal(t, "499.99", resp.Amount.StringFixed(2))
			assert.Len(t, f.reporter.confirmed, tt.wantReports)
		})
	}
}

func TestVerifyPayment_LookupBySessionAndTerminalShortCircuit(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.PlaceOrder(context.Background(), onlineRequest("ORD1", "stripe"))
	require.NoError(t, err)
	f.stripe.status = &payment.StatusResult{Status: models.PaymentStatusSuccess}

	resp, err := f.svc.VerifyPayment(context.Background(), "ref_ORD1", "")
	require.NoError(t, err)
	assert.Equal(t, "ORD1", resp.OrderID)
	assert.Equal(t, models.PaymentStatusSuccess, resp.PaymentStatus)

	resp, err = f.svc.VerifyPayment(context.Background(), "ref_ORD1", "ORD1")
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, 1, f.stripe.statusCalls)
	assert.Len(t, f.reporter.confirmed, 1)
}

func TestVerifyPayment_COD(t *testing.T) {
	f := newFixture(t)
	req := onlineRequest("ORD1", "")
	req.PaymentMethod = models.PaymentMethodCOD
	_, err := f.svc.PlaceOrder(context.Background(), req)
	require.NoError(t, err)

	resp, err := f.svc.VerifyPayment(context.Background(), "ORD1", "")
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, models.PaymentMethodCOD, resp.PaymentMethod)
	assert.Equal(t, models.OrderStatusConfirmed, resp.OrderStatus)
	assert.Equal(t, 0, f.cashfree.statusCalls+f.stripe.statusCalls)
}

func TestVerifyPayment_Errors(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.VerifyPayment(context.Background(), "nope", "")
	assert.ErrorIs(t, err, ErrOrderNotFound)

	_, err = f.svc.PlaceOrder(context.Background(), onlineRequest("ORD1", "cashfree"))
	require.NoError(t, err)
	f.cashfree.statusErr = &payment.Error{Kind: payment.KindStatusFetchFailed, Gateway: "cashfree"}

	_, err = f.svc.VerifyPayment(context.Background(), "ORD1", "")
	assert.ErrorIs(t, err, payment.ErrStatusFetchFailed)
	assert.Equal(t, models.PaymentStatusPending, f.orders.get("ORD1").PaymentStatus)
}

func TestApplyWebhookEvent_NeverDowngrades(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.PlaceOrder(context.Background(), onlineRequest("ORD1", "stripe"))
	require.NoError(t, err)

	require.NoError(t, f.svc.ApplyWebhookEvent(context.Background(), &payment.WebhookEvent{
		ID: "evt_1", Type: "payment_intent.succeeded", OrderID: "ORD1", Reference: "ref_ORD1",
		Status: models.PaymentStatusSuccess, Amount: decimal.RequireFromString("499.99"),
	}))
	assert.Equal(t, models.PaymentStatusSuccess, f.orders.get("ORD1").PaymentStatus)

	require.NoError(t, f.svc.ApplyWebhookEvent(context.Background(), &payment.WebhookEvent{
		ID: "evt_2", Type: "payment_intent.payment_failed", OrderID: "ORD1", Reference: "ref_ORD1",
		Status: models.PaymentStatusFailed,
	}))

	stored := f.orders.get("ORD1")
	assert.Equal(t, models.PaymentStatusSuccess, stored.PaymentStatus)
	assert.Equal(t, models.OrderStatusConfirmed, stored.OrderStatus)
	assert.Len(t, f.reporter.confirmed, 1)
}

func TestApplyWebhookEvent_ByReference(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.PlaceOrder(context.Background(), onlineRequest("ORD1", "stripe"))
	require.NoError(t, err)

	require.NoError(t, f.svc.ApplyWebhookEvent(context.Background(), &payment.WebhookEvent{
		ID: "evt_1", Type: "checkout.session.expired", Reference: "ref_ORD1", Status: models.PaymentStatusCancelled,
	}))
	assert.Equal(t, models.PaymentStatusCancelled, f.orders.get("ORD1").PaymentStatus)

	err = f.svc.ApplyWebhookEvent(context.Background(), &payment.WebhookEvent{ID: "evt_2", OrderID: "ghost"})
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestReconcilePendingAndExpire(t *testing.T) {
	f := newFixture(t)
	now := time.Now()
	f.svc.opts.Now = func() time.Time { return now }

	for _, id := range []string{"OLD", "STALE"} {
		_, err := f.svc.PlaceOrder(context.Background(), onlineRequest(id, "cashfree"))
		require.NoError(t, err)
	}
	f.orders.orders["OLD"].CreatedAt = now.Add(-10 * time.Minute)
	f.orders.orders["STALE"].CreatedAt = now.Add(-48 * time.Hour)

	f.cashfree.status = &payment.StatusResult{Status: models.PaymentStatusPending}
	changed, err := f.svc.ReconcilePending(context.Background(), 2*time.Minute, 50)
	require.NoError(t, err)
	assert.Equal(t, 0, changed)
	assert.Equal(t, 2, f.cashfree.statusCalls)

	n, err := f.svc.ExpireStale(context.Background(), 24*time.Hour, 50)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 3, f.cashfree.statusCalls)
	assert.Equal(t, models.PaymentStatusCancelled, f.orders.get("STALE").PaymentStatus)
	assert.Equal(t, "payment expired", f.orders.get("STALE").FailureReason)

	f.cashfree.status = &payment.StatusResult{Status: models.PaymentStatusSuccess, Amount: decimal.RequireFromString("499.99")}
	changed, err = f.svc.ReconcilePending(context.Background(), 2*time.Minute, 50)
	require.NoError(t, err)
	assert.Equal(t, 1, changed)
	assert.Equal(t, models.PaymentStatusSuccess, f.orders.get("OLD").PaymentStatus)
}

func TestExpireStale_ConsultsGateway(t *testing.T) {
	tests := []struct {
		name        string
		status      *payment.StatusResult
		statusErr   error
		wantExpired int64
		wantPS      models.PaymentStatus
		wantOS      models.OrderStatus
		wantReports int
	}{
		{
			name:        "paid late is confirmed",
			status:      &payment.StatusResult{Status: models.PaymentStatusSuccess, Amount: decimal.RequireFromString("499.99")},
			wantPS:      models.PaymentStatusSuccess,
			wantOS:      models.OrderStatusConfirmed,
			wantReports: 1,
		},
		{
			name:   "paid with wrong amount stays open",
			status: &payment.StatusResult{Status: models.PaymentStatusSuccess, Amount: decimal.RequireFromString("1.00")},
			wantPS: models.PaymentStatusPending,
			wantOS: models.OrderStatusPending,
		},
		{
			name:   "still processing stays open",
			status: &payment.StatusResult{Status: models.PaymentStatusProcessing},
			wantPS: models.PaymentStatusProcessing,
			wantOS: models.OrderStatusPending,
		},
		{
			name:      "status unavailable stays open",
			statusErr: &payment.Error{Kind: payment.KindStatusFetchFailed, Gateway: "cashfree"},
			wantPS:    models.PaymentStatusPending,
			wantOS:    models.OrderStatusPending,
		},
		{
			name:        "unpaid is expired",
			status:      &payment.StatusResult{Status: models.PaymentStatusPending},
			wantExpired: 1,
			wantPS:      models.PaymentStatusCancelled,
			wantOS:      models.OrderStatusCancelled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			now := time.Now()
			f.svc.opts.Now = func() time.Time { return now }

			_, err := f.svc.PlaceOrder(context.Background(), onlineRequest("LATE", "cashfree"))
			require.NoError(t, err)
			f.orders.orders["LATE"].CreatedAt = now.Add(-25 * time.Hour)
			f.cashfree.status, f.cashfree.statusErr = tt.status, tt.statusErr

			n, err := f.svc.ExpireStale(context.Background(), 24*time.Hour, 50)
			require.NoError(t, err)
			assert.Equal(t, tt.wantExpired, n)
			assert.Equal(t, 1, f.cashfree.statusCalls)

			stored := f.orders.get("LATE")
			assert.Equal(t, tt.wantPS, stored.PaymentStatus)
			assert.Equal(t, tt.wantOS, stored.OrderStatus)
			assert.Len(t, f.reporter.confirmed, tt.wantReports)
		})
	}
}

func TestTestGateway(t *testing.T) {
	f := newFixture(t)

	report, err := f.svc.TestGateway(context.Background(), "cashfree")
	require.NoError(t, err)
	assert.False(t, report.Success)

	_, err = f.svc.TestGateway(context.Background(), "paypal")
	assert.ErrorIs(t, err, ErrUnknownGateway)
}
