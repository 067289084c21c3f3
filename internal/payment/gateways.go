package payment

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Registry looks gateways up by name.
type Registry struct {
	gateways map[string]Gateway
}

func NewRegistry(gateways ...Gateway) *Registry {
	r := &Registry{gateways: make(map[string]Gateway, len(gateways))}
	for _, g := range gateways {
		r.gateways[g.Name()] = g
	}
	return r
}

// NewDefaultRegistry builds both gateways from their configs. Missing
// credentials are logged here and reported again on first use.
func NewDefaultRegistry(cashfree CashfreeConfig, stripe StripeConfig, logger *zap.Logger) *Registry {
	if cashfree.AppID == "" || cashfree.SecretKey == "" {
		logger.Warn("Cashfree credentials not configured, online payments via cashfree will fail")
	}
	if stripe.SecretKey == "" {
		logger.Warn("Stripe secret key not configured, online payments via stripe will fail")
	}
	return NewRegistry(
		NewCashfreeGateway(cashfree, logger),
		NewStripeGateway(stripe, logger),
	)
}

// Get returns the gateway registered under name.
func (r *Registry) Get(name string) (Gateway, error) {
	g, ok := r.gateways[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unknown payment gateway %q", name)
	}
	return g, nil
}

// Names lists registered gateways in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.gateways))
	for name := range r.gateways {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Stripe returns the Stripe gateway when registered.
func (r *Registry) Stripe() (*StripeGateway, bool) {
	g, ok := r.gateways[stripeName].(*StripeGateway)
	return g, ok
}
