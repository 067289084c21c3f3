package account

import (
	"context"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/ONE2ALLINFOTECH/ecomerce/internal/models"
	"github.com/ONE2ALLINFOTECH/ecomerce/internal/pkg/utils"
)

// LogDelivery records reset requests in the log. The link itself is only
// logged when RevealLink is set, for local development.
type LogDelivery struct {
	BaseURL    string
	RevealLink bool
	Logger     *zap.Logger
}

func (d *LogDelivery) SendReset(_ context.Context, customer *models.Customer, token string) error {
	fields := []zap.Field{
		zap.String("customer_id", customer.CustomerID),
		zap.String("email", utils.MaskEmail(customer.Email)),
	}
	if d.RevealLink {
		link := strings.TrimRight(d.BaseURL, "/") + "/reset-password?token=" + url.QueryEscape(token)
		fields = append(fields, zap.String("link", link))
	}
	d.Logger.Info("Password reset issued", fields...)
	return nil
}
