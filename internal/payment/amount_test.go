package payment

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToMinorUnits(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		want   int64
	}{
		{name: "whole rupees", amount: "500", want: 50000},
		{name: "paise", amount: "499.99", want: 49999},
		{name: "half paisa rounds up", amount: "10.005", want: 1001},
		{name: "below half rounds down", amount: "10.004", want: 1000},
		{name: "one paisa", amount: "0.01", want: 1},
		{name: "zero", amount: "0", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amt, err := decimal.NewFromString(tt.amount)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ToMinorUnits(amt))
		})
	}
}

func TestMinorUnitsRoundTrip(t *testing.T) {
	for _, s := range []string{"499.99", "0.01", "1", "1234567.89", "10.10", "99999.5"} {
		amt := decimal.RequireFromString(s)
		back := FromMinorUnits(ToMinorUnits(amt))
		assert.True(t, amt.Equal(back), "%s round-tripped to %s", s, back)
		assert.Equal(t, amt.StringFixed(2), back.StringFixed(2))
	}
}

func TestFromMinorUnits(t *testing.T) {
	assert.Equal(t, "499.99", FromMinorUnits(49999).StringFixed(2))
	assert.Equal(t, "1.00", FromMinorUnits(100).StringFixed(2))
}
