package invoice

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/syncflo-billing/internal/model"
)

func TestNumber(t *testing.T) {
	assert.Equal(t, "INV-3F2A9C1B", Number("3f2a9c1b-0000-4000-8000-000000000000"))
	assert.Equal(t, "INV-AB", Number("ab"))
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "$20.00", FormatAmount(2000, "USD"))
	assert.Equal(t, "$0.05", FormatAmount(5, "usd"))
	assert.Equal(t, "GBP 12.34", FormatAmount(1234, "GBP"))
}

func TestRender(t *testing.T) {
	html, err := Render(Input{
		Payment: model.PaymentRecord{
			ID:               "3f2a9c1b-0000-4000-8000-000000000000",
			GatewayPaymentID: "pay_123",
			AmountMinorUnits: 2000,
			Currency:         "USD",
			CreditsAdded:     3000,
			CouponCode:       "WELCOME20",
			CreatedAt:        time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC),
		},
		PlanName:     "Growth Refill",
		CustomerName: "<script>alert(1)</script>",
	})
	require.NoError(t, err)

	out := string(html)
	assert.Contains(t, out, "INV-3F2A9C1B")
	assert.Contains(t, out, "Growth Refill")
	assert.Contains(t, out, "$20.00")
	assert.Contains(t, out, "Mar 5, 2026")
	assert.Contains(t, out, "pay_123")
	assert.False(t, strings.Contains(out, "<script>alert(1)</script>"), "customer name must be escaped")
}

func TestRender_FallbackPlan(t *testing.T) {
	html, err := Render(Input{Payment: model.PaymentRecord{ID: "x", Currency: "USD"}})
	require.NoError(t, err)
	assert.Contains(t, string(html), FallbackPlanName)
	assert.Contains(t, string(html), "Customer")
}
