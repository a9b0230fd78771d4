// Package invoice формирует HTML-счёт по подтверждённому платежу.
package invoice

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/mmeshcher/syncflo-billing/internal/model"
)

// FallbackPlanName используется, если пакет платежа отсутствует в каталоге.
const FallbackPlanName = "Premium AI Credits"

// Input содержит данные для формирования счёта.
type Input struct {
	Payment       model.PaymentRecord
	PlanName      string
	CustomerName  string
	CustomerEmail string
}

type view struct {
	Number        string
	PlanName      string
	CustomerName  string
	CustomerEmail string
	PaidAt        string
	Amount        string
	Credits       int64
	Coupon        string
	TransactionID string
}

var tmpl = template.Must(template.New("invoice").Parse(invoiceHTML))

// Number возвращает номер счёта: INV- и первые восемь символов идентификатора платежа.
func Number(paymentID string) string {
	id := strings.ReplaceAll(paymentID, "-", "")
	if len(id) > 8 {
		id = id[:8]
	}
	return "INV-" + strings.ToUpper(id)
}

// FormatAmount форматирует сумму в минимальных единицах валюты.
func FormatAmount(minor int64, currency string) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	symbol := currency + " "
	switch strings.ToUpper(currency) {
	case "USD":
		symbol = "$"
	case "INR":
		symbol = "₹"
	case "EUR":
		symbol = "€"
	}
	return fmt.Sprintf("%s%s%d.%02d", sign, symbol, minor/100, minor%100)
}

// Render возвращает HTML-документ счёта.
func Render(in Input) ([]byte, error) {
	plan := in.PlanName
	if plan == "" {
		plan = FallbackPlanName
	}
	customer := in.CustomerName
	if customer == "" {
		customer = "Customer"
	}

	v := view{
		Number:        Number(in.Payment.ID),
		PlanName:      plan,
		CustomerName:  customer,
		CustomerEmail: in.CustomerEmail,
		PaidAt:        in.Payment.CreatedAt.UTC().Format("Jan 2, 2006"),
		Amount:        FormatAmount(in.Payment.AmountMinorUnits, in.Payment.Currency),
		Credits:       in.Payment.CreditsAdded,
		Coupon:        in.Payment.CouponCode,
		TransactionID: in.Payment.GatewayPaymentID,
	}
	if in.Payment.CreatedAt.IsZero() {
		v.PaidAt = time.Now().UTC().Format("Jan 2, 2006")
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, v); err != nil {
		return nil, fmt.Errorf("render invoice: %w", err)
	}
	return buf.Bytes(), nil
}

const invoiceHTML = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1.0" />
  <title>SyncFlo AI - Invoice {{.Number}}</title>
  <style>
    body { font-family: "Inter", "Helvetica Neue", Arial, sans-serif; background: #f3f4f6; color: #111827; margin: 0; padding: 32px; }
    .invoice { max-width: 820px; margin: 0 auto; background: #fff; border-radius: 8px; padding: 48px; }
    header { display: flex; justify-content: space-between; margin-bottom: 40px; }
    h1 { margin: 0; letter-spacing: 0.1em; text-transform: uppercase; }
    .paid { color: #16a34a; font-weight: 700; text-transform: uppercase; }
    .label { color: #6b7280; font-size: 12px; text-transform: uppercase; letter-spacing: 0.04em; }
    .meta { display: flex; justify-content: space-between; background: #f9fafb; padding: 16px; border-radius: 8px; margin-bottom: 40px; }
    table { width: 100%; border-collapse: collapse; margin-bottom: 32px; }
    th, td { padding: 12px 8px; border-bottom: 1px solid #e5e7eb; text-align: left; }
    .right { text-align: right; }
    .total { font-size: 18px; font-weight: 700; }
    @media print { body { background: #fff; } .no-print { display: none; } }
  </style>
</head>
<body>
  <div class="invoice">
    <header>
      <div>
        <strong>SyncFlo AI</strong>
        <div>contact@syncflo.xyz</div>
      </div>
      <div class="right">
        <h1>Invoice</h1>
        <div class="paid">Paid</div>
      </div>
    </header>

    <section>
      <div class="label">Bill To</div>
      <div><strong>{{.CustomerName}}</strong></div>
      {{if .CustomerEmail}}<div>{{.CustomerEmail}}</div>{{end}}
    </section>

    <section class="meta">
      <div><div class="label">Date Paid</div><strong>{{.PaidAt}}</strong></div>
      <div><div class="label">Payment Method</div><strong>Razorpay</strong></div>
      <div><div class="label">Invoice Number</div><strong>{{.Number}}</strong></div>
    </section>

    <table>
      <thead>
        <tr><th>Description</th><th class="right">Qty</th><th class="right">Amount</th></tr>
      </thead>
      <tbody>
        <tr>
          <td>{{.PlanName}}<br /><small>{{.Credits}} credits top-up{{if .Coupon}}, coupon {{.Coupon}}{{end}}</small></td>
          <td class="right">1</td>
          <td class="right">{{.Amount}}</td>
        </tr>
      </tbody>
    </table>

    <div class="right total">Amount Paid: {{.Amount}}</div>

    <footer>
      <p>Thank you for your business. This invoice has been paid in full.</p>
      <p class="label">Transaction ID: {{.TransactionID}}</p>
    </footer>
  </div>
  <div class="no-print" style="text-align:center;margin-top:24px">
    <button onclick="window.print()">Print Invoice</button>
  </div>
</body>
</html>
`
