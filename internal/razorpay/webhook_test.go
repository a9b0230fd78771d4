package razorpay

import (
	"errors"
	"testing"
)

func TestParseWebhook(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    EventType
		wantErr bool
	}{
		{
			name: "payment captured",
			body: `{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_1","order_id":"order_1","amount":2000,"status":"captured","notes":{"userId":"1"}}}}}`,
			want: EventPaymentCaptured,
		},
		{
			name: "order paid",
			body: `{"event":"order.paid","payload":{"payment":{"entity":{"id":"pay_2","order_id":"order_2","amount":100,"status":"captured","notes":[]}},"order":{"entity":{"id":"order_2"}}}}`,
			want: EventOrderPaid,
		},
		{
			name: "unknown event without payment",
			body: `{"event":"refund.created","payload":{}}`,
			want: EventType("refund.created"),
		},
		{
			name: "authorized event",
			body: `{"event":"payment.authorized","payload":{"payment":{"entity":{"id":"pay_3","order_id":"order_3"}}}}`,
			want: EventType("payment.authorized"),
		},
		{
			name:    "unknown event not json",
			body:    `{"event":`,
			wantErr: true,
		},
		{
			name:    "missing payment",
			body:    `{"event":"payment.captured","payload":{}}`,
			wantErr: true,
		},
		{
			name:    "missing ids",
			body:    `{"event":"payment.captured","payload":{"payment":{"entity":{"amount":1}}}}`,
			wantErr: true,
		},
		{
			name:    "not json",
			body:    `event=payment.captured`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := ParseWebhook([]byte(tt.body))
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedWebhook) {
					t.Fatalf("err = %v, want ErrMalformedWebhook", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseWebhook error: %v", err)
			}
			if ev.Type != tt.want {
				t.Fatalf("type = %s, want %s", ev.Type, tt.want)
			}
			if !ev.Type.Known() && ev.Payment.ID != "" {
				t.Fatalf("unknown event carries payment %q", ev.Payment.ID)
			}
		})
	}
}
