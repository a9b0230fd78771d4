package razorpay

import (
	"encoding/json"
	"errors"
	"fmt"
)

// EventType описывает тип события вебхука.
type EventType string

const (
	EventPaymentCaptured EventType = "payment.captured"
	EventPaymentFailed   EventType = "payment.failed"
	EventOrderPaid       EventType = "order.paid"
)

// ErrMalformedWebhook возвращается для тела вебхука неизвестной или неполной структуры.
var ErrMalformedWebhook = errors.New("malformed webhook payload")

// WebhookEvent содержит проверенное событие вебхука.
type WebhookEvent struct {
	Type    EventType
	Payment Payment
}

type webhookEnvelope struct {
	Event   string `json:"event"`
	Payload struct {
		Payment *struct {
			Entity Payment `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// Known сообщает, обрабатывается ли событие данного типа.
func (t EventType) Known() bool {
	switch t {
	case EventPaymentCaptured, EventPaymentFailed, EventOrderPaid:
		return true
	}
	return false
}

// ParseWebhook разбирает тело вебхука. Для событий неизвестного типа
// возвращается только Type: шлюз присылает и другие события (refund.created,
// payment.authorized), их принимают без разбора платежа. Для известных событий
// данные о платеже обязательны.
func ParseWebhook(body []byte) (*WebhookEvent, error) {
	var env webhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedWebhook, err)
	}

	t := EventType(env.Event)
	if !t.Known() {
		return &WebhookEvent{Type: t}, nil
	}

	if env.Payload.Payment == nil {
		return nil, fmt.Errorf("%w: missing payment entity", ErrMalformedWebhook)
	}

	p := env.Payload.Payment.Entity
	if p.ID == "" || p.OrderID == "" {
		return nil, fmt.Errorf("%w: missing payment or order id", ErrMalformedWebhook)
	}

	return &WebhookEvent{Type: t, Payment: p}, nil
}
