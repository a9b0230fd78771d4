// Package payment проверяет подлинность платежей шлюза и описывает состояния покупки.
package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// ErrMissingSecret означает ошибку конфигурации: секрет шлюза не задан.
var ErrMissingSecret = errors.New("payment gateway secret is not configured")

// Verifier проверяет подписи платёжного шлюза.
type Verifier struct {
	keySecret     []byte
	webhookSecret []byte
}

// NewVerifier создаёт Verifier. Секрет ключа обязателен, секрет вебхуков необязателен:
// без него вебхуки отклоняются.
func NewVerifier(keySecret, webhookSecret string) (*Verifier, error) {
	if keySecret == "" {
		return nil, ErrMissingSecret
	}
	return &Verifier{
		keySecret:     []byte(keySecret),
		webhookSecret: []byte(webhookSecret),
	}, nil
}

// VerifyPayment проверяет подпись, полученную клиентом после оплаты заказа.
func (v *Verifier) VerifyPayment(orderID, paymentID, signature string) bool {
	ok, _ := Verify(orderID, paymentID, signature, v.keySecret)
	return ok
}

// VerifyWebhook проверяет подпись тела вебхука.
func (v *Verifier) VerifyWebhook(body []byte, signature string) bool {
	if len(v.webhookSecret) == 0 {
		return false
	}
	return equalHex(sign(v.webhookSecret, body), signature)
}

// Verify пересчитывает HMAC-SHA256 над строкой "orderID|paymentID" и сравнивает
// его с переданной подписью за постоянное время. Неверная подпись даёт false без ошибки,
// ошибка возвращается только при отсутствии секрета.
func Verify(orderID, paymentID, signature string, secret []byte) (bool, error) {
	if len(secret) == 0 {
		return false, ErrMissingSecret
	}
	if orderID == "" || paymentID == "" || signature == "" {
		return false, nil
	}
	return equalHex(sign(secret, []byte(orderID+"|"+paymentID)), signature), nil
}

// Sign возвращает hex-подпись для пары заказ/платёж.
func Sign(orderID, paymentID string, secret []byte) string {
	return hex.EncodeToString(sign(secret, []byte(orderID+"|"+paymentID)))
}

// SignWebhook возвращает hex-подпись тела вебхука.
func SignWebhook(body []byte, secret []byte) string {
	return hex.EncodeToString(sign(secret, body))
}

func sign(secret, payload []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return mac.Sum(nil)
}

// equalHex сравнивает строки целиком, поэтому подпись в другом регистре не принимается.
func equalHex(expected []byte, provided string) bool {
	return hmac.Equal([]byte(hex.EncodeToString(expected)), []byte(provided))
}
