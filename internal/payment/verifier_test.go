package payment

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerify(t *testing.T) {
	secret := []byte("rzp-secret")
	sig := Sign("order_123", "pay_456", secret)

	ok, err := Verify("order_123", "pay_456", sig, secret)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Verify("order_123", "pay_999", sig, secret)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = Verify("order_123", "pay_456", "not-hex", secret)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = Verify("", "", "", secret)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerify_TamperedSignature(t *testing.T) {
	secret := []byte("rzp-secret")
	sig := Sign("order_123", "pay_456", secret)

	for i := 0; i < len(sig); i++ {
		for _, c := range "0123456789abcdefzA" {
			if byte(c) == sig[i] {
				continue
			}
			tampered := sig[:i] + string(c) + sig[i+1:]
			ok, err := Verify("order_123", "pay_456", tampered, secret)
			if err != nil || ok {
				t.Fatalf("tampered signature at %d (%q) accepted: ok=%v err=%v", i, tampered, ok, err)
			}
		}
	}
}

func TestVerify_MissingSecret(t *testing.T) {
	_, err := Verify("order_1", "pay_1", "abcd", nil)
	assert.True(t, errors.Is(err, ErrMissingSecret))

	_, err = NewVerifier("", "")
	assert.True(t, errors.Is(err, ErrMissingSecret))
}

func TestVerifier(t *testing.T) {
	v, err := NewVerifier("key-secret", "hook-secret")
	require.NoError(t, err)

	assert.True(t, v.VerifyPayment("o", "p", Sign("o", "p", []byte("key-secret"))))
	assert.False(t, v.VerifyPayment("o", "p", Sign("o", "p", []byte("hook-secret"))))

	body := []byte(`{"event":"payment.captured"}`)
	assert.True(t, v.VerifyWebhook(body, SignWebhook(body, []byte("hook-secret"))))
	assert.False(t, v.VerifyWebhook(append(body, ' '), SignWebhook(body, []byte("hook-secret"))))

	noHooks, err := NewVerifier("key-secret", "")
	require.NoError(t, err)
	assert.False(t, noHooks.VerifyWebhook(body, SignWebhook(body, nil)))
}

func TestFinal(t *testing.T) {
	assert.True(t, Final(Rejected{Reason: RejectBadSignature}))
	assert.True(t, Final(CreditsGranted{}))
	assert.True(t, Final(AlreadyGranted{}))
	assert.False(t, Final(Initiated{}))
	assert.False(t, Final(Verified{}))
}
