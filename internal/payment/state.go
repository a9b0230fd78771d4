package payment

import "github.com/mmeshcher/syncflo-billing/internal/model"

// State описывает состояние покупки пакета. Реализации перечислены ниже и обрабатываются
// через type switch.
type State interface {
	state()
}

// Initiated: заказ создан в шлюзе, оплата ещё не подтверждена.
type Initiated struct {
	Order model.CheckoutOrder
}

// PendingVerification: шлюз сообщил об оплате, подпись ещё не проверена.
type PendingVerification struct {
	OrderID   string
	PaymentID string
	Signature string
}

// Rejected: подпись или заказ не прошли проверку, кредиты не начисляются.
type Rejected struct {
	Reason RejectReason
}

// Verified: оплата подтверждена, кредиты нужно начислить.
type Verified struct {
	Order     model.CheckoutOrder
	PaymentID string
}

// CreditsGranted: кредиты начислены этим вызовом.
type CreditsGranted struct {
	Payment model.PaymentRecord
}

// AlreadyGranted: кредиты по этому платежу начислены ранее, повторный вызов ничего не меняет.
type AlreadyGranted struct {
	PaymentID string
}

func (Initiated) state()           {}
func (PendingVerification) state() {}
func (Rejected) state()            {}
func (Verified) state()            {}
func (CreditsGranted) state()      {}
func (AlreadyGranted) state()      {}

// RejectReason объясняет отказ в подтверждении платежа.
type RejectReason string

const (
	RejectBadSignature RejectReason = "invalid_signature"
	RejectUnknownOrder RejectReason = "unknown_order"
	RejectForeignOrder RejectReason = "order_owned_by_another_user"
	RejectStaleOrder   RejectReason = "order_not_payable"
)

// Final сообщает, является ли состояние конечным.
func Final(s State) bool {
	switch s.(type) {
	case Rejected, CreditsGranted, AlreadyGranted:
		return true
	case Initiated, PendingVerification, Verified:
		return false
	default:
		return false
	}
}
