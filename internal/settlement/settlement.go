// Package settlement holds the cash settlement arithmetic, kept free of any
// network dependency so it can be property-tested on its own. All amounts
// are whole VND; fractional currency never enters the computation.
package settlement

import (
	"errors"

	"github.com/MinhTuanPham/Dealer-Payment-Desk/internal/backend"
)

var (
	ErrInvalidAmount  = errors.New("tendered amount must be positive")
	ErrAlreadySettled = errors.New("order has no outstanding balance")
)

// Apply computes the settlement outcome of tendering `amount` VND against
// the order's outstanding balance.
//
// Invariants, for every successful result r:
//
//	r.Remaining + r.TotalCollected == order.GrandTotal
//	r.ChangeAmount >= 0
//	r.ChangeAmount > 0 implies r.Remaining == 0
//
// The payment status only advances toward "more paid"; there is no refund
// path here.
func Apply(order *backend.Order, amount int64) (backend.CashPaymentResult, error) {
	if amount <= 0 {
		return backend.CashPaymentResult{}, ErrInvalidAmount
	}

	owed := order.Owed()
	if owed == 0 {
		return backend.CashPaymentResult{}, ErrAlreadySettled
	}

	applied := amount
	change := int64(0)
	if amount > owed {
		applied = owed
		change = amount - owed
	}

	collected := order.AmountPaid + applied
	remaining := order.GrandTotal - collected

	result := backend.CashPaymentResult{
		OrderID:        order.OrderID,
		PaidNow:        applied,
		TotalCollected: collected,
		GrandTotal:     order.GrandTotal,
		Remaining:      remaining,
		ChangeAmount:   change,
		OrderStatus:    order.OrderStatus,
		PaymentStatus:  backend.PaymentPartial,
	}
	if remaining == 0 {
		result.PaymentStatus = backend.PaymentPaid
		// Full settlement confirms a pending order; later lifecycle stages
		// are owned by the backend and left untouched.
		if order.OrderStatus == backend.OrderPending {
			result.OrderStatus = backend.OrderConfirmed
		}
	}
	return result, nil
}
