package backend

// PaymentStatus tracks how much of an order's grand total has been settled.
type PaymentStatus string

const (
	PaymentUnpaid  PaymentStatus = "UNPAID"
	PaymentPartial PaymentStatus = "PARTIAL"
	PaymentPaid    PaymentStatus = "PAID"
)

// OrderStatus is the order lifecycle tag owned by the dealer backend.
type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderConfirmed OrderStatus = "CONFIRMED"
	OrderCompleted OrderStatus = "COMPLETED"
	OrderCancelled OrderStatus = "CANCELLED"
)

// Order is the financial snapshot served by GET /api/orders/{id}.
// All amounts are whole VND.
type Order struct {
	OrderID        int64         `json:"orderId"`
	Subtotal       int64         `json:"subtotal"`
	DealerDiscount int64         `json:"dealerDiscount"`
	VatAmount      int64         `json:"vatAmount"`
	GrandTotal     int64         `json:"grandTotal"`
	AmountPaid     int64         `json:"amountPaid"`
	OrderStatus    OrderStatus   `json:"orderStatus"`
	PaymentStatus  PaymentStatus `json:"paymentStatus"`
}

// Owed returns the outstanding balance before any new tender.
func (o *Order) Owed() int64 {
	owed := o.GrandTotal - o.AmountPaid
	if owed < 0 {
		return 0
	}
	return owed
}

// CashPaymentRequest is the body of POST /api/payments/cash.
type CashPaymentRequest struct {
	OrderID int64  `json:"orderId"`
	Amount  int64  `json:"amount"`
	Note    string `json:"note,omitempty"`
}

// CashPaymentResult is the backend's authoritative settlement outcome.
type CashPaymentResult struct {
	OrderID        int64         `json:"orderId"`
	PaidNow        int64         `json:"paidNow"`
	TotalCollected int64         `json:"totalCollected"`
	GrandTotal     int64         `json:"grandTotal"`
	Remaining      int64         `json:"remaining"`
	ChangeAmount   int64         `json:"changeAmount"`
	OrderStatus    OrderStatus   `json:"orderStatus"`
	PaymentStatus  PaymentStatus `json:"paymentStatus"`
}

// GatewayInit carries the single-use VNPAY redirect URL.
type GatewayInit struct {
	PaymentURL string `json:"paymentUrl"`
}
