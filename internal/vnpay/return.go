// Package vnpay interprets VNPAY return callbacks for user-facing display.
//
// Nothing here verifies the gateway's signature. Outcomes from this package
// must never drive an authorization decision; the dealer backend owns the
// authoritative validation of vnp_SecureHash.
package vnpay

import (
	"regexp"
	"strconv"
	"strings"
)

// Well-known callback fields.
const (
	FieldResponseCode      = "vnp_ResponseCode"
	FieldTransactionStatus = "vnp_TransactionStatus"
	FieldAmount            = "vnp_Amount"
	FieldBankCode          = "vnp_BankCode"
	FieldTransactionNo     = "vnp_TransactionNo"
	FieldOrderInfo         = "vnp_OrderInfo"
	FieldTxnRef            = "vnp_TxnRef"
)

// codeApproved is the gateway's discriminant for an approved transaction.
const codeApproved = "00"

// amountScale is the gateway's minor-unit factor: vnp_Amount carries the
// VND amount multiplied by 100.
const amountScale = 100

// ReturnPayload is the validated mapping of the gateway's callback query
// fields. Immutable once received.
type ReturnPayload map[string]string

// Outcome is the display-level verdict for a gateway return. The state
// machine is Pending -> {Succeeded, Failed}, terminal either way;
// verification itself is never retried.
type Outcome struct {
	Succeeded     bool   `json:"succeeded"`
	ResponseCode  string `json:"responseCode"`
	Message       string `json:"message"`
	Amount        int64  `json:"amount"` // whole VND, already scaled down
	BankCode      string `json:"bankCode,omitempty"`
	TransactionNo string `json:"transactionNo,omitempty"`
	OrderRef      string `json:"orderRef,omitempty"`
}

// Verify decides success from the single discriminant field. Any value
// other than "00", including an absent field, is a failure.
func Verify(p ReturnPayload) Outcome {
	code := p[FieldResponseCode]
	amount, _ := ParseAmount(p[FieldAmount])
	return Outcome{
		Succeeded:     code == codeApproved,
		ResponseCode:  code,
		Message:       CodeMessage(code),
		Amount:        amount,
		BankCode:      p[FieldBankCode],
		TransactionNo: p[FieldTransactionNo],
		OrderRef:      ExtractOrderRef(p[FieldOrderInfo]),
	}
}

// ParseAmount converts the gateway's minor-unit amount string to whole VND.
func ParseAmount(raw string) (int64, bool) {
	if raw == "" {
		return 0, false
	}
	minor, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || minor < 0 {
		return 0, false
	}
	return minor / amountScale, true
}

var orderRefPattern = regexp.MustCompile(`#(\d+)`)

// ExtractOrderRef pulls the order identifier out of the free-text
// vnp_OrderInfo field, which by upstream convention embeds it as "#<digits>".
// This is a weak foreign-key convention; callers must tolerate an empty
// result and omit the order reference from display rather than fail.
// TODO: drop this once the backend returns the order id as a structured
// field in the return payload.
func ExtractOrderRef(orderInfo string) string {
	m := orderRefPattern.FindStringSubmatch(orderInfo)
	if m == nil {
		return ""
	}
	return m[1]
}
