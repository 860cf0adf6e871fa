package bdd

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/cucumber/godog"

	"github.com/MinhTuanPham/Dealer-Payment-Desk/internal/backend"
)

func (w *DeskWorld) registerDeskSteps(sc *godog.ScenarioContext) {
	sc.Step(`^an order (\d+) with grand total (\d+) VND$`, w.seedOrder)
	sc.Step(`^an order (\d+) with grand total (\d+) VND and (\d+) VND already paid$`, w.seedPartiallyPaidOrder)

	sc.Step(`^the desk fetches order (\d+)$`, w.fetchOrder)
	sc.Step(`^the desk records a cash payment of (-?\d+) VND for order (\d+)$`, w.recordCash)
	sc.Step(`^the desk initiates a gateway payment for order (\d+)$`, w.initiateGateway)
	sc.Step(`^the gateway returns code "([^"]*)" with amount (\d+) VND for order (\d+)$`, w.gatewayReturn)
	sc.Step(`^the desk closes the return session$`, w.closeReturn)
	sc.Step(`^the desk looks up the return session$`, w.lookupReturn)

	sc.Step(`^the response status is (\d+)$`, w.assertStatus)
	sc.Step(`^the order snapshot shows a grand total of (\d+) VND$`, w.assertGrandTotal)
	sc.Step(`^the settlement shows remaining (\d+) VND and change (\d+) VND$`, w.assertSettlement)
	sc.Step(`^the payment status is "([^"]*)"$`, w.assertPaymentStatus)
	sc.Step(`^the order status is "([^"]*)"$`, w.assertOrderStatus)
	sc.Step(`^the payment url references order (\d+)$`, w.assertPaymentURL)
	sc.Step(`^the return outcome is successful$`, w.assertReturnSucceeded)
	sc.Step(`^the return outcome is a failure with message "([^"]*)"$`, w.assertReturnFailed)
	sc.Step(`^the verified gateway amount is (\d+) VND$`, w.assertReturnAmount)
	sc.Step(`^the auto-close countdown starts at (\d+)$`, w.assertCountdown)
	sc.Step(`^the backend was never asked to settle$`, w.assertNoSettlementCalls)
}

func (w *DeskWorld) seedOrder(orderID, grandTotal int64) error {
	return w.seedPartiallyPaidOrder(orderID, grandTotal, 0)
}

func (w *DeskWorld) seedPartiallyPaidOrder(orderID, grandTotal, amountPaid int64) error {
	status := backend.PaymentUnpaid
	switch {
	case amountPaid >= grandTotal:
		status = backend.PaymentPaid
	case amountPaid > 0:
		status = backend.PaymentPartial
	}
	w.orders[orderID] = &backend.Order{
		OrderID:       orderID,
		Subtotal:      grandTotal,
		GrandTotal:    grandTotal,
		AmountPaid:    amountPaid,
		OrderStatus:   backend.OrderPending,
		PaymentStatus: status,
	}
	return nil
}

func (w *DeskWorld) fetchOrder(orderID int64) error {
	return w.do(http.MethodGet, fmt.Sprintf("/desk/orders/%d", orderID), "")
}

func (w *DeskWorld) recordCash(amount, orderID int64) error {
	body := fmt.Sprintf(`{"amount":%d}`, amount)
	return w.do(http.MethodPost, fmt.Sprintf("/desk/orders/%d/cash", orderID), body)
}

func (w *DeskWorld) initiateGateway(orderID int64) error {
	return w.do(http.MethodPost, fmt.Sprintf("/desk/orders/%d/vnpay", orderID), "")
}

func (w *DeskWorld) gatewayReturn(code string, amount, orderID int64) error {
	q := url.Values{}
	q.Set("vnp_ResponseCode", code)
	q.Set("vnp_Amount", strconv.FormatInt(amount*100, 10))
	q.Set("vnp_BankCode", "NCB")
	q.Set("vnp_TransactionNo", "14422574")
	q.Set("vnp_OrderInfo", fmt.Sprintf("Thanh toan don hang #%d", orderID))

	if err := w.do(http.MethodGet, "/desk/vnpay/return?"+q.Encode(), ""); err != nil {
		return err
	}
	if id, ok := w.httpJSON["sessionId"].(string); ok {
		w.sessionID = id
	}
	w.debugf("gateway return -> status=%d session=%s", w.httpStatus, w.sessionID)
	return nil
}

func (w *DeskWorld) closeReturn() error {
	if w.sessionID == "" {
		return fmt.Errorf("no return session captured")
	}
	return w.do(http.MethodDelete, "/desk/returns/"+w.sessionID, "")
}

func (w *DeskWorld) lookupReturn() error {
	if w.sessionID == "" {
		return fmt.Errorf("no return session captured")
	}
	return w.do(http.MethodGet, "/desk/returns/"+w.sessionID, "")
}

func (w *DeskWorld) assertStatus(expected int) error {
	if w.httpStatus != expected {
		return fmt.Errorf("expected status %d got %d (body %v)", expected, w.httpStatus, w.httpJSON)
	}
	return nil
}

func (w *DeskWorld) assertGrandTotal(expected int64) error {
	return w.assertNumberField(w.httpJSON, "grandTotal", expected)
}

func (w *DeskWorld) assertSettlement(remaining, change int64) error {
	if err := w.assertNumberField(w.httpJSON, "remaining", remaining); err != nil {
		return err
	}
	return w.assertNumberField(w.httpJSON, "changeAmount", change)
}

func (w *DeskWorld) assertPaymentStatus(expected string) error {
	return w.assertStringField(w.httpJSON, "paymentStatus", expected)
}

func (w *DeskWorld) assertOrderStatus(expected string) error {
	return w.assertStringField(w.httpJSON, "orderStatus", expected)
}

func (w *DeskWorld) assertPaymentURL(orderID int64) error {
	raw, ok := w.httpJSON["paymentUrl"].(string)
	if !ok || raw == "" {
		return fmt.Errorf("expected a payment url, got %v", w.httpJSON)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("payment url %q does not parse: %w", raw, err)
	}
	if parsed.Query().Get("vnp_TxnRef") != strconv.FormatInt(orderID, 10) {
		return fmt.Errorf("payment url %q does not reference order %d", raw, orderID)
	}
	return nil
}

func (w *DeskWorld) outcome() (map[string]any, error) {
	outcome, ok := w.httpJSON["outcome"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("response has no outcome: %v", w.httpJSON)
	}
	return outcome, nil
}

func (w *DeskWorld) assertReturnSucceeded() error {
	outcome, err := w.outcome()
	if err != nil {
		return err
	}
	if outcome["succeeded"] != true {
		return fmt.Errorf("expected a successful outcome, got %v", outcome)
	}
	return nil
}

func (w *DeskWorld) assertReturnFailed(message string) error {
	outcome, err := w.outcome()
	if err != nil {
		return err
	}
	if outcome["succeeded"] != false {
		return fmt.Errorf("expected a failed outcome, got %v", outcome)
	}
	return w.assertStringField(outcome, "message", message)
}

func (w *DeskWorld) assertReturnAmount(expected int64) error {
	outcome, err := w.outcome()
	if err != nil {
		return err
	}
	return w.assertNumberField(outcome, "amount", expected)
}

func (w *DeskWorld) assertCountdown(expected int) error {
	return w.assertNumberField(w.httpJSON, "autoCloseTicks", int64(expected))
}

func (w *DeskWorld) assertNoSettlementCalls() error {
	if w.cashHits != 0 {
		return fmt.Errorf("expected no settlement calls, backend saw %d", w.cashHits)
	}
	return nil
}

func (w *DeskWorld) assertNumberField(body map[string]any, field string, expected int64) error {
	got, ok := body[field].(float64)
	if !ok {
		return fmt.Errorf("field %q missing or not a number: %v", field, body)
	}
	if int64(got) != expected {
		return fmt.Errorf("expected %s=%d got %d", field, expected, int64(got))
	}
	return nil
}

func (w *DeskWorld) assertStringField(body map[string]any, field, expected string) error {
	got, ok := body[field].(string)
	if !ok {
		return fmt.Errorf("field %q missing or not a string: %v", field, body)
	}
	if got != expected {
		return fmt.Errorf("expected %s=%q got %q", field, expected, got)
	}
	return nil
}
