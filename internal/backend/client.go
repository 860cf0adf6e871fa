package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/MinhTuanPham/Dealer-Payment-Desk/internal/vnpay"
)

// Session carries the per-call context for talking to the dealer backend.
// The token is passed in explicitly rather than read from ambient state so
// the client stays testable; an empty token sends the request
// unauthenticated and lets the backend reject it.
type Session struct {
	BaseURL string
	Token   string
}

// Client is a thin, retry-free consumer of the dealer backend API.
type Client struct {
	http *http.Client
}

// NewClient builds a Client. A nil httpClient gets a default with the
// otelhttp transport so outbound calls show up in traces.
func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	return &Client{http: httpClient}
}

// GetOrder fetches an order's financial snapshot. Pure read, no retries.
func (c *Client) GetOrder(ctx context.Context, s Session, orderID int64) (*Order, error) {
	const op = "GetOrder"
	endpoint := fmt.Sprintf("%s/api/orders/%d", strings.TrimRight(s.BaseURL, "/"), orderID)
	resp, err := c.do(ctx, s, op, http.MethodGet, endpoint, nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode >= 500:
		return nil, &TransportError{Op: op, Err: fmt.Errorf("status %d", resp.StatusCode)}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, &MalformedError{Op: op, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	var order Order
	if err := json.NewDecoder(resp.Body).Decode(&order); err != nil {
		return nil, &MalformedError{Op: op, Err: err}
	}
	if order.OrderID == 0 || order.GrandTotal < 0 {
		return nil, &MalformedError{Op: op, Err: fmt.Errorf("response is not an order snapshot")}
	}
	return &order, nil
}

// InitiateVNPay starts a redirect-based gateway payment and returns the
// single-use payment URL. There is no idempotency guard here: calling twice
// opens two independent gateway sessions. The caller is responsible for
// checking the order is not already fully paid.
func (c *Client) InitiateVNPay(ctx context.Context, s Session, orderID int64) (*GatewayInit, error) {
	const op = "InitiateVNPay"
	endpoint := fmt.Sprintf("%s/api/payments/vnpay/%d", strings.TrimRight(s.BaseURL, "/"), orderID)
	resp, err := c.do(ctx, s, op, http.MethodPost, endpoint, nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &GatewayRejectedError{Op: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var init GatewayInit
	if err := json.NewDecoder(resp.Body).Decode(&init); err != nil {
		return nil, &MalformedError{Op: op, Err: err}
	}
	if init.PaymentURL == "" {
		return nil, &MalformedError{Op: op, Err: fmt.Errorf("missing paymentUrl")}
	}
	return &init, nil
}

// RecordCashPayment posts a cash settlement. The amount is validated before
// any network I/O. The call mutates the order's payment status remotely and
// is NOT idempotent on the wire, so each request carries a caller-generated
// idempotency key; a retry after an unknown-outcome timeout must reuse it.
func (c *Client) RecordCashPayment(ctx context.Context, s Session, req CashPaymentRequest, idempotencyKey string) (*CashPaymentResult, error) {
	const op = "RecordCashPayment"
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, &MalformedError{Op: op, Err: err}
	}
	endpoint := strings.TrimRight(s.BaseURL, "/") + "/api/payments/cash"
	resp, err := c.do(ctx, s, op, http.MethodPost, endpoint, body, idempotencyKey)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		return nil, ErrInvalidAmount
	case resp.StatusCode >= 500:
		return nil, &TransportError{Op: op, Err: fmt.Errorf("status %d", resp.StatusCode)}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, &MalformedError{Op: op, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	var result CashPaymentResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &MalformedError{Op: op, Err: err}
	}
	return &result, nil
}

// VNPayReturn forwards the gateway's callback query string to the backend
// for validation and returns the validated field mapping.
func (c *Client) VNPayReturn(ctx context.Context, s Session, query url.Values) (vnpay.ReturnPayload, error) {
	const op = "VNPayReturn"
	endpoint := strings.TrimRight(s.BaseURL, "/") + "/api/payments/vnpay-return?" + query.Encode()
	resp, err := c.do(ctx, s, op, http.MethodGet, endpoint, nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &MalformedError{Op: op, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	var payload vnpay.ReturnPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, &MalformedError{Op: op, Err: err}
	}
	return payload, nil
}

func (c *Client) do(ctx context.Context, s Session, op, method, endpoint string, body []byte, idempotencyKey string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}
	if idempotencyKey != "" {
		req.Header.Set("X-Idempotency-Key", idempotencyKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	return resp, nil
}
