package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOrder() Order {
	return Order{
		OrderID:        482,
		Subtotal:       1_100_000,
		DealerDiscount: 200_000,
		VatAmount:      100_000,
		GrandTotal:     1_000_000,
		AmountPaid:     0,
		OrderStatus:    OrderPending,
		PaymentStatus:  PaymentUnpaid,
	}
}

func TestGetOrder(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, "/api/orders/482", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(testOrder())
	}))
	defer srv.Close()

	c := NewClient(srv.Client())
	order, err := c.GetOrder(context.Background(), Session{BaseURL: srv.URL, Token: "tok-123"}, 482)
	require.NoError(t, err)

	assert.Equal(t, int64(482), order.OrderID)
	assert.Equal(t, int64(1_000_000), order.GrandTotal)
	assert.Equal(t, "Bearer tok-123", gotAuth)
}

func TestGetOrderWithoutTokenStaysUnauthenticated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// No token must mean no Authorization header, not a crash.
		assert.Empty(t, r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(testOrder())
	}))
	defer srv.Close()

	c := NewClient(srv.Client())
	_, err := c.GetOrder(context.Background(), Session{BaseURL: srv.URL}, 482)
	require.NoError(t, err)
}

func TestGetOrderNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such order", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.Client())
	_, err := c.GetOrder(context.Background(), Session{BaseURL: srv.URL}, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetOrderServerFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.Client())
	_, err := c.GetOrder(context.Background(), Session{BaseURL: srv.URL}, 482)

	var transport *TransportError
	assert.ErrorAs(t, err, &transport)
}

func TestGetOrderMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	c := NewClient(srv.Client())
	_, err := c.GetOrder(context.Background(), Session{BaseURL: srv.URL}, 482)

	var malformed *MalformedError
	assert.ErrorAs(t, err, &malformed)
}

func TestGetOrderNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	c := NewClient(nil)
	_, err := c.GetOrder(context.Background(), Session{BaseURL: srv.URL}, 482)

	var transport *TransportError
	assert.ErrorAs(t, err, &transport)
}

func TestInitiateVNPay(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/payments/vnpay/482", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"paymentUrl": "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html?vnp_TxnRef=482",
		})
	}))
	defer srv.Close()

	c := NewClient(srv.Client())
	init, err := c.InitiateVNPay(context.Background(), Session{BaseURL: srv.URL}, 482)
	require.NoError(t, err)
	assert.Contains(t, init.PaymentURL, "vnp_TxnRef=482")
}

func TestInitiateVNPayRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "order already paid", http.StatusConflict)
	}))
	defer srv.Close()

	c := NewClient(srv.Client())
	_, err := c.InitiateVNPay(context.Background(), Session{BaseURL: srv.URL}, 482)

	var rejected *GatewayRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, http.StatusConflict, rejected.Status)
	assert.Contains(t, rejected.Body, "already paid")
}

func TestRecordCashPaymentValidatesBeforeNetwork(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	c := NewClient(srv.Client())
	for _, amount := range []int64{0, -500} {
		_, err := c.RecordCashPayment(context.Background(), Session{BaseURL: srv.URL},
			CashPaymentRequest{OrderID: 482, Amount: amount}, "key-1")
		assert.ErrorIs(t, err, ErrInvalidAmount)
	}
	assert.Equal(t, int32(0), hits.Load(), "invalid amounts must never reach the wire")
}

func TestRecordCashPayment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/payments/cash", r.URL.Path)
		assert.Equal(t, "key-abc", r.Header.Get("X-Idempotency-Key"))

		var req CashPaymentRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, int64(482), req.OrderID)
		assert.Equal(t, int64(600_000), req.Amount)

		_ = json.NewEncoder(w).Encode(CashPaymentResult{
			OrderID:        482,
			PaidNow:        600_000,
			TotalCollected: 600_000,
			GrandTotal:     1_000_000,
			Remaining:      400_000,
			OrderStatus:    OrderPending,
			PaymentStatus:  PaymentPartial,
		})
	}))
	defer srv.Close()

	c := NewClient(srv.Client())
	result, err := c.RecordCashPayment(context.Background(), Session{BaseURL: srv.URL},
		CashPaymentRequest{OrderID: 482, Amount: 600_000, Note: "first installment"}, "key-abc")
	require.NoError(t, err)

	assert.Equal(t, int64(400_000), result.Remaining)
	assert.Equal(t, PaymentPartial, result.PaymentStatus)
}

func TestRecordCashPaymentBackendRevalidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "amount rejected", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c := NewClient(srv.Client())
	_, err := c.RecordCashPayment(context.Background(), Session{BaseURL: srv.URL},
		CashPaymentRequest{OrderID: 482, Amount: 100}, "key-1")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestVNPayReturnPassesQueryThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/payments/vnpay-return", r.URL.Path)
		assert.Equal(t, "00", r.URL.Query().Get("vnp_ResponseCode"))
		_ = json.NewEncoder(w).Encode(map[string]string{
			"vnp_ResponseCode": "00",
			"vnp_Amount":       "100000000",
			"vnp_OrderInfo":    "don hang #482",
		})
	}))
	defer srv.Close()

	query := url.Values{}
	query.Set("vnp_ResponseCode", "00")
	query.Set("vnp_Amount", "100000000")

	c := NewClient(srv.Client())
	payload, err := c.VNPayReturn(context.Background(), Session{BaseURL: srv.URL}, query)
	require.NoError(t, err)
	assert.Equal(t, "00", payload["vnp_ResponseCode"])
	assert.Equal(t, "don hang #482", payload["vnp_OrderInfo"])
}
