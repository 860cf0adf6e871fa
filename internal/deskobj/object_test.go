package deskobj

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	restate "github.com/restatedev/sdk-go"
	"github.com/restatedev/sdk-go/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/MinhTuanPham/Dealer-Payment-Desk/internal/backend"
	"github.com/MinhTuanPham/Dealer-Payment-Desk/internal/desk"
	"github.com/MinhTuanPham/Dealer-Payment-Desk/internal/settlement"
)

type stubRunContext struct {
	context.Context
}

func (s stubRunContext) Log() *slog.Logger { return slog.Default() }

func (s stubRunContext) Request() *restate.Request { return &restate.Request{} }

// interceptRun executes Run closures inline against a stub context instead
// of a journal, assigning the closure result into the output pointer.
func interceptRun(t *testing.T, mockCtx *mocks.MockContext) {
	respond := func(args mock.Arguments) {
		fn := args[0].(func(restate.RunContext) (any, error))
		output := args[1]

		result, err := fn(stubRunContext{Context: context.Background()})
		if err != nil {
			t.Fatalf("Run closure returned error: %v", err)
		}
		val := reflect.ValueOf(output)
		if val.Kind() != reflect.Ptr || val.IsNil() || result == nil {
			return
		}
		resultValue := reflect.ValueOf(result)
		if val.Elem().Type() == resultValue.Type() {
			val.Elem().Set(resultValue)
		}
	}

	mockCtx.On("Run", mock.Anything, mock.Anything).Maybe().Run(respond).Return(nil)
	mockCtx.On("Run", mock.Anything, mock.Anything, mock.Anything).Maybe().Run(respond).Return(nil)
}

func setupService(t *testing.T, order backend.Order) {
	t.Helper()

	dealer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/orders/482":
			_ = json.NewEncoder(w).Encode(order)
		case "/api/payments/vnpay/482":
			_ = json.NewEncoder(w).Encode(map[string]string{"paymentUrl": "https://sandbox.vnpayment.vn/pay?ref=482"})
		case "/api/payments/cash":
			var req backend.CashPaymentRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			o := order
			result, err := settlement.Apply(&o, req.Amount)
			if err != nil {
				http.Error(w, err.Error(), http.StatusUnprocessableEntity)
				return
			}
			_ = json.NewEncoder(w).Encode(result)
		default:
			http.Error(w, "not found", http.StatusNotFound)
		}
	}))
	t.Cleanup(dealer.Close)

	client := backend.NewClient(dealer.Client())
	svc := desk.NewService(client, backend.Session{BaseURL: dealer.URL}, nil, nil, "")
	t.Cleanup(svc.Shutdown)
	SetService(svc)
}

func unpaidOrder() backend.Order {
	return backend.Order{
		OrderID:       482,
		Subtotal:      1_000_000,
		GrandTotal:    1_000_000,
		OrderStatus:   backend.OrderPending,
		PaymentStatus: backend.PaymentUnpaid,
	}
}

func TestRecordCashPaymentHandler(t *testing.T) {
	setupService(t, unpaidOrder())

	mockCtx := mocks.NewMockContext(t)
	mockCtx.EXPECT().Key().Return("482")
	interceptRun(t, mockCtx)
	mockCtx.EXPECT().Set("payment_status", backend.PaymentPartial)
	mockCtx.EXPECT().Set("total_collected", int64(600_000))
	mockCtx.EXPECT().Set("remaining", int64(400_000))

	result, err := RecordCashPayment(restate.WithMockContext(mockCtx), &RecordCashPaymentRequest{Amount: 600_000})
	require.NoError(t, err)
	assert.Equal(t, int64(400_000), result.Remaining)
	assert.Equal(t, backend.PaymentPartial, result.PaymentStatus)
}

func TestRecordCashPaymentHandlerRejectsInvalidAmount(t *testing.T) {
	setupService(t, unpaidOrder())

	mockCtx := mocks.NewMockContext(t)
	mockCtx.EXPECT().Key().Return("482")

	_, err := RecordCashPayment(restate.WithMockContext(mockCtx), &RecordCashPaymentRequest{Amount: 0})
	require.Error(t, err)
	assert.ErrorContains(t, err, "amount must be a positive number")
}

func TestRecordCashPaymentHandlerRejectsBadKey(t *testing.T) {
	setupService(t, unpaidOrder())

	mockCtx := mocks.NewMockContext(t)
	mockCtx.EXPECT().Key().Return("not-an-id")

	_, err := RecordCashPayment(restate.WithMockContext(mockCtx), &RecordCashPaymentRequest{Amount: 100})
	assert.Error(t, err)
}

func TestInitiateGatewayPaymentHandler(t *testing.T) {
	setupService(t, unpaidOrder())

	mockCtx := mocks.NewMockContext(t)
	mockCtx.EXPECT().Key().Return("482")
	interceptRun(t, mockCtx)
	mockCtx.EXPECT().Set("last_payment_url", "https://sandbox.vnpayment.vn/pay?ref=482")

	init, err := InitiateGatewayPayment(restate.WithMockContext(mockCtx), &InitiateGatewayPaymentRequest{})
	require.NoError(t, err)
	assert.Contains(t, init.PaymentURL, "ref=482")
}
