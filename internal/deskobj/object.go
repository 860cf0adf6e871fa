// Package deskobj exposes the desk operations as Restate virtual-object
// handlers keyed by order id. The cash settlement call is not idempotent on
// the wire, so running it inside restate.Run gives it journal-backed
// at-most-once semantics: a handler retry replays the recorded result
// instead of charging twice.
package deskobj

import (
	"errors"
	"fmt"
	"log"
	"strconv"

	restate "github.com/restatedev/sdk-go"

	"github.com/MinhTuanPham/Dealer-Payment-Desk/internal/backend"
	"github.com/MinhTuanPham/Dealer-Payment-Desk/internal/desk"
)

// ServiceName is the virtual-object name registered with the runtime.
const ServiceName = "desk.sv1.PaymentDeskService"

// svc is a package-level pointer set from main, mirroring how handlers get
// their dependencies elsewhere in this codebase.
var svc *desk.Service

func SetService(s *desk.Service) { svc = s }

type RecordCashPaymentRequest struct {
	Amount int64  `json:"amount"`
	Note   string `json:"note,omitempty"`
}

type InitiateGatewayPaymentRequest struct{}

// RecordCashPayment settles a cash payment durably for the keyed order.
func RecordCashPayment(ctx restate.ObjectContext, req *RecordCashPaymentRequest) (*backend.CashPaymentResult, error) {
	orderID, err := orderKey(ctx)
	if err != nil {
		return nil, err
	}
	log.Printf("[Desk Object %d] Recording cash payment of %d", orderID, req.Amount)

	if req.Amount <= 0 {
		return nil, restate.TerminalError(backend.ErrInvalidAmount)
	}

	result, err := restate.Run(ctx, func(rc restate.RunContext) (*backend.CashPaymentResult, error) {
		return svc.RecordCashPayment(rc, orderID, req.Amount, req.Note)
	})
	if err != nil {
		if errors.Is(err, backend.ErrNotFound) || errors.Is(err, backend.ErrInvalidAmount) {
			return nil, restate.TerminalError(err)
		}
		return nil, err
	}

	restate.Set(ctx, "payment_status", result.PaymentStatus)
	restate.Set(ctx, "total_collected", result.TotalCollected)
	restate.Set(ctx, "remaining", result.Remaining)
	return result, nil
}

// InitiateGatewayPayment starts a VNPAY session for the keyed order. The
// redirect URL is single-use, so it is journaled too: a retried invocation
// reuses the session it already opened instead of creating another.
func InitiateGatewayPayment(ctx restate.ObjectContext, _ *InitiateGatewayPaymentRequest) (*backend.GatewayInit, error) {
	orderID, err := orderKey(ctx)
	if err != nil {
		return nil, err
	}
	log.Printf("[Desk Object %d] Initiating gateway payment", orderID)

	init, err := restate.Run(ctx, func(rc restate.RunContext) (*backend.GatewayInit, error) {
		return svc.StartGatewayPayment(rc, orderID)
	})
	if err != nil {
		if errors.Is(err, backend.ErrNotFound) {
			return nil, restate.TerminalError(err)
		}
		return nil, err
	}

	restate.Set(ctx, "last_payment_url", init.PaymentURL)
	return init, nil
}

func orderKey(ctx restate.ObjectContext) (int64, error) {
	key := restate.Key(ctx)
	orderID, err := strconv.ParseInt(key, 10, 64)
	if err != nil || orderID <= 0 {
		return 0, restate.TerminalError(fmt.Errorf("object key %q is not a positive order id", key))
	}
	return orderID, nil
}
