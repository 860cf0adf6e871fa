// Package desk orchestrates the payment-confirmation flow between the
// showroom front-end, the dealer backend API and the VNPAY gateway.
package desk

import (
	"context"
	"errors"
	"log"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/MinhTuanPham/Dealer-Payment-Desk/internal/backend"
	"github.com/MinhTuanPham/Dealer-Payment-Desk/internal/countdown"
	"github.com/MinhTuanPham/Dealer-Payment-Desk/internal/events"
	"github.com/MinhTuanPham/Dealer-Payment-Desk/internal/journal"
	"github.com/MinhTuanPham/Dealer-Payment-Desk/internal/settlement"
	"github.com/MinhTuanPham/Dealer-Payment-Desk/internal/vnpay"
)

// ErrBusy rejects a second submission while one is already in flight for
// the same order. This is a plain guard, not a queue: the caller re-clicks.
var ErrBusy = errors.New("a payment operation is already in flight for this order")

// ErrReturnNotFound means the return session expired or was already closed.
var ErrReturnNotFound = errors.New("gateway return session not found")

// ReturnView is what the return page shows: the verified outcome plus the
// auto-close countdown state.
type ReturnView struct {
	SessionID      string        `json:"sessionId"`
	Outcome        vnpay.Outcome `json:"outcome"`
	AutoCloseTicks int           `json:"autoCloseTicks"`
}

type returnSession struct {
	view ReturnView
	cd   *countdown.Countdown
}

// Service drives the four desk operations. Producer and journal are
// optional; when nil the desk works without eventing or receipts.
type Service struct {
	client   *backend.Client
	session  backend.Session
	producer *events.Producer
	journal  *journal.Repository
	topic    string
	tracer   trace.Tracer

	returnTicks    int
	returnInterval time.Duration

	mu       sync.Mutex
	inflight map[int64]struct{}
	returns  map[string]*returnSession
}

func NewService(client *backend.Client, session backend.Session, producer *events.Producer, repo *journal.Repository, paymentsTopic string) *Service {
	return &Service{
		client:         client,
		session:        session,
		producer:       producer,
		journal:        repo,
		topic:          paymentsTopic,
		tracer:         otel.Tracer("payment-desk"),
		returnTicks:    countdown.DefaultTicks,
		returnInterval: countdown.DefaultInterval,
		inflight:       make(map[int64]struct{}),
		returns:        make(map[string]*returnSession),
	}
}

// SetReturnPolicy overrides the auto-close countdown, mainly for tests.
func (s *Service) SetReturnPolicy(ticks int, interval time.Duration) {
	s.returnTicks = ticks
	s.returnInterval = interval
}

// FetchOrder reads the order snapshot. Pure read; the caller decides
// whether to retry a failure.
func (s *Service) FetchOrder(ctx context.Context, orderID int64) (*backend.Order, error) {
	ctx, span := s.tracer.Start(ctx, "desk.FetchOrder",
		trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()
	return s.client.GetOrder(ctx, s.session, orderID)
}

// StartGatewayPayment begins a VNPAY redirect payment. The desk checks the
// order is not already fully paid before initiating; the initiation itself
// has no idempotency guard, so a repeat call after this point opens a new
// gateway session.
func (s *Service) StartGatewayPayment(ctx context.Context, orderID int64) (*backend.GatewayInit, error) {
	ctx, span := s.tracer.Start(ctx, "desk.StartGatewayPayment",
		trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	if !s.acquire(orderID) {
		return nil, ErrBusy
	}
	defer s.release(orderID)

	order, err := s.client.GetOrder(ctx, s.session, orderID)
	if err != nil {
		return nil, err
	}
	if order.Owed() == 0 {
		return nil, settlement.ErrAlreadySettled
	}
	return s.client.InitiateVNPay(ctx, s.session, orderID)
}

// RecordCashPayment validates locally, settles remotely, then journals and
// publishes. Validation failures never reach the network; transport
// failures surface typed and the last-good snapshot stays with the caller.
func (s *Service) RecordCashPayment(ctx context.Context, orderID, amount int64, note string) (*backend.CashPaymentResult, error) {
	ctx, span := s.tracer.Start(ctx, "desk.RecordCashPayment",
		trace.WithAttributes(
			attribute.Int64("order.id", orderID),
			attribute.Int64("payment.amount", amount),
		))
	defer span.End()

	if amount <= 0 {
		return nil, backend.ErrInvalidAmount
	}
	if !s.acquire(orderID) {
		return nil, ErrBusy
	}
	defer s.release(orderID)

	order, err := s.client.GetOrder(ctx, s.session, orderID)
	if err != nil {
		return nil, err
	}

	// Local dry run. Catches an already-settled order before the wire and
	// gives us the expected arithmetic to cross-check the backend against.
	expected, err := settlement.Apply(order, amount)
	if err != nil {
		if errors.Is(err, settlement.ErrInvalidAmount) {
			return nil, backend.ErrInvalidAmount
		}
		return nil, err
	}

	req := backend.CashPaymentRequest{OrderID: orderID, Amount: amount, Note: note}
	result, err := s.client.RecordCashPayment(ctx, s.session, req, uuid.New().String())
	if err != nil {
		return nil, err
	}
	// A result that lands after cancellation belongs to a view that is
	// gone; discard it instead of applying it.
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	if result.Remaining+result.TotalCollected != result.GrandTotal {
		log.Printf("[Desk] backend settlement for order %d violates remaining+collected==grandTotal: %+v", orderID, result)
	}
	if result.ChangeAmount != expected.ChangeAmount || result.Remaining != expected.Remaining {
		log.Printf("[Desk] backend settlement for order %d differs from local arithmetic (expected remaining=%d change=%d)",
			orderID, expected.Remaining, expected.ChangeAmount)
	}

	s.journalReceipt(ctx, "CASH", result)
	s.publish(ctx, "CashPaymentRecorded", orderID, result)
	return result, nil
}

// HandleGatewayReturn validates the gateway callback through the backend,
// verifies the outcome for display and opens a return session that closes
// itself after the countdown unless the user navigates away first.
func (s *Service) HandleGatewayReturn(ctx context.Context, query url.Values) (*ReturnView, error) {
	ctx, span := s.tracer.Start(ctx, "desk.HandleGatewayReturn")
	defer span.End()

	payload, err := s.client.VNPayReturn(ctx, s.session, query)
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	outcome := vnpay.Verify(payload)
	sessionID := uuid.New().String()
	view := ReturnView{SessionID: sessionID, Outcome: outcome, AutoCloseTicks: s.returnTicks}

	rs := &returnSession{view: view}
	rs.cd = countdown.New(s.returnTicks, s.returnInterval, func() {
		// Auto-close after the grace period. Closing an already-closed
		// session is a no-op.
		if err := s.CloseReturn(sessionID); err == nil {
			log.Printf("[Desk] return session %s auto-closed", sessionID)
		}
	})

	s.mu.Lock()
	s.returns[sessionID] = rs
	s.mu.Unlock()
	rs.cd.Start()

	s.publish(ctx, "GatewayReturnVerified", parseOrderRef(outcome.OrderRef), map[string]any{
		"sessionId":     sessionID,
		"succeeded":     outcome.Succeeded,
		"responseCode":  outcome.ResponseCode,
		"amount":        outcome.Amount,
		"bankCode":      outcome.BankCode,
		"transactionNo": outcome.TransactionNo,
		"orderRef":      outcome.OrderRef,
	})
	return &view, nil
}

// GetReturn reads an open return session with its live countdown state.
func (s *Service) GetReturn(sessionID string) (*ReturnView, error) {
	s.mu.Lock()
	rs, ok := s.returns[sessionID]
	s.mu.Unlock()
	if !ok {
		return nil, ErrReturnNotFound
	}
	view := rs.view
	view.AutoCloseTicks = rs.cd.Remaining()
	return &view, nil
}

// CloseReturn tears a return session down, cancelling its countdown. Used
// both by explicit user navigation and by the countdown itself.
func (s *Service) CloseReturn(sessionID string) error {
	s.mu.Lock()
	rs, ok := s.returns[sessionID]
	if ok {
		delete(s.returns, sessionID)
	}
	s.mu.Unlock()
	if !ok {
		return ErrReturnNotFound
	}
	rs.cd.Stop()
	return nil
}

// Shutdown cancels every open return session so no countdown fires after
// the service is gone.
func (s *Service) Shutdown() {
	s.mu.Lock()
	sessions := s.returns
	s.returns = make(map[string]*returnSession)
	s.mu.Unlock()
	for _, rs := range sessions {
		rs.cd.Stop()
	}
}

// Receipts lists the journaled settlement lines for an order.
func (s *Service) Receipts(ctx context.Context, orderID int64) ([]journal.Receipt, error) {
	if s.journal == nil {
		return nil, nil
	}
	return s.journal.ListByOrder(ctx, orderID)
}

func (s *Service) acquire(orderID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[orderID]; busy {
		return false
	}
	s.inflight[orderID] = struct{}{}
	return true
}

func (s *Service) release(orderID int64) {
	s.mu.Lock()
	delete(s.inflight, orderID)
	s.mu.Unlock()
}

func (s *Service) journalReceipt(ctx context.Context, method string, result *backend.CashPaymentResult) {
	if s.journal == nil {
		return
	}
	rec := journal.Receipt{
		ID:             uuid.New().String(),
		OrderID:        result.OrderID,
		Method:         method,
		Amount:         result.PaidNow,
		TotalCollected: result.TotalCollected,
		Remaining:      result.Remaining,
		ChangeAmount:   result.ChangeAmount,
		PaymentStatus:  string(result.PaymentStatus),
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.journal.InsertReceipt(ctx, rec); err != nil {
		log.Printf("[Desk] Warning: failed to journal receipt for order %d: %v", result.OrderID, err)
	}
}

func (s *Service) publish(ctx context.Context, eventType string, orderID int64, data any) {
	if s.producer == nil {
		return
	}
	key := "unknown"
	if orderID > 0 {
		key = formatOrderID(orderID)
	}
	evt := events.Envelope{EventType: eventType, EventVersion: "v1", AggregateID: key, Data: data}
	if err := s.producer.Publish(ctx, s.topic, key, evt); err != nil {
		log.Printf("[Desk] Warning: failed to publish %s for order %s: %v", eventType, key, err)
	}
}

// parseOrderRef turns the best-effort extracted reference into an id, zero
// when absent or non-numeric.
func parseOrderRef(ref string) int64 {
	n, err := strconv.ParseInt(ref, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func formatOrderID(id int64) string { return strconv.FormatInt(id, 10) }
