package bdd

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/cucumber/godog"

	internalapi "github.com/MinhTuanPham/Dealer-Payment-Desk/internal/api"
	"github.com/MinhTuanPham/Dealer-Payment-Desk/internal/backend"
	"github.com/MinhTuanPham/Dealer-Payment-Desk/internal/desk"
	"github.com/MinhTuanPham/Dealer-Payment-Desk/internal/settlement"
)

// DeskWorld runs each scenario against the real desk HTTP surface backed by
// an in-memory dealer API, so the steps exercise the same wire contract the
// showroom UI uses.
type DeskWorld struct {
	t *testing.T

	orders   map[int64]*backend.Order
	cashHits int

	dealer *httptest.Server
	svc    *desk.Service
	mux    *http.ServeMux

	httpStatus int
	httpJSON   map[string]any
	sessionID  string
}

func NewDeskWorld(t *testing.T) *DeskWorld {
	return &DeskWorld{t: t}
}

func (w *DeskWorld) Register(sc *godog.ScenarioContext) {
	sc.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		w.reset()
		return ctx, nil
	})
	sc.After(func(ctx context.Context, _ *godog.Scenario, _ error) (context.Context, error) {
		w.teardown()
		return ctx, nil
	})

	w.registerDeskSteps(sc)
}

func (w *DeskWorld) reset() {
	w.teardown()

	w.orders = make(map[int64]*backend.Order)
	w.cashHits = 0
	w.httpStatus = 0
	w.httpJSON = nil
	w.sessionID = ""

	w.dealer = httptest.NewServer(w.dealerHandler())

	client := backend.NewClient(w.dealer.Client())
	w.svc = desk.NewService(client, backend.Session{BaseURL: w.dealer.URL, Token: "bdd-token"}, nil, nil, "")
	w.svc.SetReturnPolicy(5, time.Hour)

	w.mux = http.NewServeMux()
	internalapi.RegisterDeskRoutes(w.mux, w.svc)
}

func (w *DeskWorld) teardown() {
	if w.svc != nil {
		w.svc.Shutdown()
		w.svc = nil
	}
	if w.dealer != nil {
		w.dealer.Close()
		w.dealer = nil
	}
}

// dealerHandler is the in-memory stand-in for the dealer backend API.
func (w *DeskWorld) dealerHandler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/orders/", func(rw http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, "/api/orders/"), 10, 64)
		order, ok := w.orders[id]
		if err != nil || !ok {
			http.Error(rw, "order not found", http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(rw).Encode(order)
	})

	mux.HandleFunc("/api/payments/vnpay/", func(rw http.ResponseWriter, r *http.Request) {
		raw := strings.TrimPrefix(r.URL.Path, "/api/payments/vnpay/")
		if _, ok := w.orders[parseID(raw)]; !ok {
			http.Error(rw, "order not found", http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(rw).Encode(map[string]string{
			"paymentUrl": "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html?vnp_TxnRef=" + raw,
		})
	})

	mux.HandleFunc("/api/payments/cash", func(rw http.ResponseWriter, r *http.Request) {
		w.cashHits++
		var req backend.CashPaymentRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		order, ok := w.orders[req.OrderID]
		if !ok {
			http.Error(rw, "order not found", http.StatusNotFound)
			return
		}
		result, err := settlement.Apply(order, req.Amount)
		if err != nil {
			http.Error(rw, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		order.AmountPaid = result.TotalCollected
		order.PaymentStatus = result.PaymentStatus
		order.OrderStatus = result.OrderStatus
		_ = json.NewEncoder(rw).Encode(result)
	})

	mux.HandleFunc("/api/payments/vnpay-return", func(rw http.ResponseWriter, r *http.Request) {
		payload := map[string]string{}
		for key := range r.URL.Query() {
			payload[key] = r.URL.Query().Get(key)
		}
		_ = json.NewEncoder(rw).Encode(payload)
	})

	return mux
}

func (w *DeskWorld) do(method, target, body string) error {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	w.mux.ServeHTTP(rec, req)

	w.httpStatus = rec.Code
	w.httpJSON = nil
	if rec.Body.Len() > 0 {
		decoded := map[string]any{}
		if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err == nil {
			w.httpJSON = decoded
		}
	}
	return nil
}

func parseID(raw string) int64 {
	id, _ := strconv.ParseInt(raw, 10, 64)
	return id
}

func (w *DeskWorld) debugf(format string, args ...any) {
	if os.Getenv("BDD_DEBUG") != "" {
		w.t.Logf(format, args...)
	}
}
