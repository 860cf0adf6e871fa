package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/MinhTuanPham/Dealer-Payment-Desk/internal/backend"
	"github.com/MinhTuanPham/Dealer-Payment-Desk/internal/desk"
	"github.com/MinhTuanPham/Dealer-Payment-Desk/internal/settlement"
)

// RegisterDeskRoutes wires the desk endpoints into the provided mux. The
// showroom UI is the only intended consumer; every response is JSON.
func RegisterDeskRoutes(mux *http.ServeMux, svc *desk.Service) {
	mux.Handle("/desk/orders/", otelhttp.NewHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleOrders(svc, w, r)
	}), "desk-orders"))

	mux.Handle("/desk/vnpay/return", otelhttp.NewHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleGatewayReturn(svc, w, r)
	}), "desk-vnpay-return"))

	mux.Handle("/desk/returns/", otelhttp.NewHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleReturnSession(svc, w, r)
	}), "desk-returns"))
}

func handleOrders(svc *desk.Service, w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/desk/orders/")
	if path == "" {
		writeError(w, http.StatusBadRequest, "order id required")
		return
	}

	// POST /desk/orders/{id}/vnpay
	if strings.HasSuffix(path, "/vnpay") && r.Method == http.MethodPost {
		orderID, ok := parseOrderID(w, strings.TrimSuffix(path, "/vnpay"))
		if !ok {
			return
		}
		init, err := svc.StartGatewayPayment(r.Context(), orderID)
		if err != nil {
			writeFailure(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"paymentUrl": init.PaymentURL})
		return
	}

	// POST /desk/orders/{id}/cash
	if strings.HasSuffix(path, "/cash") && r.Method == http.MethodPost {
		orderID, ok := parseOrderID(w, strings.TrimSuffix(path, "/cash"))
		if !ok {
			return
		}
		var reqBody struct {
			Amount int64  `json:"amount"`
			Note   string `json:"note"`
		}
		if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		result, err := svc.RecordCashPayment(r.Context(), orderID, reqBody.Amount, reqBody.Note)
		if err != nil {
			writeFailure(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
		return
	}

	// GET /desk/orders/{id}/receipts
	if strings.HasSuffix(path, "/receipts") && r.Method == http.MethodGet {
		orderID, ok := parseOrderID(w, strings.TrimSuffix(path, "/receipts"))
		if !ok {
			return
		}
		receipts, err := svc.Receipts(r.Context(), orderID)
		if err != nil {
			writeFailure(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"receipts": receipts})
		return
	}

	// GET /desk/orders/{id}
	if r.Method == http.MethodGet {
		orderID, ok := parseOrderID(w, path)
		if !ok {
			return
		}
		order, err := svc.FetchOrder(r.Context(), orderID)
		if err != nil {
			writeFailure(w, err)
			return
		}
		writeJSON(w, http.StatusOK, order)
		return
	}

	http.NotFound(w, r)
}

func handleGatewayReturn(svc *desk.Service, w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	view, err := svc.HandleGatewayReturn(r.Context(), r.URL.Query())
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func handleReturnSession(svc *desk.Service, w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimPrefix(r.URL.Path, "/desk/returns/")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "session id required")
		return
	}
	switch r.Method {
	case http.MethodGet:
		view, err := svc.GetReturn(sessionID)
		if err != nil {
			writeFailure(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	case http.MethodDelete:
		if err := svc.CloseReturn(sessionID); err != nil {
			writeFailure(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"closed": true})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func parseOrderID(w http.ResponseWriter, raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "order id must be a positive integer")
		return 0, false
	}
	return id, true
}

// writeFailure maps the desk failure taxonomy onto HTTP statuses. Validation
// problems come back 4xx and never reached the backend; transport and
// gateway failures come back 502 so the UI shows a dismissible inline error
// and keeps its last-good state.
func writeFailure(w http.ResponseWriter, err error) {
	var transport *backend.TransportError
	var rejected *backend.GatewayRejectedError
	var malformed *backend.MalformedError

	switch {
	case errors.Is(err, backend.ErrNotFound), errors.Is(err, desk.ErrReturnNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, backend.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, desk.ErrBusy), errors.Is(err, settlement.ErrAlreadySettled):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &rejected):
		writeError(w, http.StatusBadGateway, err.Error())
	case errors.As(err, &transport):
		writeError(w, http.StatusBadGateway, err.Error())
	case errors.As(err, &malformed):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}
