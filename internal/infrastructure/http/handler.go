package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	appOrder "github.com/minimart/order-settlement/internal/application/order"
	appSettlement "github.com/minimart/order-settlement/internal/application/settlement"
	domainCatalog "github.com/minimart/order-settlement/internal/domain/catalog"
	domainOrder "github.com/minimart/order-settlement/internal/domain/order"
	domainUser "github.com/minimart/order-settlement/internal/domain/user"
)

type Handler struct {
	orderService      *appOrder.Service
	settlementService *appSettlement.Service
}

func NewHandler(orderSvc *appOrder.Service, settlementSvc *appSettlement.Service) *Handler {
	return &Handler{
		orderService:      orderSvc,
		settlementService: settlementSvc,
	}
}

func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /orders", h.handleCreateOrder)
	mux.HandleFunc("GET /orders", h.handleListOrders)
	mux.HandleFunc("GET /orders/{id}", h.handleGetOrder)
	mux.HandleFunc("PUT /orders/{id}/pay", h.handlePayOrder)
	mux.HandleFunc("PUT /orders/{id}/deliver", h.handleDeliverOrder)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return mux
}

type orderLineRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}

type addressRequest struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

type createOrderRequest struct {
	UserID          string             `json:"user_id"`
	Lines           []orderLineRequest `json:"lines"`
	ShippingAddress addressRequest     `json:"shipping_address"`
	PaymentMethod   string             `json:"payment_method"`
	ItemsPrice      int64              `json:"items_price"`
	ShippingPrice   int64              `json:"shipping_price"`
	TotalPrice      int64              `json:"total_price"`
}

type orderLineResponse struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}

type userResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type orderResponse struct {
	ID            string              `json:"id"`
	UserID        string              `json:"user_id"`
	User          *userResponse       `json:"user,omitempty"`
	Lines         []orderLineResponse `json:"lines"`
	PaymentMethod string              `json:"payment_method,omitempty"`
	PaymentResult map[string]string   `json:"payment_result,omitempty"`
	ItemsPrice    int64               `json:"items_price"`
	ShippingPrice int64               `json:"shipping_price"`
	TotalPrice    int64               `json:"total_price"`
	Status        domainOrder.Status  `json:"status"`
	IsPaid        bool                `json:"is_paid"`
	PaidAt        *time.Time          `json:"paid_at,omitempty"`
	IsDelivered   bool                `json:"is_delivered"`
	DeliveredAt   *time.Time          `json:"delivered_at,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
}

func (h *Handler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	lines := make([]domainOrder.Line, 0, len(req.Lines))
	for _, line := range req.Lines {
		lines = append(lines, domainOrder.Line{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		})
	}

	ord, err := h.orderService.Create(r.Context(), appOrder.CreateInput{
		UserID: req.UserID,
		Lines:  lines,
		ShippingAddress: domainOrder.Address{
			Street:     req.ShippingAddress.Street,
			City:       req.ShippingAddress.City,
			PostalCode: req.ShippingAddress.PostalCode,
			Country:    req.ShippingAddress.Country,
		},
		PaymentMethod: req.PaymentMethod,
		ItemsPrice:    req.ItemsPrice,
		ShippingPrice: req.ShippingPrice,
		TotalPrice:    req.TotalPrice,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toOrderResponse(ord, nil))
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	view, err := h.orderService.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(view.Order, view.User))
}

func (h *Handler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	if userID := r.URL.Query().Get("user"); userID != "" {
		orders, err := h.orderService.ListByUser(r.Context(), userID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		out := make([]orderResponse, 0, len(orders))
		for _, ord := range orders {
			out = append(out, toOrderResponse(ord, nil))
		}
		writeJSON(w, http.StatusOK, out)
		return
	}

	views, err := h.orderService.ListAll(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := make([]orderResponse, 0, len(views))
	for _, view := range views {
		out = append(out, toOrderResponse(view.Order, view.User))
	}
	writeJSON(w, http.StatusOK, out)
}

// handlePayOrder is the "payment confirmed" trigger. The request body is the
// opaque payment confirmation payload. A failed settlement responds with
// {"status":"fail","message":<cause>} so callers can surface the cause.
func (h *Handler) handlePayOrder(w http.ResponseWriter, r *http.Request) {
	var paymentResult map[string]string
	if r.Body != nil && r.ContentLength != 0 {
		if err := decodeJSON(r, &paymentResult); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	result, err := h.settlementService.Settle(r.Context(), r.PathValue("id"), paymentResult)
	if err != nil {
		writeJSON(w, statusForError(err), map[string]string{
			"status":  "fail",
			"message": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(result.Order, result.User))
}

func (h *Handler) handleDeliverOrder(w http.ResponseWriter, r *http.Request) {
	view, err := h.orderService.MarkDelivered(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(view.Order, view.User))
}

func toOrderResponse(ord *domainOrder.Order, u *domainUser.User) orderResponse {
	lines := make([]orderLineResponse, 0, len(ord.Lines))
	for _, line := range ord.Lines {
		lines = append(lines, orderLineResponse{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		})
	}

	resp := orderResponse{
		ID:            ord.ID,
		UserID:        ord.UserID,
		Lines:         lines,
		PaymentMethod: ord.PaymentMethod,
		PaymentResult: ord.PaymentResult,
		ItemsPrice:    ord.ItemsPrice,
		ShippingPrice: ord.ShippingPrice,
		TotalPrice:    ord.TotalPrice,
		Status:        ord.Status,
		IsPaid:        ord.IsPaid,
		PaidAt:        ord.PaidAt,
		IsDelivered:   ord.IsDelivered,
		DeliveredAt:   ord.DeliveredAt,
		CreatedAt:     ord.CreatedAt,
	}
	if u != nil {
		resp.User = &userResponse{ID: u.ID, Name: u.Name, Email: u.Email}
	}
	return resp
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeDomainError(w http.ResponseWriter, err error) {
	writeError(w, statusForError(err), err)
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, domainOrder.ErrNotFound),
		errors.Is(err, domainCatalog.ErrNotFound),
		errors.Is(err, domainUser.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domainOrder.ErrAlreadyPaid),
		errors.Is(err, domainOrder.ErrNotPaid),
		errors.Is(err, domainOrder.ErrAlreadyDelivered):
		return http.StatusConflict
	case errors.Is(err, domainOrder.ErrNoLines),
		errors.Is(err, domainOrder.ErrInvalidQuantity),
		errors.Is(err, domainOrder.ErrInvalidAmount),
		errors.Is(err, domainCatalog.ErrInvalidQuantity),
		errors.Is(err, domainCatalog.ErrInsufficientStock),
		errors.Is(err, domainCatalog.ErrPriceMismatch):
		return http.StatusBadRequest
	case errors.Is(err, domainCatalog.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
