// Package httppresentation exposes the order use cases over JSON/HTTP.
package httppresentation

import (
	"net/http"
	"strings"

	"github.com/Zhima-Mochi/storefront-orders/internal/application"
	appinv "github.com/Zhima-Mochi/storefront-orders/internal/application/inventory"
	apporder "github.com/Zhima-Mochi/storefront-orders/internal/application/order"
	dominv "github.com/Zhima-Mochi/storefront-orders/internal/domain/inventory"
	domorder "github.com/Zhima-Mochi/storefront-orders/internal/domain/order"
	"github.com/Zhima-Mochi/storefront-orders/internal/observability"
	"github.com/Zhima-Mochi/storefront-orders/internal/observability/logctx"
)

const (
	componentHTTPHandler = "http_server"
	headerRequestID      = "X-Request-ID"
)

// UseCases is everything the HTTP surface calls into.
type UseCases struct {
	ClientToken    application.UseCase[struct{}, string]
	PlaceOrder     application.UseCase[apporder.PlaceOrderInput, *apporder.PlaceOrderResult]
	UpdateOrder    application.UseCase[apporder.UpdateOrderInput, *domorder.Order]
	AddOrderItem   application.UseCase[apporder.AddOrderItemInput, domorder.Item]
	DecrementStock application.UseCase[appinv.DecrementStockInput, *dominv.Product]
	ClearCart      application.UseCase[string, struct{}]
	GetOrder       application.UseCase[string, *domorder.Order]
	Lookup         application.UseCase[apporder.LookupInput, *apporder.LookupResult]
}

type Handler struct {
	uc  UseCases
	log observability.Logger
	tel observability.Observability
}

func NewHandler(uc UseCases, tel observability.Observability) *Handler {
	_, logger, _ := observability.Resolve(tel)
	return &Handler{
		uc:  uc,
		log: logger.With(observability.F("component", componentHTTPHandler)),
		tel: tel,
	}
}

// Router registers every route on a Go 1.22 pattern mux. Extra handlers such as /metrics are
// mounted as-is.
func (h *Handler) Router(extra map[string]http.Handler) http.Handler {
	mux := http.NewServeMux()

	h.muxHandle(mux, http.MethodGet, "/payment/client_token", h.handleClientToken)
	h.muxHandle(mux, http.MethodPost, "/orders/createOrder", h.handleCreateOrder)
	h.muxHandle(mux, http.MethodPut, "/orders/updateOrder/{id}", h.handleUpdateOrder)
	h.muxHandle(mux, http.MethodGet, "/orders/lookup", h.handleLookup)
	h.muxHandle(mux, http.MethodGet, "/orders/{id}", h.handleGetOrder)
	h.muxHandle(mux, http.MethodPost, "/orderItems/addOrderItem", h.handleAddOrderItem)
	h.muxHandle(mux, http.MethodPut, "/products/updateProductStock", h.handleUpdateProductStock)
	h.muxHandle(mux, http.MethodDelete, "/cart/clearCart/{user_id}", h.handleClearCart)
	h.muxHandle(mux, http.MethodGet, "/health", h.handleHealth)

	for pattern, handler := range extra {
		mux.Handle(pattern, handler)
	}
	return mux
}

// muxHandle wraps a route: Trace → Request Logger + Metrics → Access Log → Handler.
func (h *Handler) muxHandle(mux *http.ServeMux, method, route string, handler http.HandlerFunc) {
	chain := withTrace(
		ObservabilityMiddleware(h.log, func(r *http.Request) string {
			return r.Header.Get(headerRequestID)
		}, h.tel)(
			withAccessLog(h.log, handler),
		),
	)
	mux.HandleFunc(method+" "+route, func(w http.ResponseWriter, r *http.Request) {
		chain.ServeHTTP(w, r.WithContext(contextWithRoute(r.Context(), route)))
	})
}

func (h *Handler) handleClientToken(w http.ResponseWriter, r *http.Request) {
	token, err := h.uc.ClientToken.Execute(r.Context(), struct{}{})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, clientTokenResponse{ClientToken: token})
}

func (h *Handler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.uc.PlaceOrder.Execute(r.Context(), req.toInput())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, placeOrderResponse{
		orderResponse: newOrderResponse(res.Order),
		IntentID:      res.IntentID,
		Replayed:      res.Replayed,
	})
}

func (h *Handler) handleUpdateOrder(w http.ResponseWriter, r *http.Request) {
	var req updateOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	o, err := h.uc.UpdateOrder.Execute(r.Context(), req.toInput(r.PathValue("id")))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newOrderResponse(o))
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.uc.GetOrder.Execute(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newOrderResponse(o))
}

func (h *Handler) handleLookup(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := h.uc.Lookup.Execute(r.Context(), apporder.LookupInput{
		Nonce:         strings.TrimSpace(q.Get("nonce")),
		TransactionID: strings.TrimSpace(q.Get("transaction_id")),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newLookupResponse(res))
}

func (h *Handler) handleAddOrderItem(w http.ResponseWriter, r *http.Request) {
	var req addOrderItemRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	item, err := h.uc.AddOrderItem.Execute(r.Context(), req.toInput())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newItemResponse(item))
}

func (h *Handler) handleUpdateProductStock(w http.ResponseWriter, r *http.Request) {
	var req updateProductStockRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	p, err := h.uc.DecrementStock.Execute(r.Context(), appinv.DecrementStockInput{
		ProductID: req.ProductID,
		Size:      req.Size,
		Quantity:  req.Quantity,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newProductResponse(p))
}

func (h *Handler) handleClearCart(w http.ResponseWriter, r *http.Request) {
	if _, err := h.uc.ClearCart.Execute(r.Context(), r.PathValue("user_id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "cart cleared"})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := errorResponseFor(err)
	if status >= http.StatusInternalServerError {
		logctx.FromOr(r.Context(), h.log).Error("http_request_failed",
			observability.F("route", routeFromContext(r.Context())),
			observability.F("code", string(body.Code)),
			observability.F("error", err.Error()),
		)
	}
	writeJSON(w, status, body)
}
