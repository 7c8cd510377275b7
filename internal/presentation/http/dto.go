package httppresentation

import (
	"time"

	apporder "github.com/Zhima-Mochi/storefront-orders/internal/application/order"
	dominv "github.com/Zhima-Mochi/storefront-orders/internal/domain/inventory"
	domorder "github.com/Zhima-Mochi/storefront-orders/internal/domain/order"
	"github.com/Zhima-Mochi/storefront-orders/internal/domain/saga"
	"github.com/shopspring/decimal"
)

type lineRequest struct {
	ProductID string `json:"product_id"`
	Size      string `json:"size"`
	Quantity  int    `json:"quantity"`
}

type createOrderRequest struct {
	UserID          string            `json:"user_id"`
	TotalAmount     decimal.Decimal   `json:"total_amount"`
	Nonce           string            `json:"payment_method_nonce"`
	DeliveryAddress string            `json:"delivery_address"`
	PaymentMode     string            `json:"paymentmode"`
	PaymentDetails  map[string]string `json:"paymentDetails"`
	Items           []lineRequest     `json:"items"`
}

func (req createOrderRequest) toInput() apporder.PlaceOrderInput {
	in := apporder.PlaceOrderInput{
		UserID:          req.UserID,
		TotalAmount:     req.TotalAmount,
		Nonce:           req.Nonce,
		DeliveryAddress: req.DeliveryAddress,
		PaymentMode:     req.PaymentMode,
		PaymentDetails:  req.PaymentDetails,
	}
	for _, l := range req.Items {
		in.Lines = append(in.Lines, apporder.LineInput{ProductID: l.ProductID, Size: l.Size, Quantity: l.Quantity})
	}
	return in
}

type updateOrderRequest struct {
	Status              string     `json:"order_status"`
	EstimatedDeliveryAt *time.Time `json:"estimatedDeliveryDate"`
	DeliveryAddress     *string    `json:"delivery_address"`
	TrackingNumber      *string    `json:"tracking_number"`
}

func (req updateOrderRequest) toInput(orderID string) apporder.UpdateOrderInput {
	return apporder.UpdateOrderInput{
		OrderID:             orderID,
		Status:              req.Status,
		EstimatedDeliveryAt: req.EstimatedDeliveryAt,
		DeliveryAddress:     req.DeliveryAddress,
		TrackingNumber:      req.TrackingNumber,
	}
}

type addOrderItemRequest struct {
	OrderID   string          `json:"order_id"`
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Size      string          `json:"size"`
}

func (req addOrderItemRequest) toInput() apporder.AddOrderItemInput {
	return apporder.AddOrderItemInput{
		OrderID:   req.OrderID,
		ProductID: req.ProductID,
		Size:      req.Size,
		Quantity:  req.Quantity,
		UnitPrice: req.Price,
	}
}

type updateProductStockRequest struct {
	ProductID string `json:"productId"`
	Size      string `json:"size"`
	Quantity  int    `json:"quantity"`
}

type clientTokenResponse struct {
	ClientToken string `json:"clientToken"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type itemResponse struct {
	ID        string `json:"id"`
	OrderID   string `json:"order_id"`
	ProductID string `json:"product_id"`
	Size      string `json:"size"`
	Quantity  int    `json:"quantity"`
	Price     string `json:"price"`
}

func newItemResponse(it domorder.Item) itemResponse {
	return itemResponse{
		ID:        it.ID,
		OrderID:   it.OrderID,
		ProductID: it.ProductID,
		Size:      it.Size,
		Quantity:  it.Quantity,
		Price:     it.UnitPrice.StringFixed(2),
	}
}

type orderResponse struct {
	ID                  string            `json:"id"`
	UserID              string            `json:"user_id"`
	TotalAmount         string            `json:"total_amount"`
	PaymentMode         string            `json:"paymentmode"`
	PaymentDetails      map[string]string `json:"paymentDetails,omitempty"`
	Status              string            `json:"order_status"`
	PlacedAt            time.Time         `json:"placed_at"`
	EstimatedDeliveryAt time.Time         `json:"estimatedDeliveryDate"`
	DeliveryAddress     string            `json:"delivery_address"`
	TrackingNumber      string            `json:"tracking_number"`
	TransactionID       string            `json:"transaction_id,omitempty"`
	FulfillmentRisk     bool              `json:"fulfillment_risk"`
	UpdatedAt           time.Time         `json:"updated_at"`
	Items               []itemResponse    `json:"items"`
}

func newOrderResponse(o *domorder.Order) orderResponse {
	items := make([]itemResponse, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, newItemResponse(it))
	}
	return orderResponse{
		ID:                  o.ID,
		UserID:              o.UserID,
		TotalAmount:         o.TotalAmount.StringFixed(2),
		PaymentMode:         o.PaymentMode,
		PaymentDetails:      o.PaymentDetails,
		Status:              string(o.Status),
		PlacedAt:            o.PlacedAt,
		EstimatedDeliveryAt: o.EstimatedDeliveryAt,
		DeliveryAddress:     o.DeliveryAddress,
		TrackingNumber:      o.TrackingNumber,
		TransactionID:       o.GatewayTransactionID,
		FulfillmentRisk:     o.FulfillmentRisk,
		UpdatedAt:           o.UpdatedAt,
		Items:               items,
	}
}

type placeOrderResponse struct {
	orderResponse
	IntentID string `json:"intent_id"`
	Replayed bool   `json:"replayed"`
}

type intentResponse struct {
	ID            string    `json:"id"`
	OrderID       string    `json:"order_id"`
	State         string    `json:"state"`
	TransactionID string    `json:"transaction_id,omitempty"`
	LastError     string    `json:"last_error,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type lookupResponse struct {
	Order  *orderResponse  `json:"order,omitempty"`
	Intent *intentResponse `json:"intent,omitempty"`
}

func newLookupResponse(res *apporder.LookupResult) lookupResponse {
	var out lookupResponse
	if res.Order != nil {
		o := newOrderResponse(res.Order)
		out.Order = &o
	}
	if res.Intent != nil {
		out.Intent = newIntentResponse(res.Intent)
	}
	return out
}

func newIntentResponse(in *saga.Intent) *intentResponse {
	return &intentResponse{
		ID:            in.ID,
		OrderID:       in.OrderID,
		State:         string(in.State),
		TransactionID: in.TransactionID,
		LastError:     in.LastError,
		UpdatedAt:     in.UpdatedAt,
	}
}

type productResponse struct {
	ID    string              `json:"id"`
	Name  string              `json:"name"`
	Price string              `json:"price"`
	Stock []dominv.StockEntry `json:"stock"`
}

func newProductResponse(p *dominv.Product) productResponse {
	return productResponse{
		ID:    p.ID,
		Name:  p.Name,
		Price: p.UnitPrice.StringFixed(2),
		Stock: p.Stock,
	}
}
