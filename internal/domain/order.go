package domain

import (
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	OrderPending OrderStatus = "PENDING"
	OrderPaid    OrderStatus = "PAID"
	OrderFailed  OrderStatus = "FAILED"
	// OrderReview holds an order whose charge does not match its total.
	OrderReview OrderStatus = "REVIEW"
)

type OrderItem struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name,omitempty"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

// OrderRequest is the body of POST /order/create. Shipping fields are
// flattened the way the order API expects them.
type OrderRequest struct {
	CheckoutID       string         `json:"checkout_id"`
	PaymentReference string         `json:"payment_reference"`
	PaymentMethod    string         `json:"payment_method"`
	PaymentStatus    PaymentStatus  `json:"payment_status"`
	Total            float64        `json:"total"`
	Subtotal         float64        `json:"subtotal"`
	DeliveryFee      float64        `json:"delivery_fee"`
	CouponCode       string         `json:"coupon_code,omitempty"`
	Discount         float64        `json:"discount,omitempty"`
	FullName         string         `json:"full_name"`
	Email            string         `json:"email"`
	Phone            string         `json:"phone"`
	Address          string         `json:"address"`
	City             string         `json:"city"`
	State            string         `json:"state"`
	PostalCode       string         `json:"postal_code,omitempty"`
	Country          string         `json:"country"`
	DeliveryType     DeliveryType   `json:"delivery_type"`
	Items            []OrderItem    `json:"items"`
	Gateway          map[string]any `json:"gateway,omitempty"`
}

type OrderResponse struct {
	ID        string      `json:"id"`
	OrderCode string      `json:"order_code"`
	Status    OrderStatus `json:"status"`
}

// Order is the backend's stored order.
type Order struct {
	ID               uuid.UUID
	OrderCode        string
	CheckoutID       string
	PaymentReference string
	Status           OrderStatus
	Total            float64
	Request          OrderRequest
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (o *Order) Response() OrderResponse {
	return OrderResponse{ID: o.ID.String(), OrderCode: o.OrderCode, Status: o.Status}
}
