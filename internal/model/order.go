package model

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	StatusAccepted  OrderStatus = "accepted"
	StatusConfirmed OrderStatus = "confirmed"
	StatusCanceled  OrderStatus = "canceled"
	StatusPaid      OrderStatus = "paid"
)

// orderTransitions lists the statuses reachable from each known status.
// Unknown caller-supplied statuses behave like accepted.
var orderTransitions = map[OrderStatus][]OrderStatus{
	StatusAccepted:  {StatusConfirmed, StatusCanceled},
	StatusConfirmed: {},
	StatusCanceled:  {},
	StatusPaid:      {},
}

// IsTerminal reports whether no further transition is allowed.
func (s OrderStatus) IsTerminal() bool {
	next, ok := orderTransitions[s]
	return ok && len(next) == 0
}

// CanTransitionTo reports whether the order may move from s to next.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	allowed, ok := orderTransitions[s]
	if !ok {
		allowed = orderTransitions[StatusAccepted]
	}
	for _, candidate := range allowed {
		if candidate == next {
			return true
		}
	}
	return false
}

// Order represents a customer order.
type Order struct {
	ID              int64           `json:"id" db:"id"`
	UserID          int64           `json:"-" db:"user_id"`
	CreatedAt       time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time       `json:"-" db:"updated_at"`
	FullName        string          `json:"fullName" db:"full_name"`
	Email           string          `json:"email" db:"email"`
	Phone           string          `json:"phone" db:"phone"`
	DeliveryType    string          `json:"deliveryType" db:"delivery_type"`
	PaymentType     string          `json:"paymentType" db:"payment_type"`
	DeliveryCost    decimal.Decimal `json:"deliveryCost" db:"delivery_cost"`
	TotalCost       decimal.Decimal `json:"totalCost" db:"total_cost"`
	Status          OrderStatus     `json:"status" db:"status"`
	City            string          `json:"city" db:"city"`
	Address         string          `json:"address" db:"address"`
	PaymentID       string          `json:"-" db:"payment_id"`
	ConfirmationURL string          `json:"-" db:"confirmation_url"`
	Items           []OrderItem     `json:"products"`
}

// OrderItem is a line item of an order. Price is captured when the order is
// created; the product fields are read from the catalogue for display.
type OrderItem struct {
	ID           int64           `json:"-" db:"id"`
	OrderID      int64           `json:"-" db:"order_id"`
	ProductID    int64           `json:"id" db:"product_id"`
	Count        int             `json:"count" db:"count"`
	Price        decimal.Decimal `json:"price" db:"price"`
	Category     string          `json:"category"`
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	FreeDelivery bool            `json:"freeDelivery"`
	Rating       int             `json:"rating"`
}

// OrderItemRequest is a client-supplied line. Count defaults to 1.
type OrderItemRequest struct {
	ID    int64 `json:"id" validate:"required,gt=0"`
	Count *int  `json:"count,omitempty" validate:"omitempty,gt=0"`
}

// Quantity returns the requested count with its default applied.
func (r OrderItemRequest) Quantity() int {
	if r.Count == nil {
		return 1
	}
	return *r.Count
}

// CreateOrderRequest is the body of POST /api/orders. Every field is
// optional and defaults to the empty string. A body that is a bare JSON
// array is the legacy shape: the array becomes Items and the order is built
// from it instead of the server-side basket.
type CreateOrderRequest struct {
	DeliveryType string             `json:"deliveryType" validate:"max=50"`
	PaymentType  string             `json:"paymentType" validate:"max=50"`
	Status       string             `json:"status" validate:"max=20"`
	City         string             `json:"city" validate:"max=100"`
	Address      string             `json:"address" validate:"max=255"`
	Items        []OrderItemRequest `json:"-" validate:"dive"`
}

// UnmarshalJSON accepts either the object form or the legacy item array.
func (r *CreateOrderRequest) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []OrderItemRequest
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return err
		}
		if items == nil {
			items = []OrderItemRequest{}
		}
		*r = CreateOrderRequest{Items: items}
		return nil
	}

	type plain CreateOrderRequest
	var p plain
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return err
	}
	*r = CreateOrderRequest(p)
	return nil
}

// FromBasket reports whether the order is built from the stored basket.
func (r *CreateOrderRequest) FromBasket() bool {
	return r.Items == nil
}

// ConfirmOrderRequest carries the fields a client may override when
// confirming. Nil fields keep the stored value.
type ConfirmOrderRequest struct {
	DeliveryType *string `json:"deliveryType,omitempty" validate:"omitempty,max=50"`
	PaymentType  *string `json:"paymentType,omitempty" validate:"omitempty,max=50"`
	City         *string `json:"city,omitempty" validate:"omitempty,max=100"`
	Address      *string `json:"address,omitempty" validate:"omitempty,max=255"`
	FullName     *string `json:"fullName,omitempty" validate:"omitempty,max=255"`
	Phone        *string `json:"phone,omitempty" validate:"omitempty,max=20"`
}

// Apply copies the provided fields onto the order.
func (r *ConfirmOrderRequest) Apply(o *Order) {
	if r == nil {
		return
	}
	if r.DeliveryType != nil {
		o.DeliveryType = *r.DeliveryType
	}
	if r.PaymentType != nil {
		o.PaymentType = *r.PaymentType
	}
	if r.City != nil {
		o.City = *r.City
	}
	if r.Address != nil {
		o.Address = *r.Address
	}
	if r.FullName != nil {
		o.FullName = *r.FullName
	}
	if r.Phone != nil {
		o.Phone = *r.Phone
	}
}

// CreateOrderResponse is returned after an order is placed.
type CreateOrderResponse struct {
	OrderID int64 `json:"orderId"`
}

// Confirmation is returned after an order is confirmed and handed to the
// payment gateway.
type Confirmation struct {
	OrderID         int64  `json:"orderId"`
	ConfirmationURL string `json:"confirmation_url"`
}
