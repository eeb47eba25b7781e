package model

import "fmt"

// Domain error codes
const (
	ErrCodeProductNotFound    = "PRODUCT_NOT_FOUND"
	ErrCodeOrderNotFound      = "ORDER_NOT_FOUND"
	ErrCodeBasketItemNotFound = "BASKET_ITEM_NOT_FOUND"
	ErrCodeBasketNotFound     = "BASKET_NOT_FOUND"
	ErrCodeInsufficientStock  = "INSUFFICIENT_STOCK"
	ErrCodePaymentUnavailable = "PAYMENT_UNAVAILABLE"
	ErrCodeOrderConflict      = "ORDER_CONFLICT"
	ErrCodeValidation         = "VALIDATION_FAILED"
)

// DomainError is a business rule failure that is safe to show to the client.
type DomainError struct {
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

// Is reports whether target carries the same code, so a specific message
// still matches its sentinel.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrProductNotFound    = NewDomainError(ErrCodeProductNotFound, "Product not found")
	ErrOrderNotFound      = NewDomainError(ErrCodeOrderNotFound, "Order not found")
	ErrBasketItemNotFound = NewDomainError(ErrCodeBasketItemNotFound, "Product is not in the basket")
	ErrNoBasket           = NewDomainError(ErrCodeBasketNotFound, "No basket for anonymous user")
	ErrInsufficientStock  = NewDomainError(ErrCodeInsufficientStock, "Not enough products in stock")
	ErrPaymentUnavailable = NewDomainError(ErrCodePaymentUnavailable, "Payment service unavailable")
	ErrOrderConflict      = NewDomainError(ErrCodeOrderConflict, "Order is already finalised")
	ErrInvalidQuantity    = NewDomainError(ErrCodeValidation, "Count must be greater than zero")
)

// NewInsufficientStockError names the product that cannot be supplied.
func NewInsufficientStockError(title string) *DomainError {
	return NewDomainError(ErrCodeInsufficientStock, fmt.Sprintf("Not enough stock for product %q", title))
}

// NewValidationError wraps a request validation message.
func NewValidationError(message string) *DomainError {
	return NewDomainError(ErrCodeValidation, message)
}
