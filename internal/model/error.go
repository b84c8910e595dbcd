package model

// ErrorResponse represents a standardised error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// Standard error codes for API responses
const (
	ErrCodeInvalidJSON             = "INVALID_JSON"
	ErrCodeValidation              = "VALIDATION_FAILED"
	ErrCodeEmptyCart               = "EMPTY_CART"
	ErrCodeContactRequired         = "CONTACT_REQUIRED"
	ErrCodeInvalidAddress          = "INVALID_ADDRESS"
	ErrCodeProductNotFound         = "PRODUCT_NOT_FOUND"
	ErrCodeInvalidQuantity         = "INVALID_QUANTITY"
	ErrCodeInvalidShippingMethod   = "INVALID_SHIPPING_METHOD"
	ErrCodeCheckoutFailed          = "CHECKOUT_FAILED"
	ErrCodeProcessorTimeout        = "PROCESSOR_TIMEOUT"
	ErrCodeOrderNotFound           = "ORDER_NOT_FOUND"
	ErrCodeOrderExists             = "ORDER_EXISTS"
	ErrCodePaymentIncomplete       = "PAYMENT_INCOMPLETE"
	ErrCodeOrderPersistence        = "ORDER_PERSISTENCE_FAILED"
	ErrCodeInvalidStatus           = "INVALID_STATUS"
	ErrCodeInvalidStatusTransition = "INVALID_STATUS_TRANSITION"
	ErrCodeInvalidWebhookSignature = "INVALID_WEBHOOK_SIGNATURE"
	ErrCodeRateLimited             = "RATE_LIMITED"
	ErrCodeUnauthorised            = "UNAUTHORIZED"
	ErrCodeInternalError           = "INTERNAL_ERROR"
)

// Domain errors for business logic
type DomainError struct {
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
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
	ErrEmptyCart             = NewDomainError(ErrCodeEmptyCart, "Cart is empty")
	ErrContactRequired       = NewDomainError(ErrCodeContactRequired, "An email address is required to check out")
	ErrInvalidAddress        = NewDomainError(ErrCodeInvalidAddress, "Address is incomplete")
	ErrProductNotFound       = NewDomainError(ErrCodeProductNotFound, "One or more products not found")
	ErrInvalidQuantity       = NewDomainError(ErrCodeInvalidQuantity, "Quantity must be greater than zero")
	ErrInvalidShippingMethod = NewDomainError(ErrCodeInvalidShippingMethod, "Unknown shipping method")
	ErrCheckoutFailed        = NewDomainError(ErrCodeCheckoutFailed, "We couldn't start checkout. Please try again")
	ErrProcessorTimeout      = NewDomainError(ErrCodeProcessorTimeout, "The payment provider took too long to respond. Please try again")
	ErrOrderNotFound         = NewDomainError(ErrCodeOrderNotFound, "Order not found")
	ErrOrderAlreadyExists    = NewDomainError(ErrCodeOrderExists, "Order already exists for this checkout session")
	ErrPaymentIncomplete     = NewDomainError(ErrCodePaymentIncomplete, "Payment has not been completed")
	ErrOrderPersistence      = NewDomainError(ErrCodeOrderPersistence, "Your payment was received but we could not record the order. Our team has been notified")
	ErrInvalidStatus         = NewDomainError(ErrCodeInvalidStatus, "Unknown order status")
	ErrInvalidTransition     = NewDomainError(ErrCodeInvalidStatusTransition, "Order status cannot be changed that way")
)

// ValidationError carries per-field failures alongside the domain error they refine.
type ValidationError struct {
	Err    *DomainError
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return e.Err.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ErrValidation is the generic request validation failure.
var ErrValidation = NewDomainError(ErrCodeValidation, "Request failed validation")
