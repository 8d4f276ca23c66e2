package payment

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// PaymentRequiredCode is the JSON-RPC error code ATXP clients recognise as
// a payment request.
const PaymentRequiredCode = -30402

var (
	// ErrNoPayer is returned when a charge is attempted outside a request
	// that passed the gate.
	ErrNoPayer = errors.New("no verified payer in request context")

	// ErrInvalidPrice is returned for zero or negative prices.
	ErrInvalidPrice = errors.New("price must be positive")

	// ErrPaymentDeclined is returned by the accounts service when the payer
	// cannot cover the charge.
	ErrPaymentDeclined = errors.New("payment declined")

	// ErrInvalidCredential is returned by verifiers for unusable credentials.
	ErrInvalidCredential = errors.New("invalid payment credential")
)

// PaymentRequiredError reports that a tool invocation was not paid for.
// When the accounts service issued a payment request, RequestURL is where
// the caller can settle it.
type PaymentRequiredError struct {
	Amount     decimal.Decimal
	Currency   string
	RequestID  string
	RequestURL string
	Err        error
}

func (e *PaymentRequiredError) Error() string {
	if e.RequestURL != "" {
		return "Payment via ATXP is required. Please pay at: " + e.RequestURL
	}
	if e.Err != nil {
		return fmt.Sprintf("payment of %s %s required: %v", e.Amount.String(), e.Currency, e.Err)
	}
	return fmt.Sprintf("payment of %s %s required", e.Amount.String(), e.Currency)
}

func (e *PaymentRequiredError) Unwrap() error { return e.Err }

// RPCCode is the JSON-RPC error code for this failure.
func (e *PaymentRequiredError) RPCCode() int { return PaymentRequiredCode }

// RPCData is attached to the JSON-RPC error object.
func (e *PaymentRequiredError) RPCData() any {
	if e.RequestID == "" {
		return nil
	}
	return map[string]string{
		"paymentRequestId":  e.RequestID,
		"paymentRequestUrl": e.RequestURL,
	}
}
