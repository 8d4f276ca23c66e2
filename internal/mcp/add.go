package mcp

import (
	"context"
	"math"

	"github.com/shopspring/decimal"

	"github.com/drsullivan13/weather-server/internal/payment"
)

// AddPrice is charged for every call to the add tool.
var AddPrice = decimal.RequireFromString("0.01")

// PaymentRequirer charges the current request's payer.
type PaymentRequirer interface {
	RequirePayment(ctx context.Context, req payment.Requirement) error
}

// AddInput is the argument object of the add tool.
type AddInput struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
}

// AddOutput is the result object of the add tool.
type AddOutput struct {
	Result float64 `json:"result"`
}

// AddTool returns the paid "add" tool.
func AddTool(payments PaymentRequirer) ToolDefinition {
	return ToolDefinition{
		Name:        "add",
		Title:       "Addition Tool",
		Description: "Add two numbers together",
		InputSchema: Schema{
			"a": {Kind: KindNumber, Description: "The first number to add"},
			"b": {Kind: KindNumber, Description: "The second number to add"},
		},
		OutputSchema: Schema{
			"result": {Kind: KindNumber, Description: "The sum of the two numbers"},
		},
		Handler: Typed(func(ctx context.Context, in AddInput) (AddOutput, error) {
			// Unrepresentable sums are rejected before the payer is charged.
			sum := in.A + in.B
			if math.IsInf(sum, 0) {
				return AddOutput{}, &InvalidArgumentError{Issues: []string{"a + b overflows a double-precision number"}}
			}
			if err := payments.RequirePayment(ctx, payment.Requirement{Price: AddPrice, Currency: payment.DefaultCurrency}); err != nil {
				return AddOutput{}, err
			}
			return AddOutput{Result: sum}, nil
		}),
	}
}
