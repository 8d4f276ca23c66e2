package payment

import "context"

type payerKey struct{}

// WithPayer stores the verified payer in ctx.
func WithPayer(ctx context.Context, p *Payer) context.Context {
	return context.WithValue(ctx, payerKey{}, p)
}

// PayerFromContext returns the verified payer, if any.
func PayerFromContext(ctx context.Context) (*Payer, bool) {
	p, ok := ctx.Value(payerKey{}).(*Payer)
	return p, ok && p != nil
}
