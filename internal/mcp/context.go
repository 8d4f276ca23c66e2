package mcp

import "context"

// transportKey is the context key for the Transport serving a request.
type transportKey struct{}

func withTransport(ctx context.Context, t *Transport) context.Context {
	return context.WithValue(ctx, transportKey{}, t)
}

// TransportFromContext returns the Transport handling the current request.
func TransportFromContext(ctx context.Context) (*Transport, bool) {
	t, ok := ctx.Value(transportKey{}).(*Transport)
	return t, ok && t != nil
}
