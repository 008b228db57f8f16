package gateway

import "context"

type ctxKey int

const clientKey ctxKey = iota

// Client identifies the caller of a request. KeyID is a digest of the bearer
// token, never the token itself.
type Client struct {
	KeyID     string
	RequestID string
	IP        string
	UserAgent string
}

func WithClient(ctx context.Context, c Client) context.Context {
	return context.WithValue(ctx, clientKey, c)
}

// ClientFrom returns the caller attached by the auth middleware, or an
// anonymous one.
func ClientFrom(ctx context.Context) Client {
	if c, ok := ctx.Value(clientKey).(Client); ok {
		return c
	}
	return Client{KeyID: "anonymous"}
}
