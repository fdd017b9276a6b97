package hostfuncs

import "context"

type requesterKey struct{}

// WithRequester records which program or guest is calling a member.
func WithRequester(ctx context.Context, requester string) context.Context {
	return context.WithValue(ctx, requesterKey{}, requester)
}

// RequesterFrom returns the requester recorded by WithRequester.
func RequesterFrom(ctx context.Context) string {
	r, _ := ctx.Value(requesterKey{}).(string)
	return r
}
