// Package requestctx carries the acting identity of a request through context.
package requestctx

import "context"

type (
	userIDContextKey    struct{}
	companyIDContextKey struct{}
)

// WithUserID stores a user identifier in context.
func WithUserID(ctx context.Context, userID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, userIDContextKey{}, userID)
}

// UserIDFromContext returns the user identifier stored in context.
func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(userIDContextKey{}).(string)
	return value
}

// WithCompanyID stores the company (tenant) the request acts within.
func WithCompanyID(ctx context.Context, companyID int64) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, companyIDContextKey{}, companyID)
}

// CompanyIDFromContext returns the company identifier stored in context, or
// zero when the request carries none.
func CompanyIDFromContext(ctx context.Context) int64 {
	if ctx == nil {
		return 0
	}
	value, _ := ctx.Value(companyIDContextKey{}).(int64)
	return value
}

// WithActor stores both the user and company identity.
func WithActor(ctx context.Context, userID string, companyID int64) context.Context {
	return WithCompanyID(WithUserID(ctx, userID), companyID)
}
