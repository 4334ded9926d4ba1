// Package middleware 提供 gin 中间件: 请求 ID, 访问日志, panic 恢复与请求体限制.
package middleware

import "context"

// HeaderXRequestID is the header name for request ID.
const HeaderXRequestID = "X-Request-ID"

// ContextKeyRequestID is the gin.Context key holding the request ID.
const ContextKeyRequestID = "request_id"

type requestIDKey struct{}

// GetRequestID returns the request ID from the context, or "".
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// WithRequestID stores the request ID in the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}
