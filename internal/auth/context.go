package auth

import (
	"context"

	"github.com/kevin07696/slot-billing/internal/domain"
)

// Context keys for authentication data
type contextKey string

const (
	ActorKey     contextKey = "actor"
	TokenJTIKey  contextKey = "token_jti"
	RequestIDKey contextKey = "request_id"
	ClientIPKey  contextKey = "client_ip"
)

// WithActor adds the authenticated actor to the context
func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, ActorKey, actor)
}

// ActorFromContext returns the authenticated actor, or ErrAuthMissing
func ActorFromContext(ctx context.Context) (domain.Actor, error) {
	actor, ok := ctx.Value(ActorKey).(domain.Actor)
	if !ok || actor.Role == "" {
		return domain.Actor{}, domain.ErrAuthMissing
	}
	return actor, nil
}

// IsAuthenticated checks if the context carries an actor
func IsAuthenticated(ctx context.Context) bool {
	_, err := ActorFromContext(ctx)
	return err == nil
}

// WithTokenJTI records the id of the token that authenticated the request
func WithTokenJTI(ctx context.Context, jti string) context.Context {
	if jti == "" {
		return ctx
	}
	return context.WithValue(ctx, TokenJTIKey, jti)
}

// GetTokenJTI safely extracts the token id from the context
func GetTokenJTI(ctx context.Context) string {
	jti, _ := ctx.Value(TokenJTIKey).(string)
	return jti
}

// WithRequestID adds the request id to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID safely extracts the request ID from the context
func GetRequestID(ctx context.Context) string {
	requestID, _ := ctx.Value(RequestIDKey).(string)
	return requestID
}

// WithClientIP adds the caller address to the context
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ClientIPKey, ip)
}

// GetClientIP safely extracts the client IP from the context
func GetClientIP(ctx context.Context) string {
	clientIP, _ := ctx.Value(ClientIPKey).(string)
	return clientIP
}
