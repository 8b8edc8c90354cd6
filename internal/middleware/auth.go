package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/kevin07696/slot-billing/internal/auth"
	"github.com/kevin07696/slot-billing/internal/domain"
	"go.uber.org/zap"
)

// ActorVerifier resolves an Authorization header into a billing actor
type ActorVerifier interface {
	VerifyBearer(header string) (domain.Actor, *domain.TokenClaims, error)
}

// Authenticator rejects requests without a valid session token
type Authenticator struct {
	verifier ActorVerifier
	logger   *zap.Logger
}

// NewAuthenticator creates a new session token middleware
func NewAuthenticator(verifier ActorVerifier, logger *zap.Logger) *Authenticator {
	return &Authenticator{verifier: verifier, logger: logger}
}

// Middleware authenticates the request and stores the actor in its context
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, claims, err := a.verifier.VerifyBearer(r.Header.Get("Authorization"))
		if err != nil {
			a.logger.Warn("Session token rejected",
				zap.String("path", r.URL.Path),
				zap.String("request_id", auth.GetRequestID(r.Context())),
				zap.Error(err))
			writeAuthError(w, err)
			return
		}

		ctx := auth.WithActor(r.Context(), actor)
		ctx = auth.WithTokenJTI(ctx, claims.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func writeAuthError(w http.ResponseWriter, err error) {
	code := domain.GetErrorCode(err)
	if code == "" {
		code = domain.ErrorCodeAuthInvalid
	}
	message := "invalid authentication"
	if code == domain.ErrorCodeAuthMissing {
		message = "authentication required"
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="billing"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]string{"code": string(code), "message": message},
	})
}
