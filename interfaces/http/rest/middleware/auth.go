package middleware

import (
	"net/http"
	"strings"

	"recipes-backend/pkg/auth"
	pkgerrors "recipes-backend/pkg/errors"

	"go.uber.org/zap"
)

// UserIDHeader carries the caller identity when an upstream gateway has
// already verified the token
const UserIDHeader = "X-User-ID"

// AuthConfig selects how callers are identified
type AuthConfig struct {
	// Validator checks bearer tokens. Nil disables token validation.
	Validator *auth.JWTValidator
	// TrustUserHeader accepts UserIDHeader as the caller identity. Only enable
	// it behind a gateway that strips client-supplied copies of the header.
	TrustUserHeader bool
}

// Authenticate puts the verified caller into the request context or rejects
// the request as Unauthenticated
func Authenticate(config AuthConfig, errs *pkgerrors.ErrorHandler, logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := identify(r, config)
			if err != nil {
				logger.Debug("Request not authenticated",
					zap.String("path", r.URL.Path),
					zap.Error(err),
				)
				errs.Handle(w, r, err)
				return
			}

			ctx := auth.SetUserInContext(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func identify(r *http.Request, config AuthConfig) (*auth.UserContext, error) {
	if header := r.Header.Get("Authorization"); header != "" && config.Validator != nil {
		claims, err := config.Validator.ValidateToken(header)
		if err != nil {
			message := "invalid token"
			if err == auth.ErrExpiredToken {
				message = "token has expired"
			}
			return nil, pkgerrors.NewUnauthenticatedError(message).WithCause(err)
		}
		return &auth.UserContext{UserID: claims.UserID(), Email: claims.Email}, nil
	}

	if config.TrustUserHeader {
		if userID := strings.TrimSpace(r.Header.Get(UserIDHeader)); userID != "" {
			return &auth.UserContext{UserID: userID}, nil
		}
	}

	return nil, pkgerrors.NewUnauthenticatedError("")
}
