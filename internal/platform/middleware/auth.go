package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	id "turf/pkg/domain"
	"turf/pkg/requestcontext"
)

// RequireParty authenticates the command API. It expects an HS256 bearer
// token whose subject is the requesting party's id, and injects that id into
// the request context for services to read.
//
// Session issuance lives in the out-of-scope auth system; this middleware
// only verifies what that system signed.
func RequireParty(signingKey string, logger *slog.Logger) func(http.Handler) http.Handler {
	keyFunc := func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(signingKey), nil
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}

			claims := jwt.RegisteredClaims{}
			token, err := jwt.ParseWithClaims(raw, &claims, keyFunc,
				jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
			if err != nil || !token.Valid {
				logger.Warn("rejected bearer token", "error", err)
				http.Error(w, "invalid bearer token", http.StatusUnauthorized)
				return
			}

			partyID, err := id.ParsePartyID(claims.Subject)
			if err != nil {
				logger.Warn("bearer token subject is not a party id", "subject", claims.Subject)
				http.Error(w, "invalid bearer token", http.StatusUnauthorized)
				return
			}

			ctx := requestcontext.WithPartyID(r.Context(), partyID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return h[7:]
	}
	return ""
}
