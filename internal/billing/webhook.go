package billing

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/golang-jwt/jwt/v5"

	dErrors "turf/pkg/domain-errors"
)

// Webhook signature scheme: the provider sends an HS256 JWT in the
// Billing-Signature header whose "sum" claim is the hex SHA-256 of the raw
// request body. Verifying the token proves both origin and payload
// integrity before any event parsing happens.

const SignatureHeader = "Billing-Signature"

type signatureClaims struct {
	Sum string `json:"sum"`
	jwt.RegisteredClaims
}

// VerifySignature checks the signature header against the raw body.
func VerifySignature(header string, body []byte, secret string) error {
	if header == "" {
		return dErrors.New(dErrors.CodeBadRequest, "missing webhook signature")
	}
	claims := signatureClaims{}
	token, err := jwt.ParseWithClaims(header, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return dErrors.New(dErrors.CodeBadRequest, "invalid webhook signature")
	}
	if claims.Sum != bodySum(body) {
		return dErrors.New(dErrors.CodeBadRequest, "webhook signature does not match payload")
	}
	return nil
}

// SignPayload produces a signature header for a body. Used by tests and by
// the dev-mode event injector.
func SignPayload(body []byte, secret string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, signatureClaims{Sum: bodySum(body)})
	return token.SignedString([]byte(secret))
}

func bodySum(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}
