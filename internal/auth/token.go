// Package auth signs and verifies the HS256 JWTs that bind payment tokens to
// tenants and invoices to their amounts.
package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	ierr "github.com/worksphere/billing/internal/errors"
)

const (
	claimTenantID      = "tid"
	claimPayloadDigest = "pld"
)

// TokenSigner issues and checks payment token signatures
type TokenSigner struct {
	secret []byte
}

func NewTokenSigner(secret string) *TokenSigner {
	return &TokenSigner{secret: []byte(secret)}
}

func payloadDigest(payload string) string {
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// Sign binds payload to tenantID. A zero expiresAt yields a token without exp.
func (s *TokenSigner) Sign(tenantID, payload string, expiresAt time.Time) (string, error) {
	claims := jwt.MapClaims{
		claimTenantID:      tenantID,
		claimPayloadDigest: payloadDigest(payload),
		"iat":              time.Now().Unix(),
	}
	if !expiresAt.IsZero() {
		claims["exp"] = expiresAt.Unix()
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", ierr.WithError(err).
			WithHint("Failed to sign payment token").
			Mark(ierr.ErrSystem)
	}
	return signed, nil
}

// Verify checks the signature, that its tid claim is tenantID and that it
// covers payload.
func (s *TokenSigner) Verify(signature, tenantID, payload string) error {
	claims, err := s.parse(signature)
	if err != nil {
		return err
	}

	tid, _ := claims[claimTenantID].(string)
	if tid != tenantID {
		return ierr.NewError("token signature issued for another tenant").
			WithHint("Payment token signature does not match the tenant").
			WithReportableDetails(map[string]interface{}{"tenant_id": tenantID}).
			Mark(ierr.ErrPermissionDenied)
	}
	if digest, _ := claims[claimPayloadDigest].(string); digest != payloadDigest(payload) {
		return ierr.NewError("token signature does not cover the payload").
			WithHint("Payment token was altered after signing").
			Mark(ierr.ErrPermissionDenied)
	}
	return nil
}

func (s *TokenSigner) parse(signature string) (jwt.MapClaims, error) {
	parsed, err := jwt.Parse(signature, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ierr.NewError("unexpected signing method").
				WithHint(fmt.Sprintf("unexpected signing method: %v", token.Header["alg"])).
				Mark(ierr.ErrPermissionDenied)
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Invalid payment token signature").
			Mark(ierr.ErrPermissionDenied)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return nil, ierr.NewError("invalid token claims").
			WithHint("Invalid payment token signature").
			Mark(ierr.ErrPermissionDenied)
	}
	return claims, nil
}
