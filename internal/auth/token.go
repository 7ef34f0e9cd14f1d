package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"matchroom-service/internal/apperr"
)

// ErrInvalidToken is wrapped by every resolution failure.
var ErrInvalidToken = errors.New("invalid or expired token")

// Claims carries the user id in the subject and the token id in jti.
type Claims struct {
	jwt.RegisteredClaims
}

// Revocations reports whether a token id has been revoked.
type Revocations interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// Validator resolves access tokens to user ids.
type Validator struct {
	secret      []byte
	revocations Revocations
}

// NewValidator builds a Validator; revocations may be nil.
func NewValidator(secret string, revocations Revocations) *Validator {
	return &Validator{secret: []byte(secret), revocations: revocations}
}

// Resolve validates token and returns its user id. A "Bearer " prefix is accepted.
func (v *Validator) Resolve(ctx context.Context, token string) (int, error) {
	token = strings.TrimSpace(token)
	if len(token) > 7 && strings.EqualFold(token[:7], "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	if token == "" {
		return 0, unauthorized(errors.New("empty token"))
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return 0, unauthorized(err)
	}
	if !parsed.Valid {
		return 0, unauthorized(errors.New("token is invalid"))
	}

	userID, err := strconv.Atoi(claims.Subject)
	if err != nil || userID <= 0 {
		return 0, unauthorized(errors.New("subject is not a user id"))
	}

	if v.revocations != nil && claims.ID != "" {
		revoked, err := v.revocations.IsRevoked(ctx, claims.ID)
		if err != nil {
			log.Printf("auth: revocation lookup failed jti=%s: %v", claims.ID, err)
			return 0, unauthorized(err)
		}
		if revoked {
			return 0, unauthorized(errors.New("token revoked"))
		}
	}
	return userID, nil
}

func unauthorized(cause error) error {
	return &apperr.Error{
		Kind:    apperr.KindUnauthorized,
		Message: ErrInvalidToken.Error(),
		Err:     fmt.Errorf("%w: %v", ErrInvalidToken, cause),
	}
}

// GenerateToken issues an HS256 access token for userID.
func GenerateToken(secret string, userID int, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.Itoa(userID),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// TokenID extracts the jti of a token without verifying it.
func TokenID(token string) (string, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", err
	}
	return claims.ID, nil
}
