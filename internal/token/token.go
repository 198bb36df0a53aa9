// Package token issues and parses the JWTs operators present to the
// payment endpoints.
package token

import (
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/iurnickita/pixrecon/internal/errs"
)

const issuer = "pixrecon"

type Claims struct {
	jwt.RegisteredClaims
	Operator string `json:"operator"`
}

var ErrInvalidToken = errs.Mark(errs.New("invalid operator token"), errs.ErrUnauthorized)

// BuildJWTString signs a token for operator valid for ttl.
func BuildJWTString(secret string, ttl time.Duration, operator string) (string, error) {
	if operator == "" {
		return "", errs.Wrap(errs.ErrValidation, "operator is required")
	}
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   operator,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Operator: operator,
	})

	tokenString, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", errs.Wrap(err, "sign token")
	}
	return tokenString, nil
}

// GetOperator validates tokenString and returns the operator it was issued to.
func GetOperator(secret, tokenString string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errs.Newf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return "", errs.Mark(errs.Wrap(err, "parse token"), ErrInvalidToken)
	}
	if !token.Valid || claims.Operator == "" {
		return "", ErrInvalidToken
	}
	return claims.Operator, nil
}
