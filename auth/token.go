package auth

import (
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "proctor"

// CustomClaims defines the structure of the data stored inside the JWT.
type CustomClaims struct {
	OperatorID string   `json:"operator_id"`
	Username   string   `json:"username"`
	Roles      []string `json:"roles"`
	jwt.RegisteredClaims
}

func (c CustomClaims) HasRole(role string) bool {
	return slices.Contains(c.Roles, role)
}

// Tokens signs and verifies operator tokens with HS256.
type Tokens struct {
	secret   []byte
	duration time.Duration
}

func NewTokens(secret string, duration time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), duration: duration}
}

// Generate creates a signed JWT for an operator.
func (t *Tokens) Generate(operatorID, username string, roles []string) (string, error) {
	now := time.Now()
	claims := &CustomClaims{
		OperatorID: operatorID,
		Username:   username,
		Roles:      roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(t.duration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   operatorID,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Validate parses and checks signature, algorithm and expiration.
func (t *Tokens) Validate(tokenString string) (*CustomClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithIssuer(issuer))
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*CustomClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, jwt.ErrSignatureInvalid
}
