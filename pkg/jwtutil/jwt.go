package jwtutil

import (
	"time"

	"github.com/thomas-denton/lease-intelligence/pkg/config"

	"github.com/golang-jwt/jwt/v4"
)

var (
	secret     = []byte("secret-key")
	expiration = time.Hour * 24
)

// Initialize configures the signing key and token lifetime from config.
func Initialize(cfg *config.JWTConfig) {
	if cfg.SigningKey != "" {
		secret = []byte(cfg.SigningKey)
	}
	if cfg.ExpirationHours > 0 {
		expiration = time.Duration(cfg.ExpirationHours) * time.Hour
	}
}

// CallerClaims represents the JWT claims identifying a caller: either a
// regular account or the pipeline/service identity.
type CallerClaims struct {
	AccountID uint   `json:"account_id,omitempty"`
	Email     string `json:"email,omitempty"`
	Role      string `json:"role,omitempty"`
	Tier      string `json:"tier,omitempty"`
	// Service marks the extraction pipeline's machine identity, which is the
	// only caller allowed to mutate lease records after creation.
	Service bool `json:"service,omitempty"`
	jwt.RegisteredClaims
}

// GenerateToken creates a JWT token for an account caller
func GenerateToken(accountID uint, email, role, tier string) (string, error) {
	claims := CallerClaims{
		AccountID: accountID,
		Email:     email,
		Role:      role,
		Tier:      tier,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// GenerateServiceToken creates a JWT token for the pipeline/service identity
func GenerateServiceToken(name string) (string, error) {
	claims := CallerClaims{
		Email:   name,
		Service: true,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// ValidateToken validates and parses the JWT token
func ValidateToken(tokenString string) (*CallerClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CallerClaims{}, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*CallerClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, jwt.ErrSignatureInvalid
}
