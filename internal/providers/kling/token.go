package kling

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"closet/internal/domain"
)

const (
	tokenLifetime = 30 * time.Minute
	clockSkew     = 5 * time.Second
)

// SignedToken is a single-use bearer credential for the try-on API.
type SignedToken struct {
	Issuer    string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Value     string
}

// Issuer signs HS256 tokens from the configured access and secret keys.
type Issuer struct {
	accessKey string
	secretKey []byte
	now       func() time.Time
}

// NewIssuer builds an issuer. Empty keys are reported by Issue, not here, so a
// misconfigured provider still participates in the chain and falls back.
func NewIssuer(accessKey, secretKey string) *Issuer {
	return &Issuer{
		accessKey: strings.TrimSpace(accessKey),
		secretKey: []byte(strings.TrimSpace(secretKey)),
		now:       time.Now,
	}
}

// Configured reports whether both keys are present.
func (i *Issuer) Configured() bool {
	return i.accessKey != "" && len(i.secretKey) > 0
}

// Issue signs a fresh token. Every call yields a distinct token; callers must
// not cache it across requests.
func (i *Issuer) Issue() (SignedToken, error) {
	if !i.Configured() {
		return SignedToken{}, domain.NewProviderError(ProviderName, domain.ErrConfigurationMissing, "KLING_ACCESS_KEY and KLING_SECRET_KEY are required")
	}
	now := i.now()
	issuedAt := now.Add(-clockSkew)
	expiresAt := now.Add(tokenLifetime)
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    i.accessKey,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		NotBefore: jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secretKey)
	if err != nil {
		return SignedToken{}, &domain.ProviderError{Provider: ProviderName, Class: domain.ErrConfigurationMissing, Message: "sign token", Err: err}
	}
	return SignedToken{
		Issuer:    i.accessKey,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
		Value:     signed,
	}, nil
}

// authorize adapts Issue to the queue client's Authorization hook.
func (i *Issuer) authorize() (string, error) {
	tok, err := i.Issue()
	if err != nil {
		return "", err
	}
	return "Bearer " + tok.Value, nil
}
