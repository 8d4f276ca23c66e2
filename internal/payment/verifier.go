package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Payer identifies the caller a verified credential belongs to.
type Payer struct {
	Subject  string
	ClientID string
	// Expires is when the credential stops being valid. Zero if unknown.
	Expires time.Time
}

// Verifier checks a bearer credential and returns the payer it represents.
// Implementations return an error wrapping ErrInvalidCredential for
// credentials that are well-formed but unacceptable.
type Verifier interface {
	Verify(ctx context.Context, credential string) (*Payer, error)
}

// VerifierFunc adapts a function to the Verifier interface.
type VerifierFunc func(ctx context.Context, credential string) (*Payer, error)

func (f VerifierFunc) Verify(ctx context.Context, credential string) (*Payer, error) {
	return f(ctx, credential)
}

// paymentClaims are the claims carried by an ATXP access token.
type paymentClaims struct {
	ClientID string `json:"client_id,omitempty"`
	jwt.RegisteredClaims
}

// JWTVerifier validates HS256 access tokens signed with a shared secret.
type JWTVerifier struct {
	secret []byte
}

// NewJWTVerifier creates a verifier for tokens signed with secret.
func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

func (v *JWTVerifier) Verify(_ context.Context, credential string) (*Payer, error) {
	claims := &paymentClaims{}
	_, err := jwt.ParseWithClaims(credential, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing sub claim", ErrInvalidCredential)
	}
	return &Payer{Subject: claims.Subject, ClientID: claims.ClientID, Expires: claims.ExpiresAt.Time}, nil
}

// Introspector resolves an opaque token through the accounts service.
type Introspector interface {
	Introspect(ctx context.Context, token string) (*Introspection, error)
}

// IntrospectionVerifier accepts tokens the accounts service reports as active.
type IntrospectionVerifier struct {
	introspector Introspector
	now          func() time.Time
}

// NewIntrospectionVerifier creates a verifier backed by introspector.
func NewIntrospectionVerifier(introspector Introspector) *IntrospectionVerifier {
	return &IntrospectionVerifier{introspector: introspector, now: time.Now}
}

func (v *IntrospectionVerifier) Verify(ctx context.Context, credential string) (*Payer, error) {
	info, err := v.introspector.Introspect(ctx, credential)
	if err != nil {
		return nil, fmt.Errorf("token introspection failed: %w", err)
	}
	if !info.Active {
		return nil, fmt.Errorf("%w: token is not active", ErrInvalidCredential)
	}
	if info.Expiry > 0 && info.Expiry < v.now().Unix() {
		return nil, fmt.Errorf("%w: token expired", ErrInvalidCredential)
	}
	if info.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidCredential)
	}
	payer := &Payer{Subject: info.Subject, ClientID: info.ClientID}
	if info.Expiry > 0 {
		payer.Expires = time.Unix(info.Expiry, 0)
	}
	return payer, nil
}

// isCredentialRejection reports whether err means the caller's credential
// was refused, as opposed to the verifier being unavailable.
func isCredentialRejection(err error) bool {
	return errors.Is(err, ErrInvalidCredential)
}
