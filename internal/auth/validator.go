package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"recipe-server/internal/revocation"
)

var (
	ErrMissingToken  = errors.New("Missing token")
	ErrInvalidToken  = errors.New("Invalid or expired token")
	ErrTokenRevoked  = errors.New("Token has been revoked")
	ErrMissingClaims = errors.New("Invalid token claims")
)

// Validator checks access tokens for both the HTTP middleware and the WebSocket gateway.
type Validator struct {
	Config      TokenConfig
	Revocations revocation.Store
	Now         func() time.Time
}

func NewValidator(cfg TokenConfig, revocations revocation.Store) *Validator {
	return &Validator{Config: cfg, Revocations: revocations, Now: time.Now}
}

// Validate returns the claims of a usable token. Errors match one of the Err* sentinels
// and the message of each is safe to show to the client.
func (v *Validator) Validate(ctx context.Context, token string) (*Claims, error) {
	if token == "" {
		return nil, ErrMissingToken
	}

	if v.Revocations != nil {
		revoked, err := v.Revocations.IsRevoked(ctx, token)
		if err != nil {
			return nil, fmt.Errorf("check revocation: %w", err)
		}
		if revoked {
			return nil, ErrTokenRevoked
		}
	}

	claims, err := VerifyToken(token, v.Config)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Identity() == "" {
		return nil, ErrMissingClaims
	}
	return claims, nil
}

// Revoke blacklists token for the rest of its lifetime.
func (v *Validator) Revoke(ctx context.Context, token string, claims *Claims) error {
	if v.Revocations == nil {
		return nil
	}
	return v.Revocations.Revoke(ctx, token, claims.Remaining(v.now()))
}

func (v *Validator) now() time.Time {
	if v.Now == nil {
		return time.Now()
	}
	return v.Now()
}

// ClientMessage maps a Validate error to the text sent back to a socket client.
// Revoked tokens and store failures read as an invalid token.
func ClientMessage(err error) string {
	for _, known := range []error{ErrMissingToken, ErrMissingClaims} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return ErrInvalidToken.Error()
}
