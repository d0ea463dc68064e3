// Package revocation marks access tokens as revoked before their natural expiry.
//
// Entries live under the key "blacklist:<token>" and expire together with the token they revoke,
// so the stores never need a sweep of their own.
package revocation

import (
	"context"
	"math"
	"time"
)

const keyPrefix = "blacklist:"

type Store interface {
	// Revoke blacklists token for ttl. A non-positive ttl is a no-op: the token is already expired.
	Revoke(ctx context.Context, token string, ttl time.Duration) error
	IsRevoked(ctx context.Context, token string) (bool, error)
	Close() error
}

func Key(token string) string {
	return keyPrefix + token
}

// ttlSeconds rounds up so a token with 300ms left is still blacklisted for a full second.
func ttlSeconds(ttl time.Duration) int64 {
	return int64(math.Ceil(ttl.Seconds()))
}
