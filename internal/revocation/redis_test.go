package revocation

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store, err := NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	if err != nil {
		t.Fatalf("NewRedisStore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func TestRedisStore_RevokeSetsKeyWithTTL(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisStore(t)

	if err := store.Revoke(ctx, "tok", 90*time.Second); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if !mr.Exists("blacklist:tok") {
		t.Fatalf("expected blacklist:tok to exist")
	}
	if ttl := mr.TTL("blacklist:tok"); ttl != 90*time.Second {
		t.Fatalf("expected 90s ttl, got %v", ttl)
	}

	if revoked, err := store.IsRevoked(ctx, "tok"); err != nil || !revoked {
		t.Fatalf("expected revoked, got %v (%v)", revoked, err)
	}
	if revoked, err := store.IsRevoked(ctx, "other"); err != nil || revoked {
		t.Fatalf("expected other token not revoked, got %v (%v)", revoked, err)
	}
}

func TestRedisStore_EntryExpires(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisStore(t)

	if err := store.Revoke(ctx, "tok", 1500*time.Millisecond); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if ttl := mr.TTL("blacklist:tok"); ttl != 2*time.Second {
		t.Fatalf("expected ttl rounded up to 2s, got %v", ttl)
	}

	mr.FastForward(3 * time.Second)
	if revoked, err := store.IsRevoked(ctx, "tok"); err != nil || revoked {
		t.Fatalf("expected entry to expire, got %v (%v)", revoked, err)
	}
}

func TestRedisStore_ExpiredTokenIsNotStored(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisStore(t)

	if err := store.Revoke(ctx, "tok", -time.Second); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if mr.Exists("blacklist:tok") {
		t.Fatalf("expected no entry for an expired token")
	}
}

func TestRedisStore_ServerDown(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run: %v", err)
	}
	store, err := NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1}))
	if err != nil {
		t.Fatalf("NewRedisStore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	mr.Close()

	if _, err := store.IsRevoked(ctx, "tok"); err == nil {
		t.Fatalf("expected error with redis down")
	}
}

func TestNewRedisStore_NilClient(t *testing.T) {
	if _, err := NewRedisStore(nil); err == nil {
		t.Fatalf("expected error")
	}
}
