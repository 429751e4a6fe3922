package redis

// Package redis provides Redis-based adapters for sitegate.

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/target/sitegate/internal/ports"
)

// DefaultCodeTTL bounds how long a claimed callback code is remembered.
// Provider codes expire well before this.
const DefaultCodeTTL = 10 * time.Minute

var _ ports.CodeLedger = (*CodeLedger)(nil)

// CodeLedger records consumed OAuth/email callback codes so a replayed code is
// rejected before it reaches the provider.
type CodeLedger struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewCodeLedger creates a Redis-backed code ledger. A non-positive ttl uses DefaultCodeTTL.
func NewCodeLedger(client redis.UniversalClient, ttl time.Duration) *CodeLedger {
	return NewCodeLedgerWithPrefix(client, "authcode:", ttl)
}

// NewCodeLedgerWithPrefix creates a code ledger with a custom key prefix.
func NewCodeLedgerWithPrefix(client redis.UniversalClient, prefix string, ttl time.Duration) *CodeLedger {
	if ttl <= 0 {
		ttl = DefaultCodeTTL
	}
	return &CodeLedger{client: client, prefix: prefix, ttl: ttl}
}

// Claim marks code as used. It returns true for the first claim and false for
// every later one until the key expires. Codes are stored hashed.
func (l *CodeLedger) Claim(ctx context.Context, code string) (bool, error) {
	if code == "" {
		return false, errors.New("code cannot be empty")
	}
	// SET NX with TTL in one command; a separate EXPIRE could leave a key without a TTL.
	status, err := l.client.SetArgs(ctx, l.key(code), time.Now().UTC().Unix(), redis.SetArgs{Mode: "NX", TTL: l.ttl}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis SET NX: %w", err)
	}
	return status == "OK", nil
}

func (l *CodeLedger) key(code string) string {
	sum := sha256.Sum256([]byte(code))
	return l.prefix + hex.EncodeToString(sum[:])
}
