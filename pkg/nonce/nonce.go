// pkg/nonce/nonce.go
package nonce

import (
	"context"
	"time"
)

// Store registers single-use nonces with a TTL. Consume is get-and-delete:
// exactly one of any number of concurrent consumers of the same nonce wins.
type Store interface {
	Put(ctx context.Context, nonce string, ttl time.Duration) error
	Consume(ctx context.Context, nonce string) (bool, error)
}
