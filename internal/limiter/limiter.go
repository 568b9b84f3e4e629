// Package limiter locks out peers that keep presenting invalid bearer tokens.
package limiter

import (
	"context"
	"time"
)

// Limiter controls authentication attempts and temporary lockouts per peer.
type Limiter interface {
	// Allow reports whether the peer may authenticate and an optional retry-after.
	Allow(ctx context.Context, peerHash []byte) (bool, time.Duration, error)
	// Failure records a rejected token; may place a temporary block.
	Failure(ctx context.Context, peerHash []byte) (bool, time.Duration, error)
}
