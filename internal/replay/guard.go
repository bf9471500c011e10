package replay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fanpulse/fanpulse/internal/clock"
	"github.com/fanpulse/fanpulse/internal/token"
)

var (
	ErrStaleTimestamp = errors.New("stale_timestamp")
	ErrNonceReplayed  = errors.New("nonce_replayed")
)

// Guard rejects token reuse. A token with a timestamp must fall within
// the validity window around the current time; a token with a nonce
// may be presented once per cache lifetime. Tokens carrying neither
// field pass, their idempotency is enforced downstream by the
// collection ledger.
type Guard struct {
	store  Store
	window time.Duration
	clock  clock.Clock
}

func NewGuard(store Store, window time.Duration, clk clock.Clock) *Guard {
	return &Guard{store: store, window: window, clock: clk}
}

// Check validates the freshness of tok. The timestamp is checked
// before the nonce so that expired tokens never consume a cache slot.
func (g *Guard) Check(ctx context.Context, tok *token.Token) error {
	if tok.Timestamp != 0 {
		issued := time.UnixMilli(tok.Timestamp)
		drift := g.clock.Now().Sub(issued)
		if drift < 0 {
			drift = -drift
		}
		if drift > g.window {
			return ErrStaleTimestamp
		}
	}

	if tok.Nonce != "" {
		// Nonces outlive the validity window so a token replayed right
		// at the window edge still hits the cache.
		fresh, err := g.store.Remember(ctx, tok.ReplayKey(), 2*g.window)
		if err != nil {
			return fmt.Errorf("replay check: %w", err)
		}
		if !fresh {
			return ErrNonceReplayed
		}
	}

	return nil
}
