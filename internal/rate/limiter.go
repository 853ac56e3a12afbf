package rate

import (
	"context"
	"time"
)

// Limiter gates login attempts per client key (IP). Allow reports whether the
// attempt may proceed and, when denied, how long until the window resets.
type Limiter interface {
	Allow(ctx context.Context, key string, now time.Time) (bool, time.Duration, error)
}
