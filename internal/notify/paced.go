package notify

import (
	"context"
	"fmt"

	"greenhouse_control/internal/models"

	"golang.org/x/time/rate"
)

// Paced limits how fast alerts reach the next notifier. Alerts wait for a
// token rather than being dropped, so a flapping link cannot flood operators
// yet every transition is still delivered.
type Paced struct {
	next    Notifier
	limiter *rate.Limiter
}

// NewPaced allows perMinute alerts per minute with the given burst.
// A non-positive rate disables pacing.
func NewPaced(next Notifier, perMinute float64, burst int) *Paced {
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Limit(perMinute / 60)
	}
	if burst < 1 {
		burst = 1
	}
	return &Paced{next: next, limiter: rate.NewLimiter(limit, burst)}
}

func (p *Paced) Notify(ctx context.Context, a models.Alert) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("pace alert %s: %w", a.ID, err)
	}
	return p.next.Notify(ctx, a)
}
