package backfill

import (
	"context"
	"time"
)

// Pacer spaces calls so that at most one starts per interval
type Pacer struct {
	interval time.Duration
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewPacer creates a pacer for the given ceiling. Zero or negative means unpaced.
func NewPacer(requestsPerSecond float64) *Pacer {
	p := &Pacer{now: time.Now, sleep: sleepContext}
	if requestsPerSecond > 0 {
		p.interval = time.Duration(float64(time.Second) / requestsPerSecond)
	}
	return p
}

// Do runs fn, then sleeps for whatever remains of the interval measured from fn's start
func (p *Pacer) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	started := p.now()
	err := fn(ctx)
	if p.interval <= 0 {
		return err
	}

	if remaining := p.interval - p.now().Sub(started); remaining > 0 {
		if sleepErr := p.sleep(ctx, remaining); sleepErr != nil && err == nil {
			err = sleepErr
		}
	}
	return err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
