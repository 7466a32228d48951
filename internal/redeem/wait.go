package redeem

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

var errPending = errors.New("condition not met yet")

// probe checks one page condition without waiting.
type probe struct {
	name  string
	check func(ctx context.Context) (Element, bool, error)
}

// firstOf polls probes in order every interval until one holds or timeout
// elapses. It returns the index of the matching probe, or ErrNotFound.
// Driver errors stop polling immediately.
func firstOf(ctx context.Context, timeout, interval time.Duration, probes ...probe) (int, Element, error) {
	parent := ctx
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	idx := -1
	var found Element
	op := func() error {
		for i, p := range probes {
			el, ok, err := p.check(ctx)
			if err != nil {
				return backoff.Permanent(err)
			}
			if ok {
				idx, found = i, el
				return nil
			}
		}
		return errPending
	}

	// BackOff implementations are stateful; always build a fresh one.
	bo := backoff.WithContext(backoff.NewConstantBackOff(interval), ctx)
	err := backoff.Retry(op, bo)
	switch {
	case err == nil:
		return idx, found, nil
	case parent.Err() != nil:
		return -1, nil, parent.Err()
	case errors.Is(err, errPending), errors.Is(err, context.DeadlineExceeded):
		return -1, nil, ErrNotFound
	default:
		return -1, nil, err
	}
}

func visibleProbe(page Page, name, selector string) probe {
	return probe{name: name, check: func(ctx context.Context) (Element, bool, error) {
		el, err := firstVisible(ctx, page, selector)
		return el, el != nil, err
	}}
}

// firstVisible returns the first currently visible element matching
// selector, or nil.
func firstVisible(ctx context.Context, page Page, selector string) (Element, error) {
	els, err := page.FindAll(ctx, selector)
	if err != nil {
		return nil, err
	}
	for _, el := range els {
		ok, err := el.Visible(ctx)
		if err != nil {
			return nil, err
		}
		if ok {
			return el, nil
		}
	}
	return nil, nil
}

// Sleep pauses for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
