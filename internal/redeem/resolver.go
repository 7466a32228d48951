package redeem

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// InputResolver locates the invitation code text field.
type InputResolver interface {
	Name() string
	Resolve(ctx context.Context, page Page) (Element, error)
}

// SelectorResolver waits for a single selector to be attached.
type SelectorResolver struct {
	Label    string
	Selector string
	Timeout  time.Duration
}

func (r SelectorResolver) Name() string { return r.Label }

func (r SelectorResolver) Resolve(ctx context.Context, page Page) (Element, error) {
	return page.Find(ctx, r.Selector, Attached, r.Timeout)
}

// ResolverChain tries resolvers in priority order; the first success wins.
type ResolverChain []InputResolver

// Resolve returns the element and the name of the resolver that found it.
// A driver error other than ErrNotFound stops the chain immediately.
func (c ResolverChain) Resolve(ctx context.Context, page Page) (Element, string, error) {
	for _, r := range c {
		el, err := r.Resolve(ctx, page)
		if err == nil && el != nil {
			return el, r.Name(), nil
		}
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, r.Name(), fmt.Errorf("resolve input via %s: %w", r.Name(), err)
		}
	}
	return nil, "", ErrNotFound
}
