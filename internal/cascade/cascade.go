// Package cascade implements the provider-fallback pattern every external
// capability in the engine shares: try an ordered list of interchangeable
// providers, accept the first result that passes the capability's own
// validation, and surface a single exhausted error only when every provider
// has failed. Individual provider failures never escape the cascade.
package cascade

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
)

// ErrExhausted is returned when every provider failed or produced an
// invalid result. Callers decide whether that is fatal for the job.
var ErrExhausted = errors.New("all providers exhausted")

// Provider is one interchangeable implementation of a capability.
// It must fail fast — a cascade is a fallback chain, not a retry loop,
// so a single call gets a bounded timeout and no second chance.
type Provider[Req, Res any] struct {
	Name string
	Call func(ctx context.Context, req Req) (Res, error)
}

// Cascade tries providers in declared priority order.
type Cascade[Req, Res any] struct {
	Capability  string
	Providers   []Provider[Req, Res]
	Validate    func(Res) error // nil: any non-error result is accepted
	CallTimeout time.Duration   // 0: inherit the caller's deadline only
}

// Result carries the winning value plus the attempt trail.
type Result[Res any] struct {
	Value     Res
	Provider  string
	Attempted []string // providers tried before (and including) the winner
}

// Run invokes providers in order and returns the first validated success.
// A provider error or validation failure is logged and absorbed; only a
// fully exhausted list (or a cancelled context) returns an error.
func (c *Cascade[Req, Res]) Run(ctx context.Context, req Req) (*Result[Res], error) {
	if len(c.Providers) == 0 {
		return nil, fmt.Errorf("%s: no providers configured: %w", c.Capability, ErrExhausted)
	}

	attempted := make([]string, 0, len(c.Providers))

	for _, p := range c.Providers {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%s: cascade aborted: %w", c.Capability, err)
		}

		attempted = append(attempted, p.Name)

		callCtx := ctx
		var cancel context.CancelFunc
		if c.CallTimeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, c.CallTimeout)
		}

		value, err := p.Call(callCtx, req)
		if cancel != nil {
			cancel()
		}

		if err != nil {
			log.Printf("[Cascade:%s] provider %s failed: %v", c.Capability, p.Name, err)
			continue
		}

		if c.Validate != nil {
			if err := c.Validate(value); err != nil {
				log.Printf("[Cascade:%s] provider %s returned invalid result: %v", c.Capability, p.Name, err)
				continue
			}
		}

		if len(attempted) > 1 {
			log.Printf("[Cascade:%s] %s succeeded after %d failed attempts", c.Capability, p.Name, len(attempted)-1)
		}

		return &Result[Res]{
			Value:     value,
			Provider:  p.Name,
			Attempted: attempted,
		}, nil
	}

	return nil, fmt.Errorf("%s: tried %s: %w",
		c.Capability, strings.Join(attempted, ", "), ErrExhausted)
}
