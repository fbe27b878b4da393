package nlu

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/dialogmesh/core"
	"github.com/hupe1980/dialogmesh/logging"
)

// GuardOptions configures a Guard.
type GuardOptions struct {
	// Threshold is the minimum confidence accepted. Lower results become
	// core.IntentFallback.
	Threshold float64
	// Timeout bounds a single resolution. Zero disables the bound.
	Timeout time.Duration
	Logger  logging.Logger
}

// Guard wraps a resolver and rewrites low-confidence, timed out or failed
// resolutions to the reserved fallback intent. It never returns an error.
type Guard struct {
	next core.Resolver
	opts GuardOptions
}

var _ core.Resolver = (*Guard)(nil)

// NewGuard wraps next.
func NewGuard(next core.Resolver, optFns ...func(o *GuardOptions)) *Guard {
	opts := GuardOptions{
		Threshold: 0.3,
		Timeout:   2 * time.Second,
		Logger:    logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Guard{next: next, opts: opts}
}

type resolution struct {
	parse core.ParseResult
	err   error
}

// Resolve implements core.Resolver.
func (g *Guard) Resolve(ctx context.Context, text string) (core.ParseResult, error) {
	start := time.Now()

	if g.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.opts.Timeout)
		defer cancel()
	}

	ch := make(chan resolution, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- resolution{err: fmt.Errorf("resolver panic: %v", r)}
			}
		}()
		p, err := g.next.Resolve(ctx, text)
		ch <- resolution{parse: p, err: err}
	}()

	var res resolution
	select {
	case res = <-ch:
	case <-ctx.Done():
		res = resolution{err: ctx.Err()}
	}

	if res.err != nil {
		if errors.Is(res.err, context.DeadlineExceeded) {
			g.opts.Logger.Warn("intent resolution timed out", "timeout", g.opts.Timeout)
		}
		g.log(core.IntentFallback, g.opts.Threshold, start, res.err)
		return g.fallback(core.ParseResult{Text: text}), nil
	}

	parse := res.parse
	parse.Text = text

	if parse.Intent.Name == "" || parse.Intent.Confidence < g.opts.Threshold {
		parse = g.fallback(parse)
	}

	g.log(parse.Intent.Name, parse.Intent.Confidence, start, nil)

	return parse, nil
}

// fallback rewrites p to the fallback intent, keeping the original guess in
// the ranking.
func (g *Guard) fallback(p core.ParseResult) core.ParseResult {
	out := p.Clone()
	if p.Intent.Name != "" {
		out.Ranking = append([]core.Intent{p.Intent}, out.Ranking...)
	}
	out.Intent = core.Intent{Name: core.IntentFallback, Confidence: g.opts.Threshold}
	return out
}

func (g *Guard) log(intent string, confidence float64, start time.Time, err error) {
	if dl, ok := g.opts.Logger.(*logging.DialogLogger); ok {
		dl.WithComponent("nlu").LogResolverCall(intent, confidence, time.Since(start), err)
		return
	}
	if err != nil {
		g.opts.Logger.Warn("intent resolution failed", "error", err)
	}
}
