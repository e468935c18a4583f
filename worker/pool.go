package worker

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"
)

// Pool grades independent submissions on several graders.
type Pool struct {
	graders []*Grader
	free    chan *Grader
}

// NewPool starts n graders sharing one puzzle source.
func NewPool(n int, puzzles Puzzles, opts Options) *Pool {
	if n < 1 {
		n = 1
	}
	p := &Pool{free: make(chan *Grader, n)}
	for i := 0; i < n; i++ {
		g := NewGrader(puzzles, opts)
		p.graders = append(p.graders, g)
		p.free <- g
	}
	return p
}

// Grade runs one request on the next free grader.
func (p *Pool) Grade(ctx context.Context, req Request) (Response, error) {
	var g *Grader
	select {
	case g = <-p.free:
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
	defer func() { p.free <- g }()
	return g.Grade(ctx, req)
}

// GradeAll grades reqs concurrently and returns responses in request order.
// Jobs that time out or cannot be graded report through Response.Error;
// only cancellation of ctx fails the whole batch.
func (p *Pool) GradeAll(ctx context.Context, reqs []Request) ([]Response, error) {
	out := make([]Response, len(reqs))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(len(p.graders))
	for i, req := range reqs {
		eg.Go(func() error {
			resp, err := p.Grade(ctx, req)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				if resp.Error == "" {
					resp.Error = err.Error()
				}
			}
			out[i] = resp
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Stop shuts down every grader.
func (p *Pool) Stop() {
	for _, g := range p.graders {
		g.Stop()
	}
}
