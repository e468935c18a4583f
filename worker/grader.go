// Package worker runs grading off the caller's goroutine. Requests and
// responses cross the boundary as extjson-encoded bytes, and a wall-clock
// timeout races every job.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chazu/procmachine/extjson"
	"github.com/chazu/procmachine/harness"
	"github.com/chazu/procmachine/machine"
	"github.com/google/uuid"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("procmachine.worker")

// DefaultTimeout is the wall-clock limit for one grading job.
const DefaultTimeout = 10 * time.Second

// ErrTimeout is returned when a job outlives its wall-clock limit. It is
// distinct from a TLE verdict, which counts steps.
var ErrTimeout = errors.New("worker: grading timed out")

// ErrStopped is returned by a grader after Stop.
var ErrStopped = errors.New("worker: grader stopped")

// Request is one grading job.
type Request struct {
	ID     string                                `json:"id"`
	Puzzle string                                `json:"puzzle"`
	Entry  machine.ProcID                        `json:"entry"`
	Procs  map[machine.ProcID]*machine.Procedure `json:"procs"`
	Cases  int                                   `json:"cases,omitempty"`
}

// Response answers a Request. Error is set when the job could not be
// graded at all.
type Response struct {
	ID      string          `json:"id"`
	Verdict harness.Verdict `json:"verdict"`
	Error   string          `json:"error,omitempty"`
}

// Puzzles resolves puzzle keys.
type Puzzles interface {
	Lookup(key string) (harness.Puzzle, bool)
}

// Options configures a Grader.
type Options struct {
	Timeout  time.Duration
	Policy   machine.ParamPolicy
	Alphabet *machine.Alphabet
}

// job is a unit of work for the grading goroutine.
type job struct {
	payload []byte
	done    chan []byte
}

// loop is one grading goroutine. A timed-out loop is cancelled and
// replaced, never reused.
type loop struct {
	jobs   chan job
	ctx    context.Context
	cancel context.CancelFunc
}

// Grader serializes grading jobs through a single goroutine.
type Grader struct {
	puzzles Puzzles
	opts    Options

	mu      sync.Mutex
	cur     *loop
	stopped bool
}

// NewGrader starts a grader.
func NewGrader(puzzles Puzzles, opts Options) *Grader {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	g := &Grader{puzzles: puzzles, opts: opts}
	g.cur = g.start()
	return g
}

func (g *Grader) start() *loop {
	ctx, cancel := context.WithCancel(context.Background())
	l := &loop{jobs: make(chan job), ctx: ctx, cancel: cancel}
	go g.run(l)
	log.Debug("grader started")
	return l
}

func (g *Grader) run(l *loop) {
	for {
		select {
		case j := <-l.jobs:
			j.done <- g.execute(l.ctx, j.payload)
		case <-l.ctx.Done():
			return
		}
	}
}

// execute decodes, grades and encodes one job, recovering from panics.
func (g *Grader) execute(ctx context.Context, payload []byte) []byte {
	var resp Response
	func() {
		defer func() {
			if r := recover(); r != nil {
				resp.Error = fmt.Sprintf("panic: %v", r)
			}
		}()
		var req Request
		if err := extjson.Unmarshal(payload, &req); err != nil {
			resp.Error = err.Error()
			return
		}
		resp.ID = req.ID
		p, ok := g.puzzles.Lookup(req.Puzzle)
		if !ok {
			resp.Error = fmt.Sprintf("unknown puzzle %q", req.Puzzle)
			return
		}
		v, err := harness.Run(ctx, harness.Options{
			Puzzle:   p,
			Entry:    req.Entry,
			Procs:    req.Procs,
			Cases:    req.Cases,
			Policy:   g.opts.Policy,
			Alphabet: g.opts.Alphabet,
		})
		if err != nil {
			resp.Error = err.Error()
			return
		}
		resp.Verdict = v
	}()
	out, err := extjson.Marshal(resp)
	if err != nil {
		out, _ = extjson.Marshal(Response{ID: resp.ID, Error: err.Error()})
	}
	return out
}

func (g *Grader) current() (*loop, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stopped {
		return nil, ErrStopped
	}
	return g.cur, nil
}

// restart replaces l if it is still the current loop.
func (g *Grader) restart(l *loop) {
	g.mu.Lock()
	defer g.mu.Unlock()
	l.cancel()
	if g.cur == l && !g.stopped {
		g.cur = g.start()
	}
}

// Grade runs req and waits for the verdict. A job that outlives the
// timeout kills the grading goroutine, which is replaced for later jobs,
// and ErrTimeout is returned. A job that could not be graded returns its
// Response together with an error.
func (g *Grader) Grade(ctx context.Context, req Request) (Response, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	payload, err := extjson.Marshal(req)
	if err != nil {
		return Response{}, err
	}
	l, err := g.current()
	if err != nil {
		return Response{}, err
	}

	timer := time.NewTimer(g.opts.Timeout)
	defer timer.Stop()

	j := job{payload: payload, done: make(chan []byte, 1)}
	select {
	case l.jobs <- j:
	case <-timer.C:
		return Response{}, ErrTimeout
	case <-l.ctx.Done():
		return Response{}, ErrStopped
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}

	var out []byte
	select {
	case out = <-j.done:
	case <-timer.C:
		log.Warningf("job %s timed out after %s, restarting grader", req.ID, g.opts.Timeout)
		g.restart(l)
		return Response{ID: req.ID}, ErrTimeout
	case <-ctx.Done():
		g.restart(l)
		return Response{ID: req.ID}, ctx.Err()
	}

	var resp Response
	if err := extjson.Unmarshal(out, &resp); err != nil {
		return Response{ID: req.ID}, err
	}
	if resp.Error != "" {
		return resp, fmt.Errorf("worker: job %s: %s", resp.ID, resp.Error)
	}
	log.Debugf("job %s: %v", resp.ID, resp.Verdict)
	return resp, nil
}

// Stop shuts down the grading goroutine.
func (g *Grader) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.stopped {
		g.stopped = true
		g.cur.cancel()
	}
}
