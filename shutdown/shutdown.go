package shutdown

import (
	"context"
	"io"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/vinayprograms/matchkit/errors"
	"github.com/vinayprograms/matchkit/logging"
)

// Phases used by matchkit programs. Lower phases close first.
const (
	PhaseRequests  = 10 // stop taking ranking requests
	PhaseTelemetry = 20 // flush spans and events
	PhaseStorage   = 30 // close the feature store
)

// DefaultTimeout bounds Shutdown when the caller's context has no deadline.
const DefaultTimeout = 30 * time.Second

// Func closes one component.
type Func func(ctx context.Context) error

// HandlerResult is the outcome of one handler.
type HandlerResult struct {
	Name     string
	Phase    int
	Duration time.Duration
	Err      error
}

// Result is the outcome of a whole shutdown.
type Result struct {
	Duration time.Duration
	Handlers []HandlerResult
	Err      error
}

// Failed returns the names of handlers that returned an error.
func (r *Result) Failed() []string {
	var failed []string
	for _, h := range r.Handlers {
		if h.Err != nil {
			failed = append(failed, h.Name)
		}
	}
	return failed
}

type registration struct {
	name  string
	phase int
	fn    Func
}

// Coordinator runs registered handlers in phase order.
type Coordinator struct {
	timeout time.Duration
	logger  *logging.Logger

	mu       sync.Mutex
	handlers []registration
	once     sync.Once
	done     chan struct{}
	result   *Result
}

// New returns a Coordinator. A zero timeout means DefaultTimeout.
func New(timeout time.Duration, logger *logging.Logger) *Coordinator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Coordinator{
		timeout: timeout,
		logger:  logging.OrDiscard(logger).WithComponent("shutdown"),
		done:    make(chan struct{}),
	}
}

// Register adds a handler to phase.
func (c *Coordinator) Register(name string, phase int, fn Func) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, registration{name: name, phase: phase, fn: fn})
}

// RegisterCloser adds an io.Closer, such as a store or an event exporter.
func (c *Coordinator) RegisterCloser(name string, phase int, cl io.Closer) {
	c.Register(name, phase, func(context.Context) error { return cl.Close() })
}

// NotifyContext returns a context canceled on SIGINT or SIGTERM, so that
// in-flight requests stop before Shutdown closes their dependencies.
func (c *Coordinator) NotifyContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// Shutdown runs every handler once, phase by phase. A handler failure does
// not stop later phases. When ctx expires between phases the remaining
// phases are skipped and a TIMEOUT error is returned.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.once.Do(func() {
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}
		c.result = c.run(ctx)
		close(c.done)
	})
	<-c.done
	return c.result.Err
}

// Done is closed once Shutdown has finished.
func (c *Coordinator) Done() <-chan struct{} { return c.done }

// Result returns the shutdown outcome, or nil before Done is closed.
func (c *Coordinator) Result() *Result {
	select {
	case <-c.done:
		return c.result
	default:
		return nil
	}
}

func (c *Coordinator) run(ctx context.Context) *Result {
	start := time.Now()
	c.mu.Lock()
	handlers := append([]registration(nil), c.handlers...)
	c.mu.Unlock()
	sort.SliceStable(handlers, func(i, j int) bool { return handlers[i].phase < handlers[j].phase })

	res := &Result{}
	var errs []error
	for _, group := range groupByPhase(handlers) {
		if ctx.Err() != nil {
			errs = append(errs, errors.Wrap(ctx.Err(), "shutdown interrupted", errors.WithOp("shutdown"),
				errors.WithMetadata("phase", strconv.Itoa(group[0].phase))))
			break
		}
		for _, hr := range c.runPhase(ctx, group) {
			res.Handlers = append(res.Handlers, hr)
			if hr.Err != nil {
				errs = append(errs, errors.Wrapf(hr.Err, "closing %s", hr.Name))
			}
		}
	}
	res.Err = errors.Join(errs...)
	res.Duration = time.Since(start)

	fields := logging.Fields{"handlers": len(res.Handlers), "duration": res.Duration.String()}
	if res.Err != nil {
		fields["error"] = res.Err.Error()
		c.logger.Error("shutdown_failed", fields)
	} else {
		c.logger.Info("shutdown_complete", fields)
	}
	return res
}

func (c *Coordinator) runPhase(ctx context.Context, group []registration) []HandlerResult {
	results := make([]HandlerResult, len(group))
	var wg sync.WaitGroup
	for i, r := range group {
		wg.Add(1)
		go func(i int, r registration) {
			defer wg.Done()
			start := time.Now()
			err := r.fn(ctx)
			results[i] = HandlerResult{Name: r.name, Phase: r.phase, Duration: time.Since(start), Err: err}
			c.logger.Debug("handler_closed", logging.Fields{"handler": r.name, "phase": r.phase})
		}(i, r)
	}
	wg.Wait()
	return results
}

// groupByPhase splits phase-sorted handlers into runs of equal phase.
func groupByPhase(handlers []registration) [][]registration {
	var groups [][]registration
	for i, h := range handlers {
		if i == 0 || h.phase != handlers[i-1].phase {
			groups = append(groups, nil)
		}
		groups[len(groups)-1] = append(groups[len(groups)-1], h)
	}
	return groups
}
