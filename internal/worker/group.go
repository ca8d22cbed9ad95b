package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Factory builds the i-th Worker of a Group. Each call must return a Worker
// with its own Queues.
type Factory func(i int) (*Worker, error)

// Group runs several independent Workers.
type Group struct {
	workers []*Worker

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	errs    []error
}

// NewGroup builds n workers from factory.
func NewGroup(n int, factory Factory) (*Group, error) {
	if n < 1 {
		return nil, fmt.Errorf("worker group needs at least one worker, got %d", n)
	}
	g := &Group{workers: make([]*Worker, 0, n)}
	for i := range n {
		w, err := factory(i)
		if err != nil {
			return nil, fmt.Errorf("build worker %d: %w", i, err)
		}
		g.workers = append(g.workers, w)
	}
	return g, nil
}

// Workers returns the members in construction order.
func (g *Group) Workers() []*Worker { return g.workers }

// Start launches every worker in the background.
func (g *Group) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running {
		return errors.New("worker group already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	g.cancel = cancel
	g.running = true
	g.errs = nil

	g.wg.Add(len(g.workers))
	for _, w := range g.workers {
		go g.run(runCtx, w)
	}
	return nil
}

func (g *Group) run(ctx context.Context, w *Worker) {
	defer g.wg.Done()
	if err := w.Start(ctx); err != nil {
		g.mu.Lock()
		g.errs = append(g.errs, fmt.Errorf("worker %s: %w", w.ID(), err))
		g.mu.Unlock()
	}
}

// Stop asks every worker to exit after its current job and waits for them.
func (g *Group) Stop() {
	g.mu.Lock()
	if !g.running {
		g.mu.Unlock()
		return
	}
	cancel := g.cancel
	g.running = false
	g.cancel = nil
	g.mu.Unlock()

	for _, w := range g.workers {
		w.Stop()
	}
	cancel()
	g.wg.Wait()
}

// Wait blocks until every worker has exited and returns their start errors.
func (g *Group) Wait() error {
	g.wg.Wait()
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cancel != nil {
		g.cancel()
		g.cancel = nil
	}
	g.running = false
	return errors.Join(g.errs...)
}

// Status reports every worker's status.
func (g *Group) Status() []Status {
	out := make([]Status, 0, len(g.workers))
	for _, w := range g.workers {
		out = append(out, w.Status())
	}
	return out
}
