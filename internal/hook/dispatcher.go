package hook

import (
	"context"
	"sync/atomic"

	"github.com/ayusman/tala/internal/gesture"
	"go.uber.org/zap"
)

// DefaultBacklog is the number of clap events queued for hooks.
const DefaultBacklog = 16

// Dispatcher delivers clap events to hooks on its own goroutine so that slow
// hooks never stall the pipeline. Events beyond the backlog are dropped.
type Dispatcher struct {
	manager  *Manager
	executor *Executor
	log      *zap.Logger
	queue    chan gesture.ClapEvent
	dropped  atomic.Uint64
}

// NewDispatcher creates a Dispatcher. backlog <= 0 uses DefaultBacklog.
func NewDispatcher(m *Manager, e *Executor, log *zap.Logger, backlog int) *Dispatcher {
	if backlog <= 0 {
		backlog = DefaultBacklog
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{
		manager:  m,
		executor: e,
		log:      log,
		queue:    make(chan gesture.ClapEvent, backlog),
	}
}

// Notify queues ev. It reports false if the queue was full.
func (d *Dispatcher) Notify(ev gesture.ClapEvent) bool {
	select {
	case d.queue <- ev:
		return true
	default:
		d.dropped.Add(1)
		d.log.Warn("hook queue full, clap dropped", zap.String("id", ev.ID))
		return false
	}
}

// Dropped returns the number of events dropped because the queue was full.
func (d *Dispatcher) Dropped() uint64 {
	return d.dropped.Load()
}

// Run delivers queued events until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-d.queue:
			d.deliver(ctx, ev)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, ev gesture.ClapEvent) {
	for _, h := range d.manager.ForEvent(EventClap) {
		resp, err := d.executor.Execute(ctx, h, Event{Type: EventClap, Clap: &ev})
		switch {
		case err != nil:
			d.log.Warn("hook failed", zap.String("hook", h.Manifest.Name), zap.Error(err))
		case !resp.Success:
			d.log.Warn("hook reported failure", zap.String("hook", h.Manifest.Name), zap.String("error", resp.Error))
		default:
			d.log.Debug("hook ran", zap.String("hook", h.Manifest.Name), zap.String("clap", ev.ID))
		}
	}
}
