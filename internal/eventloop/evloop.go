// Package eventloop processes GitHub webhook events one after another and
// starts an automerge run for each event that passes the event filter.
package eventloop

import (
	"context"
	"errors"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	github_prov "github.com/optimaxdev/automerge-semantic-release/internal/provider/github"

	"github.com/optimaxdev/automerge-semantic-release/internal/logfields"
	"github.com/optimaxdev/automerge-semantic-release/internal/trigger"
)

const DefEventChannelBufferSize = 512

const loggerName = "event-loop"

// Runner executes an automerge run for a branch change.
type Runner interface {
	Run(ctx context.Context, pc *trigger.PushContext) error
}

// EvLoop receives events and runs the Runner for events matching the filter.
// Events are processed sequentially, runs never overlap.
type EvLoop struct {
	ch     chan *github_prov.Event
	logger *zap.Logger
	filter *Filter
	runner Runner

	runDeferFn func()

	processed atomic.Uint64
	failed    atomic.Uint64
}

// WithRunDeferFunc sets a function that is deferred when processing an event.
// It can be used to set a panic handler.
func WithRunDeferFunc(fn func()) func(*EvLoop) {
	return func(e *EvLoop) {
		e.runDeferFn = fn
	}
}

func NewEventLoop(filter *Filter, runner Runner, opts ...func(*EvLoop)) *EvLoop {
	evl := EvLoop{
		ch:     make(chan *github_prov.Event, DefEventChannelBufferSize),
		filter: filter,
		runner: runner,
	}

	for _, opt := range opts {
		opt(&evl)
	}

	if evl.logger == nil {
		evl.logger = zap.L().Named(loggerName)
	}

	return &evl
}

// C returns the event channel.
// Events sent to this channel will be processed.
// The channel is closed when Stop() is called.
func (e *EvLoop) C() chan<- *github_prov.Event {
	return e.ch
}

// Processed returns the number of events for which a run was executed.
func (e *EvLoop) Processed() uint64 {
	return e.processed.Load()
}

// Failed returns the number of runs that returned an error.
func (e *EvLoop) Failed() uint64 {
	return e.failed.Load()
}

// Start processes events until the event channel is closed or ctx is
// cancelled.
func (e *EvLoop) Start(ctx context.Context) error {
	e.logger.Info("ready to process events", logfields.Event("eventloop_started"))

	for {
		select {
		case <-ctx.Done():
			e.logger.Info(
				"event loop terminated, context was cancelled",
				logfields.Event("eventloop_terminated"),
			)

			return ctx.Err()

		case ev, ok := <-e.ch:
			if !ok {
				e.logger.Info(
					"event loop terminated, event channel was closed",
					logfields.Event("eventloop_terminated"),
				)

				return nil
			}

			e.process(ctx, ev)
		}
	}
}

func (e *EvLoop) process(ctx context.Context, ev *github_prov.Event) {
	if e.runDeferFn != nil {
		defer e.runDeferFn()
	}

	logger := e.logger.With(ev.LogFields...)
	logger.Debug("event received", logfields.Event("event_received"))

	match, err := e.filter.Match(ctx, ev.JSON)
	if err != nil {
		logger.Error(
			"matching event filter failed",
			logfields.Event("event_filter_matching_failed"),
			zap.Error(err),
		)
		return
	}

	logger.Debug(
		"evaluated result of matching event with filter",
		logfields.Event("event_filter_match_result_evaluated"),
		zap.Stringer("match_result", match),
	)

	if match != Match {
		return
	}

	pc, err := trigger.FromEvent(ev.Type, ev.Event)
	if err != nil {
		if errors.Is(err, trigger.ErrUnsupportedEvent) {
			logger.Debug(
				"ignoring event, event type is unsupported",
				logfields.Event("github_unsupported_event_received"),
			)
			return
		}

		logger.Warn(
			"ignoring event, extracting branch information failed",
			logfields.Event("event_ignored"),
			zap.Error(err),
		)
		return
	}

	pc.DeliveryID = ev.DeliveryID

	err = e.runner.Run(ctx, pc)
	e.processed.Inc()

	if err != nil {
		e.failed.Inc()

		logger.Error(
			"automerge run failed",
			logfields.Event("automerge_run_failed"),
			zap.Error(err),
		)
		return
	}

	logger.Debug("automerge run finished", logfields.Event("automerge_run_finished"))
}

// Stop closes the event channel, Start() returns after processing the
// remaining events.
func (e *EvLoop) Stop() {
	e.logger.Debug("event loop terminating", logfields.Event("eventloop_terminating"))
	close(e.ch)
}
