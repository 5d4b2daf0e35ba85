package agent

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Event tracks the asynchronous work attached to one platform event.
//
// Every handler that starts asynchronous work registers it with WaitUntil
// and calls Settle before returning: the event is not released until all
// registered work has finished. Failures and panics are recovered and
// logged inside the event, never propagated, so a crashed task cannot
// tear the whole handler down.
type Event struct {
	name string
	g    *errgroup.Group
	ctx  context.Context
	log  zerolog.Logger
}

func newEvent(ctx context.Context, name string, logger zerolog.Logger) *Event {
	// handlers do not support cancellation: once triggered, registered
	// work runs to completion or failure even if the originating caller
	// goes away
	g, gctx := errgroup.WithContext(context.WithoutCancel(ctx))
	return &Event{
		name: name,
		g:    g,
		ctx:  gctx,
		log:  logger.With().Str("event", name).Logger(),
	}
}

// WaitUntil extends the event's lifetime until fn completes.
func (e *Event) WaitUntil(task string, fn func(context.Context) error) {
	e.g.Go(func() error {
		defer func() {
			if r := recover(); r != nil {
				e.log.Error().Interface("panic", r).Str("task", task).Msg("recovered panic in event task")
			}
		}()
		if err := fn(e.ctx); err != nil {
			e.log.Warn().Err(err).Str("task", task).Msg("event task failed")
		}
		return nil
	})
}

// Settle blocks until all registered work has completed.
func (e *Event) Settle() {
	e.g.Wait()
}
