// Package notify is the agent's platform notification surface.
package notify

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/xid"
	"github.com/rs/zerolog"

	"github.com/rooster-app/rooster-agent/push"
)

const (
	maxShown  = 256
	retention = 24 * time.Hour
)

// Notification is a displayed notification, held by the center until it is
// closed or acted upon so the dispatcher can read back its stored data.
type Notification struct {
	ID      string
	ShownAt time.Time
	push.Descriptor
}

// Sink delivers displayed notifications to the underlying platform surface.
type Sink interface {
	Deliver(ctx context.Context, n *Notification) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, n *Notification) error

func (f SinkFunc) Deliver(ctx context.Context, n *Notification) error {
	return f(ctx, n)
}

// LogSink delivers notifications to the structured log only. It is the
// default sink when no platform integration is configured.
func LogSink(logger zerolog.Logger) Sink {
	return SinkFunc(func(_ context.Context, n *Notification) error {
		logger.Info().
			Str("id", n.ID).
			Str("title", n.Title).
			Str("body", n.Body).
			Str("tag", n.Tag).
			Msg("notification shown")
		return nil
	})
}

// Center displays notifications and retains their descriptors. A tagged
// notification uses its tag as identity, so showing another notification
// with the same tag replaces the previous one (the platform's
// tag-replacement semantics). Retention is bounded: entries fall out after
// the retention window or when too many accumulate.
type Center struct {
	shown *lru.LRU[string, *Notification]
	sink  Sink
	log   zerolog.Logger
}

func NewCenter(sink Sink, logger zerolog.Logger) *Center {
	componentLog := logger.With().Str("component", "notify").Logger()
	if sink == nil {
		sink = LogSink(componentLog)
	}
	return &Center{
		shown: lru.NewLRU[string, *Notification](maxShown, nil, retention),
		sink:  sink,
		log:   componentLog,
	}
}

// Show displays a notification for the given descriptor and stores it for
// later interaction handling. The returned notification carries the ID the
// platform will report interactions against.
func (c *Center) Show(ctx context.Context, d push.Descriptor) (*Notification, error) {
	n := &Notification{
		ID:         d.Tag,
		ShownAt:    time.Now(),
		Descriptor: d,
	}
	if n.ID == "" {
		n.ID = xid.New().String()
	}
	c.shown.Add(n.ID, n)
	if err := c.sink.Deliver(ctx, n); err != nil {
		return n, err
	}
	c.log.Debug().Str("id", n.ID).Str("title", n.Title).Msg("notification displayed")
	return n, nil
}

// Get returns the stored notification for an ID, if it is still shown.
func (c *Center) Get(id string) (*Notification, bool) {
	return c.shown.Get(id)
}

// Close removes a notification from the shown set.
func (c *Center) Close(id string) {
	if c.shown.Remove(id) {
		c.log.Debug().Str("id", id).Msg("notification closed")
	}
}

// List returns all currently shown notifications.
func (c *Center) List() []*Notification {
	return c.shown.Values()
}
