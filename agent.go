// Package agent is the client-side offline/runtime agent for the Rooster
// mobile-web application: a long-lived background context that serves
// cached responses when the origin is unreachable and turns server-pushed
// messages into notifications with interaction routing back into the
// application.
package agent

import (
	"context"
	"net/http"
	"net/url"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/rooster-app/rooster-agent/cache"
	"github.com/rooster-app/rooster-agent/client"
	"github.com/rooster-app/rooster-agent/dispatch"
	"github.com/rooster-app/rooster-agent/lifecycle"
	"github.com/rooster-app/rooster-agent/notify"
	"github.com/rooster-app/rooster-agent/push"
	"github.com/rooster-app/rooster-agent/router"
)

// Message types accepted from the application.
const (
	MessageSkipWaiting = "SKIP_WAITING"
	MessageAuthToken   = "AUTH_TOKEN"
)

// AppMessage is a command received from the application.
type AppMessage struct {
	Type  string `json:"type"`
	Token string `json:"token,omitempty"`
}

// Config wires an agent instance.
type Config struct {
	// Storage for cached responses.
	Cache cache.Provider
	// Name of the current cache generation.
	Generation string
	// URL of the origin server.
	OriginURL *url.URL
	// Path prefix of the API namespace, never intercepted.
	APIPrefix string
	// Path of the offline fallback document for navigations.
	RootDocument string
	// Paths precached at install time.
	Precache []string
	// URL scope of application windows controlled by this agent.
	Scope string
	// OpenWindow opens a new application window; nil logs and drops.
	OpenWindow client.OpenFunc
	// Sink delivers notifications to the platform surface; nil logs only.
	Sink notify.Sink
	// Push ingestion defaults.
	Push push.Config
	// Logger to use. The global zerolog logger is used if nil.
	Logger *zerolog.Logger
}

// Agent is one background execution context. Its handlers correspond to
// the platform's lifecycle, fetch, push, notification and message events;
// each handler joins all of its asynchronous work before returning and
// never lets a failure escape.
type Agent struct {
	lifecycle *lifecycle.Manager
	router    *router.Router
	ingestor  *push.Ingestor
	center    *notify.Center
	dispatch  *dispatch.Dispatcher
	windows   *client.Hub
	token     *TokenCell
	log       zerolog.Logger
}

func New(cfg Config) *Agent {
	var logger zerolog.Logger
	if cfg.Logger == nil {
		logger = log.Logger
	} else {
		logger = *cfg.Logger
	}
	logger = logger.With().Str("generation", cfg.Generation).Logger()

	windows := client.NewHub(cfg.Scope, cfg.OpenWindow, logger)
	center := notify.NewCenter(cfg.Sink, logger)
	token := &TokenCell{}

	a := &Agent{
		lifecycle: lifecycle.NewManager(cfg.Cache, cfg.Generation, cfg.OriginURL, cfg.Precache, windows, logger),
		router: router.New(router.Config{
			Cache:        cfg.Cache,
			Generation:   cfg.Generation,
			OriginURL:    cfg.OriginURL,
			APIPrefix:    cfg.APIPrefix,
			RootDocument: cfg.RootDocument,
			Logger:       &logger,
		}),
		ingestor: push.NewIngestor(cfg.Push, logger),
		center:   center,
		dispatch: dispatch.New(center, windows, token, cfg.Push.Icon, logger),
		windows:  windows,
		token:    token,
		log:      logger,
	}
	return a
}

// Install handles the platform's install signal: it opens the current
// generation's cache store and precaches the manifest. Precache failures
// are partial by design and never block the install.
func (a *Agent) Install(ctx context.Context) {
	evt := newEvent(ctx, "install", a.log)
	evt.WaitUntil("precache", a.lifecycle.Install)
	evt.Settle()
}

// Activate handles the platform's activate signal: stale cache generations
// are deleted and all open windows are claimed. Install always completes
// before Activate; Activate always completes before the agent starts
// handling fetch and push events.
func (a *Agent) Activate(ctx context.Context) {
	evt := newEvent(ctx, "activate", a.log)
	evt.WaitUntil("cleanup", a.lifecycle.Activate)
	evt.Settle()
}

// HandlePush handles one inbound push delivery. The payload may be absent
// or malformed; a visible notification is displayed regardless, and the
// event is not released until the display has completed.
func (a *Agent) HandlePush(ctx context.Context, payload []byte) {
	evt := newEvent(ctx, "push", a.log)
	evt.WaitUntil("show-notification", func(ctx context.Context) error {
		d := a.ingestor.Ingest(payload)
		_, err := a.center.Show(ctx, d)
		return err
	})
	evt.Settle()
}

// HandleInteraction handles a user interacting with a displayed
// notification: a tap, an action button press, or a dismissal.
func (a *Agent) HandleInteraction(ctx context.Context, in dispatch.Interaction) {
	evt := newEvent(ctx, "notification-click", a.log)
	evt.WaitUntil("dispatch", func(ctx context.Context) error {
		a.dispatch.HandleInteraction(ctx, in)
		return nil
	})
	evt.Settle()
}

// HandleNotificationClose observes a notification being closed without
// interaction.
func (a *Agent) HandleNotificationClose(id string) {
	a.center.Close(id)
}

// HandleMessage handles a command from the application: a forced
// activation or a token update. Unknown commands are logged and ignored.
func (a *Agent) HandleMessage(ctx context.Context, msg AppMessage) {
	switch msg.Type {
	case MessageSkipWaiting:
		evt := newEvent(ctx, "message", a.log)
		evt.WaitUntil("skip-waiting", a.lifecycle.SkipWaiting)
		evt.Settle()
	case MessageAuthToken:
		a.token.Set(msg.Token)
		a.log.Info().Msg("auth token updated")
	default:
		a.log.Debug().Str("type", msg.Type).Msg("ignoring unknown message")
	}
}

// ServeHTTP implements fetch interception: every outgoing request passes
// through the router, and any cache writes the strategies start are joined
// before the handler returns.
func (a *Agent) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	evt := newEvent(r.Context(), "fetch", a.log)
	a.router.Route(evt, w, r)
	evt.Settle()
}

// Windows exposes the window hub so the serving layer can attach
// application windows.
func (a *Agent) Windows() *client.Hub {
	return a.windows
}

// Center exposes the notification center for inspection.
func (a *Agent) Center() *notify.Center {
	return a.center
}
