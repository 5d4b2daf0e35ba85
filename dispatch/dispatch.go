// Package dispatch routes user interaction with displayed notifications.
package dispatch

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/rooster-app/rooster-agent/client"
	"github.com/rooster-app/rooster-agent/notify"
	"github.com/rooster-app/rooster-agent/push"
)

// TokenSource provides the bearer token for silent actions, when one is held.
type TokenSource interface {
	Token() (string, bool)
}

// Interaction describes one user interaction with a displayed notification.
// Action is the id of the pressed action button, or empty for a bare tap.
type Interaction struct {
	NotificationID string
	Action         string
}

const confirmationTag = "accept-confirmation"

// Dispatcher is the interaction state machine. Each interaction resolves
// to exactly one of: nothing (dismiss), a silent background accept, or the
// window-open/focus path. Failures along the silent path fall back to
// opening the application, so the user is never left with an un-actioned
// assignment, and no error ever escapes the handler.
type Dispatcher struct {
	center  *notify.Center
	windows *client.Hub
	tokens  TokenSource
	client  *http.Client
	icon    string
	log     zerolog.Logger
}

func New(center *notify.Center, windows *client.Hub, tokens TokenSource, icon string, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		center:  center,
		windows: windows,
		tokens:  tokens,
		client:  &http.Client{Timeout: 10 * time.Second},
		icon:    icon,
		log:     logger.With().Str("component", "dispatch").Logger(),
	}
}

// HandleInteraction consumes one notification interaction. The referenced
// notification is always closed first; what follows depends on the action.
func (d *Dispatcher) HandleInteraction(ctx context.Context, in Interaction) {
	n, ok := d.center.Get(in.NotificationID)
	d.center.Close(in.NotificationID)
	if !ok {
		d.log.Warn().Str("id", in.NotificationID).Msg("interaction with unknown notification")
		return
	}

	logger := d.log.With().Str("id", n.ID).Str("action", in.Action).Logger()
	target := targetURL(n.Data)

	switch in.Action {
	case push.ActionDismiss:
		logger.Debug().Msg("notification dismissed")

	case push.ActionAccept:
		if acceptURL := acceptURL(n.Data); acceptURL != "" {
			if d.silentAccept(ctx, acceptURL, logger) {
				d.showConfirmation(ctx, logger)
				return
			}
			d.openApp(ctx, target, logger)
			return
		}
		// accept without an accept URL behaves like a plain open
		d.openApp(ctx, target, logger)

	default:
		// open, decline, reassign, a bare tap, and any unrecognized
		// action id all route into the application
		d.openApp(ctx, target, logger)
	}
}

// silentAccept resolves an assignment with an authenticated background
// call instead of opening the application. A missing token, a transport
// error, and a non-2xx status are all the same expected failure mode.
func (d *Dispatcher) silentAccept(ctx context.Context, url string, logger zerolog.Logger) bool {
	token, ok := d.tokens.Token()
	if !ok {
		logger.Warn().Msg("no auth token held, cannot accept silently")
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		logger.Warn().Err(err).Str("url", url).Msg("invalid accept URL")
		return false
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	res, err := d.client.Do(req)
	if err != nil {
		logger.Warn().Err(err).Str("url", url).Msg("accept request failed")
		return false
	}
	defer res.Body.Close()
	io.Copy(io.Discard, res.Body)

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		logger.Warn().Int("status", res.StatusCode).Str("url", url).Msg("accept rejected by server")
		return false
	}
	logger.Info().Str("url", url).Msg("assignment accepted silently")
	return true
}

func (d *Dispatcher) showConfirmation(ctx context.Context, logger zerolog.Logger) {
	_, err := d.center.Show(ctx, push.Descriptor{
		Title: "Assignment Accepted",
		Body:  "Your assignment has been confirmed.",
		Icon:  d.icon,
		Tag:   confirmationTag,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("could not show confirmation notification")
	}
}

func (d *Dispatcher) openApp(ctx context.Context, target string, logger zerolog.Logger) {
	if err := d.windows.OpenOrFocus(ctx, target); err != nil {
		logger.Warn().Err(err).Str("url", target).Msg("could not open application window")
	}
}

func targetURL(data map[string]any) string {
	if s, ok := data[push.DataURLKey].(string); ok && s != "" {
		return s
	}
	return "/"
}

func acceptURL(data map[string]any) string {
	aux, ok := data[push.DataPayloadKey].(map[string]any)
	if !ok {
		return ""
	}
	s, _ := aux[push.AcceptURLKey].(string)
	return s
}
