// Package client tracks open application windows and carries commands
// between the agent and the application.
package client

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/xid"
	"github.com/rs/zerolog"
)

// Message is a command posted to an application window.
type Message struct {
	Type string `json:"type"`
	URL  string `json:"url,omitempty"`
}

const (
	// MessageNavigate instructs a window to navigate to Message.URL.
	MessageNavigate = "NAVIGATE"
	// MessageFocus instructs a window to bring itself to the foreground.
	MessageFocus = "FOCUS"
)

// OpenFunc opens a brand-new application window at the given URL.
type OpenFunc func(ctx context.Context, url string) error

// Window is one open application window attached to the hub.
type Window struct {
	id  string
	url string

	mu         sync.Mutex
	controlled bool
	msgs       chan Message
	closed     bool
}

func (w *Window) ID() string  { return w.id }
func (w *Window) URL() string { return w.url }

// Controlled reports whether this window has been claimed by the agent.
func (w *Window) Controlled() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.controlled
}

// Messages is the stream of commands posted to this window.
func (w *Window) Messages() <-chan Message {
	return w.msgs
}

// PostMessage delivers a command to the window. Delivery is best-effort:
// a window that has stopped draining its stream drops the message.
func (w *Window) PostMessage(m Message) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return false
	}
	select {
	case w.msgs <- m:
		return true
	default:
		return false
	}
}

// Focus asks the window to bring itself to the foreground.
func (w *Window) Focus() bool {
	return w.PostMessage(Message{Type: MessageFocus})
}

func (w *Window) close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.closed {
		w.closed = true
		close(w.msgs)
	}
}

// Hub is the agent-side registry of open application windows. It is how
// the action dispatcher reaches the application: focus and navigate an
// existing in-scope window, or open a new one when none is attached.
type Hub struct {
	scope string
	open  OpenFunc
	log   zerolog.Logger

	mu      sync.RWMutex
	windows []*Window
}

// NewHub creates a hub for windows under the given URL scope. The open
// function is invoked when no attached window can take a navigation; a nil
// open function logs and drops the request.
func NewHub(scope string, open OpenFunc, logger zerolog.Logger) *Hub {
	if scope == "" {
		scope = "/"
	}
	return &Hub{
		scope: scope,
		open:  open,
		log:   logger.With().Str("component", "client").Logger(),
	}
}

// Register attaches a window currently showing the given URL.
func (h *Hub) Register(url string) *Window {
	w := &Window{
		id:   xid.New().String(),
		url:  url,
		msgs: make(chan Message, 8),
	}
	h.mu.Lock()
	h.windows = append(h.windows, w)
	h.mu.Unlock()
	h.log.Debug().Str("window", w.id).Str("url", url).Msg("window attached")
	return w
}

// Unregister detaches a window and closes its message stream.
func (h *Hub) Unregister(w *Window) {
	h.mu.Lock()
	for i, cur := range h.windows {
		if cur == w {
			h.windows = append(h.windows[:i], h.windows[i+1:]...)
			break
		}
	}
	h.mu.Unlock()
	w.close()
	h.log.Debug().Str("window", w.id).Msg("window detached")
}

// MatchAll returns all attached windows, including ones not yet controlled
// by this agent.
func (h *Hub) MatchAll() []*Window {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Window, len(h.windows))
	copy(out, h.windows)
	return out
}

// Claim marks every attached window as controlled by this agent. Called on
// activation so the new generation takes over without a reload.
func (h *Hub) Claim() {
	for _, w := range h.MatchAll() {
		w.mu.Lock()
		w.controlled = true
		w.mu.Unlock()
	}
	h.log.Debug().Msg("claimed all windows")
}

// OpenOrFocus routes the user to the target URL: the first attached window
// within the hub's scope is sent a navigation command and focused;
// otherwise a new window is opened. Keeping navigation inside an existing
// window avoids proliferating duplicate application windows.
func (h *Hub) OpenOrFocus(ctx context.Context, target string) error {
	for _, w := range h.MatchAll() {
		if !strings.HasPrefix(w.URL(), h.scope) {
			continue
		}
		w.PostMessage(Message{Type: MessageNavigate, URL: target})
		w.Focus()
		h.log.Debug().Str("window", w.ID()).Str("url", target).Msg("navigating existing window")
		return nil
	}
	if h.open == nil {
		h.log.Warn().Str("url", target).Msg("no window attached and no opener configured")
		return nil
	}
	h.log.Debug().Str("url", target).Msg("opening new window")
	return h.open(ctx, target)
}
