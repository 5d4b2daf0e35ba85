package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/justinas/alice"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	agent "github.com/rooster-app/rooster-agent"
	"github.com/rooster-app/rooster-agent/dispatch"
)

// maximum size of push payloads and app messages accepted by the bridge
const maxEventBytes = 64 << 10 // 64 KB

// newBridge exposes the agent's platform events over HTTP: the push
// transport, the application's message channel, notification interactions
// and the window attach point live under /_agent/, everything else is
// fetch interception.
func newBridge(a *agent.Agent) http.Handler {
	r := chi.NewRouter()

	r.Route("/_agent", func(r chi.Router) {
		r.Post("/push", handlePush(a))
		r.Post("/message", handleMessage(a))
		r.Get("/window", a.Windows().ServeHTTP)
		r.Get("/notifications", handleListNotifications(a))
		r.Post("/notifications/{id}/click", handleClick(a))
		r.Post("/notifications/{id}/close", handleClose(a))
	})

	// every other request is intercepted by the router
	r.Handle("/*", a)

	chain := alice.New(
		hlog.NewHandler(log.Logger),
		hlog.MethodHandler("method"),
		hlog.URLHandler("url"),
		hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
			hlog.FromRequest(r).Debug().
				Int("status", status).
				Int("size", size).
				Dur("duration", duration).
				Msg("request handled")
		}),
	)
	return chain.Then(r)
}

func handlePush(a *agent.Agent) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxEventBytes))
		if err != nil {
			http.Error(w, "payload too large", http.StatusRequestEntityTooLarge)
			return
		}
		// an empty body is a push without payload
		a.HandlePush(r.Context(), payload)
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleMessage(a *agent.Agent) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var msg agent.AppMessage
		if err := decodeJSON(w, r, &msg); err != nil {
			http.Error(w, "invalid message", http.StatusBadRequest)
			return
		}
		a.HandleMessage(r.Context(), msg)
		w.WriteHeader(http.StatusAccepted)
	}
}

func handleClick(a *agent.Agent) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Action string `json:"action"`
		}
		// an empty or absent body is a bare tap
		if err := decodeJSON(w, r, &body); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, "invalid interaction", http.StatusBadRequest)
			return
		}
		a.HandleInteraction(r.Context(), dispatch.Interaction{
			NotificationID: chi.URLParam(r, "id"),
			Action:         body.Action,
		})
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleClose(a *agent.Agent) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a.HandleNotificationClose(chi.URLParam(r, "id"))
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleListNotifications(a *agent.Agent) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(a.Center().List()); err != nil {
			hlog.FromRequest(r).Warn().Err(err).Msg("could not write notification list")
		}
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEventBytes)).Decode(v)
}
