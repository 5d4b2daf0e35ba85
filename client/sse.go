package client

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// ServeHTTP attaches the calling application window to the hub over
// server-sent events. The window reports its current URL in the "url"
// query parameter and receives commands as JSON events until it
// disconnects, at which point it is detached.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	url := r.URL.Query().Get("url")
	if url == "" {
		url = "/"
	}
	win := h.Register(url)
	defer h.Unregister(win)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case m, ok := <-win.Messages():
			if !ok {
				return
			}
			b, err := json.Marshal(m)
			if err != nil {
				h.log.Error().Err(err).Msg("could not encode window message")
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", b)
			flusher.Flush()
		}
	}
}
