// Package push turns untrusted push payloads into notification descriptors.
//
// Payloads arrive from the push transport as raw bytes: structured JSON,
// plain text, or nothing at all. The ingestor always produces exactly one
// displayable descriptor, degrading field by field instead of failing.
package push

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
)

// Action is one button on a displayed notification.
type Action struct {
	Action string `json:"action"`
	Title  string `json:"title"`
}

// Reserved keys in the notification data slot. Caller-supplied auxiliary
// data is nested under DataPayloadKey so it cannot clobber the reserved
// top-level fields.
const (
	DataURLKey     = "url"
	DataArrivalKey = "dateOfArrival"
	DataPayloadKey = "payload"

	// AcceptURLKey, inside the auxiliary payload, marks an assignment
	// that can be accepted silently from the notification itself.
	AcceptURLKey = "accept_url"

	ActionOpen    = "open"
	ActionDismiss = "dismiss"
	ActionAccept  = "accept"
)

// Descriptor is the normalized description of a notification to display.
// It is constructed once per push event and consumed synchronously; the
// Data slot is stored with the platform notification and read back by the
// action dispatcher when the user interacts with it.
type Descriptor struct {
	Title              string
	Body               string
	Icon               string
	Badge              string
	URL                string
	Tag                string
	Actions            []Action
	Vibrate            []int
	RequireInteraction bool
	Data               map[string]any
}

// Config holds the hard-coded defaults applied before the payload overlay.
type Config struct {
	Title string
	Body  string
	Icon  string
}

// Ingestor builds notification descriptors from inbound push payloads.
type Ingestor struct {
	cfg Config
	log zerolog.Logger
	now func() time.Time
}

func NewIngestor(cfg Config, logger zerolog.Logger) *Ingestor {
	if cfg.Title == "" {
		cfg.Title = "Rooster"
	}
	if cfg.Body == "" {
		cfg.Body = "You have a new notification"
	}
	if cfg.Icon == "" {
		cfg.Icon = "/icons/Icon-192.png"
	}
	return &Ingestor{
		cfg: cfg,
		log: logger.With().Str("component", "push").Logger(),
		now: time.Now,
	}
}

// Ingest produces the descriptor for one push event. The payload may be
// empty (absent), plain text, or arbitrary JSON; it is treated as
// adversarial input throughout. A payload field wins over the default only
// when it is present and usable; an unparseable payload degrades to the
// raw text as the notification body. Ingest never fails.
func (i *Ingestor) Ingest(payload []byte) Descriptor {
	d := Descriptor{
		Title:              i.cfg.Title,
		Body:               i.cfg.Body,
		Icon:               i.cfg.Icon,
		Badge:              i.cfg.Icon,
		URL:                "/",
		Vibrate:            []int{100, 50, 100},
		RequireInteraction: true,
	}

	var aux map[string]any
	if len(payload) > 0 {
		var raw map[string]any
		if err := json.Unmarshal(payload, &raw); err != nil {
			i.log.Warn().Err(err).Msg("could not parse push payload, using raw text as body")
			d.Body = string(payload)
		} else {
			aux = overlay(&d, raw)
		}
	}

	if len(d.Actions) == 0 {
		d.Actions = []Action{
			{Action: ActionOpen, Title: "Open"},
			{Action: ActionDismiss, Title: "Dismiss"},
		}
	}

	d.Data = map[string]any{
		DataURLKey:     d.URL,
		DataArrivalKey: i.now().UnixMilli(),
	}
	if len(aux) > 0 {
		d.Data[DataPayloadKey] = aux
	}

	return d
}

// overlay applies recognized payload fields onto the defaults. Each field
// is coerced independently: a field of the wrong shape is simply ignored,
// it never invalidates the rest of the payload. The auxiliary data mapping
// is returned for nesting into the descriptor's data slot.
func overlay(d *Descriptor, raw map[string]any) map[string]any {
	if s := stringField(raw, "title"); s != "" {
		d.Title = s
	}
	if s := stringField(raw, "body"); s != "" {
		d.Body = s
	}
	if s := stringField(raw, "icon"); s != "" {
		d.Icon = s
	}
	if s := stringField(raw, "url"); s != "" {
		d.URL = s
	}
	// a tag is attached only when the payload supplies one: untagged
	// pushes each get their own notification
	if s := stringField(raw, "tag"); s != "" {
		d.Tag = s
	}
	if actions := actionsField(raw); len(actions) > 0 {
		d.Actions = actions
	}
	aux, _ := raw["data"].(map[string]any)
	return aux
}

func stringField(raw map[string]any, key string) string {
	s, _ := raw[key].(string)
	return s
}

func actionsField(raw map[string]any) []Action {
	list, ok := raw["actions"].([]any)
	if !ok {
		return nil
	}
	actions := make([]Action, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		a := Action{
			Action: stringField(m, "action"),
			Title:  stringField(m, "title"),
		}
		if a.Action == "" {
			continue
		}
		actions = append(actions, a)
	}
	return actions
}
