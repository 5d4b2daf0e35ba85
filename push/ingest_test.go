package push

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testArrival = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testIngestor(cfg Config) *Ingestor {
	i := NewIngestor(cfg, zerolog.Nop())
	i.now = func() time.Time { return testArrival }
	return i
}

func TestIngestEmptyPayload(t *testing.T) {
	i := testIngestor(Config{})

	d := i.Ingest(nil)

	assert.Equal(t, "Rooster", d.Title)
	assert.Equal(t, "You have a new notification", d.Body)
	assert.Equal(t, "/icons/Icon-192.png", d.Icon)
	assert.Equal(t, "/icons/Icon-192.png", d.Badge)
	assert.Equal(t, "/", d.URL)
	assert.Empty(t, d.Tag)
	assert.Equal(t, []int{100, 50, 100}, d.Vibrate)
	assert.True(t, d.RequireInteraction)
	assert.Equal(t, []Action{
		{Action: ActionOpen, Title: "Open"},
		{Action: ActionDismiss, Title: "Dismiss"},
	}, d.Actions)
	assert.Equal(t, map[string]any{
		DataURLKey:     "/",
		DataArrivalKey: testArrival.UnixMilli(),
	}, d.Data)
}

func TestIngestConfiguredDefaults(t *testing.T) {
	i := testIngestor(Config{Title: "App", Body: "hello", Icon: "/i.png"})

	d := i.Ingest(nil)

	assert.Equal(t, "App", d.Title)
	assert.Equal(t, "hello", d.Body)
	assert.Equal(t, "/i.png", d.Icon)
	assert.Equal(t, "/i.png", d.Badge)
}

func TestIngestStructuredPayload(t *testing.T) {
	i := testIngestor(Config{})

	d := i.Ingest([]byte(`{
		"title": "New Assignment",
		"body": "Shift on Monday",
		"icon": "/custom.png",
		"url": "/assignments/42",
		"tag": "assignment-42",
		"actions": [
			{"action": "accept", "title": "Accept"},
			{"action": "decline", "title": "Decline"}
		],
		"data": {"accept_url": "https://api.example.com/accept/42"}
	}`))

	assert.Equal(t, "New Assignment", d.Title)
	assert.Equal(t, "Shift on Monday", d.Body)
	assert.Equal(t, "/custom.png", d.Icon)
	assert.Equal(t, "/assignments/42", d.URL)
	assert.Equal(t, "assignment-42", d.Tag)
	assert.Equal(t, []Action{
		{Action: ActionAccept, Title: "Accept"},
		{Action: "decline", Title: "Decline"},
	}, d.Actions)
	assert.Equal(t, map[string]any{
		DataURLKey:     "/assignments/42",
		DataArrivalKey: testArrival.UnixMilli(),
		DataPayloadKey: map[string]any{
			AcceptURLKey: "https://api.example.com/accept/42",
		},
	}, d.Data)
}

func TestIngestUnparseablePayload(t *testing.T) {
	i := testIngestor(Config{})

	d := i.Ingest([]byte("shift starts in 30 minutes"))

	assert.Equal(t, "Rooster", d.Title)
	assert.Equal(t, "shift starts in 30 minutes", d.Body)
	assert.Equal(t, "/", d.URL)
}

func TestIngestIgnoresWrongShapes(t *testing.T) {
	i := testIngestor(Config{})

	// every recognized field with the wrong type, plus one good one
	d := i.Ingest([]byte(`{
		"title": 5,
		"body": "valid body",
		"url": ["nope"],
		"tag": {},
		"actions": "not a list",
		"data": 17
	}`))

	assert.Equal(t, "Rooster", d.Title)
	assert.Equal(t, "valid body", d.Body)
	assert.Equal(t, "/", d.URL)
	assert.Empty(t, d.Tag)
	assert.Equal(t, []Action{
		{Action: ActionOpen, Title: "Open"},
		{Action: ActionDismiss, Title: "Dismiss"},
	}, d.Actions)
	assert.NotContains(t, d.Data, DataPayloadKey)
}

func TestIngestSkipsMalformedActions(t *testing.T) {
	i := testIngestor(Config{})

	d := i.Ingest([]byte(`{
		"actions": [
			"just a string",
			{"title": "no action id"},
			{"action": "open", "title": "Open it"}
		]
	}`))

	require.Len(t, d.Actions, 1)
	assert.Equal(t, Action{Action: ActionOpen, Title: "Open it"}, d.Actions[0])
}

func TestIngestNeverFails(t *testing.T) {
	i := testIngestor(Config{})

	for _, payload := range [][]byte{
		nil,
		{},
		[]byte("null"),
		[]byte("[1,2,3]"),
		[]byte(`"just a string"`),
		[]byte("{"),
		{0xff, 0xfe},
	} {
		d := i.Ingest(payload)
		assert.NotEmpty(t, d.Title)
		assert.NotEmpty(t, d.Body)
		assert.NotEmpty(t, d.Actions)
	}
}
