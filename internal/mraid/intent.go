package mraid

import (
	"time"

	"github.com/adforge/preview/internal/shared/id"
)

// IntentKind identifies a creative-initiated action reported to the host.
type IntentKind string

const (
	IntentOpen                IntentKind = "open"
	IntentClose               IntentKind = "close"
	IntentExpand              IntentKind = "expand"
	IntentResize              IntentKind = "resize"
	IntentPlayVideo           IntentKind = "playVideo"
	IntentStorePicture        IntentKind = "storePicture"
	IntentCreateCalendarEvent IntentKind = "createCalendarEvent"
)

// Intent is an outbound record of a user/creative action. Delivery is
// fire-and-forget: the session never waits for acknowledgement and multiple
// intents may be emitted back to back.
type Intent struct {
	ID        id.IntentID `json:"id"`
	Kind      IntentKind  `json:"kind"`
	Args      []any       `json:"args,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// IntentSink receives intents from a session. Implementations must not
// block; the session calls the sink inline from API methods.
type IntentSink func(Intent)

func newIntent(kind IntentKind, args ...any) Intent {
	return Intent{
		ID:        id.NewIntentID(),
		Kind:      kind,
		Args:      args,
		Timestamp: time.Now(),
	}
}
