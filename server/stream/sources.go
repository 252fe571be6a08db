package stream

import (
	"context"
	"time"

	"github.com/kwren/activityloom/server/activity"
)

// Event is any record that can appear in a user's activity stream:
// a subscription, a group membership, a plugin-contributed item.
// Notices reach the stream through the Notices interface instead so
// they can be fetched in bounded time windows.
type Event interface {
	EventTime() time.Time
	AsActivity() (*activity.Activity, error)
}

// EventSource loads a complete, unordered set of events. Sources are
// read eagerly and in full; only notices are streamed.
type EventSource interface {
	Events(ctx context.Context) ([]Event, error)
}

// Notices fetches a user's notices inside the half-open time interval
// (after, before], newest first. A zero after means no lower bound.
// The upper bound is inclusive so window seams neither drop nor repeat
// a notice.
type Notices interface {
	Between(ctx context.Context, after, before time.Time) ([]Event, error)
}

// Account is the owner of a stream.
type Account interface {
	Registered() time.Time
	RegistrationActivity() (*activity.Activity, error)
}

// EventsFunc adapts a function to the EventSource interface.
type EventsFunc func(ctx context.Context) ([]Event, error)

func (f EventsFunc) Events(ctx context.Context) ([]Event, error) {
	return f(ctx)
}
