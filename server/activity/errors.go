package activity

import (
	"errors"
	"fmt"
)

// ErrUnknownElement is returned when the parser is handed an element
// that is not an Atom entry, RSS item, or ActivityStreams object.
var ErrUnknownElement = errors.New("expecting an atom entry, rss item, or activitystreams object")

// ErrNoProfile is returned by CheckAuthorship when neither the activity
// nor the caller can establish an author.
var ErrNoProfile = errors.New("no author profile could be established")

// errNoObject marks the logged data-loss path where an activity with
// no objects is rendered to JSON.
var errNoObject = errors.New("activity has no objects")

// UnsupportedContentError indicates a text construct we can't decode,
// such as remote src-referenced content or embedded base64.
type UnsupportedContentError struct {
	Reason string
}

func (e *UnsupportedContentError) Error() string {
	return fmt.Sprintf("unsupported content: %s", e.Reason)
}

// NotLocalError indicates that none of a set of candidate URIs could be
// resolved against local storage.
type NotLocalError struct {
	URIs []string
}

func (e *NotLocalError) Error() string {
	return fmt.Sprintf("no local object found for %v", e.URIs)
}
