// Package stream merges a user's independently-timestamped collections
// into one globally time-descending activity stream, rendered as Atom
// or a JSON array, either buffered or streamed.
package stream

import (
	"context"
	"encoding/json"
	"io"
	"sort"
	"time"

	"github.com/kwren/activityloom/server/activity"
	"github.com/kwren/activityloom/server/telemetry"
)

// noticeWindow bounds each notice fetch so a very long account history
// never has to fit in memory at once.
const noticeWindow = 90 * 24 * time.Hour

// UserStream produces one user's complete activity stream. Non-notice
// events are loaded eagerly and sorted once; notices are spliced in
// chronologically between them, fetched lazily in time windows.
type UserStream struct {
	enc     *activity.Encoder
	account Account
	since   time.Time // zero means from the beginning of time
	notices Notices
	sources []EventSource
}

func New(enc *activity.Encoder, account Account, since time.Time, notices Notices, sources ...EventSource) *UserStream {
	return &UserStream{
		enc:     enc,
		account: account,
		since:   since,
		notices: notices,
		sources: sources,
	}
}

// Activities collects the whole stream in memory, for short documents.
func (s *UserStream) Activities(ctx context.Context) ([]*activity.Activity, error) {
	var out []*activity.Activity
	err := s.walk(ctx, func(act *activity.Activity) error {
		out = append(out, act)
		return nil
	})
	return out, err
}

// WriteAtom streams the merged entries to an XML writer. The caller
// owns the surrounding feed element.
func (s *UserStream) WriteAtom(ctx context.Context, w activity.XMLWriter) error {
	opts := activity.WriteOptions{Tag: "entry", Author: true, Source: true}
	return s.walk(ctx, func(act *activity.Activity) error {
		s.enc.WriteActivity(w, act, opts)
		return nil
	})
}

// WriteJSON streams the merged activities as one JSON array with no
// newlines anywhere in the output.
func (s *UserStream) WriteJSON(ctx context.Context, w io.Writer) error {
	if _, err := io.WriteString(w, "["); err != nil {
		return err
	}
	first := true
	err := s.walk(ctx, func(act *activity.Activity) error {
		b, err := json.Marshal(s.enc.ActivityMap(act))
		if err != nil {
			return err
		}
		if !first {
			if _, err := io.WriteString(w, ","); err != nil {
				return err
			}
		}
		first = false
		_, err = w.Write(b)
		return err
	})
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, "]")
	return err
}

// walk emits the merged stream newest-first: before each non-notice
// event, all notices newer than it (and older than the previous event)
// go out, then the event itself; after the last event the remaining
// notices down to the since bound, and finally the synthetic account
// registration activity.
func (s *UserStream) walk(ctx context.Context, emit func(*activity.Activity) error) error {
	events, err := s.loadEvents(ctx)
	if err != nil {
		return err
	}

	var prev time.Time // zero means no upper bound yet
	for _, ev := range events {
		t := ev.EventTime()
		if err := s.emitNotices(ctx, t, prev, emit); err != nil {
			return err
		}
		if act, convErr := ev.AsActivity(); convErr != nil {
			// one bad record must not kill the whole stream
			telemetry.Error(convErr, "converting stream event at %s", t)
			telemetry.Increment("stream_skipped", 1)
		} else if err := emit(act); err != nil {
			return err
		}
		prev = t
	}

	floor := s.since
	registered := s.account.Registered()
	if floor.IsZero() {
		floor = registered
	}
	if err := s.emitNotices(ctx, floor, prev, emit); err != nil {
		return err
	}

	if s.since.IsZero() || !s.since.After(registered) {
		if act, convErr := s.account.RegistrationActivity(); convErr != nil {
			telemetry.Error(convErr, "building registration activity")
		} else if err := emit(act); err != nil {
			return err
		}
	}
	return nil
}

// loadEvents reads every source in full and sorts the union newest
// first. Events with identical times come out in reverse load order.
func (s *UserStream) loadEvents(ctx context.Context) ([]Event, error) {
	var events []Event
	for _, src := range s.sources {
		batch, err := src.Events(ctx)
		if err != nil {
			return nil, err
		}
		events = append(events, batch...)
	}
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].EventTime().After(events[j].EventTime())
	})
	return events, nil
}

// emitNotices fetches and emits all notices in the half-open interval
// (after, before], newest first, window by window.
func (s *UserStream) emitNotices(ctx context.Context, after, before time.Time, emit func(*activity.Activity) error) error {
	if before.IsZero() {
		before = time.Now().UTC().Add(time.Minute)
	}
	if !after.IsZero() && !before.After(after) {
		return nil
	}

	emitBatch := func(batch []Event) error {
		for _, ev := range batch {
			act, convErr := ev.AsActivity()
			if convErr != nil {
				telemetry.Error(convErr, "converting notice at %s", ev.EventTime())
				telemetry.Increment("stream_skipped", 1)
				continue
			}
			if err := emit(act); err != nil {
				return err
			}
		}
		return nil
	}

	if after.IsZero() {
		// no lower bound at all; a single fetch is the best we can do
		batch, err := s.notices.Between(ctx, after, before)
		if err != nil {
			return err
		}
		return emitBatch(batch)
	}

	for upper := before; upper.After(after); {
		lower := upper.Add(-noticeWindow)
		if lower.Before(after) {
			lower = after
		}
		batch, err := s.notices.Between(ctx, lower, upper)
		if err != nil {
			return err
		}
		if err := emitBatch(batch); err != nil {
			return err
		}
		upper = lower
	}
	return nil
}
