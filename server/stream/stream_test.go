package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kwren/activityloom/server/activity"
)

var streamEpoch = time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)

func at(hours int) time.Time {
	return streamEpoch.Add(time.Duration(hours) * time.Hour)
}

type fakeEvent struct {
	t     time.Time
	title string
	err   error
}

func (e fakeEvent) EventTime() time.Time { return e.t }

func (e fakeEvent) AsActivity() (*activity.Activity, error) {
	if e.err != nil {
		return nil, e.err
	}
	return &activity.Activity{
		Verb:  activity.VerbPost,
		ID:    "tag:test," + e.title,
		Title: e.title,
		Time:  e.t,
	}, nil
}

// fakeNotices honors the half-open (after, before] contract and counts
// fetches so window stepping can be observed.
type fakeNotices struct {
	items []fakeEvent
	calls int
}

func (n *fakeNotices) Between(ctx context.Context, after, before time.Time) ([]Event, error) {
	n.calls++
	var out []fakeEvent
	for _, item := range n.items {
		if !after.IsZero() && !item.t.After(after) {
			continue
		}
		if item.t.After(before) {
			continue
		}
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].t.After(out[j].t) })
	events := make([]Event, len(out))
	for i := range out {
		events[i] = out[i]
	}
	return events, nil
}

type fakeAccount struct {
	registered time.Time
}

func (a fakeAccount) Registered() time.Time { return a.registered }

func (a fakeAccount) RegistrationActivity() (*activity.Activity, error) {
	return &activity.Activity{
		Verb:  activity.VerbJoin,
		Title: "registered",
		Time:  a.registered,
	}, nil
}

func sourceOf(events ...fakeEvent) EventSource {
	return EventsFunc(func(ctx context.Context) ([]Event, error) {
		out := make([]Event, len(events))
		for i := range events {
			out[i] = events[i]
		}
		return out, nil
	})
}

func titles(acts []*activity.Activity) []string {
	out := make([]string, len(acts))
	for i, act := range acts {
		out[i] = act.Title
	}
	return out
}

func TestUserStream_Interleaving(t *testing.T) {
	notices := &fakeNotices{items: []fakeEvent{
		{t: at(35), title: "notice 35"},
		{t: at(25), title: "notice 25"},
		{t: at(22), title: "notice 22"},
		{t: at(15), title: "notice 15"},
		{t: at(5), title: "notice 5"},
	}}
	follows := sourceOf(
		fakeEvent{t: at(30), title: "follow 30"},
		fakeEvent{t: at(10), title: "follow 10"},
	)
	joins := sourceOf(fakeEvent{t: at(20), title: "join 20"})

	s := New(&activity.Encoder{}, fakeAccount{registered: at(0)}, time.Time{}, notices, follows, joins)
	acts, err := s.Activities(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"notice 35",
		"follow 30",
		"notice 25",
		"notice 22",
		"join 20",
		"notice 15",
		"follow 10",
		"notice 5",
		"registered",
	}, titles(acts))
}

func TestUserStream_TiesReverseLoadOrder(t *testing.T) {
	first := sourceOf(fakeEvent{t: at(10), title: "loaded first"})
	second := sourceOf(fakeEvent{t: at(10), title: "loaded second"})

	s := New(&activity.Encoder{}, fakeAccount{registered: at(0)}, time.Time{}, &fakeNotices{}, first, second)
	acts, err := s.Activities(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"loaded second", "loaded first", "registered"}, titles(acts))
}

func TestUserStream_SkipsBadEvents(t *testing.T) {
	source := sourceOf(
		fakeEvent{t: at(30), title: "good 30"},
		fakeEvent{t: at(20), title: "bad 20", err: errors.New("corrupt row")},
		fakeEvent{t: at(10), title: "good 10"},
	)

	s := New(&activity.Encoder{}, fakeAccount{registered: at(0)}, time.Time{}, &fakeNotices{}, source)
	acts, err := s.Activities(context.Background())
	require.NoError(t, err, "one bad record must not kill the stream")

	assert.Equal(t, []string{"good 30", "good 10", "registered"}, titles(acts))
}

func TestUserStream_SinceCutoff(t *testing.T) {
	notices := &fakeNotices{items: []fakeEvent{
		{t: at(25), title: "notice 25"},
		{t: at(5), title: "notice 5"},
	}}

	s := New(&activity.Encoder{}, fakeAccount{registered: at(0)}, at(10), notices)
	acts, err := s.Activities(context.Background())
	require.NoError(t, err)

	// notices before the bound are gone, and so is the registration
	// activity since it predates the bound
	assert.Equal(t, []string{"notice 25"}, titles(acts))
}

func TestUserStream_SinceBeforeRegistration(t *testing.T) {
	s := New(&activity.Encoder{}, fakeAccount{registered: at(10)}, at(5), &fakeNotices{})
	acts, err := s.Activities(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"registered"}, titles(acts))
}

func TestUserStream_WindowedFetch(t *testing.T) {
	// a gap much wider than one window forces several bounded fetches
	notices := &fakeNotices{items: []fakeEvent{
		{t: streamEpoch.Add(200 * 24 * time.Hour), title: "new notice"},
		{t: streamEpoch.Add(1 * 24 * time.Hour), title: "old notice"},
	}}
	s := New(&activity.Encoder{}, fakeAccount{registered: streamEpoch}, streamEpoch, notices)
	acts, err := s.Activities(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"new notice", "old notice", "registered"}, titles(acts))
	assert.Greater(t, notices.calls, 1, "fetches should be windowed")
}

func TestUserStream_WriteJSON(t *testing.T) {
	notices := &fakeNotices{items: []fakeEvent{
		{t: at(15), title: "notice 15"},
	}}
	source := sourceOf(fakeEvent{t: at(10), title: "follow 10"})

	enc := &activity.Encoder{Site: activity.SiteInfo{Name: "Test", URL: "https://test.example"}}
	s := New(enc, fakeAccount{registered: at(0)}, time.Time{}, notices, source)

	var buf bytes.Buffer
	require.NoError(t, s.WriteJSON(context.Background(), &buf))

	out := buf.String()
	assert.NotContains(t, out, "\n")

	var parsed []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &parsed))
	require.Len(t, parsed, 3)
}

func TestUserStream_WriteAtom(t *testing.T) {
	notices := &fakeNotices{items: []fakeEvent{
		{t: at(15), title: "notice 15"},
	}}
	enc := &activity.Encoder{}
	s := New(enc, fakeAccount{registered: at(0)}, time.Time{}, notices)

	w := activity.NewTreeWriter()
	w.ElementStart("feed")
	require.NoError(t, s.WriteAtom(context.Background(), w))
	w.ElementEnd("feed")

	feed := w.Root()
	require.NotNil(t, feed)
	entries := feed.SelectElements("entry")
	require.Len(t, entries, 2)
}
