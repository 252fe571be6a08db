// Package rss watches remote feeds and turns their entries into
// activities. Feeds are parsed with the activity codec first, so
// Atom extensions survive; gofeed is the fallback for mangled or
// JSON feeds.
package rss

import (
	"bytes"
	"context"
	"crypto"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/beevik/etree"
	"github.com/go-fed/httpsig"
	"github.com/mmcdole/gofeed"

	"github.com/kwren/activityloom/server/activity"
	"github.com/kwren/activityloom/server/telemetry"
)

// ActivityHandler is an interface that defines what to do when new
// feed activities are discovered
type ActivityHandler interface {
	StatusCode(code int) // called after any fetch, normally either 200 (OK) or 304 (NotModified)
	NewActivity(act *activity.Activity)
}

// FeedSigner signs outgoing fetches so servers that require
// authorized fetch will answer.
type FeedSigner struct {
	KeyID      string
	PrivateKey crypto.PrivateKey
}

// FeedWatcher implements a small service to watch a remote feed and
// discover new activity
type FeedWatcher struct {
	URL     string
	Client  http.Client
	Handler ActivityHandler
	Signer  *FeedSigner

	parser       *activity.Parser
	fallback     *gofeed.Parser
	etag         string
	lastModified string
	known        map[string]time.Time // known ids to track new and updated items
}

func NewFeedWatcher(url string, handler ActivityHandler) FeedWatcher {
	return FeedWatcher{
		URL:      url,
		Client:   http.Client{},
		Handler:  handler,
		parser:   activity.NewParser(),
		fallback: gofeed.NewParser(),
		known:    make(map[string]time.Time),
	}
}

// Check the remote feed for changes
func (c *FeedWatcher) Check(ctx context.Context) error {
	r, err := http.NewRequestWithContext(ctx, "GET", c.URL, nil)
	if err != nil {
		return err
	}
	if c.lastModified != "" {
		r.Header.Set("If-Modified-Since", c.lastModified)
		r.Header.Set("If-None-Match", c.etag)
	}
	if c.Signer != nil {
		if err := c.Signer.sign(r); err != nil {
			return err
		}
	}

	resp, err := c.Client.Do(r)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	c.Handler.StatusCode(resp.StatusCode)
	if resp.StatusCode == http.StatusNotModified {
		// Feed not modified, nothing to do
		return nil
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("response code %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	newActivities, err := c.parseFeed(body)
	if err != nil {
		return err
	}

	for _, act := range newActivities {
		c.Handler.NewActivity(act)
	}

	if resp.Header.Get("ETag") != "" {
		c.etag = resp.Header.Get("ETag")
		c.lastModified = resp.Header.Get("Last-Modified")
	}

	return nil
}

// AddKnown marks an activity id as already seen, so items persisted
// from an earlier run aren't delivered again.
func (c *FeedWatcher) AddKnown(id string, updated time.Time) {
	c.known[id] = updated
}

func (c *FeedWatcher) parseFeed(body []byte) ([]*activity.Activity, error) {
	activities, err := c.parseDOM(body)
	if err != nil {
		telemetry.Trace("feed %s not parseable as XML, trying fallback: %v", c.URL, err)
		activities, err = c.parseFallback(body)
		if err != nil {
			return nil, err
		}
	}

	fresh := make([]*activity.Activity, 0)
	for _, act := range activities {
		if act.ID == "" {
			act.ID = act.Link
		}
		if _, ok := c.known[act.ID]; !ok {
			c.known[act.ID] = act.Time
			fresh = append(fresh, act)
		}
	}

	// sort from oldest to newest
	sort.Slice(fresh, func(i int, j int) bool {
		return fresh[i].Time.Before(fresh[j].Time)
	})

	return fresh, nil
}

// parseDOM runs each entry or item through the activity codec. A bad
// entry is skipped and counted, not fatal.
func (c *FeedWatcher) parseDOM(body []byte) ([]*activity.Activity, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(body); err != nil {
		return nil, err
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("empty document")
	}

	var entries []*etree.Element
	switch root.Tag {
	case "feed":
		entries = root.SelectElements("entry")
	case "rss":
		entries = activity.Descendants(root, "item", activity.RSSNone)
	default:
		return nil, fmt.Errorf("unrecognized feed root <%s>", root.Tag)
	}

	activities := make([]*activity.Activity, 0, len(entries))
	for _, el := range entries {
		act, err := c.parser.Parse(el)
		if err != nil {
			telemetry.Error(err, "skipping feed entry in %s", c.URL)
			telemetry.Increment("feed_entries_skipped", 1)
			continue
		}
		activities = append(activities, act)
	}
	return activities, nil
}

// parseFallback handles feeds the DOM parser can't, including JSON
// feeds and XML with broken encodings.
func (c *FeedWatcher) parseFallback(body []byte) ([]*activity.Activity, error) {
	feed, err := c.fallback.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	channel := &activity.ActivityObject{
		Type:  activity.TypePerson,
		ID:    feed.Link,
		Title: feed.Title,
		Link:  feed.Link,
	}
	activities := make([]*activity.Activity, 0, len(feed.Items))
	for _, item := range feed.Items {
		act := &activity.Activity{
			Verb:  activity.VerbPost,
			Actor: channel,
			ID:    item.Link,
			Title: item.Title,
			Link:  item.Link,
			Objects: []activity.ActivityItem{
				&activity.ActivityObject{
					Type:    activity.TypeNote,
					ID:      item.Link,
					Title:   item.Title,
					Content: item.Description,
					Link:    item.Link,
				},
			},
		}
		if item.GUID != "" {
			act.ID = item.GUID
		}
		if item.PublishedParsed != nil {
			act.Time = *item.PublishedParsed
		} else {
			// Some feeds have mangled dates
			// e.g. "Sat, 26 Nov 2022 11:04:03 GMT"
			act.Time = time.Now().UTC()
		}
		activities = append(activities, act)
	}
	return activities, nil
}

// Watch polls the feed until the context ends or the process is told
// to stop.
func (c *FeedWatcher) Watch(ctx context.Context, period time.Duration) {
	sigChannel := make(chan os.Signal, 1)
	signal.Notify(sigChannel, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	c.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			telemetry.Log("feed watcher context ended: %v", ctx.Err())
			return
		case <-sigChannel:
			telemetry.Log("feed watcher received end signal")
			return
		case <-ticker.C:
			if err := c.Check(ctx); err != nil {
				telemetry.Error(err, "checking feed %s", c.URL)
				telemetry.Increment("feed_check_errors", 1)
			}
		}
	}
}

// sign attaches an HTTP signature to the GET request.
func (s *FeedSigner) sign(r *http.Request) error {
	signer, _, err := httpsig.NewSigner(
		[]httpsig.Algorithm{httpsig.RSA_SHA256},
		httpsig.DigestSha256,
		[]string{httpsig.RequestTarget, "host", "date"},
		httpsig.Signature,
		60,
	)
	if err != nil {
		return err
	}
	if r.Header.Get("Date") == "" {
		r.Header.Set("Date", time.Now().UTC().Format(http.TimeFormat))
	}
	if r.Header.Get("Host") == "" {
		r.Header.Set("Host", r.URL.Host)
	}
	return signer.SignRequest(s.PrivateKey, s.KeyID, r, nil)
}
