package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kwren/activityloom/server/activity"
	"github.com/kwren/activityloom/server/storage"
)

func newTestService(t *testing.T) (*StreamService, storage.Database, *storage.Profile) {
	t.Helper()

	store := storage.NewDatabase(":memory:")
	require.NoError(t, store.Open())
	t.Cleanup(store.Close)

	profile := &storage.Profile{
		URI:      "https://social.example/user/evan",
		Username: "evan",
		Created:  time.Date(2009, 6, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.SaveProfile(profile))

	site := activity.SiteInfo{Name: "Example Social", URL: "https://social.example"}
	svc := &StreamService{
		Config: Config{URL: site.URL, SiteName: site.Name},
		router: mux.NewRouter(),
		site:   site,
		enc:    &activity.Encoder{Site: site},
		users: []StreamUser{
			{name: "evan", profile: profile, store: store},
		},
	}
	svc.addHandlers()
	return svc, store, profile
}

func TestAtomHandler(t *testing.T) {
	svc, store, profile := newTestService(t)

	require.NoError(t, store.SaveNotice(&storage.Notice{
		URI:        "tag:social.example,2022:notice:1",
		ProfileURI: profile.URI,
		Title:      "hello world",
		Content:    "<p>hello world</p>",
		URL:        "https://social.example/notice/1",
		Created:    time.Date(2022, 11, 18, 13, 25, 34, 0, time.UTC),
	}))

	r := httptest.NewRequest("GET", "/stream/evan.atom", nil)
	w := httptest.NewRecorder()
	svc.router.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/atom+xml")

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(w.Body.String()))
	feed := doc.Root()
	require.NotNil(t, feed)
	assert.Equal(t, "feed", feed.Tag)

	entries := feed.SelectElements("entry")
	require.Len(t, entries, 2, "the notice plus the registration activity")
	assert.Equal(t, "tag:social.example,2022:notice:1",
		activity.ChildContent(entries[0], "id", activity.AtomNS))

	// the stream owner appears as the feed author
	author := feed.SelectElement("author")
	require.NotNil(t, author)
	assert.Equal(t, profile.URI, author.SelectElement("uri").Text())
}

func TestJSONHandler(t *testing.T) {
	svc, store, profile := newTestService(t)

	require.NoError(t, store.SaveNotice(&storage.Notice{
		URI:        "tag:social.example,2022:notice:1",
		ProfileURI: profile.URI,
		Content:    "<p>hello world</p>",
		Created:    time.Date(2022, 11, 18, 13, 25, 34, 0, time.UTC),
	}))
	require.NoError(t, store.SaveSubscription(&storage.Subscription{
		SubscriberURI:  "https://other.example/user/mira",
		SubscriberName: "mira",
		TargetURI:      profile.URI,
		TargetName:     profile.Username,
		Created:        time.Date(2022, 11, 17, 0, 0, 0, 0, time.UTC),
	}))

	r := httptest.NewRequest("GET", "/stream/evan.json", nil)
	w := httptest.NewRecorder()
	svc.router.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "\n")

	var acts []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &acts))
	require.Len(t, acts, 3)
	assert.Equal(t, "post", acts[0]["verb"])
	assert.Equal(t, "follow", acts[1]["verb"])
	assert.Equal(t, "join", acts[2]["verb"])

	// the incoming follow is attributed to the remote subscriber
	follower := acts[1]["actor"].(map[string]any)
	assert.Equal(t, "https://other.example/user/mira", follower["id"])

	provider := acts[0]["provider"].(map[string]any)
	assert.Equal(t, "Example Social", provider["displayName"])
}

func TestJSONHandler_Since(t *testing.T) {
	svc, store, profile := newTestService(t)

	old := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2022, 11, 18, 13, 25, 34, 0, time.UTC)
	require.NoError(t, store.SaveNotice(&storage.Notice{
		URI: "tag:social.example,2022:notice:old", ProfileURI: profile.URI, Created: old,
	}))
	require.NoError(t, store.SaveNotice(&storage.Notice{
		URI: "tag:social.example,2022:notice:new", ProfileURI: profile.URI, Created: recent,
	}))

	r := httptest.NewRequest("GET", "/stream/evan.json?since=2021-01-01T00:00:00Z", nil)
	w := httptest.NewRecorder()
	svc.router.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	var acts []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &acts))
	require.Len(t, acts, 1, "old notices and the registration fall outside the bound")
	assert.Equal(t, "tag:social.example,2022:notice:new", acts[0]["id"])
}

func TestFeedIngester(t *testing.T) {
	_, store, profile := newTestService(t)

	require.NoError(t, store.SaveNotice(&storage.Notice{
		URI:        "tag:social.example,2022:notice:parent",
		ProfileURI: profile.URI,
		URL:        "https://social.example/notice/parent",
		Created:    time.Date(2022, 11, 1, 0, 0, 0, 0, time.UTC),
	}))

	ingester := &feedIngester{store: store, profile: profile}
	ingester.NewActivity(&activity.Activity{
		ID:      "tag:feed.example,2022:entry:1",
		Verb:    activity.VerbPost,
		Content: "<p>a reply</p>",
		Time:    time.Date(2022, 11, 2, 0, 0, 0, 0, time.UTC),
		// authored by someone other than the watched profile, which a
		// group timeline legitimately does
		Actor:   &activity.ActivityObject{Type: activity.TypePerson, ID: "https://elsewhere.example/user/kim"},
		Context: &activity.ActivityContext{ReplyToID: "tag:social.example,2022:notice:parent"},
	})

	saved, err := store.FindNotice("tag:feed.example,2022:entry:1")
	require.NoError(t, err)
	require.NotNil(t, saved, "entries by other authors are kept")
	assert.Equal(t, profile.URI, saved.ProfileURI)
	assert.Equal(t, "tag:social.example,2022:notice:parent", saved.ReplyToURI)
	assert.Equal(t, "https://social.example/notice/parent", saved.ReplyToURL,
		"reply link filled in from the stored parent notice")
}

func TestHandlers_UnknownUser(t *testing.T) {
	svc, _, _ := newTestService(t)

	for _, path := range []string{"/stream/nobody.atom", "/stream/nobody.json"} {
		r := httptest.NewRequest("GET", path, nil)
		w := httptest.NewRecorder()
		svc.router.ServeHTTP(w, r)
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}
}
