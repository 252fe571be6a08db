package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/kwren/activityloom/server/activity"
	"github.com/kwren/activityloom/server/geo"
	"github.com/kwren/activityloom/server/rss"
	"github.com/kwren/activityloom/server/storage"
	"github.com/kwren/activityloom/server/telemetry"
)

// feedPollInterval is how often remote feed sources are checked.
const feedPollInterval = 15 * time.Minute

// StreamService serves user activity streams over http and mirrors
// configured remote feeds into local storage.
type StreamService struct {
	Config Config
	Server http.Server
	router *mux.Router
	site   activity.SiteInfo
	enc    *activity.Encoder
	users  []StreamUser
}

type StreamUser struct {
	name    string
	profile *storage.Profile
	store   storage.Database
	watcher *rss.FeedWatcher
}

func (s *StreamService) addHandlers() {
	s.router.HandleFunc("/", homeHandler).Methods("GET")
	s.router.HandleFunc("/stream/{user}.atom", s.atomHandler).Methods("GET")
	s.router.HandleFunc("/stream/{user}.json", s.jsonHandler).Methods("GET")
}

// userByName finds the configured user for a request, or nil.
func (s *StreamService) userByName(name string) *StreamUser {
	for i := range s.users {
		if s.users[i].name == name {
			return &s.users[i]
		}
	}
	return nil
}

// Close anything related to the service before exiting
func (s *StreamService) Close() {
	for _, user := range s.users {
		user.store.Close()
	}
	telemetry.LogCounters()
}

func (s *StreamService) ListenAndServe(ctx context.Context) error {
	// Spawn feed watcher goroutines
	for _, user := range s.users {
		if user.watcher != nil {
			go user.watcher.Watch(ctx, feedPollInterval)
		}
	}
	if s.Config.Server.useTLS() {
		telemetry.Log("tls listener starting on port %d", s.Config.Server.Port)
		return s.Server.ListenAndServeTLS(s.Config.Server.Certificate, s.Config.Server.PrivateKey)
	} else {
		telemetry.Log("http listener starting on port %d", s.Config.Server.Port)
		return s.Server.ListenAndServe()
	}
}

// Start launches the listener in the background.
func (s *StreamService) Start(ctx context.Context) {
	go func() {
		if err := s.ListenAndServe(ctx); err != nil && err != http.ErrServerClosed {
			telemetry.Error(err, "listener stopped")
		}
	}()
}

// Stop shuts down the listener and closes storage.
func (s *StreamService) Stop(ctx context.Context) {
	if err := s.Server.Shutdown(ctx); err != nil {
		telemetry.Error(err, "shutting down listener")
	}
	s.Close()
}

// NewService creates an http service to serve user activity streams
func NewService(cfg Config) StreamService {
	svc := StreamService{
		Config: cfg,
		router: mux.NewRouter(),
		users:  make([]StreamUser, 0),
		site: activity.SiteInfo{
			Name: cfg.SiteName,
			URL:  cfg.URL,
		},
	}

	svc.enc = &activity.Encoder{Site: svc.site}
	if cfg.Geocoder != "" {
		svc.enc.Geo = geo.NewResolver(cfg.Geocoder)
	}

	for _, usercfg := range cfg.Users {
		dbName := fmt.Sprintf("user_%s.db", usercfg.Name)
		store := storage.NewDatabase(dbName)
		if err := store.Open(); err != nil {
			telemetry.Error(err, "opening sqlite database [%s]", dbName)
			continue
		}

		profile, err := localProfile(store, cfg, usercfg)
		if err != nil {
			telemetry.Error(err, "loading profile [%s]", usercfg.Name)
			store.Close()
			continue
		}

		streamUser := StreamUser{
			name:    usercfg.Name,
			profile: profile,
			store:   store,
		}

		if usercfg.SourceURL != "" {
			streamUser.watcher = newUserWatcher(store, profile, usercfg)
		}

		svc.users = append(svc.users, streamUser)
	}

	svc.addHandlers()

	svc.Server = http.Server{
		Handler:      svc.router,
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		WriteTimeout: time.Second * 15,
		ReadTimeout:  time.Second * 15,
		IdleTimeout:  time.Second * 60,
	}
	return svc
}

// localProfile loads the user's profile row, creating it on first run.
func localProfile(store storage.Database, cfg Config, usercfg userConfig) (*storage.Profile, error) {
	uri := fmt.Sprintf("%s/user/%s", cfg.URL, usercfg.Name)
	profile, err := store.FindProfile(uri)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		profile = &storage.Profile{
			URI:         uri,
			Username:    usercfg.Name,
			DisplayName: usercfg.DisplayName,
			Homepage:    fmt.Sprintf("%s/%s", cfg.URL, usercfg.Name),
			Created:     time.Now().UTC(),
		}
		if err := store.SaveProfile(profile); err != nil {
			return nil, err
		}
	}
	return profile, nil
}

// newUserWatcher builds a feed watcher that mirrors a remote feed
// into the user's notice table. Notices already stored are marked
// known so restarts don't duplicate them.
func newUserWatcher(store storage.Database, profile *storage.Profile, usercfg userConfig) *rss.FeedWatcher {
	ingester := &feedIngester{store: store, profile: profile}
	watcher := rss.NewFeedWatcher(usercfg.SourceURL, ingester)
	if usercfg.PrivKeyFile != "" && usercfg.KeyID != "" {
		if key, err := loadPrivateKey(usercfg.PrivKeyFile); err != nil {
			telemetry.Error(err, "loading private key [%s]", usercfg.PrivKeyFile)
		} else {
			watcher.Signer = &rss.FeedSigner{KeyID: usercfg.KeyID, PrivateKey: key}
		}
	}

	existing, err := store.NoticesBetween(profile.URI, time.Time{}, time.Now().UTC())
	if err != nil {
		telemetry.Error(err, "priming feed watcher for [%s]", profile.Username)
	}
	for _, n := range existing {
		watcher.AddKnown(n.URI, n.Created)
	}
	return &watcher
}

// feedIngester persists activities discovered in a remote feed.
type feedIngester struct {
	store   storage.Database
	profile *storage.Profile
}

func (f *feedIngester) StatusCode(code int) {
	telemetry.Increment(fmt.Sprintf("feed_status_%d", code), 1)
}

func (f *feedIngester) NewActivity(act *activity.Activity) {
	// group and multi-author feeds carry entries by others; a mismatch
	// is logged inside CheckAuthorship and the entry kept
	if _, err := activity.CheckAuthorship(act, f.profile.AsObject()); err != nil {
		telemetry.Error(err, "dropping unattributable entry [%s]", act.ID)
		telemetry.Increment("feed_entries_unattributed", 1)
		return
	}

	notice := storage.Notice{
		URI:        act.ID,
		ProfileURI: f.profile.URI,
		Title:      act.Title,
		Content:    act.Content,
		URL:        act.Link,
		Created:    act.Time,
	}
	if len(act.Objects) == 1 {
		if obj, ok := act.Objects[0].(*activity.ActivityObject); ok {
			if notice.Content == "" {
				notice.Content = obj.Content
			}
			if notice.URL == "" {
				notice.URL = obj.Link
			}
		}
	}
	if act.Context != nil {
		notice.ReplyToURI = act.Context.ReplyToID
		notice.ReplyToURL = act.Context.ReplyToURL
		notice.ConversationURI = act.Context.Conversation
		if act.Context.Location != nil {
			notice.Lat = act.Context.Location.Lat
			notice.Lon = act.Context.Location.Lon
		}
	}
	if notice.ReplyToURI != "" && notice.ReplyToURL == "" {
		// a feed may name the parent only by id; fill the reply link
		// when the parent turns out to be one of our own notices
		resolver := storage.Resolver{DB: f.store}
		if parent, err := activity.FindLocalObject(nil, resolver, []string{notice.ReplyToURI}, activity.TypeNote); err == nil {
			notice.ReplyToURL = parent.Link
		}
	}
	if err := f.store.SaveNotice(&notice); err != nil {
		telemetry.Error(err, "saving notice [%s]", notice.URI)
		return
	}
	for _, enc := range act.Enclosures {
		att := storage.Attachment{
			NoticeURI: notice.URI,
			URL:       enc.URL,
			MediaType: enc.MediaType,
			Length:    enc.Length,
			Title:     enc.Title,
		}
		if err := f.store.SaveAttachment(&att); err != nil {
			telemetry.Error(err, "saving attachment [%s]", att.URL)
		}
	}
	telemetry.Increment("feed_notices_saved", 1)
}

func homeHandler(w http.ResponseWriter, r *http.Request) {
	telemetry.Request(r, "homeHandler")
	telemetry.Increment("home_requests", 1)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `<html><title>activityloom</title>
<body>
<p>This is <a href="https://github.com/kwren/activityloom/">activityloom</a>,
a small server that publishes user activity streams as Atom and
ActivityStreams JSON. There's nothing to see here.</p>
</body>
</html>`)
}
