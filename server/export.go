package server

import (
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"

	"github.com/kwren/activityloom/server/activity"
	"github.com/kwren/activityloom/server/storage"
	"github.com/kwren/activityloom/server/stream"
	"github.com/kwren/activityloom/server/telemetry"
)

// userStream assembles the complete stream for a user, bounded below
// by since when the client passes one.
func (s *StreamService) userStream(user *StreamUser, since time.Time) *stream.UserStream {
	account := storage.StreamAccount{Profile: *user.profile, Site: s.site}
	notices := storage.NoticeSource{DB: user.store, Owner: user.profile}
	return stream.New(s.enc, account, since, notices,
		storage.SubscriptionSource{DB: user.store, Owner: user.profile},
		storage.SubscriberSource{DB: user.store, Owner: user.profile},
		storage.MembershipSource{DB: user.store, Owner: user.profile},
	)
}

// sinceParam reads an optional RFC3339 lower bound from the query
// string. A missing or malformed value means a complete stream.
func sinceParam(r *http.Request) time.Time {
	raw := r.URL.Query().Get("since")
	if raw == "" {
		return time.Time{}
	}
	since, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		telemetry.Trace("ignoring bad since parameter [%s]", raw)
		return time.Time{}
	}
	return since
}

func (s *StreamService) atomHandler(w http.ResponseWriter, r *http.Request) {
	telemetry.Request(r, "atomHandler")
	telemetry.Increment("atom_requests", 1)

	user := s.userByName(mux.Vars(r)["user"])
	if user == nil {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "application/atom+xml; charset=utf-8")
	xw := activity.NewStreamWriter(w)
	xw.Raw(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	xw.ElementStart("feed", activity.NamespaceAttrs()...)
	xw.Element("id", fmt.Sprintf("%s/stream/%s.atom", s.Config.URL, user.name))
	xw.Element("title", fmt.Sprintf("%s timeline", user.profile.Username))
	xw.Element("updated", activity.ISO8601(time.Now()))
	s.enc.WriteObject(xw, user.profile.AsObject(), "author")

	if err := s.userStream(user, sinceParam(r)).WriteAtom(r.Context(), xw); err != nil {
		telemetry.Error(err, "writing atom stream for [%s]", user.name)
	}

	xw.ElementEnd("feed")
	if err := xw.Err(); err != nil {
		telemetry.Error(err, "streaming atom response for [%s]", user.name)
	}
}

func (s *StreamService) jsonHandler(w http.ResponseWriter, r *http.Request) {
	telemetry.Request(r, "jsonHandler")
	telemetry.Increment("json_requests", 1)

	user := s.userByName(mux.Vars(r)["user"])
	if user == nil {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := s.userStream(user, sinceParam(r)).WriteJSON(r.Context(), w); err != nil {
		telemetry.Error(err, "writing json stream for [%s]", user.name)
	}
}

// loadPrivateKey reads a PEM private key for signed feed fetches.
func loadPrivateKey(filename string) (crypto.PrivateKey, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(b)
	if block == nil {
		return nil, fmt.Errorf("no PEM block in %s", filename)
	}
	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	return x509.ParsePKCS1PrivateKey(block.Bytes)
}
