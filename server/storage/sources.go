package storage

import (
	"context"
	"time"

	"github.com/kwren/activityloom/server/activity"
	"github.com/kwren/activityloom/server/stream"
)

// NoticeSource feeds a profile's stored notices into a stream in
// bounded time windows. It satisfies stream.Notices.
type NoticeSource struct {
	DB    Database
	Owner *Profile
}

func (s NoticeSource) Between(ctx context.Context, after, before time.Time) ([]stream.Event, error) {
	notices, err := s.DB.NoticesBetween(s.Owner.URI, after, before)
	if err != nil {
		return nil, err
	}
	actor := s.Owner.AsObject()
	events := make([]stream.Event, 0, len(notices))
	for _, n := range notices {
		events = append(events, noticeEvent{db: s.DB, actor: actor, notice: n})
	}
	return events, nil
}

type noticeEvent struct {
	db     Database
	actor  *activity.ActivityObject
	notice Notice
}

func (e noticeEvent) EventTime() time.Time { return e.notice.Created }

func (e noticeEvent) AsActivity() (*activity.Activity, error) {
	attachments, err := e.db.AttachmentsFor(e.notice.URI)
	if err != nil {
		return nil, err
	}
	return e.notice.AsActivity(e.actor, attachments)
}

// SubscriptionSource loads all of a profile's follow events.
type SubscriptionSource struct {
	DB    Database
	Owner *Profile
}

func (s SubscriptionSource) Events(ctx context.Context) ([]stream.Event, error) {
	subs, err := s.DB.SubscriptionsBy(s.Owner.URI)
	if err != nil {
		return nil, err
	}
	actor := s.Owner.AsObject()
	events := make([]stream.Event, 0, len(subs))
	for _, sub := range subs {
		events = append(events, subscriptionEvent{actor: actor, sub: sub})
	}
	return events, nil
}

type subscriptionEvent struct {
	actor *activity.ActivityObject
	sub   Subscription
}

func (e subscriptionEvent) EventTime() time.Time { return e.sub.Created }

func (e subscriptionEvent) AsActivity() (*activity.Activity, error) {
	return e.sub.AsActivity(e.actor)
}

// SubscriberSource loads the follow events where the profile is the
// one being followed.
type SubscriberSource struct {
	DB    Database
	Owner *Profile
}

func (s SubscriberSource) Events(ctx context.Context) ([]stream.Event, error) {
	subs, err := s.DB.SubscribersOf(s.Owner.URI)
	if err != nil {
		return nil, err
	}
	target := s.Owner.AsObject()
	events := make([]stream.Event, 0, len(subs))
	for _, sub := range subs {
		events = append(events, subscriberEvent{target: target, sub: sub})
	}
	return events, nil
}

type subscriberEvent struct {
	target *activity.ActivityObject
	sub    Subscription
}

func (e subscriberEvent) EventTime() time.Time { return e.sub.Created }

func (e subscriberEvent) AsActivity() (*activity.Activity, error) {
	return e.sub.AsIncomingActivity(e.target)
}

// MembershipSource loads all of a profile's group join events.
type MembershipSource struct {
	DB    Database
	Owner *Profile
}

func (s MembershipSource) Events(ctx context.Context) ([]stream.Event, error) {
	members, err := s.DB.MembershipsOf(s.Owner.URI)
	if err != nil {
		return nil, err
	}
	actor := s.Owner.AsObject()
	events := make([]stream.Event, 0, len(members))
	for _, m := range members {
		events = append(events, membershipEvent{actor: actor, membership: m})
	}
	return events, nil
}

type membershipEvent struct {
	actor      *activity.ActivityObject
	membership GroupMembership
}

func (e membershipEvent) EventTime() time.Time { return e.membership.Created }

func (e membershipEvent) AsActivity() (*activity.Activity, error) {
	return e.membership.AsActivity(e.actor)
}
