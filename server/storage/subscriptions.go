package storage

import (
	"time"

	"gorm.io/gorm"

	"github.com/kwren/activityloom/server/activity"
)

// Subscription represents an ORM object for one profile following another
type Subscription struct {
	SubscriberURI  string `gorm:"index"`
	SubscriberName string
	TargetURI      string `gorm:"index"`
	TargetName     string
	Created        time.Time `gorm:"index"`
}

type Subscriptions interface {
	SubscriptionsBy(subscriberURI string) ([]Subscription, error)
	SubscribersOf(targetURI string) ([]Subscription, error)
	SaveSubscription(s *Subscription) error
}

func (s *sqliteDatabase) SubscriptionsBy(subscriberURI string) (subs []Subscription, err error) {
	tx := s.db.Where("subscriber_uri = ?", subscriberURI).Order("created desc").Find(&subs)
	if tx.Error == gorm.ErrRecordNotFound {
		return nil, nil
	} else if tx.Error != nil {
		return nil, tx.Error
	}
	return subs, nil
}

func (s *sqliteDatabase) SubscribersOf(targetURI string) (subs []Subscription, err error) {
	tx := s.db.Where("target_uri = ?", targetURI).Order("created desc").Find(&subs)
	if tx.Error == gorm.ErrRecordNotFound {
		return nil, nil
	} else if tx.Error != nil {
		return nil, tx.Error
	}
	return subs, nil
}

func (s *sqliteDatabase) SaveSubscription(sub *Subscription) error {
	tx := s.db.Save(sub)
	return tx.Error
}

// AsIncomingActivity renders the same follow seen from the target's
// side, with the subscriber as the acting party.
func (s Subscription) AsIncomingActivity(target *activity.ActivityObject) (*activity.Activity, error) {
	subscriber := &activity.ActivityObject{
		Type:        activity.TypePerson,
		ID:          s.SubscriberURI,
		Title:       s.SubscriberName,
		DisplayName: s.SubscriberName,
		Link:        s.SubscriberURI,
	}
	return &activity.Activity{
		Verb:    activity.VerbFollow,
		Actor:   subscriber,
		Objects: []activity.ActivityItem{target},
		Time:    s.Created,
		ID:      syntheticID("follow", s.SubscriberURI, s.TargetURI, s.Created.Format(time.RFC3339)),
		Title:   s.SubscriberName + " started following " + s.TargetName,
	}, nil
}

// AsActivity converts the subscription row into a follow activity.
func (s Subscription) AsActivity(actor *activity.ActivityObject) (*activity.Activity, error) {
	target := &activity.ActivityObject{
		Type:        activity.TypePerson,
		ID:          s.TargetURI,
		Title:       s.TargetName,
		DisplayName: s.TargetName,
		Link:        s.TargetURI,
	}
	return &activity.Activity{
		Verb:    activity.VerbFollow,
		Actor:   actor,
		Objects: []activity.ActivityItem{target},
		Time:    s.Created,
		ID:      syntheticID("follow", s.SubscriberURI, s.TargetURI, s.Created.Format(time.RFC3339)),
		Title:   s.SubscriberName + " started following " + s.TargetName,
	}, nil
}
