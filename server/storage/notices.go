package storage

import (
	"time"

	"gorm.io/gorm"

	"github.com/kwren/activityloom/server/activity"
)

// Notice represents an ORM object to store a local or remote post
type Notice struct {
	URI             string `gorm:"index;unique"`
	ProfileURI      string `gorm:"index"`
	Title           string
	Content         string // HTML
	URL             string
	ConversationURI string
	ReplyToURI      string
	ReplyToURL      string
	Lat             float64
	Lon             float64
	Created         time.Time `gorm:"index"`
}

type Notices interface {
	FindNotice(uri string) (*Notice, error)
	SaveNotice(n *Notice) error
	// NoticesBetween returns a profile's notices created in the
	// half-open interval (after, before], newest first. A zero after
	// means no lower bound.
	NoticesBetween(profileURI string, after, before time.Time) ([]Notice, error)
}

func (s *sqliteDatabase) FindNotice(uri string) (*Notice, error) {
	var notice Notice
	tx := s.db.First(&notice, Notice{URI: uri})
	if tx.Error == gorm.ErrRecordNotFound {
		return nil, nil
	} else if tx.Error != nil {
		return nil, tx.Error
	}
	return &notice, nil
}

func (s *sqliteDatabase) SaveNotice(n *Notice) error {
	tx := s.db.Save(n)
	return tx.Error
}

func (s *sqliteDatabase) NoticesBetween(profileURI string, after, before time.Time) (notices []Notice, err error) {
	q := s.db.Where("profile_uri = ? AND created <= ?", profileURI, before)
	if !after.IsZero() {
		q = q.Where("created > ?", after)
	}
	tx := q.Order("created desc").Find(&notices)
	if tx.Error == gorm.ErrRecordNotFound {
		return nil, nil
	} else if tx.Error != nil {
		return nil, tx.Error
	}
	return notices, nil
}

// AsActivity converts the notice row into a post activity by the given
// actor, with any attachments as enclosures.
func (n Notice) AsActivity(actor *activity.ActivityObject, attachments []Attachment) (*activity.Activity, error) {
	obj := &activity.ActivityObject{
		Type:    activity.TypeNote,
		ID:      n.URI,
		Title:   n.Title,
		Content: n.Content,
		Link:    n.URL,
	}
	act := &activity.Activity{
		Verb:    activity.VerbPost,
		Actor:   actor,
		Objects: []activity.ActivityItem{obj},
		Time:    n.Created,
		ID:      n.URI,
		Title:   n.Title,
		Content: n.Content,
		Link:    n.URL,
	}
	if n.ReplyToURI != "" || n.ConversationURI != "" || n.Lat != 0 || n.Lon != 0 {
		ctx := &activity.ActivityContext{
			ReplyToID:    n.ReplyToURI,
			ReplyToURL:   n.ReplyToURL,
			Conversation: n.ConversationURI,
		}
		if n.Lat != 0 || n.Lon != 0 {
			ctx.Location = &activity.GeoPoint{Lat: n.Lat, Lon: n.Lon}
		}
		act.Context = ctx
	}
	for _, at := range attachments {
		act.Enclosures = append(act.Enclosures, activity.Enclosure{
			URL:       at.URL,
			MediaType: at.MediaType,
			Length:    at.Length,
			Title:     at.Title,
		})
		act.Attachments = append(act.Attachments, at.AsObject())
	}
	return act, nil
}
