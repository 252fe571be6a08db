package storage

import (
	"gorm.io/gorm"

	"github.com/kwren/activityloom/server/activity"
)

// Attachment represents an ORM object for a file attached to a notice
type Attachment struct {
	NoticeURI string `gorm:"index"`
	URL       string
	MediaType string
	Length    int64
	Title     string
}

type Attachments interface {
	AttachmentsFor(noticeURI string) ([]Attachment, error)
	SaveAttachment(a *Attachment) error
}

func (s *sqliteDatabase) AttachmentsFor(noticeURI string) (attachments []Attachment, err error) {
	tx := s.db.Where("notice_uri = ?", noticeURI).Find(&attachments)
	if tx.Error == gorm.ErrRecordNotFound {
		return nil, nil
	} else if tx.Error != nil {
		return nil, tx.Error
	}
	return attachments, nil
}

func (s *sqliteDatabase) SaveAttachment(a *Attachment) error {
	tx := s.db.Save(a)
	return tx.Error
}

// AsObject converts the attachment row into an activity object typed
// from its media type.
func (a Attachment) AsObject() *activity.ActivityObject {
	return &activity.ActivityObject{
		Type:  activity.MimeTypeToObjectType(a.MediaType),
		ID:    a.URL,
		Title: a.Title,
		Link:  a.URL,
	}
}
