package storage

import (
	"time"

	"gorm.io/gorm"

	"github.com/kwren/activityloom/server/activity"
)

// GroupMembership represents an ORM object for a profile's membership
// in a group
type GroupMembership struct {
	MemberURI     string `gorm:"index"`
	MemberName    string
	GroupURI      string `gorm:"index"`
	GroupName     string
	GroupHomepage string
	Created       time.Time `gorm:"index"`
}

type Memberships interface {
	MembershipsOf(memberURI string) ([]GroupMembership, error)
	SaveMembership(m *GroupMembership) error
}

func (s *sqliteDatabase) MembershipsOf(memberURI string) (members []GroupMembership, err error) {
	tx := s.db.Where("member_uri = ?", memberURI).Order("created desc").Find(&members)
	if tx.Error == gorm.ErrRecordNotFound {
		return nil, nil
	} else if tx.Error != nil {
		return nil, tx.Error
	}
	return members, nil
}

func (s *sqliteDatabase) SaveMembership(m *GroupMembership) error {
	tx := s.db.Save(m)
	return tx.Error
}

// AsActivity converts the membership row into a join activity.
func (m GroupMembership) AsActivity(actor *activity.ActivityObject) (*activity.Activity, error) {
	group := &activity.ActivityObject{
		Type:        activity.TypeGroup,
		ID:          m.GroupURI,
		Title:       m.GroupName,
		DisplayName: m.GroupName,
		Link:        m.GroupHomepage,
	}
	if group.Link == "" {
		group.Link = m.GroupURI
	}
	return &activity.Activity{
		Verb:    activity.VerbJoin,
		Actor:   actor,
		Objects: []activity.ActivityItem{group},
		Time:    m.Created,
		ID:      syntheticID("join", m.MemberURI, m.GroupURI, m.Created.Format(time.RFC3339)),
		Title:   m.MemberName + " joined the group " + m.GroupName,
	}, nil
}
