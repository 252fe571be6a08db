package storage

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kwren/activityloom/server/activity"
)

// Profile represents an ORM object for a local or remote account
type Profile struct {
	URI         string `gorm:"index;unique"`
	Username    string
	DisplayName string
	Bio         string
	Homepage    string
	AvatarURL   string
	Lat         float64
	Lon         float64
	Created     time.Time
}

type Profiles interface {
	FindProfile(uri string) (*Profile, error)
	FindProfileByName(username string) (*Profile, error)
	SaveProfile(p *Profile) error
}

func (s *sqliteDatabase) FindProfile(uri string) (*Profile, error) {
	var profile Profile
	tx := s.db.First(&profile, Profile{URI: uri})
	if tx.Error == gorm.ErrRecordNotFound {
		return nil, nil
	} else if tx.Error != nil {
		return nil, tx.Error
	}
	return &profile, nil
}

func (s *sqliteDatabase) FindProfileByName(username string) (*Profile, error) {
	var profile Profile
	tx := s.db.First(&profile, Profile{Username: username})
	if tx.Error == gorm.ErrRecordNotFound {
		return nil, nil
	} else if tx.Error != nil {
		return nil, tx.Error
	}
	return &profile, nil
}

func (s *sqliteDatabase) SaveProfile(p *Profile) error {
	tx := s.db.Save(p)
	return tx.Error
}

// AsObject converts the profile row into the wire model.
func (p Profile) AsObject() *activity.ActivityObject {
	title := p.DisplayName
	if title == "" {
		title = p.Username
	}
	obj := &activity.ActivityObject{
		Type:        activity.TypePerson,
		ID:          p.URI,
		Title:       title,
		DisplayName: title,
		Link:        p.Homepage,
		Poco: &activity.PortableContacts{
			PreferredUsername: p.Username,
			DisplayName:       title,
			Note:              p.Bio,
		},
	}
	if p.AvatarURL != "" {
		obj.Avatars = append(obj.Avatars, activity.AvatarLink{
			URL:   p.AvatarURL,
			Width: activity.ProfileAvatarSize,
		})
	}
	if p.Lat != 0 || p.Lon != 0 {
		obj.Geo = &activity.GeoPoint{Lat: p.Lat, Lon: p.Lon}
	}
	return obj
}

// StreamAccount adapts a profile row to the stream's Account.
type StreamAccount struct {
	Profile Profile
	Site    activity.SiteInfo
}

func (a StreamAccount) Registered() time.Time {
	return a.Profile.Created
}

// RegistrationActivity synthesizes the "joined the service" activity
// that closes out a complete account stream.
func (a StreamAccount) RegistrationActivity() (*activity.Activity, error) {
	return &activity.Activity{
		Verb:  activity.VerbJoin,
		Actor: a.Profile.AsObject(),
		Time:  a.Profile.Created,
		ID:    syntheticID(a.Profile.URI, "register"),
		Title: a.Profile.Username + " joined " + a.Site.Name,
		Objects: []activity.ActivityItem{
			&activity.ActivityObject{
				Type:  activity.TypeService,
				ID:    a.Site.URL,
				Title: a.Site.Name,
				Link:  a.Site.URL,
			},
		},
	}, nil
}

// syntheticID makes a stable URN for events that have no natural URI
// of their own.
func syntheticID(parts ...string) string {
	seed := ""
	for _, p := range parts {
		seed += p + "\n"
	}
	return "urn:uuid:" + uuid.NewSHA1(uuid.NameSpaceURL, []byte(seed)).String()
}
