package storage

import (
	"github.com/kwren/activityloom/server/activity"
)

// Resolver looks up local objects in the database for the codec's
// authorship checks. It satisfies activity.LocalResolver.
type Resolver struct {
	DB Database
}

func (r Resolver) ProfileByURI(uri string) (*activity.ActivityObject, error) {
	profile, err := r.DB.FindProfile(uri)
	if err != nil || profile == nil {
		return nil, err
	}
	return profile.AsObject(), nil
}

func (r Resolver) NoticeByURI(uri string) (*activity.ActivityObject, error) {
	notice, err := r.DB.FindNotice(uri)
	if err != nil || notice == nil {
		return nil, err
	}
	return &activity.ActivityObject{
		Type:    activity.TypeNote,
		ID:      notice.URI,
		Title:   notice.Title,
		Content: notice.Content,
		Link:    notice.URL,
	}, nil
}
