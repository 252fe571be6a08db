package activity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestISO8601(t *testing.T) {
	ts := time.Date(2022, 11, 18, 8, 25, 34, 0, time.FixedZone("EST", -5*3600))
	assert.Equal(t, "2022-11-18T13:25:34+00:00", ISO8601(ts),
		"timestamps normalize to UTC with an explicit +00:00 offset")
}

func TestWriteActivity_FlattensSimplePost(t *testing.T) {
	enc := &Encoder{}
	act := &Activity{
		Verb: VerbPost,
		Time: time.Date(2022, 11, 18, 13, 25, 34, 0, time.UTC),
		Objects: []ActivityItem{&ActivityObject{
			Type:    TypeNote,
			ID:      "tag:example.net,2022:notice:1",
			Title:   "hello",
			Content: "<p>hello</p>",
			Link:    "https://example.net/notice/1",
		}},
	}

	w := NewTreeWriter()
	enc.WriteActivity(w, act, WriteOptions{Namespaces: true})
	entry := w.Root()
	require.NotNil(t, entry)

	// the object's fields land directly in the entry
	assert.Equal(t, "tag:example.net,2022:notice:1", entry.SelectElement("id").Text())
	assert.Nil(t, Child(entry, "object", SpecNS), "flattened posts carry no activity:object")
	assert.Equal(t, "2022-11-18T13:25:34+00:00", entry.SelectElement("published").Text())
	assert.Equal(t, entry.SelectElement("published").Text(), entry.SelectElement("updated").Text())

	// and a parser reading it back reconstructs the implicit object
	p := NewParser()
	back, err := p.Parse(entry)
	require.NoError(t, err)
	assert.Equal(t, VerbPost, back.Verb)
	require.Len(t, back.Objects, 1)
	obj := back.Objects[0].(*ActivityObject)
	assert.Equal(t, "tag:example.net,2022:notice:1", obj.ID)
	assert.Equal(t, "<p>hello</p>", obj.Content)
	assert.Equal(t, act.Time, back.Time)
}

func TestWriteActivity_NonPostKeepsObjectElement(t *testing.T) {
	enc := &Encoder{}
	act := &Activity{
		Verb: VerbFavorite,
		ID:   "tag:example.net,2022:fave:1",
		Objects: []ActivityItem{&ActivityObject{
			Type: TypeNote,
			ID:   "tag:example.net,2022:notice:40",
		}},
	}

	w := NewTreeWriter()
	enc.WriteActivity(w, act, WriteOptions{Namespaces: true})
	entry := w.Root()
	require.NotNil(t, entry)

	assert.Equal(t, "tag:example.net,2022:fave:1", entry.SelectElement("id").Text())
	objEl := Child(entry, "object", SpecNS)
	require.NotNil(t, objEl)
	assert.Equal(t, "tag:example.net,2022:notice:40", ChildContent(objEl, "id", AtomNS))
}

func TestWriteActivity_EmbeddedActivity(t *testing.T) {
	enc := &Encoder{}
	act := &Activity{
		Verb: VerbShare,
		ID:   "tag:example.net,2022:share:1",
		Objects: []ActivityItem{&Activity{
			Verb: VerbPost,
			ID:   "tag:other.example,2022:post:5",
			Objects: []ActivityItem{&ActivityObject{
				Type: TypeNote,
				ID:   "tag:other.example,2022:notice:5",
			}},
		}},
	}

	w := NewTreeWriter()
	enc.WriteActivity(w, act, WriteOptions{Namespaces: true})
	entry := w.Root()

	objEl := Child(entry, "object", SpecNS)
	require.NotNil(t, objEl)
	// the nested element is marked as a full activity first
	firstChild := objEl.ChildElements()[0]
	assert.Equal(t, "object-type", firstChild.Tag)
	assert.Equal(t, TypeActivity, firstChild.Text())
}

func TestWriteObject_AuthorQuirks(t *testing.T) {
	enc := &Encoder{}
	obj := &ActivityObject{
		Type:        TypePerson,
		ID:          "https://example.net/user/1",
		Title:       "Evan P.",
		DisplayName: "Evan P.",
		Poco:        &PortableContacts{PreferredUsername: "evan", DisplayName: "Evan P."},
		Avatars:     []AvatarLink{{URL: "https://example.net/a.png", MediaType: "image/png", Width: 96, Height: 96}},
	}

	w := NewTreeWriter()
	enc.WriteObject(w, obj, "author")
	author := w.Root()
	require.NotNil(t, author)

	// id goes out as uri, and name carries the preferred username
	require.NotNil(t, author.SelectElement("uri"))
	assert.Equal(t, "https://example.net/user/1", author.SelectElement("uri").Text())
	assert.Nil(t, author.SelectElement("id"))
	assert.Equal(t, "evan", author.SelectElement("name").Text())

	link := author.SelectElement("link")
	require.NotNil(t, link)
	assert.Equal(t, "96", link.SelectAttrValue("media:width", ""))

	assert.Equal(t, "evan", ChildContent(author, "preferredUsername", PocoNS))
}

func TestWriteObject_NonAuthorUsesIDAndTitle(t *testing.T) {
	enc := &Encoder{}
	obj := &ActivityObject{
		Type:  TypeNote,
		ID:    "tag:example.net,2022:notice:1",
		Title: "a note",
	}

	w := NewTreeWriter()
	enc.WriteObject(w, obj, "activity:object")
	root := w.Root()
	require.NotNil(t, root)
	assert.Equal(t, "tag:example.net,2022:notice:1", ChildContent(root, "id", ""))
	assert.Equal(t, "a note", ChildContent(root, "title", ""))
	assert.Nil(t, root.SelectElement("uri"))
}

func TestWriteContext(t *testing.T) {
	enc := &Encoder{}
	act := &Activity{
		Verb:    VerbPost,
		Objects: []ActivityItem{&ActivityObject{Type: TypeNote, ID: "n1"}},
		Context: &ActivityContext{
			ReplyToID:    "tag:example.net,2022:notice:41",
			ReplyToURL:   "https://example.net/notice/41",
			Conversation: "https://example.net/conversation/9",
			Attention: []Attention{
				{URI: "https://other.example/user/7", ObjectType: TypePerson},
			},
			Location: &GeoPoint{Lat: 45.5, Lon: -122.6},
		},
	}

	w := NewTreeWriter()
	enc.WriteActivity(w, act, WriteOptions{Namespaces: true})
	entry := w.Root()

	reply := Child(entry, "in-reply-to", ThreadNS)
	require.NotNil(t, reply)
	assert.Equal(t, "tag:example.net,2022:notice:41", reply.SelectAttrValue("ref", ""))
	assert.Equal(t, "https://example.net/notice/41", reply.SelectAttrValue("href", ""))

	assert.Equal(t, "https://example.net/notice/41", GetLink(entry, RelRelated, ""))
	assert.Equal(t, "https://example.net/conversation/9", GetLink(entry, RelConversation, ""))
	mentioned := GetLinks(entry, RelMentioned, "")
	require.Len(t, mentioned, 1)
	assert.Equal(t, TypePerson, mentioned[0].SelectAttrValue("ostatus:object-type", ""))
	assert.Equal(t, "45.5 -122.6", ChildContent(entry, "point", GeoRSSNS))
}

func TestActivityMap(t *testing.T) {
	enc := &Encoder{Site: SiteInfo{Name: "Example Social", URL: "https://example.net"}}
	act := &Activity{
		Verb:    VerbPost,
		ID:      "tag:example.net,2022:notice:1",
		Title:   "hello",
		Content: "<p>hello</p>",
		Link:    "https://example.net/notice/1",
		Time:    time.Date(2022, 11, 18, 13, 25, 34, 0, time.UTC),
		Actor:   &ActivityObject{Type: TypePerson, ID: "https://example.net/user/1", DisplayName: "evan"},
		Objects: []ActivityItem{&ActivityObject{
			Type:    TypeNote,
			ID:      "tag:example.net,2022:notice:1",
			Content: "<p>hello</p>",
		}},
		Categories: []Category{{Term: "golang"}},
		Context: &ActivityContext{
			ReplyToID:    "tag:example.net,2022:notice:0",
			Conversation: "https://example.net/conversation/9",
			Attention:    []Attention{{URI: "https://other.example/user/7"}},
		},
	}

	m := enc.ActivityMap(act)

	assert.Equal(t, "post", m["verb"], "verbs are canonical short names in JSON")
	assert.Equal(t, "2022-11-18T13:25:34+00:00", m["published"])

	provider := m["provider"].(map[string]any)
	assert.Equal(t, "Example Social", provider["displayName"])

	obj := m["object"].(map[string]any)
	assert.Equal(t, "note", obj["objectType"])
	tags := obj["tags"].([]map[string]any)
	require.Len(t, tags, 1)
	assert.Equal(t, TypeHashtag, tags[0]["objectType"])
	assert.Equal(t, "golang", tags[0]["displayName"])

	reply := obj["inReplyTo"].(map[string]any)
	assert.Equal(t, "tag:example.net,2022:notice:0", reply["id"])

	to := m["to"].([]map[string]any)
	require.Len(t, to, 1)
	assert.Equal(t, "person", to[0]["objectType"], "mentions default to person")

	statusNet := m["status_net"].(map[string]any)
	assert.Equal(t, "https://example.net/conversation/9", statusNet["conversation"])

	// pruned: no summary, no target, no location
	_, ok := m["summary"]
	assert.False(t, ok)
	_, ok = m["target"]
	assert.False(t, ok)
	_, ok = m["location"]
	assert.False(t, ok)
}

func TestActivityMap_ShareUnwrap(t *testing.T) {
	enc := &Encoder{}
	act := &Activity{
		Verb: VerbShare,
		ID:   "tag:example.net,2022:share:1",
		Objects: []ActivityItem{&Activity{
			Verb: VerbPost,
			ID:   "tag:other.example,2022:post:5",
			Objects: []ActivityItem{&ActivityObject{
				Type:    TypeNote,
				ID:      "tag:other.example,2022:notice:5",
				Content: "<p>the original</p>",
			}},
		}},
	}

	m := enc.ActivityMap(act)
	obj := m["object"].(map[string]any)
	assert.Equal(t, "tag:other.example,2022:notice:5", obj["id"],
		"sharing a post shares the inner note, not the wrapper")
	assert.Equal(t, "note", obj["objectType"])
}

func TestActivityMap_EmbeddedNonPost(t *testing.T) {
	enc := &Encoder{}
	act := &Activity{
		Verb: VerbShare,
		ID:   "tag:example.net,2022:share:2",
		Objects: []ActivityItem{&Activity{
			Verb: VerbFavorite,
			ID:   "tag:other.example,2022:fave:3",
			Objects: []ActivityItem{&ActivityObject{
				Type: TypeNote,
				ID:   "tag:other.example,2022:notice:5",
			}},
		}},
	}

	m := enc.ActivityMap(act)
	obj := m["object"].(map[string]any)
	assert.Equal(t, "activity", obj["objectType"],
		"only shares of posts unwrap; other embedded activities render whole")
	assert.Equal(t, "tag:other.example,2022:fave:3", obj["id"])
}

func TestActivityMap_NoObjects(t *testing.T) {
	enc := &Encoder{}
	m := enc.ActivityMap(&Activity{Verb: VerbPost, ID: "tag:x,2022:1"})
	_, ok := m["object"]
	assert.False(t, ok, "an objectless activity renders without an object field")
	assert.Equal(t, "tag:x,2022:1", m["id"])
}

func TestObjectMap_Person(t *testing.T) {
	enc := &Encoder{}
	obj := &ActivityObject{
		Type:        TypePerson,
		ID:          "https://example.net/user/1",
		DisplayName: "Evan P.",
		Link:        "https://example.net/evan",
		Avatars: []AvatarLink{
			{URL: "https://example.net/a48.png", Width: 48, Height: 48},
			{URL: "https://example.net/a96.png", Width: 96, Height: 96},
		},
		Poco: &PortableContacts{
			PreferredUsername: "evan",
			Note:              "hacker",
			Address:           "Portland, OR",
		},
	}

	m := enc.ObjectMap(obj)

	assert.Equal(t, "person", m["objectType"])
	assert.Equal(t, "Evan P.", m["displayName"])

	image := m["image"].(map[string]any)
	assert.Equal(t, "https://example.net/a96.png", image["url"],
		"the profile-size avatar is promoted to image")
	assert.Len(t, m["avatarLinks"].([]map[string]any), 2)

	assert.Equal(t, "evan", m["preferredUsername"])
	assert.Equal(t, "hacker", m["note"])
	addresses := m["addresses"].([]map[string]any)
	require.Len(t, addresses, 1)
	assert.Equal(t, "Portland, OR", addresses[0]["formatted"])
}

func TestObjectMap_IDFallsBackToLink(t *testing.T) {
	enc := &Encoder{}
	m := enc.ObjectMap(&ActivityObject{Type: TypeNote, Link: "https://example.net/notice/1"})
	assert.Equal(t, "https://example.net/notice/1", m["id"])
}

func TestObjectMap_Photo(t *testing.T) {
	enc := &Encoder{}
	m := enc.ObjectMap(&ActivityObject{
		Type:        TypePhoto,
		ID:          "https://example.net/photo/7",
		Thumbnail:   "https://example.net/photo/7/thumb.jpg",
		LargerImage: "https://example.net/photo/7/full.jpg",
		Description: "a sunset",
	})
	assert.Equal(t, "https://example.net/photo/7/thumb.jpg", m["thumbnail"])
	assert.Equal(t, "https://example.net/photo/7/full.jpg", m["fullImage"])
	assert.Equal(t, "a sunset", m["description"])
}

func TestObjectMap_StatusNetFolding(t *testing.T) {
	enc := &Encoder{}
	m := enc.ObjectMap(&ActivityObject{
		Type: TypeNote,
		ID:   "tag:example.net,2022:notice:1",
		Extra: []Extension{
			{Tag: "statusnet:notice_info", Attrs: []Attr{{"local_id", "1"}, {"source", "web"}}},
			{Tag: "custom", Text: "kept as-is"},
		},
	})

	statusNet := m["status_net"].(map[string]any)
	info := statusNet["notice_info"].(map[string]any)
	assert.Equal(t, "1", info["local_id"])
	assert.Equal(t, "web", info["source"])
	assert.Equal(t, "kept as-is", m["custom"])
}

type stubGeo struct {
	name string
	url  string
	err  error
}

func (g stubGeo) ReverseGeocode(lat, lon float64) (string, string, error) {
	return g.name, g.url, g.err
}

func TestLocationMap(t *testing.T) {
	enc := &Encoder{Geo: stubGeo{name: "Portland", url: "https://osm.example/pdx"}}
	m := enc.ObjectMap(&ActivityObject{
		Type: TypeNote,
		ID:   "n1",
		Geo:  &GeoPoint{Lat: 45.5, Lon: -122.6},
	})

	loc := m["location"].(map[string]any)
	assert.Equal(t, "place", loc["objectType"])
	assert.Equal(t, 45.5, loc["lat"])
	assert.Equal(t, "Portland", loc["displayName"])
	assert.Equal(t, "https://osm.example/pdx", loc["url"])
}

func TestLocationMap_ResolverError(t *testing.T) {
	enc := &Encoder{Geo: stubGeo{err: assert.AnError}}
	m := enc.ObjectMap(&ActivityObject{
		Type: TypeNote,
		ID:   "n1",
		Geo:  &GeoPoint{Lat: 45.5, Lon: -122.6},
	})

	loc := m["location"].(map[string]any)
	assert.Equal(t, 45.5, loc["lat"], "coordinates survive a failed lookup")
	_, ok := loc["displayName"]
	assert.False(t, ok)
}

func TestRoundTrip_NoticeEntry(t *testing.T) {
	p := NewParser()
	original, err := p.Parse(parseXML(t, noticeEntry))
	require.NoError(t, err)

	enc := &Encoder{}
	w := NewTreeWriter()
	enc.WriteActivity(w, original, WriteOptions{Namespaces: true, Author: true, Source: true})

	back, err := p.Parse(w.Root())
	require.NoError(t, err)

	assert.Equal(t, original.ID, back.ID)
	assert.Equal(t, original.Verb, back.Verb)
	assert.Equal(t, original.Content, back.Content)
	assert.Equal(t, original.Time, back.Time)
	require.NotNil(t, back.Actor)
	assert.Equal(t, original.Actor.ID, back.Actor.ID)
	require.NotNil(t, back.Context)
	assert.Equal(t, original.Context.ReplyToID, back.Context.ReplyToID)
	assert.Equal(t, original.Context.Conversation, back.Context.Conversation)
	require.NotNil(t, back.Context.Location)
	assert.Equal(t, original.Context.Location.Lat, back.Context.Location.Lat)
}
