package activity

import (
	"strconv"
)

// SiteInfo identifies the service generating output; it becomes the
// provider block in JSON output.
type SiteInfo struct {
	Name string
	URL  string
}

// GeoResolver reverse-geocodes a coordinate pair to a display name and
// url. Implementations may consult a remote service; errors just mean
// the location block goes out without a name.
type GeoResolver interface {
	ReverseGeocode(lat, lon float64) (name, url string, err error)
}

// Encoder serializes activities and objects to XML writer calls or to
// JSON-ready maps. The zero value works; Site and Geo are optional.
type Encoder struct {
	Site  SiteInfo
	Geo   GeoResolver
	Hooks *Hooks
}

// WriteObject emits the object under the given tag, or with no
// enclosing element at all when tag is empty (the flattened form used
// for simple posts). The author tag changes two things: the id goes
// out as <uri> rather than <id>, and the name element carries the poco
// preferred username when there is one, a backward compatibility quirk
// retained on purpose.
func (e *Encoder) WriteObject(w XMLWriter, o *ActivityObject, tag string) {
	if !e.Hooks.startWriteObject(o, w) {
		e.Hooks.endWriteObject(o, w)
		return
	}
	if tag != "" {
		w.ElementStart(tag)
	}
	author := tag == "author"

	if o.Type != "" {
		w.Element("activity:object-type", ResolveURI(o.Type, false))
	}
	if o.ID != "" {
		if author {
			w.Element("uri", o.ID)
		} else {
			w.Element("id", o.ID)
		}
	}
	if author {
		name := o.Title
		if o.Poco != nil && o.Poco.PreferredUsername != "" {
			name = o.Poco.PreferredUsername
		}
		if name != "" {
			w.Element("name", name)
		}
	} else if o.Title != "" {
		w.Element("title", o.Title)
	}
	if o.Summary != "" {
		w.Element("summary", o.Summary)
	}
	if o.Content != "" {
		w.Element("content", o.Content, Attr{"type", "html"})
	}
	if o.Link != "" {
		w.Element("link", "",
			Attr{"rel", RelAlternate},
			Attr{"type", "text/html"},
			Attr{"href", o.Link})
	}
	if o.Owner != nil {
		e.WriteObject(w, o.Owner, "author")
	}
	if CompareTypes(o.Type, TypePerson, TypeGroup) {
		for _, av := range o.Avatars {
			attrs := []Attr{
				{"rel", RelAvatar},
				{"type", av.MediaType},
			}
			if av.Width > 0 {
				attrs = append(attrs, Attr{"media:width", strconv.Itoa(av.Width)})
			}
			if av.Height > 0 {
				attrs = append(attrs, Attr{"media:height", strconv.Itoa(av.Height)})
			}
			attrs = append(attrs, Attr{"href", av.URL})
			w.Element("link", "", attrs...)
		}
	}
	if o.Geo != nil {
		w.Element("georss:point", o.Geo.String())
	}
	if o.Poco != nil {
		writePoco(w, o.Poco)
	}
	for _, ext := range o.Extra {
		w.Element(ext.Tag, ext.Text, ext.Attrs...)
	}
	if tag != "" {
		w.ElementEnd(tag)
	}
	e.Hooks.endWriteObject(o, w)
}

func writePoco(w XMLWriter, pc *PortableContacts) {
	if pc.PreferredUsername != "" {
		w.Element("poco:preferredUsername", pc.PreferredUsername)
	}
	if pc.DisplayName != "" {
		w.Element("poco:displayName", pc.DisplayName)
	}
	if pc.Note != "" {
		w.Element("poco:note", pc.Note)
	}
	if pc.Address != "" {
		w.ElementStart("poco:address")
		w.Element("poco:formatted", pc.Address)
		w.ElementEnd("poco:address")
	}
	for _, u := range pc.URLs {
		w.ElementStart("poco:urls")
		w.Element("poco:type", u.Type)
		w.Element("poco:value", u.Value)
		w.Element("poco:primary", strconv.FormatBool(u.Primary))
		w.ElementEnd("poco:urls")
	}
}

// ObjectMap renders the object as a JSON-ready map. Empty values are
// stripped at the top level before return, which makes explicit empty
// fields indistinguishable from absent ones; downstream consumers
// depend on the absence, so this stays lossy.
func (e *Encoder) ObjectMap(o *ActivityObject) map[string]any {
	m := map[string]any{}
	if !e.Hooks.startObjectMap(o, m) {
		e.Hooks.endObjectMap(o, m)
		return m
	}

	id := o.ID
	if id == "" {
		id = o.Link
	}
	m["id"] = id
	m["objectType"] = CanonicalType(o.Type)

	if CompareTypes(o.Type, TypePerson, TypeGroup) {
		m["displayName"] = o.DisplayName
		var links []map[string]any
		for _, av := range o.Avatars {
			links = append(links, mediaLink(av))
		}
		if links != nil {
			m["avatarLinks"] = links
		}
		if best := bestAvatar(o.Avatars); best != nil {
			m["image"] = mediaLink(*best)
		}
	}

	m["summary"] = o.Summary
	m["content"] = o.Content
	m["url"] = o.Link

	statusNet := map[string]any{}
	for _, ext := range o.Extra {
		if name, ok := statusNetTag(ext.Tag); ok {
			statusNet[name] = extensionValue(ext)
		} else {
			m[ext.Tag] = extensionValue(ext)
		}
	}
	if len(statusNet) > 0 {
		m["status_net"] = statusNet
	}

	if o.Geo != nil {
		m["location"] = e.locationMap(*o.Geo)
	}

	if o.Poco != nil {
		for k, v := range o.Poco.asMap() {
			m[k] = v
		}
	}

	switch CanonicalType(o.Type) {
	case "photo":
		m["thumbnail"] = o.Thumbnail
		m["fullImage"] = o.LargerImage
		m["description"] = o.Description
	case "audio", "video":
		m["stream"] = o.Stream
	}

	pruneEmpty(m)
	e.Hooks.endObjectMap(o, m)
	return m
}

func (pc *PortableContacts) asMap() map[string]any {
	m := map[string]any{}
	if pc.PreferredUsername != "" {
		m["preferredUsername"] = pc.PreferredUsername
	}
	if pc.Note != "" {
		m["note"] = pc.Note
	}
	if pc.Address != "" {
		m["addresses"] = []map[string]any{{"formatted": pc.Address}}
	}
	if len(pc.URLs) > 0 {
		var urls []map[string]any
		for _, u := range pc.URLs {
			urls = append(urls, map[string]any{
				"type":    u.Type,
				"value":   u.Value,
				"primary": u.Primary,
			})
		}
		m["urls"] = urls
	}
	return m
}

func mediaLink(av AvatarLink) map[string]any {
	m := map[string]any{"url": av.URL}
	if av.Width > 0 {
		m["width"] = av.Width
	}
	if av.Height > 0 {
		m["height"] = av.Height
	}
	return m
}

// bestAvatar prefers the profile-size variant and falls back to the
// first one listed.
func bestAvatar(avatars []AvatarLink) *AvatarLink {
	if len(avatars) == 0 {
		return nil
	}
	for i := range avatars {
		if avatars[i].Width == ProfileAvatarSize {
			return &avatars[i]
		}
	}
	return &avatars[0]
}

func (e *Encoder) locationMap(g GeoPoint) map[string]any {
	m := map[string]any{
		"objectType": "place",
		"lat":        g.Lat,
		"lon":        g.Lon,
	}
	if e.Geo != nil {
		if name, url, err := e.Geo.ReverseGeocode(g.Lat, g.Lon); err == nil {
			if name != "" {
				m["displayName"] = name
			}
			if url != "" {
				m["url"] = url
			}
		}
	}
	return m
}

// statusNetTag reports whether an extension tag is of the statusnet:x
// form, returning the bare x.
func statusNetTag(tag string) (string, bool) {
	const prefix = "statusnet:"
	if len(tag) > len(prefix) && tag[:len(prefix)] == prefix {
		return tag[len(prefix):], true
	}
	return "", false
}

func extensionValue(ext Extension) any {
	if len(ext.Attrs) == 0 {
		return ext.Text
	}
	m := map[string]any{}
	for _, a := range ext.Attrs {
		m[a.Name] = a.Value
	}
	if ext.Text != "" {
		m["content"] = ext.Text
	}
	return m
}

// pruneEmpty strips empty and falsy values from the top level of a
// rendered map, in place.
func pruneEmpty(m map[string]any) {
	for k, v := range m {
		switch val := v.(type) {
		case nil:
			delete(m, k)
		case string:
			if val == "" {
				delete(m, k)
			}
		case bool:
			if !val {
				delete(m, k)
			}
		case map[string]any:
			if len(val) == 0 {
				delete(m, k)
			}
		case []map[string]any:
			if len(val) == 0 {
				delete(m, k)
			}
		case []any:
			if len(val) == 0 {
				delete(m, k)
			}
		}
	}
}
