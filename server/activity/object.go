package activity

import (
	"fmt"
	"html"
	"net/mail"
	"regexp"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// ActivityObject is a noun in the activity universe: a person, note,
// photo, group, and so on. It can play the role of actor, object, or
// target within an Activity.
type ActivityObject struct {
	Type    string // absolute object-type URI
	ID      string
	Title   string
	Summary string
	Content string // HTML
	Link    string // permalink
	Source  string // id or self-url of the originating feed

	// person/group only
	DisplayName string
	Avatars     []AvatarLink
	Poco        *PortableContacts

	// media types only
	Thumbnail   string
	LargerImage string
	Description string
	Stream      string

	// collection types only
	Owner *ActivityObject

	Geo   *GeoPoint
	Extra []Extension
}

func (*ActivityObject) activityItem() {}

// ActivityItem is either a plain ActivityObject or an embedded
// *Activity; an activity's object list holds both.
type ActivityItem interface {
	activityItem()
}

// Extension is a pass-through element the codec doesn't understand but
// preserves verbatim: tag, attributes, text.
type Extension struct {
	Tag   string
	Attrs []Attr
	Text  string
}

// AvatarLink is one variant of a person's avatar image.
type AvatarLink struct {
	URL       string
	MediaType string
	Width     int
	Height    int
}

// ProfileAvatarSize is the variant promoted to the "image" field in
// JSON output when available.
const ProfileAvatarSize = 96

// GeoPoint is a WGS84 coordinate pair.
type GeoPoint struct {
	Lat float64
	Lon float64
}

// ParseGeoPoint reads the "lat lon" form used by georss:point.
func ParseGeoPoint(s string) *GeoPoint {
	fields := strings.Fields(strings.TrimSpace(s))
	if len(fields) != 2 {
		return nil
	}
	lat, err1 := strconv.ParseFloat(fields[0], 64)
	lon, err2 := strconv.ParseFloat(fields[1], 64)
	if err1 != nil || err2 != nil {
		return nil
	}
	return &GeoPoint{Lat: lat, Lon: lon}
}

func (g GeoPoint) String() string {
	return fmt.Sprintf("%s %s",
		strconv.FormatFloat(g.Lat, 'f', -1, 64),
		strconv.FormatFloat(g.Lon, 'f', -1, 64))
}

// PortableContacts is the poco sub-record carried by person and group
// objects.
type PortableContacts struct {
	PreferredUsername string
	DisplayName       string
	Note              string
	Address           string
	URLs              []PocoURL
}

// PocoURL is one entry of a poco urls list.
type PocoURL struct {
	Type    string
	Value   string
	Primary bool
}

// Compat toggles vendor/version compatibility shims in the parser.
// Both default on; they have no known expiry condition.
type Compat struct {
	// CliqsetActorID repairs actor ids that aren't scheme-qualified by
	// borrowing the sibling author's id, working around a known Cliqset
	// producer bug.
	CliqsetActorID bool
	// FavoriteImpliedTarget clones the object of a favorite activity as
	// its target when no explicit target is present, as old StatusNet
	// producers expected.
	FavoriteImpliedTarget bool
}

func DefaultCompat() Compat {
	return Compat{CliqsetActorID: true, FavoriteImpliedTarget: true}
}

// Parser turns DOM elements into activities and activity objects. The
// zero value works; NewParser enables the default compatibility shims.
type Parser struct {
	Hooks  *Hooks
	Compat Compat
}

func NewParser() *Parser {
	return &Parser{Compat: DefaultCompat()}
}

// ParseObject constructs an ActivityObject from a DOM element,
// dispatching on the element's shape: an Atom author (or the legacy
// subject/actor elements), an RSS item, or an Atom entry /
// ActivityStreams object.
func (p *Parser) ParseObject(el *etree.Element) (*ActivityObject, error) {
	obj := &ActivityObject{}
	if p.Hooks.startParseObject(el, obj) {
		var err error
		switch el.Tag {
		case "author", "contributor", "subject", "actor":
			err = p.fromAuthor(el, obj)
		case "item":
			err = p.fromItem(el, obj)
		default:
			err = p.fromEntry(el, obj)
		}
		if err != nil {
			return nil, err
		}
		if err := p.enrich(el, obj); err != nil {
			return nil, err
		}
	}
	p.Hooks.endParseObject(el, obj)
	return obj, nil
}

func (p *Parser) objectType(el *etree.Element, dflt string) string {
	t := ChildContent(el, "object-type", SpecNS)
	if t == "" {
		return dflt
	}
	return ResolveURI(t, false)
}

func (p *Parser) fromAuthor(el *etree.Element, obj *ActivityObject) error {
	obj.Type = p.objectType(el, TypePerson)

	title, err := ChildHTMLContent(el, "title", AtomNS)
	if err != nil {
		return err
	}
	if title != "" {
		obj.Title = plainText(title)
	} else {
		obj.Title = ChildContent(el, "name", AtomNS)
	}

	email := strings.TrimSpace(ChildContent(el, "email", AtomNS))
	switch {
	case ChildContent(el, "id", AtomNS) != "":
		obj.ID = ChildContent(el, "id", AtomNS)
	case ChildContent(el, "uri", AtomNS) != "":
		obj.ID = ChildContent(el, "uri", AtomNS)
	case email != "":
		obj.ID = "mailto:" + email
	}

	obj.Link = GetPermalink(el)
	if obj.ID == "" {
		obj.ID = obj.Link
	}

	if p.Compat.CliqsetActorID && obj.ID != "" && !schemeRE.MatchString(obj.ID) {
		// Cliqset emits bare usernames as actor ids; the sibling
		// author element carries a usable one.
		if parent := el.Parent(); parent != nil {
			if author := Child(parent, "author", AtomNS); author != nil && author != el {
				if id := ChildContent(author, "id", AtomNS); id != "" {
					obj.ID = id
				} else if uri := ChildContent(author, "uri", AtomNS); uri != "" {
					obj.ID = uri
				}
			}
		}
	}
	return nil
}

func (p *Parser) fromEntry(el *etree.Element, obj *ActivityObject) error {
	obj.Type = p.objectType(el, TypeNote)

	summary, err := ChildHTMLContent(el, "summary", AtomNS)
	if err != nil {
		return err
	}
	obj.Summary = summary

	content, err := GetContent(el)
	if err != nil {
		return err
	}
	obj.Content = content

	title, err := ChildHTMLContent(el, "title", AtomNS)
	if err != nil {
		return err
	}
	obj.Title = plainText(title)

	if src := Child(el, "source", AtomNS); src != nil {
		obj.Source = GetLink(src, RelSelf, "")
		if obj.Source == "" {
			obj.Source = ChildContent(src, "id", AtomNS)
		}
	}

	obj.Link = GetPermalink(el)
	obj.ID = ChildContent(el, "id", AtomNS)
	if obj.ID == "" {
		obj.ID = obj.Link
	}
	return nil
}

func (p *Parser) fromItem(el *etree.Element, obj *ActivityObject) error {
	obj.Type = TypeNote
	obj.Title = ChildContent(el, "title", RSSNone)

	if encoded := Child(el, "encoded", ContentNS); encoded != nil {
		// content:encoded text is already HTML
		obj.Content = TextContent(encoded)
	} else if desc := Child(el, "description", RSSNone); desc != nil {
		// a plaintext description, escaped into HTML
		obj.Content = html.EscapeString(TextContent(desc))
	}

	obj.Link = ChildContent(el, "link", RSSNone)
	if guid := Child(el, "guid", RSSNone); guid != nil {
		obj.ID = TextContent(guid)
		if perma := guid.SelectAttr("isPermaLink"); perma != nil && perma.Value != "false" {
			obj.Link = obj.ID
		}
	}
	if obj.ID == "" {
		obj.ID = obj.Link
	}
	return nil
}

// enrich fills in type-specific fields after the base parse.
func (p *Parser) enrich(el *etree.Element, obj *ActivityObject) error {
	switch CanonicalType(obj.Type) {
	case "person", "group":
		obj.DisplayName = obj.Title
		links := GetLinks(el, RelPhoto, "")
		if len(links) == 0 {
			links = GetLinks(el, RelAvatar, "")
		}
		for _, l := range links {
			obj.Avatars = append(obj.Avatars, avatarFromLink(l))
		}
		obj.Poco = parsePoco(el)
	case "photo":
		obj.Thumbnail = GetLink(el, RelPreview, "")
		obj.LargerImage = GetLink(el, RelEnclosure, "")
		obj.Description = ChildContent(el, "description", MediaNS)
	case "audio", "video":
		obj.Stream = GetLink(el, RelEnclosure, "")
	case "collection":
		if author := Child(el, "author", AtomNS); author != nil {
			owner, err := p.ParseObject(author)
			if err != nil {
				return err
			}
			obj.Owner = owner
		}
	}
	if pt := ChildContent(el, "point", GeoRSSNS); pt != "" && obj.Geo == nil {
		obj.Geo = ParseGeoPoint(pt)
	}
	return nil
}

func avatarFromLink(l *etree.Element) AvatarLink {
	av := AvatarLink{
		URL:       l.SelectAttrValue("href", ""),
		MediaType: l.SelectAttrValue("type", ""),
	}
	// width/height live in the atommedia namespace, but some producers
	// emit them unprefixed; accept either.
	for _, a := range l.Attr {
		switch a.Key {
		case "width":
			av.Width, _ = strconv.Atoi(a.Value)
		case "height":
			av.Height, _ = strconv.Atoi(a.Value)
		}
	}
	return av
}

func parsePoco(el *etree.Element) *PortableContacts {
	pc := &PortableContacts{
		PreferredUsername: ChildContent(el, "preferredUsername", PocoNS),
		DisplayName:       ChildContent(el, "displayName", PocoNS),
		Note:              ChildContent(el, "note", PocoNS),
	}
	if addr := Child(el, "address", PocoNS); addr != nil {
		pc.Address = ChildContent(addr, "formatted", PocoNS)
	}
	for _, u := range Children(el, "urls", PocoNS) {
		pc.URLs = append(pc.URLs, PocoURL{
			Type:    ChildContent(u, "type", PocoNS),
			Value:   ChildContent(u, "value", PocoNS),
			Primary: ChildContent(u, "primary", PocoNS) == "true",
		})
	}
	if pc.PreferredUsername == "" && pc.DisplayName == "" && pc.Note == "" &&
		pc.Address == "" && len(pc.URLs) == 0 {
		return nil
	}
	return pc
}

// Clone makes an independent copy of the object. Used for implied
// favorite targets, which must not share state with the object.
func (o *ActivityObject) Clone() *ActivityObject {
	if o == nil {
		return nil
	}
	dup := *o
	dup.Avatars = append([]AvatarLink(nil), o.Avatars...)
	dup.Extra = append([]Extension(nil), o.Extra...)
	if o.Poco != nil {
		poco := *o.Poco
		poco.URLs = append([]PocoURL(nil), o.Poco.URLs...)
		dup.Poco = &poco
	}
	if o.Geo != nil {
		geo := *o.Geo
		dup.Geo = &geo
	}
	dup.Owner = o.Owner.Clone()
	return &dup
}

var (
	nameEmailRE = regexp.MustCompile(`^\s*(.*?)\s*<([^>]+)>\s*$`)
	emailNameRE = regexp.MustCompile(`^\s*(\S+@\S+)\s*\((.*)\)\s*$`)
)

// FromRSSAuthor guesses at the unstructured RSS <author> field, which
// in the wild is "Name <email>", "email (Name)", a bare address, or
// just a name. Best effort; never fails, degrades to partial data.
func FromRSSAuthor(text string) *ActivityObject {
	obj := &ActivityObject{Type: TypePerson}
	var name, email string
	if m := nameEmailRE.FindStringSubmatch(text); m != nil {
		name, email = m[1], m[2]
	} else if m := emailNameRE.FindStringSubmatch(text); m != nil {
		email, name = m[1], m[2]
	} else if _, err := mail.ParseAddress(strings.TrimSpace(text)); err == nil {
		email = strings.TrimSpace(text)
	} else {
		name = strings.TrimSpace(text)
	}
	obj.Title = name
	obj.DisplayName = name
	if email != "" {
		obj.ID = "mailto:" + email
	}
	return obj
}

// FromDCCreator builds a person from a Dublin Core creator, which is a
// display name and nothing else.
func FromDCCreator(text string) *ActivityObject {
	name := strings.TrimSpace(text)
	return &ActivityObject{
		Type:        TypePerson,
		Title:       name,
		DisplayName: name,
	}
}

// FromPosterousAuthor reads the posterous vendor extension elements
// describing an item's author.
func FromPosterousAuthor(el *etree.Element) *ActivityObject {
	obj := &ActivityObject{Type: TypePerson}
	obj.Title = ChildContent(el, "displayName", PosterousNS)
	obj.DisplayName = obj.Title
	profile := ChildContent(el, "profileUrl", PosterousNS)
	obj.Link = profile
	obj.ID = profile
	if img := ChildContent(el, "userImage", PosterousNS); img != "" {
		obj.Avatars = append(obj.Avatars, AvatarLink{URL: img})
	}
	if nick := ChildContent(el, "nickName", PosterousNS); nick != "" {
		obj.Poco = &PortableContacts{
			PreferredUsername: nick,
			DisplayName:       obj.DisplayName,
		}
	}
	return obj
}

// FromRSSChannel synthesizes an actor from the feed's channel element,
// the fallback of last resort for RSS items with no author at all.
func FromRSSChannel(channel *etree.Element) *ActivityObject {
	obj := &ActivityObject{Type: TypePerson}
	obj.Title = ChildContent(channel, "title", RSSNone)
	obj.DisplayName = obj.Title
	obj.Link = ChildContent(channel, "link", RSSNone)
	obj.ID = obj.Link
	if img := Child(channel, "image", RSSNone); img != nil {
		if u := ChildContent(img, "url", RSSNone); u != "" {
			obj.Avatars = append(obj.Avatars, AvatarLink{URL: u})
		}
	}
	return obj
}

// CanonicalType reduces a type or verb URI to its short relative form.
func CanonicalType(t string) string {
	return ResolveURI(t, true)
}

// MimeTypeToObjectType maps a MIME type to the object type for an
// uploaded file. Anything unrecognized, including an empty type, is a
// generic file.
func MimeTypeToObjectType(mime string) string {
	switch {
	case strings.HasPrefix(mime, "image/"):
		return TypePhoto
	case strings.HasPrefix(mime, "audio/"):
		return TypeAudio
	case strings.HasPrefix(mime, "video/"):
		return TypeVideo
	default:
		return TypeFile
	}
}

var tagRE = regexp.MustCompile(`<[^>]*>`)

// plainText strips tags and entities out of an HTML fragment, leaving
// trimmed plain text.
func plainText(htmlStr string) string {
	return strings.TrimSpace(html.UnescapeString(tagRE.ReplaceAllString(htmlStr, "")))
}
