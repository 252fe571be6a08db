package activity

import (
	"html"
	"net/mail"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/beevik/etree"

	"github.com/kwren/activityloom/server/telemetry"
)

// DOM extraction primitives. All of these are read-only over the input
// tree, so they are safe to call in any order and any number of times.

// NamespaceOf resolves the namespace URI of an element by walking xmlns
// declarations up the tree. Elements with an undeclared prefix fall back
// to the conventional binding for that prefix, because a surprising
// number of feed producers forget their xmlns attributes.
func NamespaceOf(el *etree.Element) string {
	prefix := el.Space
	for n := el; n != nil; n = n.Parent() {
		for _, a := range n.Attr {
			if prefix == "" && a.Space == "" && a.Key == "xmlns" {
				return a.Value
			}
			if prefix != "" && a.Space == "xmlns" && a.Key == prefix {
				return a.Value
			}
		}
	}
	if ns, ok := wellKnownPrefixes[prefix]; ok {
		return ns
	}
	return ""
}

func nameMatches(el *etree.Element, local, ns string) bool {
	if el.Tag != local {
		return false
	}
	return NamespaceOf(el) == ns
}

// Child returns the first matching element anywhere in the subtree, in
// document order. Note the asymmetry with Children, which only ever
// looks at direct children; both behaviors are load-bearing.
func Child(el *etree.Element, local, ns string) *etree.Element {
	for _, c := range el.ChildElements() {
		if nameMatches(c, local, ns) {
			return c
		}
		if found := Child(c, local, ns); found != nil {
			return found
		}
	}
	return nil
}

// Children returns all matching direct children, never descendants.
func Children(el *etree.Element, local, ns string) []*etree.Element {
	var out []*etree.Element
	for _, c := range el.ChildElements() {
		if nameMatches(c, local, ns) {
			out = append(out, c)
		}
	}
	return out
}

// Descendants returns every matching element in the subtree, in
// document order.
func Descendants(el *etree.Element, local, ns string) []*etree.Element {
	var out []*etree.Element
	for _, c := range el.ChildElements() {
		if nameMatches(c, local, ns) {
			out = append(out, c)
		}
		out = append(out, Descendants(c, local, ns)...)
	}
	return out
}

// TextContent gathers all character data in the subtree, like the DOM
// textContent property.
func TextContent(el *etree.Element) string {
	var sb strings.Builder
	gatherText(el, &sb)
	return sb.String()
}

func gatherText(el *etree.Element, sb *strings.Builder) {
	for _, tok := range el.Child {
		switch t := tok.(type) {
		case *etree.CharData:
			sb.WriteString(t.Data)
		case *etree.Element:
			gatherText(t, sb)
		}
	}
}

// ChildContent returns the raw text content of the first matching
// element, or "" if there is none.
func ChildContent(el *etree.Element, local, ns string) string {
	c := Child(el, local, ns)
	if c == nil {
		return ""
	}
	return TextContent(c)
}

// ChildHTMLContent decodes the first matching child as an Atom text
// construct, yielding HTML.
func ChildHTMLContent(el *etree.Element, local, ns string) (string, error) {
	c := Child(el, local, ns)
	if c == nil {
		return "", nil
	}
	return TextConstruct(c)
}

// GetContent is shorthand for the HTML content of an Atom <content>.
func GetContent(el *etree.Element) (string, error) {
	return ChildHTMLContent(el, "content", AtomNS)
}

// TextConstruct decodes an Atom text construct element according to its
// type attribute, producing an HTML string.
func TextConstruct(el *etree.Element) (string, error) {
	if el.SelectAttrValue("src", "") != "" {
		// Remote content; we'd have to fetch it, and we don't.
		return "", &UnsupportedContentError{Reason: "can't handle remote content yet"}
	}
	ctype := el.SelectAttrValue("type", "text")
	switch {
	case ctype == "text" || ctype == "text/plain":
		// plaintext, escape it into safe HTML
		return html.EscapeString(TextContent(el)), nil
	case ctype == "html" || ctype == "text/html":
		// the text content is already serialized HTML
		return TextContent(el), nil
	case ctype == "xhtml":
		div := Child(el, "div", XHTMLNS)
		if div == nil {
			return "", nil
		}
		return strings.TrimSpace(innerXML(div)), nil
	case ctype == "xml" || ctype == "application/xml" || strings.HasSuffix(ctype, "+xml"):
		return "", &UnsupportedContentError{Reason: "can't handle embedded XML content yet"}
	case strings.HasPrefix(ctype, "text/"):
		return TextContent(el), nil
	default:
		// anything else is base64-encoded binary per the Atom spec
		return "", &UnsupportedContentError{Reason: "can't handle embedded Base64 content yet"}
	}
}

// innerXML serializes every child token of an element back to XML
// source, without the element's own tags.
func innerXML(el *etree.Element) string {
	var sb strings.Builder
	for _, tok := range el.Child {
		switch t := tok.(type) {
		case *etree.CharData:
			sb.WriteString(escapeText(t.Data))
		case *etree.Element:
			doc := etree.NewDocument()
			doc.SetRoot(t.Copy())
			if s, err := doc.WriteToString(); err == nil {
				sb.WriteString(s)
			}
		}
	}
	return sb.String()
}

// GetLink returns the href of the first Atom <link> child matching the
// given rel, and, when mediaType is non-empty, the exact type attribute.
func GetLink(el *etree.Element, rel, mediaType string) string {
	links := GetLinks(el, rel, mediaType)
	if len(links) == 0 {
		return ""
	}
	return links[0].SelectAttrValue("href", "")
}

// GetLinks returns all Atom <link> direct children matching rel and, if
// given, the exact type attribute.
func GetLinks(el *etree.Element, rel, mediaType string) []*etree.Element {
	var out []*etree.Element
	for _, l := range Children(el, "link", AtomNS) {
		if l.SelectAttrValue("rel", "") != rel {
			continue
		}
		if mediaType != "" && l.SelectAttrValue("type", "") != mediaType {
			continue
		}
		out = append(out, l)
	}
	return out
}

// GetPermalink returns the HTML alternate link of an element, or "".
func GetPermalink(el *etree.Element) string {
	return GetLink(el, RelAlternate, "text/html")
}

var schemeRE = regexp.MustCompile(`^\w+:`)

// ValidateURI accepts mailto: addresses, tag: URIs, and anything with a
// scheme that url.Parse is happy with.
func ValidateURI(uri string) bool {
	if strings.HasPrefix(uri, "mailto:") {
		_, err := mail.ParseAddress(strings.TrimPrefix(uri, "mailto:"))
		return err == nil
	}
	// tag: URIs (RFC 4151) trip up strict validators but are
	// everywhere in Atom ids, so wave them through on shape alone.
	if strings.HasPrefix(uri, "tag:") {
		return len(uri) > len("tag:")
	}
	u, err := url.Parse(uri)
	if err != nil {
		return false
	}
	return u.Scheme != ""
}

// ResolveURI maps between short type names and their absolute schema
// URIs. With makeRelative it goes the other way, stripping an absolute
// URI down to its basename.
func ResolveURI(uri string, makeRelative bool) string {
	if makeRelative {
		if i := strings.LastIndexAny(uri, "/#"); i >= 0 {
			return uri[i+1:]
		}
		return uri
	}
	if schemeRE.MatchString(uri) {
		return uri
	}
	return SchemaNS + uri
}

// CompareTypes reports whether a type or verb URI matches any of the
// candidates, comparing all of them in absolute form.
func CompareTypes(t string, candidates ...string) bool {
	abs := ResolveURI(t, false)
	for _, c := range candidates {
		if abs == ResolveURI(c, false) {
			return true
		}
	}
	return false
}

// LocalResolver looks up objects in local storage by URI. Either method
// returns (nil, nil) when the URI is simply unknown.
type LocalResolver interface {
	ProfileByURI(uri string) (*ActivityObject, error)
	NoticeByURI(uri string) (*ActivityObject, error)
}

// FindLocalObject tries each candidate URI against local storage until
// one resolves. Hooks get a chance to resolve first.
func FindLocalObject(hooks *Hooks, res LocalResolver, uris []string, objType string) (*ActivityObject, error) {
	if obj, handled := hooks.resolveLocal(uris, objType); handled {
		return obj, nil
	}
	person := CompareTypes(objType, TypePerson)
	for _, uri := range uris {
		var (
			obj *ActivityObject
			err error
		)
		if person {
			obj, err = res.ProfileByURI(uri)
		} else {
			obj, err = res.NoticeByURI(uri)
		}
		if err != nil {
			return nil, err
		}
		if obj != nil {
			return obj, nil
		}
	}
	return nil, &NotLocalError{URIs: uris}
}

// CheckAuthorship validates an activity's embedded actor against a
// default profile. A mismatched actor is logged but tolerated, because
// group and multi-author feeds legitimately carry entries by others.
// The effective author is returned.
func CheckAuthorship(act *Activity, def *ActivityObject) (*ActivityObject, error) {
	if act.Actor == nil || act.Actor.ID == "" {
		if def == nil {
			return nil, ErrNoProfile
		}
		return def, nil
	}
	if def != nil && act.Actor.ID != def.ID {
		telemetry.Log("activity %s actor %s does not match feed author %s", act.ID, act.Actor.ID, def.ID)
		return def, nil
	}
	return act.Actor, nil
}

// parseTime tries the timestamp layouts seen in the wild, preferring
// RFC 3339 as used by Atom.
func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	layouts := []string{
		time.RFC3339,
		"2006-01-02T15:04:05Z0700",
		time.RFC1123Z,
		time.RFC1123,
		time.RFC822Z,
		time.RFC822,
		"2006-01-02 15:04:05",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
