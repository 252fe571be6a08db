package activity

import (
	"fmt"
	"html"
	"strconv"
	"time"

	"github.com/beevik/etree"
)

// Activity is a verb-sentence: actor did verb to object(s), in context,
// possibly with an indirect target.
type Activity struct {
	Actor *ActivityObject
	Verb  string // absolute verb URI, never empty after parse

	// Objects always has at least one entry after a successful parse;
	// entries may be *ActivityObject or embedded *Activity.
	Objects []ActivityItem

	Target  *ActivityObject
	Context *ActivityContext

	Time time.Time // zero when the source carried no timestamp

	ID      string
	Title   string
	Summary string
	Content string // HTML
	Link    string

	Categories  []Category
	Enclosures  []Enclosure
	Attachments []*ActivityObject
	Extra       []Extension

	Source    *FeedInfo
	SelfLink  string
	EditLink  string
	Generator *ActivityObject
}

func (*Activity) activityItem() {}

// Category is an Atom category or RSS category element.
type Category struct {
	Term   string
	Scheme string
	Label  string
}

// FeedInfo is the sub-feed metadata from an Atom <source> element.
type FeedInfo struct {
	ID       string
	Title    string
	Icon     string
	Updated  string
	SelfLink string
}

// Parse constructs an Activity from a DOM element, which must be an
// Atom <entry>, an RSS <item>, or a legacy ActivityStreams <object>.
// Handing it anything else, like a whole feed document, is an
// immediate error.
func (p *Parser) Parse(el *etree.Element) (*Activity, error) {
	act := &Activity{}
	if p.Hooks.startParseActivity(el, act) {
		ns := NamespaceOf(el)
		var err error
		switch {
		case el.Tag == "entry" && (ns == AtomNS || ns == ""):
			err = p.fromAtomEntry(el, act)
		case el.Tag == "item" && ns == RSSNone:
			err = p.fromRSSItem(el, act)
		case (el.Tag == "object" || el.Tag == "entry") && ns == SpecNS:
			err = p.fromAtomEntry(el, act)
		default:
			err = fmt.Errorf("%w: got <%s>", ErrUnknownElement, el.Tag)
		}
		if err != nil {
			return nil, err
		}
	}
	p.Hooks.endParseActivity(el, act)
	return act, nil
}

func (p *Parser) fromAtomEntry(entry *etree.Element, act *Activity) error {
	var feed *etree.Element
	if parent := entry.Parent(); parent != nil && parent.Tag == "feed" {
		feed = parent
	}

	ts := ChildContent(entry, "published", AtomNS)
	if ts == "" {
		ts = ChildContent(entry, "updated", AtomNS)
	}
	act.Time = parseTime(ts)

	act.Link = GetPermalink(entry)
	act.ID = ChildContent(entry, "id", AtomNS)

	title, err := ChildHTMLContent(entry, "title", AtomNS)
	if err != nil {
		return err
	}
	act.Title = plainText(title)

	act.Summary, err = ChildHTMLContent(entry, "summary", AtomNS)
	if err != nil {
		return err
	}
	act.Content, err = GetContent(entry)
	if err != nil {
		return err
	}

	verb := ChildContent(entry, "verb", SpecNS)
	if verb == "" {
		act.Verb = VerbPost
	} else {
		act.Verb = ResolveURI(verb, false)
	}

	for _, objEl := range Children(entry, "object", SpecNS) {
		if CompareTypes(p.objectType(objEl, TypeNote), TypeActivity) {
			embedded, err := p.Parse(objEl)
			if err != nil {
				return err
			}
			act.Objects = append(act.Objects, embedded)
		} else {
			obj, err := p.ParseObject(objEl)
			if err != nil {
				return err
			}
			act.Objects = append(act.Objects, obj)
		}
	}
	if len(act.Objects) == 0 {
		// no explicit objects; the entry is its own single object
		obj, err := p.ParseObject(entry)
		if err != nil {
			return err
		}
		act.Objects = append(act.Objects, obj)
	}

	if err := p.parseActor(entry, feed, act); err != nil {
		return err
	}

	if ctxEl := Child(entry, "context", SpecNS); ctxEl != nil {
		act.Context = parseContext(ctxEl)
	} else {
		// threading markers often sit directly on the entry
		act.Context = parseContext(entry)
	}

	if targetEl := Child(entry, "target", SpecNS); targetEl != nil {
		target, err := p.ParseObject(targetEl)
		if err != nil {
			return err
		}
		act.Target = target
	} else if p.Compat.FavoriteImpliedTarget && CompareTypes(act.Verb, VerbFavorite) {
		// old StatusNet never wrote explicit targets for favorites
		if obj, ok := act.Objects[0].(*ActivityObject); ok {
			act.Target = obj.Clone()
		}
	}

	for _, cat := range Descendants(entry, "category", AtomNS) {
		act.Categories = append(act.Categories, Category{
			Term:   cat.SelectAttrValue("term", ""),
			Scheme: cat.SelectAttrValue("scheme", ""),
			Label:  cat.SelectAttrValue("label", ""),
		})
	}

	for _, l := range GetLinks(entry, RelEnclosure, "") {
		act.Enclosures = append(act.Enclosures, enclosureFromLink(l))
	}

	act.SelfLink = GetLink(entry, RelSelf, "application/atom+xml")
	act.EditLink = GetLink(entry, RelEdit, "application/atom+xml")

	if g := Child(entry, "generator", AtomNS); g != nil {
		act.Generator = &ActivityObject{
			Type:  TypeService,
			Title: TextContent(g),
			Link:  g.SelectAttrValue("uri", ""),
		}
	}

	if src := Child(entry, "source", AtomNS); src != nil {
		act.Source = &FeedInfo{
			ID:       ChildContent(src, "id", AtomNS),
			Title:    ChildContent(src, "title", AtomNS),
			Icon:     ChildContent(src, "icon", AtomNS),
			Updated:  ChildContent(src, "updated", AtomNS),
			SelfLink: GetLink(src, RelSelf, ""),
		}
	}
	return nil
}

// parseActor resolves the entry's actor through the documented fallback
// chain: explicit activity:actor, entry author, feed subject, feed
// author. No actor at all is fine; the field stays nil.
func (p *Parser) parseActor(entry, feed *etree.Element, act *Activity) error {
	if actorEl := Child(entry, "actor", SpecNS); actorEl != nil {
		actor, err := p.ParseObject(actorEl)
		if err != nil {
			return err
		}
		act.Actor = actor
		return nil
	}
	if authorEl := Child(entry, "author", AtomNS); authorEl != nil {
		actor, err := p.ParseObject(authorEl)
		if err != nil {
			return err
		}
		act.Actor = actor
		return nil
	}
	if feed != nil {
		act.Actor = p.FeedAuthor(feed)
	}
	return nil
}

// FeedAuthor resolves a feed-level author: the legacy activity:subject,
// the feed author, or failing those the first entry's actor or author.
// Best effort; returns nil when nothing is found.
func (p *Parser) FeedAuthor(feed *etree.Element) *ActivityObject {
	if subjects := Children(feed, "subject", SpecNS); len(subjects) > 0 {
		if obj, err := p.ParseObject(subjects[0]); err == nil {
			return obj
		}
	}
	if authors := Children(feed, "author", AtomNS); len(authors) > 0 {
		if obj, err := p.ParseObject(authors[0]); err == nil {
			return obj
		}
	}
	if entries := Children(feed, "entry", AtomNS); len(entries) > 0 {
		if actorEl := Child(entries[0], "actor", SpecNS); actorEl != nil {
			if obj, err := p.ParseObject(actorEl); err == nil {
				return obj
			}
		}
		if authorEl := Child(entries[0], "author", AtomNS); authorEl != nil {
			if obj, err := p.ParseObject(authorEl); err == nil {
				return obj
			}
		}
	}
	return nil
}

func (p *Parser) fromRSSItem(item *etree.Element, act *Activity) error {
	act.Verb = VerbPost
	act.Time = parseTime(ChildContent(item, "pubDate", RSSNone))
	act.Title = ChildContent(item, "title", RSSNone)

	if encoded := Child(item, "encoded", ContentNS); encoded != nil {
		act.Content = TextContent(encoded)
	} else if desc := Child(item, "description", RSSNone); desc != nil {
		act.Content = html.EscapeString(TextContent(desc))
	}

	act.Link = ChildContent(item, "link", RSSNone)
	if guid := Child(item, "guid", RSSNone); guid != nil {
		act.ID = TextContent(guid)
		if perma := guid.SelectAttr("isPermaLink"); perma == nil || perma.Value != "false" {
			act.Link = act.ID
		}
	}
	if act.ID == "" {
		act.ID = act.Link
	}

	var channel *etree.Element
	if parent := item.Parent(); parent != nil && parent.Tag == "channel" {
		channel = parent
	}
	switch {
	case Child(item, "author", RSSNone) != nil:
		act.Actor = FromRSSAuthor(TextContent(Child(item, "author", RSSNone)))
	case Child(item, "creator", DublinCoreNS) != nil:
		act.Actor = FromDCCreator(TextContent(Child(item, "creator", DublinCoreNS)))
	case Child(item, "author", PosterousNS) != nil:
		act.Actor = FromPosterousAuthor(Child(item, "author", PosterousNS))
	case channel != nil:
		act.Actor = FromRSSChannel(channel)
	}

	obj, err := p.ParseObject(item)
	if err != nil {
		return err
	}
	act.Objects = append(act.Objects, obj)

	act.Context = parseContext(item)

	for _, enc := range Children(item, "enclosure", RSSNone) {
		length, _ := strconv.ParseInt(enc.SelectAttrValue("length", ""), 10, 64)
		act.Enclosures = append(act.Enclosures, Enclosure{
			URL:       enc.SelectAttrValue("url", ""),
			MediaType: enc.SelectAttrValue("type", ""),
			Length:    length,
		})
	}

	for _, cat := range Children(item, "category", RSSNone) {
		act.Categories = append(act.Categories, Category{
			Term:   TextContent(cat),
			Scheme: cat.SelectAttrValue("domain", ""),
		})
	}
	return nil
}

func enclosureFromLink(l *etree.Element) Enclosure {
	mediaType := l.SelectAttrValue("type", "")
	lengthAttr := l.SelectAttrValue("length", "")
	title := l.SelectAttrValue("title", "")
	if mediaType == "" && lengthAttr == "" && title == "" {
		return BareEnclosure(l.SelectAttrValue("href", ""))
	}
	length, _ := strconv.ParseInt(lengthAttr, 10, 64)
	return Enclosure{
		URL:       l.SelectAttrValue("href", ""),
		MediaType: mediaType,
		Length:    length,
		Title:     title,
	}
}
