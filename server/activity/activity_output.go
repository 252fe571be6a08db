package activity

import (
	"strconv"

	"github.com/kwren/activityloom/server/telemetry"
)

// WriteOptions controls Atom serialization of an activity.
type WriteOptions struct {
	// Tag is the enclosing element, "entry" by default. Embedded
	// activities are written under "activity:object" instead.
	Tag string
	// Author includes the actor as an <author> element.
	Author bool
	// Source includes the originating sub-feed info.
	Source bool
	// Namespaces declares the xmlns bindings on the enclosing element,
	// for activities written as standalone documents.
	Namespaces bool
}

func DefaultWriteOptions() WriteOptions {
	return WriteOptions{Tag: "entry", Author: true}
}

// NamespaceAttrs returns the xmlns declarations for a feed or
// standalone entry element.
func NamespaceAttrs() []Attr {
	return []Attr{
		{"xmlns", AtomNS},
		{"xmlns:activity", SpecNS},
		{"xmlns:thr", ThreadNS},
		{"xmlns:georss", GeoRSSNS},
		{"xmlns:ostatus", OStatusNS},
		{"xmlns:poco", PocoNS},
		{"xmlns:media", MediaNS},
		{"xmlns:statusnet", StatusNetNS},
	}
}

// WriteActivity emits the activity as Atom XML. A simple post with a
// single plain object is flattened: the object's fields go directly
// into the entry with no nested activity:object element, and a parser
// reading it back will reconstruct the same implicit object.
func (e *Encoder) WriteActivity(w XMLWriter, a *Activity, opts WriteOptions) {
	if opts.Tag == "" {
		opts.Tag = "entry"
	}
	if !e.Hooks.startWriteActivity(a, w) {
		e.Hooks.endWriteActivity(a, w)
		return
	}

	var attrs []Attr
	if opts.Namespaces {
		attrs = NamespaceAttrs()
	}
	w.ElementStart(opts.Tag, attrs...)

	if opts.Tag == "activity:object" {
		// mark the nested object as a full activity before anything else
		w.Element("activity:object-type", TypeActivity)
	}

	var flatObject *ActivityObject
	if CompareTypes(a.Verb, VerbPost) && len(a.Objects) == 1 && opts.Tag == "entry" {
		flatObject, _ = a.Objects[0].(*ActivityObject)
	}

	if flatObject != nil {
		e.WriteObject(w, flatObject, "")
	} else {
		if a.ID != "" {
			w.Element("id", a.ID)
		}
		// title is a required element; write it even when empty
		w.Element("title", a.Title)
		if a.Content != "" {
			w.Element("content", a.Content, Attr{"type", "html"})
		}
		if a.Summary != "" {
			w.Element("summary", a.Summary)
		}
		if a.Link != "" {
			w.Element("link", "",
				Attr{"rel", RelAlternate},
				Attr{"type", "text/html"},
				Attr{"href", a.Link})
		}
	}

	w.Element("activity:verb", ResolveURI(a.Verb, false))

	if !a.Time.IsZero() {
		ts := ISO8601(a.Time)
		w.Element("published", ts)
		w.Element("updated", ts)
	}

	if opts.Author && a.Actor != nil {
		e.WriteObject(w, a.Actor, "author")
	}

	if flatObject == nil {
		for _, item := range a.Objects {
			switch obj := item.(type) {
			case *Activity:
				e.WriteActivity(w, obj, WriteOptions{Tag: "activity:object"})
			case *ActivityObject:
				e.WriteObject(w, obj, "activity:object")
			}
		}
	}

	if a.Context != nil {
		e.writeContext(w, a.Context)
	}

	if a.Target != nil {
		e.WriteObject(w, a.Target, "activity:target")
	}

	for _, cat := range a.Categories {
		attrs := []Attr{{"term", cat.Term}}
		if cat.Scheme != "" {
			attrs = append(attrs, Attr{"scheme", cat.Scheme})
		}
		if cat.Label != "" {
			attrs = append(attrs, Attr{"label", cat.Label})
		}
		w.Element("category", "", attrs...)
	}

	for _, enc := range a.Enclosures {
		if enc.Bare {
			w.Element("link", "", Attr{"rel", RelEnclosure}, Attr{"href", enc.URL})
			continue
		}
		attrs := []Attr{
			{"rel", RelEnclosure},
			{"href", enc.URL},
			{"type", enc.MediaType},
			{"length", strconv.FormatInt(enc.Length, 10)},
		}
		if enc.Title != "" {
			attrs = append(attrs, Attr{"title", enc.Title})
		}
		w.Element("link", "", attrs...)
	}

	if opts.Source && a.Source != nil {
		w.ElementStart("source")
		if a.Source.ID != "" {
			w.Element("id", a.Source.ID)
		}
		if a.Source.Title != "" {
			w.Element("title", a.Source.Title)
		}
		if a.Source.SelfLink != "" {
			w.Element("link", "", Attr{"rel", RelSelf}, Attr{"href", a.Source.SelfLink})
		}
		if a.Source.Icon != "" {
			w.Element("icon", a.Source.Icon)
		}
		if a.Source.Updated != "" {
			w.Element("updated", a.Source.Updated)
		}
		w.ElementEnd("source")
	}

	if a.SelfLink != "" {
		w.Element("link", "",
			Attr{"rel", RelSelf},
			Attr{"type", "application/atom+xml"},
			Attr{"href", a.SelfLink})
	}
	if a.EditLink != "" {
		w.Element("link", "",
			Attr{"rel", RelEdit},
			Attr{"type", "application/atom+xml"},
			Attr{"href", a.EditLink})
	}

	for _, ext := range a.Extra {
		w.Element(ext.Tag, ext.Text, ext.Attrs...)
	}

	w.ElementEnd(opts.Tag)
	e.Hooks.endWriteActivity(a, w)
}

func (e *Encoder) writeContext(w XMLWriter, ctx *ActivityContext) {
	if ctx.ReplyToID != "" || ctx.ReplyToURL != "" {
		attrs := []Attr{}
		if ctx.ReplyToID != "" {
			attrs = append(attrs, Attr{"ref", ctx.ReplyToID})
		}
		if ctx.ReplyToURL != "" {
			attrs = append(attrs, Attr{"href", ctx.ReplyToURL})
		}
		w.Element("thr:in-reply-to", "", attrs...)
		if ctx.ReplyToURL != "" {
			w.Element("link", "", Attr{"rel", RelRelated}, Attr{"href", ctx.ReplyToURL})
		}
	}
	if ctx.Conversation != "" {
		w.Element("link", "",
			Attr{"rel", RelConversation},
			Attr{"href", ctx.Conversation})
	}
	for _, at := range ctx.Attention {
		attrs := []Attr{
			{"rel", RelMentioned},
		}
		if at.ObjectType != "" {
			// undocumented, but consumers rely on it
			attrs = append(attrs, Attr{"ostatus:object-type", at.ObjectType})
		}
		attrs = append(attrs, Attr{"href", at.URI})
		w.Element("link", "", attrs...)
	}
	if ctx.Location != nil {
		w.Element("georss:point", ctx.Location.String())
	}
}

// ActivityMap renders the activity as a JSON-ready map. Only the first
// object is rendered; extras are logged and dropped, and an activity
// with no objects at all goes out without an object field. Both are
// tolerated, logged data-loss paths.
func (e *Encoder) ActivityMap(a *Activity) map[string]any {
	m := map[string]any{}
	if !e.Hooks.startActivityMap(a, m) {
		e.Hooks.endActivityMap(a, m)
		return m
	}

	if a.Actor != nil {
		m["actor"] = e.ObjectMap(a.Actor)
	}
	m["content"] = a.Content
	m["id"] = a.ID
	if e.Site.Name != "" || e.Site.URL != "" {
		m["provider"] = map[string]any{
			"objectType":  "service",
			"displayName": e.Site.Name,
			"url":         e.Site.URL,
		}
	}
	if !a.Time.IsZero() {
		m["published"] = ISO8601(a.Time)
	}
	m["verb"] = CanonicalType(a.Verb)
	m["title"] = a.Title
	m["url"] = a.Link
	if a.Target != nil {
		m["target"] = e.ObjectMap(a.Target)
	}
	if a.Generator != nil {
		m["generator"] = e.ObjectMap(a.Generator)
	}

	objMap := e.objectFieldMap(a)
	if objMap != nil {
		if len(a.Attachments) > 0 {
			var attached []map[string]any
			for _, at := range a.Attachments {
				attached = append(attached, e.ObjectMap(at))
			}
			objMap["attachments"] = attached
		}
		if CompareTypes(a.Verb, VerbPost) {
			var tags []map[string]any
			for _, cat := range a.Categories {
				if cat.Term == "" {
					continue
				}
				tags = append(tags, map[string]any{
					"objectType":  TypeHashtag,
					"displayName": cat.Term,
				})
			}
			if tags != nil {
				objMap["tags"] = tags
			}
		}
		if a.Context != nil && (a.Context.ReplyToID != "" || a.Context.ReplyToURL != "") {
			// reply threading belongs on the object in JSON form
			reply := map[string]any{}
			if a.Context.ReplyToID != "" {
				reply["id"] = a.Context.ReplyToID
			}
			if a.Context.ReplyToURL != "" {
				reply["url"] = a.Context.ReplyToURL
			}
			objMap["inReplyTo"] = reply
		}
		m["object"] = objMap
	}

	statusNet := map[string]any{}
	if a.Context != nil {
		if a.Context.Location != nil {
			m["location"] = e.locationMap(*a.Context.Location)
		}
		if len(a.Context.Attention) > 0 {
			var to []map[string]any
			for _, at := range a.Context.Attention {
				objType := at.ObjectType
				if objType == "" {
					objType = TypePerson
				}
				to = append(to, map[string]any{
					"id":         at.URI,
					"objectType": CanonicalType(objType),
				})
			}
			m["to"] = to
		}
		if a.Context.Conversation != "" {
			statusNet["conversation"] = a.Context.Conversation
		}
	}
	for _, ext := range a.Extra {
		if name, ok := statusNetTag(ext.Tag); ok {
			statusNet[name] = extensionValue(ext)
		} else {
			m[ext.Tag] = extensionValue(ext)
		}
	}
	if len(statusNet) > 0 {
		m["status_net"] = statusNet
	}

	pruneEmpty(m)
	e.Hooks.endActivityMap(a, m)
	return m
}

// objectFieldMap derives the object field, applying the share-of-post
// unwrap: sharing a post shares the original post's object, not the
// wrapper around it.
func (e *Encoder) objectFieldMap(a *Activity) map[string]any {
	if len(a.Objects) == 0 {
		telemetry.Error(errNoObject, "activity %s has nothing to render", a.ID)
		return nil
	}
	if len(a.Objects) > 1 {
		telemetry.Log("activity %s has %d objects; only the first survives JSON output", a.ID, len(a.Objects))
	}
	switch obj := a.Objects[0].(type) {
	case *Activity:
		if CompareTypes(a.Verb, VerbShare) && CompareTypes(obj.Verb, VerbPost) && len(obj.Objects) > 0 {
			if inner, ok := obj.Objects[0].(*ActivityObject); ok {
				return e.ObjectMap(inner)
			}
		}
		m := e.ActivityMap(obj)
		m["objectType"] = "activity"
		return m
	case *ActivityObject:
		return e.ObjectMap(obj)
	}
	return nil
}
