package activity

import (
	"github.com/beevik/etree"
)

// ActivityContext carries reply threading, conversation grouping, and
// mention metadata for an activity.
type ActivityContext struct {
	ReplyToID  string
	ReplyToURL string

	// Conversation is the conversation URI this activity belongs to.
	Conversation string

	Attention []Attention
	Location  *GeoPoint
}

// Attention is one mention target.
type Attention struct {
	URI        string
	ObjectType string
}

// parseContext reads threading markers from an entry or item element.
// Every field is optional; an empty context means the element carried
// no threading information at all.
func parseContext(el *etree.Element) *ActivityContext {
	ctx := &ActivityContext{}

	if reply := Child(el, "in-reply-to", ThreadNS); reply != nil {
		ctx.ReplyToID = reply.SelectAttrValue("ref", "")
		ctx.ReplyToURL = reply.SelectAttrValue("href", "")
		if ctx.ReplyToID == "" {
			ctx.ReplyToID = ctx.ReplyToURL
		}
		if ctx.ReplyToURL == "" && ValidateURI(ctx.ReplyToID) {
			ctx.ReplyToURL = ctx.ReplyToID
		}
	}

	ctx.Conversation = GetLink(el, RelConversation, "")
	if ctx.Conversation == "" {
		ctx.Conversation = ChildContent(el, "conversation", OStatusNS)
	}

	for _, rel := range []string{RelMentioned, RelAttention} {
		for _, l := range GetLinks(el, rel, "") {
			href := l.SelectAttrValue("href", "")
			if href == "" {
				continue
			}
			ctx.Attention = append(ctx.Attention, Attention{
				URI:        href,
				ObjectType: l.SelectAttrValue("ostatus:object-type", ""),
			})
		}
	}

	if pt := ChildContent(el, "point", GeoRSSNS); pt != "" {
		ctx.Location = ParseGeoPoint(pt)
	}

	if ctx.ReplyToID == "" && ctx.ReplyToURL == "" && ctx.Conversation == "" &&
		len(ctx.Attention) == 0 && ctx.Location == nil {
		return nil
	}
	return ctx
}
