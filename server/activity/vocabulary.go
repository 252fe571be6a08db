package activity

// ActivityStreams 1.0 / Atom / RSS vocabulary

// XML namespaces recognized by the parser. RSS 2.0 elements carry no
// namespace at all, which is represented by the empty string.
const (
	AtomNS       = "http://www.w3.org/2005/Atom"
	SpecNS       = "http://activitystrea.ms/spec/1.0/"
	SchemaNS     = "http://activitystrea.ms/schema/1.0/"
	MediaNS      = "http://purl.org/syndication/atommedia"
	PocoNS       = "http://portablecontacts.net/spec/1.0"
	GeoRSSNS     = "http://www.georss.org/georss"
	ThreadNS     = "http://purl.org/syndication/thread/1.0"
	OStatusNS    = "http://ostatus.org/schema/1.0"
	StatusNetNS  = "http://status.net/schema/api/1/"
	DublinCoreNS = "http://purl.org/dc/elements/1.1/"
	ContentNS    = "http://purl.org/rss/1.0/modules/content/"
	PosterousNS  = "http://posterous.com/help/rss/1.0"
	XHTMLNS      = "http://www.w3.org/1999/xhtml"
	RSSNone      = ""
)

// Verbs, in canonical (absolute) form. Short names resolve against SchemaNS.
const (
	VerbPost       = SchemaNS + "post"
	VerbShare      = SchemaNS + "share"
	VerbFavorite   = SchemaNS + "favorite"
	VerbUnfavorite = SchemaNS + "unfavorite"
	VerbFollow     = SchemaNS + "follow"
	VerbUnfollow   = SchemaNS + "unfollow"
	VerbJoin       = SchemaNS + "join"
	VerbLeave      = SchemaNS + "leave"
	VerbTag        = SchemaNS + "tag"
	VerbUntag      = SchemaNS + "untag"
	VerbDelete     = SchemaNS + "delete"
	VerbUpdate     = SchemaNS + "update"
)

// Object types, also resolved against SchemaNS.
const (
	TypeArticle    = SchemaNS + "article"
	TypeNote       = SchemaNS + "note"
	TypeStatus     = SchemaNS + "status"
	TypeComment    = SchemaNS + "comment"
	TypeFile       = SchemaNS + "file"
	TypePhoto      = SchemaNS + "photo"
	TypeAudio      = SchemaNS + "audio"
	TypeVideo      = SchemaNS + "video"
	TypeBookmark   = SchemaNS + "bookmark"
	TypePerson     = SchemaNS + "person"
	TypeGroup      = SchemaNS + "group"
	TypeCollection = SchemaNS + "collection"
	TypeService    = SchemaNS + "service"
	TypePlace      = SchemaNS + "place"

	// An object that is itself a full activity (share/repeat semantics).
	TypeActivity = SchemaNS + "activity"

	// Used for hashtag entries in JSON output. Not a SchemaNS type.
	TypeHashtag = "http://activityschema.org/object/hashtag"
)

// Link relations on Atom <link> elements.
const (
	RelAlternate    = "alternate"
	RelSelf         = "self"
	RelEdit         = "edit"
	RelEnclosure    = "enclosure"
	RelRelated      = "related"
	RelAvatar       = "avatar"
	RelPhoto        = "photo"
	RelPreview      = "preview"
	RelMentioned    = "mentioned"
	RelAttention    = "ostatus:attention"
	RelConversation = "ostatus:conversation"
)

// prefixes assumed for elements whose namespace declaration is missing.
// Plenty of real-world producers forget the xmlns attributes, so name
// resolution falls back to the conventional prefix bindings.
var wellKnownPrefixes = map[string]string{
	"atom":      AtomNS,
	"activity":  SpecNS,
	"media":     MediaNS,
	"poco":      PocoNS,
	"georss":    GeoRSSNS,
	"thr":       ThreadNS,
	"ostatus":   OStatusNS,
	"statusnet": StatusNetNS,
	"dc":        DublinCoreNS,
	"content":   ContentNS,
	"posterous": PosterousNS,
	"xhtml":     XHTMLNS,
}
