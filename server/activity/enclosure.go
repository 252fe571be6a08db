package activity

// Enclosure is a linked media attachment. Feeds carry enclosures in two
// shapes: a bare URL, or a full record with mimetype and size. Bare
// distinguishes the two so serializers can reproduce the right one.
type Enclosure struct {
	URL       string
	MediaType string
	Length    int64
	Title     string
	Bare      bool
}

// BareEnclosure wraps a plain URL with no further metadata.
func BareEnclosure(url string) Enclosure {
	return Enclosure{URL: url, Bare: true}
}
