package activity

import (
	"fmt"
	"io"
	"strings"

	"github.com/beevik/etree"
)

// Attr is a single XML attribute. Attribute order is preserved.
type Attr struct {
	Name  string
	Value string
}

// XMLWriter receives structured element events during serialization.
// The codec never builds byte buffers itself; it emits calls against
// whatever writer the caller injects.
type XMLWriter interface {
	ElementStart(tag string, attrs ...Attr)
	ElementEnd(tag string)
	// Element writes a complete element with text content in one call.
	Element(tag string, text string, attrs ...Attr)
	Text(s string)
	// Raw writes a pre-serialized XML fragment verbatim.
	Raw(xml string)
}

// TreeWriter builds an etree document in memory. Handy for tests and
// for callers that want to post-process the output.
type TreeWriter struct {
	doc   *etree.Document
	stack []*etree.Element
}

func NewTreeWriter() *TreeWriter {
	return &TreeWriter{doc: etree.NewDocument()}
}

// Root returns the first top-level element written, or nil.
func (w *TreeWriter) Root() *etree.Element {
	return w.doc.Root()
}

func (w *TreeWriter) String() (string, error) {
	return w.doc.WriteToString()
}

func (w *TreeWriter) current() *etree.Element {
	if len(w.stack) == 0 {
		return nil
	}
	return w.stack[len(w.stack)-1]
}

func (w *TreeWriter) create(tag string) *etree.Element {
	if parent := w.current(); parent != nil {
		return parent.CreateElement(tag)
	}
	el := w.doc.CreateElement(tag)
	return el
}

func (w *TreeWriter) ElementStart(tag string, attrs ...Attr) {
	el := w.create(tag)
	for _, a := range attrs {
		el.CreateAttr(a.Name, a.Value)
	}
	w.stack = append(w.stack, el)
}

func (w *TreeWriter) ElementEnd(tag string) {
	if len(w.stack) > 0 {
		w.stack = w.stack[:len(w.stack)-1]
	}
}

func (w *TreeWriter) Element(tag string, text string, attrs ...Attr) {
	el := w.create(tag)
	for _, a := range attrs {
		el.CreateAttr(a.Name, a.Value)
	}
	if text != "" {
		el.SetText(text)
	}
}

func (w *TreeWriter) Text(s string) {
	if el := w.current(); el != nil {
		el.SetText(el.Text() + s)
	}
}

func (w *TreeWriter) Raw(xml string) {
	// Best effort: parse the fragment and graft it in. If the fragment
	// won't parse it is kept as text so nothing is silently dropped.
	frag := etree.NewDocument()
	frag.ReadSettings.Permissive = true
	if err := frag.ReadFromString(xml); err == nil && frag.Root() != nil {
		if el := w.current(); el != nil {
			el.AddChild(frag.Root().Copy())
			return
		}
	}
	w.Text(xml)
}

// StreamWriter writes escaped XML straight to an io.Writer, suitable
// for very large documents that shouldn't be buffered in memory.
type StreamWriter struct {
	out io.Writer
	err error
}

func NewStreamWriter(out io.Writer) *StreamWriter {
	return &StreamWriter{out: out}
}

// Err reports the first write error encountered, if any.
func (w *StreamWriter) Err() error {
	return w.err
}

func (w *StreamWriter) write(s string) {
	if w.err != nil {
		return
	}
	_, w.err = io.WriteString(w.out, s)
}

func (w *StreamWriter) openTag(tag string, attrs []Attr, selfClose bool) {
	var sb strings.Builder
	sb.WriteByte('<')
	sb.WriteString(tag)
	for _, a := range attrs {
		sb.WriteString(fmt.Sprintf(` %s="%s"`, a.Name, escapeAttr(a.Value)))
	}
	if selfClose {
		sb.WriteByte('/')
	}
	sb.WriteByte('>')
	w.write(sb.String())
}

func (w *StreamWriter) ElementStart(tag string, attrs ...Attr) {
	w.openTag(tag, attrs, false)
}

func (w *StreamWriter) ElementEnd(tag string) {
	w.write("</" + tag + ">")
}

func (w *StreamWriter) Element(tag string, text string, attrs ...Attr) {
	if text == "" {
		w.openTag(tag, attrs, true)
		return
	}
	w.openTag(tag, attrs, false)
	w.Text(text)
	w.ElementEnd(tag)
}

func (w *StreamWriter) Text(s string) {
	w.write(escapeText(s))
}

func (w *StreamWriter) Raw(xml string) {
	w.write(xml)
}

var textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
var attrEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")

func escapeText(s string) string {
	return textEscaper.Replace(s)
}

func escapeAttr(s string) string {
	return attrEscaper.Replace(s)
}
