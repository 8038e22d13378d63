package hxglue

import (
	"bytes"
	"mime"
	"net/http"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// isFullHTMLPage reports whether a response is an uncompressed HTML
// document rather than a fragment or some other media type.
func isFullHTMLPage(h http.Header, body []byte) bool {
	mt, _, err := mime.ParseMediaType(h.Get("Content-Type"))
	if err != nil || mt != "text/html" {
		return false
	}
	if ce := h.Get("Content-Encoding"); ce != "" && !strings.EqualFold(ce, "identity") {
		return false
	}
	prefix := body
	if len(prefix) > 1024 {
		prefix = prefix[:1024]
	}
	prefix = bytes.ToLower(prefix)
	return bytes.Contains(prefix, []byte("<html")) || bytes.Contains(prefix, []byte("<!doctype html"))
}

// injectScript appends <script src=src defer> to the document head. The
// document is returned unchanged when it already loads src.
func injectScript(body []byte, src string) ([]byte, bool, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, false, err
	}
	if hasScript(doc, src) {
		return body, false, nil
	}

	parent := findElement(doc, atom.Head)
	if parent == nil {
		parent = findElement(doc, atom.Body)
	}
	if parent == nil {
		parent = doc
	}

	parent.AppendChild(&html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Script,
		Data:     "script",
		Attr: []html.Attribute{
			{Key: "src", Val: src},
			{Key: "defer"},
		},
	})

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return nil, false, err
	}
	return buf.Bytes(), true, nil
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}

func hasScript(n *html.Node, src string) bool {
	if n.Type == html.ElementNode && n.DataAtom == atom.Script {
		for _, a := range n.Attr {
			if a.Key == "src" && a.Val == src {
				return true
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if hasScript(c, src) {
			return true
		}
	}
	return false
}

// weakenETag marks the origin's validator as weak once the body no longer
// matches the origin bytes.
func weakenETag(h http.Header) {
	etag := h.Get("ETag")
	if etag == "" || strings.HasPrefix(etag, "W/") {
		return
	}
	h.Set("ETag", "W/"+etag)
}
