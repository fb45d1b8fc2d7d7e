package generation

import (
	"strings"

	"golang.org/x/net/html"
)

// Sanitize strips executable content from a fetched artifact before it is
// cached or returned. Markup artifacts (SVG, HTML fragments) are parsed and
// scrubbed; plain-text diagram sources pass through untouched.
func Sanitize(content string) string {
	if !looksLikeMarkup(content) {
		return content
	}
	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		// Unparseable markup cannot be scrubbed reliably; drop it.
		return ""
	}
	scrub(doc)

	keepDocument := strings.Contains(strings.ToLower(content), "<html") ||
		strings.Contains(strings.ToLower(content), "<!doctype")
	var b strings.Builder
	if keepDocument {
		if err := html.Render(&b, doc); err != nil {
			return ""
		}
		return b.String()
	}
	// html.Parse wraps fragments in html/head/body; render only what the
	// artifact actually contained.
	body := findElement(doc, "body")
	if body == nil {
		return ""
	}
	for c := body.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&b, c); err != nil {
			return ""
		}
	}
	return b.String()
}

func looksLikeMarkup(content string) bool {
	t := strings.TrimSpace(content)
	return strings.HasPrefix(t, "<")
}

var dangerousElements = map[string]struct{}{
	"script":        {},
	"noscript":      {},
	"iframe":        {},
	"object":        {},
	"embed":         {},
	"foreignobject": {},
	"base":          {},
}

func scrub(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.ElementNode {
			if _, bad := dangerousElements[strings.ToLower(c.Data)]; bad {
				n.RemoveChild(c)
				c = next
				continue
			}
			scrubAttrs(c)
		}
		scrub(c)
		c = next
	}
}

func scrubAttrs(n *html.Node) {
	kept := n.Attr[:0]
	for _, a := range n.Attr {
		key := strings.ToLower(a.Key)
		if strings.HasPrefix(key, "on") {
			continue
		}
		if (key == "href" || key == "src" || key == "xlink:href" || key == "action") &&
			strings.HasPrefix(strings.ToLower(strings.TrimSpace(a.Val)), "javascript:") {
			continue
		}
		kept = append(kept, a)
	}
	n.Attr = kept
}

func findElement(n *html.Node, name string) *html.Node {
	if n.Type == html.ElementNode && strings.EqualFold(n.Data, name) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, name); found != nil {
			return found
		}
	}
	return nil
}
