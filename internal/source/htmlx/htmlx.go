// Package htmlx holds the small DOM helpers the scraping adapters share.
package htmlx

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/anineesan/anineesan-server/internal/normalize"
)

// Matcher selects nodes during a walk.
type Matcher func(*html.Node) bool

// Parse parses an HTML document.
func Parse(body []byte) (*html.Node, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse HTML: %w", err)
	}
	return doc, nil
}

// Element matches element nodes with the given tag carrying every class listed.
// An empty tag matches any element.
func Element(tag string, classes ...string) Matcher {
	return func(n *html.Node) bool {
		if n.Type != html.ElementNode || (tag != "" && n.Data != tag) {
			return false
		}
		for _, c := range classes {
			if !HasClass(n, c) {
				return false
			}
		}
		return true
	}
}

// WithAttr matches element nodes with the given tag whose attribute key equals val.
func WithAttr(tag, key, val string) Matcher {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && (tag == "" || n.Data == tag) && Attr(n, key) == val
	}
}

// HasClass reports whether n's class attribute contains class.
func HasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(Attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

// Attr returns the value of attribute key, or "".
func Attr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

// Find returns the first node under n (n included) that matches, in document order.
func Find(n *html.Node, match Matcher) *html.Node {
	if n == nil {
		return nil
	}
	if match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := Find(c, match); found != nil {
			return found
		}
	}
	return nil
}

// FindAll returns every matching node under n in document order. Matches are
// not descended into.
func FindAll(n *html.Node, match Matcher) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if match(node) {
			out = append(out, node)
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	if n != nil {
		walk(n)
	}
	return out
}

// Text returns the whitespace-collapsed text content of n.
func Text(n *html.Node) string {
	if n == nil {
		return ""
	}
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(node *html.Node) {
		switch node.Type {
		case html.TextNode:
			buf.WriteString(node.Data)
		case html.ElementNode:
			if node.Data == "br" || node.Data == "p" || node.Data == "li" {
				buf.WriteByte(' ')
			}
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return normalize.Whitespace(buf.String())
}

// FindText returns the text of the first match, or "".
func FindText(n *html.Node, match Matcher) string {
	return Text(Find(n, match))
}

// FindAttr returns attribute key of the first match, or "".
func FindAttr(n *html.Node, match Matcher, key string) string {
	if found := Find(n, match); found != nil {
		return Attr(found, key)
	}
	return ""
}

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// StripTags turns an HTML fragment into plain text.
func StripTags(fragment string) string {
	if fragment == "" {
		return ""
	}
	doc, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return normalize.Whitespace(html.UnescapeString(tagPattern.ReplaceAllString(fragment, " ")))
	}
	return Text(doc)
}
