// Package htmlutil provides tolerant HTML fragment parsing, serialisation
// and the single tree-rewriting primitive all citation markup is built on.
//
// The package works directly on golang.org/x/net/html nodes. Unlike tree
// models that attach text and tails to elements, x/net/html represents text
// as explicit sibling nodes, so wrapping a span of text is a node split:
// the leading text stays in the original node, the wrapped span moves into
// a new element, and the trailing text becomes a fresh text node after it.
package htmlutil

import (
	"errors"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrUnparseable reports HTML the tolerant parser could not handle.
var ErrUnparseable = errors.New("htmlutil: unparseable HTML")

// ParseFragment parses an HTML fragment into a detached <body> container
// whose children are the fragment's top-level nodes.
func ParseFragment(fragment string) (*html.Node, error) {
	ctx := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), ctx)
	if err != nil {
		return nil, errors.Join(ErrUnparseable, err)
	}
	container := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	for _, n := range nodes {
		container.AppendChild(n)
	}
	return container, nil
}

// Serialize renders the children of a container produced by ParseFragment
// back to an HTML fragment string.
func Serialize(container *html.Node) (string, error) {
	var b strings.Builder
	for child := container.FirstChild; child != nil; child = child.NextSibling {
		if err := html.Render(&b, child); err != nil {
			return "", err
		}
	}
	return b.String(), nil
}

// TextContent concatenates the text nodes under n in document order.
func TextContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			return
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return b.String()
}

// NewElement creates a detached element of the given tag with one text
// child carrying text.
func NewElement(tag, text string) *html.Node {
	el := &html.Node{Type: html.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag))}
	if text != "" {
		el.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	}
	return el
}

// SetAttr sets or replaces an attribute on an element.
func SetAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// Attr returns the value of an attribute, or "" when absent.
func Attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// WrapText replaces textNode.Data[start:end] with the element returned by
// makeReplacement, called with exactly that substring. The text before
// start stays in textNode; the text after end becomes a new text node
// following the inserted element. Surrounding siblings and children are
// untouched, so the concatenated text of the tree is preserved.
//
// The inserted element is returned so the caller can continue scanning the
// remaining text after it. Offsets are byte offsets into textNode.Data.
func WrapText(textNode *html.Node, start, end int, makeReplacement func(text string) *html.Node) *html.Node {
	parent := textNode.Parent
	data := textNode.Data

	el := makeReplacement(data[start:end])
	textNode.Data = data[:start]
	parent.InsertBefore(el, textNode.NextSibling)
	if rest := data[end:]; rest != "" {
		parent.InsertBefore(&html.Node{Type: html.TextNode, Data: rest}, el.NextSibling)
	}
	return el
}

// NextText returns the node immediately following el when it is a text
// node, else nil. After WrapText this is the remainder of the split text.
func NextText(el *html.Node) *html.Node {
	if next := el.NextSibling; next != nil && next.Type == html.TextNode {
		return next
	}
	return nil
}

// HasAncestor reports whether n has an ancestor element with the given tag.
func HasAncestor(n *html.Node, tag string) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && p.Data == tag {
			return true
		}
	}
	return false
}
