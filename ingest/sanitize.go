package ingest

import (
	stdhtml "html"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// allowedTags is the content allow-list. It is intentionally stricter than
// a general-purpose sanitizer: div is excluded so remote content cannot
// inject a top-level wrapper that breaks the surrounding layout.
var allowedTags = map[string]bool{
	"a": true, "abbr": true, "b": true, "blockquote": true, "br": true,
	"cite": true, "code": true, "dd": true, "del": true, "dl": true,
	"dt": true, "em": true, "figcaption": true, "figure": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"hr": true, "i": true, "img": true, "ins": true, "li": true,
	"ol": true, "p": true, "pre": true, "q": true, "s": true,
	"small": true, "span": true, "strong": true, "sub": true, "sup": true,
	"table": true, "tbody": true, "td": true, "tfoot": true, "th": true,
	"thead": true, "tr": true, "u": true, "ul": true,
}

var allowedAttrs = map[string]bool{
	"href": true, "src": true, "srcset": true, "alt": true, "title": true,
	"width": true, "height": true, "datetime": true, "cite": true,
}

// droppedTags lose their children as well, not just the tag itself.
var droppedTags = map[string]bool{
	"script": true, "style": true, "iframe": true, "object": true,
	"embed": true, "form": true, "input": true, "button": true,
	"textarea": true, "select": true, "noscript": true,
}

// SanitizeContent reduces remote HTML to the allow-list above, unwrapping
// disallowed elements around their children. Parsing and re-rendering also
// balances any unclosed tags.
func SanitizeContent(content string) string {
	if strings.TrimSpace(content) == "" {
		return ""
	}

	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(content), body)
	if err != nil {
		return ""
	}

	sanitized := []*html.Node{}
	for _, node := range nodes {
		sanitized = append(sanitized, sanitizeNode(node)...)
	}

	var sb strings.Builder
	for _, node := range sanitized {
		if err := html.Render(&sb, node); err != nil {
			return ""
		}
	}
	return strings.TrimSpace(sb.String())
}

// sanitizeNode returns the replacement nodes for one input node: the node
// itself when allowed, its sanitized children when merely disallowed,
// nothing when the tag is dropped outright.
func sanitizeNode(node *html.Node) []*html.Node {
	switch node.Type {
	case html.TextNode:
		detach(node)
		return []*html.Node{node}
	case html.ElementNode:
	default:
		return nil
	}

	tag := strings.ToLower(node.Data)
	if droppedTags[tag] {
		return nil
	}

	children := []*html.Node{}
	child := node.FirstChild
	for child != nil {
		next := child.NextSibling
		children = append(children, sanitizeNode(child)...)
		child = next
	}

	if !allowedTags[tag] {
		return children
	}

	detach(node)
	node.FirstChild, node.LastChild = nil, nil
	for _, c := range children {
		node.AppendChild(c)
	}
	node.Attr = filterAttrs(node.Attr)
	return []*html.Node{node}
}

func filterAttrs(attrs []html.Attribute) []html.Attribute {
	kept := []html.Attribute{}
	for _, attr := range attrs {
		if !allowedAttrs[strings.ToLower(attr.Key)] {
			continue
		}
		val := strings.TrimSpace(attr.Val)
		lower := strings.ToLower(val)
		if strings.HasPrefix(lower, "javascript:") || strings.HasPrefix(lower, "data:text/html") {
			continue
		}
		kept = append(kept, html.Attribute{Key: strings.ToLower(attr.Key), Val: val})
	}
	return kept
}

func detach(node *html.Node) {
	if node.Parent != nil {
		node.Parent.RemoveChild(node)
	}
	node.Parent, node.PrevSibling, node.NextSibling = nil, nil, nil
}

// StripMarkup removes all markup and collapses whitespace, for comparisons
// where cosmetic markup changes must not count as real changes.
func StripMarkup(content string) string {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(content), body)
	if err != nil {
		return strings.TrimSpace(content)
	}
	var sb strings.Builder
	var collect func(node *html.Node)
	collect = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			collect(child)
		}
	}
	for _, node := range nodes {
		collect(node)
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}

// NormalizePermalink decodes HTML entities and normalizes ampersand
// encoding so permalinks from differently-escaped feeds compare equal.
func NormalizePermalink(permalink string) string {
	permalink = strings.TrimSpace(permalink)
	permalink = strings.ReplaceAll(permalink, "&#038;", "&")
	return stdhtml.UnescapeString(permalink)
}
