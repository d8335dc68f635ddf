package crawler

import (
	"io"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// Parser extracts links and collectable fields from HTML content.
type Parser struct {
	// baseURL is the URL of the page being parsed, used for resolving relative URLs.
	baseURL *url.URL
}

// ParseResult contains the information extracted from an HTML page.
type ParseResult struct {
	// Title is the page title from the <title> tag.
	Title string

	// Links contains every resolved href.
	Links []string

	// InternalLinks are links to the same host as the page.
	InternalLinks []string

	// ExternalLinks are links to other hosts.
	ExternalLinks []string

	// MetaTags maps meta name (or OpenGraph property) to content.
	MetaTags map[string]string

	// Emails contains addresses found in text and mailto links, lower-cased and deduplicated.
	Emails []string

	// Phones contains numbers found in tel links.
	Phones []string
}

// Fields flattens the result into named field values for compliance
// evaluation: "title", "meta:<name>", "email_<n>" and "phone_<n>".
func (r *ParseResult) Fields() map[string]string {
	fields := make(map[string]string, 1+len(r.MetaTags)+len(r.Emails)+len(r.Phones))
	if r.Title != "" {
		fields["title"] = r.Title
	}
	for name, content := range r.MetaTags {
		fields["meta:"+name] = content
	}
	for i, e := range r.Emails {
		fields["email_"+strconv.Itoa(i+1)] = e
	}
	for i, p := range r.Phones {
		fields["phone_"+strconv.Itoa(i+1)] = p
	}
	return fields
}

// NewParser creates a parser resolving relative links against baseURL.
func NewParser(baseURL string) (*Parser, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	return &Parser{baseURL: u}, nil
}

// Parse parses HTML content in a single pass.
func (p *Parser) Parse(content io.Reader) (*ParseResult, error) {
	doc, err := html.Parse(content)
	if err != nil {
		return nil, err
	}

	result := &ParseResult{
		Links:         make([]string, 0),
		InternalLinks: make([]string, 0),
		ExternalLinks: make([]string, 0),
		MetaTags:      make(map[string]string),
	}

	var (
		text   strings.Builder
		emails []string
		phones []string
	)

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.ElementNode:
			switch n.Data {
			case "script", "style", "noscript":
				return
			}
			if addr, ok := strings.CutPrefix(getAttr(n, "href"), "mailto:"); ok && n.Data == "a" {
				if addr, _, _ = strings.Cut(addr, "?"); addr != "" {
					emails = append(emails, addr)
				}
			}
			if num, ok := strings.CutPrefix(getAttr(n, "href"), "tel:"); ok && n.Data == "a" && num != "" {
				phones = append(phones, num)
			}
			p.processElement(n, result)
		case html.TextNode:
			text.WriteString(n.Data)
			text.WriteString(" ")
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	emails = append(emails, emailRegex.FindAllString(text.String(), -1)...)
	result.Emails = dedupe(emails, strings.ToLower)
	result.Phones = dedupe(phones, strings.TrimSpace)

	return result, nil
}

// processElement handles HTML element nodes.
func (p *Parser) processElement(n *html.Node, result *ParseResult) {
	switch n.Data {
	case "title":
		if n.FirstChild != nil && n.FirstChild.Type == html.TextNode && result.Title == "" {
			result.Title = strings.TrimSpace(n.FirstChild.Data)
		}

	case "a":
		if resolved := p.resolveURL(getAttr(n, "href")); resolved != "" {
			result.Links = append(result.Links, resolved)
			p.classifyLink(resolved, result)
		}

	case "meta":
		name := getAttr(n, "name")
		if name == "" {
			name = getAttr(n, "property") // OpenGraph
		}
		content := strings.TrimSpace(getAttr(n, "content"))
		if name != "" && content != "" {
			result.MetaTags[strings.ToLower(name)] = content
		}
	}
}

// resolveURL resolves href against the base URL and drops the fragment.
// Non-navigational schemes yield "".
func (p *Parser) resolveURL(href string) string {
	href = strings.TrimSpace(href)
	if href == "" || href == "#" {
		return ""
	}
	lower := strings.ToLower(href)
	for _, prefix := range []string{"javascript:", "mailto:", "tel:", "data:"} {
		if strings.HasPrefix(lower, prefix) {
			return ""
		}
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	resolved := p.baseURL.ResolveReference(u)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	resolved.Fragment = ""
	return resolved.String()
}

// classifyLink sorts a resolved link into internal or external.
func (p *Parser) classifyLink(link string, result *ParseResult) {
	u, err := url.Parse(link)
	if err != nil {
		return
	}
	if strings.EqualFold(u.Host, p.baseURL.Host) {
		result.InternalLinks = append(result.InternalLinks, link)
		return
	}
	result.ExternalLinks = append(result.ExternalLinks, link)
}

var emailRegex = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

// dedupe normalizes values and removes duplicates, keeping first-seen order.
func dedupe(values []string, normalize func(string) string) []string {
	seen := make(map[string]bool, len(values))
	unique := make([]string, 0, len(values))
	for _, v := range values {
		v = normalize(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		unique = append(unique, v)
	}
	return unique
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
