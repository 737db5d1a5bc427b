package ingest

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// DocumentLink is one downloadable project document found on a registry
// page.
type DocumentLink struct {
	URL  string
	Name string
}

// ExtractDocumentLinks walks a registry project page and collects links that
// look like project documents: .pdf targets and registry document-API
// endpoints. Relative hrefs are resolved against pageURL; duplicates are
// dropped keeping the first occurrence.
func ExtractDocumentLinks(pageHTML, pageURL string) ([]DocumentLink, error) {
	doc, err := html.Parse(strings.NewReader(pageHTML))
	if err != nil {
		return nil, err
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var links []DocumentLink

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			var href string
			for _, attr := range n.Attr {
				if attr.Key == "href" {
					href = strings.TrimSpace(attr.Val)
					break
				}
			}
			if href != "" && isDocumentHref(href) {
				if resolved := resolveHref(base, href); resolved != "" && !seen[resolved] {
					seen[resolved] = true
					links = append(links, DocumentLink{URL: resolved, Name: linkText(n)})
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return links, nil
}

func isDocumentHref(href string) bool {
	lower := strings.ToLower(href)
	if strings.HasPrefix(lower, "javascript:") || strings.HasPrefix(lower, "mailto:") || strings.HasPrefix(lower, "#") {
		return false
	}
	if strings.Contains(lower, ".pdf") {
		return true
	}
	// Registry document APIs serve PDFs from extension-less endpoints.
	return strings.Contains(lower, "/documents/") || strings.Contains(lower, "/mymodule/servlet/servletfilehandler")
}

func resolveHref(base *url.URL, href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	resolved := base.ResolveReference(u)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	return resolved.String()
}

func linkText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}
