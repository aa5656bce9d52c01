// Package extract reads comparison features out of raw HTML. It backs the
// browser session when script injection fails and validates clickstream
// selectors.
package extract

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/use-agent/cookiediff/models"
)

// skippedText lists elements whose text is never rendered.
const skippedText = "script, style, noscript, template, head"

// FromHTML extracts page text, link targets and image sources from
// rawHTML. Relative URLs are resolved against pageURL.
func FromHTML(rawHTML, pageURL string) (models.PageFeatures, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return models.PageFeatures{}, err
	}
	base, _ := url.Parse(pageURL)

	return models.PageFeatures{
		InnerText: Text(doc),
		Links:     attrURLs(doc, "a[href], area[href]", "href", base),
		Images:    attrURLs(doc, "img", "src", base),
	}, nil
}

// Text approximates document.body.innerText: text nodes of the body, one
// per line, skipping non-rendered elements.
func Text(doc *goquery.Document) string {
	body := doc.Find("body").Clone()
	body.Find(skippedText).Remove()

	var buf strings.Builder
	for _, n := range body.Nodes {
		writeText(&buf, n)
	}
	return strings.TrimSpace(buf.String())
}

func writeText(buf *strings.Builder, n *html.Node) {
	if n.Type == html.TextNode {
		if t := strings.TrimSpace(n.Data); t != "" {
			buf.WriteString(t)
			buf.WriteByte('\n')
		}
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(buf, c)
	}
}

// attrURLs collects attr of every element matching sel, resolved against
// base, in document order. Duplicates are kept since they are counted.
func attrURLs(doc *goquery.Document, sel, attr string, base *url.URL) []string {
	out := []string{}
	doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
		v, ok := s.Attr(attr)
		v = strings.TrimSpace(v)
		if !ok || v == "" {
			return
		}
		if base != nil {
			if u, err := base.Parse(v); err == nil {
				v = u.String()
			}
		}
		out = append(out, v)
	})
	return out
}

// Title returns the document title, or "".
func Title(rawHTML []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(rawHTML))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}
