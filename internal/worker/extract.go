package worker

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// skipHrefPrefixes are anchor schemes that never lead to crawlable pages.
var skipHrefPrefixes = []string{"javascript:", "mailto:", "tel:"}

// PageData is what the worker extracts from a fetched HTML page.
type PageData struct {
	Title string
	Links []string
}

// extractPage parses HTML and pulls out the title and the outgoing links,
// resolved against the page URL.
func extractPage(pageURL string, body []byte) (*PageData, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	base, baseErr := url.Parse(pageURL)
	if baseErr != nil {
		return nil, fmt.Errorf("parse page url: %w", baseErr)
	}

	return &PageData{
		Title: extractPageTitle(doc),
		Links: extractLinks(base, doc),
	}, nil
}

// extractPageTitle extracts the page title, preferring <title> then og:title fallback.
func extractPageTitle(doc *goquery.Document) string {
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}

	if ogTitle, exists := doc.Find("meta[property='og:title']").Attr("content"); exists {
		return strings.TrimSpace(ogTitle)
	}

	return ""
}

// extractLinks resolves anchor hrefs against the base URL, dropping
// fragments, non-http(s) schemes, and duplicates. Order follows document
// order of first occurrence.
func extractLinks(base *url.URL, doc *goquery.Document) []string {
	seen := make(map[string]struct{})
	links := []string{}

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}

		lower := strings.ToLower(href)
		for _, prefix := range skipHrefPrefixes {
			if strings.HasPrefix(lower, prefix) {
				return
			}
		}

		resolved, resolveErr := base.Parse(href)
		if resolveErr != nil {
			return
		}

		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			return
		}

		resolved.Fragment = ""
		resolved.Host = strings.ToLower(resolved.Host)

		link := resolved.String()
		if _, dup := seen[link]; dup {
			return
		}

		seen[link] = struct{}{}
		links = append(links, link)
	})

	return links
}
