package extract

import (
	"context"
	"strings"

	"golang.org/x/net/html"

	"travel-package-scraper/models"
)

// listingMarkers are whole class tokens that identify repeated listing cards
var listingMarkers = map[string]bool{
	"package": true, "tour": true, "trip": true, "card": true,
	"offer": true, "product": true, "item": true,
}

var containerTags = map[string]bool{"div": true, "li": true, "article": true, "section": true}

var skipTags = map[string]bool{"script": true, "style": true, "noscript": true}

const maxCandidates = 250

// HeuristicExtractor walks the DOM looking for repeated listing containers
type HeuristicExtractor struct{}

// NewHeuristicExtractor creates the DOM heuristic tier
func NewHeuristicExtractor() *HeuristicExtractor {
	return &HeuristicExtractor{}
}

func (e *HeuristicExtractor) Name() string { return "heuristic_dom" }

// Extract prefers class-marked containers and falls back to anchors
func (e *HeuristicExtractor) Extract(_ context.Context, page Page) ([]models.RawListing, float64, error) {
	doc, err := html.Parse(strings.NewReader(page.HTML))
	if err != nil {
		return nil, ConfidenceHeuristic, err
	}

	candidates := innermost(findNodes(doc, func(n *html.Node) bool {
		return containerTags[n.Data] && hasListingClass(n)
	}))
	if len(candidates) == 0 {
		candidates = findNodes(doc, func(n *html.Node) bool {
			return n.Data == "a" && attr(n, "href") != ""
		})
	}
	if len(candidates) > maxCandidates {
		candidates = candidates[:maxCandidates]
	}

	seen := make(map[string]bool)
	var listings []models.RawListing
	for _, node := range candidates {
		text := nodeText(node)
		if len(text) < 6 {
			continue
		}
		title := titleOf(node)
		if len(title) < 6 || !looksLikePackageTitle(title) {
			continue
		}
		key := strings.ToLower(title)
		if seen[key] {
			continue
		}
		seen[key] = true

		l := models.RawListing{
			Title:         title,
			PriceText:     findPrice(text),
			DurationValue: findDuration(text),
			Destinations:  guessDestinations(title),
			URL:           resolveURL(page.URL, linkOf(node)),
		}
		stamp(&l, ConfidenceHeuristic)
		listings = append(listings, l)

		if len(listings) >= maxListingsPerPage {
			break
		}
	}
	return listings, ConfidenceHeuristic, nil
}

// findNodes returns element nodes matching pred in document order, skipping
// script and style subtrees
func findNodes(root *html.Node, pred func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var f func(*html.Node)
	f = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if skipTags[n.Data] {
				return
			}
			if pred(n) {
				out = append(out, n)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c)
		}
	}
	f(root)
	return out
}

func firstNode(root *html.Node, pred func(*html.Node) bool) *html.Node {
	nodes := findNodes(root, pred)
	if len(nodes) == 0 {
		return nil
	}
	return nodes[0]
}

func hasListingClass(n *html.Node) bool {
	for _, class := range strings.Fields(strings.ToLower(attr(n, "class"))) {
		if listingMarkers[class] {
			return true
		}
	}
	return false
}

// innermost drops candidates that contain another candidate, so a wrapper
// never mixes fields from the cards inside it
func innermost(nodes []*html.Node) []*html.Node {
	isCandidate := make(map[*html.Node]bool, len(nodes))
	for _, n := range nodes {
		isCandidate[n] = true
	}
	wrapper := make(map[*html.Node]bool)
	for _, n := range nodes {
		for p := n.Parent; p != nil; p = p.Parent {
			if isCandidate[p] {
				wrapper[p] = true
			}
		}
	}
	out := nodes[:0:0]
	for _, n := range nodes {
		if !wrapper[n] {
			out = append(out, n)
		}
	}
	return out
}

// titleOf prefers headings, then anchor text, then bold text
func titleOf(n *html.Node) string {
	if h := firstNode(n, func(c *html.Node) bool {
		switch c.Data {
		case "h1", "h2", "h3", "h4", "h5":
			return true
		}
		return false
	}); h != nil {
		if t := nodeText(h); t != "" {
			return t
		}
	}
	if n.Data == "a" {
		return nodeText(n)
	}
	if a := firstNode(n, func(c *html.Node) bool { return c.Data == "a" && nodeText(c) != "" }); a != nil {
		return nodeText(a)
	}
	if b := firstNode(n, func(c *html.Node) bool { return c.Data == "strong" || c.Data == "b" }); b != nil {
		return nodeText(b)
	}
	return ""
}

func linkOf(n *html.Node) string {
	if n.Data == "a" {
		return attr(n, "href")
	}
	if a := firstNode(n, func(c *html.Node) bool { return c.Data == "a" && attr(c, "href") != "" }); a != nil {
		return attr(a, "href")
	}
	return ""
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// nodeText joins the text of n's subtree with single spaces
func nodeText(n *html.Node) string {
	var parts []string
	var f func(*html.Node)
	f = func(n *html.Node) {
		if n.Type == html.ElementNode && skipTags[n.Data] {
			return
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c)
		}
	}
	f(n)
	return collapseSpace(strings.Join(parts, " "))
}
