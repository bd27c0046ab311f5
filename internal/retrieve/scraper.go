package retrieve

import (
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/ppiankov/claimtrust/internal/extract"
)

// minParagraphRunes drops bylines, captions and button labels
const minParagraphRunes = 20

// bodySelectors are tried in order; the first one yielding paragraphs wins
var bodySelectors = []string{
	"article p",
	"[itemprop=articleBody] p",
	"#articleBody p, #article-view-content-div p, #dic_area",
	".article_body p, .article-body p, .news_body p",
	"main p",
	"p",
}

// Page is the scraped content of one article page
type Page struct {
	Title     string
	Sentences []string
}

// Scraper extracts article titles and body sentences from HTML
type Scraper struct{}

// NewScraper creates a new scraper
func NewScraper() *Scraper {
	return &Scraper{}
}

// Scrape parses an article page. When no body paragraphs are found it falls
// back to all visible text.
func (s *Scraper) Scrape(htmlContent string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, err
	}

	page := &Page{Title: pageTitle(doc)}

	var paragraphs []string
	for _, sel := range bodySelectors {
		doc.Find(sel).Each(func(_ int, p *goquery.Selection) {
			text := strings.Join(strings.Fields(p.Text()), " ")
			if utf8.RuneCountInString(text) >= minParagraphRunes {
				paragraphs = append(paragraphs, text)
			}
		})
		if len(paragraphs) > 0 {
			break
		}
	}

	text := strings.Join(paragraphs, " ")
	if text == "" && len(doc.Nodes) > 0 {
		text = extractVisibleText(doc.Nodes[0])
	}

	page.Sentences = extract.SplitSentences(text)
	return page, nil
}

// pageTitle prefers og:title over <title>
func pageTitle(doc *goquery.Document) string {
	if og, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok && strings.TrimSpace(og) != "" {
		return strings.TrimSpace(og)
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

// extractVisibleText extracts text nodes from HTML, skipping scripts,
// styles and page chrome
func extractVisibleText(n *html.Node) string {
	var buf strings.Builder

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "head", "script", "style", "noscript", "iframe", "nav", "header", "footer", "aside", "form":
				return
			}
		}

		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				buf.WriteString(text)
				buf.WriteString(" ")
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(n)
	return strings.TrimSpace(buf.String())
}

// resolveURL resolves href against base, keeping only http(s) links
func resolveURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}
	if strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") {
		return ""
	}

	parsed, err := url.Parse(href)
	if err != nil {
		return ""
	}

	resolved := parsed
	if base != nil {
		resolved = base.ResolveReference(parsed)
	}

	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	resolved.Fragment = ""

	return resolved.String()
}
