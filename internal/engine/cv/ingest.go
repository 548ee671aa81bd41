package cv

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"golang.org/x/net/html"

	"github.com/anatolykoptev/go_cv/internal/engine"
)

// LinesFromHTML converts an HTML résumé into document lines. Markdown
// conversion preserves block structure; a raw tree walk is the fallback.
func LinesFromHTML(src string) []string {
	md, err := htmltomarkdown.ConvertString(src)
	if err != nil || strings.TrimSpace(md) == "" {
		md = textFromHTMLTree(src)
	}
	return engine.SplitLines(md)
}

// textFromHTMLTree walks the parsed HTML tree collecting text nodes,
// inserting line breaks at block elements.
func textFromHTMLTree(src string) string {
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return engine.CleanHTML(src)
	}
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			sb.WriteString(n.Data)
		case html.ElementNode:
			switch n.Data {
			case "script", "style", "noscript":
				return
			case "br", "p", "div", "li", "tr", "h1", "h2", "h3", "h4", "h5", "h6":
				sb.WriteByte('\n')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return sb.String()
}

// FetchDocumentLines downloads a résumé page and converts it to lines.
func FetchDocumentLines(ctx context.Context, rawURL string) ([]string, error) {
	engine.IncrFetchRequests()

	ctx, cancel := context.WithTimeout(ctx, engine.Cfg.FetchTimeout)
	defer cancel()

	client := engine.Cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := engine.RetryHTTP(ctx, engine.DefaultRetryConfig, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "text/html,application/xhtml+xml,*/*;q=0.8")
		return client.Do(req)
	})
	if err != nil {
		engine.IncrFetchErrors()
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		engine.IncrFetchErrors()
		return nil, fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		engine.IncrFetchErrors()
		return nil, fmt.Errorf("fetch %s: read body: %w", rawURL, err)
	}
	return LinesFromHTML(string(body)), nil
}
