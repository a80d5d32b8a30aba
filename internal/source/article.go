package source

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

const hackerNewsHost = "news.ycombinator.com"

// Articles extracts a readable title and body from a webpage.
//
// Hacker News item pages are special-cased: the outbound story link is
// resolved and extracted instead, falling back to the item page itself for
// text posts or when the story cannot be read.
type Articles struct {
	client *http.Client
	log    *slog.Logger
}

func NewArticles(timeout time.Duration, log *slog.Logger) *Articles {
	return &Articles{
		client: &http.Client{Timeout: timeout},
		log:    log,
	}
}

func (a *Articles) Extract(ctx context.Context, rawURL string) (Document, error) {
	rawURL = strings.TrimSpace(rawURL)

	if isHackerNewsItemURL(rawURL) {
		storyURL, err := a.resolveStoryURL(ctx, rawURL)
		if err != nil {
			a.log.WarnContext(ctx, "Failed to resolve story link so using the item page",
				"error", err,
				"itemURL", rawURL)
		} else if storyURL != "" {
			doc, extractErr := a.extract(ctx, storyURL)
			if extractErr == nil {
				return doc, nil
			}

			a.log.WarnContext(ctx, "Failed to extract story so using the item page",
				"error", extractErr,
				"itemURL", rawURL,
				"storyURL", storyURL)
		}
	}

	return a.extract(ctx, rawURL)
}

func (a *Articles) extract(ctx context.Context, rawURL string) (Document, error) {
	resp, err := a.get(ctx, rawURL)
	if err != nil {
		return Document{}, err
	}
	defer func() {
		if err = resp.Body.Close(); err != nil {
			a.log.ErrorContext(ctx, "Failed to close response body",
				"error", err,
				"url", rawURL,
				"operation", "extract")
		}
	}()

	if resp.StatusCode != http.StatusOK {
		a.log.WarnContext(ctx, "Unexpected status for article page",
			"status", resp.StatusCode,
			"url", rawURL)

		return Document{}, ErrNoContent
	}

	article, err := readability.FromReader(resp.Body, resp.Request.URL)
	if err != nil {
		a.log.WarnContext(ctx, "Readability gave up on page",
			"error", err,
			"url", rawURL)

		return Document{}, ErrNoContent
	}

	text := strings.TrimSpace(article.TextContent)
	if text == "" {
		return Document{}, ErrNoContent
	}

	return Document{
		Title: strings.TrimSpace(article.Title),
		Text:  text,
	}, nil
}

// resolveStoryURL scrapes a Hacker News item page for its outbound story
// link. An empty URL with a nil error means the item links back to the site
// itself (a text post).
func (a *Articles) resolveStoryURL(ctx context.Context, itemURL string) (string, error) {
	resp, err := a.get(ctx, itemURL)
	if err != nil {
		return "", err
	}
	defer func() {
		if err = resp.Body.Close(); err != nil {
			a.log.ErrorContext(ctx, "Failed to close response body",
				"error", err,
				"itemURL", itemURL,
				"operation", "resolveStoryURL")
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("do request: unexpected status: %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("create document from reader: %w", err)
	}

	href, ok := doc.Find(".titleline > a").First().Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return "", nil
	}

	storyURL, err := resp.Request.URL.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", fmt.Errorf("parse story link: %w", err)
	}

	if storyURL.Hostname() == resp.Request.URL.Hostname() {
		return "", nil
	}

	return storyURL.String(), nil
}

func (a *Articles) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}

	return resp, nil
}

func isHackerNewsItemURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}

	return strings.TrimPrefix(u.Hostname(), "www.") == hackerNewsHost &&
		u.Path == "/item"
}
