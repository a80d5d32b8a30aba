// Package source turns a user-supplied URL into plain text: a readable
// article body or a video transcript. Extraction is best-effort; failures
// that mean "nothing usable here" surface as ErrNoContent rather than as
// transport errors.
package source

import (
	"errors"
	"strings"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/127.0.0.0 Safari/537.36"

var (
	ErrNoContent      = errors.New("no content extracted")
	ErrUnsupportedURL = errors.New("unsupported URL")
)

// Document is the extracted text of a single source. It is produced once per
// request and never persisted.
type Document struct {
	Title string
	Text  string
}

// Content returns the title-prefixed plain text handed to the summarizer.
func (d Document) Content() string {
	title := strings.TrimSpace(d.Title)
	if title == "" {
		return d.Text
	}

	return title + "\n\n" + d.Text
}
