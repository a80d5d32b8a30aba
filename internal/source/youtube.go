package source

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const (
	defaultWatchBaseURL  = "https://www.youtube.com/watch?v="
	playerResponseMarker = "ytInitialPlayerResponse = "
)

var videoIDRe = regexp.MustCompile(`^[\w-]{11}$`)

// Transcripts fetches the caption track of a YouTube video and concatenates
// its lines, in original order, into a single document.
type Transcripts struct {
	client       *http.Client
	language     string
	watchBaseURL string
	log          *slog.Logger
}

func NewTranscripts(timeout time.Duration, language string, log *slog.Logger) *Transcripts {
	return &Transcripts{
		client:       &http.Client{Timeout: timeout},
		language:     language,
		watchBaseURL: defaultWatchBaseURL,
		log:          log,
	}
}

// IsVideoURL reports whether raw is a recognized video-platform URL.
func IsVideoURL(raw string) bool {
	_, ok := videoID(raw)

	return ok
}

func (t *Transcripts) Extract(ctx context.Context, rawURL string) (Document, error) {
	id, ok := videoID(rawURL)
	if !ok {
		return Document{}, ErrUnsupportedURL
	}

	page, err := t.getBody(ctx, t.watchBaseURL+id)
	if err != nil {
		return Document{}, err
	}

	player, err := playerResponse(string(page))
	if err != nil {
		t.log.WarnContext(ctx, "No player response on watch page",
			"error", err,
			"videoID", id)

		return Document{}, ErrNoContent
	}

	trackURL := t.captionTrackURL(player)
	if trackURL == "" {
		t.log.WarnContext(ctx, "Video has no caption tracks",
			"videoID", id,
			"language", t.language)

		return Document{}, ErrNoContent
	}

	captions, err := t.getBody(ctx, trackURL)
	if err != nil {
		return Document{}, err
	}

	text, err := transcriptText(captions)
	if err != nil {
		t.log.WarnContext(ctx, "Failed to parse caption track",
			"error", err,
			"videoID", id)

		return Document{}, ErrNoContent
	}
	if text == "" {
		return Document{}, ErrNoContent
	}

	return Document{
		Title: strings.TrimSpace(gjson.Get(player, "videoDetails.title").String()),
		Text:  text,
	}, nil
}

// captionTrackURL prefers the configured language and falls back to the
// first track the video offers.
func (t *Transcripts) captionTrackURL(player string) string {
	tracks := gjson.Get(player, "captions.playerCaptionsTracklistRenderer.captionTracks")
	if !tracks.Exists() {
		return ""
	}

	var first, match string

	tracks.ForEach(func(_, track gjson.Result) bool {
		base := strings.TrimSpace(track.Get("baseUrl").String())
		if base == "" {
			return true
		}

		if first == "" {
			first = base
		}

		if track.Get("languageCode").String() == t.language {
			match = base

			return false
		}

		return true
	})

	if match != "" {
		return match
	}

	return first
}

func (t *Transcripts) getBody(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer func() {
		if err = resp.Body.Close(); err != nil {
			t.log.ErrorContext(ctx, "Failed to close response body",
				"error", err,
				"url", rawURL,
				"operation", "getBody")
		}
	}()

	if resp.StatusCode != http.StatusOK {
		t.log.WarnContext(ctx, "Unexpected status from video platform",
			"status", resp.StatusCode,
			"url", rawURL)

		return nil, ErrNoContent
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return body, nil
}

func videoID(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", false
	}

	host := strings.TrimPrefix(u.Hostname(), "www.")

	switch host {
	case "youtube.com", "m.youtube.com", "music.youtube.com":
		if u.Path == "/watch" {
			id := u.Query().Get("v")

			return id, videoIDRe.MatchString(id)
		}

		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(parts) == 2 {
			switch parts[0] {
			case "shorts", "embed", "live":
				return parts[1], videoIDRe.MatchString(parts[1])
			}
		}
	case "youtu.be":
		id := strings.Trim(u.Path, "/")

		return id, videoIDRe.MatchString(id)
	}

	return "", false
}

// playerResponse cuts the ytInitialPlayerResponse JSON object out of the
// watch-page HTML. A streaming decode stops at the end of the object, so the
// trailing script text does not matter.
func playerResponse(page string) (string, error) {
	idx := strings.Index(page, playerResponseMarker)
	if idx < 0 {
		return "", errors.New("player response marker not found")
	}

	var raw json.RawMessage
	dec := json.NewDecoder(strings.NewReader(page[idx+len(playerResponseMarker):]))
	if err := dec.Decode(&raw); err != nil {
		return "", fmt.Errorf("decode player response: %w", err)
	}

	return string(raw), nil
}

type timedtext struct {
	Lines []timedtextLine `xml:"text"`
}

type timedtextLine struct {
	Start float64 `xml:"start,attr"`
	Text  string  `xml:",chardata"`
}

// transcriptText joins caption lines in document order. Caption payloads are
// HTML-escaped inside the XML, so each line is unescaped once more after
// decoding.
func transcriptText(captions []byte) (string, error) {
	var doc timedtext
	if err := xml.Unmarshal(captions, &doc); err != nil {
		return "", fmt.Errorf("unmarshal timedtext: %w", err)
	}

	parts := make([]string, 0, len(doc.Lines))
	for _, line := range doc.Lines {
		text := strings.TrimSpace(html.UnescapeString(line.Text))
		if text == "" {
			continue
		}

		parts = append(parts, text)
	}

	return strings.Join(parts, " "), nil
}
