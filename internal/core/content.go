package core

import (
	"fmt"
	"net/url"
	"strings"
)

// ContentKind is the kind of catalog item being played.
type ContentKind string

const (
	KindPlaylist ContentKind = "playlist"
	KindAlbum    ContentKind = "album"
	KindTrack    ContentKind = "track"
	KindArtist   ContentKind = "artist"
)

// ParseContentKind parses a content kind. Empty defaults to playlist.
func ParseContentKind(s string) (ContentKind, error) {
	switch ContentKind(strings.ToLower(strings.TrimSpace(s))) {
	case "", KindPlaylist:
		return KindPlaylist, nil
	case KindAlbum:
		return KindAlbum, nil
	case KindTrack:
		return KindTrack, nil
	case KindArtist:
		return KindArtist, nil
	default:
		return "", &CLIError{Code: ExitUsage, Msg: fmt.Sprintf("unknown content kind %q", s)}
	}
}

// PlaybackIntent asks for content to be played on a logical player.
type PlaybackIntent struct {
	Target  string      `json:"target"`
	Content string      `json:"content"`
	Kind    ContentKind `json:"kind"`
}

// Content is a content reference in every form the strategies need.
type Content struct {
	ID       string      `json:"id"`
	Kind     ContentKind `json:"kind"`
	URI      string      `json:"uri"`
	DeepLink string      `json:"deep_link"`
}

// NormalizeContent accepts a raw id, a scheme:kind:id URI or an https deep
// link. A kind embedded in the reference wins over kind.
func NormalizeContent(ref string, kind ContentKind, cfg PlaybackConfig) (Content, error) {
	cfg = cfg.WithDefaults()
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return Content{}, &CLIError{Code: ExitUsage, Msg: "content reference required"}
	}
	if kind == "" {
		kind = KindPlaylist
	}

	id := ref
	switch {
	case strings.HasPrefix(ref, "https://") || strings.HasPrefix(ref, "http://"):
		u, err := url.Parse(ref)
		if err != nil {
			return Content{}, &CLIError{Code: ExitUsage, Msg: "invalid content link", Err: err}
		}
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		// Localized links look like /intl-de/track/<id>.
		if len(parts) == 3 && strings.HasPrefix(parts[0], "intl-") {
			parts = parts[1:]
		}
		if len(parts) != 2 || parts[1] == "" {
			return Content{}, &CLIError{Code: ExitUsage, Msg: fmt.Sprintf("unrecognized content link %q", ref)}
		}
		if parsed, err := ParseContentKind(parts[0]); err == nil {
			kind = parsed
		}
		id = parts[1]
	case strings.Contains(ref, ":"):
		parts := strings.Split(ref, ":")
		if len(parts) < 3 || parts[len(parts)-1] == "" {
			return Content{}, &CLIError{Code: ExitUsage, Msg: fmt.Sprintf("unrecognized content uri %q", ref)}
		}
		if parsed, err := ParseContentKind(parts[len(parts)-2]); err == nil {
			kind = parsed
		}
		id = parts[len(parts)-1]
	}

	return Content{
		ID:       id,
		Kind:     kind,
		URI:      fmt.Sprintf("%s:%s:%s", cfg.ContentScheme, kind, id),
		DeepLink: fmt.Sprintf("https://%s/%s/%s", cfg.DeepLinkHost, kind, id),
	}, nil
}
