// Package playback implements the signed-URL lifecycle for a video embed
// session: grant acquisition, media attachment, periodic renewal, failure
// fallback, and interaction-gated view registration.
package playback

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Mode tags how a delivery grant's URL is to be consumed.
type Mode string

const (
	// ModeEmbed delegates playback to an embedded sub-document.
	ModeEmbed Mode = "embed"
	// ModeAdaptive points at an adaptive-stream manifest.
	ModeAdaptive Mode = "adaptive"
	// ModeDirect points at a plain media file.
	ModeDirect Mode = "direct"
)

// Grant is a short-lived, mode-tagged URL authorizing delivery of one video.
// It is owned by a single playback session and never reused once superseded.
type Grant struct {
	Mode       Mode      `json:"mode"`
	URL        string    `json:"url"`
	ValidUntil time.Time `json:"validUntil"`
}

// Reference is the public metadata for one video, resolved once at session
// start. The public token is the capability to read it, not to stream.
type Reference struct {
	ID         string `json:"id"`
	EmbedToken string `json:"embed_token"`
	MediaID    string `json:"video_id"`
	Title      string `json:"title"`
}

// ErrNotFound marks an unknown public token. It is terminal for the session.
var ErrNotFound = errors.New("video not found")

// Service is the server boundary the controller talks to.
type Service interface {
	ResolveReference(ctx context.Context, publicToken string) (*Reference, error)
	RequestGrant(ctx context.Context, embedToken string) (*Grant, error)
	RegisterView(ctx context.Context, videoID string) error
}

// FallbackName derives the best-effort direct filename used once grants are
// unobtainable, appending ext only when the media id does not already carry it.
func FallbackName(mediaID, ext string) string {
	if strings.HasSuffix(mediaID, ext) {
		return mediaID
	}
	return mediaID + ext
}
