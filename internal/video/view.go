package video

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mssola/useragent"

	"github.com/alenastream/alenastream/internal/httputil"
)

// RegisterView records one view for a video. The caller only triggers it
// after genuine interaction; retries are deduplicated server-side by the
// viewer hash when reporting, not at insert time.
func (h *Handler) RegisterView(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "id")

	var exists bool
	err := h.db.QueryRow(r.Context(),
		`SELECT EXISTS (SELECT 1 FROM videos WHERE id = $1)`,
		videoID,
	).Scan(&exists)
	if err != nil || !exists {
		httputil.WriteError(w, http.StatusNotFound, "video not found")
		return
	}

	ip := clientIP(r)
	hash := viewerHash(ip, r.UserAgent())
	browser := parseBrowser(r.UserAgent())
	device := parseDevice(r.UserAgent())

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		var country, city string
		if h.geoResolver != nil {
			country, city = h.geoResolver.Lookup(ip)
		}
		if _, err := h.db.Exec(ctx,
			`INSERT INTO video_views (video_id, viewer_hash, browser, device, country, city)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			videoID, hash, browser, device, country, city,
		); err != nil {
			slog.Error("video: failed to record view", "video_id", videoID, "error", err)
		}
	}()

	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func viewerHash(ip, userAgent string) string {
	h := sha256.Sum256([]byte(ip + "|" + userAgent))
	return fmt.Sprintf("%x", h[:8])
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if first, _, ok := strings.Cut(forwarded, ","); ok {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(forwarded)
	}
	return r.RemoteAddr
}

func parseBrowser(uaString string) string {
	ua := useragent.New(uaString)
	name, _ := ua.Browser()
	if name == "" {
		return "Other"
	}
	return name
}

func parseDevice(uaString string) string {
	ua := useragent.New(uaString)
	if ua.Bot() {
		return "Bot"
	}
	if ua.Mobile() {
		return "Mobile"
	}
	return "Desktop"
}
