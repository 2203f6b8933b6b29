package video

import (
	"net/http"

	"github.com/alenastream/alenastream/internal/auth"
	"github.com/alenastream/alenastream/internal/httputil"
)

type statsSummary struct {
	TotalVideos int64 `json:"totalVideos"`
	TotalViews  int64 `json:"totalViews"`
	ViewsToday  int64 `json:"viewsToday"`
}

// StatsSummary powers the dashboard header: per-user totals across all videos.
func (h *Handler) StatsSummary(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	var s statsSummary
	err := h.db.QueryRow(r.Context(),
		`SELECT
		    (SELECT count(*) FROM videos v WHERE v.user_id = $1),
		    (SELECT count(*) FROM video_views vv JOIN videos v ON v.id = vv.video_id WHERE v.user_id = $1),
		    (SELECT count(*) FROM video_views vv JOIN videos v ON v.id = vv.video_id
		     WHERE v.user_id = $1 AND vv.created_at >= date_trunc('day', now()))`,
		userID,
	).Scan(&s.TotalVideos, &s.TotalViews, &s.ViewsToday)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, s)
}
