package video

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/alenastream/alenastream/internal/auth"
	"github.com/alenastream/alenastream/internal/httputil"
)

const maxTitleLength = 500

type referenceResponse struct {
	ID         string `json:"id"`
	EmbedToken string `json:"embed_token"`
	MediaID    string `json:"video_id"`
	Title      string `json:"title"`
}

// ByToken resolves a public embed token to the video reference the player
// needs. Unauthenticated by design: the token is the capability to read
// metadata, not to stream.
func (h *Handler) ByToken(w http.ResponseWriter, r *http.Request) {
	publicToken := chi.URLParam(r, "publicToken")

	var resp referenceResponse
	err := h.db.QueryRow(r.Context(),
		`SELECT id, embed_token, video_id, title FROM videos WHERE embed_token = $1`,
		publicToken,
	).Scan(&resp.ID, &resp.EmbedToken, &resp.MediaID, &resp.Title)
	if err != nil {
		httputil.WriteError(w, http.StatusNotFound, "video not found")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

type listItem struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	MediaID    string `json:"video_id"`
	EmbedToken string `json:"embedToken"`
	EmbedURL   string `json:"embedUrl"`
	CreatedAt  string `json:"createdAt"`
	ViewCount  int64  `json:"viewCount"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	rows, err := h.db.Query(r.Context(),
		`SELECT v.id, v.title, v.video_id, v.embed_token, v.created_at,
		        (SELECT count(*) FROM video_views vv WHERE vv.video_id = v.id) AS view_count
		 FROM videos v
		 WHERE v.user_id = $1
		 ORDER BY v.created_at DESC
		 LIMIT 200`,
		userID,
	)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to list videos")
		return
	}
	defer rows.Close()

	items := make([]listItem, 0)
	for rows.Next() {
		var item listItem
		var createdAt time.Time
		if err := rows.Scan(&item.ID, &item.Title, &item.MediaID, &item.EmbedToken, &createdAt, &item.ViewCount); err != nil {
			httputil.WriteError(w, http.StatusInternalServerError, "failed to list videos")
			return
		}
		item.CreatedAt = createdAt.Format(time.RFC3339)
		item.EmbedURL = h.baseURL + "/e/" + item.EmbedToken
		items = append(items, item)
	}

	httputil.WriteJSON(w, http.StatusOK, items)
}

type createRequest struct {
	Title   string `json:"title"`
	MediaID string `json:"video_id"`
	FileKey string `json:"fileKey"`
	HLSKey  string `json:"hlsKey"`
	Source  string `json:"source"`
}

type createResponse struct {
	ID         string `json:"id"`
	EmbedToken string `json:"embedToken"`
	EmbedURL   string `json:"embedUrl"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Title == "" || req.MediaID == "" {
		httputil.WriteError(w, http.StatusBadRequest, "title and video_id are required")
		return
	}
	if len(req.Title) > maxTitleLength {
		httputil.WriteError(w, http.StatusBadRequest, "title too long")
		return
	}
	if req.FileKey == "" && req.Source == "" {
		httputil.WriteError(w, http.StatusBadRequest, "either fileKey or source is required")
		return
	}
	if req.FileKey != "" && h.storage != nil {
		if _, _, err := h.storage.HeadObject(r.Context(), req.FileKey); err != nil {
			httputil.WriteError(w, http.StatusBadRequest, "fileKey does not reference an uploaded object")
			return
		}
	}

	embedToken, err := newEmbedToken()
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to generate embed token")
		return
	}

	var videoID string
	err = h.db.QueryRow(r.Context(),
		`INSERT INTO videos (user_id, title, video_id, embed_token, file_key, hls_key, source)
		 VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''))
		 RETURNING id`,
		userID, req.Title, req.MediaID, embedToken, req.FileKey, req.HLSKey, req.Source,
	).Scan(&videoID)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to create video")
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, createResponse{
		ID:         videoID,
		EmbedToken: embedToken,
		EmbedURL:   h.baseURL + "/e/" + embedToken,
	})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	videoID := chi.URLParam(r, "id")

	var fileKey string
	err := h.db.QueryRow(r.Context(),
		`DELETE FROM videos WHERE id = $1 AND user_id = $2 RETURNING file_key`,
		videoID, userID,
	).Scan(&fileKey)
	if err != nil {
		httputil.WriteError(w, http.StatusNotFound, "video not found")
		return
	}

	if fileKey != "" && h.storage != nil {
		if err := h.storage.DeleteObject(r.Context(), fileKey); err != nil {
			// The row is gone; orphaned objects are swept by operations.
			httputil.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
			return
		}
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func newEmbedToken() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}
