package video

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/alenastream/alenastream/internal/httputil"
)

type grantResponse struct {
	Mode       string    `json:"mode"`
	URL        string    `json:"url"`
	ValidUntil time.Time `json:"validUntil"`
}

// PublicSigned issues one delivery grant for an embed token: an external
// sub-document URL, a presigned adaptive manifest, or a presigned file, in
// that order of preference. The URL stops working once the presign window
// closes; clients are expected to re-request before then.
func (h *Handler) PublicSigned(w http.ResponseWriter, r *http.Request) {
	embedToken := chi.URLParam(r, "embedToken")

	var fileKey string
	var hlsKey, source *string
	err := h.db.QueryRow(r.Context(),
		`SELECT file_key, hls_key, source FROM videos WHERE embed_token = $1`,
		embedToken,
	).Scan(&fileKey, &hlsKey, &source)
	if err != nil {
		httputil.WriteError(w, http.StatusNotFound, "video not found")
		return
	}

	validUntil := time.Now().Add(h.grantTTL)

	if source != nil && *source != "" {
		httputil.WriteJSON(w, http.StatusOK, grantResponse{
			Mode:       "embed",
			URL:        *source,
			ValidUntil: validUntil,
		})
		return
	}

	if hlsKey != nil && *hlsKey != "" {
		signedURL, err := h.storage.GenerateDownloadURL(r.Context(), *hlsKey, h.grantTTL)
		if err != nil {
			httputil.WriteError(w, http.StatusInternalServerError, "failed to sign delivery URL")
			return
		}
		httputil.WriteJSON(w, http.StatusOK, grantResponse{
			Mode:       "adaptive",
			URL:        signedURL,
			ValidUntil: validUntil,
		})
		return
	}

	signedURL, err := h.storage.GenerateDownloadURL(r.Context(), fileKey, h.grantTTL)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to sign delivery URL")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, grantResponse{
		Mode:       "direct",
		URL:        signedURL,
		ValidUntil: validUntil,
	})
}
