package video

import (
	"html/template"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/alenastream/alenastream/internal/httputil"
)

type embedPageData struct {
	Title       string
	PublicToken string
	Nonce       string
}

type notFoundPageData struct {
	Nonce string
}

// The embed shell: a media element, the interaction overlay, and the loading
// indicator. The player script drives the grant lifecycle against the public
// API; the page itself carries no URLs worth scraping.
//
// The shell expects /js/embed.js from the deployment's static site (the
// PUBLIC_DIR tree): the page renders but stays inert without it.
var embedPageTemplate = template.Must(template.New("embed").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <title>{{.Title}}</title>
    <style nonce="{{.Nonce}}">
        * { margin: 0; padding: 0; box-sizing: border-box; }
        html, body { width: 100%; height: 100%; overflow: hidden; background: #000; }
        #videoContainer { position: relative; width: 100%; height: 100%; }
        video { width: 100%; height: 100%; object-fit: contain; }
        #overlay {
            position: absolute;
            inset: 0;
            z-index: 10;
            cursor: pointer;
            background: rgba(0, 0, 0, 0.35);
        }
        #loading {
            display: none;
            position: absolute;
            top: 50%;
            left: 50%;
            transform: translate(-50%, -50%);
            z-index: 5;
            color: #e2e8f0;
            font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
            font-size: 14px;
        }
    </style>
</head>
<body>
    <div id="videoContainer" data-token="{{.PublicToken}}">
        <video id="player" playsinline webkit-playsinline controlsList="nodownload"></video>
        <div id="loading">Buffering…</div>
        <div id="overlay"></div>
    </div>
    <script nonce="{{.Nonce}}" src="/js/embed.js" defer></script>
</body>
</html>`))

var notFoundPageTemplate = template.Must(template.New("embed-not-found").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <title>Video not found</title>
    <style nonce="{{.Nonce}}">
        html, body { width: 100%; height: 100%; background: #0f172a; }
        body {
            display: flex;
            align-items: center;
            justify-content: center;
            color: #e2e8f0;
            font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
        }
    </style>
</head>
<body>
    <p>This video does not exist or has been removed.</p>
</body>
</html>`))

// EmbedPage serves the public player shell for one embed token.
func (h *Handler) EmbedPage(w http.ResponseWriter, r *http.Request) {
	publicToken := chi.URLParam(r, "token")
	nonce := httputil.NonceFromContext(r.Context())

	var title string
	err := h.db.QueryRow(r.Context(),
		`SELECT title FROM videos WHERE embed_token = $1`,
		publicToken,
	).Scan(&title)
	if err != nil {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		if err := notFoundPageTemplate.Execute(w, notFoundPageData{Nonce: nonce}); err != nil {
			log.Printf("failed to render not found page: %v", err)
		}
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := embedPageTemplate.Execute(w, embedPageData{
		Title:       title,
		PublicToken: publicToken,
		Nonce:       nonce,
	}); err != nil {
		log.Printf("failed to render embed page: %v", err)
	}
}
