package server

import (
	"io/fs"
	"net/http"
	"strings"
)

// publicFileServer serves the static site (pages, player script, styles),
// falling back to the index page for unknown paths.
type publicFileServer struct {
	fileServer http.Handler
	fileSystem fs.FS
}

func newPublicFileServer(fsys fs.FS) *publicFileServer {
	return &publicFileServer{
		fileServer: http.FileServer(http.FS(fsys)),
		fileSystem: fsys,
	}
}

func (s *publicFileServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/")
	if path == "" {
		path = "index.html"
	}

	_, err := fs.Stat(s.fileSystem, path)
	if err != nil {
		r.URL.Path = "/"
	}

	s.fileServer.ServeHTTP(w, r)
}
