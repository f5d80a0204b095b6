// Package web embeds the dashboard bundle and serves it as a single-page
// application.
//
// Layout of dist/:
//
//	index.html   dashboard shell, always revalidated
//	assets/      fingerprinted JS, CSS and palette swatches, cached for a year
//
// The repository ships a placeholder index.html; the frontend build
// replaces dist/ wholesale.
package web

import (
	"embed"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"strings"
)

//go:embed all:dist
var distFS embed.FS

const (
	indexFile       = "index.html"
	assetsPrefix    = "assets/"
	immutableCache  = "public, max-age=31536000, immutable"
	revalidateCache = "no-cache"
)

// SPAHandler serves the embedded dashboard. Unknown dashboard routes such as
// /scans/SEA001 fall back to index.html; unknown /api/ and /ws/ paths are 404s
// so API clients never receive HTML.
func SPAHandler() http.Handler {
	return newSPAHandler(distFS)
}

func newSPAHandler(root fs.FS) http.Handler {
	dist, err := fs.Sub(root, "dist")
	if err != nil {
		panic("web: failed to open dist: " + err.Error())
	}
	files := http.FileServer(http.FS(dist))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")

		if strings.HasPrefix(name, "api/") || strings.HasPrefix(name, "ws/") || name == "api" || name == "ws" {
			http.NotFound(w, r)
			return
		}

		if name != "" && name != indexFile && exists(dist, name) {
			if strings.HasPrefix(name, assetsPrefix) {
				w.Header().Set("Cache-Control", immutableCache)
			}
			files.ServeHTTP(w, r)
			return
		}

		// Everything else is a client-side route.
		w.Header().Set("Cache-Control", revalidateCache)
		r2 := r.Clone(r.Context())
		r2.URL.Path = "/"
		files.ServeHTTP(w, r2)
	})
}

func exists(fsys fs.FS, name string) bool {
	f, err := fsys.Open(name)
	if err != nil {
		return false
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			slog.Debug("web: failed to close embedded file", "path", name, "error", closeErr)
		}
	}()
	info, err := f.Stat()
	return err == nil && !info.IsDir()
}
