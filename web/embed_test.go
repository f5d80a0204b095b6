package web

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
)

func TestSPAHandler_EmbeddedShell(t *testing.T) {
	h := SPAHandler()

	for _, target := range []string{"/", "/scans/SEA001"} {
		t.Run(target, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Contains(t, rec.Body.String(), "<title>Sonar Hub</title>")
			assert.Equal(t, revalidateCache, rec.Header().Get("Cache-Control"))
		})
	}
}

func TestSPAHandler_Routing(t *testing.T) {
	h := newSPAHandler(fstest.MapFS{
		"dist/index.html":          {Data: []byte("<html>shell</html>")},
		"dist/assets/app-3f2a.js":  {Data: []byte("console.log('sonar')")},
		"dist/palettes/turbo.json": {Data: []byte(`{"name":"Turbo"}`)},
	})

	tests := []struct {
		name      string
		target    string
		wantCode  int
		wantBody  string
		wantCache string
	}{
		{name: "fingerprinted asset", target: "/assets/app-3f2a.js", wantCode: http.StatusOK, wantBody: "sonar", wantCache: immutableCache},
		{name: "other static file", target: "/palettes/turbo.json", wantCode: http.StatusOK, wantBody: "Turbo"},
		{name: "client route", target: "/simulate", wantCode: http.StatusOK, wantBody: "shell", wantCache: revalidateCache},
		{name: "directory falls back", target: "/assets/", wantCode: http.StatusOK, wantBody: "shell", wantCache: revalidateCache},
		{name: "unknown api path", target: "/api/nope", wantCode: http.StatusNotFound},
		{name: "unknown ws path", target: "/ws/terminal", wantCode: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.target, nil))

			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantBody != "" {
				assert.Contains(t, rec.Body.String(), tt.wantBody)
			}
			assert.Equal(t, tt.wantCache, rec.Header().Get("Cache-Control"))
		})
	}
}
