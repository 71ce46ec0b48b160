package http

import "net/http"

// NotFoundHandler answers unknown routes with the JSON error envelope the
// editor UI expects instead of the default text body.
func NotFoundHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		loggerFrom(r.Context()).Debug("no route", "method", r.Method, "path", r.URL.Path)
		writeError(w, http.StatusNotFound, codeNotFound, "no route for "+r.Method+" "+r.URL.Path)
	})
}
