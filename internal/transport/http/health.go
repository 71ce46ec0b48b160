package http

import (
	stdhttp "net/http"
)

// HealthHandler reports liveness. It does not touch the catalog store, so a
// slow disk or database never fails the probe.
func HealthHandler(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	if r.Method != stdhttp.MethodGet && r.Method != stdhttp.MethodHead {
		methodNotAllowed(w, stdhttp.MethodGet, stdhttp.MethodHead)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(stdhttp.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
