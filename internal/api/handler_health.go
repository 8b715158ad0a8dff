package api

import (
	"net/http"
	"time"
)

func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "ok",
		"uptime_sec": int(time.Since(r.startedAt).Seconds()),
	})
}
