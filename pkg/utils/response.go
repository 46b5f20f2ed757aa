package utils

import (
	"encoding/json"
	"net/http"
)

const NoStoreCacheControl = "no-store, no-cache, must-revalidate, max-age=0"

// RespondJSON sends a JSON response
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// RespondError sends an {ok:false, error} response
func RespondError(w http.ResponseWriter, status int, message string) {
	RespondJSON(w, status, map[string]interface{}{
		"ok":    false,
		"error": message,
	})
}

// NoStore marks a response as never cacheable
func NoStore(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", NoStoreCacheControl)
}
