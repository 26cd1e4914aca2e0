package syncapi

import (
	"encoding/json"
	"net/http"

	"panelsync/internal/panel"
	"panelsync/pkg/problems"
)

func writeJSON(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeProblem relays a classified panel failure as a problem document with
// the classification's slug as its type.
func writeProblem(w http.ResponseWriter, err error) {
	kind := panel.KindOf(err)
	if kind == "" {
		writeJSON(w, map[string]any{
			"type":   problems.Type("internal"),
			"title":  "internal error",
			"detail": err.Error(),
			"status": http.StatusInternalServerError,
		}, http.StatusInternalServerError)
		return
	}
	status := panel.RelayStatus(err)
	writeJSON(w, map[string]any{
		"type":   problems.Type(string(kind)),
		"title":  string(kind),
		"detail": err.Error(),
		"status": status,
	}, status)
}
