package analytics

import (
	"encoding/json"
	"net/http"

	"todo-list-backend/internal/identity"
)

// AppOpenedHandler records that a client opened the app.
func AppOpenedHandler(t *Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := identity.FromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var body struct {
			ColdStart bool   `json:"cold_start"`
			From      string `json:"from"` // push/deeplink/icon/unknown
		}
		_ = json.NewDecoder(r.Body).Decode(&body)

		t.Track(r, p, EventAppOpened, map[string]any{
			"cold_start": body.ColdStart,
			"from":       body.From,
		})

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}
}

// ViewChangedHandler records the client switching between the
// all/important/completed lists.
func ViewChangedHandler(t *Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := identity.FromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var body struct {
			From string `json:"from"`
			To   string `json:"to"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		switch body.To {
		case "all", "important", "completed":
		default:
			http.Error(w, "invalid view", http.StatusBadRequest)
			return
		}

		t.Track(r, p, EventViewChanged, map[string]any{
			"from": body.From,
			"to":   body.To,
		})

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}
}
