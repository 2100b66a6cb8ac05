package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/mind-engage/mindengage-practice/internal/attempt"
)

// GET /?activity_id=...&completed=true|false&limit=50&offset=0
// The list is always scoped to the caller; there is no student filter.
func HistoryHandler(d Deps, kind attempt.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		opts := attempt.ListOpts{
			ActivityID: strings.TrimSpace(q.Get("activity_id")),
			Limit:      parseIntDefault(q.Get("limit"), 50),
			Offset:     parseIntDefault(q.Get("offset"), 0),
		}
		if s := strings.TrimSpace(q.Get("completed")); s != "" {
			b, err := strconv.ParseBool(s)
			if err != nil {
				writeError(d.Log, w, r, &attempt.ValidationError{Msg: "invalid request", Detail: map[string]any{"completed": "must be true or false"}})
				return
			}
			opts.Completed = &b
		}
		list, err := d.Lifecycle.History(r.Context(), principal(r), kind, opts)
		if err != nil {
			writeError(d.Log, w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil && v >= 0 {
		return v
	}
	return def
}
