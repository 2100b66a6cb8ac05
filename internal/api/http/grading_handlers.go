package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-practice/internal/attempt"
)

type gradeReq struct {
	Score    *float64 `json:"score" validate:"required,gte=0"`
	Feedback string   `json:"feedback" validate:"max=20000"`
}

// POST /{attempt_id}/grade (speaking, writing)
func GradeHandler(d Deps, kind attempt.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		attemptID := strings.TrimSpace(chi.URLParam(r, "attemptID"))
		var req gradeReq
		if err := decodeJSON(r, &req); err != nil {
			writeError(d.Log, w, r, err)
			return
		}
		a, err := d.Lifecycle.AssignGrade(r.Context(), principal(r), kind, attemptID, *req.Score, strings.TrimSpace(req.Feedback))
		if err != nil {
			writeError(d.Log, w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}
