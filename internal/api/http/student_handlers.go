package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-practice/internal/attempt"
	authmw "github.com/mind-engage/mindengage-practice/internal/auth/middleware"
	"github.com/mind-engage/mindengage-practice/internal/catalog"
	"github.com/mind-engage/mindengage-practice/internal/rbac"
)

// principal turns the verified token in the request context into the
// capability passed to the lifecycle.
func principal(r *http.Request) attempt.Principal {
	return attempt.Principal{
		StudentID: authmw.SubjectFromContext(r.Context()),
		Role:      string(rbac.RoleFromContext(r.Context())),
	}
}

type startReq struct {
	ListeningActivityID string `json:"listening_activity_id"`
	ReadingActivityID   string `json:"reading_activity_id"`
	SpeakingActivityID  string `json:"speaking_activity_id"`
	WritingActivityID   string `json:"writing_activity_id"`
}

func (s startReq) activityID(kind attempt.Kind) string {
	switch kind {
	case catalog.Listening:
		return s.ListeningActivityID
	case catalog.Reading:
		return s.ReadingActivityID
	case catalog.Speaking:
		return s.SpeakingActivityID
	case catalog.Writing:
		return s.WritingActivityID
	}
	return ""
}

type submitAnswersReq struct {
	AttemptID string                `json:"attempt_id" validate:"required"`
	Answers   []attempt.AnswerInput `json:"answers" validate:"required,min=1,dive"`
}

type completeReq struct {
	AttemptID string `json:"attempt_id" validate:"required"`
}

// POST /start
func StartHandler(d Deps, kind attempt.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req startReq
		if err := decodeJSON(r, &req); err != nil {
			writeError(d.Log, w, r, err)
			return
		}
		out, err := d.Lifecycle.Start(r.Context(), principal(r), kind, strings.TrimSpace(req.activityID(kind)))
		if err != nil {
			writeError(d.Log, w, r, err)
			return
		}
		status := http.StatusCreated
		if out.Resumed {
			status = http.StatusOK
		}
		writeJSON(w, status, out)
	}
}

// POST /submit_answer (listening) and /submit-answer (reading)
func SubmitAnswersHandler(d Deps, kind attempt.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req submitAnswersReq
		if err := decodeJSON(r, &req); err != nil {
			writeError(d.Log, w, r, err)
			return
		}
		out, err := d.Lifecycle.SubmitAnswers(r.Context(), principal(r), kind, req.AttemptID, req.Answers)
		if err != nil {
			writeError(d.Log, w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// POST /complete
func CompleteHandler(d Deps, kind attempt.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req completeReq
		if err := decodeJSON(r, &req); err != nil {
			writeError(d.Log, w, r, err)
			return
		}
		out, err := d.Lifecycle.Complete(r.Context(), principal(r), kind, req.AttemptID)
		if err != nil {
			writeError(d.Log, w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// GET /{attempt_id}/result for listening and reading
func ObjectiveResultHandler(d Deps, kind attempt.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := d.Lifecycle.ObjectiveResult(r.Context(), principal(r), kind, chi.URLParam(r, "attemptID"))
		if err != nil {
			writeError(d.Log, w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func SpeakingResultHandler(d Deps, _ attempt.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := d.Lifecycle.SpeakingResult(r.Context(), principal(r), chi.URLParam(r, "attemptID"))
		if err != nil {
			writeError(d.Log, w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func WritingResultHandler(d Deps, _ attempt.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := d.Lifecycle.WritingResult(r.Context(), principal(r), chi.URLParam(r, "attemptID"))
		if err != nil {
			writeError(d.Log, w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}
