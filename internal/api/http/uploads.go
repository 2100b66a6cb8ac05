package http

import (
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"github.com/mind-engage/mindengage-practice/internal/attempt"
)

// parseMultipart caps the body at d.MaxUploadBytes before parsing.
func parseMultipart(d Deps, w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, d.MaxUploadBytes)
	if err := r.ParseMultipartForm(d.MaxUploadBytes); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) || strings.Contains(err.Error(), "request body too large") {
			return &attempt.ValidationError{Msg: "upload too large", Detail: map[string]any{"limit_bytes": d.MaxUploadBytes}}
		}
		return &attempt.ValidationError{Msg: "expected multipart/form-data", Detail: map[string]any{"body": err.Error()}}
	}
	return nil
}

// formFile returns nil when the field is absent so the lifecycle can report
// the missing field.
func formFile(r *http.Request, field string) (*attempt.Upload, func(), error) {
	f, hdr, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, func() {}, nil
	}
	if err != nil {
		return nil, func() {}, &attempt.ValidationError{Msg: "bad file", Detail: map[string]any{field: err.Error()}}
	}
	return &attempt.Upload{Filename: fileName(hdr), Body: f}, func() { _ = f.Close() }, nil
}

func fileName(h *multipart.FileHeader) string {
	if h == nil {
		return ""
	}
	return h.Filename
}

// POST /submit-answer (speaking): attempt_id, question_id, audio_file
func SubmitSpeakingHandler(d Deps, _ attempt.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := parseMultipart(d, w, r); err != nil {
			writeError(d.Log, w, r, err)
			return
		}
		audio, done, err := formFile(r, "audio_file")
		if err != nil {
			writeError(d.Log, w, r, err)
			return
		}
		defer done()
		out, err := d.Lifecycle.SubmitSpeaking(r.Context(), principal(r),
			strings.TrimSpace(r.FormValue("attempt_id")),
			strings.TrimSpace(r.FormValue("question_id")),
			audio)
		if err != nil {
			writeError(d.Log, w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// POST /submit (writing): attempt_id, submission_text?, file?
func SubmitWritingHandler(d Deps, _ attempt.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := parseMultipart(d, w, r); err != nil {
			writeError(d.Log, w, r, err)
			return
		}
		file, done, err := formFile(r, "file")
		if err != nil {
			writeError(d.Log, w, r, err)
			return
		}
		defer done()
		out, err := d.Lifecycle.SubmitWriting(r.Context(), principal(r),
			strings.TrimSpace(r.FormValue("attempt_id")),
			r.FormValue("submission_text"),
			file)
		if err != nil {
			writeError(d.Log, w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, out)
	}
}
