package http

import (
	"encoding/json"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/mind-engage/mindengage-practice/internal/attempt"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// report json field names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type errorBody struct {
	Error  string         `json:"error"`
	Detail map[string]any `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps lifecycle errors to status codes. Unexpected errors are
// logged and answered with a generic message.
func writeError(log logrus.FieldLogger, w http.ResponseWriter, r *http.Request, err error) {
	if ve, ok := attempt.IsValidation(err); ok {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: ve.Msg, Detail: ve.Detail})
		return
	}
	switch {
	case errors.Is(err, attempt.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	case errors.Is(err, attempt.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	case errors.Is(err, attempt.ErrUnauthenticated):
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: err.Error()})
	case errors.Is(err, attempt.ErrUnsupported):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	default:
		log.WithError(err).WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"request_id": middleware.GetReqID(r.Context()),
		}).Error("request failed")
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

// decodeJSON decodes and validates a request body into dst.
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return &attempt.ValidationError{Msg: "bad json", Detail: map[string]any{"body": err.Error()}}
	}
	return validateStruct(dst)
}

func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fes validator.ValidationErrors
	if !errors.As(err, &fes) {
		return errors.Wrap(err, "validate request")
	}
	detail := make(map[string]any, len(fes))
	for _, fe := range fes {
		// drop the struct name from the namespace: answers[0].question_id
		ns := fe.Namespace()
		if i := strings.IndexByte(ns, '.'); i >= 0 {
			ns = ns[i+1:]
		}
		detail[ns] = fe.Tag()
	}
	return &attempt.ValidationError{Msg: "invalid request", Detail: detail}
}
