package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"github.com/mind-engage/mindengage-practice/internal/attempt"
	authmw "github.com/mind-engage/mindengage-practice/internal/auth/middleware"
	"github.com/mind-engage/mindengage-practice/internal/catalog"
	"github.com/mind-engage/mindengage-practice/internal/logging"
	"github.com/mind-engage/mindengage-practice/internal/rbac"
	"github.com/mind-engage/mindengage-practice/internal/storage"
)

type Deps struct {
	Lifecycle *attempt.Lifecycle
	Blobs     storage.BlobStore
	Auth      *authmw.AuthService
	Log       logrus.FieldLogger

	CORSOrigins    []string
	RequestTimeout time.Duration
	MaxUploadBytes int64

	// Ready backs /readyz; nil means always ready.
	Ready func(context.Context) error
}

type handlerFunc func(d Deps, kind attempt.Kind) http.HandlerFunc

type route struct {
	method  string
	pattern string
	perm    rbac.Perm
	handler handlerFunc
}

// attemptRoutes is the operation table per activity kind, mounted under
// /api/{kind}-attempts.
var attemptRoutes = map[attempt.Kind][]route{
	catalog.Listening: {
		{http.MethodPost, "/start", rbac.PermAttemptCreate, StartHandler},
		{http.MethodPost, "/submit_answer", rbac.PermAttemptSave, SubmitAnswersHandler},
		{http.MethodPost, "/complete", rbac.PermAttemptSubmit, CompleteHandler},
		{http.MethodGet, "/{attemptID}/result", rbac.PermAttemptViewOwn, ObjectiveResultHandler},
		{http.MethodGet, "/", rbac.PermAttemptViewOwn, HistoryHandler},
	},
	catalog.Reading: {
		{http.MethodPost, "/start", rbac.PermAttemptCreate, StartHandler},
		{http.MethodPost, "/submit-answer", rbac.PermAttemptSave, SubmitAnswersHandler},
		{http.MethodPost, "/complete", rbac.PermAttemptSubmit, CompleteHandler},
		{http.MethodGet, "/{attemptID}/result", rbac.PermAttemptViewOwn, ObjectiveResultHandler},
		{http.MethodGet, "/", rbac.PermAttemptViewOwn, HistoryHandler},
	},
	catalog.Speaking: {
		{http.MethodPost, "/start", rbac.PermAttemptCreate, StartHandler},
		{http.MethodPost, "/submit-answer", rbac.PermAttemptSave, SubmitSpeakingHandler},
		{http.MethodPost, "/complete", rbac.PermAttemptSubmit, CompleteHandler},
		{http.MethodGet, "/{attemptID}/result", rbac.PermAttemptViewOwn, SpeakingResultHandler},
		{http.MethodGet, "/", rbac.PermAttemptViewOwn, HistoryHandler},
		{http.MethodPost, "/{attemptID}/grade", rbac.PermAttemptGrade, GradeHandler},
	},
	catalog.Writing: {
		{http.MethodPost, "/start", rbac.PermAttemptCreate, StartHandler},
		{http.MethodPost, "/submit", rbac.PermAttemptSave, SubmitWritingHandler},
		{http.MethodPost, "/complete", rbac.PermAttemptSubmit, CompleteHandler},
		{http.MethodGet, "/{attemptID}/result", rbac.PermAttemptViewOwn, WritingResultHandler},
		{http.MethodGet, "/", rbac.PermAttemptViewOwn, HistoryHandler},
		{http.MethodPost, "/{attemptID}/grade", rbac.PermAttemptGrade, GradeHandler},
	},
}

// MountAttempts registers the operation table of every kind on r.
func MountAttempts(r chi.Router, d Deps) {
	for _, kind := range catalog.Kinds {
		kind := kind
		r.Route("/"+string(kind)+"-attempts", func(kr chi.Router) {
			for _, rt := range attemptRoutes[kind] {
				kr.With(rbac.Require(rt.perm)).Method(rt.method, rt.pattern, rt.handler(d, kind))
			}
		})
	}
}

func NewRouter(d Deps) http.Handler {
	if d.Log == nil {
		d.Log = logrus.StandardLogger()
	}
	if d.MaxUploadBytes <= 0 {
		d.MaxUploadBytes = 25 << 20
	}
	if d.RequestTimeout <= 0 {
		d.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, logging.Requests(d.Log), middleware.Recoverer)
	r.Use(middleware.Timeout(d.RequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Group(func(pr chi.Router) {
		pr.Use(authmw.JWTMiddleware(d.Auth))
		pr.Route("/api", func(ar chi.Router) { MountAttempts(ar, d) })
		pr.With(rbac.RequireAny(rbac.PermAttemptViewOwn, rbac.PermAttemptGrade)).
			Route("/media", func(mr chi.Router) { MountMedia(mr, d) })
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if d.Ready != nil {
			if err := d.Ready(r.Context()); err != nil {
				d.Log.WithError(err).Warn("not ready")
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})
	return r
}
