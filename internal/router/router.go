package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/csrf"
	"go.uber.org/zap"

	"github.com/symeon158/CVF-Survey-App/internal/auth"
	"github.com/symeon158/CVF-Survey-App/internal/handler"
	mw "github.com/symeon158/CVF-Survey-App/internal/middleware"
)

type Options struct {
	JWTSecret     string
	CSRFKey       []byte
	SecureCookies bool
	CORSOrigin    string
}

func New(
	opts Options,
	log *zap.Logger,
	surveyH *handler.SurveyHandler,
	adminH *handler.AdminHandler,
	pageH *handler.PageHandler,
) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(mw.Recovery(log))
	r.Use(mw.Logger(log))

	r.Get("/healthz", handler.Healthz)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.CORS(opts.CORSOrigin))

		// Respondent
		r.Get("/catalog", surveyH.Catalog)
		r.Post("/session", surveyH.Start)
		r.Get("/session", surveyH.Get)
		r.Patch("/session", surveyH.Update)
		r.Delete("/session", surveyH.Discard)
		r.Post("/session/submit", surveyH.Submit)

		// Admin
		r.Post("/admin/login", adminH.Login)
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(opts.JWTSecret))
			r.Get("/admin/submissions", adminH.Submissions)
			r.Get("/admin/export.xlsx", adminH.Export)
		})
	})

	// Server-rendered form
	r.Group(func(r chi.Router) {
		r.Use(csrf.Protect(opts.CSRFKey,
			csrf.Secure(opts.SecureCookies),
			csrf.Path("/"),
			csrf.ErrorHandler(http.HandlerFunc(csrfFailure)),
		))
		r.Get("/", pageH.Form)
		r.Post("/", pageH.Post)
	})

	return r
}

func csrfFailure(w http.ResponseWriter, r *http.Request) {
	msg := "forbidden"
	if err := csrf.FailureReason(r); err != nil {
		msg += ": " + err.Error()
	}
	http.Error(w, msg, http.StatusForbidden)
}
