package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"personastudio/internal/http/handlers"
	"personastudio/internal/infra"
	"personastudio/internal/middleware"
)

// Options configures the cross-cutting middleware around the handlers.
type Options struct {
	Verifier       middleware.TokenVerifier
	Logger         *infra.Logger
	AllowedOrigins []string
	RatePerMinute  int
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(*infra.LoggerOrDiscard(opts.Logger)),
		middleware.CORS(opts.AllowedOrigins),
	)

	r.Get("/v1/healthz", app.Health)

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.MaybeAuthenticate(opts.Verifier))
		r.Use(middleware.RateLimit(opts.RatePerMinute, time.Minute))

		r.Get("/models", app.Models)
		r.Get("/explore", app.Explore)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", app.SignUp)
			r.Post("/confirm", app.ConfirmSignUp)
			r.Post("/signin", app.SignIn)
			r.Post("/forgot-password", app.ForgotPassword)
			r.Post("/reset-password", app.ResetPassword)
		})

		r.Route("/prompts", func(r chi.Router) {
			r.Post("/enhance", app.PromptEnhance)
			r.Post("/optimize", app.PromptOptimize)
			r.Post("/character", app.PromptCharacter)
			r.Get("/surprise", app.PromptSurprise)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(opts.Verifier))

			r.Get("/me", app.Me)
			r.Get("/me/stats", app.UserStats)
			r.Post("/images/generate", app.ImagesGenerate)

			r.Route("/generations", func(r chi.Router) {
				r.Get("/", app.GenerationsList)
				r.Post("/", app.GenerationsStore)
				r.Get("/export", app.GenerationsExport)
				r.Get("/{id}", app.GenerationsGet)
				r.Delete("/{id}", app.GenerationsDelete)
				r.Post("/{id}/publish", app.GenerationsPublish)
				r.Post("/{id}/unpublish", app.GenerationsUnpublish)
			})

			r.Route("/studio", func(r chi.Router) {
				r.Get("/personas", app.StudioPersonas)
				r.Get("/runs", app.StudioRuns)
				r.Post("/sessions", app.StudioCreate)
				r.Route("/sessions/{id}", func(r chi.Router) {
					r.Get("/", app.StudioGet)
					r.Delete("/", app.StudioDelete)
					r.Put("/persona", app.StudioSetPersona)
					r.Put("/product", app.StudioSetProduct)
					r.Delete("/product", app.StudioClearProduct)
					r.Put("/prompt", app.StudioSetPrompt)
					r.Post("/start", app.StudioStart)
					r.Post("/reset", app.StudioReset)
				})
			})
		})
	})

	return r
}
