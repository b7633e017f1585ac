package httpapi

import (
	"net/http"
	"time"

	"github.com/caabsu/outlight-img2img/internal/http/handlers"
	"github.com/caabsu/outlight-img2img/internal/infra"
	appmw "github.com/caabsu/outlight-img2img/internal/middleware"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Options configures the middleware stack around the API handlers.
type Options struct {
	Logger          infra.Logger
	AllowedOrigins  []string
	RateLimitPerMin int
	Country         appmw.CountryLookup
	StaticDir       string
}

// NewRouter assembles the API routes and middleware chain.
func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RealIP, chimw.Recoverer)
	r.Use(appmw.RequestID)
	r.Use(appmw.Logger(opts.Logger))
	r.Use(appmw.CORS(opts.AllowedOrigins))
	r.Use(appmw.Region(opts.Country))
	if opts.RateLimitPerMin > 0 {
		r.Use(appmw.RateLimit(opts.RateLimitPerMin, time.Minute))
	}

	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/providers", app.ProvidersList)
	r.Get("/v1/openapi.json", app.OpenAPIJSON)
	r.Get("/docs", app.OpenAPIDocs)

	r.Route("/v1/runs", func(r chi.Router) {
		r.Post("/", app.RunsSubmit)
		r.Get("/", app.RunsList)
		r.Get("/active", app.RunActive)
		r.Route("/{run_id}", func(r chi.Router) {
			r.Get("/", app.RunGet)
			r.Delete("/", app.RunDelete)
			r.Post("/cancel", app.RunCancel)
			r.Post("/activate", app.RunActivate)
			r.Get("/events", app.RunEvents)
		})
	})

	r.Route("/v1/products", func(r chi.Router) {
		r.Post("/", app.ProductsCreate)
		r.Get("/", app.ProductsList)
		r.Route("/{product_id}", func(r chi.Router) {
			r.Get("/", app.ProductGet)
			r.Put("/", app.ProductUpdate)
			r.Delete("/", app.ProductDelete)
			r.Post("/prompt-sets", app.PromptSetsCreate)
			r.Get("/prompt-sets", app.PromptSetsList)
		})
	})

	r.Route("/v1/prompt-sets/{set_id}", func(r chi.Router) {
		r.Get("/", app.PromptSetGet)
		r.Delete("/", app.PromptSetDelete)
	})

	r.Get("/v1/stats/summary", app.StatsSummary)

	if opts.StaticDir != "" {
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(opts.StaticDir))))
	}

	return r
}
