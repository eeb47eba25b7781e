package router

import (
	"net/http"

	"online-shop/internal/handler"
	"online-shop/internal/metrics"
	"online-shop/internal/middleware"

	"github.com/gorilla/sessions"
	"github.com/rs/zerolog"
)

// Handlers groups the HTTP handlers the router dispatches to.
type Handlers struct {
	Health   *handler.HealthHandler
	Product  *handler.ProductHandler
	Basket   *handler.BasketHandler
	Order    *handler.OrderHandler
	Settings *handler.SettingsHandler
}

// Options configures the cross-cutting middleware.
type Options struct {
	APIKey       string
	Sessions     sessions.Store
	SessionName  string
	ConfirmLimit *middleware.RateLimiter
	Metrics      *metrics.Metrics
}

// New creates the HTTP router with all routes and middleware configured.
func New(h Handlers, opts Options, logger zerolog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.Health.Check)
	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics.Handler())
	}

	mux.HandleFunc("GET /api/product/{id}", h.Product.GetByID)

	mux.HandleFunc("GET /api/basket", h.Basket.Get)
	mux.HandleFunc("POST /api/basket", h.Basket.Add)
	mux.HandleFunc("DELETE /api/basket", h.Basket.Remove)

	requireUser := middleware.RequireUser
	mux.Handle("GET /api/orders", requireUser(http.HandlerFunc(h.Order.List)))
	mux.Handle("POST /api/orders", requireUser(http.HandlerFunc(h.Order.Create)))
	mux.Handle("GET /api/order/{id}", requireUser(http.HandlerFunc(h.Order.Get)))

	var confirm http.Handler = http.HandlerFunc(h.Order.Confirm)
	if opts.ConfirmLimit != nil {
		confirm = opts.ConfirmLimit.Middleware(confirm)
	}
	mux.Handle("POST /api/order/{id}", requireUser(confirm))

	mux.HandleFunc("GET /api/admin/delivery-settings", h.Settings.Get)
	mux.HandleFunc("PUT /api/admin/delivery-settings", h.Settings.Update)

	// Metrics must sit directly on the mux to see the matched pattern.
	// Order from the outside: Recovery -> Logging -> CORS -> APIKeyAuth -> Session -> Metrics.
	var chain http.Handler = mux
	chain = middleware.Metrics(opts.Metrics)(chain)
	chain = middleware.Session(opts.Sessions, opts.SessionName, logger)(chain)
	chain = middleware.APIKeyAuth(opts.APIKey, "/api/admin/", logger)(chain)
	chain = middleware.CORS(chain)
	chain = middleware.Logging(logger)(chain)
	chain = middleware.Recovery(logger)(chain)

	return chain
}
