package api

import (
	"net/http"
	"time"

	"github.com/example/jennys-storefront/internal/api/middleware"
	"github.com/example/jennys-storefront/internal/auth"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

type RouterConfig struct {
	Handlers       *Handlers
	Verifier       middleware.TokenVerifier
	Logger         *zap.Logger
	RequestTimeout time.Duration
}

func NewRouter(cfg RouterConfig) http.Handler {
	h := cfg.Handlers
	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(cfg.Logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(timeout))

	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.OptionalAuthMiddleware(cfg.Verifier))

		r.Get("/products", h.ListProducts)
		r.Get("/products/{productID}", h.GetProduct)
		r.Get("/shipping/quote", h.ShippingQuote)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Session)

			r.Get("/cart", h.GetCart)
			r.Delete("/cart", h.ClearCart)
			r.Post("/cart/items", h.AddToCart)
			r.Post("/cart/items/{productID}/increase", h.IncreaseCartItem)
			r.Post("/cart/items/{productID}/decrease", h.DecreaseCartItem)
			r.Delete("/cart/items/{productID}", h.RemoveCartItem)

			r.Post("/checkout", h.Checkout)
			r.Get("/checkout/status", h.CheckoutStatus)

			r.Get("/notifications/current", h.CurrentNotification)
			r.Delete("/notifications/current", h.DismissNotification)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(cfg.Verifier))
			r.Get("/orders", h.ListMyOrders)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(cfg.Verifier))
			r.Use(middleware.RequireRole(auth.RoleAdmin))

			r.Post("/products", h.CreateProduct)
			r.Put("/products/{productID}", h.UpdateProduct)
			r.Put("/products/{productID}/image", h.UpdateProductImage)
			r.Delete("/products/{productID}", h.DeleteProduct)

			r.Get("/orders", h.ListAllOrders)
			r.Get("/orders/{orderID}", h.GetOrder)
			r.Patch("/orders/{orderID}/status", h.UpdateOrderStatus)

			r.Get("/dashboard", h.Dashboard)
			r.Get("/customers", h.Customers)
		})
	})

	return otelhttp.NewHandler(r, "storefront-api")
}
