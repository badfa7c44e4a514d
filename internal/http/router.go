// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, idempotency, rate limiting and the websocket
// upgrade endpoint.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/tbourn/go-im-core/internal/config"
	"github.com/tbourn/go-im-core/internal/http/handlers"
	"github.com/tbourn/go-im-core/internal/http/middleware"
	"github.com/tbourn/go-im-core/internal/repo"
	"github.com/tbourn/go-im-core/internal/ws"
)

// wsPath is the websocket upgrade endpoint. It authenticates with the token
// query parameter and sits outside the API group, gzip and the rate limiter.
const wsPath = "/ws"

// Deps are the collaborators the routes are bound to.
type Deps struct {
	Applies  handlers.ApplyService
	Contacts handlers.ContactService
	Users    handlers.UserService
	// Idempotency backs Idempotency-Key replay on POST /contact-applies.
	// The zero value (nil DB) disables it.
	Idempotency repo.IdempotencyStore
	Verifier    middleware.TokenVerifier
	Hub         *ws.Hub
	Log         zerolog.Logger
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), CORS and security
// headers, health, metrics, docs and websocket endpoints, and then mounts
// the authenticated API under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII and token scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. CORS and Security headers
//  8. gzip (websocket excluded)
//
// Within the API group: bearer auth, then the idempotency validator (so the
// lookup is scoped to the caller, and before rate limiting to allow bypass on
// replay), then the per-user rate limiter.
func RegisterRoutes(r *gin.Engine, d Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-API-Key"},
		Logger:      &d.Log,
		SkipPaths:   []string{"/health", "/metrics"},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics(middleware.MetricsOptions{SkipPaths: []string{wsPath, "/metrics"}}))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) CORS posture (safe defaults: allow all if none configured)
	allowHeaders := []string{"Origin", "Content-Type", "Accept", "Authorization", "If-None-Match", middleware.HeaderIdempotencyKey}
	exposeHeaders := []string{"X-Request-ID", "Content-Length", "ETag", "Idempotency-Replayed"}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// 8) Compression; the hijacked websocket connection must not be wrapped.
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{wsPath, "/metrics"})))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) {
		online := 0
		if d.Hub != nil {
			online = d.Hub.Count()
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "online": online})
	})

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Realtime
	if d.Hub != nil {
		r.GET(wsPath, ws.Handler(d.Hub, d.Verifier, ws.Config{
			WriteTimeout:   cfg.WS.WriteTimeout,
			PongWait:       cfg.WS.PongWait,
			ReadLimit:      cfg.WS.ReadLimit,
			AllowedOrigins: cfg.WS.AllowedOrigins,
		}, d.Log.With().Str("component", "ws").Logger()))
	}

	var idem handlers.IdempotencyStore
	var lookup middleware.IdempotencyLookup
	if d.Idempotency.DB != nil {
		idem = d.Idempotency
		lookup = d.Idempotency.Exists
	}
	h := handlers.New(d.Applies, d.Contacts, d.Users, idem)
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())

	// Public API
	apiBase := cfg.APIBasePath // e.g. "/api/v1"
	api := groupWithPrefix(r, apiBase)
	api.Use(middleware.BearerAuth(d.Verifier))
	{
		// Contact applications
		api.POST("/contact-applies",
			middleware.IdempotencyValidator(middleware.IdempotencyOptions{MaxLen: 200, Scope: handlers.ProposeScope}, lookup),
			rl.Handler(),
			h.ProposeContact)
		api.GET("/contact-applies", rl.Handler(), h.ListApplies)
		api.POST("/contact-applies/:id/handle", rl.Handler(), h.HandleApply)
		api.GET("/contact-applies/unread-count", rl.Handler(), h.UnreadApplies)
		api.PUT("/contact-applies/read-all", rl.Handler(), h.ReadAllApplies)

		// Contacts
		api.GET("/contacts", rl.Handler(), h.ListContacts)
		api.PUT("/contacts/:id", rl.Handler(), h.UpdateContact)
		api.DELETE("/contacts/:id", rl.Handler(), h.DeleteContact)

		// Users
		api.GET("/users/:id", rl.Handler(), h.GetUser)
		api.PUT("/users/me", rl.Handler(), h.UpdateMe)
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
