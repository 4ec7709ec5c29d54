package router

import (
	"net/http"

	_ "smad-api/docs"
	"smad-api/handler"
	"smad-api/metrics"
	"smad-api/model"

	httpSwagger "github.com/swaggo/http-swagger/v2"
)

// Deps is everything the router mounts.
type Deps struct {
	Auth         *handler.AuthHandler
	Users        *handler.UserHandler
	Verifier     handler.TokenVerifier
	Metrics      *metrics.Metrics
	LoginLimiter *handler.RateLimiter
	CORSOrigins  []string
	// StaticDir, when set, is served under /static/.
	StaticDir string
}

type middleware func(http.Handler) http.Handler

func chain(h http.Handler, mws ...middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

func NewRouter(d Deps) http.Handler {
	mux := http.NewServeMux()
	e := handler.ErrorHandlingMiddleware

	authenticated := handler.Authenticate(d.Verifier, d.Metrics)
	userRole := handler.RequireRole(model.RoleUser)

	// Public
	mux.HandleFunc("GET /health", handler.HealthCheck)
	mux.Handle("GET /metrics", d.Metrics.Handler())
	mux.Handle("GET /swagger/", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
	if d.StaticDir != "" {
		mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(d.StaticDir))))
	}

	// Auth
	mux.Handle("POST /api/login", d.LoginLimiter.Middleware(e(d.Auth.Login)))
	mux.Handle("GET /api/logout", authenticated(e(d.Auth.Logout)))
	mux.Handle("GET /api/refresh", authenticated(e(d.Auth.Refresh)))
	mux.Handle("GET /api/validate", authenticated(e(d.Auth.Validate)))
	mux.Handle("POST /api/log/{level}", e(d.Auth.Log))

	// Users
	mux.Handle("GET /api/Users", chain(e(d.Users.ListUsers), authenticated, userRole))
	mux.Handle("POST /api/Users", chain(e(d.Users.CreateUser), authenticated, userRole))
	mux.Handle("GET /api/Users/{id}", chain(e(d.Users.GetUser), authenticated, userRole))
	mux.Handle("PUT /api/Users/{id}", chain(e(d.Users.UpdateUser), authenticated, userRole))
	mux.Handle("PATCH /api/Users/{id}", chain(e(d.Users.UpdateUser), authenticated, userRole))
	mux.Handle("DELETE /api/Users/{id}", chain(e(d.Users.DeleteUser), authenticated, userRole))

	mux.Handle("/", e(handler.NotFoundHandler))

	return chain(d.Metrics.Instrument(mux),
		handler.RequestID,
		handler.Logging,
		handler.Recover,
		handler.CORS(d.CORSOrigins),
		handler.SecurityHeaders,
	)
}
