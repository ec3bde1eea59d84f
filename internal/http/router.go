package http

import (
	"context"
	"log/slog"
	"time"

	"github.com/geocoder89/tripdesk/internal/access"
	"github.com/geocoder89/tripdesk/internal/auth"
	"github.com/geocoder89/tripdesk/internal/config"
	"github.com/geocoder89/tripdesk/internal/domain/role"
	"github.com/geocoder89/tripdesk/internal/domain/user"
	"github.com/geocoder89/tripdesk/internal/http/handlers"
	"github.com/geocoder89/tripdesk/internal/http/middlewares"
	"github.com/geocoder89/tripdesk/internal/identity"
	"github.com/geocoder89/tripdesk/internal/observability"
	"github.com/geocoder89/tripdesk/internal/session"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// UsersStore is satisfied by both postgres.UsersRepo and memory.UsersRepo.
type UsersStore interface {
	GetByID(ctx context.Context, id string) (user.User, error)
	GetByEmail(ctx context.Context, email string) (user.User, error)
	Create(ctx context.Context, email, passwordHash, name string, base role.Base) (user.User, error)
	List(ctx context.Context, limit, offset int) ([]user.User, error)
	SwitchActiveRole(ctx context.Context, userID string, target role.Role) (user.User, error)
	ListRoleSwitches(ctx context.Context, limit int, afterCreatedAt time.Time, afterID string) ([]user.RoleSwitch, *string, bool, error)
	Ping(ctx context.Context) error
}

type Deps struct {
	Users    UsersStore
	Sessions session.Store
	Routes   *access.RouteTable
	Prom     *observability.Prom
}

func NewRouter(log *slog.Logger, deps Deps, cfg config.Config) *gin.Engine {
	if cfg.Env != "dev" && cfg.Env != "test" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	routes := deps.Routes
	if routes == nil {
		routes, _ = access.NewRouteTable(access.DefaultSections())
	}

	resolver := access.NewResolver(cfg.DefaultRole())
	controller := access.NewController(routes)
	jwtManager := auth.NewManager(cfg.JWTSecret, cfg.AccessTTL())
	source := identity.NewSource(deps.Sessions, deps.Users, jwtManager, cfg.IdentityTimeout())

	var guard *middlewares.Guard
	var switches *identity.Service

	// a nil *Prom must not end up inside a non-nil interface
	if deps.Prom != nil {
		guard = middlewares.NewGuard(controller, deps.Prom)
		switches = identity.NewService(deps.Users, log, deps.Prom)
	} else {
		guard = middlewares.NewGuard(controller, nil)
		switches = identity.NewService(deps.Users, log, nil)
	}

	// middleware

	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("tripdesk-api"))
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(log))
	if deps.Prom != nil {
		r.Use(deps.Prom.GinHandleMiddleware())
	}
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(cfg.CORSAllowedOrigins))
	r.Use(middlewares.MaxBodyBytes(1 << 20))

	// health
	health := handlers.NewHealthHandler(map[string]handlers.Pinger{
		"db":       deps.Users.Ping,
		"sessions": deps.Sessions.Ping,
	})
	r.GET("/healthz", health.Healthz)
	r.GET("/readyz", health.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authHandler := handlers.NewAuthHandler(deps.Users, deps.Sessions, jwtManager, resolver, cfg)
	userHandler := handlers.NewUserHandler(resolver, switches)
	accessHandler := handlers.NewAccessHandler(guard, controller)
	adminHandler := handlers.NewAdminUsersHandler(deps.Users)

	loginLimit := cfg.LoginRateLimit
	if loginLimit <= 0 {
		loginLimit = 10
	}
	loginLimiter := middlewares.NewRateLimiter(loginLimit, time.Minute)

	api := r.Group("/api")
	api.Use(middlewares.RequireJSON())
	api.Use(middlewares.LoadIdentity(source, resolver))
	// identity can change between any two requests
	api.Use(middlewares.NoStore())
	{
		api.POST("/login", loginLimiter.RateLimiterMiddleware(middlewares.KeyByIP), authHandler.Login)
		api.POST("/logout", authHandler.Logout)
		api.POST("/logout/all", middlewares.RequireAuth(), authHandler.LogoutEverywhere)

		api.GET("/access", accessHandler.Check)
		api.GET("/sections", middlewares.RequireAuth(), accessHandler.Sections)

		me := api.Group("/user", middlewares.RequireAuth())
		{
			me.GET("", userHandler.Me)
			me.POST("/switch-role", userHandler.SwitchRole)
		}

		dash := api.Group("/dashboard")
		{
			dash.GET("/manager", guard.RequireSection("/manager"), handlers.Dashboard)
			dash.GET("/pm", guard.RequireSection("/pm"), handlers.Dashboard)
			dash.GET("/operations", guard.RequireSection("/operations"), handlers.Dashboard)
		}

		admin := api.Group("/admin")
		{
			admin.GET("/users", guard.RequireSection("/admin/users"), adminHandler.List)
			admin.POST("/users", guard.RequireSection("/admin/users"), adminHandler.Create)
			admin.GET("/role-switches", guard.RequireSection("/admin/role-switches"), adminHandler.RoleSwitches)
		}
	}

	return r
}
