// Package kernel assembles the storefront's HTTP handler: services,
// controllers, the global middleware stack and the route table.
package kernel

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/freshbulk/storefront/app/controllers"
	"github.com/freshbulk/storefront/app/events"
	appgraphql "github.com/freshbulk/storefront/app/graphql"
	"github.com/freshbulk/storefront/app/models"
	"github.com/freshbulk/storefront/app/policy"
	"github.com/freshbulk/storefront/app/repositories"
	"github.com/freshbulk/storefront/app/routes"
	"github.com/freshbulk/storefront/app/services"
	"github.com/freshbulk/storefront/config"
	"github.com/freshbulk/storefront/pkg/audit"
	"github.com/freshbulk/storefront/pkg/auth"
	"github.com/freshbulk/storefront/pkg/cache"
	"github.com/freshbulk/storefront/pkg/database"
	"github.com/freshbulk/storefront/pkg/event"
	"github.com/freshbulk/storefront/pkg/graphql"
	"github.com/freshbulk/storefront/pkg/metrics"
	"github.com/freshbulk/storefront/pkg/middleware"
	"github.com/freshbulk/storefront/pkg/reqid"
	"github.com/freshbulk/storefront/pkg/response"
	"github.com/freshbulk/storefront/pkg/router"
	"github.com/freshbulk/storefront/pkg/session"
	"github.com/freshbulk/storefront/pkg/storage"
	"github.com/freshbulk/storefront/pkg/ws"
)

// Deps are the connected backends. DB is required; a nil Cache disables
// catalog caching and session revocation, a nil Disk disables image
// upload, a nil Hub disables live tracking and a nil Pool delivers events
// synchronously.
type Deps struct {
	DB      *gorm.DB
	Cache   cache.Store
	Disk    storage.Disk
	Audit   audit.Recorder
	Hub     *ws.Hub
	Pool    event.Submitter
	Limiter *middleware.RateLimiter
}

type Kernel struct {
	router  *router.Router
	Bus     *events.Bus
	Auth    *services.AuthService
	Catalog *services.CatalogService
	Orders  *services.OrderService
}

// New wires every layer on top of d.
func New(d Deps) (*Kernel, error) {
	if d.DB == nil {
		return nil, fmt.Errorf("kernel: database is required")
	}

	pol := policy.Default()
	bus := events.NewBus(d.Pool)
	events.Register(bus, d.Audit, hubPublisher(d.Hub))

	authSvc := services.NewAuthService(repositories.NewUserRepository(d.DB))
	catalog := services.NewCatalogService(repositories.NewProductRepository(d.DB), d.Cache, config.CatalogCacheTTL(), d.Disk, pol)
	orders := services.NewOrderService(d.DB, pol, bus, d.Audit)

	codec := auth.NewTokenCodec(config.AppKey(), config.SessionTTL())
	sessions := session.NewManager[*models.User](codec, d.Cache, authSvc.LoadUser, session.DefaultOptions())

	schema, err := appgraphql.Schema(catalog)
	if err != nil {
		return nil, fmt.Errorf("kernel: graphql schema: %w", err)
	}

	limiter := d.Limiter
	if limiter == nil {
		if limiter, err = NewLimiter(); err != nil {
			return nil, err
		}
	}

	r := router.New()
	// Outermost first: metrics see total latency, recovery guards the rest,
	// and the request id exists before anything logs. Throttled requests
	// never reach session resolution.
	r.Use(
		metrics.Middleware(),
		middleware.Recovery,
		reqid.Middleware(),
		middleware.Logger,
		middleware.CORS(middleware.CORSFromConfig()),
		limiter.Middleware,
		sessions.Middleware(),
	)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) { response.NotFound(w) })
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		response.Error(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	var files http.Handler
	if local, ok := d.Disk.(*storage.LocalDisk); ok {
		files = local.FileServer()
	}

	routes.RegisterAPI(r, routes.Controllers{
		Auth:     controllers.NewAuthController(authSvc, sessions),
		Products: controllers.NewProductController(catalog),
		Orders:   controllers.NewOrderController(orders, d.Hub),
		Health: controllers.NewHealthController(map[string]controllers.Checker{
			"database": func(ctx context.Context) error { return database.Ping(ctx, d.DB) },
		}),
		GraphQL: graphql.Handler(schema),
		Files:   files,
		Policy:  pol,
	})

	return &Kernel{router: r, Bus: bus, Auth: authSvc, Catalog: catalog, Orders: orders}, nil
}

// NewLimiter builds the per-IP limiter from config.
func NewLimiter() (*middleware.RateLimiter, error) {
	l := middleware.NewRateLimiter(config.RateLimitPerMinute(), time.Minute)
	if err := l.TrustProxies(config.TrustedProxies()...); err != nil {
		return nil, fmt.Errorf("kernel: %w", err)
	}
	return l, nil
}

func (k *Kernel) Handler() http.Handler { return k.router.Handler() }

// Routes lists the route table for route:list.
func (k *Kernel) Routes() []router.RouteInfo { return k.router.Routes() }

// hubPublisher avoids handing events a typed-nil *ws.Hub.
func hubPublisher(h *ws.Hub) events.Publisher {
	if h == nil {
		return nil
	}
	return h
}
