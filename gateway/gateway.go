package gateway

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/example/dinein/pkg/catalog"
	"github.com/example/dinein/pkg/config"
	"github.com/example/dinein/pkg/discovery"
	"github.com/example/dinein/pkg/identity"
	"github.com/example/dinein/pkg/ledger"
	"github.com/example/dinein/pkg/models"
	"github.com/example/dinein/pkg/notify"
	"github.com/example/dinein/pkg/registry"
	"github.com/example/dinein/pkg/repository"
	"github.com/example/dinein/pkg/tenant"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Services are the backends the gateway routes to. Discovery is optional.
type Services struct {
	Tenant    *tenant.Service
	Catalog   *catalog.Service
	Registry  *registry.Service
	Ledger    *ledger.Service
	Tokens    *identity.Tokens
	Hub       *notify.Hub
	Store     repository.Repository
	Discovery *discovery.ServiceDiscovery
}

type Gateway struct {
	config   *config.Config
	svc      Services
	logger   *zap.Logger
	router   *gin.Engine
	server   *http.Server
	upgrader websocket.Upgrader
}

func NewGateway(cfg *config.Config, logger *zap.Logger, svc Services) *Gateway {
	gin.SetMode(gin.ReleaseMode)
	logger = logger.Named("gateway")

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggerMiddleware(logger))
	router.Use(corsMiddleware(&cfg.Server))

	g := &Gateway{
		config: cfg,
		svc:    svc,
		logger: logger,
		router: router,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(cfg.Server.AllowOrigins),
		},
	}
	g.setupRoutes()
	g.server = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return g
}

// Handler exposes the router, mainly for tests.
func (g *Gateway) Handler() http.Handler {
	return g.router
}

func (g *Gateway) setupRoutes() {
	// Health check
	g.router.GET("/health", g.health)

	// Real-time events
	g.router.GET("/ws", g.authenticate, g.serveWS)

	v1 := g.router.Group("/api/v1")
	v1.Use(g.authenticate, timeoutMiddleware(g.config.Lifecycle.RequestTimeout))
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/login", g.login)
			auth.GET("/me", requireRole(models.RoleAdmin, models.RoleDirector, models.RoleWaiter), g.me)
		}

		restaurants := v1.Group("/restaurants", requireRole(models.RoleAdmin))
		{
			restaurants.POST("", g.createRestaurant)
			restaurants.GET("", g.listRestaurants)
			restaurants.GET("/:id", g.getRestaurant)
			restaurants.PUT("/:id", g.updateRestaurant)
			restaurants.DELETE("/:id", g.deleteRestaurant)
			restaurants.POST("/:id/directors", g.createDirector)
		}

		director := requireRole(models.RoleDirector, models.RoleAdmin)
		staff := requireRole(models.RoleDirector, models.RoleAdmin, models.RoleWaiter)
		waiter := requireRole(models.RoleWaiter)
		serving := requireRole(models.RoleWaiter, models.RoleDirector, models.RoleAdmin)

		categories := v1.Group("/categories")
		{
			categories.GET("", g.listCategories)
			categories.GET("/:id", g.getCategory)
			categories.POST("", director, g.createCategory)
			categories.PUT("/:id", director, g.updateCategory)
			categories.DELETE("/:id", director, g.deleteCategory)
		}

		products := v1.Group("/products")
		{
			products.GET("", g.listProducts)
			products.GET("/:id", g.getProduct)
			products.POST("", director, g.createProduct)
			products.PUT("/:id", director, g.updateProduct)
			products.DELETE("/:id", director, g.deleteProduct)
		}

		tables := v1.Group("/tables")
		{
			tables.GET("/type", staff, g.listTableTypes)
			tables.POST("/type", director, g.createTableType)
			tables.GET("/type/:id", staff, g.getTableType)
			tables.PUT("/type/:id", director, g.updateTableType)
			tables.DELETE("/type/:id", director, g.deleteTableType)

			tables.GET("", staff, g.listTables)
			tables.POST("", director, g.createTable)
			tables.GET("/:id", staff, g.getTable)
			tables.PUT("/:id", director, g.updateTable)
			tables.DELETE("/:id", director, g.deleteTable)
			tables.POST("/:id/close", serving, g.closeTable)
			tables.PUT("/:id/code", serving, g.setSessionCode)
			tables.POST("/:id/join", g.joinSession)
			tables.POST("/:id/call", g.callWaiter)
			tables.GET("/:id/archive", director, g.tableArchive)
		}
		v1.GET("/archive", director, g.restaurantArchive)

		waiters := v1.Group("/waiters", director)
		{
			waiters.GET("", g.listWaiters)
			waiters.POST("", g.createWaiter)
			waiters.DELETE("/:id", g.deleteWaiter)
		}

		me := v1.Group("/waiter", waiter)
		{
			me.GET("/tables", g.waiterTables)
			me.PUT("/tables/:id", g.occupyTable)
			me.PUT("/tables/:id/callback", g.acceptCall)
			me.DELETE("/tables/:id/callback", g.declineCall)
			me.GET("/calls", g.waiterCalls)
			me.GET("/orders", g.waiterOrders)
		}

		orders := v1.Group("/orders")
		{
			orders.GET("", serving, g.activeOrders)
			orders.POST("", waiter, g.addActiveLine)
			orders.PUT("", waiter, g.setActiveLine)
			orders.DELETE("", waiter, g.removeActiveLine)
			orders.POST("/approve", waiter, g.approveOrder)
		}

		approved := v1.Group("/approved/orders")
		{
			approved.GET("", serving, g.approvedOrders)
			approved.PUT("", waiter, g.setApprovedLine)
			approved.DELETE("", waiter, g.removeApprovedLine)
		}

		clients := v1.Group("/clients")
		{
			clients.GET("/basket", g.getBasket)
			clients.POST("/basket", g.addToBasket)
			clients.PUT("/basket", g.updateBasketLine)
			clients.DELETE("/basket", g.removeBasketLine)
			clients.DELETE("/basket/clear", g.clearBasket)
			clients.POST("/orders", g.submitOrder)
			clients.GET("/orders", g.clientOrders)
		}
	}
}

func (g *Gateway) Start() error {
	g.logger.Info("Gateway starting", zap.String("address", g.server.Addr))
	if err := g.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (g *Gateway) Shutdown(ctx context.Context) error {
	return g.server.Shutdown(ctx)
}

func (g *Gateway) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	body := gin.H{"status": "ok", "service": g.config.Server.Name}
	if err := g.svc.Store.Ping(ctx); err != nil {
		g.logger.Warn("Health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	if g.svc.Discovery != nil {
		if peers, err := g.svc.Discovery.Discover(ctx, g.config.Server.Name); err == nil {
			body["instances"] = peers
		}
	}
	c.JSON(http.StatusOK, body)
}
