// internal/routes/routes.go
package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerfiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"instrument-service/internal/config"
	"instrument-service/internal/handler"
	"instrument-service/internal/middleware"
	"instrument-service/internal/service"
	"instrument-service/internal/units"
	"instrument-service/internal/utils"
)

// Router holds all dependencies for routing
type Router struct {
	config            *config.Config
	logger            *zap.Logger
	db                handler.DatabaseChecker
	instrumentService *service.InstrumentService
	exchangeService   *service.ExchangeService
	discoveryService  *service.DiscoveryService
	converter         *units.Converter
	wsHandler         *handler.WebSocketHandler
}

// NewRouter creates a new router instance. db is nil when exchanges are
// kept in memory.
func NewRouter(
	config *config.Config,
	logger *zap.Logger,
	db handler.DatabaseChecker,
	instrumentService *service.InstrumentService,
	exchangeService *service.ExchangeService,
	discoveryService *service.DiscoveryService,
	converter *units.Converter,
	wsHandler *handler.WebSocketHandler,
) *Router {
	return &Router{
		config:            config,
		logger:            logger,
		db:                db,
		instrumentService: instrumentService,
		exchangeService:   exchangeService,
		discoveryService:  discoveryService,
		converter:         converter,
		wsHandler:         wsHandler,
	}
}

// SetupRouter creates and configures the Gin router
func (r *Router) SetupRouter() *gin.Engine {
	if r.config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	r.addMiddleware(router)
	r.addRoutes(router)

	return router
}

// addMiddleware adds middleware to the router
func (r *Router) addMiddleware(router *gin.Engine) {
	router.Use(middleware.RecoveryMiddleware(r.logger))
	router.Use(middleware.RequestIDMiddleware())

	serviceLogger := utils.NewServiceLogger(r.logger, "http-server")
	router.Use(middleware.LoggingMiddleware(serviceLogger))

	router.Use(middleware.CORSMiddleware(&r.config.Server))

	r.logger.Info("Middleware configured")
}

// addRoutes sets up all application routes
func (r *Router) addRoutes(router *gin.Engine) {
	healthHandler := handler.NewHealthHandler(r.db, r.instrumentService, r.config, r.logger)
	instrumentHandler := handler.NewInstrumentHandler(r.instrumentService, r.logger)
	exchangeHandler := handler.NewExchangeHandler(r.exchangeService, r.instrumentService, r.logger)
	discoveryHandler := handler.NewDiscoveryHandler(r.discoveryService, r.logger)
	unitsHandler := handler.NewUnitsHandler(r.converter, r.logger)

	// Health check routes
	healthHandler.RegisterRoutes(router)

	// API v1 routes
	apiV1 := router.Group("/api/v1")
	instrumentHandler.RegisterRoutes(apiV1)
	exchangeHandler.RegisterRoutes(apiV1)
	discoveryHandler.RegisterRoutes(apiV1)
	unitsHandler.RegisterRoutes(apiV1)

	// WebSocket routes
	if r.wsHandler != nil {
		r.wsHandler.RegisterRoutes(router.Group("/ws"))
	}

	r.addDocumentationRoutes(router)

	r.logger.Info("All routes configured successfully")
}

// addDocumentationRoutes sets up documentation routes
func (r *Router) addDocumentationRoutes(router *gin.Engine) {
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerfiles.Handler))

	router.GET("/docs", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
	})
}
