package handlers

import (
	"net/http"
	"time"

	"greenhouse_control/internal/logger"
	"greenhouse_control/internal/service"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Options tunes the HTTP layer. Zero values fall back to defaults.
type Options struct {
	DisplayInterval    time.Duration // default refresh of the /ws display stream
	MaxDisplayInterval time.Duration // upper bound a client may request
	Metrics            http.Handler  // served on /metrics when set
}

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	log      *logger.Logger
	opts     Options
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, log *logger.Logger, opts Options) *Handler {
	if opts.DisplayInterval <= 0 {
		opts.DisplayInterval = defaultInterval
	}
	if opts.MaxDisplayInterval <= 0 {
		opts.MaxDisplayInterval = maxInterval
	}
	if opts.DisplayInterval > opts.MaxDisplayInterval {
		opts.DisplayInterval = opts.MaxDisplayInterval
	}
	return &Handler{services: services, log: log, opts: opts}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/health", h.health)
	if h.opts.Metrics != nil {
		router.GET("/metrics", gin.WrapH(h.opts.Metrics))
	}

	h.registerAuthRoutes(router)
	h.registerAPIRoutes(router)

	// Display stream: pull-based snapshots on the client's cadence.
	router.GET("/ws", h.wsConnect)

	return router
}

func (h *Handler) registerAuthRoutes(r *gin.Engine) {
	auth := r.Group("/auth")
	{
		auth.POST("/sign-up", h.signUp)
		auth.POST("/sign-in", h.signIn)
	}
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1", h.operatorMiddleware)
	{
		h.registerGreenhouseRoutes(api)
		h.registerLogRoutes(api)
	}
}

func (h *Handler) registerGreenhouseRoutes(api *gin.RouterGroup) {
	api.GET("/status", h.getStatus)
	api.GET("/readings", h.getReadings)

	thresholds := api.Group("/thresholds")
	{
		thresholds.GET("", h.getThresholds)
		// Body example: {"soil_low":25,"temp_max":30}
		thresholds.PUT("", h.updateThresholds)
	}

	// Body example: {"channel":"fan","on":true}
	api.POST("/actuators/override", h.overrideActuator)
	// Body example: {"text":"/estado"}
	api.POST("/commands", h.executeCommand)
}

func (h *Handler) registerLogRoutes(api *gin.RouterGroup) {
	logs := api.Group("/logs")
	{
		logs.GET("/", h.getLogs)
	}
}
