// Package router provides HTTP routing, middleware configuration, and server setup for the web application
package router

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/compress"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/storekeep/pricing-core/app/dto"
	"github.com/storekeep/pricing-core/app/handlers"
	"github.com/storekeep/pricing-core/app/middleware"
	"github.com/storekeep/pricing-core/config"
	"github.com/storekeep/pricing-core/utils"
)

// Router interface for HTTP routing
type Router interface {
	SetupRoutes()
	Start(address string) error
	GetApp() *fiber.App
}

// FiberRouter implements Router using Fiber v3
type FiberRouter struct {
	app               *fiber.App
	cfg               *config.ProductionConfig
	pricingHandler    handlers.PricingHandlerInterface
	experimentHandler handlers.ExperimentHandlerInterface
	analyticsHandler  handlers.AnalyticsHandlerInterface
}

// NewFiberRouter creates a new Fiber router
func NewFiberRouter(
	cfg *config.ProductionConfig,
	pricingHandler handlers.PricingHandlerInterface,
	experimentHandler handlers.ExperimentHandlerInterface,
	analyticsHandler handlers.AnalyticsHandlerInterface,
) Router {
	app := fiber.New(fiber.Config{
		AppName:      "StoreKeep Pricing Core",
		ServerHeader: "pricing-core",
		ErrorHandler: errorHandler,
		BodyLimit:    cfg.Server.BodyLimit,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	})

	return &FiberRouter{
		app:               app,
		cfg:               cfg,
		pricingHandler:    pricingHandler,
		experimentHandler: experimentHandler,
		analyticsHandler:  analyticsHandler,
	}
}

// SetupRoutes configures all application routes
func (r *FiberRouter) SetupRoutes() {
	log.Println("Setting up routes...")

	r.setupMiddleware()

	api := r.app.Group("/api/v1")

	// Health check route
	api.Get("/health", r.healthCheck)

	// Price adjustment endpoints
	pricing := api.Group("/pricing")
	pricing.Post("/propose", r.pricingHandler.ProposeAdjustment)
	pricing.Post("/apply", r.pricingHandler.ApplyAdjustment)
	pricing.Post("/batch", r.pricingHandler.BatchUpdatePrices)
	pricing.Post("/revert", r.pricingHandler.RevertAdjustment)

	// Experiment endpoints
	experiments := api.Group("/experiments")
	experiments.Post("/", r.experimentHandler.Create)
	experiments.Post("/:uuid/start", r.experimentHandler.Start)
	experiments.Post("/:uuid/pause", r.experimentHandler.Pause)
	experiments.Post("/complete", r.experimentHandler.Complete)
	experiments.Get("/:uuid/results", r.experimentHandler.Results)
	experiments.Post("/assign", r.experimentHandler.AssignVariant)
	experiments.Post("/expose", r.experimentHandler.RecordExposure)
	experiments.Post("/convert", r.experimentHandler.RecordConversion)

	// Market analysis endpoints
	market := api.Group("/market")
	market.Post("/competitor-prices", r.analyticsHandler.SubmitCompetitorPrice)
	market.Get("/analysis", r.analyticsHandler.AnalyzeMarket)
	market.Get("/price-index", r.analyticsHandler.PriceIndex)

	// Demand forecast endpoints
	forecast := api.Group("/forecast")
	forecast.Post("/demand", r.analyticsHandler.ProjectDemand)
	forecast.Get("/weekly-pattern", r.analyticsHandler.WeeklyPattern)

	// Adjustment history endpoints
	history := api.Group("/history")
	history.Get("/summary", r.analyticsHandler.HistorySummary)
	history.Get("/export", r.analyticsHandler.HistoryExport)

	log.Println("Routes configured")
}

// setupMiddleware wires global middleware, order matters
func (r *FiberRouter) setupMiddleware() {
	// Request ID middleware - must be first
	r.app.Use(requestid.New(requestid.Config{
		Header: "X-Request-ID",
		Generator: func() string {
			return generateRequestID()
		},
	}))

	// Compression middleware
	r.app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	// Structured access logging
	r.app.Use(logger.New(logger.Config{
		Format:     `{"time":"${time}","request_id":"${locals:requestid}","level":"info","method":"${method}","path":"${path}","ip":"${ip}","status":${status},"latency":"${latency}","bytes_out":${bytesSent}}` + "\n",
		TimeFormat: time.RFC3339,
		TimeZone:   "UTC",
		Next: func(c fiber.Ctx) bool {
			return c.Path() == "/api/v1/health"
		},
	}))

	// Prometheus HTTP metrics
	if r.cfg.Server.EnableMetrics {
		r.app.Use(middleware.Metrics())
	}

	// Recovery middleware with request-scoped panic logging
	r.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c fiber.Ctx, e interface{}) {
			log.Printf(`{"time":"%s","level":"error","request_id":"%s","event":"panic","error":"%v","path":"%s","method":"%s","ip":"%s"}`,
				utils.UTCNow().Format(time.RFC3339),
				c.Locals("requestid"),
				e,
				c.Path(),
				c.Method(),
				c.IP(),
			)
		},
	}))
}

func errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	log.Printf("Error %d: %v", code, err)

	requestID := c.Locals("requestid")

	return c.Status(code).JSON(dto.APIResponse{
		Success: false,
		Message: "An internal server error occurred",
		Error: dto.ErrorDetail{
			Code: "INTERNAL_ERROR",
			Details: fiber.Map{
				"timestamp":  utils.UTCNow().Unix(),
				"request_id": requestID,
			},
		},
	})
}

func (r *FiberRouter) healthCheck(c fiber.Ctx) error {
	return c.JSON(dto.APIResponse{
		Success: true,
		Message: "Service is healthy",
		Data: fiber.Map{
			"status":    "ok",
			"timestamp": utils.UTCNow().Unix(),
			"version":   r.cfg.Deployment.Version,
			"service":   "pricing-core",
		},
	})
}

// generateRequestID creates a random 16-byte hex request identifier
func generateRequestID() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "unknown"
	}
	return hex.EncodeToString(bytes)
}

// Start begins listening on the given address
func (r *FiberRouter) Start(address string) error {
	log.Printf("Starting server on %s", address)
	return r.app.Listen(address)
}

// GetApp exposes the underlying Fiber app
func (r *FiberRouter) GetApp() *fiber.App {
	return r.app
}
