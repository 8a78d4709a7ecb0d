package cmd

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"cave-store/config"
	"cave-store/handlers"
	_ "cave-store/migrations"
	"cave-store/security"
	"cave-store/services"
	"cave-store/utils"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	pubnub "github.com/pubnub/go"
)

func Start() error {
	app := pocketbase.New()

	// Load configuration
	cfg := config.LoadConfig()

	// Initialize Redis
	redisClient := utils.NewRedisClient(cfg.RedisURL)
	defer redisClient.Close()

	// Initialize PubNub (optional; the notifier is a no-op without keys)
	var notifier *services.Notifier
	if cfg.PubNubPublishKey != "" {
		pnConfig := pubnub.NewConfig()
		pnConfig.PublishKey = cfg.PubNubPublishKey
		pnConfig.SubscribeKey = cfg.PubNubSubscribeKey
		pnConfig.SecretKey = cfg.PubNubSecretKey

		notifier = services.NewNotifier(pubnub.NewPubNub(pnConfig))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize services; the PocketBase app is the record store.
	eventService := services.NewEventService(app, redisClient)
	ticketService := services.NewTicketService(app, cfg.TicketCodeBytes)
	sessionService := services.NewSessionService(app, notifier, cfg.DefaultSessionMinutes)
	orderService := services.NewOrderService(app)
	statsService := services.NewStatsService(app, redisClient, cfg.StatsCacheTTL)

	// Initialize handlers
	eventHandler := handlers.NewEventHandler(eventService)
	ticketHandler := handlers.NewTicketHandler(ticketService)
	sessionHandler := handlers.NewSessionHandler(eventService, ticketService, sessionService, orderService)
	orderHandler := handlers.NewOrderHandler(sessionService, orderService)
	adminHandler := handlers.NewAdminHandler(eventService, sessionService, statsService)

	limiter := security.NewRateLimiter(redisClient, cfg.RateLimitWindow, cfg.RateLimitRequests)

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: cfg.Environment == "development",
	})

	// Setup graceful shutdown
	go handleShutdown(cancel)

	setupEventHooks(app, eventService)

	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		if err := eventService.SyncActiveEvents(ctx); err != nil {
			slog.Error("active events sync failed", "error", err)
		}

		// Background stats collection keeps the dashboard cache and the
		// open-session gauges warm.
		go statsService.RunCollector(ctx, cfg.StatsCollectInterval)

		if cfg.EnableMetrics {
			go serveMetrics(cfg.MetricsPort)
		}

		// Event registry endpoints
		e.Router.GET("/api/v1/cave/events", eventHandler.GetActive)
		e.Router.GET("/api/v1/cave/events/upcoming", eventHandler.GetUpcoming)

		// Admission endpoints
		caveGroup := e.Router.Group("/api/v1/cave")
		caveGroup.Bind(apis.RequireAuth())
		caveGroup.POST("/tickets/validate", ticketHandler.Validate)
		caveGroup.POST("/enter", sessionHandler.Enter).BindFunc(limiter.Middleware())
		caveGroup.POST("/leave", sessionHandler.Leave)
		caveGroup.GET("/session", sessionHandler.Current)
		caveGroup.GET("/sessions", sessionHandler.History)

		// Order ledger endpoints
		caveGroup.POST("/orders", orderHandler.Create).BindFunc(limiter.Middleware())
		caveGroup.GET("/sessions/{sessionId}/orders", orderHandler.ListBySession)

		// Admin console endpoints
		adminGroup := e.Router.Group("/api/v1/admin/cave")
		adminGroup.Bind(apis.RequireSuperuserAuth())
		adminGroup.POST("/events", eventHandler.Create)
		adminGroup.PATCH("/events/{eventId}", eventHandler.Update)
		adminGroup.DELETE("/events/{eventId}", eventHandler.Delete)
		adminGroup.GET("/events/{eventId}/tickets", ticketHandler.ListByEvent)
		adminGroup.POST("/tickets", ticketHandler.Issue)
		adminGroup.DELETE("/tickets/{ticketId}", ticketHandler.Revoke)
		adminGroup.GET("/stats", adminHandler.Stats)
		adminGroup.POST("/stats/refresh", adminHandler.RefreshStats)
		adminGroup.GET("/active-events", adminHandler.ActiveEvents)
		adminGroup.POST("/sessions/force-close", adminHandler.ForceCloseSession)

		// Health check
		e.Router.GET("/health", func(e *core.RequestEvent) error {
			if err := utils.RedisHealthCheck(redisClient); err != nil {
				return e.JSON(503, map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
			}
			return e.JSON(200, map[string]string{"status": "healthy"})
		})

		log.Println("Server routes registered")

		return e.Next()
	})

	return app.Start()
}

// setupEventHooks keeps the Redis active-event mirror in step with record
// changes regardless of whether they come through the cave API or the
// PocketBase dashboard.
func setupEventHooks(app *pocketbase.PocketBase, eventService *services.EventService) {
	app.OnRecordAfterCreateSuccess("cave_events").BindFunc(func(e *core.RecordEvent) error {
		eventService.MarkEventActive(context.Background(), e.Record.Id, e.Record.GetBool("is_active"))
		return e.Next()
	})

	app.OnRecordAfterUpdateSuccess("cave_events").BindFunc(func(e *core.RecordEvent) error {
		eventService.MarkEventActive(context.Background(), e.Record.Id, e.Record.GetBool("is_active"))
		return e.Next()
	})

	app.OnRecordAfterDeleteSuccess("cave_events").BindFunc(func(e *core.RecordEvent) error {
		eventService.MarkEventActive(context.Background(), e.Record.Id, false)
		return e.Next()
	})
}

func serveMetrics(port string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	slog.Info("metrics listener started", "port", port)
	if err := http.ListenAndServe(":"+port, mux); err != nil {
		slog.Error("metrics listener stopped", "error", err)
	}
}

// handleShutdown handles graceful shutdown
func handleShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	log.Println("Shutdown signal received, cleaning up...")
	cancel()
}
