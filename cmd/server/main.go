package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	config "github.com/creatorpulse/metrics-api/configs"
	"github.com/creatorpulse/metrics-api/internal/api/handlers"
	"github.com/creatorpulse/metrics-api/internal/api/middleware"
	job "github.com/creatorpulse/metrics-api/internal/jobs"
	"github.com/creatorpulse/metrics-api/internal/queue"
	"github.com/creatorpulse/metrics-api/internal/repository"
	"github.com/creatorpulse/metrics-api/internal/service"
	"github.com/robfig/cron"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()

	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer closeDB(db)

	if err := db.Ping(); err != nil {
		log.Fatalf("Database is unreachable: %v", err)
	}

	redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI}
	client := asynq.NewClient(redisConn)
	defer client.Close()

	app := fiber.New(fiber.Config{
		ReadTimeout:  2 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOriginsFunc: func(origin string) bool {
			return true
		},
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	userRepo := repository.NewUserRepository(db)
	apiKeyRepo := repository.NewApiKeyRepository(db)
	stateRepo := repository.NewOAuthStateRepository(db)
	tokenRepo := repository.NewTokenRepository(db)
	contentRepo := repository.NewContentRepository(db)
	snapshotRepo := repository.NewSnapshotRepository(db)
	insightRepo := repository.NewInsightRepository(db)

	authService := service.NewAuthService(*cfg, userRepo)
	userService := service.NewUserService(userRepo)
	apiKeyService := service.NewApiKeyService(apiKeyRepo)
	archiveService := service.NewArchiveService(*cfg)
	youtubeService := service.NewYoutubeService(*cfg, tokenRepo)
	instagramService := service.NewInstagramService(*cfg)
	connectService := service.NewConnectService(*cfg, stateRepo, tokenRepo, youtubeService, instagramService)
	syncService := service.NewSyncService(*cfg, tokenRepo, contentRepo, snapshotRepo, insightRepo, youtubeService, instagramService, archiveService)
	metricsService := service.NewMetricsService(contentRepo, snapshotRepo, insightRepo)

	authMiddleware := middleware.NewAuthMiddleware(*cfg, apiKeyService)

	auth := handlers.NewAuthHandler(*cfg, authService)
	app.Get("/login", auth.Login)
	app.Get("/login/callback", auth.LoginCallbackHandler)
	app.Post("/logout", auth.Logout)

	platform := handlers.NewPlatformHandler(connectService, *cfg)
	app.Get("/connect/:platform/callback", platform.CallbackHandler)

	sync := handlers.NewSyncHandler(*cfg, syncService)
	app.Get("/jobs/sync", sync.SyncAll)
	app.Post("/jobs/sync", sync.SyncAll)

	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())

	user := handlers.NewUserHandler(userService)
	api.Get("/user/info", user.GetUserInfo)
	api.Post("/user/remove", user.RemoveUser)

	apiKeys := handlers.NewApiKeyHandler(apiKeyService)
	api.Post("/api_key/new", apiKeys.CreateApiKey)
	api.Get("/api_key/list", apiKeys.ListKeys)
	api.Post("/api_key/remove", apiKeys.RemoveAPIKey)

	api.Get("/connect/:platform", platform.Connect)
	api.Get("/connections/:platform", platform.Status)
	api.Post("/connect/:platform/disconnect", platform.Disconnect)

	api.Post("/sync/:platform", sync.SyncPlatform)

	metrics := handlers.NewMetricsHandler(metricsService)
	api.Get("/metrics/summary", metrics.Summary)
	api.Get("/metrics/insights", metrics.Insights)

	// cron jobs
	refreshTokenJob := job.NewTokenRefreshJob(tokenRepo, youtubeService)
	metricsSyncJob := job.NewMetricsSyncJob(tokenRepo, client)
	stateCleanupJob := job.NewStateCleanupJob(stateRepo)

	//queue
	queueW := queue.NewQueue(syncService)

	c := cron.New()
	c.AddFunc("@every 00h10m00s", refreshTokenJob.RefreshTokens)
	c.AddFunc("@every 01h00m00s", stateCleanupJob.CleanupStates)
	c.AddFunc("@daily", metricsSyncJob.EnqueueSyncs)
	c.Start()

	go func() {
		server := asynq.NewServer(redisConn, asynq.Config{
			Concurrency: 10,
		})

		mux := asynq.NewServeMux()
		mux.HandleFunc(queue.TaskTypeSyncUser, queueW.HandleSyncUserTask)

		log.Println("Starting the Asynq server...")
		if err := server.Run(mux); err != nil {
			log.Fatalf("Could not start Asynq server: %v", err)
		}
	}()

	go func() {
		if err := app.Listen(":3000"); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Println("Server is running on http://localhost:3000")

	gracefulShutdown(app, db)
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App, db *sql.DB) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Fatalf("Failed to shut down server: %v", err)
	}

	closeDB(db)
	log.Println("Server shutdown complete.")
}
