package main

import (
	"log"
	"time"

	"lms/access"
	"lms/cache"
	"lms/config"
	courseControllers "lms/controllers/course"
	"lms/database"
	appLogger "lms/logger"
	"lms/playback"
	"lms/progress"
	authRoutes "lms/routers/authRoutes"
	courseRoutes "lms/routers/courseRoutes"
	"lms/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
)

func main() {
	config.LoadConfig()
	config.ValidatePlaybackConfig()
	database.ConnectDb()
	cache.ConnectCache()

	zlog, err := appLogger.New(config.AppConfig.Mode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zlog.Sync()

	// Wire the lesson access and completion engine
	gate := access.NewGate(database.Database.Db)
	secretClient := playback.NewSecretClient(config.AppConfig.SecretsApiURL, config.AppConfig.SecretsApiToken)
	signingKeys := playback.NewSigningKeys(secretClient, config.AppConfig.PlaybackSecretName)
	issuer := playback.NewIssuer(
		gate,
		signingKeys,
		config.AppConfig.PlaybackKeyPairID,
		config.AppConfig.MediaDomain,
		time.Duration(config.AppConfig.PlaybackCredentialTTL)*time.Minute,
	)
	progressStore := progress.NewStore(database.Database.Db, zlog)
	progressView := progress.NewViewCache(cache.Cache.Client, zlog)
	sessions := playback.NewManager(issuer, progressStore, progressView, zlog)

	courseControllers.Init(gate, issuer, sessions, progressStore, progressView, zlog)

	app := fiber.New()

	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE",        // Allowed HTTP methods
		AllowHeaders: "Content-Type,Authorization", // Allowed headers
	}))

	// Enable the built-in logger middleware to log all requests
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${ip} ${method} ${path} ${status} ${latency}\n",
	}))

	authRoutes.SetupAuthRoutes(app)
	courseRoutes.SetupCourseRoutes(app)

	utils.InitializeSessionSweeper(sessions)

	log.Printf("Server is running on port %s", config.AppConfig.Port)
	log.Fatal(app.Listen(":" + config.AppConfig.Port))
}
