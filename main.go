package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"habit-gamification-system/handlers"
	"habit-gamification-system/middleware"
	"habit-gamification-system/models"
	"habit-gamification-system/services"
	"habit-gamification-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{})

	// 🔐 GLOBAL: Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-Service-Token, X-User-ID",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.HabitUser{},
		&models.Habit{},
		&models.HabitLog{},
		&models.XPTransaction{},
		&models.BadgeProgress{},
		&models.Challenge{},
		&models.ChallengeParticipant{},
		&models.UserProgress{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	clock := clockwork.NewRealClock()
	ledgerService := services.NewLedgerService(db, clock)
	badgeService := services.NewBadgeService(db, ledgerService, clock)
	challengeService := services.NewChallengeService(db, ledgerService, clock)
	gamificationService := services.NewGamificationService(db, ledgerService, badgeService, challengeService, clock)

	// --- Profile sync configuration ---
	syncServiceURL := os.Getenv("SYNC_SERVICE_URL")
	if syncServiceURL == "" {
		log.Fatal("SYNC_SERVICE_URL environment variable not set")
	}
	serviceToken := os.Getenv("HABIT_SERVICE_TOKEN")
	if serviceToken == "" {
		log.Fatal("HABIT_SERVICE_TOKEN environment variable not set")
	}

	syncWorker := workers.NewHabitUserSyncWorker(db, syncServiceURL, "/api/v1/public/profiles", serviceToken)
	reconciler := workers.NewLedgerReconciler(db)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go workers.Poll(ctx, reconciler, 5*time.Minute)

	go func() {
		log.Println("Starting Habit User Sync Worker...")
		syncWorker.Start(ctx)
	}()

	challengeService.StartExpiryScheduler()

	// ✅ Setup routes — enforced Gateway auth + user context on secured groups
	handlers.SetupHabitRoutes(app, gamificationService)
	handlers.SetupProgressionRoutes(app, ledgerService, badgeService)
	handlers.SetupChallengeRoutes(app, challengeService)

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Println("✅ Habit User Sync Worker running")
	log.Println("✅ Ledger reconciliation running (every 5m)")
	log.Println("✅ Challenge expiry scheduler running (every 1m)")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
}
