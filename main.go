package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"game-arena-system/handlers"
	"game-arena-system/models"
	"game-arena-system/services"
	"game-arena-system/utils"
	"game-arena-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 20 * 1024 * 1024, // 20MB, covers proof screenshots and logos
	})

	// CORS, origins from env, comma separated
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
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-Session-Token",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
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
		&models.User{},
		&models.Wallet{},
		&models.Transaction{},
		&models.Game{},
		&models.GameMatch{},
		&models.PlayerMatch{},
		&models.Subscription{},
		&models.SubscriptionReward{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	// R2 holds deposit proofs and game logos; without it uploads land in
	// the local uploads directory
	if err := utils.InitR2(); err != nil {
		log.Printf("⚠️  R2 not configured, using local uploads: %v", err)
	}
	if err := utils.EnsureUploadDir(); err != nil {
		log.Fatal("failed to ensure upload dir:", err)
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: os.Getenv("REDIS_PASSWORD"),
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatal("failed to connect to redis:", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	walletService := services.NewWalletService(db)
	gameService := services.NewGameService(db)
	matchService := services.NewMatchService(db, walletService)
	subscriptionService := services.NewSubscriptionService(db, walletService)
	authService := services.NewAuthService(db, walletService, rdb)

	hub := services.NewChatHub(rdb)
	hub.StartRelay(ctx)
	chatService := services.NewChatService(db, hub)

	if err := gameService.SeedDefaultGames(); err != nil {
		log.Fatal("failed to seed game catalog:", err)
	}
	botID, err := services.EnsureBotUser(db)
	if err != nil {
		log.Fatal("failed to seed practice opponent:", err)
	}
	botScheduler := services.NewBotScheduler(db, matchService, botID)
	matchService.Bots = botScheduler
	defer botScheduler.Shutdown()

	if adminEmail := os.Getenv("ADMIN_EMAIL"); adminEmail != "" {
		if err := promoteAdmin(db, adminEmail); err != nil {
			log.Printf("⚠️  could not promote admin %s: %v", adminEmail, err)
		}
	}

	subscriptionService.StartRewardScheduler()
	go workers.PollStreaks(ctx, db, 1*time.Hour)

	handlers.SetupRoutes(app, &handlers.Services{
		Auth:          authService,
		Games:         gameService,
		Matches:       matchService,
		Wallet:        walletService,
		Subscriptions: subscriptionService,
		Chat:          chatService,
	})

	app.Static("/uploads", utils.UploadRoot())

	port := os.Getenv("PORT")
	if port == "" {
		port = "5300"
	}
	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on http://localhost:%s", port)
	log.Println("✅ Subscription reward scheduler running")
	log.Println("✅ Login streak sweep running (hourly)")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
}

// promoteAdmin flips the named account to the admin role. Safe to run on
// every boot.
func promoteAdmin(db *gorm.DB, email string) error {
	res := db.Model(&models.User{}).
		Where("email = ? AND role <> ?", email, models.RoleAdmin).
		Update("role", models.RoleAdmin)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		log.Printf("👑 promoted %s to admin", email)
	}
	return nil
}
