package main

import (
	"context"
	"log"
	"os"
	"time"

	"insurance-backend/internal/database"
	"insurance-backend/internal/gateway"
	"insurance-backend/internal/handler"
	"insurance-backend/internal/mailer"
	"insurance-backend/internal/middleware"
	"insurance-backend/internal/repository"
	"insurance-backend/internal/service"
	"insurance-backend/internal/storage"
	"insurance-backend/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title           Insurance Back-Office API
// @version         1.0
// @description     Proposal lifecycle, premium settlement and policy issuance API.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if err := godotenv.Load("configs/.env"); err != nil {
		log.Println("No configs/.env file found or error loading it")
	}

	dbHost := os.Getenv("DB_HOST")
	dbPort := os.Getenv("DB_PORT")
	dbUser := os.Getenv("DB_USER")
	dbPassword := os.Getenv("DB_PASSWORD")
	dbName := os.Getenv("DB_NAME")
	dbSslMode := os.Getenv("DB_SSLMODE")

	if dbHost == "" {
		dbHost = "localhost"
	}
	if dbPort == "" {
		dbPort = "5432"
	}
	if dbUser == "" {
		dbUser = "postgres"
	}
	if dbPassword == "" {
		dbPassword = "postgres"
	}
	if dbName == "" {
		dbName = "postgres"
	}
	if dbSslMode == "" {
		dbSslMode = "disable"
	}

	dsn := "postgres://" + dbUser + ":" + dbPassword + "@" + dbHost + ":" + dbPort + "/" + dbName + "?sslmode=" + dbSslMode

	db, err := database.NewConnection(dsn)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	log.Println("Connected to PostgreSQL successfully.")

	// Set up WebSocket Hub
	wsHub := websocket.NewHub()
	go wsHub.Run()

	// Payment gateway adapter
	gw := gateway.New(gateway.Config{
		MerchantID:   os.Getenv("GATEWAY_MERCHANT_ID"),
		SharedSecret: os.Getenv("GATEWAY_SHARED_SECRET"),
		CheckoutURL:  os.Getenv("GATEWAY_CHECKOUT_URL"),
		ReturnURL:    os.Getenv("GATEWAY_RETURN_URL"),
		CancelURL:    os.Getenv("GATEWAY_CANCEL_URL"),
		NotifyURL:    os.Getenv("GATEWAY_NOTIFY_URL"),
	})

	// Mail transport and document storage
	mail := mailer.NewFromEnv()
	storageDir := os.Getenv("STORAGE_DIR")
	if storageDir == "" {
		storageDir = "./uploads"
	}
	store, err := storage.NewLocal(storageDir)
	if err != nil {
		log.Fatalf("Storage init failed: %v", err)
	}

	// Set up dependencies (Repository -> Service -> Handler)
	txManager := repository.NewTransactionManager(db)
	userRepo := repository.NewUserRepository(db)
	proposalRepo := repository.NewProposalRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	policyRepo := repository.NewPolicyRepository(db)
	notifRepo := repository.NewNotificationRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	statsRepo := repository.NewStatsRepository(db)

	userService := service.NewUserService(userRepo)
	proposalService := service.NewProposalService(proposalRepo, auditRepo, notifRepo, txManager)
	paymentService := service.NewPaymentService(paymentRepo, proposalRepo, auditRepo, notifRepo, txManager, gw)
	reviewService := service.NewReviewService(proposalRepo, auditRepo, notifRepo, txManager)
	policyService := service.NewPolicyService(policyRepo, proposalRepo, auditRepo, notifRepo, txManager, store)
	notificationService := service.NewNotificationService(notifRepo, userRepo, mail, wsHub)
	reminderService := service.NewReminderService(proposalRepo, policyRepo, auditRepo, notifRepo, txManager)
	auditService := service.NewAuditService(auditRepo)
	statsService := service.NewStatsService(statsRepo)

	// Initialize Handlers
	userHandler := handler.NewUserHandler(userService)
	proposalHandler := handler.NewProposalHandler(proposalService)
	paymentHandler := handler.NewPaymentHandler(paymentService)
	reviewHandler := handler.NewReviewHandler(reviewService)
	policyHandler := handler.NewPolicyHandler(policyService)
	notificationHandler := handler.NewNotificationHandler(notificationService)
	reminderHandler := handler.NewReminderHandler(reminderService)
	auditHandler := handler.NewAuditHandler(auditService)
	statsHandler := handler.NewStatsHandler(statsService)

	// Drain the notification outbox in the background
	go notificationService.StartDrainLoop(context.Background(), 5*time.Second)

	// Set up Gin Router
	router := gin.Default()

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"http://localhost:5173", "http://127.0.0.1:5173", "http://localhost:5174"} // Frontend URL
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "OK"})
	})

	// WebSocket endpoint
	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c, middleware.GetJWTSecret())
	})

	// Register API Routes
	api := router.Group("/api")
	userHandler.RegisterRoutes(api)
	proposalHandler.RegisterRoutes(api)
	paymentHandler.RegisterRoutes(api)
	reviewHandler.RegisterRoutes(api)
	policyHandler.RegisterRoutes(api)
	notificationHandler.RegisterRoutes(api)
	reminderHandler.RegisterRoutes(api)
	auditHandler.RegisterRoutes(api)
	statsHandler.RegisterRoutes(api)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Server listening on :%s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
