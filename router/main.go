package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/learnhubhq/learnhub-api/config"
	"github.com/learnhubhq/learnhub-api/database"
	"github.com/learnhubhq/learnhub-api/handlers"
	auth_handlers "github.com/learnhubhq/learnhub-api/handlers/auth"
	course_handlers "github.com/learnhubhq/learnhub-api/handlers/course"
	enrollment_handlers "github.com/learnhubhq/learnhub-api/handlers/enrollment"
	payment_handlers "github.com/learnhubhq/learnhub-api/handlers/payment"
	"github.com/learnhubhq/learnhub-api/services"
	"github.com/learnhubhq/learnhub-api/utils/auth"
	"github.com/learnhubhq/learnhub-api/utils/cache"
	"github.com/learnhubhq/learnhub-api/utils/middleware"
)

// SetupRoutes wires handlers and middleware onto the fiber app. All
// dependencies arrive explicitly; nothing in here reads the environment.
func SetupRoutes(app *fiber.App, store *database.GORMStore, settings *config.Settings, redisCache *cache.RedisCache) {
	db := store.DB()

	jwtManager := auth.NewJWTManager(auth.JWTConfig{
		Secret:        settings.JWTSecret,
		Expiry:        24 * time.Hour,
		RefreshExpiry: 7 * 24 * time.Hour,
		Issuer:        settings.JWTIssuer,
	})

	authMiddleware := middleware.NewAuthMiddleware(jwtManager)

	paystackClient := services.NewPaystackClient(settings.PaystackBaseURL, settings.PaystackSecretKey)
	emailService := services.NewEmailService(settings.ResendAPIKey, settings.EmailFrom, settings.AppName)
	reconciliationStore := services.NewGormReconciliationStore(db)
	reconciliationService := services.NewReconciliationService(reconciliationStore, paystackClient, emailService, redisCache)

	healthHandler := handlers.NewHealthHandler(store)
	authHandler := auth_handlers.NewAuthHandler(db, jwtManager)
	courseHandler := course_handlers.NewCourseHandler(db)
	enrollmentHandler := enrollment_handlers.NewEnrollmentHandler(db)
	paymentHandler := payment_handlers.NewPaymentHandler(db, reconciliationService)

	// Health check endpoint (public)
	app.Get("/ping", healthHandler.Check)

	// API v1 group
	api := app.Group("/api/v1")

	// Auth routes (public)
	authGroup := api.Group("/auth")
	authGroup.Post("/register", authHandler.Register)
	authGroup.Post("/login", authHandler.Login)

	// Profile route (protected)
	api.Get("/profile", authMiddleware.Required(), authHandler.Profile)

	// Course catalog (public)
	courses := api.Group("/courses")
	courses.Get("/", courseHandler.List)
	courses.Get("/:id", courseHandler.Get)

	// Enrollments (protected)
	api.Get("/enrollments", authMiddleware.Required(), enrollmentHandler.List)

	// Payments (protected)
	payments := api.Group("/payments", authMiddleware.Required())
	payments.Post("/verify", paymentHandler.Verify)
	payments.Get("/", paymentHandler.List)

	// Support-desk lookup (admin only)
	api.Get("/admin/payments/:reference", authMiddleware.RequireAdmin(), paymentHandler.GetByReference)
}
