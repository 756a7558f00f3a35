package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iNeydlis/schooltest/config"
	"github.com/iNeydlis/schooltest/internal/handlers"
	"github.com/iNeydlis/schooltest/internal/middleware"
	"github.com/iNeydlis/schooltest/internal/models"
	"github.com/iNeydlis/schooltest/internal/service"
	"github.com/iNeydlis/schooltest/pkg/cache"
	"github.com/iNeydlis/schooltest/pkg/database"
	"github.com/iNeydlis/schooltest/pkg/messaging"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.Load()
	log.Println("Configuration loaded")

	pgClient, err := database.NewPostgresClient(&cfg.DB)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	log.Println("Connected to PostgreSQL")
	defer pgClient.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := pgClient.InitSchema(ctx); err != nil {
		log.Printf("Warning: Failed to initialize PostgreSQL schema: %v", err)
	} else {
		log.Println("PostgreSQL schema initialized")
	}
	cancel()

	redisClient, err := cache.NewRedisClient(&cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	log.Println("Connected to Redis")
	defer redisClient.Close()

	rabbitClient, err := messaging.NewRabbitMQClient(&cfg.RabbitMQ)
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}
	log.Println("Connected to RabbitMQ")
	defer rabbitClient.Close()

	if _, err := rabbitClient.DeclareQueue("attempt.submitted"); err != nil {
		log.Printf("Warning: Failed to declare attempt.submitted queue: %v", err)
	}

	db := pgClient.GetDB()
	authService := service.NewAuthService(db, cfg.Auth.JWTSecret)
	testService := service.NewTestService(db)
	attemptService := service.NewAttemptService(db, redisClient, rabbitClient)

	go consumeAttemptSubmitted(rabbitClient, attemptService)

	authHandler := handlers.NewAuthHandler(authService)
	testHandler := handlers.NewTestHandler(testService)
	attemptHandler := handlers.NewAttemptHandler(attemptService)

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.ErrorHandler())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "schooltest",
		})
	})

	router.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "not ready",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status": "ready",
		})
	})

	api := router.Group("/api")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh", authHandler.Refresh)
		}

		authorized := api.Group("")
		authorized.Use(middleware.JWTAuth(cfg.Auth.JWTSecret))
		{
			authorized.GET("/auth/me", authHandler.Me)
			authorized.POST("/users", middleware.RequireRole(models.RoleAdmin), authHandler.CreateUser)

			authorized.GET("/tests", testHandler.GetTests)
			authorized.GET("/tests/:id", testHandler.GetTest)

			editors := authorized.Group("", middleware.RequireRole(models.RoleTeacher, models.RoleAdmin))
			{
				editors.POST("/tests", testHandler.CreateTest)
				editors.PUT("/tests/:id", testHandler.UpdateTest)
				editors.DELETE("/tests/:id", testHandler.DeleteTest)
				editors.POST("/tests/:id/restore", testHandler.RestoreTest)
			}

			authorized.POST("/attempts", middleware.RequireRole(models.RoleStudent), attemptHandler.StartAttempt)
			authorized.GET("/attempts", middleware.RequireRole(models.RoleStudent), attemptHandler.GetMyAttempts)
			authorized.GET("/attempts/:id/questions", middleware.RequireRole(models.RoleStudent), attemptHandler.GetQuestions)
			authorized.POST("/attempts/:id/submit", middleware.RequireRole(models.RoleStudent), attemptHandler.SubmitAttempt)
			authorized.GET("/attempts/:id/result", attemptHandler.GetResult)
		}
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Server.HTTPPort,
		Handler: router,
	}

	go func() {
		log.Printf("School test server starting on port %s...", cfg.Server.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("School test server stopped")
}

// consumeAttemptSubmitted warms the result cache for every submitted attempt
// so the first result read after a submission is served from Redis.
func consumeAttemptSubmitted(rabbitClient *messaging.RabbitMQClient, attemptService *service.AttemptService) {
	msgs, err := rabbitClient.Consume("attempt.submitted")
	if err != nil {
		log.Printf("Failed to start consumer for queue attempt.submitted: %v", err)
		return
	}

	log.Println("Started consumer for queue: attempt.submitted")

	ctx := context.Background()
	for msg := range msgs {
		if err := attemptService.HandleAttemptSubmitted(ctx, msg.Body); err != nil {
			log.Printf("Error handling attempt.submitted message: %v", err)
			msg.Nack(false, false)
		} else {
			msg.Ack(false)
		}
	}
}
