package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"

	"github.com/pixelfeed/user-service/internal/cache"
	usercmd "github.com/pixelfeed/user-service/internal/command"
	"github.com/pixelfeed/user-service/internal/config"
	"github.com/pixelfeed/user-service/internal/events"
	"github.com/pixelfeed/user-service/internal/handler"
	"github.com/pixelfeed/user-service/internal/media"
	"github.com/pixelfeed/user-service/internal/middleware"
	userqry "github.com/pixelfeed/user-service/internal/query"
	"github.com/pixelfeed/user-service/internal/repository"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	// Database connection (write store)
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	if err := repository.Migrate(ctx, db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// Redis connection (read model store + event streaming)
	redis, err := cache.NewClient(cfg.RedisAddr, "", 0)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redis.Close()

	// Media host (S3-compatible object storage)
	uploader, err := media.NewUploader(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to set up media uploader: %v", err)
	}

	// --- CQRS wiring ---
	publisher := events.NewPublisher(redis.Client)

	writeRepo := repository.NewUserWriteRepository(db)
	readRepo := repository.NewUserReadRepository(db, redis.Client)

	commandSvc := usercmd.NewUserCommandService(writeRepo, readRepo, uploader, publisher)
	querySvc := userqry.NewUserQueryService(writeRepo, readRepo)

	userHandler := handler.NewUserHandler(commandSvc, querySvc, cfg.UploadDir)

	// Setup router
	router := gin.Default()
	router.Use(middleware.LoggingMiddleware())
	router.Use(middleware.CORSMiddleware(cfg.CORSOrigin))

	v1 := router.Group("/api/v1/users")
	{
		v1.POST("/register", userHandler.Register)
		v1.POST("/login", userHandler.Login)
		v1.GET("/getusers", userHandler.GetUsers)
		v1.GET("/getuser", userHandler.GetUserByID)
		v1.PATCH("/updateprofile", userHandler.UpdateProfile)
		v1.PATCH("/updatepassword", userHandler.UpdatePassword)
		v1.PATCH("/updateavatarimage", userHandler.UpdateAvatarImage)
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("User service starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Forced shutdown: %v", err)
	}
}
