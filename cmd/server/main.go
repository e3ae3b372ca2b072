package main

import (
	"context"
	"log"

	"firebase.google.com/go/v4/messaging"
	"github.com/labstack/echo/v4"
	"github.com/shafin96/pulsegram/backend/internal/push"
	"github.com/shafin96/pulsegram/backend/internal/router"
	"github.com/shafin96/pulsegram/backend/pkg/config"
	"github.com/shafin96/pulsegram/backend/pkg/firebase"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Initialize database connections
	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize databases: %v", err)
	}
	defer db.CloseDB() // Ensure database connections are closed when main exits

	// Initialize Firebase Cloud Messaging; absent credentials just disable
	// the FCM delivery path
	var messagingClient *messaging.Client
	if cfg.FirebaseCredentialsPath != "" {
		ctx := context.Background()
		firebaseApp, err := firebase.InitFirebase(ctx, cfg.FirebaseCredentialsPath)
		if err != nil {
			logger.Warn("Firebase unavailable, FCM push disabled", zap.Error(err))
		} else {
			messagingClient = firebaseApp.MessagingClient
		}
	}

	vapid := push.VAPIDConfig{
		PublicKey:  cfg.VAPIDPublicKey,
		PrivateKey: cfg.VAPIDPrivateKey,
		Subject:    cfg.VAPIDSubject,
	}

	// Create Echo instance
	e := echo.New()

	// Setup global middleware
	router.SetupMiddleware(e)

	// Setup routes and dependencies
	router.SetupRoutes(e, db.Postgres, db.Mongo, messagingClient, vapid, logger)

	// Start server
	e.Logger.Fatal(e.Start(":" + cfg.Port))
}
