package main

import (
	"errors"
	"log"
	"os"

	"github.com/Baaaki/imf-gadgets/internal/codename"
	"github.com/Baaaki/imf-gadgets/internal/config"
	"github.com/Baaaki/imf-gadgets/internal/database"
	"github.com/Baaaki/imf-gadgets/internal/repository"
	"github.com/Baaaki/imf-gadgets/internal/service"
	"github.com/Baaaki/imf-gadgets/pkg/logger"
	"go.uber.org/zap"
)

// Sample inventory for a fresh database
var sampleGadgets = []string{
	"Exploding Pen",
	"Mask Kit",
	"Grappling Watch",
}

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(!cfg.IsProduction()); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Log.Fatal("Failed to open database", zap.Error(err))
	}
	defer database.Close(db)

	if err := database.Migrate(db); err != nil {
		logger.Log.Fatal("Failed to migrate database", zap.Error(err))
	}

	username := os.Getenv("SEED_USERNAME")
	password := os.Getenv("SEED_PASSWORD")
	if username == "" || password == "" {
		logger.Log.Fatal("Missing environment variables: SEED_USERNAME, SEED_PASSWORD")
	}

	authService := service.NewAuthService(repository.NewUserRepository(db), cfg.JWTSecret, cfg.JWTExpiry)

	user, err := authService.Register(username, password)
	switch {
	case errors.Is(err, service.ErrUsernameAlreadyExists):
		logger.Log.Info("Seed user already exists", zap.String("username", username))
	case err != nil:
		logger.Log.Fatal("Failed to create seed user", zap.Error(err))
	default:
		logger.Log.Info("Seed user created",
			zap.String("user_id", user.ID),
			zap.String("username", user.Username),
		)
	}

	gadgetRepo := repository.NewGadgetRepository(db)
	existing, err := gadgetRepo.ListGadgets("")
	if err != nil {
		logger.Log.Fatal("Failed to list gadgets", zap.Error(err))
	}
	if len(existing) > 0 {
		logger.Log.Info("Gadgets already present, skipping", zap.Int("count", len(existing)))
		return
	}

	// No broker: nobody is listening while seeding
	gadgetService := service.NewGadgetService(
		gadgetRepo,
		codename.NewGenerator(cfg.CodenamePool, cfg.CodenameMaxAttempts),
		nil,
	)
	for _, name := range sampleGadgets {
		gadget, err := gadgetService.CreateGadget(name)
		if err != nil {
			logger.Log.Fatal("Failed to create gadget", zap.String("name", name), zap.Error(err))
		}
		logger.Log.Info("Gadget seeded",
			zap.String("name", gadget.Name),
			zap.String("codename", gadget.Codename),
		)
	}
}
