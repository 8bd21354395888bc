package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"whatschat/internal/config"
	"whatschat/internal/data"
	"whatschat/internal/database"
	"whatschat/internal/input"
	"whatschat/internal/nlog"
	"whatschat/internal/presence"
	"whatschat/internal/realtime"
	"whatschat/internal/service"
)

func main() {
	folderPath := flag.String("folder-path", ".", "folder containing the .cfg file")
	flag.Parse()

	if err := run(*folderPath); err != nil {
		fmt.Fprintf(os.Stderr, "whatschat: %v\n", err)
		os.Exit(1)
	}
}

func run(folderPath string) error {
	cfg, err := config.LoadConfig(folderPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := nlog.NewServerLogger(nil, cfg.EnableLogging, cfg.LogLevel)
	mainLog := logger.MustSubsystem("main")

	db, err := database.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("opening %s database: %w", cfg.DBDriver, err)
	}
	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("migrating schema: %w", err)
	}
	storage := data.NewStorageManager(db)
	defer storage.Close()

	registry := presence.NewRegistry()
	defer registry.Close()

	users := service.NewUserService(storage, logger.MustSubsystem("user"))
	visibility := service.NewVisibilityService(storage, service.SystemClock, logger.MustSubsystem("visibility"))

	hub := realtime.NewHub(cfg.AllowedOrigins, logger.MustSubsystem("websocket"))
	router := realtime.NewRouter(hub, registry, users, nil, nil, logger.MustSubsystem("realtime"))
	hub.SetHandler(router)

	groups := service.NewGroupService(storage, visibility, router, service.SystemClock, service.RandomPicker, logger.MustSubsystem("group"))
	communities := service.NewCommunityService(storage, visibility, router, service.SystemClock, logger.MustSubsystem("community"))
	router.SetMembership(groups, communities)

	inputManager := input.NewInputManager()
	inputManager.SetLogger(logger.MustSubsystem("http"))
	inputManager.SetAuthService(service.NewAuthService(storage, cfg.SecretKey, cfg.TokenTTL(), service.SystemClock, logger.MustSubsystem("auth")))
	inputManager.SetUserService(users)
	inputManager.SetMessageService(service.NewMessageService(storage, visibility, service.SystemClock, logger.MustSubsystem("message")))
	inputManager.SetGroupService(groups)
	inputManager.SetCommunityService(communities)
	inputManager.SetRealtime(hub)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mainLog.Logf("Starting on port %d with the %s driver", cfg.HTTPServerPort, cfg.DBDriver)
	if err := inputManager.Run(ctx, &input.IptConfig{
		ServerPort:    cfg.HTTPServerPort,
		ReadTimeout:   cfg.ReadTimeout,
		WriteTimeout:  cfg.WriteTimeout,
		SecretKey:     cfg.SecretKey,
		SessionMaxAge: cfg.TokenTTL(),
	}); err != nil {
		return err
	}
	mainLog.Logf("Shutting off...")
	return nil
}
