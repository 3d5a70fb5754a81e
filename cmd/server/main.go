package main

import (
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"beerich/internal/auth"
	"beerich/internal/cache"
	"beerich/internal/config"
	"beerich/internal/db"
	"beerich/internal/handler"
	"beerich/internal/model"
	"beerich/internal/repository"
	"beerich/internal/router"
	"beerich/internal/service"
	"beerich/internal/upload"
	"beerich/internal/view"
)

func main() {
	cfg := config.Load()

	e := echo.New()
	e.Use(middleware.RequestID())

	renderer, err := view.New()
	if err != nil {
		log.Fatalf("view init: %v", err)
	}
	e.Renderer = renderer

	gormDB, err := db.NewMySQL(cfg.MySQLDSN)
	if err != nil {
		log.Fatalf("database init: %v", err)
	}

	// Run migrations for all models
	if err := gormDB.AutoMigrate(
		&model.User{},
		&model.Expense{},
		&model.Invoice{},
	); err != nil {
		log.Fatalf("auto-migrate: %v", err)
	}

	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)

	attachments, err := upload.NewStorage(cfg.AttachmentsDir)
	if err != nil {
		log.Fatalf("attachments init: %v", err)
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(gormDB)
	expenseRepo := repository.NewExpenseRepository(gormDB)
	invoiceRepo := repository.NewInvoiceRepository(gormDB)

	// Initialize session components
	jwtService := auth.NewJWTService(cfg.SessionSecret)
	sessionStore := auth.NewSessionStore(cacheClient)

	// Initialize services
	authService := service.NewAuthService(userRepo, jwtService, sessionStore)
	expenseService := service.NewExpenseService(expenseRepo, cacheClient, attachments)
	invoiceService := service.NewInvoiceService(invoiceRepo, cacheClient, attachments)

	// Initialize handlers
	authHandler := handler.NewAuthHandler(authService, cfg.SessionCookie, cfg.SecureCookies)
	expenseHandler := handler.NewExpenseHandler(expenseService, attachments)
	invoiceHandler := handler.NewInvoiceHandler(invoiceService, attachments)

	// Register routes
	router.Register(
		e,
		cfg,
		sessionStore,
		authHandler,
		expenseHandler,
		invoiceHandler,
	)

	addr := ":" + cfg.ServerPort
	if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server start: %v", err)
	}
}
