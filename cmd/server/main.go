package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"

	"github.com/bolworks/api/internal/client"
	"github.com/bolworks/api/internal/config"
	"github.com/bolworks/api/internal/engine"
	"github.com/bolworks/api/internal/handler"
	"github.com/bolworks/api/internal/middleware"
	"github.com/bolworks/api/internal/storage"
	ws "github.com/bolworks/api/internal/websocket"
	"github.com/bolworks/api/pkg/response"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize Redis client (rate limiting)
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Test Redis connection
	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis not available: %v", err)
	}

	// Initialize validator
	validate := validator.New()

	// Initialize result storage (R2 when configured, in-memory otherwise)
	var results storage.Store
	if cfg.R2.AccessKeyID != "" && cfg.R2.SecretAccessKey != "" {
		r2Store, err := storage.NewR2Store(&cfg.R2)
		if err != nil {
			log.Printf("Warning: R2 storage not initialized: %v", err)
			results = storage.NewMemoryStore()
		} else {
			results = r2Store
		}
	} else {
		log.Println("Info: R2 storage not configured, keeping results in memory")
		results = storage.NewMemoryStore()
	}

	// Initialize conversion collaborator (mock fallback when unconfigured)
	var converter client.Converter
	convertClient := client.NewConvertClient(&cfg.Converter)
	if convertClient.IsConfigured() {
		converter = convertClient
	} else {
		log.Println("Info: conversion service not configured, using mock converter")
		converter = client.NewMockConverter()
	}

	// Initialize WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Initialize the processing engine and start its worker pool
	eng := engine.New(engine.Config{
		Workers:    cfg.Engine.Workers,
		Capacity:   cfg.Engine.Capacity,
		TTL:        time.Duration(cfg.Engine.TTLHours) * time.Hour,
		SweepBatch: cfg.Engine.SweepBatch,
	}, converter, results, hub)
	eng.Start()

	// Initialize handlers
	convertHandler := handler.NewConvertHandler(eng, validate, cfg.Upload.MaxFileSizeMB)
	systemHandler := handler.NewSystemHandler(eng)

	// Initialize middleware
	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    cfg.Upload.MaxFileSizeMB * 1024 * 1024,
	})

	// Global middleware
	app.Use(recover.New())
	isDebug := strings.EqualFold(cfg.Server.LogLevel, "debug")
	logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
	if isDebug {
		logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams} ${reqHeaders}\n"
		log.Println("Debug logging enabled")
	}
	app.Use(logger.New(logger.Config{
		Format: logFormat,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	// Base URL - timestamp
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"timestamp": time.Now().Unix(),
		})
	})

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"converter": convertClient.IsConfigured(),
				"r2":        cfg.R2.AccessKeyID != "",
				"redis":     redisClient.Ping(c.Context()).Err() == nil,
			},
			"system": eng.SystemStatus(),
		})
	})

	// System metrics
	app.Get("/metrics", systemHandler.Metrics)

	// API routes
	api := app.Group("/api")

	convert := api.Group("/convert")
	convert.Post("/submit", rateLimiter.SubmitLimit(cfg.RateLimit.SubmitPerHour), convertHandler.Submit)
	convert.Get("/status/:jobId", rateLimiter.StatusLimit(cfg.RateLimit.StatusPerMin), convertHandler.Status)
	convert.Get("/result/:jobId", rateLimiter.StatusLimit(cfg.RateLimit.StatusPerMin), convertHandler.Result)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/jobs/:jobId", websocket.New(func(c *websocket.Conn) {
		jobID := c.Params("jobId")
		hub.HandleConnection(c, jobID)
	}))

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	log.Printf("Server starting on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	// Drain in-flight jobs before exiting
	shutdownTimeout := time.Duration(cfg.Engine.ShutdownTimeout) * time.Second
	if err := eng.Shutdown(shutdownTimeout); err != nil {
		log.Printf("Engine shutdown error: %v", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return response.Error(c, code, response.CodeServiceError, message, nil)
}
