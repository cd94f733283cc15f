package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/requestid"

	"pdfrag/config"
	"pdfrag/internal/api/documents"
	"pdfrag/internal/api/healthcheck"
	"pdfrag/internal/api/search"
	"pdfrag/internal/core/answer"
	"pdfrag/internal/core/chunker"
	"pdfrag/internal/core/ingest"
	"pdfrag/internal/core/ranking"
	"pdfrag/internal/database"
	"pdfrag/internal/database/model"
	"pdfrag/internal/embedding"
	"pdfrag/internal/index"
	"pdfrag/internal/llm"
	"pdfrag/internal/middleware"
	"pdfrag/internal/storage"
	"pdfrag/pkg/logger"
)

func main() {
	app := fiber.New(fiber.Config{
		AppName:     config.Cfg.Server.AppName,
		BodyLimit:   config.Cfg.Server.BodyLimit,
		Concurrency: config.Cfg.Server.Concurrency,
	})

	app.Use(middleware.PanicRecovery())
	app.Use(middleware.ConnectionLimit(middleware.NewConnectionLimiter(config.Cfg.Server.Concurrency)))
	app.Use(requestid.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: config.Cfg.Cors.AllowOrigins,
		AllowMethods: config.Cfg.Cors.AllowMethods,
		AllowHeaders: config.Cfg.Cors.AllowHeaders,
	}))

	startupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if db, err := database.GetDB(); err != nil {
		logger.Error(err, "database unavailable at startup")
	} else if err := db.AutoMigrate(&model.Document{}); err != nil {
		logger.Fatal(err, "database migration failed")
	}

	idx, err := index.New()
	if err != nil {
		logger.Fatal(err, "index client init failed")
	}
	if err := idx.EnsureIndex(startupCtx); err != nil {
		logger.Fatal(err, "index setup failed")
	}

	store, err := storage.New(startupCtx)
	if err != nil {
		logger.Fatal(err, "storage init failed")
	}

	embedder := embedding.New()
	generator := llm.New()
	fuser := ranking.NewFuser(idx, embedder, config.Cfg.RAG.CandidateMultiplier)
	streamer := answer.NewStreamer(fuser, generator, answer.Config{
		RetrievalTimeout:  time.Duration(config.Cfg.RAG.RetrievalTimeoutSec) * time.Second,
		GenerationTimeout: time.Duration(config.Cfg.RAG.GenerationTimeoutSec) * time.Second,
		TopK:              config.Cfg.RAG.TopK,
	})

	catalog := ingest.GormCatalog{}
	ingestSvc, err := ingest.NewService(store, idx, embedder, catalog, chunker.Params{
		MaxSize: config.Cfg.Ingest.ChunkSize,
		Overlap: config.Cfg.Ingest.ChunkOverlap,
	})
	if err != nil {
		logger.Fatal(err, "ingest service init failed")
	}

	api := app.Group("/api")
	healthcheck.RegisterRoutes(api, healthcheck.NewHandler(idx))
	documents.RegisterRoutes(api, documents.NewHandler(ingestSvc, catalog, store))
	search.RegisterRoutes(api, search.NewHandler(idx, fuser, streamer))

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info("shutting down")
		if err := app.Shutdown(); err != nil {
			logger.Error(err, "server shutdown failed")
		}
	}()

	addr := fmt.Sprintf(":%d", config.Cfg.Server.Port)
	logger.Info("listening on %s", addr)
	if err := app.Listen(addr); err != nil {
		logger.Error(err, "server error")
	}

	if err := database.Close(); err != nil {
		logger.Error(err, "database close failed")
	}
}
