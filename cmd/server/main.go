package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"conversa/internal/config"
	"conversa/internal/database"
	"conversa/internal/handlers"
	"conversa/internal/logging"
	"conversa/internal/services"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Structured logging (JSON in production, text in dev)
	logging.Init()

	log.Println("🚀 Starting Conversa Server...")

	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  No .env file found or error loading it: %v", err)
	}

	cfg := config.Load()
	log.Printf("📋 Configuration loaded (Port: %s, DB: %s)", cfg.Port, cfg.Database)

	db, err := database.NewMongoDB(cfg.MongoURI, cfg.Database)
	if err != nil {
		log.Fatalf("❌ Failed to connect to MongoDB: %v", err)
	}
	defer db.Close(context.Background())

	// Stores
	memoryStore := database.NewMemoryStore(db)
	settingsStore := database.NewSettingsStore(db)
	ragStore := database.NewRAGStore(db)
	conversationStore := database.NewConversationStore(db)

	// Optional Redis for the shared search cache
	var searchCache services.SearchCache
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Printf("⚠️ Invalid REDIS_URL, using in-memory search cache: %v", err)
		} else {
			redisClient := redis.NewClient(opts)
			pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := redisClient.Ping(pingCtx).Err(); err != nil {
				log.Printf("⚠️ Redis unreachable, using in-memory search cache: %v", err)
			} else {
				searchCache = services.NewRedisSearchCache(redisClient)
				log.Println("✅ Redis search cache enabled")
			}
			cancel()
		}
	}

	// Model catalog with hot reload
	providerService, err := services.NewProviderService(cfg.ProvidersFile)
	if err != nil {
		log.Fatalf("❌ Failed to load providers file: %v", err)
	}
	defer providerService.Close()

	metrics := services.InitMetrics()

	// Core services
	embedder := services.NewOllamaEmbedder(cfg.OllamaBaseURL, cfg.OllamaEmbedModel, cfg.EmbedTimeout)
	memoryService := services.NewMemoryService(memoryStore, settingsStore, cfg.MemoryContextLimit)
	ingestService := services.NewRAGIngestService(ragStore, embedder, cfg.RAGChunkSize, cfg.RAGChunkOverlap)
	retrievalService := services.NewRAGRetrievalService(ragStore, embedder, cfg.RAGTopK, cfg.RAGMinScore)
	toolRouter := services.NewToolRouter(retrievalService)

	tavily := services.NewTavilyClient(cfg.TavilyAPIKey, cfg.TavilyBaseURL, cfg.SearchTimeout)
	sourceReader := services.NewWebSourceReader(cfg.SourceReadTimeout)
	searchService := services.NewSearchService(tavily, sourceReader, searchCache)

	llm := services.NewOpenAIClient(providerService.BaseURL(), providerService.APIKey(), cfg.GenerateTimeout)
	responseService := services.NewResponseService(llm)
	extractionService := services.NewFactExtractionService(llm, memoryService, providerService.ExtractorModel())
	conversationService := services.NewConversationService(conversationStore, ragStore)

	orchestrator := services.NewOrchestrator(
		memoryService,
		toolRouter,
		searchService,
		retrievalService,
		responseService,
		extractionService,
		conversationService,
		providerService,
		metrics,
		cfg.ExtractTimeout,
	)

	// Stale pending document sweeper
	janitor, err := services.NewJanitorService(ragStore, cfg.JanitorInterval, cfg.JanitorMaxAge)
	if err != nil {
		log.Fatalf("❌ Failed to create janitor: %v", err)
	}
	if err := janitor.Start(); err != nil {
		log.Fatalf("❌ Failed to start janitor: %v", err)
	}
	defer janitor.Stop()

	// Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Conversa v1.0",
		ReadTimeout:  900 * time.Second, // local models can take minutes to cold start
		WriteTimeout: 900 * time.Second, // streaming responses from large local models
		IdleTimeout:  900 * time.Second,
		BodyLimit:    50 * 1024 * 1024,
	})

	app.Use(recover.New())
	app.Use(logger.New())

	prometheus := fiberprometheus.New("conversa")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)
	log.Println("📊 Prometheus metrics endpoint enabled at /metrics")

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:5173,http://localhost:3000"
		log.Println("⚠️  ALLOWED_ORIGINS not set, using development defaults")
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization",
		AllowCredentials: allowedOrigins != "*",
	}))

	app.Use("/api", limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
	}))

	// Handlers
	healthHandler := handlers.NewHealthHandler(db)
	chatHandler := handlers.NewChatHandler(orchestrator, cfg.GenerateTimeout+2*time.Minute)
	ragHandler := handlers.NewRAGHandler(ingestService, conversationService)
	memoryHandler := handlers.NewMemoryHandler(memoryService)

	// Routes
	app.Get("/health", healthHandler.Handle)

	api := app.Group("/api")
	api.Post("/chat", chatHandler.Chat)
	api.Post("/chat/stream", chatHandler.Stream)

	api.Post("/rag/upload", ragHandler.Upload)
	api.Get("/rag/documents/:conversationId", ragHandler.List)
	api.Delete("/rag/documents/:conversationId/:documentId", ragHandler.DeleteDocument)
	api.Delete("/conversations/:id", ragHandler.DeleteConversation)

	api.Get("/memory/:userId", memoryHandler.List)
	api.Post("/memory/:userId", memoryHandler.Save)
	api.Delete("/memory/:userId/:key", memoryHandler.Delete)
	api.Delete("/memory/:userId", memoryHandler.Clear)
	api.Get("/memory/:userId/about", memoryHandler.GetAboutYou)
	api.Put("/memory/:userId/about", memoryHandler.PutAboutYou)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Println("🛑 Shutting down...")
		if err := app.Shutdown(); err != nil {
			log.Printf("⚠️ Shutdown error: %v", err)
		}
	}()

	log.Printf("✅ Server listening on :%s", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Server error: %v", err)
	}
}
