package bootstrap

import (
	"context"
	"log"

	"clinical-coding-be/internal/config"
	"clinical-coding-be/internal/controller"
	"clinical-coding-be/internal/handler"
	"clinical-coding-be/internal/pkg/logger"
	"clinical-coding-be/internal/repository"
	"clinical-coding-be/internal/repository/memory"
	"clinical-coding-be/internal/repository/unitofwork"
	"clinical-coding-be/internal/service"
	"clinical-coding-be/internal/websocket"
	"clinical-coding-be/pkg/embedding"
	"clinical-coding-be/pkg/embedding/jina"
	"clinical-coding-be/pkg/llm/factory"

	pktNats "clinical-coding-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	CodingController controller.ICodingController
	CorpusController controller.ICorpusController
	HealthController controller.IHealthController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService

	// WebSockets & Event Feed
	EventFeedHandler *handler.EventFeedHandler
	WebSocketHub     *websocket.Hub
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 3. Providers
	// Initialize Embedding Provider based on Config
	var embeddingProvider embedding.EmbeddingProvider
	if cfg.Ai.EmbeddingProvider == "ollama" {
		embeddingProvider = embedding.NewOllamaProvider(
			cfg.Ai.OllamaBaseURL,
			cfg.Ai.OllamaModel,
		)
		log.Printf("[INFO] Using Embedding Provider: OLLAMA (%s)", cfg.Ai.OllamaModel)
	} else if cfg.Ai.EmbeddingProvider == "jina" {
		embeddingProvider = jina.NewJinaProvider(cfg.Ai.JinaAPIKey)
		log.Printf("[INFO] Using Embedding Provider: JINA AI")
	} else {
		embeddingProvider = embedding.NewGeminiProvider(cfg.Ai.GeminiAPIKey)
		log.Printf("[INFO] Using Embedding Provider: GEMINI")
	}

	// Initialize LLM Provider based on Config
	llmProvider, err := factory.NewLLMProvider(
		cfg.Ai.LLMProvider,
		cfg.Ai.LLMModel,
		cfg.Ai.OllamaBaseURL,
		cfg.Ai.HuggingFaceAPIKey,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	// Query embeddings are memoized so a repeated note embeds once per TTL.
	// Document embedding (the consumer) keeps the raw provider: corpus text
	// rarely repeats and caching it would only grow the store.
	cachedEmbeddingProvider := memory.NewCachedEmbeddingProvider(embeddingProvider, cfg.Workflow.EmbedCacheTTL)

	// Retrieval index backed by pgvector
	caseIndex := repository.NewPgVectorCaseIndex(uowFactory)

	// 3.5 Infrastructure
	// NATS
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	}
	natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
	}

	// Redis
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
	}

	// WebSocket Hub
	wsLogger := logger.NewIsolatedLogger("logs/event_feed.log")
	wsHub := websocket.NewHub(rdb, wsLogger)
	go wsHub.Run()

	// 4. Services
	publisherService := service.NewPublisherService(cfg.App.EmbedCaseTopic, pubSub)
	consumerService := service.NewConsumerService(
		pubSub,
		cfg.App.EmbedCaseTopic,
		uowFactory,
		embeddingProvider, // Injected
		natsPub,
	)

	codingService := service.NewCodingService(
		llmProvider,
		cachedEmbeddingProvider,
		caseIndex,
		cfg.Workflow,
		natsPub,
	)
	corpusService := service.NewCorpusService(uowFactory, publisherService, natsPub)
	healthService := service.NewHealthService(db, uowFactory, embeddingProvider, llmProvider)

	// Event feed bridge: NATS -> Hub
	eventFeedService := service.NewEventFeedService(natsSub, wsHub, sysLogger)
	if natsSub != nil {
		go eventFeedService.Start()
	}

	eventFeedHandler := handler.NewEventFeedHandler(wsHub, wsLogger)

	// 5. Controllers
	// Note: We return the container with public fields for the server to register
	return &Container{
		CodingController: controller.NewCodingController(codingService),
		CorpusController: controller.NewCorpusController(corpusService),
		HealthController: controller.NewHealthController(healthService),

		ConsumerService: consumerService,

		EventFeedHandler: eventFeedHandler,
		WebSocketHub:     wsHub,
	}
}
