package main

import (
	"log"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/blgvbtc/poolauth/adapters/events"
	"github.com/blgvbtc/poolauth/adapters/registry"
	"github.com/blgvbtc/poolauth/adapters/store"
	"github.com/blgvbtc/poolauth/adapters/tokenizer"
	"github.com/blgvbtc/poolauth/adapters/verifier"
	"github.com/blgvbtc/poolauth/core"
	"github.com/blgvbtc/poolauth/internal/config"
	"github.com/blgvbtc/poolauth/ports"
	"github.com/blgvbtc/poolauth/service"
	transport "github.com/blgvbtc/poolauth/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := watermill.NewStdLogger(false, false)

	var challengeStore ports.ChallengeStore
	var publisher message.Publisher

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to parse Redis URL: %v", err)
		}
		redisClient := redis.NewClient(opts)

		challengeStore = store.NewRedisStore(redisClient)

		publisher, err = redisstream.NewPublisher(
			redisstream.PublisherConfig{Client: redisClient},
			logger,
		)
		if err != nil {
			log.Fatalf("Failed to create Redis publisher: %v", err)
		}
	} else {
		log.Println("REDIS_URL not set, using in-memory challenge store")
		challengeStore = store.NewMemoryStore()
		publisher = gochannel.NewGoChannel(gochannel.Config{}, logger)
	}

	var minerRegistry ports.MinerRegistry
	if cfg.DatabaseURL != "" {
		db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		minerRegistry, err = registry.NewGormRegistry(db)
		if err != nil {
			log.Fatalf("Failed to initialize miner registry: %v", err)
		}
	} else {
		log.Println("DATABASE_URL not set, using in-memory miner registry")
		minerRegistry = registry.NewMemoryRegistry()
	}

	scope := core.Scope{Test: cfg.TestMode, SessionID: cfg.TestSessionID}
	if scope.Test {
		log.Printf("test mode active, session %s", scope.SessionID)
	}

	authService := service.NewAuthService(
		challengeStore,
		verifier.New(cfg.Network),
		minerRegistry,
		tokenizer.NewJWTTokenizer(cfg.SigningKey),
		events.NewWatermillPublisher(publisher),
		scope,
		cfg.VerifyURL,
	)

	router := transport.SetupRouter(authService, transport.PoolInfo{
		PoolFee:     cfg.PoolFee,
		StratumPort: cfg.StratumPort,
		Version:     "2.0.0",
	})

	if err := router.Run(cfg.ListenAddr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
