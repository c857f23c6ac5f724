package bootstrap

import (
	"context"
	"log"

	"collab-notes-be/internal/config"
	"collab-notes-be/internal/controller"
	"collab-notes-be/internal/locking"
	"collab-notes-be/internal/pkg/logger"
	"collab-notes-be/internal/pkg/serverutils"
	"collab-notes-be/internal/repository/memory"
	"collab-notes-be/internal/repository/unitofwork"
	"collab-notes-be/internal/service"
	"collab-notes-be/internal/websocket"

	pktNats "collab-notes-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// eventTopic is the in-process bus topic carrying note and lock events
// to the websocket relay.
const eventTopic = "note-events"

type Container struct {
	// Controllers
	AuthController controller.IAuthController
	NoteController controller.INoteController
	WsController   controller.IWsController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService

	// Lock expiry sweep, nil when the redis lock backend handles expiry
	// itself.
	Sweeper *locking.Sweeper

	WebSocketHub *websocket.Hub
	Logger       logger.ILogger

	JwtMiddleware fiber.Handler
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	denylist := memory.NewTokenDenylist()

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 2.5 Infrastructure
	// NATS carries the master->replica sync stream. Masters publish,
	// replicas subscribe; single-node deployments skip it entirely.
	var natsPub *pktNats.Publisher
	var natsSub *pktNats.Subscriber
	if cfg.App.NatsURL != "" {
		var err error
		if cfg.App.ServerMode == config.ServerModeReplica {
			natsSub, err = pktNats.NewSubscriber(cfg.App.NatsURL)
			if err != nil {
				log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
			}
		} else {
			natsPub, err = pktNats.NewPublisher(cfg.App.NatsURL)
			if err != nil {
				log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
			}
		}
	}

	// Redis backs the cross-instance websocket relay and, optionally,
	// the lock store.
	var rdb *redis.Client
	if cfg.App.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.App.RedisURL)
		if err != nil {
			log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
			opt = &redis.Options{
				Addr: cfg.App.RedisURL,
			}
		}
		rdb = redis.NewClient(opt)
		if _, err := rdb.Ping(context.Background()).Result(); err != nil {
			log.Printf("[WARN] Failed to connect to Redis: %v", err)
		}
	}

	// WebSocket Hub
	wsHub := websocket.NewHub(rdb, sysLogger)
	go wsHub.Run()

	// 3. Services
	publisherService := service.NewPublisherService(pubSub, eventTopic)
	consumerService := service.NewConsumerService(pubSub, eventTopic, wsHub)

	authService := service.NewAuthService(
		uowFactory,
		denylist,
		publisherService,
		natsPub,
		cfg.Auth.JwtSecret,
		cfg.Auth.TokenExpiry,
	)

	// Lock manager: the memory backend needs its own expiry sweep, the
	// redis backend expires keys itself.
	var lockManager locking.Manager
	var memoryManager *locking.MemoryManager
	if cfg.Lock.Backend == config.LockBackendRedis && rdb != nil {
		lockManager = locking.NewRedisManager(rdb, cfg.Lock.Timeout)
		log.Printf("[INFO] Using Lock Backend: REDIS")
	} else {
		memoryManager = locking.NewMemoryManager(cfg.Lock.Timeout)
		lockManager = memoryManager
		log.Printf("[INFO] Using Lock Backend: MEMORY")
	}

	noteService := service.NewNoteService(uowFactory, lockManager, publisherService, natsPub)

	var sweeper *locking.Sweeper
	if memoryManager != nil {
		var err error
		sweeper, err = locking.NewSweeper(memoryManager, cfg.Lock.SweepInterval, noteService.HandleExpiredLocks)
		if err != nil {
			log.Fatalf("[FATAL] Failed to create lock sweeper: %v", err)
		}
	}

	// Replica: apply the master's stream (Worker)
	if natsSub != nil {
		syncService := service.NewSyncService(natsSub, uowFactory)
		if err := syncService.Start(); err != nil {
			log.Printf("[WARN] Failed to start sync consumer: %v", err)
		}
	}

	// 4. Controllers
	jwtMiddleware := serverutils.NewJwtMiddleware(cfg.Auth.JwtSecret, denylist)

	return &Container{
		AuthController: controller.NewAuthController(authService, jwtMiddleware),
		NoteController: controller.NewNoteController(noteService, jwtMiddleware),
		WsController:   controller.NewWsController(wsHub, cfg.Auth.JwtSecret, denylist),

		ConsumerService: consumerService,
		Sweeper:         sweeper,
		WebSocketHub:    wsHub,
		Logger:          sysLogger,
		JwtMiddleware:   jwtMiddleware,
	}
}
