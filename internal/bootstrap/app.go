package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	appsvc "gopherai-workspace/internal/app"
	"gopherai-workspace/internal/backend"
	"gopherai-workspace/internal/cache"
	"gopherai-workspace/internal/config"
	"gopherai-workspace/internal/history"
	"gopherai-workspace/internal/llm"
	"gopherai-workspace/internal/metrics"
	"gopherai-workspace/internal/model"
	"gopherai-workspace/internal/notify"
	"gopherai-workspace/internal/pkg/httpcall"
	mysqlClient "gopherai-workspace/internal/platform/mysql"
	rabbitmqClient "gopherai-workspace/internal/platform/rabbitmq"
	redisClient "gopherai-workspace/internal/platform/redis"
	"gopherai-workspace/internal/repository"
	"gopherai-workspace/internal/session"
	"gopherai-workspace/internal/worker"
)

type App struct {
	Config       *config.Config
	Logger       zerolog.Logger
	State        *State
	MQConn       *amqp.Connection
	Store        *session.Store
	Service      *appsvc.WorkspaceService
	PromptWorker *worker.PromptPersistWorker

	StartedAt time.Time
}

// State holds the session-state persistence backend selected by
// state.driver, plus any connections opened for it.
type State struct {
	KV    session.KV
	MySQL *gorm.DB
	Redis *redis.Client
	ping  func(ctx context.Context) error
}

// OpenState connects the configured state driver. Redis is also opened when
// only the prompt history cache needs it.
func OpenState(ctx context.Context, cfg *config.Config) (*State, error) {
	st := &State{}

	if cfg.NeedsRedis() {
		client, err := redisClient.New(ctx, redisClient.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, err
		}
		st.Redis = client
	}
	if cfg.NeedsMySQL() {
		db, err := mysqlClient.New(ctx, cfg.MySQLDSN())
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		st.MySQL = db
		if err := db.AutoMigrate(&model.StateEntry{}); err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("auto migrate tables failed: %w", err)
		}
	}

	switch cfg.State.Driver {
	case config.StateDriverMemory:
		st.KV = session.NewMemoryKV()
		st.ping = func(context.Context) error { return nil }
	case config.StateDriverFile:
		kv, err := session.NewFileKV(cfg.State.FilePath)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		st.KV = kv
		st.ping = func(context.Context) error { return nil }
	case config.StateDriverRedis:
		stateCache := cache.NewStateCache(st.Redis, cfg.State.KeyPrefix)
		st.KV = stateCache
		st.ping = stateCache.Ping
	case config.StateDriverMySQL:
		st.KV = repository.NewStateRepository(st.MySQL, cfg.State.KeyPrefix)
		db := st.MySQL
		st.ping = func(ctx context.Context) error { return mysqlClient.Ping(ctx, db) }
	default:
		_ = st.Close()
		return nil, fmt.Errorf("unknown state driver %q", cfg.State.Driver)
	}
	return st, nil
}

func (s *State) Ping(ctx context.Context) error {
	if s.ping == nil {
		return errors.New("state backend not initialised")
	}
	return s.ping(ctx)
}

func (s *State) Close() error {
	var closeErr error
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if s.MySQL != nil {
		sqlDB, err := s.MySQL.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	return closeErr
}

func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	m := metrics.Global()

	state, err := OpenState(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a := &App{
		Config:    cfg,
		Logger:    logger,
		State:     state,
		StartedAt: time.Now(),
	}

	backendClient := backend.New(backend.Config{
		BaseURL: cfg.Backend.BaseURL,
		Caller:  httpcall.New(cfg.Backend.Timeout(), cfg.Backend.MaxRetries, cfg.Backend.BackoffBase()),
	})
	llmClient := llm.New(llm.Config{
		BaseURL: cfg.LLM.BaseURL,
		Caller:  httpcall.New(cfg.LLM.Timeout(), cfg.LLM.MaxRetries, cfg.LLM.BackoffBase()),
	})

	store, err := session.Open(ctx, session.Config{
		KV:      state.KV,
		Live:    session.LiveListing{Lister: llmClient},
		Logger:  logger,
		Metrics: m,
	})
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("open session store failed: %w", err)
	}
	a.Store = store

	var promptCache *cache.PromptCache
	historyCfg := history.Config{Prompts: backendClient, Logger: logger, Metrics: m}
	if cfg.Redis.HistoryCache && state.Redis != nil {
		promptCache = cache.NewPromptCache(
			state.Redis,
			time.Duration(cfg.Redis.HistoryTTLSeconds)*time.Second,
			time.Duration(cfg.Redis.HistoryDirtyTTLSeconds)*time.Second,
		)
		historyCfg.Cache = promptCache
	}

	var publisher appsvc.PromptPublisher = appsvc.DirectPromptPublisher{Saver: backendClient}
	if cfg.RabbitMQ.Enabled {
		mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL, cfg.App.Name, cfg.RabbitMQ.PromptPersistQueue)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.MQConn = mqConn

		var invalidator worker.CacheInvalidator
		if promptCache != nil {
			invalidator = promptCache
		}
		promptWorker := worker.NewPromptPersistWorker(mqConn, backendClient, invalidator, cfg.RabbitMQ.PromptPersistQueue, logger, m)
		if err := promptWorker.Start(ctx); err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("start prompt worker failed: %w", err)
		}
		a.PromptWorker = promptWorker
		publisher = rabbitmqClient.NewPromptPublisher(mqConn, cfg.RabbitMQ.PromptPersistQueue)
	}

	svcCfg := appsvc.ServiceConfig{
		Backend:     backendClient,
		LLM:         llmClient,
		History:     history.New(historyCfg),
		Store:       store,
		Inbox:       notify.NewInbox(notify.DefaultCapacity),
		Publisher:   publisher,
		ModelName:   cfg.LLM.ModelName,
		Temperature: cfg.LLM.Temperature,
		TokenUsage:  cfg.LLM.TokenUsage,
		Logger:      logger,
		Metrics:     m,
	}
	if promptCache != nil {
		svcCfg.PromptCache = promptCache
	}
	a.Service = appsvc.NewWorkspaceService(svcCfg)
	return a, nil
}

// HealthChecks lists the dependencies reported by the health endpoint.
func (a *App) HealthChecks() map[string]func(ctx context.Context) error {
	checks := map[string]func(ctx context.Context) error{}
	if a.State != nil {
		checks["state"] = a.State.Ping
		if a.State.Redis != nil {
			client := a.State.Redis
			checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx, client) }
		}
	}
	if a.MQConn != nil {
		conn := a.MQConn
		checks["rabbitmq"] = func(context.Context) error {
			if conn.IsClosed() {
				return errors.New("connection closed")
			}
			return nil
		}
	}
	return checks
}

func (a *App) Close() error {
	var closeErr error
	if a.PromptWorker != nil {
		a.PromptWorker.Close()
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.State != nil {
		if err := a.State.Close(); err != nil {
			closeErr = err
		}
	}
	return closeErr
}
