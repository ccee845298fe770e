package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	firebase "firebase.google.com/go/v4"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/katatrina/auction-engine/api"
	"github.com/katatrina/auction-engine/internal/auction"
	"github.com/katatrina/auction-engine/internal/db/memstore"
	db "github.com/katatrina/auction-engine/internal/db/sqlc"
	"github.com/katatrina/auction-engine/internal/event"
	"github.com/katatrina/auction-engine/internal/notification"
	"github.com/katatrina/auction-engine/internal/registry"
	"github.com/katatrina/auction-engine/internal/util"
	"github.com/katatrina/auction-engine/internal/worker"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/option"
)

const (
	hubBufferSize   = 64
	shutdownTimeout = 10 * time.Second
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Load configurations
	config, err := util.LoadConfig("./app.env")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config file 😣")
	}
	setupLogger(config)

	log.Info().Str("store_driver", config.StoreDriver).Msg("configurations loaded successfully ✅")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore := openStore(ctx, config)
	defer closeStore()

	hub := event.NewHub(hubBufferSize)
	var sender event.EventSender = hub

	var redisClient *redis.Client
	if config.RedisRelayEnabled || config.PushMirrorEnabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     config.RedisServerAddress,
			Password: "", // no password set
			DB:       0,  // use default DB
		})
		if err = redisClient.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis 😣")
		}
		defer redisClient.Close()
		log.Info().Msg("connected to redis ✅")
	}

	var relay *event.RedisRelay
	if config.RedisRelayEnabled {
		relay = event.NewRedisRelay(hub, redisClient)
		sender = relay
	}

	var distributor worker.TaskDistributor
	var processor *worker.RedisTaskProcessor
	if config.PushMirrorEnabled {
		redisOpt := asynq.RedisClientOpt{
			Addr: config.RedisServerAddress,
		}
		distributor = worker.NewTaskDistributor(redisOpt)
		defer distributor.Close()

		firebaseApp, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(config.FirebaseCredentialsFile))
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize firebase app 😣")
		}

		processor, err = worker.NewRedisTaskProcessor(ctx, redisOpt, firebaseApp)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create task processor 😣")
		}
	}

	bidderRegistry := registry.New(store)
	notificationCenter := notification.NewCenter(store, sender, distributor)

	engine, err := auction.NewEngine(store, bidderRegistry, notificationCenter, sender, auction.ConfigFromEnv(config))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create auction engine 😣")
	}

	server, err := api.NewServer(&config, store, engine, notificationCenter, hub)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create HTTP server 😣")
	}

	waitGroup, ctx := errgroup.WithContext(ctx)

	runAuctionEngine(ctx, waitGroup, engine)
	runHTTPServer(ctx, waitGroup, server.HTTPServer(config.HTTPServerAddress))
	if relay != nil {
		runEventRelay(ctx, waitGroup, relay)
	}
	if processor != nil {
		runTaskProcessor(ctx, waitGroup, processor)
	}

	if err = waitGroup.Wait(); err != nil {
		log.Fatal().Err(err).Msg("error from wait group 😣")
	}
	log.Info().Msg("shutdown complete 👋")
}

func setupLogger(config util.Config) {
	level, err := zerolog.ParseLevel(strings.ToLower(config.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if config.LogFormat == "json" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}

func openStore(ctx context.Context, config util.Config) (db.Store, func()) {
	if config.StoreDriver == util.StoreDriverMemory {
		log.Warn().Msg("using in-memory store, data will be lost on restart")
		return memstore.New(), func() {}
	}

	// Create connection pool
	connPool, err := pgxpool.New(ctx, config.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to validate db connection string 😣")
	}

	if err = connPool.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to connect to db 😣")
	}
	log.Info().Msg("connected to db ✅")

	return db.NewStore(connPool), connPool.Close
}

func runAuctionEngine(ctx context.Context, waitGroup *errgroup.Group, engine *auction.Engine) {
	waitGroup.Go(func() error {
		if err := engine.Start(ctx); err != nil {
			return err
		}
		log.Info().Msg("auction engine is running ✅")

		<-ctx.Done()
		log.Info().Msg("graceful shutdown auction engine")
		return engine.Shutdown()
	})
}

func runHTTPServer(ctx context.Context, waitGroup *errgroup.Group, httpServer *http.Server) {
	waitGroup.Go(func() error {
		log.Info().Str("address", httpServer.Addr).Msg("HTTP server is listening ✅")
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server failed to serve 😣")
			return err
		}
		return nil
	})

	waitGroup.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("graceful shutdown HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("failed to shutdown HTTP server")
			return err
		}
		return nil
	})
}

func runEventRelay(ctx context.Context, waitGroup *errgroup.Group, relay *event.RedisRelay) {
	waitGroup.Go(func() error {
		log.Info().Msg("redis event relay is running ✅")
		return relay.Run(ctx)
	})
}

func runTaskProcessor(ctx context.Context, waitGroup *errgroup.Group, processor *worker.RedisTaskProcessor) {
	waitGroup.Go(func() error {
		if err := processor.Start(); err != nil {
			log.Error().Err(err).Msg("failed to start task processor 😣")
			return err
		}
		log.Info().Msg("task processor is running ✅")

		<-ctx.Done()
		log.Info().Msg("graceful shutdown task processor")
		processor.Shutdown()
		return nil
	})
}
