package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/thereayou/concord/internal/cache"
	"github.com/thereayou/concord/internal/config"
	"github.com/thereayou/concord/internal/database"
	"github.com/thereayou/concord/internal/handlers"
	"github.com/thereayou/concord/internal/services"
	ws "github.com/thereayou/concord/internal/websocket"
	"github.com/thereayou/concord/pkg/auth"
	"github.com/thereayou/concord/pkg/log"
	"github.com/thereayou/concord/pkg/response"
)

type Server struct {
	cfg        *config.Config
	Router     *gin.Engine
	DB         *database.Database
	Redis      *redis.Client
	Hub        *ws.Hub
	JWTManager *auth.JWTManager
	httpServer *http.Server
}

// NewServer connects the stores named by cfg and wires the application on
// top of them.
func NewServer(cfg *config.Config) (*Server, error) {
	logger := log.L()

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("database connect failed: %w", err)
	}
	logger.Info().Str("driver", cfg.Database.Driver).Msg("database connected")

	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(redisOpts)

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		db.Close()
		return nil, fmt.Errorf("redis connect failed: %w", err)
	}
	logger.Info().Msg("redis connected")

	return newServer(cfg, db, rdb), nil
}

func newServer(cfg *config.Config, db *database.Database, rdb *redis.Client) *Server {
	if log.ParseLevel(cfg.Log.Level) > zerolog.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	jwtMgr := auth.NewJWTManager(cfg.JWT.Secret, cfg.JWT.TTL)
	authService := services.NewAuthService(db, jwtMgr, cache.NewTokenBlacklist(rdb))

	hub := ws.NewHub(cfg.Realtime.SequenceGapTimeout)
	roomService := services.NewRoomService(db, db, hub, cfg.Realtime.RequireMembership)
	messageService := services.NewMessageService(
		db, db,
		handlers.NewRoomBroadcaster(hub),
		cfg.Realtime.MessageMaxLength,
		cfg.Realtime.RequireMembership,
	)

	settings := ws.Settings{
		SendBuffer:      cfg.Realtime.SendBuffer,
		MaxFrameSize:    cfg.Realtime.MaxFrameSize,
		PongWait:        cfg.Realtime.PongWait,
		WriteWait:       cfg.Realtime.WriteWait,
		EventsPerSecond: cfg.Realtime.EventsPerSecond,
		EventBurst:      cfg.Realtime.EventBurst,
	}

	h := &Handlers{
		Auth:  handlers.NewAuthHandler(authService),
		Rooms: handlers.NewRoomHandler(roomService),
		WebSocket: handlers.NewWebSocketHandler(
			hub,
			handlers.NewMessageHandler(hub, roomService, messageService),
			ws.NewOriginPolicy(cfg.Server.AllowedOrigins),
			settings,
		),
	}
	limiter := cache.NewRateLimiter(rdb, "ratelimit:api:", cfg.RateLimit.Requests, cfg.RateLimit.Window)

	router := gin.New()
	router.Use(gin.CustomRecovery(recoverPanic))
	router.Use(log.GinMiddleware(log.L()))
	APIEndpoints(router, h, authService, limiter, hub)

	return &Server{
		cfg:        cfg,
		Router:     router,
		DB:         db,
		Redis:      rdb,
		Hub:        hub,
		JWTManager: jwtMgr,
		httpServer: &http.Server{
			Addr:         cfg.Server.Addr(),
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// recoverPanic answers a panicking request with the error envelope.
func recoverPanic(c *gin.Context, recovered interface{}) {
	log.Ctx(c.Request.Context()).Error().Interface("panic", recovered).Msg("handler panicked")
	response.InternalError(c, "internal server error")
	c.Abort()
}

// Run serves until ctx is cancelled or the listener fails, then shuts down.
func (s *Server) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		lg := log.L()
		lg.Info().Str("addr", s.httpServer.Addr).Msg("server starting")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		return s.Shutdown()
	})

	return g.Wait()
}

// Shutdown stops accepting requests, closes every realtime connection and
// releases the stores, waiting at most the configured shutdown timeout.
func (s *Server) Shutdown() error {
	logger := log.L()
	logger.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := s.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := s.Hub.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("hub shutdown: %w", err))
	}
	if err := s.Redis.Close(); err != nil {
		errs = append(errs, fmt.Errorf("redis close: %w", err))
	}
	if err := s.DB.Close(); err != nil {
		errs = append(errs, fmt.Errorf("database close: %w", err))
	}
	return errors.Join(errs...)
}
