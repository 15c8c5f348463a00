package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/cwrk-planet/chat-service/config"
	"github.com/cwrk-planet/chat-service/internal/hub"
	"github.com/cwrk-planet/chat-service/internal/postgres"
	"github.com/cwrk-planet/chat-service/internal/repository"
	"github.com/cwrk-planet/chat-service/internal/security"
	"github.com/cwrk-planet/chat-service/internal/service"
	"github.com/cwrk-planet/chat-service/internal/store/memory"
	grpcx "github.com/cwrk-planet/chat-service/internal/transport/grpc"
	httpx "github.com/cwrk-planet/chat-service/internal/transport/http"
	"github.com/cwrk-planet/chat-service/internal/transport/ws"
	"github.com/cwrk-planet/chat-service/pkg/logger"
)

func main() {
	// --- config ---
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	level, err := logger.ParseLevel(cfg.Logging.Level)
	if err != nil {
		log.Fatalf("logging: %v", err)
	}
	logger.Init(logger.Config{
		Env:       logger.ParseEnv(cfg.Logging.Env),
		Service:   cfg.Logging.Service,
		Version:   cfg.Logging.Version,
		Backend:   logger.Backend(cfg.Logging.Backend),
		Level:     level,
		AddSource: cfg.Logging.AddSource,
		Debug:     cfg.Logging.Debug,
	})
	slog.Info("starting chat-service",
		"env", cfg.Logging.Env, "version", cfg.Logging.Version, "storage", cfg.Storage.Driver, "auth", cfg.Auth.Mode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- storage ---
	repo, closeStorage, err := openRepository(ctx, cfg)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}
	defer closeStorage()

	// --- auth ---
	auth, err := newAuthenticator(cfg.Auth)
	if err != nil {
		log.Fatalf("auth: %v", err)
	}

	// --- services ---
	h := hub.NewHub()
	chatSvc := service.NewChatService(repo, h)
	roomSvc := service.NewRoomService(repo, h)
	memberSvc := service.NewMemberService(repo, h)

	// --- WS ---
	wsServer := ws.NewServer(h, auth, chatSvc, memberSvc, ws.Options{
		PingEvery:      cfg.WS.PingEveryOr(15 * time.Second),
		ReadLimit:      cfg.WS.ReadLimit,
		SendQueue:      cfg.WS.SendQueue,
		AutoJoinRooms:  cfg.WS.AutoJoinRooms,
		AllowedOrigins: cfg.WS.AllowedOrigins,
	})

	// --- HTTP ---
	router := httpx.NewRouter(httpx.Deps{
		Handler:        httpx.NewHandler(chatSvc, roomSvc, memberSvc),
		Auth:           auth,
		Hub:            h,
		WS:             wsServer,
		RequestTimeout: cfg.HTTP.RequestTimeoutOr(30 * time.Second),
		CORS: httpx.CORSConfig{
			AllowedOrigins: cfg.CORS.AllowedOrigins,
			MaxAge:         cfg.CORS.MaxAge,
		},
	})
	httpSrv := &http.Server{
		Addr:        cfg.HTTP.Addr,
		Handler:     router,
		ReadTimeout: cfg.HTTP.ReadTimeoutOr(10 * time.Second),
		IdleTimeout: cfg.HTTP.IdleTimeoutOr(60 * time.Second),
	}

	// --- gRPC ---
	grpcServer := grpcx.NewGRPCServer(grpcx.NewServer(chatSvc, roomSvc), auth, cfg.GRPC.TimeoutOr(10*time.Second))

	// --- run both servers ---
	errCh := make(chan error, 2)

	go func() {
		slog.Info("http listen", "addr", cfg.HTTP.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	go func() {
		lis, err := net.Listen("tcp", cfg.GRPC.Addr)
		if err != nil {
			errCh <- err
			return
		}
		slog.Info("grpc listen", "addr", cfg.GRPC.Addr)
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- err
		}
	}()

	// --- graceful shutdown ---
	select {
	case <-ctx.Done():
		slog.Info("shutdown signal")
	case err := <-errCh:
		slog.Error("server error", "err", err)
	}

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := wsServer.Shutdown(ctxShutdown); err != nil {
		slog.Warn("ws shutdown", "err", err)
	}
	grpcServer.GracefulStop()
	if err := httpSrv.Shutdown(ctxShutdown); err != nil {
		slog.Warn("http shutdown", "err", err)
	}
	slog.Info("stopped", "hub", h.Stats())
}

func openRepository(ctx context.Context, cfg *config.Config) (*repository.Repository, func(), error) {
	if cfg.Storage.Driver == config.StorageMemory {
		db := memory.NewDB()
		slog.Warn("using in-memory storage, data is lost on restart")
		return repository.New(db, memory.NewMessageStore(db), memory.NewRoomStore(db)), func() {}, nil
	}

	pool, err := postgres.NewPool(ctx, postgres.Config{
		DSN:             cfg.Postgres.DSN,
		MaxConns:        cfg.Postgres.MaxConns,
		MinConns:        cfg.Postgres.MinConns,
		MaxConnLifetime: cfg.Postgres.MaxConnLifetimeOr(time.Hour),
		MaxConnIdleTime: cfg.Postgres.MaxConnIdleTimeOr(5 * time.Minute),
		ApplicationName: cfg.Logging.Service,
		ConnectAttempts: cfg.Postgres.ConnectAttempts,
	})
	if err != nil {
		return nil, nil, err
	}
	if cfg.Storage.Migrate {
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
	}
	repo := repository.New(postgres.NewTxManager(pool), postgres.NewMessageStore(pool), postgres.NewRoomStore(pool))
	return repo, pool.Close, nil
}

func newAuthenticator(cfg config.Auth) (security.Authenticator, error) {
	if cfg.Mode == config.AuthHeader {
		slog.Warn("header authentication enabled, identity is not verified")
		return security.HeaderAuthenticator{}, nil
	}
	pub, err := security.LoadRSAPublicKeyFromPEM(cfg.PublicKeyPath)
	if err != nil {
		return nil, err
	}
	return security.NewJWTVerifier(pub, cfg.Issuer, cfg.Audience, cfg.ClockSkewOr(30*time.Second)), nil
}
