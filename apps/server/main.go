package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"holdem-live/apps/server/internal/auth"
	"holdem-live/apps/server/internal/broadcast"
	"holdem-live/apps/server/internal/config"
	"holdem-live/apps/server/internal/gateway"
	"holdem-live/apps/server/internal/httpapi"
	"holdem-live/apps/server/internal/lobby"
	"holdem-live/apps/server/internal/persist"
	"holdem-live/apps/server/internal/reconnect"
	"holdem-live/apps/server/internal/sweeper"
	"holdem-live/apps/server/internal/tokens"
	"holdem-live/holdem"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("[Server] invalid configuration", zap.Error(err))
	}
	logger, err := newLogger(cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("[Server] stopped with error", zap.Error(err))
	}
}

func newLogger(format string) (*zap.Logger, error) {
	if format == "console" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(cfg config.Config, logger *zap.Logger) error {
	gameCfg := holdem.DefaultConfig()
	gameCfg.SmallBlind = cfg.SmallBlind
	gameCfg.BigBlind = cfg.BigBlind
	gameCfg.MaxPlayers = cfg.MaxPlayers

	// Gameplay never depends on storage: a store that cannot be opened is
	// replaced by one that reports every call as unavailable.
	store, persistMode, err := persist.NewStoreFromConfig(cfg)
	if err != nil {
		logger.Warn("[Server] persistence unavailable, continuing without it",
			zap.String("mode", cfg.PersistMode), zap.Error(err))
		store, persistMode = persist.UnavailableStore{}, "unavailable"
	}
	defer store.Close()

	sqlitePath := ""
	if cfg.PersistMode == config.PersistModeSQLite {
		if sqlitePath, err = persist.SQLitePath(cfg.PersistSQLitePath); err != nil {
			return err
		}
	}
	accounts, authMode, err := auth.NewServiceFromConfig(cfg, sqlitePath)
	if err != nil {
		logger.Warn("[Server] account store unavailable, keeping accounts in memory", zap.Error(err))
		accounts, authMode = auth.NewManager(cfg.AuthSessionTTL), "memory"
	}
	defer accounts.Close()

	hub := broadcast.NewHub(logger.Named("hub"))
	lby := lobby.New(gameCfg, lobby.Options{Hub: hub, Logger: logger.Named("lobby")})
	gw := persist.NewGateway(store, lby, persist.GatewayOptions{
		GameConfig: gameCfg,
		Timeout:    cfg.PersistTimeout,
		Logger:     logger.Named("persist"),
	})
	lby.SetCommitHook(gw.PersistAsync)

	lookup := reconnect.Lookup{Games: lby, Store: gw}
	tokenSvc := tokens.NewService(lookup, tokens.Options{
		TTL:    cfg.TokenTTL,
		Secret: []byte(cfg.TokenSecret),
		Logger: logger.Named("tokens"),
	})
	coordinator := reconnect.NewCoordinator(tokenSvc, lby, gw, reconnect.Options{Logger: logger.Named("reconnect")})
	ws := gateway.New(lby, logger.Named("gateway"))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws/games/{gameId}", ws.HandleWebSocket)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	httpapi.New(httpapi.Deps{
		Lobby:         lby,
		Persist:       gw,
		Tokens:        tokenSvc,
		Reconnect:     coordinator,
		Games:         lookup,
		Accounts:      accounts,
		StartingChips: cfg.StartingChips,
		Logger:        logger.Named("http"),
	}).RegisterRoutes(mux)
	auth.NewHTTPHandler(accounts, logger.Named("auth")).RegisterRoutes(mux)

	sweep := sweeper.New(tokenSvc, lby, gw, sweeper.Options{
		Schedule:  cfg.SweepSchedule,
		Retention: cfg.RecordRetention,
		Logger:    logger.Named("sweeper"),
	})
	if err := sweep.Start(); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("[Server] listening",
			zap.String("addr", cfg.Addr),
			zap.String("persist_mode", persistMode),
			zap.String("auth_mode", authMode))
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			sweep.Stop()
			return err
		}
	case <-ctx.Done():
		logger.Info("[Server] shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("[Server] http shutdown", zap.Error(err))
	}
	ws.Shutdown()
	sweep.Stop()
	// let queued snapshots reach the store before it is closed
	gw.Wait()
	logger.Info("[Server] stopped")
	return nil
}
