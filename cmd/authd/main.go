package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"streamflix/authd/internal/auth"
	"streamflix/authd/internal/catalog"
	"streamflix/authd/internal/config"
	"streamflix/authd/internal/httpapi"
	"streamflix/authd/internal/lockout"
	"streamflix/authd/internal/session"
	"streamflix/authd/internal/store"
	"streamflix/authd/internal/store/memory"
	"streamflix/authd/internal/store/postgres"
	"streamflix/authd/internal/store/sqlite"
	"streamflix/authd/internal/verification"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	st, closer, err := openStore(rootCtx, cfg)
	if err != nil {
		log.Fatalf("failed to init %s store: %v", cfg.Store, err)
	}
	defer closer()

	cat := catalog.NewService(st)
	if _, err := cat.Seed(rootCtx, catalog.DefaultItems); err != nil {
		log.Fatalf("failed to seed catalog: %v", err)
	}

	gateway := verification.NewLogGateway(verification.GatewayCredentials{
		AccountSID: cfg.SMS.AccountSID,
		AuthToken:  cfg.SMS.AuthToken,
		FromNumber: cfg.SMS.PhoneNumber,
	})
	svc := auth.NewService(
		st,
		lockout.NewGuard(st, lockout.Config{}),
		verification.NewManager(st, gateway, verification.Config{HashCost: cfg.CodeHashCost}),
		session.NewManager(st, 0),
	)

	if cfg.ReapIntervalMinutes > 0 {
		go session.RunReaper(rootCtx, st, time.Duration(cfg.ReapIntervalMinutes)*time.Minute)
	}

	srv := httpapi.NewServer(cfg, svc, cat)

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("authd listening on %s", cfg.ListenAddr())
		errCh <- httpServer.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Printf("shutdown requested")
	case err := <-errCh:
		log.Printf("server error: %v", err)
	}

	cancelRoot()

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	_ = httpServer.Shutdown(ctxShutdown)
}

func openStore(ctx context.Context, cfg config.Config) (store.Store, func(), error) {
	switch cfg.Store {
	case config.StorePostgres:
		pg, err := postgres.NewStore(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, nil, err
		}
		log.Printf("using postgres store")
		return pg, pg.Close, nil
	case config.StoreMemory:
		log.Printf("using memory store")
		return memory.NewStore(), func() {}, nil
	default:
		sq, err := sqlite.NewStore(cfg.DBPath)
		if err != nil {
			return nil, nil, err
		}
		log.Printf("using sqlite store at %s", cfg.DBPath)
		return sq, sq.Close, nil
	}
}
