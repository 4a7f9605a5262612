package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"accountd.io/internal/account"
	"accountd.io/internal/audit"
	"accountd.io/internal/auth"
	"accountd.io/internal/config"
	"accountd.io/internal/httpapi"
	"accountd.io/internal/obs"
	"accountd.io/internal/store/pg"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	if err := run(); err != nil {
		obs.Logger().Error("accountd exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load("")
	if err != nil {
		return err
	}
	obs.SetLogger(obs.NewLogger(os.Stdout, obs.ParseLevel(cfg.LogLevel)))
	log := obs.Logger()

	obs.Init()
	obs.InitBuildInfo(version, commit)

	var (
		principals auth.PrincipalStore
		roles      auth.RoleStore
		trail      audit.Store
		ready      httpapi.ReadyCheck
	)
	if cfg.PGDSN != "" {
		store, err := pg.Open(cfg.PGDSN)
		if err != nil {
			return err
		}
		defer store.Close()
		principals, roles, trail = store.Principals(), store.Roles(), store.Audit()
		ready = httpapi.ReadyCheck{DB: store.DB()}
	} else {
		log.Warn("no pg_dsn configured; using in-memory stores")
		memRoles := auth.NewMemoryRoles()
		principals, roles, trail = auth.NewMemoryStore(memRoles), memRoles, audit.NewMemoryStore()
	}

	startCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	err = auth.EnsureRoles(startCtx, roles)
	cancel()
	if err != nil {
		return err
	}

	recorder := audit.NewRecorder(trail, audit.WithTimeout(cfg.Audit.Timeout))
	hasher := auth.NewBcryptHasher(cfg.Auth.BcryptCost)
	codec := auth.NewTokenCodec(cfg.Auth.Secret,
		auth.WithIssuer(cfg.Auth.Issuer),
		auth.WithAccessTTL(cfg.Auth.AccessTTL),
		auth.WithRefreshTTL(cfg.Auth.RefreshTTL),
	)
	authSvc, err := auth.NewService(principals, roles, codec,
		auth.WithHasher(hasher),
		auth.WithAuditor(recorder),
		auth.WithDefaultRole(cfg.Auth.DefaultRole),
	)
	if err != nil {
		return err
	}

	api := httpapi.New(httpapi.Config{
		Version:        version,
		MaxBodyBytes:   cfg.HTTP.MaxBodyBytes,
		RatePerSec:     cfg.HTTP.RatePerSec,
		RateBurst:      cfg.HTTP.RateBurst,
		CORSOrigins:    cfg.HTTP.CORSOrigins,
		TrustedProxies: cfg.HTTP.TrustedProxies,
	}, httpapi.Deps{
		Auth:     authSvc,
		Accounts: account.NewService(principals, roles, hasher, recorder),
		Trail:    trail,
		Auditor:  recorder,
		Ready:    ready,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() {
		log.Info("http listening", slog.String("addr", srv.Addr), slog.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	health := httpapi.NewHealthServer(ready)
	var grpcSrv *grpc.Server
	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return err
		}
		grpcSrv = grpc.NewServer()
		health.Register(grpcSrv)
		go health.Watch(ctx, 10*time.Second)
		go func() {
			log.Info("grpc listening", slog.String("addr", cfg.GRPCAddr))
			if err := grpcSrv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				errCh <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		log.Error("server failed", slog.String("error", err.Error()))
	}
	log.Info("shutting down")

	health.Shutdown()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if grpcSrv != nil {
		grpcSrv.GracefulStop()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("stopped")
	return nil
}
