package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Y3rnur/sitesrv/backend"
	"github.com/Y3rnur/sitesrv/backend/site"
	"github.com/Y3rnur/sitesrv/backend/store"
	"github.com/Y3rnur/sitesrv/backend/ws"
)

const (
	shutdownTimeout = 10 * time.Second
	recordQueueSize = 1024
)

func main() {
	cfg, envLoaded := backend.LoadConfig()
	log, lifecycle := backend.NewLoggers(cfg.LogLevel, backend.Stdout())
	defer log.Sync()

	if envLoaded {
		log.Debug("loaded .env")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log, lifecycle); err != nil {
		log.Error("server failed", zap.Error(err))
		log.Sync()
		os.Exit(1)
	}
}

// run serves until ctx is done. Start and stop lines go to lifecycle,
// everything else to log.
func run(ctx context.Context, cfg backend.Config, log, lifecycle *zap.Logger) error {
	var (
		recorders []backend.Recorder
		pool      *pgxpool.Pool
		hub       *ws.Hub
	)

	if cfg.DatabaseURL != "" {
		p, err := store.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return errors.Wrap(err, "db pool")
		}
		defer p.Close()
		if err := store.EnsureSchema(ctx, p); err != nil {
			return err
		}
		pool = p
		recorders = append(recorders, store.NewRecorder(p, log))
	}

	if cfg.AdminAddr != "" {
		var rdb *redis.Client
		if cfg.RedisURL != "" {
			opts, err := redis.ParseURL(cfg.RedisURL)
			if err != nil {
				return errors.Wrap(err, "parse redis url")
			}
			rdb = redis.NewClient(opts)
			defer rdb.Close()
		}
		hub = ws.NewHub(rdb, log)
		defer hub.Close()
		recorders = append(recorders, hub)
	}

	// Deferred after the sinks, so it drains before they close.
	queue := backend.NewRecordQueue(log, recordQueueSize, recorders...)
	defer queue.Close()

	ln, err := net.Listen("tcp", cfg.SiteAddr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", cfg.SiteAddr)
	}
	// Shutdown closes ln too; closing twice is harmless.
	defer ln.Close()

	dispatcher := site.NewDispatcher(os.DirFS(cfg.SiteRoot), log)
	srv := &http.Server{
		Handler:           backend.LoggingMiddleware(log, dispatcher, queue),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 2)
	go func() { errc <- srv.Serve(ln) }()

	var admin *http.Server
	if cfg.AdminAddr != "" {
		adminLn, err := net.Listen("tcp", cfg.AdminAddr)
		if err != nil {
			_ = srv.Close()
			return errors.Wrapf(err, "listen on %s", cfg.AdminAddr)
		}
		defer adminLn.Close()
		admin = &http.Server{
			Handler:           backend.NewAdminMux(log, backend.Auth{Secret: cfg.AdminJWTSecret}, pool, hub),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() { errc <- admin.Serve(adminLn) }()
		log.Info("admin API listening", zap.String("addr", adminLn.Addr().String()))
	}

	lifecycle.Sugar().Infof("Server started at http://localhost:%d", ln.Addr().(*net.TCPAddr).Port)
	lifecycle.Info("Press Ctrl+C to stop the server")

	select {
	case <-ctx.Done():
		lifecycle.Info("Stopping server ...")
	case err := <-errc:
		_ = srv.Close()
		if admin != nil {
			_ = admin.Close()
		}
		return errors.Wrap(err, "serve")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if admin != nil {
		if err := admin.Shutdown(shutdownCtx); err != nil {
			log.Warn("admin shutdown", zap.Error(err))
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	lifecycle.Info("Server stopped successfully")
	return nil
}
