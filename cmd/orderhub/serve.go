package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"orderhub/pkg/admin"
	"orderhub/pkg/config"
	"orderhub/pkg/logger"
	"orderhub/pkg/metrics"
	"orderhub/pkg/order"
	"orderhub/pkg/order/memory"
	pg "orderhub/pkg/order/postgres"
	"orderhub/pkg/order/redis"
	"orderhub/pkg/otel"
	"orderhub/pkg/server"
)

type serveOptions struct {
	configPath  string
	addr        string
	adminAddr   string
	maxConns    int
	idleTimeout time.Duration
	strictItems bool
	logLevel    string
}

func serveCmd() *cobra.Command {
	var opts serveOptions
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Accept order submissions over TCP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			applyFlags(cmd, opts, &cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.configPath, "config", "c", "", "path to a YAML config file")
	f.StringVar(&opts.addr, "addr", "", "order intake listen address (default :9999)")
	f.StringVar(&opts.adminAddr, "admin-addr", "", "admin HTTP listen address, empty value in config disables it (default :9090)")
	f.IntVar(&opts.maxConns, "max-conns", 0, "maximum concurrently served connections, 0 for unlimited")
	f.DurationVar(&opts.idleTimeout, "idle-timeout", 0, "close connections idle for this long, 0 to disable")
	f.BoolVar(&opts.strictItems, "strict-items", false, "reject item types other than 1, 2 and 3")
	f.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn or error")
	return cmd
}

// applyFlags copies explicitly set flags over cfg.
func applyFlags(cmd *cobra.Command, opts serveOptions, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("addr") {
		cfg.Addr = opts.addr
	}
	if f.Changed("admin-addr") {
		cfg.AdminAddr = opts.adminAddr
	}
	if f.Changed("max-conns") {
		cfg.MaxConns = opts.maxConns
	}
	if f.Changed("idle-timeout") {
		cfg.IdleTimeout = opts.idleTimeout
	}
	if f.Changed("strict-items") {
		cfg.StrictItems = opts.strictItems
	}
	if f.Changed("log-level") {
		cfg.LogLevel = opts.logLevel
	}
}

func runServe(ctx context.Context, cfg config.Config) error {
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	log := logger.New(os.Stdout, level, "orderhub", otel.GetTraceID)
	defer log.Sync()

	tp, shutdown, err := otel.InitTracing(log, otel.Config{ServiceName: "orderhub", Host: cfg.OTELHost, Probability: cfg.TraceProbability})
	if err != nil {
		return err
	}
	defer shutdown(context.Background())

	publisher, closePublishers, err := openPublishers(ctx, log, cfg)
	if err != nil {
		return err
	}
	defer closePublishers()

	reg := memory.New(memory.WithStrictItems(cfg.StrictItems))
	srv := &server.Server{
		Registry:    reg,
		Publisher:   publisher,
		Logger:      log,
		Metrics:     metrics.New(prometheus.DefaultRegisterer),
		Tracer:      tp.Tracer("orderhub"),
		MaxConns:    cfg.MaxConns,
		IdleTimeout: cfg.IdleTimeout,

		PublishQueue:   cfg.PublishQueue,
		PublishTimeout: cfg.PublishTimeout,
	}

	// Binding is the only fatal failure of the intake listener.
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		log.Error(ctx, "bind order listener", "addr", cfg.Addr, "error", err)
		return fmt.Errorf("listen on %s: %w", cfg.Addr, err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.Serve(ctx, ln)
	})

	if cfg.AdminAddr != "" {
		httpSrv := &http.Server{
			Addr:              cfg.AdminAddr,
			Handler:           admin.NewRouter(reg, log, prometheus.DefaultGatherer),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			serveAdmin(ctx, log, httpSrv)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		log.Error(context.Background(), "server stopped", "error", err)
		return err
	}
	return nil
}

// serveAdmin runs the admin HTTP server until ctx ends. Bind and serve
// failures are logged and leave order intake running.
func serveAdmin(ctx context.Context, log *logger.Logger, httpSrv *http.Server) {
	ln, err := net.Listen("tcp", httpSrv.Addr)
	if err != nil {
		log.Error(ctx, "admin server disabled", "addr", httpSrv.Addr, "error", err)
		return
	}
	log.Info(ctx, "admin listening", "addr", ln.Addr().String())

	errc := make(chan error, 1)
	go func() { errc <- httpSrv.Serve(ln) }()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "admin server stopped", "error", err)
		}
		return
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(sctx); err != nil {
		log.Warn(ctx, "admin shutdown", "error", err)
	}
	<-errc
}

// openPublishers connects the optional downstream sinks for accepted orders.
func openPublishers(ctx context.Context, log *logger.Logger, cfg config.Config) (order.Publisher, func(), error) {
	var (
		pubs    []order.Publisher
		closers []func()
	)
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("db connect: %w", err)
		}
		closers = append(closers, func() { db.Close() })
		journal := pg.New(db)
		if err := journal.Init(ctx); err != nil {
			closeAll()
			return nil, nil, err
		}
		pubs = append(pubs, journal)
		log.Info(ctx, "order journal enabled")
	}

	if cfg.RedisAddr != "" {
		client := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		closers = append(closers, func() { client.Close() })
		if err := client.Ping(ctx).Err(); err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
		}
		pubs = append(pubs, redis.New(client, cfg.RedisChannel))
		log.Info(ctx, "order events enabled", "redis", cfg.RedisAddr, "channel", cfg.RedisChannel)
	}

	if len(pubs) == 0 {
		return nil, closeAll, nil
	}
	return order.Publishers(pubs...), closeAll, nil
}
