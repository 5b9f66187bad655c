package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/and161185/phishtrack/internal/alert"
	"github.com/and161185/phishtrack/internal/authn"
	"github.com/and161185/phishtrack/internal/config"
	"github.com/and161185/phishtrack/internal/jobs"
	"github.com/and161185/phishtrack/internal/limiter"
	"github.com/and161185/phishtrack/internal/migrate"
	"github.com/and161185/phishtrack/internal/mq"
	"github.com/and161185/phishtrack/internal/notify"
	"github.com/and161185/phishtrack/internal/repository/postgres"
	"github.com/and161185/phishtrack/internal/server/httpserver"
	"github.com/and161185/phishtrack/internal/service"
)

const shutdownTimeout = 5 * time.Second

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the tracking HTTP server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML config file", EnvVars: []string{"PT_CONFIG"}},
			&cli.StringFlag{Name: "addr", Usage: "listen address (overrides server.addr)"},
			&cli.StringFlag{Name: "dsn", Usage: "PostgreSQL DSN (overrides db.dsn)"},
			&cli.StringFlag{Name: "web-root", Usage: "directory of served files (overrides server.web_root)"},
			&cli.BoolFlag{Name: "migrate", Usage: "apply schema migrations before serving"},
			&cli.BoolFlag{Name: "debug", Usage: "development logging"},
		},
		Action: runServe,
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if c.IsSet("addr") {
		cfg.Server.Addr = c.String("addr")
	}
	if c.IsSet("dsn") {
		cfg.DB.DSN = c.String("dsn")
	}
	if c.IsSet("web-root") {
		cfg.Server.WebRoot = c.String("web-root")
	}
	return cfg, cfg.Validate()
}

func runServe(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	logger, err := newLogger(c.Bool("debug"))
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.Server.Addr),
	)

	ctx := c.Context
	if c.Bool("migrate") {
		if err := migrate.Up(ctx, cfg.DB.DSN, logger); err != nil {
			return err
		}
	}

	db, err := postgres.New(ctx, cfg.DB.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	messages := postgres.NewMessageRepo(db)
	visits := postgres.NewVisitRepo(db)
	pages := postgres.NewLandingPageRepo(db)

	sms := notify.NewSMS(notify.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		NoVerify: cfg.SMTP.NoVerify,
	}, logger)
	engine := alert.NewEngine(postgres.NewCampaignRepo(db), postgres.NewUserRepo(db), sms, cfg.Alerts.From, logger)
	if cfg.Alerts.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Alerts.RedisAddr})
		defer func() { _ = rdb.Close() }()
		engine.WithDeduper(alert.NewRedisDeduper(rdb, cfg.Alerts.DedupTTL))
	}

	dispatcher, closeDispatch, err := newDispatcher(ctx, cfg, engine, logger)
	if err != nil {
		return err
	}
	defer closeDispatch()

	deps := httpserver.Deps{
		Resolver:   service.NewResolver(messages, visits, cfg.Server.CookieName),
		Gatekeeper: service.NewGatekeeper(pages, cfg.Server.RequireID, cfg.Server.SecretID, logger),
		Tracker: service.NewTracker(service.TrackerDeps{
			Messages:    messages,
			Visits:      visits,
			Pages:       pages,
			Credentials: postgres.NewCredentialRepo(db),
		}, dispatcher, cfg.Server.CookieName, cfg.Server.SecretID, logger),
		Beacons: service.NewBeaconService(postgres.NewBeaconRepo(db), logger),
		Gate:    limiter.NewGate(cfg.Server.MaxConcurrent),
	}

	if cfg.Auth.UsersFile != "" {
		exe, err := os.Executable()
		if err != nil {
			return err
		}
		forked := authn.NewForked(exe, cfg.Auth.UsersFile, logger)
		if err := forked.Start(ctx); err != nil {
			return err
		}
		defer func() {
			if err := forked.Stop(shutdownTimeout); err != nil {
				logger.Warn("stop authd", zap.Error(err))
			}
		}()
		deps.Auth = forked
	}

	app, err := httpserver.New(deps, httpserver.Options{
		WebRoot:       cfg.Server.WebRoot,
		TrackingImage: cfg.Server.TrackingImage,
		JWTKey:        []byte(cfg.Auth.JWTKey),
		TokenTTL:      cfg.Auth.TokenTTL,
		Version:       version,
	}, logger)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	servers := []*http.Server{{
		Addr:              cfg.Server.Addr,
		Handler:           app.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}}
	if cfg.Server.MetricsAddr != "" {
		servers = append(servers, httpserver.NewMetricsServer(cfg.Server.MetricsAddr))
	}

	errCh := make(chan error, len(servers))
	for _, s := range servers {
		go func(s *http.Server) {
			logger.Info("listening", zap.String("addr", s.Addr))
			if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}(s)
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		logger.Error("server error", zap.Error(runErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for _, s := range servers {
		if err := s.Shutdown(shutdownCtx); err != nil {
			_ = s.Close()
		}
	}
	logger.Info("shutdown complete")
	return runErr
}

// newDispatcher selects the alert executor. The returned func releases it.
func newDispatcher(ctx context.Context, cfg *config.Config, engine *alert.Engine, logger *zap.Logger) (alert.Dispatcher, func(), error) {
	if cfg.Alerts.Queue == config.QueueAMQP {
		pub, err := mq.NewAlertPublisher(cfg.Alerts.AMQPURL, cfg.Alerts.QueueSize, logger)
		if err != nil {
			return nil, nil, err
		}
		cons, err := mq.NewConsumer(cfg.Alerts.AMQPURL, engine, logger)
		if err != nil {
			pub.Close()
			return nil, nil, err
		}
		go func() {
			if err := cons.Run(ctx); err != nil {
				logger.Error("alert consumer stopped", zap.Error(err))
			}
		}()
		return pub, func() {
			pub.Close()
			cons.Close()
		}, nil
	}

	m := jobs.NewManager(logger, cfg.Alerts.Workers, cfg.Alerts.QueueSize)
	m.Start()
	return alert.NewJobDispatcher(m, engine, logger), func() { m.Stop(shutdownTimeout) }, nil
}
