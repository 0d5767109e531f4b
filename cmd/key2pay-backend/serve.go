package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"key2pay-backend/internal/config"
	"key2pay-backend/internal/gateway"
	"key2pay-backend/internal/infrastructure/key2pay"
	"key2pay-backend/internal/infrastructure/repo"
	"key2pay-backend/internal/logging"
	"key2pay-backend/internal/server"
	"key2pay-backend/internal/usecase"
)

type serveFlags struct {
	env          string
	port         int
	logJSON      bool
	debug        bool
	dbDriver     string
	databaseURL  string
	publicURL    string
	gatewaysFile string
}

func serveCmd() *cobra.Command {
	var f serveFlags
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Start the webhook, return page and admin API server.

Flags override KEY2PAY_* environment variables.

Examples:
  key2pay-backend serve --port 8080
  key2pay-backend serve --db-driver postgres --database-url postgres://localhost/key2pay`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			applyServeFlags(cmd, &cfg, f)
			return runServe(cfg)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.env, "env", "", "environment name")
	fl.IntVar(&f.port, "port", 0, "listen port")
	fl.BoolVar(&f.logJSON, "log-json", false, "JSON log output")
	fl.BoolVar(&f.debug, "debug", false, "debug logging, including redacted processor payloads")
	fl.StringVar(&f.dbDriver, "db-driver", "", "order store: memory, postgres or pgx")
	fl.StringVar(&f.databaseURL, "database-url", "", "PostgreSQL connection string")
	fl.StringVar(&f.publicURL, "public-url", "", "public base URL used in processor callbacks")
	fl.StringVar(&f.gatewaysFile, "gateways", "", "gateway instances YAML file")
	return cmd
}

// applyServeFlags copies the flags the user set over the environment values.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config, f serveFlags) {
	fl := cmd.Flags()
	if fl.Changed("env") {
		cfg.Env = f.env
	}
	if fl.Changed("port") {
		cfg.Port = f.port
	}
	if fl.Changed("log-json") {
		cfg.LogJSON = f.logJSON
	}
	if fl.Changed("debug") {
		cfg.Debug = f.debug
	}
	if fl.Changed("db-driver") {
		cfg.DBDriver = f.dbDriver
	}
	if fl.Changed("database-url") {
		cfg.DatabaseURL = f.databaseURL
	}
	if fl.Changed("public-url") {
		cfg.PublicBaseURL = f.publicURL
	}
	if fl.Changed("gateways") {
		cfg.GatewaysFile = f.gatewaysFile
	}
}

type orderStore interface {
	usecase.OrderRepo
	Close() error
}

type memoryStore struct {
	*repo.MemoryOrderRepo
}

func (memoryStore) Close() error { return nil }

func openStore(cfg config.Config) (orderStore, error) {
	if cfg.DBDriver == "memory" {
		return memoryStore{repo.NewMemoryOrderRepo()}, nil
	}
	pg, err := repo.NewPostgresRepo(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	return pg, nil
}

// buildServer wires configuration into services and the HTTP handler.
func buildServer(cfg config.Config, store usecase.OrderRepo, log *zap.Logger) (*server.Server, error) {
	instances, err := cfg.Instances()
	if err != nil {
		return nil, err
	}
	dir := gateway.NewDirectory(instances)
	for _, in := range dir.Enabled() {
		if !in.Settings.Configured() {
			log.Warn("gateway enabled without merchant credentials", zap.String("gateway", in.ID))
		}
	}

	payments := &usecase.PaymentService{
		Repo:          store,
		Gateways:      dir,
		Processor:     key2pay.New(cfg.HTTPTimeout, log.Named("key2pay")),
		PublicBaseURL: cfg.PublicBaseURL,
		ShopName:      cfg.ShopName,
		Log:           log.Named("payment"),
	}
	reconcile := &usecase.ReconcileService{
		Repo:       store,
		Gateways:   dir,
		Classifier: usecase.Classifier{Unknown: usecase.UnknownCodePolicy(cfg.UnknownCodePolicy)},
		Log:        log.Named("reconcile"),
	}
	return server.New(server.Deps{
		Orders:    &usecase.OrderService{Repo: store},
		Payments:  payments,
		Reconcile: reconcile,
		Auth:      &usecase.AdminAuthService{JWTSecret: cfg.JWTSecret},
		Gateways:  dir,
		Log:       log.Named("http"),
	}), nil
}

func runServe(cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	log, err := logging.New(cfg.LogJSON, cfg.Debug)
	if err != nil {
		return err
	}
	defer log.Sync()

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	srv, err := buildServer(cfg, store, log)
	if err != nil {
		return err
	}
	if cfg.JWTSecret == "" {
		log.Warn("KEY2PAY_JWT_SECRET is empty, admin API is disabled")
	}

	hs := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", hs.Addr), zap.String("env", cfg.Env), zap.String("store", cfg.DBDriver))
		errCh <- hs.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return hs.Shutdown(shutdownCtx)
}
