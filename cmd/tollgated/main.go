package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/openroads/tollgate/internal/httpserver"
	"github.com/openroads/tollgate/internal/notify"
	"github.com/openroads/tollgate/internal/store/gormstore"
	"github.com/openroads/tollgate/internal/store/pgstore"
	"github.com/openroads/tollgate/pkg/shift"
	"github.com/openroads/tollgate/pkg/toll"
	"github.com/openroads/tollgate/pkg/wallet"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	flagDatabaseURL        = "database-url"
	flagListenAddr         = "listen-addr"
	flagStaffSigningKey    = "staff-signing-key"
	flagStaffIssuer        = "staff-issuer"
	flagDeviceKey          = "device-key"
	flagAllowedOrigins     = "allowed-origins"
	flagExemptPrefix       = "exempt-license-prefix"
	configKeyDatabaseURL   = "database_url"
	configKeyListenAddr    = "listen_addr"
	configKeySigningKey    = "staff_signing_key"
	configKeyStaffIssuer   = "staff_issuer"
	configKeyDeviceKey     = "device_key"
	configKeyOrigins       = "allowed_origins"
	configKeyExemptPrefix  = "exempt_license_prefix"
	defaultDatabaseURL     = "sqlite:///tmp/tollgate.db"
	defaultHTTPListenAddr  = ":8080"
	defaultStaffIssuer     = "tollgate"
	driverSQLite           = "sqlite"
	driverPostgres         = "postgres"
	defaultSQLiteFile      = "tollgate.db"
	schemaMigrationTimeout = 30 * time.Second
)

type runtimeConfig struct {
	DatabaseURL     string
	ListenAddr      string
	StaffSigningKey string
	StaffIssuer     string
	DeviceKey       string
	AllowedOrigins  string
	ExemptPrefix    string
}

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "tollgated: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := &runtimeConfig{}
	cmd := &cobra.Command{
		Use:           "tollgated",
		Short:         "Toll gate transaction server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cmd, cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg)
		},
	}

	cmd.Flags().String(flagDatabaseURL, defaultDatabaseURL, "PostgreSQL or sqlite connection string")
	cmd.Flags().String(flagListenAddr, defaultHTTPListenAddr, "HTTP listen address")
	cmd.Flags().String(flagStaffSigningKey, "", "HMAC key for staff bearer tokens")
	cmd.Flags().String(flagStaffIssuer, defaultStaffIssuer, "Expected issuer of staff tokens")
	cmd.Flags().String(flagDeviceKey, "", "Shared key for gate hardware requests")
	cmd.Flags().String(flagAllowedOrigins, "", "Comma-separated CORS origins")
	cmd.Flags().String(flagExemptPrefix, "", "License prefix granted free passage (empty disables)")

	return cmd
}

func loadConfig(cmd *cobra.Command, cfg *runtimeConfig) error {
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	bindings := map[string]struct {
		env  string
		flag string
	}{
		configKeyDatabaseURL:  {env: "DATABASE_URL", flag: flagDatabaseURL},
		configKeyListenAddr:   {env: "HTTP_LISTEN_ADDR", flag: flagListenAddr},
		configKeySigningKey:   {env: "STAFF_SIGNING_KEY", flag: flagStaffSigningKey},
		configKeyStaffIssuer:  {env: "STAFF_ISSUER", flag: flagStaffIssuer},
		configKeyDeviceKey:    {env: "DEVICE_KEY", flag: flagDeviceKey},
		configKeyOrigins:      {env: "ALLOWED_ORIGINS", flag: flagAllowedOrigins},
		configKeyExemptPrefix: {env: "EXEMPT_LICENSE_PREFIX", flag: flagExemptPrefix},
	}
	for key, binding := range bindings {
		if err := viper.BindEnv(key, binding.env); err != nil {
			return err
		}
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(binding.flag)); err != nil {
			return err
		}
	}

	cfg.DatabaseURL = viper.GetString(configKeyDatabaseURL)
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = defaultDatabaseURL
	}
	cfg.ListenAddr = viper.GetString(configKeyListenAddr)
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = defaultHTTPListenAddr
	}
	cfg.StaffSigningKey = viper.GetString(configKeySigningKey)
	cfg.StaffIssuer = viper.GetString(configKeyStaffIssuer)
	cfg.DeviceKey = viper.GetString(configKeyDeviceKey)
	cfg.AllowedOrigins = viper.GetString(configKeyOrigins)
	cfg.ExemptPrefix = viper.GetString(configKeyExemptPrefix)

	if cfg.StaffSigningKey == "" {
		return fmt.Errorf("staff signing key is required")
	}
	if cfg.DeviceKey == "" {
		return fmt.Errorf("device key is required")
	}
	return nil
}

func runServer(ctx context.Context, cfg *runtimeConfig) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	gormDB, cleanup, driver, err := openDatabase(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database open: %w", err)
	}
	defer cleanup()

	if err := prepareSchema(ctx, gormDB, driver, cfg.DatabaseURL); err != nil {
		return err
	}

	store := gormstore.New(gormDB)
	now := func() time.Time { return time.Now().UTC() }

	walletService, err := wallet.NewService(store.Wallet(), now)
	if err != nil {
		return fmt.Errorf("wallet service init: %w", err)
	}
	shiftService, err := shift.NewService(store.Shift(), now)
	if err != nil {
		return fmt.Errorf("shift service init: %w", err)
	}

	dispatcher := notify.NewDispatcher(
		notify.LogNotifier{Logger: logger},
		notify.LogReceiptSender{Logger: logger},
		logger,
	)
	defer dispatcher.Wait()

	engineOptions := []toll.EngineOption{
		toll.WithDispatcher(dispatcher),
		toll.WithLogger(logger),
	}
	if cfg.ExemptPrefix != "" {
		engineOptions = append(engineOptions, toll.WithExemptionRule(toll.GovernmentalPrefix{Prefix: cfg.ExemptPrefix}))
	}
	engine, err := toll.NewEngine(store.Toll(), walletService, engineOptions...)
	if err != nil {
		return fmt.Errorf("engine init: %w", err)
	}

	server, err := httpserver.New(httpserver.Config{
		ListenAddr:      cfg.ListenAddr,
		AllowedOrigins:  httpserver.ParseAllowedOrigins(cfg.AllowedOrigins),
		StaffSigningKey: cfg.StaffSigningKey,
		StaffIssuer:     cfg.StaffIssuer,
		DeviceKey:       cfg.DeviceKey,
	}, engine, walletService, shiftService, logger)
	if err != nil {
		return fmt.Errorf("http server init: %w", err)
	}

	return server.Run(ctx)
}

func openDatabase(ctx context.Context, dsn string) (*gorm.DB, func() error, string, error) {
	driver, sqlitePath, err := resolveDriver(dsn)
	if err != nil {
		return nil, nil, "", err
	}

	var db *gorm.DB
	gormConfig := &gorm.Config{}
	switch driver {
	case driverPostgres:
		db, err = gorm.Open(postgres.Open(dsn), gormConfig)
	case driverSQLite:
		db, err = gorm.Open(sqlite.Open(sqlitePath), gormConfig)
	default:
		return nil, nil, "", fmt.Errorf("unsupported database scheme %q", driver)
	}
	if err != nil {
		return nil, nil, "", err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, "", err
	}
	cleanup := func() error { return sqlDB.Close() }
	return db.WithContext(ctx), cleanup, driver, nil
}

func resolveDriver(dsn string) (string, string, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return driverPostgres, "", nil
	}
	if strings.HasPrefix(dsn, "sqlite://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", "", fmt.Errorf("parse sqlite url: %w", err)
		}
		path := u.Path
		if path == "" {
			path = u.Host
		}
		if path == "" || path == "/" {
			path = defaultSQLiteFile
		}
		sqlitePath, err := normalizeSQLitePath(path)
		return driverSQLite, sqlitePath, err
	}
	// Treat everything else as a direct sqlite path.
	sqlitePath, err := normalizeSQLitePath(dsn)
	return driverSQLite, sqlitePath, err
}

func normalizeSQLitePath(path string) (string, error) {
	if path == ":memory:" {
		return path, nil
	}
	if strings.HasPrefix(path, "/") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return "", err
		}
		return path, nil
	}
	abs := filepath.Join(".", path)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", err
	}
	return abs, nil
}

// prepareSchema bootstraps the schema. SQLite deployments use gorm's
// AutoMigrate; postgres goes through the pgstore DDL so partial indexes
// and constraints come out exactly as written.
func prepareSchema(ctx context.Context, db *gorm.DB, driver string, dsn string) error {
	if driver == driverSQLite {
		if err := gormstore.AutoMigrate(db); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}

	migrateCtx, cancel := context.WithTimeout(ctx, schemaMigrationTimeout)
	defer cancel()

	pool, err := pgxpool.New(migrateCtx, dsn)
	if err != nil {
		return fmt.Errorf("postgres pool: %w", err)
	}
	defer pool.Close()

	migrator := pgstore.NewMigrator(pool)
	if err := migrator.Ping(migrateCtx); err != nil {
		return err
	}
	if err := migrator.Migrate(migrateCtx); err != nil {
		return fmt.Errorf("schema migrate: %w", err)
	}
	return nil
}
