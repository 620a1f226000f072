package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/instatrack/instatrack/internal/bot"
	"github.com/instatrack/instatrack/internal/catalog"
	"github.com/instatrack/instatrack/internal/config"
	"github.com/instatrack/instatrack/internal/entitlement"
	"github.com/instatrack/instatrack/internal/http_api"
	"github.com/instatrack/instatrack/internal/instagram"
	"github.com/instatrack/instatrack/internal/payment"
	"github.com/instatrack/instatrack/internal/reporter"
	"github.com/instatrack/instatrack/internal/repository"
	"github.com/instatrack/instatrack/pkg/logger"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "instatrack",
		Usage: "Instatrack is a subscription-gated Instagram statistics bot",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "postgres-user", Aliases: []string{"u"}, Usage: "Postgres user"},
			&cli.StringFlag{Name: "postgres-password", Aliases: []string{"p"}, Usage: "Postgres password"},
			&cli.StringFlag{Name: "postgres-host", Aliases: []string{"t"}, Usage: "Postgres host"},
			&cli.IntFlag{Name: "postgres-port", Aliases: []string{"P"}, Usage: "Postgres port"},
			&cli.StringFlag{Name: "postgres-db", Aliases: []string{"d"}, Usage: "Postgres database name"},
			&cli.StringFlag{Name: "provider-url", Aliases: []string{"b"}, Usage: "Profile-data provider URL"},
			&cli.StringFlag{Name: "redis-addr", Aliases: []string{"r"}, Usage: "Redis address for the snapshot cache"},
			&cli.IntFlag{Name: "api-port", Aliases: []string{"a"}, Usage: "HTTP API port"},
			&cli.BoolFlag{Name: "development", Aliases: []string{"D"}, Usage: "Development mode"},
		},
		Action: func(c *cli.Context) error {
			return run(c)
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	// Load configuration from environment variables
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %v", err)
	}

	// Override with flags if set
	if c.IsSet("postgres-user") {
		cfg.PostgresUser = c.String("postgres-user")
	}
	if c.IsSet("postgres-password") {
		cfg.PostgresPassword = c.String("postgres-password")
	}
	if c.IsSet("postgres-host") {
		cfg.PostgresHost = c.String("postgres-host")
	}
	if c.IsSet("postgres-port") {
		cfg.PostgresPort = c.Int("postgres-port")
	}
	if c.IsSet("postgres-db") {
		cfg.PostgresDB = c.String("postgres-db")
	}
	if c.IsSet("provider-url") {
		cfg.ProviderURL = c.String("provider-url")
	}
	if c.IsSet("redis-addr") {
		cfg.RedisAddr = c.String("redis-addr")
	}
	if c.IsSet("api-port") {
		cfg.APIPort = c.Int("api-port")
	}
	if c.IsSet("development") {
		cfg.Development = c.Bool("development")
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Development)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %v", err)
	}

	// Initialize database
	db, err := repository.NewPostgresDB(cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDB, cfg.PostgresHost, cfg.PostgresPort, log)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %v", err)
	}
	defer db.Close()

	// Initialize the tariff catalog and seed the default plans on first run
	plans := catalog.NewCatalog(db, log)
	if err := plans.Seed(); err != nil {
		return fmt.Errorf("failed to seed tariff catalog: %v", err)
	}

	// Initialize the profile-data provider, with an optional Redis snapshot cache
	var cache *instagram.SnapshotCache
	if cfg.RedisAddr != "" {
		cache = instagram.NewSnapshotCache(cfg.RedisAddr, cfg.RedisPassword, log)
	}
	provider := instagram.NewClient(cfg.ProviderURL, cfg.ReportWebhookURL, cache, log)

	// Initialize the entitlement service
	entitlements := entitlement.NewService(db, plans, provider, log)

	// Initialize the Telegram bot, which also delivers payment notifications
	tgBot, err := bot.New(cfg.TelegramBotToken, db, entitlements, provider, cfg.PaywallURL, log)
	if err != nil {
		return fmt.Errorf("failed to initialize bot: %v", err)
	}

	// Initialize the payment service
	payments := payment.NewService(db, plans, tgBot, log)

	// Initialize API server
	apiServer := http_api.NewHTTPServer(payments, entitlements, tgBot, cfg.PaymentWebhookSecret, cfg.APIPort, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go apiServer.Start()

	// Periodic report dispatch
	reports := reporter.New(db, tgBot, log)
	go reports.Run(ctx)

	// Start the bot; blocks until the context is cancelled
	tgBot.Start(ctx)

	if err := apiServer.Shutdown(); err != nil {
		log.Error("Failed to shut down API server ", "error ", err)
	}

	return nil
}
