package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/EduFluxo/AtendeFlow/internal/api"
	"github.com/EduFluxo/AtendeFlow/internal/config"
	"github.com/EduFluxo/AtendeFlow/internal/flow"
	"github.com/EduFluxo/AtendeFlow/internal/genai"
	"github.com/EduFluxo/AtendeFlow/internal/messaging"
	"github.com/EduFluxo/AtendeFlow/internal/prefilter"
	"github.com/EduFluxo/AtendeFlow/internal/routing"
	"github.com/EduFluxo/AtendeFlow/internal/store"
	"github.com/EduFluxo/AtendeFlow/internal/util"
	"github.com/EduFluxo/AtendeFlow/internal/whatsapp"
	"github.com/joho/godotenv"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for AtendeFlow state data
	DefaultStateDir = "/var/lib/atendeflow"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "atendeflow.db"
	// DefaultWhatsAppDBFileName is the default whatsmeow session database filename
	DefaultWhatsAppDBFileName = "whatsmeow.db"
)

func main() {
	initializeLogger()

	cfg := loadEnvironmentConfig()
	flags := parseCommandLineFlags(cfg)

	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	conversationStore, err := buildStore(flags)
	if err != nil {
		slog.Error("Failed to initialize conversation store", "error", err)
		os.Exit(1)
	}
	defer conversationStore.Close()

	classifier := buildClassifier(flags)
	sender := buildSender(flags)

	rules, err := loadRules(flags)
	if err != nil {
		slog.Error("Failed to load prefilter rules", "error", err)
		os.Exit(1)
	}

	receptionist, err := flow.NewReceptionist(buildFlowOptions(flags, conversationStore, classifier, sender, rules)...)
	if err != nil {
		slog.Error("Failed to assemble receptionist pipeline", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if sender != nil {
		if err := sender.Start(ctx); err != nil {
			slog.Error("Failed to start messaging service", "error", err)
			os.Exit(1)
		}
		defer sender.Stop()

		responseHandler := messaging.NewResponseHandler(sender, receptionist, conversationStore, *flags.establishment)
		responseHandler.Start(ctx)
	}

	server, err := api.NewServer(api.WithAddr(*flags.apiAddr), api.WithProcessor(receptionist))
	if err != nil {
		slog.Error("Failed to create webhook server", "error", err)
		os.Exit(1)
	}

	slog.Info("Bootstrapping AtendeFlow", "api_addr", *flags.apiAddr, "transport", *flags.transport, "establishment", *flags.establishment)
	if err := server.Run(ctx); err != nil {
		slog.Error("AtendeFlow failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("AtendeFlow exited successfully")
}

// Config holds environment configuration
type Config struct {
	WhatsAppDSN   string
	DatabaseURL   string
	StateDir      string
	OpenAIKey     string
	APIAddr       string
	RulesFile     string
	Establishment string
	Thresholds    routing.Thresholds
}

// Flags holds command line flag values
type Flags struct {
	qrOutput      *string
	numeric       *bool
	stateDir      *string
	dbDSN         *string
	waDSN         *string
	openaiKey     *string
	apiAddr       *string
	rulesFile     *string
	establishment *string
	transport     *string
	thresholds    routing.Thresholds
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	cfg := Config{
		WhatsAppDSN:   os.Getenv("WHATSAPP_DB_DSN"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		StateDir:      os.Getenv("ATENDEFLOW_STATE_DIR"),
		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		APIAddr:       os.Getenv("ATENDEFLOW_API_ADDR"),
		RulesFile:     os.Getenv("ATENDEFLOW_RULES_FILE"),
		Establishment: os.Getenv("ATENDEFLOW_ESTABLISHMENT"),
		Thresholds: routing.Thresholds{
			Proceed:   util.ParseFloatEnv("ATENDEFLOW_THRESHOLD_PROCEED", routing.DefaultThresholds.Proceed),
			Enhance:   util.ParseFloatEnv("ATENDEFLOW_THRESHOLD_ENHANCE", routing.DefaultThresholds.Enhance),
			Fallback1: util.ParseFloatEnv("ATENDEFLOW_THRESHOLD_FALLBACK1", routing.DefaultThresholds.Fallback1),
			Fallback2: util.ParseFloatEnv("ATENDEFLOW_THRESHOLD_FALLBACK2", routing.DefaultThresholds.Fallback2),
		},
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("ATENDEFLOW_DB_DSN")
	}

	if cfg.StateDir == "" {
		cfg.StateDir = DefaultStateDir
		slog.Debug("No ATENDEFLOW_STATE_DIR set, using default", "state_dir", cfg.StateDir)
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = filepath.Join(cfg.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", cfg.DatabaseURL)
	}
	if cfg.WhatsAppDSN == "" {
		cfg.WhatsAppDSN = filepath.Join(cfg.StateDir, DefaultWhatsAppDBFileName)
		slog.Debug("No WhatsApp session DSN provided, defaulting to SQLite", "sqlite_path", cfg.WhatsAppDSN)
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", cfg.DatabaseURL != "",
		"WHATSAPP_DB_DSN_SET", cfg.WhatsAppDSN != "",
		"ATENDEFLOW_STATE_DIR", cfg.StateDir,
		"OPENAI_API_KEY_SET", cfg.OpenAIKey != "",
		"ATENDEFLOW_API_ADDR", cfg.APIAddr,
		"ATENDEFLOW_RULES_FILE", cfg.RulesFile,
		"ATENDEFLOW_ESTABLISHMENT", cfg.Establishment)

	return cfg
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(cfg Config) Flags {
	flags := Flags{
		qrOutput:      flag.String("qr-output", "", "path to write login QR code"),
		numeric:       flag.Bool("numeric-code", false, "use numeric login code instead of QR code"),
		stateDir:      flag.String("state-dir", cfg.StateDir, "state directory for AtendeFlow data (overrides $ATENDEFLOW_STATE_DIR)"),
		dbDSN:         flag.String("db-dsn", cfg.DatabaseURL, "conversation store DSN (overrides $DATABASE_URL or $ATENDEFLOW_DB_DSN)"),
		waDSN:         flag.String("whatsapp-db-dsn", cfg.WhatsAppDSN, "whatsmeow session database DSN (overrides $WHATSAPP_DB_DSN)"),
		openaiKey:     flag.String("openai-api-key", cfg.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		apiAddr:       flag.String("api-addr", cfg.APIAddr, "webhook server address (overrides $ATENDEFLOW_API_ADDR)"),
		rulesFile:     flag.String("rules-file", cfg.RulesFile, "YAML prefilter rule file (overrides $ATENDEFLOW_RULES_FILE)"),
		establishment: flag.String("establishment", cfg.Establishment, "establishment identifier for staff lookups (overrides $ATENDEFLOW_ESTABLISHMENT)"),
		transport:     flag.String("transport", "whatsapp", "outbound transport: whatsapp, twilio, or none"),
		thresholds:    cfg.Thresholds,
	}

	flag.Parse()

	// Follow the state-dir override for the default SQLite locations.
	if *flags.stateDir != cfg.StateDir {
		if *flags.dbDSN == filepath.Join(cfg.StateDir, DefaultDBFileName) {
			*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		}
		if *flags.waDSN == filepath.Join(cfg.StateDir, DefaultWhatsAppDBFileName) {
			*flags.waDSN = filepath.Join(*flags.stateDir, DefaultWhatsAppDBFileName)
		}
	}

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	for _, dsn := range []string{*flags.dbDSN, *flags.waDSN} {
		if store.DetectDSNType(dsn) == "postgres" {
			continue
		}
		dir := filepath.Dir(dsn)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}

// buildStore selects the conversation store backend from the DSN.
func buildStore(flags Flags) (store.ConversationStore, error) {
	dsn := *flags.dbDSN
	if dsn == "" {
		slog.Debug("No conversation store DSN, using in-memory store")
		return store.NewInMemoryStore(), nil
	}
	if store.DetectDSNType(dsn) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store")
		return store.NewPostgresStore(store.WithDSN(dsn))
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", dsn)
	return store.NewSQLiteStore(store.WithDSN(dsn))
}

// buildClassifier constructs the external intent classifier. A missing API
// key degrades to pattern-only scoring instead of refusing to start.
func buildClassifier(flags Flags) flow.Classifier {
	var genaiOpts []genai.Option
	if *flags.openaiKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(*flags.openaiKey))
	}
	client, err := genai.NewClient(genaiOpts...)
	if err != nil {
		slog.Warn("External classifier unavailable, running on pattern confidence only", "error", err)
		return nil
	}
	return client
}

// buildSender constructs the outbound messaging transport.
func buildSender(flags Flags) messaging.Service {
	switch *flags.transport {
	case "twilio":
		client, err := messaging.NewTwilioClient()
		if err != nil {
			slog.Error("Failed to create Twilio client", "error", err)
			os.Exit(1)
		}
		return messaging.NewTwilioService(client)
	case "whatsapp":
		waOpts := []whatsapp.Option{whatsapp.WithDBDSN(*flags.waDSN)}
		if *flags.qrOutput != "" {
			waOpts = append(waOpts, whatsapp.WithQRCodeOutput(*flags.qrOutput))
		}
		if *flags.numeric {
			waOpts = append(waOpts, whatsapp.WithNumericCode())
		}
		client, err := whatsapp.NewClient(waOpts...)
		if err != nil {
			slog.Error("Failed to create WhatsApp client", "error", err)
			os.Exit(1)
		}
		return messaging.NewWhatsAppService(client)
	case "none":
		slog.Info("No outbound transport configured; replies returned via webhook only")
		return nil
	default:
		slog.Error("Unknown transport", "transport", *flags.transport)
		os.Exit(1)
		return nil
	}
}

// loadRules reads the prefilter rule file, falling back to the built-in set.
func loadRules(flags Flags) ([]prefilter.Rule, error) {
	if *flags.rulesFile == "" {
		slog.Debug("No rules file configured, using built-in prefilter rules")
		return nil, nil
	}
	rules, err := config.LoadRules(*flags.rulesFile)
	if err != nil {
		return nil, err
	}
	slog.Info("Loaded prefilter rules", "file", *flags.rulesFile, "count", len(rules))
	return rules, nil
}

// buildFlowOptions assembles the receptionist pipeline options.
func buildFlowOptions(flags Flags, st store.ConversationStore, classifier flow.Classifier, sender messaging.Service, rules []prefilter.Rule) []flow.Option {
	opts := []flow.Option{
		flow.WithStore(st),
		flow.WithThresholds(flags.thresholds),
		flow.WithEstablishment(*flags.establishment),
	}
	if classifier != nil {
		opts = append(opts, flow.WithClassifier(classifier))
	}
	if sender != nil {
		opts = append(opts, flow.WithSender(sender))
	}
	if rules != nil {
		opts = append(opts, flow.WithRules(rules))
	}
	return opts
}
