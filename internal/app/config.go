package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"

	"github.com/whetherapp/whether-backend/internal/config"
	"github.com/whetherapp/whether-backend/internal/observability"
	"github.com/whetherapp/whether-backend/internal/sheets"
	"github.com/whetherapp/whether-backend/internal/store"
)

const (
	BackendSheets = "sheets"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

const (
	defaultSpreadsheetID  = "1nHVC5ahA0qOj4uE05YKWb3Fn3BjGSu_Uq8_ZXJ4cm_0"
	defaultAllowedOrigins = "https://oscarmcglone.com,https://duck.oscarmcglone.com,http://127.0.0.1:5500,http://localhost:5500"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	Port              string
	CredentialsJSON   string
	SpreadsheetID     string
	VoteSheet         string
	VibeSheet         string
	AllowedOrigins    []string
	Backend           string
	SQLitePath        string
	SheetsReadRetries int
	ShutdownTimeout   time.Duration
	TracesExporter    string
}

// SetupEnvironment loads .env file and configures zerolog output and log level.
func SetupEnvironment() {
	// Load .env file if it exists
	err := godotenv.Load()

	// Configure logging
	if os.Getenv("ENV") == "production" {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		log.Logger = log.Output(os.Stderr)
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	zerolog.DefaultContextLogger = &log.Logger

	levelStr := strings.ToLower(os.Getenv("LOGLEVEL"))
	switch levelStr {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn", "warning":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case "fatal":
		zerolog.SetGlobalLevel(zerolog.FatalLevel)
	case "panic":
		zerolog.SetGlobalLevel(zerolog.PanicLevel)
	case "disabled":
		zerolog.SetGlobalLevel(zerolog.Disabled)
	case "":
		// Default based on environment
		if os.Getenv("ENV") == "production" {
			zerolog.SetGlobalLevel(zerolog.WarnLevel)
		} else {
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
		}
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		log.Warn().Msgf("Unknown LOGLEVEL '%s', defaulting to info.", levelStr)
	}

	// wait until now to report on the .env file so we have the chance to set up logging first
	if err == nil {
		log.Debug().Msg("Loaded environment variables from .env file.")
	} else {
		log.Debug().Msg("No .env file found or error loading .env file; proceeding with existing environment variables.")
	}
}

// GetEnvWithDefault fetches an environment variable with a default fallback.
func GetEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	cfg := Config{
		Port:            GetEnvWithDefault("PORT", "3000"),
		CredentialsJSON: os.Getenv("GOOGLE_SERVICE_ACCOUNT_KEY"),
		SpreadsheetID:   GetEnvWithDefault("SPREADSHEET_ID", defaultSpreadsheetID),
		VoteSheet:       GetEnvWithDefault("VOTE_SHEET", "WhetherAppVotes"),
		VibeSheet:       GetEnvWithDefault("VIBE_SHEET", "WhetherAppVibes"),
		AllowedOrigins:  splitList(GetEnvWithDefault("ALLOWED_ORIGINS", defaultAllowedOrigins)),
		Backend:         strings.ToLower(GetEnvWithDefault("STORE_BACKEND", BackendSheets)),
		SQLitePath:      GetEnvWithDefault("SQLITE_PATH", "whether.db"),
		TracesExporter:  strings.ToLower(GetEnvWithDefault("TRACES_EXPORTER", observability.TracesNone)),
	}

	if _, err := strconv.Atoi(cfg.Port); err != nil {
		return Config{}, fmt.Errorf("invalid PORT %q: %w", cfg.Port, err)
	}

	retries, err := strconv.Atoi(GetEnvWithDefault("SHEETS_READ_RETRIES", "0"))
	if err != nil || retries < 0 {
		return Config{}, fmt.Errorf("invalid SHEETS_READ_RETRIES %q", os.Getenv("SHEETS_READ_RETRIES"))
	}
	cfg.SheetsReadRetries = retries

	cfg.ShutdownTimeout, err = time.ParseDuration(GetEnvWithDefault("SHUTDOWN_TIMEOUT", "10s"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
	}

	switch cfg.TracesExporter {
	case observability.TracesNone, observability.TracesStdout:
	default:
		return Config{}, fmt.Errorf("unknown TRACES_EXPORTER %q", cfg.TracesExporter)
	}

	switch cfg.Backend {
	case BackendSheets:
		if cfg.CredentialsJSON == "" {
			return Config{}, fmt.Errorf("GOOGLE_SERVICE_ACCOUNT_KEY environment variable is required")
		}
	case BackendSQLite, BackendMemory:
	default:
		return Config{}, fmt.Errorf("unknown STORE_BACKEND %q", cfg.Backend)
	}

	return cfg, nil
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return ":" + c.Port
}

// OpenStore creates the configured backing store. The returned closer is
// never nil.
func OpenStore(ctx context.Context, cfg Config) (store.Adapter, io.Closer, error) {
	log.Debug().Str("backend", cfg.Backend).Msg("Initializing store")

	switch cfg.Backend {
	case BackendSheets:
		client, err := sheets.NewClient(ctx, cfg.SpreadsheetID, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
		if err != nil {
			return nil, nil, err
		}
		if cfg.SheetsReadRetries > 0 {
			client.WithReadRetry(config.SheetReadRetry(cfg.SheetsReadRetries))
		}
		return client, nopCloser{}, nil
	case BackendSQLite:
		s, err := store.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case BackendMemory:
		log.Warn().Msg("Using in-memory store; votes and vibes are lost on restart")
		return store.NewMemory(), nopCloser{}, nil
	}
	return nil, nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.Backend)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
