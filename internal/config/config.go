package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/teambition/rrule-go"
	"gopkg.in/yaml.v3"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DatabaseConfig selects and locates the ledger database
type DatabaseConfig struct {
	Driver     string `yaml:"driver" envconfig:"LEDGER_DATABASE_DRIVER" validate:"required,oneof=postgres sqlite"`
	URL        string `yaml:"url" envconfig:"LEDGER_DATABASE_URL" validate:"required_if=Driver postgres"`
	SQLitePath string `yaml:"sqlitePath" envconfig:"LEDGER_DATABASE_SQLITE_PATH"`
}

// HTTPConfig configures the API server
type HTTPConfig struct {
	ListenAddress   string        `yaml:"listenAddress" envconfig:"LEDGER_HTTP_LISTEN_ADDRESS" validate:"required"`
	JWTSecret       string        `yaml:"jwtSecret" envconfig:"LEDGER_HTTP_JWT_SECRET" validate:"omitempty,min=16"`
	RequestLogging  bool          `yaml:"requestLogging" envconfig:"LEDGER_HTTP_REQUEST_LOGGING"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" envconfig:"LEDGER_HTTP_SHUTDOWN_TIMEOUT" validate:"min=0"`
}

// CompletionConfig holds the points awarded per attendance when an event is completed
// and the request does not say otherwise
type CompletionConfig struct {
	DefaultPointsForPresent int `yaml:"defaultPointsForPresent" envconfig:"LEDGER_COMPLETION_DEFAULT_POINTS_FOR_PRESENT" validate:"min=0"`
	DefaultPointsForAbsent  int `yaml:"defaultPointsForAbsent" envconfig:"LEDGER_COMPLETION_DEFAULT_POINTS_FOR_ABSENT" validate:"min=0"`
	DefaultPointsForPending int `yaml:"defaultPointsForPending" envconfig:"LEDGER_COMPLETION_DEFAULT_POINTS_FOR_PENDING" validate:"min=0"`
}

// AuditConfig configures the audit sink. Without a Mongo URI entries go to the log.
type AuditConfig struct {
	MongoURI        string `yaml:"mongoURI" envconfig:"LEDGER_AUDIT_MONGO_URI"`
	MongoDatabase   string `yaml:"mongoDatabase" envconfig:"LEDGER_AUDIT_MONGO_DATABASE" validate:"required_with=MongoURI"`
	MongoCollection string `yaml:"mongoCollection" envconfig:"LEDGER_AUDIT_MONGO_COLLECTION"`
	BufferSize      int    `yaml:"bufferSize" envconfig:"LEDGER_AUDIT_BUFFER_SIZE" validate:"min=1"`
}

// GoogleConfig holds the Google Workspace integrations
type GoogleConfig struct {
	LedgerSheetID string `yaml:"ledgerSheetID" envconfig:"LEDGER_GOOGLE_LEDGER_SHEET_ID"`
	GmailUserID   string `yaml:"gmailUserID" envconfig:"LEDGER_GOOGLE_GMAIL_USER_ID"`
	GmailSender   string `yaml:"gmailSender" envconfig:"LEDGER_GOOGLE_GMAIL_SENDER" validate:"required_if=NotifyReviews true"`
	NotifyReviews bool   `yaml:"notifyReviews" envconfig:"LEDGER_GOOGLE_NOTIFY_REVIEWS"`
}

// EventSchedule describes a recurring event
type EventSchedule struct {
	Name            string `yaml:"name" validate:"required"`
	RRule           string `yaml:"rrule" validate:"required"`
	Location        string `yaml:"location,omitempty"`
	DurationMinutes int    `yaml:"durationMinutes" validate:"min=1"`
}

// Config represents the application configuration
type Config struct {
	Database       DatabaseConfig   `yaml:"database"`
	HTTP           HTTPConfig       `yaml:"http"`
	Completion     CompletionConfig `yaml:"completion"`
	Audit          AuditConfig      `yaml:"audit"`
	Google         GoogleConfig     `yaml:"google"`
	EventSchedules []EventSchedule  `yaml:"eventSchedules,omitempty" validate:"dive" ignored:"true"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// DefaultConfig returns the values used for anything the config file leaves out
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:     DriverSQLite,
			SQLitePath: "ledger.db",
		},
		HTTP: HTTPConfig{
			ListenAddress:   ":8080",
			RequestLogging:  true,
			ShutdownTimeout: 30 * time.Second,
		},
		Completion: CompletionConfig{
			DefaultPointsForPresent: 10,
			DefaultPointsForAbsent:  0,
			DefaultPointsForPending: 5,
		},
		Audit: AuditConfig{
			MongoCollection: "audit_logs",
			BufferSize:      256,
		},
		Google: GoogleConfig{
			GmailUserID: "me",
		},
	}
}

// Load loads and validates ledger_config.yaml
func Load() (*Config, error) {
	return LoadWithEnv("")
}

// LoadWithEnv loads and validates the configuration for an environment.
// For example, env="prod" reads ledger_config.prod.yaml and .env.prod.
// The config file is looked up in the current directory, then the home directory.
func LoadWithEnv(env string) (*Config, error) {
	if err := loadDotEnv(env); err != nil {
		return nil, err
	}

	configPath, err := findFile(configFileName(env))
	if err != nil {
		return nil, fmt.Errorf("failed to find config file: %w", err)
	}

	return LoadFromPath(configPath)
}

// LoadFromPath loads the configuration from a specific path, applies LEDGER_* environment
// overrides on top of it and validates the result
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Every overridable field names its full LEDGER_* variable, so no prefix is needed
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration struct and checks rrule syntax
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	seen := make(map[string]bool, len(cfg.EventSchedules))
	for i, schedule := range cfg.EventSchedules {
		if _, err := rrule.StrToRRule(schedule.RRule); err != nil {
			return fmt.Errorf("invalid rrule in eventSchedules[%d]: %w", i, err)
		}
		if seen[schedule.Name] {
			return fmt.Errorf("duplicate event schedule name %q", schedule.Name)
		}
		seen[schedule.Name] = true
	}

	return nil
}

// Schedule returns the event schedule with the given name
func (c *Config) Schedule(name string) (*EventSchedule, error) {
	for i := range c.EventSchedules {
		if c.EventSchedules[i].Name == name {
			return &c.EventSchedules[i], nil
		}
	}
	return nil, fmt.Errorf("no event schedule named %q", name)
}

func configFileName(env string) string {
	if env == "" {
		return "ledger_config.yaml"
	}
	return "ledger_config." + env + ".yaml"
}

// loadDotEnv loads .env or .env.<env> from the current directory if present.
// Variables already set in the environment win.
func loadDotEnv(env string) error {
	name := ".env"
	if env != "" {
		name = ".env." + env
	}
	if err := godotenv.Load(name); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", name, err)
	}
	return nil
}

// findFile looks for name in the current directory, then the home directory
func findFile(name string) (string, error) {
	if _, err := os.Stat(name); err == nil {
		return name, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	homePath := filepath.Join(homeDir, name)
	if _, err := os.Stat(homePath); err == nil {
		return homePath, nil
	}

	return "", fmt.Errorf("%s not found in current directory or home directory", name)
}
