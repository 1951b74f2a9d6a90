package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	export "quarterhour-export/internal/export/domain"
)

// Source drivers.
const (
	SourceMongo    = "mongo"
	SourcePostgres = "postgres"
	SourceMemory   = "memory"
)

const envPrefix = "QUARTORARIE"

// Exit codes of the CLI.
const (
	ExitOK            = 0
	ExitUsage         = 1
	ExitDateFormat    = 2
	ExitConfiguration = 3
	ExitFailure       = 4
	ExitNoData        = 5
)

var (
	// ErrUsage is returned for a wrong argument count or unknown flag.
	ErrUsage = errors.New("config: usage")
	// ErrDateFormat is returned when startDate/endDate are not yyyyMMdd.
	ErrDateFormat = errors.New("config: startDate / endDate must be in \"yyyyMMdd\" format")
	// ErrConfiguration is returned when connection settings are missing.
	ErrConfiguration = errors.New("config: missing connection configuration")
)

// Usage lists both accepted argument forms.
const Usage = `Usage (1): quarterhour-export [flags] magnitude fileName startDate(yyyyMMdd) endDate(yyyyMMdd)
Usage (2): quarterhour-export [flags] magnitude fileName startDate(yyyyMMdd) endDate(yyyyMMdd) username password mongoHost mongoPort dbName recreateIndex(true or false)`

// MongoConfig holds the document store connection.
type MongoConfig struct {
	URI            string        `yaml:"uri"`
	Host           string        `yaml:"host"`
	Port           string        `yaml:"port"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	Database       string        `yaml:"database"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	RecreateIndex  bool          `yaml:"recreate_index"`
}

// PostgresConfig holds the relational source connection.
type PostgresConfig struct {
	DatabaseURL string `yaml:"database_url"`
	Table       string `yaml:"table"`
}

// Config is the validated configuration of one run.
type Config struct {
	Selection export.Selection `yaml:"-"`

	Source             string         `yaml:"source"`
	Mongo              MongoConfig    `yaml:"mongo"`
	Postgres           PostgresConfig `yaml:"postgres"`
	FixturePath        string         `yaml:"fixture"`
	QueryTimeout       time.Duration  `yaml:"query_timeout"`
	OutputDir          string         `yaml:"output_dir"`
	XLSX               bool           `yaml:"xlsx"`
	ReportPDF          bool           `yaml:"report_pdf"`
	PushgatewayURL     string         `yaml:"pushgateway_url"`
	Verbose            bool           `yaml:"verbose"`
	FlagZeroAfterValue bool           `yaml:"flag_zero_after_value"`
}

// LoadDotenv loads path into the environment without overriding variables
// that are already set. A missing file is not an error.
func LoadDotenv(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return godotenv.Load(path)
}

// Load parses args (without the program name) and the environment.
// Errors wrap ErrUsage, ErrDateFormat or ErrConfiguration in that order of
// precedence.
func Load(args []string) (Config, error) {
	cfg := fromEnv()

	fs := flag.NewFlagSet("quarterhour-export", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&cfg.OutputDir, "out", cfg.OutputDir, "output directory")
	fs.StringVar(&cfg.Source, "source", cfg.Source, "measurement source: mongo, postgres or memory")
	fs.BoolVar(&cfg.XLSX, "xlsx", cfg.XLSX, "also write an XLSX copy of the grid")
	fs.BoolVar(&cfg.ReportPDF, "report-pdf", cfg.ReportPDF, "write a PDF run report")
	fs.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "log every written row")
	configPath := fs.String("config", os.Getenv(envPrefix+"_CONFIG"), "YAML configuration file")
	if err := fs.Parse(args); err != nil {
		return cfg, fmt.Errorf("%w: %v", ErrUsage, err)
	}

	positional := fs.Args()
	if len(positional) != 4 && len(positional) != 10 {
		return cfg, fmt.Errorf("%w: expected 4 or 10 arguments, got %d", ErrUsage, len(positional))
	}
	if positional[0] == "" || positional[1] == "" {
		return cfg, fmt.Errorf("%w: magnitude and fileName are required", ErrUsage)
	}

	start, err := export.ParseDayKey(positional[2])
	if err != nil {
		return cfg, fmt.Errorf("%w: %v", ErrDateFormat, err)
	}
	end, err := export.ParseDayKey(positional[3])
	if err != nil {
		return cfg, fmt.Errorf("%w: %v", ErrDateFormat, err)
	}

	if *configPath != "" {
		if err := applyFile(&cfg, *configPath); err != nil {
			return cfg, fmt.Errorf("%w: %v", ErrConfiguration, err)
		}
	}

	if len(positional) == 10 {
		cfg.Source = SourceMongo
		cfg.Mongo.URI = ""
		cfg.Mongo.Username = positional[4]
		cfg.Mongo.Password = positional[5]
		cfg.Mongo.Host = positional[6]
		cfg.Mongo.Port = positional[7]
		cfg.Mongo.Database = positional[8]
		recreate, err := strconv.ParseBool(positional[9])
		if err != nil {
			return cfg, fmt.Errorf("%w: recreateIndex must be true or false", ErrUsage)
		}
		cfg.Mongo.RecreateIndex = recreate
	}

	cfg.Selection = export.Selection{
		Magnitude: positional[0],
		FileName:  positional[1],
		Start:     start,
		End:       end,
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func fromEnv() Config {
	return Config{
		Source: getenvDefault(envPrefix+"_SOURCE", SourceMongo),
		Mongo: MongoConfig{
			URI:            os.Getenv(envPrefix + "_MONGODB_URI"),
			Host:           os.Getenv(envPrefix + "_MONGODB_HOST"),
			Port:           getenvDefault(envPrefix+"_MONGODB_PORT", "27017"),
			Username:       os.Getenv(envPrefix + "_MONGODB_USERNAME"),
			Password:       os.Getenv(envPrefix + "_MONGODB_PASSWORD"),
			Database:       os.Getenv(envPrefix + "_MONGODB_DATABASE"),
			ConnectTimeout: getenvDuration(envPrefix+"_MONGODB_TIMEOUT", 30*time.Second),
			RecreateIndex:  getenvBoolDefault(envPrefix+"_RECREATE_INDEX", false),
		},
		Postgres: PostgresConfig{
			DatabaseURL: getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
			Table:       os.Getenv(envPrefix + "_PG_TABLE"),
		},
		FixturePath:        os.Getenv(envPrefix + "_FIXTURE"),
		QueryTimeout:       getenvDuration(envPrefix+"_QUERY_TIMEOUT", 0),
		OutputDir:          getenvDefault(envPrefix+"_OUTPUT_DIR", "."),
		XLSX:               getenvBoolDefault(envPrefix+"_XLSX", false),
		ReportPDF:          getenvBoolDefault(envPrefix+"_REPORT_PDF", false),
		PushgatewayURL:     os.Getenv(envPrefix + "_PUSHGATEWAY_URL"),
		Verbose:            getenvBoolDefault(envPrefix+"_VERBOSE", false),
		FlagZeroAfterValue: getenvBoolDefault(envPrefix+"_FLAG_ZERO_AFTER_VALUE", true),
	}
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func (c Config) validate() error {
	switch c.Source {
	case SourceMongo:
		if c.Mongo.URI == "" && (c.Mongo.Host == "" || c.Mongo.Database == "") {
			return fmt.Errorf("%w: %s_MONGODB_HOST and %s_MONGODB_DATABASE (or %s_MONGODB_URI) are required", ErrConfiguration, envPrefix, envPrefix, envPrefix)
		}
		if c.Mongo.URI != "" && c.Mongo.Database == "" {
			return fmt.Errorf("%w: %s_MONGODB_DATABASE is required", ErrConfiguration, envPrefix)
		}
		if c.Mongo.Port != "" {
			if _, err := strconv.Atoi(c.Mongo.Port); err != nil {
				return fmt.Errorf("%w: invalid mongo port %q", ErrConfiguration, c.Mongo.Port)
			}
		}
	case SourcePostgres:
		if c.Postgres.DatabaseURL == "" {
			return fmt.Errorf("%w: DATABASE_URL or PG_DSN is required", ErrConfiguration)
		}
	case SourceMemory:
		if c.FixturePath == "" {
			return fmt.Errorf("%w: %s_FIXTURE is required", ErrConfiguration, envPrefix)
		}
	default:
		return fmt.Errorf("%w: unknown source %q", ErrConfiguration, c.Source)
	}
	if c.OutputDir == "" {
		return fmt.Errorf("%w: output directory is empty", ErrConfiguration)
	}
	return nil
}

// MongoURI returns the connection string of the document store.
func (c Config) MongoURI() string {
	if c.Mongo.URI != "" {
		return c.Mongo.URI
	}
	port := c.Mongo.Port
	if port == "" {
		port = "27017"
	}
	u := url.URL{
		Scheme: "mongodb",
		Host:   net.JoinHostPort(c.Mongo.Host, port),
		Path:   "/" + c.Mongo.Database,
	}
	if c.Mongo.Username != "" {
		u.User = url.UserPassword(c.Mongo.Username, c.Mongo.Password)
	}
	return u.String()
}

// OutputPath returns <outputDir>/<fileName>_<magnitude><ext>.
func (c Config) OutputPath(ext string) string {
	return filepath.Join(c.OutputDir, c.Selection.Name()+ext)
}

// DuplicatePolicy returns the configured duplicate policy.
func (c Config) DuplicatePolicy() export.DuplicatePolicy {
	return export.DuplicatePolicy{FlagZeroAfterValue: c.FlagZeroAfterValue}
}

// ExitCode maps a run error to the process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrUsage):
		return ExitUsage
	case errors.Is(err, ErrDateFormat):
		return ExitDateFormat
	case errors.Is(err, ErrConfiguration):
		return ExitConfiguration
	case errors.Is(err, export.ErrNoColumns), errors.Is(err, export.ErrNoMeasurements):
		return ExitNoData
	default:
		return ExitFailure
	}
}

// LogEnvironment logs the QUARTORARIE* variables, masking secrets.
func LogEnvironment(logger *log.Logger) {
	var lines []string
	for _, kv := range os.Environ() {
		key, value, _ := strings.Cut(kv, "=")
		if !strings.HasPrefix(key, envPrefix) {
			continue
		}
		if strings.Contains(key, "PASSWORD") || strings.Contains(key, "URI") {
			value = "****"
		}
		lines = append(lines, key+"="+value)
	}
	sort.Strings(lines)
	for _, line := range lines {
		logger.Printf("config env: %s", line)
	}
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvBoolDefault(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
