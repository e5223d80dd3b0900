package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// DepartmentPolicy selects how a sheet's department code is determined.
type DepartmentPolicy struct {
	// Mode is one of "auto" (spatial lookup), "fromFile" (parsed from
	// the archive's basename) or "literal" (Code holds the value).
	Mode string
	Code string
}

// ParseDepartmentPolicy parses the --dep-policy flag value.
func ParseDepartmentPolicy(s string) DepartmentPolicy {
	switch s {
	case "", "auto":
		return DepartmentPolicy{Mode: "auto"}
	case "fromFile":
		return DepartmentPolicy{Mode: "fromFile"}
	default:
		return DepartmentPolicy{Mode: "literal", Code: s}
	}
}

// Millesime is the cadastral release year, derived from a "YYYY-MM" date.
type Millesime struct {
	Year int
	Raw  string
}

// ParseMillesime parses a "YYYY-MM" date string into a Millesime.
func ParseMillesime(s string) (Millesime, error) {
	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 {
		return Millesime{}, fmt.Errorf("millesime must be YYYY-MM, got %q", s)
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil || year < 1000 || year > 9999 {
		return Millesime{}, fmt.Errorf("invalid millesime year in %q", s)
	}
	return Millesime{Year: year, Raw: s}, nil
}

// Config holds the global configuration for an ingest run.
type Config struct {
	// Input settings
	SourcePath string // directory tree or single .tar.bz2 path
	Millesime  Millesime

	// Output settings
	TargetSchema string
	OutputEPSG   int

	// Department resolution
	DepPolicy   DepartmentPolicy
	DepBoundary string // path to the department boundary reference set

	// Table config
	ConfigPreset string // "full" | "light" | "bati"
	ConfigPath   string // explicit JSON config path, overrides preset

	// Database settings
	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string

	// Processing settings
	Workers int

	// Feature flags
	Verbosity  int // 0-3
	DropSchema bool
	DropTable  bool

	// Logging and metrics
	LogFile         string
	MetricsInterval time.Duration
}

// DefaultConfig returns a configuration with sensible defaults, with
// database connection parameters seeded from the PG* environment
// variables the way libpq itself would.
func DefaultConfig() *Config {
	cfg := &Config{
		TargetSchema:    "public",
		OutputEPSG:      4326,
		ConfigPreset:    "full",
		DepPolicy:       DepartmentPolicy{Mode: "auto"},
		DBHost:          "localhost",
		DBPort:          5432,
		DBName:          "cadastre",
		DBUser:          "postgres",
		DBSSLMode:       "disable",
		Workers:         runtime.NumCPU(),
		Verbosity:       1,
		MetricsInterval: 30 * time.Second,
	}
	if v := os.Getenv("PGHOST"); v != "" {
		cfg.DBHost = v
	}
	if v := os.Getenv("PGPORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.DBPort = p
		}
	}
	if v := os.Getenv("PGDATABASE"); v != "" {
		cfg.DBName = v
	}
	if v := os.Getenv("PGUSER"); v != "" {
		cfg.DBUser = v
	}
	if v := os.Getenv("PGPASSWORD"); v != "" {
		cfg.DBPassword = v
	}
	if v := os.Getenv("PGSSLMODE"); v != "" {
		cfg.DBSSLMode = v
	}
	return cfg
}

// ConnectionString returns a PostgreSQL connection string (libpq keyword/value format).
func (c *Config) ConnectionString() string {
	connStr := fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBSSLMode,
	)
	if c.DBPassword != "" {
		connStr += fmt.Sprintf(" password=%s", c.DBPassword)
	}
	return connStr
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.SourcePath == "" {
		return fmt.Errorf("source path is required")
	}
	if c.Millesime.Raw == "" {
		return fmt.Errorf("millesime is required (YYYY-MM)")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}
	if c.OutputEPSG != 4326 && c.OutputEPSG != 3857 {
		return fmt.Errorf("output EPSG must be 4326 or 3857, got %d", c.OutputEPSG)
	}
	if c.ConfigPath == "" {
		switch c.ConfigPreset {
		case "full", "light", "bati":
		default:
			return fmt.Errorf("unknown config preset %q", c.ConfigPreset)
		}
	}
	return nil
}
