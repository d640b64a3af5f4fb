package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/biblioteca/libaccess/internal/libaccess/types"
)

const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	HTTPAddr string
	GRPCAddr string // empty disables the gRPC listener

	Env      string // "dev" | "prod"
	LogLevel string

	// Storage
	Driver      string // memory | sqlite | postgres
	DBPath      string // e.g. "./data/libaccess.db"
	PostgresDSN string

	CodePrefix string

	// 0 disables the occupancy sampler.
	OccupancyInterval time.Duration

	SeedMembers []types.Member
}

// fileConfig is the YAML overlay. Empty fields keep the default.
type fileConfig struct {
	HTTPAddr          string         `yaml:"http_addr"`
	GRPCAddr          string         `yaml:"grpc_addr"`
	Env               string         `yaml:"env"`
	LogLevel          string         `yaml:"log_level"`
	Driver            string         `yaml:"driver"`
	DBPath            string         `yaml:"db_path"`
	PostgresDSN       string         `yaml:"postgres_dsn"`
	CodePrefix        string         `yaml:"code_prefix"`
	OccupancyInterval string         `yaml:"occupancy_interval"`
	Members           []types.Member `yaml:"members"`
}

func Defaults() Config {
	return Config{
		HTTPAddr:          ":8080",
		GRPCAddr:          ":9090",
		Env:               "dev",
		LogLevel:          "info",
		Driver:            DriverSQLite,
		DBPath:            "./data/libaccess.db",
		CodePrefix:        "BIBLIO",
		OccupancyInterval: 30 * time.Second,
	}
}

// FromEnv returns the defaults overridden by LIBACCESS_* variables.
func FromEnv() Config {
	return applyEnv(Defaults())
}

// Load reads an optional .env file (LIBACCESS_ENV_FILE, default ".env"),
// then the YAML file named by LIBACCESS_CONFIG if set, then the environment.
// Later sources win.
func Load() (Config, error) {
	envFile := getenvDefault("LIBACCESS_ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", envFile, err)
	}

	path := strings.TrimSpace(os.Getenv("LIBACCESS_CONFIG"))
	if path == "" {
		return FromEnv(), nil
	}
	cfg, err := applyFile(Defaults(), path)
	if err != nil {
		return Config{}, err
	}
	return applyEnv(cfg), nil
}

func applyFile(cfg Config, path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	setString(&cfg.HTTPAddr, fc.HTTPAddr)
	setString(&cfg.GRPCAddr, fc.GRPCAddr)
	setString(&cfg.Env, fc.Env)
	setString(&cfg.LogLevel, fc.LogLevel)
	setString(&cfg.Driver, fc.Driver)
	setString(&cfg.DBPath, fc.DBPath)
	setString(&cfg.PostgresDSN, fc.PostgresDSN)
	setString(&cfg.CodePrefix, fc.CodePrefix)
	if fc.OccupancyInterval != "" {
		d, err := time.ParseDuration(fc.OccupancyInterval)
		if err != nil || d < 0 {
			return cfg, fmt.Errorf("parse config: occupancy_interval %q", fc.OccupancyInterval)
		}
		cfg.OccupancyInterval = d
	}
	if len(fc.Members) > 0 {
		cfg.SeedMembers = fc.Members
	}
	return normalise(cfg), nil
}

func applyEnv(cfg Config) Config {
	cfg.HTTPAddr = getenvDefault("LIBACCESS_HTTP_ADDR", cfg.HTTPAddr)
	if v, ok := os.LookupEnv("LIBACCESS_GRPC_ADDR"); ok {
		// Set but empty turns gRPC off.
		cfg.GRPCAddr = strings.TrimSpace(v)
	}
	cfg.Env = getenvDefault("LIBACCESS_ENV", cfg.Env)
	cfg.LogLevel = getenvDefault("LIBACCESS_LOG_LEVEL", cfg.LogLevel)
	cfg.Driver = getenvDefault("LIBACCESS_DB_DRIVER", cfg.Driver)
	cfg.DBPath = getenvDefault("LIBACCESS_DB_PATH", cfg.DBPath)
	cfg.PostgresDSN = getenvDefault("LIBACCESS_POSTGRES_DSN", cfg.PostgresDSN)
	cfg.CodePrefix = getenvDefault("LIBACCESS_QR_PREFIX", cfg.CodePrefix)
	cfg.OccupancyInterval = getenvDuration("LIBACCESS_OCCUPANCY_INTERVAL", cfg.OccupancyInterval)

	if members := parseMembers(os.Getenv("LIBACCESS_SEED_MEMBERS")); len(members) > 0 {
		cfg.SeedMembers = members
	}
	return normalise(cfg)
}

// normalise applies the fail-soft rules: unknown values fall back to defaults.
func normalise(cfg Config) Config {
	cfg.Env = strings.ToLower(cfg.Env)
	if cfg.Env != "dev" && cfg.Env != "prod" {
		cfg.Env = "dev"
	}
	cfg.Driver = strings.ToLower(cfg.Driver)
	switch cfg.Driver {
	case DriverMemory, DriverSQLite, DriverPostgres:
	default:
		cfg.Driver = DriverSQLite
	}
	return cfg
}

// parseMembers reads "id:name:surname" entries separated by commas.
// Malformed entries are skipped.
func parseMembers(v string) []types.Member {
	var out []types.Member
	for _, entry := range splitCSV(v) {
		parts := strings.SplitN(entry, ":", 3)
		id, err := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
		if err != nil || id <= 0 {
			continue
		}
		m := types.Member{MemberID: id}
		if len(parts) > 1 {
			m.Name = strings.TrimSpace(parts[1])
		}
		if len(parts) > 2 {
			m.Surname = strings.TrimSpace(parts[2])
		}
		out = append(out, m)
	}
	return out
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return strings.TrimSpace(v)
}

func getenvDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if v == "0" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return def
	}
	return d
}

func splitCSV(v string) []string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
