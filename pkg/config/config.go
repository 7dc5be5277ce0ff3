package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env string

	Log    LogConfig
	Solver SolverConfig
	WhatIf WhatIfConfig
	Runs   RunStoreConfig
}

type LogConfig struct {
	Level  string
	Format string
}

// SolverConfig governs the MILP backend invocation.
type SolverConfig struct {
	// Backend selects the solver adapter: "pbsat" (pure Go) or "highs".
	Backend string
	// TimeLimit bounds a single optimize call.
	TimeLimit time.Duration
	// Threads is advisory; backends without internal parallelism ignore it.
	Threads int
	// ObjectiveScale converts float objective coefficients into the integer
	// cost space of pseudo-Boolean backends.
	ObjectiveScale float64
}

// WhatIfConfig controls counterfactual analysis and conflict extraction.
type WhatIfConfig struct {
	IISEnabled bool
	IISTimeout time.Duration
}

// RunStoreConfig bounds how long solved runs stay referencable by id.
type RunStoreConfig struct {
	TTL time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Solver = SolverConfig{
		Backend:        v.GetString("SOLVER_BACKEND"),
		TimeLimit:      parseDuration(v.GetString("SOLVER_TIME_LIMIT"), 2*time.Minute),
		Threads:        v.GetInt("SOLVER_THREADS"),
		ObjectiveScale: v.GetFloat64("SOLVER_OBJECTIVE_SCALE"),
	}

	cfg.WhatIf = WhatIfConfig{
		IISEnabled: v.GetBool("WHATIF_IIS_ENABLED"),
		IISTimeout: parseDuration(v.GetString("WHATIF_IIS_TIMEOUT"), 30*time.Second),
	}

	cfg.Runs = RunStoreConfig{
		TTL: parseDuration(v.GetString("RUN_STORE_TTL"), 30*time.Minute),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SOLVER_BACKEND", "pbsat")
	v.SetDefault("SOLVER_TIME_LIMIT", "2m")
	v.SetDefault("SOLVER_THREADS", 0)
	v.SetDefault("SOLVER_OBJECTIVE_SCALE", 1e6)

	v.SetDefault("WHATIF_IIS_ENABLED", true)
	v.SetDefault("WHATIF_IIS_TIMEOUT", "30s")

	v.SetDefault("RUN_STORE_TTL", "30m")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}
