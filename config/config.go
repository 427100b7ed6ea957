// Package config reads perlex settings from the environment and an optional
// .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/dhamidi/perlex/perl/document"
	"github.com/dhamidi/perlex/perl/heredoc"
	"github.com/dhamidi/perlex/perl/recovery"
	"github.com/dhamidi/perlex/perl/scorer"
)

const (
	EnvTimeout          = "PERLEX_HEREDOC_TIMEOUT_MS"
	EnvMaxDepth         = "PERLEX_MAX_HEREDOC_DEPTH"
	EnvThreshold        = "PERLEX_CONFIDENCE_THRESHOLD"
	EnvCacheSize        = "PERLEX_RECOVERY_CACHE_SIZE"
	EnvDisableHeuristic = "PERLEX_DISABLE_HEURISTICS"
	EnvDisablePatterns  = "PERLEX_DISABLE_PATTERNS"
	EnvDisableContext   = "PERLEX_DISABLE_CONTEXT"
	EnvScorerMode       = "PERLEX_SCORER_MODE"
	EnvLogVerbosity     = "PERLEX_LOG_VERBOSITY"
	EnvLogFile          = "PERLEX_LOG_FILE"
)

type Config struct {
	Timeout    time.Duration
	MaxDepth   int
	Recovery   recovery.Config
	ScorerMode scorer.Mode

	LogVerbosity int
	LogFile      string
}

func Default() Config {
	return Config{
		Timeout:    heredoc.DefaultTimeout,
		MaxDepth:   heredoc.MaxDepth,
		Recovery:   recovery.DefaultConfig(),
		ScorerMode: scorer.BestGuess,
	}
}

// Load reads the given env files, or .env when none are given, and then the
// process environment. A missing .env is not an error.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		_ = godotenv.Load()
	} else if err := godotenv.Load(files...); err != nil {
		return nil, fmt.Errorf("load env files: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from the variables returned by getenv. Unset
// variables keep their defaults.
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := Default()
	get := func(key string) string {
		return strings.TrimSpace(getenv(key))
	}

	if raw := get(EnvTimeout); raw != "" {
		ms, err := strconv.Atoi(raw)
		if err != nil || ms <= 0 {
			return nil, fmt.Errorf("%s: invalid timeout %q", EnvTimeout, raw)
		}
		cfg.Timeout = time.Duration(ms) * time.Millisecond
	}
	if raw := get(EnvMaxDepth); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("%s: invalid depth %q", EnvMaxDepth, raw)
		}
		cfg.MaxDepth = n
	}
	if raw := get(EnvThreshold); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 || v > 1 {
			return nil, fmt.Errorf("%s: threshold %q must be between 0 and 1", EnvThreshold, raw)
		}
		cfg.Recovery.ConfidenceThreshold = v
	}
	if raw := get(EnvCacheSize); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("%s: invalid cache size %q", EnvCacheSize, raw)
		}
		cfg.Recovery.CacheSize = n
	}

	for key, enabled := range map[string]*bool{
		EnvDisableHeuristic: &cfg.Recovery.EnableHeuristics,
		EnvDisablePatterns:  &cfg.Recovery.EnablePatternMatching,
		EnvDisableContext:   &cfg.Recovery.EnableContextAnalysis,
	} {
		raw := get(key)
		if raw == "" {
			continue
		}
		disabled, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		*enabled = !disabled
	}

	if raw := get(EnvScorerMode); raw != "" {
		mode, err := scorer.ParseMode(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", EnvScorerMode, err)
		}
		cfg.ScorerMode = mode
	}

	if raw := get(EnvLogVerbosity); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid verbosity %q", EnvLogVerbosity, raw)
		}
		cfg.LogVerbosity = n
	}
	cfg.LogFile = get(EnvLogFile)

	return &cfg, nil
}

// DocumentOptions turns the configuration into analysis options.
func (c *Config) DocumentOptions() []document.Option {
	return []document.Option{
		document.WithTimeout(c.Timeout),
		document.WithMaxDepth(c.MaxDepth),
		document.WithRecoveryConfig(c.Recovery),
		document.WithScorerMode(c.ScorerMode),
	}
}
