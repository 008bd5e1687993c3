// Package config loads Taru's settings from an optional YAML file, an
// optional .env file and TARU_* environment variables, in that order of
// increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/taru-edu/taru/internal/llm"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Store      StoreConfig      `yaml:"store"`
	Cache      CacheConfig      `yaml:"cache"`
	LLM        llm.Config       `yaml:"llm"`
	Generation GenerationConfig `yaml:"generation"`
	Scoring    ScoringConfig    `yaml:"scoring"`
	Client     ClientConfig     `yaml:"client"`
	Log        LogConfig        `yaml:"log"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	JWTSecret       string        `yaml:"jwt_secret"`
	TokenTTL        time.Duration `yaml:"token_ttl"`
	CORSOrigin      string        `yaml:"cors_origin"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// StoreConfig selects where sessions live. Driver is "sqlite" or "mongo".
type StoreConfig struct {
	Driver string `yaml:"driver"`

	// Path is the SQLite file. Empty means the XDG data directory.
	Path string `yaml:"path"`

	MongoURI      string `yaml:"mongo_uri"`
	MongoDatabase string `yaml:"mongo_database"`
}

// CacheConfig enables Redis for locks and generated question sets. With
// no RedisAddr both stay in process.
type CacheConfig struct {
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	QuestionTTL   time.Duration `yaml:"question_ttl"`
	LockLease     time.Duration `yaml:"lock_lease"`
}

type GenerationConfig struct {
	Count int `yaml:"count"`
}

// ScoringConfig points at an external scoring workflow. With no URL,
// results are scored by the LLM provider, or heuristically offline.
type ScoringConfig struct {
	WorkflowURL string        `yaml:"workflow_url"`
	Timeout     time.Duration `yaml:"timeout"`
}

type ClientConfig struct {
	BaseURL string        `yaml:"base_url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the built-in configuration. The LLM provider is left
// empty so Load can discover one from vendor API key variables.
func Default() Config {
	lc := llm.DefaultConfig()
	lc.Provider = ""
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			TokenTTL:        24 * time.Hour,
			CORSOrigin:      "*",
			ShutdownTimeout: 30 * time.Second,
		},
		Store: StoreConfig{
			Driver:        "sqlite",
			MongoDatabase: "taru",
		},
		Cache: CacheConfig{
			QuestionTTL: 24 * time.Hour,
			LockLease:   2 * time.Minute,
		},
		LLM:        lc,
		Generation: GenerationConfig{Count: 10},
		Scoring:    ScoringConfig{Timeout: 60 * time.Second},
		Client:     ClientConfig{BaseURL: "http://localhost:8080"},
		Log:        LogConfig{Level: "info"},
	}
}

// LoadDotEnv loads variables from path if the file exists. Variables
// already set in the environment win.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	} else if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load builds the configuration from defaults, the YAML file at path (or
// $TARU_CONFIG when path is empty) and the environment, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("TARU_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	cfg.resolveLLM()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// resolveLLM picks a provider when neither the file nor TARU_LLM_PROVIDER
// chose one: the first vendor key found in the environment, else mock.
func (c *Config) resolveLLM() {
	if c.LLM.Provider != "" {
		return
	}
	found, ok := llm.DiscoverConfig()
	if !ok {
		c.LLM.Provider = "mock"
		return
	}
	c.LLM.Provider = found.Provider
	keep := func(dst *string, src string) {
		if *dst == "" {
			*dst = src
		}
	}
	keep(&c.LLM.Gemini.APIKey, found.Gemini.APIKey)
	keep(&c.LLM.OpenAI.APIKey, found.OpenAI.APIKey)
	keep(&c.LLM.Anthropic.APIKey, found.Anthropic.APIKey)
	keep(&c.LLM.OpenRouter.APIKey, found.OpenRouter.APIKey)
}

// ApplyEnv overlays TARU_* variables. Malformed numbers and durations are
// reported together.
func (c *Config) ApplyEnv() error {
	var errs []error
	str := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	dur := func(dst *time.Duration, key string) {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	num := func(dst *int, key string) {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}

	str(&c.Server.Addr, "TARU_ADDR")
	str(&c.Server.JWTSecret, "TARU_JWT_SECRET")
	dur(&c.Server.TokenTTL, "TARU_TOKEN_TTL")
	str(&c.Server.CORSOrigin, "TARU_CORS_ORIGIN")

	str(&c.Store.Driver, "TARU_STORE_DRIVER")
	str(&c.Store.Path, "TARU_DB")
	str(&c.Store.MongoURI, "TARU_MONGO_URI")
	str(&c.Store.MongoDatabase, "TARU_MONGO_DATABASE")

	str(&c.Cache.RedisAddr, "TARU_REDIS_ADDR")
	str(&c.Cache.RedisPassword, "TARU_REDIS_PASSWORD")
	num(&c.Cache.RedisDB, "TARU_REDIS_DB")
	dur(&c.Cache.QuestionTTL, "TARU_QUESTION_TTL")

	num(&c.Generation.Count, "TARU_QUESTION_COUNT")

	str(&c.Scoring.WorkflowURL, "TARU_SCORING_URL")
	dur(&c.Scoring.Timeout, "TARU_SCORING_TIMEOUT")

	str(&c.Client.BaseURL, "TARU_API_URL")
	str(&c.Client.Token, "TARU_TOKEN")
	dur(&c.Client.Timeout, "TARU_CLIENT_TIMEOUT")

	str(&c.Log.Level, "TARU_LOG_LEVEL")

	c.LLM.ApplyEnv()
	return errors.Join(errs...)
}

// Validate checks settings every command relies on. Server-only settings
// are checked by ValidateServer.
func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Driver {
	case "sqlite":
	case "mongo":
		if c.Store.MongoURI == "" {
			errs = append(errs, errors.New("store.mongo_uri is required for the mongo driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q (want sqlite or mongo)", c.Store.Driver))
	}

	if c.Generation.Count < 1 || c.Generation.Count > 50 {
		errs = append(errs, fmt.Errorf("generation.count must be between 1 and 50, got %d", c.Generation.Count))
	}
	if c.Scoring.WorkflowURL != "" {
		if err := checkHTTPURL(c.Scoring.WorkflowURL); err != nil {
			errs = append(errs, fmt.Errorf("scoring.workflow_url: %w", err))
		}
	}
	if err := checkHTTPURL(c.Client.BaseURL); err != nil {
		errs = append(errs, fmt.Errorf("client.base_url: %w", err))
	}
	if c.Client.Timeout < 0 || c.Scoring.Timeout < 0 {
		errs = append(errs, errors.New("timeouts must not be negative"))
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	if err := c.LLM.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ValidateServer checks the settings needed to serve or sign tokens.
func (c *Config) ValidateServer() error {
	if c.Server.JWTSecret == "" {
		return errors.New("server.jwt_secret (TARU_JWT_SECRET) is required")
	}
	if c.Server.TokenTTL <= 0 {
		return errors.New("server.token_ttl must be positive")
	}
	return nil
}

func checkHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%q is not an http(s) URL", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%q has no host", raw)
	}
	return nil
}

// SlogLevel parses Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(l.Level))); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return lvl, nil
}

// Logger builds a text logger writing to w at the configured level.
func (l LogConfig) Logger(w io.Writer) *slog.Logger {
	lvl, err := l.SlogLevel()
	if err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}
