package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"leasetoken/internal/retry"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	// Postgres connection string; ignored when UseMemory is set
	DatabaseURL string
	UseMemory   bool

	LogLevel string
	APIPort  int

	// Our own account id; approvals relayed by it are rejected
	MarketplaceAccountID string

	// Remote JSON-RPC endpoints per account id, with a fallback template
	// containing one %s for the account id
	Endpoints           map[string]string
	EndpointURLTemplate string

	AllowedNFTContracts []string
	AllowedFTContracts  []string

	ReceiverCallTimeout time.Duration
	ResolveTimeout      time.Duration
	PayoutCallTimeout   time.Duration
	ListingTimeout      time.Duration

	// How long transfer_call waits for the resolution before answering 202
	TransferCallWait time.Duration

	// Requests per second and burst allowed per caller by the API
	RateLimit float64
	RateBurst int

	Retry retry.Config
}

// fileConfig mirrors the optional YAML file
type fileConfig struct {
	DatabaseURL          string            `yaml:"database_url"`
	LogLevel             string            `yaml:"log_level"`
	APIPort              int               `yaml:"api_port"`
	MarketplaceAccountID string            `yaml:"marketplace_account_id"`
	Endpoints            map[string]string `yaml:"endpoints"`
	EndpointURLTemplate  string            `yaml:"endpoint_url_template"`
	AllowedNFTContracts  []string          `yaml:"allowed_nft_contracts"`
	AllowedFTContracts   []string          `yaml:"allowed_ft_contracts"`

	Timeouts struct {
		ReceiverCall time.Duration `yaml:"receiver_call"`
		Resolve      time.Duration `yaml:"resolve"`
		PayoutCall   time.Duration `yaml:"payout_call"`
		Listing      time.Duration `yaml:"listing"`
		TransferWait time.Duration `yaml:"transfer_call_wait"`
	} `yaml:"timeouts"`

	RateLimit struct {
		PerSecond float64 `yaml:"per_second"`
		Burst     int     `yaml:"burst"`
	} `yaml:"rate_limit"`

	Retry retry.Config `yaml:"retry"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		LogLevel:            "info",
		APIPort:             8080,
		Endpoints:           map[string]string{},
		ReceiverCallTimeout: 25 * time.Second,
		ResolveTimeout:      5 * time.Second,
		PayoutCallTimeout:   25 * time.Second,
		ListingTimeout:      10 * time.Second,
		TransferCallWait:    10 * time.Second,
		RateLimit:           10,
		RateBurst:           20,
		Retry:               retry.DefaultConfig(),
	}
}

// Load reads .env, then the YAML file named by CONFIG_FILE (if any), then
// environment overrides
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	// fields missing from the retry block keep their current values
	f := fileConfig{Retry: c.Retry}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if f.DatabaseURL != "" {
		c.DatabaseURL = f.DatabaseURL
	}
	if f.LogLevel != "" {
		c.LogLevel = f.LogLevel
	}
	if f.APIPort != 0 {
		c.APIPort = f.APIPort
	}
	if f.MarketplaceAccountID != "" {
		c.MarketplaceAccountID = f.MarketplaceAccountID
	}
	for account, url := range f.Endpoints {
		c.Endpoints[account] = url
	}
	if f.EndpointURLTemplate != "" {
		c.EndpointURLTemplate = f.EndpointURLTemplate
	}
	if f.AllowedNFTContracts != nil {
		c.AllowedNFTContracts = f.AllowedNFTContracts
	}
	if f.AllowedFTContracts != nil {
		c.AllowedFTContracts = f.AllowedFTContracts
	}

	setDuration(&c.ReceiverCallTimeout, f.Timeouts.ReceiverCall)
	setDuration(&c.ResolveTimeout, f.Timeouts.Resolve)
	setDuration(&c.PayoutCallTimeout, f.Timeouts.PayoutCall)
	setDuration(&c.ListingTimeout, f.Timeouts.Listing)
	setDuration(&c.TransferCallWait, f.Timeouts.TransferWait)

	if f.RateLimit.PerSecond != 0 {
		c.RateLimit = f.RateLimit.PerSecond
	}
	if f.RateLimit.Burst != 0 {
		c.RateBurst = f.RateLimit.Burst
	}
	c.Retry = f.Retry
	return nil
}

func (c *Config) applyEnv() {
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	c.UseMemory = getEnvAsBool("USE_MEMORY_STORE", c.UseMemory)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.APIPort = getEnvAsInt("API_PORT", c.APIPort)
	c.MarketplaceAccountID = getEnv("MARKETPLACE_ACCOUNT_ID", c.MarketplaceAccountID)
	c.EndpointURLTemplate = getEnv("ENDPOINT_URL_TEMPLATE", c.EndpointURLTemplate)

	if v := getEnvAsList("ALLOWED_NFT_CONTRACTS"); v != nil {
		c.AllowedNFTContracts = v
	}
	if v := getEnvAsList("ALLOWED_FT_CONTRACTS"); v != nil {
		c.AllowedFTContracts = v
	}

	c.Retry.Enabled = getEnvAsBool("RETRY_ENABLED", c.Retry.Enabled)
	c.Retry.MaxRetries = getEnvAsInt("RETRY_MAX_RETRIES", c.Retry.MaxRetries)
	c.Retry.InitialDelay = getEnvAsSeconds("RETRY_INITIAL_DELAY_SEC", c.Retry.InitialDelay)
	c.Retry.MaxDelay = getEnvAsSeconds("RETRY_MAX_DELAY_SEC", c.Retry.MaxDelay)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if !c.UseMemory && c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required unless USE_MEMORY_STORE is set"))
	}
	if c.MarketplaceAccountID == "" {
		errs = append(errs, errors.New("MARKETPLACE_ACCOUNT_ID is required"))
	}
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("API_PORT %d is out of range", c.APIPort))
	}
	if c.EndpointURLTemplate != "" && strings.Count(c.EndpointURLTemplate, "%s") != 1 {
		errs = append(errs, errors.New("endpoint URL template must contain exactly one %s"))
	}
	for name, d := range map[string]time.Duration{
		"receiver call timeout": c.ReceiverCallTimeout,
		"resolve timeout":       c.ResolveTimeout,
		"payout call timeout":   c.PayoutCallTimeout,
		"listing timeout":       c.ListingTimeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}
	if c.RateLimit <= 0 || c.RateBurst <= 0 {
		errs = append(errs, errors.New("rate limit and burst must be positive"))
	}

	return errors.Join(errs...)
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v != 0 {
		*dst = v
	}
}

func getEnv(key, defaultVal string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	val, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return defaultVal
	}
	return val
}

func getEnvAsInt(key string, defaultVal int) int {
	val, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return defaultVal
	}
	return val
}

func getEnvAsSeconds(key string, defaultVal time.Duration) time.Duration {
	val, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return defaultVal
	}
	return time.Duration(val) * time.Second
}

// getEnvAsList splits a comma separated variable; nil when unset
func getEnvAsList(key string) []string {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}

	items := []string{}
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
