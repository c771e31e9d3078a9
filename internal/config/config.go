package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the casequery configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Auth      AuthConfig      `yaml:"auth"`
	Engine    EngineConfig    `yaml:"engine"`
	Generator GeneratorConfig `yaml:"generator"`
	Expansion ExpansionConfig `yaml:"expansion"`
	Store     StoreConfig     `yaml:"store"`
	Query     QueryConfig     `yaml:"query"`
	Results   ResultsConfig   `yaml:"results"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds HTTP basic auth settings. No users disables auth.
type AuthConfig struct {
	Realm string            `yaml:"realm"`
	Users map[string]string `yaml:"users"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// Engine drivers.
const (
	EngineElastic = "elastic"
	EngineBleve   = "bleve"
)

// EngineConfig selects and configures the full-text search backend.
type EngineConfig struct {
	Driver  string        `yaml:"driver"` // elastic, bleve (default: elastic)
	Elastic ElasticConfig `yaml:"elastic"`
	Bleve   BleveConfig   `yaml:"bleve"`
}

// ElasticConfig holds Elasticsearch connection settings. CloudID wins over Addresses.
type ElasticConfig struct {
	Addresses         []string `yaml:"addresses"`
	CloudID           string   `yaml:"cloud_id"`
	Username          string   `yaml:"username"`
	Password          string   `yaml:"password"`
	APIKey            string   `yaml:"api_key"`
	Index             string   `yaml:"index"`
	MaxRetries        int      `yaml:"max_retries"`
	RequestTimeoutSec int      `yaml:"request_timeout_sec"`
}

// BleveConfig holds embedded index settings. An empty path keeps the index in memory.
type BleveConfig struct {
	Path       string `yaml:"path"`
	Candidates int    `yaml:"candidates"`
}

// Generator providers.
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// GeneratorConfig configures the text generator used for query expansion.
type GeneratorConfig struct {
	Provider          string       `yaml:"provider"` // openai, ollama (default: openai)
	Model             string       `yaml:"model"`
	APIKey            string       `yaml:"api_key"`
	BaseURL           string       `yaml:"base_url"`
	Temperature       float64      `yaml:"temperature"`
	MaxTokens         int          `yaml:"max_tokens"`
	RequestsPerSecond float64      `yaml:"requests_per_second"`
	Burst             int          `yaml:"burst"`
	Budget            BudgetConfig `yaml:"budget"`
}

// BudgetConfig holds token budget settings.
type BudgetConfig struct {
	DailyTokenLimit   int64  `yaml:"daily_token_limit"`   // 0 = unlimited
	MonthlyTokenLimit int64  `yaml:"monthly_token_limit"` // 0 = unlimited
	Action            string `yaml:"action"`              // "reject" | "warn" (default)
}

// ExpansionConfig holds the expander's retry policy and prompts.
type ExpansionConfig struct {
	MaxAttempts   int `yaml:"max_attempts"`
	BackoffMs     int `yaml:"backoff_ms"`
	MaxBackoffMs  int `yaml:"max_backoff_ms"`
	CacheTTLHours int `yaml:"cache_ttl_hours"` // 0 disables the expansion cache

	// PromptVersion namespaces cached expansions; bump it when the prompts change.
	PromptVersion string `yaml:"prompt_version"`
	SystemPrompt  string `yaml:"system_prompt"`
	FixPrompt     string `yaml:"fix_prompt"`
}

// StoreConfig holds the Redis/Valkey connection used by the expansion cache and
// budget counters. No addresses runs without either.
type StoreConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// WeightsConfig holds the constant boost weights, strongest first.
type WeightsConfig struct {
	ExactPhrase    float64 `yaml:"exact_phrase"`
	StrippedPhrase float64 `yaml:"stripped_phrase"`
	Token          float64 `yaml:"token"`
	Fuzzy          float64 `yaml:"fuzzy"`
}

// QueryConfig tunes the query builder.
type QueryConfig struct {
	Field          string        `yaml:"field"`
	DateField      string        `yaml:"date_field"`
	Weights        WeightsConfig `yaml:"weights"`
	Slop           *int          `yaml:"slop"`
	Fuzzy          *bool         `yaml:"fuzzy"`
	Fuzziness      string        `yaml:"fuzziness"`
	GroupMode      string        `yaml:"group_mode"` // all, any
	DecayScaleDays int           `yaml:"decay_scale_days"`
	Decay          float64       `yaml:"decay"`
	HighlightSlop  *int          `yaml:"highlight_slop"`
	HighlightBoost float64       `yaml:"highlight_boost"`
	FragmentSize   int           `yaml:"fragment_size"`
	Fragments      int           `yaml:"fragments"`
	SuggestName    string        `yaml:"suggest_name"`
	Size           int           `yaml:"size"`
}

// ResultsConfig holds result presentation settings.
type ResultsConfig struct {
	// ViewerBaseURL is prefixed to bare document paths.
	ViewerBaseURL string `yaml:"viewer_base_url"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit path.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}
	return Parse(data)
}

// Parse decodes, defaults and validates a YAML document.
func Parse(data []byte) (Config, error) {
	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 5001
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 60
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Auth.Realm == "" {
		c.Auth.Realm = "Login Required"
	}
	c.Engine.applyDefaults()
	c.Generator.applyDefaults()
	c.Expansion.applyDefaults()
	if c.Store.ReadinessTimeout <= 0 {
		c.Store.ReadinessTimeout = 10
	}
	c.Query.applyDefaults()
	if c.Results.ViewerBaseURL == "" {
		c.Results.ViewerBaseURL = "https://thejudgements.in/searchResult?url="
	}
}

func (e *EngineConfig) applyDefaults() {
	if e.Driver == "" {
		e.Driver = EngineElastic
	}
	if e.Elastic.Index == "" {
		e.Elastic.Index = "doc_zeta"
	}
	if e.Elastic.MaxRetries <= 0 {
		e.Elastic.MaxRetries = 3
	}
	if e.Elastic.RequestTimeoutSec <= 0 {
		e.Elastic.RequestTimeoutSec = 10
	}
	if e.Bleve.Candidates <= 0 {
		e.Bleve.Candidates = 1000
	}
}

func (g *GeneratorConfig) applyDefaults() {
	if g.Provider == "" {
		g.Provider = ProviderOpenAI
	}
	if g.Model == "" {
		switch g.Provider {
		case ProviderOllama:
			g.Model = "llama3.1"
		default:
			g.Model = "gpt-4-turbo"
		}
	}
	if g.Temperature == 0 {
		g.Temperature = 0.2
	}
	if g.Budget.Action == "" {
		g.Budget.Action = "warn"
	}
}

func (e *ExpansionConfig) applyDefaults() {
	if e.MaxAttempts <= 0 {
		e.MaxAttempts = 3
	}
	if e.BackoffMs <= 0 {
		e.BackoffMs = 250
	}
	if e.MaxBackoffMs <= 0 {
		e.MaxBackoffMs = 2000
	}
	if e.PromptVersion == "" {
		e.PromptVersion = "v1"
	}
}

func (q *QueryConfig) applyDefaults() {
	if q.Field == "" {
		q.Field = "document_text"
	}
	if q.DateField == "" {
		q.DateField = "document_date"
	}
	if q.Weights == (WeightsConfig{}) {
		q.Weights = WeightsConfig{ExactPhrase: 10, StrippedPhrase: 5, Token: 2, Fuzzy: 1}
	}
	if q.Slop == nil {
		q.Slop = intPtr(20)
	}
	if q.Fuzzy == nil {
		t := true
		q.Fuzzy = &t
	}
	if q.Fuzziness == "" {
		q.Fuzziness = "AUTO"
	}
	if q.GroupMode == "" {
		q.GroupMode = "all"
	}
	if q.DecayScaleDays <= 0 {
		q.DecayScaleDays = 300
	}
	if q.Decay == 0 {
		q.Decay = 0.5
	}
	if q.HighlightSlop == nil {
		q.HighlightSlop = intPtr(20)
	}
	if q.HighlightBoost == 0 {
		q.HighlightBoost = 1
	}
	if q.FragmentSize <= 0 {
		q.FragmentSize = 50
	}
	if q.Fragments <= 0 {
		q.Fragments = 18
	}
	if q.SuggestName == "" {
		q.SuggestName = "spellcheck"
	}
	if q.Size <= 0 {
		q.Size = 50
	}
}

func intPtr(v int) *int { return &v }

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	for name, pass := range c.Auth.Users {
		if name == "" || pass == "" {
			return fmt.Errorf("auth.users entries need a name and a password, got %q", name)
		}
	}

	switch c.Engine.Driver {
	case EngineElastic:
		if c.Engine.Elastic.CloudID == "" && len(c.Engine.Elastic.Addresses) == 0 {
			return errors.New("engine.elastic needs cloud_id or addresses")
		}
	case EngineBleve:
	default:
		return fmt.Errorf("engine.driver must be %q or %q, got %q", EngineElastic, EngineBleve, c.Engine.Driver)
	}

	switch c.Generator.Provider {
	case ProviderOpenAI:
		if c.Generator.APIKey == "" {
			return errors.New("generator.api_key is required for openai")
		}
	case ProviderOllama:
	default:
		return fmt.Errorf("generator.provider must be %q or %q, got %q",
			ProviderOpenAI, ProviderOllama, c.Generator.Provider)
	}
	switch c.Generator.Budget.Action {
	case "warn", "reject":
	default:
		return fmt.Errorf("generator.budget.action must be \"warn\" or \"reject\", got %q", c.Generator.Budget.Action)
	}

	if c.Expansion.SystemPrompt == "" || c.Expansion.FixPrompt == "" {
		return errors.New("expansion.system_prompt and expansion.fix_prompt are required")
	}

	w := c.Query.Weights
	if w.Fuzzy <= 0 || w.ExactPhrase <= w.StrippedPhrase || w.StrippedPhrase <= w.Token || w.Token <= w.Fuzzy {
		return fmt.Errorf(
			"query.weights must be strictly decreasing exact > stripped > token > fuzzy > 0, got %v > %v > %v > %v",
			w.ExactPhrase, w.StrippedPhrase, w.Token, w.Fuzzy)
	}
	switch c.Query.GroupMode {
	case "all", "any":
	default:
		return fmt.Errorf("query.group_mode must be \"all\" or \"any\", got %q", c.Query.GroupMode)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
