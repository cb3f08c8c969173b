package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/ekaya-inc/herdwise/pkg/llm"
)

// DefaultPath is the config file read when no --config flag is given.
const DefaultPath = "config.yaml"

// Config holds all configuration for herdwise.
// Configuration can come from a YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (API keys, tokens, passwords) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8080"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	BaseURL  string `yaml:"base_url" env:"BASE_URL" env-default:""` // Auto-derived from Port if empty
	Version  string `yaml:"-"`                                      // Set at load time, not from config

	// TLS configuration (optional - if both provided, server uses HTTPS)
	TLSCertPath string `yaml:"tls_cert_path" env:"TLS_CERT_PATH" env-default:""`
	TLSKeyPath  string `yaml:"tls_key_path" env:"TLS_KEY_PATH" env-default:""`

	// AllowedOrigins is a comma-separated CORS allow list. "*" allows any origin.
	AllowedOrigins string `yaml:"allowed_origins" env:"ALLOWED_ORIGINS" env-default:"*"`

	LLM      LLMConfig      `yaml:"llm"`
	Safety   SafetyConfig   `yaml:"safety"`
	Store    StoreConfig    `yaml:"store"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Chart    ChartConfig    `yaml:"chart"`
}

// LLMConfig selects the language model used by every LLM-backed stage.
type LLMConfig struct {
	Provider  string `yaml:"provider" env:"LLM_PROVIDER" env-default:"openai"`
	Endpoint  string `yaml:"endpoint" env:"LLM_ENDPOINT" env-default:""` // Provider default if empty
	Model     string `yaml:"model" env:"LLM_MODEL" env-default:"gpt-4o"`
	APIKey    string `yaml:"-" env:"LLM_API_KEY"` // Secret - not in YAML
	MaxTokens int    `yaml:"max_tokens" env:"LLM_MAX_TOKENS" env-default:"2048"`

	// MaxRetries bounds retries of one provider call on rate limits and 5xx.
	MaxRetries int                      `yaml:"max_retries" env:"LLM_MAX_RETRIES" env-default:"3"`
	Breaker    llm.CircuitBreakerConfig `yaml:"breaker"`
}

// ClientConfig converts to the llm package's config.
func (c *LLMConfig) ClientConfig() *llm.Config {
	return &llm.Config{
		Provider:  c.Provider,
		Endpoint:  c.Endpoint,
		Model:     c.Model,
		APIKey:    c.APIKey,
		MaxTokens: c.MaxTokens,
	}
}

// SafetyConfig configures the two screening checks. Both run unless disabled.
type SafetyConfig struct {
	Moderation ModerationConfig `yaml:"moderation"`
	Jailbreak  JailbreakConfig  `yaml:"jailbreak"`
}

// ModerationConfig configures the harmful-content check.
type ModerationConfig struct {
	Disabled bool          `yaml:"disabled" env:"MODERATION_DISABLED"`
	Endpoint string        `yaml:"endpoint" env:"MODERATION_ENDPOINT" env-default:""`
	Model    string        `yaml:"model" env:"MODERATION_MODEL" env-default:"omni-moderation-latest"`
	APIKey   string        `yaml:"-" env:"OPENAI_API_KEY"` // Secret - not in YAML
	OnError  string        `yaml:"on_error" env:"MODERATION_ON_ERROR" env-default:"deny"`
	Timeout  time.Duration `yaml:"timeout" env:"MODERATION_TIMEOUT" env-default:"10s"`
}

// JailbreakConfig configures the prompt-injection check.
type JailbreakConfig struct {
	Disabled  bool          `yaml:"disabled" env:"JAILBREAK_DISABLED"`
	Endpoint  string        `yaml:"endpoint" env:"JAILBREAK_ENDPOINT" env-default:""`
	Model     string        `yaml:"model" env:"JAILBREAK_MODEL" env-default:""`
	Token     string        `yaml:"-" env:"HF_TOKEN"` // Secret - not in YAML
	Threshold float64       `yaml:"threshold" env:"JAILBREAK_THRESHOLD" env-default:"0.5"`
	OnError   string        `yaml:"on_error" env:"JAILBREAK_ON_ERROR" env-default:"allow"`
	Timeout   time.Duration `yaml:"timeout" env:"JAILBREAK_TIMEOUT" env-default:"10s"`
}

// StoreConfig lists the analytical stores questions can run against.
type StoreConfig struct {
	// Default names the backend used when a request does not pick one.
	Default string `yaml:"default" env:"STORE_BACKEND" env-default:""`
	// LocalPath is the SQLite file used when no backends are configured.
	LocalPath string          `yaml:"local_path" env:"LOCAL_STORE_PATH" env-default:"data/swine.db"`
	Backends  []BackendConfig `yaml:"backends"`
}

// BackendConfig is one named store. Options are passed to the adapter as-is,
// except that the password is read from the environment.
type BackendConfig struct {
	Name    string         `yaml:"name"`
	Type    string         `yaml:"type"`
	Options map[string]any `yaml:"options"`
	// PasswordEnv names the environment variable holding the password.
	// Defaults to <NAME>_PASSWORD.
	PasswordEnv string `yaml:"password_env"`
}

// knownBackendTypes are the adapter types compiled into the binary.
var knownBackendTypes = []string{"postgres", "sqlserver", "sqlite", "duckdb"}

// PasswordVar returns the environment variable holding the backend password.
func (b *BackendConfig) PasswordVar() string {
	if b.PasswordEnv != "" {
		return b.PasswordEnv
	}
	name := strings.ToUpper(strings.NewReplacer("-", "_", ".", "_", " ", "_").Replace(b.Name))
	return name + "_PASSWORD"
}

// Settings returns the adapter options with the password filled in from the
// environment and loopback hosts resolved for Docker.
func (b *BackendConfig) Settings() map[string]any {
	out := make(map[string]any, len(b.Options)+1)
	for k, v := range b.Options {
		out[k] = v
	}
	if host, ok := out["host"].(string); ok {
		out["host"] = ResolveHostForDocker(host)
	}
	if pw := os.Getenv(b.PasswordVar()); pw != "" {
		out["password"] = pw
	}
	return out
}

// PipelineConfig holds stage timeouts and row bounds.
type PipelineConfig struct {
	Timeouts TimeoutConfig `yaml:"timeouts"`

	AnalysisDefaultLimit int `yaml:"analysis_default_limit" env:"ANALYSIS_DEFAULT_LIMIT" env-default:"10"`
	AnalysisMaxLimit     int `yaml:"analysis_max_limit" env:"ANALYSIS_MAX_LIMIT" env-default:"100"`
	ChartDefaultLimit    int `yaml:"chart_default_limit" env:"CHART_DEFAULT_LIMIT" env-default:"50"`
	ChartMaxLimit        int `yaml:"chart_max_limit" env:"CHART_MAX_LIMIT" env-default:"200"`
}

// TimeoutConfig bounds each pipeline stage. Zero disables a bound.
type TimeoutConfig struct {
	Safety    time.Duration `yaml:"safety" env:"TIMEOUT_SAFETY" env-default:"20s"`
	Intent    time.Duration `yaml:"intent" env:"TIMEOUT_INTENT" env-default:"20s"`
	Translate time.Duration `yaml:"translate" env:"TIMEOUT_TRANSLATE" env-default:"45s"`
	Execute   time.Duration `yaml:"execute" env:"TIMEOUT_EXECUTE" env-default:"60s"`
	Interpret time.Duration `yaml:"interpret" env:"TIMEOUT_INTERPRET" env-default:"60s"`
	Specify   time.Duration `yaml:"specify" env:"TIMEOUT_SPECIFY" env-default:"30s"`
}

// ChartConfig selects how chart specifications are produced.
type ChartConfig struct {
	// Specifier is "llm" or "rubric".
	Specifier string `yaml:"specifier" env:"CHART_SPECIFIER" env-default:"llm"`
	// ServiceURL is a remote specification service tried before the local
	// specifier. Empty disables it.
	ServiceURL string `yaml:"service_url" env:"CHART_SPEC_SERVICE_URL" env-default:""`
	// AllowedServiceURLs is a comma-separated list of further services an
	// API or MCP caller may name in spec_service_url. ServiceURL is always
	// allowed.
	AllowedServiceURLs string `yaml:"allowed_service_urls" env:"CHART_ALLOWED_SERVICE_URLS" env-default:""`
}

// SpecServiceURLs returns ServiceURL and AllowedServiceURLs without trailing
// slashes.
func (c ChartConfig) SpecServiceURLs() []string {
	var out []string
	for _, u := range append([]string{c.ServiceURL}, strings.Split(c.AllowedServiceURLs, ",")...) {
		if u = strings.TrimRight(strings.TrimSpace(u), "/"); u != "" {
			out = append(out, u)
		}
	}
	return out
}

// Load reads configuration from path with environment variable overrides.
// A missing file at the default path is not an error: configuration then
// comes from the environment alone. The version parameter is injected at
// build time and set on the returned Config.
func Load(path, version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if path == "" {
		path = DefaultPath
	}
	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else if path != DefaultPath || !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	} else if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Auto-derive BaseURL from Port if not explicitly set
	// Use HTTPS scheme if TLS is configured
	if cfg.BaseURL == "" {
		scheme := "http"
		if cfg.TLSCertPath != "" {
			scheme = "https"
		}
		cfg.BaseURL = (&url.URL{
			Scheme: scheme,
			Host:   "localhost:" + cfg.Port,
		}).String()
	}

	return cfg, nil
}

// applyDefaults fills values that depend on other fields.
func (c *Config) applyDefaults() {
	c.LLM.Provider = strings.ToLower(strings.TrimSpace(c.LLM.Provider))
	if c.LLM.Endpoint == "" && (c.LLM.Provider == "" || c.LLM.Provider == llm.ProviderOpenAI) {
		c.LLM.Endpoint = "https://api.openai.com/v1"
	}
	if c.Safety.Moderation.APIKey == "" && c.LLM.Provider == llm.ProviderOpenAI {
		c.Safety.Moderation.APIKey = c.LLM.APIKey
	}

	if len(c.Store.Backends) == 0 {
		c.Store.Backends = []BackendConfig{{
			Name:    "local",
			Type:    "sqlite",
			Options: map[string]any{"path": c.Store.LocalPath},
		}}
	}
	if c.Store.Default == "" {
		c.Store.Default = c.Store.Backends[0].Name
	}
	c.Chart.Specifier = strings.ToLower(strings.TrimSpace(c.Chart.Specifier))
}

// Validate checks names, thresholds and bounds.
func (c *Config) Validate() error {
	var errs []error

	if !slices.Contains(llm.Providers, c.LLM.Provider) {
		errs = append(errs, fmt.Errorf("llm.provider %q is not one of %s", c.LLM.Provider, strings.Join(llm.Providers, ", ")))
	}
	if c.LLM.Model == "" {
		errs = append(errs, errors.New("llm.model is required"))
	}
	if c.LLM.MaxRetries < 0 {
		errs = append(errs, errors.New("llm.max_retries must not be negative"))
	}

	for name, policy := range map[string]string{
		"safety.moderation.on_error": c.Safety.Moderation.OnError,
		"safety.jailbreak.on_error":  c.Safety.Jailbreak.OnError,
	} {
		if p := strings.ToLower(strings.TrimSpace(policy)); p != "allow" && p != "deny" {
			errs = append(errs, fmt.Errorf("%s %q must be allow or deny", name, policy))
		}
	}
	if t := c.Safety.Jailbreak.Threshold; t <= 0 || t > 1 {
		errs = append(errs, fmt.Errorf("safety.jailbreak.threshold %v must be in (0, 1]", t))
	}

	errs = append(errs, c.validateStore()...)

	p := c.Pipeline
	if p.AnalysisDefaultLimit <= 0 || p.AnalysisDefaultLimit > p.AnalysisMaxLimit {
		errs = append(errs, fmt.Errorf("pipeline analysis limits: need 0 < default (%d) <= max (%d)", p.AnalysisDefaultLimit, p.AnalysisMaxLimit))
	}
	if p.ChartDefaultLimit <= 0 || p.ChartDefaultLimit > p.ChartMaxLimit {
		errs = append(errs, fmt.Errorf("pipeline chart limits: need 0 < default (%d) <= max (%d)", p.ChartDefaultLimit, p.ChartMaxLimit))
	}
	for name, d := range map[string]time.Duration{
		"safety": p.Timeouts.Safety, "intent": p.Timeouts.Intent, "translate": p.Timeouts.Translate,
		"execute": p.Timeouts.Execute, "interpret": p.Timeouts.Interpret, "specify": p.Timeouts.Specify,
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("pipeline.timeouts.%s must not be negative", name))
		}
	}

	if c.Chart.Specifier != "llm" && c.Chart.Specifier != "rubric" {
		errs = append(errs, fmt.Errorf("chart.specifier %q must be llm or rubric", c.Chart.Specifier))
	}
	if c.Chart.ServiceURL != "" {
		if u, err := url.Parse(c.Chart.ServiceURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("chart.service_url %q is not an absolute URL", c.Chart.ServiceURL))
		}
	}

	if err := c.validateTLS(); err != nil {
		errs = append(errs, fmt.Errorf("invalid TLS configuration: %w", err))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func (c *Config) validateStore() []error {
	var errs []error
	seen := make(map[string]bool, len(c.Store.Backends))
	for i, b := range c.Store.Backends {
		switch {
		case b.Name == "":
			errs = append(errs, fmt.Errorf("store.backends[%d].name is required", i))
		case seen[b.Name]:
			errs = append(errs, fmt.Errorf("store.backends: duplicate name %q", b.Name))
		}
		seen[b.Name] = true
		if !slices.Contains(knownBackendTypes, b.Type) {
			errs = append(errs, fmt.Errorf("store.backends[%d].type %q is not one of %s", i, b.Type, strings.Join(knownBackendTypes, ", ")))
		}
	}
	if !seen[c.Store.Default] {
		errs = append(errs, fmt.Errorf("store.default %q is not a configured backend", c.Store.Default))
	}
	return errs
}

// BackendNames returns the configured backend names in declaration order.
func (c *StoreConfig) BackendNames() []string {
	names := make([]string, len(c.Backends))
	for i, b := range c.Backends {
		names[i] = b.Name
	}
	return names
}

// validateTLS ensures TLS configuration is valid if provided.
// Both cert and key must be provided together, and files must exist and be readable.
func (c *Config) validateTLS() error {
	certSet := c.TLSCertPath != ""
	keySet := c.TLSKeyPath != ""

	// Both must be provided together or both empty
	if certSet != keySet {
		return fmt.Errorf("both tls_cert_path and tls_key_path must be provided together")
	}

	// If both provided, verify files exist (actual readability checked by tls.LoadX509KeyPair at startup)
	if certSet {
		if _, err := os.Stat(c.TLSCertPath); err != nil {
			return fmt.Errorf("TLS cert file does not exist: %w", err)
		}
		if _, err := os.Stat(c.TLSKeyPath); err != nil {
			return fmt.Errorf("TLS key file does not exist: %w", err)
		}
	}

	return nil
}

// Origins splits AllowedOrigins into a list.
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
