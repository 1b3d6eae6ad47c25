package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the full worker configuration. Values resolve in three
// layers: compiled defaults, then the optional YAML file, then environment
// variables.
type Config struct {
	// Redis connection for the command stream and the volatile status store
	RedisHost string `yaml:"redis_host"`
	RedisPort int    `yaml:"redis_port"`
	RedisDB   int    `yaml:"redis_db"`

	// Service endpoints
	BackendAPIURL  string `yaml:"backend_api_url"`
	GatewayBaseURL string `yaml:"gateway_base_url"`
	DockerRegistry string `yaml:"docker_registry"`
	AuthServiceURL string `yaml:"auth_service_url"`

	// Cluster placement
	Namespace string `yaml:"k8s_namespace"`
	AgentPort int    `yaml:"agent_port"`

	// Secrets and feature flags passed through to deployed agents
	LLMAPIKey        string `yaml:"llm_api_key"`
	TracingEnabled   bool   `yaml:"tracing_enabled"`
	InjectionEnabled bool   `yaml:"injection_enabled"`
	OTLPEndpoint     string `yaml:"otel_exporter_otlp_endpoint"`

	// External helper binaries
	InjectorBin      string `yaml:"injector_bin"`
	CardGeneratorBin string `yaml:"card_generator_bin"`

	// Worker identity and local state
	Hostname    string `yaml:"hostname"`
	JournalPath string `yaml:"journal_path"`
	MetricsAddr string `yaml:"metrics_addr"`

	// Build wait loop
	BuildPollInterval time.Duration `yaml:"build_poll_interval"`
	BuildTimeout      time.Duration `yaml:"build_timeout"`

	// Logging
	LogLevel string `yaml:"log_level"`
	LogJSON  bool   `yaml:"log_json"`
}

// Load resolves configuration from defaults, the optional YAML file named
// by SLIPWAY_CONFIG, and the environment.
func Load() (*Config, error) {
	return LoadWithFile(os.Getenv("SLIPWAY_CONFIG"))
}

// LoadWithFile is Load with an explicit config file path. An empty path
// skips the file layer.
func LoadWithFile(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "slipway-worker"
	}
	return &Config{
		RedisHost:         "localhost",
		RedisPort:         6379,
		RedisDB:           0,
		BackendAPIURL:     "http://backend-api:8000",
		GatewayBaseURL:    "http://localhost",
		DockerRegistry:    "registry.local:5000",
		AuthServiceURL:    "http://auth-service:8000",
		Namespace:         "agents",
		AgentPort:         8080,
		InjectorBin:       "slipway-trace-inject",
		CardGeneratorBin:  "slipway-cardgen",
		Hostname:          hostname,
		JournalPath:       "/var/lib/slipway/journal.db",
		MetricsAddr:       ":9090",
		BuildPollInterval: 5 * time.Second,
		BuildTimeout:      10 * time.Minute,
		LogLevel:          "info",
		LogJSON:           true,
	}
}

func (c *Config) applyEnv() {
	c.RedisHost = envStr("REDIS_HOST", c.RedisHost)
	c.RedisPort = envInt("REDIS_PORT", c.RedisPort)
	c.RedisDB = envInt("REDIS_DB", c.RedisDB)
	c.BackendAPIURL = envStr("BACKEND_API_URL", c.BackendAPIURL)
	c.GatewayBaseURL = envStr("GATEWAY_BASE_URL", c.GatewayBaseURL)
	c.DockerRegistry = envStr("DOCKER_REGISTRY", c.DockerRegistry)
	c.AuthServiceURL = envStr("AUTH_SERVICE_URL", c.AuthServiceURL)
	c.Namespace = envStr("K8S_NAMESPACE", c.Namespace)
	c.AgentPort = envInt("AGENT_PORT", c.AgentPort)
	c.LLMAPIKey = envStr("LLM_API_KEY", c.LLMAPIKey)
	c.TracingEnabled = envBool("TRACING_ENABLED", c.TracingEnabled)
	c.InjectionEnabled = envBool("INJECTION_ENABLED", c.InjectionEnabled)
	c.OTLPEndpoint = envStr("OTEL_EXPORTER_OTLP_ENDPOINT", c.OTLPEndpoint)
	c.InjectorBin = envStr("TRACE_INJECTOR_BIN", c.InjectorBin)
	c.CardGeneratorBin = envStr("AGENTCARD_GENERATOR_BIN", c.CardGeneratorBin)
	c.Hostname = envStr("HOSTNAME", c.Hostname)
	c.JournalPath = envStr("JOURNAL_PATH", c.JournalPath)
	c.MetricsAddr = envStr("METRICS_ADDR", c.MetricsAddr)
	c.BuildPollInterval = envDuration("BUILD_POLL_INTERVAL", c.BuildPollInterval)
	c.BuildTimeout = envDuration("BUILD_TIMEOUT", c.BuildTimeout)
	c.LogLevel = envStr("LOG_LEVEL", c.LogLevel)
	c.LogJSON = envBool("LOG_JSON", c.LogJSON)
}

// Validate reports every configuration defect at once rather than stopping
// at the first.
func (c *Config) Validate() error {
	var errs []error

	if c.RedisHost == "" {
		errs = append(errs, errors.New("redis host must not be empty"))
	}
	if c.RedisPort < 1 || c.RedisPort > 65535 {
		errs = append(errs, fmt.Errorf("redis port %d out of range", c.RedisPort))
	}
	if c.RedisDB < 0 {
		errs = append(errs, fmt.Errorf("redis db %d must not be negative", c.RedisDB))
	}
	if err := checkURL("backend api url", c.BackendAPIURL); err != nil {
		errs = append(errs, err)
	}
	if err := checkURL("gateway base url", c.GatewayBaseURL); err != nil {
		errs = append(errs, err)
	}
	if c.DockerRegistry == "" {
		errs = append(errs, errors.New("docker registry must not be empty"))
	}
	if c.Namespace == "" {
		errs = append(errs, errors.New("namespace must not be empty"))
	}
	if c.AgentPort < 1 || c.AgentPort > 65535 {
		errs = append(errs, fmt.Errorf("agent port %d out of range", c.AgentPort))
	}
	if c.BuildPollInterval <= 0 {
		errs = append(errs, errors.New("build poll interval must be positive"))
	}
	if c.BuildTimeout <= 0 {
		errs = append(errs, errors.New("build timeout must be positive"))
	}
	if c.BuildTimeout < c.BuildPollInterval {
		errs = append(errs, errors.New("build timeout must not be shorter than the poll interval"))
	}

	return errors.Join(errs...)
}

// RedisAddr returns the host:port address of the Redis instance
func (c *Config) RedisAddr() string {
	return net.JoinHostPort(c.RedisHost, strconv.Itoa(c.RedisPort))
}

func checkURL(name, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s must not be empty", name)
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s %q is not a valid URL", name, raw)
	}
	return nil
}

func envStr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		switch strings.ToLower(v) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		// plain integers are treated as seconds
		if n, err := strconv.Atoi(v); err == nil {
			return time.Duration(n) * time.Second
		}
	}
	return fallback
}
