package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"gopkg.in/yaml.v3"

	"key2pay-backend/internal/gateway"
)

// EnvPrefix is prepended to every variable name read by EnvDefaults.
const EnvPrefix = "KEY2PAY_"

type Config struct {
	Env                string        `env:"ENV"`
	Port               int           `env:"PORT"`
	LogJSON            bool          `env:"LOG_JSON"`
	Debug              bool          `env:"DEBUG"`
	DBDriver           string        `env:"DB_DRIVER"`
	DatabaseURL        string        `env:"DATABASE_URL"`
	PublicBaseURL      string        `env:"PUBLIC_BASE_URL"`
	ShopName           string        `env:"SHOP_NAME"`
	JWTSecret          string        `env:"JWT_SECRET"`
	GatewaysFile       string        `env:"GATEWAYS_FILE"`
	APIBaseURL         string        `env:"API_BASE_URL"`
	MerchantID         string        `env:"MERCHANT_ID"`
	Password           string        `env:"PASSWORD"`
	DisableURLFallback bool          `env:"DISABLE_URL_FALLBACK"`
	UnknownCodePolicy  string        `env:"UNKNOWN_CODE_POLICY"`
	HTTPTimeout        time.Duration `env:"HTTP_TIMEOUT"`
}

func Default() Config {
	return Config{
		Env:               "dev",
		Port:              5000,
		LogJSON:           true,
		DBDriver:          "memory",
		PublicBaseURL:     "http://127.0.0.1:5000",
		ShopName:          "Key2Pay Shop",
		APIBaseURL:        gateway.DefaultAPIBaseURL,
		UnknownCodePolicy: "approve",
		HTTPTimeout:       60 * time.Second,
	}
}

// EnvDefaults overlays KEY2PAY_* environment variables on Default.
func EnvDefaults() (Config, error) {
	c := Default()
	if err := env.Parse(&c, env.Options{Prefix: EnvPrefix}); err != nil {
		return c, fmt.Errorf("failed to parse environment: %w", err)
	}
	return c, nil
}

func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	switch c.DBDriver {
	case "memory":
	case "postgres", "pgx":
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return fmt.Errorf("database URL is required for driver %s", c.DBDriver)
		}
	default:
		return fmt.Errorf("unknown database driver %q", c.DBDriver)
	}
	if u, err := url.Parse(c.PublicBaseURL); err != nil || u.Host == "" {
		return fmt.Errorf("public base URL must be an absolute URL")
	}
	switch c.UnknownCodePolicy {
	case "approve", "hold":
	default:
		return fmt.Errorf("unknown code policy must be approve or hold, got %q", c.UnknownCodePolicy)
	}
	return nil
}

// Settings are the processor settings shared by gateways without their own.
func (c Config) Settings() gateway.Settings {
	return gateway.Settings{
		APIBaseURL:         c.APIBaseURL,
		MerchantID:         c.MerchantID,
		Password:           c.Password,
		DisableURLFallback: c.DisableURLFallback,
		Debug:              c.Debug,
	}
}

// GatewayConfig is one entry of the gateways file. Empty settings inherit the
// environment values.
type GatewayConfig struct {
	ID                 string `yaml:"id"`
	Method             string `yaml:"method"`
	Title              string `yaml:"title"`
	Enabled            *bool  `yaml:"enabled"`
	APIBaseURL         string `yaml:"api_base_url"`
	MerchantID         string `yaml:"merchant_id"`
	Password           string `yaml:"password"`
	DisableURLFallback *bool  `yaml:"disable_url_fallback"`
	Debug              *bool  `yaml:"debug"`
}

type gatewaysFile struct {
	Gateways []GatewayConfig `yaml:"gateways"`
}

// LoadGateways reads the gateways file at path.
func LoadGateways(path string) ([]GatewayConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read gateways file: %w", err)
	}
	var f gatewaysFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to unmarshal gateways file: %w", err)
	}
	return f.Gateways, nil
}

// Instances resolves the configured gateway instances. Without a gateways file
// every built-in method is enabled with the environment credentials.
func (c Config) Instances() ([]gateway.Instance, error) {
	base := c.Settings()
	if c.GatewaysFile == "" {
		out := make([]gateway.Instance, 0, 3)
		for _, m := range gateway.All() {
			out = append(out, gateway.Instance{ID: m.ID, Title: m.Title, Enabled: true, Method: m, Settings: base})
		}
		return out, base.Validate()
	}

	entries, err := LoadGateways(c.GatewaysFile)
	if err != nil {
		return nil, err
	}
	out := make([]gateway.Instance, 0, len(entries))
	seen := map[string]bool{}
	for i, e := range entries {
		method := e.Method
		if method == "" {
			method = e.ID
		}
		m, ok := gateway.Lookup(strings.ToLower(method))
		if !ok {
			return nil, fmt.Errorf("gateway %d: unknown method %q", i, method)
		}
		in := gateway.Instance{ID: strings.ToLower(e.ID), Title: e.Title, Enabled: true, Method: m, Settings: base}
		if in.ID == "" {
			in.ID = m.ID
		}
		if seen[in.ID] {
			return nil, fmt.Errorf("gateway %q is configured twice", in.ID)
		}
		seen[in.ID] = true
		if in.Title == "" {
			in.Title = m.Title
		}
		if e.Enabled != nil {
			in.Enabled = *e.Enabled
		}
		if e.APIBaseURL != "" {
			in.Settings.APIBaseURL = e.APIBaseURL
		}
		if e.MerchantID != "" {
			in.Settings.MerchantID = e.MerchantID
		}
		if e.Password != "" {
			in.Settings.Password = e.Password
		}
		if e.DisableURLFallback != nil {
			in.Settings.DisableURLFallback = *e.DisableURLFallback
		}
		if e.Debug != nil {
			in.Settings.Debug = *e.Debug
		}
		if err := in.Settings.Validate(); err != nil {
			return nil, fmt.Errorf("gateway %q: %w", in.ID, err)
		}
		out = append(out, in)
	}
	return out, nil
}
