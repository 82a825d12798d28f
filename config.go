package janusproxy

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Name string `yaml:"name" env:"JANUS_PROXY_NAME" env-default:"janus-proxy"`

	Listen struct {
		Address string `yaml:"address" env:"JANUS_PROXY_LISTEN" env-default:":8188"`
		Path    string `yaml:"path" env:"JANUS_PROXY_PATH" env-default:"/"`
	} `yaml:"listen"`

	Status struct {
		Address string `yaml:"address" env:"JANUS_PROXY_STATUS_LISTEN" env-default:":8080"`
	} `yaml:"status"`

	Janus struct {
		URL    string `yaml:"url" env:"JANUS_URL" env-default:"ws://127.0.0.1:8188/"`
		Origin string `yaml:"origin" env:"JANUS_ORIGIN" env-default:"http://127.0.0.1/"`
	} `yaml:"janus"`

	CMAPI struct {
		BaseURL string        `yaml:"base_url" env:"CM_API_BASE_URL" env-required:"true"`
		Key     string        `yaml:"key" env:"CM_API_KEY"`
		Timeout time.Duration `yaml:"timeout" env:"CM_API_TIMEOUT" env-default:"5s"`
	} `yaml:"cm_api"`

	TransactionTimeout time.Duration `yaml:"transaction_timeout" env:"JANUS_PROXY_TRANSACTION_TIMEOUT" env-default:"30s"`
}

// LoadConfig reads path when given, then applies environment overrides and defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}

		return cfg, nil
	}

	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("config: read env: %w", err)
	}

	return cfg, nil
}

// ProxyOptions maps the configuration onto proxy options. The media API client and
// gateway dialer are left to the caller.
func (c *Config) ProxyOptions() Options {
	opts := DefaultOptions()
	if c.TransactionTimeout > 0 {
		opts.TransactionTimeout = c.TransactionTimeout
	}

	return opts
}
