package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the whole process configuration, loaded once at startup and
// threaded through constructors. Nothing reads the environment at call time;
// env vars only override secrets here, inside Load.
type Config struct {
	App struct {
		// dev | staging | prod
		Env      string `yaml:"env"`
		LogLevel string `yaml:"log_level"`
	} `yaml:"app"`

	Server struct {
		Addr               string   `yaml:"addr"`
		BaseURL            string   `yaml:"base_url"`
		CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
	} `yaml:"server"`

	Storage struct {
		// postgres | memory
		Driver   string `yaml:"driver"`
		DSN      string `yaml:"dsn"`
		Postgres struct {
			MaxOpenConns    int    `yaml:"max_open_conns"`
			MinIdleConns    int    `yaml:"min_idle_conns"`
			ConnMaxLifetime string `yaml:"conn_max_lifetime"`
		} `yaml:"postgres"`
		Migrate bool `yaml:"migrate"`
	} `yaml:"storage"`

	Cache struct {
		// memory | redis
		Kind  string `yaml:"kind"`
		Redis struct {
			Addr   string `yaml:"addr"`
			DB     int    `yaml:"db"`
			Prefix string `yaml:"prefix"`
		} `yaml:"redis"`
		Memory struct {
			DefaultTTL time.Duration `yaml:"default_ttl"`
		} `yaml:"memory"`
	} `yaml:"cache"`

	Tokens struct {
		Issuer     string        `yaml:"issuer"`
		AccessTTL  time.Duration `yaml:"access_ttl"`
		RefreshTTL time.Duration `yaml:"refresh_ttl"`
		// SigningKey is base64(ed25519 seed). Overridden by BRICKS_SIGNING_KEY.
		SigningKey string `yaml:"signing_key"`
		// StrictVerify makes the auth middleware consult the store for family
		// liveness on every request instead of trusting signature+expiry alone.
		StrictVerify bool `yaml:"strict_verify"`
	} `yaml:"tokens"`

	Auth struct {
		Cookie struct {
			Name     string `yaml:"name"`
			Domain   string `yaml:"domain"`
			SameSite string `yaml:"samesite"`
			Secure   bool   `yaml:"secure"`
		} `yaml:"cookie"`
		VerifyTTL time.Duration `yaml:"verify_ttl"`
		ResetTTL  time.Duration `yaml:"reset_ttl"`
		Password  struct {
			MinLength int `yaml:"min_length"`
		} `yaml:"password"`
	} `yaml:"auth"`

	Quota struct {
		// Plan name -> max live resources per owner. 0 or missing = unbounded.
		Projects map[string]int `yaml:"projects"`
	} `yaml:"quota"`

	Rate struct {
		Enabled bool `yaml:"enabled"`
		Login   struct {
			Limit  int           `yaml:"limit"`
			Window time.Duration `yaml:"window"`
		} `yaml:"login"`
		Forgot struct {
			Limit  int           `yaml:"limit"`
			Window time.Duration `yaml:"window"`
		} `yaml:"forgot"`
	} `yaml:"rate"`

	Email struct {
		// smtp | log
		Provider string `yaml:"provider"`
		BaseURL  string `yaml:"base_url"`
		SMTP     struct {
			Host               string `yaml:"host"`
			Port               int    `yaml:"port"`
			Username           string `yaml:"username"`
			Password           string `yaml:"password"`
			From               string `yaml:"from"`
			TLS                string `yaml:"tls"` // auto | starttls | ssl | none
			InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
		} `yaml:"smtp"`
	} `yaml:"email"`

	Captcha struct {
		Enabled   bool   `yaml:"enabled"`
		VerifyURL string `yaml:"verify_url"`
		Secret    string `yaml:"secret"`
		Hostname  string `yaml:"hostname"`
	} `yaml:"captcha"`

	Providers struct {
		StateTTL time.Duration `yaml:"state_ttl"`
		Google   struct {
			Enabled      bool     `yaml:"enabled"`
			ClientID     string   `yaml:"client_id"`
			ClientSecret string   `yaml:"client_secret"`
			RedirectURL  string   `yaml:"redirect_url"`
			Scopes       []string `yaml:"scopes"`
		} `yaml:"google"`
		GitHub struct {
			Enabled      bool   `yaml:"enabled"`
			ClientID     string `yaml:"client_id"`
			ClientSecret string `yaml:"client_secret"`
			RedirectURL  string `yaml:"redirect_url"`
		} `yaml:"github"`
	} `yaml:"providers"`
}

// Load reads the YAML file, applies env overrides for secrets and fills
// defaults. It is the only place that touches os.Getenv.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	// Secrets come from env when present.
	overrideEnv(&c.Storage.DSN, "BRICKS_DSN")
	overrideEnv(&c.Tokens.SigningKey, "BRICKS_SIGNING_KEY")
	overrideEnv(&c.Email.SMTP.Password, "BRICKS_SMTP_PASSWORD")
	overrideEnv(&c.Captcha.Secret, "BRICKS_CAPTCHA_SECRET")
	overrideEnv(&c.Providers.Google.ClientSecret, "BRICKS_GOOGLE_CLIENT_SECRET")
	overrideEnv(&c.Providers.GitHub.ClientSecret, "BRICKS_GITHUB_CLIENT_SECRET")

	c.applyDefaults()
	return &c, nil
}

func overrideEnv(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = "http://localhost:8080"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "postgres"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.Memory.DefaultTTL == 0 {
		c.Cache.Memory.DefaultTTL = 10 * time.Minute
	}
	if c.Tokens.Issuer == "" {
		c.Tokens.Issuer = c.Server.BaseURL
	}
	if c.Tokens.AccessTTL == 0 {
		c.Tokens.AccessTTL = 15 * time.Minute
	}
	if c.Tokens.RefreshTTL == 0 {
		c.Tokens.RefreshTTL = 30 * 24 * time.Hour
	}
	if c.Auth.Cookie.Name == "" {
		c.Auth.Cookie.Name = "bricks_rt"
	}
	if c.Auth.Cookie.SameSite == "" {
		c.Auth.Cookie.SameSite = "lax"
	}
	if c.Auth.VerifyTTL == 0 {
		c.Auth.VerifyTTL = 24 * time.Hour
	}
	if c.Auth.ResetTTL == 0 {
		c.Auth.ResetTTL = time.Hour
	}
	if c.Auth.Password.MinLength == 0 {
		c.Auth.Password.MinLength = 8
	}
	if c.Email.Provider == "" {
		c.Email.Provider = "log"
	}
	if c.Email.BaseURL == "" {
		c.Email.BaseURL = c.Server.BaseURL
	}
	if c.Providers.StateTTL == 0 {
		c.Providers.StateTTL = 10 * time.Minute
	}
	if c.Rate.Login.Limit == 0 {
		c.Rate.Login.Limit = 10
	}
	if c.Rate.Login.Window == 0 {
		c.Rate.Login.Window = time.Minute
	}
	if c.Rate.Forgot.Limit == 0 {
		c.Rate.Forgot.Limit = 5
	}
	if c.Rate.Forgot.Window == 0 {
		c.Rate.Forgot.Window = 15 * time.Minute
	}
	if len(c.Providers.Google.Scopes) == 0 {
		c.Providers.Google.Scopes = []string{"openid", "email", "profile"}
	}
	if c.Quota.Projects == nil {
		c.Quota.Projects = map[string]int{"free": 3}
	}
}
