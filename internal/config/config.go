package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig      `yaml:"server"`
	Tray      TrayConfig        `yaml:"tray"`
	Backend   BackendConfig     `yaml:"backend"`
	Drawer    DrawerConfig      `yaml:"drawer"`
	Session   SessionConfig     `yaml:"session"`
	Registers map[string]string `yaml:"registers"`
	Page      PageConfig        `yaml:"page"`
	Browser   BrowserConfig     `yaml:"browser"`

	// ConfigPath is the path to the config file (not serialized)
	ConfigPath string `yaml:"-"`
}

// ServerConfig represents the local control API configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// TrayConfig describes how to reach the local tray daemon
type TrayConfig struct {
	URL            string        `yaml:"url"`
	ProbeTimeout   time.Duration `yaml:"probe_timeout"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	CallTimeout    time.Duration `yaml:"call_timeout"`
	Retries        int           `yaml:"retries"`
	RetryDelay     time.Duration `yaml:"retry_delay"`
}

// BackendConfig represents the signing/logging backend
type BackendConfig struct {
	Endpoint        string        `yaml:"endpoint"`
	APIKey          string        `yaml:"api_key"`
	Tenant          string        `yaml:"tenant"`
	CertificatePath string        `yaml:"certificate_path"`
	SignPath        string        `yaml:"sign_path"`
	LogErrorPath    string        `yaml:"log_error_path"`
	LogPrinterPath  string        `yaml:"log_printer_path"`
	Timeout         time.Duration `yaml:"timeout"`
	UserAgent       string        `yaml:"user_agent,omitempty"`
}

// DrawerConfig controls the drawer workflow
type DrawerConfig struct {
	ResumeDelay time.Duration `yaml:"resume_delay"`
	AutoSubmit  bool          `yaml:"auto_submit"`
	HistorySize int           `yaml:"history_size"`
}

// SessionConfig holds the till session defaults
type SessionConfig struct {
	RegisterID string `yaml:"register_id"`
}

// PageConfig describes where register information lives on POS pages
type PageConfig struct {
	VisibleRegisterSelector string       `yaml:"visible_register_selector"`
	HiddenRegisterSelector  string       `yaml:"hidden_register_selector"`
	WriteoffSelector        string       `yaml:"writeoff_selector"`
	DisableDefaultRules     bool         `yaml:"disable_default_rules"`
	Rules                   []RuleConfig `yaml:"rules"`
}

// RuleConfig is a page rule declared in the config file
type RuleConfig struct {
	URLPattern                  string `yaml:"url_pattern"`
	Regexp                      bool   `yaml:"regexp,omitempty"`
	Selector                    string `yaml:"selector"`
	DrawerButtonText            string `yaml:"drawer_button_text"`
	OriginalButtonText          string `yaml:"original_button_text"`
	Description                 string `yaml:"description,omitempty"`
	RequireSessionRegisterMatch bool   `yaml:"require_session_register_match,omitempty"`
	SkipIfWriteoff              bool   `yaml:"skip_if_writeoff,omitempty"`
}

// BrowserConfig configures the DevTools attachment to the kiosk browser
type BrowserConfig struct {
	CDPURL string `yaml:"cdp_url"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8790,
			Host: "127.0.0.1",
		},
		Tray: TrayConfig{
			URL:            "ws://localhost:8182",
			ProbeTimeout:   3 * time.Second,
			ConnectTimeout: 10 * time.Second,
			CallTimeout:    15 * time.Second,
			Retries:        2,
			RetryDelay:     1 * time.Second,
		},
		Backend: BackendConfig{
			Endpoint:        "https://api.jetsetgo.world/api/v1/till",
			CertificatePath: "/qztray/certificate",
			SignPath:        "/qztray/sign",
			LogErrorPath:    "/qztray/log-error",
			LogPrinterPath:  "/qztray/log-printers",
			Timeout:         10 * time.Second,
			UserAgent:       "tillbridge",
		},
		Drawer: DrawerConfig{
			ResumeDelay: 500 * time.Millisecond,
			AutoSubmit:  true,
			HistorySize: 50,
		},
		Registers: map[string]string{},
		Page: PageConfig{
			VisibleRegisterSelector: "select[name=register_id]",
			HiddenRegisterSelector:  "input[type=hidden][name=register_id]",
			WriteoffSelector:        "input[name=writeoff]",
		},
	}
}

// Load loads configuration from the config file
func Load() (*Config, error) {
	// Try to find config file in common locations
	configPaths := []string{
		"config.yaml",
		"configs/config.yaml",
		"/etc/tillbridge/config.yaml",
	}

	var data []byte
	var err error
	var loadedPath string

	for _, path := range configPaths {
		data, err = os.ReadFile(path)
		if err == nil {
			loadedPath = path
			break
		}
	}

	if err != nil {
		return nil, err
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", loadedPath, err)
	}

	cfg.ConfigPath = loadedPath
	return cfg, nil
}

// LoadFile loads configuration from an explicit path
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.ConfigPath = path
	return cfg, nil
}

// Parse decodes yaml onto the defaults
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if cfg.Registers == nil {
		cfg.Registers = map[string]string{}
	}
	return cfg, nil
}

// ApplyEnv overlays TILLBRIDGE_* variables. Files are read with godotenv
// first; variables already set in the environment win.
func (c *Config) ApplyEnv(envFiles ...string) error {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}

	if v := os.Getenv("TILLBRIDGE_API_KEY"); v != "" {
		c.Backend.APIKey = v
	}
	if v := os.Getenv("TILLBRIDGE_TENANT"); v != "" {
		c.Backend.Tenant = v
	}
	if v := os.Getenv("TILLBRIDGE_BACKEND_URL"); v != "" {
		c.Backend.Endpoint = v
	}
	if v := os.Getenv("TILLBRIDGE_TRAY_URL"); v != "" {
		c.Tray.URL = v
	}
	if v := os.Getenv("TILLBRIDGE_CDP_URL"); v != "" {
		c.Browser.CDPURL = v
	}
	if v := os.Getenv("TILLBRIDGE_REGISTER_ID"); v != "" {
		c.Session.RegisterID = v
	}
	return nil
}

// Validate checks the values that would otherwise fail late
func (c *Config) Validate() error {
	var errs []error

	if u, err := url.Parse(c.Tray.URL); err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
		errs = append(errs, fmt.Errorf("tray.url must be a ws:// or wss:// URL, got %q", c.Tray.URL))
	}
	if u, err := url.Parse(c.Backend.Endpoint); err != nil || u.Host == "" {
		errs = append(errs, fmt.Errorf("backend.endpoint must be an absolute URL, got %q", c.Backend.Endpoint))
	}
	if c.Tray.ProbeTimeout <= 0 {
		errs = append(errs, errors.New("tray.probe_timeout must be positive"))
	}
	if c.Tray.Retries < 0 {
		errs = append(errs, errors.New("tray.retries must not be negative"))
	}
	if c.Drawer.ResumeDelay < 0 {
		errs = append(errs, errors.New("drawer.resume_delay must not be negative"))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	for i, r := range c.Page.Rules {
		if r.URLPattern == "" || r.Selector == "" {
			errs = append(errs, fmt.Errorf("page.rules[%d]: url_pattern and selector are required", i))
		}
	}

	return errors.Join(errs...)
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
