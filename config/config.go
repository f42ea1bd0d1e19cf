// ABOUTME: Configuration loading for contact sources, router access and conversion rules
// ABOUTME: JSON file at an XDG path with defaults, .env loading and environment overrides
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/adrg/xdg"
	"github.com/harperreed/card2box/carddav"
	"github.com/harperreed/card2box/convert"
	"github.com/joho/godotenv"
)

// Source kinds.
const (
	SourceCardDAV = "carddav"
	SourceFiles   = "files"
	SourceGoogle  = "google"
)

// Config is the complete program configuration.
type Config struct {
	Source    SourceConfig    `json:"source"`
	FritzBox  FritzBoxConfig  `json:"fritzbox"`
	Phonebook PhonebookConfig `json:"phonebook"`
	Filters   convert.Filters `json:"filters"`
	Rules     convert.Rules   `json:"conversions"`
	Keypad    KeypadConfig    `json:"keypad"`
	LogLevel  string          `json:"log_level"`
	LogFormat string          `json:"log_format"`
	Database  string          `json:"database,omitempty"`
}

// SourceConfig selects where contacts come from.
type SourceConfig struct {
	Type    string         `json:"type"`
	CardDAV carddav.Config `json:"carddav"`
	Files   []string       `json:"files,omitempty"`
	// EmbedPhotos downloads photos that the source only links to.
	EmbedPhotos bool `json:"embed_photos"`
}

// FritzBoxConfig describes router access.
type FritzBoxConfig struct {
	URL            string    `json:"url"`
	User           string    `json:"user"`
	Password       string    `json:"password,omitempty"`
	Insecure       bool      `json:"insecure,omitempty"`
	TimeoutSeconds int       `json:"timeout_seconds"`
	Fritzfons      []int     `json:"fritzfons,omitempty"`
	QuickdialAlias bool      `json:"quickdial_alias,omitempty"`
	FTP            FTPConfig `json:"ftp"`
}

// FTPConfig controls the router's file server access.
type FTPConfig struct {
	Disabled bool   `json:"disabled"`
	Plain    bool   `json:"plain"`
	Host     string `json:"host,omitempty"`
}

// PhonebookConfig selects the target phonebook and photo location.
type PhonebookConfig struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	ImagePath string `json:"image_path"`
	ImageDir  string `json:"image_dir"`
	Ceiling   int    `json:"image_ceiling"`
}

// KeypadConfig overrides keypad rendering assets.
type KeypadConfig struct {
	Template string `json:"template,omitempty"`
	Font     string `json:"font,omitempty"`
}

// ConfigDir returns the XDG configuration directory.
func ConfigDir() string {
	return filepath.Join(xdg.ConfigHome, "card2box")
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

// Default returns a configuration with every default applied.
func Default() *Config {
	return &Config{
		Source: SourceConfig{Type: SourceCardDAV, EmbedPhotos: true},
		FritzBox: FritzBoxConfig{
			URL:            "http://fritz.box",
			TimeoutSeconds: 30,
		},
		Phonebook: PhonebookConfig{
			ID:        0,
			Name:      "Telefonbuch",
			ImagePath: "file:///var/media/ftp/FRITZ/fonpix/",
			ImageDir:  "/FRITZ/fonpix",
			Ceiling:   150,
		},
		Rules:     DefaultRules(),
		LogLevel:  "info",
		LogFormat: "console",
	}
}

// DefaultRules returns the conversion tables used when none are configured.
func DefaultRules() convert.Rules {
	return convert.Rules{
		PhoneTypes: []convert.Rule{
			{Match: "WORK", Result: "work"},
			{Match: "HOME", Result: "home"},
			{Match: "CELL", Result: "mobile"},
		},
		EmailTypes: []convert.Rule{
			{Match: "WORK", Result: "work"},
			{Match: "HOME", Result: "home"},
		},
		PhoneReplace: []convert.Replacement{
			{From: "+49 ", To: "0"},
			{From: "+49", To: "0"},
			{From: "(", To: ""},
			{From: ")", To: ""},
			{From: "/", To: ""},
			{From: "-", To: ""},
		},
		RealName: []string{
			"{PREFIX} {LASTNAME}, {FIRSTNAME}",
			"{LASTNAME}, {FIRSTNAME}",
			"{FULLNAME}",
			"{ORGANIZATION}",
		},
	}
}

// Load reads the configuration at path (ConfigPath when empty). A missing
// file yields the defaults. A .env file in the working directory and the
// configuration directory is loaded before environment overrides apply.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	// Existing environment variables take precedence over .env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(ConfigDir(), ".env"))

	cfg := Default()

	f, err := os.Open(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
	} else {
		defer func() { _ = f.Close() }()
		if err := json.NewDecoder(f).Decode(cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	cfg.applyDefaults()

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides:
// CARD2BOX_FRITZBOX_URL, CARD2BOX_FRITZBOX_USER, CARD2BOX_FRITZBOX_PASSWORD,
// CARD2BOX_CARDDAV_URL, CARD2BOX_CARDDAV_USER, CARD2BOX_CARDDAV_PASSWORD,
// CARD2BOX_PHONEBOOK_ID and CARD2BOX_LOG_LEVEL.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CARD2BOX_FRITZBOX_URL"); v != "" {
		cfg.FritzBox.URL = v
	}
	if v := os.Getenv("CARD2BOX_FRITZBOX_USER"); v != "" {
		cfg.FritzBox.User = v
	}
	if v := os.Getenv("CARD2BOX_FRITZBOX_PASSWORD"); v != "" {
		cfg.FritzBox.Password = v
	}
	if v := os.Getenv("CARD2BOX_CARDDAV_URL"); v != "" {
		cfg.Source.CardDAV.URL = v
	}
	if v := os.Getenv("CARD2BOX_CARDDAV_USER"); v != "" {
		cfg.Source.CardDAV.User = v
	}
	if v := os.Getenv("CARD2BOX_CARDDAV_PASSWORD"); v != "" {
		cfg.Source.CardDAV.Password = v
	}
	if v := os.Getenv("CARD2BOX_PHONEBOOK_ID"); v != "" {
		if id, err := strconv.Atoi(v); err == nil {
			cfg.Phonebook.ID = id
		}
	}
	if v := os.Getenv("CARD2BOX_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}

// applyDefaults fills fields a partial config file left empty.
func (c *Config) applyDefaults() {
	def := Default()
	if c.Source.Type == "" {
		c.Source.Type = def.Source.Type
	}
	if c.FritzBox.URL == "" {
		c.FritzBox.URL = def.FritzBox.URL
	}
	if c.FritzBox.TimeoutSeconds <= 0 {
		c.FritzBox.TimeoutSeconds = def.FritzBox.TimeoutSeconds
	}
	if c.Phonebook.Name == "" {
		c.Phonebook.Name = def.Phonebook.Name
	}
	if c.Phonebook.ImagePath == "" {
		c.Phonebook.ImagePath = def.Phonebook.ImagePath
	}
	if c.Phonebook.ImageDir == "" {
		c.Phonebook.ImageDir = def.Phonebook.ImageDir
	}
	if c.Phonebook.Ceiling <= 0 {
		c.Phonebook.Ceiling = def.Phonebook.Ceiling
	}
	if len(c.Rules.RealName) == 0 {
		c.Rules.RealName = def.Rules.RealName
	}
	if len(c.Rules.PhoneTypes) == 0 {
		c.Rules.PhoneTypes = def.Rules.PhoneTypes
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = def.LogFormat
	}
}

// Save writes the configuration with restricted permissions.
func Save(cfg *Config, path string) error {
	if path == "" {
		path = ConfigPath()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer func() { _ = f.Close() }()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	return nil
}

// Validate reports configuration errors that prevent a run.
func (c *Config) Validate() error {
	switch c.Source.Type {
	case SourceCardDAV:
		if c.Source.CardDAV.URL == "" {
			return errors.New("carddav source requires source.carddav.url")
		}
	case SourceFiles:
		if len(c.Source.Files) == 0 {
			return errors.New("files source requires source.files")
		}
	case SourceGoogle:
	default:
		return fmt.Errorf("unknown source type %q", c.Source.Type)
	}

	if c.FritzBox.URL == "" {
		return errors.New("fritzbox.url is required")
	}
	return nil
}

// FTPHost returns the file server host, defaulting to the router's host name.
func (c *Config) FTPHost() string {
	if c.FritzBox.FTP.Host != "" {
		return c.FritzBox.FTP.Host
	}
	return hostOf(c.FritzBox.URL)
}

// DatabasePath returns the state database path.
func (c *Config) DatabasePath(fallback string) string {
	if c.Database != "" {
		return c.Database
	}
	return fallback
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return u.Hostname()
}
